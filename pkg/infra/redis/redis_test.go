package redis_wrapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg := &RedisConfig{
		ConnectionURL:      "redis://:secret@cache:6380/2",
		PoolSize:           7,
		DialTimeoutSeconds: 4,
		IdleTimeoutSeconds: 30,
	}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 4*time.Second, opts.DialTimeout)
	assert.Equal(t, 30*time.Second, opts.ConnMaxIdleTime)

	_, err = (&RedisConfig{ConnectionURL: "http://nope"}).Options()
	require.Error(t, err)
}
