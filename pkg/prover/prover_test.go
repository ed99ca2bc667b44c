package prover

import (
	"context"
	"testing"

	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestProver(t *testing.T) {
	j := &journal.Journal{BatchIndex: 3, Anchor: []byte{1}}
	b, err := j.Encode()
	require.NoError(t, err)

	att, err := DigestProver{}.Prove(context.Background(), []byte("input"), b)
	require.NoError(t, err)

	want, err := j.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, att.Digest)
	assert.Len(t, att.Seal, 32)

	decoded, err := att.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), decoded.BatchIndex)

	other, err := DigestProver{}.Prove(context.Background(), []byte("other"), b)
	require.NoError(t, err)
	assert.NotEqual(t, att.Seal, other.Seal)

	_, err = DigestProver{}.Prove(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrEmptyTranscript)
}
