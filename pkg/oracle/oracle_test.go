package oracle

import (
	"context"
	"testing"

	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/merkle"
	"github.com/joripage/utxo-orderbook/pkg/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractOracle(t *testing.T) {
	c := verifier.NewContract(4, ledger.NewBook())
	o := NewContractOracle(c)

	st, err := o.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.BatchIndex)
	assert.Equal(t, merkle.EmptyRoot, st.Root)
	assert.Len(t, st.Anchor, 32)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.State(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
