package worker

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/repo"
	"github.com/joripage/utxo-orderbook/pkg/repo/model"
	"github.com/joripage/utxo-orderbook/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBatches struct {
	batches map[uint64]*model.Batch
	fills   map[uint64][]*model.Fill
}

func (m *memBatches) Create(_ context.Context, b *model.Batch, fills []*model.Fill) error {
	if _, ok := m.batches[b.BatchIndex]; ok {
		return nil
	}
	m.batches[b.BatchIndex] = b
	m.fills[b.BatchIndex] = fills
	return nil
}

func (m *memBatches) Get(_ context.Context, idx uint64) (*model.Batch, error) {
	b, ok := m.batches[idx]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return b, nil
}

func (m *memBatches) Latest(context.Context) (*model.Batch, error) {
	return nil, repo.ErrNotFound
}

func TestHandleEvent(t *testing.T) {
	store := &memBatches{batches: map[uint64]*model.Batch{}, fills: map[uint64][]*model.Fill{}}
	w := &Worker{batch: store}

	j := &journal.Journal{
		BatchIndex:        4,
		Fills:             []journal.Fill{{Price: 10, Quantity: 2}, {Price: 11, Quantity: 1}},
		NewUTXOMerkleRoot: common.Hash{2},
	}
	ev, err := stream.NewBatchEvent(j, common.Hash{1})
	require.NoError(t, err)

	require.NoError(t, w.handleEvent(context.Background(), ev))
	require.NoError(t, w.handleEvent(context.Background(), ev))

	b, err := store.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, ev.Digest.Hex(), b.JournalDigest)
	assert.Len(t, store.fills[4], 2)

	ev.Digest = common.Hash{}
	require.Error(t, w.handleEvent(context.Background(), ev))
}
