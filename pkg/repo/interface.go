package repo

import (
	"context"

	"github.com/joripage/utxo-orderbook/pkg/repo/model"
)

type IBatch interface {
	// Create stores a batch with its fills. Storing the same batch again is
	// a no-op.
	Create(ctx context.Context, batch *model.Batch, fills []*model.Fill) error
	Get(ctx context.Context, batchIndex uint64) (*model.Batch, error)
	Latest(ctx context.Context) (*model.Batch, error)
}

type IFill interface {
	ListByBatch(ctx context.Context, batchIndex uint64) ([]*model.Fill, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]*model.Fill, error)
}
