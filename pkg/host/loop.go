package host

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"go.uber.org/zap"
)

// Source queues orders between batches. Expiries are counted from the
// batch index passed to Drain.
type Source interface {
	Drain(currentBatch uint64) []utxo.Order
}

// Loop runs a batch every interval until ctx is done. Orders deferred by
// the batch size cap go first into the next batch. An interval with no
// orders runs no batch.
func (h *Host) Loop(ctx context.Context, src Source, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var backlog []utxo.Order
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		st, err := h.oracle.State(ctx)
		if err != nil {
			h.logger.Warn(ctx, "read oracle state", zap.Error(err))
			continue
		}
		orders := append(backlog, src.Drain(st.BatchIndex)...)
		backlog = nil
		if len(orders) == 0 {
			continue
		}

		rep, err := h.RunBatch(ctx, orders)
		if errors.Is(err, batch.ErrInvalidOrder) {
			h.logger.Warn(ctx, "dropping orders of aborted batch", zap.Int("orders", len(orders)))
			continue
		}
		if err != nil {
			// retried with the same orders on the next tick
			backlog = orders
			continue
		}
		backlog = rep.Deferred
	}
}
