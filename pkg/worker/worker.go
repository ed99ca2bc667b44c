// Package worker archives accepted batches from the NATS stream into
// Postgres.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joripage/utxo-orderbook/pkg/repo"
	"github.com/joripage/utxo-orderbook/pkg/repo/model"
	"github.com/joripage/utxo-orderbook/pkg/stream"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Worker struct {
	batch repo.IBatch
}

func NewWorker(repo repo.IRepo) *Worker {
	return &Worker{
		batch: repo.Batch(),
	}
}

// StartConsumer pulls batch events until ctx is done. An event that fails
// to archive is not acked and will be redelivered.
func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	cons, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}

	for ctx.Err() == nil {
		msgs, err := cons.Fetch(10, nats.MaxWait(2*time.Second))
		if err != nil {
			if !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				zap.S().Warnf("fetch batch events: %v", err)
			}
			continue
		}

		for _, msg := range msgs {
			var ev stream.BatchEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				zap.S().Errorf("unmarshal batch event: %v", err)
				_ = msg.Term()
				continue
			}
			if err := w.handleEvent(ctx, &ev); err != nil {
				zap.S().Errorf("archive batch %d: %v", ev.BatchIndex, err)
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
	return ctx.Err()
}

func (w *Worker) handleEvent(ctx context.Context, ev *stream.BatchEvent) error {
	j, err := ev.DecodeJournal()
	if err != nil {
		return err
	}
	b, fills := model.FromJournal(j, ev.OldRoot, ev.Digest)
	return w.batch.Create(ctx, b, fills)
}
