package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/joripage/utxo-orderbook/pkg/host"
	redis_wrapper "github.com/joripage/utxo-orderbook/pkg/infra/redis"
	"github.com/joripage/utxo-orderbook/pkg/ingest"
	kafkawrapper "github.com/joripage/utxo-orderbook/pkg/kafka_wrapper"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/oracle"
	"github.com/joripage/utxo-orderbook/pkg/settlement"
	"github.com/joripage/utxo-orderbook/pkg/store"
	"github.com/joripage/utxo-orderbook/pkg/stream"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/joripage/utxo-orderbook/pkg/verifier"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func (a *app) openStore(ctx context.Context) (store.Store, func(), error) {
	sc := a.cfg.Store
	switch sc.Kind {
	case "", "file":
		return store.NewFileStore(sc.Path), func() {}, nil
	case "redis":
		if sc.Redis == nil {
			return nil, nil, fmt.Errorf("store kind redis needs a redis block")
		}
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		client, err := redis_wrapper.InitRedis(dialCtx, sc.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		return store.NewRedisStore(client, sc.Key), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}
}

// restore rebuilds the live book and a local contract from the latest
// snapshot.
func restore(ctx context.Context, s store.Store) (*store.Snapshot, *ledger.Book, *verifier.Contract, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	book, err := snap.Book()
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := verifier.RestoreContract(verifier.State{
		BatchIndex: snap.BatchIndex,
		Root:       book.Root(),
		Anchor:     snap.Anchor,
	}, book)
	if err != nil {
		return nil, nil, nil, err
	}
	return snap, book, c, nil
}

func (a *app) nonces() ingest.NonceSource {
	if a.cfg.Batch.Nonces == "counter" {
		return ingest.NewCounterNonce(1)
	}
	return ingest.NewClockNonce()
}

func (a *app) rules() ingest.Rules {
	return ingest.NewRules(a.cfg.Rules)
}

func (a *app) builder() (*batch.Builder, error) {
	policy, err := batch.ParseRejectPolicy(a.cfg.Batch.RejectPolicy)
	if err != nil {
		return nil, err
	}
	return batch.NewBuilder(
		batch.WithRejectPolicy(policy),
		batch.WithLogger(a.logger),
	), nil
}

func (a *app) readOrders(path string) ([]utxo.Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadCSV(f, a.nonces(), a.cfg.Batch.Size)
}

// newHost wires the host with whatever outputs are configured. The
// returned func releases the connections it opened.
func (a *app) newHost(s store.Store, c *verifier.Contract, withOutputs bool, extra ...host.Option) (*host.Host, func(), error) {
	b, err := a.builder()
	if err != nil {
		return nil, nil, err
	}
	opts := []host.Option{
		host.WithBuilder(b),
		host.WithRules(a.rules()),
		host.WithBatchSize(a.cfg.Batch.Size),
		host.WithLogger(a.logger),
	}
	opts = append(opts, extra...)

	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if withOutputs && a.cfg.Nats != nil && a.cfg.Nats.URL != "" {
		nc, err := nats.Connect(a.cfg.Nats.URL)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, nc.Close)
		js, err := nc.JetStream()
		if err != nil {
			release()
			return nil, nil, err
		}
		if err := stream.EnsureStream(js, a.cfg.Nats); err != nil {
			release()
			return nil, nil, fmt.Errorf("ensure stream %s: %w", a.cfg.Nats.Stream, err)
		}
		opts = append(opts, host.WithEvents(stream.NewPublisher(js, a.cfg.Nats.Subject)))
	}

	if withOutputs && a.cfg.Kafka != nil && len(a.cfg.Kafka.Brokers) > 0 {
		p := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{Brokers: a.cfg.Kafka.Brokers})
		closers = append(closers, func() {
			if err := p.Close(); err != nil {
				zap.S().Warnf("close kafka producer: %v", err)
			}
		})
		opts = append(opts, host.WithSettlement(settlement.NewKafkaPublisher(p, a.cfg.Kafka.Topic)))
	}

	h, err := host.New(oracle.NewContractOracle(c), c, s, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return h, release, nil
}
