package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joripage/utxo-orderbook/config"
	kafkawrapper "github.com/joripage/utxo-orderbook/pkg/kafka_wrapper"
	"github.com/joripage/utxo-orderbook/pkg/logging"
	"github.com/joripage/utxo-orderbook/pkg/settlement"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	_, undo := logging.Init(cfg.LogLevel)
	defer undo()

	if cfg.Kafka == nil {
		zap.S().Fatal("settler needs kafka config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cg, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.GroupID,
		Topic:      cfg.Kafka.Topic,
		MaxRetries: 3,
		DLQTopic:   cfg.Kafka.Topic + ".dlq",
	})
	if err != nil {
		zap.S().Fatalf("init consumer: %v", err)
	}
	defer cg.Close()

	accounts := settlement.NewAccounts()
	zap.S().Infof("settling directives from %s", cfg.Kafka.Topic)
	err = cg.Run(ctx, func(ctx context.Context, msgs []kafkawrapper.Message) error {
		ds := make([]settlement.Directive, 0, len(msgs))
		for _, m := range msgs {
			var d settlement.Directive
			if err := json.Unmarshal(m.Value, &d); err != nil {
				zap.S().Errorf("skip %s: %v", m.Describe(), err)
				continue
			}
			ds = append(ds, d)
		}
		n := accounts.Apply(ds)
		for _, d := range ds {
			zap.S().Debugf("batch %d seq %d: %s base %s -> %s, %s quote %s -> %s",
				d.BatchIndex, d.Seq,
				d.Base.Amount, d.Base.From.Hex(), d.Base.To.Hex(),
				d.Quote.Amount, d.Quote.From.Hex(), d.Quote.To.Hex())
		}
		zap.S().Infof("applied %d of %d directives", n, len(ds))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Errorf("settler stopped: %v", err)
	}
}
