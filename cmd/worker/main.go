package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joripage/utxo-orderbook/config"
	postgres_wrapper "github.com/joripage/utxo-orderbook/pkg/infra/postgres"
	"github.com/joripage/utxo-orderbook/pkg/logging"
	"github.com/joripage/utxo-orderbook/pkg/repo"
	"github.com/joripage/utxo-orderbook/pkg/stream"
	"github.com/joripage/utxo-orderbook/pkg/worker"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
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

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}
	if cfg.Nats == nil || cfg.ArchiveDB == nil {
		zap.S().Fatal("worker needs nats and archive_db config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// NATS
	nc, err := nats.Connect(cfg.Nats.URL)
	if err != nil {
		zap.S().Fatalf("connect nats: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		zap.S().Fatalf("jetstream: %v", err)
	}
	if err := stream.EnsureStream(js, cfg.Nats); err != nil {
		zap.S().Fatalf("ensure stream %s: %v", cfg.Nats.Stream, err)
	}

	// init db
	db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.ArchiveDB)
	if err != nil {
		zap.S().Fatalf("init db fail with err: %v", err)
	}

	// Worker
	w := worker.NewWorker(repo.NewRepo(db))
	zap.S().Infof("archiving %s as %s", cfg.Nats.Subject, cfg.Nats.Durable)
	if err := w.StartConsumer(ctx, js, cfg.Nats.Subject, cfg.Nats.Durable); err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Errorf("worker stopped: %v", err)
	}
}
