package main

import (
	"flag"

	"github.com/joripage/utxo-orderbook/config"
	"github.com/joripage/utxo-orderbook/pkg/infra"
	"github.com/joripage/utxo-orderbook/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile string
		source     string
	)
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", infra.DefaultSource, "Migration source URL")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	_, undo := logging.Init(cfg.LogLevel)
	defer undo()

	if cfg.ArchiveDB == nil || cfg.ArchiveDB.MigrationConnURL == "" {
		zap.S().Fatal("archive_db.migration_conn_url is not set")
	}
	if err := infra.Migrate(source, cfg.ArchiveDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate: %v", err)
	}
}
