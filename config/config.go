package config

import (
	"os"

	"github.com/joripage/utxo-orderbook/pkg/ingest"
	"github.com/joripage/utxo-orderbook/pkg/ingest/fixintake"
	postgres_wrapper "github.com/joripage/utxo-orderbook/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/utxo-orderbook/pkg/infra/redis"
	"github.com/joripage/utxo-orderbook/pkg/stream"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	LogLevel    string                           `yaml:"log_level"`
	Batch       *BatchConfig                     `yaml:"batch"`
	Rules       *ingest.RuleConfig               `yaml:"rules"`
	Store       *StoreConfig                     `yaml:"store"`
	ArchiveDB   *postgres_wrapper.PostgresConfig `yaml:"archive_db"`
	Nats        *stream.Config                   `yaml:"nats"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Fix         *fixintake.Config                `yaml:"fix"`
	Metrics     *MetricsConfig                   `yaml:"metrics"`
}

type BatchConfig struct {
	// Size caps the incoming orders taken into one batch. 0 = no cap.
	Size         int    `yaml:"size"`
	RejectPolicy string `yaml:"reject_policy"`
	IntervalMs   int64  `yaml:"interval_ms"`
	// Nonces is "clock" or "counter".
	Nonces string `yaml:"nonces"`
}

type StoreConfig struct {
	Kind  string                     `yaml:"kind"` // file | redis
	Path  string                     `yaml:"path"`
	Key   string                     `yaml:"key"`
	Redis *redis_wrapper.RedisConfig `yaml:"redis"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default is used when no config file is given.
func Default() *AppConfig {
	return &AppConfig{
		ServiceName: "utxo-batcher",
		LogLevel:    "info",
		Batch:       &BatchConfig{RejectPolicy: "drop", IntervalMs: 1000, Nonces: "clock"},
		Rules:       &ingest.RuleConfig{},
		Store:       &StoreConfig{Kind: "file", Path: "utxos.json"},
		Metrics:     &MetricsConfig{Addr: ":9102"},
	}
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := Default()

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
