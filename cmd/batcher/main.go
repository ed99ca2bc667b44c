package main

import (
	"context"
	"os"

	"github.com/joripage/utxo-orderbook/config"
	"github.com/joripage/utxo-orderbook/pkg/logging"
	"github.com/spf13/cobra"
)

type app struct {
	configFile string
	logLevel   string

	cfg    *config.AppConfig
	logger *logging.Logger
	undo   func()
}

func main() {
	if err := newRootCmd(&app{}).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "batcher",
		Short:         "Match limit orders in batches over an authenticated UTXO set",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config-file", "", "Specify config file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newRunCmd(a),
		newProveCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
	)

	return root
}

func (a *app) init() error {
	cfg := config.Default()
	if a.configFile != "" || os.Getenv("CONFIG_FILE") != "" {
		var err error
		cfg, err = config.Load(a.configFile)
		if err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger, a.undo = logging.Init(cfg.LogLevel)
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.undo != nil {
		a.undo()
	}
}
