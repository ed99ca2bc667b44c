package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joripage/utxo-orderbook/pkg/host"
	"github.com/joripage/utxo-orderbook/pkg/ingest/fixintake"
	"github.com/joripage/utxo-orderbook/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept FIX orders and run a batch every interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			_, _, contract, err := restore(ctx, s)
			if err != nil {
				return err
			}

			h, release, err := a.newHost(s, contract, true, host.WithMetrics())
			if err != nil {
				return err
			}
			defer release()

			metrics.Register()
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.S().Errorf("metrics server: %v", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fixCfg := fixintake.Config{}
			if a.cfg.Fix != nil {
				fixCfg = *a.cfg.Fix
			}
			intake := fixintake.NewIntake(fixCfg, a.rules(), a.nonces())
			fix := fixintake.NewServer(intake)
			if err := fix.Start(fixCfg.ConfigFile); err != nil {
				return err
			}
			defer fix.Stop()

			interval := time.Duration(a.cfg.Batch.IntervalMs) * time.Millisecond
			if interval <= 0 {
				interval = time.Second
			}
			zap.S().Infof("%s serving, batch every %s, metrics on %s", a.cfg.ServiceName, interval, a.cfg.Metrics.Addr)

			err = h.Loop(ctx, intake, interval)
			if errors.Is(err, context.Canceled) {
				zap.S().Info("shutting down")
				return nil
			}
			return err
		},
	}
}
