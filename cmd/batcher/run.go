package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		ordersPath string
		publish    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch over the orders in a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			_, _, contract, err := restore(ctx, s)
			if err != nil {
				return err
			}

			orders, err := a.readOrders(ordersPath)
			if err != nil {
				return err
			}

			h, release, err := a.newHost(s, contract, publish)
			if err != nil {
				return err
			}
			defer release()

			rep, err := h.RunBatch(ctx, orders)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d: %d fills, volume %d, root %s -> %s\n",
				rep.BatchIndex, rep.Stats.Fills, rep.Stats.Volume, rep.OldRoot.Hex(), rep.NewRoot.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&ordersPath, "orders", "orders.csv", "CSV file with side,price,quantity,owner,expiry_batch")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the batch to the configured NATS stream and Kafka topic")
	return cmd
}
