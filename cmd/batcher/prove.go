package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/creachadair/atomicfile"
	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/joripage/utxo-orderbook/pkg/prover"
	"github.com/spf13/cobra"
)

const (
	inputFile       = "input.rlp"
	journalFile     = "journal.rlp"
	attestationFile = "attestation.json"
)

// newProveCmd builds a batch and writes its transcript without submitting
// it, so it can be checked elsewhere with verify.
func newProveCmd(a *app) *cobra.Command {
	var ordersPath, outDir string
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Build a batch and write its input, journal and attestation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, book, _, err := restore(ctx, s)
			if err != nil {
				return err
			}
			orders, err := a.readOrders(ordersPath)
			if err != nil {
				return err
			}
			existing, err := book.ProveAll(book.IDs())
			if err != nil {
				return err
			}
			b, err := a.builder()
			if err != nil {
				return err
			}

			in := batch.Input{
				BatchIndex: snap.BatchIndex,
				Root:       book.Root(),
				Existing:   existing,
				Incoming:   orders,
				Anchor:     snap.Anchor.Bytes(),
			}
			out, err := b.Build(ctx, in, book)
			if err != nil {
				return err
			}

			inBytes, err := in.Encode()
			if err != nil {
				return err
			}
			jBytes, err := out.Journal.Encode()
			if err != nil {
				return err
			}
			att, err := prover.DigestProver{}.Prove(ctx, inBytes, jBytes)
			if err != nil {
				return err
			}
			attBytes, err := json.MarshalIndent(att, "", "  ")
			if err != nil {
				return err
			}

			for name, data := range map[string][]byte{
				inputFile:       inBytes,
				journalFile:     jBytes,
				attestationFile: attBytes,
			} {
				if _, err := atomicfile.WriteAll(filepath.Join(outDir, name), bytes.NewReader(data), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d: %d fills, digest %s\n",
				in.BatchIndex, out.Stats.Fills, att.Digest.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&ordersPath, "orders", "orders.csv", "CSV file with side,price,quantity,owner,expiry_batch")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory for the transcript files")
	return cmd
}
