package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/prover"
	"github.com/joripage/utxo-orderbook/pkg/settlement"
	"github.com/joripage/utxo-orderbook/pkg/store"
	"github.com/spf13/cobra"
)

// newVerifyCmd checks a transcript written by prove against the stored
// live set and, with --commit, advances the store.
func newVerifyCmd(a *app) *cobra.Command {
	var (
		dir    string
		commit bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a batch transcript against the stored live set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inBytes, err := os.ReadFile(filepath.Join(dir, inputFile))
			if err != nil {
				return err
			}
			jBytes, err := os.ReadFile(filepath.Join(dir, journalFile))
			if err != nil {
				return err
			}
			attBytes, err := os.ReadFile(filepath.Join(dir, attestationFile))
			if err != nil {
				return err
			}
			var att prover.Attestation
			if err := json.Unmarshal(attBytes, &att); err != nil {
				return fmt.Errorf("parse attestation: %w", err)
			}
			want, err := prover.DigestProver{}.Prove(ctx, inBytes, jBytes)
			if err != nil {
				return err
			}
			if !bytes.Equal(want.Seal, att.Seal) || want.Digest != att.Digest {
				return fmt.Errorf("attestation does not cover %s", dir)
			}

			j, err := journal.Decode(jBytes)
			if err != nil {
				return err
			}

			s, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			_, _, contract, err := restore(ctx, s)
			if err != nil {
				return err
			}

			outcome, err := contract.Submit(j)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "batch %d accepted, root %s\n", j.BatchIndex, outcome.NewRoot.Hex())
			for addr, bal := range settlement.Balances(outcome.Directives) {
				fmt.Fprintf(w, "  %s base %s quote %s\n", addr.Hex(),
					bal[settlement.Base].String(), bal[settlement.Quote].String())
			}

			if !commit {
				return nil
			}
			snap := store.NewSnapshot(outcome.NextBatchIndex, outcome.Book)
			snap.Anchor = contract.State().Anchor
			return s.Save(ctx, snap)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory holding input.rlp, journal.rlp and attestation.json")
	cmd.Flags().BoolVar(&commit, "commit", false, "Save the resulting live set")
	return cmd
}
