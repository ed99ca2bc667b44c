// Package prover hands a batch transcript to proof production.
package prover

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
)

var ErrEmptyTranscript = errors.New("empty journal transcript")

// Attestation binds the journal bytes it covers to a seal from the prover.
type Attestation struct {
	Journal []byte
	Digest  common.Hash
	Seal    []byte
}

type Prover interface {
	Prove(ctx context.Context, input, journal []byte) (*Attestation, error)
}

// DigestProver seals the sha256 of input and journal. It stands in for a
// real proving backend in local runs and tests.
type DigestProver struct{}

var _ Prover = DigestProver{}

func (DigestProver) Prove(ctx context.Context, input, journalBytes []byte) (*Attestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(journalBytes) == 0 {
		return nil, ErrEmptyTranscript
	}
	seal := sha256.New()
	seal.Write(input)
	seal.Write(journalBytes)
	return &Attestation{
		Journal: journalBytes,
		Digest:  common.Hash(sha256.Sum256(journalBytes)),
		Seal:    seal.Sum(nil),
	}, nil
}

// Decode returns the journal the attestation covers.
func (a *Attestation) Decode() (*journal.Journal, error) {
	return journal.Decode(a.Journal)
}
