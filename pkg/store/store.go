// Package store persists the live UTXO set between batches.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

var ErrCorruptSnapshot = errors.New("snapshot does not match its root")

// Snapshot is the live set after the batch before BatchIndex.
type Snapshot struct {
	BatchIndex uint64      `json:"batch_index"`
	Root       common.Hash `json:"root"`
	// Anchor is the digest of the journal that produced the snapshot.
	Anchor common.Hash `json:"anchor"`
	UTXOs  []utxo.UTXO `json:"utxos"`
}

type Store interface {
	// Load returns an empty snapshot when nothing was saved yet.
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

func NewSnapshot(batchIndex uint64, book *ledger.Book) *Snapshot {
	return &Snapshot{
		BatchIndex: batchIndex,
		Root:       book.Root(),
		UTXOs:      book.Records(),
	}
}

// Book rebuilds the live book and checks it against the recorded root.
// Consumed-id history is not part of a snapshot.
func (s *Snapshot) Book() (*ledger.Book, error) {
	b, err := ledger.FromRecords(s.UTXOs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if len(s.UTXOs) > 0 && b.Root() != s.Root {
		return nil, fmt.Errorf("%w: rebuilt %s, recorded %s", ErrCorruptSnapshot, b.Root().Hex(), s.Root.Hex())
	}
	return b, nil
}
