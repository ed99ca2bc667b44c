// Package ledger keeps the live order records next to the authenticated
// id set that summarises them.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/merkle"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// Book is the live UTXO set. It is not safe for concurrent mutation; the
// batch builder works on clones and hands back a new Book.
type Book struct {
	set      merkle.Set
	records  map[common.Hash]utxo.UTXO
	consumed map[common.Hash]struct{}
}

func NewBook() *Book {
	s, _ := merkle.NewMemSet()
	return &Book{
		set:      s,
		records:  make(map[common.Hash]utxo.UTXO),
		consumed: make(map[common.Hash]struct{}),
	}
}

// FromRecords rebuilds a book from a persisted snapshot.
func FromRecords(records []utxo.UTXO) (*Book, error) {
	b := NewBook()
	if _, err := b.Apply(nil, records); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) Root() common.Hash {
	return b.set.Root()
}

func (b *Book) Len() int {
	return len(b.records)
}

func (b *Book) Has(id common.Hash) bool {
	return b.set.Has(id)
}

func (b *Book) Get(id common.Hash) (utxo.UTXO, bool) {
	u, ok := b.records[id]
	return u, ok
}

// Consumed reports whether id was live in this book's history and has
// since been removed.
func (b *Book) Consumed(id common.Hash) bool {
	_, ok := b.consumed[id]
	return ok
}

// Records returns the live records in leaf order.
func (b *Book) Records() []utxo.UTXO {
	ids := b.set.IDs()
	out := make([]utxo.UTXO, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.records[id])
	}
	return out
}

func (b *Book) Prove(id common.Hash) (*merkle.Proof, error) {
	return b.set.Prove(id)
}

// ProveAll bundles each live record with a witness against the current root.
func (b *Book) ProveAll(ids []common.Hash) ([]utxo.WithProof, error) {
	out := make([]utxo.WithProof, 0, len(ids))
	for _, id := range ids {
		p, err := b.set.Prove(id)
		if err != nil {
			return nil, err
		}
		out = append(out, utxo.WithProof{UTXO: b.records[id], Proof: *p})
	}
	return out, nil
}

// Apply removes consumed and adds created, returning the new root. Created
// records must carry a verifiable id and a positive quantity, and may not
// reuse an id this book has already consumed. Nothing changes on error.
func (b *Book) Apply(consumed []common.Hash, created []utxo.UTXO) (common.Hash, error) {
	inserted := make([]common.Hash, 0, len(created))
	for _, u := range created {
		if err := u.Verify(); err != nil {
			return common.Hash{}, err
		}
		if u.Order.Quantity == 0 {
			return common.Hash{}, fmt.Errorf("%w: zero quantity record %s", utxo.ErrInvalidOrder, u.ID.Hex())
		}
		if b.Consumed(u.ID) {
			return common.Hash{}, fmt.Errorf("revive consumed %s: %w", u.ID.Hex(), merkle.ErrDuplicateInsertion)
		}
		inserted = append(inserted, u.ID)
	}

	root, err := b.set.Apply(consumed, inserted)
	if err != nil {
		return common.Hash{}, err
	}

	for _, id := range consumed {
		delete(b.records, id)
		b.consumed[id] = struct{}{}
	}
	for _, u := range created {
		b.records[u.ID] = u
	}
	return root, nil
}

func (b *Book) Clone() *Book {
	c := &Book{
		set:      b.set.Clone(),
		records:  make(map[common.Hash]utxo.UTXO, len(b.records)),
		consumed: make(map[common.Hash]struct{}, len(b.consumed)),
	}
	for id, u := range b.records {
		c.records[id] = u
	}
	for id := range b.consumed {
		c.consumed[id] = struct{}{}
	}
	return c
}

// IDs returns the live ids in leaf order.
func (b *Book) IDs() []common.Hash {
	return b.set.IDs()
}
