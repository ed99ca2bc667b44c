package utxo

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/merkle"
)

// Lineage links a remainder record to the record it was split from. The
// zero Lineage marks a record created straight from a submitted order.
type Lineage struct {
	Parent common.Hash `json:"parent"`
	Batch  uint64      `json:"batch"`
	Seq    uint64      `json:"seq"`
}

func (l Lineage) IsZero() bool {
	return l == Lineage{}
}

// UTXO is a resting order record. It is consumed whole; a partial fill
// replaces it with one remainder record under a fresh id.
type UTXO struct {
	ID      common.Hash `json:"id"`
	Order   Order       `json:"order"`
	Lineage Lineage     `json:"lineage"`
}

// DeriveID hashes the order fields, and for remainders the lineage, into
// the record id. Fresh order ids match the layout used by the settlement
// contract: side, price, quantity, owner, nonce, expiry.
func DeriveID(o Order, l Lineage) common.Hash {
	var u64 [8]byte
	h := sha256.New()
	h.Write([]byte{byte(o.Side)})
	binary.LittleEndian.PutUint64(u64[:], o.Price)
	h.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], o.Quantity)
	h.Write(u64[:])
	h.Write(o.Owner[:])
	binary.LittleEndian.PutUint64(u64[:], o.Nonce)
	h.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], o.ExpiryBatch)
	h.Write(u64[:])
	if !l.IsZero() {
		h.Write(l.Parent[:])
		binary.LittleEndian.PutUint64(u64[:], l.Batch)
		h.Write(u64[:])
		binary.LittleEndian.PutUint64(u64[:], l.Seq)
		h.Write(u64[:])
	}
	return common.BytesToHash(h.Sum(nil))
}

func New(o Order) UTXO {
	return UTXO{ID: DeriveID(o, Lineage{}), Order: o}
}

// Verify recomputes the id from the record's fields.
func (u UTXO) Verify() error {
	if want := DeriveID(u.Order, u.Lineage); want != u.ID {
		return fmt.Errorf("%w: have %s, derived %s", ErrIDMismatch, u.ID.Hex(), want.Hex())
	}
	return nil
}

func (u UTXO) IsRemainder() bool {
	return !u.Lineage.IsZero()
}

// Split consumes u after filled units traded. When something is left, the
// remainder keeps side, price, owner, nonce and expiry and gets an id that
// folds in the parent id, the issuing batch and seq. seq must be non-zero.
func Split(u UTXO, filled, batch, seq uint64) (common.Hash, *UTXO, error) {
	if filled == 0 || filled > u.Order.Quantity {
		return common.Hash{}, nil, fmt.Errorf("%w: fill %d of %d", ErrInvalidSplit, filled, u.Order.Quantity)
	}
	if filled == u.Order.Quantity {
		return u.ID, nil, nil
	}
	if seq == 0 {
		return common.Hash{}, nil, fmt.Errorf("%w: remainder seq must be non-zero", ErrInvalidSplit)
	}

	o := u.Order
	o.Quantity -= filled
	l := Lineage{Parent: u.ID, Batch: batch, Seq: seq}
	return u.ID, &UTXO{ID: DeriveID(o, l), Order: o, Lineage: l}, nil
}

// WithProof is an existing record presented to a batch together with its
// inclusion witness against the batch's starting root.
type WithProof struct {
	UTXO  UTXO         `json:"utxo"`
	Proof merkle.Proof `json:"proof"`
}
