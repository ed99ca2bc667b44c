package matching

import (
	"bytes"
	"cmp"

	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// TimePriority orders two orders that compete at the same price, and
// decides the maker when two orders of equal standing cross. A negative
// result means a has priority over b. Implementations must be a total
// order over distinct records.
type TimePriority interface {
	Compare(a, b utxo.UTXO) int
}

// NoncePriority gives the lower nonce priority and falls back to the id
// bytes, so ties are still broken deterministically.
type NoncePriority struct{}

func (NoncePriority) Compare(a, b utxo.UTXO) int {
	if c := cmp.Compare(a.Order.Nonce, b.Order.Nonce); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
