package matching

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// entry tracks one order while a batch is being matched.
type entry struct {
	utxo      utxo.UTXO
	resting   bool
	remaining uint64
	filled    uint64
	touched   bool
}

func newEntry(u utxo.UTXO, resting bool) *entry {
	return &entry{utxo: u, resting: resting, remaining: u.Order.Quantity}
}

func (e *entry) side() utxo.Side {
	return e.utxo.Order.Side
}

func (e *entry) price() uint64 {
	return e.utxo.Order.Price
}

func (e *entry) owner() common.Address {
	return e.utxo.Order.Owner
}
