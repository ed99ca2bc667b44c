package matching

import (
	"errors"

	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

var (
	// ErrInvalidOrder is utxo.ErrInvalidOrder, so errors.Is works with either.
	ErrInvalidOrder   = utxo.ErrInvalidOrder
	ErrDuplicateOrder = errors.New("order presented twice")
)
