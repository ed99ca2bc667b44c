package utxo

import "errors"

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrInvalidSplit = errors.New("invalid split quantity")
	ErrIDMismatch   = errors.New("utxo id does not match its fields")
)
