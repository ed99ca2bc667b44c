package utxo

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Side uint8

const (
	Buy  Side = 0
	Sell Side = 1
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Opposite returns the counter side. Only meaningful for a valid side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide accepts buy/sell in any letter case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: side %q", ErrInvalidOrder, s)
	}
}

// Order is a limit order as submitted. Price is quote units per base unit,
// Quantity is in base units.
type Order struct {
	Side        Side           `json:"side"`
	Price       uint64         `json:"price"`
	Quantity    uint64         `json:"quantity"`
	Owner       common.Address `json:"owner"`
	Nonce       uint64         `json:"nonce"`
	ExpiryBatch uint64         `json:"expiry_batch"`
}

// Expired reports whether the order may no longer match in batch.
func (o Order) Expired(batch uint64) bool {
	return o.ExpiryBatch <= batch
}

// Validate checks the well-formedness every order must have before it
// reaches the matching engine.
func Validate(o Order) error {
	if !o.Side.Valid() {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, uint8(o.Side))
	}
	if o.Quantity == 0 {
		return fmt.Errorf("%w: zero quantity", ErrInvalidOrder)
	}
	if o.Price == 0 {
		return fmt.Errorf("%w: zero price", ErrInvalidOrder)
	}
	return nil
}
