package ingest

import (
	"fmt"

	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// Rule is an admission check run on an order before it is queued for a
// batch.
type Rule interface {
	Check(o *utxo.Order) error
}

type Rules []Rule

func (rs Rules) Check(o *utxo.Order) error {
	for _, r := range rs {
		if err := r.Check(o); err != nil {
			return err
		}
	}
	return nil
}

// QuantityRule bounds the order size. Zero Max means no upper bound.
type QuantityRule struct {
	Min uint64
	Max uint64
}

func (r *QuantityRule) Check(o *utxo.Order) error {
	if o.Quantity < max(r.Min, 1) || (r.Max > 0 && o.Quantity > r.Max) {
		return fmt.Errorf("%w: quantity %d outside [%d, %d]", ErrRuleViolation, o.Quantity, r.Min, r.Max)
	}
	return nil
}

// PriceBandRule bounds the limit price. Zero Ceil means no upper bound.
type PriceBandRule struct {
	Floor uint64
	Ceil  uint64
}

func (r *PriceBandRule) Check(o *utxo.Order) error {
	if o.Price < r.Floor || (r.Ceil > 0 && o.Price > r.Ceil) {
		return fmt.Errorf("%w: price limit violation %d", ErrRuleViolation, o.Price)
	}
	return nil
}

type TickStep struct {
	MaxPrice uint64 `yaml:"max_price"` // 0 = no limit
	Step     uint64 `yaml:"step"`
}

// TickSizeRule requires prices on the step of the first band that covers
// them. Bands are checked in order.
type TickSizeRule struct {
	Steps []TickStep
}

func (r *TickSizeRule) Check(o *utxo.Order) error {
	for _, s := range r.Steps {
		if s.MaxPrice == 0 || o.Price <= s.MaxPrice {
			if s.Step > 0 && o.Price%s.Step != 0 {
				return fmt.Errorf("%w: invalid tick size %d for step %d", ErrRuleViolation, o.Price, s.Step)
			}
			return nil
		}
	}
	return nil
}

// RuleConfig is the yaml form of the admission rules.
type RuleConfig struct {
	MinQuantity uint64     `yaml:"min_quantity"`
	MaxQuantity uint64     `yaml:"max_quantity"`
	MinPrice    uint64     `yaml:"min_price"`
	MaxPrice    uint64     `yaml:"max_price"`
	TickSizes   []TickStep `yaml:"tick_sizes"`
}

func NewRules(cfg *RuleConfig) Rules {
	if cfg == nil {
		return Rules{&QuantityRule{}}
	}
	rs := Rules{
		&QuantityRule{Min: cfg.MinQuantity, Max: cfg.MaxQuantity},
		&PriceBandRule{Floor: cfg.MinPrice, Ceil: cfg.MaxPrice},
	}
	if len(cfg.TickSizes) > 0 {
		rs = append(rs, &TickSizeRule{Steps: cfg.TickSizes})
	}
	return rs
}
