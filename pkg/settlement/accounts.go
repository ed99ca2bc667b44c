package settlement

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type directiveKey struct {
	batch uint64
	seq   int
}

// Accounts keeps running balances from a directive feed. A directive seen
// twice is applied once, so redelivered messages are harmless.
type Accounts struct {
	mu       sync.Mutex
	balances map[common.Address]map[Asset]decimal.Decimal
	applied  map[directiveKey]struct{}
}

func NewAccounts() *Accounts {
	return &Accounts{
		balances: make(map[common.Address]map[Asset]decimal.Decimal),
		applied:  make(map[directiveKey]struct{}),
	}
}

// Apply books ds and returns how many were new.
func (a *Accounts) Apply(ds []Directive) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := make([]Directive, 0, len(ds))
	for _, d := range ds {
		k := directiveKey{batch: d.BatchIndex, seq: d.Seq}
		if _, ok := a.applied[k]; ok {
			continue
		}
		a.applied[k] = struct{}{}
		fresh = append(fresh, d)
	}
	for who, net := range Balances(fresh) {
		m, ok := a.balances[who]
		if !ok {
			m = make(map[Asset]decimal.Decimal)
			a.balances[who] = m
		}
		for asset, v := range net {
			m[asset] = m[asset].Add(v)
		}
	}
	return len(fresh)
}

func (a *Accounts) Balance(who common.Address, asset Asset) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[who][asset]
}
