// Package settlement turns attested fills into asset transfer directives
// and hands them to the settlement side.
package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/shopspring/decimal"
)

type Asset string

const (
	Base  Asset = "base"
	Quote Asset = "quote"
)

type Transfer struct {
	Asset  Asset           `json:"asset"`
	From   common.Address  `json:"from"`
	To     common.Address  `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Directive is the pair of transfers that settles one fill.
type Directive struct {
	BatchIndex uint64       `json:"batch_index"`
	Seq        int          `json:"seq"`
	Fill       journal.Fill `json:"fill"`
	Base       Transfer     `json:"base"`
	Quote      Transfer     `json:"quote"`
}

func amount(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// QuoteAmount is price * quantity without overflow.
func QuoteAmount(f journal.Fill) decimal.Decimal {
	return amount(f.Price).Mul(amount(f.Quantity))
}

// Directives maps fills to transfers. When the maker sold, base moves
// maker to taker and quote moves taker to maker; otherwise the reverse.
func Directives(batchIndex uint64, fills []journal.Fill) []Directive {
	out := make([]Directive, 0, len(fills))
	for i, f := range fills {
		seller, buyer := f.Maker, f.Taker
		if !f.MakerIsSeller {
			seller, buyer = f.Taker, f.Maker
		}
		out = append(out, Directive{
			BatchIndex: batchIndex,
			Seq:        i,
			Fill:       f,
			Base:       Transfer{Asset: Base, From: seller, To: buyer, Amount: amount(f.Quantity)},
			Quote:      Transfer{Asset: Quote, From: buyer, To: seller, Amount: QuoteAmount(f)},
		})
	}
	return out
}

// Balances nets the directives per account and asset. Every asset sums to
// zero across accounts.
func Balances(ds []Directive) map[common.Address]map[Asset]decimal.Decimal {
	out := make(map[common.Address]map[Asset]decimal.Decimal)
	add := func(who common.Address, a Asset, v decimal.Decimal) {
		m, ok := out[who]
		if !ok {
			m = make(map[Asset]decimal.Decimal)
			out[who] = m
		}
		m[a] = m[a].Add(v)
	}
	for _, d := range ds {
		for _, t := range []Transfer{d.Base, d.Quote} {
			add(t.From, t.Asset, t.Amount.Neg())
			add(t.To, t.Asset, t.Amount)
		}
	}
	return out
}
