// Package matching runs one batch of price-time priority matching over a
// set of resting and incoming order records.
package matching

import (
	"container/heap"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/deque"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// Result is everything a batch changed. Orders that were live at batch
// start and appear in neither Consumed nor a fill stay live as they were.
type Result struct {
	Fills []journal.Fill
	// Consumed holds ids that were live at batch start: filled resting
	// orders in first-touch order, then expired ones.
	Consumed []common.Hash
	// Created holds remainders in first-touch order, followed by the
	// incoming orders that traded nothing, in submission order.
	Created         []utxo.UTXO
	Expired         []common.Hash
	DroppedIncoming int
	SelfTradeSkips  int
}

type Option func(*Engine)

func WithTimePriority(p TimePriority) Option {
	return func(e *Engine) {
		e.priority = p
	}
}

// Engine holds no state between batches and is safe for concurrent use.
type Engine struct {
	priority TimePriority
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{priority: NoncePriority{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// batchRun is the state of one MatchBatch call.
type batchRun struct {
	engine  *Engine
	buys    *deque.Deque[*entry]
	sells   *deque.Deque[*entry]
	touched []*entry
	result  *Result
}

// MatchBatch matches incoming against resting at currentBatch. The engine
// neither reads nor writes any store; the caller applies the result.
func (e *Engine) MatchBatch(resting, incoming []utxo.UTXO, currentBatch uint64) (*Result, error) {
	seen := make(map[common.Hash]struct{}, len(resting)+len(incoming))
	for _, group := range [][]utxo.UTXO{resting, incoming} {
		for _, u := range group {
			if err := utxo.Validate(u.Order); err != nil {
				return nil, fmt.Errorf("order %s: %w", u.ID.Hex(), err)
			}
			if _, dup := seen[u.ID]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateOrder, u.ID.Hex())
			}
			seen[u.ID] = struct{}{}
		}
	}

	run := &batchRun{
		engine: e,
		result: &Result{},
	}

	buyHeap := newOrderHeap(e.buyLess)
	sellHeap := newOrderHeap(e.sellLess)
	push := func(en *entry) {
		if en.side() == utxo.Buy {
			buyHeap.Push(en)
		} else {
			sellHeap.Push(en)
		}
	}

	var expired []common.Hash
	for _, u := range resting {
		if u.Order.Expired(currentBatch) {
			expired = append(expired, u.ID)
			continue
		}
		push(newEntry(u, true))
	}
	pending := make([]*entry, 0, len(incoming))
	for _, u := range incoming {
		if u.Order.Expired(currentBatch) {
			run.result.DroppedIncoming++
			continue
		}
		en := newEntry(u, false)
		pending = append(pending, en)
		push(en)
	}

	run.buys = drain(buyHeap)
	run.sells = drain(sellHeap)
	run.match()

	res := run.result
	seq := uint64(0)
	for _, en := range run.touched {
		if en.resting {
			res.Consumed = append(res.Consumed, en.utxo.ID)
		}
		if en.remaining == 0 {
			continue
		}
		seq++
		_, rem, err := utxo.Split(en.utxo, en.filled, currentBatch, seq)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", en.utxo.ID.Hex(), err)
		}
		res.Created = append(res.Created, *rem)
	}
	for _, en := range pending {
		if !en.touched {
			res.Created = append(res.Created, en.utxo)
		}
	}
	res.Consumed = append(res.Consumed, expired...)
	res.Expired = expired
	return res, nil
}

func (e *Engine) buyLess(a, b *entry) bool {
	if a.price() != b.price() {
		return a.price() > b.price()
	}
	return e.priority.Compare(a.utxo, b.utxo) < 0
}

func (e *Engine) sellLess(a, b *entry) bool {
	if a.price() != b.price() {
		return a.price() < b.price()
	}
	return e.priority.Compare(a.utxo, b.utxo) < 0
}

// roles picks the maker of two crossing orders. A resting order always
// makes against an incoming one.
func (e *Engine) roles(a, b *entry) (maker, taker *entry) {
	if a.resting != b.resting {
		if a.resting {
			return a, b
		}
		return b, a
	}
	if e.priority.Compare(a.utxo, b.utxo) <= 0 {
		return a, b
	}
	return b, a
}

func drain(h *orderHeap) *deque.Deque[*entry] {
	heap.Init(h)
	q := &deque.Deque[*entry]{}
	for h.Len() > 0 {
		q.PushBack(heap.Pop(h).(*entry))
	}
	return q
}

func crosses(buy, sell *entry) bool {
	return buy.price() >= sell.price()
}

func orient(a, b *entry) (buy, sell *entry) {
	if a.side() == utxo.Buy {
		return a, b
	}
	return b, a
}

func (r *batchRun) queue(side utxo.Side) *deque.Deque[*entry] {
	if side == utxo.Buy {
		return r.buys
	}
	return r.sells
}

func (r *batchRun) match() {
	for r.buys.Len() > 0 && r.sells.Len() > 0 {
		buy, sell := r.buys.Front(), r.sells.Front()
		if !crosses(buy, sell) {
			return
		}

		if buy.owner() != sell.owner() {
			r.fill(buy, sell)
			if buy.remaining == 0 {
				r.buys.PopFront()
			}
			if sell.remaining == 0 {
				r.sells.PopFront()
			}
			continue
		}

		r.result.SelfTradeSkips++
		maker, taker := r.engine.roles(buy, sell)
		makers, takers := r.queue(maker.side()), r.queue(taker.side())
		idx := counterparty(makers, taker)
		if idx < 0 {
			// No counterparty avoids the self-trade: matching stops at the
			// taker's price level.
			closeLevel(takers, taker.price())
			continue
		}

		c := makers.At(idx)
		r.fill(orient(taker, c))
		if c.remaining == 0 {
			makers.Remove(idx)
		}
		if taker.remaining == 0 {
			takers.PopFront()
		}
	}
}

// closeLevel drops every order at price from the front of q. They trade
// nothing more this batch.
func closeLevel(q *deque.Deque[*entry], price uint64) {
	for q.Len() > 0 && q.Front().price() == price {
		q.PopFront()
	}
}

// counterparty returns the index of the first order behind the head of q
// that still crosses taker and belongs to someone else, or -1.
func counterparty(q *deque.Deque[*entry], taker *entry) int {
	for i := 1; i < q.Len(); i++ {
		c := q.At(i)
		if !crosses(orient(taker, c)) {
			return -1
		}
		if c.owner() != taker.owner() {
			return i
		}
	}
	return -1
}

func (r *batchRun) fill(buy, sell *entry) {
	maker, taker := r.engine.roles(buy, sell)
	qty := min(buy.remaining, sell.remaining)

	for _, en := range []*entry{buy, sell} {
		en.remaining -= qty
		en.filled += qty
		if !en.touched {
			en.touched = true
			r.touched = append(r.touched, en)
		}
	}

	r.result.Fills = append(r.result.Fills, journal.Fill{
		MakerUTXOID:   maker.utxo.ID,
		TakerUTXOID:   taker.utxo.ID,
		Price:         maker.price(),
		Quantity:      qty,
		Maker:         maker.owner(),
		Taker:         taker.owner(),
		MakerIsSeller: maker.side() == utxo.Sell,
	})
}
