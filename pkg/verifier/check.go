// Package verifier re-checks a batch journal against the live set it
// claims to start from. It never reruns matching: it replays the root
// transition and checks that every fill is backed by the records it names.
package verifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/merkle"
	"github.com/joripage/utxo-orderbook/pkg/settlement"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// Outcome is the state after an accepted journal.
type Outcome struct {
	NextBatchIndex uint64
	NewRoot        common.Hash
	Directives     []settlement.Directive
	Book           *ledger.Book
}

// Check validates j as the batch following prior. prior is the verifier's
// own replica of the live book and is not modified.
func Check(j *journal.Journal, expectedBatchIndex uint64, oldRoot common.Hash, prior *ledger.Book) (*Outcome, error) {
	if j.BatchIndex != expectedBatchIndex {
		return nil, fmt.Errorf("%w: journal %d, expected %d", ErrStaleOrReplayedBatch, j.BatchIndex, expectedBatchIndex)
	}
	if prior.Root() != oldRoot {
		return nil, fmt.Errorf("%w: replica root %s, old root %s", ErrRootMismatch, prior.Root().Hex(), oldRoot.Hex())
	}

	consumed := make(map[common.Hash]utxo.UTXO, len(j.ConsumedUTXOIDs))
	for _, id := range j.ConsumedUTXOIDs {
		if _, dup := consumed[id]; dup {
			return nil, fmt.Errorf("%w: %s consumed twice", ErrInconsistentConsumption, id.Hex())
		}
		u, ok := prior.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s not live", ErrInconsistentConsumption, id.Hex())
		}
		p, err := prior.Prove(id)
		if err != nil || !merkle.Verify(oldRoot, id, p) {
			return nil, fmt.Errorf("%w: %s not provable under %s", ErrInconsistentConsumption, id.Hex(), oldRoot.Hex())
		}
		consumed[id] = u
	}

	next := prior.Clone()
	root, err := next.Apply(j.ConsumedUTXOIDs, j.NewUTXOs)
	if err != nil {
		return nil, fmt.Errorf("%w: replay: %w", ErrRootMismatch, err)
	}
	if root != j.NewUTXOMerkleRoot {
		return nil, fmt.Errorf("%w: replayed %s, journal %s", ErrRootMismatch, root.Hex(), j.NewUTXOMerkleRoot.Hex())
	}

	if err := checkFills(j, consumed, prior); err != nil {
		return nil, err
	}

	return &Outcome{
		NextBatchIndex: j.BatchIndex + 1,
		NewRoot:        root,
		Directives:     settlement.Directives(j.BatchIndex, j.Fills),
		Book:           next,
	}, nil
}

// party is what the journal tells us about one side of a fill.
type party struct {
	owner  common.Address
	seller bool
}

func checkFills(j *journal.Journal, consumed map[common.Hash]utxo.UTXO, prior *ledger.Book) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrFillInconsistentWithUTXOSet, fmt.Sprintf(format, args...))
	}

	issued := make(map[common.Hash]struct{}, len(j.NewUTXOs))
	remainders := make(map[common.Hash]utxo.UTXO)
	for _, u := range j.NewUTXOs {
		issued[u.ID] = struct{}{}
		if u.IsRemainder() {
			if _, dup := remainders[u.Lineage.Parent]; dup {
				return fail("%s split twice", u.Lineage.Parent.Hex())
			}
			remainders[u.Lineage.Parent] = u
		}
	}

	parties := make(map[common.Hash]party)
	note := func(id common.Hash, p party) error {
		if prev, ok := parties[id]; ok && prev != p {
			return fail("%s appears with two owners or sides", id.Hex())
		}
		parties[id] = p
		return nil
	}

	for i, f := range j.Fills {
		if f.Price == 0 || f.Quantity == 0 {
			return fail("fill #%d has zero price or quantity", i)
		}
		if f.Maker == f.Taker || f.MakerUTXOID == f.TakerUTXOID {
			return fail("fill #%d trades with itself", i)
		}

		for _, ref := range []struct {
			id     common.Hash
			owner  common.Address
			seller bool
			maker  bool
		}{
			{f.MakerUTXOID, f.Maker, f.MakerIsSeller, true},
			{f.TakerUTXOID, f.Taker, !f.MakerIsSeller, false},
		} {
			if err := note(ref.id, party{owner: ref.owner, seller: ref.seller}); err != nil {
				return err
			}
			u, ok := consumed[ref.id]
			if !ok {
				if prior.Has(ref.id) {
					return fail("fill #%d reduces live %s without consuming it", i, ref.id.Hex())
				}
				if prior.Consumed(ref.id) {
					return fail("fill #%d references spent %s", i, ref.id.Hex())
				}
				if _, reissued := issued[ref.id]; reissued {
					return fail("fill #%d references %s which is issued unchanged", i, ref.id.Hex())
				}
				continue
			}
			if u.Order.Owner != ref.owner || (u.Order.Side == utxo.Sell) != ref.seller {
				return fail("fill #%d disagrees with record %s", i, ref.id.Hex())
			}
			if ref.maker && u.Order.Price != f.Price {
				return fail("fill #%d price %d is not maker price %d", i, f.Price, u.Order.Price)
			}
			if !ref.maker && !limitAllows(u.Order, f.Price) {
				return fail("fill #%d price %d outside taker limit %d", i, f.Price, u.Order.Price)
			}
		}
	}

	filled := j.FilledQuantity()
	for id, u := range consumed {
		q, traded := filled[id]
		if !traded {
			if !u.Order.Expired(j.BatchIndex) {
				return fail("%s consumed without fill or expiry", id.Hex())
			}
			continue
		}
		if q > u.Order.Quantity {
			return fail("%s overfilled: %d of %d", id.Hex(), q, u.Order.Quantity)
		}
		left := uint64(0)
		if rem, ok := remainders[id]; ok {
			if !sameTerms(u.Order, rem.Order) {
				return fail("%s remainder changes the order terms", id.Hex())
			}
			left = rem.Order.Quantity
		}
		if q+left != u.Order.Quantity {
			return fail("%s filled %d + remainder %d != %d", id.Hex(), q, left, u.Order.Quantity)
		}
	}

	for parent, rem := range remainders {
		if _, traded := filled[parent]; !traded {
			return fail("remainder %s of untraded %s", rem.ID.Hex(), parent.Hex())
		}
		if rem.Lineage.Batch != j.BatchIndex {
			return fail("remainder %s issued for batch %d", rem.ID.Hex(), rem.Lineage.Batch)
		}
		p := parties[parent]
		if rem.Order.Owner != p.owner || (rem.Order.Side == utxo.Sell) != p.seller {
			return fail("remainder %s disagrees with its fills", rem.ID.Hex())
		}
	}
	return nil
}

func limitAllows(o utxo.Order, price uint64) bool {
	if o.Side == utxo.Buy {
		return price <= o.Price
	}
	return price >= o.Price
}

func sameTerms(parent, rem utxo.Order) bool {
	return parent.Side == rem.Side && parent.Price == rem.Price && parent.Owner == rem.Owner &&
		parent.Nonce == rem.Nonce && parent.ExpiryBatch == rem.ExpiryBatch
}
