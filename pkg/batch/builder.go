// Package batch turns an input bundle into one state transition: it checks
// the witnesses, runs the matching engine, applies the result to a copy of
// the live book and assembles the journal.
package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/logging"
	"github.com/joripage/utxo-orderbook/pkg/matching"
	"github.com/joripage/utxo-orderbook/pkg/merkle"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"go.uber.org/zap"
)

// RejectPolicy decides what happens to a malformed incoming order.
type RejectPolicy string

const (
	RejectDrop  RejectPolicy = "drop"
	RejectAbort RejectPolicy = "abort"
)

func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch p := RejectPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", RejectDrop:
		return RejectDrop, nil
	case RejectAbort:
		return RejectAbort, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

type Stats struct {
	Existing        int
	Incoming        int
	Rejected        int
	Expired         int
	DroppedIncoming int
	SelfTradeSkips  int
	Fills           int
	Volume          uint64
}

type Output struct {
	Journal        *journal.Journal
	NextBatchIndex uint64
	// Book is the live book after the batch. The book passed to Build is
	// left untouched.
	Book  *ledger.Book
	Stats Stats
}

type Option func(*Builder)

func WithEngine(e *matching.Engine) Option {
	return func(b *Builder) {
		b.engine = e
	}
}

func WithRejectPolicy(p RejectPolicy) Option {
	return func(b *Builder) {
		b.policy = p
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

type Builder struct {
	engine *matching.Engine
	policy RejectPolicy
	logger *logging.Logger
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		engine: matching.NewEngine(),
		policy: RejectDrop,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs one batch against book. Either the returned Output reflects
// the whole batch or an error is returned and nothing changed.
func (b *Builder) Build(ctx context.Context, in Input, book *ledger.Book) (*Output, error) {
	if in.Root != book.Root() {
		return nil, fmt.Errorf("%w: input %s, live %s", ErrStaleRoot, in.Root.Hex(), book.Root().Hex())
	}

	resting, err := checkExisting(in)
	if err != nil {
		return nil, err
	}

	incoming, rejected, err := b.admit(ctx, in.Incoming, resting, book)
	if err != nil {
		return nil, err
	}

	res, err := b.engine.MatchBatch(resting, incoming, in.BatchIndex)
	if err != nil {
		return nil, fmt.Errorf("match batch %d: %w", in.BatchIndex, err)
	}

	next := book.Clone()
	root, err := next.Apply(res.Consumed, res.Created)
	if err != nil {
		return nil, fmt.Errorf("apply batch %d: %w", in.BatchIndex, err)
	}

	j := &journal.Journal{
		BatchIndex:        in.BatchIndex,
		Fills:             res.Fills,
		NewUTXOs:          res.Created,
		ConsumedUTXOIDs:   res.Consumed,
		NewUTXOMerkleRoot: root,
		Anchor:            in.Anchor,
	}
	out := &Output{
		Journal:        j,
		NextBatchIndex: in.BatchIndex + 1,
		Book:           next,
		Stats: Stats{
			Existing:        len(in.Existing),
			Incoming:        len(in.Incoming),
			Rejected:        rejected,
			Expired:         len(res.Expired),
			DroppedIncoming: res.DroppedIncoming,
			SelfTradeSkips:  res.SelfTradeSkips,
			Fills:           len(res.Fills),
			Volume:          j.Volume(),
		},
	}

	b.logger.Info(ctx, "batch built",
		zap.Uint64("batch", in.BatchIndex),
		zap.String("old_root", in.Root.Hex()),
		zap.String("new_root", root.Hex()),
		zap.Int("fills", out.Stats.Fills),
		zap.Int("consumed", len(res.Consumed)),
		zap.Int("created", len(res.Created)),
		zap.Int("rejected", rejected),
	)
	return out, nil
}

// checkExisting verifies every presented record against the batch root.
func checkExisting(in Input) ([]utxo.UTXO, error) {
	seen := make(map[common.Hash]struct{}, len(in.Existing))
	resting := make([]utxo.UTXO, 0, len(in.Existing))
	for i := range in.Existing {
		wp := &in.Existing[i]
		id := wp.UTXO.ID
		if err := wp.UTXO.Verify(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProofInvalid, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s presented twice", ErrProofInvalid, id.Hex())
		}
		if !merkle.Verify(in.Root, id, &wp.Proof) {
			return nil, fmt.Errorf("%w: %s not under root %s", ErrProofInvalid, id.Hex(), in.Root.Hex())
		}
		seen[id] = struct{}{}
		resting = append(resting, wp.UTXO)
	}
	return resting, nil
}

// admit turns submitted orders into records and applies the reject policy
// to the ones that may not enter the batch.
func (b *Builder) admit(ctx context.Context, orders []utxo.Order, resting []utxo.UTXO, book *ledger.Book) ([]utxo.UTXO, int, error) {
	taken := make(map[common.Hash]struct{}, len(orders)+len(resting))
	for _, u := range resting {
		taken[u.ID] = struct{}{}
	}

	rejected := 0
	out := make([]utxo.UTXO, 0, len(orders))
	for i, o := range orders {
		u := utxo.New(o)
		err := utxo.Validate(o)
		if err == nil {
			if _, dup := taken[u.ID]; dup || book.Has(u.ID) || book.Consumed(u.ID) {
				err = fmt.Errorf("order id %s already used", u.ID.Hex())
			}
		}
		if err != nil {
			if b.policy == RejectAbort {
				return nil, 0, fmt.Errorf("%w: incoming #%d: %w", ErrInvalidOrder, i, err)
			}
			rejected++
			b.logger.Warn(ctx, "drop incoming order",
				zap.Int("position", i),
				zap.String("owner", o.Owner.Hex()),
				zap.Error(err),
			)
			continue
		}
		taken[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out, rejected, nil
}
