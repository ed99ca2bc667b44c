// Package host drives one batch end to end: it reads the accepted state,
// rebuilds the live book from the store, builds and attests the batch,
// submits the journal and then persists and publishes the result.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/joripage/utxo-orderbook/pkg/ingest"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/logging"
	"github.com/joripage/utxo-orderbook/pkg/metrics"
	"github.com/joripage/utxo-orderbook/pkg/oracle"
	"github.com/joripage/utxo-orderbook/pkg/prover"
	"github.com/joripage/utxo-orderbook/pkg/settlement"
	"github.com/joripage/utxo-orderbook/pkg/store"
	"github.com/joripage/utxo-orderbook/pkg/stream"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/joripage/utxo-orderbook/pkg/verifier"
	"go.uber.org/zap"
)

// Submitter accepts or rejects an attested journal.
type Submitter interface {
	Submit(j *journal.Journal) (*verifier.Outcome, error)
}

// EventPublisher announces accepted batches.
type EventPublisher interface {
	Publish(ctx context.Context, ev *stream.BatchEvent) error
}

type Option func(*Host)

func WithBuilder(b *batch.Builder) Option {
	return func(h *Host) {
		h.builder = b
	}
}

func WithProver(p prover.Prover) Option {
	return func(h *Host) {
		h.prover = p
	}
}

func WithRules(r ingest.Rule) Option {
	return func(h *Host) {
		h.rules = r
	}
}

// WithBatchSize caps the orders taken into one batch; the rest are handed
// back as deferred. 0 means no cap.
func WithBatchSize(n int) Option {
	return func(h *Host) {
		h.batchSize = n
	}
}

func WithEvents(p EventPublisher) Option {
	return func(h *Host) {
		h.events = p
	}
}

func WithSettlement(s settlement.Sink) Option {
	return func(h *Host) {
		h.sink = s
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithSaveRetry bounds how long a failed save of an accepted batch is
// retried. 0 tries once.
func WithSaveRetry(d time.Duration) Option {
	return func(h *Host) {
		h.saveRetry = d
	}
}

// WithMetrics records every batch in the prometheus collectors.
func WithMetrics() Option {
	return func(h *Host) {
		h.metrics = true
	}
}

type Host struct {
	oracle    oracle.Oracle
	contract  Submitter
	store     store.Store
	builder   *batch.Builder
	prover    prover.Prover
	rules     ingest.Rule
	batchSize int
	events    EventPublisher
	sink      settlement.Sink
	logger    *logging.Logger
	metrics   bool
	saveRetry time.Duration
}

func New(o oracle.Oracle, c Submitter, s store.Store, opts ...Option) (*Host, error) {
	if s == nil {
		return nil, ErrNoStore
	}
	h := &Host{
		oracle:    o,
		contract:  c,
		store:     s,
		builder:   batch.NewBuilder(),
		prover:    prover.DigestProver{},
		rules:     ingest.Rules{},
		logger:    logging.Nop(),
		saveRetry: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Report describes one accepted batch.
type Report struct {
	BatchIndex  uint64
	OldRoot     common.Hash
	NewRoot     common.Hash
	Journal     *journal.Journal
	Attestation *prover.Attestation
	Stats       batch.Stats
	// Rejected holds orders refused by the ingestion rules.
	Rejected []error
	// Deferred holds orders over the batch size, in submission order.
	Deferred []utxo.Order
	LiveSet  int
	Duration time.Duration
}

// RunBatch matches orders against the live book as one batch. Nothing is
// persisted or published unless the contract accepts the journal.
func (h *Host) RunBatch(ctx context.Context, orders []utxo.Order) (*Report, error) {
	ctx = logging.WithBatchID(ctx, "")
	start := time.Now()

	rep, err := h.runBatch(ctx, orders)
	if err != nil {
		h.logger.Error(ctx, "batch failed", zap.Error(err))
		return nil, err
	}
	rep.Duration = time.Since(start)

	if h.metrics {
		metrics.ObserveBatch(rep.BatchIndex, rep.Stats, rep.LiveSet, rep.Duration.Seconds())
	}
	return rep, nil
}

func (h *Host) runBatch(ctx context.Context, orders []utxo.Order) (*Report, error) {
	st, err := h.oracle.State(ctx)
	if err != nil {
		h.observeError("oracle")
		return nil, fmt.Errorf("read oracle state: %w", err)
	}

	snap, err := h.store.Load(ctx)
	if err != nil {
		h.observeError("store")
		return nil, fmt.Errorf("load live set: %w", err)
	}
	book, err := snap.Book()
	if err != nil {
		h.observeError("store")
		return nil, err
	}
	if book.Root() != st.Root {
		h.observeError("store")
		return nil, fmt.Errorf("%w: stored %s, oracle %s", ErrRootDiverged, book.Root().Hex(), st.Root.Hex())
	}
	if snap.BatchIndex != st.BatchIndex && len(snap.UTXOs) > 0 {
		h.logger.Warn(ctx, "snapshot index differs from oracle",
			zap.Uint64("snapshot", snap.BatchIndex),
			zap.Uint64("oracle", st.BatchIndex),
		)
	}

	accepted, rejected := ingest.Admit(orders, h.rules)
	for _, r := range rejected {
		h.logger.Warn(ctx, "order rejected", zap.Error(r))
	}
	var deferred []utxo.Order
	if h.batchSize > 0 && len(accepted) > h.batchSize {
		deferred = accepted[h.batchSize:]
		accepted = accepted[:h.batchSize]
	}

	existing, err := book.ProveAll(book.IDs())
	if err != nil {
		h.observeError("prove")
		return nil, fmt.Errorf("prove live set: %w", err)
	}

	in := batch.Input{
		BatchIndex: st.BatchIndex,
		Root:       st.Root,
		Existing:   existing,
		Incoming:   accepted,
		Anchor:     st.Anchor,
	}
	out, err := h.builder.Build(ctx, in, book)
	if err != nil {
		h.observeError("build")
		return nil, err
	}

	att, err := h.attest(ctx, in, out.Journal)
	if err != nil {
		h.observeError("prove")
		return nil, err
	}
	j, err := att.Decode()
	if err != nil {
		h.observeError("prove")
		return nil, err
	}

	outcome, err := h.contract.Submit(j)
	if err != nil {
		h.observeError("submit")
		return nil, fmt.Errorf("submit batch %d: %w", j.BatchIndex, err)
	}

	h.logBatch(ctx, j, in.Root)

	snap = store.NewSnapshot(outcome.NextBatchIndex, outcome.Book)
	snap.Anchor = att.Digest
	if err := h.save(ctx, snap); err != nil {
		h.observeError("store")
		return nil, fmt.Errorf("save live set for accepted batch %d: %w", j.BatchIndex, err)
	}

	if err := h.publish(ctx, j, in.Root, outcome.Directives); err != nil {
		h.observeError("publish")
		return nil, err
	}

	return &Report{
		BatchIndex:  j.BatchIndex,
		OldRoot:     in.Root,
		NewRoot:     outcome.NewRoot,
		Journal:     j,
		Attestation: att,
		Stats:       out.Stats,
		Rejected:    rejected,
		Deferred:    deferred,
		LiveSet:     outcome.Book.Len(),
	}, nil
}

// save persists the live set of an accepted batch. The contract has already
// moved on, so a lost save leaves the store behind the oracle until the
// snapshot is written again; it is retried until saveRetry elapses.
func (h *Host) save(ctx context.Context, snap *store.Snapshot) error {
	if h.saveRetry <= 0 {
		return h.store.Save(ctx, snap)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = h.saveRetry
	b.Reset()
	return backoff.RetryNotify(func() error {
		return h.store.Save(ctx, snap)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		h.logger.Warn(ctx, "save live set failed, retrying",
			zap.Uint64("batch", snap.BatchIndex),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

func (h *Host) attest(ctx context.Context, in batch.Input, j *journal.Journal) (*prover.Attestation, error) {
	inBytes, err := in.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	jBytes, err := j.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode journal: %w", err)
	}
	att, err := h.prover.Prove(ctx, inBytes, jBytes)
	if err != nil {
		return nil, fmt.Errorf("prove batch %d: %w", in.BatchIndex, err)
	}
	return att, nil
}

func (h *Host) publish(ctx context.Context, j *journal.Journal, oldRoot common.Hash, ds []settlement.Directive) error {
	if h.events != nil {
		ev, err := stream.NewBatchEvent(j, oldRoot)
		if err != nil {
			return err
		}
		if err := h.events.Publish(ctx, ev); err != nil {
			return err
		}
	}
	if h.sink != nil && len(ds) > 0 {
		if err := h.sink.Publish(ctx, ds); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) logBatch(ctx context.Context, j *journal.Journal, oldRoot common.Hash) {
	h.logger.Info(ctx, "batch accepted",
		zap.Uint64("batch", j.BatchIndex),
		zap.String("old_root", oldRoot.Hex()),
		zap.String("new_root", j.NewUTXOMerkleRoot.Hex()),
		zap.Int("fills", len(j.Fills)),
		zap.Int("new_utxos", len(j.NewUTXOs)),
		zap.Int("consumed", len(j.ConsumedUTXOIDs)),
	)
	for i, f := range j.Fills {
		h.logger.Info(ctx, "fill",
			zap.Int("seq", i),
			zap.String("maker", f.Maker.Hex()),
			zap.String("taker", f.Taker.Hex()),
			zap.Uint64("price", f.Price),
			zap.Uint64("quantity", f.Quantity),
			zap.Bool("maker_is_seller", f.MakerIsSeller),
		)
	}
}

func (h *Host) observeError(stage string) {
	if h.metrics {
		metrics.ObserveError(stage)
	}
}
