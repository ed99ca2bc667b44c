package verifier

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x0a00000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0b00000000000000000000000000000000000002")
)

type fixture struct {
	book  *ledger.Book
	sell  utxo.UTXO
	idle  utxo.UTXO
	out   *batch.Output
	index uint64
}

// newFixture builds batch 7: bob buys 3 of alice's resting 5 @ 100.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	sell := utxo.New(utxo.Order{Side: utxo.Sell, Price: 100, Quantity: 5, Owner: alice, Nonce: 1, ExpiryBatch: 40})
	idle := utxo.New(utxo.Order{Side: utxo.Sell, Price: 150, Quantity: 2, Owner: alice, Nonce: 2, ExpiryBatch: 40})
	book, err := ledger.FromRecords([]utxo.UTXO{sell, idle})
	require.NoError(t, err)

	existing, err := book.ProveAll([]common.Hash{sell.ID})
	require.NoError(t, err)
	in := batch.Input{
		BatchIndex: 7,
		Root:       book.Root(),
		Existing:   existing,
		Incoming: []utxo.Order{
			{Side: utxo.Buy, Price: 120, Quantity: 3, Owner: bob, Nonce: 3, ExpiryBatch: 40},
		},
	}
	out, err := batch.NewBuilder().Build(context.Background(), in, book)
	require.NoError(t, err)
	require.Len(t, out.Journal.Fills, 1)
	return &fixture{book: book, sell: sell, idle: idle, out: out, index: 7}
}

// clone copies the journal so tests can tamper with it.
func (f *fixture) clone(t *testing.T) *journal.Journal {
	t.Helper()
	b, err := f.out.Journal.Encode()
	require.NoError(t, err)
	j, err := journal.Decode(b)
	require.NoError(t, err)
	return j
}

// reroot makes the journal's root match its (tampered) transition.
func (f *fixture) reroot(t *testing.T, j *journal.Journal) {
	t.Helper()
	root, err := f.book.Clone().Apply(j.ConsumedUTXOIDs, j.NewUTXOs)
	require.NoError(t, err)
	j.NewUTXOMerkleRoot = root
}

func TestCheckAccepts(t *testing.T) {
	f := newFixture(t)

	res, err := Check(f.out.Journal, f.index, f.book.Root(), f.book)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), res.NextBatchIndex)
	assert.Equal(t, f.out.Book.Root(), res.NewRoot)
	require.Len(t, res.Directives, 1)
	assert.Equal(t, alice, res.Directives[0].Base.From)

	// prior is untouched
	assert.True(t, f.book.Has(f.sell.ID))
}

func TestCheckStaleOrReplayed(t *testing.T) {
	f := newFixture(t)
	_, err := Check(f.out.Journal, f.index+1, f.book.Root(), f.book)
	require.ErrorIs(t, err, ErrStaleOrReplayedBatch)
}

func TestCheckRootMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := Check(f.out.Journal, f.index, common.Hash{9}, f.book)
	require.ErrorIs(t, err, ErrRootMismatch)

	j := f.clone(t)
	j.NewUTXOMerkleRoot = common.Hash{1}
	_, err = Check(j, f.index, f.book.Root(), f.book)
	require.ErrorIs(t, err, ErrRootMismatch)

	j = f.clone(t)
	j.NewUTXOs[0].Order.Quantity++
	_, err = Check(j, f.index, f.book.Root(), f.book)
	require.ErrorIs(t, err, ErrRootMismatch)
}

func TestCheckInconsistentConsumption(t *testing.T) {
	f := newFixture(t)

	j := f.clone(t)
	j.ConsumedUTXOIDs = append(j.ConsumedUTXOIDs, common.Hash{0xde, 0xad})
	_, err := Check(j, f.index, f.book.Root(), f.book)
	require.ErrorIs(t, err, ErrInconsistentConsumption)

	j = f.clone(t)
	j.ConsumedUTXOIDs = append(j.ConsumedUTXOIDs, j.ConsumedUTXOIDs[0])
	_, err = Check(j, f.index, f.book.Root(), f.book)
	require.ErrorIs(t, err, ErrInconsistentConsumption)
}

func TestCheckFillInconsistent(t *testing.T) {
	f := newFixture(t)

	cases := map[string]func(j *journal.Journal){
		"zero quantity": func(j *journal.Journal) { j.Fills[0].Quantity = 0 },
		"zero price":    func(j *journal.Journal) { j.Fills[0].Price = 0 },
		"self trade":    func(j *journal.Journal) { j.Fills[0].Taker = j.Fills[0].Maker },
		"not maker price": func(j *journal.Journal) {
			j.Fills[0].Price = 110
		},
		"over conservation": func(j *journal.Journal) { j.Fills[0].Quantity = 4 },
		"wrong side":        func(j *journal.Journal) { j.Fills[0].MakerIsSeller = false },
		"live but not consumed": func(j *journal.Journal) {
			j.Fills = append(j.Fills, journal.Fill{
				MakerUTXOID: f.idle.ID, TakerUTXOID: j.Fills[0].TakerUTXOID,
				Price: 150, Quantity: 1, Maker: alice, Taker: bob, MakerIsSeller: true,
			})
		},
	}
	for name, tamper := range cases {
		t.Run(name, func(t *testing.T) {
			j := f.clone(t)
			tamper(j)
			_, err := Check(j, f.index, f.book.Root(), f.book)
			require.ErrorIs(t, err, ErrFillInconsistentWithUTXOSet)
		})
	}

	t.Run("consumed without fill", func(t *testing.T) {
		j := f.clone(t)
		j.ConsumedUTXOIDs = append(j.ConsumedUTXOIDs, f.idle.ID)
		f.reroot(t, j)
		_, err := Check(j, f.index, f.book.Root(), f.book)
		require.ErrorIs(t, err, ErrFillInconsistentWithUTXOSet)
	})

	t.Run("remainder from another batch", func(t *testing.T) {
		j := f.clone(t)
		j.BatchIndex = 40
		j.ConsumedUTXOIDs = append(j.ConsumedUTXOIDs, f.idle.ID)
		f.reroot(t, j)
		_, err := Check(j, 40, f.book.Root(), f.book)
		require.ErrorIs(t, err, ErrFillInconsistentWithUTXOSet)
	})
}

func TestCheckAcceptsExpiryPrune(t *testing.T) {
	stale := utxo.New(utxo.Order{Side: utxo.Buy, Price: 10, Quantity: 1, Owner: bob, Nonce: 1, ExpiryBatch: 3})
	book, err := ledger.FromRecords([]utxo.UTXO{stale})
	require.NoError(t, err)
	existing, err := book.ProveAll([]common.Hash{stale.ID})
	require.NoError(t, err)

	out, err := batch.NewBuilder().Build(context.Background(), batch.Input{BatchIndex: 3, Root: book.Root(), Existing: existing}, book)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{stale.ID}, out.Journal.ConsumedUTXOIDs)

	res, err := Check(out.Journal, 3, book.Root(), book)
	require.NoError(t, err)
	assert.Empty(t, res.Directives)
	assert.Equal(t, 0, res.Book.Len())
}

func TestContractAdvancesOnce(t *testing.T) {
	f := newFixture(t)
	c := NewContract(f.index, f.book)

	var accepted []uint64
	c.OnAccept(func(o *Outcome) { accepted = append(accepted, o.NextBatchIndex) })

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(f.out.Journal)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrStaleOrReplayedBatch)
	}
	assert.Equal(t, []uint64{8}, accepted)

	st := c.State()
	assert.Equal(t, uint64(8), st.BatchIndex)
	assert.Equal(t, f.out.Book.Root(), st.Root)
	digest, err := f.out.Journal.Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, st.Anchor)
	assert.Equal(t, st.Root, c.Book().Root())
}

func TestRestoreContract(t *testing.T) {
	f := newFixture(t)
	anchor := common.HexToHash("0x01")

	_, err := RestoreContract(State{BatchIndex: 7, Root: common.HexToHash("0x02")}, f.book)
	require.ErrorIs(t, err, ErrRootMismatch)

	c, err := RestoreContract(State{BatchIndex: 7, Root: f.book.Root(), Anchor: anchor}, f.book)
	require.NoError(t, err)
	assert.Equal(t, anchor, c.State().Anchor)

	j := f.clone(t)
	j.Anchor = anchor.Bytes()
	_, err = c.Submit(j)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), c.State().BatchIndex)
}

func TestContractRejectsWrongAnchor(t *testing.T) {
	f := newFixture(t)

	t.Run("forged anchor at genesis", func(t *testing.T) {
		c := NewContract(f.index, f.book)
		j := f.clone(t)
		j.Anchor = []byte("forged-anchor")
		_, err := c.Submit(j)
		require.ErrorIs(t, err, ErrAnchorMismatch)
		assert.Equal(t, f.index, c.State().BatchIndex)
	})

	t.Run("empty anchor after genesis", func(t *testing.T) {
		st := State{BatchIndex: f.index, Root: f.book.Root(), Anchor: common.HexToHash("0x01")}
		c, err := RestoreContract(st, f.book)
		require.NoError(t, err)
		_, err = c.Submit(f.out.Journal)
		require.ErrorIs(t, err, ErrAnchorMismatch)
		assert.Equal(t, st, c.State())
	})

	t.Run("zero anchor at genesis", func(t *testing.T) {
		c := NewContract(f.index, f.book)
		j := f.clone(t)
		j.Anchor = common.Hash{}.Bytes()
		_, err := c.Submit(j)
		require.NoError(t, err)
	})
}
