package batch

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/merkle"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sellerA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	buyerB  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func restingSell(t *testing.T, nonce, expiry uint64) (*ledger.Book, utxo.UTXO) {
	t.Helper()
	s1 := utxo.New(utxo.Order{Side: utxo.Sell, Price: 100, Quantity: 5, Owner: sellerA, Nonce: nonce, ExpiryBatch: expiry})
	filler := utxo.New(utxo.Order{Side: utxo.Sell, Price: 200, Quantity: 1, Owner: sellerA, Nonce: nonce + 100, ExpiryBatch: expiry})
	book, err := ledger.FromRecords([]utxo.UTXO{s1, filler})
	require.NoError(t, err)
	return book, s1
}

func inputFor(t *testing.T, book *ledger.Book, batch uint64, ids []common.Hash, incoming ...utxo.Order) Input {
	t.Helper()
	existing, err := book.ProveAll(ids)
	require.NoError(t, err)
	return Input{
		BatchIndex: batch,
		Root:       book.Root(),
		Existing:   existing,
		Incoming:   incoming,
		Anchor:     []byte("anchor"),
	}
}

func TestBuildFullFill(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	oldRoot := book.Root()
	buy := utxo.Order{Side: utxo.Buy, Price: 100, Quantity: 5, Owner: buyerB, Nonce: 2, ExpiryBatch: 50}

	out, err := NewBuilder().Build(context.Background(), inputFor(t, book, 4, []common.Hash{s1.ID}, buy), book)
	require.NoError(t, err)

	j := out.Journal
	require.Len(t, j.Fills, 1)
	assert.Equal(t, uint64(100), j.Fills[0].Price)
	assert.Equal(t, uint64(5), j.Fills[0].Quantity)
	assert.True(t, j.Fills[0].MakerIsSeller)
	assert.Equal(t, []common.Hash{s1.ID}, j.ConsumedUTXOIDs)
	assert.Empty(t, j.NewUTXOs)
	assert.Equal(t, uint64(5), out.NextBatchIndex)
	assert.NotEqual(t, oldRoot, j.NewUTXOMerkleRoot)
	assert.Equal(t, j.NewUTXOMerkleRoot, out.Book.Root())
	assert.Equal(t, []byte("anchor"), j.Anchor)

	// caller's book is untouched
	assert.Equal(t, oldRoot, book.Root())
	assert.True(t, book.Has(s1.ID))
	assert.False(t, out.Book.Has(s1.ID))
	assert.False(t, merkle.Verify(out.Book.Root(), s1.ID, &merkle.Proof{Total: 1}))
}

func TestBuildCreatedProvable(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	buy := utxo.Order{Side: utxo.Buy, Price: 100, Quantity: 2, Owner: buyerB, Nonce: 2, ExpiryBatch: 50}
	other := utxo.Order{Side: utxo.Buy, Price: 90, Quantity: 1, Owner: buyerB, Nonce: 3, ExpiryBatch: 50}

	out, err := NewBuilder().Build(context.Background(), inputFor(t, book, 1, []common.Hash{s1.ID}, buy, other), book)
	require.NoError(t, err)
	require.Len(t, out.Journal.NewUTXOs, 2)

	for _, u := range out.Journal.NewUTXOs {
		p, err := out.Book.Prove(u.ID)
		require.NoError(t, err)
		assert.True(t, merkle.Verify(out.Book.Root(), u.ID, p))
	}
	for _, id := range out.Journal.ConsumedUTXOIDs {
		_, err := out.Book.Prove(id)
		assert.ErrorIs(t, err, merkle.ErrNotFound)
	}
}

func TestBuildStaleRoot(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	in := inputFor(t, book, 1, []common.Hash{s1.ID})
	in.Root = common.Hash{1}

	_, err := NewBuilder().Build(context.Background(), in, book)
	require.ErrorIs(t, err, ErrStaleRoot)
}

func TestBuildProofInvalid(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)

	t.Run("tampered record", func(t *testing.T) {
		in := inputFor(t, book, 1, []common.Hash{s1.ID})
		in.Existing[0].UTXO.Order.Quantity = 50
		_, err := NewBuilder().Build(context.Background(), in, book)
		require.ErrorIs(t, err, ErrProofInvalid)
	})

	t.Run("wrong witness", func(t *testing.T) {
		in := inputFor(t, book, 1, []common.Hash{s1.ID})
		in.Existing[0].Proof.Index ^= 1
		_, err := NewBuilder().Build(context.Background(), in, book)
		require.ErrorIs(t, err, ErrProofInvalid)
	})

	t.Run("not in set", func(t *testing.T) {
		in := inputFor(t, book, 1, []common.Hash{s1.ID})
		stranger := utxo.New(utxo.Order{Side: utxo.Buy, Price: 1, Quantity: 1, Owner: buyerB, Nonce: 9, ExpiryBatch: 50})
		in.Existing = append(in.Existing, utxo.WithProof{UTXO: stranger, Proof: in.Existing[0].Proof})
		_, err := NewBuilder().Build(context.Background(), in, book)
		require.ErrorIs(t, err, ErrProofInvalid)
	})

	t.Run("duplicate", func(t *testing.T) {
		in := inputFor(t, book, 1, []common.Hash{s1.ID, s1.ID})
		_, err := NewBuilder().Build(context.Background(), in, book)
		require.ErrorIs(t, err, ErrProofInvalid)
	})
}

func TestBuildRejectPolicy(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	bad := utxo.Order{Side: utxo.Buy, Price: 100, Quantity: 0, Owner: buyerB, Nonce: 2, ExpiryBatch: 50}
	good := utxo.Order{Side: utxo.Buy, Price: 100, Quantity: 1, Owner: buyerB, Nonce: 3, ExpiryBatch: 50}
	in := inputFor(t, book, 1, []common.Hash{s1.ID}, bad, good, good)

	out, err := NewBuilder().Build(context.Background(), in, book)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Stats.Rejected)
	assert.Len(t, out.Journal.Fills, 1)

	_, err = NewBuilder(WithRejectPolicy(RejectAbort)).Build(context.Background(), in, book)
	require.ErrorIs(t, err, ErrInvalidOrder)
	require.ErrorIs(t, err, utxo.ErrInvalidOrder)
}

func TestBuildRejectsResubmittedLiveOrder(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	in := inputFor(t, book, 1, nil, s1.Order)

	_, err := NewBuilder(WithRejectPolicy(RejectAbort)).Build(context.Background(), in, book)
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestBuildExpiredPruned(t *testing.T) {
	book, s1 := restingSell(t, 1, 3)
	buy := utxo.Order{Side: utxo.Buy, Price: 100, Quantity: 5, Owner: buyerB, Nonce: 2, ExpiryBatch: 50}

	out, err := NewBuilder().Build(context.Background(), inputFor(t, book, 3, []common.Hash{s1.ID}, buy), book)
	require.NoError(t, err)
	assert.Empty(t, out.Journal.Fills)
	assert.Equal(t, []common.Hash{s1.ID}, out.Journal.ConsumedUTXOIDs)
	assert.Equal(t, 1, out.Stats.Expired)
}

func TestBuildEmptyBatch(t *testing.T) {
	book, _ := restingSell(t, 1, 50)
	out, err := NewBuilder().Build(context.Background(), inputFor(t, book, 8, nil), book)
	require.NoError(t, err)
	assert.Empty(t, out.Journal.Fills)
	assert.Equal(t, book.Root(), out.Journal.NewUTXOMerkleRoot)
	assert.Equal(t, uint64(9), out.NextBatchIndex)
}

func TestBuildDeterministic(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	buy := utxo.Order{Side: utxo.Buy, Price: 110, Quantity: 3, Owner: buyerB, Nonce: 2, ExpiryBatch: 50}
	in := inputFor(t, book, 2, []common.Hash{s1.ID}, buy)

	a, err := NewBuilder().Build(context.Background(), in, book)
	require.NoError(t, err)
	b, err := NewBuilder().Build(context.Background(), in, book)
	require.NoError(t, err)

	ea, err := a.Journal.Encode()
	require.NoError(t, err)
	eb, err := b.Journal.Encode()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(ea, eb))
	assert.Equal(t, a.Book.Root(), b.Book.Root())
}

func TestInputEncodeRoundTrip(t *testing.T) {
	book, s1 := restingSell(t, 1, 50)
	buy := utxo.Order{Side: utxo.Buy, Price: 110, Quantity: 3, Owner: buyerB, Nonce: 2, ExpiryBatch: 50}
	in := inputFor(t, book, 2, []common.Hash{s1.ID}, buy)

	enc, err := in.Encode()
	require.NoError(t, err)
	dec, err := DecodeInput(enc)
	require.NoError(t, err)
	assert.Equal(t, in.Root, dec.Root)
	assert.Equal(t, in.Incoming, dec.Incoming)
	assert.Equal(t, in.Existing[0].UTXO, dec.Existing[0].UTXO)
	assert.True(t, merkle.Verify(dec.Root, s1.ID, &dec.Existing[0].Proof))
}

func TestParseRejectPolicy(t *testing.T) {
	p, err := ParseRejectPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RejectDrop, p)
	p, err = ParseRejectPolicy("ABORT")
	require.NoError(t, err)
	assert.Equal(t, RejectAbort, p)
	_, err = ParseRejectPolicy("ignore")
	require.ErrorIs(t, err, ErrUnknownPolicy)
}
