package journal

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/stretchr/testify/require"
)

func sampleJournal() *Journal {
	a := common.HexToAddress("0x853e3dC3005b83db47B21d6532F3c5500E970d8F")
	b := common.HexToAddress("0xf841c5bba73Fa25AE775B0a3a2D816d06B044070")
	sell := utxo.New(utxo.Order{Side: utxo.Sell, Price: 99, Quantity: 75, Owner: b, Nonce: 3, ExpiryBatch: 100})
	buy := utxo.New(utxo.Order{Side: utxo.Buy, Price: 105, Quantity: 100, Owner: a, Nonce: 1, ExpiryBatch: 100})
	_, rem, _ := utxo.Split(buy, 75, 4, 1)

	return &Journal{
		BatchIndex: 4,
		Fills: []Fill{{
			MakerUTXOID: buy.ID, TakerUTXOID: sell.ID,
			Price: 105, Quantity: 75, Maker: a, Taker: b,
		}},
		NewUTXOs:          []utxo.UTXO{*rem},
		ConsumedUTXOIDs:   []common.Hash{sell.ID},
		NewUTXOMerkleRoot: common.HexToHash("0x01"),
		Anchor:            []byte("block:123"),
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	j := sampleJournal()
	b, err := j.Encode()
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, j, decoded)

	again, err := decoded.Encode()
	require.NoError(t, err)
	require.Equal(t, b, again)
}

func TestEncodingIsDeterministic(t *testing.T) {
	d1, err := sampleJournal().Digest()
	require.NoError(t, err)
	d2, err := sampleJournal().Digest()
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	j := sampleJournal()
	j.Fills[0].MakerIsSeller = true
	d3, err := j.Digest()
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	require.Error(t, err)
}

func TestFilledQuantity(t *testing.T) {
	j := sampleJournal()
	filled := j.FilledQuantity()
	require.Equal(t, uint64(75), filled[j.Fills[0].MakerUTXOID])
	require.Equal(t, uint64(75), filled[j.Fills[0].TakerUTXOID])
	require.Equal(t, uint64(75), j.Volume())
}
