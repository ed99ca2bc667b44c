package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJournal(t *testing.T) {
	maker := common.HexToAddress("0x853e3dC3005b83db47B21d6532F3c5500E970d8F")
	taker := common.HexToAddress("0xf841c5bba73Fa25AE775B0a3a2D816d06B044070")
	j := &journal.Journal{
		BatchIndex: 5,
		Fills: []journal.Fill{
			{MakerUTXOID: common.Hash{1}, TakerUTXOID: common.Hash{2}, Price: 100, Quantity: 3, Maker: maker, Taker: taker, MakerIsSeller: true},
			{MakerUTXOID: common.Hash{1}, TakerUTXOID: common.Hash{3}, Price: 100, Quantity: 1 << 63, Maker: maker, Taker: taker, MakerIsSeller: true},
		},
		ConsumedUTXOIDs:   []common.Hash{{1}},
		NewUTXOMerkleRoot: common.Hash{9},
	}

	b, fills := FromJournal(j, common.Hash{8}, common.Hash{7})
	assert.Equal(t, uint64(5), b.BatchIndex)
	assert.Equal(t, common.Hash{8}.Hex(), b.OldRoot)
	assert.Equal(t, common.Hash{9}.Hex(), b.NewRoot)
	assert.Equal(t, 2, b.FillCount)
	assert.Equal(t, 1, b.ConsumedCount)
	assert.Equal(t, "9223372036854775811", b.Volume.String())

	require.Len(t, fills, 2)
	assert.Equal(t, 1, fills[1].Seq)
	assert.Equal(t, maker.Hex(), fills[0].Maker)
	assert.Equal(t, "9223372036854775808", fills[1].Quantity.String())
}
