package journal

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// Fill is one matched quantity traded at one price. The UTXO ids are the
// ids the two orders had when the batch started.
type Fill struct {
	MakerUTXOID   common.Hash    `json:"maker_utxo_id"`
	TakerUTXOID   common.Hash    `json:"taker_utxo_id"`
	Price         uint64         `json:"price"`
	Quantity      uint64         `json:"quantity"`
	Maker         common.Address `json:"maker"`
	Taker         common.Address `json:"taker"`
	MakerIsSeller bool           `json:"maker_is_seller"`
}

// Journal is the transcript of one batch. Field order is part of the
// attested encoding and must not change.
type Journal struct {
	BatchIndex        uint64        `json:"batch_index"`
	Fills             []Fill        `json:"fills"`
	NewUTXOs          []utxo.UTXO   `json:"new_utxos"`
	ConsumedUTXOIDs   []common.Hash `json:"consumed_utxo_ids"`
	NewUTXOMerkleRoot common.Hash   `json:"new_utxo_merkle_root"`
	Anchor            []byte        `json:"anchor"`
}

// Encode returns the canonical RLP encoding of the journal.
func (j *Journal) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(j)
}

func Decode(b []byte) (*Journal, error) {
	j := &Journal{}
	if err := rlp.DecodeBytes(b, j); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	return j, nil
}

// Digest is the sha256 of the canonical encoding.
func (j *Journal) Digest() (common.Hash, error) {
	b, err := j.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(sha256.Sum256(b)), nil
}

// FilledQuantity sums the traded quantity per referenced UTXO id.
func (j *Journal) FilledQuantity() map[common.Hash]uint64 {
	out := make(map[common.Hash]uint64)
	for _, f := range j.Fills {
		out[f.MakerUTXOID] += f.Quantity
		out[f.TakerUTXOID] += f.Quantity
	}
	return out
}

// Volume is the total base quantity traded in the batch.
func (j *Journal) Volume() uint64 {
	var v uint64
	for _, f := range j.Fills {
		v += f.Quantity
	}
	return v
}
