package batch

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

// Input is everything one batch is built from. It is gathered in full
// before the batch starts.
type Input struct {
	BatchIndex uint64           `json:"batch_index"`
	Root       common.Hash      `json:"root"`
	Existing   []utxo.WithProof `json:"existing"`
	Incoming   []utxo.Order     `json:"incoming"`
	Anchor     []byte           `json:"anchor"`
}

// Encode returns the canonical RLP encoding handed to proof production
// next to the journal.
func (in *Input) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(in)
}

func DecodeInput(b []byte) (*Input, error) {
	in := &Input{}
	if err := rlp.DecodeBytes(b, in); err != nil {
		return nil, fmt.Errorf("decode batch input: %w", err)
	}
	return in, nil
}
