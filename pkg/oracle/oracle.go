// Package oracle reports the accepted settlement state a batch must start
// from.
package oracle

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/verifier"
)

type State struct {
	Anchor     []byte
	BatchIndex uint64
	Root       common.Hash
}

type Oracle interface {
	State(ctx context.Context) (State, error)
}

// ContractOracle reads the state straight from an in-process contract.
type ContractOracle struct {
	contract *verifier.Contract
}

var _ Oracle = (*ContractOracle)(nil)

func NewContractOracle(c *verifier.Contract) *ContractOracle {
	return &ContractOracle{contract: c}
}

func (o *ContractOracle) State(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	st := o.contract.State()
	return State{
		Anchor:     st.Anchor.Bytes(),
		BatchIndex: st.BatchIndex,
		Root:       st.Root,
	}, nil
}
