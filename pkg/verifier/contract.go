package verifier

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
)

// State is what the settlement side publishes about itself.
type State struct {
	BatchIndex uint64      `json:"batch_index"`
	Root       common.Hash `json:"root"`
	// Anchor is the digest of the last accepted journal, zero before the
	// first batch.
	Anchor common.Hash `json:"anchor"`
}

// Contract holds the accepted state and advances it one journal at a
// time. Of several journals submitted for the same index, the first valid
// one wins and the rest are stale.
type Contract struct {
	mu       sync.Mutex
	state    State
	book     *ledger.Book
	onAccept func(*Outcome)
}

func NewContract(batchIndex uint64, book *ledger.Book) *Contract {
	return &Contract{
		state: State{BatchIndex: batchIndex, Root: book.Root()},
		book:  book.Clone(),
	}
}

// RestoreContract resumes a contract from a persisted state. book must
// hash to st.Root.
func RestoreContract(st State, book *ledger.Book) (*Contract, error) {
	if book.Root() != st.Root {
		return nil, fmt.Errorf("%w: book %s, state %s", ErrRootMismatch, book.Root().Hex(), st.Root.Hex())
	}
	return &Contract{state: st, book: book.Clone()}, nil
}

// OnAccept registers fn to run, under the contract lock, for every
// accepted journal.
func (c *Contract) OnAccept(fn func(*Outcome)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAccept = fn
}

func (c *Contract) Submit(j *journal.Journal) (*Outcome, error) {
	digest, err := j.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest journal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := Check(j, c.state.BatchIndex, c.state.Root, c.book)
	if err != nil {
		return nil, err
	}
	if !anchorMatches(j.Anchor, c.state.Anchor) {
		return nil, fmt.Errorf("%w: journal %x, state %s", ErrAnchorMismatch, j.Anchor, c.state.Anchor.Hex())
	}
	c.state = State{BatchIndex: out.NextBatchIndex, Root: out.NewRoot, Anchor: digest}
	c.book = out.Book
	if c.onAccept != nil {
		c.onAccept(out)
	}
	return out, nil
}

// anchorMatches reports whether a journal commits to the accepted anchor.
// Before the first batch the anchor is zero and may also be left empty.
func anchorMatches(got []byte, want common.Hash) bool {
	if len(got) == 0 {
		return want == (common.Hash{})
	}
	return bytes.Equal(got, want.Bytes())
}

func (c *Contract) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Book returns a copy of the replica book.
func (c *Contract) Book() *ledger.Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.book.Clone()
}
