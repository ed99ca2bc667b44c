package merkle

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Set is an authenticated set of live ids summarised by a single root.
// Implementations must produce the same root for the same set of ids
// regardless of the order in which they were applied.
type Set interface {
	Root() common.Hash
	Has(id common.Hash) bool
	Len() int
	IDs() []common.Hash
	Prove(id common.Hash) (*Proof, error)
	Apply(consumed, inserted []common.Hash) (common.Hash, error)
	Clone() Set
}

// MemSet keeps the whole live set in memory as a sorted id slice. The
// tree is rebuilt lazily after each mutation.
type MemSet struct {
	mu   sync.Mutex
	ids  []common.Hash
	tree *node
}

var _ Set = (*MemSet)(nil)

func NewMemSet(ids ...common.Hash) (*MemSet, error) {
	s := &MemSet{}
	if _, err := s.Apply(nil, ids); err != nil {
		return nil, err
	}
	return s, nil
}

func compareHash(a, b common.Hash) int {
	return bytes.Compare(a[:], b[:])
}

func (s *MemSet) Root() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rootLocked()
}

func (s *MemSet) Has(id common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.indexLocked(id)
	return ok
}

func (s *MemSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}

// IDs returns the live ids in leaf order.
func (s *MemSet) IDs() []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.ids)
}

func (s *MemSet) Prove(id common.Hash) (*Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexLocked(id)
	if !ok {
		return nil, fmt.Errorf("prove %s: %w", id.Hex(), ErrNotFound)
	}
	return &Proof{
		Index: uint64(idx),
		Total: uint64(len(s.ids)),
		Aunts: s.treeLocked().aunts(idx, len(s.ids)),
	}, nil
}

// Apply removes consumed and inserts inserted. Every argument is checked
// before anything is changed, so a failed Apply leaves the set as it was.
func (s *MemSet) Apply(consumed, inserted []common.Hash) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removing := make(map[common.Hash]struct{}, len(consumed))
	for _, id := range consumed {
		if _, dup := removing[id]; dup {
			return common.Hash{}, fmt.Errorf("remove %s twice: %w", id.Hex(), ErrInvalidRemoval)
		}
		if _, ok := s.indexLocked(id); !ok {
			return common.Hash{}, fmt.Errorf("remove %s: %w", id.Hex(), ErrInvalidRemoval)
		}
		removing[id] = struct{}{}
	}

	adding := make(map[common.Hash]struct{}, len(inserted))
	for _, id := range inserted {
		if _, dup := adding[id]; dup {
			return common.Hash{}, fmt.Errorf("insert %s twice: %w", id.Hex(), ErrDuplicateInsertion)
		}
		if _, ok := removing[id]; ok {
			return common.Hash{}, fmt.Errorf("re-insert consumed %s: %w", id.Hex(), ErrDuplicateInsertion)
		}
		if _, ok := s.indexLocked(id); ok {
			return common.Hash{}, fmt.Errorf("insert %s: %w", id.Hex(), ErrDuplicateInsertion)
		}
		adding[id] = struct{}{}
	}

	if len(removing) == 0 && len(adding) == 0 {
		return s.rootLocked(), nil
	}

	next := make([]common.Hash, 0, len(s.ids)-len(removing)+len(adding))
	for _, id := range s.ids {
		if _, ok := removing[id]; !ok {
			next = append(next, id)
		}
	}
	next = append(next, inserted...)
	slices.SortFunc(next, compareHash)

	s.ids = next
	s.tree = nil
	return s.rootLocked(), nil
}

func (s *MemSet) Clone() Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &MemSet{ids: slices.Clone(s.ids), tree: s.tree}
}

func (s *MemSet) indexLocked(id common.Hash) (int, bool) {
	return slices.BinarySearchFunc(s.ids, id, compareHash)
}

func (s *MemSet) rootLocked() common.Hash {
	if len(s.ids) == 0 {
		return EmptyRoot
	}
	return s.treeLocked().hash
}

func (s *MemSet) treeLocked() *node {
	if s.tree == nil {
		s.tree = buildTree(s.ids)
	}
	return s.tree
}
