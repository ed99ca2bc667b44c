package merkle

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testID(i uint64) common.Hash {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return common.Hash(sha256.Sum256(b[:]))
}

func testIDs(n int) []common.Hash {
	ids := make([]common.Hash, n)
	for i := range ids {
		ids[i] = testID(uint64(i))
	}
	return ids
}

func TestEmptySetRoot(t *testing.T) {
	s, err := NewMemSet()
	require.NoError(t, err)
	require.Equal(t, EmptyRoot, s.Root())
	require.Equal(t, common.Hash{}, s.Root())

	_, err = s.Prove(testID(1))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProveAndVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13, 100} {
		ids := testIDs(n)
		s, err := NewMemSet(ids...)
		require.NoError(t, err)
		root := s.Root()

		for _, id := range ids {
			proof, err := s.Prove(id)
			require.NoError(t, err)
			require.True(t, Verify(root, id, proof), "n=%d id=%s", n, id.Hex())

			// another id cannot reuse the witness
			require.False(t, Verify(root, testID(uint64(n+1)), proof))

			if n > 1 {
				wrongIndex := *proof
				wrongIndex.Index = (proof.Index + 1) % proof.Total
				require.False(t, Verify(root, id, &wrongIndex))

				short := *proof
				short.Aunts = proof.Aunts[:len(proof.Aunts)-1]
				require.False(t, Verify(root, id, &short))
			}

			long := *proof
			long.Aunts = append(append([]common.Hash{}, proof.Aunts...), testID(999))
			require.False(t, Verify(root, id, &long))

			mutated := root
			mutated[0] ^= 0xff
			require.False(t, Verify(mutated, id, proof))
		}
	}
}

func TestVerifyRejectsDegenerateProofs(t *testing.T) {
	id := testID(7)
	require.False(t, Verify(EmptyRoot, id, &Proof{Index: 0, Total: 1}))
	require.False(t, Verify(leafHash(id), id, nil))
	require.False(t, Verify(leafHash(id), id, &Proof{Index: 1, Total: 1}))
	require.False(t, Verify(leafHash(id), id, &Proof{Index: 0, Total: 0}))
	require.True(t, Verify(leafHash(id), id, &Proof{Index: 0, Total: 1}))
}

func TestApplyRejectsInvalidRemoval(t *testing.T) {
	s, err := NewMemSet(testIDs(4)...)
	require.NoError(t, err)
	before := s.Root()

	_, err = s.Apply([]common.Hash{testID(0), testID(42)}, []common.Hash{testID(50)})
	require.ErrorIs(t, err, ErrInvalidRemoval)
	require.Equal(t, before, s.Root())
	require.Equal(t, 4, s.Len())

	_, err = s.Apply([]common.Hash{testID(1), testID(1)}, nil)
	require.ErrorIs(t, err, ErrInvalidRemoval)
	require.Equal(t, before, s.Root())
}

func TestApplyRejectsDuplicateInsertion(t *testing.T) {
	s, err := NewMemSet(testIDs(4)...)
	require.NoError(t, err)
	before := s.Root()

	_, err = s.Apply(nil, []common.Hash{testID(3)})
	require.ErrorIs(t, err, ErrDuplicateInsertion)

	_, err = s.Apply(nil, []common.Hash{testID(9), testID(9)})
	require.ErrorIs(t, err, ErrDuplicateInsertion)

	_, err = s.Apply([]common.Hash{testID(2)}, []common.Hash{testID(2)})
	require.ErrorIs(t, err, ErrDuplicateInsertion)
	require.True(t, errors.Is(err, ErrDuplicateInsertion))

	require.Equal(t, before, s.Root())
}

func TestApplyIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		ids := testIDs(n)
		perm := rapid.Permutation(ids).Draw(t, "perm")

		a, err := NewMemSet(ids...)
		if err != nil {
			t.Fatalf("build a: %v", err)
		}
		b, err := NewMemSet(perm...)
		if err != nil {
			t.Fatalf("build b: %v", err)
		}
		if a.Root() != b.Root() {
			t.Fatalf("roots differ for the same set")
		}

		k := rapid.IntRange(0, n).Draw(t, "removed")
		extra := []common.Hash{testID(1000), testID(1001)}
		rootA, err := a.Apply(ids[:k], extra)
		if err != nil {
			t.Fatalf("apply a: %v", err)
		}
		removeB := rapid.Permutation(ids[:k]).Draw(t, "removeOrder")
		rootB, err := b.Apply(removeB, []common.Hash{extra[1], extra[0]})
		if err != nil {
			t.Fatalf("apply b: %v", err)
		}
		if rootA != rootB {
			t.Fatalf("apply order changed the root")
		}
	})
}

func TestRootChangesWithSet(t *testing.T) {
	s, err := NewMemSet(testIDs(3)...)
	require.NoError(t, err)
	r0 := s.Root()

	r1, err := s.Apply(nil, []common.Hash{testID(3)})
	require.NoError(t, err)
	require.NotEqual(t, r0, r1)

	r2, err := s.Apply([]common.Hash{testID(3)}, nil)
	require.NoError(t, err)
	require.Equal(t, r0, r2)

	// no-op apply keeps the root
	r3, err := s.Apply(nil, nil)
	require.NoError(t, err)
	require.Equal(t, r0, r3)
}

func TestApplyThenProveRoundTrip(t *testing.T) {
	s, err := NewMemSet(testIDs(10)...)
	require.NoError(t, err)

	created := []common.Hash{testID(20), testID(21), testID(22)}
	consumed := []common.Hash{testID(0), testID(5)}
	root, err := s.Apply(consumed, created)
	require.NoError(t, err)

	for _, id := range created {
		proof, err := s.Prove(id)
		require.NoError(t, err)
		require.True(t, Verify(root, id, proof))
	}
	for _, id := range consumed {
		_, err := s.Prove(id)
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s, err := NewMemSet(testIDs(5)...)
	require.NoError(t, err)
	root := s.Root()

	c := s.Clone()
	_, err = c.Apply([]common.Hash{testID(0)}, nil)
	require.NoError(t, err)

	require.Equal(t, root, s.Root())
	require.Equal(t, 5, s.Len())
	require.Equal(t, 4, c.Len())
}
