package merkle

import (
	"crypto/sha256"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
)

// EmptyRoot is the root of a set with no live ids.
var EmptyRoot = common.Hash{}

var (
	leafPrefix  = []byte{0}
	innerPrefix = []byte{1}
)

func leafHash(id common.Hash) common.Hash {
	h := sha256.New()
	h.Write(leafPrefix)
	h.Write(id[:])
	return common.BytesToHash(h.Sum(nil))
}

func innerHash(left, right common.Hash) common.Hash {
	h := sha256.New()
	h.Write(innerPrefix)
	h.Write(left[:])
	h.Write(right[:])
	return common.BytesToHash(h.Sum(nil))
}

// getSplitPoint returns the largest power of 2 less than length.
func getSplitPoint(length int) int {
	if length < 1 {
		panic("merkle: trying to split a tree with size < 1")
	}
	k := 1 << uint(bits.Len(uint(length))-1)
	if k == length {
		k >>= 1
	}
	return k
}
