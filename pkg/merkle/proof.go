package merkle

import (
	"github.com/ethereum/go-ethereum/common"
)

// maxProofDepth bounds the aunt trail; a 2^64 leaf tree cannot be deeper.
const maxProofDepth = 64

// Proof is an inclusion witness for a single id. Aunts are the sibling
// hashes on the path from the leaf up to the root, leaf side first.
type Proof struct {
	Index uint64        `json:"index"`
	Total uint64        `json:"total"`
	Aunts []common.Hash `json:"aunts"`
}

// Verify reports whether id was live under root according to proof. It
// touches nothing but its arguments.
func Verify(root, id common.Hash, proof *Proof) bool {
	if proof == nil || root == EmptyRoot {
		return false
	}
	if len(proof.Aunts) > maxProofDepth {
		return false
	}
	computed, ok := computeHashFromAunts(proof.Index, proof.Total, leafHash(id), proof.Aunts)
	if !ok {
		return false
	}
	return computed == root
}

func computeHashFromAunts(index, total uint64, leaf common.Hash, aunts []common.Hash) (common.Hash, bool) {
	if total == 0 || index >= total || total > uint64(maxInt) {
		return common.Hash{}, false
	}
	if total == 1 {
		if len(aunts) != 0 {
			return common.Hash{}, false
		}
		return leaf, true
	}
	if len(aunts) == 0 {
		return common.Hash{}, false
	}
	last := aunts[len(aunts)-1]
	rest := aunts[:len(aunts)-1]
	k := uint64(getSplitPoint(int(total)))
	if index < k {
		left, ok := computeHashFromAunts(index, k, leaf, rest)
		if !ok {
			return common.Hash{}, false
		}
		return innerHash(left, last), true
	}
	right, ok := computeHashFromAunts(index-k, total-k, leaf, rest)
	if !ok {
		return common.Hash{}, false
	}
	return innerHash(last, right), true
}

const maxInt = int(^uint(0) >> 1)

// node is a cached interior or leaf of the tree built over a sorted id list.
type node struct {
	hash        common.Hash
	left, right *node
}

func buildTree(ids []common.Hash) *node {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return &node{hash: leafHash(ids[0])}
	default:
		k := getSplitPoint(len(ids))
		left, right := buildTree(ids[:k]), buildTree(ids[k:])
		return &node{hash: innerHash(left.hash, right.hash), left: left, right: right}
	}
}

// aunts walks from the root to the leaf at index and returns the siblings
// in leaf-to-root order.
func (n *node) aunts(index, total int) []common.Hash {
	var path []common.Hash
	for total > 1 {
		k := getSplitPoint(total)
		if index < k {
			path = append(path, n.right.hash)
			n, total = n.left, k
		} else {
			path = append(path, n.left.hash)
			n, index, total = n.right, index-k, total-k
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
