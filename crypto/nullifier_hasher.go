// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/umbra-chain/umbrad/types"
)

var (
	nullifierLeafDomain = []byte("umbra/nullifiers/leaf")
	nullifierNodeDomain = []byte("umbra/nullifiers/node")
)

// NullifierHasher computes leaf and internal-node hashes for the
// nullifier set's Merkle tree using domain-separated blake2b-256.
type NullifierHasher struct {
	emptyCache [maxTreeDepth + 1]types.Hash
}

// NewNullifierHasher precomputes the empty-subtree hashes up to
// maxTreeDepth.
func NewNullifierHasher() *NullifierHasher {
	nh := &NullifierHasher{}
	nh.emptyCache[0] = nh.HashLeaf(make([]byte, types.HashSize))
	for level := 1; level <= maxTreeDepth; level++ {
		prev := nh.emptyCache[level-1]
		nh.emptyCache[level] = nh.HashNode(prev, prev)
	}
	return nh
}

// HashLeaf hashes a single nullifier leaf.
func (n *NullifierHasher) HashLeaf(data []byte) types.Hash {
	h, _ := blake2b.New256(nullifierLeafDomain)
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashNode combines a left and right child into their parent hash.
func (n *NullifierHasher) HashNode(left, right types.Hash) types.Hash {
	h, _ := blake2b.New256(nullifierNodeDomain)
	h.Write(left.Bytes())
	h.Write(right.Bytes())
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyHash returns the canonical hash of an empty subtree of the given
// level (0 = leaf level).
func (n *NullifierHasher) EmptyHash(level int) types.Hash {
	return n.emptyCache[level]
}
