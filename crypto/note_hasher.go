// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package crypto implements the injected capability set the chain
// engine verifies transactions against: hash_leaf/hash_node for the
// notes and nullifier trees, and the two halves of transaction
// verification (proof verification, signature verification). Concrete
// implementations are wired to a production cryptographic suite rather
// than left generic.
package crypto

import (
	"math/big"

	"golang.org/x/crypto/blake2b"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/umbra-chain/umbrad/types"
)

// maxTreeDepth bounds the empty-subtree cache; both the notes and the
// nullifier trees are fixed at this depth.
const maxTreeDepth = 32

// NoteHasher computes leaf and internal-node hashes for the notes
// commitment tree using a Pedersen-style commitment over BLS12-381: a
// domain-separated combination of two fixed generator points, compressed
// and folded down to a 32-byte hash so it composes with the rest of the
// tree's fixed-width leaves.
type NoteHasher struct {
	g, h       bls12381.G1Jac
	emptyCache [maxTreeDepth + 1]types.Hash
}

// NewNoteHasher derives the hasher's two generator points deterministically
// via hash-to-curve, so every node independently arrives at the same
// generators without a trusted setup.
func NewNoteHasher() *NoteHasher {
	gAff, err := bls12381.HashToG1([]byte("umbra/notes/generator/g"), []byte("UMBRA_NOTES_G1_"))
	if err != nil {
		panic(err)
	}
	hAff, err := bls12381.HashToG1([]byte("umbra/notes/generator/h"), []byte("UMBRA_NOTES_G1_"))
	if err != nil {
		panic(err)
	}
	nh := &NoteHasher{}
	nh.g.FromAffine(&gAff)
	nh.h.FromAffine(&hAff)

	nh.emptyCache[0] = nh.HashLeaf(make([]byte, types.HashSize))
	for level := 1; level <= maxTreeDepth; level++ {
		prev := nh.emptyCache[level-1]
		nh.emptyCache[level] = nh.HashNode(prev, prev)
	}
	return nh
}

func (n *NoteHasher) commit(left, right []byte) types.Hash {
	var lScalar, rScalar fr.Element
	lScalar.SetBytes(left)
	rScalar.SetBytes(right)

	var lBig, rBig big.Int
	lScalar.BigInt(&lBig)
	rScalar.BigInt(&rBig)

	var lPoint, rPoint bls12381.G1Jac
	lPoint.ScalarMultiplication(&n.g, &lBig)
	rPoint.ScalarMultiplication(&n.h, &rBig)

	var sum bls12381.G1Jac
	sum.Set(&lPoint).AddAssign(&rPoint)

	var result bls12381.G1Affine
	result.FromJacobian(&sum)
	compressed := result.Bytes()

	digest := blake2b.Sum256(compressed[:])
	return types.Hash(digest)
}

// HashLeaf commits a single leaf value, using the zero hash as the
// right-hand input so leaves and internal nodes share one commitment
// formula.
func (n *NoteHasher) HashLeaf(data []byte) types.Hash {
	return n.commit(data, make([]byte, types.HashSize))
}

// HashNode combines a left and right child into their parent hash.
func (n *NoteHasher) HashNode(left, right types.Hash) types.Hash {
	return n.commit(left.Bytes(), right.Bytes())
}

// EmptyHash returns the canonical hash of an empty subtree of the given
// level (0 = leaf level).
func (n *NoteHasher) EmptyHash(level int) types.Hash {
	return n.emptyCache[level]
}
