// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package merkletree implements a fixed-depth, append-only Merkle tree,
// shared by the notes commitment tree and the nullifier set,
// parameterized only by which Hasher they are constructed with.
package merkletree

import (
	"errors"

	"github.com/umbra-chain/umbrad/types"
)

// Depth is the tree's fixed depth; both the notes tree and the
// nullifier tree use a depth of 32.
const Depth = 32

// MaxSize is the largest number of leaves a tree of this depth can hold.
const MaxSize = 1 << Depth

var (
	// ErrTreeFull is returned by Append once the tree holds 2^Depth - 1
	// leaves.
	ErrTreeFull = errors.New("merkletree: tree is full")

	// ErrWitnessUnavailable is returned by Witness when the requested
	// size exceeds the tree's current size or a leaf below it is missing
	// from the store.
	ErrWitnessUnavailable = errors.New("merkletree: witness unavailable at requested size")

	// ErrIndexOutOfRange is returned by Witness when index >= at_size.
	ErrIndexOutOfRange = errors.New("merkletree: leaf index out of range for requested size")
)

// Hasher supplies the domain-specific leaf and node hash functions a
// Tree is built from, plus the canonical empty-subtree hash at each
// level. Notes use a Pedersen-style hasher; nullifiers use blake2b; both
// satisfy this same interface.
type Hasher interface {
	HashLeaf(data []byte) types.Hash
	HashNode(left, right types.Hash) types.Hash
	EmptyHash(level int) types.Hash
}

// AuthPath is the sequence of sibling hashes from a leaf to the root,
// ordered leaf-to-root. IsRight[i] is true when the leaf-side node at
// level i is the right child (so Siblings[i] is its left sibling).
type AuthPath struct {
	Siblings []types.Hash
	IsRight  []bool
}

// Store is the persistence boundary a Tree is built on: the leaves and
// the current size. RootAt and Witness replay leaves from it rather than
// reading stored interior nodes. store.Batch's NotesTreeStore and
// NullifierTreeStore implement this
// against a datastore-backed index; tests may use an in-memory stub.
type Store interface {
	// Leaf returns the leaf at the given index, or ok=false if absent.
	Leaf(index uint32) (types.Hash, bool, error)
	// PutLeaf records the leaf at the given index.
	PutLeaf(index uint32, leaf types.Hash) error
	// Size returns the tree's current leaf count.
	Size() (uint32, error)
	// SetSize persists the tree's current leaf count.
	SetSize(size uint32) error
}

// Tree is a fixed-depth append-only Merkle tree over 32-byte leaves.
type Tree struct {
	hasher Hasher
	store  Store

	size uint32
	// frontier[level] holds the rightmost filled node hash at that
	// level for the tree's current size, used to extend the tree in
	// O(Depth) per append without touching already-finalized subtrees.
	frontier [Depth]types.Hash
	// frontierFilled[level] is true once frontier[level] holds a real
	// (non-empty) subtree hash.
	frontierFilled [Depth]bool
	// leafIndex is notes/nullifiers' secondary index for Contains.
	leafIndex map[types.Hash]uint32
}

// New constructs an empty Tree (or rehydrates one from store, replaying
// its persisted leaves onto a fresh frontier).
func New(hasher Hasher, store Store) (*Tree, error) {
	t := &Tree{
		hasher:    hasher,
		store:     store,
		leafIndex: make(map[types.Hash]uint32),
	}
	size, err := store.Size()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < size; i++ {
		leaf, ok, err := store.Leaf(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("merkletree: store reports size beyond its persisted leaves")
		}
		t.extendFrontier(leaf)
		t.leafIndex[leaf] = i
	}
	t.size = size
	return t, nil
}

// Size returns the number of leaves currently appended.
func (t *Tree) Size() uint32 {
	return t.size
}

// SetStore rebinds the tree's persistence boundary without touching its
// in-memory frontier, size, or leaf index. The chain engine calls this
// once per connect/disconnect operation to point a long-lived Tree at
// that operation's atomic batch (see store.Batch), since every write the
// tree issues during the call must land in the same commit.
func (t *Tree) SetStore(store Store) {
	t.store = store
}

// Append adds leaf as the next entry, returning its index.
func (t *Tree) Append(leaf types.Hash) (uint32, error) {
	if t.size >= MaxSize-1 {
		return 0, ErrTreeFull
	}
	index := t.size
	if err := t.store.PutLeaf(index, leaf); err != nil {
		return 0, err
	}
	t.extendFrontier(leaf)
	t.leafIndex[leaf] = index
	t.size++
	if err := t.store.SetSize(t.size); err != nil {
		return 0, err
	}
	return index, nil
}

// extendFrontier folds a new leaf into the rightmost-path frontier,
// carrying completed pairs up the tree exactly as a ripple-carry binary
// counter does.
func (t *Tree) extendFrontier(leaf types.Hash) {
	carry := leaf
	filled := true
	for level := 0; level < Depth; level++ {
		if !filled {
			break
		}
		if !t.frontierFilled[level] {
			t.frontier[level] = carry
			t.frontierFilled[level] = true
			filled = false
		} else {
			carry = t.hasher.HashNode(t.frontier[level], carry)
			t.frontierFilled[level] = false
		}
	}
}

// Root returns the root of the tree at its current size, padding
// missing right subtrees with the canonical empty-subtree hashes.
func (t *Tree) Root() types.Hash {
	return t.rootFromFrontier(t.frontier, t.frontierFilled)
}

func (t *Tree) rootFromFrontier(frontier [Depth]types.Hash, filled [Depth]bool) types.Hash {
	var node types.Hash
	haveNode := false
	for level := 0; level < Depth; level++ {
		if filled[level] {
			if !haveNode {
				node = t.hasher.HashNode(frontier[level], t.hasher.EmptyHash(level))
				haveNode = true
			} else {
				node = t.hasher.HashNode(frontier[level], node)
			}
		} else if haveNode {
			node = t.hasher.HashNode(node, t.hasher.EmptyHash(level))
		}
	}
	if !haveNode {
		return t.hasher.EmptyHash(Depth)
	}
	return node
}

// RootAt recomputes the historical root at the given size by replaying
// leaves [0, size) onto a scratch frontier. O(size) in the worst case;
// callers on a hot path should cache recent roots.
func (t *Tree) RootAt(size uint32) (types.Hash, error) {
	if size == 0 {
		return t.hasher.EmptyHash(Depth), nil
	}
	if size > t.size {
		return types.Hash{}, ErrWitnessUnavailable
	}
	var frontier [Depth]types.Hash
	var filled [Depth]bool
	for i := uint32(0); i < size; i++ {
		leaf, ok, err := t.store.Leaf(i)
		if err != nil {
			return types.Hash{}, err
		}
		if !ok {
			return types.Hash{}, ErrWitnessUnavailable
		}
		carry := leaf
		isFilled := true
		for level := 0; level < Depth; level++ {
			if !isFilled {
				break
			}
			if !filled[level] {
				frontier[level] = carry
				filled[level] = true
				isFilled = false
			} else {
				carry = t.hasher.HashNode(frontier[level], carry)
				filled[level] = false
			}
		}
	}
	return t.rootFromFrontier(frontier, filled), nil
}

// Witness returns the authentication path for the leaf at index, as of
// the tree's state when it held atSize leaves.
func (t *Tree) Witness(index, atSize uint32) (*AuthPath, error) {
	if index >= atSize {
		return nil, ErrIndexOutOfRange
	}
	if atSize > t.size {
		return nil, ErrWitnessUnavailable
	}

	leaves := make([]types.Hash, atSize)
	for i := uint32(0); i < atSize; i++ {
		leaf, ok, err := t.store.Leaf(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrWitnessUnavailable
		}
		leaves[i] = leaf
	}

	path := &AuthPath{}
	levelNodes := leaves
	levelSize := atSize
	idx := index
	for level := 0; level < Depth; level++ {
		isRight := idx%2 == 1
		var sibling types.Hash
		siblingIdx := idx ^ 1
		if siblingIdx < levelSize {
			sibling = levelNodes[siblingIdx]
		} else {
			sibling = t.hasher.EmptyHash(level)
		}
		path.Siblings = append(path.Siblings, sibling)
		path.IsRight = append(path.IsRight, isRight)

		nextLevelSize := (levelSize + 1) / 2
		nextLevel := make([]types.Hash, nextLevelSize)
		for i := uint32(0); i < nextLevelSize; i++ {
			left := levelNodes[2*i]
			var right types.Hash
			if 2*i+1 < levelSize {
				right = levelNodes[2*i+1]
			} else {
				right = t.hasher.EmptyHash(level)
			}
			nextLevel[i] = t.hasher.HashNode(left, right)
		}
		levelNodes = nextLevel
		levelSize = nextLevelSize
		idx /= 2
	}
	return path, nil
}

// Verify reports whether path authenticates leaf to root under this
// tree's hasher.
func Verify(hasher Hasher, leaf types.Hash, path *AuthPath, root types.Hash) bool {
	node := leaf
	for i, sibling := range path.Siblings {
		if path.IsRight[i] {
			node = hasher.HashNode(sibling, node)
		} else {
			node = hasher.HashNode(node, sibling)
		}
	}
	return node.Equal(root)
}

// Truncate discards leaves [newSize, size). Idempotent if
// newSize >= size.
func (t *Tree) Truncate(newSize uint32) error {
	if newSize >= t.size {
		return nil
	}
	leaves := make([]types.Hash, newSize)
	for i := uint32(0); i < newSize; i++ {
		leaf, ok, err := t.store.Leaf(i)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("merkletree: missing leaf while truncating")
		}
		leaves[i] = leaf
	}

	newIndex := make(map[types.Hash]uint32, newSize)
	var frontier [Depth]types.Hash
	var filled [Depth]bool
	for i, leaf := range leaves {
		newIndex[leaf] = uint32(i)
		carry := leaf
		isFilled := true
		for level := 0; level < Depth; level++ {
			if !isFilled {
				break
			}
			if !filled[level] {
				frontier[level] = carry
				filled[level] = true
				isFilled = false
			} else {
				carry = t.hasher.HashNode(frontier[level], carry)
				filled[level] = false
			}
		}
	}

	t.frontier = frontier
	t.frontierFilled = filled
	t.size = newSize
	t.leafIndex = newIndex
	return t.store.SetSize(newSize)
}

// Contains reports whether leaf has been appended, returning its index.
func (t *Tree) Contains(leaf types.Hash) (uint32, bool) {
	idx, ok := t.leafIndex[leaf]
	return idx, ok
}
