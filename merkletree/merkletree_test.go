// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package merkletree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/umbra-chain/umbrad/types"
)

// testHasher is a lightweight blake2b-based Hasher for exercising tree
// behavior without depending on the crypto package.
type testHasher struct {
	empty [Depth + 1]types.Hash
}

func newTestHasher() *testHasher {
	h := &testHasher{}
	h.empty[0] = h.HashLeaf(make([]byte, types.HashSize))
	for i := 1; i <= Depth; i++ {
		h.empty[i] = h.HashNode(h.empty[i-1], h.empty[i-1])
	}
	return h
}

func (h *testHasher) HashLeaf(data []byte) types.Hash {
	sum := blake2b.Sum256(append([]byte("leaf"), data...))
	return types.Hash(sum)
}

func (h *testHasher) HashNode(left, right types.Hash) types.Hash {
	buf := append([]byte("node"), left.Bytes()...)
	buf = append(buf, right.Bytes()...)
	sum := blake2b.Sum256(buf)
	return types.Hash(sum)
}

func (h *testHasher) EmptyHash(level int) types.Hash {
	return h.empty[level]
}

// memStore is an in-memory Store stub for tests.
type memStore struct {
	leaves map[uint32]types.Hash
	size   uint32
}

func newMemStore() *memStore {
	return &memStore{leaves: make(map[uint32]types.Hash)}
}

func (s *memStore) Leaf(index uint32) (types.Hash, bool, error) {
	l, ok := s.leaves[index]
	return l, ok, nil
}

func (s *memStore) PutLeaf(index uint32, leaf types.Hash) error {
	s.leaves[index] = leaf
	return nil
}

func (s *memStore) Size() (uint32, error) {
	return s.size, nil
}

func (s *memStore) SetSize(size uint32) error {
	s.size = size
	return nil
}

func leafAt(i byte) types.Hash {
	var h types.Hash
	h[0] = i
	return h
}

func TestEmptyRootIsDeterministic(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)
	require.Equal(t, hasher.EmptyHash(Depth), tree.Root())
}

func TestAppendAdvancesRootAndSize(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)

	r0 := tree.Root()
	idx, err := tree.Append(leafAt(1))
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)
	require.Equal(t, uint32(1), tree.Size())
	require.NotEqual(t, r0, tree.Root())

	idx2, err := tree.Append(leafAt(2))
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx2)
	require.Equal(t, uint32(2), tree.Size())
}

func TestRootAtMatchesHistoricalRoot(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)

	var rootAtOne types.Hash
	for i := byte(1); i <= 5; i++ {
		_, err := tree.Append(leafAt(i))
		require.NoError(t, err)
		if i == 1 {
			rootAtOne = tree.Root()
		}
	}

	gotRootAtOne, err := tree.RootAt(1)
	require.NoError(t, err)
	require.Equal(t, rootAtOne, gotRootAtOne)

	gotRootAtFive, err := tree.RootAt(5)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), gotRootAtFive)
}

func TestWitnessVerifies(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)

	leaves := []types.Hash{leafAt(1), leafAt(2), leafAt(3), leafAt(4), leafAt(5)}
	for _, l := range leaves {
		_, err := tree.Append(l)
		require.NoError(t, err)
	}

	for i, l := range leaves {
		path, err := tree.Witness(uint32(i), uint32(len(leaves)))
		require.NoError(t, err)
		require.True(t, Verify(hasher, l, path, tree.Root()))
	}
}

func TestWitnessIndexOutOfRange(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)
	_, err = tree.Append(leafAt(1))
	require.NoError(t, err)

	_, err = tree.Witness(1, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTruncateRestoresPriorRoot(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)

	_, err = tree.Append(leafAt(1))
	require.NoError(t, err)
	_, err = tree.Append(leafAt(2))
	require.NoError(t, err)
	rootAtTwo := tree.Root()

	_, err = tree.Append(leafAt(3))
	require.NoError(t, err)
	require.NotEqual(t, rootAtTwo, tree.Root())

	require.NoError(t, tree.Truncate(2))
	require.Equal(t, uint32(2), tree.Size())
	require.Equal(t, rootAtTwo, tree.Root())

	_, found := tree.Contains(leafAt(3))
	require.False(t, found)
}

func TestTruncateIdempotentWhenNewSizeAtOrAboveCurrent(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)
	_, err = tree.Append(leafAt(1))
	require.NoError(t, err)

	require.NoError(t, tree.Truncate(5))
	require.Equal(t, uint32(1), tree.Size())
}

func TestContainsReturnsIndex(t *testing.T) {
	hasher := newTestHasher()
	tree, err := New(hasher, newMemStore())
	require.NoError(t, err)
	idx, err := tree.Append(leafAt(9))
	require.NoError(t, err)

	got, ok := tree.Contains(leafAt(9))
	require.True(t, ok)
	require.Equal(t, idx, got)

	_, ok = tree.Contains(leafAt(42))
	require.False(t, ok)
}

func TestRehydrationFromStoreReplaysLeaves(t *testing.T) {
	hasher := newTestHasher()
	store := newMemStore()
	tree, err := New(hasher, store)
	require.NoError(t, err)
	for _, l := range []types.Hash{leafAt(1), leafAt(2), leafAt(3)} {
		_, err := tree.Append(l)
		require.NoError(t, err)
	}
	root := tree.Root()

	rehydrated, err := New(hasher, store)
	require.NoError(t, err)
	require.Equal(t, tree.Size(), rehydrated.Size())
	require.Equal(t, root, rehydrated.Root())
}
