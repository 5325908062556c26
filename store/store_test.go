// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	ds "github.com/ipfs/go-datastore"

	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

func newTestStore() *Store {
	return New(ds.NewMapDatastore())
}

func sampleHeader(seq uint32) *wire.BlockHeader {
	h := &wire.BlockHeader{Sequence: seq}
	for i := range h.Target {
		h.Target[i] = 0xff
	}
	return h
}

func TestHeaderPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	hash := types.Hash{0x01}
	header := sampleHeader(5)

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.PutHeader(hash, header))
	require.NoError(t, batch.Commit())

	got, ok, err := s.GetHeader(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, header, got)

	has, err := s.HasHeader(ctx, hash)
	require.NoError(t, err)
	require.True(t, has)
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	hash := types.Hash{0x02}
	txs := []*wire.Transaction{
		{Version: 1, Fee: -100},
		{Version: 1, Fee: 10, Expiration: 5},
	}

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.PutTransactions(hash, txs))
	require.NoError(t, batch.Commit())

	got, ok, err := s.GetTransactions(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, txs, got)
}

func TestSequenceHashes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	h1 := types.Hash{0x01}
	h2 := types.Hash{0x02}

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.AddSequenceHash(10, h1))
	require.NoError(t, batch.AddSequenceHash(10, h2))
	require.NoError(t, batch.Commit())

	hashes, err := s.SequenceHashes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hashes, 2)
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	meta := &Meta{
		HeaviestHash: types.Hash{0x01},
		LatestHash:   types.Hash{0x02},
		GenesisHash:  types.Hash{0x03},
	}

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.SetMeta(meta))
	require.NoError(t, batch.Commit())

	got, ok, err := s.GetMeta(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, meta, got)
}

func TestTreeStoreLeafAndSize(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	treeStore := batch.NotesTreeStore()
	require.NoError(t, treeStore.PutLeaf(0, types.Hash{0x09}))
	require.NoError(t, treeStore.SetSize(1))
	require.NoError(t, batch.Commit())

	batch2, err := s.NewBatch(ctx)
	require.NoError(t, err)
	treeStore2 := batch2.NotesTreeStore()
	size, err := treeStore2.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(1), size)

	leaf, ok, err := treeStore2.Leaf(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.Hash{0x09}, leaf)
}
