// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umbra-chain/umbrad/assets"
	"github.com/umbra-chain/umbrad/types"
)

// freshAssetStore opens a new batch over s purely to read already-
// committed state, the same pattern TestTreeStoreLeafAndSize uses for
// the notes tree store.
func freshAssetStore(t *testing.T, ctx context.Context, s *Store) assets.Store {
	t.Helper()
	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	return batch.AssetStore()
}

// TestBatchReadsOwnPendingWrites exercises the read-your-own-writes
// overlay directly: a value staged earlier in a batch must be visible
// to a read in that same batch, before Commit ever makes it visible
// through the parent Store.
func TestBatchReadsOwnPendingWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)

	assetID := types.Hash{0x0a}
	batchStore := batch.AssetStore()
	require.NoError(t, batchStore.PutAsset(&assets.Asset{ID: assetID, Supply: 100}))

	got, ok, err := batchStore.GetAsset(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Supply)

	// Not yet visible through an independent batch -- this one hasn't
	// committed.
	_, ok, err = freshAssetStore(t, ctx, s).GetAsset(assetID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, batch.Commit())
	got, ok, err = freshAssetStore(t, ctx, s).GetAsset(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Supply)
}

// TestBatchOverwriteWithinSameBatch covers a second write in the same
// batch superseding the first in the pending overlay, mirroring
// ConnectMint called twice for the same asset within one block.
func TestBatchOverwriteWithinSameBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)

	assetID := types.Hash{0x0b}
	batchStore := batch.AssetStore()
	require.NoError(t, batchStore.PutAsset(&assets.Asset{ID: assetID, Supply: 100}))
	require.NoError(t, batchStore.PutAsset(&assets.Asset{ID: assetID, Supply: 250}))

	got, ok, err := batchStore.GetAsset(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(250), got.Supply)

	require.NoError(t, batch.Commit())
	got, ok, err = freshAssetStore(t, ctx, s).GetAsset(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(250), got.Supply)
}

// TestBatchDeleteWithinSameBatch covers unstage: a delete staged after a
// put in the same batch must make the key read back as absent, both
// from the batch's own read path and after commit.
func TestBatchDeleteWithinSameBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)

	assetID := types.Hash{0x0c}
	batchStore := batch.AssetStore()
	require.NoError(t, batchStore.PutAsset(&assets.Asset{ID: assetID, Supply: 100}))
	require.NoError(t, batchStore.DeleteAsset(assetID))

	_, ok, err := batchStore.GetAsset(assetID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, batch.Commit())
	_, ok, err = freshAssetStore(t, ctx, s).GetAsset(assetID)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestBatchDeleteThenPutWithinSameBatch covers the reverse ordering: a
// put staged after a delete must win, and must not be shadowed by the
// earlier delete marker.
func TestBatchDeleteThenPutWithinSameBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	assetID := types.Hash{0x0d}

	seed, err := s.NewBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.AssetStore().PutAsset(&assets.Asset{ID: assetID, Supply: 5}))
	require.NoError(t, seed.Commit())

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	batchStore := batch.AssetStore()
	require.NoError(t, batchStore.DeleteAsset(assetID))
	require.NoError(t, batchStore.PutAsset(&assets.Asset{ID: assetID, Supply: 9}))

	got, ok, err := batchStore.GetAsset(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), got.Supply)

	require.NoError(t, batch.Commit())
	got, ok, err = freshAssetStore(t, ctx, s).GetAsset(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), got.Supply)
}

// TestOwnerHistoryWithinSameBatch covers the owner-history overlay used
// to reverse an ownership transfer on disconnect: a put staged earlier
// in the batch must be visible to a read later in that same batch.
func TestOwnerHistoryWithinSameBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	batch, err := s.NewBatch(ctx)
	require.NoError(t, err)
	batchStore := batch.AssetStore()

	assetID := types.Hash{0x0e}
	txHash := types.Hash{0x0f}
	priorOwner := types.Hash{0x10}

	require.NoError(t, batchStore.PutOwnerHistory(assetID, txHash, priorOwner))
	got, ok, err := batchStore.OwnerHistory(assetID, txHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, priorOwner, got)

	require.NoError(t, batchStore.DeleteOwnerHistory(assetID, txHash))
	_, ok, err = batchStore.OwnerHistory(assetID, txHash)
	require.NoError(t, err)
	require.False(t, ok)
}
