// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"fmt"

	ds "github.com/ipfs/go-datastore"

	"github.com/umbra-chain/umbrad/assets"
	"github.com/umbra-chain/umbrad/merkletree"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// Batch stages every write for one block connect or disconnect and
// commits them as a single atomic unit, so partial application of a
// block is impossible. Reads made through a
// Batch's tree/ledger adapters check this batch's own pending writes
// before falling through to the parent Store's already-committed state,
// so a block that mints, transfers, and burns the same asset (or a tree
// that appends several leaves) sees its own writes within one commit.
type Batch struct {
	parent *Store
	batch  ds.Batch
	ctx    context.Context

	// pending mirrors every write staged into batch so reads made later
	// in the same operation observe them; ds.Batch itself does not make
	// staged writes visible to Get until Commit. deleted marks keys
	// removed in this batch, distinguishing "not yet committed" from "
	// deleted in this batch" for the same fallback-to-parent read path.
	pending map[string][]byte
	deleted map[string]bool
}

// stage writes key through to the underlying batch and records it in
// the pending overlay.
func (b *Batch) stage(key ds.Key, value []byte) error {
	if err := b.batch.Put(b.ctx, key, value); err != nil {
		return err
	}
	if b.pending == nil {
		b.pending = make(map[string][]byte)
	}
	b.pending[key.String()] = value
	delete(b.deleted, key.String())
	return nil
}

// unstage deletes key through to the underlying batch and records the
// deletion in the pending overlay.
func (b *Batch) unstage(key ds.Key) error {
	if err := b.batch.Delete(b.ctx, key); err != nil {
		return err
	}
	delete(b.pending, key.String())
	if b.deleted == nil {
		b.deleted = make(map[string]bool)
	}
	b.deleted[key.String()] = true
	return nil
}

// read returns key's value as staged earlier in this batch, if any,
// otherwise falls through to the parent store's already-committed
// state.
func (b *Batch) read(key ds.Key) ([]byte, bool, error) {
	name := key.String()
	if b.deleted[name] {
		return nil, false, nil
	}
	if v, ok := b.pending[name]; ok {
		return v, true, nil
	}
	data, err := b.parent.ds.Get(b.ctx, key)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// PutHeader stages a header write.
func (b *Batch) PutHeader(hash types.Hash, header *wire.BlockHeader) error {
	return b.stage(headerKey(hash), header.Bytes())
}

// PutTransactions stages a block's transaction list.
func (b *Batch) PutTransactions(hash types.Hash, txs []*wire.Transaction) error {
	return b.stage(transactionsKey(hash), encodeTransactions(txs))
}

// AddSequenceHash stages recording hash as present at sequence.
func (b *Batch) AddSequenceHash(sequence uint32, hash types.Hash) error {
	return b.stage(sequenceKey(sequence, hash), []byte{1})
}

// RemoveSequenceHash stages removing hash from sequence's set. The chain
// engine does not call it: disconnects leave the header in place (it
// remains queryable, just no longer part of the main chain).
func (b *Batch) RemoveSequenceHash(sequence uint32, hash types.Hash) error {
	return b.unstage(sequenceKey(sequence, hash))
}

// MarkInvalid stages marking hash as invalid-on-this-branch, so future
// reorg attempts skip it.
func (b *Batch) MarkInvalid(hash types.Hash) error {
	return b.stage(invalidKey(hash), []byte{1})
}

// SetMeta stages an update to the chain metadata record.
func (b *Batch) SetMeta(meta *Meta) error {
	if err := b.stage(metaKey(metaHeaviestKey), meta.HeaviestHash.Bytes()); err != nil {
		return err
	}
	if err := b.stage(metaKey(metaLatestKey), meta.LatestHash.Bytes()); err != nil {
		return err
	}
	return b.stage(metaKey(metaGenesisKey), meta.GenesisHash.Bytes())
}

// Commit atomically applies every staged write.
func (b *Batch) Commit() error {
	return b.batch.Commit(b.ctx)
}

// NotesTreeStore returns a merkletree.Store for the notes tree backed by
// this batch's writes and the parent store's committed reads.
func (b *Batch) NotesTreeStore() merkletree.Store {
	return &treeStore{batch: b, leafPrefix: notesLeafPrefix, sizeKey: notesSizeKey}
}

// NullifierTreeStore returns a merkletree.Store for the nullifier tree.
func (b *Batch) NullifierTreeStore() merkletree.Store {
	return &treeStore{batch: b, leafPrefix: nullifierLeafPrefix, sizeKey: nullifierSizeKey}
}

// AssetStore returns an assets.Store backed by this batch.
func (b *Batch) AssetStore() assets.Store {
	return &assetStore{batch: b}
}

// treeStore implements merkletree.Store against one batch.
type treeStore struct {
	batch      *Batch
	leafPrefix ds.Key
	sizeKey    ds.Key
}

func (t *treeStore) leafKey(index uint32) ds.Key {
	return t.leafPrefix.ChildString(dsIndexName(index))
}

func (t *treeStore) Leaf(index uint32) (types.Hash, bool, error) {
	data, ok, err := t.batch.read(t.leafKey(index))
	if err != nil || !ok {
		return types.Hash{}, ok, err
	}
	h, err := types.NewHash(data)
	if err != nil {
		return types.Hash{}, false, err
	}
	return h, true, nil
}

func (t *treeStore) PutLeaf(index uint32, leaf types.Hash) error {
	return t.batch.stage(t.leafKey(index), leaf.Bytes())
}

func (t *treeStore) Size() (uint32, error) {
	data, ok, err := t.batch.read(t.sizeKey)
	if err != nil || !ok {
		return 0, err
	}
	return bytesToUint32(data), nil
}

func (t *treeStore) SetSize(size uint32) error {
	return t.batch.stage(t.sizeKey, uint32ToBytes(size))
}

// assetStore implements assets.Store against one batch.
type assetStore struct {
	batch *Batch
}

func (a *assetStore) GetAsset(id types.Hash) (*assets.Asset, bool, error) {
	data, ok, err := a.batch.read(assetKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	return decodeAsset(data)
}

func (a *assetStore) PutAsset(asset *assets.Asset) error {
	return a.batch.stage(assetKey(asset.ID), encodeAsset(asset))
}

func (a *assetStore) DeleteAsset(id types.Hash) error {
	return a.batch.unstage(assetKey(id))
}

func (a *assetStore) PutOwnerHistory(id, txHash, priorOwner types.Hash) error {
	return a.batch.stage(ownerHistoryKey(id, txHash), priorOwner.Bytes())
}

func (a *assetStore) OwnerHistory(id, txHash types.Hash) (types.Hash, bool, error) {
	data, ok, err := a.batch.read(ownerHistoryKey(id, txHash))
	if err != nil || !ok {
		return types.Hash{}, false, err
	}
	h, err := types.NewHash(data)
	if err != nil {
		return types.Hash{}, false, err
	}
	return h, true, nil
}

func (a *assetStore) DeleteOwnerHistory(id, txHash types.Hash) error {
	return a.batch.unstage(ownerHistoryKey(id, txHash))
}

func dsIndexName(index uint32) string {
	return fmt.Sprintf("%010d", index)
}
