// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"context"
	"errors"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"

	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// ErrNotFound is returned by read accessors when the requested key is
// absent.
var ErrNotFound = ds.ErrNotFound

// Store is the block store plus the leaf storage the notes/nullifier
// trees and the asset ledger are built on, all backed by one
// ds.Batching datastore (in practice github.com/ipfs/go-ds-badger in
// production, an in-memory map datastore in tests).
type Store struct {
	ds ds.Batching
}

// New wraps a datastore.Batching implementation.
func New(d ds.Batching) *Store {
	return &Store{ds: d}
}

// GetHeader returns the header stored under hash.
func (s *Store) GetHeader(ctx context.Context, hash types.Hash) (*wire.BlockHeader, bool, error) {
	data, err := s.ds.Get(ctx, headerKey(hash))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	h, err := wire.DeserializeHeader(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

// HasHeader reports whether a header is stored under hash.
func (s *Store) HasHeader(ctx context.Context, hash types.Hash) (bool, error) {
	return s.ds.Has(ctx, headerKey(hash))
}

// GetTransactions returns the transaction list stored under a block's
// hash.
func (s *Store) GetTransactions(ctx context.Context, hash types.Hash) ([]*wire.Transaction, bool, error) {
	data, err := s.ds.Get(ctx, transactionsKey(hash))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	r := bytes.NewReader(data)
	count, err := readStoredCount(r)
	if err != nil {
		return nil, false, err
	}
	txs := make([]*wire.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		tx, err := readStoredTransaction(r)
		if err != nil {
			return nil, false, err
		}
		txs = append(txs, tx)
	}
	return txs, true, nil
}

// SequenceHashes returns every block hash stored at the given sequence
// (there may be more than one across competing branches).
func (s *Store) SequenceHashes(ctx context.Context, sequence uint32) ([]types.Hash, error) {
	q := dsq.Query{Prefix: sequencePrefixKey(sequence).String(), KeysOnly: true}
	results, err := s.ds.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var hashes []types.Hash
	for entry := range results.Next() {
		if entry.Error != nil {
			return nil, entry.Error
		}
		key := ds.NewKey(entry.Key)
		h, err := types.NewHashFromHex(key.Name())
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// IsMarkedInvalid reports whether hash was previously marked
// invalid-on-this-branch, so a future reorg attempt skips it.
func (s *Store) IsMarkedInvalid(ctx context.Context, hash types.Hash) (bool, error) {
	return s.ds.Has(ctx, invalidKey(hash))
}

// Meta is the chain metadata record: heaviest_hash, latest_hash,
// genesis_hash.
type Meta struct {
	HeaviestHash types.Hash
	LatestHash   types.Hash
	GenesisHash  types.Hash
}

// GetMeta loads the chain metadata record. ok is false before the
// genesis block has ever been stored.
func (s *Store) GetMeta(ctx context.Context) (*Meta, bool, error) {
	heaviest, ok, err := s.getMetaHash(ctx, metaHeaviestKey)
	if err != nil || !ok {
		return nil, false, err
	}
	latest, _, err := s.getMetaHash(ctx, metaLatestKey)
	if err != nil {
		return nil, false, err
	}
	genesis, _, err := s.getMetaHash(ctx, metaGenesisKey)
	if err != nil {
		return nil, false, err
	}
	return &Meta{HeaviestHash: heaviest, LatestHash: latest, GenesisHash: genesis}, true, nil
}

func (s *Store) getMetaHash(ctx context.Context, name string) (types.Hash, bool, error) {
	data, err := s.ds.Get(ctx, metaKey(name))
	if errors.Is(err, ds.ErrNotFound) {
		return types.Hash{}, false, nil
	}
	if err != nil {
		return types.Hash{}, false, err
	}
	h, err := types.NewHash(data)
	if err != nil {
		return types.Hash{}, false, err
	}
	return h, true, nil
}

// NewBatch opens a single atomic write boundary spanning the block
// store, the notes and nullifier trees, and the asset ledger.
func (s *Store) NewBatch(ctx context.Context) (*Batch, error) {
	b, err := s.ds.Batch(ctx)
	if err != nil {
		return nil, err
	}
	return &Batch{parent: s, batch: b, ctx: ctx}, nil
}
