// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package blockchain implements the chain-accepting state machine:
// ingest a block, validate it, reconcile it with the heaviest chain,
// and apply its effects atomically across the block index, notes tree,
// nullifier tree, and asset ledger.
package blockchain

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/umbra-chain/umbrad/assets"
	"github.com/umbra-chain/umbrad/merkletree"
	"github.com/umbra-chain/umbrad/store"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// Blockchain is a single-writer chain engine: every mutation to the
// block store, notes tree, nullifier tree, and asset ledger is
// serialized through mu.
type Blockchain struct {
	cfg    *config
	store  *store.Store
	events events

	mu sync.Mutex

	notes      *merkletree.Tree
	nullifiers *merkletree.Tree
	ledger     *assets.Ledger

	heaviestHash   types.Hash
	heaviestHeader *wire.BlockHeader
	heaviestWork   *uint256.Int

	latestHash   types.Hash
	latestHeader *wire.BlockHeader

	genesisHash types.Hash

	// workCache holds each known header's cumulative work, keyed by
	// hash. It is an in-memory index only; recomputing it from scratch
	// would require walking every header back to genesis, and every
	// entry is cheap (one uint256.Int) relative to a full header.
	workCache map[types.Hash]*uint256.Int
	// invalidCache mirrors the store's invalid-on-branch markers so a
	// reorg doesn't re-attempt a branch already known to fail.
	invalidCache map[types.Hash]bool

	orphans *orphanPool
}

// AddBlockResult is the outcome of one AddBlock call.
type AddBlockResult struct {
	// Added reports whether the block became part of the heaviest
	// chain as a result of this call.
	Added bool
	// Reason is empty on success (including a side-chain entry that did
	// not become heaviest); otherwise the ErrorKind name.
	Reason string
	// Score is the peer-scoring weight to apply.
	Score int
}

// NewBlockchain constructs a Blockchain, loading existing chain state
// from the configured datastore or, if empty, initializing it from the
// configured network's genesis block.
func NewBlockchain(opts ...Option) (*Blockchain, error) {
	cfg := &config{}
	if err := DefaultOptions()(cfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	b := &Blockchain{
		cfg:          cfg,
		store:        store.New(cfg.datastore),
		workCache:    make(map[types.Hash]*uint256.Int),
		invalidCache: make(map[types.Hash]bool),
		orphans:      newOrphanPool(cfg.maxOrphans),
	}

	if err := b.loadOrInitialize(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Blockchain) loadOrInitialize() error {
	ctx := context.Background()
	meta, ok, err := b.store.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return b.initializeFromGenesis(ctx)
	}
	return b.loadExisting(ctx, meta)
}

// initializeFromGenesis persists the configured network's genesis block
// and builds the initial in-memory trees/ledger from it.
func (b *Blockchain) initializeFromGenesis(ctx context.Context) error {
	genesis := b.cfg.params.GenesisBlock
	hash := genesis.Hash(b.cfg.blockHasher)

	batch, err := b.store.NewBatch(ctx)
	if err != nil {
		return err
	}
	if err := batch.PutHeader(hash, genesis.Header); err != nil {
		return err
	}
	if err := batch.PutTransactions(hash, genesis.Transactions); err != nil {
		return err
	}
	if err := batch.AddSequenceHash(genesis.Header.Sequence, hash); err != nil {
		return err
	}
	meta := &store.Meta{HeaviestHash: hash, LatestHash: hash, GenesisHash: hash}
	if err := batch.SetMeta(meta); err != nil {
		return err
	}

	notes, err := merkletree.New(b.cfg.noteHasher, batch.NotesTreeStore())
	if err != nil {
		return err
	}
	for _, tx := range genesis.Transactions {
		for _, output := range tx.Outputs {
			if _, err := notes.Append(outputCommitment(b.cfg.noteHasher, output)); err != nil {
				return err
			}
		}
	}
	nullifiers, err := merkletree.New(b.cfg.nullifierHasher, batch.NullifierTreeStore())
	if err != nil {
		return err
	}

	if err := batch.Commit(); err != nil {
		return err
	}

	b.notes = notes
	b.nullifiers = nullifiers
	b.ledger = assets.New(batch.AssetStore())
	b.heaviestHash = hash
	b.heaviestHeader = genesis.Header
	b.latestHash = hash
	b.latestHeader = genesis.Header
	b.genesisHash = hash
	b.heaviestWork = genesis.Header.Work()
	b.workCache[hash] = b.heaviestWork
	return nil
}

// loadExisting rehydrates in-memory state from a previously populated
// datastore.
func (b *Blockchain) loadExisting(ctx context.Context, meta *store.Meta) error {
	heaviest, ok, err := b.store.GetHeader(ctx, meta.HeaviestHash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("blockchain: heaviest header %s missing from store", meta.HeaviestHash)
	}
	latest, ok, err := b.store.GetHeader(ctx, meta.LatestHash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("blockchain: latest header %s missing from store", meta.LatestHash)
	}

	batch, err := b.store.NewBatch(ctx)
	if err != nil {
		return err
	}
	notes, err := merkletree.New(b.cfg.noteHasher, batch.NotesTreeStore())
	if err != nil {
		return err
	}
	nullifiers, err := merkletree.New(b.cfg.nullifierHasher, batch.NullifierTreeStore())
	if err != nil {
		return err
	}

	b.notes = notes
	b.nullifiers = nullifiers
	b.ledger = assets.New(batch.AssetStore())
	b.heaviestHash = meta.HeaviestHash
	b.heaviestHeader = heaviest
	b.latestHash = meta.LatestHash
	b.latestHeader = latest
	b.genesisHash = meta.GenesisHash

	work, err := b.recomputeWork(ctx, meta.HeaviestHash, heaviest)
	if err != nil {
		return err
	}
	b.heaviestWork = work
	return nil
}

// recomputeWork walks back to genesis once to seed the work cache for a
// rehydrated chain, memoizing every ancestor's cumulative work as it
// goes.
func (b *Blockchain) recomputeWork(ctx context.Context, hash types.Hash, header *wire.BlockHeader) (*uint256.Int, error) {
	if w, ok := b.workCache[hash]; ok {
		return w, nil
	}
	if header.PreviousHash.IsZero() {
		w := header.Work()
		b.workCache[hash] = w
		return w, nil
	}
	parent, ok, err := b.store.GetHeader(ctx, header.PreviousHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("blockchain: ancestor %s missing from store", header.PreviousHash)
	}
	parentWork, err := b.recomputeWork(ctx, header.PreviousHash, parent)
	if err != nil {
		return nil, err
	}
	w := new(uint256.Int).Add(parentWork, header.Work())
	b.workCache[hash] = w
	return w, nil
}

// outputCommitment derives the notes-tree leaf for output: the hash of
// its proof and encrypted note, since the wire format carries no
// separate note_commitment field on Output.
func outputCommitment(hasher merkletree.Hasher, output *wire.Output) types.Hash {
	data := make([]byte, 0, len(output.Proof)+len(output.EncryptedNote))
	data = append(data, output.Proof[:]...)
	data = append(data, output.EncryptedNote...)
	return hasher.HashLeaf(data)
}

// HasBlock reports whether hash is known, on any branch.
func (b *Blockchain) HasBlock(hash types.Hash) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.HasHeader(context.Background(), hash)
}

// GetHeader returns the header for hash, if known.
func (b *Blockchain) GetHeader(hash types.Hash) (*wire.BlockHeader, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.GetHeader(context.Background(), hash)
}

// GetBlock returns the full block for hash, if known.
func (b *Blockchain) GetBlock(hash types.Hash) (*wire.Block, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getBlock(context.Background(), hash)
}

func (b *Blockchain) getBlock(ctx context.Context, hash types.Hash) (*wire.Block, bool, error) {
	header, ok, err := b.store.GetHeader(ctx, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	txs, ok, err := b.store.GetTransactions(ctx, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &wire.Block{Header: header, Transactions: txs}, true, nil
}

// Asset returns the ledger's current record for id, reflecting every
// mint/burn connected on the heaviest chain so far.
func (b *Blockchain) Asset(id types.Hash) (*assets.Asset, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.Get(id)
}

// Head returns the header of the current heaviest chain's tip.
func (b *Blockchain) Head() *wire.BlockHeader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heaviestHeader
}

// Latest returns the header with the highest sequence seen on any
// branch (informational only).
func (b *Blockchain) Latest() *wire.BlockHeader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestHeader
}

// IsHeadChain reports whether header is an ancestor of (or equal to) the
// current heaviest tip.
func (b *Blockchain) IsHeadChain(header *wire.BlockHeader) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isHeadChain(context.Background(), header)
}

func (b *Blockchain) isHeadChain(ctx context.Context, header *wire.BlockHeader) (bool, error) {
	hash := header.Hash(b.cfg.blockHasher)
	cursor := b.heaviestHash
	cursorHeader := b.heaviestHeader
	for {
		if cursor.Equal(hash) {
			return true, nil
		}
		if cursorHeader.PreviousHash.IsZero() {
			return false, nil
		}
		parent, ok, err := b.store.GetHeader(ctx, cursorHeader.PreviousHash)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		cursor = cursorHeader.PreviousHash
		cursorHeader = parent
	}
}

// IterateFrom walks the main chain starting at start, calling fn for
// each header until fn returns false or the end of the chain is
// reached. forward walks toward increasing sequence (start must be on
// the main chain); otherwise it walks toward genesis.
func (b *Blockchain) IterateFrom(start types.Hash, forward bool, fn func(*wire.BlockHeader) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx := context.Background()

	if !forward {
		hash := start
		for {
			header, ok, err := b.store.GetHeader(ctx, hash)
			if err != nil {
				return err
			}
			if !ok || !fn(header) || header.PreviousHash.IsZero() {
				return nil
			}
			hash = header.PreviousHash
		}
	}

	chain, err := b.mainChainFrom(ctx, start)
	if err != nil {
		return err
	}
	for _, header := range chain {
		if !fn(header) {
			return nil
		}
	}
	return nil
}

// mainChainFrom returns the main-chain headers from start to the
// heaviest tip, inclusive, in ascending-sequence order.
func (b *Blockchain) mainChainFrom(ctx context.Context, start types.Hash) ([]*wire.BlockHeader, error) {
	var reversed []*wire.BlockHeader
	cursor := b.heaviestHash
	cursorHeader := b.heaviestHeader
	for {
		reversed = append(reversed, cursorHeader)
		if cursor.Equal(start) {
			break
		}
		if cursorHeader.PreviousHash.IsZero() {
			return nil, fmt.Errorf("blockchain: %s is not on the main chain", start)
		}
		parent, ok, err := b.store.GetHeader(ctx, cursorHeader.PreviousHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("blockchain: ancestor %s missing from store", cursorHeader.PreviousHash)
		}
		cursor = cursorHeader.PreviousHash
		cursorHeader = parent
	}
	out := make([]*wire.BlockHeader, len(reversed))
	for i, h := range reversed {
		out[len(reversed)-1-i] = h
	}
	return out, nil
}

// NotesWitness returns the authentication path for the note at
// leafIndex as of the notes tree's state when it held atSize leaves, for
// wallet/transaction construction.
func (b *Blockchain) NotesWitness(leafIndex, atSize uint32) (*merkletree.AuthPath, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notes.Witness(leafIndex, atSize)
}
