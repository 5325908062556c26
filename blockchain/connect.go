// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/umbra-chain/umbrad/store"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// AddBlock is the chain engine's entry point: non-contextual
// verification, parent lookup, duplicate/orphan parking, contextual
// verification against whichever branch the block extends, and
// reconciliation with the heaviest chain (fast-forward, side-chain
// park, or reorganization). The returned error is non-nil only for
// storage I/O failures, which are treated as fatal; a consensus rule
// violation is reported through AddBlockResult instead.
func (b *Blockchain) AddBlock(block *wire.Block) (*AddBlockResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addBlock(block, 0)
}

func (b *Blockchain) addBlock(block *wire.Block, orphanDepth uint) (*AddBlockResult, error) {
	ctx := context.Background()
	hash := block.Hash(b.cfg.blockHasher)

	has, err := b.store.HasHeader(ctx, hash)
	if err != nil {
		return nil, err
	}
	if has {
		return ruleResult(ErrDuplicate), nil
	}

	if rerr := b.checkNonContextual(block); rerr != nil {
		return ruleResult(rerr.Kind), nil
	}

	parentHeader, ok, err := b.store.GetHeader(ctx, block.Header.PreviousHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if orphanDepth > 0 {
			// A descendant surfaced during orphan replay whose own
			// parent is still missing; leave it parked rather than
			// re-adding it to the pool under a stale depth.
			return ruleResult(ErrOrphan), nil
		}
		log.Debugf("orphan block %s: parent %s unknown", hash, block.Header.PreviousHash)
		b.orphans.add(hash, block)
		return ruleResult(ErrOrphan), nil
	}

	if invalid, err := b.isMarkedInvalid(ctx, block.Header.PreviousHash); err != nil {
		return nil, err
	} else if invalid {
		return ruleResult(ErrInvalidPow), nil
	}

	// workCache is only guaranteed warm along the heaviest chain (seeded
	// by recomputeWork at startup and extended by every addBlock call
	// since); a parked side-chain header surviving a restart has no
	// entry yet, so fall back to walking its ancestry once to seed it.
	parentWork, err := b.recomputeWork(ctx, block.Header.PreviousHash, parentHeader)
	if err != nil {
		return nil, err
	}
	candidateWork := new(uint256.Int).Add(parentWork, block.Header.Work())

	batch, err := b.store.NewBatch(ctx)
	if err != nil {
		return nil, err
	}
	if err := batch.PutHeader(hash, block.Header); err != nil {
		return nil, err
	}
	if err := batch.PutTransactions(hash, block.Transactions); err != nil {
		return nil, err
	}
	if err := batch.AddSequenceHash(block.Header.Sequence, hash); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	b.workCache[hash] = candidateWork
	if b.latestHeader == nil || block.Header.Sequence > b.latestHeader.Sequence {
		b.latestHash = hash
		b.latestHeader = block.Header
	}

	var result *AddBlockResult
	switch {
	case block.Header.PreviousHash.Equal(b.heaviestHash):
		result, err = b.tryFastForward(ctx, block, hash, parentHeader)
	case candidateWork.Gt(b.heaviestWork) || (candidateWork.Eq(b.heaviestWork) && hash.Less(b.heaviestHash)):
		log.Debugf("block %s at sequence %d triggers reorg, candidate work %s vs heaviest %s",
			hash, block.Header.Sequence, candidateWork, b.heaviestWork)
		result, err = b.reorganize(ctx, hash)
	default:
		log.Debugf("block %s at sequence %d parked on a side chain", hash, block.Header.Sequence)
		result = &AddBlockResult{Added: false}
	}
	if err != nil {
		return nil, err
	}
	if result.Reason != "" {
		log.Debugf("block %s rejected: %s", hash, result.Reason)
	}

	if result.Added {
		log.Infof("new block: %s (sequence: %d, transactions: %d)", hash, block.Header.Sequence, len(block.Transactions))
		if err := b.replayOrphans(hash, orphanDepth); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func ruleResult(kind ErrorKind) *AddBlockResult {
	return &AddBlockResult{Added: false, Reason: kind.String(), Score: kind.PeerScore()}
}

// replayOrphans attempts to connect every orphan directly parented on
// hash, recursively. depth is bounded by cfg.orphanChainLimit, past
// which replay stops rather than risking unbounded recursion.
func (b *Blockchain) replayOrphans(hash types.Hash, depth uint) error {
	if depth >= b.cfg.orphanChainLimit {
		return nil
	}
	children := b.orphans.childrenOf(hash)
	for _, child := range children {
		b.orphans.remove(child.hash)
		if _, err := b.addBlock(child.block, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// tryFastForward validates block contextually against the current live
// trees/ledger (which already reflect the parent's post-connect state,
// since parent is the current heaviest tip) and, on success, connects it.
func (b *Blockchain) tryFastForward(ctx context.Context, block *wire.Block, hash types.Hash, parent *wire.BlockHeader) (*AddBlockResult, error) {
	grandparent, err := b.headerOrNil(ctx, parent.PreviousHash)
	if err != nil {
		return nil, err
	}
	view := &contextualView{
		parent:          parent,
		grandparent:     grandparent,
		notes:           b.notes,
		nullifiers:      b.nullifiers,
		ledger:          b.ledger,
		nullifierHasher: b.cfg.nullifierHasher,
	}
	if rerr := b.checkContextual(block, view); rerr != nil {
		if err := b.markInvalid(ctx, hash); err != nil {
			return nil, err
		}
		return ruleResult(rerr.Kind), nil
	}

	previousHead := b.heaviestHeader
	rerr, err := b.connectBlock(ctx, block, hash)
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		if err := b.markInvalid(ctx, hash); err != nil {
			return nil, err
		}
		return ruleResult(rerr.Kind), nil
	}
	b.fireConnect(block, previousHead)
	return &AddBlockResult{Added: true}, nil
}

func (b *Blockchain) headerOrNil(ctx context.Context, hash types.Hash) (*wire.BlockHeader, error) {
	if hash.IsZero() {
		return nil, nil
	}
	header, ok, err := b.store.GetHeader(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return header, nil
}

func (b *Blockchain) markInvalid(ctx context.Context, hash types.Hash) error {
	batch, err := b.store.NewBatch(ctx)
	if err != nil {
		return err
	}
	if err := batch.MarkInvalid(hash); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	log.Warnf("block %s marked invalid", hash)
	b.invalidCache[hash] = true
	return nil
}

// isMarkedInvalid reports whether hash was previously marked invalid,
// preferring invalidCache (an in-memory mirror populated by markInvalid
// within this process's lifetime) over a store round-trip; on a cache
// miss it falls back to the store and remembers the answer, since a
// hash already connected before this process started can only have
// been marked invalid by a prior process's markInvalid call.
func (b *Blockchain) isMarkedInvalid(ctx context.Context, hash types.Hash) (bool, error) {
	if invalid, ok := b.invalidCache[hash]; ok {
		return invalid, nil
	}
	invalid, err := b.store.IsMarkedInvalid(ctx, hash)
	if err != nil {
		return false, err
	}
	b.invalidCache[hash] = invalid
	return invalid, nil
}

// connectBlock applies block's effects to the live notes/nullifier trees
// and asset ledger inside one atomic batch, verifying the post-connect
// commitments before the batch is committed. A commitment mismatch is an
// ordinary rule failure (the header lied about its declared roots/sizes)
// rather than fatal: the in-memory trees are rolled back to their prior
// size and the already-staged batch is simply never committed, leaving
// durable state untouched.
func (b *Blockchain) connectBlock(ctx context.Context, block *wire.Block, hash types.Hash) (*RuleError, error) {
	batch, err := b.store.NewBatch(ctx)
	if err != nil {
		return nil, err
	}
	b.notes.SetStore(batch.NotesTreeStore())
	b.nullifiers.SetStore(batch.NullifierTreeStore())
	b.ledger.SetStore(batch.AssetStore())

	priorNotesSize := b.notes.Size()
	priorNullifierSize := b.nullifiers.Size()

	if err := b.applyBlock(block, hash); err != nil {
		return nil, err
	}

	if rerr := checkPostConnectInvariants(block.Header, b.notes.Root(), b.nullifiers.Root(), b.notes.Size(), b.nullifiers.Size()); rerr != nil {
		if err := b.notes.Truncate(priorNotesSize); err != nil {
			return nil, err
		}
		if err := b.nullifiers.Truncate(priorNullifierSize); err != nil {
			return nil, err
		}
		return rerr, nil
	}

	meta := &store.Meta{HeaviestHash: hash, LatestHash: b.latestHash, GenesisHash: b.genesisHash}
	if err := batch.SetMeta(meta); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}

	b.heaviestHash = hash
	b.heaviestHeader = block.Header
	b.heaviestWork = b.workCache[hash]
	return nil, nil
}

// applyBlock appends every output commitment and spent nullifier and
// applies every mint/burn, without touching the header index or chain
// metadata.
func (b *Blockchain) applyBlock(block *wire.Block, blockHash types.Hash) error {
	for _, tx := range block.Transactions {
		txHash := tx.Hash(b.cfg.blockHasher)
		for _, output := range tx.Outputs {
			if _, err := b.notes.Append(outputCommitment(b.cfg.noteHasher, output)); err != nil {
				return err
			}
		}
		for _, spend := range tx.Spends {
			leaf := b.cfg.nullifierHasher.HashLeaf(spend.Nullifier.Bytes())
			if _, err := b.nullifiers.Append(leaf); err != nil {
				return err
			}
		}
		for _, mint := range tx.Mints {
			if err := b.ledger.ConnectMint(mint, txHash); err != nil {
				return fmt.Errorf("blockchain: connect mint in block %s: %w", blockHash, err)
			}
		}
		for _, burn := range tx.Burns {
			if err := b.ledger.ConnectBurn(burn); err != nil {
				return fmt.Errorf("blockchain: connect burn in block %s: %w", blockHash, err)
			}
		}
	}
	return nil
}

// unapplyBlock reverses applyBlock's effects, in reverse transaction and
// reverse mint/burn order, then truncates the trees back to the parent's
// declared sizes.
func (b *Blockchain) unapplyBlock(block *wire.Block, parent *wire.BlockHeader) error {
	for i := len(block.Transactions) - 1; i >= 0; i-- {
		tx := block.Transactions[i]
		txHash := tx.Hash(b.cfg.blockHasher)
		for j := len(tx.Burns) - 1; j >= 0; j-- {
			if err := b.ledger.DisconnectBurn(tx.Burns[j]); err != nil {
				return err
			}
		}
		for j := len(tx.Mints) - 1; j >= 0; j-- {
			if err := b.ledger.DisconnectMint(tx.Mints[j], txHash); err != nil {
				return err
			}
		}
	}
	if err := b.notes.Truncate(parent.NoteSize); err != nil {
		return err
	}
	return b.nullifiers.Truncate(parent.NullifierSize)
}

// disconnectBlock reverses hash's effects and moves the heaviest tip
// back to its parent, inside one atomic batch.
func (b *Blockchain) disconnectBlock(ctx context.Context, hash types.Hash, header *wire.BlockHeader, parent *wire.BlockHeader) error {
	block, ok, err := b.getBlock(ctx, hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("blockchain: block %s missing from store during disconnect", hash)
	}

	batch, err := b.store.NewBatch(ctx)
	if err != nil {
		return err
	}
	b.notes.SetStore(batch.NotesTreeStore())
	b.nullifiers.SetStore(batch.NullifierTreeStore())
	b.ledger.SetStore(batch.AssetStore())

	if err := b.unapplyBlock(block, parent); err != nil {
		return err
	}

	meta := &store.Meta{HeaviestHash: header.PreviousHash, LatestHash: b.latestHash, GenesisHash: b.genesisHash}
	if err := batch.SetMeta(meta); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}

	previousHead := b.heaviestHeader
	b.heaviestHash = header.PreviousHash
	b.heaviestHeader = parent
	b.heaviestWork = b.workCache[header.PreviousHash]
	b.fireDisconnect(block, previousHead)
	return nil
}

// reorganize walks back from the current heaviest tip and from
// candidateHash to their common ancestor, disconnects the current branch
// down to that ancestor, then connects the candidate's branch forward
// over it. If any block along the forward path fails contextual
// verification, the partially-applied forward path is unwound and the
// original branch is restored, and the offending block is marked
// invalid so future reorg attempts skip it.
func (b *Blockchain) reorganize(ctx context.Context, candidateHash types.Hash) (*AddBlockResult, error) {
	oldHead := b.heaviestHeader
	ancestorHeader, disconnectPath, connectPath, err := b.findReorgPaths(ctx, candidateHash)
	if err != nil {
		return nil, err
	}

	for _, entry := range disconnectPath {
		if err := b.disconnectBlock(ctx, entry.hash, entry.header, entry.parent); err != nil {
			return nil, err
		}
	}

	connected := 0
	var failure *RuleError
	var failedHash types.Hash
	for _, entry := range connectPath {
		grandparent, err := b.headerOrNil(ctx, entry.parent.PreviousHash)
		if err != nil {
			return nil, err
		}
		view := &contextualView{
			parent:          entry.parent,
			grandparent:     grandparent,
			notes:           b.notes,
			nullifiers:      b.nullifiers,
			ledger:          b.ledger,
			nullifierHasher: b.cfg.nullifierHasher,
		}
		block, ok, err := b.getBlock(ctx, entry.hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("blockchain: block %s missing from store during reorg", entry.hash)
		}
		if rerr := b.checkContextual(block, view); rerr != nil {
			failure = rerr
			failedHash = entry.hash
			break
		}
		previousHead := b.heaviestHeader
		rerr, err := b.connectBlock(ctx, block, entry.hash)
		if err != nil {
			return nil, err
		}
		if rerr != nil {
			failure = rerr
			failedHash = entry.hash
			break
		}
		b.fireConnect(block, previousHead)
		connected++
	}

	if failure != nil {
		if err := b.markInvalid(ctx, failedHash); err != nil {
			return nil, err
		}
		if err := b.unwindReorg(ctx, connectPath[:connected], disconnectPath); err != nil {
			return nil, err
		}
		return ruleResult(failure.Kind), nil
	}

	newHead := b.heaviestHeader
	b.fireReorganize(oldHead, newHead, ancestorHeader)
	return &AddBlockResult{Added: candidateHash.Equal(newHead.Hash(b.cfg.blockHasher))}, nil
}

// unwindReorg reverses a partially-applied forward replay (the first
// connected entries of connectPath) and restores the original branch by
// replaying disconnectPath's blocks forward again, in original order.
func (b *Blockchain) unwindReorg(ctx context.Context, connected []reorgEntry, disconnectPath []reorgEntry) error {
	for i := len(connected) - 1; i >= 0; i-- {
		entry := connected[i]
		if err := b.disconnectBlock(ctx, entry.hash, entry.header, entry.parent); err != nil {
			return err
		}
	}
	for i := len(disconnectPath) - 1; i >= 0; i-- {
		entry := disconnectPath[i]
		block, ok, err := b.getBlock(ctx, entry.hash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("blockchain: block %s missing from store while restoring original branch", entry.hash)
		}
		// entry was already part of the validated heaviest chain before
		// this reorg attempt began; a rule failure restoring it would
		// mean the chain's own prior state was inconsistent.
		previousHead := b.heaviestHeader
		rerr, err := b.connectBlock(ctx, block, entry.hash)
		if err != nil {
			return err
		}
		if rerr != nil {
			return fmt.Errorf("blockchain: failed to restore previously-valid block %s: %w", entry.hash, rerr)
		}
		b.fireConnect(block, previousHead)
	}
	return nil
}

// reorgEntry is one header/parent pair along a disconnect or connect
// path during a reorganization.
type reorgEntry struct {
	hash   types.Hash
	header *wire.BlockHeader
	parent *wire.BlockHeader
}

// findReorgPaths walks both the current heaviest chain and
// candidateHash's branch back to their common ancestor, returning the
// ancestor's header, the current branch's blocks from tip to ancestor
// (disconnect order), and the candidate branch's blocks from just past
// the ancestor to the candidate (connect order).
func (b *Blockchain) findReorgPaths(ctx context.Context, candidateHash types.Hash) (*wire.BlockHeader, []reorgEntry, []reorgEntry, error) {
	currentChain := map[types.Hash]reorgEntry{}
	cursor := b.heaviestHash
	cursorHeader := b.heaviestHeader
	for {
		parent, err := b.headerOrNil(ctx, cursorHeader.PreviousHash)
		if err != nil {
			return nil, nil, nil, err
		}
		currentChain[cursor] = reorgEntry{hash: cursor, header: cursorHeader, parent: parent}
		if parent == nil {
			break
		}
		cursor = cursorHeader.PreviousHash
		cursorHeader = parent
	}

	var candidatePath []reorgEntry
	ccursor := candidateHash
	ccursorHeader, ok, err := b.store.GetHeader(ctx, candidateHash)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, fmt.Errorf("blockchain: candidate header %s missing from store", candidateHash)
	}
	for {
		if entry, ok := currentChain[ccursor]; ok {
			ancestorHash := ccursor
			ancestorHeader := entry.header

			var disconnectPath []reorgEntry
			dcursor := b.heaviestHash
			for !dcursor.Equal(ancestorHash) {
				e := currentChain[dcursor]
				disconnectPath = append(disconnectPath, e)
				dcursor = e.header.PreviousHash
			}

			for i, j := 0, len(candidatePath)-1; i < j; i, j = i+1, j-1 {
				candidatePath[i], candidatePath[j] = candidatePath[j], candidatePath[i]
			}
			return ancestorHeader, disconnectPath, candidatePath, nil
		}
		parent, err := b.headerOrNil(ctx, ccursorHeader.PreviousHash)
		if err != nil {
			return nil, nil, nil, err
		}
		candidatePath = append(candidatePath, reorgEntry{hash: ccursor, header: ccursorHeader, parent: parent})
		if parent == nil {
			return nil, nil, nil, fmt.Errorf("blockchain: no common ancestor found for candidate %s", candidateHash)
		}
		ccursor = ccursorHeader.PreviousHash
		ccursorHeader = parent
	}
}
