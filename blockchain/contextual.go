// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"time"

	"github.com/umbra-chain/umbrad/assets"
	"github.com/umbra-chain/umbrad/difficulty"
	"github.com/umbra-chain/umbrad/merkletree"
	"github.com/umbra-chain/umbrad/params"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// contextualView bundles the chain state a contextual check runs
// against: the prospective parent and the live trees/ledger, which by
// construction already reflect that parent's post-connect state (see
// connect.go).
type contextualView struct {
	parent          *wire.BlockHeader
	grandparent     *wire.BlockHeader // nil if parent is genesis
	notes           *merkletree.Tree
	nullifiers      *merkletree.Tree
	ledger          *assets.Ledger
	nullifierHasher merkletree.Hasher
}

// checkContextual runs every rule evaluated against a specific ancestor
// (usually the prospective parent) against view. The post-connect
// commitment invariants are not part of it: connectBlock checks them via
// checkPostConnectInvariants. It never mutates view's trees or ledger.
func (b *Blockchain) checkContextual(block *wire.Block, view *contextualView) *RuleError {
	if err := b.checkSequence(block.Header, view.parent); err != nil {
		return err
	}
	if err := b.checkTimestamp(block.Header, view.parent); err != nil {
		return err
	}
	if err := b.checkTarget(block.Header, view); err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		if err := b.checkTransactionVersion(tx, block.Header.Sequence); err != nil {
			return err
		}
		if err := checkExpiration(tx, block.Header.Sequence); err != nil {
			return err
		}
		if err := b.checkSpendsContextual(tx, view); err != nil {
			return err
		}
		if err := b.checkNullifiersContextual(tx, view); err != nil {
			return err
		}
		if err := b.checkMintsContextual(tx, view); err != nil {
			return err
		}
		if err := b.checkBurnsContextual(tx, view); err != nil {
			return err
		}
	}
	return nil
}

// checkTransactionVersion enforces that tx carries the one transaction
// version active at sequence; a transaction minted under a stale or
// not-yet-active version is rejected rather than silently accepted.
func (b *Blockchain) checkTransactionVersion(tx *wire.Transaction, sequence uint32) *RuleError {
	want := b.cfg.params.LatestTransactionVersionAt(sequence)
	if tx.Version != want {
		return ruleErr(ErrInvalidTransactionVersion, "transaction version %d does not match required version %d at sequence %d", tx.Version, want, sequence)
	}
	return nil
}

func (b *Blockchain) checkSequence(h, parent *wire.BlockHeader) *RuleError {
	if h.Sequence != parent.Sequence+1 {
		return ruleErr(ErrInvalidSequence, "sequence %d does not follow parent sequence %d", h.Sequence, parent.Sequence)
	}
	return nil
}

func (b *Blockchain) checkTimestamp(h, parent *wire.BlockHeader) *RuleError {
	if b.cfg.params.IsActive(params.RuleSequentialTime, h.Sequence) {
		if h.Timestamp <= parent.Timestamp {
			return ruleErr(ErrInvalidTimestamp, "timestamp %d not strictly greater than parent %d", h.Timestamp, parent.Timestamp)
		}
	} else if h.Timestamp < parent.Timestamp {
		return ruleErr(ErrInvalidTimestamp, "timestamp %d less than parent %d", h.Timestamp, parent.Timestamp)
	}
	maxAllowed := time.Now().UnixMilli() + b.cfg.params.MaxFutureSeconds*1000
	if h.Timestamp > maxAllowed {
		return ruleErr(ErrInvalidTimestamp, "timestamp %d too far in the future", h.Timestamp)
	}
	return nil
}

func (b *Blockchain) checkTarget(h *wire.BlockHeader, view *contextualView) *RuleError {
	parentTarget := difficulty.TargetFromBytes(view.parent.Target)
	powLimit := difficulty.TargetFromBytes(b.cfg.params.PowLimit)

	var spacingSeconds int64
	if view.grandparent == nil {
		spacingSeconds = b.cfg.params.TargetBlockTime
	} else {
		spacingSeconds = (view.parent.Timestamp - view.grandparent.Timestamp) / 1000
	}

	expected := difficulty.NextTarget(parentTarget, spacingSeconds, b.cfg.params.TargetBlockTime, b.cfg.params.RetargetWindow, powLimit)
	got := difficulty.TargetFromBytes(h.Target)
	if !expected.Eq(got) {
		return ruleErr(ErrInvalidTarget, "target %s does not match expected %s", got, expected)
	}
	return nil
}

// checkSpendsContextual verifies each spend's declared note-tree root is
// a historical root of the chain prefix ending at the parent.
func (b *Blockchain) checkSpendsContextual(tx *wire.Transaction, view *contextualView) *RuleError {
	for _, spend := range tx.Spends {
		root, err := view.notes.RootAt(spend.TreeSize)
		if err != nil {
			return ruleErr(ErrInvalidSpendRoot, "spend root unavailable at tree size %d: %v", spend.TreeSize, err)
		}
		if !root.Equal(spend.Root) {
			return ruleErr(ErrInvalidSpendRoot, "spend root %s does not match historical root %s at size %d", spend.Root, root, spend.TreeSize)
		}
	}
	return nil
}

// checkNullifiersContextual verifies no nullifier in tx is already
// present in the main-chain nullifier set up to the parent.
func (b *Blockchain) checkNullifiersContextual(tx *wire.Transaction, view *contextualView) *RuleError {
	for _, spend := range tx.Spends {
		leaf := view.nullifierHasher.HashLeaf(spend.Nullifier.Bytes())
		if _, ok := view.nullifiers.Contains(leaf); ok {
			return ruleErr(ErrDuplicateNullifier, "nullifier %s already spent on main chain", spend.Nullifier)
		}
	}
	return nil
}

// checkMintsContextual verifies asset_id derivation and, for existing
// assets, owner matching and the transfer_ownership_to version
// restriction.
func (b *Blockchain) checkMintsContextual(tx *wire.Transaction, view *contextualView) *RuleError {
	for _, mint := range tx.Mints {
		derived := assets.DeriveAssetID(b.cfg.blockHasher, mint.Creator, mint.Name, mint.Metadata, mint.Nonce)
		if !derived.Equal(mint.AssetID) {
			return ruleErr(ErrInvalidAssetID, "mint asset_id %s does not match derivation %s", mint.AssetID, derived)
		}
		if mint.TransferOwnershipTo != nil && tx.Version < params.TransferOwnershipVersion {
			return ruleErr(ErrAssetOwnerMismatch, "transfer_ownership_to requires transaction version >= %d, got %d", params.TransferOwnershipVersion, tx.Version)
		}
		existing, ok, err := view.ledger.Get(mint.AssetID)
		if err != nil {
			return ruleErr(ErrAssetOwnerMismatch, "asset lookup: %v", err)
		}
		if ok && !existing.Owner.Equal(mint.Creator) {
			return ruleErr(ErrAssetOwnerMismatch, "mint creator %s does not match asset owner %s", mint.Creator, existing.Owner)
		}
	}
	return nil
}

// checkBurnsContextual verifies the asset's current supply at the
// parent covers the burn value.
func (b *Blockchain) checkBurnsContextual(tx *wire.Transaction, view *contextualView) *RuleError {
	for _, burn := range tx.Burns {
		asset, ok, err := view.ledger.Get(burn.AssetID)
		if err != nil {
			return ruleErr(ErrSupplyUnderflow, "asset lookup: %v", err)
		}
		if !ok || asset.Supply < burn.Value {
			return ruleErr(ErrSupplyUnderflow, "burn %d exceeds supply for asset %s", burn.Value, burn.AssetID)
		}
	}
	return nil
}

// checkPostConnectInvariants verifies that, after appending the block's
// note and nullifier leaves to view's trees, the resulting roots and
// sizes match the header's declared commitments. Called as a dry run
// before the append is made durable (see connect.go).
func checkPostConnectInvariants(h *wire.BlockHeader, notesRoot, nullifiersRoot types.Hash, notesSize, nullifiersSize uint32) *RuleError {
	if !notesRoot.Equal(h.NoteRoot) || notesSize != h.NoteSize {
		return ruleErr(ErrInvalidNoteCommitment, "note commitment mismatch: got root=%s size=%d, header wants root=%s size=%d", notesRoot, notesSize, h.NoteRoot, h.NoteSize)
	}
	if !nullifiersRoot.Equal(h.NullifierRoot) || nullifiersSize != h.NullifierSize {
		return ruleErr(ErrInvalidNoteCommitment, "nullifier commitment mismatch: got root=%s size=%d, header wants root=%s size=%d", nullifiersRoot, nullifiersSize, h.NullifierRoot, h.NullifierSize)
	}
	return nil
}

// checkExpiration enforces TX_EXPIRED: a non-zero expiration must not
// have already passed at the connecting sequence.
func checkExpiration(tx *wire.Transaction, sequence uint32) *RuleError {
	if tx.Expiration != 0 && tx.Expiration <= sequence {
		return ruleErr(ErrTxExpired, "transaction expired at or before sequence %d (expiration %d)", sequence, tx.Expiration)
	}
	return nil
}
