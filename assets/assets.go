// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package assets implements the per-asset supply ledger: mint/burn
// mutations, and the ownership-history bookkeeping needed to reverse a
// mint's effects during a disconnect.
package assets

import (
	"errors"

	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// ErrAssetNotFound is returned when an operation references an asset
// that does not exist in the ledger.
var ErrAssetNotFound = errors.New("assets: asset not found")

// ErrSupplyUnderflow is the contextual SUPPLY_UNDERFLOW rule: a burn (or
// a mint disconnect) would take supply below zero.
var ErrSupplyUnderflow = errors.New("assets: supply underflow")

// ErrOwnerMismatch is the contextual ASSET_OWNER_MISMATCH rule: a mint's
// creator does not match the asset's current owner.
var ErrOwnerMismatch = errors.New("assets: mint creator does not match current owner")

// Asset is the persisted record for one asset ID.
type Asset struct {
	ID            types.Hash
	Name          []byte
	Metadata      []byte
	Supply        uint64
	Owner         types.Hash
	CreatedTxHash types.Hash
}

// Store is the persistence boundary the Ledger is built on. Mutations
// happen inside the caller's atomic batch (store.Batch); Store itself
// does not manage transactions.
type Store interface {
	GetAsset(id types.Hash) (*Asset, bool, error)
	PutAsset(asset *Asset) error
	DeleteAsset(id types.Hash) error

	// PutOwnerHistory records the asset's owner immediately before a
	// mint identified by txHash took effect, so a later disconnect can
	// restore it.
	PutOwnerHistory(id, txHash types.Hash, priorOwner types.Hash) error
	// OwnerHistory retrieves the owner recorded by PutOwnerHistory.
	OwnerHistory(id, txHash types.Hash) (types.Hash, bool, error)
	DeleteOwnerHistory(id, txHash types.Hash) error
}

// Ledger applies mint/burn effects to the asset store.
type Ledger struct {
	store Store
}

// New constructs a Ledger over store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// SetStore rebinds the ledger to a different Store. The chain engine
// calls this once per connect/disconnect operation to point a
// long-lived Ledger at that operation's atomic batch, since the ledger
// keeps no in-memory cache of its own -- every Get/Connect/Disconnect
// call reads and writes straight through to whatever Store is current.
func (l *Ledger) SetStore(store Store) {
	l.store = store
}

// DeriveAssetID computes the canonical asset ID for a mint: a function
// of the declared creator, name, metadata, and nonce. Used by the
// verifier to check a mint's declared asset_id, and by callers
// constructing a new mint.
func DeriveAssetID(hasher wire.Hasher, creator types.Hash, name, metadata []byte, nonce uint64) types.Hash {
	buf := make([]byte, 0, types.HashSize+len(name)+len(metadata)+8)
	buf = append(buf, creator.Bytes()...)
	buf = append(buf, name...)
	buf = append(buf, metadata...)
	buf = append(buf, uint64ToBytes(nonce)...)
	return hasher.Sum256(buf)
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v)
		v >>= 8
	}
	return b
}

// ConnectMint applies a mint's effects: create the asset if it is new,
// otherwise increase its supply and optionally transfer ownership.
func (l *Ledger) ConnectMint(mint *wire.Mint, txHash types.Hash) error {
	existing, ok, err := l.store.GetAsset(mint.AssetID)
	if err != nil {
		return err
	}
	if !ok {
		asset := &Asset{
			ID:            mint.AssetID,
			Name:          mint.Name,
			Metadata:      mint.Metadata,
			Supply:        mint.Value,
			Owner:         mint.Creator,
			CreatedTxHash: txHash,
		}
		return l.store.PutAsset(asset)
	}

	if existing.Owner != mint.Creator {
		return ErrOwnerMismatch
	}

	newSupply, err := types.SupplyAdd(existing.Supply, mint.Value)
	if err != nil {
		return err
	}

	if err := l.store.PutOwnerHistory(mint.AssetID, txHash, existing.Owner); err != nil {
		return err
	}

	existing.Supply = newSupply
	if mint.TransferOwnershipTo != nil {
		existing.Owner = *mint.TransferOwnershipTo
	}
	return l.store.PutAsset(existing)
}

// DisconnectMint reverses a previously connected mint.
func (l *Ledger) DisconnectMint(mint *wire.Mint, txHash types.Hash) error {
	existing, ok, err := l.store.GetAsset(mint.AssetID)
	if !ok {
		if err != nil {
			return err
		}
		return ErrAssetNotFound
	}

	if existing.CreatedTxHash == txHash {
		return l.store.DeleteAsset(mint.AssetID)
	}

	newSupply, err := types.SupplySub(existing.Supply, mint.Value)
	if err != nil {
		return ErrSupplyUnderflow
	}
	existing.Supply = newSupply

	if mint.TransferOwnershipTo != nil {
		priorOwner, ok, err := l.store.OwnerHistory(mint.AssetID, txHash)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("assets: missing ownership history for mint disconnect")
		}
		existing.Owner = priorOwner
		if err := l.store.DeleteOwnerHistory(mint.AssetID, txHash); err != nil {
			return err
		}
	}
	return l.store.PutAsset(existing)
}

// ConnectBurn reduces an existing asset's supply.
func (l *Ledger) ConnectBurn(burn *wire.Burn) error {
	existing, ok, err := l.store.GetAsset(burn.AssetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotFound
	}
	newSupply, err := types.SupplySub(existing.Supply, burn.Value)
	if err != nil {
		return ErrSupplyUnderflow
	}
	existing.Supply = newSupply
	return l.store.PutAsset(existing)
}

// DisconnectBurn reverses a previously connected burn.
func (l *Ledger) DisconnectBurn(burn *wire.Burn) error {
	existing, ok, err := l.store.GetAsset(burn.AssetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotFound
	}
	newSupply, err := types.SupplyAdd(existing.Supply, burn.Value)
	if err != nil {
		return err
	}
	existing.Supply = newSupply
	return l.store.PutAsset(existing)
}

// Get returns the asset record for id, if any.
func (l *Ledger) Get(id types.Hash) (*Asset, bool, error) {
	return l.store.GetAsset(id)
}
