// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package assets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

type memStore struct {
	assets  map[types.Hash]*Asset
	history map[[2]types.Hash]types.Hash
}

func newMemStore() *memStore {
	return &memStore{
		assets:  make(map[types.Hash]*Asset),
		history: make(map[[2]types.Hash]types.Hash),
	}
}

func (s *memStore) GetAsset(id types.Hash) (*Asset, bool, error) {
	a, ok := s.assets[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (s *memStore) PutAsset(asset *Asset) error {
	cp := *asset
	s.assets[asset.ID] = &cp
	return nil
}

func (s *memStore) DeleteAsset(id types.Hash) error {
	delete(s.assets, id)
	return nil
}

func (s *memStore) PutOwnerHistory(id, txHash, priorOwner types.Hash) error {
	s.history[[2]types.Hash{id, txHash}] = priorOwner
	return nil
}

func (s *memStore) OwnerHistory(id, txHash types.Hash) (types.Hash, bool, error) {
	v, ok := s.history[[2]types.Hash{id, txHash}]
	return v, ok, nil
}

func (s *memStore) DeleteOwnerHistory(id, txHash types.Hash) error {
	delete(s.history, [2]types.Hash{id, txHash})
	return nil
}

func hashWithByte(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestConnectMintCreatesNewAsset(t *testing.T) {
	ledger := New(newMemStore())
	mint := &wire.Mint{AssetID: hashWithByte(1), Value: 100, Creator: hashWithByte(2)}
	require.NoError(t, ledger.ConnectMint(mint, hashWithByte(10)))

	asset, ok, err := ledger.Get(mint.AssetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), asset.Supply)
	require.Equal(t, mint.Creator, asset.Owner)
	require.Equal(t, hashWithByte(10), asset.CreatedTxHash)
}

func TestConnectMintIncreasesSupplyOnExistingAsset(t *testing.T) {
	ledger := New(newMemStore())
	creator := hashWithByte(2)
	mint1 := &wire.Mint{AssetID: hashWithByte(1), Value: 100, Creator: creator}
	require.NoError(t, ledger.ConnectMint(mint1, hashWithByte(10)))

	mint2 := &wire.Mint{AssetID: hashWithByte(1), Value: 50, Creator: creator}
	require.NoError(t, ledger.ConnectMint(mint2, hashWithByte(11)))

	asset, _, err := ledger.Get(mint1.AssetID)
	require.NoError(t, err)
	require.Equal(t, uint64(150), asset.Supply)
}

func TestConnectMintOwnerMismatchRejected(t *testing.T) {
	ledger := New(newMemStore())
	mint1 := &wire.Mint{AssetID: hashWithByte(1), Value: 100, Creator: hashWithByte(2)}
	require.NoError(t, ledger.ConnectMint(mint1, hashWithByte(10)))

	mint2 := &wire.Mint{AssetID: hashWithByte(1), Value: 50, Creator: hashWithByte(3)}
	require.ErrorIs(t, ledger.ConnectMint(mint2, hashWithByte(11)), ErrOwnerMismatch)
}

func TestMintOwnershipTransferAndDisconnect(t *testing.T) {
	ledger := New(newMemStore())
	owner1 := hashWithByte(2)
	owner2 := hashWithByte(3)

	mintX := &wire.Mint{AssetID: hashWithByte(1), Value: 100, Creator: owner1}
	require.NoError(t, ledger.ConnectMint(mintX, hashWithByte(10)))

	mintY := &wire.Mint{AssetID: hashWithByte(1), Value: 10, Creator: owner1, TransferOwnershipTo: &owner2}
	require.NoError(t, ledger.ConnectMint(mintY, hashWithByte(11)))

	asset, _, err := ledger.Get(mintX.AssetID)
	require.NoError(t, err)
	require.Equal(t, owner2, asset.Owner)
	require.Equal(t, uint64(110), asset.Supply)

	require.NoError(t, ledger.DisconnectMint(mintY, hashWithByte(11)))
	asset, _, err = ledger.Get(mintX.AssetID)
	require.NoError(t, err)
	require.Equal(t, owner1, asset.Owner)
	require.Equal(t, uint64(100), asset.Supply)
}

func TestDisconnectMintDeletesAssetItCreated(t *testing.T) {
	ledger := New(newMemStore())
	mint := &wire.Mint{AssetID: hashWithByte(1), Value: 100, Creator: hashWithByte(2)}
	txHash := hashWithByte(10)
	require.NoError(t, ledger.ConnectMint(mint, txHash))

	require.NoError(t, ledger.DisconnectMint(mint, txHash))
	_, ok, err := ledger.Get(mint.AssetID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBurnReducesSupplyAndDisconnectRestoresIt(t *testing.T) {
	ledger := New(newMemStore())
	mint := &wire.Mint{AssetID: hashWithByte(1), Value: 100, Creator: hashWithByte(2)}
	require.NoError(t, ledger.ConnectMint(mint, hashWithByte(10)))

	burn := &wire.Burn{AssetID: hashWithByte(1), Value: 40}
	require.NoError(t, ledger.ConnectBurn(burn))

	asset, _, err := ledger.Get(mint.AssetID)
	require.NoError(t, err)
	require.Equal(t, uint64(60), asset.Supply)

	require.NoError(t, ledger.DisconnectBurn(burn))
	asset, _, err = ledger.Get(mint.AssetID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), asset.Supply)
}

func TestBurnUnderflowRejected(t *testing.T) {
	ledger := New(newMemStore())
	mint := &wire.Mint{AssetID: hashWithByte(1), Value: 10, Creator: hashWithByte(2)}
	require.NoError(t, ledger.ConnectMint(mint, hashWithByte(10)))

	burn := &wire.Burn{AssetID: hashWithByte(1), Value: 100}
	require.ErrorIs(t, ledger.ConnectBurn(burn), ErrSupplyUnderflow)
}

func TestDeriveAssetIDDeterministic(t *testing.T) {
	hasher := sum256Fn{}
	id1 := DeriveAssetID(hasher, hashWithByte(1), []byte("gold"), []byte("meta"), 7)
	id2 := DeriveAssetID(hasher, hashWithByte(1), []byte("gold"), []byte("meta"), 7)
	require.Equal(t, id1, id2)

	id3 := DeriveAssetID(hasher, hashWithByte(1), []byte("gold"), []byte("meta"), 8)
	require.NotEqual(t, id1, id3)
}

type sum256Fn struct{}

func (sum256Fn) Sum256(data []byte) types.Hash {
	var h types.Hash
	for i, b := range data {
		h[i%types.HashSize] ^= b
	}
	return h
}
