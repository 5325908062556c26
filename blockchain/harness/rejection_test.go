// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDuplicateNullifierWithinBlockRejected spends the same note twice
// in one block by reusing the first spend's nullifier on a second,
// otherwise-independent spend transaction: checkNoDuplicateNullifiersInBlock
// must catch it before either spend is ever checked contextually.
func TestDuplicateNullifierWithinBlockRejected(t *testing.T) {
	h := newRegtestHarness(t)
	_, err := h.MineBlock(BlockOrders{ExtraOutputs: []uint64{10, 10}})
	require.NoError(t, err)
	notes := h.SpendableNotes()
	require.Len(t, notes, 3)

	block, _, err := h.BuildBlock(BlockOrders{
		Spends: []SpendOrder{
			{Nullifier: notes[0].Nullifier, OutputValue: 5},
			{Nullifier: notes[1].Nullifier, OutputValue: 5},
		},
	})
	require.NoError(t, err)

	// Overwrite the second spend's nullifier with the first's, so the
	// block carries a repeated nullifier across two distinct spends.
	block.Transactions[2].Spends[0].Nullifier = block.Transactions[1].Spends[0].Nullifier

	result, err := h.Chain.AddBlock(block)
	require.NoError(t, err)
	require.False(t, result.Added)
	require.NotEmpty(t, result.Reason)
}

// TestInvalidSpendSignatureRejected corrupts a spend's signature after
// BuildBlock constructs a chain-valid block, so checkSignature's
// spend-signature verification must reject it.
func TestInvalidSpendSignatureRejected(t *testing.T) {
	h := newRegtestHarness(t)
	_, err := h.MineBlock(BlockOrders{ExtraOutputs: []uint64{10}})
	require.NoError(t, err)
	note := h.SpendableNotes()[0]

	block, _, err := h.BuildBlock(BlockOrders{
		Spends: []SpendOrder{{Nullifier: note.Nullifier, OutputValue: 10}},
	})
	require.NoError(t, err)

	spendTx := block.Transactions[1]
	spendTx.Spends[0].Signature[0] ^= 0xff

	result, err := h.Chain.AddBlock(block)
	require.NoError(t, err)
	require.False(t, result.Added)
	require.NotEmpty(t, result.Reason)
}

// TestInvalidBindingSignatureRejected corrupts a transaction's binding
// signature: checkSignature must reject it even though every spend
// signature remains valid.
func TestInvalidBindingSignatureRejected(t *testing.T) {
	h := newRegtestHarness(t)
	block, _, err := h.BuildBlock(BlockOrders{ExtraOutputs: []uint64{10}})
	require.NoError(t, err)

	outputTx := block.Transactions[1]
	outputTx.BindingSig[0] ^= 0xff

	result, err := h.Chain.AddBlock(block)
	require.NoError(t, err)
	require.False(t, result.Added)
	require.NotEmpty(t, result.Reason)
}

// TestStaleTransactionVersionRejected bumps a transaction's version
// past what regtest requires at the connecting sequence: the required
// version is pinned to what the harness already mints, so any other
// value must be rejected.
func TestStaleTransactionVersionRejected(t *testing.T) {
	h := newRegtestHarness(t)
	block, _, err := h.BuildBlock(BlockOrders{ExtraOutputs: []uint64{10}})
	require.NoError(t, err)

	block.Transactions[1].Version++

	result, err := h.Chain.AddBlock(block)
	require.NoError(t, err)
	require.False(t, result.Added)
	require.NotEmpty(t, result.Reason)
}
