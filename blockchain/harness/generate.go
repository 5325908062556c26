// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package harness

import (
	"crypto/ed25519"
	"fmt"

	"github.com/umbra-chain/umbrad/assets"
	"github.com/umbra-chain/umbrad/difficulty"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// SpendOrder asks BuildBlock to spend an already-known note and create
// one new note in its place.
type SpendOrder struct {
	Nullifier   types.Hash
	OutputValue uint64
}

// BlockOrders describes one block's worth of non-miner's-fee
// transactions. Every slice is optional; an empty BlockOrders produces a
// block containing only the miner's-fee transaction.
type BlockOrders struct {
	// Spends pairs each already-spendable note with the value of the
	// fresh note its spend creates, one transaction per pair.
	Spends []SpendOrder
	// ExtraOutputs mints brand-new, spend-free notes (each its own
	// transaction) with the given values -- the harness's equivalent of
	// a faucet, since genesis's own output carries no known private key.
	ExtraOutputs []uint64
	// ExpiringOutputs is ExtraOutputs with an explicit expiration
	// sequence on each transaction, for exercising TX_EXPIRED.
	ExpiringOutputs []ExpiringOutput
	// Mints and Burns are carried one per transaction, in the order
	// given.
	Mints []*wire.Mint
	Burns []*wire.Burn
}

// ExpiringOutput is a spend-free output whose transaction expires at a
// given sequence.
type ExpiringOutput struct {
	Value      uint64
	Expiration uint32
}

// BuildBlock assembles a candidate block extending h.Tip from orders,
// without touching h's own bookkeeping: the block can be fed directly
// to h.Chain.AddBlock, corrupted for a negative test before submission,
// or discarded. Advance (or MineBlock) commits the returned block and
// notes into h once the caller is ready to extend the harness's own
// view of the chain.
func (h *TestHarness) BuildBlock(orders BlockOrders) (*wire.Block, []*SpendableNote, error) {
	var txs []*wire.Transaction
	var newNotes []*SpendableNote

	for _, so := range orders.Spends {
		tx, note, err := h.buildSpendTx(so)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, tx)
		newNotes = append(newNotes, note)
	}
	for _, value := range orders.ExtraOutputs {
		tx, note, err := h.buildOutputOnlyTx(value, 0)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, tx)
		newNotes = append(newNotes, note)
	}
	for _, eo := range orders.ExpiringOutputs {
		tx, note, err := h.buildOutputOnlyTx(eo.Value, eo.Expiration)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, tx)
		newNotes = append(newNotes, note)
	}
	for _, mint := range orders.Mints {
		tx, err := h.buildMintTx(mint)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, tx)
	}
	for _, burn := range orders.Burns {
		tx, err := h.buildBurnTx(burn)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, tx)
	}

	sequence := h.Tip.Sequence + 1
	reward := h.Params.Reward.MiningReward(sequence)
	var sumOtherFees int64
	for _, tx := range txs {
		sumOtherFees += tx.Fee
	}
	minerTx, minerNote, err := h.buildMinersFeeTx(-(sumOtherFees + int64(reward)))
	if err != nil {
		return nil, nil, err
	}
	txs = append([]*wire.Transaction{minerTx}, txs...)
	newNotes = append([]*SpendableNote{minerNote}, newNotes...)

	header, err := h.buildHeader(txs, sequence)
	if err != nil {
		return nil, nil, err
	}

	for _, note := range newNotes {
		note.TreeSize = header.NoteSize
	}

	return &wire.Block{Header: header, Transactions: txs}, newNotes, nil
}

// MineBlock is BuildBlock followed by Advance: the common case of
// building a block and immediately extending the harness with it.
func (h *TestHarness) MineBlock(orders BlockOrders) (*wire.Block, error) {
	block, notes, err := h.BuildBlock(orders)
	if err != nil {
		return nil, err
	}
	if err := h.Advance(block, notes); err != nil {
		return nil, err
	}
	return block, nil
}

// Advance submits block to the underlying chain and, as long as it was
// structurally accepted (result.Reason empty -- whether or not it
// became the new heaviest tip, since a valid side-chain entry is not a
// rejection), updates the harness's own bookkeeping: the note/nullifier
// leaf lists, and the spendable-note set (removing what block's spends
// consumed, adding notes). This lets two forked harnesses each extend
// their own non-heaviest branch across several blocks before one
// overtakes the other.
func (h *TestHarness) Advance(block *wire.Block, notes []*SpendableNote) error {
	result, err := h.Chain.AddBlock(block)
	if err != nil {
		return fmt.Errorf("harness: AddBlock: %w", err)
	}
	if result.Reason != "" {
		return fmt.Errorf("harness: block at sequence %d rejected: %s", block.Header.Sequence, result.Reason)
	}

	for _, tx := range block.Transactions {
		for _, output := range tx.Outputs {
			h.noteLeaves = append(h.noteLeaves, outputCommitment(h.noteHasher, output))
		}
		for _, spend := range tx.Spends {
			h.nullifierLeaves = append(h.nullifierLeaves, h.nullifierHasher.HashLeaf(spend.Nullifier.Bytes()))
			delete(h.spendable, spend.Nullifier)
		}
	}
	for _, note := range notes {
		h.spendable[note.Nullifier] = note
	}

	h.prevTip = h.Tip
	h.Tip = block.Header
	h.timeNow = block.Header.Timestamp
	return nil
}

// buildSpendTx spends the known note behind so.Nullifier and creates one
// fresh note of value so.OutputValue, signed by both the spend's owner
// key and a freshly generated binding key.
func (h *TestHarness) buildSpendTx(so SpendOrder) (*wire.Transaction, *SpendableNote, error) {
	note, ok := h.spendable[so.Nullifier]
	if !ok {
		return nil, nil, fmt.Errorf("harness: no spendable note for nullifier %s", so.Nullifier)
	}

	root, err := rootAt(h.noteHasher, h.noteLeaves, note.TreeSize)
	if err != nil {
		return nil, nil, fmt.Errorf("harness: historical note root at size %d: %w", note.TreeSize, err)
	}

	ownerPub := note.Owner.Public().(ed25519.PublicKey)
	ownerPubHash, err := types.NewHash(ownerPub)
	if err != nil {
		return nil, nil, err
	}

	_, newOwnerPriv, err := randomKeypair()
	if err != nil {
		return nil, nil, err
	}

	spend := &wire.Spend{
		Root:     root,
		TreeSize: note.TreeSize,
	}
	copy(spend.Proof[:], randomBytes(len(spend.Proof)))
	valueCommitment, err := types.NewHash(randomBytes(types.HashSize))
	if err != nil {
		return nil, nil, err
	}
	spend.ValueCommitment = valueCommitment
	spend.RandomizedPk = ownerPubHash
	spend.Nullifier = so.Nullifier

	output := &wire.Output{EncryptedNote: randomBytes(wire.OutputCiphertextV1)}
	copy(output.Proof[:], randomBytes(wire.ProofSize))

	bindingPub, bindingPriv, err := randomKeypair()
	if err != nil {
		return nil, nil, err
	}
	bindingPubHash, err := types.NewHash(bindingPub)
	if err != nil {
		return nil, nil, err
	}

	tx := &wire.Transaction{
		Version:      h.Params.LatestTransactionVersionAt(h.Tip.Sequence + 1),
		Spends:       []*wire.Spend{spend},
		Outputs:      []*wire.Output{output},
		Fee:          h.Params.MinFee,
		RandomizedPk: bindingPubHash,
	}

	msg := tx.UnsignedBytes()
	spendSig := ed25519.Sign(note.Owner, msg)
	copy(spend.Signature[:], spendSig)
	bindingSig := ed25519.Sign(bindingPriv, msg)
	copy(tx.BindingSig[:], bindingSig)

	newNullifier, err := types.NewHash(randomBytes(types.HashSize))
	if err != nil {
		return nil, nil, err
	}
	newNote := &SpendableNote{
		Nullifier: newNullifier,
		Amount:    so.OutputValue,
		Owner:     newOwnerPriv,
	}
	return tx, newNote, nil
}

// buildOutputOnlyTx creates a single spend-free note of the given value.
// It still carries a binding signature -- Fee is zero, so IsMinersFee is
// false and checkSignature still verifies the binding signature, even
// though the spend loop it guards is empty.
func (h *TestHarness) buildOutputOnlyTx(value uint64, expiration uint32) (*wire.Transaction, *SpendableNote, error) {
	_, ownerPriv, err := randomKeypair()
	if err != nil {
		return nil, nil, err
	}

	output := &wire.Output{EncryptedNote: randomBytes(wire.OutputCiphertextV1)}
	copy(output.Proof[:], randomBytes(wire.ProofSize))

	bindingPub, bindingPriv, err := randomKeypair()
	if err != nil {
		return nil, nil, err
	}
	bindingPubHash, err := types.NewHash(bindingPub)
	if err != nil {
		return nil, nil, err
	}

	tx := &wire.Transaction{
		Version:      h.Params.LatestTransactionVersionAt(h.Tip.Sequence + 1),
		Outputs:      []*wire.Output{output},
		Fee:          h.Params.MinFee,
		Expiration:   expiration,
		RandomizedPk: bindingPubHash,
	}
	msg := tx.UnsignedBytes()
	bindingSig := ed25519.Sign(bindingPriv, msg)
	copy(tx.BindingSig[:], bindingSig)

	nullifier, err := types.NewHash(randomBytes(types.HashSize))
	if err != nil {
		return nil, nil, err
	}
	note := &SpendableNote{Nullifier: nullifier, Amount: value, Owner: ownerPriv}
	return tx, note, nil
}

// buildMintTx wraps mint in its own transaction with a throwaway binding
// key; mints carry no spends of their own, so only the binding signature
// is exercised.
func (h *TestHarness) buildMintTx(mint *wire.Mint) (*wire.Transaction, error) {
	bindingPub, bindingPriv, err := randomKeypair()
	if err != nil {
		return nil, err
	}
	bindingPubHash, err := types.NewHash(bindingPub)
	if err != nil {
		return nil, err
	}
	tx := &wire.Transaction{
		Version:      h.Params.LatestTransactionVersionAt(h.Tip.Sequence + 1),
		Mints:        []*wire.Mint{mint},
		RandomizedPk: bindingPubHash,
	}
	msg := tx.UnsignedBytes()
	sig := ed25519.Sign(bindingPriv, msg)
	copy(tx.BindingSig[:], sig)
	return tx, nil
}

// buildBurnTx is buildMintTx's mirror for a standalone burn.
func (h *TestHarness) buildBurnTx(burn *wire.Burn) (*wire.Transaction, error) {
	bindingPub, bindingPriv, err := randomKeypair()
	if err != nil {
		return nil, err
	}
	bindingPubHash, err := types.NewHash(bindingPub)
	if err != nil {
		return nil, err
	}
	tx := &wire.Transaction{
		Version:      h.Params.LatestTransactionVersionAt(h.Tip.Sequence + 1),
		Burns:        []*wire.Burn{burn},
		RandomizedPk: bindingPubHash,
	}
	msg := tx.UnsignedBytes()
	sig := ed25519.Sign(bindingPriv, msg)
	copy(tx.BindingSig[:], sig)
	return tx, nil
}

// buildMinersFeeTx builds the implicit first transaction of every block:
// no spends, fee strictly negative, one reward output. checkSignature
// skips it entirely (IsMinersFee), but checkProofs still verifies its
// output proof, so it still needs a (mock-verified) proof.
func (h *TestHarness) buildMinersFeeTx(fee int64) (*wire.Transaction, *SpendableNote, error) {
	_, ownerPriv, err := randomKeypair()
	if err != nil {
		return nil, nil, err
	}

	output := &wire.Output{EncryptedNote: randomBytes(wire.OutputCiphertextV1)}
	copy(output.Proof[:], randomBytes(wire.ProofSize))

	tx := &wire.Transaction{
		Version: h.Params.LatestTransactionVersionAt(h.Tip.Sequence + 1),
		Outputs: []*wire.Output{output},
		Fee:     fee,
	}

	nullifier, err := types.NewHash(randomBytes(types.HashSize))
	if err != nil {
		return nil, nil, err
	}
	reward := uint64(0)
	if fee < 0 {
		reward = uint64(-fee)
	}
	note := &SpendableNote{Nullifier: nullifier, Amount: reward, Owner: ownerPriv}
	return tx, note, nil
}

// buildHeader computes the header that follows h.Tip for txs: sequence,
// previous hash, note/nullifier commitments (replayed through throwaway
// trees seeded from h's own leaf history), retarget, and a timestamp
// spaced exactly Params.TargetBlockTime seconds after the parent so the
// retarget stays pinned at the parent's own target.
func (h *TestHarness) buildHeader(txs []*wire.Transaction, sequence uint32) (*wire.BlockHeader, error) {
	noteLeaves := append([]types.Hash{}, h.noteLeaves...)
	nullifierLeaves := append([]types.Hash{}, h.nullifierLeaves...)
	for _, tx := range txs {
		for _, output := range tx.Outputs {
			noteLeaves = append(noteLeaves, outputCommitment(h.noteHasher, output))
		}
		for _, spend := range tx.Spends {
			nullifierLeaves = append(nullifierLeaves, h.nullifierHasher.HashLeaf(spend.Nullifier.Bytes()))
		}
	}

	noteRoot, err := rootAt(h.noteHasher, noteLeaves, uint32(len(noteLeaves)))
	if err != nil {
		return nil, err
	}
	nullifierRoot, err := rootAt(h.nullifierHasher, nullifierLeaves, uint32(len(nullifierLeaves)))
	if err != nil {
		return nil, err
	}

	timestamp := h.Tip.Timestamp + h.Params.TargetBlockTime*1000

	var spacingSeconds int64
	if h.prevTip == nil {
		spacingSeconds = h.Params.TargetBlockTime
	} else {
		spacingSeconds = (h.Tip.Timestamp - h.prevTip.Timestamp) / 1000
	}
	parentTarget := difficulty.TargetFromBytes(h.Tip.Target)
	powLimit := difficulty.TargetFromBytes(h.Params.PowLimit)
	target := difficulty.NextTarget(parentTarget, spacingSeconds, h.Params.TargetBlockTime, h.Params.RetargetWindow, powLimit)

	previousHash := h.Tip.Hash(h.blockHasher)
	txHash := wire.ComputeTransactionsHash(h.blockHasher, txs)

	header := &wire.BlockHeader{
		Sequence:         sequence,
		PreviousHash:     previousHash,
		NoteRoot:         noteRoot,
		NoteSize:         uint32(len(noteLeaves)),
		NullifierRoot:    nullifierRoot,
		NullifierSize:    uint32(len(nullifierLeaves)),
		Target:           difficulty.TargetToBytes(target),
		Timestamp:        timestamp,
		TransactionsHash: txHash,
	}
	return header, nil
}

// NewMint builds a wire.Mint whose asset_id is correctly derived from
// creator, name, metadata, and nonce, ready to hand to BuildBlock via
// BlockOrders.Mints.
func NewMint(blockHasher wire.Hasher, creator types.Hash, name, metadata []byte, value uint64, nonce uint64, transferTo *types.Hash) *wire.Mint {
	assetID := assets.DeriveAssetID(blockHasher, creator, name, metadata, nonce)
	mint := &wire.Mint{
		AssetID:             assetID,
		Name:                name,
		Metadata:            metadata,
		Value:               value,
		Creator:             creator,
		Nonce:               nonce,
		TransferOwnershipTo: transferTo,
	}
	copy(mint.Proof[:], randomBytes(wire.ProofSize))
	return mint
}

// NewBurn builds a wire.Burn for the given already-minted asset.
func NewBurn(assetID types.Hash, value uint64) *wire.Burn {
	burn := &wire.Burn{AssetID: assetID, Value: value}
	copy(burn.Proof[:], randomBytes(wire.ProofSize))
	return burn
}

// NewIdentityKey generates a fresh ed25519 keypair and returns the
// public half as a types.Hash, suitable as a Mint's Creator.
func NewIdentityKey() (types.Hash, ed25519.PrivateKey, error) {
	pub, priv, err := randomKeypair()
	if err != nil {
		return types.Hash{}, nil, err
	}
	h, err := types.NewHash(pub)
	if err != nil {
		return types.Hash{}, nil, err
	}
	return h, priv, nil
}
