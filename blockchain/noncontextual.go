// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/umbra-chain/umbrad/wire"
)

// Proof verification circuit identifiers. These strings only let one
// ProofVerifier distinguish which verifying key applies; the circuits
// themselves live behind that interface.
const (
	circuitSpend  = "umbra/spend/v1"
	circuitOutput = "umbra/output/v1"
	circuitMint   = "umbra/mint/v1"
	circuitBurn   = "umbra/burn/v1"
)

// checkNonContextual runs every rule that is pure and self-contained on
// the block, needing no chain state -- safe to run before the parent is
// even known, or to vet a transaction for the mempool.
func (b *Blockchain) checkNonContextual(block *wire.Block) *RuleError {
	if err := b.checkBlockSize(block); err != nil {
		return err
	}
	if err := checkHeaderWellFormed(block.Header); err != nil {
		return err
	}
	if err := checkProofOfWork(block.Header, b.cfg.blockHasher); err != nil {
		return err
	}
	if err := checkMinersFee(block, b.cfg.params.Reward.MiningReward(block.Header.Sequence)); err != nil {
		return err
	}
	if err := checkNoDuplicateNullifiersInBlock(block); err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		if err := b.checkTransactionNonContextual(tx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Blockchain) checkBlockSize(block *wire.Block) *RuleError {
	if int64(block.Size()) > b.cfg.params.MaxBlockSize {
		return ruleErr(ErrInvalidBlockSize, "block size %d exceeds max %d", block.Size(), b.cfg.params.MaxBlockSize)
	}
	return nil
}

func checkHeaderWellFormed(h *wire.BlockHeader) *RuleError {
	if h == nil {
		return ruleErr(ErrInvalidSequence, "nil header")
	}
	if h.Sequence == 0 {
		return ruleErr(ErrInvalidSequence, "sequence must be >= 1")
	}
	return nil
}

func checkProofOfWork(h *wire.BlockHeader, hasher wire.Hasher) *RuleError {
	hash := h.Hash(hasher)
	if !h.MeetsTarget(hash) {
		return ruleErr(ErrInvalidPow, "header hash %s does not meet target", hash)
	}
	return nil
}

// checkMinersFee enforces: exactly one miner's-fee transaction (the
// first), and its fee balances the block -- equal to the negation of
// every other transaction's fee plus the mining reward.
func checkMinersFee(block *wire.Block, reward uint64) *RuleError {
	if len(block.Transactions) == 0 {
		return ruleErr(ErrInvalidMinersFee, "block has no transactions")
	}
	minersFee := block.Transactions[0]
	if !minersFee.IsMinersFee() {
		return ruleErr(ErrInvalidMinersFee, "first transaction is not a miner's fee transaction")
	}
	var sumOtherFees int64
	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}
		if tx.IsMinersFee() {
			return ruleErr(ErrInvalidMinersFee, "more than one miner's fee transaction")
		}
		sumOtherFees += tx.Fee
	}
	expected := -(sumOtherFees + int64(reward))
	if minersFee.Fee != expected {
		return ruleErr(ErrInvalidMinersFee, "miner's fee %d does not equal expected %d", minersFee.Fee, expected)
	}
	return nil
}

func checkNoDuplicateNullifiersInBlock(block *wire.Block) *RuleError {
	seen := make(map[string]struct{})
	for _, tx := range block.Transactions {
		for _, spend := range tx.Spends {
			key := string(spend.Nullifier.Bytes())
			if _, ok := seen[key]; ok {
				return ruleErr(ErrDuplicateNullifier, "duplicate nullifier %s within block", spend.Nullifier)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

func (b *Blockchain) checkTransactionNonContextual(tx *wire.Transaction) *RuleError {
	total := len(tx.Spends) + len(tx.Outputs) + len(tx.Mints) + len(tx.Burns)
	if total == 0 {
		return ruleErr(ErrEmptyTransaction, "transaction has no spends, outputs, mints, or burns")
	}
	if !tx.IsMinersFee() && tx.Fee < b.cfg.params.MinFee {
		return ruleErr(ErrFeeTooLow, "fee %d below minimum %d", tx.Fee, b.cfg.params.MinFee)
	}
	if err := b.checkSignature(tx); err != nil {
		return err
	}
	if err := b.checkProofs(tx); err != nil {
		return err
	}
	return nil
}

// checkSignature verifies the transaction's binding signature, plus each
// spend's own signature, over the transaction's unsigned bytes.
func (b *Blockchain) checkSignature(tx *wire.Transaction) *RuleError {
	if tx.IsMinersFee() {
		return nil
	}
	msg := tx.UnsignedBytes()
	for _, spend := range tx.Spends {
		pub := spend.RandomizedPk.Bytes()
		if b.cfg.sigCache.Exists(pub, msg, spend.Signature[:]) {
			continue
		}
		if err := b.cfg.signatureVerifier.Verify(pub, msg, spend.Signature[:]); err != nil {
			return ruleErr(ErrInvalidSignature, "spend signature: %v", err)
		}
		b.cfg.sigCache.Add(pub, msg, spend.Signature[:])
	}
	pub := tx.RandomizedPk.Bytes()
	if !b.cfg.sigCache.Exists(pub, msg, tx.BindingSig[:]) {
		if err := b.cfg.signatureVerifier.Verify(pub, msg, tx.BindingSig[:]); err != nil {
			return ruleErr(ErrInvalidSignature, "binding signature: %v", err)
		}
		b.cfg.sigCache.Add(pub, msg, tx.BindingSig[:])
	}
	return nil
}

// checkProofs verifies every zero-knowledge proof carried by tx,
// delegating to the injected ProofVerifier capability.
func (b *Blockchain) checkProofs(tx *wire.Transaction) *RuleError {
	for _, spend := range tx.Spends {
		witness := spendPublicWitness(spend)
		if b.cfg.proofCache.Exists(circuitSpend, spend.Proof[:], witness) {
			continue
		}
		if err := b.cfg.proofVerifier.Verify(circuitSpend, spend.Proof[:], witness); err != nil {
			return ruleErr(ErrInvalidTransactionProof, "spend proof: %v", err)
		}
		b.cfg.proofCache.Add(circuitSpend, spend.Proof[:], witness)
	}
	for _, output := range tx.Outputs {
		witness := outputPublicWitness(output)
		if b.cfg.proofCache.Exists(circuitOutput, output.Proof[:], witness) {
			continue
		}
		if err := b.cfg.proofVerifier.Verify(circuitOutput, output.Proof[:], witness); err != nil {
			return ruleErr(ErrInvalidTransactionProof, "output proof: %v", err)
		}
		b.cfg.proofCache.Add(circuitOutput, output.Proof[:], witness)
	}
	for _, mint := range tx.Mints {
		witness := mintPublicWitness(mint)
		if b.cfg.proofCache.Exists(circuitMint, mint.Proof[:], witness) {
			continue
		}
		if err := b.cfg.proofVerifier.Verify(circuitMint, mint.Proof[:], witness); err != nil {
			return ruleErr(ErrInvalidTransactionProof, "mint proof: %v", err)
		}
		b.cfg.proofCache.Add(circuitMint, mint.Proof[:], witness)
	}
	for _, burn := range tx.Burns {
		witness := burnPublicWitness(burn)
		if b.cfg.proofCache.Exists(circuitBurn, burn.Proof[:], witness) {
			continue
		}
		if err := b.cfg.proofVerifier.Verify(circuitBurn, burn.Proof[:], witness); err != nil {
			return ruleErr(ErrInvalidTransactionProof, "burn proof: %v", err)
		}
		b.cfg.proofCache.Add(circuitBurn, burn.Proof[:], witness)
	}
	return nil
}

func spendPublicWitness(s *wire.Spend) []byte {
	out := make([]byte, 0, 32*4+4)
	out = append(out, s.ValueCommitment.Bytes()...)
	out = append(out, s.RandomizedPk.Bytes()...)
	out = append(out, s.Root.Bytes()...)
	out = append(out, s.Nullifier.Bytes()...)
	return out
}

func outputPublicWitness(o *wire.Output) []byte {
	return append(append([]byte{}, o.Proof[:]...), o.EncryptedNote...)
}

func mintPublicWitness(m *wire.Mint) []byte {
	out := make([]byte, 0, 96)
	out = append(out, m.AssetID.Bytes()...)
	out = append(out, m.Creator.Bytes()...)
	if m.TransferOwnershipTo != nil {
		out = append(out, m.TransferOwnershipTo.Bytes()...)
	}
	return out
}

func burnPublicWitness(b *wire.Burn) []byte {
	return b.AssetID.Bytes()
}
