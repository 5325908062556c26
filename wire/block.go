// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"

	"github.com/umbra-chain/umbrad/types"
)

// Block is header || varint(tx_count) || for each tx: varint(len) ||
// tx_bytes.
type Block struct {
	Header       *BlockHeader
	Transactions []*Transaction
}

// Serialize writes the block's canonical wire bytes.
func (b *Block) Serialize(w *bytes.Buffer) error {
	if err := b.Header.Serialize(w); err != nil {
		return err
	}
	if err := writeVarInt(w, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		var txBuf bytes.Buffer
		if err := tx.Serialize(&txBuf); err != nil {
			return err
		}
		if err := writeVarBytes(w, txBuf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the block's canonical serialization.
func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	_ = b.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeBlock reads a Block from its canonical wire bytes.
func DeserializeBlock(data []byte) (*Block, error) {
	r := bytes.NewReader(data)
	header, err := DeserializeHeader(r)
	if err != nil {
		return nil, err
	}
	txCount, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	if txCount > MaxMessagePayload {
		return nil, ErrMessageTooLarge
	}
	block := &Block{Header: header}
	for i := uint64(0); i < txCount; i++ {
		txBytes, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}
		tx, err := Deserialize(bytes.NewReader(txBytes))
		if err != nil {
			return nil, err
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

// ComputeTransactionsHash derives the header's transactions_hash field:
// the hasher applied to the concatenation of each transaction's own
// hash, in block order. Committing to the per-transaction hashes rather
// than the raw concatenated bytes keeps this cheap to recompute
// incrementally as transactions are assembled.
func ComputeTransactionsHash(hasher Hasher, txs []*Transaction) types.Hash {
	var buf bytes.Buffer
	for _, tx := range txs {
		h := tx.Hash(hasher)
		buf.Write(h.Bytes())
	}
	return hasher.Sum256(buf.Bytes())
}

// Hash returns the block's identifying hash: its header's PoW hash.
func (b *Block) Hash(hasher Hasher) types.Hash {
	return b.Header.Hash(hasher)
}

// MinersFee returns the block's first transaction, which by convention
// (and the non-contextual rule requiring exactly one) is the implicit
// miner's-fee transaction, or nil if the block has no transactions.
func (b *Block) MinersFee() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// Size returns the block's total serialized size in bytes, used to
// enforce max_block_size_bytes.
func (b *Block) Size() int {
	return len(b.Bytes())
}
