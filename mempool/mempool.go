// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package mempool implements a narrow chain-subscriber boundary: a pool
// of not-yet-mined transactions that reacts to the chain engine's
// connect/disconnect events. Admission policy (fee rules, stake checks,
// propagation) belongs to the syncer and RPC layer and is out of scope
// here; this package only guarantees that after OnConnectBlock returns,
// nothing left in the pool could double-spend against the new head.
package mempool

import (
	"sync"

	"github.com/umbra-chain/umbrad/blockchain"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// Notifier is the interface the chain engine drives post-commit. A
// Mempool satisfies it; callers wire it up with Register.
type Notifier interface {
	OnConnectBlock(block *wire.Block)
	OnDisconnectBlock(block *wire.Block)
}

// entry is one pooled transaction.
type entry struct {
	tx         *wire.Transaction
	nullifiers []types.Hash
	expiration uint32
}

// Mempool holds transactions not yet included in a block, indexed both
// by transaction hash and by the nullifiers they would consume, so a
// connecting block's nullifiers can be resolved to the transactions they
// invalidate in O(spends) rather than a scan of the whole pool. Expired
// transactions are found by scanning the whole pool.
type Mempool struct {
	hasher wire.Hasher

	mu          sync.Mutex
	txs         map[types.Hash]*entry
	byNullifier map[types.Hash]types.Hash
}

// New constructs an empty Mempool. hasher is used to compute transaction
// hashes for pool bookkeeping; it should be the same hasher the chain
// engine hashes transactions with.
func New(hasher wire.Hasher) *Mempool {
	return &Mempool{
		hasher:      hasher,
		txs:         make(map[types.Hash]*entry),
		byNullifier: make(map[types.Hash]types.Hash),
	}
}

// Register subscribes mp to chain's connect/disconnect events, adapting
// the chain engine's (block, previousHead) callback signature down to
// the Notifier contract.
func Register(chain *blockchain.Blockchain, mp *Mempool) {
	chain.OnConnectBlock(func(block *wire.Block, _ *wire.BlockHeader) {
		mp.OnConnectBlock(block)
	})
	chain.OnDisconnectBlock(func(block *wire.Block, _ *wire.BlockHeader) {
		mp.OnDisconnectBlock(block)
	})
}

// Accept admits tx into the pool. This is a placeholder: the chain
// engine never calls this, only the syncer or RPC layer does, and no
// fee/stake/propagation policy is implemented here. It records tx
// unconditionally, keyed by hash, so OnConnectBlock and
// OnDisconnectBlock have something to act on in tests and in the
// embedding binary until a real admission policy is layered on top.
func (m *Mempool) Accept(tx *wire.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(tx)
	return nil
}

// insert pools tx, evicting any already-pooled transaction that
// conflicts with it by nullifier. Callers must hold m.mu.
func (m *Mempool) insert(tx *wire.Transaction) {
	hash := tx.Hash(m.hasher)
	nullifiers := make([]types.Hash, 0, len(tx.Spends))
	for _, spend := range tx.Spends {
		nullifiers = append(nullifiers, spend.Nullifier)
	}

	// A nullifier can only be pending once: inserting a transaction that
	// conflicts with an already-pooled one evicts the older entry, so
	// byNullifier never maps a nullifier to a transaction that no longer
	// claims it.
	for _, n := range nullifiers {
		if conflicting, ok := m.byNullifier[n]; ok && conflicting != hash {
			m.remove(conflicting)
		}
	}

	m.txs[hash] = &entry{tx: tx, nullifiers: nullifiers, expiration: tx.Expiration}
	for _, n := range nullifiers {
		m.byNullifier[n] = hash
	}
}

// Has reports whether a transaction with the given hash is pooled.
func (m *Mempool) Has(hash types.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.txs[hash]
	return ok
}

// Len returns the number of pooled transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// OnConnectBlock removes every pooled transaction whose nullifiers now
// appear on chain (they are spent, and reinserting them would double-
// spend), and every pooled transaction whose expiration has elapsed as
// of the new head's sequence.
func (m *Mempool) OnConnectBlock(block *wire.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range block.Transactions {
		for _, spend := range tx.Spends {
			if hash, ok := m.byNullifier[spend.Nullifier]; ok {
				log.Debugf("mempool: evicting tx %s, nullifier spent on chain", hash)
				m.remove(hash)
			}
		}
	}

	sequence := block.Header.Sequence
	for hash, e := range m.txs {
		if e.expiration != 0 && e.expiration <= sequence {
			log.Debugf("mempool: evicting expired tx %s", hash)
			m.remove(hash)
		}
	}
}

// OnDisconnectBlock reconsiders a disconnected block's transactions for
// re-admission: their nullifiers are released, so they no longer
// conflict with the (now shorter) chain. No policy decides whether they
// are still otherwise valid (fee, expiration against the new head) --
// that is left to whatever calls Accept.
func (m *Mempool) OnDisconnectBlock(block *wire.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range block.Transactions {
		m.insert(tx)
	}
	log.Debugf("mempool: reconsidered %d tx from disconnected block for re-admission", len(block.Transactions))
}

// remove deletes the pooled transaction with the given hash, if any.
// Callers must hold m.mu.
func (m *Mempool) remove(hash types.Hash) {
	e, ok := m.txs[hash]
	if !ok {
		return
	}
	for _, n := range e.nullifiers {
		delete(m.byNullifier, n)
	}
	delete(m.txs, hash)
}
