// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"container/list"

	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// orphanPool is the bounded pool that parks blocks whose parent hasn't
// arrived yet: entries are keyed by each block's own hash, a block's
// children are found by scanning for a matching previous_hash, and a cap
// with LRU eviction bounds memory. container/list gives
// O(1) move-to-front and eviction
// without needing a membership-only structure that can't carry a
// payload; github.com/decred/dcrd/lru (used for SigCache/ProofCache
// above) only tracks membership, not values, so it can't keep a block's
// bytes next to its eviction order.
type orphanPool struct {
	max     uint
	entries map[types.Hash]*list.Element
	order   *list.List // of *orphanEntry, front = most recently added
}

type orphanEntry struct {
	hash         types.Hash
	previousHash types.Hash
	block        *wire.Block
}

func newOrphanPool(max uint) *orphanPool {
	return &orphanPool{
		max:     max,
		entries: make(map[types.Hash]*list.Element),
		order:   list.New(),
	}
}

// add stores block, keyed by its own hash, and evicts the oldest entry
// if the pool is at capacity. Re-adding an already-present hash refreshes
// its position.
func (p *orphanPool) add(hash types.Hash, block *wire.Block) {
	if elem, ok := p.entries[hash]; ok {
		p.order.MoveToFront(elem)
		return
	}
	if uint(p.order.Len()) >= p.max && p.max > 0 {
		p.evictOldest()
	}
	entry := &orphanEntry{hash: hash, previousHash: block.Header.PreviousHash, block: block}
	elem := p.order.PushFront(entry)
	p.entries[hash] = elem
}

func (p *orphanPool) evictOldest() {
	oldest := p.order.Back()
	if oldest == nil {
		return
	}
	p.order.Remove(oldest)
	delete(p.entries, oldest.Value.(*orphanEntry).hash)
}

// remove deletes an orphan by its own hash, returning whether it was
// present.
func (p *orphanPool) remove(hash types.Hash) bool {
	elem, ok := p.entries[hash]
	if !ok {
		return false
	}
	p.order.Remove(elem)
	delete(p.entries, hash)
	return true
}

// childrenOf returns every orphan directly parented on previousHash, in
// FIFO arrival order, for replay after previousHash's block connects.
func (p *orphanPool) childrenOf(previousHash types.Hash) []*orphanEntry {
	var children []*orphanEntry
	for e := p.order.Back(); e != nil; e = e.Prev() {
		entry := e.Value.(*orphanEntry)
		if entry.previousHash == previousHash {
			children = append(children, entry)
		}
	}
	return children
}

func (p *orphanPool) len() int {
	return p.order.Len()
}
