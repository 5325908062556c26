// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import "github.com/umbra-chain/umbrad/wire"

// OnConnectBlockFunc is invoked synchronously, after commit, whenever a
// block becomes part of the heaviest chain.
type OnConnectBlockFunc func(block *wire.Block, previousHead *wire.BlockHeader)

// OnDisconnectBlockFunc is invoked synchronously, after commit, whenever
// a block is removed from the heaviest chain during a reorganization.
type OnDisconnectBlockFunc func(block *wire.Block, previousHead *wire.BlockHeader)

// OnReorganizeFunc is invoked once per reorganization, after every
// constituent disconnect/connect has committed.
type OnReorganizeFunc func(oldHead, newHead, commonAncestor *wire.BlockHeader)

// events holds the subscriber lists: callbacks invoked synchronously
// after commit, deregistered by index token rather than by value
// equality, since function values are not comparable in Go.
type events struct {
	onConnect    []OnConnectBlockFunc
	onDisconnect []OnDisconnectBlockFunc
	onReorganize []OnReorganizeFunc
}

// Subscription identifies a previously registered callback so it can be
// deregistered later.
type Subscription struct {
	kind  subscriptionKind
	index int
}

type subscriptionKind int

const (
	subConnect subscriptionKind = iota
	subDisconnect
	subReorganize
)

// OnConnectBlock registers a callback fired after every successful
// connect (fast-forward or reorg forward-replay).
func (b *Blockchain) OnConnectBlock(fn OnConnectBlockFunc) Subscription {
	b.events.onConnect = append(b.events.onConnect, fn)
	return Subscription{kind: subConnect, index: len(b.events.onConnect) - 1}
}

// OnDisconnectBlock registers a callback fired after every disconnect
// during a reorganization.
func (b *Blockchain) OnDisconnectBlock(fn OnDisconnectBlockFunc) Subscription {
	b.events.onDisconnect = append(b.events.onDisconnect, fn)
	return Subscription{kind: subDisconnect, index: len(b.events.onDisconnect) - 1}
}

// OnReorganize registers a callback fired once per completed
// reorganization.
func (b *Blockchain) OnReorganize(fn OnReorganizeFunc) Subscription {
	b.events.onReorganize = append(b.events.onReorganize, fn)
	return Subscription{kind: subReorganize, index: len(b.events.onReorganize) - 1}
}

// Unsubscribe deregisters a previously registered callback. The slot is
// nilled rather than removed so earlier Subscription indices stay valid.
func (b *Blockchain) Unsubscribe(sub Subscription) {
	switch sub.kind {
	case subConnect:
		if sub.index >= 0 && sub.index < len(b.events.onConnect) {
			b.events.onConnect[sub.index] = nil
		}
	case subDisconnect:
		if sub.index >= 0 && sub.index < len(b.events.onDisconnect) {
			b.events.onDisconnect[sub.index] = nil
		}
	case subReorganize:
		if sub.index >= 0 && sub.index < len(b.events.onReorganize) {
			b.events.onReorganize[sub.index] = nil
		}
	}
}

func (b *Blockchain) fireConnect(block *wire.Block, previousHead *wire.BlockHeader) {
	for _, fn := range b.events.onConnect {
		if fn != nil {
			fn(block, previousHead)
		}
	}
}

func (b *Blockchain) fireDisconnect(block *wire.Block, previousHead *wire.BlockHeader) {
	for _, fn := range b.events.onDisconnect {
		if fn != nil {
			fn(block, previousHead)
		}
	}
}

func (b *Blockchain) fireReorganize(oldHead, newHead, commonAncestor *wire.BlockHeader) {
	for _, fn := range b.events.onReorganize {
		if fn != nil {
			fn(oldHead, newHead, commonAncestor)
		}
	}
}
