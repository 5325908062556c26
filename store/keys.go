// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package store implements the persistent indices backing the chain
// engine -- headers, transactions, sequence-to-hashes, and chain
// metadata -- plus the leaf/size storage backing the notes and
// nullifier trees and the asset ledger. Every mutation within one block
// connect or disconnect is staged into a single ds.Batch and committed
// atomically, so no reader ever observes a partially applied block.
package store

import (
	"encoding/binary"
	"fmt"

	ds "github.com/ipfs/go-datastore"

	"github.com/umbra-chain/umbrad/types"
)

var (
	headersPrefix     = ds.NewKey("/headers")
	transactionsPrefix = ds.NewKey("/transactions")
	sequencePrefix    = ds.NewKey("/sequence")
	metaPrefix        = ds.NewKey("/meta")
	notesLeafPrefix   = ds.NewKey("/notes/leaf")
	notesSizeKey      = ds.NewKey("/notes/size")
	nullifierLeafPrefix = ds.NewKey("/nullifiers/leaf")
	nullifierSizeKey   = ds.NewKey("/nullifiers/size")
	assetsPrefix      = ds.NewKey("/assets")
	ownerHistoryPrefix = ds.NewKey("/assets/owner-history")
	invalidPrefix     = ds.NewKey("/invalid")
)

const (
	metaHeaviestKey = "heaviest"
	metaLatestKey   = "latest"
	metaGenesisKey  = "genesis"
)

func headerKey(hash types.Hash) ds.Key {
	return headersPrefix.ChildString(hash.String())
}

func transactionsKey(hash types.Hash) ds.Key {
	return transactionsPrefix.ChildString(hash.String())
}

func sequenceKey(sequence uint32, hash types.Hash) ds.Key {
	return sequencePrefix.ChildString(fmt.Sprintf("%010d", sequence)).ChildString(hash.String())
}

func sequencePrefixKey(sequence uint32) ds.Key {
	return sequencePrefix.ChildString(fmt.Sprintf("%010d", sequence))
}

func metaKey(name string) ds.Key {
	return metaPrefix.ChildString(name)
}

func notesLeafKey(index uint32) ds.Key {
	return notesLeafPrefix.ChildString(fmt.Sprintf("%010d", index))
}

func nullifierLeafKey(index uint32) ds.Key {
	return nullifierLeafPrefix.ChildString(fmt.Sprintf("%010d", index))
}

func assetKey(id types.Hash) ds.Key {
	return assetsPrefix.ChildString(id.String())
}

func ownerHistoryKey(id, txHash types.Hash) ds.Key {
	return ownerHistoryPrefix.ChildString(id.String()).ChildString(txHash.String())
}

func invalidKey(hash types.Hash) ds.Key {
	return invalidPrefix.ChildString(hash.String())
}

func uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func bytesToUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
