// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	ds "github.com/ipfs/go-datastore"

	"github.com/umbra-chain/umbrad/crypto"
	"github.com/umbra-chain/umbrad/merkletree"
	"github.com/umbra-chain/umbrad/params"
)

const (
	DefaultSigCacheSize     = 100000
	DefaultProofCacheSize   = 100000
	DefaultMaxOrphans       = 1024
	DefaultOrphanChainLimit = 100
)

// DefaultOptions returns a blockchain configure option that fills in the
// default settings. Callers will almost certainly want to override
// Params and Datastore.
func DefaultOptions() Option {
	return func(cfg *config) error {
		cfg.params = &params.RegtestParams
		cfg.datastore = ds.NewMapDatastore()
		cfg.sigCache = NewSigCache(DefaultSigCacheSize)
		cfg.proofCache = NewProofCache(DefaultProofCacheSize)
		cfg.noteHasher = crypto.NewNoteHasher()
		cfg.nullifierHasher = crypto.NewNullifierHasher()
		cfg.blockHasher = crypto.BlockHasher{}
		cfg.proofVerifier = crypto.NewGroth16Verifier()
		cfg.signatureVerifier = crypto.Ed25519Verifier{}
		cfg.maxOrphans = DefaultMaxOrphans
		cfg.orphanChainLimit = DefaultOrphanChainLimit
		return nil
	}
}

// Option configures a Blockchain at construction.
type Option func(cfg *config) error

// Params identifies which network's consensus parameters this chain
// enforces. DefaultOptions sets it to RegtestParams.
func Params(p *params.NetworkParams) Option {
	return func(cfg *config) error {
		cfg.params = p
		return nil
	}
}

// Datastore is the persistent backing store for headers, transactions,
// trees, and the asset ledger. DefaultOptions sets it to a fresh
// in-memory map datastore.
func Datastore(d ds.Batching) Option {
	return func(cfg *config) error {
		cfg.datastore = d
		return nil
	}
}

// SignatureCache caches signature validation so a given (pubkey,
// message, signature) triple is never checked twice.
func SignatureCache(sigCache *SigCache) Option {
	return func(cfg *config) error {
		cfg.sigCache = sigCache
		return nil
	}
}

// SnarkProofCache caches zero-knowledge proof validation so a given
// proof is never checked twice.
func SnarkProofCache(proofCache *ProofCache) Option {
	return func(cfg *config) error {
		cfg.proofCache = proofCache
		return nil
	}
}

// NoteHasher overrides the notes tree's leaf/node hash strategy.
func NoteHasher(h merkletree.Hasher) Option {
	return func(cfg *config) error {
		cfg.noteHasher = h
		return nil
	}
}

// NullifierHasher overrides the nullifier tree's leaf/node hash
// strategy.
func NullifierHasher(h merkletree.Hasher) Option {
	return func(cfg *config) error {
		cfg.nullifierHasher = h
		return nil
	}
}

// ProofVerifier overrides the zero-knowledge proof verification
// strategy.
func ProofVerifier(v crypto.ProofVerifier) Option {
	return func(cfg *config) error {
		cfg.proofVerifier = v
		return nil
	}
}

// SignatureVerifier overrides the transaction signature verification
// strategy.
func SignatureVerifier(v crypto.SignatureVerifier) Option {
	return func(cfg *config) error {
		cfg.signatureVerifier = v
		return nil
	}
}

// MaxOrphans bounds the number of blocks the orphan pool holds at once.
func MaxOrphans(max uint) Option {
	return func(cfg *config) error {
		cfg.maxOrphans = max
		return nil
	}
}

// OrphanChainLimit bounds how many orphans a single add_block call may
// replay transitively. Replay stops at that depth: deeper descendants
// stay parked in the orphan pool, and no ORPHAN_CHAIN_TOO_LONG result is
// reported for them.
func OrphanChainLimit(max uint) Option {
	return func(cfg *config) error {
		cfg.orphanChainLimit = max
		return nil
	}
}

// config holds the resolved blockchain configuration.
type config struct {
	params            *params.NetworkParams
	datastore         ds.Batching
	sigCache          *SigCache
	proofCache        *ProofCache
	noteHasher        merkletree.Hasher
	nullifierHasher   merkletree.Hasher
	blockHasher       crypto.BlockHasher
	proofVerifier     crypto.ProofVerifier
	signatureVerifier crypto.SignatureVerifier
	maxOrphans        uint
	orphanChainLimit  uint
}

func (cfg *config) validate() error {
	if cfg == nil {
		return AssertError("NewBlockchain: blockchain config cannot be nil")
	}
	if cfg.params == nil {
		return AssertError("NewBlockchain: params cannot be nil")
	}
	if cfg.datastore == nil {
		return AssertError("NewBlockchain: datastore cannot be nil")
	}
	if cfg.sigCache == nil {
		return AssertError("NewBlockchain: sig cache cannot be nil")
	}
	if cfg.proofCache == nil {
		return AssertError("NewBlockchain: proof cache cannot be nil")
	}
	if cfg.noteHasher == nil {
		return AssertError("NewBlockchain: note hasher cannot be nil")
	}
	if cfg.nullifierHasher == nil {
		return AssertError("NewBlockchain: nullifier hasher cannot be nil")
	}
	if cfg.proofVerifier == nil {
		return AssertError("NewBlockchain: proof verifier cannot be nil")
	}
	if cfg.signatureVerifier == nil {
		return AssertError("NewBlockchain: signature verifier cannot be nil")
	}
	return nil
}
