// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"golang.org/x/crypto/blake2b"

	"github.com/decred/dcrd/lru"

	"github.com/umbra-chain/umbrad/types"
)

// SigCache memoizes the result of a prior successful signature
// verification so the same (pubkey, message, signature) triple is never
// checked twice.
type SigCache struct {
	cache *lru.Cache
}

// NewSigCache returns a SigCache that remembers up to maxEntries
// previously verified signatures.
func NewSigCache(maxEntries uint) *SigCache {
	return &SigCache{cache: lru.NewCache(maxEntries)}
}

// Add records that (pubKey, message, signature) verified successfully.
func (c *SigCache) Add(pubKey, message, signature []byte) {
	c.cache.Add(sigCacheKey(pubKey, message, signature))
}

// Exists reports whether (pubKey, message, signature) was previously
// recorded as valid.
func (c *SigCache) Exists(pubKey, message, signature []byte) bool {
	return c.cache.Contains(sigCacheKey(pubKey, message, signature))
}

func sigCacheKey(pubKey, message, signature []byte) types.Hash {
	h, _ := blake2b.New256([]byte("umbra/sigcache"))
	h.Write(pubKey)
	h.Write(message)
	h.Write(signature)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ProofCache memoizes the result of a prior successful zero-knowledge
// proof verification, keyed by the proof bytes and its public witness.
type ProofCache struct {
	cache *lru.Cache
}

// NewProofCache returns a ProofCache that remembers up to maxEntries
// previously verified proofs.
func NewProofCache(maxEntries uint) *ProofCache {
	return &ProofCache{cache: lru.NewCache(maxEntries)}
}

// Add records that (circuitID, proof, publicWitness) verified
// successfully.
func (c *ProofCache) Add(circuitID string, proof, publicWitness []byte) {
	c.cache.Add(proofCacheKey(circuitID, proof, publicWitness))
}

// Exists reports whether (circuitID, proof, publicWitness) was
// previously recorded as valid.
func (c *ProofCache) Exists(circuitID string, proof, publicWitness []byte) bool {
	return c.cache.Contains(proofCacheKey(circuitID, proof, publicWitness))
}

func proofCacheKey(circuitID string, proof, publicWitness []byte) types.Hash {
	h, _ := blake2b.New256([]byte("umbra/proofcache"))
	h.Write([]byte(circuitID))
	h.Write(proof)
	h.Write(publicWitness)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
