// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/umbra-chain/umbrad/types"
)

var blockHashDomain = []byte("umbra/block/hash")

// BlockHasher implements wire.Hasher: the PoW hash function applied to a
// header's or transaction's canonical serialization.
type BlockHasher struct{}

// Sum256 hashes data with a domain-separated blake2b-256.
func (BlockHasher) Sum256(data []byte) types.Hash {
	h, _ := blake2b.New256(blockHashDomain)
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
