// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package types holds the small value types shared across every component
// of the chain: hashes, nullifiers, and amounts.
package types

import (
	"bytes"
	"encoding/hex"
	"errors"
)

// HashSize is the number of bytes in a Hash.
const HashSize = 32

// Hash is a 32-byte value used for block hashes, note commitments,
// nullifiers, transaction hashes, and Merkle roots alike.
type Hash [HashSize]byte

// ErrHashWrongLength is returned when decoding a hash from bytes or a hex
// string whose length doesn't match HashSize.
var ErrHashWrongLength = errors.New("invalid hash length")

// NewHash copies b into a new Hash, requiring an exact length match.
func NewHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, ErrHashWrongLength
	}
	copy(h[:], b)
	return h, nil
}

// NewHashFromHex decodes a hex-encoded hash.
func NewHashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return NewHash(b)
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the underlying bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// IsZero reports whether h is the all-zero sentinel hash, used as the
// previous-hash of the genesis block.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Equal reports whether h and other hold the same bytes.
func (h Hash) Equal(other Hash) bool {
	return h == other
}

// Less reports whether h is lexicographically less than other. Used to
// break ties between chains of equal cumulative work.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Nullifier is the per-note unique tag revealed when a note is spent.
// It shares Hash's representation but is kept as a distinct name for
// documentation purposes at call sites.
type Nullifier = Hash
