// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"

	"github.com/holiman/uint256"

	"github.com/umbra-chain/umbrad/difficulty"
	"github.com/umbra-chain/umbrad/types"
)

// HeaderSize is the fixed serialized size of a BlockHeader in bytes:
// sequence(4) + previous_hash(32) + note_root(32) + note_size(4) +
// nullifier_root(32) + nullifier_size(4) + target(32) + randomness(8) +
// timestamp(8) + graffiti(32) + transactions_hash(32).
const HeaderSize = 4 + 32 + 32 + 4 + 32 + 4 + 32 + 8 + 8 + 32 + 32

// Hasher is the minimal capability BlockHeader needs to compute its own
// hash. It is satisfied by the concrete block-hash function the crypto
// package provides; wire does not import crypto, so any type with this
// method can serve as the hasher.
type Hasher interface {
	Sum256(data []byte) types.Hash
}

// BlockHeader is the fixed-layout header.
type BlockHeader struct {
	Sequence         uint32
	PreviousHash     types.Hash
	NoteRoot         types.Hash
	NoteSize         uint32
	NullifierRoot    types.Hash
	NullifierSize    uint32
	Target           [32]byte
	Randomness       uint64
	Timestamp        int64
	Graffiti         [32]byte
	TransactionsHash types.Hash
}

// Serialize writes the header's canonical big-endian byte layout.
func (h *BlockHeader) Serialize(w *bytes.Buffer) error {
	if err := writeUint32(w, h.Sequence); err != nil {
		return err
	}
	if err := writeFixedBytes(w, h.PreviousHash.Bytes()); err != nil {
		return err
	}
	if err := writeFixedBytes(w, h.NoteRoot.Bytes()); err != nil {
		return err
	}
	if err := writeUint32(w, h.NoteSize); err != nil {
		return err
	}
	if err := writeFixedBytes(w, h.NullifierRoot.Bytes()); err != nil {
		return err
	}
	if err := writeUint32(w, h.NullifierSize); err != nil {
		return err
	}
	if err := writeFixedBytes(w, h.Target[:]); err != nil {
		return err
	}
	if err := writeUint64(w, h.Randomness); err != nil {
		return err
	}
	if err := writeInt64(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeFixedBytes(w, h.Graffiti[:]); err != nil {
		return err
	}
	return writeFixedBytes(w, h.TransactionsHash.Bytes())
}

// Bytes returns the header's canonical serialization.
func (h *BlockHeader) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	// Serialize only fails on an io.Writer error; bytes.Buffer never
	// returns one.
	_ = h.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeHeader reads a BlockHeader from its canonical byte layout.
func DeserializeHeader(r *bytes.Reader) (*BlockHeader, error) {
	h := &BlockHeader{}
	var err error
	if h.Sequence, err = readUint32(r); err != nil {
		return nil, err
	}
	prevHash, err := readFixedBytes(r, types.HashSize)
	if err != nil {
		return nil, err
	}
	if h.PreviousHash, err = types.NewHash(prevHash); err != nil {
		return nil, err
	}
	noteRoot, err := readFixedBytes(r, types.HashSize)
	if err != nil {
		return nil, err
	}
	if h.NoteRoot, err = types.NewHash(noteRoot); err != nil {
		return nil, err
	}
	if h.NoteSize, err = readUint32(r); err != nil {
		return nil, err
	}
	nullRoot, err := readFixedBytes(r, types.HashSize)
	if err != nil {
		return nil, err
	}
	if h.NullifierRoot, err = types.NewHash(nullRoot); err != nil {
		return nil, err
	}
	if h.NullifierSize, err = readUint32(r); err != nil {
		return nil, err
	}
	target, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, err
	}
	copy(h.Target[:], target)
	if h.Randomness, err = readUint64(r); err != nil {
		return nil, err
	}
	if h.Timestamp, err = readInt64(r); err != nil {
		return nil, err
	}
	graffiti, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, err
	}
	copy(h.Graffiti[:], graffiti)
	txHash, err := readFixedBytes(r, types.HashSize)
	if err != nil {
		return nil, err
	}
	if h.TransactionsHash, err = types.NewHash(txHash); err != nil {
		return nil, err
	}
	return h, nil
}

// Hash computes the header's PoW hash: the block-hash function applied
// to the header's canonical serialization.
func (h *BlockHeader) Hash(hasher Hasher) types.Hash {
	return hasher.Sum256(h.Bytes())
}

// TargetInt decodes Target into a uint256.Int for arithmetic.
func (h *BlockHeader) TargetInt() *uint256.Int {
	return difficulty.TargetFromBytes(h.Target)
}

// Work returns this header's contribution to cumulative chain work:
// 2^256 / (target+1).
func (h *BlockHeader) Work() *uint256.Int {
	return difficulty.Difficulty(h.TargetInt())
}

// MeetsTarget reports whether hash <= target, the PoW validity
// condition.
func (h *BlockHeader) MeetsTarget(hash types.Hash) bool {
	hashInt := new(uint256.Int).SetBytes(hash.Bytes())
	return hashInt.Cmp(h.TargetInt()) <= 0
}
