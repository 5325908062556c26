// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"

	"github.com/umbra-chain/umbrad/types"
)

// Fixed field widths for the wire encoding.
const (
	ProofSize          = 192
	SignatureSize      = 64
	SpendSize          = ProofSize + 32 + 32 + 32 + 4 + 32 + SignatureSize // 388
	OutputCiphertextV1 = 232
)

// ErrTruncatedMessage is returned when a fixed-width field runs past the
// end of the supplied buffer.
var ErrTruncatedMessage = errors.New("wire: message truncated")

// Spend is the wire layout of a single note spend: 388 bytes exactly.
type Spend struct {
	Proof           [ProofSize]byte
	ValueCommitment types.Hash
	RandomizedPk    types.Hash
	Root            types.Hash
	TreeSize        uint32
	Nullifier       types.Hash
	Signature       [SignatureSize]byte
}

func (s *Spend) serialize(w *bytes.Buffer) error {
	if err := writeFixedBytes(w, s.Proof[:]); err != nil {
		return err
	}
	if err := writeFixedBytes(w, s.ValueCommitment.Bytes()); err != nil {
		return err
	}
	if err := writeFixedBytes(w, s.RandomizedPk.Bytes()); err != nil {
		return err
	}
	if err := writeFixedBytes(w, s.Root.Bytes()); err != nil {
		return err
	}
	if err := writeUint32(w, s.TreeSize); err != nil {
		return err
	}
	if err := writeFixedBytes(w, s.Nullifier.Bytes()); err != nil {
		return err
	}
	return writeFixedBytes(w, s.Signature[:])
}

func deserializeSpend(r *bytes.Reader) (*Spend, error) {
	s := &Spend{}
	proof, err := readFixedBytes(r, ProofSize)
	if err != nil {
		return nil, err
	}
	copy(s.Proof[:], proof)
	if s.ValueCommitment, err = readHash(r); err != nil {
		return nil, err
	}
	if s.RandomizedPk, err = readHash(r); err != nil {
		return nil, err
	}
	if s.Root, err = readHash(r); err != nil {
		return nil, err
	}
	if s.TreeSize, err = readUint32(r); err != nil {
		return nil, err
	}
	if s.Nullifier, err = readHash(r); err != nil {
		return nil, err
	}
	sig, err := readFixedBytes(r, SignatureSize)
	if err != nil {
		return nil, err
	}
	copy(s.Signature[:], sig)
	return s, nil
}

// Output is a single shielded note output: a proof plus a fixed-length
// encrypted note ciphertext, whose length is pinned per transaction
// version (OutputCiphertextV1 for version 1).
type Output struct {
	Proof         [ProofSize]byte
	EncryptedNote []byte
}

func (o *Output) serialize(w *bytes.Buffer) error {
	if err := writeFixedBytes(w, o.Proof[:]); err != nil {
		return err
	}
	return writeFixedBytes(w, o.EncryptedNote)
}

func deserializeOutput(r *bytes.Reader, ciphertextSize int) (*Output, error) {
	o := &Output{}
	proof, err := readFixedBytes(r, ProofSize)
	if err != nil {
		return nil, err
	}
	copy(o.Proof[:], proof)
	if o.EncryptedNote, err = readFixedBytes(r, ciphertextSize); err != nil {
		return nil, err
	}
	return o, nil
}

// Mint creates or increases the supply of an asset. TransferOwnershipTo
// is nil unless the mint's transaction version is at least
// params.TransferOwnershipVersion.
type Mint struct {
	AssetID             types.Hash
	Name                []byte
	Metadata            []byte
	Value               uint64
	Creator             types.Hash
	Nonce               uint64
	TransferOwnershipTo *types.Hash
	Proof               [ProofSize]byte
}

func (m *Mint) serialize(w *bytes.Buffer) error {
	if err := writeFixedBytes(w, m.AssetID.Bytes()); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.Name); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.Metadata); err != nil {
		return err
	}
	if err := writeUint64(w, m.Value); err != nil {
		return err
	}
	if err := writeFixedBytes(w, m.Creator.Bytes()); err != nil {
		return err
	}
	if err := writeUint64(w, m.Nonce); err != nil {
		return err
	}
	if m.TransferOwnershipTo == nil {
		if err := writeUint8(w, 0); err != nil {
			return err
		}
	} else {
		if err := writeUint8(w, 1); err != nil {
			return err
		}
		if err := writeFixedBytes(w, m.TransferOwnershipTo.Bytes()); err != nil {
			return err
		}
	}
	return writeFixedBytes(w, m.Proof[:])
}

func deserializeMint(r *bytes.Reader) (*Mint, error) {
	m := &Mint{}
	var err error
	if m.AssetID, err = readHash(r); err != nil {
		return nil, err
	}
	if m.Name, err = readVarBytes(r); err != nil {
		return nil, err
	}
	if m.Metadata, err = readVarBytes(r); err != nil {
		return nil, err
	}
	if m.Value, err = readUint64(r); err != nil {
		return nil, err
	}
	if m.Creator, err = readHash(r); err != nil {
		return nil, err
	}
	if m.Nonce, err = readUint64(r); err != nil {
		return nil, err
	}
	flag, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	if flag == 1 {
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		m.TransferOwnershipTo = &h
	}
	proof, err := readFixedBytes(r, ProofSize)
	if err != nil {
		return nil, err
	}
	copy(m.Proof[:], proof)
	return m, nil
}

// Burn destroys supply of an existing asset. Ownership of the spent note
// is enforced structurally by the proof; the store only tracks the
// resulting supply delta.
type Burn struct {
	AssetID types.Hash
	Value   uint64
	Proof   [ProofSize]byte
}

func (b *Burn) serialize(w *bytes.Buffer) error {
	if err := writeFixedBytes(w, b.AssetID.Bytes()); err != nil {
		return err
	}
	if err := writeUint64(w, b.Value); err != nil {
		return err
	}
	return writeFixedBytes(w, b.Proof[:])
}

func deserializeBurn(r *bytes.Reader) (*Burn, error) {
	b := &Burn{}
	var err error
	if b.AssetID, err = readHash(r); err != nil {
		return nil, err
	}
	if b.Value, err = readUint64(r); err != nil {
		return nil, err
	}
	proof, err := readFixedBytes(r, ProofSize)
	if err != nil {
		return nil, err
	}
	copy(b.Proof[:], proof)
	return b, nil
}

// Transaction is the exact wire layout:
// version || counts || fee || expiration || randomized_pk || spends ||
// outputs || mints || burns || binding_sig.
//
// Fee is negative for the miner's-fee transaction (the block reward and
// the sum of every other transaction's fee flow to the miner) and
// non-negative for every other transaction.
type Transaction struct {
	Version      uint8
	Spends       []*Spend
	Outputs      []*Output
	Mints        []*Mint
	Burns        []*Burn
	Fee          int64
	Expiration   uint32
	RandomizedPk types.Hash
	BindingSig   [SignatureSize]byte
}

// ciphertextSizeForVersion returns the fixed encrypted-note length for
// the given transaction version. Only one version is defined today;
// later versions may widen the ciphertext (e.g. to add memo fields)
// without touching any other part of the wire layout.
func ciphertextSizeForVersion(version uint8) int {
	return OutputCiphertextV1
}

// Serialize writes the transaction's canonical wire bytes.
func (tx *Transaction) Serialize(w *bytes.Buffer) error {
	if err := writeUint8(w, tx.Version); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(tx.Spends))); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(tx.Mints))); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(tx.Burns))); err != nil {
		return err
	}
	if err := writeInt64(w, tx.Fee); err != nil {
		return err
	}
	if err := writeUint32(w, tx.Expiration); err != nil {
		return err
	}
	if err := writeFixedBytes(w, tx.RandomizedPk.Bytes()); err != nil {
		return err
	}
	for _, s := range tx.Spends {
		if err := s.serialize(w); err != nil {
			return err
		}
	}
	for _, o := range tx.Outputs {
		if err := o.serialize(w); err != nil {
			return err
		}
	}
	for _, m := range tx.Mints {
		if err := m.serialize(w); err != nil {
			return err
		}
	}
	for _, b := range tx.Burns {
		if err := b.serialize(w); err != nil {
			return err
		}
	}
	return writeFixedBytes(w, tx.BindingSig[:])
}

// Bytes returns the transaction's canonical serialization.
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}

// UnsignedBytes returns the serialization over which the per-spend
// signature and the binding signature are computed: every field except
// the signatures themselves.
func (tx *Transaction) UnsignedBytes() []byte {
	var buf bytes.Buffer
	_ = writeUint8(&buf, tx.Version)
	_ = writeUint64(&buf, uint64(len(tx.Spends)))
	_ = writeUint64(&buf, uint64(len(tx.Outputs)))
	_ = writeUint64(&buf, uint64(len(tx.Mints)))
	_ = writeUint64(&buf, uint64(len(tx.Burns)))
	_ = writeInt64(&buf, tx.Fee)
	_ = writeUint32(&buf, tx.Expiration)
	_ = writeFixedBytes(&buf, tx.RandomizedPk.Bytes())
	for _, s := range tx.Spends {
		_ = writeFixedBytes(&buf, s.Proof[:])
		_ = writeFixedBytes(&buf, s.ValueCommitment.Bytes())
		_ = writeFixedBytes(&buf, s.RandomizedPk.Bytes())
		_ = writeFixedBytes(&buf, s.Root.Bytes())
		_ = writeUint32(&buf, s.TreeSize)
		_ = writeFixedBytes(&buf, s.Nullifier.Bytes())
	}
	for _, o := range tx.Outputs {
		_ = o.serialize(&buf)
	}
	for _, m := range tx.Mints {
		_ = m.serialize(&buf)
	}
	for _, b := range tx.Burns {
		_ = b.serialize(&buf)
	}
	return buf.Bytes()
}

// Deserialize reads a Transaction from its canonical wire bytes.
func Deserialize(r *bytes.Reader) (*Transaction, error) {
	tx := &Transaction{}
	var err error
	if tx.Version, err = readUint8(r); err != nil {
		return nil, err
	}
	spendsCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	outputsCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	mintsCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	burnsCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	if err := checkCount(spendsCount); err != nil {
		return nil, err
	}
	if err := checkCount(outputsCount); err != nil {
		return nil, err
	}
	if err := checkCount(mintsCount); err != nil {
		return nil, err
	}
	if err := checkCount(burnsCount); err != nil {
		return nil, err
	}
	if tx.Fee, err = readInt64(r); err != nil {
		return nil, err
	}
	if tx.Expiration, err = readUint32(r); err != nil {
		return nil, err
	}
	if tx.RandomizedPk, err = readHash(r); err != nil {
		return nil, err
	}
	for i := uint64(0); i < spendsCount; i++ {
		s, err := deserializeSpend(r)
		if err != nil {
			return nil, err
		}
		tx.Spends = append(tx.Spends, s)
	}
	ciphertextSize := ciphertextSizeForVersion(tx.Version)
	for i := uint64(0); i < outputsCount; i++ {
		o, err := deserializeOutput(r, ciphertextSize)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, o)
	}
	for i := uint64(0); i < mintsCount; i++ {
		m, err := deserializeMint(r)
		if err != nil {
			return nil, err
		}
		tx.Mints = append(tx.Mints, m)
	}
	for i := uint64(0); i < burnsCount; i++ {
		b, err := deserializeBurn(r)
		if err != nil {
			return nil, err
		}
		tx.Burns = append(tx.Burns, b)
	}
	sig, err := readFixedBytes(r, SignatureSize)
	if err != nil {
		return nil, err
	}
	copy(tx.BindingSig[:], sig)
	return tx, nil
}

// Hash returns the transaction's identifying hash under the supplied
// hasher.
func (tx *Transaction) Hash(hasher Hasher) types.Hash {
	return hasher.Sum256(tx.Bytes())
}

// UnsignedHash returns the hash of UnsignedBytes, the bytes the
// transaction's signatures are made over.
func (tx *Transaction) UnsignedHash(hasher Hasher) types.Hash {
	return hasher.Sum256(tx.UnsignedBytes())
}

// IsMinersFee reports whether this transaction is the implicit
// miner's-fee transaction: no spends and a strictly negative fee.
func (tx *Transaction) IsMinersFee() bool {
	return len(tx.Spends) == 0 && tx.Fee < 0
}

func checkCount(n uint64) error {
	if n > MaxMessagePayload {
		return ErrMessageTooLarge
	}
	return nil
}

func readHash(r *bytes.Reader) (types.Hash, error) {
	b, err := readFixedBytes(r, types.HashSize)
	if err != nil {
		return types.Hash{}, err
	}
	return types.NewHash(b)
}
