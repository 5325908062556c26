// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"

	"github.com/umbra-chain/umbrad/types"
)

func rapidHash(t *rapid.T, label string) types.Hash {
	b := rapid.SliceOfN(rapid.Byte(), types.HashSize, types.HashSize).Draw(t, label)
	h, err := types.NewHash(b)
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	return h
}

func rapidFixed(t *rapid.T, n int, label string) []byte {
	return rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, label)
}

// TestHeaderSerializeRoundTrip checks the serialization-round-trip law:
// deserialize(serialize(B)) == B for any valid header.
func TestHeaderSerializeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := &BlockHeader{
			Sequence:      rapid.Uint32().Draw(t, "sequence"),
			PreviousHash:  rapidHash(t, "previous_hash"),
			NoteRoot:      rapidHash(t, "note_root"),
			NoteSize:      rapid.Uint32().Draw(t, "note_size"),
			NullifierRoot: rapidHash(t, "nullifier_root"),
			NullifierSize: rapid.Uint32().Draw(t, "nullifier_size"),
			Randomness:    rapid.Uint64().Draw(t, "randomness"),
			Timestamp:     rapid.Int64().Draw(t, "timestamp"),
		}
		copy(h.Target[:], rapidFixed(t, 32, "target"))
		copy(h.Graffiti[:], rapidFixed(t, 32, "graffiti"))
		h.TransactionsHash = rapidHash(t, "transactions_hash")

		got, err := DeserializeHeader(bytes.NewReader(h.Bytes()))
		if err != nil {
			t.Fatalf("DeserializeHeader: %v", err)
		}
		if *got != *h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	})
}

func rapidSpend(t *rapid.T) *Spend {
	s := &Spend{
		ValueCommitment: rapidHash(t, "value_commitment"),
		RandomizedPk:    rapidHash(t, "spend_randomized_pk"),
		Root:            rapidHash(t, "root"),
		TreeSize:        rapid.Uint32().Draw(t, "tree_size"),
		Nullifier:       rapidHash(t, "nullifier"),
	}
	copy(s.Proof[:], rapidFixed(t, ProofSize, "spend_proof"))
	copy(s.Signature[:], rapidFixed(t, SignatureSize, "spend_signature"))
	return s
}

func rapidOutput(t *rapid.T) *Output {
	o := &Output{EncryptedNote: rapidFixed(t, OutputCiphertextV1, "encrypted_note")}
	copy(o.Proof[:], rapidFixed(t, ProofSize, "output_proof"))
	return o
}

func rapidMint(t *rapid.T) *Mint {
	m := &Mint{
		AssetID:  rapidHash(t, "asset_id"),
		Name:     rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "name"),
		Metadata: rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "metadata"),
		Value:    rapid.Uint64().Draw(t, "mint_value"),
		Creator:  rapidHash(t, "creator"),
		Nonce:    rapid.Uint64().Draw(t, "nonce"),
	}
	if rapid.Bool().Draw(t, "has_transfer") {
		to := rapidHash(t, "transfer_ownership_to")
		m.TransferOwnershipTo = &to
	}
	copy(m.Proof[:], rapidFixed(t, ProofSize, "mint_proof"))
	return m
}

func rapidBurn(t *rapid.T) *Burn {
	b := &Burn{
		AssetID: rapidHash(t, "burn_asset_id"),
		Value:   rapid.Uint64().Draw(t, "burn_value"),
	}
	copy(b.Proof[:], rapidFixed(t, ProofSize, "burn_proof"))
	return b
}

// TestTransactionSerializeRoundTrip checks the same law over the
// variable-shaped Transaction envelope: arbitrary counts of spends,
// outputs, mints, and burns must all survive a serialize/deserialize
// cycle unchanged.
func TestTransactionSerializeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tx := &Transaction{
			Version:      1,
			Fee:          rapid.Int64().Draw(t, "fee"),
			Expiration:   rapid.Uint32().Draw(t, "expiration"),
			RandomizedPk: rapidHash(t, "tx_randomized_pk"),
		}
		for i := rapid.IntRange(0, 4).Draw(t, "n_spends"); i > 0; i-- {
			tx.Spends = append(tx.Spends, rapidSpend(t))
		}
		for i := rapid.IntRange(0, 4).Draw(t, "n_outputs"); i > 0; i-- {
			tx.Outputs = append(tx.Outputs, rapidOutput(t))
		}
		for i := rapid.IntRange(0, 4).Draw(t, "n_mints"); i > 0; i-- {
			tx.Mints = append(tx.Mints, rapidMint(t))
		}
		for i := rapid.IntRange(0, 4).Draw(t, "n_burns"); i > 0; i-- {
			tx.Burns = append(tx.Burns, rapidBurn(t))
		}
		copy(tx.BindingSig[:], rapidFixed(t, SignatureSize, "binding_sig"))

		got, err := Deserialize(bytes.NewReader(tx.Bytes()))
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if !bytes.Equal(got.Bytes(), tx.Bytes()) {
			t.Fatalf("round trip mismatch: got %x, want %x", got.Bytes(), tx.Bytes())
		}
	})
}
