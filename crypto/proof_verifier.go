// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"bytes"
	"errors"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
)

// ErrInvalidProof is returned when a zero-knowledge proof fails
// verification.
var ErrInvalidProof = errors.New("crypto: invalid proof")

// ProofVerifier checks that a transaction's zero-knowledge proofs hold,
// lifted to an injected capability so the chain engine never hardcodes
// a specific proving system.
type ProofVerifier interface {
	// Verify checks a single proof against its public witness. circuitID
	// selects which verifying key to use (spend, output, mint, or burn).
	Verify(circuitID string, proof []byte, publicWitness []byte) error
}

// Groth16Verifier verifies Groth16 proofs over BLS12-381, keyed by
// circuit identifier. Each registered verifying key corresponds to one
// of the transaction's proof-bearing descriptions (spend/output/mint/burn).
type Groth16Verifier struct {
	keys map[string]groth16.VerifyingKey
}

// NewGroth16Verifier constructs a verifier with no registered keys;
// callers must Register one per circuit before Verify will succeed for
// it.
func NewGroth16Verifier() *Groth16Verifier {
	return &Groth16Verifier{keys: make(map[string]groth16.VerifyingKey)}
}

// Register associates a circuit identifier with its verifying key.
func (g *Groth16Verifier) Register(circuitID string, vk groth16.VerifyingKey) {
	g.keys[circuitID] = vk
}

// Verify checks proof against publicWitness using the verifying key
// registered for circuitID.
func (g *Groth16Verifier) Verify(circuitID string, proof []byte, publicWitness []byte) error {
	vk, ok := g.keys[circuitID]
	if !ok {
		return errors.New("crypto: no verifying key registered for circuit " + circuitID)
	}

	p := groth16.NewProof(ecc.BLS12_381)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return err
	}

	pubWitness, err := decodePublicWitness(publicWitness)
	if err != nil {
		return err
	}

	if err := groth16.Verify(p, vk, pubWitness); err != nil {
		return ErrInvalidProof
	}
	return nil
}

func decodePublicWitness(data []byte) (witness.Witness, error) {
	w, err := witness.New(ecc.BLS12_381.ScalarField())
	if err != nil {
		return nil, err
	}
	if err := w.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return w, nil
}
