// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/ed25519"
	"errors"
)

// ErrInvalidSignature is returned when a transaction's signature does
// not verify against its unsigned bytes.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// SignatureVerifier checks the binding signature (and each spend's
// inner signature) over a transaction's unsigned bytes.
//
// This is the one capability deliberately left on the standard library:
// ed25519 verification is a pure, constant-time primitive the Go runtime
// already ships correctly and nothing in the example corpus wraps it in
// a third-party package worth adopting here.
type SignatureVerifier interface {
	Verify(pubKey, message, signature []byte) error
}

// Ed25519Verifier is the default SignatureVerifier.
type Ed25519Verifier struct{}

// Verify reports whether signature is a valid ed25519 signature by
// pubKey over message.
func (Ed25519Verifier) Verify(pubKey, message, signature []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pubKey), message, signature) {
		return ErrInvalidSignature
	}
	return nil
}
