// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import "testing"

func TestHashRoundTrip(t *testing.T) {
	b := make([]byte, HashSize)
	for i := range b {
		b[i] = byte(i)
	}
	h, err := NewHash(b)
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	h2, err := NewHashFromHex(h.String())
	if err != nil {
		t.Fatalf("NewHashFromHex: %v", err)
	}
	if !h.Equal(h2) {
		t.Fatalf("round trip mismatch: %s != %s", h, h2)
	}
}

func TestHashWrongLength(t *testing.T) {
	if _, err := NewHash([]byte{1, 2, 3}); err != ErrHashWrongLength {
		t.Fatalf("expected ErrHashWrongLength, got %v", err)
	}
}

func TestHashLess(t *testing.T) {
	var a, b Hash
	a[0] = 0x01
	b[0] = 0x02
	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
	if b.Less(a) {
		t.Fatalf("expected b > a")
	}
}

func TestHashIsZero(t *testing.T) {
	var z Hash
	if !z.IsZero() {
		t.Fatalf("expected zero hash to report IsZero")
	}
	z[5] = 1
	if z.IsZero() {
		t.Fatalf("expected non-zero hash to not report IsZero")
	}
}
