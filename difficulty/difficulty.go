// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package difficulty implements 256-bit target arithmetic and the
// parent-spacing retarget rule.
package difficulty

import (
	"math/big"

	"github.com/holiman/uint256"
)

// twoTo256 is 2^256, the numerator of the work formula. It deliberately
// lives in math/big rather than uint256.Int: a target of all-zero bits
// (target+1 == 1) yields a quotient of exactly 2^256, one bit wider than
// uint256.Int's 256-bit range, so the division itself is done in bigint
// and only the *result* -- which in every real scenario comfortably fits
// back in 256 bits -- is handed back to callers as a uint256.Int.
var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// TargetFromBytes decodes a big-endian 32-byte target into a uint256.Int.
func TargetFromBytes(b [32]byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b[:])
}

// TargetToBytes encodes a target back into its big-endian 32-byte wire
// representation.
func TargetToBytes(target *uint256.Int) [32]byte {
	var out [32]byte
	target.WriteToSlice(out[:])
	return out
}

// Difficulty returns the per-block work contributed by a block whose
// header target is `target`: 2^256 / (target+1).
func Difficulty(target *uint256.Int) *uint256.Int {
	denom := new(big.Int).Add(target.ToBig(), big.NewInt(1))
	quotient := new(big.Int).Div(twoTo256, denom)
	work, overflow := uint256.FromBig(quotient)
	if overflow {
		// Only reachable when target == 0, the theoretical maximum
		// difficulty; saturate at the largest representable work value
		// rather than silently wrapping.
		return new(uint256.Int).Not(uint256.NewInt(0))
	}
	return work
}

// CumulativeWork sums the per-block work of a chain of targets, in the
// order supplied.
func CumulativeWork(targets []*uint256.Int) *uint256.Int {
	total := uint256.NewInt(0)
	for _, t := range targets {
		total = new(uint256.Int).Add(total, Difficulty(t))
	}
	return total
}

// Less reports whether a has strictly less cumulative work than b. Used
// by the chain engine's tie-break rule: strictly greater work wins, and
// equal work is broken by the lexicographically lower hash.
func Less(a, b *uint256.Int) bool {
	return a.Lt(b)
}

// NextTarget computes the target a block must meet, as a function of
// its parent's target and the spacing since the grandparent, clamped to
// a damping window.
//
// parentSpacing is parent.timestamp - grandparent.timestamp in seconds;
// pass targetBlockTime when the parent is the genesis block (no
// grandparent to measure against, so the target holds steady). The
// adjustment ratio actualSpacing/targetBlockTime is clamped to
// [1-1/retargetWindow, 1+1/retargetWindow] per block -- a large
// retargetWindow (mainnet) yields gentle per-block damping that only
// becomes visible in aggregate over many blocks, analogous to a classic
// periodic-window retarget smoothed into a continuous one; a small
// retargetWindow (regtest) lets a handful of slow or fast blocks move the
// target quickly.
func NextTarget(parentTarget *uint256.Int, parentSpacing, targetBlockTime, retargetWindow int64, powLimit *uint256.Int) *uint256.Int {
	if retargetWindow <= 0 || targetBlockTime <= 0 {
		return parentTarget.Clone()
	}
	numer := big.NewInt(parentSpacing)
	denom := big.NewInt(targetBlockTime)

	minNumer := new(big.Int).Mul(denom, big.NewInt(retargetWindow-1))
	maxNumer := new(big.Int).Mul(denom, big.NewInt(retargetWindow+1))
	scaledNumer := new(big.Int).Mul(numer, big.NewInt(retargetWindow))
	if scaledNumer.Cmp(minNumer) < 0 {
		scaledNumer = minNumer
	}
	if scaledNumer.Cmp(maxNumer) > 0 {
		scaledNumer = maxNumer
	}

	next := new(big.Int).Mul(parentTarget.ToBig(), scaledNumer)
	next.Div(next, new(big.Int).Mul(denom, big.NewInt(retargetWindow)))
	if next.Sign() < 1 {
		next.SetInt64(1)
	}

	nextTarget, overflow := uint256.FromBig(next)
	if overflow || nextTarget.Gt(powLimit) {
		return powLimit.Clone()
	}
	return nextTarget
}
