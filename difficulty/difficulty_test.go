// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package difficulty

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func mustTarget(t *testing.T, hex string) *uint256.Int {
	t.Helper()
	bi, ok := new(big.Int).SetString(hex, 0)
	require.True(t, ok)
	v, overflow := uint256.FromBig(bi)
	require.False(t, overflow)
	return v
}

func TestDifficultyAtMaxTargetIsOne(t *testing.T) {
	maxTarget := new(uint256.Int).Not(uint256.NewInt(0))
	work := Difficulty(maxTarget)
	require.Equal(t, uint256.NewInt(1), work)
}

func TestDifficultyAtZeroTargetSaturates(t *testing.T) {
	// target=0 makes the work formula 2^256/(0+1) == 2^256, one bit
	// wider than uint256.Int's range; Difficulty must saturate at the
	// largest representable value instead of wrapping to zero.
	work := Difficulty(uint256.NewInt(0))
	maxUint256 := new(uint256.Int).Not(uint256.NewInt(0))
	require.Equal(t, maxUint256, work)
}

func TestDifficultyMonotonicWithTarget(t *testing.T) {
	small := mustTarget(t, "0x10000")
	large := mustTarget(t, "0x100000000")
	require.True(t, Less(Difficulty(large), Difficulty(small)))
}

func TestCumulativeWorkSums(t *testing.T) {
	a := mustTarget(t, "0xff")
	b := mustTarget(t, "0xff")
	total := CumulativeWork([]*uint256.Int{a, b})
	single := Difficulty(a)
	expected := new(uint256.Int).Add(single, single)
	require.Equal(t, expected, total)
}

func TestNextTargetHoldsSteadyAtExactSpacing(t *testing.T) {
	parent := mustTarget(t, "0x1000000")
	powLimit := mustTarget(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	next := NextTarget(parent, 60, 60, 2016, powLimit)
	require.True(t, parent.Eq(next))
}

func TestNextTargetClampsToUpperBound(t *testing.T) {
	// An enormous parentSpacing (far slower than target) must clamp the
	// adjustment ratio to 1+1/retargetWindow rather than scale freely.
	parent := mustTarget(t, "0x1000000")
	powLimit := mustTarget(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	retargetWindow := int64(2016)
	targetBlockTime := int64(60)

	next := NextTarget(parent, targetBlockTime*1_000_000, targetBlockTime, retargetWindow, powLimit)

	expected := new(big.Int).Mul(parent.ToBig(), big.NewInt(retargetWindow+1))
	expected.Div(expected, big.NewInt(retargetWindow))
	expectedTarget, overflow := uint256.FromBig(expected)
	require.False(t, overflow)
	require.True(t, expectedTarget.Eq(next))
}

func TestNextTargetClampsToLowerBound(t *testing.T) {
	// A tiny parentSpacing (far faster than target) must clamp the
	// adjustment ratio to 1-1/retargetWindow rather than scale freely.
	parent := mustTarget(t, "0x1000000000000")
	powLimit := mustTarget(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	retargetWindow := int64(2016)
	targetBlockTime := int64(60)

	next := NextTarget(parent, 1, targetBlockTime, retargetWindow, powLimit)

	expected := new(big.Int).Mul(parent.ToBig(), big.NewInt(retargetWindow-1))
	expected.Div(expected, big.NewInt(retargetWindow))
	expectedTarget, overflow := uint256.FromBig(expected)
	require.False(t, overflow)
	require.True(t, expectedTarget.Eq(next))
}

func TestNextTargetClampsToPowLimit(t *testing.T) {
	// A parent already at the network's pow limit, retargeted upward by
	// a long run of slow blocks, must clamp to powLimit rather than
	// exceed it.
	powLimit := mustTarget(t, "0xffffff")
	parent := powLimit

	next := NextTarget(parent, 60*1_000_000, 60, 2016, powLimit)

	require.True(t, powLimit.Eq(next))
}

func TestNextTargetFloorsAtOne(t *testing.T) {
	// A parent target small enough that the damped product underflows to
	// zero must floor at 1 rather than produce a zero target, which
	// would make every hash satisfy MeetsTarget.
	parent := uint256.NewInt(1)
	powLimit := mustTarget(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	next := NextTarget(parent, 1, 60, 2016, powLimit)

	require.True(t, uint256.NewInt(1).Eq(next))
}

func TestNextTargetNoGrandparentUsesTargetBlockTime(t *testing.T) {
	// parentSpacing == targetBlockTime is the steady-state ratio callers
	// pass when the parent is genesis and there is no grandparent to
	// measure spacing against.
	parent := mustTarget(t, "0x1000000")
	powLimit := mustTarget(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	next := NextTarget(parent, 60, 60, 2016, powLimit)

	require.True(t, parent.Eq(next))
}

func TestNextTargetDegenerateWindowHoldsParent(t *testing.T) {
	parent := mustTarget(t, "0xabcdef")
	powLimit := mustTarget(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	require.True(t, parent.Eq(NextTarget(parent, 60, 0, 2016, powLimit)))
	require.True(t, parent.Eq(NextTarget(parent, 60, 60, 0, powLimit)))
}
