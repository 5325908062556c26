// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package params holds the consensus parameters that gate target-block-time,
// future-time tolerance, fee minimums, and activation heights for rule
// forks.
package params

import (
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// Rule names gated by activation height.
const (
	// RuleSequentialTime requires a block's timestamp to be strictly
	// greater than its parent's, rather than merely non-decreasing.
	RuleSequentialTime = "enforce_sequential_time"
)

// TransferOwnershipVersion is the lowest transaction version a mint's
// non-null transfer_ownership_to field is allowed under; a transaction
// below this version carrying one is rejected regardless of sequence.
const TransferOwnershipVersion uint8 = 2

// NetworkParams is the full set of consensus parameters for one network.
type NetworkParams struct {
	// Name identifies the network ("mainnet", "testnet1", "regtest").
	Name string

	// GenesisBlock is this network's genesis block.
	GenesisBlock *wire.Block

	// TargetBlockTime is the desired spacing between blocks, in seconds.
	TargetBlockTime int64

	// RetargetWindow is the number of blocks the retarget damping window
	// spans.
	RetargetWindow int64

	// MaxFutureSeconds is how far into the future (relative to the
	// validator's clock) a block timestamp may be and still be accepted.
	MaxFutureSeconds int64

	// MinFee is the minimum fee (in the chain's smallest unit) a
	// non-miner's-fee transaction must pay.
	MinFee int64

	// MaxBlockSize is the maximum serialized size of a block, in bytes.
	MaxBlockSize int64

	// PowLimit is the easiest allowed target -- the ceiling no block's
	// target may exceed.
	PowLimit [32]byte

	// GenesisTarget is the target used to validate/construct the genesis
	// block's proof of work.
	GenesisTarget [32]byte

	// ActivationHeights maps a rule name to the sequence at which it
	// first applies (inclusive). A rule absent from the map is
	// considered always active from genesis.
	ActivationHeights map[string]uint32

	// TransactionVersions maps the sequence at which each transaction
	// version first becomes the required version. Entries must be in
	// increasing (sequence, version) order.
	TransactionVersions []VersionActivation

	// Reward is this network's mining reward schedule.
	Reward RewardSchedule
}

// VersionActivation records the sequence at which a transaction version
// becomes mandatory.
type VersionActivation struct {
	Sequence uint32
	Version  uint8
}

// RewardSchedule is a halving schedule: BaseReward for the first
// HalvingInterval blocks, then halved every HalvingInterval blocks
// thereafter until it reaches zero.
type RewardSchedule struct {
	BaseReward      uint64
	HalvingInterval uint32
	MaxHalvings     uint32
}

// MiningReward returns the block reward owed to the miner at sequence,
// a standard halving schedule: BaseReward for the first HalvingInterval
// blocks, halved every HalvingInterval blocks thereafter, down to zero
// once MaxHalvings is reached.
func (r RewardSchedule) MiningReward(sequence uint32) uint64 {
	if r.HalvingInterval == 0 {
		return r.BaseReward
	}
	halvings := sequence / r.HalvingInterval
	if halvings >= r.MaxHalvings {
		return 0
	}
	return r.BaseReward >> uint(halvings)
}

// IsActive reports whether the named rule is active at the given
// sequence.
func (p *NetworkParams) IsActive(rule string, sequence uint32) bool {
	height, ok := p.ActivationHeights[rule]
	if !ok {
		return true
	}
	return sequence >= height
}

// LatestTransactionVersionAt returns the transaction version a block at
// the given sequence must use: the version of the highest-sequence
// entry in TransactionVersions that has activated by sequence.
func (p *NetworkParams) LatestTransactionVersionAt(sequence uint32) uint8 {
	var version uint8 = 1
	for _, va := range p.TransactionVersions {
		if sequence >= va.Sequence {
			version = va.Version
		}
	}
	return version
}

// ZeroHash is the all-zero sentinel used as the genesis block's
// previous_hash.
var ZeroHash types.Hash
