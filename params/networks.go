// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

// MainnetParams is the consensus parameter set for the production
// network.
var MainnetParams = NetworkParams{
	Name:             "mainnet",
	GenesisBlock:     MainnetGenesisBlock,
	TargetBlockTime:  60,
	RetargetWindow:   2016,
	MaxFutureSeconds: 2 * 60 * 60,
	MinFee:           1,
	MaxBlockSize:     4 << 20,
	PowLimit:         mainnetPowLimit,
	GenesisTarget:    mainnetPowLimit,
	ActivationHeights: map[string]uint32{
		RuleSequentialTime: 0,
	},
	TransactionVersions: []VersionActivation{
		{Sequence: 1, Version: 1},
		{Sequence: 100000, Version: 2},
	},
	Reward: RewardSchedule{
		BaseReward:      50_00000000,
		HalvingInterval: 210000,
		MaxHalvings:     64,
	},
}

// Testnet1Params is the consensus parameter set for the public test
// network: same rules as mainnet, faster blocks and a wide-open pow
// limit so test miners don't stall.
var Testnet1Params = NetworkParams{
	Name:             "testnet1",
	GenesisBlock:     Testnet1GenesisBlock,
	TargetBlockTime:  15,
	RetargetWindow:   144,
	MaxFutureSeconds: 2 * 60 * 60,
	MinFee:           0,
	MaxBlockSize:     4 << 20,
	PowLimit:         regtestPowLimit,
	GenesisTarget:    regtestPowLimit,
	ActivationHeights: map[string]uint32{
		RuleSequentialTime: 0,
	},
	TransactionVersions: []VersionActivation{
		{Sequence: 1, Version: 1},
		{Sequence: 1, Version: 2},
	},
	Reward: RewardSchedule{
		BaseReward:      50_00000000,
		HalvingInterval: 21000,
		MaxHalvings:     64,
	},
}

// RegtestParams is the consensus parameter set for local single-node
// development chains: no retargeting pressure, immediate rule
// activation, trivial pow limit.
var RegtestParams = NetworkParams{
	Name:             "regtest",
	GenesisBlock:     RegtestGenesisBlock,
	TargetBlockTime:  1,
	RetargetWindow:   10,
	MaxFutureSeconds: 24 * 60 * 60,
	MinFee:           0,
	MaxBlockSize:     4 << 20,
	PowLimit:         regtestPowLimit,
	GenesisTarget:    regtestPowLimit,
	ActivationHeights: map[string]uint32{
		RuleSequentialTime: 0,
	},
	TransactionVersions: []VersionActivation{
		{Sequence: 1, Version: 2},
	},
	Reward: RewardSchedule{
		BaseReward:      50_00000000,
		HalvingInterval: 150,
		MaxHalvings:     64,
	},
}
