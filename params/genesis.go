// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

import (
	"time"

	"github.com/umbra-chain/umbrad/crypto"
	"github.com/umbra-chain/umbrad/merkletree"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// genesisTimestamp is shared by every network preset's genesis block so
// that regtest/testnet1 chains started from a fresh datastore are
// reproducible across runs.
var genesisTimestamp = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// buildGenesisBlock constructs the one-output, zero-spend genesis block:
// sequence 1, nullifier_size 0, note_size 1. The note and nullifier
// roots are not hardcoded; they are computed by replaying the genesis
// transaction through the real hasher implementations, the same code
// path a node uses to connect any other block.
func buildGenesisBlock(graffiti [32]byte, target [32]byte) *wire.Block {
	noteHasher := crypto.NewNoteHasher()
	nullifierHasher := crypto.NewNullifierHasher()
	blockHasher := crypto.BlockHasher{}

	genesisOutput := &wire.Output{
		EncryptedNote: make([]byte, wire.OutputCiphertextV1),
	}

	genesisTx := &wire.Transaction{
		Version: 1,
		Outputs: []*wire.Output{genesisOutput},
		Fee:     0,
	}

	noteCommitment := noteHasher.HashLeaf(append(genesisOutput.Proof[:], genesisOutput.EncryptedNote...))

	notes, err := merkletree.New(noteHasher, newMemTreeStore())
	if err != nil {
		panic(err)
	}
	if _, err := notes.Append(noteCommitment); err != nil {
		panic(err)
	}

	nullifiers, err := merkletree.New(nullifierHasher, newMemTreeStore())
	if err != nil {
		panic(err)
	}

	txs := []*wire.Transaction{genesisTx}
	txHash := wire.ComputeTransactionsHash(blockHasher, txs)

	header := &wire.BlockHeader{
		Sequence:         1,
		PreviousHash:     types.Hash{},
		NoteRoot:         notes.Root(),
		NoteSize:         notes.Size(),
		NullifierRoot:    nullifiers.Root(),
		NullifierSize:    nullifiers.Size(),
		Target:           target,
		Randomness:       0,
		Timestamp:        genesisTimestamp,
		Graffiti:         graffiti,
		TransactionsHash: txHash,
	}

	return &wire.Block{Header: header, Transactions: txs}
}

// memTreeStore is a throwaway in-memory merkletree.Store used only to
// compute the genesis roots at process start; genesis never needs to be
// rehydrated from disk because its contents are deterministic.
type memTreeStore struct {
	leaves map[uint32]types.Hash
	size   uint32
}

func newMemTreeStore() *memTreeStore {
	return &memTreeStore{leaves: make(map[uint32]types.Hash)}
}

func (m *memTreeStore) Leaf(index uint32) (types.Hash, bool, error) {
	h, ok := m.leaves[index]
	return h, ok, nil
}

func (m *memTreeStore) PutLeaf(index uint32, leaf types.Hash) error {
	m.leaves[index] = leaf
	return nil
}

func (m *memTreeStore) Size() (uint32, error) {
	return m.size, nil
}

func (m *memTreeStore) SetSize(size uint32) error {
	m.size = size
	return nil
}

var (
	mainnetGraffiti  = [32]byte{'u', 'm', 'b', 'r', 'a', '-', 'm', 'a', 'i', 'n', 'n', 'e', 't'}
	testnet1Graffiti = [32]byte{'u', 'm', 'b', 'r', 'a', '-', 't', 'e', 's', 't', 'n', 'e', 't', '1'}
	regtestGraffiti  = [32]byte{'u', 'm', 'b', 'r', 'a', '-', 'r', 'e', 'g', 't', 'e', 's', 't'}
)

// mainnetPowLimit is the easiest target mainnet ever allows: the top two
// bits cleared, matching the conventional "several leading zero bits"
// ceiling used by proof-of-work chains generally.
var mainnetPowLimit = [32]byte{
	0x3f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// regtestPowLimit is wide open so a single CPU can mine regtest blocks
// without waiting.
var regtestPowLimit = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// MainnetGenesisBlock is mainnet's genesis block, built at package init
// so every call site observes the same value.
var MainnetGenesisBlock = buildGenesisBlock(mainnetGraffiti, mainnetPowLimit)

// Testnet1GenesisBlock is testnet1's genesis block.
var Testnet1GenesisBlock = buildGenesisBlock(testnet1Graffiti, regtestPowLimit)

// RegtestGenesisBlock is regtest's genesis block.
var RegtestGenesisBlock = buildGenesisBlock(regtestGraffiti, regtestPowLimit)
