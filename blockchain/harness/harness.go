// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package harness builds deterministic chains of blocks with spendable
// notes, for exercising end-to-end chain scenarios: genesis plus a
// miner block, competing forks, nullifier release on reorg, asset
// ownership transfer, expired-transaction pruning, and invalid note
// commitments.
package harness

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	ds "github.com/ipfs/go-datastore"

	"github.com/umbra-chain/umbrad/blockchain"
	"github.com/umbra-chain/umbrad/crypto"
	"github.com/umbra-chain/umbrad/merkletree"
	"github.com/umbra-chain/umbrad/params"
	"github.com/umbra-chain/umbrad/types"
	"github.com/umbra-chain/umbrad/wire"
)

// noopProofVerifier accepts every zero-knowledge proof unconditionally.
// Building real Groth16 proofs needs compiled circuits and a trusted
// setup that a deterministic test harness has no business shipping, so
// this harness stubs proof verification instead.
type noopProofVerifier struct{}

func (noopProofVerifier) Verify(circuitID string, proof, publicWitness []byte) error {
	return nil
}

// SpendableNote is a note the harness knows the full opening of: the
// notes-tree size its spend proves against and the key that can sign its
// spend.
type SpendableNote struct {
	Nullifier types.Hash
	TreeSize  uint32 // notes-tree size (i.e. spend.TreeSize) as of the block this note was created in
	Amount    uint64
	Owner     ed25519.PrivateKey
}

// memTreeStore is a throwaway in-memory merkletree.Store used to
// recompute a historical root from a leaf slice the harness already
// holds in memory. Mirrors params/genesis.go's own memTreeStore, which
// solves exactly the same "compute a root with no real datastore"
// problem for the genesis block.
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

// rootAt rebuilds a tree from leaves[:size] and returns its root, the
// same historical-root computation checkSpendsContextual performs
// against the live chain's notes tree.
func rootAt(hasher merkletree.Hasher, leaves []types.Hash, size uint32) (types.Hash, error) {
	t, err := merkletree.New(hasher, newMemTreeStore())
	if err != nil {
		return types.Hash{}, err
	}
	for i := uint32(0); i < size; i++ {
		if _, err := t.Append(leaves[i]); err != nil {
			return types.Hash{}, err
		}
	}
	return t.Root(), nil
}

// TestHarness drives a Blockchain through deterministic block sequences.
// Its own bookkeeping (Tip, the note/nullifier leaf lists, spendable
// notes) tracks one branch; Fork produces an independent branch sharing
// the same underlying Chain, for tests that need two competing tips.
type TestHarness struct {
	Chain  *blockchain.Blockchain
	Params *params.NetworkParams

	noteHasher      merkletree.Hasher
	nullifierHasher merkletree.Hasher
	blockHasher     wire.Hasher

	Tip      *wire.BlockHeader
	prevTip  *wire.BlockHeader // Tip's parent, needed for the retarget's spacing calculation; nil when Tip is genesis
	timeNow  int64

	noteLeaves      []types.Hash
	nullifierLeaves []types.Hash
	spendable       map[types.Hash]*SpendableNote // by nullifier
}

// New constructs a TestHarness over a fresh in-memory chain for
// netParams, seeded with netParams' genesis block.
func New(netParams *params.NetworkParams) (*TestHarness, error) {
	chain, err := blockchain.NewBlockchain(
		blockchain.Params(netParams),
		blockchain.Datastore(ds.NewMapDatastore()),
		blockchain.ProofVerifier(noopProofVerifier{}),
	)
	if err != nil {
		return nil, fmt.Errorf("harness: constructing chain: %w", err)
	}

	genesis := netParams.GenesisBlock
	noteHasher := crypto.NewNoteHasher()
	nullifierHasher := crypto.NewNullifierHasher()

	h := &TestHarness{
		Chain:           chain,
		Params:          netParams,
		noteHasher:      noteHasher,
		nullifierHasher: nullifierHasher,
		blockHasher:     crypto.BlockHasher{},
		Tip:             genesis.Header,
		timeNow:         genesis.Header.Timestamp,
		spendable:       make(map[types.Hash]*SpendableNote),
	}
	for _, output := range genesis.Transactions[0].Outputs {
		h.noteLeaves = append(h.noteLeaves, outputCommitment(noteHasher, output))
	}
	return h, nil
}

// outputCommitment reproduces chain.go's own note-commitment derivation,
// since wire.Output carries no separate commitment field.
func outputCommitment(hasher merkletree.Hasher, output *wire.Output) types.Hash {
	return hasher.HashLeaf(append(append([]byte{}, output.Proof[:]...), output.EncryptedNote...))
}

// Fork returns an independent harness sharing the same underlying Chain
// but an independent copy of this harness's own bookkeeping, so the
// copy and the original can each mine their own blocks on top of the
// same parent without one's leaf lists or spendable notes clobbering
// the other's.
func (h *TestHarness) Fork() *TestHarness {
	cp := *h
	cp.noteLeaves = append([]types.Hash{}, h.noteLeaves...)
	cp.nullifierLeaves = append([]types.Hash{}, h.nullifierLeaves...)
	cp.spendable = make(map[types.Hash]*SpendableNote, len(h.spendable))
	for k, v := range h.spendable {
		cp.spendable[k] = v
	}
	return &cp
}

// Spendable returns the note pooled under nullifier, if the harness
// knows its opening.
func (h *TestHarness) Spendable(nullifier types.Hash) (*SpendableNote, bool) {
	n, ok := h.spendable[nullifier]
	return n, ok
}

// SpendableNotes returns every note this harness instance currently
// knows how to spend.
func (h *TestHarness) SpendableNotes() []*SpendableNote {
	out := make([]*SpendableNote, 0, len(h.spendable))
	for _, n := range h.spendable {
		out = append(out, n)
	}
	return out
}

func randomKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}
