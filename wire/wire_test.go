// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umbra-chain/umbrad/types"
)

// fakeHasher is a deterministic stand-in for the crypto package's block
// hash function, sufficient for exercising wire round trips and the
// work/target comparisons without importing crypto.
type fakeHasher struct{}

func (fakeHasher) Sum256(data []byte) types.Hash {
	var h types.Hash
	for i, b := range data {
		h[i%types.HashSize] ^= b
	}
	return h
}

func sampleHeader() *BlockHeader {
	h := &BlockHeader{
		Sequence:      7,
		NoteSize:      3,
		NullifierSize: 1,
		Randomness:    0xdeadbeef,
		Timestamp:     1234567890,
	}
	for i := 0; i < 32; i++ {
		h.Target[i] = 0xff
		h.Graffiti[i] = byte(i)
	}
	return h
}

func TestHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	r := bytes.NewReader(h.Bytes())
	h2, err := DeserializeHeader(r)
	require.NoError(t, err)
	require.Equal(t, h, h2)
}

func TestHeaderSizeConstant(t *testing.T) {
	h := sampleHeader()
	require.Len(t, h.Bytes(), HeaderSize)
}

func TestHeaderHashDeterministic(t *testing.T) {
	h := sampleHeader()
	h1 := h.Hash(fakeHasher{})
	h2 := h.Hash(fakeHasher{})
	require.Equal(t, h1, h2)
}

func TestHeaderMeetsTarget(t *testing.T) {
	h := sampleHeader()
	for i := range h.Target {
		h.Target[i] = 0xff
	}
	var lowHash types.Hash
	lowHash[0] = 0x01
	require.True(t, h.MeetsTarget(lowHash))

	for i := range h.Target {
		h.Target[i] = 0x00
	}
	var anyNonZero types.Hash
	anyNonZero[31] = 0x01
	require.False(t, h.MeetsTarget(anyNonZero))
}

func sampleTransaction() *Transaction {
	tx := &Transaction{Version: 1, Fee: 100, Expiration: 500}
	tx.RandomizedPk[0] = 0x01
	tx.BindingSig[0] = 0x02
	spend := &Spend{TreeSize: 4}
	spend.Nullifier[0] = 0x03
	tx.Spends = append(tx.Spends, spend)
	out := &Output{EncryptedNote: make([]byte, OutputCiphertextV1)}
	out.EncryptedNote[0] = 0x09
	tx.Outputs = append(tx.Outputs, out)
	mint := &Mint{Value: 1000, Nonce: 1}
	mint.AssetID[0] = 0x04
	mint.Name = []byte("umbra-asset")
	tx.Mints = append(tx.Mints, mint)
	transfer := types.Hash{0x05}
	tx.Mints[0].TransferOwnershipTo = &transfer
	burn := &Burn{Value: 50}
	burn.AssetID[0] = 0x04
	tx.Burns = append(tx.Burns, burn)
	return tx
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := sampleTransaction()
	r := bytes.NewReader(tx.Bytes())
	tx2, err := Deserialize(r)
	require.NoError(t, err)
	require.Equal(t, tx, tx2)
}

func TestTransactionUnsignedBytesExcludesSignatures(t *testing.T) {
	tx := sampleTransaction()
	unsigned := tx.UnsignedBytes()

	tx2 := sampleTransaction()
	tx2.BindingSig[10] = 0xAA
	tx2.Spends[0].Signature[10] = 0xBB
	unsigned2 := tx2.UnsignedBytes()

	require.Equal(t, unsigned, unsigned2)
	require.NotEqual(t, tx.Bytes(), tx2.Bytes())
}

func TestTransactionIsMinersFee(t *testing.T) {
	fee := &Transaction{Version: 1, Fee: -500}
	require.True(t, fee.IsMinersFee())

	regular := sampleTransaction()
	require.False(t, regular.IsMinersFee())
}

func TestMintNoTransferOwnership(t *testing.T) {
	m := &Mint{Value: 10}
	m.AssetID[0] = 0x01
	var buf bytes.Buffer
	require.NoError(t, m.serialize(&buf))
	r := bytes.NewReader(buf.Bytes())
	m2, err := deserializeMint(r)
	require.NoError(t, err)
	require.Nil(t, m2.TransferOwnershipTo)
	require.Equal(t, m.Value, m2.Value)
}

func TestBlockRoundTrip(t *testing.T) {
	hasher := fakeHasher{}
	minersFee := &Transaction{Version: 1, Fee: -1000}
	regular := sampleTransaction()
	txs := []*Transaction{minersFee, regular}

	header := sampleHeader()
	header.TransactionsHash = ComputeTransactionsHash(hasher, txs)
	block := &Block{Header: header, Transactions: txs}

	decoded, err := DeserializeBlock(block.Bytes())
	require.NoError(t, err)
	require.Equal(t, block.Header, decoded.Header)
	require.Len(t, decoded.Transactions, 2)
	require.Equal(t, block.Transactions[0], decoded.Transactions[0])
	require.Equal(t, block.Transactions[1], decoded.Transactions[1])
	require.True(t, decoded.MinersFee().IsMinersFee())
}

func TestBlockHashUsesHeaderHash(t *testing.T) {
	hasher := fakeHasher{}
	block := &Block{Header: sampleHeader()}
	require.Equal(t, block.Header.Hash(hasher), block.Hash(hasher))
}
