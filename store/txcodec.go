// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/umbra-chain/umbrad/wire"
)

// encodeTransactions packs a block's transaction list into the value
// stored under the transactions index: a count followed by each
// transaction's length-prefixed wire bytes. This is an internal storage
// format, independent of the block/gossip wire layout in package wire.
func encodeTransactions(txs []*wire.Transaction) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(txs)))
	buf.Write(countBuf[:])
	for _, tx := range txs {
		txBytes := tx.Bytes()
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(txBytes)))
		buf.Write(lenBuf[:])
		buf.Write(txBytes)
	}
	return buf.Bytes()
}

func readStoredCount(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readStoredTransaction(r io.Reader) (*wire.Transaction, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return wire.Deserialize(bytes.NewReader(data))
}
