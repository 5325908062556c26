// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/umbra-chain/umbrad/assets"
	"github.com/umbra-chain/umbrad/types"
)

func encodeAsset(a *assets.Asset) []byte {
	var buf bytes.Buffer
	buf.Write(a.ID.Bytes())
	writeBytes(&buf, a.Name)
	writeBytes(&buf, a.Metadata)
	var supplyBuf [8]byte
	binary.BigEndian.PutUint64(supplyBuf[:], a.Supply)
	buf.Write(supplyBuf[:])
	buf.Write(a.Owner.Bytes())
	buf.Write(a.CreatedTxHash.Bytes())
	return buf.Bytes()
}

func decodeAsset(data []byte) (*assets.Asset, bool, error) {
	r := bytes.NewReader(data)
	a := &assets.Asset{}

	idBytes := make([]byte, types.HashSize)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return nil, false, err
	}
	id, err := types.NewHash(idBytes)
	if err != nil {
		return nil, false, err
	}
	a.ID = id

	name, err := readBytes(r)
	if err != nil {
		return nil, false, err
	}
	a.Name = name

	metadata, err := readBytes(r)
	if err != nil {
		return nil, false, err
	}
	a.Metadata = metadata

	var supplyBuf [8]byte
	if _, err := io.ReadFull(r, supplyBuf[:]); err != nil {
		return nil, false, err
	}
	a.Supply = binary.BigEndian.Uint64(supplyBuf[:])

	ownerBytes := make([]byte, types.HashSize)
	if _, err := io.ReadFull(r, ownerBytes); err != nil {
		return nil, false, err
	}
	owner, err := types.NewHash(ownerBytes)
	if err != nil {
		return nil, false, err
	}
	a.Owner = owner

	createdBytes := make([]byte, types.HashSize)
	if _, err := io.ReadFull(r, createdBytes); err != nil {
		return nil, false, err
	}
	created, err := types.NewHash(createdBytes)
	if err != nil {
		return nil, false, err
	}
	a.CreatedTxHash = created

	return a, true, nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readBytes(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
