// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sunyihoo/forknode/ethdb"
)

// readRLP decodes the value under key into out. A missing key and a
// malformed value both report false; the latter is logged.
// readRLP 将键对应的值解码到 out 中。
func readRLP(db ethdb.KeyValueReader, k []byte, what string, out interface{}) bool {
	data, _ := db.Get(k)
	if len(data) == 0 {
		return false
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		log.Error("Corrupt chain entry", "kind", what, "key", common.Bytes2Hex(k), "err", err)
		return false
	}
	return true
}

// mustPut stores a raw value. Write failures leave the chain store
// inconsistent, so they are fatal.
func mustPut(db ethdb.KeyValueWriter, k, v []byte, what string) {
	if err := db.Put(k, v); err != nil {
		log.Crit("Failed to write chain entry", "kind", what, "err", err)
	}
}

func writeRLP(db ethdb.KeyValueWriter, k []byte, what string, val interface{}) {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		log.Crit("Failed to encode chain entry", "kind", what, "err", err)
	}
	mustPut(db, k, data, what)
}

// ReadCanonicalHash returns the canonical block hash at number, or the zero
// hash if none is assigned.
func ReadCanonicalHash(db ethdb.KeyValueReader, number uint64) common.Hash {
	data, _ := db.Get(canonicalKey(number))
	return common.BytesToHash(data)
}

func WriteCanonicalHash(db ethdb.KeyValueWriter, hash common.Hash, number uint64) {
	mustPut(db, canonicalKey(number), hash[:], "canonical")
}

func DeleteCanonicalHash(db ethdb.KeyValueWriter, number uint64) {
	if err := db.Delete(canonicalKey(number)); err != nil {
		log.Crit("Failed to drop canonical hash", "number", number, "err", err)
	}
}

// ReadHeaderNumber resolves a block hash to its number.
// ReadHeaderNumber 将区块哈希解析为区块号。
func ReadHeaderNumber(db ethdb.KeyValueReader, hash common.Hash) *uint64 {
	data, _ := db.Get(numberKey(hash))
	if len(data) != 8 {
		return nil
	}
	n := binary.BigEndian.Uint64(data)
	return &n
}

// ReadHeadHeaderHash returns the hash of the chain head, zero if unset.
func ReadHeadHeaderHash(db ethdb.KeyValueReader) common.Hash {
	data, _ := db.Get(headKey)
	return common.BytesToHash(data)
}

func WriteHeadHeaderHash(db ethdb.KeyValueWriter, hash common.Hash) {
	mustPut(db, headKey, hash[:], "head")
}

func ReadHeader(db ethdb.KeyValueReader, hash common.Hash, number uint64) *types.Header {
	header := new(types.Header)
	if !readRLP(db, numHashKey(tableHeader, number, hash), "header", header) {
		return nil
	}
	return header
}

// WriteHeader stores the header along with its hash to number mapping.
// WriteHeader 存储区块头及其哈希到区块号的映射。
func WriteHeader(db ethdb.KeyValueWriter, header *types.Header) {
	hash, number := header.Hash(), header.Number.Uint64()
	mustPut(db, numberKey(hash), be64(number), "number")
	writeRLP(db, numHashKey(tableHeader, number, hash), "header", header)
}

func ReadBody(db ethdb.KeyValueReader, hash common.Hash, number uint64) *types.Body {
	body := new(types.Body)
	if !readRLP(db, numHashKey(tableBody, number, hash), "body", body) {
		return nil
	}
	return body
}

func WriteBody(db ethdb.KeyValueWriter, hash common.Hash, number uint64, body *types.Body) {
	writeRLP(db, numHashKey(tableBody, number, hash), "body", body)
}

// ReadRawReceipts returns the stored receipts of a block without the fields
// that are derived from the block itself.
func ReadRawReceipts(db ethdb.KeyValueReader, hash common.Hash, number uint64) types.Receipts {
	var stored []*types.ReceiptForStorage
	if !readRLP(db, numHashKey(tableReceipts, number, hash), "receipts", &stored) {
		return nil
	}
	receipts := make(types.Receipts, 0, len(stored))
	for _, r := range stored {
		receipts = append(receipts, (*types.Receipt)(r))
	}
	return receipts
}

// ReadReceipts returns the receipts of a block with block hash, positions,
// gas and log indexes filled in.
// ReadReceipts 返回区块收据，并补全区块哈希、位置、gas 和日志索引等字段。
func ReadReceipts(db ethdb.KeyValueReader, hash common.Hash, number uint64, config *params.ChainConfig) types.Receipts {
	receipts := ReadRawReceipts(db, hash, number)
	if receipts == nil {
		return nil
	}
	block := ReadBlock(db, hash, number)
	if block == nil {
		log.Error("Receipts stored without block", "number", number, "hash", hash)
		return nil
	}
	if err := receipts.DeriveFields(config, hash, number, block.Time(), block.BaseFee(), nil, block.Transactions()); err != nil {
		log.Error("Failed to derive receipt fields", "number", number, "hash", hash, "err", err)
		return nil
	}
	return receipts
}

func WriteReceipts(db ethdb.KeyValueWriter, hash common.Hash, number uint64, receipts types.Receipts) {
	stored := make([]*types.ReceiptForStorage, 0, len(receipts))
	for _, r := range receipts {
		stored = append(stored, (*types.ReceiptForStorage)(r))
	}
	writeRLP(db, numHashKey(tableReceipts, number, hash), "receipts", stored)
}

// ReadBlock assembles a block from its header and body; nil if either is
// missing.
func ReadBlock(db ethdb.KeyValueReader, hash common.Hash, number uint64) *types.Block {
	header := ReadHeader(db, hash, number)
	if header == nil {
		return nil
	}
	body := ReadBody(db, hash, number)
	if body == nil {
		return nil
	}
	return types.NewBlockWithHeader(header).WithBody(*body)
}

func WriteBlock(db ethdb.KeyValueWriter, block *types.Block) {
	WriteBody(db, block.Hash(), block.NumberU64(), block.Body())
	WriteHeader(db, block.Header())
}

// ReadHeadBlock returns the block the head pointer refers to.
func ReadHeadBlock(db ethdb.KeyValueReader) *types.Block {
	hash := ReadHeadHeaderHash(db)
	if hash == (common.Hash{}) {
		return nil
	}
	if number := ReadHeaderNumber(db, hash); number != nil {
		return ReadBlock(db, hash, *number)
	}
	return nil
}
