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
	"github.com/sunyihoo/forknode/ethdb"
)

// TxLookup is the position of a mined transaction in the canonical chain.
// TxLookup 是已打包交易在规范链中的位置。
type TxLookup struct {
	Number uint64
	Index  uint64
}

func (l TxLookup) encode() []byte {
	return binary.BigEndian.AppendUint64(be64(l.Number), l.Index)
}

// ReadTxLookupEntry returns the position of the transaction, or nil if the
// hash is not indexed.
func ReadTxLookupEntry(db ethdb.KeyValueReader, hash common.Hash) *TxLookup {
	data, _ := db.Get(txLookupKey(hash))
	if len(data) != 16 {
		return nil
	}
	return &TxLookup{
		Number: binary.BigEndian.Uint64(data[:8]),
		Index:  binary.BigEndian.Uint64(data[8:]),
	}
}

// WriteTxLookupEntriesByBlock indexes every transaction of the block by hash.
// WriteTxLookupEntriesByBlock 按哈希索引区块中的每笔交易。
func WriteTxLookupEntriesByBlock(db ethdb.KeyValueWriter, block *types.Block) {
	number := block.NumberU64()
	for i, tx := range block.Transactions() {
		entry := TxLookup{Number: number, Index: uint64(i)}
		if err := db.Put(txLookupKey(tx.Hash()), entry.encode()); err != nil {
			log.Crit("Failed to index transaction", "tx", tx.Hash(), "err", err)
		}
	}
}

// DeleteTxLookupEntry drops the index entry of a transaction.
func DeleteTxLookupEntry(db ethdb.KeyValueWriter, hash common.Hash) {
	if err := db.Delete(txLookupKey(hash)); err != nil {
		log.Crit("Failed to drop transaction index", "tx", hash, "err", err)
	}
}

// canonicalLookup resolves the transaction position and checks that the block
// holding it is still canonical.
func canonicalLookup(db ethdb.KeyValueReader, hash common.Hash) (*TxLookup, common.Hash) {
	entry := ReadTxLookupEntry(db, hash)
	if entry == nil {
		return nil, common.Hash{}
	}
	blockHash := ReadCanonicalHash(db, entry.Number)
	if blockHash == (common.Hash{}) {
		return nil, common.Hash{}
	}
	return entry, blockHash
}

// ReadTransaction returns a mined transaction together with the hash, number
// and position of its block.
// ReadTransaction 返回已打包交易及其所在区块的哈希、区块号和位置。
func ReadTransaction(db ethdb.KeyValueReader, hash common.Hash) (*types.Transaction, common.Hash, uint64, uint64) {
	entry, blockHash := canonicalLookup(db, hash)
	if entry == nil {
		return nil, common.Hash{}, 0, 0
	}
	body := ReadBody(db, blockHash, entry.Number)
	if body == nil || entry.Index >= uint64(len(body.Transactions)) {
		log.Error("Indexed transaction missing from body", "tx", hash, "number", entry.Number, "index", entry.Index)
		return nil, common.Hash{}, 0, 0
	}
	tx := body.Transactions[entry.Index]
	if tx.Hash() != hash {
		log.Error("Stale transaction index", "tx", hash, "number", entry.Number, "index", entry.Index)
		return nil, common.Hash{}, 0, 0
	}
	return tx, blockHash, entry.Number, entry.Index
}

// ReadReceipt is the receipt counterpart of ReadTransaction. The returned
// receipt carries its derived fields.
func ReadReceipt(db ethdb.KeyValueReader, hash common.Hash, config *params.ChainConfig) (*types.Receipt, common.Hash, uint64, uint64) {
	entry, blockHash := canonicalLookup(db, hash)
	if entry == nil {
		return nil, common.Hash{}, 0, 0
	}
	receipts := ReadReceipts(db, blockHash, entry.Number, config)
	if entry.Index >= uint64(len(receipts)) || receipts[entry.Index].TxHash != hash {
		log.Error("Indexed receipt missing", "tx", hash, "number", entry.Number, "index", entry.Index)
		return nil, common.Hash{}, 0, 0
	}
	return receipts[entry.Index], blockHash, entry.Number, entry.Index
}
