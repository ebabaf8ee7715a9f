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

// Package rawdb contains a collection of low level database accessors for the
// sealed chain of the node.
// 包 rawdb 包含节点已封装链的底层数据库访问器。
package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key layout of the local chain store. Numbers are 8 byte big endian so that
// entries of the same table iterate in block order.
// 本地链存储的键布局。区块号使用 8 字节大端编码。
const (
	tableHeader    byte = 'h' // 'h' + num + hash -> rlp(header)
	tableCanonical byte = 'c' // 'c' + num -> hash
	tableNumber    byte = 'H' // 'H' + hash -> num
	tableBody      byte = 'b' // 'b' + num + hash -> rlp(body)
	tableReceipts  byte = 'r' // 'r' + num + hash -> rlp(receipts)
	tableTxLookup  byte = 'l' // 'l' + txhash -> num + index
)

var headKey = []byte("head")

// key concatenates a table tag with its parts into a fresh slice.
func key(table byte, parts ...[]byte) []byte {
	size := 1
	for _, p := range parts {
		size += len(p)
	}
	k := make([]byte, 1, size)
	k[0] = table
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func be64(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func numHashKey(table byte, number uint64, hash common.Hash) []byte {
	return key(table, be64(number), hash[:])
}

func canonicalKey(number uint64) []byte   { return key(tableCanonical, be64(number)) }
func numberKey(hash common.Hash) []byte   { return key(tableNumber, hash[:]) }
func txLookupKey(hash common.Hash) []byte { return key(tableTxLookup, hash[:]) }
