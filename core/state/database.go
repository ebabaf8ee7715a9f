// Copyright 2017 The go-ethereum Authors
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

// Package state provides the account primitives and the layered in-memory
// databases the node keeps its state in.
// 包 state 提供账户原语以及节点保存状态所用的分层内存数据库。
package state

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DatabaseRef is the read side of a state source. Implementations may block on
// I/O (a remote fork) and must be safe for concurrent use.
//
// DatabaseRef 是状态来源的只读接口。实现可能会在 I/O 上阻塞（例如远程分叉），
// 并且必须支持并发使用。
type DatabaseRef interface {
	// Basic returns the account info of addr, or nil if the account does not
	// exist.
	Basic(addr common.Address) (*AccountInfo, error)

	// Storage returns the value of the given storage slot.
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)

	// CodeByHash returns the contract code with the given hash.
	CodeByHash(hash common.Hash) ([]byte, error)

	// BlockHash returns the hash of the block with the given number.
	BlockHash(number uint64) (common.Hash, error)
}

// EmptyDB is the bottom of a purely local database: no account exists, every
// slot is zero and block hashes are derived from the block number.
// EmptyDB 是纯本地数据库的底层：不存在任何账户，所有存储槽为零。
type EmptyDB struct{}

// Basic implements DatabaseRef.
func (EmptyDB) Basic(common.Address) (*AccountInfo, error) { return nil, nil }

// Storage implements DatabaseRef.
func (EmptyDB) Storage(common.Address, common.Hash) (common.Hash, error) {
	return common.Hash{}, nil
}

// CodeByHash implements DatabaseRef.
func (EmptyDB) CodeByHash(common.Hash) ([]byte, error) { return nil, nil }

// BlockHash implements DatabaseRef.
func (EmptyDB) BlockHash(number uint64) (common.Hash, error) {
	return crypto.Keccak256Hash([]byte(strconv.FormatUint(number, 10))), nil
}
