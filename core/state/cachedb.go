// Copyright 2014 The go-ethereum Authors
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

package state

import (
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// AccountState tells how a locally held account relates to the account of the
// underlying database.
type AccountState uint8

const (
	// AccountStateNone means the local entry only overrides the slots it holds,
	// everything else is read through.
	AccountStateNone AccountState = iota

	// AccountStateNotExisting means the account was destroyed locally, the
	// underlying database must not be consulted.
	AccountStateNotExisting

	// AccountStateTouched means the account info was modified locally.
	AccountStateTouched

	// AccountStateStorageCleared means the whole storage is held locally, slots
	// missing from it are zero.
	AccountStateStorageCleared
)

// DbAccount is an account held in the local write layer.
// DbAccount 是保存在本地写入层中的账户。
type DbAccount struct {
	Info    *AccountInfo // nil if only storage was overridden
	State   AccountState
	Storage map[common.Hash]common.Hash
}

func newDbAccount() *DbAccount {
	return &DbAccount{Storage: make(map[common.Hash]common.Hash)}
}

// Copy returns a deep copy of the account.
func (a *DbAccount) Copy() *DbAccount {
	return &DbAccount{
		Info:    a.Info.Copy(),
		State:   a.State,
		Storage: maps.Clone(a.Storage),
	}
}

// CacheDB is the local write layer stacked on top of a read-only database.
// Every local mutation lands here; reads that are not answered locally fall
// through to the underlying DatabaseRef. CacheDB is not safe for concurrent
// mutation, its owner serialises access.
//
// CacheDB 是叠加在只读数据库之上的本地写入层。所有本地修改都写入这里，
// 本地无法回答的读取会穿透到底层的 DatabaseRef。
type CacheDB struct {
	accounts    map[common.Address]*DbAccount
	contracts   map[common.Hash][]byte
	blockHashes map[uint64]common.Hash

	db DatabaseRef
}

// NewCacheDB creates an empty write layer over db.
func NewCacheDB(db DatabaseRef) *CacheDB {
	if db == nil {
		db = EmptyDB{}
	}
	return &CacheDB{
		accounts:    make(map[common.Address]*DbAccount),
		contracts:   make(map[common.Hash][]byte),
		blockHashes: make(map[uint64]common.Hash),
		db:          db,
	}
}

// Ref returns the underlying read-only database.
func (c *CacheDB) Ref() DatabaseRef {
	return c.db
}

// Clone returns a deep copy of the local layer sharing the same underlying
// database.
// Clone 返回本地层的深拷贝，并与原对象共享底层数据库。
func (c *CacheDB) Clone() *CacheDB {
	cpy := &CacheDB{
		accounts:    make(map[common.Address]*DbAccount, len(c.accounts)),
		contracts:   make(map[common.Hash][]byte, len(c.contracts)),
		blockHashes: maps.Clone(c.blockHashes),
		db:          c.db,
	}
	for addr, acc := range c.accounts {
		cpy.accounts[addr] = acc.Copy()
	}
	for hash, code := range c.contracts {
		cpy.contracts[hash] = code // code is immutable once stored
	}
	return cpy
}

// LocalBasic resolves an account from the local layer only. The second return
// value reports whether the local layer was authoritative; a nil info with
// true means the account does not exist.
func (c *CacheDB) LocalBasic(addr common.Address) (*AccountInfo, bool) {
	acc, ok := c.accounts[addr]
	if !ok {
		return nil, false
	}
	if acc.State == AccountStateNotExisting {
		return nil, true
	}
	if acc.Info == nil {
		return nil, false
	}
	return acc.Info.Copy(), true
}

// LocalStorage resolves a storage slot from the local layer only.
func (c *CacheDB) LocalStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	acc, ok := c.accounts[addr]
	if !ok {
		return common.Hash{}, false
	}
	if value, ok := acc.Storage[slot]; ok {
		return value, true
	}
	if acc.State == AccountStateNotExisting || acc.State == AccountStateStorageCleared {
		return common.Hash{}, true
	}
	return common.Hash{}, false
}

// LocalCode resolves contract code from the local layer only.
func (c *CacheDB) LocalCode(hash common.Hash) ([]byte, bool) {
	if hash == types.EmptyCodeHash {
		return nil, true
	}
	code, ok := c.contracts[hash]
	return code, ok
}

// LocalBlockHash resolves a block hash override from the local layer only.
func (c *CacheDB) LocalBlockHash(number uint64) (common.Hash, bool) {
	hash, ok := c.blockHashes[number]
	return hash, ok
}

// Basic implements DatabaseRef.
func (c *CacheDB) Basic(addr common.Address) (*AccountInfo, error) {
	if info, ok := c.LocalBasic(addr); ok {
		return info, nil
	}
	return c.db.Basic(addr)
}

// Storage implements DatabaseRef.
func (c *CacheDB) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	if value, ok := c.LocalStorage(addr, slot); ok {
		return value, nil
	}
	return c.db.Storage(addr, slot)
}

// CodeByHash implements DatabaseRef.
func (c *CacheDB) CodeByHash(hash common.Hash) ([]byte, error) {
	if code, ok := c.LocalCode(hash); ok {
		return code, nil
	}
	return c.db.CodeByHash(hash)
}

// BlockHash implements DatabaseRef.
func (c *CacheDB) BlockHash(number uint64) (common.Hash, error) {
	if hash, ok := c.LocalBlockHash(number); ok {
		return hash, nil
	}
	return c.db.BlockHash(number)
}

func (c *CacheDB) account(addr common.Address) *DbAccount {
	acc, ok := c.accounts[addr]
	if !ok {
		acc = newDbAccount()
		c.accounts[addr] = acc
	}
	return acc
}

// insertContract stores the code of info and makes sure its hash is set.
func (c *CacheDB) insertContract(info *AccountInfo) {
	if len(info.Code) > 0 {
		if info.CodeHash == (common.Hash{}) || info.CodeHash == types.EmptyCodeHash {
			info.SetCode(info.Code)
		}
		c.contracts[info.CodeHash] = common.CopyBytes(info.Code)
	}
	if info.CodeHash == (common.Hash{}) {
		info.CodeHash = types.EmptyCodeHash
	}
}

// InsertAccountInfo sets the info of an account, keeping its storage.
// InsertAccountInfo 设置账户信息，同时保留其存储。
func (c *CacheDB) InsertAccountInfo(addr common.Address, info *AccountInfo) {
	info = info.Copy()
	c.insertContract(info)

	acc := c.account(addr)
	acc.Info = info
	if acc.State == AccountStateNone || acc.State == AccountStateNotExisting {
		acc.State = AccountStateTouched
	}
}

// InsertAccountStorage sets a single storage slot of an account.
func (c *CacheDB) InsertAccountStorage(addr common.Address, slot, value common.Hash) {
	c.account(addr).Storage[slot] = value
}

// ReplaceAccountStorage replaces the whole storage of an account, slots not in
// storage read as zero afterwards.
func (c *CacheDB) ReplaceAccountStorage(addr common.Address, storage map[common.Hash]common.Hash) {
	acc := c.account(addr)
	acc.Storage = maps.Clone(storage)
	if acc.Storage == nil {
		acc.Storage = make(map[common.Hash]common.Hash)
	}
	acc.State = AccountStateStorageCleared
}

// SetBlockHash overrides the hash of a block.
func (c *CacheDB) SetBlockHash(number uint64, hash common.Hash) {
	c.blockHashes[number] = hash
}

// Commit applies a batch of execution deltas to the local layer.
// Commit 将一批执行结果的增量应用到本地层。
func (c *CacheDB) Commit(changes Changes) {
	for addr, change := range changes {
		if !change.Touched() {
			continue
		}
		if change.SelfDestructed() {
			acc := c.account(addr)
			clear(acc.Storage)
			acc.State = AccountStateNotExisting
			acc.Info = NewAccountInfo(nil, 0, nil)
			continue
		}
		info := change.Info.Copy()
		c.insertContract(info)

		acc := c.account(addr)
		acc.Info = info
		switch {
		case change.Created():
			clear(acc.Storage)
			acc.State = AccountStateStorageCleared
		case acc.State == AccountStateStorageCleared:
		default:
			acc.State = AccountStateTouched
		}
		for slot, value := range change.Storage {
			acc.Storage[slot] = value
		}
	}
}

// Account returns a copy of the locally held account, or nil.
func (c *CacheDB) Account(addr common.Address) *DbAccount {
	if acc, ok := c.accounts[addr]; ok {
		return acc.Copy()
	}
	return nil
}

// Accounts returns the addresses held in the local layer.
func (c *CacheDB) Accounts() []common.Address {
	addrs := make([]common.Address, 0, len(c.accounts))
	for addr := range c.accounts {
		addrs = append(addrs, addr)
	}
	return addrs
}

// MergeAccount copies the locally held data of addr from src into c. Storage
// slots already held by c are kept unless src overrides them.
// MergeAccount 将 src 中 addr 的本地数据复制到 c 中。
func (c *CacheDB) MergeAccount(src *CacheDB, addr common.Address) {
	from, ok := src.accounts[addr]
	if !ok {
		return
	}
	acc := from.Copy()
	if acc.Info != nil {
		if code, ok := src.contracts[acc.Info.CodeHash]; ok {
			c.contracts[acc.Info.CodeHash] = code
		}
	}
	if existing, ok := c.accounts[addr]; ok && acc.State != AccountStateStorageCleared && acc.State != AccountStateNotExisting {
		merged := maps.Clone(existing.Storage)
		maps.Copy(merged, acc.Storage)
		acc.Storage = merged
	}
	c.accounts[addr] = acc
}
