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
	"bytes"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// AccountInfo is the non-storage part of an account: the fields a remote
// endpoint answers with eth_getBalance, eth_getTransactionCount and eth_getCode.
// AccountInfo 是账户中除存储之外的部分。
type AccountInfo struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
	Code     []byte // may be nil even when CodeHash is set, resolve with CodeByHash
}

// NewAccountInfo creates an account info with the given fields, deriving the
// code hash from the code.
func NewAccountInfo(balance *uint256.Int, nonce uint64, code []byte) *AccountInfo {
	if balance == nil {
		balance = new(uint256.Int)
	}
	info := &AccountInfo{Nonce: nonce, Balance: balance, CodeHash: types.EmptyCodeHash}
	info.SetCode(code)
	return info
}

// SetCode replaces the code and recomputes the code hash.
func (a *AccountInfo) SetCode(code []byte) {
	if len(code) == 0 {
		a.Code, a.CodeHash = nil, types.EmptyCodeHash
		return
	}
	a.Code = common.CopyBytes(code)
	a.CodeHash = crypto.Keccak256Hash(code)
}

// HasCode reports whether the account carries contract code.
func (a *AccountInfo) HasCode() bool {
	return a.CodeHash != (common.Hash{}) && a.CodeHash != types.EmptyCodeHash
}

// IsEmpty reports whether the account is empty according to EIP-161.
// IsEmpty 根据 EIP-161 判断账户是否为空（nonce 为 0、余额为 0 且无代码）。
func (a *AccountInfo) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && !a.HasCode()
}

// Equal reports whether two account infos describe the same account.
func (a *AccountInfo) Equal(b *AccountInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Nonce == b.Nonce && a.balance().Eq(b.balance()) && a.CodeHash == b.CodeHash &&
		(a.Code == nil || b.Code == nil || bytes.Equal(a.Code, b.Code))
}

func (a *AccountInfo) balance() *uint256.Int {
	if a.Balance == nil {
		return new(uint256.Int)
	}
	return a.Balance
}

// Copy returns a deep copy of the account info.
func (a *AccountInfo) Copy() *AccountInfo {
	if a == nil {
		return nil
	}
	cpy := *a
	cpy.Balance = new(uint256.Int).Set(a.balance())
	cpy.Code = common.CopyBytes(a.Code)
	return &cpy
}

// AccountStatus is a bit set describing what happened to an account during
// execution.
type AccountStatus uint8

const (
	// StatusTouched marks an account that was modified and must be committed.
	StatusTouched AccountStatus = 1 << iota

	// StatusCreated marks an account created during execution, its previous
	// storage must be wiped on commit.
	StatusCreated

	// StatusSelfDestructed marks an account destroyed during execution.
	StatusSelfDestructed

	// StatusLoadedAsNotExisting marks an account that did not exist when it was
	// first loaded.
	StatusLoadedAsNotExisting
)

// Account is an account loaded into execution together with the storage slots
// that were read or written.
// Account 表示加载到执行中的账户及其被读取或写入的存储槽。
type Account struct {
	Info    AccountInfo
	Storage map[common.Hash]common.Hash
	Status  AccountStatus
}

// NewAccount wraps an account info into an untouched account.
func NewAccount(info *AccountInfo) *Account {
	acc := &Account{Storage: make(map[common.Hash]common.Hash)}
	if info == nil {
		acc.Info = *NewAccountInfo(nil, 0, nil)
		acc.Status = StatusLoadedAsNotExisting
	} else {
		acc.Info = *info.Copy()
	}
	return acc
}

// Touched reports whether the account was modified.
func (a *Account) Touched() bool { return a.Status&StatusTouched != 0 }

// Created reports whether the account was created during execution.
func (a *Account) Created() bool { return a.Status&StatusCreated != 0 }

// SelfDestructed reports whether the account was destroyed.
func (a *Account) SelfDestructed() bool { return a.Status&StatusSelfDestructed != 0 }

// Copy returns a deep copy of the account.
// Copy 返回账户的深拷贝。
func (a *Account) Copy() *Account {
	return &Account{
		Info:    *a.Info.Copy(),
		Storage: maps.Clone(a.Storage),
		Status:  a.Status,
	}
}

// Changes is a batch of account deltas produced by executing a transaction,
// ready to be committed to a database.
type Changes map[common.Address]*Account

// Copy returns a deep copy of the change set.
func (c Changes) Copy() Changes {
	cpy := make(Changes, len(c))
	for addr, acc := range c {
		cpy[addr] = acc.Copy()
	}
	return cpy
}
