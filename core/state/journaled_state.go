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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// JournaledState is the hot state of an ongoing call: the accounts it loaded or
// modified, the logs it emitted and the call depth. Changes are journaled so
// that nested frames can be rolled back with checkpoints.
//
// JournaledState 是正在进行的调用的热状态：已加载或修改的账户、已发出的日志
// 以及调用深度。所有修改都会记入日志，以便通过检查点回滚嵌套调用帧。
type JournaledState struct {
	State map[common.Address]*Account
	Logs  []*types.Log
	Depth int

	journal *journal
}

// NewJournaledState returns an empty journaled state.
func NewJournaledState() *JournaledState {
	return &JournaledState{
		State:   make(map[common.Address]*Account),
		journal: newJournal(),
	}
}

// Copy returns a deep copy of the journaled state.
// Copy 返回日志状态的深拷贝。
func (s *JournaledState) Copy() *JournaledState {
	if s == nil {
		return nil
	}
	cpy := &JournaledState{
		State:   make(map[common.Address]*Account, len(s.State)),
		Logs:    make([]*types.Log, len(s.Logs)),
		Depth:   s.Depth,
		journal: s.jrnl().copy(),
	}
	for addr, acc := range s.State {
		cpy.State[addr] = acc.Copy()
	}
	for i, l := range s.Logs {
		lcpy := *l
		cpy.Logs[i] = &lcpy
	}
	return cpy
}

// Account returns the loaded account, or nil.
func (s *JournaledState) Account(addr common.Address) *Account {
	return s.State[addr]
}

// LoadAccount returns the account from the journaled state, loading it from db
// if it is not yet present.
// LoadAccount 从日志状态中返回账户，如果尚未加载则从 db 加载。
func (s *JournaledState) LoadAccount(addr common.Address, db DatabaseRef) (*Account, error) {
	jrnl := s.jrnl()
	if acc, ok := s.State[addr]; ok {
		return acc, nil
	}
	info, err := db.Basic(addr)
	if err != nil {
		return nil, err
	}
	if info != nil && info.HasCode() && info.Code == nil {
		if info.Code, err = db.CodeByHash(info.CodeHash); err != nil {
			return nil, err
		}
	}
	acc := NewAccount(info)
	s.State[addr] = acc
	jrnl.append(accountLoadChange{account: addr})
	return acc, nil
}

// LoadStorage returns a storage slot, loading it from db on first access.
func (s *JournaledState) LoadStorage(addr common.Address, slot common.Hash, db DatabaseRef) (common.Hash, error) {
	acc, err := s.LoadAccount(addr, db)
	if err != nil {
		return common.Hash{}, err
	}
	if value, ok := acc.Storage[slot]; ok {
		return value, nil
	}
	var value common.Hash
	if acc.Status&(StatusCreated|StatusLoadedAsNotExisting) == 0 {
		if value, err = db.Storage(addr, slot); err != nil {
			return common.Hash{}, err
		}
	}
	acc.Storage[slot] = value
	s.jrnl().append(storageChange{account: addr, key: slot, existed: false})
	return value, nil
}

// Touch marks a loaded account as modified.
func (s *JournaledState) Touch(addr common.Address) {
	if acc, ok := s.State[addr]; ok && !acc.Touched() {
		s.jrnl().append(statusChange{account: addr, prev: acc.Status})
		acc.Status |= StatusTouched
	}
}

// SetBalance sets the balance of an account.
func (s *JournaledState) SetBalance(addr common.Address, balance *uint256.Int, db DatabaseRef) error {
	acc, err := s.LoadAccount(addr, db)
	if err != nil {
		return err
	}
	s.jrnl().append(balanceChange{account: addr, prev: acc.Info.balance()})
	acc.Info.Balance = new(uint256.Int).Set(balance)
	s.Touch(addr)
	return nil
}

// SetNonce sets the nonce of an account.
func (s *JournaledState) SetNonce(addr common.Address, nonce uint64, db DatabaseRef) error {
	acc, err := s.LoadAccount(addr, db)
	if err != nil {
		return err
	}
	s.jrnl().append(nonceChange{account: addr, prev: acc.Info.Nonce})
	acc.Info.Nonce = nonce
	s.Touch(addr)
	return nil
}

// SetCode sets the code of an account.
func (s *JournaledState) SetCode(addr common.Address, code []byte, db DatabaseRef) error {
	acc, err := s.LoadAccount(addr, db)
	if err != nil {
		return err
	}
	s.jrnl().append(codeChange{account: addr, prevCode: acc.Info.Code, prevHash: acc.Info.CodeHash})
	acc.Info.SetCode(code)
	s.Touch(addr)
	return nil
}

// SetStorage sets a storage slot of an account.
func (s *JournaledState) SetStorage(addr common.Address, slot, value common.Hash, db DatabaseRef) error {
	acc, err := s.LoadAccount(addr, db)
	if err != nil {
		return err
	}
	prev, existed := acc.Storage[slot]
	s.jrnl().append(storageChange{account: addr, key: slot, prev: prev, existed: existed})
	acc.Storage[slot] = value
	s.Touch(addr)
	return nil
}

// AddLog appends a log emitted during execution.
func (s *JournaledState) AddLog(l *types.Log) {
	s.jrnl().append(addLogChange{})
	s.Logs = append(s.Logs, l)
}

// Checkpoint returns an identifier for the current revision.
// Checkpoint 返回当前修订版本的标识符。
func (s *JournaledState) Checkpoint() int {
	return s.jrnl().snapshot()
}

// RevertToCheckpoint undoes every change made since the checkpoint was taken.
func (s *JournaledState) RevertToCheckpoint(id int) {
	s.jrnl().revertToSnapshot(id, s)
}

// SetAccount places acc into the journaled state verbatim, outside of the
// journal. Used when carrying accounts across forks.
func (s *JournaledState) SetAccount(addr common.Address, acc *Account) {
	s.jrnl()
	s.State[addr] = acc.Copy()
}

// Remove drops an account from the journaled state.
func (s *JournaledState) Remove(addr common.Address) {
	delete(s.State, addr)
}

// Changes returns a copy of every touched account, ready to be committed.
func (s *JournaledState) Changes() Changes {
	changes := make(Changes)
	for addr, acc := range s.State {
		if acc.Touched() {
			changes[addr] = acc.Copy()
		}
	}
	return changes
}

// Finalize returns the touched accounts and the logs and clears the journaled
// state for the next transaction.
// Finalize 返回被修改的账户和日志，并为下一笔交易清空日志状态。
func (s *JournaledState) Finalize() (Changes, []*types.Log) {
	changes, logs := s.Changes(), s.Logs
	s.State = make(map[common.Address]*Account)
	s.Logs = nil
	s.Depth = 0
	s.jrnl().reset()
	return changes, logs
}

func (s *JournaledState) jrnl() *journal {
	if s.journal == nil {
		s.journal = newJournal()
	}
	if s.State == nil {
		s.State = make(map[common.Address]*Account)
	}
	return s.journal
}
