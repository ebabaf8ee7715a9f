// Copyright 2016 The go-ethereum Authors
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
	"fmt"
	"slices"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type revision struct {
	id           int
	journalIndex int
}

// journalEntry is a modification entry in the state change journal that can be
// reverted on demand.
// journalEntry 是状态变更日志中的修改条目，可以按需撤销。
type journalEntry interface {
	// revert undoes the changes introduced by this journal entry.
	revert(*JournaledState)

	// copy returns a deep-copied journal entry.
	copy() journalEntry
}

// journal contains the list of state modifications applied since the last
// finalize. These are tracked to be able to be reverted in the case of an
// execution exception or request for reversal.
// journal 包含自上次 finalize 以来应用的状态修改列表，用于在执行异常时回滚。
type journal struct {
	entries []journalEntry

	validRevisions []revision
	nextRevisionId int
}

func newJournal() *journal {
	return &journal{}
}

// reset clears the journal, after this operation the journal can be used anew.
func (j *journal) reset() {
	j.entries = j.entries[:0]
	j.validRevisions = j.validRevisions[:0]
	j.nextRevisionId = 0
}

// snapshot returns an identifier for the current revision of the state.
func (j *journal) snapshot() int {
	id := j.nextRevisionId
	j.nextRevisionId++
	j.validRevisions = append(j.validRevisions, revision{id, len(j.entries)})
	return id
}

// revertToSnapshot reverts all state changes made since the given revision.
func (j *journal) revertToSnapshot(revid int, s *JournaledState) {
	idx := sort.Search(len(j.validRevisions), func(i int) bool {
		return j.validRevisions[i].id >= revid
	})
	if idx == len(j.validRevisions) || j.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := j.validRevisions[idx].journalIndex

	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:snapshot]
	j.validRevisions = j.validRevisions[:idx]
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// copy returns a deep-copied journal.
func (j *journal) copy() *journal {
	entries := make([]journalEntry, 0, len(j.entries))
	for _, entry := range j.entries {
		entries = append(entries, entry.copy())
	}
	return &journal{
		entries:        entries,
		validRevisions: slices.Clone(j.validRevisions),
		nextRevisionId: j.nextRevisionId,
	}
}

type (
	// accountLoadChange is recorded when an account enters the journaled state.
	accountLoadChange struct {
		account common.Address
	}
	balanceChange struct {
		account common.Address
		prev    *uint256.Int
	}
	nonceChange struct {
		account common.Address
		prev    uint64
	}
	codeChange struct {
		account  common.Address
		prevCode []byte
		prevHash common.Hash
	}
	storageChange struct {
		account common.Address
		key     common.Hash
		prev    common.Hash
		existed bool // false if the slot was not loaded before
	}
	statusChange struct {
		account common.Address
		prev    AccountStatus
	}
	addLogChange struct{}
)

func (ch accountLoadChange) revert(s *JournaledState) {
	delete(s.State, ch.account)
}

func (ch accountLoadChange) copy() journalEntry {
	return accountLoadChange{account: ch.account}
}

func (ch balanceChange) revert(s *JournaledState) {
	s.State[ch.account].Info.Balance = ch.prev
}

func (ch balanceChange) copy() journalEntry {
	return balanceChange{account: ch.account, prev: new(uint256.Int).Set(ch.prev)}
}

func (ch nonceChange) revert(s *JournaledState) {
	s.State[ch.account].Info.Nonce = ch.prev
}

func (ch nonceChange) copy() journalEntry {
	return ch
}

func (ch codeChange) revert(s *JournaledState) {
	info := &s.State[ch.account].Info
	info.Code, info.CodeHash = ch.prevCode, ch.prevHash
}

func (ch codeChange) copy() journalEntry {
	return codeChange{account: ch.account, prevCode: common.CopyBytes(ch.prevCode), prevHash: ch.prevHash}
}

func (ch storageChange) revert(s *JournaledState) {
	if ch.existed {
		s.State[ch.account].Storage[ch.key] = ch.prev
	} else {
		delete(s.State[ch.account].Storage, ch.key)
	}
}

func (ch storageChange) copy() journalEntry {
	return ch
}

func (ch statusChange) revert(s *JournaledState) {
	s.State[ch.account].Status = ch.prev
}

func (ch statusChange) copy() journalEntry {
	return ch
}

func (ch addLogChange) revert(s *JournaledState) {
	s.Logs = s.Logs[:len(s.Logs)-1]
}

func (ch addLogChange) copy() journalEntry {
	return ch
}
