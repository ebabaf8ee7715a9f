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

package backend

import (
	"context"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/core/state"
)

// LocalForkID is the stable handle of a fork. It is assigned monotonically
// and never reused, rolling a fork keeps its LocalForkID.
// LocalForkID 是分叉的稳定句柄，单调分配且不会复用。
type LocalForkID uint64

// fork is one fork registered in the backend: the pinned remote view, the
// local write layer on top of it and the journaled state parked while the
// fork is not active.
type fork struct {
	id      forkdb.ForkID
	remote  *forkdb.Database
	db      *state.CacheDB
	journal *state.JournaledState
	env     *Env
}

func newFork(id forkdb.ForkID, remote *forkdb.Database, env *Env, journal *state.JournaledState) *fork {
	return &fork{
		id:      id,
		remote:  remote,
		db:      state.NewCacheDB(remote.Ref(context.Background())),
		journal: journal,
		env:     env,
	}
}

// copy returns a deep copy of the fork sharing the remote view.
func (f *fork) copy() *fork {
	return &fork{
		id:      f.id,
		remote:  f.remote,
		db:      f.db.Clone(),
		journal: f.journal.Copy(),
		env:     f.env.Copy(),
	}
}

// ForkStatus describes a registered fork.
type ForkStatus struct {
	ID          LocalForkID
	Remote      forkdb.ForkID
	URL         string
	ChainID     uint64
	BlockNumber uint64
	Timestamp   uint64
	Active      bool
}

// isContractInJournal reports whether addr holds code in the journaled state.
func isContractInJournal(journal *state.JournaledState, addr common.Address) bool {
	if journal == nil {
		return false
	}
	acc := journal.Account(addr)
	return acc != nil && acc.Info.HasCode()
}

// mergeJournaledAccount carries the journaled account addr from one journaled
// state into another. Storage slots tracked only by the target are kept.
// mergeJournaledAccount 将 addr 的日志账户从一个日志状态带到另一个日志状态。
func mergeJournaledAccount(addr common.Address, from, to *state.JournaledState) {
	acc := from.Account(addr)
	if acc == nil {
		return
	}
	acc = acc.Copy()
	if existing := to.Account(addr); existing != nil {
		merged := maps.Clone(existing.Storage)
		maps.Copy(merged, acc.Storage)
		acc.Storage = merged
	}
	to.SetAccount(addr, acc)
}

// precompileLimit is the highest precompile address known to the node.
const precompileLimit = 0x11

// isPrecompile reports whether addr is a precompiled contract address.
func isPrecompile(addr common.Address) bool {
	for i := 0; i < common.AddressLength-1; i++ {
		if addr[i] != 0 {
			return false
		}
	}
	last := addr[common.AddressLength-1]
	return last >= 1 && last <= precompileLimit
}
