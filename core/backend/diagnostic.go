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
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/core/state"
)

// RevertDiagnostic explains a revert caused by calling an address that holds
// no code on the active fork.
// RevertDiagnostic 解释由于调用在活动分叉上没有代码的地址而导致的回滚。
type RevertDiagnostic struct {
	Contract    common.Address
	Active      LocalForkID
	AvailableOn []LocalForkID // forks where the contract exists, sorted
	Persistent  bool
}

// String implements fmt.Stringer.
func (d *RevertDiagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "contract %s does not exist on active fork with id `%d`", d.Contract.Hex(), d.Active)
	if len(d.AvailableOn) > 0 {
		ids := make([]string, len(d.AvailableOn))
		for i, id := range d.AvailableOn {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, "\n\tbut exists on non active forks: [%s]", strings.Join(ids, ", "))
	}
	if !d.Persistent {
		b.WriteString("\n\tand is not marked persistent, see addPersistentAccount(address)")
	}
	return b.String()
}

type remoteCheck struct {
	id     LocalForkID
	remote *forkdb.Database
}

// DiagnoseRevert checks whether callee is missing on the active fork but
// exists on another one. It returns nil outside of multi-fork mode or when
// callee holds code on the active fork.
//
// DiagnoseRevert 检查 callee 是否在活动分叉上缺失但存在于其他分叉上。
func (b *Backend) DiagnoseRevert(ctx context.Context, callee common.Address, journal *state.JournaledState) *RevertDiagnostic {
	b.lock.RLock()
	if b.active == nil || len(b.registry) <= 1 {
		b.lock.RUnlock()
		return nil
	}
	active := *b.active
	diag := &RevertDiagnostic{Contract: callee, Active: active, Persistent: b.persistent.Contains(callee)}

	var (
		found  = make(map[LocalForkID]bool)
		checks []remoteCheck
	)
	for id, f := range b.registry {
		jrnl := f.journal
		if id == active {
			jrnl = journal
		}
		if isContractInJournal(jrnl, callee) {
			found[id] = true
			continue
		}
		if info, ok := f.db.LocalBasic(callee); ok {
			found[id] = info != nil && info.HasCode()
			continue
		}
		checks = append(checks, remoteCheck{id: id, remote: f.remote})
	}
	b.lock.RUnlock()

	for _, p := range checks {
		if found[active] && p.id != active {
			continue
		}
		info, err := p.remote.Basic(ctx, callee)
		if err != nil {
			log.Debug("Failed to check contract on fork", "fork", p.id, "address", callee, "err", err)
			continue
		}
		found[p.id] = info != nil && info.HasCode()
	}
	if found[active] {
		return nil
	}
	for id, ok := range found {
		if ok && id != active {
			diag.AvailableOn = append(diag.AvailableOn, id)
		}
	}
	slices.Sort(diag.AvailableOn)
	return diag
}
