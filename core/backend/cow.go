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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/core/state"
)

// CowBackend wraps a borrowed backend for speculative execution. Reads go to
// the borrowed backend until the first mutation, which clones it exactly once;
// from then on reads and writes use the owned copy and the borrowed backend
// never changes. A CowBackend is used by one goroutine at a time.
//
// CowBackend 包装一个借用的后端用于推测性执行。在第一次修改之前读操作直接访问
// 借用的后端，第一次修改时会将其克隆一次，此后读写都使用自有副本。
type CowBackend struct {
	borrowed    *Backend
	owned       *Backend
	initialized bool
}

// NewCowBackend wraps b.
func NewCowBackend(b *Backend) *CowBackend {
	return &CowBackend{borrowed: b}
}

// Cloned reports whether the borrowed backend has been cloned.
func (c *CowBackend) Cloned() bool {
	return c.owned != nil
}

// backend returns the backend reads go to.
func (c *CowBackend) backend() *Backend {
	if c.owned != nil {
		return c.owned
	}
	return c.borrowed
}

// backendMut returns the owned backend, cloning the borrowed one on first use
// and initialising it with env once per top-level call.
func (c *CowBackend) backendMut(env *Env) *Backend {
	if c.owned == nil {
		c.owned = c.borrowed.Clone()
		cowCloneMeter.Mark(1)
		log.Trace("Cloned backend for speculative execution")
	}
	if !c.initialized {
		c.owned.Initialize(env)
		c.initialized = true
	}
	return c.owned
}

// initializedBackendMut returns the owned backend if the current top-level
// call already initialised it.
func (c *CowBackend) initializedBackendMut() *Backend {
	if c.initialized {
		return c.owned
	}
	return nil
}

// Inspect executes msg against the wrapped state without committing the
// result. Each call starts a new top-level call.
// Inspect 在包装的状态上执行 msg 但不提交结果。
func (c *CowBackend) Inspect(env *Env, msg *Message, insp Inspector) (*ExecutionResult, error) {
	c.initialized = false
	exec := c.backend().Executor()
	if exec == nil {
		return nil, ErrNoExecutor
	}
	if insp == nil {
		insp = noopInspector{}
	}
	return exec.Execute(c, env, msg, insp)
}

// Basic implements state.DatabaseRef.
func (c *CowBackend) Basic(addr common.Address) (*state.AccountInfo, error) {
	return c.backend().Basic(addr)
}

// Storage implements state.DatabaseRef.
func (c *CowBackend) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return c.backend().Storage(addr, slot)
}

// CodeByHash implements state.DatabaseRef.
func (c *CowBackend) CodeByHash(hash common.Hash) ([]byte, error) {
	return c.backend().CodeByHash(hash)
}

// BlockHash implements state.DatabaseRef.
func (c *CowBackend) BlockHash(number uint64) (common.Hash, error) {
	return c.backend().BlockHash(number)
}

// Commit implements StateView.
func (c *CowBackend) Commit(changes state.Changes) {
	c.backendMut(&Env{}).Commit(changes)
}

// Snapshot is Backend.Snapshot on the owned copy.
func (c *CowBackend) Snapshot(journal *state.JournaledState, env *Env) *uint256.Int {
	return c.backendMut(env).Snapshot(journal, env)
}

// Revert is Backend.Revert on the owned copy.
func (c *CowBackend) Revert(id *uint256.Int, journal *state.JournaledState, env *Env, action RevertAction) (*state.JournaledState, bool) {
	return c.backendMut(env).Revert(id, journal, env, action)
}

// DeleteSnapshot is Backend.DeleteSnapshot. Without an initialised copy there
// is no snapshot of this call to delete.
func (c *CowBackend) DeleteSnapshot(id *uint256.Int) bool {
	if b := c.initializedBackendMut(); b != nil {
		return b.DeleteSnapshot(id)
	}
	return false
}

// DeleteSnapshots is Backend.DeleteSnapshots on the initialised copy.
func (c *CowBackend) DeleteSnapshots() {
	if b := c.initializedBackendMut(); b != nil {
		b.DeleteSnapshots()
	}
}

// CreateFork is Backend.CreateFork on the owned copy.
func (c *CowBackend) CreateFork(ctx context.Context, cfg forkdb.Config) (LocalForkID, error) {
	return c.backendMut(&Env{}).CreateFork(ctx, cfg)
}

// CreateSelectFork is Backend.CreateSelectFork on the owned copy.
func (c *CowBackend) CreateSelectFork(ctx context.Context, cfg forkdb.Config, env *Env, journal *state.JournaledState) (LocalForkID, error) {
	return c.backendMut(env).CreateSelectFork(ctx, cfg, env, journal)
}

// CreateForkAtTransaction is Backend.CreateForkAtTransaction on the owned copy.
func (c *CowBackend) CreateForkAtTransaction(ctx context.Context, cfg forkdb.Config, hash common.Hash) (LocalForkID, error) {
	return c.backendMut(&Env{}).CreateForkAtTransaction(ctx, cfg, hash)
}

// SelectFork is Backend.SelectFork on the owned copy.
func (c *CowBackend) SelectFork(ctx context.Context, id LocalForkID, env *Env, journal *state.JournaledState) error {
	return c.backendMut(env).SelectFork(ctx, id, env, journal)
}

// RollFork is Backend.RollFork on the owned copy.
func (c *CowBackend) RollFork(ctx context.Context, id *LocalForkID, block uint64, env *Env, journal *state.JournaledState) error {
	return c.backendMut(env).RollFork(ctx, id, block, env, journal)
}

// RollForkToTransaction is Backend.RollForkToTransaction on the owned copy.
func (c *CowBackend) RollForkToTransaction(ctx context.Context, id *LocalForkID, hash common.Hash, env *Env, journal *state.JournaledState) error {
	return c.backendMut(env).RollForkToTransaction(ctx, id, hash, env, journal)
}

// Transact is Backend.Transact on the owned copy.
func (c *CowBackend) Transact(ctx context.Context, id *LocalForkID, hash common.Hash, env *Env, journal *state.JournaledState, insp Inspector) error {
	return c.backendMut(env).Transact(ctx, id, hash, env, journal, insp)
}

// LoadAllocs is Backend.LoadAllocs on the owned copy.
func (c *CowBackend) LoadAllocs(allocs types.GenesisAlloc, journal *state.JournaledState) error {
	return c.backendMut(&Env{}).LoadAllocs(allocs, journal)
}

// SetBlockHash is Backend.SetBlockHash on the owned copy.
func (c *CowBackend) SetBlockHash(number uint64, hash common.Hash) {
	c.backendMut(&Env{}).SetBlockHash(number, hash)
}

// InsertAccountInfo is Backend.InsertAccountInfo on the owned copy.
func (c *CowBackend) InsertAccountInfo(addr common.Address, info *state.AccountInfo) {
	c.backendMut(&Env{}).InsertAccountInfo(addr, info)
}

// InsertAccountStorage is Backend.InsertAccountStorage on the owned copy.
func (c *CowBackend) InsertAccountStorage(addr common.Address, slot, value common.Hash) {
	c.backendMut(&Env{}).InsertAccountStorage(addr, slot, value)
}

// AddPersistentAccount is Backend.AddPersistentAccount on the owned copy.
func (c *CowBackend) AddPersistentAccount(addr common.Address) bool {
	return c.backendMut(&Env{}).AddPersistentAccount(addr)
}

// RemovePersistentAccount is Backend.RemovePersistentAccount on the owned copy.
func (c *CowBackend) RemovePersistentAccount(addr common.Address) bool {
	return c.backendMut(&Env{}).RemovePersistentAccount(addr)
}

// AllowCheatcodeAccess is Backend.AllowCheatcodeAccess on the owned copy.
func (c *CowBackend) AllowCheatcodeAccess(addr common.Address) bool {
	return c.backendMut(&Env{}).AllowCheatcodeAccess(addr)
}

// RevokeCheatcodeAccess is Backend.RevokeCheatcodeAccess on the owned copy.
func (c *CowBackend) RevokeCheatcodeAccess(addr common.Address) bool {
	return c.backendMut(&Env{}).RevokeCheatcodeAccess(addr)
}

// SetSnapshotFailure is Backend.SetSnapshotFailure on the owned copy.
func (c *CowBackend) SetSnapshotFailure(failed bool) {
	c.backendMut(&Env{}).SetSnapshotFailure(failed)
}

// IsPersistent reports whether addr is persistent.
func (c *CowBackend) IsPersistent(addr common.Address) bool {
	return c.backend().IsPersistent(addr)
}

// HasCheatcodeAccess reports whether addr may use cheatcodes.
func (c *CowBackend) HasCheatcodeAccess(addr common.Address) bool {
	return c.backend().HasCheatcodeAccess(addr)
}

// EnsureCheatcodeAccess is Backend.EnsureCheatcodeAccess.
func (c *CowBackend) EnsureCheatcodeAccess(addr common.Address) error {
	return c.backend().EnsureCheatcodeAccess(addr)
}

// EnsureCheatcodeAccessForkingMode is Backend.EnsureCheatcodeAccessForkingMode.
func (c *CowBackend) EnsureCheatcodeAccessForkingMode(addr common.Address) error {
	return c.backend().EnsureCheatcodeAccessForkingMode(addr)
}

// HasSnapshotFailure is Backend.HasSnapshotFailure.
func (c *CowBackend) HasSnapshotFailure() bool {
	return c.backend().HasSnapshotFailure()
}

// ActiveForkID is Backend.ActiveForkID.
func (c *CowBackend) ActiveForkID() (LocalForkID, bool) {
	return c.backend().ActiveForkID()
}

// ActiveForkURL is Backend.ActiveForkURL.
func (c *CowBackend) ActiveForkURL() string {
	return c.backend().ActiveForkURL()
}

// IsForkedMode is Backend.IsForkedMode.
func (c *CowBackend) IsForkedMode() bool {
	return c.backend().IsForkedMode()
}

// EnsureFork is Backend.EnsureFork.
func (c *CowBackend) EnsureFork(id *LocalForkID) (LocalForkID, error) {
	return c.backend().EnsureFork(id)
}

// DiagnoseRevert is Backend.DiagnoseRevert.
func (c *CowBackend) DiagnoseRevert(ctx context.Context, callee common.Address, journal *state.JournaledState) *RevertDiagnostic {
	return c.backend().DiagnoseRevert(ctx, callee, journal)
}

// MergedLogs is Backend.MergedLogs.
func (c *CowBackend) MergedLogs(logs []*types.Log) []*types.Log {
	return c.backend().MergedLogs(logs)
}
