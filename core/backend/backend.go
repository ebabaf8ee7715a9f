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
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/core/state"
	"golang.org/x/sync/errgroup"
)

var (
	// CheatcodeAddress is the address of the cheatcode handler.
	CheatcodeAddress = common.HexToAddress("0x7109709ECfa91a80626fF3989D68f67F5b1DD12D")

	// Create2Deployer is the deterministic deployment proxy.
	Create2Deployer = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")

	// DefaultCaller is the sender used when none is configured.
	DefaultCaller = common.HexToAddress("0x1804c8AB1F12E6bbf3894d4083f33e07309d1f38")

	// DefaultTestContract is the address the first contract of DefaultCaller
	// is deployed to.
	DefaultTestContract = common.HexToAddress("0xb4c79daB8f259C7Aee6E5b2Aa729821864227e84")

	// GlobalFailSlot is the storage slot of CheatcodeAddress that records a
	// failure, its key is the string "failed" left aligned.
	GlobalFailSlot = common.BytesToHash(common.RightPadBytes([]byte("failed"), common.HashLength))
)

// depositTxType is the type of system transactions, which are never replayed.
const depositTxType = 0x7e

// Config holds the parameters of a backend.
type Config struct {
	Forks    *forkdb.MultiFork // fork registry, shared between copies
	Executor Executor          // executes replayed transactions
	Fork     *forkdb.Config    // if set the backend starts on this fork
}

// Backend is the authoritative state of the node. Without a fork every read
// and write goes to an in-memory database, with an active fork they go to the
// local layer of that fork. Reads resolve the local layer under the read lock
// and reach the remote endpoint only after releasing it; mutations hold the
// write lock for the duration of the mutation only.
//
// Backend 是节点的权威状态。没有分叉时所有读写都落在内存数据库上，
// 有活动分叉时则落在该分叉的本地层上。读操作在读锁下解析本地层，
// 释放锁之后才访问远程端点；修改操作只在修改期间持有写锁。
type Backend struct {
	forks    *forkdb.MultiFork
	executor Executor

	lock        sync.RWMutex
	memDB       *state.CacheDB
	initJournal *state.JournaledState // journaled state new forks start from
	active      *LocalForkID
	launched    *LocalForkID // fork the backend was started on

	registry   map[LocalForkID]*fork
	nextForkID LocalForkID

	snapshots       map[uint256.Int]*snapshot
	nextSnapshotID  uint256.Int
	snapshotFailure bool

	caller       *common.Address
	testContract *common.Address
	persistent   mapset.Set[common.Address]
	cheatAccess  mapset.Set[common.Address]
}

// New creates a backend. If cfg.Fork is set the fork is created right away and
// becomes active, an unreachable endpoint fails here.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Forks == nil {
		cfg.Forks = forkdb.NewMultiFork()
	}
	b := &Backend{
		forks:       cfg.Forks,
		executor:    cfg.Executor,
		memDB:       state.NewCacheDB(nil),
		initJournal: state.NewJournaledState(),
		registry:    make(map[LocalForkID]*fork),
		snapshots:   make(map[uint256.Int]*snapshot),
		persistent:  mapset.NewThreadUnsafeSet(CheatcodeAddress, Create2Deployer, DefaultCaller),
		cheatAccess: mapset.NewThreadUnsafeSet(CheatcodeAddress, DefaultTestContract, DefaultCaller),
	}
	if cfg.Fork != nil {
		id, remote, info, err := b.forks.CreateFork(ctx, *cfg.Fork)
		if err != nil {
			return nil, err
		}
		local := b.insertFork(id, remote, info, state.NewJournaledState())
		b.active, b.launched = &local, &local
	}
	return b, nil
}

// Executor returns the transaction executor of the backend.
func (b *Backend) Executor() Executor {
	return b.executor
}

// Forks returns the shared fork registry.
func (b *Backend) Forks() *forkdb.MultiFork {
	return b.forks
}

// Clone returns a deep copy of the backend. The copy shares the fork registry
// and the remote caches, every local layer and journal is copied.
// Clone 返回后端的深拷贝，副本共享分叉注册表和远程缓存。
func (b *Backend) Clone() *Backend {
	b.lock.RLock()
	defer b.lock.RUnlock()

	cpy := &Backend{
		forks:           b.forks,
		executor:        b.executor,
		memDB:           b.memDB.Clone(),
		initJournal:     b.initJournal.Copy(),
		active:          copyID(b.active),
		launched:        copyID(b.launched),
		registry:        make(map[LocalForkID]*fork, len(b.registry)),
		nextForkID:      b.nextForkID,
		snapshots:       make(map[uint256.Int]*snapshot, len(b.snapshots)),
		nextSnapshotID:  b.nextSnapshotID,
		snapshotFailure: b.snapshotFailure,
		caller:          copyAddr(b.caller),
		testContract:    copyAddr(b.testContract),
		persistent:      b.persistent.Clone(),
		cheatAccess:     b.cheatAccess.Clone(),
	}
	for id, f := range b.registry {
		cpy.registry[id] = f.copy()
	}
	for id, snap := range b.snapshots {
		cpy.snapshots[id] = snap
	}
	return cpy
}

func copyID(id *LocalForkID) *LocalForkID {
	if id == nil {
		return nil
	}
	cpy := *id
	return &cpy
}

func copyAddr(addr *common.Address) *common.Address {
	if addr == nil {
		return nil
	}
	cpy := *addr
	return &cpy
}

// Initialize records the caller and the test contract of env. The caller is
// granted cheatcode access.
func (b *Backend) Initialize(env *Env) {
	b.lock.Lock()
	defer b.lock.Unlock()

	caller := env.Tx.Caller
	b.caller = &caller
	b.cheatAccess.Add(caller)

	var contract common.Address
	if env.Tx.To != nil {
		contract = *env.Tx.To
	} else {
		contract = crypto.CreateAddress(caller, env.Tx.Nonce)
	}
	b.testContract = &contract
}

// TestContract returns the test contract recorded by Initialize.
func (b *Backend) TestContract() (common.Address, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.testContract == nil {
		return common.Address{}, false
	}
	return *b.testContract, true
}

// activeDB returns the database live reads and writes go to. The lock must be
// held.
func (b *Backend) activeDB() *state.CacheDB {
	if b.active != nil {
		return b.registry[*b.active].db
	}
	return b.memDB
}

// Basic implements state.DatabaseRef.
func (b *Backend) Basic(addr common.Address) (*state.AccountInfo, error) {
	b.lock.RLock()
	db := b.activeDB()
	info, ok := db.LocalBasic(addr)
	ref := db.Ref()
	b.lock.RUnlock()

	if ok {
		return info, nil
	}
	return ref.Basic(addr)
}

// Storage implements state.DatabaseRef.
func (b *Backend) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	b.lock.RLock()
	db := b.activeDB()
	value, ok := db.LocalStorage(addr, slot)
	ref := db.Ref()
	b.lock.RUnlock()

	if ok {
		return value, nil
	}
	return ref.Storage(addr, slot)
}

// CodeByHash implements state.DatabaseRef.
func (b *Backend) CodeByHash(hash common.Hash) ([]byte, error) {
	b.lock.RLock()
	db := b.activeDB()
	code, ok := db.LocalCode(hash)
	ref := db.Ref()
	b.lock.RUnlock()

	if ok {
		return code, nil
	}
	return ref.CodeByHash(hash)
}

// BlockHash implements state.DatabaseRef.
func (b *Backend) BlockHash(number uint64) (common.Hash, error) {
	b.lock.RLock()
	db := b.activeDB()
	hash, ok := db.LocalBlockHash(number)
	ref := db.Ref()
	b.lock.RUnlock()

	if ok {
		return hash, nil
	}
	return ref.BlockHash(number)
}

// Commit applies a batch of deltas to the active database.
func (b *Backend) Commit(changes state.Changes) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.activeDB().Commit(changes)
}

// InsertAccountInfo sets the info of an account in the active database.
func (b *Backend) InsertAccountInfo(addr common.Address, info *state.AccountInfo) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.activeDB().InsertAccountInfo(addr, info)
}

// InsertAccountStorage sets a storage slot in the active database.
func (b *Backend) InsertAccountStorage(addr common.Address, slot, value common.Hash) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.activeDB().InsertAccountStorage(addr, slot, value)
}

// ReplaceAccountStorage replaces the storage of an account in the active
// database.
func (b *Backend) ReplaceAccountStorage(addr common.Address, storage map[common.Hash]common.Hash) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.activeDB().ReplaceAccountStorage(addr, storage)
}

// SetBlockHash overrides the hash of a block in the active database.
func (b *Backend) SetBlockHash(number uint64, hash common.Hash) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.activeDB().SetBlockHash(number, hash)
}

// Snapshot captures the current state and returns its id. Ids increase
// monotonically and are never reused.
// Snapshot 捕获当前状态并返回其 id。
func (b *Backend) Snapshot(journal *state.JournaledState, env *Env) *uint256.Int {
	b.lock.Lock()
	defer b.lock.Unlock()

	snap := &snapshot{journal: journal.Copy(), env: env.Copy()}
	if b.active != nil {
		snap.active = copyID(b.active)
		snap.fork = b.registry[*b.active].copy()
	} else {
		snap.memDB = b.memDB.Clone()
	}
	id := b.nextSnapshotID
	b.snapshots[id] = snap
	b.nextSnapshotID.AddUint64(&b.nextSnapshotID, 1)

	snapshotCreateMeter.Mark(1)
	log.Trace("Created state snapshot", "id", &id, "forked", snap.active != nil)
	return &id
}

// Revert restores the snapshot id and returns the journaled state to continue
// with. Logs of the current journaled state are carried over so they stay
// visible after the revert. The snapshot is removed unless action is
// RevertKeep. If the global failure slot is set in the current journaled
// state, the backend records a snapshot failure.
//
// Revert 恢复快照 id 并返回后续使用的日志状态。当前日志状态中的日志会被保留。
func (b *Backend) Revert(id *uint256.Int, journal *state.JournaledState, env *Env, action RevertAction) (*state.JournaledState, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	snap, ok := b.snapshots[*id]
	if !ok {
		return nil, false
	}
	if action == RevertRemove {
		delete(b.snapshots, *id)
	}
	if acc := journal.Account(CheatcodeAddress); acc != nil {
		if value := acc.Storage[GlobalFailSlot]; value != (common.Hash{}) {
			b.snapshotFailure = true
		}
	}
	restored := snap.journal.Copy()
	restored.Logs = journal.Copy().Logs

	if snap.fork == nil {
		b.memDB = snap.memDB.Clone()
		b.active = nil
	} else {
		f := snap.fork.copy()
		if b.caller != nil && restored.Account(*b.caller) == nil {
			caller := *b.caller
			info := state.NewAccountInfo(nil, 0, nil)
			if acc := journal.Account(caller); acc != nil {
				info = acc.Info.Copy()
			}
			if f.db.Account(caller) == nil {
				f.db.InsertAccountInfo(caller, info)
			}
			restored.SetAccount(caller, state.NewAccount(info))
		}
		b.registry[*snap.active] = f
		b.active = copyID(snap.active)
	}
	updateEnvWithForkEnv(env, snap.env)

	snapshotRevertMeter.Mark(1)
	log.Trace("Reverted state snapshot", "id", id, "forked", b.active != nil)
	return restored, true
}

// DeleteSnapshot removes a snapshot and reports whether it existed.
func (b *Backend) DeleteSnapshot(id *uint256.Int) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	_, ok := b.snapshots[*id]
	delete(b.snapshots, *id)
	return ok
}

// DeleteSnapshots removes every snapshot. Ids are not reused afterwards.
func (b *Backend) DeleteSnapshots() {
	b.lock.Lock()
	defer b.lock.Unlock()

	clear(b.snapshots)
}

// HasSnapshotFailure reports whether a reverted snapshot carried a failure.
func (b *Backend) HasSnapshotFailure() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.snapshotFailure
}

// SetSnapshotFailure sets or clears the snapshot failure flag.
func (b *Backend) SetSnapshotFailure(failed bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.snapshotFailure = failed
}

// insertFork registers a new fork. The lock must be held.
func (b *Backend) insertFork(id forkdb.ForkID, remote *forkdb.Database, info *forkdb.ForkInfo, journal *state.JournaledState) LocalForkID {
	local := b.nextForkID
	b.nextForkID++
	b.registry[local] = newFork(id, remote, EnvFromHeader(info.Header, info.ChainID.Uint64()), journal)
	return local
}

// CreateFork creates a fork without selecting it.
// CreateFork 创建一个分叉但不选中它。
func (b *Backend) CreateFork(ctx context.Context, cfg forkdb.Config) (LocalForkID, error) {
	id, remote, info, err := b.forks.CreateFork(ctx, cfg)
	if err != nil {
		return 0, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()

	local := b.insertFork(id, remote, info, b.initJournal.Copy())
	log.Debug("Created fork", "id", local, "fork", id)
	return local, nil
}

// CreateSelectFork creates a fork and selects it.
func (b *Backend) CreateSelectFork(ctx context.Context, cfg forkdb.Config, env *Env, journal *state.JournaledState) (LocalForkID, error) {
	id, err := b.CreateFork(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if err := b.SelectFork(ctx, id, env, journal); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateForkAtTransaction creates a fork holding the state right after the
// transaction hash was executed in its block.
func (b *Backend) CreateForkAtTransaction(ctx context.Context, cfg forkdb.Config, hash common.Hash) (LocalForkID, error) {
	id, err := b.CreateFork(ctx, cfg)
	if err != nil {
		return 0, err
	}
	env, err := b.ForkEnv(id)
	if err != nil {
		return 0, err
	}
	if err := b.RollForkToTransaction(ctx, &id, hash, env, state.NewJournaledState()); err != nil {
		return 0, err
	}
	return id, nil
}

type warmJob struct {
	remote *forkdb.Database
	addr   common.Address
}

// loadedAccounts returns the accounts of journal that must be re-read from
// each fork when the journaled state becomes the initial state of all forks.
// The lock must be held.
func (b *Backend) loadedAccounts(journal *state.JournaledState) []common.Address {
	var addrs []common.Address
	for addr := range journal.State {
		if !isPrecompile(addr) && !b.persistent.Contains(addr) {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// warmSelect fetches the remote accounts SelectFork will read so that the
// write lock is not held across remote requests.
func (b *Backend) warmSelect(ctx context.Context, id LocalForkID, env *Env, journal *state.JournaledState) error {
	b.lock.RLock()
	target, ok := b.registry[id]
	if !ok {
		b.lock.RUnlock()
		return &ForkNotFoundError{ID: id}
	}
	var jobs []warmJob
	if b.active == nil {
		loaded := b.loadedAccounts(journal)
		for _, f := range b.registry {
			for _, addr := range loaded {
				if _, ok := f.db.LocalBasic(addr); !ok {
					jobs = append(jobs, warmJob{f.remote, addr})
				}
			}
		}
	} else if _, ok := target.db.LocalBasic(env.Tx.Caller); !ok {
		jobs = append(jobs, warmJob{target.remote, env.Tx.Caller})
	}
	b.lock.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, job := range jobs {
		g.Go(func() error {
			_, err := job.remote.Basic(gctx, job.addr)
			return err
		})
	}
	return g.Wait()
}

// SelectFork makes id the active fork. The journaled state of the previously
// active fork is parked, persistent accounts are carried over and journal is
// replaced by the journaled state of the selected fork. env receives the
// block parameters of the selected fork.
//
// SelectFork 将 id 设为活动分叉。之前活动分叉的日志状态会被保存，
// 持久账户会被带过来，journal 被替换为所选分叉的日志状态。
func (b *Backend) SelectFork(ctx context.Context, id LocalForkID, env *Env, journal *state.JournaledState) error {
	if b.IsActiveFork(id) {
		return nil
	}
	if err := b.warmSelect(ctx, id, env, journal); err != nil {
		return err
	}
	b.lock.Lock()
	defer b.lock.Unlock()

	target, ok := b.registry[id]
	if !ok {
		return &ForkNotFoundError{ID: id}
	}
	if b.active != nil && *b.active == id {
		return nil
	}
	caller := env.Tx.Caller
	if b.active != nil {
		active := b.registry[*b.active]
		active.env.Block.Number = env.Block.Number
		active.env.Block.Timestamp = env.Block.Timestamp
		active.journal = journal.Copy()

		if target.journal.Depth == 0 {
			if acc := journal.Account(caller); acc != nil {
				info, err := target.db.Basic(caller)
				if err != nil {
					return err
				}
				if info == nil {
					info = state.NewAccountInfo(nil, 0, nil)
				}
				acc = acc.Copy()
				acc.Info = *info
				target.journal.SetAccount(caller, acc)
			}
		}
		// Persistent slots changed on the active fork must be visible in
		// the journaled state of the target.
		// 在活动分叉上修改的持久存储槽必须在目标分叉的日志状态中可见。
		for addr := range b.persistent.Iter() {
			dbAcc := active.db.Account(addr)
			forkAcc := target.journal.Account(addr)
			if dbAcc == nil || forkAcc == nil {
				continue
			}
			for slot, value := range dbAcc.Storage {
				if _, ok := forkAcc.Storage[slot]; ok {
					forkAcc.Storage[slot] = value
				}
			}
		}
	} else {
		// First selection: everything so far happened in one journaled state
		// which becomes the starting point of every fork.
		b.initJournal = journal.Copy()
		if err := b.prepareInitJournal(); err != nil {
			return err
		}
		b.initJournal.Depth = 0
		target = b.registry[id]
	}
	target.journal.Depth = journal.Depth

	if target.journal.Account(caller) == nil {
		info := state.NewAccountInfo(nil, 0, nil)
		if acc := journal.Account(caller); acc != nil {
			info = acc.Info.Copy()
		}
		if target.db.Account(caller) == nil {
			target.db.InsertAccountInfo(caller, info)
		}
		target.journal.SetAccount(caller, state.NewAccount(info))
	}
	activeDB := b.activeDB()
	for addr := range b.persistent.Iter() {
		target.db.MergeAccount(activeDB, addr)
		mergeJournaledAccount(addr, journal, target.journal)
	}
	*journal = *target.journal.Copy()

	b.active = &id
	updateEnvWithForkEnv(env, target.env)

	forkSelectMeter.Mark(1)
	log.Debug("Selected fork", "id", id, "fork", target.id)
	return nil
}

// prepareInitJournal hands the initial journaled state to every fork,
// replacing accounts loaded before the first selection with their state on
// each fork. Created accounts are kept as they are. The lock must be held.
func (b *Backend) prepareInitJournal() error {
	loaded := b.loadedAccounts(b.initJournal)
	for _, f := range b.registry {
		journal := b.initJournal.Copy()
		for _, addr := range loaded {
			acc := journal.Account(addr)
			if acc.Created() {
				continue
			}
			info, err := f.db.Basic(addr)
			if err != nil {
				return err
			}
			if info == nil {
				info = state.NewAccountInfo(nil, 0, nil)
			}
			acc.Info = *info
		}
		f.journal = journal
	}
	return nil
}

// RollFork re-pins a fork, the active one if id is nil, to block. Persistent
// accounts keep their local state. Rolling the active fork updates env and
// journal immediately.
// RollFork 将分叉重新固定到 block，持久账户保留其本地状态。
func (b *Backend) RollFork(ctx context.Context, id *LocalForkID, block uint64, env *Env, journal *state.JournaledState) error {
	local, err := b.EnsureFork(id)
	if err != nil {
		return err
	}
	b.lock.RLock()
	remoteID := b.registry[local].id
	b.lock.RUnlock()

	newID, remote, info, err := b.forks.RollFork(ctx, remoteID, block)
	if err != nil {
		return err
	}
	b.lock.Lock()
	defer b.lock.Unlock()

	f, ok := b.registry[local]
	if !ok {
		return &ForkNotFoundError{ID: local}
	}
	db := state.NewCacheDB(remote.Ref(context.Background()))
	for addr := range b.persistent.Iter() {
		db.MergeAccount(f.db, addr)
	}
	f.id, f.remote, f.db = newID, remote, db
	f.env = EnvFromHeader(info.Header, info.ChainID.Uint64())

	if b.active != nil && *b.active == local {
		updateEnvWithForkEnv(env, f.env)

		keep := b.persistent.Clone()
		if b.caller != nil {
			keep.Add(*b.caller)
		}
		rolled := b.initJournal.Copy()
		rolled.Depth = journal.Depth
		for addr := range keep.Iter() {
			mergeJournaledAccount(addr, journal, rolled)
		}
		for addr, acc := range journal.State {
			if acc.Created() && acc.Touched() {
				mergeJournaledAccount(addr, journal, rolled)
			}
		}
		f.journal = rolled
		*journal = *rolled.Copy()
	}
	log.Debug("Rolled fork", "id", local, "from", remoteID, "to", newID)
	return nil
}

// RollForkToTransaction rolls a fork to the parent of the block containing
// hash and replays the transactions of that block up to and including hash.
func (b *Backend) RollForkToTransaction(ctx context.Context, id *LocalForkID, hash common.Hash, env *Env, journal *state.JournaledState) error {
	local, err := b.EnsureFork(id)
	if err != nil {
		return err
	}
	remote, err := b.remote(local)
	if err != nil {
		return err
	}
	_, number, err := remote.Transaction(ctx, hash)
	if err != nil {
		return err
	}
	if number == 0 {
		return fmt.Errorf("cannot roll to transaction %x in the genesis block", hash)
	}
	block, err := remote.FullBlock(ctx, number)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(block.Transactions(), func(tx *types.Transaction) bool { return tx.Hash() == hash }) {
		return &TransactionNotInBlockError{Hash: hash, Block: number}
	}
	if err := b.RollFork(ctx, &local, number-1, env, journal); err != nil {
		return err
	}
	env.Block = BlockEnvFromHeader(block.Header())

	for _, tx := range block.Transactions() {
		if tx.Type() == depositTxType {
			continue
		}
		if err := b.commitTransaction(local, tx, env.Copy(), journal, noopInspector{}); err != nil {
			return err
		}
		if tx.Hash() == hash {
			break
		}
	}
	b.lock.Lock()
	if f, ok := b.registry[local]; ok {
		f.env.Block = env.Copy().Block
	}
	b.lock.Unlock()
	return nil
}

// Transact replays the historical transaction hash of a fork, the active one
// if id is nil, on top of the current state of that fork. env is left
// untouched.
// Transact 在分叉的当前状态之上重放历史交易 hash。
func (b *Backend) Transact(ctx context.Context, id *LocalForkID, hash common.Hash, env *Env, journal *state.JournaledState, insp Inspector) error {
	local, err := b.EnsureFork(id)
	if err != nil {
		return err
	}
	remote, err := b.remote(local)
	if err != nil {
		return err
	}
	tx, number, err := remote.Transaction(ctx, hash)
	if err != nil {
		return err
	}
	block, err := remote.FullBlock(ctx, number)
	if err != nil {
		return err
	}
	txEnv := env.Copy()
	txEnv.Block = BlockEnvFromHeader(block.Header())
	if insp == nil {
		insp = noopInspector{}
	}
	return b.commitTransaction(local, tx, txEnv, journal, insp)
}

func (b *Backend) remote(id LocalForkID) (*forkdb.Database, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	f, ok := b.registry[id]
	if !ok {
		return nil, &ForkNotFoundError{ID: id}
	}
	return f.remote, nil
}

// commitTransaction executes tx against a copy of the local layer of fork id
// without holding the lock, then commits the result to the fork and refreshes
// the journaled states that hold the changed accounts.
func (b *Backend) commitTransaction(id LocalForkID, tx *types.Transaction, env *Env, journal *state.JournaledState, insp Inspector) error {
	if b.executor == nil {
		return ErrNoExecutor
	}
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(env.Cfg.ChainID))
	msg, err := TransactionToMessage(tx, signer, env.Block.BaseFee)
	if err != nil {
		return &ExecutionError{Tx: tx.Hash(), Err: err}
	}
	env.Tx.Caller, env.Tx.To, env.Tx.Nonce, env.Tx.GasPrice = msg.From, msg.To, msg.Nonce, msg.GasPrice

	b.lock.RLock()
	f, ok := b.registry[id]
	if !ok {
		b.lock.RUnlock()
		return &ForkNotFoundError{ID: id}
	}
	view := f.db.Clone()
	b.lock.RUnlock()

	res, err := b.executor.Execute(view, env, msg, insp)
	if err != nil {
		return &ExecutionError{Tx: tx.Hash(), Err: err}
	}
	b.lock.Lock()
	defer b.lock.Unlock()

	if f, ok = b.registry[id]; !ok {
		return &ForkNotFoundError{ID: id}
	}
	f.db.Commit(res.Changes)
	b.refreshJournal(journal, res.Changes)
	b.refreshJournal(f.journal, res.Changes)
	log.Trace("Replayed transaction", "fork", id, "hash", tx.Hash(), "gas", res.GasUsed, "failed", res.Failed)
	return nil
}

// refreshJournal updates the non-persistent accounts of journal that were
// changed by a committed transaction. The lock must be held.
func (b *Backend) refreshJournal(journal *state.JournaledState, changes state.Changes) {
	if journal == nil {
		return
	}
	for addr, change := range changes {
		acc := journal.Account(addr)
		if acc == nil || b.persistent.Contains(addr) {
			continue
		}
		acc.Info = *change.Info.Copy()
		for slot := range acc.Storage {
			if value, ok := change.Storage[slot]; ok {
				acc.Storage[slot] = value
			} else if change.Created() || change.SelfDestructed() {
				acc.Storage[slot] = common.Hash{}
			}
		}
	}
}

// LoadAllocs loads genesis accounts into journal, reading their previous
// state through the backend. Every loaded account is touched so it survives
// the next commit.
// LoadAllocs 将创世账户加载到 journal 中，每个加载的账户都会被标记为已修改。
func (b *Backend) LoadAllocs(allocs types.GenesisAlloc, journal *state.JournaledState) error {
	for addr, alloc := range allocs {
		acc, err := journal.LoadAccount(addr, b)
		if err != nil {
			return err
		}
		if alloc.Code != nil {
			acc.Info.SetCode(alloc.Code)
		}
		for slot, value := range alloc.Storage {
			acc.Storage[slot] = value
		}
		acc.Info.Nonce = alloc.Nonce
		acc.Info.Balance = new(uint256.Int)
		if alloc.Balance != nil {
			acc.Info.Balance = uint256.MustFromBig(alloc.Balance)
		}
		journal.Touch(addr)
	}
	return nil
}

// ApplyAllocs loads allocs into a fresh journaled state and commits it to
// the active database.
// ApplyAllocs 加载创世账户并提交到活动数据库。
func (b *Backend) ApplyAllocs(allocs types.GenesisAlloc) error {
	journal := state.NewJournaledState()
	if err := b.LoadAllocs(allocs, journal); err != nil {
		return err
	}
	changes, _ := journal.Finalize()
	b.Commit(changes)
	return nil
}

// AddPersistentAccount marks addr persistent: its state is carried across
// fork switches.
func (b *Backend) AddPersistentAccount(addr common.Address) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.persistent.Add(addr)
}

// RemovePersistentAccount removes the persistent mark of addr.
func (b *Backend) RemovePersistentAccount(addr common.Address) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	ok := b.persistent.Contains(addr)
	b.persistent.Remove(addr)
	return ok
}

// IsPersistent reports whether addr is persistent.
func (b *Backend) IsPersistent(addr common.Address) bool {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.persistent.Contains(addr)
}

// PersistentAccounts returns the persistent accounts in ascending order.
func (b *Backend) PersistentAccounts() []common.Address {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return sortedAddrs(b.persistent)
}

// AllowCheatcodeAccess grants addr cheatcode access.
func (b *Backend) AllowCheatcodeAccess(addr common.Address) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.cheatAccess.Add(addr)
}

// RevokeCheatcodeAccess revokes the cheatcode access of addr.
func (b *Backend) RevokeCheatcodeAccess(addr common.Address) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	ok := b.cheatAccess.Contains(addr)
	b.cheatAccess.Remove(addr)
	return ok
}

// HasCheatcodeAccess reports whether addr may use cheatcodes.
func (b *Backend) HasCheatcodeAccess(addr common.Address) bool {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.cheatAccess.Contains(addr)
}

// CheatcodeAccounts returns the accounts with cheatcode access in ascending
// order.
func (b *Backend) CheatcodeAccounts() []common.Address {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return sortedAddrs(b.cheatAccess)
}

// EnsureCheatcodeAccess fails with NoCheatcodeAccessError if addr has no
// cheatcode access.
func (b *Backend) EnsureCheatcodeAccess(addr common.Address) error {
	if !b.HasCheatcodeAccess(addr) {
		return &NoCheatcodeAccessError{Account: addr}
	}
	return nil
}

// EnsureCheatcodeAccessForkingMode is EnsureCheatcodeAccess enforced only
// while a fork is active.
func (b *Backend) EnsureCheatcodeAccessForkingMode(addr common.Address) error {
	if b.IsForkedMode() {
		return b.EnsureCheatcodeAccess(addr)
	}
	return nil
}

func sortedAddrs(set mapset.Set[common.Address]) []common.Address {
	addrs := set.ToSlice()
	slices.SortFunc(addrs, func(a, b common.Address) int { return a.Cmp(b) })
	return addrs
}

// ActiveForkID returns the active fork.
func (b *Backend) ActiveForkID() (LocalForkID, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.active == nil {
		return 0, false
	}
	return *b.active, true
}

// ActiveForkURL returns the endpoint of the active fork, or "".
func (b *Backend) ActiveForkURL() string {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.active == nil {
		return ""
	}
	return b.registry[*b.active].id.URL
}

// IsActiveFork reports whether id is the active fork.
func (b *Backend) IsActiveFork(id LocalForkID) bool {
	active, ok := b.ActiveForkID()
	return ok && active == id
}

// IsForkedMode reports whether a fork is active.
func (b *Backend) IsForkedMode() bool {
	_, ok := b.ActiveForkID()
	return ok
}

// LaunchedWithFork returns the fork the backend was started on.
func (b *Backend) LaunchedWithFork() (LocalForkID, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.launched == nil {
		return 0, false
	}
	return *b.launched, true
}

// EnsureFork resolves id to a registered fork, nil resolves to the active
// fork.
func (b *Backend) EnsureFork(id *LocalForkID) (LocalForkID, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if id == nil {
		if b.active == nil {
			return 0, ErrNoActiveFork
		}
		return *b.active, nil
	}
	if _, ok := b.registry[*id]; !ok {
		return 0, &ForkNotFoundError{ID: *id}
	}
	return *id, nil
}

// ForkEnv returns a copy of the environment of fork id.
func (b *Backend) ForkEnv(id LocalForkID) (*Env, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	f, ok := b.registry[id]
	if !ok {
		return nil, &ForkNotFoundError{ID: id}
	}
	return f.env.Copy(), nil
}

// ForkStatus describes fork id.
func (b *Backend) ForkStatus(id LocalForkID) (*ForkStatus, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	f, ok := b.registry[id]
	if !ok {
		return nil, &ForkNotFoundError{ID: id}
	}
	return b.status(id, f), nil
}

// ForkStatuses describes every registered fork in id order.
func (b *Backend) ForkStatuses() []*ForkStatus {
	b.lock.RLock()
	defer b.lock.RUnlock()

	statuses := make([]*ForkStatus, 0, len(b.registry))
	for _, id := range b.forkIDs() {
		statuses = append(statuses, b.status(id, b.registry[id]))
	}
	return statuses
}

func (b *Backend) status(id LocalForkID, f *fork) *ForkStatus {
	return &ForkStatus{
		ID:          id,
		Remote:      f.id,
		URL:         f.id.URL,
		ChainID:     f.env.Cfg.ChainID,
		BlockNumber: f.env.Block.Number,
		Timestamp:   f.env.Block.Timestamp,
		Active:      b.active != nil && *b.active == id,
	}
}

// forkIDs returns the registered fork ids in ascending order. The lock must be
// held.
func (b *Backend) forkIDs() []LocalForkID {
	ids := make([]LocalForkID, 0, len(b.registry))
	for id := range b.registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MergedLogs returns the logs of every fork in fork order, with logs standing
// in for the active fork. Outside of fork mode logs is returned as is.
// MergedLogs 按分叉顺序返回所有分叉的日志。
func (b *Backend) MergedLogs(logs []*types.Log) []*types.Log {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.active == nil {
		return logs
	}
	var merged []*types.Log
	for _, id := range b.forkIDs() {
		if id == *b.active {
			merged = append(merged, logs...)
			continue
		}
		if j := b.registry[id].journal; j != nil {
			merged = append(merged, j.Logs...)
		}
	}
	return merged
}

// IsNotFound reports whether err is a not-found error of the backend.
func IsNotFound(err error) bool {
	var forkErr *ForkNotFoundError
	return errors.As(err, &forkErr) || errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, forkdb.ErrTransactionNotFound) || errors.Is(err, forkdb.ErrBlockNotFound)
}
