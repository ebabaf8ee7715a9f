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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/core/state"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
	slot  = common.HexToHash("0x01")
)

func TestSnapshotRevertLocal(t *testing.T) {
	b := newLocalBackend(t)
	env, journal := &Env{}, state.NewJournaledState()

	b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(5), 0, nil))
	id := b.Snapshot(journal, env)
	b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(10), 0, nil))
	assert.Equal(t, uint64(10), balanceOf(t, b, alice))

	restored, ok := b.Revert(id, journal, env, RevertRemove)
	require.True(t, ok)
	require.NotNil(t, restored)
	assert.Equal(t, uint64(5), balanceOf(t, b, alice))

	_, ok = b.Revert(id, journal, env, RevertRemove)
	assert.False(t, ok, "reverted snapshot must be gone")
}

func TestSnapshotIDsMonotonic(t *testing.T) {
	b := newLocalBackend(t)
	env, journal := &Env{}, state.NewJournaledState()

	first := b.Snapshot(journal, env)
	second := b.Snapshot(journal, env)
	assert.Equal(t, uint64(0), first.Uint64())
	assert.Equal(t, uint64(1), second.Uint64())

	assert.True(t, b.DeleteSnapshot(first))
	assert.False(t, b.DeleteSnapshot(first))
	b.DeleteSnapshots()
	assert.Equal(t, uint64(2), b.Snapshot(journal, env).Uint64())
}

func TestRevertKeep(t *testing.T) {
	b := newLocalBackend(t)
	env, journal := &Env{}, state.NewJournaledState()

	b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(1), 0, nil))
	id := b.Snapshot(journal, env)
	for i := 0; i < 2; i++ {
		b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(7), 0, nil))
		_, ok := b.Revert(id, journal, env, RevertKeep)
		require.True(t, ok)
		assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	}
}

func TestRevertCarriesLogs(t *testing.T) {
	b := newLocalBackend(t)
	env, journal := &Env{}, state.NewJournaledState()

	id := b.Snapshot(journal, env)
	journal.AddLog(&types.Log{Address: alice})

	restored, ok := b.Revert(id, journal, env, RevertRemove)
	require.True(t, ok)
	require.Len(t, restored.Logs, 1)
	assert.Equal(t, alice, restored.Logs[0].Address)
}

func TestRevertRecordsFailure(t *testing.T) {
	b := newLocalBackend(t)
	env, journal := &Env{}, state.NewJournaledState()

	id := b.Snapshot(journal, env)
	require.NoError(t, journal.SetStorage(CheatcodeAddress, GlobalFailSlot, common.BigToHash(common.Big1), b))
	assert.False(t, b.HasSnapshotFailure())

	_, ok := b.Revert(id, journal, env, RevertRemove)
	require.True(t, ok)
	assert.True(t, b.HasSnapshotFailure())
}

func TestRevertRestoresEnv(t *testing.T) {
	b := newLocalBackend(t)
	journal := state.NewJournaledState()
	env := &Env{Block: BlockEnv{Number: 5, Timestamp: 50}}

	id := b.Snapshot(journal, env)
	env.Block.Number, env.Block.Timestamp = 9, 90
	_, ok := b.Revert(id, journal, env, RevertRemove)
	require.True(t, ok)
	assert.Equal(t, uint64(5), env.Block.Number)
	assert.Equal(t, uint64(50), env.Block.Timestamp)
}

func TestDefaultAccounts(t *testing.T) {
	b := newLocalBackend(t)

	for _, addr := range []common.Address{CheatcodeAddress, Create2Deployer, DefaultCaller} {
		assert.True(t, b.IsPersistent(addr), addr.Hex())
	}
	for _, addr := range []common.Address{CheatcodeAddress, DefaultTestContract, DefaultCaller} {
		assert.True(t, b.HasCheatcodeAccess(addr), addr.Hex())
	}
	var accessErr *NoCheatcodeAccessError
	require.ErrorAs(t, b.EnsureCheatcodeAccess(alice), &accessErr)
	assert.Equal(t, alice, accessErr.Account)

	assert.True(t, b.AllowCheatcodeAccess(alice))
	assert.NoError(t, b.EnsureCheatcodeAccess(alice))
	assert.True(t, b.RevokeCheatcodeAccess(alice))
	assert.False(t, b.HasCheatcodeAccess(alice))

	// Outside of fork mode access is not enforced.
	assert.NoError(t, b.EnsureCheatcodeAccessForkingMode(alice))
}

func TestInitialize(t *testing.T) {
	b := newLocalBackend(t)
	b.Initialize(&Env{Tx: TxEnv{Caller: alice}})

	assert.True(t, b.HasCheatcodeAccess(alice))
	contract, ok := b.TestContract()
	require.True(t, ok)
	assert.NotEqual(t, common.Address{}, contract)
}

func TestLoadAllocs(t *testing.T) {
	b := newLocalBackend(t)
	journal := state.NewJournaledState()
	allocs := types.GenesisAlloc{
		alice: {Balance: common.Big3, Nonce: 2, Code: []byte{0x60, 0x00}, Storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x2a")}},
	}
	require.NoError(t, b.LoadAllocs(allocs, journal))

	acc := journal.Account(alice)
	require.NotNil(t, acc)
	assert.True(t, acc.Touched())
	assert.Equal(t, uint64(3), acc.Info.Balance.Uint64())
	assert.Equal(t, uint64(2), acc.Info.Nonce)
	assert.True(t, acc.Info.HasCode())

	// Nothing reaches the database until the journaled state is committed.
	assert.Equal(t, uint64(0), balanceOf(t, b, alice))
	changes, _ := journal.Finalize()
	b.Commit(changes)
	assert.Equal(t, uint64(3), balanceOf(t, b, alice))
	value, err := b.Storage(alice, slot)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x2a"), value)
}

func TestApplyAllocs(t *testing.T) {
	b := newLocalBackend(t)
	require.NoError(t, b.ApplyAllocs(types.GenesisAlloc{
		alice: {Balance: big.NewInt(42), Code: []byte{0x60}, Storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x07")}},
	}))

	assert.Equal(t, uint64(42), balanceOf(t, b, alice))
	info, err := b.Basic(alice)
	require.NoError(t, err)
	assert.True(t, info.HasCode())
	value, err := b.Storage(alice, slot)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x07"), value)
}

func TestEnsureFork(t *testing.T) {
	b := newLocalBackend(t)

	_, err := b.EnsureFork(nil)
	assert.ErrorIs(t, err, ErrNoActiveFork)

	missing := LocalForkID(7)
	_, err = b.EnsureFork(&missing)
	var notFound *ForkNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.ID)
	assert.True(t, IsNotFound(err))

	err = b.SelectFork(context.Background(), LocalForkID(9), &Env{}, state.NewJournaledState())
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, LocalForkID(9), notFound.ID)
}

func TestLaunchWithFork(t *testing.T) {
	ep := newFakeEndpoint()
	ep.balances[alice] = common.Big2
	cfg := forkConfig("a", 100)
	b, err := New(context.Background(), Config{Forks: newTestForks(map[string]*fakeEndpoint{"a": ep}), Fork: &cfg})
	require.NoError(t, err)

	assert.True(t, b.IsForkedMode())
	assert.Equal(t, "a", b.ActiveForkURL())
	launched, ok := b.LaunchedWithFork()
	require.True(t, ok)
	assert.True(t, b.IsActiveFork(launched))
	assert.Equal(t, uint64(2), balanceOf(t, b, alice))
	var accessErr *NoCheatcodeAccessError
	assert.ErrorAs(t, b.EnsureCheatcodeAccessForkingMode(alice), &accessErr)
}

func TestLaunchWithUnreachableFork(t *testing.T) {
	cfg := forkConfig("nowhere", 100)
	_, err := New(context.Background(), Config{Forks: newTestForks(nil), Fork: &cfg})
	assert.ErrorIs(t, err, forkdb.ErrForkUnreachable)
}

// twoForks returns a backend with forks on endpoints "a" and "b" created but
// not selected.
func twoForks(t *testing.T) (*Backend, *fakeEndpoint, *fakeEndpoint, LocalForkID, LocalForkID) {
	t.Helper()
	epA, epB := newFakeEndpoint(), newFakeEndpoint()
	epA.balances[alice] = common.Big1
	epB.balances[alice] = common.Big2
	epB.chainID = common.Big3

	b, err := New(context.Background(), Config{
		Forks:    newTestForks(map[string]*fakeEndpoint{"a": epA, "b": epB}),
		Executor: transferExecutor{},
	})
	require.NoError(t, err)
	idA, err := b.CreateFork(context.Background(), forkConfig("a", 100))
	require.NoError(t, err)
	idB, err := b.CreateFork(context.Background(), forkConfig("b", 90))
	require.NoError(t, err)
	require.NotEqual(t, idA, idB)
	return b, epA, epB, idA, idB
}

func TestSelectForkDetour(t *testing.T) {
	ctx := context.Background()
	b, _, _, idA, idB := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()
	value := common.HexToHash("0x2a")

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	assert.Equal(t, uint64(100), env.Block.Number)
	assert.Equal(t, uint64(1), env.Cfg.ChainID)
	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	b.InsertAccountStorage(alice, slot, value)

	require.NoError(t, b.SelectFork(ctx, idB, env, journal))
	assert.Equal(t, uint64(90), env.Block.Number)
	assert.Equal(t, uint64(3), env.Cfg.ChainID)
	assert.Equal(t, uint64(2), balanceOf(t, b, alice))
	got, err := b.Storage(alice, slot)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, got)

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	got, err = b.Storage(alice, slot)
	require.NoError(t, err)
	assert.Equal(t, value, got, "local changes of a parked fork must survive")
}

func TestSelectForkKeepsBlockProgress(t *testing.T) {
	ctx := context.Background()
	b, _, _, idA, idB := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	env.Block.Number, env.Block.Timestamp = 105, 5000
	require.NoError(t, b.SelectFork(ctx, idB, env, journal))
	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	assert.Equal(t, uint64(105), env.Block.Number)
	assert.Equal(t, uint64(5000), env.Block.Timestamp)
}

func TestPersistentAccountSurvivesSwitch(t *testing.T) {
	ctx := context.Background()
	b, _, _, idA, idB := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()
	code := []byte{0x60, 0x01, 0x60, 0x00}

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	assert.True(t, b.AddPersistentAccount(alice))
	require.NoError(t, journal.SetCode(alice, code, b))
	require.NoError(t, journal.SetCode(bob, code, b))
	b.Commit(journal.Changes())

	require.NoError(t, b.SelectFork(ctx, idB, env, journal))
	info, err := b.Basic(alice)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.HasCode(), "persistent account must keep its code")
	assert.NotNil(t, journal.Account(alice))

	info, err = b.Basic(bob)
	require.NoError(t, err)
	assert.True(t, info == nil || !info.HasCode(), "non persistent account must not be carried over")
}

func TestSnapshotRevertAcrossForks(t *testing.T) {
	ctx := context.Background()
	b, _, _, idA, idB := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(5), 0, nil))
	id := b.Snapshot(journal, env)
	b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(10), 0, nil))

	require.NoError(t, b.SelectFork(ctx, idB, env, journal))
	assert.True(t, b.IsActiveFork(idB))

	_, ok := b.Revert(id, journal, env, RevertRemove)
	require.True(t, ok)
	assert.True(t, b.IsActiveFork(idA))
	assert.Equal(t, uint64(100), env.Block.Number)
	assert.Equal(t, uint64(5), balanceOf(t, b, alice))
}

func TestRollForkSameBlockKeepsCache(t *testing.T) {
	ctx := context.Background()
	b, epA, _, idA, _ := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	fetched := epA.count("balance")

	require.NoError(t, b.RollFork(ctx, nil, 100, env, journal))
	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	assert.Equal(t, fetched, epA.count("balance"))
}

func TestRollActiveFork(t *testing.T) {
	ctx := context.Background()
	b, epA, _, idA, _ := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	b.InsertAccountStorage(bob, slot, common.HexToHash("0x01"))
	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	fetched := epA.count("balance")

	require.NoError(t, b.RollFork(ctx, nil, 90, env, journal))
	assert.Equal(t, uint64(90), env.Block.Number)
	assert.True(t, b.IsActiveFork(idA), "rolling keeps the local fork id")
	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	assert.Greater(t, epA.count("balance"), fetched, "a new pin reads fresh state")

	got, err := b.Storage(bob, slot)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, got, "non persistent local state is dropped")

	status, err := b.ForkStatus(idA)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), status.Remote.Block)
}

func TestRollInactiveFork(t *testing.T) {
	ctx := context.Background()
	b, _, _, idA, idB := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	require.NoError(t, b.RollFork(ctx, &idB, 80, env, journal))
	assert.Equal(t, uint64(100), env.Block.Number, "rolling an inactive fork leaves the env alone")

	forkEnv, err := b.ForkEnv(idB)
	require.NoError(t, err)
	assert.Equal(t, uint64(80), forkEnv.Block.Number)
}

func TestCreateForkAtTransaction(t *testing.T) {
	ctx := context.Background()
	key, sender := newKey(t)
	ep := newFakeEndpoint()
	ep.balances[sender] = bigInt(1000)

	tx1 := signTransfer(t, key, 0, bob, 1)
	tx2 := signTransfer(t, key, 1, bob, 2)
	tx3 := signTransfer(t, key, 2, bob, 4)
	ep.addBlock(50, []*types.Transaction{tx1, tx2, tx3})

	b, err := New(ctx, Config{Forks: newTestForks(map[string]*fakeEndpoint{"a": ep}), Executor: transferExecutor{}})
	require.NoError(t, err)
	id, err := b.CreateForkAtTransaction(ctx, forkConfig("a", 100), tx2.Hash())
	require.NoError(t, err)

	env, journal := &Env{}, state.NewJournaledState()
	require.NoError(t, b.SelectFork(ctx, id, env, journal))
	assert.Equal(t, uint64(50), env.Block.Number)
	assert.Equal(t, uint64(3), balanceOf(t, b, bob), "replay stops right after the target")
	assert.Equal(t, uint64(997), balanceOf(t, b, sender))

	status, err := b.ForkStatus(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(49), status.Remote.Block)
}

func TestRollForkToMissingTransaction(t *testing.T) {
	ctx := context.Background()
	key, _ := newKey(t)
	ep := newFakeEndpoint()
	orphan := signTransfer(t, key, 0, bob, 1)
	ep.addBlock(60, nil, orphan)

	b, err := New(ctx, Config{Forks: newTestForks(map[string]*fakeEndpoint{"a": ep}), Executor: transferExecutor{}})
	require.NoError(t, err)
	_, err = b.CreateForkAtTransaction(ctx, forkConfig("a", 100), orphan.Hash())
	var notInBlock *TransactionNotInBlockError
	require.ErrorAs(t, err, &notInBlock)
	assert.Equal(t, uint64(60), notInBlock.Block)

	_, err = b.CreateForkAtTransaction(ctx, forkConfig("a", 100), common.HexToHash("0xdead"))
	assert.ErrorIs(t, err, forkdb.ErrTransactionNotFound)
}

func TestTransact(t *testing.T) {
	ctx := context.Background()
	key, sender := newKey(t)
	ep := newFakeEndpoint()
	ep.balances[sender] = bigInt(1000)
	tx := signTransfer(t, key, 0, bob, 4)
	ep.addBlock(70, []*types.Transaction{tx})

	b, err := New(ctx, Config{Forks: newTestForks(map[string]*fakeEndpoint{"a": ep}), Executor: transferExecutor{}})
	require.NoError(t, err)
	env, journal := &Env{}, state.NewJournaledState()
	_, err = b.CreateSelectFork(ctx, forkConfig("a", 100), env, journal)
	require.NoError(t, err)

	_, err = journal.LoadAccount(bob, b)
	require.NoError(t, err)
	require.NoError(t, b.Transact(ctx, nil, tx.Hash(), env, journal, nil))

	assert.Equal(t, uint64(4), balanceOf(t, b, bob))
	assert.Equal(t, uint64(4), journal.Account(bob).Info.Balance.Uint64(), "loaded accounts are refreshed")
	assert.Equal(t, uint64(100), env.Block.Number, "transact does not move the fork")
}

func TestTransactWithoutExecutor(t *testing.T) {
	ctx := context.Background()
	key, _ := newKey(t)
	ep := newFakeEndpoint()
	tx := signTransfer(t, key, 0, bob, 1)
	ep.addBlock(70, []*types.Transaction{tx})

	cfg := forkConfig("a", 100)
	b, err := New(ctx, Config{Forks: newTestForks(map[string]*fakeEndpoint{"a": ep}), Fork: &cfg})
	require.NoError(t, err)
	err = b.Transact(ctx, nil, tx.Hash(), &Env{}, state.NewJournaledState(), nil)
	assert.True(t, errors.Is(err, ErrNoExecutor))
}

func TestDiagnoseRevert(t *testing.T) {
	ctx := context.Background()
	b, _, epB, idA, idB := twoForks(t)
	epB.codes[bob] = []byte{0x60, 0x00}
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	diag := b.DiagnoseRevert(ctx, bob, journal)
	require.NotNil(t, diag)
	assert.Equal(t, idA, diag.Active)
	assert.Equal(t, []LocalForkID{idB}, diag.AvailableOn)
	assert.False(t, diag.Persistent)
	assert.Contains(t, diag.String(), "exists on non active forks")

	diag = b.DiagnoseRevert(ctx, alice, journal)
	require.NotNil(t, diag)
	assert.Empty(t, diag.AvailableOn)

	require.NoError(t, b.SelectFork(ctx, idB, env, journal))
	assert.Nil(t, b.DiagnoseRevert(ctx, bob, journal))
}

func TestDiagnoseRevertSingleFork(t *testing.T) {
	ep := newFakeEndpoint()
	cfg := forkConfig("a", 100)
	b, err := New(context.Background(), Config{Forks: newTestForks(map[string]*fakeEndpoint{"a": ep}), Fork: &cfg})
	require.NoError(t, err)
	assert.Nil(t, b.DiagnoseRevert(context.Background(), bob, state.NewJournaledState()))
}

func TestMergedLogs(t *testing.T) {
	ctx := context.Background()
	b, _, _, idA, idB := twoForks(t)
	env, journal := &Env{}, state.NewJournaledState()

	require.NoError(t, b.SelectFork(ctx, idA, env, journal))
	journal.AddLog(&types.Log{Address: alice})
	require.NoError(t, b.SelectFork(ctx, idB, env, journal))

	logs := b.MergedLogs([]*types.Log{{Address: bob}})
	require.Len(t, logs, 2)
	assert.Equal(t, alice, logs[0].Address)
	assert.Equal(t, bob, logs[1].Address)

	local := newLocalBackend(t)
	assert.Len(t, local.MergedLogs([]*types.Log{{Address: bob}}), 1)
}

func TestCloneIsIndependent(t *testing.T) {
	b := newLocalBackend(t)
	b.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(1), 0, nil))

	cpy := b.Clone()
	cpy.InsertAccountInfo(alice, state.NewAccountInfo(uint256.NewInt(2), 0, nil))
	cpy.AddPersistentAccount(bob)

	assert.Equal(t, uint64(1), balanceOf(t, b, alice))
	assert.Equal(t, uint64(2), balanceOf(t, cpy, alice))
	assert.False(t, b.IsPersistent(bob))
	assert.Same(t, b.Forks(), cpy.Forks())
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
