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

package ethapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/state"
)

// headEnv returns the environment of the chain head.
func headEnv(b Backend) *backend.Env {
	return backend.EnvFromHeader(b.Chain().CurrentHeader(), b.ChainConfig().ChainID.Uint64())
}

// EvmAPI provides the evm_ namespace: snapshots and block production.
// EvmAPI 提供 evm_ 命名空间：快照和出块控制。
type EvmAPI struct {
	b Backend

	mu    sync.Mutex
	heads map[uint256.Int]uint64 // snapshot id -> chain head number
}

// NewEvmAPI creates the evm_ API.
func NewEvmAPI(b Backend) *EvmAPI {
	return &EvmAPI{b: b, heads: make(map[uint256.Int]uint64)}
}

// Snapshot records the node state and the chain head and returns the id of
// the snapshot.
// Snapshot 记录节点状态和链头并返回快照 ID。
func (api *EvmAPI) Snapshot() *hexutil.Big {
	api.mu.Lock()
	defer api.mu.Unlock()

	head := api.b.Chain().CurrentHeader()
	id := api.b.StateBackend().Snapshot(state.NewJournaledState(), headEnv(api.b))
	api.heads[*id] = head.Number.Uint64()
	log.Debug("Created snapshot", "id", id, "head", head.Number)
	return (*hexutil.Big)(id.ToBig())
}

// Revert restores a snapshot and rewinds the chain to the head it was taken
// at. The snapshot is consumed. Unknown ids report false.
// Revert 恢复快照并将链回退到创建快照时的链头，未知 ID 返回 false。
func (api *EvmAPI) Revert(id hexutil.Big) (bool, error) {
	api.mu.Lock()
	defer api.mu.Unlock()

	sid, overflow := uint256.FromBig(id.ToInt())
	if overflow {
		return false, nil
	}
	number, ok := api.heads[*sid]
	if !ok {
		return false, nil
	}
	if _, ok := api.b.StateBackend().Revert(sid, state.NewJournaledState(), headEnv(api.b), backend.RevertRemove); !ok {
		delete(api.heads, *sid)
		return false, nil
	}
	// Snapshots taken after this one are gone as well.
	for other := range api.heads {
		if other.Cmp(sid) > 0 {
			api.b.StateBackend().DeleteSnapshot(&other)
		}
		if other.Cmp(sid) >= 0 {
			delete(api.heads, other)
		}
	}
	if err := api.b.Chain().SetHead(number); err != nil {
		return false, translateError(err)
	}
	log.Debug("Reverted snapshot", "id", sid, "head", number)
	return true, nil
}

// Mine seals blocks, one by default.
// Mine 封装区块，默认一个。
func (api *EvmAPI) Mine(ctx context.Context, blocks *hexutil.Uint64) (string, error) {
	n := uint64(1)
	if blocks != nil && *blocks > 0 {
		n = uint64(*blocks)
	}
	for i := uint64(0); i < n; i++ {
		if _, err := api.b.Miner().Mine(ctx); err != nil {
			return "", translateError(err)
		}
	}
	return "0x0", nil
}

// IncreaseTime moves the clock of the miner forward and returns the total
// offset in seconds.
func (api *EvmAPI) IncreaseTime(seconds hexutil.Uint64) int64 {
	return api.b.Miner().IncreaseTime(uint64(seconds))
}

// SetNextBlockTimestamp pins the timestamp of the next block.
func (api *EvmAPI) SetNextBlockTimestamp(timestamp hexutil.Uint64) error {
	return translateError(api.b.Miner().SetTimestamp(uint64(timestamp)))
}

// AnvilAPI provides the anvil_ namespace: direct state manipulation and fork
// management.
// AnvilAPI 提供 anvil_ 命名空间：直接修改状态以及分叉管理。
type AnvilAPI struct {
	b Backend
}

// NewAnvilAPI creates the anvil_ API.
func NewAnvilAPI(b Backend) *AnvilAPI {
	return &AnvilAPI{b: b}
}

// modifyAccount loads addr, applies fn and writes the account back.
func (api *AnvilAPI) modifyAccount(addr common.Address, fn func(info *state.AccountInfo)) error {
	sb := api.b.StateBackend()
	info, err := sb.Basic(addr)
	if err != nil {
		return translateError(err)
	}
	if info == nil {
		info = state.NewAccountInfo(nil, 0, nil)
	} else {
		info = info.Copy()
	}
	if info.HasCode() && info.Code == nil {
		code, err := sb.CodeByHash(info.CodeHash)
		if err != nil {
			return translateError(err)
		}
		info.Code = code
	}
	fn(info)
	sb.InsertAccountInfo(addr, info)
	return nil
}

// SetBalance sets the balance of addr.
func (api *AnvilAPI) SetBalance(addr common.Address, balance hexutil.Big) error {
	value, overflow := uint256.FromBig(balance.ToInt())
	if overflow || balance.ToInt().Sign() < 0 {
		return invalidParams("balance out of range: %v", balance.ToInt())
	}
	return api.modifyAccount(addr, func(info *state.AccountInfo) { info.Balance = value })
}

// SetNonce sets the nonce of addr.
func (api *AnvilAPI) SetNonce(addr common.Address, nonce hexutil.Uint64) error {
	return api.modifyAccount(addr, func(info *state.AccountInfo) { info.Nonce = uint64(nonce) })
}

// SetCode replaces the code of addr.
func (api *AnvilAPI) SetCode(addr common.Address, code hexutil.Bytes) error {
	return api.modifyAccount(addr, func(info *state.AccountInfo) { info.SetCode(code) })
}

// SetStorageAt writes one storage slot of addr.
// SetStorageAt 写入 addr 的一个存储槽。
func (api *AnvilAPI) SetStorageAt(addr common.Address, slot string, value common.Hash) (bool, error) {
	key, err := decodeHash(slot)
	if err != nil {
		return false, invalidParams("unable to decode storage key: %s", err)
	}
	api.b.StateBackend().InsertAccountStorage(addr, key, value)
	return true, nil
}

// SetBlockHash overrides the hash the BLOCKHASH lookup returns for number.
func (api *AnvilAPI) SetBlockHash(number hexutil.Uint64, hash common.Hash) {
	api.b.StateBackend().SetBlockHash(uint64(number), hash)
}

// CreateFork registers a fork of url at block, the latest block when not
// given. The fork is not selected.
// CreateFork 在指定区块注册 url 的分叉，未指定时使用最新区块，不会选中该分叉。
func (api *AnvilAPI) CreateFork(ctx context.Context, url string, block *hexutil.Uint64) (hexutil.Uint64, error) {
	var number *uint64
	if block != nil {
		n := uint64(*block)
		number = &n
	}
	id, err := api.b.StateBackend().CreateFork(ctx, api.b.ForkConfig(url, number))
	if err != nil {
		return 0, translateError(err)
	}
	return hexutil.Uint64(id), nil
}

// SelectFork makes the fork with the given id active.
func (api *AnvilAPI) SelectFork(ctx context.Context, id hexutil.Uint64) error {
	err := api.b.StateBackend().SelectFork(ctx, backend.LocalForkID(id), headEnv(api.b), state.NewJournaledState())
	return translateError(err)
}

// RollFork moves a fork, the active one when id is not given, to block.
// RollFork 将分叉（未指定 id 时为活动分叉）移动到 block。
func (api *AnvilAPI) RollFork(ctx context.Context, id *hexutil.Uint64, block hexutil.Uint64) error {
	var local *backend.LocalForkID
	if id != nil {
		l := backend.LocalForkID(*id)
		local = &l
	}
	err := api.b.StateBackend().RollFork(ctx, local, uint64(block), headEnv(api.b), state.NewJournaledState())
	return translateError(err)
}

// AddPersistentAccount marks addr to survive fork switches.
func (api *AnvilAPI) AddPersistentAccount(addr common.Address) bool {
	return api.b.StateBackend().AddPersistentAccount(addr)
}

// RemovePersistentAccount undoes AddPersistentAccount.
func (api *AnvilAPI) RemovePersistentAccount(addr common.Address) bool {
	return api.b.StateBackend().RemovePersistentAccount(addr)
}

// AllowCheatcodes grants addr cheatcode access.
func (api *AnvilAPI) AllowCheatcodes(addr common.Address) bool {
	return api.b.StateBackend().AllowCheatcodeAccess(addr)
}

// RevokeCheatcodes removes the cheatcode access of addr.
func (api *AnvilAPI) RevokeCheatcodes(addr common.Address) bool {
	return api.b.StateBackend().RevokeCheatcodeAccess(addr)
}

// ForkInfo describes a registered fork.
type ForkInfo struct {
	ID          hexutil.Uint64 `json:"id"`
	URL         string         `json:"url"`
	ChainID     hexutil.Uint64 `json:"chainId"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	Timestamp   hexutil.Uint64 `json:"timestamp"`
	Active      bool           `json:"active"`
}

// ForkInfo lists the registered forks ordered by id.
// ForkInfo 按 id 顺序列出已注册的分叉。
func (api *AnvilAPI) ForkInfo() []*ForkInfo {
	statuses := api.b.StateBackend().ForkStatuses()
	infos := make([]*ForkInfo, 0, len(statuses))
	for _, s := range statuses {
		infos = append(infos, &ForkInfo{
			ID:          hexutil.Uint64(s.ID),
			URL:         s.URL,
			ChainID:     hexutil.Uint64(s.ChainID),
			BlockNumber: hexutil.Uint64(s.BlockNumber),
			Timestamp:   hexutil.Uint64(s.Timestamp),
			Active:      s.Active,
		})
	}
	return infos
}

// DiagnoseRevert explains why a call to callee may have reverted because of
// the active fork. Empty when there is nothing to report.
// DiagnoseRevert 解释对 callee 的调用是否因活动分叉而回滚。
func (api *AnvilAPI) DiagnoseRevert(ctx context.Context, callee common.Address) string {
	d := api.b.StateBackend().DiagnoseRevert(ctx, callee, state.NewJournaledState())
	if d == nil {
		return ""
	}
	return d.String()
}

// LoadAllocs writes a genesis allocation into the node state.
func (api *AnvilAPI) LoadAllocs(allocs types.GenesisAlloc) error {
	if err := api.b.StateBackend().ApplyAllocs(allocs); err != nil {
		return translateError(fmt.Errorf("load allocs: %w", err))
	}
	return nil
}
