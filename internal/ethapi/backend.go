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

// Package ethapi implements the JSON-RPC surface of the node: the eth_
// namespace, the evm_ and anvil_ state manipulation namespaces and debug_.
// 包 ethapi 实现节点的 JSON-RPC 接口。
package ethapi

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/forknode/core"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/eth/filters"
	"github.com/sunyihoo/forknode/miner"
)

// Backend gives the APIs access to the components of the node.
// Backend 为 API 提供对节点组件的访问。
type Backend interface {
	ChainConfig() *params.ChainConfig
	Chain() *core.HeaderChain
	StateBackend() *backend.Backend
	Miner() *miner.Miner

	// Accounts returns the addresses the node can sign for.
	Accounts() []common.Address
	// SignTx signs tx with the key of addr.
	SignTx(addr common.Address, tx *types.Transaction) (*types.Transaction, error)

	RPCGasCap() uint64 // gas limit of calls that do not set one

	// ForkConfig returns the fork settings of the node for another endpoint.
	ForkConfig(url string, block *uint64) forkdb.Config
}

// GetAPIs returns every API of the node.
func GetAPIs(b Backend, events *filters.EventSystem) []rpc.API {
	nonceLock := new(AddrLocker)
	return []rpc.API{
		{
			Namespace: "eth",
			Service:   NewEthereumAPI(b, nonceLock),
		}, {
			Namespace: "eth",
			Service:   filters.NewFilterAPI(events),
		}, {
			Namespace: "evm",
			Service:   NewEvmAPI(b),
		}, {
			Namespace: "anvil",
			Service:   NewAnvilAPI(b),
		}, {
			Namespace: "debug",
			Service:   NewDebugAPI(b),
		},
	}
}
