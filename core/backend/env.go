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

// Package backend implements the authoritative state of the node: the local
// database, the registry of forks, snapshots, persistent accounts and the
// cheatcode allowlist, plus a copy-on-write wrapper for speculative calls.
//
// 包 backend 实现节点的权威状态：本地数据库、分叉注册表、快照、持久账户和
// 作弊码白名单，以及用于推测性调用的写时复制包装器。
package backend

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockEnv holds the parameters of the block a transaction executes in.
// BlockEnv 保存交易执行所在区块的参数。
type BlockEnv struct {
	Number     uint64
	Timestamp  uint64
	Coinbase   common.Address
	GasLimit   uint64
	BaseFee    *big.Int
	Difficulty *big.Int
	PrevRandao common.Hash
}

// CfgEnv holds chain-wide execution parameters.
type CfgEnv struct {
	ChainID uint64
}

// TxEnv holds the parameters of the transaction being executed.
type TxEnv struct {
	Caller   common.Address
	To       *common.Address // nil for contract creation
	Nonce    uint64
	GasPrice *big.Int
	ChainID  uint64
}

// Env is the execution environment: block, chain configuration and
// transaction parameters.
// Env 是执行环境：区块、链配置和交易参数。
type Env struct {
	Block BlockEnv
	Cfg   CfgEnv
	Tx    TxEnv
}

// Copy returns a deep copy of the environment.
func (e *Env) Copy() *Env {
	cpy := *e
	if e.Block.BaseFee != nil {
		cpy.Block.BaseFee = new(big.Int).Set(e.Block.BaseFee)
	}
	if e.Block.Difficulty != nil {
		cpy.Block.Difficulty = new(big.Int).Set(e.Block.Difficulty)
	}
	if e.Tx.To != nil {
		to := *e.Tx.To
		cpy.Tx.To = &to
	}
	if e.Tx.GasPrice != nil {
		cpy.Tx.GasPrice = new(big.Int).Set(e.Tx.GasPrice)
	}
	return &cpy
}

// BlockEnvFromHeader derives the block parameters from a header.
func BlockEnvFromHeader(header *types.Header) BlockEnv {
	env := BlockEnv{
		Number:     header.Number.Uint64(),
		Timestamp:  header.Time,
		Coinbase:   header.Coinbase,
		GasLimit:   header.GasLimit,
		PrevRandao: header.MixDigest,
	}
	if header.BaseFee != nil {
		env.BaseFee = new(big.Int).Set(header.BaseFee)
	}
	if header.Difficulty != nil {
		env.Difficulty = new(big.Int).Set(header.Difficulty)
	}
	return env
}

// EnvFromHeader creates an environment for executing on top of header.
func EnvFromHeader(header *types.Header, chainID uint64) *Env {
	return &Env{
		Block: BlockEnvFromHeader(header),
		Cfg:   CfgEnv{ChainID: chainID},
		Tx:    TxEnv{ChainID: chainID},
	}
}

// updateEnvWithForkEnv replaces the fork derived parts of env: block
// parameters and chain id. Transaction parameters other than the chain id
// are kept.
func updateEnvWithForkEnv(env *Env, fork *Env) {
	fork = fork.Copy()
	env.Block = fork.Block
	env.Cfg = fork.Cfg
	env.Tx.ChainID = fork.Tx.ChainID
}
