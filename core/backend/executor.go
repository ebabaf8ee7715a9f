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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sunyihoo/forknode/core/state"
)

// StateView is the state an executor runs against: read access through
// DatabaseRef plus the ability to apply a batch of deltas.
// StateView 是执行器运行所依赖的状态视图。
type StateView interface {
	state.DatabaseRef
	Commit(changes state.Changes)
}

// Message is a transaction prepared for execution.
type Message struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address // nil for contract creation
	Nonce     uint64
	Value     *big.Int
	GasLimit  uint64
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
	Data      []byte

	// SkipNonceCheck disables nonce validation, used for calls.
	SkipNonceCheck bool
}

// TransactionToMessage converts a signed transaction into a message. A nil
// baseFee leaves the legacy gas price in place.
// TransactionToMessage 将已签名的交易转换为消息。
func TransactionToMessage(tx *types.Transaction, signer types.Signer, baseFee *big.Int) (*Message, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		Hash:      tx.Hash(),
		From:      from,
		To:        tx.To(),
		Nonce:     tx.Nonce(),
		Value:     new(big.Int).Set(tx.Value()),
		GasLimit:  tx.Gas(),
		GasPrice:  new(big.Int).Set(tx.GasPrice()),
		GasFeeCap: new(big.Int).Set(tx.GasFeeCap()),
		GasTipCap: new(big.Int).Set(tx.GasTipCap()),
		Data:      common.CopyBytes(tx.Data()),
	}
	if baseFee != nil {
		price := new(big.Int).Add(msg.GasTipCap, baseFee)
		if price.Cmp(msg.GasFeeCap) > 0 {
			price.Set(msg.GasFeeCap)
		}
		msg.GasPrice = price
	}
	return msg, nil
}

// ExecutionResult is the outcome of executing one message. The deltas are not
// applied to the view, the caller decides whether to commit them.
// ExecutionResult 是执行一条消息的结果，增量不会自动提交。
type ExecutionResult struct {
	Changes    state.Changes
	Logs       []*types.Log
	GasUsed    uint64
	Failed     bool   // reverted or otherwise unsuccessful
	ReturnData []byte // return data or revert reason
}

// Executor runs transactions. It is the EVM capability the backend depends
// on without implementing it.
// Executor 负责执行交易，是后端依赖但不实现的 EVM 能力。
type Executor interface {
	Execute(view StateView, env *Env, msg *Message, insp Inspector) (*ExecutionResult, error)
}

// Inspector observes execution. Implementations must tolerate being called
// from replayed historical transactions.
type Inspector interface {
	OnTransactionStart(env *Env, msg *Message)
	OnTransactionEnd(res *ExecutionResult, err error)
}

// noopInspector is used when replaying transactions.
type noopInspector struct{}

func (noopInspector) OnTransactionStart(*Env, *Message)        {}
func (noopInspector) OnTransactionEnd(*ExecutionResult, error) {}
