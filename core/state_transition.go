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

package core

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/state"
)

// GasPool tracks the amount of gas available while sealing the transactions
// of a block. The zero value is a pool with zero gas available.
// GasPool 跟踪封装区块交易期间可用的 gas 量。
type GasPool uint64

// AddGas makes gas available for execution.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > math.MaxUint64-amount {
		panic("gas pool pushed above uint64")
	}
	*(*uint64)(gp) += amount
	return gp
}

// SubGas deducts the given amount from the pool if enough gas is available.
// SubGas 在 gas 足够时从池中扣除给定的量。
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*(*uint64)(gp) -= amount
	return nil
}

// Gas returns the amount of gas remaining in the pool.
func (gp *GasPool) Gas() uint64 {
	return uint64(*gp)
}

// IntrinsicGas computes the gas charged before any execution for a message
// with the given data.
// IntrinsicGas 计算具有给定数据的消息在执行前需支付的 gas。
func IntrinsicGas(data []byte, isContractCreation bool) (uint64, error) {
	gas := params.TxGas
	if isContractCreation {
		gas = params.TxGasContractCreation
	}
	if len(data) == 0 {
		return gas, nil
	}
	var nz uint64
	for _, byt := range data {
		if byt != 0 {
			nz++
		}
	}
	if (math.MaxUint64-gas)/params.TxDataNonZeroGasEIP2028 < nz {
		return 0, ErrGasUintOverflow
	}
	gas += nz * params.TxDataNonZeroGasEIP2028

	z := uint64(len(data)) - nz
	if (math.MaxUint64-gas)/params.TxDataZeroGas < z {
		return 0, ErrGasUintOverflow
	}
	gas += z * params.TxDataZeroGas
	return gas, nil
}

// TransferExecutor is the executor built into the node. It validates and
// charges messages like the EVM does but only moves value: any message that
// would run contract code consumes its gas and is reported as failed.
//
// TransferExecutor 是节点内置的执行器。它像 EVM 一样校验消息并收取费用，
// 但只转移价值：任何需要运行合约代码的消息都会消耗其 gas 并报告失败。
type TransferExecutor struct{}

// NewTransferExecutor returns the built-in executor.
func NewTransferExecutor() *TransferExecutor {
	return &TransferExecutor{}
}

// Execute implements backend.Executor. Pre-check failures are returned as
// errors and leave no changes behind.
func (e *TransferExecutor) Execute(view backend.StateView, env *backend.Env, msg *backend.Message, insp backend.Inspector) (*backend.ExecutionResult, error) {
	insp.OnTransactionStart(env, msg)
	st := &stateTransition{
		view:    view,
		env:     env,
		msg:     msg,
		journal: state.NewJournaledState(),
	}
	res, err := st.execute()
	insp.OnTransactionEnd(res, err)
	return res, err
}

// stateTransition applies one message on a journaled view of the state.
type stateTransition struct {
	view    backend.StateView
	env     *backend.Env
	msg     *backend.Message
	journal *state.JournaledState

	gasRemaining uint64
}

func (st *stateTransition) gasPrice() *uint256.Int {
	if st.msg.GasPrice == nil {
		return new(uint256.Int)
	}
	return uint256.MustFromBig(st.msg.GasPrice)
}

func (st *stateTransition) value() *uint256.Int {
	if st.msg.Value == nil {
		return new(uint256.Int)
	}
	return uint256.MustFromBig(st.msg.Value)
}

func (st *stateTransition) preCheck() error {
	msg := st.msg
	from, err := st.journal.LoadAccount(msg.From, st.view)
	if err != nil {
		return err
	}
	if !msg.SkipNonceCheck {
		stNonce := from.Info.Nonce
		if stNonce < msg.Nonce {
			return fmt.Errorf("%w: address %v, tx: %d state: %d", ErrNonceTooHigh,
				msg.From.Hex(), msg.Nonce, stNonce)
		} else if stNonce > msg.Nonce {
			return fmt.Errorf("%w: address %v, tx: %d state: %d", ErrNonceTooLow,
				msg.From.Hex(), msg.Nonce, stNonce)
		} else if stNonce+1 < stNonce {
			return fmt.Errorf("%w: address %v, nonce: %d", ErrNonceMax,
				msg.From.Hex(), stNonce)
		}
	}
	baseFee := st.env.Block.BaseFee
	if baseFee == nil || msg.GasFeeCap == nil || msg.GasTipCap == nil {
		return nil
	}
	// Calls without any fee fields are allowed to run under a non-zero base fee.
	// 未设置费用字段的调用允许在非零基础费用下运行。
	if msg.SkipNonceCheck && msg.GasFeeCap.BitLen() == 0 && msg.GasTipCap.BitLen() == 0 {
		return nil
	}
	if msg.GasFeeCap.Cmp(msg.GasTipCap) < 0 {
		return fmt.Errorf("%w: address %v, maxPriorityFeePerGas: %s, maxFeePerGas: %s", ErrTipAboveFeeCap,
			msg.From.Hex(), msg.GasTipCap, msg.GasFeeCap)
	}
	if msg.GasFeeCap.Cmp(baseFee) < 0 {
		return fmt.Errorf("%w: address %v, maxFeePerGas: %s, baseFee: %s", ErrFeeCapTooLow,
			msg.From.Hex(), msg.GasFeeCap, baseFee)
	}
	return nil
}

// buyGas charges the sender for the full gas limit up front.
// buyGas 预先向发送者收取全部 gas 上限的费用。
func (st *stateTransition) buyGas() error {
	from := st.journal.Account(st.msg.From)
	mgval := new(uint256.Int).Mul(uint256.NewInt(st.msg.GasLimit), st.gasPrice())
	balanceCheck := new(uint256.Int).Add(mgval, st.value())
	if have := from.Info.Balance; have == nil || have.Lt(balanceCheck) {
		return fmt.Errorf("%w: address %v have %v want %v", ErrInsufficientFunds, st.msg.From.Hex(), have, balanceCheck)
	}
	st.gasRemaining = st.msg.GasLimit
	return st.journal.SetBalance(st.msg.From, new(uint256.Int).Sub(from.Info.Balance, mgval), st.view)
}

func (st *stateTransition) execute() (*backend.ExecutionResult, error) {
	msg := st.msg
	if err := st.preCheck(); err != nil {
		return nil, err
	}
	if err := st.buyGas(); err != nil {
		return nil, err
	}
	creation := msg.To == nil
	gas, err := IntrinsicGas(msg.Data, creation)
	if err != nil {
		return nil, err
	}
	if st.gasRemaining < gas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, st.gasRemaining, gas)
	}
	st.gasRemaining -= gas

	from := st.journal.Account(msg.From)
	if err := st.journal.SetNonce(msg.From, from.Info.Nonce+1, st.view); err != nil {
		return nil, err
	}
	vmerr, err := st.transfer(creation)
	if err != nil {
		return nil, err
	}
	if vmerr != nil {
		log.Trace("Message failed", "hash", msg.Hash, "from", msg.From, "err", vmerr)
		st.gasRemaining = 0
	}
	gasUsed := msg.GasLimit - st.gasRemaining
	if err := st.refundGas(); err != nil {
		return nil, err
	}
	if err := st.payCoinbase(gasUsed); err != nil {
		return nil, err
	}
	changes, logs := st.journal.Finalize()
	res := &backend.ExecutionResult{
		Changes: changes,
		Logs:    logs,
		GasUsed: gasUsed,
		Failed:  vmerr != nil,
	}
	if vmerr != nil {
		res.ReturnData = []byte(vmerr.Error())
	}
	return res, nil
}

// transfer moves the message value to the recipient. Messages that would run
// code fail with ErrExecutionUnsupported and keep the value with the sender.
func (st *stateTransition) transfer(creation bool) (vmerr error, err error) {
	if creation {
		return ErrExecutionUnsupported, nil
	}
	to, err := st.journal.LoadAccount(*st.msg.To, st.view)
	if err != nil {
		return nil, err
	}
	if to.Info.HasCode() {
		return ErrExecutionUnsupported, nil
	}
	value := st.value()
	if value.IsZero() {
		return nil, nil
	}
	from := st.journal.Account(st.msg.From)
	if err := st.journal.SetBalance(st.msg.From, new(uint256.Int).Sub(from.Info.Balance, value), st.view); err != nil {
		return nil, err
	}
	return nil, st.journal.SetBalance(*st.msg.To, new(uint256.Int).Add(to.Info.Balance, value), st.view)
}

// refundGas returns the unused gas to the sender at the purchase price.
func (st *stateTransition) refundGas() error {
	if st.gasRemaining == 0 {
		return nil
	}
	remaining := new(uint256.Int).Mul(uint256.NewInt(st.gasRemaining), st.gasPrice())
	from := st.journal.Account(st.msg.From)
	return st.journal.SetBalance(st.msg.From, new(uint256.Int).Add(from.Info.Balance, remaining), st.view)
}

// payCoinbase credits the block producer with the priority fee of the used
// gas. The base fee part is burnt.
// payCoinbase 将已用 gas 的优先费支付给出块者，基础费用部分被销毁。
func (st *stateTransition) payCoinbase(gasUsed uint64) error {
	tip := st.effectiveTip()
	if tip.Sign() <= 0 || gasUsed == 0 {
		return nil
	}
	fee := new(uint256.Int).Mul(uint256.NewInt(gasUsed), uint256.MustFromBig(tip))
	coinbase := st.env.Block.Coinbase
	acc, err := st.journal.LoadAccount(coinbase, st.view)
	if err != nil {
		return err
	}
	return st.journal.SetBalance(coinbase, new(uint256.Int).Add(acc.Info.Balance, fee), st.view)
}

func (st *stateTransition) effectiveTip() *big.Int {
	if st.msg.GasPrice == nil {
		return new(big.Int)
	}
	tip := new(big.Int).Set(st.msg.GasPrice)
	if baseFee := st.env.Block.BaseFee; baseFee != nil {
		tip.Sub(tip, baseFee)
	}
	return tip
}

// noopInspector is handed to the executor when the caller has no interest in
// the execution trace.
type noopInspector struct{}

func (noopInspector) OnTransactionStart(*backend.Env, *backend.Message) {}
func (noopInspector) OnTransactionEnd(*backend.ExecutionResult, error)  {}

// ApplyMessage runs msg against view without an inspector.
func ApplyMessage(executor backend.Executor, view backend.StateView, env *backend.Env, msg *backend.Message) (*backend.ExecutionResult, error) {
	return executor.Execute(view, env, msg, noopInspector{})
}

var _ backend.Executor = (*TransferExecutor)(nil)
