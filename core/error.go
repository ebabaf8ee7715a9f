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

import "errors"

// Chain store errors.
// 链存储错误。
var (
	ErrUnknownAncestor = errors.New("unknown ancestor") // block does not extend the head
	ErrGenesisMismatch = errors.New("genesis mismatch") // store holds another genesis
)

// Pre-check failures. A message failing any of these is rejected before it
// touches state. The texts follow the ones Ethereum clients report so that
// tooling matching on them keeps working.
// 预检查失败。未通过预检查的消息在修改状态前即被拒绝。
var (
	ErrNonceTooLow       = errors.New("nonce too low")
	ErrNonceTooHigh      = errors.New("nonce too high")
	ErrNonceMax          = errors.New("nonce has max value")
	ErrGasLimitReached   = errors.New("gas limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrGasUintOverflow   = errors.New("gas uint64 overflow")
	ErrIntrinsicGas      = errors.New("intrinsic gas too low")
	ErrTipAboveFeeCap    = errors.New("max priority fee per gas higher than max fee per gas")
	ErrFeeCapTooLow      = errors.New("max fee per gas less than block base fee")
)

// ErrExecutionUnsupported is the failure reason recorded for messages that
// would run contract code. The built-in executor only moves value.
var ErrExecutionUnsupported = errors.New("contract execution requires an external EVM")
