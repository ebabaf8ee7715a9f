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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sunyihoo/forknode/core"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/miner"
)

const (
	errCodeNonceTooHigh         = -38011
	errCodeNonceTooLow          = -38010
	errCodeIntrinsicGas         = -38013
	errCodeInsufficientFunds    = -38014
	errCodeBlockGasLimitReached = -38015
	errCodeInternalError        = -32603
	errCodeInvalidParams        = -32602
	errCodeNotFound             = -32001
	errCodeForkFailure          = -32002
	errCodeReverted             = 3
)

// revertError is an API error that encompasses a failed execution with JSON
// error code and a binary data blob.
// revertError 是包含执行失败信息的 API 错误，带有 JSON 错误码和二进制数据。
type revertError struct {
	error
	reason string // revert reason hex encoded
}

// ErrorCode returns the JSON error code for a revert.
func (e *revertError) ErrorCode() int {
	return errCodeReverted
}

// ErrorData returns the hex encoded revert reason.
func (e *revertError) ErrorData() interface{} {
	return e.reason
}

func newRevertError(data []byte) *revertError {
	err := errors.New("execution reverted")
	if len(data) > 0 {
		err = fmt.Errorf("execution reverted: %s", data)
	}
	return &revertError{error: err, reason: hexutil.Encode(data)}
}

// apiError is an error with a JSON-RPC error code.
type apiError struct {
	code int
	err  error
}

func (e *apiError) Error() string  { return e.err.Error() }
func (e *apiError) ErrorCode() int { return e.code }
func (e *apiError) Unwrap() error  { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &apiError{code: errCodeInvalidParams, err: fmt.Errorf(format, args...)}
}

// translateError maps typed errors of the node to JSON-RPC errors. Errors
// without a more specific kind become internal errors carrying the message.
// translateError 将节点的类型化错误映射为 JSON-RPC 错误。
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var (
		code        = errCodeInternalError
		forkMissing *backend.ForkNotFoundError
		noAccess    *backend.NoCheatcodeAccessError
		notInBlock  *backend.TransactionNotInBlockError
		dbErr       *forkdb.DatabaseError
		coded       interface{ ErrorCode() int }
	)
	switch {
	case errors.As(err, &coded):
		return err
	case errors.As(err, &forkMissing), errors.Is(err, backend.ErrSnapshotNotFound),
		errors.Is(err, backend.ErrNoActiveFork), errors.As(err, &notInBlock),
		errors.Is(err, forkdb.ErrTransactionNotFound), errors.Is(err, forkdb.ErrBlockNotFound):
		code = errCodeNotFound
	case errors.As(err, &dbErr), errors.Is(err, forkdb.ErrForkUnreachable):
		code = errCodeForkFailure
	case errors.As(err, &noAccess), errors.Is(err, miner.ErrInvalidTimestamp):
		code = errCodeInvalidParams
	case errors.Is(err, core.ErrNonceTooHigh):
		code = errCodeNonceTooHigh
	case errors.Is(err, core.ErrNonceTooLow):
		code = errCodeNonceTooLow
	case errors.Is(err, core.ErrIntrinsicGas):
		code = errCodeIntrinsicGas
	case errors.Is(err, core.ErrInsufficientFunds):
		code = errCodeInsufficientFunds
	case errors.Is(err, core.ErrGasLimitReached):
		code = errCodeBlockGasLimitReached
	case errors.Is(err, core.ErrTipAboveFeeCap), errors.Is(err, core.ErrFeeCapTooLow),
		errors.Is(err, miner.ErrAlreadyKnown):
		code = errCodeInvalidParams
	}
	return &apiError{code: code, err: err}
}
