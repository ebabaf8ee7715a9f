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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoActiveFork is returned when an operation needs a fork but the
	// backend is not forking.
	ErrNoActiveFork = errors.New("no active fork")

	// ErrSnapshotNotFound is returned when a snapshot id is unknown.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrNoExecutor is returned when transactions must be executed but the
	// backend was created without an executor.
	ErrNoExecutor = errors.New("no transaction executor configured")
)

// ForkNotFoundError is returned when a local fork id is not registered.
// ForkNotFoundError 在本地分叉 id 未注册时返回。
type ForkNotFoundError struct {
	ID LocalForkID
}

func (e *ForkNotFoundError) Error() string {
	return fmt.Sprintf("fork with id %d not found", e.ID)
}

// NoCheatcodeAccessError is returned when an account without cheatcode access
// invokes a privileged operation.
type NoCheatcodeAccessError struct {
	Account common.Address
}

func (e *NoCheatcodeAccessError) Error() string {
	return fmt.Sprintf("no cheatcode access granted for %s, see allowCheatcodes(address)", e.Account.Hex())
}

// TransactionNotInBlockError is returned when a replay target is not part of
// the block that should contain it.
type TransactionNotInBlockError struct {
	Hash  common.Hash
	Block uint64
}

func (e *TransactionNotInBlockError) Error() string {
	return fmt.Sprintf("transaction %s not found in block %d", e.Hash.Hex(), e.Block)
}

// ExecutionError wraps a failure of the transaction executor.
type ExecutionError struct {
	Tx  common.Hash
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute transaction %s: %v", e.Tx.Hex(), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
