// Copyright 2024 The go-ethereum Authors
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

package forkdb

import (
	"errors"
	"fmt"
)

var (
	// ErrForkUnreachable is returned when a fork cannot be created because the
	// endpoint does not answer.
	ErrForkUnreachable = errors.New("fork endpoint unreachable")

	// ErrTransactionNotFound is returned when the endpoint does not know a
	// transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBlockNotFound is returned when the endpoint does not know a block.
	ErrBlockNotFound = errors.New("block not found")

	// ErrMissingCode is returned when code is requested by hash that was never
	// loaded together with its account.
	ErrMissingCode = errors.New("code not loaded")
)

// DatabaseError is returned when a remote fetch keeps failing after all retries
// were spent. It is distinct from a missing account, which is not an error.
//
// DatabaseError 表示远程获取在耗尽所有重试后仍然失败，
// 它与“账户不存在”不同（后者不是错误）。
type DatabaseError struct {
	Op  string // account, storage, blockhash, ...
	Key string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("failed to fetch %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
