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

// Package ethdb defines the key-value store interface shared by the engines
// of the fork response cache and the local chain.
// 包 ethdb 定义分叉响应缓存和本地链所共用的键值存储接口。
package ethdb

import (
	"errors"
	"io"
)

// ErrNotFound is returned by every engine when a key is absent.
// ErrNotFound 在键不存在时由所有存储引擎返回。
var ErrNotFound = errors.New("not found")

// KeyValueReader reads single keys.
type KeyValueReader interface {
	Has(key []byte) (bool, error)

	// Get returns the value of key. A missing key yields ErrNotFound.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter writes single keys.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Batch buffers writes and applies them to its database on Write, in the
// order they were made. A batch cannot be used concurrently.
// Batch 缓冲写入，并在 Write 时按顺序应用到数据库。
type Batch interface {
	KeyValueWriter

	// ValueSize is the number of key and value bytes buffered.
	ValueSize() int

	Write() error

	// Reset empties the batch for reuse.
	Reset()
}

// Batcher creates batches.
type Batcher interface {
	NewBatch() Batch
}

// KeyValueStater describes the content of a store.
type KeyValueStater interface {
	// Stat returns engine statistics in a human readable form.
	Stat() (string, error)
}

// KeyValueStore is a key-value store engine.
// KeyValueStore 是一个键值存储引擎。
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Batcher
	KeyValueStater
	io.Closer
}
