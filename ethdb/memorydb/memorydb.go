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

// Package memorydb implements the key-value database layer based on memory maps.
// It backs the "memory" fork cache engine and the local chain.
// 包 memorydb 基于内存映射实现键值数据库层。
package memorydb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sunyihoo/forknode/ethdb"
)

// errMemorydbClosed is returned by every access after Close.
var errMemorydbClosed = errors.New("database closed")

// Database is an ephemeral key-value store. Stored values are copies, callers
// may reuse their slices.
// Database 是一个临时键值存储，保存的值都是副本。
type Database struct {
	lock    sync.RWMutex
	entries map[string][]byte
}

// New returns an empty memory database.
func New() *Database {
	return &Database{entries: make(map[string][]byte)}
}

// view runs fn under the read lock, failing on a closed database.
func (db *Database) view(fn func(entries map[string][]byte) error) error {
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.entries == nil {
		return errMemorydbClosed
	}
	return fn(db.entries)
}

// update runs fn under the write lock, failing on a closed database.
func (db *Database) update(fn func(entries map[string][]byte)) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.entries == nil {
		return errMemorydbClosed
	}
	fn(db.entries)
	return nil
}

// Close drops the content. Later accesses fail.
func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.entries = nil
	return nil
}

// Has reports whether key is present.
func (db *Database) Has(key []byte) (present bool, err error) {
	err = db.view(func(entries map[string][]byte) error {
		_, present = entries[string(key)]
		return nil
	})
	return present, err
}

// Get returns a copy of the value of key, or ethdb.ErrNotFound.
func (db *Database) Get(key []byte) (value []byte, err error) {
	err = db.view(func(entries map[string][]byte) error {
		stored, ok := entries[string(key)]
		if !ok {
			return ethdb.ErrNotFound
		}
		value = append([]byte(nil), stored...)
		return nil
	})
	return value, err
}

// Put stores a copy of value under key.
func (db *Database) Put(key []byte, value []byte) error {
	return db.update(func(entries map[string][]byte) {
		entries[string(key)] = append([]byte(nil), value...)
	})
}

// Delete removes key.
func (db *Database) Delete(key []byte) error {
	return db.update(func(entries map[string][]byte) {
		delete(entries, string(key))
	})
}

// NewBatch creates a batch applied to db on Write.
func (db *Database) NewBatch() ethdb.Batch {
	return &batch{db: db}
}

// Len returns the number of stored entries.
func (db *Database) Len() int {
	var n int
	db.view(func(entries map[string][]byte) error {
		n = len(entries)
		return nil
	})
	return n
}

// Stat returns the number of entries and their total size.
// Stat 返回条目数量及其总大小。
func (db *Database) Stat() (stat string, err error) {
	err = db.view(func(entries map[string][]byte) error {
		var size int
		for key, value := range entries {
			size += len(key) + len(value)
		}
		stat = fmt.Sprintf("entries: %d, size: %d bytes", len(entries), size)
		return nil
	})
	return stat, err
}

// op is a buffered write, a nil value deletes the key.
type op struct {
	key   string
	value []byte
}

// batch buffers writes until Write. A batch cannot be used concurrently.
// batch 在调用 Write 前缓冲写入，不能并发使用。
type batch struct {
	db   *Database
	ops  []op
	size int
}

func (b *batch) Put(key, value []byte) error {
	// Never store a nil value, it would read as a deletion.
	b.ops = append(b.ops, op{string(key), append([]byte{}, value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: string(key)})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

// Write applies the buffered operations in order.
func (b *batch) Write() error {
	return b.db.update(func(entries map[string][]byte) {
		for _, w := range b.ops {
			if w.value == nil {
				delete(entries, w.key)
			} else {
				entries[w.key] = w.value
			}
		}
	})
}

func (b *batch) Reset() {
	b.ops, b.size = b.ops[:0], 0
}
