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

// Package leveldb implements the key-value database layer based on LevelDB.
// It backs the "leveldb" fork cache engine.
// 包 leveldb 实现了基于 LevelDB 的键值数据库层。
package leveldb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sunyihoo/forknode/ethdb"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

const (
	minCache   = 16 // megabytes, split between block cache and write buffers
	minHandles = 16
)

// Database is a persistent key-value store based on LevelDB.
// Database 是一个基于 LevelDB 的持久化键值存储。
type Database struct {
	path string
	db   *leveldb.DB
	log  log.Logger

	readMeter  *metrics.Meter
	writeMeter *metrics.Meter
}

// options sizes the caches of LevelDB for the given number of megabytes.
func options(cache int) *opt.Options {
	cache = max(cache, minCache)
	return &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		DisableSeeksCompaction: true,
		OpenFilesCacheCapacity: minHandles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // two write buffers are used internally
	}
}

// New opens the LevelDB database at file, recovering a corrupted one.
// Metrics are registered below namespace.
// New 打开位于 file 的 LevelDB 数据库，损坏时尝试恢复。
func New(file string, cache int, namespace string) (*Database, error) {
	o := options(cache)
	db, err := leveldb.OpenFile(file, o)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	d := &Database{
		path:       file,
		db:         db,
		log:        log.New("database", file),
		readMeter:  metrics.GetOrRegisterMeter(namespace+"disk/read", nil),
		writeMeter: metrics.GetOrRegisterMeter(namespace+"disk/write", nil),
	}
	d.log.Debug("Opened leveldb fork cache", "cache", common.StorageSize(o.GetBlockCacheCapacity()+2*o.GetWriteBuffer()))
	return d, nil
}

// NewMemory returns a LevelDB instance backed by in-memory storage.
func NewMemory() (*Database, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Database{db: db, log: log.New("database", "memory")}, nil
}

func (d *Database) Close() error { return d.db.Close() }

func (d *Database) Has(key []byte) (bool, error) { return d.db.Has(key, nil) }

// Get returns the value of key, or ethdb.ErrNotFound.
func (d *Database) Get(key []byte) ([]byte, error) {
	value, err := d.db.Get(key, nil)
	switch {
	case err == errors.ErrNotFound:
		return nil, ethdb.ErrNotFound
	case err != nil:
		return nil, err
	}
	if d.readMeter != nil {
		d.readMeter.Mark(int64(len(value)))
	}
	return value, nil
}

func (d *Database) Put(key []byte, value []byte) error {
	if d.writeMeter != nil {
		d.writeMeter.Mark(int64(len(key) + len(value)))
	}
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error { return d.db.Delete(key, nil) }

// NewBatch creates a batch committed to d on Write.
func (d *Database) NewBatch() ethdb.Batch {
	return &batch{db: d.db}
}

// Stat returns the compaction statistics of leveldb.
// Stat 返回 leveldb 的压缩统计信息。
func (d *Database) Stat() (string, error) {
	return d.db.GetProperty("leveldb.stats")
}

// Path returns the path to the database directory.
func (d *Database) Path() string { return d.path }

// batch buffers writes until Write. A batch cannot be used concurrently.
type batch struct {
	db   *leveldb.DB
	b    leveldb.Batch
	size int
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

func (b *batch) Write() error { return b.db.Write(&b.b, nil) }

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
