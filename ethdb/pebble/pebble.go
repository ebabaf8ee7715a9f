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

// Package pebble implements the key-value database layer based on pebble.
// It backs the "pebble" fork cache engine.
// Package pebble 实现了基于 Pebble 的键值数据库层。
package pebble

import (
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sunyihoo/forknode/ethdb"
)

const (
	minCache   = 16 // megabytes
	minHandles = 16
)

// Database is a persistent key-value store based on the pebble storage engine.
// Fork response caches are write-once and read-many, so writes are never
// synced; a crash loses at most cached responses that can be fetched again.
//
// Database 是一个基于 pebble 存储引擎的持久化键值存储。
type Database struct {
	path string
	db   *pebble.DB
	log  log.Logger

	quitLock sync.RWMutex // protects closed against in-flight accesses
	closed   bool

	comp       compactions
	readMeter  *metrics.Meter
	writeMeter *metrics.Meter
}

// compactions measures the wall time during which at least one compaction
// is running. Pebble reports the events from its own goroutines.
// compactions 统计至少有一个压缩在运行的总时长。
type compactions struct {
	mu      sync.Mutex
	active  int
	started time.Time
	level0  int
	other   int
	meter   *metrics.Meter
}

func (c *compactions) begin(info pebble.CompactionInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == 0 {
		c.started = time.Now()
	}
	if len(info.Input) > 0 && info.Input[0].Level == 0 {
		c.level0++
	} else {
		c.other++
	}
	c.active++
}

func (c *compactions) end(pebble.CompactionInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == 0 {
		return
	}
	c.active--
	if c.active == 0 && c.meter != nil {
		c.meter.Mark(int64(time.Since(c.started)))
	}
}

// quietLogger silences pebble but still panics on fatal errors.
type quietLogger struct{}

func (quietLogger) Infof(format string, args ...interface{})  {}
func (quietLogger) Errorf(format string, args ...interface{}) {}
func (quietLogger) Fatalf(format string, args ...interface{}) {
	panic(errors.New("fatal: " + format))
}

// New opens the pebble database at file. Metrics are registered below
// namespace.
// New 打开位于 file 的 pebble 数据库，指标注册在 namespace 之下。
func New(file string, cache int, namespace string) (*Database, error) {
	cache = max(cache, minCache)
	d := &Database{
		path:       file,
		log:        log.New("database", file),
		readMeter:  metrics.GetOrRegisterMeter(namespace+"disk/read", nil),
		writeMeter: metrics.GetOrRegisterMeter(namespace+"disk/write", nil),
	}
	d.comp.meter = metrics.GetOrRegisterMeter(namespace+"compact/time", nil)

	filter := bloom.FilterPolicy(10)
	db, err := pebble.Open(file, &pebble.Options{
		Cache:        pebble.NewCache(int64(cache * 1024 * 1024)),
		MaxOpenFiles: minHandles,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 * 1024 * 1024, FilterPolicy: filter},
			{TargetFileSize: 4 * 1024 * 1024, FilterPolicy: filter},
			{TargetFileSize: 8 * 1024 * 1024, FilterPolicy: filter},
		},
		EventListener: &pebble.EventListener{
			CompactionBegin: d.comp.begin,
			CompactionEnd:   d.comp.end,
		},
		Logger: quietLogger{},
	})
	if err != nil {
		return nil, err
	}
	d.db = db
	d.log.Debug("Opened pebble fork cache", "cache", common.StorageSize(cache*1024*1024))
	return d, nil
}

// NewMemory returns a pebble database on an in-memory filesystem.
func NewMemory() (*Database, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem(), Logger: quietLogger{}})
	if err != nil {
		return nil, err
	}
	return &Database{db: db, log: log.New("database", "memory")}, nil
}

// open runs fn unless the database is closed.
func (d *Database) open(fn func() error) error {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return pebble.ErrClosed
	}
	return fn()
}

// Close closes the database. Closing twice is allowed.
func (d *Database) Close() error {
	d.quitLock.Lock()
	defer d.quitLock.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// Has reports whether key is present.
func (d *Database) Has(key []byte) (present bool, err error) {
	err = d.open(func() error {
		_, closer, err := d.db.Get(key)
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		present = true
		return closer.Close()
	})
	return present, err
}

// Get returns the value of key, or ethdb.ErrNotFound.
// Get 返回 key 对应的值，不存在时返回 ethdb.ErrNotFound。
func (d *Database) Get(key []byte) (value []byte, err error) {
	err = d.open(func() error {
		dat, closer, err := d.db.Get(key)
		if errors.Is(err, pebble.ErrNotFound) {
			return ethdb.ErrNotFound
		}
		if err != nil {
			return err
		}
		// dat is only valid until the closer is closed.
		value = common.CopyBytes(dat)
		return closer.Close()
	})
	if err == nil && d.readMeter != nil {
		d.readMeter.Mark(int64(len(value)))
	}
	return value, err
}

// Put stores value under key.
func (d *Database) Put(key []byte, value []byte) error {
	return d.open(func() error {
		if d.writeMeter != nil {
			d.writeMeter.Mark(int64(len(key) + len(value)))
		}
		return d.db.Set(key, value, pebble.NoSync)
	})
}

// Delete removes key.
func (d *Database) Delete(key []byte) error {
	return d.open(func() error {
		return d.db.Delete(key, pebble.NoSync)
	})
}

// NewBatch creates a batch committed to d on Write.
func (d *Database) NewBatch() ethdb.Batch {
	return &batch{b: d.db.NewBatch(), db: d}
}

// Stat returns the internal metrics of pebble in a text format.
// Stat 以文本形式返回 pebble 的内部指标。
func (d *Database) Stat() (stat string, err error) {
	err = d.open(func() error {
		stat = d.db.Metrics().String()
		return nil
	})
	return stat, err
}

// Path returns the path to the database directory.
func (d *Database) Path() string {
	return d.path
}

// batch buffers writes until Write. A batch cannot be used concurrently.
type batch struct {
	b    *pebble.Batch
	db   *Database
	size int
}

func (b *batch) Put(key, value []byte) error {
	if err := b.b.Set(key, value, nil); err != nil {
		return err
	}
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	if err := b.b.Delete(key, nil); err != nil {
		return err
	}
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

func (b *batch) Write() error {
	return b.db.open(func() error {
		return b.b.Commit(pebble.NoSync)
	})
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
