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
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gofrs/flock"
	"github.com/golang/snappy"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/state"
	"github.com/sunyihoo/forknode/ethdb"
	"github.com/sunyihoo/forknode/ethdb/leveldb"
	"github.com/sunyihoo/forknode/ethdb/memorydb"
	"github.com/sunyihoo/forknode/ethdb/pebble"
)

// 磁盘缓存仅用于减少网络请求：同一 (链, 区块) 的远程响应是不可变的，
// 因此可以在进程重启之间安全复用。它不参与正确性。

var (
	accountPrefix   = []byte("a") // accountPrefix + address -> rlp(cachedAccount)
	storagePrefix   = []byte("s") // storagePrefix + address + slot -> value
	blockHashPrefix = []byte("h") // blockHashPrefix + num (uint64 big endian) -> hash

	errCacheLocked = errors.New("fork cache directory is used by another process")
)

// cachedAccount is the on-disk representation of a fetched account. Exists is
// false for cached negative results.
type cachedAccount struct {
	Exists  bool
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
}

// DiskCache persists remote responses of one (chain, block) pair.
// DiskCache 持久化某个 (链, 区块) 的远程响应。
type DiskCache struct {
	dir    string
	engine string
	flock  *flock.Flock

	kv   ethdb.KeyValueStore // pebble, leveldb or memory engines
	fast *fastcache.Cache    // fastcache engine, snapshotted to dir on flush

	log log.Logger
}

// OpenDiskCache opens the response cache of the given chain and block below
// root. Only one process may use a cache directory at a time.
func OpenDiskCache(root, engine string, sizeMB int, chainID uint64, block uint64) (*DiskCache, error) {
	dir := filepath.Join(root, strconv.FormatUint(chainID, 10), strconv.FormatUint(block, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errCacheLocked, dir)
	}
	c := &DiskCache{
		dir:    dir,
		engine: engine,
		flock:  lock,
		log:    log.New("cache", dir),
	}
	namespace := fmt.Sprintf("forkdb/disk/%d/", chainID)
	switch engine {
	case EngineFastcache, "":
		c.engine = EngineFastcache
		c.fast = fastcache.LoadFromFileOrNew(filepath.Join(dir, "fastcache"), sizeMB*1024*1024)
	case EnginePebble:
		c.kv, err = pebble.New(filepath.Join(dir, "pebble"), sizeMB, namespace)
	case EngineLevelDB:
		c.kv, err = leveldb.New(filepath.Join(dir, "leveldb"), sizeMB, namespace)
	case EngineMemory:
		c.kv = memorydb.New()
	default:
		err = fmt.Errorf("unknown cache engine %q", engine)
	}
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	c.log.Debug("Opened fork response cache", "engine", c.engine)
	return c, nil
}

func (c *DiskCache) get(key []byte) ([]byte, bool) {
	var (
		enc []byte
		ok  bool
	)
	if c.fast != nil {
		enc, ok = c.fast.HasGet(nil, key)
	} else {
		var err error
		enc, err = c.kv.Get(key)
		if err != nil && !errors.Is(err, ethdb.ErrNotFound) {
			c.log.Warn("Failed to read fork cache", "err", err)
		}
		ok = err == nil
	}
	if !ok {
		return nil, false
	}
	blob, err := snappy.Decode(nil, enc)
	if err != nil {
		c.log.Warn("Corrupted fork cache entry", "err", err)
		return nil, false
	}
	return blob, true
}

func (c *DiskCache) put(key, blob []byte) {
	enc := snappy.Encode(nil, blob)
	if c.fast != nil {
		c.fast.Set(key, enc)
		return
	}
	if err := c.kv.Put(key, enc); err != nil {
		c.log.Warn("Failed to write fork cache", "err", err)
	}
}

// Account returns a cached account. The second value reports whether the
// cache held an entry, the returned info is nil for a cached negative result.
func (c *DiskCache) Account(addr common.Address) (*state.AccountInfo, bool) {
	blob, ok := c.get(append(common.CopyBytes(accountPrefix), addr.Bytes()...))
	if !ok {
		return nil, false
	}
	var acc cachedAccount
	if err := rlp.DecodeBytes(blob, &acc); err != nil {
		c.log.Warn("Invalid cached account", "addr", addr, "err", err)
		return nil, false
	}
	if !acc.Exists {
		return nil, true
	}
	return state.NewAccountInfo(acc.Balance, acc.Nonce, acc.Code), true
}

// PutAccount caches an account, nil caches a negative result.
func (c *DiskCache) PutAccount(addr common.Address, info *state.AccountInfo) {
	acc := cachedAccount{Balance: new(uint256.Int)}
	if info != nil {
		acc = cachedAccount{Exists: true, Nonce: info.Nonce, Balance: info.Balance, Code: info.Code}
	}
	blob, err := rlp.EncodeToBytes(&acc)
	if err != nil {
		c.log.Warn("Failed to encode cached account", "addr", addr, "err", err)
		return
	}
	c.put(append(common.CopyBytes(accountPrefix), addr.Bytes()...), blob)
}

func storageKey(addr common.Address, slot common.Hash) []byte {
	key := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	key = append(key, storagePrefix...)
	key = append(key, addr.Bytes()...)
	return append(key, slot.Bytes()...)
}

// Storage returns a cached storage slot.
func (c *DiskCache) Storage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	blob, ok := c.get(storageKey(addr, slot))
	if !ok {
		return common.Hash{}, false
	}
	return common.BytesToHash(blob), true
}

// PutStorage caches a storage slot.
func (c *DiskCache) PutStorage(addr common.Address, slot, value common.Hash) {
	c.put(storageKey(addr, slot), value.Bytes())
}

func blockHashKey(number uint64) []byte {
	key := append(common.CopyBytes(blockHashPrefix), make([]byte, 8)...)
	binary.BigEndian.PutUint64(key[len(blockHashPrefix):], number)
	return key
}

// BlockHash returns a cached block hash.
func (c *DiskCache) BlockHash(number uint64) (common.Hash, bool) {
	blob, ok := c.get(blockHashKey(number))
	if !ok {
		return common.Hash{}, false
	}
	return common.BytesToHash(blob), true
}

// PutBlockHash caches a block hash.
func (c *DiskCache) PutBlockHash(number uint64, hash common.Hash) {
	c.put(blockHashKey(number), hash.Bytes())
}

// Flush persists the cache content. Only the fastcache engine buffers
// writes in memory.
// Flush 持久化缓存内容，只有 fastcache 引擎会在内存中缓冲写入。
func (c *DiskCache) Flush() error {
	if c.fast == nil {
		return nil
	}
	return c.fast.SaveToFileConcurrent(filepath.Join(c.dir, "fastcache"), runtime.GOMAXPROCS(0))
}

// Dir returns the directory of the cache.
func (c *DiskCache) Dir() string { return c.dir }

// Stat describes the content of the cache.
// Stat 描述缓存的内容。
func (c *DiskCache) Stat() (string, error) {
	if c.fast != nil {
		var s fastcache.Stats
		c.fast.UpdateStats(&s)
		return fmt.Sprintf("entries: %d, size: %d bytes", s.EntriesCount, s.BytesSize), nil
	}
	return c.kv.Stat()
}

// CacheLocation identifies the response cache of one chain and block.
type CacheLocation struct {
	ChainID uint64
	Block   uint64
	Dir     string
}

// ListDiskCaches returns the response caches present below root, ordered by
// chain and block.
// ListDiskCaches 返回 root 下已有的响应缓存，按链和区块排序。
func ListDiskCaches(root string) ([]CacheLocation, error) {
	chains, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var caches []CacheLocation
	for _, chain := range chains {
		chainID, err := strconv.ParseUint(chain.Name(), 10, 64)
		if err != nil || !chain.IsDir() {
			continue
		}
		blocks, err := os.ReadDir(filepath.Join(root, chain.Name()))
		if err != nil {
			return nil, err
		}
		for _, block := range blocks {
			number, err := strconv.ParseUint(block.Name(), 10, 64)
			if err != nil || !block.IsDir() {
				continue
			}
			caches = append(caches, CacheLocation{
				ChainID: chainID,
				Block:   number,
				Dir:     filepath.Join(root, chain.Name(), block.Name()),
			})
		}
	}
	sort.Slice(caches, func(i, j int) bool {
		if caches[i].ChainID != caches[j].ChainID {
			return caches[i].ChainID < caches[j].ChainID
		}
		return caches[i].Block < caches[j].Block
	})
	return caches, nil
}

// Close flushes the cache and releases the directory lock.
func (c *DiskCache) Close() error {
	err := c.Flush()
	if c.kv != nil {
		if cerr := c.kv.Close(); err == nil {
			err = cerr
		}
	}
	if c.fast != nil {
		c.fast.Reset()
	}
	if uerr := c.flock.Unlock(); err == nil {
		err = uerr
	}
	if err != nil {
		c.log.Warn("Failed to close fork response cache", "err", err)
	} else {
		c.log.Debug("Flushed fork response cache")
	}
	return err
}
