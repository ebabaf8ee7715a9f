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

// Package forkdb implements a read-through cache in front of a remote archive
// endpoint pinned at one block.
// 包 forkdb 实现了一个位于远程归档节点前的读穿透缓存，该缓存固定在某个区块上。
package forkdb

import (
	"fmt"
	"time"
)

// Supported on-disk cache engines.
const (
	EngineFastcache = "fastcache"
	EnginePebble    = "pebble"
	EngineLevelDB   = "leveldb"
	EngineMemory    = "memory"
)

// Config holds the options for forking from a remote endpoint.
// Config 保存从远程节点分叉的配置选项。
type Config struct {
	URL         string  // remote JSON-RPC endpoint
	BlockNumber *uint64 `toml:",omitempty"` // block to pin to, latest if nil

	InitialBackoff        time.Duration // first retry delay of a failed request (default 1s)
	Retries               int           // retries of a failed request before giving up (default 5)
	Timeout               time.Duration // timeout of a single request (default 45s)
	ComputeUnitsPerSecond uint64        // request budget in compute units (default 330)
	NoRateLimit           bool          // disable the compute unit budget

	NoStorageCaching bool   // never cache responses on disk
	CacheDir         string // root of the on-disk response cache, disabled if empty
	CacheEngine      string // fastcache, pebble, leveldb or memory (default fastcache)
	CacheSize        int    // megabytes of memory the cache engine may use (default 64)
}

// DefaultConfig contains the default settings for forking.
var DefaultConfig = Config{
	InitialBackoff:        time.Second,
	Retries:               5,
	Timeout:               45 * time.Second,
	ComputeUnitsPerSecond: 330,
	CacheEngine:           EngineFastcache,
	CacheSize:             64,
}

func (cfg Config) withDefaults() Config {
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.ComputeUnitsPerSecond == 0 {
		cfg.ComputeUnitsPerSecond = DefaultConfig.ComputeUnitsPerSecond
	}
	if cfg.CacheEngine == "" {
		cfg.CacheEngine = DefaultConfig.CacheEngine
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultConfig.CacheSize
	}
	return cfg
}

// ForkID identifies one pinned view of a remote chain.
// ForkID 标识远程链的一个固定视图（端点 + 区块号）。
type ForkID struct {
	URL   string
	Block uint64
}

// String implements fmt.Stringer.
func (id ForkID) String() string {
	return fmt.Sprintf("%s@%d", id.URL, id.Block)
}
