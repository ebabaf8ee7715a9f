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
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/state"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Database serves account, storage and block hash lookups of a remote chain at
// one pinned block. Every key is fetched at most once: results, including the
// absence of an account, are cached for the lifetime of the pin, and
// concurrent requests for the same uncached key share one in-flight fetch.
//
// Database 提供远程链在某个固定区块上的账户、存储和区块哈希查询。
// 每个键最多获取一次：结果（包括账户不存在）在固定区块的生命周期内被缓存，
// 对同一未缓存键的并发请求共享同一个正在进行的获取。
type Database struct {
	id       ForkID
	chainID  uint64
	number   *big.Int
	cfg      Config
	provider Provider
	limiter  *rate.Limiter
	diskLock sync.RWMutex
	disk     *DiskCache // nil if responses are not persisted or closed

	lock        sync.RWMutex
	accounts    map[common.Address]*state.AccountInfo // nil value is a cached negative result
	codes       map[common.Hash][]byte
	storage     map[common.Address]map[common.Hash]common.Hash
	blockHashes map[uint64]common.Hash
	header      *types.Header

	inflight singleflight.Group
	fetches  atomic.Uint64 // remote requests issued, retries included
	warned   atomic.Bool   // non-archive warning emitted

	log log.Logger
}

func newDatabase(provider Provider, limiter *rate.Limiter, cfg Config, chainID uint64, block uint64, pinned bool) *Database {
	db := &Database{
		id:          ForkID{URL: cfg.URL, Block: block},
		chainID:     chainID,
		number:      new(big.Int).SetUint64(block),
		cfg:         cfg,
		provider:    provider,
		limiter:     limiter,
		accounts:    make(map[common.Address]*state.AccountInfo),
		codes:       make(map[common.Hash][]byte),
		storage:     make(map[common.Address]map[common.Hash]common.Hash),
		blockHashes: make(map[uint64]common.Hash),
		log:         log.New("fork", cfg.URL, "block", block),
	}
	// Forks of "latest" are never persisted, the next run may resolve another block.
	if pinned && cfg.CacheDir != "" && !cfg.NoStorageCaching {
		disk, err := OpenDiskCache(cfg.CacheDir, cfg.CacheEngine, cfg.CacheSize, chainID, block)
		if err != nil {
			db.log.Warn("Fork response cache disabled", "err", err)
		} else {
			db.disk = disk
		}
	}
	return db
}

// NewDatabase creates a fork database reading from provider at block.
func NewDatabase(provider Provider, cfg Config, chainID uint64, block uint64) *Database {
	cfg = cfg.withDefaults()
	return newDatabase(provider, newLimiter(cfg), cfg, chainID, block, cfg.BlockNumber != nil)
}

// ID returns the identity of the pinned view.
func (db *Database) ID() ForkID { return db.id }

// BlockNumber returns the pinned block number.
func (db *Database) BlockNumber() uint64 { return db.number.Uint64() }

// ChainID returns the chain id of the remote chain.
func (db *Database) ChainID() uint64 { return db.chainID }

// Fetches returns the number of remote requests issued so far.
func (db *Database) Fetches() uint64 { return db.fetches.Load() }

// Roll returns a database pinned at block, sharing the endpoint and request
// budget of db. Rolling to the pinned block returns db itself so nothing that
// was cached is lost. The old database stays usable.
//
// Roll 返回一个固定在新区块上的数据库，与 db 共享端点和请求额度。
// 滚动到当前区块时直接返回 db 本身，不会丢失任何缓存。
func (db *Database) Roll(block uint64) *Database {
	if block == db.BlockNumber() {
		return db
	}
	cfg := db.cfg
	cfg.BlockNumber = &block
	return newDatabase(db.provider, db.limiter, cfg, db.chainID, block, true)
}

// retry runs fetch until it succeeds, the retry budget is spent or ctx is
// cancelled. Every attempt is charged against the request budget.
func retry[T any](ctx context.Context, db *Database, op string, fetch func(ctx context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = db.cfg.InitialBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()

	start := time.Now()
	defer fetchTimer.UpdateSince(start)

	return backoff.RetryNotifyWithData(func() (T, error) {
		var zero T
		if err := db.limiter.WaitN(ctx, requestCost); err != nil {
			return zero, backoff.Permanent(err)
		}
		db.fetches.Add(1)
		rctx, cancel := context.WithTimeout(ctx, db.cfg.Timeout)
		defer cancel()

		v, err := fetch(rctx)
		if err != nil && ctx.Err() != nil {
			return zero, backoff.Permanent(ctx.Err())
		}
		return v, err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(db.cfg.Retries)), ctx), func(err error, wait time.Duration) {
		fetchRetryMeter.Mark(1)
		db.log.Debug("Retrying remote fetch", "op", op, "err", err, "wait", wait)
	})
}

// fail wraps an exhausted fetch into a DatabaseError.
func (db *Database) fail(op, key string, err error) error {
	fetchFailureMeter.Mark(1)
	if isMissingState(err) && db.warned.CompareAndSwap(false, true) {
		db.log.Warn("Fork endpoint is missing historical state, it is likely not an archive node", "err", err)
	}
	return &DatabaseError{Op: op, Key: key, Err: err}
}

func isMissingState(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "missing trie node") || strings.Contains(msg, "historical state") ||
		strings.Contains(msg, "state not available")
}

// share runs fetch once per key among concurrent callers. The fetch itself is
// detached from the caller's context: a caller that gives up returns early,
// while the fetch completes and populates the cache for later callers.
//
// share 对同一键的并发调用只执行一次 fetch。fetch 与调用者的上下文分离：
// 放弃等待的调用者会提前返回，而 fetch 会继续完成并填充缓存。
func share[T any](ctx context.Context, db *Database, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	detached := context.WithoutCancel(ctx)
	ch := db.inflight.DoChan(key, func() (interface{}, error) {
		return fetch(detached)
	})
	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Basic returns the account info of addr at the pinned block, or nil if the
// account does not exist.
func (db *Database) Basic(ctx context.Context, addr common.Address) (*state.AccountInfo, error) {
	if info, ok := db.cachedAccount(addr); ok {
		accountHitMeter.Mark(1)
		return info.Copy(), nil
	}
	accountMissMeter.Mark(1)

	info, err := share(ctx, db, "a"+addr.Hex(), func(ctx context.Context) (*state.AccountInfo, error) {
		return db.fetchAccount(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	return info.Copy(), nil
}

// cachedAccount looks addr up in memory. A nil info with ok set is a cached
// negative result.
func (db *Database) cachedAccount(addr common.Address) (*state.AccountInfo, bool) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	info, ok := db.accounts[addr]
	return info, ok
}

// withDisk runs fn on the response cache unless it is disabled or closed.
func (db *Database) withDisk(fn func(disk *DiskCache)) {
	db.diskLock.RLock()
	defer db.diskLock.RUnlock()

	if db.disk != nil {
		fn(db.disk)
	}
}

// fetchAccount resolves addr for a flight of Basic. The flight may start after
// an earlier one for the same key has already filled the cache, so memory is
// consulted again before the disk and the remote.
func (db *Database) fetchAccount(ctx context.Context, addr common.Address) (*state.AccountInfo, error) {
	if info, ok := db.cachedAccount(addr); ok {
		return info, nil
	}
	var (
		cached *state.AccountInfo
		hit    bool
	)
	db.withDisk(func(disk *DiskCache) { cached, hit = disk.Account(addr) })
	if hit {
		diskHitMeter.Mark(1)
		db.insertAccount(addr, cached)
		return cached, nil
	}
	var (
		balance *big.Int
		nonce   uint64
		code    []byte
	)
	// All three parts must succeed before anything is cached, a partial
	// result would turn into a false answer for the failed part.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = retry(gctx, db, "balance", func(ctx context.Context) (*big.Int, error) {
			return db.provider.BalanceAt(ctx, addr, db.number)
		})
		return err
	})
	g.Go(func() (err error) {
		nonce, err = retry(gctx, db, "nonce", func(ctx context.Context) (uint64, error) {
			return db.provider.NonceAt(ctx, addr, db.number)
		})
		return err
	})
	g.Go(func() (err error) {
		code, err = retry(gctx, db, "code", func(ctx context.Context) ([]byte, error) {
			return db.provider.CodeAt(ctx, addr, db.number)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, db.fail("account", addr.Hex(), err)
	}
	bal, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, db.fail("account", addr.Hex(), fmt.Errorf("balance %v overflows 256 bits", balance))
	}
	var info *state.AccountInfo
	if nonce != 0 || !bal.IsZero() || len(code) > 0 {
		info = state.NewAccountInfo(bal, nonce, code)
	}
	db.insertAccount(addr, info)
	db.withDisk(func(disk *DiskCache) { disk.PutAccount(addr, info) })
	return info, nil
}

func (db *Database) insertAccount(addr common.Address, info *state.AccountInfo) {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.accounts[addr] = info
	if info != nil && info.HasCode() {
		db.codes[info.CodeHash] = info.Code
	}
}

// Storage returns the value of a storage slot at the pinned block.
func (db *Database) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	if value, ok := db.cachedStorage(addr, slot); ok {
		storageHitMeter.Mark(1)
		return value, nil
	}
	storageMissMeter.Mark(1)

	return share(ctx, db, "s"+addr.Hex()+slot.Hex(), func(ctx context.Context) (common.Hash, error) {
		return db.fetchStorage(ctx, addr, slot)
	})
}

func (db *Database) cachedStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	value, ok := db.storage[addr][slot]
	if !ok {
		// Slots of accounts known to be missing are zero.
		if info, known := db.accounts[addr]; known && info == nil {
			ok = true
		}
	}
	return value, ok
}

func (db *Database) fetchStorage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	if value, ok := db.cachedStorage(addr, slot); ok {
		return value, nil
	}
	var (
		value common.Hash
		hit   bool
	)
	db.withDisk(func(disk *DiskCache) { value, hit = disk.Storage(addr, slot) })
	if hit {
		diskHitMeter.Mark(1)
		db.insertStorage(addr, slot, value)
		return value, nil
	}
	blob, err := retry(ctx, db, "storage", func(ctx context.Context) ([]byte, error) {
		return db.provider.StorageAt(ctx, addr, slot, db.number)
	})
	if err != nil {
		return common.Hash{}, db.fail("storage", addr.Hex()+"/"+slot.Hex(), err)
	}
	value = common.BytesToHash(blob)
	db.insertStorage(addr, slot, value)
	db.withDisk(func(disk *DiskCache) { disk.PutStorage(addr, slot, value) })
	return value, nil
}

func (db *Database) insertStorage(addr common.Address, slot, value common.Hash) {
	db.lock.Lock()
	defer db.lock.Unlock()

	slots, ok := db.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		db.storage[addr] = slots
	}
	slots[slot] = value
}

// BlockHash returns the hash of a block. Blocks after the pinned one are not
// part of the fork and resolve to the zero hash.
func (db *Database) BlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	if number > db.BlockNumber() {
		return common.Hash{}, nil
	}
	if hash, ok := db.cachedBlockHash(number); ok {
		blockHashHitMeter.Mark(1)
		return hash, nil
	}
	blockHashMissMeter.Mark(1)

	return share(ctx, db, fmt.Sprintf("h%d", number), func(ctx context.Context) (common.Hash, error) {
		if hash, ok := db.cachedBlockHash(number); ok {
			return hash, nil
		}
		var (
			hash common.Hash
			hit  bool
		)
		db.withDisk(func(disk *DiskCache) { hash, hit = disk.BlockHash(number) })
		if hit {
			diskHitMeter.Mark(1)
			db.InsertBlockHash(number, hash)
			return hash, nil
		}
		header, err := retry(ctx, db, "header", func(ctx context.Context) (*types.Header, error) {
			header, err := db.provider.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
			if errors.Is(err, ethereum.NotFound) {
				return nil, backoff.Permanent(err)
			}
			return header, err
		})
		switch {
		case errors.Is(err, ethereum.NotFound):
		case err != nil:
			return common.Hash{}, db.fail("blockhash", fmt.Sprint(number), err)
		default:
			hash = header.Hash()
		}
		db.InsertBlockHash(number, hash)
		db.withDisk(func(disk *DiskCache) { disk.PutBlockHash(number, hash) })
		return hash, nil
	})
}

func (db *Database) cachedBlockHash(number uint64) (common.Hash, bool) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	hash, ok := db.blockHashes[number]
	return hash, ok
}

// CodeByHash returns code that was loaded together with its account.
func (db *Database) CodeByHash(hash common.Hash) ([]byte, error) {
	if hash == types.EmptyCodeHash || hash == (common.Hash{}) {
		return nil, nil
	}
	db.lock.RLock()
	defer db.lock.RUnlock()

	code, ok := db.codes[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrMissingCode, hash)
	}
	return code, nil
}

// Header returns the header of the pinned block.
func (db *Database) Header(ctx context.Context) (*types.Header, error) {
	db.lock.RLock()
	header := db.header
	db.lock.RUnlock()
	if header != nil {
		return types.CopyHeader(header), nil
	}
	header, err := share(ctx, db, "header", func(ctx context.Context) (*types.Header, error) {
		db.lock.RLock()
		header := db.header
		db.lock.RUnlock()
		if header != nil {
			return header, nil
		}
		header, err := retry(ctx, db, "header", func(ctx context.Context) (*types.Header, error) {
			return db.provider.HeaderByNumber(ctx, db.number)
		})
		if err != nil {
			return nil, db.fail("header", db.number.String(), err)
		}
		db.lock.Lock()
		db.header = header
		db.blockHashes[header.Number.Uint64()] = header.Hash()
		db.lock.Unlock()
		return header, nil
	})
	if err != nil {
		return nil, err
	}
	return types.CopyHeader(header), nil
}

// FullBlock returns a block of the remote chain with its transactions.
func (db *Database) FullBlock(ctx context.Context, number uint64) (*types.Block, error) {
	block, err := retry(ctx, db, "block", func(ctx context.Context) (*types.Block, error) {
		block, err := db.provider.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if errors.Is(err, ethereum.NotFound) {
			return nil, backoff.Permanent(err)
		}
		return block, err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	if err != nil {
		return nil, db.fail("block", fmt.Sprint(number), err)
	}
	return block, nil
}

// Transaction returns a mined transaction of the remote chain and the number of
// the block that includes it.
func (db *Database) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, uint64, error) {
	type lookup struct {
		tx      *types.Transaction
		pending bool
	}
	res, err := retry(ctx, db, "transaction", func(ctx context.Context) (lookup, error) {
		tx, pending, err := db.provider.TransactionByHash(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return lookup{}, backoff.Permanent(err)
		}
		return lookup{tx, pending}, err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, 0, fmt.Errorf("%w: %x", ErrTransactionNotFound, hash)
	}
	if err != nil {
		return nil, 0, db.fail("transaction", hash.Hex(), err)
	}
	if res.pending {
		return nil, 0, fmt.Errorf("%w: %x is pending", ErrTransactionNotFound, hash)
	}
	receipt, err := retry(ctx, db, "receipt", func(ctx context.Context) (*types.Receipt, error) {
		return db.provider.TransactionReceipt(ctx, hash)
	})
	if err != nil {
		return nil, 0, db.fail("receipt", hash.Hex(), err)
	}
	return res.tx, receipt.BlockNumber.Uint64(), nil
}

// InsertAccount seeds the cache with an account, nil seeds a negative result.
func (db *Database) InsertAccount(addr common.Address, info *state.AccountInfo) {
	db.insertAccount(addr, info.Copy())
}

// InsertStorage seeds the cache with a storage slot.
func (db *Database) InsertStorage(addr common.Address, slot, value common.Hash) {
	db.insertStorage(addr, slot, value)
}

// InsertBlockHash seeds the cache with a block hash.
func (db *Database) InsertBlockHash(number uint64, hash common.Hash) {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.blockHashes[number] = hash
}

// Stats reports the number of cached entries.
type Stats struct {
	Accounts    int
	Slots       int
	BlockHashes int
}

// Stats returns the number of cached entries.
func (db *Database) Stats() Stats {
	db.lock.RLock()
	defer db.lock.RUnlock()

	stats := Stats{Accounts: len(db.accounts), BlockHashes: len(db.blockHashes)}
	for _, slots := range db.storage {
		stats.Slots += len(slots)
	}
	return stats
}

// Flush persists the on-disk response cache.
func (db *Database) Flush() (err error) {
	db.withDisk(func(disk *DiskCache) { err = disk.Flush() })
	return err
}

// Close flushes and releases the on-disk response cache.
func (db *Database) Close() error {
	db.diskLock.Lock()
	disk := db.disk
	db.disk = nil
	db.diskLock.Unlock()

	if disk == nil {
		return nil
	}
	return disk.Close()
}

// Ref adapts the database to state.DatabaseRef, binding every lookup to ctx.
func (db *Database) Ref(ctx context.Context) state.DatabaseRef {
	return &ref{db: db, ctx: ctx}
}

type ref struct {
	db  *Database
	ctx context.Context
}

func (r *ref) Basic(addr common.Address) (*state.AccountInfo, error) {
	return r.db.Basic(r.ctx, addr)
}

func (r *ref) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return r.db.Storage(r.ctx, addr, slot)
}

func (r *ref) CodeByHash(hash common.Hash) ([]byte, error) {
	return r.db.CodeByHash(hash)
}

func (r *ref) BlockHash(number uint64) (common.Hash, error) {
	return r.db.BlockHash(r.ctx, number)
}
