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
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/core/state"
)

var (
	testAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testSlot = common.HexToHash("0x01")
)

func testConfig() Config {
	block := uint64(100)
	return Config{
		URL:            "http://fake",
		BlockNumber:    &block,
		InitialBackoff: time.Millisecond,
		Retries:        3,
		NoRateLimit:    true,
	}
}

func newTestDatabase(chain *fakeChain) *Database {
	return NewDatabase(chain, testConfig(), 1, 100)
}

func TestStorageFetchedOnce(t *testing.T) {
	chain := newFakeChain()
	chain.setStorage(testAddr, testSlot, common.HexToHash("0x2a"))
	db := newTestDatabase(chain)

	for i := 0; i < 5; i++ {
		value, err := db.Storage(context.Background(), testAddr, testSlot)
		require.NoError(t, err)
		require.Equal(t, common.HexToHash("0x2a"), value)
	}
	require.Equal(t, 1, chain.count("storage"))
}

func TestConcurrentRequestsShareFetch(t *testing.T) {
	chain := newFakeChain()
	chain.gate = make(chan struct{})
	chain.setStorage(testAddr, testSlot, common.HexToHash("0x2a"))
	db := newTestDatabase(chain)

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	results := make([]common.Hash, 8)
	for i := range results {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			value, err := db.Storage(context.Background(), testAddr, testSlot)
			if err == nil {
				results[i] = value
			}
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(chain.gate)
	wg.Wait()

	for _, value := range results {
		require.Equal(t, common.HexToHash("0x2a"), value)
	}
	require.Equal(t, 1, chain.count("storage"))
}

// A flight that starts after an earlier one already filled the cache must be
// served from memory.
func TestLateFlightServedFromCache(t *testing.T) {
	chain := newFakeChain()
	db := newTestDatabase(chain)
	ctx := context.Background()

	db.InsertStorage(testAddr, testSlot, common.HexToHash("0x2a"))
	db.InsertAccount(testAddr, state.NewAccountInfo(uint256.NewInt(5), 1, nil))
	db.InsertBlockHash(42, common.HexToHash("0x42"))

	value, err := db.fetchStorage(ctx, testAddr, testSlot)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x2a"), value)
	info, err := db.fetchAccount(ctx, testAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), info.Balance.Uint64())
	hash, err := db.BlockHash(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x42"), hash)

	require.Zero(t, chain.count("storage"))
	require.Zero(t, chain.count("balance"))
	require.Zero(t, chain.count("header"))
}

func TestConcurrentRoundsFetchOnce(t *testing.T) {
	for round := 0; round < 200; round++ {
		chain := newFakeChain()
		chain.setBalance(100, testAddr, 1)
		chain.setStorage(testAddr, testSlot, common.HexToHash("0x2a"))
		db := newTestDatabase(chain)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				db.Storage(context.Background(), testAddr, testSlot)
				db.Basic(context.Background(), testAddr)
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, chain.count("storage"), "round %d", round)
		require.Equal(t, 1, chain.count("balance"), "round %d", round)
	}
}

func TestTransactionRetried(t *testing.T) {
	chain := newFakeChain()
	tx := types.NewTx(&types.LegacyTx{Nonce: 3, Gas: 21000, GasPrice: common.Big1})
	chain.addTransaction(tx, 90)
	chain.failNext("tx", 2)
	db := newTestDatabase(chain)

	got, number, err := db.Transaction(context.Background(), tx.Hash())
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), got.Hash())
	require.Equal(t, uint64(90), number)
	require.Equal(t, 3, chain.count("tx"))

	// Unknown transactions are not retried.
	_, _, err = db.Transaction(context.Background(), common.HexToHash("0xdead"))
	require.ErrorIs(t, err, ErrTransactionNotFound)
	require.Equal(t, 4, chain.count("tx"))
}

func TestCloseWhileFetching(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	cfg.CacheDir = t.TempDir()
	cfg.CacheEngine = EngineMemory
	db := NewDatabase(chain, cfg, 1, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.Storage(context.Background(), testAddr, common.BigToHash(big.NewInt(int64(i))))
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	require.NoError(t, db.Close())
	wg.Wait()
	require.NoError(t, db.Flush(), "flushing a closed database is a no-op")
	require.NoError(t, db.Close())
}

func TestMissingAccountCached(t *testing.T) {
	chain := newFakeChain()
	db := newTestDatabase(chain)

	for i := 0; i < 3; i++ {
		info, err := db.Basic(context.Background(), testAddr)
		require.NoError(t, err)
		require.Nil(t, info)
	}
	require.Equal(t, 1, chain.count("balance"))

	// Slots of a missing account need no fetch.
	value, err := db.Storage(context.Background(), testAddr, testSlot)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, value)
	require.Equal(t, 0, chain.count("storage"))
}

func TestRetryRecoversTransientFailure(t *testing.T) {
	chain := newFakeChain()
	chain.setBalance(100, testAddr, 5)
	chain.failNext("balance", 2)
	db := newTestDatabase(chain)

	info, err := db.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), info.Balance.Uint64())
	require.Equal(t, 3, chain.count("balance"))
}

func TestPartialFailureNotCached(t *testing.T) {
	chain := newFakeChain()
	chain.setBalance(100, testAddr, 5)
	chain.failNext("code", 10)
	db := newTestDatabase(chain)

	_, err := db.Basic(context.Background(), testAddr)
	var dberr *DatabaseError
	require.True(t, errors.As(err, &dberr), "want DatabaseError, got %v", err)
	require.ErrorIs(t, err, errFlaky)
	require.Zero(t, db.Stats().Accounts, "failed fetch must not be cached")

	// Once the endpoint recovers the account is served correctly.
	chain.failNext("code", 0)
	info, err := db.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, uint64(5), info.Balance.Uint64())
}

func TestCancelledCallerDoesNotAbortFetch(t *testing.T) {
	chain := newFakeChain()
	chain.gate = make(chan struct{})
	chain.setStorage(testAddr, testSlot, common.HexToHash("0x07"))
	db := newTestDatabase(chain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.Storage(ctx, testAddr, testSlot)
	require.ErrorIs(t, err, context.Canceled)

	close(chain.gate)
	require.Eventually(t, func() bool { return db.Stats().Slots == 1 }, time.Second, 5*time.Millisecond)

	value, err := db.Storage(context.Background(), testAddr, testSlot)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x07"), value)
	require.Equal(t, 1, chain.count("storage"))
}

func TestBlockHash(t *testing.T) {
	chain := newFakeChain()
	db := newTestDatabase(chain)

	hash, err := db.BlockHash(context.Background(), 99)
	require.NoError(t, err)
	require.Equal(t, chain.header(99).Hash(), hash)
	_, err = db.BlockHash(context.Background(), 99)
	require.NoError(t, err)
	require.Equal(t, 1, chain.count("header"))

	hash, err = db.BlockHash(context.Background(), 101)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, hash, "blocks after the pin are not part of the fork")
	require.Equal(t, 1, chain.count("header"))
}

func TestRollSameBlockKeepsCache(t *testing.T) {
	chain := newFakeChain()
	chain.setBalance(100, testAddr, 5)
	chain.setBalance(90, testAddr, 3)
	db := newTestDatabase(chain)

	_, err := db.Basic(context.Background(), testAddr)
	require.NoError(t, err)

	require.Same(t, db, db.Roll(100))
	require.Equal(t, 1, db.Stats().Accounts)

	rolled := db.Roll(90)
	require.NotSame(t, db, rolled)
	require.Equal(t, ForkID{URL: "http://fake", Block: 90}, rolled.ID())
	require.Zero(t, rolled.Stats().Accounts)

	info, err := rolled.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), info.Balance.Uint64())

	// The old pin keeps serving its own view.
	info, err = db.Basic(context.Background(), testAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), info.Balance.Uint64())
}
