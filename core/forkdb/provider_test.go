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

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errFlaky = errors.New("flaky endpoint")

type minedTx struct {
	tx    *types.Transaction
	block uint64
}

// fakeChain is an in-process Provider holding a fixed state per block.
type fakeChain struct {
	mu       sync.Mutex
	chainID  *big.Int
	head     uint64
	balances map[uint64]map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	codes    map[common.Address][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
	txs      map[common.Hash]minedTx
	calls    map[string]int
	failures map[string]int // remaining failures per method
	gate     chan struct{}  // when set, StorageAt blocks until closed
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:  big.NewInt(1),
		head:     100,
		balances: make(map[uint64]map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		codes:    make(map[common.Address][]byte),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		txs:      make(map[common.Hash]minedTx),
		calls:    make(map[string]int),
		failures: make(map[string]int),
	}
}

func (c *fakeChain) setBalance(block uint64, addr common.Address, v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balances[block] == nil {
		c.balances[block] = make(map[common.Address]*big.Int)
	}
	c.balances[block][addr] = big.NewInt(v)
}

func (c *fakeChain) setStorage(addr common.Address, slot, value common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storage[addr] == nil {
		c.storage[addr] = make(map[common.Hash]common.Hash)
	}
	c.storage[addr][slot] = value
}

func (c *fakeChain) failNext(method string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = n
}

func (c *fakeChain) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *fakeChain) enter(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	if c.failures[method] > 0 {
		c.failures[method]--
		return errFlaky
	}
	return nil
}

func (c *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.enter("chainid"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *fakeChain) header(number uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(number), Time: 1000 + number, GasLimit: 30_000_000, BaseFee: big.NewInt(7), Difficulty: new(big.Int)}
}

func (c *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.enter("header"); err != nil {
		return nil, err
	}
	if number == nil {
		return c.header(c.head), nil
	}
	if number.Uint64() > c.head {
		return nil, ethereum.NotFound
	}
	return c.header(number.Uint64()), nil
}

func (c *fakeChain) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	if err := c.enter("block"); err != nil {
		return nil, err
	}
	if number.Uint64() > c.head {
		return nil, ethereum.NotFound
	}
	return types.NewBlockWithHeader(c.header(number.Uint64())), nil
}

func (c *fakeChain) BalanceAt(ctx context.Context, addr common.Address, number *big.Int) (*big.Int, error) {
	if err := c.enter("balance"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.balances[number.Uint64()][addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (c *fakeChain) NonceAt(ctx context.Context, addr common.Address, number *big.Int) (uint64, error) {
	if err := c.enter("nonce"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[addr], nil
}

func (c *fakeChain) CodeAt(ctx context.Context, addr common.Address, number *big.Int) ([]byte, error) {
	if err := c.enter("code"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.CopyBytes(c.codes[addr]), nil
}

func (c *fakeChain) StorageAt(ctx context.Context, addr common.Address, key common.Hash, number *big.Int) ([]byte, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := c.enter("storage"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	value := c.storage[addr][key]
	return value.Bytes(), nil
}

func (c *fakeChain) addTransaction(tx *types.Transaction, block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[tx.Hash()] = minedTx{tx: tx, block: block}
}

func (c *fakeChain) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if err := c.enter("tx"); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if mined, ok := c.txs[hash]; ok {
		return mined.tx, false, nil
	}
	return nil, false, ethereum.NotFound
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := c.enter("receipt"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if mined, ok := c.txs[hash]; ok {
		return &types.Receipt{TxHash: hash, BlockNumber: new(big.Int).SetUint64(mined.block), Status: types.ReceiptStatusSuccessful}, nil
	}
	return nil, ethereum.NotFound
}
