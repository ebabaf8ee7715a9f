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

package backend

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/core/state"
)

// fakeEndpoint is an in-process remote chain whose state is the same at every
// block.
type fakeEndpoint struct {
	mu       sync.Mutex
	chainID  *big.Int
	head     uint64
	balances map[common.Address]*big.Int
	codes    map[common.Address][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
	blocks   map[uint64]*types.Block
	txBlocks map[common.Hash]uint64
	txs      map[common.Hash]*types.Transaction
	calls    map[string]int
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		chainID:  big.NewInt(1),
		head:     100,
		balances: make(map[common.Address]*big.Int),
		codes:    make(map[common.Address][]byte),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		blocks:   make(map[uint64]*types.Block),
		txBlocks: make(map[common.Hash]uint64),
		txs:      make(map[common.Hash]*types.Transaction),
		calls:    make(map[string]int),
	}
}

func (e *fakeEndpoint) count(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

func (e *fakeEndpoint) enter(method string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[method]++
}

func (e *fakeEndpoint) header(number uint64) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		Time:       1000 + number,
		GasLimit:   30_000_000,
		BaseFee:    big.NewInt(1),
		Difficulty: new(big.Int),
	}
}

// addBlock stores a block with the given transactions, an orphan transaction
// is registered at number without being part of the block.
func (e *fakeEndpoint) addBlock(number uint64, txs []*types.Transaction, orphans ...*types.Transaction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	block := types.NewBlock(e.header(number), &types.Body{Transactions: txs}, nil, trie.NewStackTrie(nil))
	e.blocks[number] = block
	for _, tx := range append(txs, orphans...) {
		e.txBlocks[tx.Hash()] = number
		e.txs[tx.Hash()] = tx
	}
}

func (e *fakeEndpoint) ChainID(ctx context.Context) (*big.Int, error) {
	e.enter("chainid")
	return new(big.Int).Set(e.chainID), nil
}

func (e *fakeEndpoint) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	e.enter("header")
	if number == nil {
		return e.header(e.head), nil
	}
	if number.Uint64() > e.head {
		return nil, ethereum.NotFound
	}
	return e.header(number.Uint64()), nil
}

func (e *fakeEndpoint) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	e.enter("block")
	e.mu.Lock()
	defer e.mu.Unlock()
	if block, ok := e.blocks[number.Uint64()]; ok {
		return block, nil
	}
	if number.Uint64() > e.head {
		return nil, ethereum.NotFound
	}
	return types.NewBlockWithHeader(e.header(number.Uint64())), nil
}

func (e *fakeEndpoint) BalanceAt(ctx context.Context, addr common.Address, number *big.Int) (*big.Int, error) {
	e.enter("balance")
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.balances[addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (e *fakeEndpoint) NonceAt(ctx context.Context, addr common.Address, number *big.Int) (uint64, error) {
	e.enter("nonce")
	return 0, nil
}

func (e *fakeEndpoint) CodeAt(ctx context.Context, addr common.Address, number *big.Int) ([]byte, error) {
	e.enter("code")
	e.mu.Lock()
	defer e.mu.Unlock()
	return common.CopyBytes(e.codes[addr]), nil
}

func (e *fakeEndpoint) StorageAt(ctx context.Context, addr common.Address, key common.Hash, number *big.Int) ([]byte, error) {
	e.enter("storage")
	e.mu.Lock()
	defer e.mu.Unlock()
	value := e.storage[addr][key]
	return value.Bytes(), nil
}

func (e *fakeEndpoint) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	e.enter("tx")
	e.mu.Lock()
	defer e.mu.Unlock()
	if tx, ok := e.txs[hash]; ok {
		return tx, false, nil
	}
	return nil, false, ethereum.NotFound
}

func (e *fakeEndpoint) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	e.enter("receipt")
	e.mu.Lock()
	defer e.mu.Unlock()
	if number, ok := e.txBlocks[hash]; ok {
		return &types.Receipt{TxHash: hash, BlockNumber: new(big.Int).SetUint64(number)}, nil
	}
	return nil, ethereum.NotFound
}

// newTestForks returns a registry serving the given endpoints by url.
func newTestForks(endpoints map[string]*fakeEndpoint) *forkdb.MultiFork {
	return forkdb.NewMultiForkWithDialer(func(ctx context.Context, url string) (forkdb.Provider, error) {
		if ep, ok := endpoints[url]; ok {
			return ep, nil
		}
		return nil, fmt.Errorf("no route to %s", url)
	})
}

func forkConfig(url string, block uint64) forkdb.Config {
	return forkdb.Config{
		URL:            url,
		BlockNumber:    &block,
		InitialBackoff: time.Millisecond,
		Retries:        1,
		NoRateLimit:    true,
	}
}

// transferExecutor moves the value of each message and bumps the sender nonce.
type transferExecutor struct{}

func (transferExecutor) Execute(view StateView, env *Env, msg *Message, insp Inspector) (*ExecutionResult, error) {
	insp.OnTransactionStart(env, msg)
	load := func(addr common.Address) (*state.Account, error) {
		info, err := view.Basic(addr)
		if err != nil {
			return nil, err
		}
		acc := state.NewAccount(info)
		acc.Status |= state.StatusTouched
		return acc, nil
	}
	from, err := load(msg.From)
	if err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, errors.New("creation not supported")
	}
	to, err := load(*msg.To)
	if err != nil {
		return nil, err
	}
	value := uint256.MustFromBig(msg.Value)
	if from.Info.Balance.Lt(value) {
		return nil, errors.New("insufficient balance")
	}
	from.Info.Balance = new(uint256.Int).Sub(from.Info.Balance, value)
	from.Info.Nonce++
	to.Info.Balance = new(uint256.Int).Add(to.Info.Balance, value)

	res := &ExecutionResult{Changes: state.Changes{msg.From: from, *msg.To: to}, GasUsed: 21000}
	insp.OnTransactionEnd(res, nil)
	return res, nil
}

func signTransfer(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to common.Address, value int64) *types.Transaction {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, Value: big.NewInt(value), Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(1)), key)
	require.NoError(t, err)
	return signed
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func balanceOf(t *testing.T, db state.DatabaseRef, addr common.Address) uint64 {
	t.Helper()
	info, err := db.Basic(addr)
	require.NoError(t, err)
	if info == nil {
		return 0
	}
	return info.Balance.Uint64()
}

func newLocalBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(context.Background(), Config{Forks: newTestForks(nil), Executor: transferExecutor{}})
	require.NoError(t, err)
	return b
}
