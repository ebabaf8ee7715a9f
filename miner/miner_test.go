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

package miner

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/core"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/state"
	"github.com/sunyihoo/forknode/ethdb/memorydb"
)

var recipient = common.HexToAddress("0xbeef")

type testEnv struct {
	key     *ecdsa.PrivateKey
	sender  common.Address
	chain   *core.HeaderChain
	backend *backend.Backend
	miner   *Miner
}

func newTestEnv(t *testing.T, config Config) *testEnv {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)

	b, err := backend.New(context.Background(), backend.Config{Executor: core.NewTransferExecutor()})
	require.NoError(t, err)
	b.InsertAccountInfo(sender, state.NewAccountInfo(uint256.NewInt(1e18), 0, nil))

	genesis := core.GenesisBlock(0, common.Hash{}, 1000, 30_000_000, big.NewInt(params.InitialBaseFee))
	chain, err := core.NewHeaderChain(memorydb.New(), params.AllDevChainProtocolChanges, genesis)
	require.NoError(t, err)
	t.Cleanup(chain.Stop)

	m := New(config, chain, b)
	m.now = func() time.Time { return time.Unix(5000, 0) }
	t.Cleanup(m.Stop)
	return &testEnv{key: key, sender: sender, chain: chain, backend: b, miner: m}
}

func (e *testEnv) transfer(t *testing.T, nonce uint64, gas uint64) *types.Transaction {
	t.Helper()
	tx, err := types.SignNewTx(e.key, e.miner.signer, &types.DynamicFeeTx{
		ChainID:   params.AllDevChainProtocolChanges.ChainID,
		Nonce:     nonce,
		To:        &recipient,
		Value:     big.NewInt(10),
		Gas:       gas,
		GasFeeCap: big.NewInt(10 * params.GWei),
		GasTipCap: big.NewInt(1),
	})
	require.NoError(t, err)
	return tx
}

func TestMineFIFO(t *testing.T) {
	env := newTestEnv(t, Config{})
	first, second := env.transfer(t, 0, 21000), env.transfer(t, 1, 21000)
	require.NoError(t, env.miner.AddTransaction(context.Background(), first))
	require.NoError(t, env.miner.AddTransaction(context.Background(), second))
	assert.Len(t, env.miner.Pending(), 2)

	block, err := env.miner.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, block.Transactions(), 2)
	assert.Equal(t, first.Hash(), block.Transactions()[0].Hash())
	assert.Equal(t, second.Hash(), block.Transactions()[1].Hash())
	assert.Equal(t, uint64(42000), block.GasUsed())
	assert.Empty(t, env.miner.Pending())

	info, err := env.backend.Basic(recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), info.Balance.Uint64())

	receipt := env.chain.GetReceipt(second.Hash())
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(42000), receipt.CumulativeGasUsed)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	hash, err := env.backend.BlockHash(1)
	require.NoError(t, err)
	assert.Equal(t, block.Hash(), hash)
}

func TestMineDefersOverflow(t *testing.T) {
	env := newTestEnv(t, Config{GasCeil: 30_000})
	require.NoError(t, env.miner.AddTransaction(context.Background(), env.transfer(t, 0, 21000)))
	require.NoError(t, env.miner.AddTransaction(context.Background(), env.transfer(t, 1, 21000)))

	block, err := env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Len(t, block.Transactions(), 1)
	assert.Len(t, env.miner.Pending(), 1)

	block, err = env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Len(t, block.Transactions(), 1)
	assert.Equal(t, uint64(2), block.NumberU64())
}

func TestMineDropsInvalid(t *testing.T) {
	env := newTestEnv(t, Config{})
	require.NoError(t, env.miner.AddTransaction(context.Background(), env.transfer(t, 7, 21000)))

	block, err := env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, block.Transactions())
	assert.Empty(t, env.miner.Pending())
}

func TestAddTransactionDuplicate(t *testing.T) {
	env := newTestEnv(t, Config{})
	tx := env.transfer(t, 0, 21000)
	require.NoError(t, env.miner.AddTransaction(context.Background(), tx))
	assert.ErrorIs(t, env.miner.AddTransaction(context.Background(), tx), ErrAlreadyKnown)
}

func TestAutoMine(t *testing.T) {
	env := newTestEnv(t, Config{AutoMine: true})
	heads := make(chan core.ChainHeadEvent, 1)
	defer env.chain.SubscribeChainHeadEvent(heads).Unsubscribe()

	tx := env.transfer(t, 0, 21000)
	require.NoError(t, env.miner.AddTransaction(context.Background(), tx))
	ev := <-heads
	assert.Equal(t, uint64(1), ev.Header.Number.Uint64())
	assert.NotNil(t, env.chain.GetReceipt(tx.Hash()))
}

func TestBlockTimestamps(t *testing.T) {
	env := newTestEnv(t, Config{})

	block, err := env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), block.Time())

	assert.Equal(t, int64(100), env.miner.IncreaseTime(100))
	block, err = env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5100), block.Time())

	assert.ErrorIs(t, env.miner.SetTimestamp(5100), ErrInvalidTimestamp)
	require.NoError(t, env.miner.SetTimestamp(9000))
	block, err = env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), block.Time())

	// The offset carries over, the frozen clock now equals the head time.
	block, err = env.miner.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9001), block.Time())
}
