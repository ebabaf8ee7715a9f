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

package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/ethdb/memorydb"
)

func newTestChain(t *testing.T) *HeaderChain {
	t.Helper()
	genesis := GenesisBlock(0, common.Hash{}, 1000, 30_000_000, big.NewInt(1))
	hc, err := NewHeaderChain(memorydb.New(), params.AllDevChainProtocolChanges, genesis)
	require.NoError(t, err)
	t.Cleanup(hc.Stop)
	return hc
}

// sealNext builds a child of the current head carrying one transfer.
func sealNext(t *testing.T, hc *HeaderChain) (*types.Block, types.Receipts) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(params.AllDevChainProtocolChanges.ChainID), &types.LegacyTx{
		To: &recipient, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	receipts := types.Receipts{{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		TxHash:            tx.Hash(),
		GasUsed:           21000,
		Logs:              []*types.Log{{Address: recipient, TxHash: tx.Hash()}},
	}}
	parent := hc.CurrentHeader()
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, common.Big1),
		Time:       parent.Time + 1,
		GasLimit:   parent.GasLimit,
		GasUsed:    21000,
		BaseFee:    big.NewInt(1),
	}
	block := types.NewBlock(header, &types.Body{Transactions: types.Transactions{tx}}, receipts, trie.NewStackTrie(nil))
	return block, receipts
}

func TestHeaderChainInsert(t *testing.T) {
	hc := newTestChain(t)
	heads := make(chan ChainHeadEvent, 1)
	logs := make(chan []*types.Log, 1)
	defer hc.SubscribeChainHeadEvent(heads).Unsubscribe()
	defer hc.SubscribeLogsEvent(logs).Unsubscribe()

	block, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(block, receipts))

	assert.Equal(t, block.Hash(), hc.CurrentBlock().Hash())
	assert.Equal(t, block.Hash(), hc.GetBlockByNumber(1).Hash())
	assert.Equal(t, uint64(1), hc.GetHeaderByHash(block.Hash()).Number.Uint64())

	select {
	case ev := <-heads:
		assert.Equal(t, block.Hash(), ev.Header.Hash())
	case <-time.After(time.Second):
		t.Fatal("no chain head event")
	}
	select {
	case got := <-logs:
		require.Len(t, got, 1)
		assert.Equal(t, recipient, got[0].Address)
	case <-time.After(time.Second):
		t.Fatal("no logs event")
	}
}

func TestHeaderChainRejectsGap(t *testing.T) {
	hc := newTestChain(t)
	block, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(block, receipts))

	// A second child of genesis no longer extends the head.
	header := types.CopyHeader(block.Header())
	header.Time++
	stale := types.NewBlockWithHeader(header)
	assert.ErrorIs(t, hc.InsertBlock(stale, nil), ErrUnknownAncestor)
}

func TestHeaderChainTransactionLookup(t *testing.T) {
	hc := newTestChain(t)
	block, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(block, receipts))

	want := block.Transactions()[0]
	tx, hash, number, index := hc.GetTransaction(want.Hash())
	require.NotNil(t, tx)
	assert.Equal(t, block.Hash(), hash)
	assert.Equal(t, uint64(1), number)
	assert.Equal(t, uint64(0), index)

	receipt := hc.GetReceipt(want.Hash())
	require.NotNil(t, receipt)
	assert.Equal(t, block.Hash(), receipt.BlockHash)
	assert.Nil(t, hc.GetReceipt(common.Hash{0x01}))
}

func TestHeaderChainResume(t *testing.T) {
	db := memorydb.New()
	genesis := GenesisBlock(0, common.Hash{}, 1000, 30_000_000, big.NewInt(1))
	hc, err := NewHeaderChain(db, params.AllDevChainProtocolChanges, genesis)
	require.NoError(t, err)
	block, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(block, receipts))

	resumed, err := NewHeaderChain(db, params.AllDevChainProtocolChanges, genesis)
	require.NoError(t, err)
	assert.Equal(t, block.Hash(), resumed.CurrentBlock().Hash())

	other := GenesisBlock(0, common.Hash{}, 2000, 30_000_000, big.NewInt(1))
	_, err = NewHeaderChain(db, params.AllDevChainProtocolChanges, other)
	assert.ErrorIs(t, err, ErrGenesisMismatch)
}

func TestNewTxsFeed(t *testing.T) {
	hc := newTestChain(t)
	ch := make(chan NewTxsEvent, 1)
	sub := hc.SubscribeNewTxsEvent(ch)
	defer sub.Unsubscribe()

	block, _ := sealNext(t, hc)
	hc.SendNewTxs(block.Transactions())
	ev := <-ch
	assert.Equal(t, block.Transactions()[0].Hash(), ev.Txs[0].Hash())
}

func TestHeaderChainSetHead(t *testing.T) {
	hc := newTestChain(t)
	first, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(first, receipts))
	second, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(second, receipts))

	require.NoError(t, hc.SetHead(1))
	assert.Equal(t, first.Hash(), hc.CurrentBlock().Hash())
	assert.Nil(t, hc.GetBlockByNumber(2))
	tx, _, _, _ := hc.GetTransaction(second.Transactions()[0].Hash())
	assert.Nil(t, tx)

	// The rewound chain accepts a new child of the head.
	replacement, receipts := sealNext(t, hc)
	require.NoError(t, hc.InsertBlock(replacement, receipts))
	assert.Equal(t, uint64(2), hc.CurrentBlock().NumberU64())
}
