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

package filters

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/core"
)

type testBackend struct {
	chainFeed event.Feed
	logsFeed  event.Feed
	txsFeed   event.Feed
}

func (b *testBackend) SubscribeChainHeadEvent(ch chan<- core.ChainHeadEvent) event.Subscription {
	return b.chainFeed.Subscribe(ch)
}

func (b *testBackend) SubscribeLogsEvent(ch chan<- []*types.Log) event.Subscription {
	return b.logsFeed.Subscribe(ch)
}

func (b *testBackend) SubscribeNewTxsEvent(ch chan<- core.NewTxsEvent) event.Subscription {
	return b.txsFeed.Subscribe(ch)
}

func (b *testBackend) sendHead(number int64) {
	b.chainFeed.Send(core.ChainHeadEvent{Header: &types.Header{Number: big.NewInt(number)}})
}

func newTestSystem(t *testing.T, buffer int) (*testBackend, *EventSystem) {
	t.Helper()
	backend := new(testBackend)
	es := NewEventSystem(backend, buffer)
	t.Cleanup(es.Close)
	return backend, es
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	panic("unreachable")
}

func TestNewHeadsOrder(t *testing.T) {
	backend, es := newTestSystem(t, 0)
	sub := es.SubscribeNewHeads("")
	defer sub.Unsubscribe()

	for i := int64(1); i <= 5; i++ {
		backend.sendHead(i)
	}
	for i := int64(1); i <= 5; i++ {
		h := receive(t, sub.Headers())
		assert.Equal(t, i, h.Number.Int64())
	}
}

func TestLogsFiltering(t *testing.T) {
	backend, es := newTestSystem(t, 0)
	var (
		addr   = common.HexToAddress("0x01")
		other  = common.HexToAddress("0x02")
		topicA = common.HexToHash("0xaa")
		topicB = common.HexToHash("0xbb")
	)
	byAddr := es.SubscribeLogs("", FilterCriteria{Addresses: []common.Address{addr}})
	byTopic := es.SubscribeLogs("", FilterCriteria{Topics: [][]common.Hash{{topicB}}})

	logs := []*types.Log{
		{Address: addr, Topics: []common.Hash{topicA}, BlockNumber: 1, Index: 0},
		{Address: other, Topics: []common.Hash{topicB}, BlockNumber: 1, Index: 1},
		{Address: addr, Topics: []common.Hash{topicB}, BlockNumber: 1, Index: 2},
	}
	backend.logsFeed.Send(logs)

	got := receive(t, byAddr.Logs())
	require.Len(t, got, 2)
	assert.Equal(t, uint(0), got[0].Index)
	assert.Equal(t, uint(2), got[1].Index)

	got = receive(t, byTopic.Logs())
	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].Index)
	assert.Equal(t, uint(2), got[1].Index)
}

func TestSlowSubscriberDisconnected(t *testing.T) {
	backend, es := newTestSystem(t, 2)
	slow := es.SubscribeNewHeads("")
	fast := es.SubscribeNewHeads("")

	for i := int64(1); i <= 3; i++ {
		backend.sendHead(i)
		assert.Equal(t, i, receive(t, fast.Headers()).Number.Int64())
	}
	select {
	case err := <-slow.Err():
		assert.ErrorIs(t, err, ErrSubscriberTooSlow)
	case <-time.After(time.Second):
		t.Fatal("slow subscriber not disconnected")
	}
	// The buffered heads are still readable, then the channel is closed.
	assert.Equal(t, int64(1), (<-slow.Headers()).Number.Int64())
	assert.Equal(t, int64(2), (<-slow.Headers()).Number.Int64())
	_, ok := <-slow.Headers()
	assert.False(t, ok)

	backend.sendHead(4)
	assert.Equal(t, int64(4), receive(t, fast.Headers()).Number.Int64())
	assert.Equal(t, 1, es.Len())
}

func TestUnsubscribeIsLazy(t *testing.T) {
	backend, es := newTestSystem(t, 0)
	sub := es.SubscribeNewHeads("")

	assert.True(t, es.Unsubscribe(sub.ID))
	assert.False(t, es.Unsubscribe(sub.ID))
	assert.False(t, es.Unsubscribe(rpc.ID("0xmissing")))
	assert.Equal(t, 1, es.Len())

	_, ok := <-sub.Err()
	assert.False(t, ok)

	backend.sendHead(1)
	require.Eventually(t, func() bool { return es.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPendingTransactions(t *testing.T) {
	backend, es := newTestSystem(t, 0)
	sub := es.SubscribePendingTxs("")
	defer sub.Unsubscribe()

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1)})
	backend.txsFeed.Send(core.NewTxsEvent{Txs: []*types.Transaction{tx}})
	got := receive(t, sub.Transactions())
	require.Len(t, got, 1)
	assert.Equal(t, tx.Hash(), got[0].Hash())
}

func TestFilterCriteriaUnmarshal(t *testing.T) {
	var crit FilterCriteria
	input := `{
		"fromBlock": "0x1",
		"toBlock": "0x10",
		"address": "0x0000000000000000000000000000000000000001",
		"topics": [null, ["0x00000000000000000000000000000000000000000000000000000000000000aa", "0x00000000000000000000000000000000000000000000000000000000000000bb"]]
	}`
	require.NoError(t, json.Unmarshal([]byte(input), &crit))
	assert.Equal(t, int64(1), crit.FromBlock.Int64())
	assert.Equal(t, int64(16), crit.ToBlock.Int64())
	assert.Equal(t, []common.Address{common.HexToAddress("0x01")}, crit.Addresses)
	require.Len(t, crit.Topics, 2)
	assert.Nil(t, crit.Topics[0])
	assert.Len(t, crit.Topics[1], 2)

	err := json.Unmarshal([]byte(`{"blockHash": "0x00000000000000000000000000000000000000000000000000000000000000aa", "fromBlock": "0x1"}`), &crit)
	assert.Error(t, err)
	assert.Error(t, json.Unmarshal([]byte(`{"address": "0x01"}`), &crit))
}

func TestSubscribeOverRPC(t *testing.T) {
	backend, es := newTestSystem(t, 0)
	server := rpc.NewServer()
	defer server.Stop()
	require.NoError(t, server.RegisterName("eth", NewFilterAPI(es)))
	client := rpc.DialInProc(server)
	defer client.Close()

	heads := make(chan map[string]interface{}, 1)
	sub, err := client.EthSubscribe(context.Background(), heads, "newHeads")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Wait for the subscription to be installed before publishing.
	require.Eventually(t, func() bool { return es.Len() == 1 }, time.Second, 5*time.Millisecond)
	backend.sendHead(7)
	head := receive(t, heads)
	assert.Equal(t, "0x7", head["number"])
}
