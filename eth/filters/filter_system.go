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

// Package filters implements the subscription side of the node: new block
// headers, logs and pending transactions fanned out to independent
// subscribers with a bounded buffer each.
//
// 包 filters 实现节点的订阅功能：将新区块头、日志和待处理交易分发给
// 各自拥有有界缓冲区的独立订阅者。
package filters

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/forknode/core"
)

// Type determines the kind of filter and is used to put the filter in to
// the correct bucket when added.
type Type byte

const (
	// UnknownSubscription indicates an unknown subscription type
	UnknownSubscription Type = iota
	// LogsSubscription queries for new or removed (chain reorg) logs
	LogsSubscription
	// PendingTransactionsSubscription queries for pending transactions entering
	// the pending state
	PendingTransactionsSubscription
	// BlocksSubscription queries hashes for blocks that are imported
	BlocksSubscription
)

const (
	// DefaultBufferSize is the number of undelivered events a subscriber may
	// hold before it is disconnected.
	// DefaultBufferSize 是订阅者被断开前可持有的未投递事件数量。
	DefaultBufferSize = 256

	// chainEvChanSize is the size of channel listening to the chain feeds.
	chainEvChanSize = 10
)

// ErrSubscriberTooSlow is delivered on the error channel of a subscription
// that was disconnected because its buffer was full.
var ErrSubscriberTooSlow = errors.New("subscriber too slow")

var droppedSubscriberCounter = metrics.NewRegisteredCounter("filters/subscriber/dropped", nil)

// ChainBackend is the source of the events fanned out by the system.
type ChainBackend interface {
	SubscribeChainHeadEvent(ch chan<- core.ChainHeadEvent) event.Subscription
	SubscribeLogsEvent(ch chan<- []*types.Log) event.Subscription
	SubscribeNewTxsEvent(ch chan<- core.NewTxsEvent) event.Subscription
}

// subscription is the state kept per subscriber: its kind, its log filter and
// the delivery channel of that kind.
type subscription struct {
	id   rpc.ID
	typ  Type
	crit FilterCriteria

	headers chan *types.Header
	logs    chan []*types.Log
	txs     chan []*types.Transaction
	err     chan error

	closed bool
}

// close ends the subscription, reporting err if it is not nil. Must be called
// with the system lock held.
func (s *subscription) close(err error) {
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		s.err <- err
	}
	close(s.err)
	switch s.typ {
	case BlocksSubscription:
		close(s.headers)
	case LogsSubscription:
		close(s.logs)
	case PendingTransactionsSubscription:
		close(s.txs)
	}
}

// EventSystem creates subscriptions, processes events and broadcasts them to
// the subscription which match the subscription criteria. It holds nothing
// but the id to subscription map.
//
// EventSystem 创建订阅、处理事件并将其广播给符合条件的订阅。
// 它只保存订阅 id 到订阅的映射。
type EventSystem struct {
	bufferSize int

	mu   sync.Mutex
	subs map[rpc.ID]*subscription

	chainSub event.Subscription
	logsSub  event.Subscription
	txsSub   event.Subscription

	chainCh chan core.ChainHeadEvent
	logsCh  chan []*types.Log
	txsCh   chan core.NewTxsEvent

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewEventSystem creates a new manager that listens for events on the given
// backend, fans them out to subscribers and keeps bufferSize undelivered
// events per subscriber. A non-positive size selects DefaultBufferSize.
func NewEventSystem(backend ChainBackend, bufferSize int) *EventSystem {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	es := &EventSystem{
		bufferSize: bufferSize,
		subs:       make(map[rpc.ID]*subscription),
		chainCh:    make(chan core.ChainHeadEvent, chainEvChanSize),
		logsCh:     make(chan []*types.Log, chainEvChanSize),
		txsCh:      make(chan core.NewTxsEvent, chainEvChanSize),
		quit:       make(chan struct{}),
	}
	es.chainSub = backend.SubscribeChainHeadEvent(es.chainCh)
	es.logsSub = backend.SubscribeLogsEvent(es.logsCh)
	es.txsSub = backend.SubscribeNewTxsEvent(es.txsCh)

	es.wg.Add(1)
	go es.eventLoop()
	return es
}

// Subscription is a handle on an installed subscription.
type Subscription struct {
	ID  rpc.ID
	es  *EventSystem
	sub *subscription
}

// Headers returns the delivery channel of a new heads subscription.
func (s *Subscription) Headers() <-chan *types.Header { return s.sub.headers }

// Logs returns the delivery channel of a logs subscription. Every element
// holds the matching logs of one block in transaction order.
func (s *Subscription) Logs() <-chan []*types.Log { return s.sub.logs }

// Transactions returns the delivery channel of a pending transactions
// subscription.
func (s *Subscription) Transactions() <-chan []*types.Transaction { return s.sub.txs }

// Err returns a channel that is closed when the subscription ends. A
// subscription disconnected for being too slow first receives
// ErrSubscriberTooSlow.
// Err 返回一个在订阅结束时关闭的通道。
func (s *Subscription) Err() <-chan error { return s.sub.err }

// Unsubscribe uninstalls the subscription.
func (s *Subscription) Unsubscribe() {
	s.es.Unsubscribe(s.ID)
}

func (es *EventSystem) install(sub *subscription) *Subscription {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.subs[sub.id] = sub
	return &Subscription{ID: sub.id, es: es, sub: sub}
}

func (es *EventSystem) newSubscription(id rpc.ID, typ Type) *subscription {
	if id == "" {
		id = rpc.NewID()
	}
	return &subscription{id: id, typ: typ, err: make(chan error, 1)}
}

// SubscribeNewHeads creates a subscription that writes the header of a block
// that is sealed on the chain. An empty id is replaced by a fresh one.
// SubscribeNewHeads 创建一个订阅，写入每个新封装区块的区块头。
func (es *EventSystem) SubscribeNewHeads(id rpc.ID) *Subscription {
	sub := es.newSubscription(id, BlocksSubscription)
	sub.headers = make(chan *types.Header, es.bufferSize)
	return es.install(sub)
}

// SubscribeLogs creates a subscription that writes the logs of sealed blocks
// matching crit.
func (es *EventSystem) SubscribeLogs(id rpc.ID, crit FilterCriteria) *Subscription {
	sub := es.newSubscription(id, LogsSubscription)
	sub.crit = crit
	sub.logs = make(chan []*types.Log, es.bufferSize)
	return es.install(sub)
}

// SubscribePendingTxs creates a subscription that writes transactions for
// transactions that enter the pending queue.
func (es *EventSystem) SubscribePendingTxs(id rpc.ID) *Subscription {
	sub := es.newSubscription(id, PendingTransactionsSubscription)
	sub.txs = make(chan []*types.Transaction, es.bufferSize)
	return es.install(sub)
}

// Unsubscribe ends the subscription with the given id and reports whether it
// was live. The entry itself is dropped on the next delivery attempt.
// Unsubscribe 结束指定 id 的订阅并报告其是否仍然有效。
func (es *EventSystem) Unsubscribe(id rpc.ID) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	sub, ok := es.subs[id]
	if !ok || sub.closed {
		return false
	}
	sub.close(nil)
	return true
}

// Len returns the number of installed subscriptions, including those that
// ended but were not yet collected.
func (es *EventSystem) Len() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return len(es.subs)
}

// broadcast hands an event to every subscription of typ. Ended subscriptions
// are collected here, full ones are disconnected.
func (es *EventSystem) broadcast(typ Type, deliver func(sub *subscription) bool) {
	es.mu.Lock()
	defer es.mu.Unlock()

	for id, sub := range es.subs {
		if sub.closed {
			delete(es.subs, id)
			continue
		}
		if sub.typ != typ {
			continue
		}
		if !deliver(sub) {
			log.Debug("Disconnecting slow subscriber", "id", id, "type", typ)
			droppedSubscriberCounter.Inc(1)
			sub.close(ErrSubscriberTooSlow)
			delete(es.subs, id)
		}
	}
}

func (es *EventSystem) handleChainEvent(ev core.ChainHeadEvent) {
	es.broadcast(BlocksSubscription, func(sub *subscription) bool {
		select {
		case sub.headers <- ev.Header:
			return true
		default:
			return false
		}
	})
}

func (es *EventSystem) handleLogs(logs []*types.Log) {
	es.broadcast(LogsSubscription, func(sub *subscription) bool {
		matched := filterLogs(logs, sub.crit.FromBlock, sub.crit.ToBlock, sub.crit.Addresses, sub.crit.Topics)
		if len(matched) == 0 {
			return true
		}
		select {
		case sub.logs <- matched:
			return true
		default:
			return false
		}
	})
}

func (es *EventSystem) handleTxsEvent(ev core.NewTxsEvent) {
	es.broadcast(PendingTransactionsSubscription, func(sub *subscription) bool {
		select {
		case sub.txs <- ev.Txs:
			return true
		default:
			return false
		}
	})
}

// eventLoop (un)installs filters and processes mux events.
// eventLoop 处理事件源并分发事件。
func (es *EventSystem) eventLoop() {
	defer es.wg.Done()
	defer func() {
		es.chainSub.Unsubscribe()
		es.logsSub.Unsubscribe()
		es.txsSub.Unsubscribe()
	}()

	for {
		select {
		case ev := <-es.chainCh:
			es.handleChainEvent(ev)
		case ev := <-es.logsCh:
			es.handleLogs(ev)
		case ev := <-es.txsCh:
			es.handleTxsEvent(ev)

		// System stopped
		case <-es.chainSub.Err():
			return
		case <-es.logsSub.Err():
			return
		case <-es.txsSub.Err():
			return
		case <-es.quit:
			return
		}
	}
}

// Close stops the event loop and ends every subscription.
func (es *EventSystem) Close() {
	select {
	case <-es.quit:
		return
	default:
		close(es.quit)
	}
	es.wg.Wait()

	es.mu.Lock()
	defer es.mu.Unlock()
	for id, sub := range es.subs {
		sub.close(nil)
		delete(es.subs, id)
	}
}
