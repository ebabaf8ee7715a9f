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

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// FilterAPI offers support to create and manage subscriptions over the
// eth_subscribe namespace.
// FilterAPI 提供通过 eth_subscribe 创建和管理订阅的支持。
type FilterAPI struct {
	events *EventSystem
}

// NewFilterAPI returns a new FilterAPI instance.
func NewFilterAPI(events *EventSystem) *FilterAPI {
	return &FilterAPI{events: events}
}

// NewHeads send a notification each time a new (header) block is appended to
// the chain.
func (api *FilterAPI) NewHeads(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()
	sub := api.events.SubscribeNewHeads(rpcSub.ID)

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case h, ok := <-sub.Headers():
				if !ok {
					api.ended(sub)
					return
				}
				notifier.Notify(rpcSub.ID, h)
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// Logs creates a subscription that fires for all new logs that match the
// given filter criteria.
// Logs 创建一个订阅，在出现符合过滤条件的新日志时触发。
func (api *FilterAPI) Logs(ctx context.Context, crit FilterCriteria) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()
	sub := api.events.SubscribeLogs(rpcSub.ID, crit)

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case logs, ok := <-sub.Logs():
				if !ok {
					api.ended(sub)
					return
				}
				for _, l := range logs {
					notifier.Notify(rpcSub.ID, l)
				}
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// NewPendingTransactions creates a subscription that is triggered each time a
// transaction enters the pending queue. If fullTx is true the full tx is sent
// to the client, otherwise the hash is sent.
func (api *FilterAPI) NewPendingTransactions(ctx context.Context, fullTx *bool) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()
	sub := api.events.SubscribePendingTxs(rpcSub.ID)
	full := fullTx != nil && *fullTx

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case txs, ok := <-sub.Transactions():
				if !ok {
					api.ended(sub)
					return
				}
				for _, tx := range txs {
					if full {
						notifier.Notify(rpcSub.ID, tx)
					} else {
						notifier.Notify(rpcSub.ID, tx.Hash())
					}
				}
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// ended logs why the event system stopped delivering to a subscription.
func (api *FilterAPI) ended(sub *Subscription) {
	if err, ok := <-sub.Err(); ok && err != nil {
		log.Warn("Subscription ended", "id", sub.ID, "err", err)
	}
}

// Unsubscribe ends a subscription created by this API from inside the
// process. It reports whether the subscription was live.
func (api *FilterAPI) Unsubscribe(id rpc.ID) bool {
	return api.events.Unsubscribe(id)
}
