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
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ForkInfo describes the remote chain a fork was created from.
type ForkInfo struct {
	ChainID *big.Int
	Header  *types.Header // header of the pinned block
}

type endpoint struct {
	provider Provider
	limiter  *rate.Limiter
	chainID  *big.Int
}

type forkEntry struct {
	db   *Database
	info *ForkInfo
}

// MultiFork is the registry of remote endpoints and their pinned views. It is
// shared by every copy of a backend: a fork created once is served from the
// same cache no matter which copy asks for it.
//
// MultiFork 是远程端点及其固定视图的注册表，被后端的所有副本共享。
type MultiFork struct {
	dial    DialFunc
	dialing singleflight.Group // one dial per url

	lock      sync.Mutex // guards the maps only, never held across remote calls
	endpoints map[string]*endpoint
	forks     map[ForkID]*forkEntry
}

// NewMultiFork creates a registry dialing endpoints over JSON-RPC.
func NewMultiFork() *MultiFork {
	return NewMultiForkWithDialer(DialRPC)
}

// NewMultiForkWithDialer creates a registry using dial to connect to endpoints.
func NewMultiForkWithDialer(dial DialFunc) *MultiFork {
	return &MultiFork{
		dial:      dial,
		endpoints: make(map[string]*endpoint),
		forks:     make(map[ForkID]*forkEntry),
	}
}

// endpoint returns the connection to url, dialing it on first use.
// Concurrent callers for the same url share one dial.
func (m *MultiFork) endpoint(ctx context.Context, cfg Config) (*endpoint, error) {
	if ep := m.knownEndpoint(cfg.URL); ep != nil {
		return ep, nil
	}
	v, err, _ := m.dialing.Do(cfg.URL, func() (interface{}, error) {
		if ep := m.knownEndpoint(cfg.URL); ep != nil {
			return ep, nil
		}
		provider, err := m.dial(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrForkUnreachable, cfg.URL, err)
		}
		rctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		chainID, err := provider.ChainID(rctx)
		if err != nil {
			closeProvider(provider)
			return nil, fmt.Errorf("%w: %s: %v", ErrForkUnreachable, cfg.URL, err)
		}
		ep := &endpoint{provider: provider, limiter: newLimiter(cfg), chainID: chainID}

		m.lock.Lock()
		m.endpoints[cfg.URL] = ep
		m.lock.Unlock()
		return ep, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*endpoint), nil
}

func (m *MultiFork) knownEndpoint(url string) *endpoint {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.endpoints[url]
}

func (m *MultiFork) knownFork(id ForkID) (*forkEntry, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.forks[id]
	return entry, ok
}

// CreateFork returns the pinned view described by cfg, creating it if it does
// not exist yet. The endpoint is contacted right away so an unreachable
// endpoint fails here rather than on the first lookup.
//
// CreateFork 返回 cfg 描述的固定视图，不存在时创建它。
// 会立即联系端点，使不可达的端点在此处失败，而不是在第一次查询时失败。
func (m *MultiFork) CreateFork(ctx context.Context, cfg Config) (ForkID, *Database, *ForkInfo, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return ForkID{}, nil, nil, errors.New("fork url not set")
	}
	ep, err := m.endpoint(ctx, cfg)
	if err != nil {
		return ForkID{}, nil, nil, err
	}
	if cfg.BlockNumber != nil {
		if entry, ok := m.knownFork(ForkID{URL: cfg.URL, Block: *cfg.BlockNumber}); ok {
			return entry.db.ID(), entry.db, entry.info, nil
		}
	}
	rctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var number *big.Int
	if cfg.BlockNumber != nil {
		number = new(big.Int).SetUint64(*cfg.BlockNumber)
	}
	header, err := ep.provider.HeaderByNumber(rctx, number)
	if err != nil {
		return ForkID{}, nil, nil, fmt.Errorf("%w: %s: failed to get block %v: %v", ErrForkUnreachable, cfg.URL, number, err)
	}
	block := header.Number.Uint64()
	id := ForkID{URL: cfg.URL, Block: block}

	m.lock.Lock()
	defer m.lock.Unlock()

	// Another caller may have registered the same pin while the header was in flight.
	if entry, ok := m.forks[id]; ok {
		return id, entry.db, entry.info, nil
	}
	db := newDatabase(ep.provider, ep.limiter, cfg, ep.chainID.Uint64(), block, cfg.BlockNumber != nil)
	db.lock.Lock()
	db.header = header
	db.blockHashes[block] = header.Hash()
	db.lock.Unlock()

	info := &ForkInfo{ChainID: new(big.Int).Set(ep.chainID), Header: header}
	m.forks[id] = &forkEntry{db: db, info: info}
	log.Info("Created fork", "url", cfg.URL, "block", block, "chainid", ep.chainID, "hash", header.Hash())
	return id, db, info, nil
}

// RollFork returns the view of the fork id re-pinned at block. The view of id
// stays registered and valid.
func (m *MultiFork) RollFork(ctx context.Context, id ForkID, block uint64) (ForkID, *Database, *ForkInfo, error) {
	entry, ok := m.knownFork(id)
	if !ok {
		return ForkID{}, nil, nil, fmt.Errorf("unknown fork %s", id)
	}
	cfg := entry.db.cfg
	cfg.BlockNumber = &block
	return m.CreateFork(ctx, cfg)
}

// Get returns a registered fork.
func (m *MultiFork) Get(id ForkID) (*Database, *ForkInfo, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.forks[id]
	if !ok {
		return nil, nil, false
	}
	return entry.db, entry.info, true
}

// Len returns the number of registered forks.
func (m *MultiFork) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.forks)
}

// Flush persists the response caches of every fork.
func (m *MultiFork) Flush() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for _, entry := range m.forks {
		errs = append(errs, entry.db.Flush())
	}
	return errors.Join(errs...)
}

// Close flushes every response cache and disconnects from every endpoint.
func (m *MultiFork) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for id, entry := range m.forks {
		errs = append(errs, entry.db.Close())
		delete(m.forks, id)
	}
	for url, ep := range m.endpoints {
		closeProvider(ep.provider)
		delete(m.endpoints, url)
	}
	return errors.Join(errs...)
}
