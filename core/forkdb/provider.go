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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// Provider is the subset of the remote JSON-RPC API a fork reads from.
// *ethclient.Client satisfies it.
//
// Provider 是分叉读取所使用的远程 JSON-RPC API 子集，*ethclient.Client 满足该接口。
type Provider interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// DialFunc connects to a remote endpoint.
type DialFunc func(ctx context.Context, url string) (Provider, error)

// DialRPC connects to url over JSON-RPC.
func DialRPC(ctx context.Context, url string) (Provider, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// requestCost is the average number of compute units one request is charged
// by hosted endpoints.
const requestCost = 17

// newLimiter creates the request budget shared by every fork of one endpoint.
func newLimiter(cfg Config) *rate.Limiter {
	if cfg.NoRateLimit {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(cfg.ComputeUnitsPerSecond)
	if burst < requestCost {
		burst = requestCost
	}
	return rate.NewLimiter(rate.Limit(cfg.ComputeUnitsPerSecond), burst)
}

// closeProvider releases the connection of p if it holds one.
func closeProvider(p Provider) {
	if c, ok := p.(interface{ Close() }); ok {
		c.Close()
	}
}
