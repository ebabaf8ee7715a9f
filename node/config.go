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

package node

import (
	"math/big"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/forknode/core/forkdb"
)

const datadirCache = "cache" // Path within the datadir to the fork response cache

// Config represents the configuration of a node: the RPC endpoint, the
// local chain and the fork to launch on.
// Config 表示节点配置：RPC 端点、本地链以及启动时的分叉。
type Config struct {
	// DataDir is the file system folder the node uses for the fork response
	// cache. An empty DataDir keeps the node ephemeral.
	// 节点用于分叉响应缓存的文件系统目录。为空时节点为临时节点。
	DataDir string

	// HTTPHost is the host interface on which to start the HTTP RPC server.
	HTTPHost string `toml:",omitempty"`

	// HTTPPort is the TCP port number on which to start the HTTP RPC server.
	// Zero picks a free port.
	HTTPPort int `toml:",omitempty"`

	// HTTPCors is the Cross-Origin Resource Sharing header to send to
	// requesting clients. An empty list disables the header.
	// 发送给请求客户端的跨域资源共享头。
	HTTPCors []string `toml:",omitempty"`

	// WSEnabled accepts WebSocket upgrades on the HTTP port.
	WSEnabled bool `toml:",omitempty"`

	// HTTPTimeouts allows for customization of the timeout values used by the
	// HTTP RPC interface.
	HTTPTimeouts rpc.HTTPTimeouts

	// BatchRequestLimit is the maximum number of requests in a batch.
	BatchRequestLimit int `toml:",omitempty"`

	// BatchResponseMaxSize is the maximum number of bytes returned from a
	// batched rpc call.
	BatchResponseMaxSize int `toml:",omitempty"`

	// ChainID of the local chain. Zero uses the chain id of the fork, or
	// DefaultChainID without a fork.
	ChainID uint64 `toml:",omitempty"`

	GasLimit  uint64         // gas limit of local blocks
	BaseFee   uint64         `toml:",omitempty"` // base fee of the genesis, default params.InitialBaseFee
	Coinbase  common.Address `toml:",omitempty"`
	BlockTime time.Duration  `toml:",omitempty"` // interval sealing, 0 seals a block per transaction
	NoMining  bool           `toml:",omitempty"` // seal only on evm_mine

	// Genesis is the path of a JSON genesis allocation loaded at start.
	Genesis string `toml:",omitempty"`

	Accounts int    // number of funded development accounts
	Balance  uint64 // balance of each development account in ether

	// RPCGasCap is the gas limit of calls that do not set one.
	RPCGasCap uint64

	// Fork configures launching on a fork of a remote chain. Nil starts a
	// fresh local chain.
	Fork *forkdb.Config `toml:",omitempty"`
}

// HTTPEndpoint resolves an HTTP endpoint based on the configured host
// interface and port parameters.
// HTTPEndpoint 根据配置的主机接口和端口参数解析 HTTP 端点。
func (c *Config) HTTPEndpoint() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// CacheDir returns the directory of the fork response cache below the data
// directory, empty for an ephemeral node.
func (c *Config) CacheDir() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, datadirCache)
}

// genesisBaseFee returns the base fee of the local genesis block.
func (c *Config) genesisBaseFee() *big.Int {
	if c.BaseFee == 0 {
		return big.NewInt(params.InitialBaseFee)
	}
	return new(big.Int).SetUint64(c.BaseFee)
}

// forkConfig returns the fork settings for url at block, taking the retry,
// rate limit and cache options from the launch fork.
func (c *Config) forkConfig(url string, block *uint64) forkdb.Config {
	cfg := forkdb.DefaultConfig
	if c.Fork != nil {
		cfg = *c.Fork
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = c.CacheDir()
	}
	cfg.URL, cfg.BlockNumber = url, block
	return cfg
}
