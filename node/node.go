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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gofrs/flock"
	"github.com/sunyihoo/forknode/core"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/eth/filters"
	"github.com/sunyihoo/forknode/ethdb/memorydb"
	"github.com/sunyihoo/forknode/internal/ethapi"
	"github.com/sunyihoo/forknode/miner"
)

// Node is a forking development node serving JSON-RPC.
// Node 是提供 JSON-RPC 服务的分叉开发节点。
type Node struct {
	config      *Config
	log         log.Logger
	dirLock     *flock.Flock // prevents concurrent use of the data directory
	chainConfig *params.ChainConfig

	forks    *forkdb.MultiFork
	backend  *backend.Backend
	chain    *core.HeaderChain
	miner    *miner.Miner
	events   *filters.EventSystem
	accounts *devAccounts

	rpcAPIs       []rpc.API   // List of APIs currently provided by the node
	inprocHandler *rpc.Server // In-process RPC request handler to process the API requests
	http          *httpServer

	startStopLock sync.Mutex // Start/Close are protected by an additional lock
	state         int        // Tracks state of node lifecycle
}

const (
	initializingState = iota
	runningState
	closedState
)

// New creates a node. With a fork configured the remote endpoint is
// contacted here and an unreachable endpoint fails.
// New 创建节点。配置了分叉时会在此处连接远程端点，端点不可达则失败。
func New(ctx context.Context, conf *Config) (*Node, error) {
	return newNode(ctx, conf, forkdb.NewMultiFork())
}

func newNode(ctx context.Context, conf *Config, forks *forkdb.MultiFork) (*Node, error) {
	// Copy config and resolve the datadir so future changes to the current
	// working directory don't affect the node.
	confCopy := *conf
	conf = &confCopy
	if conf.DataDir != "" {
		absdatadir, err := filepath.Abs(conf.DataDir)
		if err != nil {
			return nil, err
		}
		conf.DataDir = absdatadir
	}
	n := &Node{
		config: conf,
		log:    log.Root(),
		forks:  forks,
	}
	if err := n.openDataDir(); err != nil {
		return nil, err
	}
	if err := n.setup(ctx); err != nil {
		n.release()
		return nil, err
	}
	return n, nil
}

func (n *Node) openDataDir() error {
	if n.config.DataDir == "" {
		return nil // ephemeral
	}
	if err := os.MkdirAll(n.config.DataDir, 0700); err != nil {
		return err
	}
	// Lock the instance directory to prevent concurrent use by another instance as well as
	// accidental use of the instance directory as a database.
	n.dirLock = flock.New(filepath.Join(n.config.DataDir, "LOCK"))

	if locked, err := n.dirLock.TryLock(); err != nil {
		return convertFileLockError(err)
	} else if !locked {
		return ErrDatadirUsed
	}
	return nil
}

// setup creates the components of the node.
func (n *Node) setup(ctx context.Context) error {
	var launch *forkdb.Config
	if n.config.Fork != nil {
		cfg := n.config.forkConfig(n.config.Fork.URL, n.config.Fork.BlockNumber)
		launch = &cfg
	}
	sb, err := backend.New(ctx, backend.Config{
		Forks:    n.forks,
		Executor: core.NewTransferExecutor(),
		Fork:     launch,
	})
	if err != nil {
		return fmt.Errorf("failed to launch backend: %w", err)
	}
	n.backend = sb

	genesis, chainID, err := n.genesis()
	if err != nil {
		return err
	}
	chainConfig := *params.AllDevChainProtocolChanges
	chainConfig.ChainID = new(big.Int).SetUint64(chainID)
	n.chainConfig = &chainConfig

	if n.chain, err = core.NewHeaderChain(memorydb.New(), n.chainConfig, genesis); err != nil {
		return err
	}
	if !sb.IsForkedMode() {
		sb.SetBlockHash(genesis.NumberU64(), genesis.Hash())
	}
	n.miner = miner.New(miner.Config{
		Coinbase:  n.config.Coinbase,
		GasCeil:   genesis.GasLimit(),
		AutoMine:  n.config.BlockTime == 0 && !n.config.NoMining,
		BlockTime: n.config.BlockTime,
	}, n.chain, sb)
	n.events = filters.NewEventSystem(n.chain, filters.DefaultBufferSize)

	if n.accounts, err = newDevAccounts(n.config.Accounts); err != nil {
		return err
	}
	n.accounts.fund(sb, n.config.Balance)
	if n.config.Genesis != "" {
		if err := n.loadGenesisAlloc(n.config.Genesis); err != nil {
			return err
		}
	}

	n.inprocHandler = rpc.NewServer()
	n.inprocHandler.SetBatchLimits(n.config.BatchRequestLimit, n.config.BatchResponseMaxSize)
	n.rpcAPIs = append(n.apis(), ethapi.GetAPIs(n, n.events)...)
	for _, api := range n.rpcAPIs {
		if err := n.inprocHandler.RegisterName(api.Namespace, api.Service); err != nil {
			return err
		}
	}
	n.http = newHTTPServer(n.log, n.config.HTTPTimeouts)
	n.http.enableRPC(n.inprocHandler, n.config.HTTPCors, n.config.WSEnabled)

	n.log.Info("Initialised chain", "chainid", chainID, "number", genesis.NumberU64(),
		"hash", genesis.Hash(), "forked", sb.IsForkedMode(), "url", sb.ActiveForkURL())
	return nil
}

// genesis assembles the first local block. On a fork it continues the fork
// block, otherwise it starts a fresh chain at the current time.
// genesis 组装第一个本地区块。分叉时延续分叉区块，否则以当前时间开始新链。
func (n *Node) genesis() (*types.Block, uint64, error) {
	gasLimit := n.config.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	id, ok := n.backend.LaunchedWithFork()
	if !ok {
		chainID := n.config.ChainID
		if chainID == 0 {
			chainID = DefaultChainID
		}
		return core.GenesisBlock(0, common.Hash{}, uint64(time.Now().Unix()), gasLimit, n.config.genesisBaseFee()), chainID, nil
	}
	status, err := n.backend.ForkStatus(id)
	if err != nil {
		return nil, 0, err
	}
	env, err := n.backend.ForkEnv(id)
	if err != nil {
		return nil, 0, err
	}
	var parent common.Hash
	if status.BlockNumber > 0 {
		if parent, err = n.backend.BlockHash(status.BlockNumber - 1); err != nil {
			return nil, 0, err
		}
	}
	baseFee := env.Block.BaseFee
	if n.config.BaseFee != 0 || baseFee == nil {
		baseFee = n.config.genesisBaseFee()
	}
	chainID := n.config.ChainID
	if chainID == 0 {
		chainID = status.ChainID
	}
	return core.GenesisBlock(status.BlockNumber, parent, status.Timestamp, gasLimit, baseFee), chainID, nil
}

// loadGenesisAlloc writes the allocation stored in file into the state.
func (n *Node) loadGenesisAlloc(file string) error {
	blob, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read genesis allocation: %w", err)
	}
	var alloc types.GenesisAlloc
	if err := json.Unmarshal(blob, &alloc); err != nil {
		return fmt.Errorf("invalid genesis allocation %s: %w", file, err)
	}
	if err := n.backend.ApplyAllocs(alloc); err != nil {
		return err
	}
	n.log.Info("Loaded genesis allocation", "file", file, "accounts", len(alloc))
	return nil
}

// Start starts the RPC endpoint and interval mining.
// Start 启动 RPC 端点和定时出块。
func (n *Node) Start() error {
	n.startStopLock.Lock()
	defer n.startStopLock.Unlock()

	switch n.state {
	case runningState:
		return ErrNodeRunning
	case closedState:
		return ErrNodeStopped
	}
	if err := n.http.start(n.config.HTTPEndpoint()); err != nil {
		return err
	}
	n.miner.Start()
	n.state = runningState
	return nil
}

// Close stops the node and releases its resources. The response caches of
// every fork are flushed to disk.
// Close 停止节点并释放资源，所有分叉的响应缓存会被写入磁盘。
func (n *Node) Close() error {
	n.startStopLock.Lock()
	defer n.startStopLock.Unlock()

	if n.state == closedState {
		return ErrNodeStopped
	}
	n.state = closedState

	n.http.stop()
	n.inprocHandler.Stop()
	n.miner.Stop()
	n.events.Close()
	n.chain.Stop()
	errs := []error{n.forks.Flush()}
	errs = append(errs, n.release())
	n.log.Info("Node closed")
	return errors.Join(errs...)
}

// release closes the fork endpoints and the data directory lock.
func (n *Node) release() error {
	err := n.forks.Close()
	if n.dirLock != nil && n.dirLock.Locked() {
		n.dirLock.Unlock()
		n.dirLock = nil
	}
	return err
}

// Attach creates an RPC client attached to an in-process API handler.
func (n *Node) Attach() *rpc.Client {
	return rpc.DialInProc(n.inprocHandler)
}

// HTTPEndpoint returns the address the HTTP server listens on, empty while
// not running.
func (n *Node) HTTPEndpoint() string {
	n.http.mu.Lock()
	defer n.http.mu.Unlock()
	if n.http.listener == nil {
		return ""
	}
	return n.http.endpoint
}

// Config returns the configuration of node.
func (n *Node) Config() *Config {
	return n.config
}

// ChainConfig implements ethapi.Backend.
func (n *Node) ChainConfig() *params.ChainConfig { return n.chainConfig }

// Chain implements ethapi.Backend.
func (n *Node) Chain() *core.HeaderChain { return n.chain }

// StateBackend implements ethapi.Backend.
func (n *Node) StateBackend() *backend.Backend { return n.backend }

// Miner implements ethapi.Backend.
func (n *Node) Miner() *miner.Miner { return n.miner }

// Accounts implements ethapi.Backend.
func (n *Node) Accounts() []common.Address { return n.accounts.addresses() }

// SignTx implements ethapi.Backend.
func (n *Node) SignTx(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
	return n.accounts.sign(addr, tx, types.LatestSigner(n.chainConfig))
}

// RPCGasCap implements ethapi.Backend.
func (n *Node) RPCGasCap() uint64 {
	if n.config.RPCGasCap == 0 {
		return DefaultGasCap
	}
	return n.config.RPCGasCap
}

// ForkConfig implements ethapi.Backend.
func (n *Node) ForkConfig(url string, block *uint64) forkdb.Config {
	return n.config.forkConfig(url, block)
}

var _ ethapi.Backend = (*Node)(nil)
