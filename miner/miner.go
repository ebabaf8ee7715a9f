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

// Package miner seals pending transactions into blocks on top of the node's
// chain, executing them against the committing state backend.
// 包 miner 将待处理交易封装到节点链上的区块中，并针对提交后端执行它们。
package miner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/sunyihoo/forknode/core"
	"github.com/sunyihoo/forknode/core/backend"
)

var (
	// ErrAlreadyKnown is returned when a transaction is already pending.
	ErrAlreadyKnown = errors.New("already known")

	// ErrInvalidTimestamp is returned when a requested block timestamp is not
	// after the current head.
	ErrInvalidTimestamp = errors.New("timestamp must be after the chain head")
)

// Config is the configuration parameters of block sealing.
type Config struct {
	Coinbase  common.Address `toml:",omitempty"` // Recipient of priority fees
	GasCeil   uint64         // Gas limit of sealed blocks
	AutoMine  bool           // Seal a block for every submitted transaction
	BlockTime time.Duration  `toml:",omitempty"` // Interval sealing period, 0 disables it
}

// DefaultConfig contains default settings for the miner.
var DefaultConfig = Config{
	GasCeil:  30_000_000,
	AutoMine: true,
}

// Miner keeps the pending transactions in arrival order and seals them into
// blocks, either on request, on submission or on a fixed interval.
//
// Miner 按到达顺序保存待处理交易，并在请求时、提交时或按固定间隔将其封装成区块。
type Miner struct {
	config      Config
	chainConfig *params.ChainConfig
	chain       *core.HeaderChain
	backend     *backend.Backend
	signer      types.Signer

	mu      sync.Mutex // protects pending, known and the clock
	pending []*types.Transaction
	known   mapset.Set[common.Hash]

	nextTimestamp uint64 // exact timestamp of the next block, 0 if unset
	timeOffset    int64  // seconds added to the wall clock

	sealMu sync.Mutex // serialises sealing

	now  func() time.Time
	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a miner sealing on top of chain.
func New(config Config, chain *core.HeaderChain, b *backend.Backend) *Miner {
	if config.GasCeil == 0 {
		config.GasCeil = DefaultConfig.GasCeil
	}
	chainConfig := chain.Config()
	return &Miner{
		config:      config,
		chainConfig: chainConfig,
		chain:       chain,
		backend:     b,
		signer:      types.LatestSigner(chainConfig),
		known:       mapset.NewThreadUnsafeSet[common.Hash](),
		now:         time.Now,
		quit:        make(chan struct{}),
	}
}

// Start launches interval sealing if a block time is configured.
// Start 在配置了出块时间时启动定时封装。
func (m *Miner) Start() {
	if m.config.BlockTime <= 0 {
		return
	}
	m.wg.Add(1)
	go m.loop()
	log.Info("Started interval mining", "period", m.config.BlockTime)
}

// Stop terminates interval sealing and waits for it to exit.
func (m *Miner) Stop() {
	select {
	case <-m.quit:
	default:
		close(m.quit)
	}
	m.wg.Wait()
}

func (m *Miner) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.BlockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := m.Mine(context.Background()); err != nil {
				log.Warn("Interval mining failed", "err", err)
			}
		case <-m.quit:
			return
		}
	}
}

// AddTransaction validates the sender of tx and queues it. With auto mining
// enabled a block containing it is sealed before returning.
// AddTransaction 校验交易发送者并将其加入队列。
func (m *Miner) AddTransaction(ctx context.Context, tx *types.Transaction) error {
	if _, err := types.Sender(m.signer, tx); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	m.mu.Lock()
	if !m.known.Add(tx.Hash()) {
		m.mu.Unlock()
		return ErrAlreadyKnown
	}
	m.pending = append(m.pending, tx)
	m.mu.Unlock()

	m.chain.SendNewTxs([]*types.Transaction{tx})
	log.Debug("Queued transaction", "hash", tx.Hash(), "nonce", tx.Nonce())

	if m.config.AutoMine {
		_, err := m.Mine(ctx)
		return err
	}
	return nil
}

// Pending returns the queued transactions in arrival order.
func (m *Miner) Pending() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Transaction(nil), m.pending...)
}

// SetTimestamp fixes the timestamp of the next sealed block.
func (m *Miner) SetTimestamp(ts uint64) error {
	if head := m.chain.CurrentHeader(); ts <= head.Time {
		return fmt.Errorf("%w: %d <= %d", ErrInvalidTimestamp, ts, head.Time)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTimestamp = ts
	m.timeOffset = int64(ts) - m.now().Unix()
	return nil
}

// IncreaseTime moves the clock forward and returns the total offset in
// seconds.
// IncreaseTime 将时钟向前调整，返回总偏移秒数。
func (m *Miner) IncreaseTime(seconds uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeOffset += int64(seconds)
	return m.timeOffset
}

// nextBlockTime returns the timestamp of a block built on parent and
// consumes a pinned timestamp.
func (m *Miner) nextBlockTime(parent *types.Header) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := uint64(m.now().Unix() + m.timeOffset)
	if m.nextTimestamp != 0 {
		ts, m.nextTimestamp = m.nextTimestamp, 0
	}
	if ts <= parent.Time {
		ts = parent.Time + 1
	}
	return ts
}

// takePending removes every queued transaction from the queue.
func (m *Miner) takePending() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := m.pending
	m.pending = nil
	return txs
}

// requeue puts transactions that did not fit back in front of the queue.
func (m *Miner) requeue(txs []*types.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(txs, m.pending...)
}

func (m *Miner) forget(txs []*types.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.known.Remove(tx.Hash())
	}
}

// Mine seals one block with as many pending transactions as fit, in arrival
// order. Transactions that fail validation are dropped, those exceeding the
// remaining block gas wait for the next block. An empty block is sealed when
// nothing is pending.
//
// Mine 按到达顺序将尽可能多的待处理交易封装进一个区块。
func (m *Miner) Mine(ctx context.Context) (*types.Block, error) {
	m.sealMu.Lock()
	defer m.sealMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	executor := m.backend.Executor()
	if executor == nil {
		return nil, backend.ErrNoExecutor
	}
	parent := m.chain.CurrentHeader()
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, common.Big1),
		Time:       m.nextBlockTime(parent),
		GasLimit:   m.config.GasCeil,
		Coinbase:   m.config.Coinbase,
		Difficulty: new(big.Int),
	}
	if m.chainConfig.IsLondon(header.Number) {
		header.BaseFee = m.baseFee(parent)
	}
	env := backend.EnvFromHeader(header, m.chainConfig.ChainID.Uint64())

	var (
		gp       = new(core.GasPool).AddGas(header.GasLimit)
		txs      types.Transactions
		receipts types.Receipts
		dropped  []*types.Transaction
		deferred []*types.Transaction
		logIndex uint
	)
	for _, tx := range m.takePending() {
		if len(deferred) > 0 {
			deferred = append(deferred, tx)
			continue
		}
		if err := gp.SubGas(tx.Gas()); err != nil {
			deferred = append(deferred, tx)
			continue
		}
		msg, err := backend.TransactionToMessage(tx, m.signer, header.BaseFee)
		if err != nil {
			gp.AddGas(tx.Gas())
			dropped = append(dropped, tx)
			continue
		}
		res, err := core.ApplyMessage(executor, m.backend, env, msg)
		if err != nil {
			log.Debug("Dropping invalid transaction", "hash", tx.Hash(), "err", err)
			gp.AddGas(tx.Gas())
			dropped = append(dropped, tx)
			continue
		}
		m.backend.Commit(res.Changes)
		gp.AddGas(tx.Gas() - res.GasUsed)
		header.GasUsed += res.GasUsed

		receipt := &types.Receipt{
			Type:              tx.Type(),
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: header.GasUsed,
			TxHash:            tx.Hash(),
			GasUsed:           res.GasUsed,
			EffectiveGasPrice: msg.GasPrice,
			BlockNumber:       new(big.Int).Set(header.Number),
			TransactionIndex:  uint(len(txs)),
		}
		if res.Failed {
			receipt.Status = types.ReceiptStatusFailed
		}
		for _, l := range res.Logs {
			l.TxHash = tx.Hash()
			l.TxIndex = uint(len(txs))
			l.BlockNumber = header.Number.Uint64()
			l.Index = logIndex
			logIndex++
		}
		receipt.Logs = res.Logs
		receipt.Bloom = types.CreateBloom(types.Receipts{receipt})
		txs = append(txs, tx)
		receipts = append(receipts, receipt)
	}
	m.requeue(deferred)
	m.forget(dropped)
	m.forget(txs)

	block := types.NewBlock(header, &types.Body{Transactions: txs}, receipts, trie.NewStackTrie(nil))
	for _, receipt := range receipts {
		receipt.BlockHash = block.Hash()
		for _, l := range receipt.Logs {
			l.BlockHash = block.Hash()
		}
	}
	m.backend.SetBlockHash(block.NumberU64(), block.Hash())
	if err := m.chain.InsertBlock(block, receipts); err != nil {
		return nil, err
	}
	log.Info("Sealed new block", "number", block.NumberU64(), "hash", block.Hash(),
		"txs", len(txs), "gas", header.GasUsed, "dropped", len(dropped), "deferred", len(deferred))
	return block, nil
}

// baseFee computes the base fee of a child of parent.
func (m *Miner) baseFee(parent *types.Header) *big.Int {
	if parent.BaseFee == nil {
		return new(big.Int).SetUint64(params.InitialBaseFee)
	}
	return eip1559.CalcBaseFee(m.chainConfig, parent)
}
