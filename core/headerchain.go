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

// Package core implements the sealed chain of the node and its built-in value
// transfer executor.
// 包 core 实现节点的已封装链及其内置的转账执行器。
package core

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sunyihoo/forknode/core/rawdb"
	"github.com/sunyihoo/forknode/ethdb"
)

const (
	blockCacheLimit    = 256 // 区块缓存限制
	receiptsCacheLimit = 32  // 收据缓存限制
)

// HeaderChain is the append-only chain of blocks sealed by the node. Blocks
// are stored through rawdb and every insertion is announced on the chain
// head, logs and new transaction feeds.
//
// HeaderChain 是节点封装的只追加区块链。区块通过 rawdb 存储，
// 每次插入都会在链头、日志和新交易事件源上发布。
type HeaderChain struct {
	config *params.ChainConfig
	db     ethdb.KeyValueStore

	mu      sync.RWMutex
	genesis *types.Block
	current *types.Block

	blockCache    *lru.Cache[common.Hash, *types.Block]
	receiptsCache *lru.Cache[common.Hash, types.Receipts]

	chainHeadFeed event.Feed
	logsFeed      event.Feed
	newTxsFeed    event.Feed
	scope         event.SubscriptionScope
}

// NewHeaderChain creates a chain on top of db starting at genesis. If db
// already holds a chain with the same genesis, the stored head is resumed.
// NewHeaderChain 在 db 之上以 genesis 为起点创建链。
func NewHeaderChain(db ethdb.KeyValueStore, config *params.ChainConfig, genesis *types.Block) (*HeaderChain, error) {
	hc := &HeaderChain{
		config:        config,
		db:            db,
		genesis:       genesis,
		blockCache:    lru.NewCache[common.Hash, *types.Block](blockCacheLimit),
		receiptsCache: lru.NewCache[common.Hash, types.Receipts](receiptsCacheLimit),
	}
	stored := rawdb.ReadCanonicalHash(db, genesis.NumberU64())
	switch {
	case stored == (common.Hash{}):
		hc.writeBlock(genesis, nil)
		hc.current = genesis
		log.Info("Wrote genesis block", "number", genesis.NumberU64(), "hash", genesis.Hash())
	case stored != genesis.Hash():
		return nil, fmt.Errorf("%w: have %x, new %x", ErrGenesisMismatch, stored, genesis.Hash())
	default:
		head := rawdb.ReadHeadBlock(db)
		if head == nil {
			head = genesis
		}
		hc.current = head
		log.Info("Loaded chain head", "number", head.NumberU64(), "hash", head.Hash())
	}
	return hc, nil
}

// GenesisBlock assembles an empty genesis block.
func GenesisBlock(number uint64, parent common.Hash, time, gasLimit uint64, baseFee *big.Int) *types.Block {
	header := &types.Header{
		ParentHash:  parent,
		Number:      new(big.Int).SetUint64(number),
		Time:        time,
		GasLimit:    gasLimit,
		Difficulty:  new(big.Int),
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Root:        types.EmptyRootHash,
	}
	if baseFee != nil {
		header.BaseFee = new(big.Int).Set(baseFee)
	}
	return types.NewBlockWithHeader(header)
}

// Config returns the chain configuration used to derive receipts.
func (hc *HeaderChain) Config() *params.ChainConfig { return hc.config }

// Genesis returns the first block of the chain.
func (hc *HeaderChain) Genesis() *types.Block { return hc.genesis }

// CurrentBlock returns the head of the chain.
// CurrentBlock 返回链头区块。
func (hc *HeaderChain) CurrentBlock() *types.Block {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.current
}

// CurrentHeader returns the header of the chain head.
func (hc *HeaderChain) CurrentHeader() *types.Header {
	return hc.CurrentBlock().Header()
}

// InsertBlock appends a sealed block with its receipts. The block must extend
// the current head. The chain head and its logs are published after the
// write completes.
// InsertBlock 追加一个已封装的区块及其收据，区块必须延续当前链头。
func (hc *HeaderChain) InsertBlock(block *types.Block, receipts types.Receipts) error {
	hc.mu.Lock()
	head := hc.current
	if block.ParentHash() != head.Hash() || block.NumberU64() != head.NumberU64()+1 {
		hc.mu.Unlock()
		return fmt.Errorf("%w: block %d parent %x, head %d %x", ErrUnknownAncestor,
			block.NumberU64(), block.ParentHash(), head.NumberU64(), head.Hash())
	}
	hc.writeBlock(block, receipts)
	hc.current = block
	hc.blockCache.Add(block.Hash(), block)
	hc.mu.Unlock()

	log.Debug("Inserted new block", "number", block.NumberU64(), "hash", block.Hash(),
		"txs", len(block.Transactions()), "gas", block.GasUsed())

	var logs []*types.Log
	for _, receipt := range receipts {
		logs = append(logs, receipt.Logs...)
	}
	hc.chainHeadFeed.Send(ChainHeadEvent{Header: block.Header()})
	if len(logs) > 0 {
		hc.logsFeed.Send(logs)
	}
	return nil
}

// SetHead rewinds the canonical chain to number. Blocks above it are removed
// from the canonical index and their transactions can no longer be looked up.
// SetHead 将规范链回滚到指定区块号。
func (hc *HeaderChain) SetHead(number uint64) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if number < hc.genesis.NumberU64() {
		return fmt.Errorf("cannot rewind below genesis %d", hc.genesis.NumberU64())
	}
	head := hc.current
	if number >= head.NumberU64() {
		return nil
	}
	batch := hc.db.NewBatch()
	for n := head.NumberU64(); n > number; n-- {
		hash := rawdb.ReadCanonicalHash(hc.db, n)
		if block := rawdb.ReadBlock(hc.db, hash, n); block != nil {
			for _, tx := range block.Transactions() {
				rawdb.DeleteTxLookupEntry(batch, tx.Hash())
			}
		}
		rawdb.DeleteCanonicalHash(batch, n)
	}
	newHead := rawdb.ReadBlock(hc.db, rawdb.ReadCanonicalHash(hc.db, number), number)
	if newHead == nil {
		return fmt.Errorf("missing canonical block %d", number)
	}
	rawdb.WriteHeadHeaderHash(batch, newHead.Hash())
	if err := batch.Write(); err != nil {
		return err
	}
	hc.current = newHead
	log.Info("Rewound chain", "from", head.NumberU64(), "to", number)
	return nil
}

// writeBlock stores the block, its receipts and lookups and moves the head
// marker, all in one batch.
func (hc *HeaderChain) writeBlock(block *types.Block, receipts types.Receipts) {
	batch := hc.db.NewBatch()
	rawdb.WriteBlock(batch, block)
	rawdb.WriteReceipts(batch, block.Hash(), block.NumberU64(), receipts)
	rawdb.WriteCanonicalHash(batch, block.Hash(), block.NumberU64())
	rawdb.WriteTxLookupEntriesByBlock(batch, block)
	rawdb.WriteHeadHeaderHash(batch, block.Hash())
	if err := batch.Write(); err != nil {
		log.Crit("Failed to write block into disk", "err", err)
	}
}

// GetBlockByHash retrieves a block by hash, caching it if found.
func (hc *HeaderChain) GetBlockByHash(hash common.Hash) *types.Block {
	if block, ok := hc.blockCache.Get(hash); ok {
		return block
	}
	number := rawdb.ReadHeaderNumber(hc.db, hash)
	if number == nil {
		return nil
	}
	block := rawdb.ReadBlock(hc.db, hash, *number)
	if block != nil {
		hc.blockCache.Add(hash, block)
	}
	return block
}

// GetBlockByNumber retrieves a canonical block by number.
// GetBlockByNumber 通过区块号检索规范区块。
func (hc *HeaderChain) GetBlockByNumber(number uint64) *types.Block {
	hash := rawdb.ReadCanonicalHash(hc.db, number)
	if hash == (common.Hash{}) {
		return nil
	}
	return hc.GetBlockByHash(hash)
}

// GetHeaderByHash retrieves a header by hash.
func (hc *HeaderChain) GetHeaderByHash(hash common.Hash) *types.Header {
	if block := hc.GetBlockByHash(hash); block != nil {
		return block.Header()
	}
	return nil
}

// GetHeaderByNumber retrieves a canonical header by number.
func (hc *HeaderChain) GetHeaderByNumber(number uint64) *types.Header {
	if block := hc.GetBlockByNumber(number); block != nil {
		return block.Header()
	}
	return nil
}

// GetReceiptsByHash retrieves the receipts of a block with all metadata
// fields derived.
func (hc *HeaderChain) GetReceiptsByHash(hash common.Hash) types.Receipts {
	if receipts, ok := hc.receiptsCache.Get(hash); ok {
		return receipts
	}
	number := rawdb.ReadHeaderNumber(hc.db, hash)
	if number == nil {
		return nil
	}
	receipts := rawdb.ReadReceipts(hc.db, hash, *number, hc.config)
	if receipts != nil {
		hc.receiptsCache.Add(hash, receipts)
	}
	return receipts
}

// GetTransaction returns a sealed transaction together with the hash and
// number of its block and its index.
// GetTransaction 返回已封装的交易及其所在区块的哈希、区块号和索引。
func (hc *HeaderChain) GetTransaction(hash common.Hash) (*types.Transaction, common.Hash, uint64, uint64) {
	return rawdb.ReadTransaction(hc.db, hash)
}

// GetReceipt returns the receipt of a sealed transaction.
func (hc *HeaderChain) GetReceipt(hash common.Hash) *types.Receipt {
	_, blockHash, _, index := rawdb.ReadTransaction(hc.db, hash)
	if blockHash == (common.Hash{}) {
		return nil
	}
	receipts := hc.GetReceiptsByHash(blockHash)
	if uint64(len(receipts)) <= index {
		return nil
	}
	return receipts[index]
}

// SendNewTxs announces transactions that entered the pending queue.
func (hc *HeaderChain) SendNewTxs(txs []*types.Transaction) {
	if len(txs) > 0 {
		hc.newTxsFeed.Send(NewTxsEvent{Txs: txs})
	}
}

// SubscribeChainHeadEvent registers a subscription of ChainHeadEvent.
func (hc *HeaderChain) SubscribeChainHeadEvent(ch chan<- ChainHeadEvent) event.Subscription {
	return hc.scope.Track(hc.chainHeadFeed.Subscribe(ch))
}

// SubscribeLogsEvent registers a subscription of []*types.Log.
func (hc *HeaderChain) SubscribeLogsEvent(ch chan<- []*types.Log) event.Subscription {
	return hc.scope.Track(hc.logsFeed.Subscribe(ch))
}

// SubscribeNewTxsEvent registers a subscription of NewTxsEvent.
func (hc *HeaderChain) SubscribeNewTxsEvent(ch chan<- NewTxsEvent) event.Subscription {
	return hc.scope.Track(hc.newTxsFeed.Subscribe(ch))
}

// Stop unsubscribes every feed subscriber.
// Stop 取消所有事件订阅。
func (hc *HeaderChain) Stop() {
	hc.scope.Close()
}
