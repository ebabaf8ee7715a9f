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

package ethapi

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/forknode/core"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/state"
)

// errHistoricalState is returned for state queries against an older block.
var errHistoricalState = errors.New("historical state not available, only the latest block is served")

// EthereumAPI provides the eth_ namespace: chain queries, state reads, calls
// and transaction submission.
// EthereumAPI 提供 eth_ 命名空间。
type EthereumAPI struct {
	b         Backend
	nonceLock *AddrLocker
	signer    types.Signer
}

// NewEthereumAPI creates a new Ethereum protocol API.
func NewEthereumAPI(b Backend, nonceLock *AddrLocker) *EthereumAPI {
	return &EthereumAPI{b: b, nonceLock: nonceLock, signer: types.LatestSigner(b.ChainConfig())}
}

// ChainId is the EIP-155 replay-protection chain id for the current Ethereum chain config.
// ChainId 是当前以太坊链配置的 EIP-155 重放保护链 ID。
func (api *EthereumAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(api.b.ChainConfig().ChainID)
}

// BlockNumber returns the block number of the chain head.
// BlockNumber 返回链头的区块编号。
func (api *EthereumAPI) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(api.b.Chain().CurrentHeader().Number.Uint64())
}

// Accounts returns the addresses the node signs for.
func (api *EthereumAPI) Accounts() []common.Address {
	return api.b.Accounts()
}

// stateHeader returns the head header if blockNrOrHash names it. State is
// only kept for the head, every tag resolves to it.
// stateHeader 在 blockNrOrHash 指向链头时返回链头区块头。
func (api *EthereumAPI) stateHeader(blockNrOrHash *rpc.BlockNumberOrHash) (*types.Header, error) {
	head := api.b.Chain().CurrentHeader()
	if blockNrOrHash == nil {
		return head, nil
	}
	if hash, ok := blockNrOrHash.Hash(); ok {
		if hash != head.Hash() {
			return nil, &apiError{code: errCodeInvalidParams, err: errHistoricalState}
		}
		return head, nil
	}
	number, _ := blockNrOrHash.Number()
	switch {
	case number == rpc.EarliestBlockNumber && head.Number.Sign() != 0:
		return nil, &apiError{code: errCodeInvalidParams, err: errHistoricalState}
	case number >= 0 && uint64(number) != head.Number.Uint64():
		return nil, &apiError{code: errCodeInvalidParams, err: errHistoricalState}
	}
	return head, nil
}

func (api *EthereumAPI) account(addr common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*state.AccountInfo, error) {
	if _, err := api.stateHeader(&blockNrOrHash); err != nil {
		return nil, err
	}
	info, err := api.b.StateBackend().Basic(addr)
	if err != nil {
		return nil, translateError(err)
	}
	if info == nil {
		info = state.NewAccountInfo(nil, 0, nil)
	}
	return info, nil
}

// GetBalance returns the amount of wei for the given address in the state of
// the given block number.
// GetBalance 返回给定地址在给定区块状态中的 wei 数量。
func (api *EthereumAPI) GetBalance(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Big, error) {
	info, err := api.account(address, blockNrOrHash)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(info.Balance.ToBig()), nil
}

// GetTransactionCount returns the number of transactions the given address
// has sent. The pending tag includes queued transactions.
// GetTransactionCount 返回给定地址发送的交易数量。
func (api *EthereumAPI) GetTransactionCount(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Uint64, error) {
	if number, ok := blockNrOrHash.Number(); ok && number == rpc.PendingBlockNumber {
		nonce, err := api.pendingNonce(address)
		if err != nil {
			return nil, err
		}
		return (*hexutil.Uint64)(&nonce), nil
	}
	info, err := api.account(address, blockNrOrHash)
	if err != nil {
		return nil, err
	}
	nonce := info.Nonce
	return (*hexutil.Uint64)(&nonce), nil
}

// pendingNonce returns the next nonce of addr counting queued transactions.
func (api *EthereumAPI) pendingNonce(addr common.Address) (uint64, error) {
	info, err := api.b.StateBackend().Basic(addr)
	if err != nil {
		return 0, translateError(err)
	}
	var nonce uint64
	if info != nil {
		nonce = info.Nonce
	}
	for _, tx := range api.b.Miner().Pending() {
		if from, err := types.Sender(api.signer, tx); err == nil && from == addr && tx.Nonce() >= nonce {
			nonce = tx.Nonce() + 1
		}
	}
	return nonce, nil
}

// GetCode returns the code stored at the given address in the state for the
// given block number.
// GetCode 返回给定地址在给定区块状态中存储的代码。
func (api *EthereumAPI) GetCode(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	info, err := api.account(address, blockNrOrHash)
	if err != nil || !info.HasCode() {
		return hexutil.Bytes{}, err
	}
	if info.Code != nil {
		return info.Code, nil
	}
	code, err := api.b.StateBackend().CodeByHash(info.CodeHash)
	if err != nil {
		return nil, translateError(err)
	}
	return code, nil
}

// GetStorageAt returns the storage from the state at the given address, key
// and block number.
// GetStorageAt 返回给定地址、键和区块编号的状态中的存储。
func (api *EthereumAPI) GetStorageAt(ctx context.Context, address common.Address, hexKey string, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	if _, err := api.stateHeader(&blockNrOrHash); err != nil {
		return nil, err
	}
	key, err := decodeHash(hexKey)
	if err != nil {
		return nil, invalidParams("unable to decode storage key: %s", err)
	}
	value, err := api.b.StateBackend().Storage(address, key)
	if err != nil {
		return nil, translateError(err)
	}
	return value[:], nil
}

// decodeHash parses a hex-encoded 32-byte hash. The input may optionally
// be prefixed by 0x and can have a byte length up to 32.
// decodeHash 解析十六进制编码的 32 字节哈希。
func decodeHash(s string) (common.Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if (len(s) & 1) > 0 {
		s = "0" + s
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return common.Hash{}, errors.New("hex string invalid")
	}
	if len(b) > 32 {
		return common.Hash{}, errors.New("hex string too long, want at most 32 bytes")
	}
	return common.BytesToHash(b), nil
}

// GetBlockByNumber returns the requested canonical block.
//   - When fullTx is true all transactions in the block are returned, otherwise
//     only the transaction hash is returned.
//
// GetBlockByNumber 返回请求的规范区块。
func (api *EthereumAPI) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (map[string]interface{}, error) {
	chain := api.b.Chain()
	var block *types.Block
	switch number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		block = chain.CurrentBlock()
	case rpc.EarliestBlockNumber:
		block = chain.Genesis()
	default:
		if number < 0 {
			return nil, invalidParams("invalid block number %d", number)
		}
		block = chain.GetBlockByNumber(uint64(number))
	}
	if block == nil {
		return nil, nil
	}
	return RPCMarshalBlock(block, true, fullTx, api.b.ChainConfig()), nil
}

// GetBlockByHash returns the requested block.
// GetBlockByHash 返回请求的区块。
func (api *EthereumAPI) GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (map[string]interface{}, error) {
	block := api.b.Chain().GetBlockByHash(hash)
	if block == nil {
		return nil, nil
	}
	return RPCMarshalBlock(block, true, fullTx, api.b.ChainConfig()), nil
}

// GetTransactionByHash returns the transaction for the given hash, looking
// at queued transactions when it is not sealed yet.
// GetTransactionByHash 返回给定哈希的交易。
func (api *EthereumAPI) GetTransactionByHash(ctx context.Context, hash common.Hash) (*RPCTransaction, error) {
	chain := api.b.Chain()
	if tx, blockHash, number, index := chain.GetTransaction(hash); tx != nil {
		header := chain.GetHeaderByHash(blockHash)
		if header == nil {
			return nil, nil
		}
		return newRPCTransaction(tx, blockHash, number, header.Time, index, header.BaseFee, api.b.ChainConfig()), nil
	}
	for _, tx := range api.b.Miner().Pending() {
		if tx.Hash() == hash {
			head := chain.CurrentHeader()
			return newRPCTransaction(tx, common.Hash{}, 0, head.Time, 0, nil, api.b.ChainConfig()), nil
		}
	}
	return nil, nil
}

// GetTransactionReceipt returns the transaction receipt for the given
// transaction hash, nil while it is not sealed.
// GetTransactionReceipt 返回给定交易哈希的交易收据。
func (api *EthereumAPI) GetTransactionReceipt(ctx context.Context, hash common.Hash) (map[string]interface{}, error) {
	chain := api.b.Chain()
	tx, blockHash, number, index := chain.GetTransaction(hash)
	if tx == nil {
		return nil, nil
	}
	header := chain.GetHeaderByHash(blockHash)
	receipts := chain.GetReceiptsByHash(blockHash)
	if header == nil || uint64(len(receipts)) <= index {
		return nil, nil
	}
	signer := types.MakeSigner(api.b.ChainConfig(), header.Number, header.Time)
	return marshalReceipt(receipts[index], blockHash, number, signer, tx, int(index)), nil
}

// callEnv returns the environment a message executes in on top of header.
func (api *EthereumAPI) callEnv(header *types.Header, msg *backend.Message) *backend.Env {
	env := backend.EnvFromHeader(header, api.b.ChainConfig().ChainID.Uint64())
	env.Tx = backend.TxEnv{
		Caller:   msg.From,
		To:       msg.To,
		Nonce:    msg.Nonce,
		GasPrice: msg.GasPrice,
		ChainID:  env.Cfg.ChainID,
	}
	return env
}

// doCall executes args against a copy-on-write view of the node state. The
// node state is never modified.
// doCall 在节点状态的写时复制视图上执行 args，不会修改节点状态。
func (api *EthereumAPI) doCall(ctx context.Context, args TransactionArgs, blockNrOrHash *rpc.BlockNumberOrHash, gasCap uint64) (*backend.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, err := api.stateHeader(blockNrOrHash)
	if err != nil {
		return nil, err
	}
	msg, err := args.ToMessage(gasCap, header.BaseFee)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	cow := backend.NewCowBackend(api.b.StateBackend())
	res, err := cow.Inspect(api.callEnv(header, msg), msg, nil)
	if err != nil {
		return nil, translateError(err)
	}
	return res, nil
}

// Call executes the given transaction on the state for the given block
// number. The node state is not modified.
// Call 在给定区块编号的状态上执行给定交易，不修改节点状态。
func (api *EthereumAPI) Call(ctx context.Context, args TransactionArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	res, err := api.doCall(ctx, args, blockNrOrHash, api.b.RPCGasCap())
	if err != nil {
		return nil, err
	}
	if res.Failed {
		return nil, newRevertError(res.ReturnData)
	}
	return res.ReturnData, nil
}

// EstimateGas returns the lowest gas limit that allows the transaction to run
// successfully, found by binary search.
// EstimateGas 通过二分查找返回使交易成功执行的最低 gas 限制。
func (api *EthereumAPI) EstimateGas(ctx context.Context, args TransactionArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	return api.estimateAt(ctx, args, blockNrOrHash)
}

func (api *EthereumAPI) estimate(ctx context.Context, args TransactionArgs) (hexutil.Uint64, error) {
	return api.estimateAt(ctx, args, nil)
}

func (api *EthereumAPI) estimateAt(ctx context.Context, args TransactionArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	hi := api.b.RPCGasCap()
	if head := api.b.Chain().CurrentHeader(); hi == 0 || hi > head.GasLimit {
		hi = head.GasLimit
	}
	if args.Gas != nil && uint64(*args.Gas) >= params.TxGas && uint64(*args.Gas) < hi {
		hi = uint64(*args.Gas)
	}
	run := func(gas uint64) (*backend.ExecutionResult, error) {
		args.Gas = (*hexutil.Uint64)(&gas)
		return api.doCall(ctx, args, blockNrOrHash, gas)
	}
	res, err := run(hi)
	if err != nil {
		return 0, err
	}
	if res.Failed {
		return 0, newRevertError(res.ReturnData)
	}
	lo := params.TxGas - 1
	if res.GasUsed > 0 {
		lo = res.GasUsed - 1
	}
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		res, err := run(mid)
		if err != nil && ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err != nil || res.Failed {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hexutil.Uint64(hi), nil
}

// SendRawTransaction queues a signed transaction for sealing and returns its
// hash.
// SendRawTransaction 将已签名的交易加入待封装队列并返回其哈希。
func (api *EthereumAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, invalidParams("%v", err)
	}
	return api.submitTransaction(ctx, tx)
}

// SendTransaction fills in the defaults of args, signs the transaction with
// the key of the sender and queues it.
// SendTransaction 补齐参数默认值，用发送者的密钥签名交易并加入队列。
func (api *EthereumAPI) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	if args.From == nil {
		return common.Hash{}, invalidParams("missing from address")
	}
	api.nonceLock.LockAddr(*args.From)
	defer api.nonceLock.UnlockAddr(*args.From)

	if err := args.setDefaults(ctx, api); err != nil {
		return common.Hash{}, err
	}
	signed, err := api.b.SignTx(*args.From, args.ToTransaction())
	if err != nil {
		return common.Hash{}, invalidParams("%v", err)
	}
	return api.submitTransaction(ctx, signed)
}

// submitTransaction checks the transaction against the current state and
// hands it to the miner.
// submitTransaction 根据当前状态检查交易并交给矿工。
func (api *EthereumAPI) submitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if tx.Protected() {
		if want := api.b.ChainConfig().ChainID; tx.ChainId().Cmp(want) != 0 {
			return common.Hash{}, invalidParams("invalid chain id: have %v want %v", tx.ChainId(), want)
		}
	}
	from, err := types.Sender(api.signer, tx)
	if err != nil {
		return common.Hash{}, invalidParams("invalid sender: %v", err)
	}
	info, err := api.b.StateBackend().Basic(from)
	if err != nil {
		return common.Hash{}, translateError(err)
	}
	if info != nil && tx.Nonce() < info.Nonce {
		return common.Hash{}, translateError(fmt.Errorf("%w: address %v, tx: %d state: %d", core.ErrNonceTooLow, from, tx.Nonce(), info.Nonce))
	}
	if err := api.b.Miner().AddTransaction(ctx, tx); err != nil {
		return common.Hash{}, translateError(err)
	}
	if tx.To() == nil {
		log.Info("Submitted contract creation", "hash", tx.Hash().Hex(), "from", from, "nonce", tx.Nonce(), "value", tx.Value())
	} else {
		log.Info("Submitted transaction", "hash", tx.Hash().Hex(), "from", from, "nonce", tx.Nonce(), "recipient", tx.To(), "value", tx.Value())
	}
	return tx.Hash(), nil
}

// RPCMarshalHeader converts the given header to the RPC output.
// RPCMarshalHeader 将给定的区块头转换为 RPC 输出。
func RPCMarshalHeader(head *types.Header) map[string]interface{} {
	result := map[string]interface{}{
		"number":           (*hexutil.Big)(head.Number),
		"hash":             head.Hash(),
		"parentHash":       head.ParentHash,
		"nonce":            head.Nonce,
		"mixHash":          head.MixDigest,
		"sha3Uncles":       head.UncleHash,
		"logsBloom":        head.Bloom,
		"stateRoot":        head.Root,
		"miner":            head.Coinbase,
		"difficulty":       (*hexutil.Big)(head.Difficulty),
		"extraData":        hexutil.Bytes(head.Extra),
		"gasLimit":         hexutil.Uint64(head.GasLimit),
		"gasUsed":          hexutil.Uint64(head.GasUsed),
		"timestamp":        hexutil.Uint64(head.Time),
		"transactionsRoot": head.TxHash,
		"receiptsRoot":     head.ReceiptHash,
	}
	if head.BaseFee != nil {
		result["baseFeePerGas"] = (*hexutil.Big)(head.BaseFee)
	}
	return result
}

// RPCMarshalBlock converts the given block to the RPC output which depends on
// fullTx. If inclTx is true transactions are returned. When fullTx is true the
// returned block contains full transaction details, otherwise it will only
// contain transaction hashes.
// RPCMarshalBlock 将给定的块转换为 RPC 输出，具体取决于 fullTx。
func RPCMarshalBlock(block *types.Block, inclTx bool, fullTx bool, config *params.ChainConfig) map[string]interface{} {
	fields := RPCMarshalHeader(block.Header())
	fields["size"] = hexutil.Uint64(block.Size())

	if inclTx {
		formatTx := func(idx int, tx *types.Transaction) interface{} {
			return tx.Hash()
		}
		if fullTx {
			formatTx = func(idx int, tx *types.Transaction) interface{} {
				return newRPCTransaction(tx, block.Hash(), block.NumberU64(), block.Time(), uint64(idx), block.BaseFee(), config)
			}
		}
		txs := block.Transactions()
		transactions := make([]interface{}, len(txs))
		for i, tx := range txs {
			transactions[i] = formatTx(i, tx)
		}
		fields["transactions"] = transactions
	}
	fields["uncles"] = []common.Hash{}
	return fields
}

// RPCTransaction represents a transaction that will serialize to the RPC
// representation of a transaction.
// RPCTransaction 表示一个交易，将序列化为交易的 RPC 表示。
type RPCTransaction struct {
	BlockHash        *common.Hash      `json:"blockHash"`
	BlockNumber      *hexutil.Big      `json:"blockNumber"`
	From             common.Address    `json:"from"`
	Gas              hexutil.Uint64    `json:"gas"`
	GasPrice         *hexutil.Big      `json:"gasPrice"`
	GasFeeCap        *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	GasTipCap        *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	Hash             common.Hash       `json:"hash"`
	Input            hexutil.Bytes     `json:"input"`
	Nonce            hexutil.Uint64    `json:"nonce"`
	To               *common.Address   `json:"to"`
	TransactionIndex *hexutil.Uint64   `json:"transactionIndex"`
	Value            *hexutil.Big      `json:"value"`
	Type             hexutil.Uint64    `json:"type"`
	Accesses         *types.AccessList `json:"accessList,omitempty"`
	ChainID          *hexutil.Big      `json:"chainId,omitempty"`
	V                *hexutil.Big      `json:"v"`
	R                *hexutil.Big      `json:"r"`
	S                *hexutil.Big      `json:"s"`
	YParity          *hexutil.Uint64   `json:"yParity,omitempty"`
}

// newRPCTransaction returns a transaction that will serialize to the RPC
// representation, with the given location metadata set (if available).
// newRPCTransaction 返回一个将序列化为 RPC 表示的交易。
func newRPCTransaction(tx *types.Transaction, blockHash common.Hash, blockNumber uint64, blockTime uint64, index uint64, baseFee *big.Int, config *params.ChainConfig) *RPCTransaction {
	signer := types.MakeSigner(config, new(big.Int).SetUint64(blockNumber), blockTime)
	from, _ := types.Sender(signer, tx)
	v, r, s := tx.RawSignatureValues()
	result := &RPCTransaction{
		Type:     hexutil.Uint64(tx.Type()),
		From:     from,
		Gas:      hexutil.Uint64(tx.Gas()),
		GasPrice: (*hexutil.Big)(tx.GasPrice()),
		Hash:     tx.Hash(),
		Input:    hexutil.Bytes(tx.Data()),
		Nonce:    hexutil.Uint64(tx.Nonce()),
		To:       tx.To(),
		Value:    (*hexutil.Big)(tx.Value()),
		V:        (*hexutil.Big)(v),
		R:        (*hexutil.Big)(r),
		S:        (*hexutil.Big)(s),
	}
	if blockHash != (common.Hash{}) {
		result.BlockHash = &blockHash
		result.BlockNumber = (*hexutil.Big)(new(big.Int).SetUint64(blockNumber))
		result.TransactionIndex = (*hexutil.Uint64)(&index)
	}
	switch tx.Type() {
	case types.LegacyTxType:
		// if a legacy transaction has an EIP-155 chain id, include it explicitly
		if id := tx.ChainId(); id.Sign() != 0 {
			result.ChainID = (*hexutil.Big)(id)
		}
	case types.AccessListTxType:
		al := tx.AccessList()
		yparity := hexutil.Uint64(v.Sign())
		result.Accesses = &al
		result.ChainID = (*hexutil.Big)(tx.ChainId())
		result.YParity = &yparity
	default:
		al := tx.AccessList()
		yparity := hexutil.Uint64(v.Sign())
		result.Accesses = &al
		result.ChainID = (*hexutil.Big)(tx.ChainId())
		result.YParity = &yparity
		result.GasFeeCap = (*hexutil.Big)(tx.GasFeeCap())
		result.GasTipCap = (*hexutil.Big)(tx.GasTipCap())
		// if the transaction has been mined, compute the effective gas price
		// 如果交易已被挖矿，计算有效的 gas 价格
		if baseFee != nil && blockHash != (common.Hash{}) {
			result.GasPrice = (*hexutil.Big)(effectiveGasPrice(tx, baseFee))
		} else {
			result.GasPrice = (*hexutil.Big)(tx.GasFeeCap())
		}
	}
	return result
}

// effectiveGasPrice computes the transaction gas fee, based on the given basefee value.
//
//	price = min(gasTipCap + baseFee, gasFeeCap)
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	fee := tx.GasTipCap()
	fee = fee.Add(fee, baseFee)
	if tx.GasFeeCapIntCmp(fee) < 0 {
		return tx.GasFeeCap()
	}
	return fee
}

// marshalReceipt marshals a transaction receipt into a JSON object.
// marshalReceipt 将交易收据编组为 JSON 对象。
func marshalReceipt(receipt *types.Receipt, blockHash common.Hash, blockNumber uint64, signer types.Signer, tx *types.Transaction, txIndex int) map[string]interface{} {
	from, _ := types.Sender(signer, tx)

	fields := map[string]interface{}{
		"blockHash":         blockHash,
		"blockNumber":       hexutil.Uint64(blockNumber),
		"transactionHash":   tx.Hash(),
		"transactionIndex":  hexutil.Uint64(txIndex),
		"from":              from,
		"to":                tx.To(),
		"gasUsed":           hexutil.Uint64(receipt.GasUsed),
		"cumulativeGasUsed": hexutil.Uint64(receipt.CumulativeGasUsed),
		"contractAddress":   nil,
		"logs":              receipt.Logs,
		"logsBloom":         receipt.Bloom,
		"type":              hexutil.Uint(tx.Type()),
		"effectiveGasPrice": (*hexutil.Big)(receipt.EffectiveGasPrice),
		"status":            hexutil.Uint(receipt.Status),
	}
	if receipt.Logs == nil {
		fields["logs"] = []*types.Log{}
	}
	// If the ContractAddress is 20 0x0 bytes, assume it is not a contract creation
	if receipt.ContractAddress != (common.Address{}) {
		fields["contractAddress"] = receipt.ContractAddress
	}
	return fields
}
