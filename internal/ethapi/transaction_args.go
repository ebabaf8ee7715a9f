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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sunyihoo/forknode/core/backend"
)

// defaultTip is the priority fee of transactions that do not set one.
var defaultTip = big.NewInt(params.GWei)

// TransactionArgs represents the arguments to construct a new transaction
// or a message call.
// TransactionArgs 表示构造新交易或消息调用的参数。
type TransactionArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`

	// We accept "data" and "input" for backwards-compatibility reasons.
	// "input" is the newer name and should be preferred by clients.
	// 出于向后兼容的原因，接受 "data" 和 "input"。
	Data  *hexutil.Bytes `json:"data"`
	Input *hexutil.Bytes `json:"input"`

	ChainID *hexutil.Big `json:"chainId,omitempty"`
}

// from retrieves the transaction sender address.
func (args *TransactionArgs) from() common.Address {
	if args.From == nil {
		return common.Address{}
	}
	return *args.From
}

// data retrieves the transaction calldata. Input field is preferred.
func (args *TransactionArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

func (args *TransactionArgs) value() *big.Int {
	if args.Value == nil {
		return new(big.Int)
	}
	return args.Value.ToInt()
}

// validate checks the fields that do not depend on chain state.
func (args *TransactionArgs) validate() error {
	if args.Data != nil && args.Input != nil && !bytes.Equal(*args.Data, *args.Input) {
		return errors.New(`both "data" and "input" are set and not equal. Please use "input" to pass transaction call data`)
	}
	if args.GasPrice != nil && (args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil) {
		return errors.New("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	if args.MaxFeePerGas != nil && args.MaxPriorityFeePerGas != nil &&
		args.MaxFeePerGas.ToInt().Cmp(args.MaxPriorityFeePerGas.ToInt()) < 0 {
		return fmt.Errorf("maxFeePerGas (%v) < maxPriorityFeePerGas (%v)", args.MaxFeePerGas, args.MaxPriorityFeePerGas)
	}
	return nil
}

// ToMessage converts the arguments to the message of a call. A call without
// fee fields pays nothing, the gas limit defaults to the gas cap.
// ToMessage 将参数转换为调用消息。
func (args *TransactionArgs) ToMessage(globalGasCap uint64, baseFee *big.Int) (*backend.Message, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	gas := globalGasCap
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	if globalGasCap != 0 && globalGasCap < gas {
		log.Warn("Caller gas above allowance, capping", "requested", gas, "cap", globalGasCap)
		gas = globalGasCap
	}
	var (
		gasPrice  = new(big.Int)
		gasFeeCap = new(big.Int)
		gasTipCap = new(big.Int)
	)
	switch {
	case args.GasPrice != nil:
		gasPrice = args.GasPrice.ToInt()
		gasFeeCap, gasTipCap = gasPrice, gasPrice
	case args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil:
		if args.MaxFeePerGas != nil {
			gasFeeCap = args.MaxFeePerGas.ToInt()
		}
		if args.MaxPriorityFeePerGas != nil {
			gasTipCap = args.MaxPriorityFeePerGas.ToInt()
		}
		// Backfill the legacy gasPrice for EVM execution, unless we're all zeroes
		// 为 EVM 执行回填遗留 gasPrice，除非全部为零
		if gasFeeCap.BitLen() > 0 || gasTipCap.BitLen() > 0 {
			gasPrice = new(big.Int).Set(gasFeeCap)
			if baseFee != nil {
				gasPrice = gasPrice.Add(gasTipCap, baseFee)
				if gasPrice.Cmp(gasFeeCap) > 0 {
					gasPrice = gasFeeCap
				}
			}
		}
	}
	var nonce uint64
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}
	return &backend.Message{
		From:           args.from(),
		To:             args.To,
		Nonce:          nonce,
		Value:          args.value(),
		GasLimit:       gas,
		GasPrice:       new(big.Int).Set(gasPrice),
		GasFeeCap:      new(big.Int).Set(gasFeeCap),
		GasTipCap:      new(big.Int).Set(gasTipCap),
		Data:           args.data(),
		SkipNonceCheck: true,
	}, nil
}

// setDefaults fills in the fields a sent transaction needs: nonce, gas,
// fees and chain id.
// setDefaults 为发送的交易补齐 nonce、gas、费用和链 ID。
func (args *TransactionArgs) setDefaults(ctx context.Context, api *EthereumAPI) error {
	if err := args.validate(); err != nil {
		return err
	}
	head := api.b.Chain().CurrentHeader()
	chainID := api.b.ChainConfig().ChainID
	if args.ChainID != nil {
		if have := args.ChainID.ToInt(); have.Cmp(chainID) != 0 {
			return fmt.Errorf("chainId does not match node's (have=%v, want=%v)", have, chainID)
		}
	} else {
		args.ChainID = (*hexutil.Big)(new(big.Int).Set(chainID))
	}
	if args.GasPrice == nil {
		if head.BaseFee == nil {
			args.GasPrice = (*hexutil.Big)(new(big.Int).Set(defaultTip))
		} else {
			if args.MaxPriorityFeePerGas == nil {
				args.MaxPriorityFeePerGas = (*hexutil.Big)(new(big.Int).Set(defaultTip))
			}
			if args.MaxFeePerGas == nil {
				fee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
				fee.Add(fee, args.MaxPriorityFeePerGas.ToInt())
				args.MaxFeePerGas = (*hexutil.Big)(fee)
			}
		}
	}
	if args.Nonce == nil {
		nonce, err := api.pendingNonce(args.from())
		if err != nil {
			return err
		}
		args.Nonce = (*hexutil.Uint64)(&nonce)
	}
	if args.Gas == nil {
		estimate, err := api.estimate(ctx, *args)
		if err != nil {
			return err
		}
		args.Gas = &estimate
	}
	return nil
}

// ToTransaction converts the arguments to an unsigned transaction. The
// defaults must have been set.
// ToTransaction 将参数转换为未签名的交易。
func (args *TransactionArgs) ToTransaction() *types.Transaction {
	if args.GasPrice != nil {
		return types.NewTx(&types.LegacyTx{
			Nonce:    uint64(*args.Nonce),
			GasPrice: args.GasPrice.ToInt(),
			Gas:      uint64(*args.Gas),
			To:       args.To,
			Value:    args.value(),
			Data:     args.data(),
		})
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   args.ChainID.ToInt(),
		Nonce:     uint64(*args.Nonce),
		GasTipCap: args.MaxPriorityFeePerGas.ToInt(),
		GasFeeCap: args.MaxFeePerGas.ToInt(),
		Gas:       uint64(*args.Gas),
		To:        args.To,
		Value:     args.value(),
		Data:      args.data(),
	})
}
