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
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/sunyihoo/forknode/core/backend"
	"github.com/sunyihoo/forknode/core/state"
)

// devAccounts are the funded accounts the node signs eth_sendTransaction
// requests for. Their keys are derived from the account index, so every
// node offers the same accounts.
// devAccounts 是节点为 eth_sendTransaction 签名的已注资账户，密钥由账户序号派生。
type devAccounts struct {
	addrs []common.Address
	keys  map[common.Address]*ecdsa.PrivateKey
}

// DevKey returns the private key of development account i.
func DevKey(i int) (*ecdsa.PrivateKey, error) {
	seed := crypto.Keccak256([]byte(fmt.Sprintf("forknode development account %d", i)))
	return crypto.ToECDSA(seed)
}

func newDevAccounts(n int) (*devAccounts, error) {
	accs := &devAccounts{keys: make(map[common.Address]*ecdsa.PrivateKey, n)}
	for i := 0; i < n; i++ {
		key, err := DevKey(i)
		if err != nil {
			return nil, fmt.Errorf("development account %d: %w", i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		accs.addrs = append(accs.addrs, addr)
		accs.keys[addr] = key
	}
	return accs, nil
}

// fund credits every account with balance ether, keeping its nonce and code.
func (a *devAccounts) fund(b *backend.Backend, balance uint64) {
	value := new(uint256.Int).Mul(uint256.NewInt(balance), uint256.NewInt(params.Ether))
	for i, addr := range a.addrs {
		info, err := b.Basic(addr)
		if err != nil || info == nil {
			info = state.NewAccountInfo(nil, 0, nil)
		} else {
			info = info.Copy()
		}
		info.Balance = new(uint256.Int).Set(value)
		b.InsertAccountInfo(addr, info)
		log.Info("Funded development account", "index", i, "address", addr, "balance", balance)
	}
}

func (a *devAccounts) addresses() []common.Address {
	return append([]common.Address(nil), a.addrs...)
}

func (a *devAccounts) sign(addr common.Address, tx *types.Transaction, signer types.Signer) (*types.Transaction, error) {
	key, ok := a.keys[addr]
	if !ok {
		return nil, fmt.Errorf("unknown account %v", addr)
	}
	return types.SignTx(tx, signer, key)
}
