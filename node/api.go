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
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/forknode/internal/debug"
	"github.com/sunyihoo/forknode/internal/version"
)

// apis returns the collection of built-in RPC APIs.
func (n *Node) apis() []rpc.API {
	return []rpc.API{
		{
			Namespace: "web3",
			Service:   &web3API{n},
		}, {
			Namespace: "net",
			Service:   &netAPI{n},
		}, {
			Namespace: "debug",
			Service:   debug.Handler,
		},
	}
}

// web3API offers helper utils
type web3API struct {
	stack *Node
}

// ClientVersion returns the node name
func (s *web3API) ClientVersion() string {
	return version.ClientName("forknode")
}

// Sha3 applies the ethereum sha3 implementation on the input.
// It assumes the input is hex encoded.
// Sha3 对输入应用以太坊 sha3 实现。它假设输入是十六进制编码的。
func (s *web3API) Sha3(input hexutil.Bytes) hexutil.Bytes {
	return crypto.Keccak256(input)
}

// netAPI offers network related RPC methods.
type netAPI struct {
	stack *Node
}

// Listening reports whether the node accepts connections, always true.
func (s *netAPI) Listening() bool {
	return true
}

// PeerCount returns the number of connected peers, the node has none.
func (s *netAPI) PeerCount() hexutil.Uint {
	return 0
}

// Version returns the network id, the chain id of the local chain.
func (s *netAPI) Version() string {
	return fmt.Sprint(s.stack.chainConfig.ChainID)
}
