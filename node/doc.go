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

/*
Package node sets up a forking development node.

A Node owns the state backend, optionally launched on a fork of a remote chain,
the local header chain built on top of it, the miner sealing submitted
transactions, the subscription system and the JSON-RPC server. The server
answers HTTP requests and accepts WebSocket upgrades on the same port.

Lifecycle of a node:

	New -> Start -> Close

New creates every component and funds the development accounts. Start opens
the listener and starts interval mining. Close stops serving, stops the miner
and flushes the on-disk response caches of all forks.

# Data directory

If DataDir is set, the node locks it against concurrent use and keeps the
fork response cache underneath it unless another cache directory is
configured. An empty DataDir keeps the node ephemeral.
*/
package node
