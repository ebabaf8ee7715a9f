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
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/ethereum/go-ethereum/rpc"
)

const (
	DefaultHTTPHost = "127.0.0.1" // Default host interface for the HTTP RPC server
	DefaultHTTPPort = 8545        // Default TCP port for the HTTP RPC server

	DefaultChainID  = 31337      // Chain id of a node that does not fork
	DefaultGasLimit = 30_000_000 // Gas limit of local blocks
	DefaultAccounts = 10         // Number of funded development accounts
	DefaultBalance  = 10_000     // Balance of a development account in ether
	DefaultGasCap   = 50_000_000 // Gas limit of eth_call without a gas field
)

// DefaultConfig contains reasonable default settings.
// DefaultConfig 包含合理的默认设置。
var DefaultConfig = Config{
	HTTPHost:     DefaultHTTPHost,
	HTTPPort:     DefaultHTTPPort,
	HTTPCors:     []string{"*"},
	WSEnabled:    true,
	HTTPTimeouts: rpc.DefaultHTTPTimeouts,
	GasLimit:     DefaultGasLimit,
	Accounts:     DefaultAccounts,
	Balance:      DefaultBalance,
	RPCGasCap:    DefaultGasCap,
}

// DefaultDataDir is the default data directory to use for the fork response
// cache and other persistence requirements.
// DefaultDataDir 是用于分叉响应缓存和其他持久化需求的默认数据目录。
func DefaultDataDir() string {
	home := homeDir()
	if home == "" {
		// As we cannot guess a stable location, return empty and handle later
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Forknode")
	case "windows":
		if appdata := os.Getenv("LOCALAPPDATA"); appdata != "" {
			return filepath.Join(appdata, "Forknode")
		}
		return filepath.Join(home, "AppData", "Roaming", "Forknode")
	default:
		return filepath.Join(home, ".forknode")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
