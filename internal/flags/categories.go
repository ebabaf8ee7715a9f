// Copyright 2022 The go-ethereum Authors
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

package flags

import "github.com/urfave/cli/v2"

const (
	// ForkCategory groups the flags of the remote fork and its cache.
	// ForkCategory 是远程分叉及其缓存相关标志的类别。
	ForkCategory = "FORK"
	// ChainCategory 是本地链相关标志的类别。
	ChainCategory = "LOCAL CHAIN"
	// AccountCategory 是开发账户相关标志的类别。
	AccountCategory = "ACCOUNT"
	// APICategory 是 RPC 服务相关标志的类别。
	APICategory     = "API"
	MinerCategory   = "MINER"
	LoggingCategory = "LOGGING AND DEBUGGING"
	MiscCategory    = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
