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
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DebugAPI is the collection of debugging APIs exposed over the private
// debugging endpoint.
// DebugAPI 是通过私有调试端点暴露的调试 API 集合。
type DebugAPI struct {
	b Backend
}

// NewDebugAPI creates a new instance of DebugAPI.
func NewDebugAPI(b Backend) *DebugAPI {
	return &DebugAPI{b: b}
}

// PrintBlock retrieves a block and returns its pretty printed form.
// PrintBlock 检索一个区块并返回其美化打印形式。
func (api *DebugAPI) PrintBlock(ctx context.Context, number uint64) (string, error) {
	block := api.b.Chain().GetBlockByNumber(number)
	if block == nil {
		return "", &apiError{code: errCodeNotFound, err: fmt.Errorf("block #%d not found", number)}
	}
	return spew.Sdump(block), nil
}

// ForkStatus returns the fork state of the node, nil when not forking.
func (api *DebugAPI) ForkStatus(ctx context.Context) (map[string]interface{}, error) {
	sb := api.b.StateBackend()
	id, ok := sb.ActiveForkID()
	if !ok {
		return nil, nil
	}
	status, err := sb.ForkStatus(id)
	if err != nil {
		return nil, translateError(err)
	}
	launched, _ := sb.LaunchedWithFork()
	return map[string]interface{}{
		"id":         uint64(status.ID),
		"url":        status.URL,
		"block":      hexutil.Uint64(status.BlockNumber),
		"persistent": sb.PersistentAccounts(),
		"cheatcodes": sb.CheatcodeAccounts(),
		"launchedOn": uint64(launched),
		"forkedMode": sb.IsForkedMode(),
	}, nil
}
