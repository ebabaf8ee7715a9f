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

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/node"
)

func TestDecodeConfig(t *testing.T) {
	input := `
[Node]
HTTPPort = 9545
HTTPCors = ["http://localhost:3000"]
ChainID = 5
BlockTime = 2000000000

[Node.Fork]
URL = "http://localhost:8545"
BlockNumber = 17000000
Retries = 2
CacheEngine = "pebble"
`
	cfg := forknodeConfig{Node: node.DefaultConfig}
	require.NoError(t, decodeConfig(strings.NewReader(input), &cfg))

	assert.Equal(t, 9545, cfg.Node.HTTPPort)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Node.HTTPCors)
	assert.Equal(t, uint64(5), cfg.Node.ChainID)
	assert.Equal(t, 2*time.Second, cfg.Node.BlockTime)
	assert.Equal(t, node.DefaultHTTPHost, cfg.Node.HTTPHost, "unset fields keep their default")

	require.NotNil(t, cfg.Node.Fork)
	assert.Equal(t, "http://localhost:8545", cfg.Node.Fork.URL)
	require.NotNil(t, cfg.Node.Fork.BlockNumber)
	assert.Equal(t, uint64(17000000), *cfg.Node.Fork.BlockNumber)
	assert.Equal(t, 2, cfg.Node.Fork.Retries)
	assert.Equal(t, "pebble", cfg.Node.Fork.CacheEngine)
}

func TestDecodeConfigUnknownField(t *testing.T) {
	cfg := forknodeConfig{Node: node.DefaultConfig}
	err := decodeConfig(strings.NewReader("[Node]\nHTTPPortt = 1\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'HTTPPortt' is not defined in node.Config")
}
