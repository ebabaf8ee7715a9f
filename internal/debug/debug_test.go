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

package debug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggingToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "forknode.log")
	defer log.SetDefault(log.NewLogger(log.DiscardHandler()))

	require.NoError(t, SetupLogging(LogConfig{Verbosity: 3, Format: "json", File: file}, os.Stderr))
	log.Info("Fork created", "id", 7)
	log.Debug("Hidden below verbosity")
	Exit()

	blob, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"msg":"Fork created"`)
	assert.NotContains(t, string(blob), "Hidden below verbosity")
}

func TestSetupLoggingRejectsUnknownFormat(t *testing.T) {
	err := SetupLogging(LogConfig{Verbosity: 3, Format: "xml"}, os.Stderr)
	assert.ErrorContains(t, err, "unknown log format")
}

func TestStacksFilter(t *testing.T) {
	filter := "testing"
	assert.Contains(t, Handler.Stacks(&filter), "testing.tRunner")

	filter = "!testing"
	assert.NotContains(t, Handler.Stacks(&filter), "testing.tRunner")

	filter = "(("
	assert.Empty(t, Handler.Stacks(&filter))
}

func TestCPUProfileLifecycle(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cpu.prof")
	assert.Error(t, Handler.StopCPUProfile())

	require.NoError(t, Handler.StartCPUProfile(file))
	assert.Error(t, Handler.StartCPUProfile(file))
	require.NoError(t, Handler.StopCPUProfile())

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
