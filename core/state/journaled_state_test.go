// Copyright 2016 The go-ethereum Authors
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

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestJournaledStateCheckpoint(t *testing.T) {
	remote := newMapDB()
	remote.setAccount(addrA, NewAccountInfo(uint256.NewInt(5), 1, nil))

	s := NewJournaledState()
	require.NoError(t, s.SetBalance(addrA, uint256.NewInt(6), remote))

	cp := s.Checkpoint()
	require.NoError(t, s.SetBalance(addrA, uint256.NewInt(7), remote))
	require.NoError(t, s.SetNonce(addrA, 9, remote))
	require.NoError(t, s.SetStorage(addrA, slot1, common.HexToHash("0x01"), remote))
	require.NoError(t, s.SetCode(addrB, []byte{0x01}, remote))
	s.AddLog(&types.Log{Address: addrA})

	s.RevertToCheckpoint(cp)

	acc := s.Account(addrA)
	require.Equal(t, uint64(6), acc.Info.Balance.Uint64())
	require.Equal(t, uint64(1), acc.Info.Nonce)
	require.NotContains(t, acc.Storage, slot1)
	require.Nil(t, s.Account(addrB), "account loaded after the checkpoint must be unloaded")
	require.Empty(t, s.Logs)
	require.True(t, acc.Touched())
}

func TestJournaledStateCopy(t *testing.T) {
	s := NewJournaledState()
	require.NoError(t, s.SetBalance(addrA, uint256.NewInt(1), EmptyDB{}))
	s.AddLog(&types.Log{Address: addrA, Index: 0})

	cpy := s.Copy()
	require.NoError(t, cpy.SetBalance(addrA, uint256.NewInt(2), EmptyDB{}))
	cpy.Logs[0].Index = 5

	require.Equal(t, uint64(1), s.Account(addrA).Info.Balance.Uint64())
	require.Equal(t, uint(0), s.Logs[0].Index)
}

func TestJournaledStateFinalize(t *testing.T) {
	remote := newMapDB()
	remote.storage[addrA] = map[common.Hash]common.Hash{slot1: common.HexToHash("0x11")}

	s := NewJournaledState()
	value, err := s.LoadStorage(addrA, slot1, remote)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, value, "storage of a missing account reads as zero")

	require.NoError(t, s.SetStorage(addrB, slot2, common.HexToHash("0x22"), remote))
	_, err = s.LoadAccount(common.HexToAddress("0xcccc"), remote)
	require.NoError(t, err)

	changes, logs := s.Finalize()
	require.Len(t, changes, 1)
	require.Contains(t, changes, addrB)
	require.Empty(t, logs)
	require.Empty(t, s.State)
}
