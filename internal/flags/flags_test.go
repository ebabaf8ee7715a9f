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

package flags

import (
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathExpansion(t *testing.T) {
	home := HomeDir()
	tests := map[string]string{
		"/home/someuser/tmp": "/home/someuser/tmp",
		"~/tmp":              home + "/tmp",
		"~thisOtherUser/b/":  "~thisOtherUser/b",
		"$DDDXXX/a/b":        "/tmp/a/b",
		"/a/b/":              "/a/b",
	}
	os.Setenv("DDDXXX", "/tmp")
	defer os.Unsetenv("DDDXXX")
	for test, expected := range tests {
		assert.Equal(t, expected, ExpandPath(test), test)
	}
}

func TestParseAmount(t *testing.T) {
	gwei := big.NewInt(1_000_000_000)
	ether, _ := new(big.Int).SetString("1000000000000000000", 10)
	tests := []struct {
		input string
		want  *big.Int
	}{
		{"0", new(big.Int)},
		{"12345", big.NewInt(12345)},
		{"0x10", big.NewInt(16)},
		{"7wei", big.NewInt(7)},
		{"1gwei", gwei},
		{"1 Ether", ether},
		{"3gwei", new(big.Int).Mul(big.NewInt(3), gwei)},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, 0, tt.want.Cmp(got), "%s: got %v", tt.input, got)
	}
	for _, bad := range []string{"", "ether", "ten", "-1", "0x1zz"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
	max := "0x" + "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	_, err := ParseAmount(max)
	require.NoError(t, err)
	_, err = ParseAmount(max + "gwei")
	assert.Error(t, err)
}
