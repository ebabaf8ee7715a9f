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
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/params"
	"github.com/urfave/cli/v2"
)

// DirectoryString is a flag value that expands to an absolute path when set.
// DirectoryString 是一个在设置时会展开为绝对路径的标志值。
type DirectoryString string

func (s *DirectoryString) String() string { return string(*s) }

func (s *DirectoryString) Set(value string) error {
	*s = DirectoryString(ExpandPath(value))
	return nil
}

var (
	_ cli.Flag              = (*DirectoryFlag)(nil)
	_ cli.RequiredFlag      = (*DirectoryFlag)(nil)
	_ cli.VisibleFlag       = (*DirectoryFlag)(nil)
	_ cli.DocGenerationFlag = (*DirectoryFlag)(nil)
	_ cli.CategorizableFlag = (*DirectoryFlag)(nil)
)

// DirectoryFlag is a path flag, e.g. ~/.forknode expands to /home/user/.forknode.
// DirectoryFlag 是一个路径标志，例如 ~/.forknode 会展开为 /home/user/.forknode。
type DirectoryFlag struct {
	Name string

	Category    string
	DefaultText string
	Usage       string

	Required   bool
	Hidden     bool
	HasBeenSet bool

	Value DirectoryString

	Aliases []string
	EnvVars []string
}

func (f *DirectoryFlag) Names() []string { return append([]string{f.Name}, f.Aliases...) }
func (f *DirectoryFlag) IsSet() bool     { return f.HasBeenSet }
func (f *DirectoryFlag) String() string  { return cli.FlagStringer(f) }

// Apply reads the flag from the environment and registers it on set.
func (f *DirectoryFlag) Apply(set *flag.FlagSet) error {
	if value, ok := lookupEnv(f.EnvVars); ok {
		f.Value.Set(value)
		f.HasBeenSet = true
	}
	for _, name := range f.Names() {
		set.Var(&f.Value, strings.TrimSpace(name), f.Usage)
	}
	return nil
}

func (f *DirectoryFlag) IsRequired() bool     { return f.Required }
func (f *DirectoryFlag) IsVisible() bool      { return !f.Hidden }
func (f *DirectoryFlag) GetCategory() string  { return f.Category }
func (f *DirectoryFlag) TakesValue() bool     { return true }
func (f *DirectoryFlag) GetUsage() string     { return f.Usage }
func (f *DirectoryFlag) GetValue() string     { return f.Value.String() }
func (f *DirectoryFlag) GetEnvVars() []string { return f.EnvVars }
func (f *DirectoryFlag) GetDefaultText() string {
	if f.DefaultText != "" {
		return f.DefaultText
	}
	return f.GetValue()
}

var (
	_ cli.Flag              = (*AmountFlag)(nil)
	_ cli.RequiredFlag      = (*AmountFlag)(nil)
	_ cli.VisibleFlag       = (*AmountFlag)(nil)
	_ cli.DocGenerationFlag = (*AmountFlag)(nil)
	_ cli.CategorizableFlag = (*AmountFlag)(nil)
)

// AmountFlag accepts a 256 bit wei amount in decimal or hexadecimal syntax,
// optionally followed by a unit: "1gwei", "10ether", "0x10".
// AmountFlag 接受十进制或十六进制的 256 位 wei 数额，可带单位后缀。
type AmountFlag struct {
	Name string

	Category    string
	DefaultText string
	Usage       string

	Required   bool
	Hidden     bool
	HasBeenSet bool

	Value *big.Int

	Aliases []string
	EnvVars []string
}

func (f *AmountFlag) Names() []string { return append([]string{f.Name}, f.Aliases...) }
func (f *AmountFlag) IsSet() bool     { return f.HasBeenSet }
func (f *AmountFlag) String() string  { return cli.FlagStringer(f) }

func (f *AmountFlag) Apply(set *flag.FlagSet) error {
	if f.Value == nil {
		f.Value = new(big.Int)
	}
	if value, ok := lookupEnv(f.EnvVars); ok {
		if err := (*amountValue)(f.Value).Set(value); err != nil {
			return fmt.Errorf("could not parse %q from environment for flag %s: %v", value, f.Name, err)
		}
		f.HasBeenSet = true
	}
	for _, name := range f.Names() {
		set.Var((*amountValue)(f.Value), strings.TrimSpace(name), f.Usage)
	}
	return nil
}

func (f *AmountFlag) IsRequired() bool     { return f.Required }
func (f *AmountFlag) IsVisible() bool      { return !f.Hidden }
func (f *AmountFlag) GetCategory() string  { return f.Category }
func (f *AmountFlag) TakesValue() bool     { return true }
func (f *AmountFlag) GetUsage() string     { return f.Usage }
func (f *AmountFlag) GetValue() string     { return (*amountValue)(f.Value).String() }
func (f *AmountFlag) GetEnvVars() []string { return f.EnvVars }
func (f *AmountFlag) GetDefaultText() string {
	if f.DefaultText != "" {
		return f.DefaultText
	}
	return f.GetValue()
}

var units = []struct {
	suffix string
	wei    int64
}{
	{"ether", params.Ether},
	{"gwei", params.GWei},
	{"wei", params.Wei},
}

// amountValue turns *big.Int into a flag.Value.
type amountValue big.Int

func (v *amountValue) String() string {
	if v == nil {
		return ""
	}
	return (*big.Int)(v).String()
}

func (v *amountValue) Set(s string) error {
	amount, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*v = amountValue(*amount)
	return nil
}

// ParseAmount parses a wei amount with an optional unit suffix.
// ParseAmount 解析可带单位后缀的 wei 数额。
func ParseAmount(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	multiplier := big.NewInt(1)
	for _, unit := range units {
		if strings.HasSuffix(s, unit.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			multiplier.SetInt64(unit.wei)
			break
		}
	}
	value, ok := math.ParseBig256(s)
	if !ok || s == "" || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	value.Mul(value, multiplier)
	if value.BitLen() > 256 {
		return nil, fmt.Errorf("amount %q overflows 256 bits", s)
	}
	return value, nil
}

// GlobalAmount returns the value of an AmountFlag.
func GlobalAmount(ctx *cli.Context, name string) *big.Int {
	val := ctx.Generic(name)
	if val == nil {
		return nil
	}
	return (*big.Int)(val.(*amountValue))
}

func lookupEnv(vars []string) (string, bool) {
	for _, envVar := range vars {
		if value, found := syscall.Getenv(strings.TrimSpace(envVar)); found {
			return value, true
		}
	}
	return "", false
}

// ExpandPath replaces a leading tilde with the home directory, expands
// environment variables and cleans the result. ~someuser/tmp is not expanded.
// ExpandPath 将开头的波浪号替换为主目录，展开环境变量并清理路径。
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		if home := HomeDir(); home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Clean(os.ExpandEnv(p))
}

// HomeDir returns the home directory of the current user.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
