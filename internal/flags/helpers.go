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
	"fmt"
	"os"
	"strings"

	"github.com/sunyihoo/forknode/internal/version"
	"github.com/urfave/cli/v2"
)

// NewApp creates an app with sane defaults.
// NewApp 创建一个带有合理默认值的应用。
func NewApp(usage string) *cli.App {
	git, _ := version.VCS()
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Version = version.WithCommit(git.Commit, git.Date)
	app.Usage = usage
	app.Copyright = "Copyright 2024-2026 The forknode Authors"
	app.Before = func(ctx *cli.Context) error {
		MigrateEnvVars(ctx)
		return nil
	}
	return app
}

// Merge merges the given flag slices.
func Merge(groups ...[]cli.Flag) []cli.Flag {
	var ret []cli.Flag
	for _, group := range groups {
		ret = append(ret, group...)
	}
	return ret
}

// CheckExclusive verifies that only a single instance of the provided flags
// was set by the user.
// CheckExclusive 检查给定的标志中最多只设置了一个。
func CheckExclusive(ctx *cli.Context, flags ...cli.Flag) error {
	var set []string
	for _, flag := range flags {
		name := flag.Names()[0]
		if ctx.IsSet(name) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		return fmt.Errorf("flags %s can't be used at the same time", strings.Join(set, ", "))
	}
	return nil
}

// MigrateEnvVars sets flags from FORKNODE_ prefixed environment variables
// that were not given on the command line. The variable of --fork-url is
// FORKNODE_FORK_URL.
// MigrateEnvVars 用 FORKNODE_ 前缀的环境变量设置命令行中未给出的标志。
func MigrateEnvVars(ctx *cli.Context) {
	for _, flag := range ctx.App.Flags {
		name := flag.Names()[0]
		if ctx.IsSet(name) {
			continue
		}
		key := "FORKNODE_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
		if value, ok := os.LookupEnv(key); ok {
			if err := ctx.Set(name, value); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid value %q in %s: %v\n", value, key, err)
			}
		}
	}
}
