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

// forknode is a local Ethereum development node that can fork the state of
// a remote chain.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/forknode/cmd/utils"
	"github.com/sunyihoo/forknode/internal/debug"
	"github.com/sunyihoo/forknode/internal/flags"
	"github.com/sunyihoo/forknode/node"
	"github.com/urfave/cli/v2"
)

const clientIdentifier = "forknode" // Client identifier reported by web3_clientVersion

var app = flags.NewApp("a local Ethereum development node that can fork a remote chain")

func init() {
	app.Name = clientIdentifier
	app.Action = forknode
	app.Commands = []*cli.Command{
		dumpConfigCommand,
		cacheCommand,
	}
	app.Flags = flags.Merge(utils.NodeFlags, []cli.Flag{configFileFlag}, debug.Flags)

	app.Before = func(ctx *cli.Context) error {
		flags.MigrateEnvVars(ctx)
		return debug.Setup(ctx)
	}
	app.After = func(ctx *cli.Context) error {
		debug.Exit()
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// forknode is the main entry point into the system if no special subcommand is run.
// It creates a node, prints the development accounts and blocks until the node
// is shut down.
// forknode 是未运行子命令时的主入口：创建节点，打印开发账户并阻塞直到节点关闭。
func forknode(ctx *cli.Context) error {
	if args := ctx.Args().Slice(); len(args) > 0 {
		return fmt.Errorf("invalid command: %s", args[0])
	}
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Node.Fork != nil {
		log.Info("Starting forknode on a fork", "url", cfg.Node.Fork.URL)
	} else {
		log.Info("Starting forknode on a fresh local chain")
	}
	stack, err := node.New(ctx.Context, &cfg.Node)
	if err != nil {
		return err
	}
	printBanner(stack)

	done, err := utils.StartNode(stack)
	if err != nil {
		stack.Close()
		return err
	}
	<-done
	return nil
}

// printBanner lists the development accounts and their private keys.
func printBanner(stack *node.Node) {
	var b strings.Builder
	b.WriteString("\nAvailable Accounts\n==================\n")
	for i, addr := range stack.Accounts() {
		fmt.Fprintf(&b, "(%d) %s (%d ETH)\n", i, addr.Hex(), stack.Config().Balance)
	}
	b.WriteString("\nPrivate Keys\n==================\n")
	for i := range stack.Accounts() {
		key, err := node.DevKey(i)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "(%d) %s\n", i, hexutil.Encode(crypto.FromECDSA(key)))
	}
	chainConfig := stack.ChainConfig()
	fmt.Fprintf(&b, "\nChain ID\n==================\n%v\n\n", chainConfig.ChainID)
	fmt.Print(b.String())
}
