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

// Package utils contains internal helper functions for forknode commands.
package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/sunyihoo/forknode/internal/flags"
	"github.com/sunyihoo/forknode/node"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// General settings
	DataDirFlag = &flags.DirectoryFlag{
		Name:     "datadir",
		Usage:    "Data directory holding the fork response cache",
		Value:    flags.DirectoryString(node.DefaultDataDir()),
		Category: flags.MiscCategory,
	}
	EphemeralFlag = &cli.BoolFlag{
		Name:     "ephemeral",
		Usage:    "Keep nothing on disk, ignoring --datadir",
		Category: flags.MiscCategory,
	}

	// Fork settings
	ForkURLFlag = &cli.StringFlag{
		Name:     "fork-url",
		Aliases:  []string{"f", "rpc-url"},
		Usage:    "Fetch state over a remote endpoint instead of starting from an empty state",
		Category: flags.ForkCategory,
	}
	ForkBlockNumberFlag = &cli.Uint64Flag{
		Name:     "fork-block-number",
		Usage:    "Fetch state from a specific block number over a remote endpoint (default: latest)",
		Category: flags.ForkCategory,
	}
	ForkRetryBackoffFlag = &cli.DurationFlag{
		Name:     "fork-retry-backoff",
		Usage:    "Initial retry backoff on encountering errors",
		Value:    forkdb.DefaultConfig.InitialBackoff,
		Category: flags.ForkCategory,
	}
	ForkRetriesFlag = &cli.IntFlag{
		Name:     "fork-retries",
		Usage:    "Number of retry requests for spurious networks (timed out requests)",
		Value:    forkdb.DefaultConfig.Retries,
		Category: flags.ForkCategory,
	}
	ForkTimeoutFlag = &cli.DurationFlag{
		Name:     "fork-timeout",
		Usage:    "Timeout of a single request to the fork endpoint",
		Value:    forkdb.DefaultConfig.Timeout,
		Category: flags.ForkCategory,
	}
	ComputeUnitsPerSecondFlag = &cli.Uint64Flag{
		Name:     "compute-units-per-second",
		Usage:    "Number of assumed available compute units per second for this provider",
		Value:    forkdb.DefaultConfig.ComputeUnitsPerSecond,
		Category: flags.ForkCategory,
	}
	NoRateLimitFlag = &cli.BoolFlag{
		Name:     "no-rate-limit",
		Aliases:  []string{"no-rpc-rate-limit"},
		Usage:    "Disable rate limiting for this node's provider",
		Category: flags.ForkCategory,
	}
	NoStorageCachingFlag = &cli.BoolFlag{
		Name:     "no-storage-caching",
		Usage:    "Explicitly disables the use of RPC caching. All storage slots are read entirely from the endpoint",
		Category: flags.ForkCategory,
	}
	CacheDirFlag = &flags.DirectoryFlag{
		Name:     "cache.dir",
		Usage:    "Root directory of the fork response cache (default: <datadir>/cache)",
		Category: flags.ForkCategory,
	}
	CacheEngineFlag = &cli.StringFlag{
		Name:     "cache.engine",
		Usage:    "Engine of the fork response cache (fastcache, pebble, leveldb, memory)",
		Value:    forkdb.DefaultConfig.CacheEngine,
		Category: flags.ForkCategory,
	}
	CacheSizeFlag = &cli.IntFlag{
		Name:     "cache.size",
		Usage:    "Megabytes of memory the fork response cache may use",
		Value:    forkdb.DefaultConfig.CacheSize,
		Category: flags.ForkCategory,
	}

	// Local chain settings
	ChainIDFlag = &cli.Uint64Flag{
		Name:     "chain-id",
		Usage:    "The chain ID (default: the chain id of the fork, or 31337)",
		Category: flags.ChainCategory,
	}
	GasLimitFlag = &cli.Uint64Flag{
		Name:     "gas-limit",
		Usage:    "The block gas limit",
		Value:    node.DefaultGasLimit,
		Category: flags.ChainCategory,
	}
	BaseFeeFlag = &flags.AmountFlag{
		Name:     "base-fee",
		Aliases:  []string{"block-base-fee-per-gas"},
		Usage:    "The base fee of the genesis block, e.g. 1gwei",
		Category: flags.ChainCategory,
	}
	GenesisFlag = &cli.PathFlag{
		Name:     "genesis",
		Usage:    "JSON file of accounts allocated at start",
		Category: flags.ChainCategory,
	}
	RPCGasCapFlag = &cli.Uint64Flag{
		Name:     "gas-cap",
		Usage:    "Gas limit of calls that do not set one",
		Value:    node.DefaultGasCap,
		Category: flags.ChainCategory,
	}

	// Miner settings
	BlockTimeFlag = &cli.DurationFlag{
		Name:     "block-time",
		Aliases:  []string{"b"},
		Usage:    "Block time for interval mining, e.g. 12s (default: a block per transaction)",
		Category: flags.MinerCategory,
	}
	NoMiningFlag = &cli.BoolFlag{
		Name:     "no-mining",
		Usage:    "Disable auto and interval mining, blocks are sealed on evm_mine only",
		Category: flags.MinerCategory,
	}
	CoinbaseFlag = &cli.StringFlag{
		Name:     "coinbase",
		Usage:    "Beneficiary of sealed blocks",
		Category: flags.MinerCategory,
	}

	// Account settings
	AccountsFlag = &cli.IntFlag{
		Name:     "accounts",
		Aliases:  []string{"a"},
		Usage:    "Number of development accounts to generate and fund",
		Value:    node.DefaultAccounts,
		Category: flags.AccountCategory,
	}
	BalanceFlag = &cli.Uint64Flag{
		Name:     "balance",
		Usage:    "The balance of every development account in ether",
		Value:    node.DefaultBalance,
		Category: flags.AccountCategory,
	}

	// RPC settings
	HTTPListenAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Aliases:  []string{"host"},
		Usage:    "HTTP-RPC server listening interface",
		Value:    node.DefaultHTTPHost,
		Category: flags.APICategory,
	}
	HTTPPortFlag = &cli.IntFlag{
		Name:     "http.port",
		Aliases:  []string{"port", "p"},
		Usage:    "HTTP-RPC server listening port",
		Value:    node.DefaultHTTPPort,
		Category: flags.APICategory,
	}
	HTTPCORSDomainFlag = &cli.StringFlag{
		Name:     "http.corsdomain",
		Usage:    "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
		Value:    "*",
		Category: flags.APICategory,
	}
	NoWSFlag = &cli.BoolFlag{
		Name:     "ws.disable",
		Usage:    "Reject WebSocket upgrades on the HTTP port",
		Category: flags.APICategory,
	}
	BatchRequestLimit = &cli.IntFlag{
		Name:     "rpc.batch-request-limit",
		Usage:    "Maximum number of requests in a batch",
		Value:    1000,
		Category: flags.APICategory,
	}
	BatchResponseMaxSize = &cli.IntFlag{
		Name:     "rpc.batch-response-max-size",
		Usage:    "Maximum number of bytes returned from a batched call",
		Value:    25 * 1000 * 1000,
		Category: flags.APICategory,
	}
)

// NodeFlags are the flags of the node command.
var NodeFlags = []cli.Flag{
	DataDirFlag,
	EphemeralFlag,
	ForkURLFlag,
	ForkBlockNumberFlag,
	ForkRetryBackoffFlag,
	ForkRetriesFlag,
	ForkTimeoutFlag,
	ComputeUnitsPerSecondFlag,
	NoRateLimitFlag,
	NoStorageCachingFlag,
	CacheDirFlag,
	CacheEngineFlag,
	CacheSizeFlag,
	ChainIDFlag,
	GasLimitFlag,
	BaseFeeFlag,
	GenesisFlag,
	RPCGasCapFlag,
	BlockTimeFlag,
	NoMiningFlag,
	CoinbaseFlag,
	AccountsFlag,
	BalanceFlag,
	HTTPListenAddrFlag,
	HTTPPortFlag,
	HTTPCORSDomainFlag,
	NoWSFlag,
	BatchRequestLimit,
	BatchResponseMaxSize,
}

// SetNodeConfig applies node-related command line flags to the config.
// Flags that are not set keep the value of cfg, which may come from a
// config file.
// SetNodeConfig 将节点相关的命令行标志应用到配置上。
func SetNodeConfig(ctx *cli.Context, cfg *node.Config) error {
	setDataDir(ctx, cfg)
	setHTTP(ctx, cfg)
	if err := setChain(ctx, cfg); err != nil {
		return err
	}
	return setFork(ctx, cfg)
}

func setDataDir(ctx *cli.Context, cfg *node.Config) {
	switch {
	case ctx.Bool(EphemeralFlag.Name):
		cfg.DataDir = ""
	case ctx.IsSet(DataDirFlag.Name):
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	case cfg.DataDir == "":
		cfg.DataDir = DataDirFlag.Value.String()
	}
}

func setHTTP(ctx *cli.Context, cfg *node.Config) {
	if ctx.IsSet(HTTPListenAddrFlag.Name) {
		cfg.HTTPHost = ctx.String(HTTPListenAddrFlag.Name)
	}
	if ctx.IsSet(HTTPPortFlag.Name) {
		cfg.HTTPPort = ctx.Int(HTTPPortFlag.Name)
	}
	if ctx.IsSet(HTTPCORSDomainFlag.Name) {
		cfg.HTTPCors = SplitAndTrim(ctx.String(HTTPCORSDomainFlag.Name))
	}
	if ctx.IsSet(NoWSFlag.Name) {
		cfg.WSEnabled = !ctx.Bool(NoWSFlag.Name)
	}
	if ctx.IsSet(BatchRequestLimit.Name) || cfg.BatchRequestLimit == 0 {
		cfg.BatchRequestLimit = ctx.Int(BatchRequestLimit.Name)
	}
	if ctx.IsSet(BatchResponseMaxSize.Name) || cfg.BatchResponseMaxSize == 0 {
		cfg.BatchResponseMaxSize = ctx.Int(BatchResponseMaxSize.Name)
	}
}

func setChain(ctx *cli.Context, cfg *node.Config) error {
	if ctx.IsSet(ChainIDFlag.Name) {
		cfg.ChainID = ctx.Uint64(ChainIDFlag.Name)
	}
	if ctx.IsSet(GasLimitFlag.Name) {
		cfg.GasLimit = ctx.Uint64(GasLimitFlag.Name)
	}
	if ctx.IsSet(BaseFeeFlag.Name) {
		fee := flags.GlobalAmount(ctx, BaseFeeFlag.Name)
		if !fee.IsUint64() {
			return fmt.Errorf("--%s too large: %v", BaseFeeFlag.Name, fee)
		}
		cfg.BaseFee = fee.Uint64()
	}
	if ctx.IsSet(GenesisFlag.Name) {
		cfg.Genesis = ctx.Path(GenesisFlag.Name)
	}
	if ctx.IsSet(RPCGasCapFlag.Name) {
		cfg.RPCGasCap = ctx.Uint64(RPCGasCapFlag.Name)
	}
	if ctx.IsSet(BlockTimeFlag.Name) {
		cfg.BlockTime = ctx.Duration(BlockTimeFlag.Name)
	}
	if ctx.IsSet(NoMiningFlag.Name) {
		cfg.NoMining = ctx.Bool(NoMiningFlag.Name)
	}
	if ctx.IsSet(CoinbaseFlag.Name) {
		addr := ctx.String(CoinbaseFlag.Name)
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid --%s address %q", CoinbaseFlag.Name, addr)
		}
		cfg.Coinbase = common.HexToAddress(addr)
	}
	if ctx.IsSet(AccountsFlag.Name) {
		cfg.Accounts = ctx.Int(AccountsFlag.Name)
	}
	if ctx.IsSet(BalanceFlag.Name) {
		cfg.Balance = ctx.Uint64(BalanceFlag.Name)
	}
	return nil
}

// setFork configures the launch fork. The fork options only take effect
// with a fork URL, either given as a flag or in the config file.
func setFork(ctx *cli.Context, cfg *node.Config) error {
	if ctx.IsSet(ForkURLFlag.Name) {
		if cfg.Fork == nil {
			fork := forkdb.DefaultConfig
			cfg.Fork = &fork
		}
		cfg.Fork.URL = ctx.String(ForkURLFlag.Name)
	}
	if cfg.Fork == nil {
		for _, flag := range []cli.Flag{ForkBlockNumberFlag, ForkRetryBackoffFlag, ForkRetriesFlag, ForkTimeoutFlag, ComputeUnitsPerSecondFlag, NoRateLimitFlag, NoStorageCachingFlag} {
			if name := flag.Names()[0]; ctx.IsSet(name) {
				return fmt.Errorf("--%s requires --%s", name, ForkURLFlag.Name)
			}
		}
		return nil
	}
	fork := cfg.Fork
	if fork.URL == "" {
		return fmt.Errorf("fork configured without an endpoint, set --%s", ForkURLFlag.Name)
	}
	if ctx.IsSet(ForkBlockNumberFlag.Name) {
		number := ctx.Uint64(ForkBlockNumberFlag.Name)
		fork.BlockNumber = &number
	}
	if ctx.IsSet(ForkRetryBackoffFlag.Name) {
		fork.InitialBackoff = ctx.Duration(ForkRetryBackoffFlag.Name)
	}
	if ctx.IsSet(ForkRetriesFlag.Name) {
		fork.Retries = ctx.Int(ForkRetriesFlag.Name)
	}
	if ctx.IsSet(ForkTimeoutFlag.Name) {
		fork.Timeout = ctx.Duration(ForkTimeoutFlag.Name)
	}
	if ctx.IsSet(ComputeUnitsPerSecondFlag.Name) {
		fork.ComputeUnitsPerSecond = ctx.Uint64(ComputeUnitsPerSecondFlag.Name)
	}
	if ctx.IsSet(NoRateLimitFlag.Name) {
		fork.NoRateLimit = ctx.Bool(NoRateLimitFlag.Name)
	}
	if ctx.IsSet(NoStorageCachingFlag.Name) {
		fork.NoStorageCaching = ctx.Bool(NoStorageCachingFlag.Name)
	}
	if ctx.IsSet(CacheDirFlag.Name) {
		fork.CacheDir = ctx.String(CacheDirFlag.Name)
	}
	if ctx.IsSet(CacheEngineFlag.Name) {
		fork.CacheEngine = ctx.String(CacheEngineFlag.Name)
	}
	if ctx.IsSet(CacheSizeFlag.Name) {
		fork.CacheSize = ctx.Int(CacheSizeFlag.Name)
	}
	switch fork.CacheEngine {
	case "", forkdb.EngineFastcache, forkdb.EnginePebble, forkdb.EngineLevelDB, forkdb.EngineMemory:
	default:
		return fmt.Errorf("unknown --%s %q", CacheEngineFlag.Name, fork.CacheEngine)
	}
	return nil
}

// CacheDir returns the root of the fork response cache selected by the
// command line, empty when the node keeps nothing on disk.
func CacheDir(ctx *cli.Context, cfg *node.Config) string {
	if ctx.IsSet(CacheDirFlag.Name) {
		return ctx.String(CacheDirFlag.Name)
	}
	if cfg.Fork != nil && cfg.Fork.CacheDir != "" {
		return cfg.Fork.CacheDir
	}
	return cfg.CacheDir()
}

// SplitAndTrim splits input separated by a comma
// and trims excessive white space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.Split(input, ",")
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}
