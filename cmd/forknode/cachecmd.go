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
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/sunyihoo/forknode/cmd/utils"
	"github.com/sunyihoo/forknode/core/forkdb"
	"github.com/urfave/cli/v2"
)

var (
	cacheFlags = []cli.Flag{
		utils.DataDirFlag,
		utils.CacheDirFlag,
		configFileFlag,
	}

	cacheCommand = &cli.Command{
		Name:  "cache",
		Usage: "Low level fork response cache operations",
		Subcommands: []*cli.Command{
			cacheStatsCmd,
			cacheCleanCmd,
		},
	}
	cacheStatsCmd = &cli.Command{
		Action: showCacheStats,
		Name:   "stats",
		Usage:  "Print the content of the fork response caches",
		Flags:  cacheFlags,
	}
	cacheCleanCmd = &cli.Command{
		Action:    cleanCache,
		Name:      "clean",
		Usage:     "Delete fork response caches",
		ArgsUsage: "[<chain id> [<block number>]]",
		Flags:     cacheFlags,
		Description: `Deletes the response caches below the cache directory. With a chain id only
the caches of that chain are removed, with a block number only the cache of that block.
Caches used by a running node are skipped.`,
	}
)

func cacheRoot(ctx *cli.Context) (string, error) {
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return "", err
	}
	root := utils.CacheDir(ctx, &cfg.Node)
	if root == "" {
		return "", fmt.Errorf("no cache directory, set --%s or --%s", utils.DataDirFlag.Name, utils.CacheDirFlag.Name)
	}
	return root, nil
}

// detectEngine returns the engine whose files are present in dir.
func detectEngine(dir string) string {
	for _, engine := range []string{forkdb.EnginePebble, forkdb.EngineLevelDB, forkdb.EngineFastcache} {
		if _, err := os.Stat(filepath.Join(dir, engine)); err == nil {
			return engine
		}
	}
	return ""
}

func showCacheStats(ctx *cli.Context) error {
	root, err := cacheRoot(ctx)
	if err != nil {
		return err
	}
	caches, err := forkdb.ListDiskCaches(root)
	if err != nil {
		return err
	}
	if len(caches) == 0 {
		fmt.Println("No fork response caches in", root)
		return nil
	}
	for _, loc := range caches {
		fmt.Printf("chain %d, block %d (%s)\n", loc.ChainID, loc.Block, loc.Dir)
		engine := detectEngine(loc.Dir)
		if engine == "" {
			fmt.Println("  empty")
			continue
		}
		showCacheStat(root, engine, loc)
	}
	return nil
}

func showCacheStat(root, engine string, loc forkdb.CacheLocation) {
	cache, err := forkdb.OpenDiskCache(root, engine, forkdb.DefaultConfig.CacheSize, loc.ChainID, loc.Block)
	if err != nil {
		log.Warn("Failed to open cache", "dir", loc.Dir, "err", err)
		return
	}
	defer cache.Close()

	stats, err := cache.Stat()
	if err != nil {
		log.Warn("Failed to read cache stats", "dir", loc.Dir, "err", err)
		return
	}
	fmt.Printf("  engine: %s\n%s\n", engine, stats)
}

func cleanCache(ctx *cli.Context) error {
	if ctx.NArg() > 2 {
		return fmt.Errorf("too many arguments, usage: %s", ctx.Command.ArgsUsage)
	}
	var filter []uint64
	for _, arg := range ctx.Args().Slice() {
		n, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %v", arg, err)
		}
		filter = append(filter, n)
	}
	root, err := cacheRoot(ctx)
	if err != nil {
		return err
	}
	caches, err := forkdb.ListDiskCaches(root)
	if err != nil {
		return err
	}
	var removed int
	for _, loc := range caches {
		if len(filter) > 0 && loc.ChainID != filter[0] {
			continue
		}
		if len(filter) > 1 && loc.Block != filter[1] {
			continue
		}
		lock := flock.New(filepath.Join(loc.Dir, "LOCK"))
		if locked, err := lock.TryLock(); err != nil || !locked {
			log.Warn("Skipping cache in use", "dir", loc.Dir)
			continue
		}
		err := os.RemoveAll(loc.Dir)
		lock.Unlock()
		if err != nil {
			return err
		}
		removed++
		log.Info("Removed fork response cache", "chain", loc.ChainID, "block", loc.Block)
	}
	fmt.Printf("Removed %d of %d caches\n", removed, len(caches))
	return nil
}
