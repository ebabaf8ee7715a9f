// Copyright 2024 The go-ethereum Authors
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

package forkdb

import "github.com/ethereum/go-ethereum/metrics"

var (
	accountHitMeter    = metrics.NewRegisteredMeter("forkdb/account/hit", nil)
	accountMissMeter   = metrics.NewRegisteredMeter("forkdb/account/miss", nil)
	storageHitMeter    = metrics.NewRegisteredMeter("forkdb/storage/hit", nil)
	storageMissMeter   = metrics.NewRegisteredMeter("forkdb/storage/miss", nil)
	blockHashHitMeter  = metrics.NewRegisteredMeter("forkdb/blockhash/hit", nil)
	blockHashMissMeter = metrics.NewRegisteredMeter("forkdb/blockhash/miss", nil)
	diskHitMeter       = metrics.NewRegisteredMeter("forkdb/disk/hit", nil)

	fetchRetryMeter   = metrics.NewRegisteredMeter("forkdb/fetch/retry", nil)
	fetchFailureMeter = metrics.NewRegisteredMeter("forkdb/fetch/failure", nil)
	fetchTimer        = metrics.NewRegisteredTimer("forkdb/fetch/duration", nil)
)
