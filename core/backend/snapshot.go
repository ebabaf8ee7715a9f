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

package backend

import (
	"github.com/sunyihoo/forknode/core/state"
)

// RevertAction tells Revert what to do with the snapshot it restores.
type RevertAction uint8

const (
	// RevertRemove deletes the snapshot once it has been restored.
	RevertRemove RevertAction = iota

	// RevertKeep keeps the snapshot so it can be restored again.
	RevertKeep
)

// snapshot is a captured backend state. It is never modified after creation,
// restoring it works on copies.
// snapshot 是捕获的后端状态，创建后不会被修改，恢复时使用其副本。
type snapshot struct {
	memDB   *state.CacheDB // set when no fork was active
	active  *LocalForkID
	fork    *fork
	journal *state.JournaledState
	env     *Env
}
