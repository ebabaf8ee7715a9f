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

package version

import (
	"runtime/debug"
	"sync"
	"time"
)

const modulePath = "github.com/sunyihoo/forknode"

// gitCommit and gitDate may be set by the linker with -X, which takes
// precedence over the VCS stamp of the go tool.
// gitCommit 和 gitDate 可由链接器通过 -X 设置，优先于 go 工具嵌入的 VCS 信息。
var gitCommit, gitDate string

// VCSInfo is the state of the git checkout the executable was built from.
type VCSInfo struct {
	Commit string // revision hash
	Date   string // commit day as YYYYMMDD
	Dirty  bool   // uncommitted changes were present
}

// VCS returns version control information of the current executable.
// VCS 返回当前可执行文件的版本控制信息。
func VCS() (VCSInfo, bool) {
	if gitCommit != "" {
		return VCSInfo{Commit: gitCommit, Date: gitDate}, true
	}
	return stampedVCS()
}

var stampedVCS = sync.OnceValues(func() (VCSInfo, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Path != modulePath {
		return VCSInfo{}, false
	}
	return parseBuildSettings(info.Settings)
})

// parseBuildSettings extracts the vcs.* keys stamped by the go tool.
func parseBuildSettings(settings []debug.BuildSetting) (VCSInfo, bool) {
	var vcs VCSInfo
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			vcs.Commit = setting.Value
		case "vcs.modified":
			vcs.Dirty = setting.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				vcs.Date = t.UTC().Format("20060102")
			}
		}
	}
	return vcs, vcs.Commit != "" && vcs.Date != ""
}
