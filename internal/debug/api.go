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

// Package debug wires the Go runtime profiling facilities and the log
// configuration to the command line and to the debug RPC namespace.
// Package debug 将 Go 运行时分析工具和日志配置接入命令行与 debug RPC 命名空间。
package debug

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-bexpr"
	"github.com/sunyihoo/forknode/internal/flags"
)

// Handler is the global debugging handler.
var Handler = new(HandlerT)

// HandlerT implements the debugging API. Use the Handler variable instead
// of creating values of this type.
// HandlerT 实现调试 API，请使用 Handler 变量而不要自行创建。
type HandlerT struct {
	mu        sync.Mutex
	cpuW      io.WriteCloser
	cpuFile   string
	traceW    io.WriteCloser
	traceFile string
}

// Verbosity sets the log verbosity ceiling.
func (*HandlerT) Verbosity(level int) {
	glogger.Verbosity(log.FromLegacyLevel(level))
}

// Vmodule sets the per-package log verbosity pattern, e.g. "core/forkdb=5".
// Vmodule 设置按包的日志详细程度模式。
func (*HandlerT) Vmodule(pattern string) error {
	return glogger.Vmodule(pattern)
}

// MemStats returns detailed runtime memory statistics.
func (*HandlerT) MemStats() *runtime.MemStats {
	s := new(runtime.MemStats)
	runtime.ReadMemStats(s)
	return s
}

// GcStats returns GC statistics.
func (*HandlerT) GcStats() *debug.GCStats {
	s := new(debug.GCStats)
	debug.ReadGCStats(s)
	return s
}

// CpuProfile turns on CPU profiling for nsec seconds and writes
// profile data to file.
func (h *HandlerT) CpuProfile(file string, nsec uint) error {
	if err := h.StartCPUProfile(file); err != nil {
		return err
	}
	time.Sleep(time.Duration(nsec) * time.Second)
	return h.StopCPUProfile()
}

// StartCPUProfile turns on CPU profiling, writing to the given file.
// StartCPUProfile 开启 CPU 分析并写入指定文件。
func (h *HandlerT) StartCPUProfile(file string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cpuW != nil {
		return errors.New("CPU profiling already in progress")
	}
	f, err := os.Create(flags.ExpandPath(file))
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	h.cpuW, h.cpuFile = f, file
	log.Info("CPU profiling started", "dump", h.cpuFile)
	return nil
}

// StopCPUProfile stops an ongoing CPU profile.
func (h *HandlerT) StopCPUProfile() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	pprof.StopCPUProfile()
	if h.cpuW == nil {
		return errors.New("CPU profiling not in progress")
	}
	log.Info("Done writing CPU profile", "dump", h.cpuFile)
	h.cpuW.Close()
	h.cpuW, h.cpuFile = nil, ""
	return nil
}

// GoTrace turns on tracing for nsec seconds and writes
// trace data to file.
func (h *HandlerT) GoTrace(file string, nsec uint) error {
	if err := h.StartGoTrace(file); err != nil {
		return err
	}
	time.Sleep(time.Duration(nsec) * time.Second)
	return h.StopGoTrace()
}

// WriteMemProfile writes an allocation profile to the given file.
func (*HandlerT) WriteMemProfile(file string) error {
	return writeProfile("heap", file)
}

// stackFilterTerm matches a package path or function name in a filter.
var stackFilterTerm = regexp.MustCompile(`[:/\.A-Za-z0-9_-]+`)

// Stacks returns a printed representation of the stacks of all goroutines.
// The optional filter is a boolean expression of package names, e.g.
// "(forkdb || miner) && !rpc".
// Stacks 返回所有 goroutine 的栈。可选的 filter 是包名的布尔表达式。
func (*HandlerT) Stacks(filter *string) string {
	buf := new(bytes.Buffer)
	pprof.Lookup("goroutine").WriteTo(buf, 2)

	if filter == nil || *filter == "" {
		return buf.String()
	}
	expanded, err := expandStackFilter(*filter)
	if err != nil {
		log.Error("Failed to parse filter expression", "filter", *filter, "err", err)
		return ""
	}
	dump := buf.String()
	buf.Reset()
	for _, trace := range strings.Split(dump, "\n\n") {
		if ok, _ := expanded.Evaluate(map[string]string{"Value": trace}); ok {
			buf.WriteString(trace)
			buf.WriteString("\n\n")
		}
	}
	return buf.String()
}

// expandStackFilter turns "(a || b) && !c" into the bexpr expression
// "(`a` in Value or `b` in Value) and `c` not in Value".
func expandStackFilter(filter string) (*bexpr.Evaluator, error) {
	expanded := stackFilterTerm.ReplaceAllString(filter, "`$0` in Value")
	expanded = regexp.MustCompile("!(`[:/\\.A-Za-z0-9_-]+`)").ReplaceAllString(expanded, "$1 not")
	expanded = strings.ReplaceAll(expanded, "||", "or")
	expanded = strings.ReplaceAll(expanded, "&&", "and")
	log.Debug("Expanded filter expression", "filter", filter, "expanded", expanded)
	return bexpr.CreateEvaluator(expanded)
}

// FreeOSMemory forces a garbage collection.
func (*HandlerT) FreeOSMemory() {
	debug.FreeOSMemory()
}

// SetGCPercent sets the garbage collection target percentage. It returns the previous
// setting. A negative value disables GC.
func (*HandlerT) SetGCPercent(v int) int {
	return debug.SetGCPercent(v)
}

func writeProfile(name, file string) error {
	p := pprof.Lookup(name)
	log.Info("Writing profile records", "count", p.Count(), "type", name, "dump", file)
	f, err := os.Create(flags.ExpandPath(file))
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteTo(f, 0)
}
