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

package debug

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sunyihoo/forknode/internal/flags"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	logVmoduleFlag = &cli.StringFlag{
		Name:     "log.vmodule",
		Usage:    "Per-module verbosity: comma-separated list of <pattern>=<level> (e.g. core/forkdb=5,miner=4)",
		Category: flags.LoggingCategory,
	}
	logFormatFlag = &cli.StringFlag{
		Name:     "log.format",
		Usage:    "Log format to use (json|logfmt|terminal)",
		Category: flags.LoggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file",
		Category: flags.LoggingCategory,
	}
	logRotateFlag = &cli.BoolFlag{
		Name:     "log.rotate",
		Usage:    "Enables log file rotation",
		Category: flags.LoggingCategory,
	}
	logMaxSizeMBsFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Maximum size in MBs of a single log file",
		Value:    100,
		Category: flags.LoggingCategory,
	}
	logMaxBackupsFlag = &cli.IntFlag{
		Name:     "log.maxbackups",
		Usage:    "Maximum number of log files to retain",
		Value:    10,
		Category: flags.LoggingCategory,
	}
	logMaxAgeFlag = &cli.IntFlag{
		Name:     "log.maxage",
		Usage:    "Maximum number of days to retain a log file",
		Value:    30,
		Category: flags.LoggingCategory,
	}
	logCompressFlag = &cli.BoolFlag{
		Name:     "log.compress",
		Usage:    "Compress the log files",
		Category: flags.LoggingCategory,
	}
	pprofFlag = &cli.BoolFlag{
		Name:     "pprof",
		Usage:    "Enable the pprof HTTP server, which also serves the metrics under /debug/metrics",
		Category: flags.LoggingCategory,
	}
	pprofPortFlag = &cli.IntFlag{
		Name:     "pprof.port",
		Usage:    "pprof HTTP server listening port",
		Value:    6060,
		Category: flags.LoggingCategory,
	}
	pprofAddrFlag = &cli.StringFlag{
		Name:     "pprof.addr",
		Usage:    "pprof HTTP server listening interface",
		Value:    "127.0.0.1",
		Category: flags.LoggingCategory,
	}
	cpuprofileFlag = &cli.StringFlag{
		Name:     "pprof.cpuprofile",
		Usage:    "Write CPU profile to the given file",
		Category: flags.LoggingCategory,
	}
	traceFlag = &cli.StringFlag{
		Name:     "go-execution-trace",
		Usage:    "Write Go execution trace to the given file",
		Category: flags.LoggingCategory,
	}
)

// Flags holds all command-line flags required for debugging.
// Flags 包含调试所需的全部命令行标志。
var Flags = []cli.Flag{
	verbosityFlag,
	logVmoduleFlag,
	logFormatFlag,
	logFileFlag,
	logRotateFlag,
	logMaxSizeMBsFlag,
	logMaxBackupsFlag,
	logMaxAgeFlag,
	logCompressFlag,
	pprofFlag,
	pprofAddrFlag,
	pprofPortFlag,
	cpuprofileFlag,
	traceFlag,
}

var (
	glogger       *log.GlogHandler
	logOutputFile io.WriteCloser
)

func init() {
	glogger = log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, false))
}

// LogConfig describes where and how log records are written.
// LogConfig 描述日志记录的输出位置和格式。
type LogConfig struct {
	Verbosity  int
	Vmodule    string
	Format     string // json, logfmt or terminal
	File       string
	Rotate     bool
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func logConfigFromFlags(ctx *cli.Context) LogConfig {
	return LogConfig{
		Verbosity:  ctx.Int(verbosityFlag.Name),
		Vmodule:    ctx.String(logVmoduleFlag.Name),
		Format:     ctx.String(logFormatFlag.Name),
		File:       ctx.String(logFileFlag.Name),
		Rotate:     ctx.Bool(logRotateFlag.Name),
		MaxSize:    ctx.Int(logMaxSizeMBsFlag.Name),
		MaxBackups: ctx.Int(logMaxBackupsFlag.Name),
		MaxAge:     ctx.Int(logMaxAgeFlag.Name),
		Compress:   ctx.Bool(logCompressFlag.Name),
	}
}

// Setup initializes profiling and logging based on the CLI flags.
// It should be called as early as possible in the program.
// Setup 根据命令行标志初始化日志和性能分析，应尽早调用。
func Setup(ctx *cli.Context) error {
	if err := SetupLogging(logConfigFromFlags(ctx), os.Stderr); err != nil {
		return err
	}
	if traceFile := ctx.String(traceFlag.Name); traceFile != "" {
		if err := Handler.StartGoTrace(traceFile); err != nil {
			return err
		}
	}
	if cpuFile := ctx.String(cpuprofileFlag.Name); cpuFile != "" {
		if err := Handler.StartCPUProfile(cpuFile); err != nil {
			return err
		}
	}
	if ctx.Bool(pprofFlag.Name) {
		address := net.JoinHostPort(ctx.String(pprofAddrFlag.Name), strconv.Itoa(ctx.Int(pprofPortFlag.Name)))
		StartPProf(address)
	}
	return nil
}

// openLogSink opens the file side of the log output, if any. The returned
// string names its location for the startup log line.
// openLogSink 打开日志文件输出（如有）。
func openLogSink(cfg LogConfig) (io.WriteCloser, string, error) {
	if cfg.File != "" {
		if err := validateLogLocation(filepath.Dir(cfg.File)); err != nil {
			return nil, "", fmt.Errorf("failed to initialize file logger: %v", err)
		}
	}
	if cfg.Rotate {
		location := cfg.File
		if location == "" {
			location = filepath.Join(os.TempDir(), "forknode-lumberjack.log")
		}
		sink := &lumberjack.Logger{
			Filename:   location,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		return sink, location, nil
	}
	if cfg.File == "" {
		return nil, "", nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, "", err
	}
	return f, cfg.File, nil
}

// newLogHandler builds the record formatter. Only the terminal format colors
// its output, and only when stderr is an interactive terminal.
func newLogHandler(format string, stderr *os.File, sink io.Writer) (slog.Handler, error) {
	join := func(console io.Writer) io.Writer {
		if sink == nil {
			return console
		}
		return io.MultiWriter(sink, console)
	}
	switch format {
	case "json":
		return log.JSONHandler(join(stderr)), nil
	case "logfmt":
		return log.LogfmtHandler(join(stderr)), nil
	case "", "terminal":
		fd := stderr.Fd()
		color := (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb"
		if color {
			return log.NewTerminalHandler(join(colorable.NewColorable(stderr)), true), nil
		}
		return log.NewTerminalHandler(join(stderr), false), nil
	}
	return nil, fmt.Errorf("unknown log format: %v", format)
}

// SetupLogging installs the root logger described by cfg. Records always go
// to stderr and additionally to the configured file.
// SetupLogging 按 cfg 安装根日志记录器。
func SetupLogging(cfg LogConfig, stderr *os.File) error {
	sink, location, err := openLogSink(cfg)
	if err != nil {
		return err
	}
	handler, err := newLogHandler(cfg.Format, stderr, sink)
	if err != nil {
		if sink != nil {
			sink.Close()
		}
		return err
	}
	gh := log.NewGlogHandler(handler)
	gh.Verbosity(log.FromLegacyLevel(cfg.Verbosity))
	if err := gh.Vmodule(cfg.Vmodule); err != nil {
		if sink != nil {
			sink.Close()
		}
		return fmt.Errorf("invalid --%s: %v", logVmoduleFlag.Name, err)
	}
	if logOutputFile != nil {
		logOutputFile.Close()
	}
	glogger, logOutputFile = gh, sink
	log.SetDefault(log.NewLogger(glogger))

	if sink != nil {
		format := cfg.Format
		if format == "" {
			format = "terminal"
		}
		log.Info("Logging configured", "format", format, "rotate", cfg.Rotate, "location", location)
	}
	return nil
}

// StartPProf starts the pprof HTTP server. The metrics registry is exposed
// through expvar under /debug/metrics.
// StartPProf 启动 pprof HTTP 服务器，并通过 /debug/metrics 暴露指标。
func StartPProf(address string) {
	exp.Exp(metrics.DefaultRegistry)
	log.Info("Starting pprof server", "addr", fmt.Sprintf("http://%s/debug/pprof", address))
	go func() {
		if err := http.ListenAndServe(address, nil); err != nil {
			log.Error("Failure in running pprof server", "err", err)
		}
	}()
}

// Exit stops all running profiles, flushing their output to the respective file.
// Exit 停止所有正在运行的分析并将结果写入各自的文件。
func Exit() {
	Handler.StopCPUProfile()
	Handler.StopGoTrace()
	if logOutputFile != nil {
		logOutputFile.Close()
		logOutputFile = nil
	}
}

// validateLogLocation checks if the log directory is valid and writable.
func validateLogLocation(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("error creating the directory: %w", err)
	}
	tmp := filepath.Join(path, "tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(tmp)
}
