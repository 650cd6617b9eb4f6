package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance for the application
var Logger *zap.SugaredLogger

func init() {
	logger, _ := zap.NewProduction()
	Logger = logger.Sugar()
}

// Options configures Setup.
type Options struct {
	Debug   bool   // console at DEBUG instead of INFO
	Dir     string // parent of the per-run log directory, defaults to os.TempDir()
	AppName string
}

// Setup replaces the global logger with a console logger plus a debug-level
// log file under <Dir>/<AppName>/. It returns the log file path and a sync
// function to call before exit.
func Setup(opts Options) (string, func(), error) {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.AppName == "" {
		opts.AppName = "jira-issues-creator"
	}
	dir := filepath.Join(opts.Dir, opts.AppName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create logging directory: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("2006_01_02-15_04_05")+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleLevel := zapcore.InfoLevel
	if opts.Debug {
		consoleLevel = zapcore.DebugLevel
	}
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), consoleLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel),
	)
	logger := zap.New(core)
	Logger = logger.Sugar()

	sync := func() {
		_ = logger.Sync()
		_ = file.Close()
	}
	Infof("Logging DEBUG execution logs to: %s", path)
	return path, sync, nil
}

// Top-level helpers for package alias usage
func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Fatalf(format string, args ...interface{}) { Logger.Fatalf(format, args...) }
