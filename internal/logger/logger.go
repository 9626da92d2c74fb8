// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is the structured logging surface shared by every other
// package: a package-level slog.Logger, configurable severity and format,
// and a legacy *log.Logger adapter for fuse.MountConfig's error/debug
// loggers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity strings accepted in configuration, ordered least to most severe.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// Custom slog levels: slog only defines Debug/Info/Warn/Error out of the
// box, and this tree wants a level below Debug and a sentinel above Error
// that suppresses everything.
const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelOff   slog.Level = 12
)

// RotateConfig mirrors the lumberjack fields the CLI exposes.
type RotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

func DefaultRotateConfig() RotateConfig {
	return RotateConfig{MaxFileSizeMB: 512, BackupFileCount: 10, Compress: false}
}

// Config selects format, severity, and optional file output.
type Config struct {
	Format   string // "text" or "json"
	Severity string
	FilePath string // empty means log to stderr
	Rotate   RotateConfig
}

type loggerFactory struct {
	mu sync.Mutex

	format          string
	level           string
	file            *os.File
	sysWriter       io.Writer
	logRotateConfig RotateConfig
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	format := f.format

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.MessageKey:
				a.Key = "message"
				a.Value = slog.StringValue(prefix + a.Value.String())
			case slog.LevelKey:
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			case slog.TimeKey:
				if format != "text" {
					t := a.Value.Time()
					a.Key = "timestamp"
					a.Value = slog.GroupValue(
						slog.Int64("seconds", t.Unix()),
						slog.Int64("nanos", int64(t.Nanosecond())),
					)
				}
			}
			return a
		},
	}

	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return TRACE
	case l <= LevelDebug:
		return DEBUG
	case l <= LevelInfo:
		return INFO
	case l <= LevelWarn:
		return WARNING
	default:
		return ERROR
	}
}

var (
	defaultLoggerFactory = &loggerFactory{level: INFO, format: "json", logRotateConfig: DefaultRotateConfig()}
	defaultLogger         *slog.Logger
	programLevel          = new(slog.LevelVar)
)

func init() {
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch level {
	case TRACE:
		v.Set(LevelTrace)
	case DEBUG:
		v.Set(LevelDebug)
	case INFO:
		v.Set(LevelInfo)
	case WARNING:
		v.Set(LevelWarn)
	case ERROR:
		v.Set(LevelError)
	case OFF:
		v.Set(LevelOff)
	default:
		v.Set(LevelInfo)
	}
}

// SetLogFormat switches the default logger between "text" and "json"
// (anything else is treated as "json").
func SetLogFormat(format string) {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()

	defaultLoggerFactory.format = format
	w := io.Writer(os.Stderr)
	if defaultLoggerFactory.file != nil {
		w = defaultLoggerFactory.file
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

// Init installs the process-wide default logger per cfg. When cfg.FilePath
// is set, log lines go through lumberjack-backed rotation fronted by an
// AsyncLogger so a slow or stalled disk never blocks a FUSE op.
func Init(cfg Config) error {
	var w io.Writer = os.Stderr

	defaultLoggerFactory.mu.Lock()
	defaultLoggerFactory.format = cfg.Format
	defaultLoggerFactory.level = cfg.Severity
	defaultLoggerFactory.logRotateConfig = cfg.Rotate

	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			defaultLoggerFactory.mu.Unlock()
			return err
		}
		defaultLoggerFactory.file = f

		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.Rotate.MaxFileSizeMB,
			MaxBackups: cfg.Rotate.BackupFileCount,
			Compress:   cfg.Rotate.Compress,
		}
		w = NewAsyncLogger(lj, 1024)
	}
	defaultLoggerFactory.mu.Unlock()

	setLoggingLevel(cfg.Severity, programLevel)

	defaultLoggerFactory.mu.Lock()
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
	defaultLoggerFactory.mu.Unlock()

	return nil
}

func Tracef(format string, args ...interface{}) { logAt(context.Background(), LevelTrace, format, args...) }
func Debugf(format string, args ...interface{}) { logAt(context.Background(), LevelDebug, format, args...) }
func Infof(format string, args ...interface{})  { logAt(context.Background(), LevelInfo, format, args...) }
func Warnf(format string, args ...interface{})  { logAt(context.Background(), LevelWarn, format, args...) }
func Errorf(format string, args ...interface{}) { logAt(context.Background(), LevelError, format, args...) }

func logAt(ctx context.Context, level slog.Level, format string, args ...interface{}) {
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, args...))
}

// legacyWriter adapts the default logger to the io.Writer shape wanted by
// fuse.MountConfig.ErrorLogger / DebugLogger (themselves *log.Logger).
type legacyWriter struct {
	level slog.Level
}

func (w legacyWriter) Write(p []byte) (int, error) {
	defaultLogger.Log(context.Background(), w.level, string(p))
	return len(p), nil
}

// NewLegacyErrorLogger returns a *log.Logger that forwards to the default
// structured logger at error severity, suitable for
// fuse.MountConfig.ErrorLogger.
func NewLegacyErrorLogger(prefix string) *log.Logger {
	return log.New(legacyWriter{level: LevelError}, prefix, 0)
}

// NewLegacyDebugLogger returns a *log.Logger that forwards to the default
// structured logger at debug severity, suitable for
// fuse.MountConfig.DebugLogger.
func NewLegacyDebugLogger(prefix string) *log.Logger {
	return log.New(legacyWriter{level: LevelDebug}, prefix, 0)
}
