// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config controls Init.
type Config struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string

	// Dir holds the daily log files. Defaults to ~/.luminous/logs.
	Dir string

	// MaxSize rotates a file once it grows past this many bytes.
	MaxSize int64
}

var (
	mu      sync.RWMutex
	logger  = slog.New(slog.NewJSONHandler(io.Discard, nil))
	current *rotatingFile
)

// DefaultDir returns ~/.luminous/logs.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".luminous", "logs")
	}
	return filepath.Join(home, ".luminous", "logs")
}

// FileName returns the log file name for day t.
func FileName(t time.Time) string {
	return "luminous-" + t.Format("2006-01-02") + ".log"
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init opens today's log file and installs the global logger.
func Init(cfg Config) error {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	return InitWithFile(filepath.Join(dir, FileName(time.Now())), cfg.Level, cfg.MaxSize)
}

// InitWithFile installs a global logger writing to path.
func InitWithFile(path, level string, maxSize int64) error {
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	f, err := openRotatingFile(path, maxSize)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		current.Close()
	}
	current = f
	logger = New(f, level)
	return nil
}

// New returns a JSON logger writing to w with the default redactors.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redactAttr(DefaultRedactors()),
	}))
}

// Shutdown closes the log file. Later log calls are discarded.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	return err
}

// L returns the global logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns the global logger with additional fields.
func With(kv ...any) *slog.Logger {
	return L().With(kv...)
}

// =============================================================================
// CONTEXT
// =============================================================================

type ctxKey struct{}

// NewContext stores l in ctx.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return L()
}
