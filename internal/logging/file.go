// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultMaxFileSize is the size at which a log file is rotated (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// rotatingFile is an append-only log file rotated by size. A nil file means
// the log is closed, or could not be reopened after rotation.
type rotatingFile struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	maxSize int64

	open func(path string) (*os.File, error)
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
}

func openRotatingFile(path string, maxSize int64) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := openLogFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &rotatingFile{path: path, file: file, maxSize: maxSize, open: openLogFile}, nil
}

// Write implements io.Writer.
func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return 0, os.ErrClosed
	}
	if err := f.checkRotationLocked(); err != nil {
		return 0, err
	}
	return f.file.Write(p)
}

// Close closes the file.
func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *rotatingFile) checkRotationLocked() error {
	if f.maxSize <= 0 {
		return nil
	}
	info, err := f.file.Stat()
	if err != nil {
		return nil
	}
	if info.Size() < f.maxSize {
		return nil
	}
	return f.rotateLocked()
}

// rotateLocked keeps the full file under a timestamp suffix and starts a new
// one.
func (f *rotatingFile) rotateLocked() error {
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log for rotation: %w", err)
	}

	ext := filepath.Ext(f.path)
	base := strings.TrimSuffix(f.path, ext)
	rotated := fmt.Sprintf("%s_%s%s", base, time.Now().Format("150405.000"), ext)
	if err := os.Rename(f.path, rotated); err != nil {
		if file, openErr := f.open(f.path); openErr == nil {
			f.file = file
		}
		return fmt.Errorf("failed to rotate log: %w", err)
	}

	file, err := f.open(f.path)
	if err != nil {
		return fmt.Errorf("failed to create log after rotation: %w", err)
	}
	f.file = file
	return nil
}
