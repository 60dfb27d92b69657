// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestFileName(t *testing.T) {
	day := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "luminous-2025-03-09.log", FileName(day))
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")
	l.Info("request", "image", "data:image/png;base64,AAAABBBBCCCC", "auth", "Bearer abc.def")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "data:image/png;base64,[12 bytes]", rec["image"])
	assert.Equal(t, "Bearer [TOKEN_REDACTED]", rec["auth"])
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInitWithFileAndShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	require.NoError(t, InitWithFile(path, "info", 0))
	L().Info("hello", "chat_id", "c1")
	require.NoError(t, Shutdown())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chat_id":"c1"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	L().Info("after shutdown")
	data, _ = os.ReadFile(path)
	assert.NotContains(t, string(data), "after shutdown")
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.log")
	f, err := openRotatingFile(path, 64)
	require.NoError(t, err)
	defer f.Close()

	line := []byte(strings.Repeat("x", 50) + "\n")
	for i := 0; i < 3; i++ {
		_, err := f.Write(line)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1, "file should have rotated")
}

func TestRotationReopenFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.log")
	f, err := openRotatingFile(path, 16)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte(strings.Repeat("x", 32) + "\n"))
	require.NoError(t, err)

	f.open = func(string) (*os.File, error) { return nil, os.ErrPermission }
	_, err = f.Write([]byte("next\n"))
	require.ErrorIs(t, err, os.ErrPermission)

	_, err = f.Write([]byte("after\n"))
	assert.ErrorIs(t, err, os.ErrClosed, "writes after a failed reopen report a closed log")
	assert.NoError(t, f.Close())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info").With("turn", 7)
	ctx := NewContext(context.Background(), l)
	FromContext(ctx).Info("x")
	assert.Contains(t, buf.String(), `"turn":7`)

	assert.NotNil(t, FromContext(context.Background()))
}
