// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config path and home directory at a temp dir so tests
// never read the developer's files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("LUMINOUS_CONFIG", filepath.Join(dir, "config.toml"))
	for _, k := range []string{
		"LUMINOUS_SERVER_URL", "LUMINOUS_MODEL", "LUMINOUS_SYSTEM_PROMPT", "LUMINOUS_STORAGE",
		"LUMINOUS_DB_PATH", "LUMINOUS_THEME", "LUMINOUS_LOG_LEVEL", "LUMINOUS_DEEP_RESEARCH",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		switch i % 3 {
		case 0:
			go func() {
				defer wg.Done()
				if Global() == nil {
					t.Error("Global() returned nil")
				}
			}()
		case 1:
			go func() {
				defer wg.Done()
				c := Default()
				c.Model.Default = "concurrent"
				SetGlobal(c)
			}()
		case 2:
			go func() {
				defer wg.Done()
				_ = ReloadGlobal()
			}()
		}
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	require.NotNil(t, Global())
	custom := Default()
	custom.Model.Default = "custom-model"
	SetGlobal(custom)
	assert.Equal(t, "custom-model", Global().Model.Default)
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.7, cfg.Sampling.Temperature)
	assert.Equal(t, 0.95, cfg.Sampling.TopP)
	assert.Equal(t, 4096, cfg.Sampling.MaxTokens)
	assert.Equal(t, 40, cfg.Sampling.TopK)
	assert.Equal(t, 0.05, cfg.Sampling.MinP)
	assert.Zero(t, cfg.Sampling.PresencePenalty)
	assert.Zero(t, cfg.Sampling.FrequencyPenalty)
	assert.Equal(t, "medium", cfg.Sampling.Reasoning)
	assert.Equal(t, 20, cfg.Model.History)
	assert.Equal(t, StorageServer, cfg.Storage.Mode)
	assert.True(t, cfg.Configured())

	wire := cfg.WireSampling()
	assert.Equal(t, 0.7, wire.Temperature)
	assert.Equal(t, "medium", wire.Reasoning)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *Config)
		field string
	}{
		{"valid default config", func(c *Config) {}, ""},
		{"empty server url is allowed", func(c *Config) { c.Server.URL = "" }, ""},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://host" }, "server.url"},
		{"missing host", func(c *Config) { c.Server.URL = "http://" }, "server.url"},
		{"temperature too high", func(c *Config) { c.Sampling.Temperature = 2.5 }, "sampling.temperature"},
		{"top_p above one", func(c *Config) { c.Sampling.TopP = 1.2 }, "sampling.top_p"},
		{"zero max tokens", func(c *Config) { c.Sampling.MaxTokens = 0 }, "sampling.max_tokens"},
		{"negative top_k", func(c *Config) { c.Sampling.TopK = -1 }, "sampling.top_k"},
		{"penalty out of range", func(c *Config) { c.Sampling.PresencePenalty = 3 }, "sampling.presence_penalty"},
		{"unknown reasoning", func(c *Config) { c.Sampling.Reasoning = "max" }, "sampling.reasoning"},
		{"reasoning none", func(c *Config) { c.Sampling.Reasoning = "none" }, ""},
		{"unknown search depth", func(c *Config) { c.Research.SearchDepth = "shallow" }, "research.search_depth"},
		{"unknown theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"unknown storage", func(c *Config) { c.Storage.Mode = "cloud" }, "storage.mode"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"history zero", func(c *Config) { c.Model.History = 0 }, "model.history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.edit(c)
			err := c.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var errs ValidateErrors
			require.ErrorAs(t, err, &errs)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestConfig_ValidateAggregates(t *testing.T) {
	c := Default()
	c.UI.Theme = "neon"
	c.Storage.Mode = "cloud"
	var errs ValidateErrors
	require.ErrorAs(t, c.Validate(), &errs)
	assert.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "ui.theme")
	assert.Contains(t, errs.Error(), "storage.mode")
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("sampling.top_p")
	require.NoError(t, err)
	assert.Equal(t, 0.95, val)

	require.NoError(t, cfg.Set("sampling.temperature", "0.2"))
	require.NoError(t, cfg.Set("sampling.max_tokens", "1024"))
	require.NoError(t, cfg.Set("research.deep_research", "yes"))
	require.NoError(t, cfg.Set("server.url", "http://example.com:9000"))
	require.NoError(t, cfg.Set("model.vision_models", "llava, qwen-vl,"))
	require.NoError(t, cfg.Set("model.history", 8))

	assert.Equal(t, 0.2, cfg.Sampling.Temperature)
	assert.Equal(t, 1024, cfg.Sampling.MaxTokens)
	assert.True(t, cfg.Research.DeepResearch)
	assert.Equal(t, "http://example.com:9000", cfg.Server.URL)
	assert.Equal(t, []string{"llava", "qwen-vl"}, cfg.Model.VisionModels)
	assert.Equal(t, 8, cfg.Model.History)
	assert.True(t, cfg.IsVisionModel("LLaVA"))

	_, err = cfg.Get("invalid.key")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("sampling", "x"))
	assert.Error(t, cfg.Set("sampling.top_k", "many"))
	assert.Error(t, cfg.Set("server.url.host", "x"))
}

func TestConfig_KeysResolve(t *testing.T) {
	cfg := Default()
	keys := Keys()
	assert.Contains(t, keys, "sampling.frequency_penalty")
	assert.Contains(t, keys, "storage.mode")
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Model.VisionModels = []string{"a"}

	clone := original.Clone()
	clone.Model.VisionModels[0] = "b"
	clone.Model.Default = "other"

	assert.Equal(t, "a", original.Model.VisionModels[0])
	assert.Equal(t, "", original.Model.Default)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Sampling, cfg.Sampling)
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
[server]
url = "http://10.0.0.2:8000"

[sampling]
temperature = 0.3
`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8000", cfg.Server.URL)
	assert.Equal(t, 0.3, cfg.Sampling.Temperature)
	assert.Equal(t, 0.95, cfg.Sampling.TopP)
	assert.Equal(t, "medium", cfg.Sampling.Reasoning)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[sampling]\ntemprature = 0.3\n")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling.temprature")
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[ui]\ntheme = \"neon\"\n")
	_, err := Load()
	var errs ValidateErrors
	require.ErrorAs(t, err, &errs)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("LUMINOUS_SERVER_URL", "http://override:1234")
	t.Setenv("LUMINOUS_MODEL", "m-env")
	t.Setenv("LUMINOUS_STORAGE", "LOCAL")
	t.Setenv("LUMINOUS_DEEP_RESEARCH", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://override:1234", cfg.Server.URL)
	assert.Equal(t, "m-env", cfg.Model.Default)
	assert.Equal(t, StorageLocal, cfg.Storage.Mode)
	assert.True(t, cfg.Research.DeepResearch)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".luminous"), 0700))
	writeFile(t, filepath.Join(dir, ".luminous", ".env"), "LUMINOUS_THEME=light\n")
	os.Unsetenv("LUMINOUS_THEME")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestSaveAndReload(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Model.Default = "saved-model"
	cfg.Model.VisionModels = []string{"v1"}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	back, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-model", back.Model.Default)
	assert.Equal(t, []string{"v1"}, back.Model.VisionModels)
	assert.Equal(t, cfg.Sampling, back.Sampling)
}

func TestWatchReloads(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, 20*time.Millisecond, func(c *Config, err error) {
		if err == nil {
			got <- c
		}
	}))

	cfg := Default()
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case c := <-got:
		assert.Equal(t, "light", c.UI.Theme)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after the file changed")
	}
}
