// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/server"
	"github.com/jeranaias/luminous-tui/internal/storage"
)

const echoScript = `
[[response]]
match = "format"
[[response.steps]]
content = "bad"
[[response.steps]]
redact = true
[[response.steps]]
content = "good"

[[response]]
match = "fail"
[[response.steps]]
content = "partial"
[[response.steps]]
error = "boom"

[[response]]
mode = "research"
[[response.steps]]
content = "Here is my plan.\n<research_plan>Title: X</research_plan>"

[[response]]
mode = "approved"
[[response.steps]]
activity = { type = "visit_complete", data = { step_id = "v1", url = "https://example.com/a" } }
[[response.steps]]
content = "Report"

[[response]]
[[response.steps]]
reasoning = "<think>pondering</think>"
[[response.steps]]
content = "Hi"
[[response.steps]]
content = " there"
`

// replayConfig starts a replay server and returns a config pointing at it.
func replayConfig(t *testing.T) *config.Config {
	t.Helper()
	sc, err := server.ParseScript(echoScript)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	srv := server.New().WithScript(sc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	cfg := config.Default()
	cfg.Server.URL = ts.URL
	cfg.Model.Default = "replay-small"
	return cfg
}

func mustBackend(t *testing.T, cfg *config.Config) *backend {
	t.Helper()
	b, err := openBackend(cfg)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// =============================================================================
// ASK
// =============================================================================

func TestRunAskStreamsAnswer(t *testing.T) {
	cfg := replayConfig(t)
	var out, info bytes.Buffer

	data, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), Args{Query: "hello"}, &out, &info)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if out.String() != "Hi there\n" {
		t.Errorf("out = %q, want %q", out.String(), "Hi there\n")
	}
	if data.Answer != "Hi there" || data.Model != "replay-small" {
		t.Errorf("data = %+v", data)
	}
	if !strings.Contains(data.Thoughts, "pondering") {
		t.Errorf("Thoughts = %q, want it to contain the reasoning", data.Thoughts)
	}
	if data.ChatID == "" {
		t.Error("ChatID should be set for a saved chat")
	}
}

func TestRunAskPicksModel(t *testing.T) {
	cfg := replayConfig(t)
	cfg.Model.Default = ""

	data, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), Args{Query: "hello"}, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if data.Model != "replay-small" {
		t.Errorf("Model = %q, want the first offered model", data.Model)
	}
}

func TestRunAskRedaction(t *testing.T) {
	cfg := replayConfig(t)
	var out bytes.Buffer

	data, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), Args{Query: "format this"}, &out, nil)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if out.String() != "bad\ngood\n" {
		t.Errorf("out = %q, want the corrected text on a new line", out.String())
	}
	if data.Answer != "good" {
		t.Errorf("Answer = %q, want %q", data.Answer, "good")
	}
}

func TestRunAskInlineError(t *testing.T) {
	cfg := replayConfig(t)
	var out bytes.Buffer

	data, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), Args{Query: "fail please"}, &out, nil)
	var reported *ReportedError
	if !errors.As(err, &reported) {
		t.Fatalf("err = %v, want a ReportedError", err)
	}
	if data == nil || !strings.Contains(data.Error, "boom") {
		t.Fatalf("data = %+v, want the inline error", data)
	}
	if !strings.Contains(out.String(), "boom") {
		t.Errorf("out = %q, want the inline error printed", out.String())
	}
}

func TestRunAskPlanWithoutApproval(t *testing.T) {
	cfg := replayConfig(t)
	cfg.Research.DeepResearch = true
	var out bytes.Buffer

	data, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), Args{Query: "research X"}, &out, nil)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if data.Plan != "Title: X" {
		t.Errorf("Plan = %q, want the pending plan", data.Plan)
	}
	if !strings.Contains(out.String(), "Research plan") || !strings.Contains(out.String(), "Title: X") {
		t.Errorf("out = %q, want the plan printed", out.String())
	}
}

func TestRunAskApprove(t *testing.T) {
	cfg := replayConfig(t)
	cfg.Research.DeepResearch = true
	var out, info bytes.Buffer

	args := Args{Query: "research X", Approve: true}
	data, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), args, &out, &info)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if data.Answer != "Report" || data.Plan != "" {
		t.Errorf("data = %+v, want the report and no pending plan", data)
	}
	if len(data.Sources) != 1 || data.Sources[0] != "https://example.com/a" {
		t.Errorf("Sources = %v", data.Sources)
	}
	if !strings.Contains(info.String(), "Read https://example.com/a") {
		t.Errorf("info = %q, want the activity line", info.String())
	}
}

func TestRunAskNotConfigured(t *testing.T) {
	cfg := replayConfig(t)
	cfg.Server.URL = ""

	_, err := runAsk(context.Background(), cfg, mustBackend(t, cfg), Args{Query: "hello"}, &bytes.Buffer{}, nil)
	var notice *NoticeError
	if !errors.As(err, &notice) {
		t.Fatalf("err = %v, want a NoticeError", err)
	}
}

// =============================================================================
// REPL
// =============================================================================

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	cfg := replayConfig(t)
	var out bytes.Buffer
	r := &repl{out: &out, exports: t.TempDir()}
	r.session = newChatSession(cfg, mustBackend(t, cfg), Args{}, &out, nil)
	t.Cleanup(r.session.Close)
	return r, &out
}

func TestReplTurnAndCommands(t *testing.T) {
	r, out := newTestRepl(t)

	if !r.handle("hello") {
		t.Fatal("handle returned false for a message")
	}
	if !strings.Contains(out.String(), "Hi there") {
		t.Fatalf("out = %q, want the answer", out.String())
	}

	out.Reset()
	r.handle("/thoughts")
	if !strings.Contains(out.String(), "pondering") {
		t.Errorf("/thoughts printed %q", out.String())
	}

	out.Reset()
	r.handle("/retry")
	if !strings.Contains(out.String(), "Hi there") {
		t.Errorf("/retry printed %q", out.String())
	}
	if n := len(r.session.ctrl.Messages()); n != 2 {
		t.Errorf("transcript has %d messages after retry, want 2", n)
	}

	out.Reset()
	r.handle("/export json")
	files, _ := filepath.Glob(filepath.Join(r.exports, "*.json"))
	if len(files) != 1 {
		t.Errorf("export wrote %v, out = %q", files, out.String())
	}

	if r.handle("/quit") {
		t.Error("/quit should end the repl")
	}
	if r.handle("exit") {
		t.Error("exit should end the repl")
	}
}

func TestReplModes(t *testing.T) {
	r, out := newTestRepl(t)

	r.handle("/research on")
	r.handle("/memory")
	r.handle("/depth deep")
	s := r.session.ctrl.Settings()
	if !s.DeepResearch || !s.MemoryMode || s.SearchDepth != "deep" {
		t.Errorf("settings = %+v", s)
	}

	out.Reset()
	r.handle("/depth sideways")
	if !strings.Contains(out.String(), "usage: /depth") {
		t.Errorf("bad depth printed %q", out.String())
	}

	r.handle("/model replay-vision")
	if got := r.session.ctrl.Settings().Model; got.ID != "replay-vision" || !got.Vision {
		t.Errorf("model = %+v", got)
	}

	out.Reset()
	r.handle("/model nope")
	if !strings.Contains(out.String(), "unknown model") {
		t.Errorf("unknown model printed %q", out.String())
	}
}

func TestReplApprove(t *testing.T) {
	r, out := newTestRepl(t)

	out.Reset()
	r.handle("/approve")
	if !strings.Contains(out.String(), "No research plan") {
		t.Errorf("/approve without a plan printed %q", out.String())
	}

	r.handle("/research on")
	r.handle("research X")
	if r.session.ctrl.PendingPlan() == "" {
		t.Fatal("expected a pending plan")
	}
	out.Reset()
	r.handle("/approve")
	if !strings.Contains(out.String(), "Report") {
		t.Errorf("/approve printed %q", out.String())
	}
	if r.session.ctrl.PendingPlan() != "" {
		t.Error("plan still pending after approval")
	}
}

func TestReplUnknownCommand(t *testing.T) {
	r, out := newTestRepl(t)
	if !r.handle("/frobnicate") {
		t.Error("unknown command should not end the repl")
	}
	if !strings.Contains(out.String(), "unknown command: /frobnicate") {
		t.Errorf("out = %q", out.String())
	}
}

// =============================================================================
// CHATS
// =============================================================================

func seededStore(t *testing.T) storage.Store {
	t.Helper()
	st := storage.NewMemoryStore()
	chat := model.Chat{
		ChatMeta: model.ChatMeta{ID: "c1", Title: "Sky color", Timestamp: 1700000000, DeepResearchMode: true},
		Messages: []model.Message{
			model.NewUserMessage("why is the sky blue?", ""),
			model.NewAssistantMessage("Rayleigh scattering.", "replay-small"),
		},
	}
	if err := st.SaveChat(context.Background(), chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	return st
}

func TestRunChatsList(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer

	if err := runChats(context.Background(), config.Default(), st, Args{Raw: []string{"list"}}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "Sky color") || !strings.Contains(out.String(), "c1") {
		t.Errorf("list = %q", out.String())
	}

	out.Reset()
	if err := runChats(context.Background(), config.Default(), st, Args{JSON: true}, &out); err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var resp struct {
		Success bool           `json:"success"`
		Data    []ChatListItem `json:"data"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if !resp.Success || len(resp.Data) != 1 || resp.Data[0].ID != "c1" || !resp.Data[0].DeepResearch {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRunChatsShowExportDelete(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	cfg := config.Default()
	var out bytes.Buffer

	if err := runChats(ctx, cfg, st, Args{Raw: []string{"show", "c1"}}, &out); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out.String(), "Rayleigh scattering.") {
		t.Errorf("show = %q", out.String())
	}

	dir := t.TempDir()
	out.Reset()
	if err := runChats(ctx, cfg, st, Args{Raw: []string{"export", "c1", "--format", "html", "--output", dir}}, &out); err != nil {
		t.Fatalf("export: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.html"))
	if len(files) != 1 {
		t.Fatalf("export wrote %v", files)
	}
	if data, _ := os.ReadFile(files[0]); !strings.Contains(string(data), "Rayleigh") {
		t.Error("exported html is missing the answer")
	}

	if err := runChats(ctx, cfg, st, Args{Raw: []string{"delete", "c1"}}, &out); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if chats, _ := st.ListChats(ctx); len(chats) != 0 {
		t.Errorf("chats after delete = %v", chats)
	}
}

func TestRunChatsErrors(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	cfg := config.Default()

	var usage *UsageError
	if err := runChats(ctx, cfg, st, Args{Raw: []string{"show"}}, &bytes.Buffer{}); !errors.As(err, &usage) {
		t.Errorf("show without id: err = %v, want usage error", err)
	}
	if err := runChats(ctx, cfg, st, Args{Raw: []string{"clear"}}, &bytes.Buffer{}); !errors.As(err, &usage) {
		t.Errorf("clear without --confirm: err = %v, want usage error", err)
	}
	if err := runChats(ctx, cfg, st, Args{Raw: []string{"frob"}}, &bytes.Buffer{}); !errors.As(err, &usage) {
		t.Errorf("unknown subcommand: err = %v, want usage error", err)
	}
	if err := runChats(ctx, cfg, st, Args{Raw: []string{"clear", "--confirm"}}, &bytes.Buffer{}); err != nil {
		t.Errorf("clear --confirm: %v", err)
	}
	if chats, _ := st.ListChats(ctx); len(chats) != 0 {
		t.Errorf("chats after clear = %v", chats)
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestRunConfigSetGet(t *testing.T) {
	t.Cleanup(config.ResetGlobalForTesting)
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer

	set := Args{ConfigPath: path, Raw: []string{"set", "model.default", "qwen3-32b"}}
	if err := runConfig(set, &out); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out.String(), "model.default = qwen3-32b") {
		t.Errorf("set printed %q", out.String())
	}

	out.Reset()
	if err := runConfig(Args{ConfigPath: path, Raw: []string{"get", "model.default"}}, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out.String()) != "qwen3-32b" {
		t.Errorf("get = %q", out.String())
	}

	out.Reset()
	lists := Args{ConfigPath: path, Raw: []string{"set", "model.vision_models", "a, b"}}
	if err := runConfig(lists, &out); err != nil {
		t.Fatalf("set list: %v", err)
	}
	if !strings.Contains(out.String(), "= a,b") {
		t.Errorf("set list printed %q", out.String())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}
}

func TestRunConfigRejectsBadValues(t *testing.T) {
	t.Cleanup(config.ResetGlobalForTesting)
	path := filepath.Join(t.TempDir(), "config.toml")

	var usage *UsageError
	if err := runConfig(Args{ConfigPath: path, Raw: []string{"set", "nope.key", "x"}}, &bytes.Buffer{}); !errors.As(err, &usage) {
		t.Errorf("unknown key: err = %v, want usage error", err)
	}
	var cfgErr *ConfigError
	if err := runConfig(Args{ConfigPath: path, Raw: []string{"set", "storage.mode", "cloud"}}, &bytes.Buffer{}); !errors.As(err, &cfgErr) {
		t.Errorf("invalid mode: err = %v, want config error", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("a rejected value must not write the file")
	}
}

func TestRunConfigKeysAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer

	if err := runConfig(Args{Raw: []string{"keys"}}, &out); err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !strings.Contains(out.String(), "server.url\n") || !strings.Contains(out.String(), "research.deep_research\n") {
		t.Errorf("keys = %q", out.String())
	}

	out.Reset()
	if err := runConfig(Args{ConfigPath: path, Raw: []string{"path"}}, &out); err != nil {
		t.Fatalf("path: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("path = %q, want %q", out.String(), path)
	}
}
