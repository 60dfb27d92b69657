// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jeranaias/luminous-tui/internal/luminous"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"show", "--lines", "50"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("lines") != "50" {
					t.Errorf("Flag(lines) = %q, want %q", p.Flag("lines"), "50")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"show", "--since=2024-01-01"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("since") != "2024-01-01" {
					t.Errorf("Flag(since) = %q, want %q", p.Flag("since"), "2024-01-01")
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"show", "--json"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be true")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"search", "error", "in", "production"},
			wantSub: "search",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 4 {
					t.Errorf("PositionalCount() = %d, want 4", p.PositionalCount())
				}
				joined := strings.Join(p.PositionalFrom(1), " ")
				if joined != "error in production" {
					t.Errorf("PositionalFrom(1) joined = %q, want %q", joined, "error in production")
				}
			},
		},
		{
			name:    "mixed flags and positional",
			args:    []string{"export", "--format", "json", "abc123", "more"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "json" {
					t.Errorf("Flag(format) = %q, want %q", p.Flag("format"), "json")
				}
				if p.Positional(1) != "abc123" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "abc123")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		flagName   string
		defaultVal int
		want       int
	}{
		{
			name:       "flag present",
			args:       []string{"cmd", "--limit", "10"},
			flagName:   "limit",
			defaultVal: 5,
			want:       10,
		},
		{
			name:       "flag missing uses default",
			args:       []string{"cmd"},
			flagName:   "limit",
			defaultVal: 5,
			want:       5,
		},
		{
			name:       "invalid int uses default",
			args:       []string{"cmd", "--limit", "abc"},
			flagName:   "limit",
			defaultVal: 5,
			want:       5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			got := parser.FlagIntOrDefault(tt.flagName, tt.defaultVal)
			if got != tt.want {
				t.Errorf("FlagIntOrDefault(%q, %d) = %d, want %d", tt.flagName, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestArgParser_HasFlag(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--verbose", "--lines", "50"})

	if !parser.HasFlag("verbose") {
		t.Error("HasFlag(verbose) should be true")
	}
	if !parser.HasFlag("lines") {
		t.Error("HasFlag(lines) should be true")
	}
	if parser.HasFlag("nonexistent") {
		t.Error("HasFlag(nonexistent) should be false")
	}
}

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{
			name:    "no arguments starts the tui",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "global flags before the tui",
			argv:    []string{"--server", "http://h:1", "-m", "m1", "--research", "--memory", "--temp", "--chat=c1"},
			wantCmd: CmdTUI,
			check: func(t *testing.T, a Args) {
				if a.Server != "http://h:1" || a.Model != "m1" || a.ChatID != "c1" {
					t.Errorf("server/model/chat = %q/%q/%q", a.Server, a.Model, a.ChatID)
				}
				if !a.Research || !a.Memory || !a.Temporary {
					t.Errorf("mode flags not set: %+v", a)
				}
			},
		},
		{
			name:    "ask joins the question",
			argv:    []string{"ask", "what", "is", "go"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Query != "what is go" {
					t.Errorf("Query = %q", a.Query)
				}
			},
		},
		{
			name:    "ask flags",
			argv:    []string{"ask", "-i", "chart.png", "--approve", "--json", "explain"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Image != "chart.png" || !a.Approve || !a.JSON || a.Query != "explain" {
					t.Errorf("unexpected args: %+v", a)
				}
			},
		},
		{
			name:    "double dash keeps flags in the question",
			argv:    []string{"ask", "--", "--approve", "me"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Approve || a.Query != "--approve me" {
					t.Errorf("Approve = %v, Query = %q", a.Approve, a.Query)
				}
			},
		},
		{
			name:    "unknown word is a question",
			argv:    []string{"Why", "is", "the", "sky", "blue?"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Query != "Why is the sky blue?" {
					t.Errorf("Query = %q", a.Query)
				}
			},
		},
		{
			name:    "chats subcommand",
			argv:    []string{"chats", "Show", "abc"},
			wantCmd: CmdChats,
			check: func(t *testing.T, a Args) {
				if a.Subcommand != "show" {
					t.Errorf("Subcommand = %q", a.Subcommand)
				}
				if !reflect.DeepEqual(a.Raw, []string{"Show", "abc"}) {
					t.Errorf("Raw = %v", a.Raw)
				}
			},
		},
		{
			name:    "config with json",
			argv:    []string{"--json", "config", "get", "server.url"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				if !a.JSON || a.Subcommand != "get" {
					t.Errorf("JSON = %v, Subcommand = %q", a.JSON, a.Subcommand)
				}
			},
		},
		{name: "repl", argv: []string{"repl"}, wantCmd: CmdRepl},
		{name: "chat alias", argv: []string{"chat"}, wantCmd: CmdRepl},
		{name: "serve", argv: []string{"serve", "--addr", ":9"}, wantCmd: CmdServe},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "help", argv: []string{"-h"}, wantCmd: CmdHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Parse(tt.argv)
			if cmd != tt.wantCmd {
				t.Fatalf("Parse(%v) command = %v, want %v", tt.argv, cmd, tt.wantCmd)
			}
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"usage", ErrMissingArgument("key", "usage"), ExitUsageError},
		{"config", &ConfigError{Err: errors.New("bad")}, ExitConfigError},
		{"not configured", &luminous.ClientError{Type: luminous.ErrTypeNotConfigured}, ExitConfigError},
		{"timeout", &luminous.ClientError{Type: luminous.ErrTypeTimeout}, ExitTimeoutError},
		{"connection", &luminous.ClientError{Type: luminous.ErrTypeConnection}, ExitNetworkError},
		{"wrapped not found", fmt.Errorf("load: %w", &luminous.APIError{Status: 404, Message: "gone"}), ExitNotFoundError},
		{"server error", &luminous.APIError{Status: 500, Message: "oops"}, ExitGeneralError},
		{"reported", &ReportedError{Err: errors.New("inline")}, ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUsageErrorIncludesUsage(t *testing.T) {
	err := ErrUnknownSubcommand("chats", "frob", "luminous chats list")
	if !strings.Contains(err.Error(), "frob") || !strings.Contains(err.Error(), "Usage: luminous chats list") {
		t.Errorf("Error() = %q", err.Error())
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestArgParser_EmptyArgs(t *testing.T) {
	parser := NewArgParser([]string{})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if parser.PositionalCount() != 0 {
		t.Errorf("PositionalCount() = %d, want 0", parser.PositionalCount())
	}
}

func TestArgParser_OnlyFlags(t *testing.T) {
	parser := NewArgParser([]string{"--verbose", "--json"})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if !parser.BoolFlag("verbose") {
		t.Error("BoolFlag(verbose) should be true")
	}
	if !parser.BoolFlag("json") {
		t.Error("BoolFlag(json) should be true")
	}
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--present", "value"})

	if parser.FlagOrDefault("present", "default") != "value" {
		t.Error("FlagOrDefault should return actual value when present")
	}
	if parser.FlagOrDefault("missing", "default") != "default" {
		t.Error("FlagOrDefault should return default when missing")
	}
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkArgParser_Simple(b *testing.B) {
	args := []string{"show", "abc123"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}

func BenchmarkArgParser_Complex(b *testing.B) {
	args := []string{"export", "abc123", "--format", "html", "--output", "/tmp/out", "--no-thoughts", "-q"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}

func BenchmarkArgParser_ManyFlags(b *testing.B) {
	args := []string{
		"cmd",
		"--flag1", "value1",
		"--flag2", "value2",
		"--flag3", "value3",
		"--flag4", "value4",
		"--flag5", "value5",
		"--bool1",
		"--bool2",
		"--bool3",
		"positional1",
		"positional2",
	}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}
