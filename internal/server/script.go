// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
)

// InputPlaceholder in step text is replaced by the last user message.
const InputPlaceholder = "{{input}}"

// Response modes select which requests a response answers.
const (
	ModeAny      = ""
	ModeChat     = "chat"
	ModeResearch = "research"
	ModeApproved = "approved"
)

// Activity is a structured deep research progress event.
type Activity struct {
	Type string         `toml:"type"`
	Data map[string]any `toml:"data"`
}

// Usage is a token usage report.
type Usage struct {
	PromptTokens     int `toml:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int `toml:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int `toml:"total_tokens" json:"total_tokens"`
}

// Step is one unit of a scripted stream. Exactly one field is expected to
// be set; when several are, they are emitted in declaration order.
type Step struct {
	Reasoning string    `toml:"reasoning"`
	Content   string    `toml:"content"`
	Activity  *Activity `toml:"activity"`

	// Redact clears everything the client accumulated for the message.
	Redact        bool   `toml:"redact"`
	RedactMessage string `toml:"redact_message"`

	// Error ends the stream with an error frame.
	Error string `toml:"error"`

	// Raw is written verbatim as the payload of one data line.
	Raw string `toml:"raw"`

	Usage *Usage `toml:"usage"`

	// Hold blocks until the client disconnects, the chat is stopped or
	// Release is called.
	Hold bool `toml:"hold"`

	// DelayMS pauses before the step.
	DelayMS int `toml:"delay_ms"`
}

// Response is a scripted answer.
type Response struct {
	// Match is a case-insensitive substring of the last user message.
	// Empty matches everything.
	Match string `toml:"match"`
	Mode  string `toml:"mode"`
	Steps []Step `toml:"steps"`

	// NoDone omits the [DONE] terminator.
	NoDone bool `toml:"no_done"`
}

// Script is an ordered list of responses; the first match wins.
type Script struct {
	Responses []Response `toml:"response"`

	// StepDelayMS is added before every step.
	StepDelayMS int `toml:"step_delay_ms"`
}

// LoadScript reads a TOML script.
func LoadScript(path string) (*Script, error) {
	var s Script
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseScript decodes a TOML script from a string.
func ParseScript(data string) (*Script, error) {
	var s Script
	if _, err := toml.Decode(data, &s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks modes.
func (s *Script) Validate() error {
	for i, r := range s.Responses {
		switch r.Mode {
		case ModeAny, ModeChat, ModeResearch, ModeApproved:
		default:
			return fmt.Errorf("response %d: unknown mode %q", i, r.Mode)
		}
	}
	return nil
}

// Match returns the first response answering req, or the fallback echo.
func (s *Script) Match(req *luminous.CompletionRequest) Response {
	input := strings.ToLower(lastUserText(req.Messages))
	mode := requestMode(req)
	for _, r := range s.Responses {
		if r.Mode != ModeAny && r.Mode != mode {
			continue
		}
		if r.Match != "" && !strings.Contains(input, strings.ToLower(r.Match)) {
			continue
		}
		return r
	}
	return Response{Steps: []Step{{Content: "You said: " + InputPlaceholder}}}
}

func requestMode(req *luminous.CompletionRequest) string {
	switch {
	case req.DeepResearchMode && req.ApprovedPlan != nil:
		return ModeApproved
	case req.DeepResearchMode:
		return ModeResearch
	default:
		return ModeChat
	}
}

func lastUserText(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			return msgs[i].Text()
		}
	}
	return ""
}

// DefaultScript is the demo script used by `luminous serve` without a
// script file. It covers thinking, research plans, activity feeds and
// redaction.
func DefaultScript() *Script {
	return &Script{
		StepDelayMS: 40,
		Responses: []Response{
			{
				Mode: ModeResearch,
				Steps: []Step{
					{Activity: &Activity{Type: string(content.ActivityPhase), Data: map[string]any{"message": "Planning research"}}},
					{Activity: &Activity{Type: string(content.ActivityPlanning), Data: map[string]any{
						"step_id": "plan", "state": "drafting", "message": "Drafting a plan"}}},
					{Activity: &Activity{Type: string(content.ActivityPlanning), Data: map[string]any{
						"step_id": "plan", "state": "complete", "message": "Plan ready"}}},
					{Content: "Here is the proposed plan.\n\n<research_plan>\nTitle: " + InputPlaceholder +
						"\n1. Survey the topic\n2. Compare sources\n3. Write the report\n</research_plan>"},
				},
			},
			{
				Mode: ModeApproved,
				Steps: []Step{
					{Activity: &Activity{Type: string(content.ActivityPhase), Data: map[string]any{"message": "Researching"}}},
					{Activity: &Activity{Type: string(content.ActivitySearch), Data: map[string]any{
						"step_id": "s1", "query": "survey"}}},
					{Activity: &Activity{Type: string(content.ActivitySearchResults), Data: map[string]any{
						"step_id": "s1", "count": 2, "results": []any{
							map[string]any{"title": "First source", "url": "https://example.com/a"},
							map[string]any{"title": "Second source", "url": "https://example.com/b"},
						}}}},
					{Activity: &Activity{Type: string(content.ActivityVisit), Data: map[string]any{
						"step_id": "v1", "url": "https://example.com/a"}}},
					{Activity: &Activity{Type: string(content.ActivityVisitComplete), Data: map[string]any{
						"step_id": "v1", "url": "https://example.com/a", "chars": 5120}}},
					{Content: "# Report\n\nBoth sources agree.\n"},
					{Usage: &Usage{PromptTokens: 120, CompletionTokens: 48, TotalTokens: 168}},
				},
			},
			{
				Match: "format",
				Steps: []Step{
					{Content: "| broken | table\n"},
					{Redact: true},
					{Content: "| fixed | table |\n|---|---|\n| a | b |\n"},
				},
			},
			{
				Match: "slow",
				Steps: []Step{
					{Reasoning: "<think>Taking my time</think>"},
					{Content: "Still working"},
					{Hold: true},
				},
			},
			{
				Steps: []Step{
					{Reasoning: "<think>The user said: " + InputPlaceholder + "</think>"},
					{Content: "You said: " + InputPlaceholder},
					{Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
				},
			},
		},
	}
}
