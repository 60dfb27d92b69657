// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"strings"
)

// Kind classifies a decoded frame.
type Kind int

const (
	// KindDelta carries content and/or reasoning fragments. It may be empty
	// (role-only chunks) and may carry usage.
	KindDelta Kind = iota
	// KindUsage carries only a usage object.
	KindUsage
	// KindRedact tells the caller to reset the current message.
	KindRedact
	// KindError carries a server-reported error.
	KindError
	// KindDone is the [DONE] terminator.
	KindDone
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindUsage:
		return "usage"
	case KindRedact:
		return "redact"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Delta is one incremental fragment of model output.
type Delta struct {
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// Empty reports whether the delta has no text.
func (d Delta) Empty() bool {
	return d.Content == "" && d.ReasoningContent == ""
}

// Usage is the token accounting sent with include_usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Frame is one decoded data line.
type Frame struct {
	Kind  Kind
	Delta Delta
	Usage *Usage

	// FinishReason of the first choice, when the server sent one.
	FinishReason string

	// Error is set for KindError.
	Error string

	// RedactMessage is the optional indicator text of a redaction frame.
	RedactMessage string

	// Raw is the JSON payload as received.
	Raw string
}

// DoneMarker terminates the stream.
const DoneMarker = "[DONE]"

type payload struct {
	Choices []struct {
		Delta        *Delta  `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error   json.RawMessage `json:"error"`
	Usage   *Usage          `json:"usage"`
	Redact  bool            `json:"__redact__"`
	Message string          `json:"message"`
}

// parsePayload decodes one data payload. ok is false for malformed JSON.
func parsePayload(data string) (Frame, bool) {
	if data == DoneMarker {
		return Frame{Kind: KindDone, Raw: data}, true
	}

	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Frame{}, false
	}

	f := Frame{Kind: KindDelta, Raw: data, Usage: p.Usage}
	if msg := errorText(p.Error); msg != "" {
		f.Kind = KindError
		f.Error = msg
		return f, true
	}
	if p.Redact {
		f.Kind = KindRedact
		f.RedactMessage = p.Message
		return f, true
	}
	if len(p.Choices) > 0 {
		if p.Choices[0].Delta != nil {
			f.Delta = *p.Choices[0].Delta
		}
		if p.Choices[0].FinishReason != nil {
			f.FinishReason = *p.Choices[0].FinishReason
		}
		return f, true
	}
	if p.Usage != nil {
		f.Kind = KindUsage
	}
	return f, true
}

// errorText extracts a message from an "error" field, which servers send
// either as a string or as an object with a message.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	switch strings.TrimSpace(string(raw)) {
	case "null", "false", "{}", `""`:
		return ""
	}
	return string(raw)
}
