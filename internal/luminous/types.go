// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package luminous

import (
	"github.com/jeranaias/luminous-tui/internal/model"
)

// =============================================================================
// COMPLETION REQUEST
// =============================================================================

// StreamOptions asks the server to append a usage frame.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Sampling holds the generation parameters sent for regular chats. Deep
// research requests carry none of them.
type Sampling struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	MaxTokens        int     `json:"max_tokens"`
	TopK             int     `json:"top_k"`
	MinP             float64 `json:"min_p"`
	PresencePenalty  float64 `json:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	Reasoning        string  `json:"reasoning"`
}

// ReasoningOff is the wire value for disabled reasoning.
const ReasoningOff = "off"

// WireReasoning maps a configured reasoning level to its wire value.
func WireReasoning(level string) string {
	if level == "" || level == "none" {
		return ReasoningOff
	}
	return level
}

// CompletionRequest is the body of POST /v1/chat/completions.
type CompletionRequest struct {
	Model         string          `json:"model"`
	LastModelName string          `json:"lastModelName,omitempty"`
	HasVision     bool            `json:"hasVision"`
	Messages      []model.Message `json:"messages"`

	// ChatID is nil for temporary chats, which the server does not persist.
	ChatID           *string `json:"chatId"`
	MemoryMode       bool    `json:"memoryMode"`
	DeepResearchMode bool    `json:"deepResearchMode"`
	SearchDepthMode  *string `json:"searchDepthMode"`
	VisionModel      *string `json:"visionModel"`
	ApprovedPlan     *string `json:"approvedPlan"`

	Stream        bool          `json:"stream"`
	StreamOptions StreamOptions `json:"stream_options"`

	// Sampling fields are inlined; nil omits them entirely.
	*Sampling
}

// =============================================================================
// CHAT API
// =============================================================================

// saveChatRequest is the body of POST /api/chats/save.
type saveChatRequest struct {
	ChatID           string          `json:"chat_id"`
	Title            string          `json:"title"`
	Messages         []model.Message `json:"messages"`
	MemoryMode       bool            `json:"memory_mode"`
	DeepResearchMode bool            `json:"deep_research_mode"`
	IsVision         bool            `json:"is_vision"`
	LastModel        string          `json:"last_model,omitempty"`
}

// errorBody is the JSON error shape of the server.
type errorBody struct {
	Error string `json:"error"`
}

// modelEntry covers both the OpenAI list entry and the richer local server
// entry with key, display name and capabilities.
type modelEntry struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	DisplayName  string `json:"display_name"`
	Capabilities struct {
		Vision bool `json:"vision"`
	} `json:"capabilities"`
}

type modelList struct {
	Data   []modelEntry `json:"data"`
	Models []modelEntry `json:"models"`
}
