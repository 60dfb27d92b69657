// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// =============================================================================
// JSON RESPONSE WRAPPER
// =============================================================================

// JSONResponse is the envelope of every --json output.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Command   string      `json:"command"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Command:   command,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	return &JSONResponse{
		Success:   false,
		Command:   command,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

// Print writes the response to stdout as indented JSON.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write writes the response to w as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// =============================================================================
// COMMAND DATA TYPES
// =============================================================================

// VersionData is the data of `version --json`.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// AskData is the data of `ask --json`.
type AskData struct {
	ChatID   string   `json:"chat_id,omitempty"`
	Model    string   `json:"model"`
	Answer   string   `json:"answer"`
	Thoughts string   `json:"thoughts,omitempty"`
	Plan     string   `json:"plan,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ChatListItem is one chat of `chats list --json`.
type ChatListItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Updated      time.Time `json:"updated"`
	DeepResearch bool      `json:"deep_research,omitempty"`
	Memory       bool      `json:"memory,omitempty"`
	Vision       bool      `json:"vision,omitempty"`
	LastModel    string    `json:"last_model,omitempty"`
}
