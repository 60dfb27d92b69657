// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// =============================================================================
// CHAT RECORDS
// =============================================================================

// Flag is a boolean that also decodes from the 0/1 integers the chat
// backend stores.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*f = true
		return nil
	case "false", "null", `""`:
		*f = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := strconv.ParseBool(s)
		*f = Flag(b)
		return err
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = n != 0
	return nil
}

// ChatMeta is a chat list entry.
type ChatMeta struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Timestamp        float64 `json:"timestamp"`
	MemoryMode       Flag    `json:"memory_mode"`
	DeepResearchMode Flag    `json:"deep_research_mode"`
	IsVision         Flag    `json:"is_vision"`
	LastModel        string  `json:"last_model,omitempty"`
}

// Time returns the timestamp as a time. Values above 1e12 are taken as
// milliseconds, smaller ones as seconds.
func (c ChatMeta) Time() time.Time {
	if c.Timestamp > 1e12 {
		return time.UnixMilli(int64(c.Timestamp))
	}
	sec := int64(c.Timestamp)
	nsec := int64((c.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Chat is a full chat record including messages.
type Chat struct {
	ChatMeta

	// IsResearchRunning is reported by the server when a research task for
	// the chat is still executing.
	IsResearchRunning bool      `json:"is_research_running,omitempty"`
	Messages          []Message `json:"messages"`
}

// Timestamp returns the current time in the chat timestamp unit (seconds).
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ChatPatch updates chat metadata. Nil fields are left unchanged.
type ChatPatch struct {
	Title     *string `json:"title,omitempty"`
	LastModel *string `json:"last_model,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ChatPatch) Empty() bool {
	return p.Title == nil && p.LastModel == nil
}

// =============================================================================
// MODEL INFO
// =============================================================================

// ModelInfo describes a model offered by the server.
type ModelInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Vision bool   `json:"vision,omitempty"`
}

// DisplayName returns Name or the id.
func (m ModelInfo) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
