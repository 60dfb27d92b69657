// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/luminous-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// Document is the JSON export format.
type Document struct {
	ID           string     `json:"id,omitempty"`
	Title        string     `json:"title"`
	Date         *time.Time `json:"date,omitempty"`
	LastModel    string     `json:"last_model,omitempty"`
	MemoryMode   bool       `json:"memory_mode"`
	DeepResearch bool       `json:"deep_research_mode"`
	IsVision     bool       `json:"is_vision"`
	Exported     time.Time  `json:"exported"`
	Messages     []Entry    `json:"messages"`

	// Raw holds the stored messages unchanged when thoughts are included,
	// so the export can be saved back as a chat.
	Raw []model.Message `json:"raw,omitempty"`
}

// JSONExporter exports chats to JSON format.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a chat to JSON format.
func (e *JSONExporter) Export(chat *model.Chat) ([]byte, error) {
	if err := validate(chat); err != nil {
		return nil, err
	}
	doc := Document{
		ID:           chat.ID,
		Title:        chat.Title,
		LastModel:    chat.LastModel,
		MemoryMode:   bool(chat.MemoryMode),
		DeepResearch: bool(chat.DeepResearchMode),
		IsVision:     bool(chat.IsVision),
		Exported:     e.options.now().UTC(),
		Messages:     Entries(chat),
	}
	if chat.Timestamp > 0 {
		date := chat.Time().UTC()
		doc.Date = &date
	}
	if e.options.IncludeThoughts {
		doc.Raw = chat.Messages
	} else {
		for i := range doc.Messages {
			doc.Messages[i].Thoughts = ""
			doc.Messages[i].Activity = nil
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
