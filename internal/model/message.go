// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// CONTENT
// =============================================================================

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ImagePlaceholder is the text sent with an image that has no caption.
const ImagePlaceholder = "[Image]"

// ImageURL references an image, usually as a data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one element of multimodal content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Content is either a plain string or a list of parts. It encodes as a JSON
// string when Parts is nil and as an array otherwise.
type Content struct {
	text  string
	Parts []ContentPart
}

// TextContent returns plain string content.
func TextContent(s string) Content {
	return Content{text: s}
}

// PartsContent returns multimodal content.
func PartsContent(parts ...ContentPart) Content {
	return Content{Parts: parts}
}

// IsMultimodal reports whether the content is a part list.
func (c Content) IsMultimodal() bool {
	return c.Parts != nil
}

// String returns the plain string content, or the text parts joined by
// newlines for multimodal content.
func (c Content) String() string {
	if c.Parts == nil {
		return c.text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Image returns the first image URL, or "".
func (c Content) Image() string {
	for _, p := range c.Parts {
		if p.Type == PartImageURL && p.ImageURL != nil {
			return p.ImageURL.URL
		}
	}
	return ""
}

// HasImage reports whether the content carries an image.
func (c Content) HasImage() bool {
	return c.Image() != ""
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts == nil {
		return json.Marshal(c.text)
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON implements json.Unmarshaler. It accepts a string, an array
// of parts or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{text: s}
		return nil
	case data[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []ContentPart{}
		}
		*c = Content{Parts: parts}
		return nil
	default:
		return fmt.Errorf("model: content must be a string or an array, got %s", data[:1])
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// MessageID identifies a message within one client session. Zero means
// unassigned.
type MessageID uint64

// Message is a single transcript entry.
type Message struct {
	ID      MessageID `json:"-"`
	Role    Role      `json:"role"`
	Content Content   `json:"content"`

	// Model that produced an assistant message.
	Model string `json:"model,omitempty"`
}

// Text returns the textual content.
func (m Message) Text() string {
	return m.Content.String()
}

// NewUserMessage creates a user message. With an image attached the content
// becomes a text part followed by an image part.
func NewUserMessage(text, image string) Message {
	if image == "" {
		return Message{Role: RoleUser, Content: TextContent(text)}
	}
	if text == "" {
		text = ImagePlaceholder
	}
	return Message{
		Role: RoleUser,
		Content: PartsContent(
			ContentPart{Type: PartText, Text: text},
			ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: image}},
		),
	}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content, modelName string) Message {
	return Message{Role: RoleAssistant, Content: TextContent(content), Model: modelName}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: TextContent(content)}
}

// IsText reports whether m is a plain text message from role with exactly
// the given text.
func (m Message) IsText(role Role, text string) bool {
	return m.Role == role && !m.Content.IsMultimodal() && m.Content.String() == text
}
