// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor replaces sensitive data in log strings.
type Redactor interface {
	Redact(input string) string
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace func(string) string
}

// NewPatternRedactor creates a redactor replacing every match with replace.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{
		name:    name,
		pattern: pattern,
		replace: func(string) string { return replace },
	}
}

// Redact replaces matches.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllStringFunc(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

var dataURLPattern = regexp.MustCompile(`data:(image/[a-zA-Z0-9.+-]+);base64,[A-Za-z0-9+/=]+`)

// imageRedactor keeps the media type and size of attached images.
func imageRedactor() *PatternRedactor {
	return &PatternRedactor{
		name:    "ImageDataURL",
		pattern: dataURLPattern,
		replace: func(m string) string {
			sub := dataURLPattern.FindStringSubmatch(m)
			payload := len(m) - strings.IndexByte(m, ',') - 1
			return fmt.Sprintf("data:%s;base64,[%d bytes]", sub[1], payload)
		},
	}
}

// DefaultRedactors returns the redactors installed by Init.
func DefaultRedactors() []Redactor {
	return []Redactor{
		imageRedactor(),
		NewPatternRedactor("Bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"),
		NewPatternRedactor("OpenAI", regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`), "[API_KEY_REDACTED]"),
	}
}

// redactAttr is a slog ReplaceAttr hook applying redactors to strings.
func redactAttr(redactors []Redactor) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if a.Value.Kind() != slog.KindString {
			return a
		}
		s := a.Value.String()
		for _, r := range redactors {
			s = r.Redact(s)
		}
		return slog.String(a.Key, s)
	}
}
