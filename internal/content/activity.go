// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActivitySentinel is the marker field carried by every activity object.
const ActivitySentinel = "__deep_research_activity__"

// ActivityType names the kind of progress an activity reports.
type ActivityType string

// Activity types emitted by the deep research agent.
const (
	ActivityPhase         ActivityType = "phase"
	ActivityPlanning      ActivityType = "planning"
	ActivitySearch        ActivityType = "search"
	ActivitySearchResults ActivityType = "search_results"
	ActivityStatus        ActivityType = "status"
	ActivityVisit         ActivityType = "visit"
	ActivityVisitComplete ActivityType = "visit_complete"
)

// ActivityEvent is one structured progress notification embedded in the
// reasoning stream.
type ActivityEvent struct {
	Type ActivityType
	Data map[string]any
}

// String returns a field of Data as a string. Numbers and booleans are
// formatted; missing fields yield "".
func (a ActivityEvent) String(key string) string {
	v, ok := a.Data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// StepID returns the dedupe key used to find-or-create a feed slot.
func (a ActivityEvent) StepID() string {
	return a.String("step_id")
}

// Message returns the human readable message of the event, if any.
func (a ActivityEvent) Message() string {
	if m := a.String("message"); m != "" {
		return m
	}
	return a.String("content")
}

// Count returns an integer field of Data, or 0.
func (a ActivityEvent) Count(key string) int {
	switch t := a.Data[key].(type) {
	case float64:
		return int(t)
	case []any:
		return len(t)
	}
	return 0
}

// Results returns the list-valued "results" field as maps.
func (a ActivityEvent) Results() []map[string]any {
	list, _ := a.Data["results"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// DecodeActivity decodes a single fragment that is, on its own, an activity
// object. It is used on live reasoning deltas where the server emits each
// activity as one complete fragment.
func DecodeActivity(fragment string) (ActivityEvent, bool) {
	trimmed := strings.TrimSpace(fragment)
	if len(trimmed) < 2 || trimmed[0] != '{' {
		return ActivityEvent{}, false
	}
	return decodeCandidate(trimmed)
}

// decodeCandidate parses obj and returns it when it carries the sentinel.
func decodeCandidate(obj string) (ActivityEvent, bool) {
	ev, ok, _ := parseCandidate(obj)
	return ev, ok
}

// parseCandidate is decodeCandidate that also reports whether obj was valid
// JSON at all.
func parseCandidate(obj string) (ev ActivityEvent, ok, valid bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ActivityEvent{}, false, false
	}
	if marked, _ := raw[ActivitySentinel].(bool); !marked {
		return ActivityEvent{}, false, true
	}

	ev = ActivityEvent{Data: map[string]any{}}
	if t, isStr := raw["type"].(string); isStr {
		ev.Type = ActivityType(t)
	}
	if d, isMap := raw["data"].(map[string]any); isMap {
		ev.Data = d
	}
	return ev, true, true
}

// span is a balanced object candidate found in text, [start, end).
type span struct {
	start, end int
	event      ActivityEvent
	ok         bool
}

// scanObjects finds the outermost balanced-brace objects of text and decodes
// the ones carrying the activity sentinel.
//
// Quote and escape state is only tracked inside an object, so stray quotes
// in surrounding prose do not hide later objects. A candidate that is left
// open at the end of text, or that closes but is not valid JSON, started at
// a stray brace (often one quoted in prose); scanning resumes just after it.
func scanObjects(text string) []span {
	var spans []span
	i := 0
	for i < len(text) {
		depth, start := 0, -1
		inString, escaped, stray := false, false, false

	scan:
		for ; i < len(text); i++ {
			c := text[i]
			if depth > 0 && inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				if depth > 0 {
					inString = true
				}
			case '{':
				if depth == 0 {
					start = i
				}
				depth++
			case '}':
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					ev, ok, valid := parseCandidate(text[start : i+1])
					if !valid {
						stray = true
						break scan
					}
					spans = append(spans, span{start: start, end: i + 1, event: ev, ok: ok})
					start = -1
				}
			}
		}

		if stray || (depth > 0 && start >= 0) {
			i = start + 1
			continue
		}
		break
	}
	return spans
}

// ExtractActivities scans thought text for embedded activity objects.
// It returns the decoded events in order and the exact substrings they were
// decoded from. Candidates that fail to parse or lack the sentinel are
// skipped.
func ExtractActivities(text string) ([]ActivityEvent, []string) {
	if !strings.Contains(text, ActivitySentinel) {
		return nil, nil
	}
	var events []ActivityEvent
	var raw []string
	for _, sp := range scanObjects(text) {
		if !sp.ok {
			continue
		}
		events = append(events, sp.event)
		raw = append(raw, text[sp.start:sp.end])
	}
	return events, raw
}

// StripActivities removes each raw activity substring once from text along
// with literal think tags, leaving the human readable thought text.
func StripActivities(text string, raw []string) string {
	for _, s := range raw {
		text = strings.Replace(text, s, "", 1)
	}
	return strings.TrimSpace(StripThinkTags(text))
}

// PlainThoughts is ExtractActivities followed by StripActivities.
func PlainThoughts(text string) string {
	_, raw := ExtractActivities(text)
	return StripActivities(text, raw)
}
