// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// LiveText is shown at the bottom of a feed while the turn is running.
const LiveText = "Agent is thinking..."

// maxResultLines caps the result titles listed under a search.
const maxResultLines = 3

// Slot is one line of the activity feed. Events sharing a step id land in
// the same slot.
type Slot struct {
	Key    string
	Events []content.ActivityEvent
}

// First returns the event that created the slot.
func (s *Slot) First() content.ActivityEvent {
	return s.Events[0]
}

// Latest returns the most recent event of the slot.
func (s *Slot) Latest() content.ActivityEvent {
	return s.Events[len(s.Events)-1]
}

// Done reports whether the step has finished.
func (s *Slot) Done() bool {
	for _, ev := range s.Events {
		switch ev.Type {
		case content.ActivitySearchResults, content.ActivityVisitComplete:
			return true
		case content.ActivityPlanning:
			if ev.String("state") == "complete" {
				return true
			}
		}
	}
	return false
}

// ActivityFeed is the append-only list of research activities of one
// assistant row.
type ActivityFeed struct {
	slots  []*Slot
	byStep map[string]*Slot
	events int

	// Live is true while the turn is streaming.
	Live bool
}

// NewActivityFeed returns an empty, live feed.
func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{byStep: make(map[string]*Slot), Live: true}
}

// Add records an event and returns the slot it landed in.
func (f *ActivityFeed) Add(ev content.ActivityEvent) *Slot {
	f.events++
	if step := ev.StepID(); step != "" {
		if s, ok := f.byStep[step]; ok {
			s.Events = append(s.Events, ev)
			return s
		}
		s := &Slot{Key: step, Events: []content.ActivityEvent{ev}}
		f.byStep[step] = s
		f.slots = append(f.slots, s)
		return s
	}
	s := &Slot{Key: fmt.Sprintf("#%d", f.events), Events: []content.ActivityEvent{ev}}
	f.slots = append(f.slots, s)
	return s
}

// Slots returns the feed lines in arrival order.
func (f *ActivityFeed) Slots() []*Slot {
	return f.slots
}

// Len returns the number of slots.
func (f *ActivityFeed) Len() int {
	return len(f.slots)
}

// Events returns the number of events added.
func (f *ActivityFeed) Events() int {
	return f.events
}

// Finish removes the live indicator.
func (f *ActivityFeed) Finish() {
	f.Live = false
}

// =============================================================================
// DESCRIPTIONS
// =============================================================================

// Describe returns the indicator and the human readable line of an event.
func Describe(ev content.ActivityEvent) (icon, line string) {
	switch ev.Type {
	case content.ActivityPhase:
		return "==", ev.Message()
	case content.ActivityPlanning:
		switch ev.String("state") {
		case "warning":
			icon = "[!]"
		case "validating":
			icon = "[?]"
		case "complete":
			icon = "[OK]"
		default:
			icon = "[~]"
		}
		return icon, ev.Message()
	case content.ActivitySearch:
		text := ev.String("displayMessage")
		if text == "" {
			text = "Searching: " + ev.String("query")
		}
		return "[>]", text
	case content.ActivitySearchResults:
		n := ev.Count("results")
		if n == 1 {
			return "[OK]", "Found 1 result"
		}
		return "[OK]", fmt.Sprintf("Found %d results", n)
	case content.ActivityStatus:
		return "[i]", ev.Message()
	case content.ActivityVisit:
		return "[>]", "Reading " + ev.String("url")
	case content.ActivityVisitComplete:
		line = "Read " + ev.String("url")
		if chars := ev.Count("chars"); chars > 0 {
			line += fmt.Sprintf(" (%d chars)", chars)
		}
		return "[OK]", line
	}

	if msg := ev.Message(); msg != "" {
		return "[*]", msg
	}
	return "[*]", string(ev.Type) + " " + compactData(ev.Data)
}

// resultLines lists the first few search result titles.
func resultLines(ev content.ActivityEvent, width int) []string {
	var lines []string
	for i, r := range ev.Results() {
		if i == maxResultLines {
			break
		}
		title, _ := r["title"].(string)
		if title == "" {
			title, _ = r["url"].(string)
		}
		if title == "" {
			continue
		}
		lines = append(lines, util.TruncateWidth("- "+title, width))
	}
	return lines
}

func compactData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(data[k])
		if err != nil {
			continue
		}
		parts = append(parts, k+"="+string(v))
	}
	return strings.Join(parts, " ")
}
