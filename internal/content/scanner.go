// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package content parses the sub-languages embedded in model output.
//
// This file implements the incremental Scanner used while streaming.
package content

import (
	"strings"
)

// =============================================================================
// SEGMENTS
// =============================================================================

// SegmentKind identifies the region a segment came from.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentThought
	SegmentPlan
	SegmentActivity
)

// String returns the lowercase name of the kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentThought:
		return "thought"
	case SegmentPlan:
		return "plan"
	case SegmentActivity:
		return "activity"
	default:
		return "unknown"
	}
}

// Segment is one region of tokenized assistant text.
type Segment struct {
	Kind SegmentKind
	Text string

	// Activity is set for SegmentActivity.
	Activity *ActivityEvent
}

// =============================================================================
// SCANNER
// =============================================================================

type planState int

const (
	planBefore planState = iota
	planInside
	planAfter
)

type segBuf struct {
	kind SegmentKind
	b    strings.Builder
}

// Scanner is an incremental tokenizer for streamed assistant text.
//
// Think regions are removed first and the remaining text is then searched
// for the first research plan, exactly as ParseContent does, but each Write
// only looks at the new input plus a held-back tail shorter than the longest
// tag. A Scanner is not safe for concurrent use.
type Scanner struct {
	// think stage
	inThink  bool
	hold1    string
	bodies   int
	thoughts strings.Builder

	// plan stage
	plan    planState
	hold2   string
	cleaned strings.Builder
	planBuf strings.Builder

	segs     []*segBuf
	forceNew bool
}

// NewScanner returns an empty scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Reset discards everything written so far.
func (s *Scanner) Reset() {
	*s = Scanner{}
}

// Write implements io.Writer.
func (s *Scanner) Write(p []byte) (int, error) {
	s.WriteString(string(p))
	return len(p), nil
}

// WriteString feeds the next piece of text.
func (s *Scanner) WriteString(text string) (int, error) {
	buf := s.hold1 + text
	s.hold1 = ""
	for len(buf) > 0 {
		if !s.inThink {
			if i := strings.Index(buf, ThinkOpen); i >= 0 {
				s.emitText(buf[:i])
				s.openThought()
				buf = buf[i+len(ThinkOpen):]
				continue
			}
			k := partialSuffix(buf, ThinkOpen)
			s.emitText(buf[:len(buf)-k])
			s.hold1 = buf[len(buf)-k:]
			break
		}
		if i := strings.Index(buf, ThinkClose); i >= 0 {
			s.addThought(buf[:i])
			s.inThink = false
			buf = buf[i+len(ThinkClose):]
			continue
		}
		k := partialSuffix(buf, ThinkClose)
		s.addThought(buf[:len(buf)-k])
		s.hold1 = buf[len(buf)-k:]
		break
	}
	return len(text), nil
}

func (s *Scanner) openThought() {
	s.inThink = true
	if s.bodies > 0 {
		s.thoughts.WriteByte('\n')
	}
	s.bodies++
	s.forceNew = true
}

func (s *Scanner) addThought(text string) {
	if text == "" {
		return
	}
	s.thoughts.WriteString(text)
	s.appendSeg(SegmentThought, text)
}

// emitText runs think-free text through the plan stage.
func (s *Scanner) emitText(text string) {
	buf := s.hold2 + text
	s.hold2 = ""
	for len(buf) > 0 {
		switch s.plan {
		case planBefore:
			if i := strings.Index(buf, PlanOpen); i >= 0 {
				s.addCleaned(buf[:i])
				s.plan = planInside
				s.forceNew = true
				buf = buf[i+len(PlanOpen):]
				continue
			}
			k := partialSuffix(buf, PlanOpen)
			s.addCleaned(buf[:len(buf)-k])
			s.hold2 = buf[len(buf)-k:]
			return
		case planInside:
			if i := strings.Index(buf, PlanClose); i >= 0 {
				s.addPlan(buf[:i])
				s.plan = planAfter
				s.forceNew = true
				buf = buf[i+len(PlanClose):]
				continue
			}
			k := partialSuffix(buf, PlanClose)
			s.addPlan(buf[:len(buf)-k])
			s.hold2 = buf[len(buf)-k:]
			return
		default:
			s.addCleaned(buf)
			return
		}
	}
}

func (s *Scanner) addCleaned(text string) {
	if text == "" {
		return
	}
	s.cleaned.WriteString(text)
	s.appendSeg(SegmentText, text)
}

func (s *Scanner) addPlan(text string) {
	s.planBuf.WriteString(text)
	s.appendSeg(SegmentPlan, text)
}

func (s *Scanner) appendSeg(kind SegmentKind, text string) {
	n := len(s.segs)
	if !s.forceNew && n > 0 && s.segs[n-1].kind == kind {
		s.segs[n-1].b.WriteString(text)
		return
	}
	sb := &segBuf{kind: kind}
	sb.b.WriteString(text)
	s.segs = append(s.segs, sb)
	s.forceNew = false
}

// tails resolves the held-back input as if the text ended here. A held-back
// tail is always shorter than any tag, so it can never complete one.
func (s *Scanner) tails() (thought, text string) {
	if s.inThink {
		return s.hold1, s.hold2
	}
	return "", s.hold2 + s.hold1
}

// Extracted returns what ParseContent would return for all text written so
// far.
func (s *Scanner) Extracted() Extracted {
	thoughtTail, textTail := s.tails()

	ex := Extracted{
		Thoughts: strings.TrimSpace(s.thoughts.String() + thoughtTail),
	}
	switch s.plan {
	case planBefore:
		ex.Cleaned = strings.TrimSpace(s.cleaned.String() + textTail)
	case planInside:
		ex.Cleaned = strings.TrimSpace(s.cleaned.String())
		plan := s.planBuf.String() + textTail
		ex.Plan = &plan
	default:
		ex.Cleaned = strings.TrimSpace(s.cleaned.String() + textTail)
		plan := s.planBuf.String()
		ex.Plan = &plan
	}
	return ex
}

// Segments returns the regions seen so far in stream order. Activity objects
// are not split out; use Tokenize for that.
func (s *Scanner) Segments() []Segment {
	out := make([]Segment, 0, len(s.segs)+1)
	for _, sb := range s.segs {
		out = append(out, Segment{Kind: sb.kind, Text: sb.b.String()})
	}

	thoughtTail, textTail := s.tails()
	if thoughtTail != "" {
		out = appendSegment(out, Segment{Kind: SegmentThought, Text: thoughtTail})
	}
	if textTail != "" {
		kind := SegmentText
		if s.plan == planInside {
			kind = SegmentPlan
		}
		out = appendSegment(out, Segment{Kind: kind, Text: textTail})
	}
	return out
}

func appendSegment(segs []Segment, seg Segment) []Segment {
	if n := len(segs); n > 0 && segs[n-1].Kind == seg.Kind && seg.Kind != SegmentActivity {
		segs[n-1].Text += seg.Text
		return segs
	}
	return append(segs, seg)
}

// partialSuffix returns the length of the longest proper prefix of tag that
// buf ends with.
func partialSuffix(buf, tag string) int {
	n := len(tag) - 1
	if len(buf) < n {
		n = len(buf)
	}
	for k := n; k > 0; k-- {
		if strings.HasSuffix(buf, tag[:k]) {
			return k
		}
	}
	return 0
}

// Tokenize splits raw into Text, Thought, Plan and Activity segments in one
// pass. Activity objects embedded in thought regions become their own
// segments; the thought text around them is kept when it is not blank.
func Tokenize(raw string) []Segment {
	sc := NewScanner()
	sc.WriteString(raw)

	var out []Segment
	for _, seg := range sc.Segments() {
		if seg.Kind != SegmentThought || !strings.Contains(seg.Text, ActivitySentinel) {
			out = append(out, seg)
			continue
		}
		pos := 0
		for _, sp := range scanObjects(seg.Text) {
			if !sp.ok {
				continue
			}
			if piece := seg.Text[pos:sp.start]; strings.TrimSpace(piece) != "" {
				out = append(out, Segment{Kind: SegmentThought, Text: piece})
			}
			ev := sp.event
			out = append(out, Segment{Kind: SegmentActivity, Text: seg.Text[sp.start:sp.end], Activity: &ev})
			pos = sp.end
		}
		if piece := seg.Text[pos:]; strings.TrimSpace(piece) != "" {
			out = append(out, Segment{Kind: SegmentThought, Text: piece})
		}
	}
	return out
}
