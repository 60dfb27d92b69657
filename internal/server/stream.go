// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/luminous-tui/internal/content"
)

// ============================================================================
// WIRE CHUNKS
// ============================================================================

type chunkDelta struct {
	Content          *string `json:"content,omitempty"`
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// streamChunk is an OpenAI style chat.completion.chunk.
type streamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// chunker builds the payloads of one completion.
type chunker struct {
	id      string
	model   string
	created int64
}

func newChunker(modelName string) *chunker {
	return &chunker{
		id:      "chatcmpl-" + uuid.NewString(),
		model:   modelName,
		created: time.Now().Unix(),
	}
}

func (c *chunker) delta(d chunkDelta) string {
	return c.encode(streamChunk{
		ID: c.id, Object: "chat.completion.chunk", Created: c.created, Model: c.model,
		Choices: []chunkChoice{{Delta: d}},
	})
}

func (c *chunker) finish() string {
	stop := "stop"
	return c.encode(streamChunk{
		ID: c.id, Object: "chat.completion.chunk", Created: c.created, Model: c.model,
		Choices: []chunkChoice{{FinishReason: &stop}},
	})
}

func (c *chunker) usage(u Usage) string {
	return c.encode(streamChunk{
		ID: c.id, Object: "chat.completion.chunk", Created: c.created, Model: c.model,
		Choices: []chunkChoice{}, Usage: &u,
	})
}

func (c *chunker) encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func redactPayload(message string) string {
	m := map[string]any{"__redact__": true}
	if message != "" {
		m["message"] = message
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func errorPayload(message string) string {
	data, _ := json.Marshal(map[string]string{"error": message})
	return string(data)
}

func activityPayload(a Activity) string {
	data, _ := json.Marshal(map[string]any{
		content.ActivitySentinel: true,
		"type":                   a.Type,
		"data":                   a.Data,
	})
	return string(data)
}

// ============================================================================
// PLAYBACK
// ============================================================================

// accumulator mirrors what a client collects, for persistence.
type accumulator struct {
	content   strings.Builder
	reasoning strings.Builder
}

func (a *accumulator) reset() {
	a.content.Reset()
	a.reasoning.Reset()
}

// message returns the stored form of the answer, or "" when nothing was
// produced.
func (a *accumulator) message() string {
	c, r := a.content.String(), a.reasoning.String()
	if r == "" {
		return c
	}
	return "<think>" + r + "</think>\n" + c
}

// player emits the payloads of a response. emit receives each data line
// payload; hold blocks for a hold step.
type player struct {
	resp    Response
	input   string
	delay   time.Duration
	chunks  *chunker
	acc     accumulator
	emit    func(payload string) error
	hold    func(ctx context.Context) error
	errText string

	// complete runs after the last step and before the stream is
	// terminated, so clients that saw [DONE] also see the stored answer.
	complete func(acc *accumulator)
}

func (p *player) text(s string) string {
	return strings.ReplaceAll(s, InputPlaceholder, p.input)
}

// play runs every step. It returns nil when the script completed, even if
// it ended with an error frame.
func (p *player) play(ctx context.Context) error {
	for _, step := range p.resp.Steps {
		if err := p.sleep(ctx, p.delay+time.Duration(step.DelayMS)*time.Millisecond); err != nil {
			return err
		}
		stop, err := p.step(ctx, step)
		if err != nil || stop {
			return err
		}
	}
	if p.complete != nil {
		p.complete(&p.acc)
	}
	if err := p.emit(p.chunks.finish()); err != nil {
		return err
	}
	if p.resp.NoDone {
		return nil
	}
	return p.emit("[DONE]")
}

func (p *player) step(ctx context.Context, step Step) (stop bool, err error) {
	if step.Reasoning != "" {
		r := p.text(step.Reasoning)
		p.acc.reasoning.WriteString(r)
		if err := p.emit(p.chunks.delta(chunkDelta{ReasoningContent: &r})); err != nil {
			return true, err
		}
	}
	if step.Content != "" {
		c := p.text(step.Content)
		p.acc.content.WriteString(c)
		if err := p.emit(p.chunks.delta(chunkDelta{Content: &c})); err != nil {
			return true, err
		}
	}
	if step.Activity != nil {
		a := activityPayload(*step.Activity)
		p.acc.reasoning.WriteString(a)
		if err := p.emit(p.chunks.delta(chunkDelta{ReasoningContent: &a})); err != nil {
			return true, err
		}
	}
	if step.Redact {
		p.acc.reset()
		if err := p.emit(redactPayload(step.RedactMessage)); err != nil {
			return true, err
		}
	}
	if step.Raw != "" {
		if err := p.emit(step.Raw); err != nil {
			return true, err
		}
	}
	if step.Usage != nil {
		if err := p.emit(p.chunks.usage(*step.Usage)); err != nil {
			return true, err
		}
	}
	if step.Error != "" {
		p.errText = step.Error
		return true, p.emit(errorPayload(step.Error))
	}
	if step.Hold {
		if err := p.hold(ctx); err != nil {
			return true, err
		}
	}
	return false, nil
}

func (p *player) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ============================================================================
// SSE WRITER
// ============================================================================

// sseWriter writes data lines and flushes after each.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) send(payload string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
