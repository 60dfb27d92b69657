// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"sync"
)

// Sync drives a Controller and its Runner from the calling goroutine. It is
// used by the headless CLI commands and by tests.
type Sync struct {
	Controller *Controller
	Runner     *Runner

	// OnEvent, when set, is called after every stream event is applied.
	OnEvent func(Event)

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSync creates a synchronous driver for c.
func NewSync(c *Controller, backend Backend, store ChatStore, opts RunnerOptions) *Sync {
	s := &Sync{
		Controller: c,
		events:     make(chan Event, 256),
		closed:     make(chan struct{}),
	}
	s.Runner = NewRunner(backend, store, s.deliver, opts)
	return s
}

func (s *Sync) deliver(ev Event) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

// Send dispatches ev and performs its effects without waiting for a stream.
// It returns the UI effects.
func (s *Sync) Send(ctx context.Context, ev Event) []Effect {
	return s.Runner.Perform(ctx, s.Controller.Dispatch(ev))
}

// Step applies the next stream event. It returns false when the controller
// is idle and there is nothing to wait for.
func (s *Sync) Step(ctx context.Context) ([]Effect, bool) {
	if !s.Controller.IsGenerating() {
		return nil, false
	}
	select {
	case ev := <-s.events:
		ui := s.Send(ctx, ev)
		if s.OnEvent != nil {
			s.OnEvent(ev)
		}
		return ui, true
	case <-ctx.Done():
		return s.Send(context.Background(), Stop{}), true
	}
}

// Run dispatches ev and applies stream events until the controller is idle.
// Cancelling ctx stops the running turn.
func (s *Sync) Run(ctx context.Context, ev Event) []Effect {
	ui := s.Send(ctx, ev)
	for {
		more, ok := s.Step(ctx)
		ui = append(ui, more...)
		if !ok {
			return ui
		}
	}
}

// Close cancels running streams and waits for background calls.
func (s *Sync) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.Runner.Close()
}

// RunSync sends one event through a fresh driver and waits for the turn and
// its background calls to finish.
func RunSync(ctx context.Context, c *Controller, backend Backend, store ChatStore, ev Event) []Effect {
	s := NewSync(c, backend, store, RunnerOptions{})
	defer s.Close()
	ui := s.Run(ctx, ev)
	s.Runner.Wait()
	return ui
}
