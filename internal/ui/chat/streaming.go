// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/luminous-tui/internal/turn"
)

// =============================================================================
// EVENT PUMP
// =============================================================================

// inboxSize bounds messages queued by background goroutines.
const inboxSize = 256

// pump carries messages from stream goroutines, the sync worker and the
// config watcher into the Bubble Tea loop. It is shared by pointer between
// model copies.
type pump struct {
	inbox chan tea.Msg
	done  chan struct{}
	once  sync.Once
}

func newPump() *pump {
	return &pump{
		inbox: make(chan tea.Msg, inboxSize),
		done:  make(chan struct{}),
	}
}

// post queues msg. It drops msg once the pump is closed.
func (p *pump) post(msg tea.Msg) {
	select {
	case p.inbox <- msg:
	case <-p.done:
	}
}

// send is the runner's event sink.
func (p *pump) send(ev turn.Event) {
	p.post(turnEventMsg{Event: ev})
}

// next returns a command that waits for one queued message. The model issues
// it again after handling each message.
func (p *pump) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-p.inbox:
			return msg
		case <-p.done:
			return nil
		}
	}
}

func (p *pump) close() {
	p.once.Do(func() { close(p.done) })
}

// =============================================================================
// REPAINT THROTTLE
// =============================================================================

// repaintInterval caps transcript redraws while frames arrive (30 fps).
const repaintInterval = time.Second / 30

// throttle batches repaints. Frames mark the transcript dirty; a single
// pending tick repaints it.
type throttle struct {
	dirty   bool
	pending bool
}

// mark records a change and returns the tick command when none is pending.
func (t *throttle) mark() tea.Cmd {
	t.dirty = true
	if t.pending {
		return nil
	}
	t.pending = true
	return tea.Tick(repaintInterval, func(time.Time) tea.Msg { return repaintMsg{} })
}

// fire clears the pending tick and reports whether a repaint is due.
func (t *throttle) fire() bool {
	t.pending = false
	due := t.dirty
	t.dirty = false
	return due
}
