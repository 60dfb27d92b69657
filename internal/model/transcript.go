// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Transcript is the ordered message history of the open chat. It assigns
// each appended message a fresh MessageID. A Transcript is not safe for
// concurrent use; it is owned by a single controller.
type Transcript struct {
	msgs []Message
	last MessageID
}

// NewTranscript creates a transcript holding msgs, assigning new ids.
func NewTranscript(msgs []Message) *Transcript {
	t := &Transcript{}
	for _, m := range msgs {
		t.Append(m)
	}
	return t
}

// Append adds m and returns its id.
func (t *Transcript) Append(m Message) MessageID {
	t.last++
	m.ID = t.last
	t.msgs = append(t.msgs, m)
	return m.ID
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// IDs returns the message ids in order.
func (t *Transcript) IDs() []MessageID {
	ids := make([]MessageID, len(t.msgs))
	for i, m := range t.msgs {
		ids[i] = m.ID
	}
	return ids
}

// Index returns the position of id, or -1.
func (t *Transcript) Index(id MessageID) int {
	// Ids are increasing, so binary search works.
	lo, hi := 0, len(t.msgs)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case t.msgs[mid].ID == id:
			return mid
		case t.msgs[mid].ID < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// Get returns the message with id.
func (t *Transcript) Get(id MessageID) (Message, bool) {
	i := t.Index(id)
	if i < 0 {
		return Message{}, false
	}
	return t.msgs[i], true
}

// After returns the message following id.
func (t *Transcript) After(id MessageID) (Message, bool) {
	i := t.Index(id)
	if i < 0 || i+1 >= len(t.msgs) {
		return Message{}, false
	}
	return t.msgs[i+1], true
}

// Last returns the final message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

// LastOf returns the most recent message with role.
func (t *Transcript) LastOf(role Role) (Message, bool) {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == role {
			return t.msgs[i], true
		}
	}
	return Message{}, false
}

// Window returns a copy of the last n messages.
func (t *Transcript) Window(n int) []Message {
	start := len(t.msgs) - n
	if n <= 0 {
		start = len(t.msgs)
	}
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(t.msgs)-start)
	copy(out, t.msgs[start:])
	return out
}

// TruncateAt removes the message with id and everything after it and
// returns the removed messages. Unknown ids remove nothing.
func (t *Transcript) TruncateAt(id MessageID) []Message {
	i := t.Index(id)
	if i < 0 {
		return nil
	}
	return t.truncate(i)
}

// TruncateAfter removes everything after the message with id.
func (t *Transcript) TruncateAfter(id MessageID) []Message {
	i := t.Index(id)
	if i < 0 {
		return nil
	}
	return t.truncate(i + 1)
}

func (t *Transcript) truncate(i int) []Message {
	removed := make([]Message, len(t.msgs)-i)
	copy(removed, t.msgs[i:])
	t.msgs = t.msgs[:i]
	return removed
}

// Reset removes all messages. Ids keep increasing.
func (t *Transcript) Reset() {
	t.msgs = nil
}
