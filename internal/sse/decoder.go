// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
)

// MaxLineSize bounds a single buffered line. Search result activities can be
// large, so this is well above a typical delta.
const MaxLineSize = 4 * 1024 * 1024

var dataPrefix = []byte("data:")

// Decoder reassembles lines from chunked input and parses data payloads.
// It keeps any partial trailing line, including split UTF-8 sequences,
// until the rest arrives.
type Decoder struct {
	buf     []byte
	done    bool
	frames  int
	dropped int
}

// Feed consumes the next chunk and returns the frames it completed.
// Input after the [DONE] marker is ignored.
func (d *Decoder) Feed(p []byte) []Frame {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, p...)

	var out []Frame
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := d.buf[start : start+i]
		start += i + 1
		if f, ok := d.parseLine(line); ok {
			out = append(out, f)
			if f.Kind == KindDone {
				d.done = true
				d.buf = d.buf[:0]
				return out
			}
		}
	}

	n := copy(d.buf, d.buf[start:])
	d.buf = d.buf[:n]
	return out
}

// Flush processes a final line that was not newline terminated.
func (d *Decoder) Flush() []Frame {
	if d.done || len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	if f, ok := d.parseLine(line); ok {
		if f.Kind == KindDone {
			d.done = true
		}
		return []Frame{f}
	}
	return nil
}

// Buffered returns the size of the incomplete line held back.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Done reports whether the [DONE] marker was seen.
func (d *Decoder) Done() bool { return d.done }

// Frames returns the number of frames decoded.
func (d *Decoder) Frames() int { return d.frames }

// Dropped returns the number of data lines discarded as malformed.
func (d *Decoder) Dropped() int { return d.dropped }

func (d *Decoder) parseLine(line []byte) (Frame, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == ':' {
		return Frame{}, false
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		// event:, id:, retry: fields carry nothing this client uses.
		return Frame{}, false
	}
	data := bytes.TrimSpace(line[len(dataPrefix):])
	f, ok := parsePayload(string(data))
	if !ok {
		d.dropped++
		return Frame{}, false
	}
	d.frames++
	return f, true
}
