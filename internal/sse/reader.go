// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse reads the streaming completion wire format.
//
// This file wraps Decoder around an io.Reader and turns error frames into
// *ProtocolError.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// readChunkSize is the size of each read from the body.
const readChunkSize = 32 * 1024

// ErrLineTooLong is returned when a line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("sse: line exceeds maximum size")

// ProtocolError is a server-reported error carried inside a frame.
type ProtocolError struct {
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return e.Message
}

// Reader reads frames from a response body in arrival order.
//
// Cancelling the context closes the body so a blocked read returns
// promptly. Once cancellation is observed no further frame is returned.
type Reader struct {
	ctx     context.Context
	body    io.Reader
	dec     Decoder
	pending []Frame
	chunk   []byte
	eof     bool
	stop    func() bool

	closeOnce sync.Once
	closer    io.Closer
}

// NewReader wraps body. When body is an io.Closer it is closed on context
// cancellation and by Close.
func NewReader(ctx context.Context, body io.Reader) *Reader {
	r := &Reader{
		ctx:   ctx,
		body:  body,
		chunk: make([]byte, readChunkSize),
	}
	if c, ok := body.(io.Closer); ok {
		r.closer = c
		r.stop = context.AfterFunc(ctx, func() { r.closeBody() })
	}
	return r
}

func (r *Reader) closeBody() {
	r.closeOnce.Do(func() {
		if r.closer != nil {
			r.closer.Close()
		}
	})
}

// Close releases the body.
func (r *Reader) Close() error {
	if r.stop != nil {
		r.stop()
	}
	r.closeBody()
	return nil
}

// Next returns the next frame. It returns io.EOF after [DONE] or when the
// body ends, a *ProtocolError for an error frame and ctx.Err() once the
// context is cancelled. Malformed frames are skipped.
func (r *Reader) Next() (Frame, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return Frame{}, err
		}
		if len(r.pending) > 0 {
			f := r.pending[0]
			r.pending = r.pending[1:]
			switch f.Kind {
			case KindDone:
				r.pending = nil
				r.eof = true
				return Frame{}, io.EOF
			case KindError:
				r.pending = nil
				r.eof = true
				return f, &ProtocolError{Message: f.Error}
			}
			return f, nil
		}
		if r.eof {
			return Frame{}, io.EOF
		}

		n, err := r.body.Read(r.chunk)
		if cerr := r.ctx.Err(); cerr != nil {
			return Frame{}, cerr
		}
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(r.chunk[:n])...)
			if r.dec.Buffered() > MaxLineSize {
				return Frame{}, ErrLineTooLong
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Frame{}, fmt.Errorf("sse: read body: %w", err)
			}
			r.pending = append(r.pending, r.dec.Flush()...)
			r.eof = true
		}
	}
}

// Each calls fn for every frame until the stream ends. It returns nil at
// the end of the stream, or the first error from the stream or fn.
func (r *Reader) Each(fn func(Frame) error) error {
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

// Stats returns the number of decoded and dropped frames so far.
func (r *Reader) Stats() (frames, dropped int) {
	return r.dec.Frames(), r.dec.Dropped()
}
