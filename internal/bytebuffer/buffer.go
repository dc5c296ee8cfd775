// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package bytebuffer implements section 4.1: a bounded byte
// FIFO over a non-blocking file descriptor, with a telemetry hook and
// a peek-regex/consume-regex primitive used by the script interpreter
// to scan streaming device responses without copying the whole
// buffer on every poll.
package bytebuffer

import (
	"io"
	"regexp"

	"github.com/pkg/errors"

	"github.com/powermand/engine/internal/common"
)

// Direction tags a telemetry callback invocation.
type Direction int

const (
	DirSend Direction = iota
	DirRecv
)

func (d Direction) String() string {
	if d == DirSend {
		return "send"
	}
	return "recv"
}

// Hook is the telemetry callback invoked on every append and every
// drain, carrying the raw bytes moved and the direction. Grounded in
// the original C daemon's per-call logging of send/recv bytes.
type Hook func(dir Direction, p []byte)

// Buffer is a bounded FIFO over an io.ReadWriter (typically a
// device's non-blocking transport). Capacity is common.MaxBufSize.
type Buffer struct {
	data []byte
	hook Hook
}

// New builds an empty Buffer. hook may be nil.
func New(hook Hook) *Buffer {
	return &Buffer{data: make([]byte, 0, common.MaxBufSize), hook: hook}
}

// IsEmpty reports whether the buffer currently holds no bytes.
func (b *Buffer) IsEmpty() bool { return len(b.data) == 0 }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Read performs a best-effort, non-blocking read from r, appending to
// the buffer up to capacity. It returns the number of bytes read.
// A returned err of io.EOF means the peer closed the connection; any
// other non-nil error (e.g. wrapping a would-block/reset condition)
// means "try again later" for would-block, or "disconnect" for reset,
// which the caller (internal/device) distinguishes.
func (b *Buffer) Read(r io.Reader) (int, error) {
	room := common.MaxBufSize - len(b.data)
	if room <= 0 {
		return 0, errors.WithStack(common.ErrBufferFull)
	}
	tmp := make([]byte, room)
	n, err := r.Read(tmp)
	if n > 0 {
		b.data = append(b.data, tmp[:n]...)
		if b.hook != nil {
			b.hook(DirRecv, tmp[:n])
		}
	}
	if err != nil {
		return n, err
	}
	return n, nil
}

// Write performs a best-effort, non-blocking drain of the buffer to w,
// removing whatever bytes were actually written.
func (b *Buffer) Write(w io.Writer) (int, error) {
	if len(b.data) == 0 {
		return 0, nil
	}
	n, err := w.Write(b.data)
	if n > 0 {
		if b.hook != nil {
			b.hook(DirSend, b.data[:n])
		}
		b.data = append(b.data[:0], b.data[n:]...)
	}
	return n, err
}

// Printf appends formatted bytes to the buffer. fmtTemplate carries at
// most one "%s" substitution slot (validated at config load time per
// config load time); when arg is nil and the template has no slot, the
// template is appended verbatim.
func (b *Buffer) Printf(fmtTemplate string, arg *string) {
	out := SubstituteTemplate(fmtTemplate, arg)
	b.data = append(b.data, out...)
	if b.hook != nil {
		b.hook(DirSend, []byte(out))
	}
}

// SubstituteTemplate performs the %s substitution that Send elements
// use, and is what Printf renders through. The one-slot rule is
// checked separately at config load (internal/config's
// validateTemplate), which does not call this function.
func SubstituteTemplate(tmpl string, arg *string) string {
	if arg == nil {
		return tmpl
	}
	out := make([]byte, 0, len(tmpl)+len(*arg))
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] == '%' && i+1 < len(tmpl) && tmpl[i+1] == 's' {
			out = append(out, *arg...)
			i++
			continue
		}
		out = append(out, tmpl[i])
	}
	return string(out)
}

// PeekRegex returns the match of re that starts at the buffer head,
// without consuming it. The config loader compiles every Expect regex
// as written, in leftmost-longest mode, so for configured scripts this
// is the longest match at the head. A match that begins past the head
// counts as no match; ok is false when there is no match yet.
func (b *Buffer) PeekRegex(re *regexp.Regexp) (match []byte, ok bool) {
	loc := re.FindIndex(b.data)
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	return b.data[loc[0]:loc[1]], true
}

// PeekRegexSubmatch is PeekRegex plus capture-group offsets, used by
// the semantic dispatch path (section 4.6) to extract Interpretation
// values.
func (b *Buffer) PeekRegexSubmatch(re *regexp.Regexp) (loc []int, ok bool) {
	loc = re.FindSubmatchIndex(b.data)
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	return loc, true
}

// Consume removes n bytes from the buffer head, e.g. the matched
// prefix returned by PeekRegex.
func (b *Buffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.data = append(b.data[:0], b.data[n:]...)
}

// Bytes exposes the raw backing slice read-only, for submatch offset
// arithmetic in internal/device's semantic dispatch.
func (b *Buffer) Bytes() []byte { return b.data }
