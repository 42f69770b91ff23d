// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package termwriter is the Terminal Writer: an in-memory byte
// accumulator with CP437-aware convenience operations for building
// ANSI terminal output a screen at a time, per spec §4.2. Backed by
// valyala/bytebufferpool so per-flush allocation is amortised across
// many concurrent nodes.
package termwriter

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// Colour is one of the CGA 16-colour palette indices used throughout
// the UI's aesthetic.
type Colour int

const (
	Black Colour = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

// ansiFG maps a CGA colour index to its ANSI foreground SGR code.
var ansiFG = [16]int{30, 34, 32, 36, 31, 35, 33, 37, 90, 94, 92, 96, 91, 95, 93, 97}

// Writer accumulates terminal bytes. The zero value is not usable;
// build one with New. Not safe for concurrent use — each Session owns
// exactly one.
type Writer struct {
	buf *bytebufferpool.ByteBuffer
}

// New returns a Writer with a pooled, empty buffer.
func New() *Writer {
	return &Writer{buf: bytebufferpool.Get()}
}

// Flush returns the accumulated bytes and resets the buffer for reuse.
// Contract: every helper on Writer appends a complete escape sequence
// in one call, so no partial sequence is ever visible at a Flush
// boundary (spec §4.2).
func (w *Writer) Flush() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.B)
	w.buf.Reset()
	return out
}

// Release returns the pooled buffer; call when the Writer's owning
// session tears down.
func (w *Writer) Release() {
	bytebufferpool.Put(w.buf)
	w.buf = nil
}

// WriteLine appends raw text followed by a CRLF, the line ending
// expected by the terminal clients this protocol targets.
func (w *Writer) WriteLine(s string) *Writer {
	w.buf.WriteString(s)
	w.buf.WriteString("\r\n")
	return w
}

// WriteRaw appends text with no trailing newline.
func (w *Writer) WriteRaw(s string) *Writer {
	w.buf.WriteString(s)
	return w
}

// SetColour appends a complete SGR sequence setting foreground colour
// (and bold for the bright half of the palette).
func (w *Writer) SetColour(c Colour) *Writer {
	bold := 0
	if c >= DarkGray {
		bold = 1
	}
	fmt.Fprintf(w.buf, "\x1b[%d;%dm", bold, ansiFG[c])
	return w
}

// ResetColour appends the SGR reset sequence.
func (w *Writer) ResetColour() *Writer {
	w.buf.WriteString("\x1b[0m")
	return w
}

// ClearScreen appends the clear-and-home sequence.
func (w *Writer) ClearScreen() *Writer {
	w.buf.WriteString("\x1b[2J\x1b[H")
	return w
}

// MoveCursor appends an absolute cursor positioning sequence, 1-indexed.
func (w *Writer) MoveCursor(row, col int) *Writer {
	fmt.Fprintf(w.buf, "\x1b[%d;%dH", row, col)
	return w
}

// CP437 box-drawing glyphs used by Box, mapped to their UTF-8
// equivalents since the wire protocol is UTF-8 (spec §6).
const (
	glyphHorizontal   = "─"
	glyphVertical     = "│"
	glyphTopLeft      = "┌"
	glyphTopRight     = "┐"
	glyphBottomLeft   = "└"
	glyphBottomRight  = "┘"
)

// Box draws a bordered rectangle of the given colour at (row, col)
// with interior dimensions width x height (not counting the border),
// as a single complete sequence of writes — no caller may observe a
// partial border across a Flush.
func (w *Writer) Box(row, col, width, height int, c Colour) *Writer {
	w.SetColour(c)
	w.MoveCursor(row, col)
	w.buf.WriteString(glyphTopLeft)
	for i := 0; i < width; i++ {
		w.buf.WriteString(glyphHorizontal)
	}
	w.buf.WriteString(glyphTopRight)

	for r := 1; r <= height; r++ {
		w.MoveCursor(row+r, col)
		w.buf.WriteString(glyphVertical)
		w.MoveCursor(row+r, col+width+1)
		w.buf.WriteString(glyphVertical)
	}

	w.MoveCursor(row+height+1, col)
	w.buf.WriteString(glyphBottomLeft)
	for i := 0; i < width; i++ {
		w.buf.WriteString(glyphHorizontal)
	}
	w.buf.WriteString(glyphBottomRight)
	w.ResetColour()
	return w
}

// ErrorBox renders a bordered, coloured box of at most two lines, the
// uniform shape for every user-visible failure (spec §7).
func (w *Writer) ErrorBox(lines []string, c Colour) *Writer {
	if len(lines) > 2 {
		lines = lines[:2]
	}
	width := 0
	for _, l := range lines {
		if len(l) > width {
			width = len(l)
		}
	}
	width += 2

	w.SetColour(c)
	w.buf.WriteString(glyphTopLeft)
	for i := 0; i < width; i++ {
		w.buf.WriteString(glyphHorizontal)
	}
	w.buf.WriteString(glyphTopRight)
	w.buf.WriteString("\r\n")
	for _, l := range lines {
		w.buf.WriteString(glyphVertical)
		w.buf.WriteString(" ")
		w.buf.WriteString(l)
		w.buf.WriteString("\r\n")
	}
	w.buf.WriteString(glyphBottomLeft)
	for i := 0; i < width; i++ {
		w.buf.WriteString(glyphHorizontal)
	}
	w.buf.WriteString(glyphBottomRight)
	w.buf.WriteString("\r\n")
	w.ResetColour()
	return w
}
