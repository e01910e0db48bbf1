package csvio

// sanitize.go provides streaming byte hygiene applied ahead of CSV parsing:
//
//   - a UTF-8 BOM (0xEF 0xBB 0xBF) left by Windows tools is dropped
//   - invalid UTF-8 sequences are replaced with U+FFFD on the fly
//
// Both operate in O(buffer) memory so large files never need to be loaded
// whole for cleanup.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

const sanitizeChunk = 32 * 1024

// NewSanitizedReader wraps r so that a leading UTF-8 BOM is skipped and any
// invalid UTF-8 sequence is replaced with the Unicode replacement character.
func NewSanitizedReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	skipBOM(br)
	return &sanitizingReader{
		src:   br,
		chunk: make([]byte, sanitizeChunk),
	}
}

// skipBOM discards a leading byte order mark if present.
func skipBOM(br *bufio.Reader) {
	head, _ := br.Peek(3)
	if len(head) == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}
}

// sanitizingReader replaces invalid UTF-8 with U+FFFD as bytes stream
// through. A multi-byte rune split across two reads is carried over and
// completed on the next fill rather than being mangled at the boundary.
type sanitizingReader struct {
	src     io.Reader
	chunk   []byte // scratch read buffer
	carry   []byte // trailing bytes that may start a split rune
	out     []byte // sanitized bytes awaiting delivery
	readErr error
}

func (sr *sanitizingReader) Read(p []byte) (int, error) {
	for len(sr.out) == 0 {
		if sr.readErr != nil {
			return 0, sr.readErr
		}
		sr.fill()
	}
	n := copy(p, sr.out)
	sr.out = sr.out[n:]
	return n, nil
}

// fill reads one chunk from the source and appends its sanitized form to out.
func (sr *sanitizingReader) fill() {
	n, err := sr.src.Read(sr.chunk)

	data := make([]byte, 0, len(sr.carry)+n)
	data = append(data, sr.carry...)
	data = append(data, sr.chunk[:n]...)
	sr.carry = sr.carry[:0]

	if err == nil {
		// Hold back a trailing partial rune so it can complete next read.
		if k := trailingPartial(data); k > 0 {
			sr.carry = append(sr.carry, data[len(data)-k:]...)
			data = data[:len(data)-k]
		}
	} else {
		sr.readErr = err
	}

	if utf8.Valid(data) {
		sr.out = append(sr.out, data...)
		return
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			sr.out = utf8.AppendRune(sr.out, utf8.RuneError)
		} else {
			sr.out = append(sr.out, data[:size]...)
		}
		data = data[size:]
	}
}

// trailingPartial reports how many bytes at the end of data form the start of
// an incomplete multi-byte rune, or 0 if the data ends on a rune boundary or
// in bytes that can never complete.
func trailingPartial(data []byte) int {
	n := len(data)
	for i := 1; i <= utf8.UTFMax && i <= n; i++ {
		b := data[n-i]
		if b < 0x80 {
			return 0
		}
		if b >= 0xC0 {
			if runeWidth(b) > i {
				return i
			}
			return 0
		}
		// continuation byte, keep scanning backward
	}
	return 0
}

// runeWidth returns the sequence length implied by a UTF-8 leading byte.
func runeWidth(b byte) int {
	switch {
	case b < 0xC0:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
