// Package corelex implements the lowest level of PDF processing: random-access
// byte addressing, the lexical grammar of PDF values, and the stream-payload
// scanner used to bound a stream's byte range.
//
// The design follows github.com/benoitkugler/pdf's pdftokenizer package
// (ported from the Java PDFTK tokenizer) generalized to the tagged-union
// Value representation and the leniency rules of a recovering parser.
package corelex

import (
	"errors"
	"io"
)

// ErrOutOfRange is returned by Seek and Rewind when the requested position
// would fall outside [0, Length()].
var ErrOutOfRange = errors.New("corelex: seek out of range")

// Source is a random-access byte sequence with a single mutable cursor,
// shared by every caller that holds it (callers needing independent
// positions should use CreateView or a distinct Source over the same
// underlying data).
//
// Source is not safe for concurrent use: a document parse is single
// threaded cooperative (see the core's concurrency model), and every
// positional operation mutates the shared cursor.
type Source struct {
	r      io.ReaderAt
	length int64
	pos    int64
}

// NewSource wraps r, which must support reads at arbitrary offsets up to
// length, as a Source.
func NewSource(r io.ReaderAt, length int64) *Source {
	return &Source{r: r, length: length}
}

// NewSourceBytes wraps an in-memory byte slice as a Source.
func NewSourceBytes(data []byte) *Source {
	return NewSource(bytesReaderAt(data), int64(len(data)))
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Length returns the total number of addressable bytes.
func (s *Source) Length() int64 { return s.length }

// Position returns the current cursor offset.
func (s *Source) Position() int64 { return s.pos }

// Seek moves the cursor to an absolute offset. Seeking exactly to Length()
// is allowed (it is the EOF position); anything outside [0, Length()] is
// ErrOutOfRange.
func (s *Source) Seek(pos int64) error {
	if pos < 0 || pos > s.length {
		return ErrOutOfRange
	}
	s.pos = pos
	return nil
}

// Rewind moves the cursor back n bytes. It is an error to rewind past the
// start of the source.
func (s *Source) Rewind(n int64) error {
	return s.Seek(s.pos - n)
}

// IsEOF reports whether the cursor is at or beyond the end of the source.
func (s *Source) IsEOF() bool { return s.pos >= s.length }

// ReadByte reads one byte and advances the cursor. ok is false at EOF.
func (s *Source) ReadByte() (b byte, ok bool) {
	if s.pos >= s.length {
		return 0, false
	}
	var buf [1]byte
	n, err := s.r.ReadAt(buf[:], s.pos)
	if n == 0 || (err != nil && err != io.EOF) {
		return 0, false
	}
	s.pos++
	return buf[0], true
}

// PeekByte reads one byte without advancing the cursor.
func (s *Source) PeekByte() (b byte, ok bool) {
	if s.pos >= s.length {
		return 0, false
	}
	var buf [1]byte
	n, err := s.r.ReadAt(buf[:], s.pos)
	if n == 0 || (err != nil && err != io.EOF) {
		return 0, false
	}
	return buf[0], true
}

// Read fills buf, advancing the cursor by the number of bytes read, and
// returns that count. It mirrors io.ReaderAt semantics: a short read at EOF
// returns the partial count together with io.EOF.
func (s *Source) Read(buf []byte) (int, error) {
	n, err := s.r.ReadAt(buf, s.pos)
	s.pos += int64(n)
	return n, err
}

// ReadAt reads exactly len(buf) bytes starting at offset, without touching
// the shared cursor. Used by callers (the xref engine, the resolver) that
// already know the absolute offset they need.
func (s *Source) ReadAt(buf []byte, offset int64) (int, error) {
	return s.r.ReadAt(buf, offset)
}

// CreateView returns a new Source restricted to [start, start+length), with
// its own independent cursor, for lazily materializing a stream payload
// without disturbing the parent's position.
func (s *Source) CreateView(start, length int64) *Source {
	if start < 0 {
		start = 0
	}
	if start+length > s.length {
		length = s.length - start
		if length < 0 {
			length = 0
		}
	}
	return &Source{r: &offsetReaderAt{base: s.r, shift: start}, length: length}
}

type offsetReaderAt struct {
	base  io.ReaderAt
	shift int64
}

func (o *offsetReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return o.base.ReadAt(p, off+o.shift)
}
