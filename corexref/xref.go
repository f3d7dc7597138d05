// Package corexref implements the cross-reference and trailer engine (C4)
// and its brute-force fallback (C6): locating startxref, walking the
// classical-table/xref-stream chain through /Prev, merging hybrid
// /XRefStm sections, and rebuilding an object-offset index from scratch
// when the declared structure is broken.
//
// Grounded on the teacher's reader/file/read.go (offsetLastXRefSection,
// buildXRefTableStartingAt, parseHybridXRefStream) and
// reader/file/xreftable.go (the xref-stream row decoder).
package corexref

import (
	"bytes"
	"fmt"

	"github.com/kuglerb/pdflex/corelex"
)

// EntryKind discriminates an xref row's meaning, per spec.md §4.4.2's
// three row types (a row whose /W gives the type column width 0 has no
// type field and is read as type 1, EntryInUse).
type EntryKind uint8

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry is one row of the merged cross-reference table.
type Entry struct {
	Kind             EntryKind
	Offset           uint64 // InUse
	Generation       uint16 // InUse
	Container        uint64 // Compressed: containing object stream's number
	IndexInContainer uint32 // Compressed: index within that container
}

// Table is the merged view produced by walking the /Prev chain: the
// first-seen entry for each key wins (the chain is walked newest-first),
// and the exposed Trailer is that of the first (newest) section.
type Table struct {
	Entries map[corelex.ObjectKey]Entry
	Trailer *corelex.Dict

	// AdditionalStreams carries the OASIS Open Document /AdditionalStreams
	// trailer extension the teacher's PDFFile.AdditionalStreams field
	// exposes, unused by the reading core itself but preserved for
	// completeness of the trailer surface.
	AdditionalStreams []corelex.Value

	// sectionOffsets records every startxref/Prev offset visited, used by
	// loop detection while walking.
	sectionOffsets map[int64]bool
}

// Reader is the subset of random access corexref needs: byte-range reads
// plus the total length, satisfied by *corelex.Source.
type Reader interface {
	ReadAt(buf []byte, offset int64) (int, error)
	Length() int64
}

// ErrLoop is returned when the /Prev chain revisits an offset.
type ErrLoop struct{ Offset int64 }

func (e *ErrLoop) Error() string {
	return fmt.Sprintf("corexref: xref /Prev loop at offset %d", e.Offset)
}

// LocateStartXRef implements the "Locating startxref" algorithm: read the
// last lookupRange bytes, find the last "%%EOF", then the last "startxref"
// preceding it, and parse the integer offset that follows. lenient allows
// a missing %%EOF (search bound becomes the end of the read window);
// a missing "startxref" is always fatal, matching spec.md.
func LocateStartXRef(r Reader, lookupRange int64, lenient bool) (int64, error) {
	if lookupRange < 16 {
		lookupRange = 16
	}
	total := r.Length()
	start := total - lookupRange
	if start < 0 {
		start = 0
	}
	buf := make([]byte, total-start)
	if _, err := r.ReadAt(buf, start); err != nil {
		return 0, corelex.NewParseError(corelex.KindIO, "reading startxref lookup window", err)
	}

	bound := len(buf)
	if eof := bytes.LastIndex(buf, []byte("%%EOF")); eof >= 0 {
		bound = eof
	} else if !lenient {
		return 0, corelex.NewParseError(corelex.KindHeader, "missing %%EOF marker", nil)
	}

	idx := bytes.LastIndex(buf[:bound], []byte("startxref"))
	if idx < 0 {
		return 0, corelex.NewParseError(corelex.KindHeader, "missing startxref keyword", nil)
	}

	off, ok := parseTrailingInteger(buf[idx+len("startxref") : bound])
	if !ok {
		return 0, corelex.NewParseError(corelex.KindHeader, "malformed startxref offset", nil)
	}
	return off, nil
}

func parseTrailingInteger(buf []byte) (int64, bool) {
	i := 0
	for i < len(buf) && isLexWhitespace(buf[i]) {
		i++
	}
	j := i
	for j < len(buf) && buf[j] >= '0' && buf[j] <= '9' {
		j++
	}
	if i == j {
		return 0, false
	}
	var v int64
	for _, c := range buf[i:j] {
		v = v*10 + int64(c-'0')
	}
	return v, true
}

func isLexWhitespace(b byte) bool {
	switch b {
	case 0, 9, 10, 12, 13, 32:
		return true
	default:
		return false
	}
}

// WalkOptions controls the xref chain walker.
type WalkOptions struct {
	Lenient bool
	// Chain decodes xref-stream and object-stream payloads. A nil Chain
	// leaves FlateDecode-compressed xref streams undecodable, which is a
	// hard error even in lenient mode (there is no way to read the table).
	Chain corelex.FilterChain
	// ValidateOffset, if non-nil, is consulted when an offset fails the
	// "xref or /Type /XRef object" sniff; it should return a corrected
	// offset from C6's recovered candidates, or ok=false.
	ValidateOffset func(declared int64) (corrected int64, ok bool)
}

// Walk builds a merged Table starting at startOffset, following /Prev
// (and hybrid /XRefStm) sections until exhausted or a loop is detected.
func Walk(r Reader, startOffset int64, opts WalkOptions) (*Table, error) {
	t := &Table{
		Entries:        map[corelex.ObjectKey]Entry{},
		sectionOffsets: map[int64]bool{},
	}

	offset := startOffset
	first := true
	for first || offset != 0 {
		if t.sectionOffsets[offset] {
			return t, &ErrLoop{Offset: offset}
		}
		t.sectionOffsets[offset] = true

		kind, err := sniffSectionKind(r, offset)
		if err != nil {
			if opts.ValidateOffset != nil {
				if corrected, ok := opts.ValidateOffset(offset); ok {
					offset = corrected
					kind, err = sniffSectionKind(r, offset)
				}
			}
			if err != nil {
				return t, err
			}
		}

		var trailer *corelex.Dict
		var xrefStmOffset int64
		switch kind {
		case sectionClassical:
			trailer, xrefStmOffset, err = parseClassicalSection(r, offset, t, opts.Lenient)
		case sectionStream:
			trailer, err = parseStreamSection(r, offset, t, opts.Chain, opts.Lenient)
		}
		if err != nil {
			return t, err
		}

		if first {
			t.Trailer = trailer
			first = false
		}
		if as, ok := trailer.Get("AdditionalStreams"); ok {
			if arr, ok := as.AsArray(); ok {
				t.AdditionalStreams = arr
			}
		}

		// Hybrid xref: process the /XRefStm section's entries before
		// continuing to /Prev, per spec.md §4.4.2 and the teacher's
		// parseHybridXRefStream ordering.
		if xrefStmOffset != 0 && !t.sectionOffsets[xrefStmOffset] {
			t.sectionOffsets[xrefStmOffset] = true
			if _, err := parseStreamSection(r, xrefStmOffset, t, opts.Chain, opts.Lenient); err != nil && !opts.Lenient {
				return t, err
			}
		}

		next := int64(0)
		if prev, ok := trailer.Get("Prev"); ok {
			if n, ok := prev.AsInt(); ok {
				next = n
			}
		}
		offset = next
	}
	return t, nil
}

type sectionKind uint8

const (
	sectionClassical sectionKind = iota
	sectionStream
)

// sniffSectionKind implements "check_xref_offset": at offset, after
// whitespace, 'x' means a classical table, a digit means an xref stream
// (the digits are an object number), anything else is invalid.
func sniffSectionKind(r Reader, offset int64) (sectionKind, error) {
	var buf [16]byte
	n, _ := r.ReadAt(buf[:], offset)
	i := 0
	for i < n && isLexWhitespace(buf[i]) {
		i++
	}
	if i >= n {
		return 0, corelex.NewParseError(corelex.KindWrongObjectHeader, "empty xref section", nil)
	}
	switch {
	case buf[i] == 'x':
		return sectionClassical, nil
	case buf[i] >= '0' && buf[i] <= '9':
		return sectionStream, nil
	default:
		return 0, corelex.NewParseError(corelex.KindWrongObjectHeader, "unrecognized xref section header", nil)
	}
}

// parseClassicalSection implements §4.4.1: one or more
// "<first> <count>" subsections of fixed-width rows, followed by
// "trailer <<dict>>". It also carries the "HP scanner subsection-zero"
// compatibility hack the teacher applies: when a section's only
// subsection never lists object 0, every object number in it is shifted
// down by one (see the comment in the body).
func parseClassicalSection(r Reader, offset int64, t *Table, lenient bool) (*corelex.Dict, int64, error) {
	buf, err := readSectionBlock(r, offset)
	if err != nil {
		return nil, 0, err
	}
	l := corelex.NewLexer(buf)

	kw, _ := nextKeyword(l)
	if string(kw) != "xref" {
		return nil, 0, corelex.NewParseError(corelex.KindWrongObjectHeader, "expected 'xref' keyword", nil)
	}

	type localEntry struct {
		number int64
		e      Entry
	}
	var local []localEntry
	subsections := 0
	hasZero := false

	for {
		save := *l
		first, okFirst := nextIntLoose(l)
		if !okFirst {
			*l = save
			break
		}
		count, okCount := nextIntLoose(l)
		if !okCount {
			*l = save
			break
		}
		subsections++
		for i := int64(0); i < count; i++ {
			entryOffset, okO := nextIntLoose(l)
			gen, okG := nextIntLoose(l)
			status, okS := nextKeyword(l)
			if !okO || !okG || !okS {
				break
			}
			number := first + i
			if number == 0 {
				hasZero = true
			}
			if string(status) == "n" && entryOffset > 0 {
				local = append(local, localEntry{number: number, e: Entry{Kind: EntryInUse, Offset: uint64(entryOffset), Generation: uint16(gen)}})
			}
			// "f" entries are free-chain links, not needed for reading.
		}
	}

	// "HP scanner" compatibility hack: some producers emit a single
	// subsection numbered from 1 instead of 0, omitting object 0
	// entirely. When that is the only subsection in the section and no
	// entry for object 0 was seen, every object number is shifted down
	// by one to match what the rest of the file actually expects.
	if subsections == 1 && !hasZero {
		for i := range local {
			local[i].number--
		}
	}
	for _, le := range local {
		key := corelex.ObjectKey{Number: uint64(le.number), Generation: le.e.Generation}
		if _, exists := t.Entries[key]; !exists {
			t.Entries[key] = le.e
		}
	}

	trailerKw, _ := nextKeyword(l)
	if string(trailerKw) != "trailer" {
		return nil, 0, corelex.NewParseError(corelex.KindMissingTrailerRoot, "expected 'trailer' keyword", nil)
	}
	rest := buf[l.Position():]
	trailerVal, _, err := corelex.ParseValue(rest, lenient)
	if err != nil {
		return nil, 0, corelex.NewParseError(corelex.KindMissingTrailerRoot, "malformed trailer dictionary", err)
	}
	dict, ok := trailerVal.AsDict()
	if !ok {
		return nil, 0, corelex.NewParseError(corelex.KindMissingTrailerRoot, "trailer is not a dictionary", nil)
	}

	var xrefStm int64
	if v, ok := dict.Get("XRefStm"); ok {
		if n, ok := v.AsInt(); ok {
			xrefStm = n
		}
	}
	return dict, xrefStm, nil
}

// nextIntLoose reads a plain integer token (not an indirect reference —
// the xref table format never nests references), tolerating malformed
// punctuation around subsection boundaries per the classical table's
// whitespace-delimited-columns grammar.
func nextIntLoose(l *corelex.Lexer) (int64, bool) {
	tk, err := l.NextRaw()
	if err != nil || tk.Kind != corelex.RawInteger {
		return 0, false
	}
	var v int64
	for _, c := range tk.Text {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	return v, true
}

func nextKeyword(l *corelex.Lexer) ([]byte, bool) {
	tk, err := l.NextRaw()
	if err != nil || tk.Kind != corelex.RawKeyword {
		return nil, false
	}
	return tk.Text, true
}

func readSectionBlock(r Reader, offset int64) ([]byte, error) {
	const maxBlock = 1 << 20
	remaining := r.Length() - offset
	if remaining > maxBlock {
		remaining = maxBlock
	}
	if remaining <= 0 {
		return nil, corelex.NewParseError(corelex.KindIO, "xref section offset past end of file", nil)
	}
	buf := make([]byte, remaining)
	n, err := r.ReadAt(buf, offset)
	if n == 0 {
		return nil, corelex.NewParseError(corelex.KindIO, "reading xref section", err)
	}
	return buf[:n], nil
}

func parseStreamSection(r Reader, offset int64, t *Table, chain corelex.FilterChain, lenient bool) (*corelex.Dict, error) {
	return parseXRefStream(r, offset, t, chain, lenient)
}
