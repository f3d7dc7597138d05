package corexref

import (
	"bytes"

	"github.com/kuglerb/pdflex/corelex"
)

// ScanResult holds everything C6's scans produce: candidate object
// offsets, structural keyword locations, and trailer candidates, from
// which a fresh Table can be rebuilt when the declared structure is
// broken. Grounded on other_examples' rebuildXrefFromObjects/
// findTrailerDict/findRootObject and the teacher's bypassXrefSection.
type ScanResult struct {
	// ObjectOffsets maps each discovered object number to its header
	// start offset (the byte of the leading digit of "<num> <gen> obj").
	ObjectOffsets     map[uint64]ObjectCandidate
	XrefTableOffsets  []int64
	XrefStreamOffsets []int64
	ObjStmOffsets     []int64
	TrailerOffsets    []int64
	LastEOF           int64 // -1 if none found
}

// ObjectCandidate is one object header found by the body scan.
type ObjectCandidate struct {
	Offset     int64
	Generation uint16
}

// Scan runs every C6 scan over data once and returns the combined result.
func Scan(data []byte) ScanResult {
	return ScanResult{
		ObjectOffsets:     scanObjectBodies(data),
		XrefTableOffsets:  scanKeywordAfterWhitespace(data, "xref"),
		XrefStreamOffsets: scanXRefStreamOffsets(data),
		ObjStmOffsets:     scanObjStmOffsets(data),
		TrailerOffsets:    scanAllIndices(data, "trailer"),
		LastEOF:           lastEOFOffset(data),
	}
}

// scanObjectBodies finds every "<num> <gen> obj" occurrence by searching
// for " obj" and walking backward past digits and whitespace to recover
// the header's two numbers, matching spec.md's C6 object-body scan.
func scanObjectBodies(data []byte) map[uint64]ObjectCandidate {
	out := map[uint64]ObjectCandidate{}
	marker := []byte(" obj")
	search := 0
	for {
		idx := bytes.Index(data[search:], marker)
		if idx < 0 {
			break
		}
		pos := search + idx
		search = pos + len(marker)

		gen, genStart, ok := scanBackUint(data, pos)
		if !ok {
			continue
		}
		num, numStart, ok := scanBackUint(data, skipBackWhitespace(data, genStart))
		if !ok {
			continue
		}
		headerStart := numStart
		if _, exists := out[num]; !exists {
			out[num] = ObjectCandidate{Offset: int64(headerStart), Generation: uint16(gen)}
		}
	}
	return out
}

// scanBackUint reads a run of ASCII digits ending just before end,
// returning the parsed value and the offset of its first digit.
func scanBackUint(data []byte, end int) (uint64, int, bool) {
	i := end
	for i > 0 && data[i-1] >= '0' && data[i-1] <= '9' {
		i--
	}
	if i == end {
		return 0, 0, false
	}
	var v uint64
	for _, c := range data[i:end] {
		v = v*10 + uint64(c-'0')
	}
	return v, i, true
}

func skipBackWhitespace(data []byte, end int) int {
	i := end
	for i > 0 && isLexWhitespace(data[i-1]) {
		i--
	}
	return i
}

// scanKeywordAfterWhitespace finds occurrences of kw that are immediately
// preceded by whitespace (or start-of-file), excluding any that are part
// of a longer keyword ending the same way (e.g. "xref" inside
// "startxref").
func scanKeywordAfterWhitespace(data []byte, kw string) []int64 {
	var out []int64
	needle := []byte(kw)
	search := 0
	for {
		idx := bytes.Index(data[search:], needle)
		if idx < 0 {
			break
		}
		pos := search + idx
		search = pos + len(needle)
		if pos > 0 && !isLexWhitespace(data[pos-1]) {
			// preceded by a non-whitespace byte: likely part of a longer
			// keyword such as "startxref" preceding "xref".
			continue
		}
		out = append(out, int64(pos))
	}
	return out
}

func scanAllIndices(data []byte, kw string) []int64 {
	var out []int64
	needle := []byte(kw)
	search := 0
	for {
		idx := bytes.Index(data[search:], needle)
		if idx < 0 {
			break
		}
		pos := search + idx
		out = append(out, int64(pos))
		search = pos + len(needle)
	}
	return out
}

// scanXRefStreamOffsets finds "/XRef" occurrences and walks backward to
// the enclosing object's header start.
func scanXRefStreamOffsets(data []byte) []int64 {
	return scanBackToObjectStart(data, [][]byte{[]byte("/Type/XRef"), []byte("/Type /XRef")})
}

// scanObjStmOffsets finds "/ObjStm" occurrences and walks backward
// similarly.
func scanObjStmOffsets(data []byte) []int64 {
	return scanBackToObjectStart(data, [][]byte{[]byte("/Type/ObjStm"), []byte("/Type /ObjStm")})
}

func scanBackToObjectStart(data []byte, needles [][]byte) []int64 {
	var out []int64
	seen := map[int64]bool{}
	for _, needle := range needles {
		search := 0
		for {
			idx := bytes.Index(data[search:], needle)
			if idx < 0 {
				break
			}
			pos := search + idx
			search = pos + len(needle)

			if objStart, ok := findEnclosingObjectStart(data, pos); ok && !seen[objStart] {
				seen[objStart] = true
				out = append(out, objStart)
			}
		}
	}
	return out
}

// findEnclosingObjectStart searches backward from pos for the nearest
// "<num> <gen> obj" header.
func findEnclosingObjectStart(data []byte, pos int) (int64, bool) {
	marker := []byte(" obj")
	window := data[:pos]
	idx := bytes.LastIndex(window, marker)
	if idx < 0 {
		return 0, false
	}
	gen, genStart, ok := scanBackUint(data, idx)
	if !ok {
		return 0, false
	}
	_, numStart, ok := scanBackUint(data, skipBackWhitespace(data, genStart))
	if !ok {
		return 0, false
	}
	_ = gen
	return int64(numStart), true
}

// lastEOFOffset returns the highest offset at which "%%EOF" appears, or -1.
func lastEOFOffset(data []byte) int64 {
	idx := bytes.LastIndex(data, []byte("%%EOF"))
	return int64(idx)
}

// NearestCandidate implements the offset-selection rule from §4.6: among
// a pool of candidate offsets, pick the one closest to declared and
// remove it from the pool so it cannot be reused for another repair.
func NearestCandidate(pool map[int64]bool, declared int64) (int64, bool) {
	best := int64(0)
	bestDist := int64(-1)
	found := false
	for off := range pool {
		d := off - declared
		if d < 0 {
			d = -d
		}
		if !found || d < bestDist {
			best, bestDist, found = off, d, true
		}
	}
	if found {
		delete(pool, best)
	}
	return best, found
}

// RebuildTable constructs a fresh Table purely from C6's scan results,
// used when no usable declared xref chain exists at all. InUse entries
// come straight from the object-body scan; compressed entries require
// locating and parsing each candidate object stream, which needs a
// FilterChain to decompress.
func RebuildTable(r Reader, scan ScanResult, chain corelex.FilterChain, objStreamParser corelex.ObjectStreamParser) *Table {
	t := &Table{
		Entries:        map[corelex.ObjectKey]Entry{},
		sectionOffsets: map[int64]bool{},
	}
	for num, cand := range scan.ObjectOffsets {
		key := corelex.ObjectKey{Number: num, Generation: cand.Generation}
		t.Entries[key] = Entry{Kind: EntryInUse, Offset: uint64(cand.Offset), Generation: cand.Generation}
	}

	if objStreamParser != nil {
		for _, off := range scan.ObjStmOffsets {
			obj, err := ReadIndirectObject(r, off, chain, true)
			if err != nil {
				continue
			}
			stream, ok := asStream(obj.Value)
			if !ok {
				continue
			}
			objs, err := objStreamParser.ParseAll(stream, chain)
			if err != nil {
				continue
			}
			for k := range objs {
				if _, exists := t.Entries[k]; !exists {
					t.Entries[k] = Entry{Kind: EntryCompressed, Container: obj.Number, IndexInContainer: 0}
				}
			}
		}
	}

	t.Trailer = RecoverTrailer(r, scan, t)
	return t
}

// RecoverTrailer implements §4.6's trailer reconstruction: scan "trailer"
// occurrences for a dictionary whose /Root points at a /Type /Catalog
// dictionary; failing that, synthesize one from an object whose own
// dictionary has /Type /Catalog. A candidate's /Info entry is not examined.
func RecoverTrailer(r Reader, scan ScanResult, t *Table) *corelex.Dict {
	// Trailer candidates can sit anywhere in the file (a broken document
	// may have its last, authoritative trailer far past the 1MB window
	// readSectionBlock caps ordinary xref sections at), so this reads the
	// whole file rather than reusing that helper.
	buf := make([]byte, r.Length())
	if n, err := r.ReadAt(buf, 0); err != nil && n == 0 {
		buf = nil
	}

	for _, off := range scan.TrailerOffsets {
		if int(off) >= len(buf) {
			continue
		}
		rest := buf[off+int64(len("trailer")):]
		i := 0
		for i < len(rest) && isLexWhitespace(rest[i]) {
			i++
		}
		v, _, err := corelex.ParseValue(rest[i:], true)
		if err != nil {
			continue
		}
		dict, ok := v.AsDict()
		if !ok {
			continue
		}
		if rootRef, ok := dict.Get("Root"); ok {
			if key, ok := rootRef.AsRef(); ok {
				if looksLikeCatalog(r, t, key) {
					return dict
				}
			}
		}
	}

	// Nothing usable found by scanning "trailer": synthesize from any
	// object whose dictionary declares /Type /Catalog.
	for num, cand := range scan.ObjectOffsets {
		obj, err := ReadIndirectObject(r, cand.Offset, nil, true)
		if err != nil {
			continue
		}
		dict, ok := obj.Value.AsDict()
		if !ok {
			continue
		}
		if typ, ok := dict.Get("Type"); ok && isName(typ, "Catalog") {
			synth := corelex.NewDict()
			synth.Set("Root", corelex.RefVal(corelex.ObjectKey{Number: num, Generation: cand.Generation}))
			return synth
		}
	}
	return corelex.NewDict()
}

func looksLikeCatalog(r Reader, t *Table, key corelex.ObjectKey) bool {
	entry, ok := t.Entries[key]
	if !ok || entry.Kind != EntryInUse {
		return false
	}
	obj, err := ReadIndirectObject(r, int64(entry.Offset), nil, true)
	if err != nil {
		return false
	}
	dict, ok := obj.Value.AsDict()
	if !ok {
		return false
	}
	typ, ok := dict.Get("Type")
	return ok && isName(typ, "Catalog")
}
