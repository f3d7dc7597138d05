package corexref

import "github.com/kuglerb/pdflex/corelex"

// parseXRefStream implements §4.4.2: read the indirect stream object at
// offset, require /Type /XRef, decode its payload (the stream is almost
// always FlateDecode-compressed, hence the chain dependency), and unpack
// fixed-width rows per /W into Table entries. Grounded on the teacher's
// xreftable.go extractXRefTableEntriesFromXRefStream/xrefStreamDict.
func parseXRefStream(r Reader, offset int64, t *Table, chain corelex.FilterChain, lenient bool) (*corelex.Dict, error) {
	obj, err := ReadIndirectObject(r, offset, chain, lenient)
	if err != nil {
		return nil, err
	}
	stream, ok := asStream(obj.Value)
	if !ok {
		return nil, corelex.NewParseError(corelex.KindWrongObjectHeader, "expected a stream object at xref-stream offset", nil)
	}
	dict := stream.Dict

	if typ, ok := dict.Get("Type"); !ok || !isName(typ, "XRef") {
		return nil, corelex.NewParseError(corelex.KindWrongObjectHeader, "stream is not /Type /XRef", nil)
	}
	if _, filtered := dict.Get("Filter"); filtered && chain == nil {
		return nil, corelex.NewParseError(corelex.KindMalformedStream, "xref stream is filtered but no FilterChain is configured", nil)
	}

	w, err := readWidths(dict)
	if err != nil {
		return nil, err
	}
	size, ok := intEntry(dict, "Size")
	if !ok {
		return nil, corelex.NewParseError(corelex.KindMissingTrailerRoot, "xref stream missing /Size", nil)
	}
	index := readIndex(dict, size)

	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, corelex.NewParseError(corelex.KindMalformedStream, "xref stream has zero-width rows", nil)
	}

	data := stream.Raw
	pos := 0
	for sec := 0; sec+1 < len(index); sec += 2 {
		first := index[sec]
		count := index[sec+1]
		for i := int64(0); i < count; i++ {
			if pos+rowLen > len(data) {
				return dict, nil // truncated payload: keep what was decoded
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			typeField := int64(1)
			if w[0] > 0 {
				typeField = beUint(row[:w[0]])
			}
			f1 := beUint(row[w[0] : w[0]+w[1]])
			f2 := beUint(row[w[0]+w[1] : rowLen])

			number := uint64(first + i)
			switch typeField {
			case 0:
				// Free entry: nothing to record for reading purposes.
			case 1:
				key := corelex.ObjectKey{Number: number, Generation: uint16(f2)}
				if _, exists := t.Entries[key]; !exists {
					t.Entries[key] = Entry{Kind: EntryInUse, Offset: uint64(f1), Generation: uint16(f2)}
				}
			case 2:
				key := corelex.ObjectKey{Number: number, Generation: 0}
				if _, exists := t.Entries[key]; !exists {
					t.Entries[key] = Entry{Kind: EntryCompressed, Container: uint64(f1), IndexInContainer: uint32(f2)}
				}
			}
		}
	}

	return dict, nil
}

func asStream(v corelex.Value) (*corelex.Stream, bool) {
	if v.Kind != corelex.KindStream {
		return nil, false
	}
	return v.Stream, true
}

func isName(v corelex.Value, name corelex.Name) bool {
	n, ok := v.AsName()
	return ok && n == name
}

func intEntry(d *corelex.Dict, key corelex.Name) (int64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

func readWidths(d *corelex.Dict) ([3]int, error) {
	v, ok := d.Get("W")
	if !ok {
		return [3]int{}, corelex.NewParseError(corelex.KindMalformedStream, "xref stream missing /W", nil)
	}
	arr, ok := v.AsArray()
	if !ok || len(arr) != 3 {
		return [3]int{}, corelex.NewParseError(corelex.KindMalformedStream, "xref stream /W must have 3 entries", nil)
	}
	var w [3]int
	for i, e := range arr {
		n, ok := e.AsInt()
		if !ok || n < 0 || n > 8 {
			return [3]int{}, corelex.NewParseError(corelex.KindMalformedStream, "invalid /W column width", nil)
		}
		w[i] = int(n)
	}
	return w, nil
}

func readIndex(d *corelex.Dict, size int64) []int64 {
	v, ok := d.Get("Index")
	if !ok {
		return []int64{0, size}
	}
	arr, ok := v.AsArray()
	if !ok {
		return []int64{0, size}
	}
	out := make([]int64, 0, len(arr))
	for _, e := range arr {
		n, ok := e.AsInt()
		if !ok {
			return []int64{0, size}
		}
		out = append(out, n)
	}
	if len(out) == 0 || len(out)%2 != 0 {
		return []int64{0, size}
	}
	return out
}

func beUint(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
