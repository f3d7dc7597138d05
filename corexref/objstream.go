package corexref

import (
	"bytes"

	"github.com/kuglerb/pdflex/corelex"
)

// DefaultObjectStreamParser is the core's own implementation of the
// ObjectStreamParser collaborator, grounded on the teacher's
// reader/file/object_streams.go: a compressed object container (/Type
// /ObjStm) prefixes its (already filter-decoded) payload with /N pairs of
// "objectNumber offset" separated by whitespace, the object bytes
// themselves starting at /First.
type DefaultObjectStreamParser struct{}

var _ corelex.ObjectStreamParser = DefaultObjectStreamParser{}

func (DefaultObjectStreamParser) ParseAll(stream *corelex.Stream, chain corelex.FilterChain) (map[corelex.ObjectKey]corelex.Value, error) {
	dict := stream.Dict
	if typ, ok := dict.Get("Type"); !ok || !isName(typ, "ObjStm") {
		return nil, corelex.NewParseError(corelex.KindMalformedValue, "expected /Type /ObjStm", nil)
	}
	n, ok := intEntry(dict, "N")
	if !ok || n < 0 {
		return nil, corelex.NewParseError(corelex.KindMalformedValue, "object stream missing /N", nil)
	}
	first, ok := intEntry(dict, "First")
	if !ok || first < 0 || int(first) > len(stream.Raw) {
		return nil, corelex.NewParseError(corelex.KindMalformedValue, "object stream missing or invalid /First", nil)
	}

	if _, unsupported := dict.Get("Extends"); unsupported {
		// Chained object streams (/Extends) are rare and unsupported by
		// the teacher's implementation too; callers see only this
		// stream's own objects.
	}

	prolog := stream.Raw[:first]
	fields := bytes.Fields(prolog)
	if int64(len(fields)) < n*2 {
		return nil, corelex.NewParseError(corelex.KindMalformedValue, "object stream prolog shorter than /N declares", nil)
	}

	out := make(map[corelex.ObjectKey]corelex.Value, n)
	for i := int64(0); i < n; i++ {
		numTxt := fields[2*i]
		offTxt := fields[2*i+1]
		number := parseUintDigits(numTxt)
		relOffset := parseUintDigits(offTxt)

		start := int(first) + int(relOffset)
		if start < 0 || start > len(stream.Raw) {
			continue // corrupted prolog entry: skip, leniently
		}
		value, _, err := corelex.ParseValue(stream.Raw[start:], true)
		if err != nil {
			continue // corrupted object body: skip, leniently
		}
		out[corelex.ObjectKey{Number: number, Generation: 0}] = value
	}
	return out, nil
}
