package corexref

import (
	"github.com/kuglerb/pdflex/corelex"
)

// IndirectObject is one parsed "<num> <gen> obj ... endobj" body: a Value
// together with the object header's own number/generation (kept separate
// from the resolved ObjectKey the caller was looking for, since lenient
// mode tolerates a header mismatch and still returns what it found).
type IndirectObject struct {
	Number     uint64
	Generation uint16
	Value      corelex.Value
}

// ReadIndirectObject reads one indirect object at offset: the
// "<num> <gen> obj" header, one Value via the lexer, and — when the value
// is immediately followed by the "stream" keyword — the stream payload
// via C3, decoded through chain if the stream declares filters and chain
// is non-nil. This is the shared implementation step 4 of the object
// resolver (C5) delegates to, and that C6's recovery scan also uses once
// it has located a candidate offset.
func ReadIndirectObject(r Reader, offset int64, chain corelex.FilterChain, lenient bool) (IndirectObject, error) {
	return readIndirectObject(r, offset, chain, lenient, nil)
}

// ReadIndirectObjectResolved is ReadIndirectObject, but additionally
// resolves an indirect /Length (spec.md §4.5's "dictionary-value length
// resolution": a Stream's /Length may itself be a reference). resolveLength
// looks up a key and reports whether it is known; the resolver
// (coredoc) is the only component able to do this lookup, since it alone
// owns the ObjectPool.
func ReadIndirectObjectResolved(r Reader, offset int64, chain corelex.FilterChain, lenient bool, resolveLength func(corelex.ObjectKey) (corelex.Value, bool)) (IndirectObject, error) {
	return readIndirectObject(r, offset, chain, lenient, resolveLength)
}

func readIndirectObject(r Reader, offset int64, chain corelex.FilterChain, lenient bool, resolveLength func(corelex.ObjectKey) (corelex.Value, bool)) (IndirectObject, error) {
	src := corelex.NewSource(r, r.Length())
	if err := src.Seek(offset); err != nil {
		return IndirectObject{}, corelex.NewParseError(corelex.KindIO, "seeking to object offset", err)
	}

	headerBuf := make([]byte, 64)
	n, _ := src.Read(headerBuf)
	headerBuf = headerBuf[:n]
	l := corelex.NewLexer(headerBuf)

	numTok, err := l.NextRaw()
	if err != nil || numTok.Kind != corelex.RawInteger {
		return IndirectObject{}, corelex.NewParseError(corelex.KindWrongObjectHeader, "expected object number", nil)
	}
	genTok, err := l.NextRaw()
	if err != nil || genTok.Kind != corelex.RawInteger {
		return IndirectObject{}, corelex.NewParseError(corelex.KindWrongObjectHeader, "expected generation number", nil)
	}
	objKw, err := l.NextRaw()
	if err != nil || objKw.Kind != corelex.RawKeyword || string(objKw.Text) != "obj" {
		return IndirectObject{}, corelex.NewParseError(corelex.KindWrongObjectHeader, "expected 'obj' keyword", nil)
	}

	number := parseUintDigits(numTok.Text)
	generation := uint16(parseUintDigits(genTok.Text))

	bodyOffset := offset + int64(l.Position())
	if err := src.Seek(bodyOffset); err != nil {
		return IndirectObject{}, corelex.NewParseError(corelex.KindIO, "seeking to object body", err)
	}

	valueBuf := make([]byte, min64(r.Length()-bodyOffset, 1<<20))
	if _, err := src.ReadAt(valueBuf, bodyOffset); err != nil {
		return IndirectObject{}, corelex.NewParseError(corelex.KindIO, "reading object body", err)
	}

	value, consumed, err := corelex.ParseValue(valueBuf, lenient)
	if err != nil {
		// A typed *ParseError from the lexer/parser already carries its
		// real kind (MalformedNumber/MalformedString/MalformedName are
		// not downgradable and must keep propagating as such); only an
		// untyped error gets the generic MalformedValue wrapper.
		if pe, ok := err.(*corelex.ParseError); ok {
			return IndirectObject{}, pe
		}
		return IndirectObject{}, corelex.NewParseError(corelex.KindMalformedValue, "parsing object value", err)
	}

	afterValue := bodyOffset + int64(consumed)
	if err := src.Seek(afterValue); err != nil {
		return IndirectObject{Number: number, Generation: generation, Value: value}, nil
	}

	trailKw, ok := peekKeyword(src)
	if ok && trailKw == "stream" {
		consumeKeyword(src, "stream")
		dict, isDict := value.AsDict()
		if !isDict {
			return IndirectObject{}, corelex.NewParseError(corelex.KindMalformedStream, "stream keyword without a preceding dictionary", nil)
		}
		declaredLength := resolveDeclaredLength(dict, resolveLength)
		result, err := corelex.ScanStreamPayload(src, declaredLength)
		if err != nil {
			return IndirectObject{}, corelex.NewParseError(corelex.KindMalformedStream, "scanning stream payload", err)
		}
		if result.UsedScan {
			dict.Set("__ObservedLength", corelex.Int(result.Observed))
		}
		raw := result.Payload
		if chain != nil {
			if decoded, err := decodeWithFilters(chain, dict, raw); err == nil {
				raw = decoded
			}
			// A filter failure is left as raw bytes; the caller (resolver)
			// decides whether that is fatal under its leniency policy.
		}
		value = corelex.StreamVal(&corelex.Stream{Dict: dict, Raw: raw})
	}

	return IndirectObject{Number: number, Generation: generation, Value: value}, nil
}

func resolveDeclaredLength(dict *corelex.Dict, resolveLength func(corelex.ObjectKey) (corelex.Value, bool)) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	if n, ok := v.AsInt(); ok {
		return n
	}
	if ref, ok := v.AsRef(); ok && resolveLength != nil {
		if resolved, ok := resolveLength(ref); ok {
			if n, ok := resolved.AsInt(); ok {
				return n
			}
		}
		// Null referent (or unresolved leniently): fall back to scanning.
	}
	return -1
}

func decodeWithFilters(chain corelex.FilterChain, dict *corelex.Dict, raw []byte) ([]byte, error) {
	names, params := filterSpec(dict)
	if len(names) == 0 {
		return raw, nil
	}
	return chain.Decode(raw, names, params)
}

func filterSpec(dict *corelex.Dict) ([]string, []corelex.FilterParams) {
	v, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	var names []string
	switch v.Kind {
	case corelex.KindName:
		names = []string{string(v.Name)}
	case corelex.KindArray:
		for _, e := range v.Array {
			if n, ok := e.AsName(); ok {
				names = append(names, string(n))
			}
		}
	}

	var params []corelex.FilterParams
	if pv, ok := dict.Get("DecodeParms"); ok {
		switch pv.Kind {
		case corelex.KindDict:
			params = []corelex.FilterParams{dictToParams(pv.Dict)}
		case corelex.KindArray:
			for _, e := range pv.Array {
				if d, ok := e.AsDict(); ok {
					params = append(params, dictToParams(d))
				} else {
					params = append(params, nil)
				}
			}
		}
	}
	return names, params
}

func dictToParams(d *corelex.Dict) corelex.FilterParams {
	p := corelex.FilterParams{}
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		if n, ok := v.AsInt(); ok {
			p[string(k)] = int(n)
		}
	}
	return p
}

func peekKeyword(src *corelex.Source) (string, bool) {
	const maxPeek = 16
	buf := make([]byte, maxPeek)
	n, _ := src.ReadAt(buf, src.Position())
	buf = buf[:n]
	i := 0
	for i < len(buf) && isLexWhitespace(buf[i]) {
		i++
	}
	j := i
	for j < len(buf) && !isLexWhitespace(buf[j]) && buf[j] != '<' && buf[j] != '/' && buf[j] != '(' {
		j++
	}
	if i == j {
		return "", false
	}
	return string(buf[i:j]), true
}

func consumeKeyword(src *corelex.Source, kw string) {
	const maxPeek = 16
	buf := make([]byte, maxPeek)
	n, _ := src.ReadAt(buf, src.Position())
	buf = buf[:n]
	i := 0
	for i < len(buf) && isLexWhitespace(buf[i]) {
		i++
	}
	i += len(kw)
	_ = src.Seek(src.Position() + int64(i))
}

func parseUintDigits(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + uint64(c-'0')
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
