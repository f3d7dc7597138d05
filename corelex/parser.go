package corelex

import (
	"fmt"
	"strconv"
)

// ParseValue reads one PDF value from the front of data and returns it
// together with the number of bytes consumed. It is the composite-grammar
// half of C2: Lexer produces tokens, ParseValue assembles them into
// Array/Dict/IndirectRef/scalar Values, including the two-token lookahead
// needed to tell an integer ("5") from the start of an indirect reference
// ("5 0 R").
//
// lenient controls how a malformed value is handled: in strict mode any
// unrecognized keyword, unexpected dictionary key, or array element failure
// is a hard error; in lenient mode an unrecognized keyword downgrades to
// Null, a bad dictionary key byte is skipped forward to, and a bad array
// element is skipped so its neighbors survive. Kinds that are never
// downgradable (malformed numbers, strings, names) are returned as errors
// when the top-level value itself fails, even when lenient; inside a
// lenient array or dictionary such a failing element is skipped like any
// other.
func ParseValue(data []byte, lenient bool) (Value, int, error) {
	l := NewLexer(data)
	v, err := parseValue(l, false, lenient)
	return v, l.Position(), err
}

// isSectionBoundary reports whether text is one of the two keywords that
// close an indirect object's body. A value position that finds one of
// these instead of an actual value has no value at all: the keyword is
// left unconsumed so the caller (object/array/dict) can see it end its own
// section, rather than being misread as a stray, malformed value.
func isSectionBoundary(text []byte) bool {
	s := string(text)
	return s == "endobj" || s == "endstream"
}

// parseValue parses one value from l. contentStreamMode disables indirect
// reference recognition; whether an unrecognized keyword is an error
// depends on lenient alone (content-stream operators are out of this
// core's scope but the hook mirrors the teacher's Parser.ContentStreamMode
// for a lenient reader that might be fed an inline content fragment).
func parseValue(l *Lexer, contentStreamMode, lenient bool) (Value, error) {
	tk, err := l.peek()
	if err != nil {
		return Value{}, err
	}
	if tk.kind == tokOther && isSectionBoundary(tk.text) {
		return Null, nil
	}
	_, _ = l.next()

	switch tk.kind {
	case tokEOF:
		return Value{}, NewParseError(KindMalformedValue, "unexpected end of input, expected a value", nil)
	case tokName:
		return NameVal(decodeName(tk.text)), nil
	case tokString:
		return StringVal(tk.text), nil
	case tokStringHex:
		return HexStringVal(tk.text), nil
	case tokStartArray:
		return parseArray(l, contentStreamMode, lenient)
	case tokStartDict:
		return parseDictOrStream(l, contentStreamMode, lenient)
	case tokReal:
		f, err := strconv.ParseFloat(string(tk.text), 64)
		if err != nil {
			return Value{}, NewParseError(KindMalformedNumber, fmt.Sprintf("malformed real number %q", tk.text), err)
		}
		return Real(f), nil
	case tokInteger:
		return parseIntegerOrRef(l, tk, contentStreamMode)
	case tokOther:
		switch string(tk.text) {
		case "null":
			return Null, nil
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		default:
			if lenient {
				return Null, nil
			}
			return Value{}, NewParseError(KindMalformedValue, fmt.Sprintf("unexpected keyword %q", tk.text), nil)
		}
	default:
		return Value{}, NewParseError(KindMalformedValue, "unexpected token", nil)
	}
}

// resyncOneToken consumes a single token so a lenient caller that gave up
// on the value or key starting there is guaranteed to make forward
// progress, whether or not that token itself carried a scan error.
func resyncOneToken(l *Lexer) {
	_, _ = l.next()
}

func parseArray(l *Lexer, contentStreamMode, lenient bool) (Value, error) {
	var elems []Value
	for {
		tk, err := l.peek()
		if err != nil {
			if lenient {
				resyncOneToken(l)
				continue
			}
			return Value{}, err
		}
		switch tk.kind {
		case tokEndArray:
			_, _ = l.next()
			return ArrayVal(elems), nil
		case tokEOF:
			if lenient {
				return ArrayVal(elems), nil
			}
			return Value{}, NewParseError(KindMalformedValue, "unterminated array", nil)
		default:
			if tk.kind == tokOther && isSectionBoundary(tk.text) {
				// The array's closing "]" never arrived; stop at the
				// enclosing object's boundary instead of erroring.
				return ArrayVal(elems), nil
			}
			v, err := parseValue(l, contentStreamMode, lenient)
			if err != nil {
				if lenient {
					resyncOneToken(l)
					continue
				}
				return Value{}, err
			}
			elems = append(elems, v)
		}
	}
}

// parseDictOrStream parses the dictionary that follows a "<<" token. The
// caller (the xref/object layer, via the stream-payload scanner) is
// responsible for recognizing a following "stream" keyword and attaching
// the raw payload; ParseValue itself only ever returns a Dict, never a
// Stream, since locating the payload bytes requires the declared/length
// leniency logic of C3, not this composite grammar.
func parseDictOrStream(l *Lexer, contentStreamMode, lenient bool) (Value, error) {
	d, err := parseDict(l, contentStreamMode, false, lenient)
	if err != nil {
		// Hack for malformed dictionaries with EOL-terminated, value-less
		// keys (seen from some mobile scanner apps): retry relaxed.
		d, err = parseDict(l, contentStreamMode, true, lenient)
		if err != nil {
			return Value{}, err
		}
	}
	return DictVal(d), nil
}

// skipToDictResync scans forward, discarding tokens, until the next
// dictionary key ("/name") or the dictionary's closing ">>" comes into
// view. It reports false, asking the caller to bail with whatever entries
// were already collected, if it instead runs into the enclosing object's
// boundary or the end of input first.
func skipToDictResync(l *Lexer) bool {
	for {
		tk, err := l.peek()
		if err != nil {
			return false
		}
		switch tk.kind {
		case tokName, tokEndDict:
			return true
		case tokEOF:
			return false
		default:
			if tk.kind == tokOther && isSectionBoundary(tk.text) {
				return false
			}
			_, _ = l.next()
		}
	}
}

func parseDict(l *Lexer, contentStreamMode, relaxed, lenient bool) (*Dict, error) {
	d := NewDict()
	for {
		tk, err := l.peek()
		if err != nil {
			if lenient {
				resyncOneToken(l)
				continue
			}
			return nil, err
		}
		switch tk.kind {
		case tokEndDict:
			_, _ = l.next()
			return d, nil
		case tokEOF:
			if lenient {
				return d, nil
			}
			return nil, NewParseError(KindMalformedValue, "unterminated dictionary", nil)
		case tokName:
			_, _ = l.next()
			key := decodeName(tk.text)

			var val Value
			if relaxed && l.hadEOLBeforeCurrent() {
				val = StringVal(nil)
			} else if vtk, verr := l.peek(); verr == nil && vtk.kind == tokOther && isSectionBoundary(vtk.text) {
				val = Null
			} else {
				val, err = parseValue(l, contentStreamMode, lenient)
				if err != nil {
					if !lenient {
						return nil, err
					}
					if !skipToDictResync(l) {
						return d, nil
					}
					continue
				}
			}
			// A null value is equivalent to the entry being absent
			// (7.3.7 Dictionary Objects).
			if !val.IsNull() {
				d.Set(key, val)
			}
		default:
			if tk.kind == tokOther && isSectionBoundary(tk.text) {
				return d, nil
			}
			if !lenient {
				return nil, NewParseError(KindMalformedValue, fmt.Sprintf("expected a name key in dictionary, got %v", tk.kind), nil)
			}
			if !skipToDictResync(l) {
				return d, nil
			}
		}
	}
}

// parseIntegerOrRef resolves the "123" vs "123 0 R" ambiguity via two-token
// lookahead: an integer followed by another integer followed by the
// keyword "R" is an indirect reference; anything else leaves the first
// integer as a plain Value and the lookahead tokens untouched for the
// caller to reconsume.
func parseIntegerOrRef(l *Lexer, first token, contentStreamMode bool) (Value, error) {
	n, err := strconv.ParseInt(string(first.text), 10, 64)
	if err != nil {
		return Value{}, NewParseError(KindMalformedNumber, fmt.Sprintf("malformed integer %q", first.text), err)
	}
	if contentStreamMode {
		return Int(n), nil
	}

	save := *l
	second, err := l.next()
	if err != nil || second.kind != tokInteger {
		*l = save
		return Int(n), nil
	}
	gen, err := strconv.ParseInt(string(second.text), 10, 64)
	if err != nil {
		*l = save
		return Int(n), nil
	}

	third, err := l.next()
	if err != nil || third.kind != tokOther || string(third.text) != "R" {
		*l = save
		return Int(n), nil
	}

	key, ok := NewObjectKey(n, gen)
	if !ok {
		// Out-of-bounds reference: leniently treat as the null object
		// rather than failing the whole parse.
		return Null, nil
	}
	return RefVal(key), nil
}
