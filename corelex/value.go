package corelex

import "fmt"

// Kind discriminates the tagged union a Value holds. A per-variant class
// hierarchy (as in the teacher's model.Object interface) is deliberately
// avoided in favor of one discriminated struct: the resolver and the xref
// engine both need to switch on "what kind of thing is this" far more often
// than they need per-variant polymorphism.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindName
	KindString
	KindArray
	KindDict
	KindStream
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Boolean"
	case KindInt:
		return "Integer"
	case KindReal:
		return "Real"
	case KindName:
		return "Name"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindDict:
		return "Dictionary"
	case KindStream:
		return "Stream"
	case KindRef:
		return "IndirectRef"
	default:
		return "<invalid>"
	}
}

// ObjectKey is the (object number, generation) pair addressing an indirect
// object. Two keys are equal iff both fields match; being a plain
// comparable struct, it is usable directly as a map key (Go's map already
// resolves collisions by full equality, so Hash below is provided only for
// callers that want an explicit cache key, e.g. a sync.Map keyed by int64).
type ObjectKey struct {
	Number     uint64
	Generation uint16
}

// MaxObjectNumber is the first object number spec.md rejects: numbers must
// satisfy 0 < number < 10^10.
const MaxObjectNumber = 10_000_000_000

// NewObjectKey validates and builds an ObjectKey for an indirect reference.
// The object number must be strictly positive (a reference to object 0 is
// never valid) and below MaxObjectNumber; the generation must fit in 16
// bits. ok is false, and the reference should be treated as Null, if any
// bound is violated.
func NewObjectKey(number, generation int64) (ObjectKey, bool) {
	if number <= 0 || number >= MaxObjectNumber {
		return ObjectKey{}, false
	}
	if generation < 0 || generation > 65535 {
		return ObjectKey{}, false
	}
	return ObjectKey{Number: uint64(number), Generation: uint16(generation)}, true
}

// Hash returns a stable 64-bit digest suitable for external cache keys.
// Collisions (there are none below MaxObjectNumber, since 10^10 < 2^44 and
// the generation occupies the low 20 bits) must still be resolved by full
// ObjectKey equality by any caller storing more than one key per bucket.
func (k ObjectKey) Hash() uint64 {
	return (k.Number << 20) | uint64(k.Generation)
}

func (k ObjectKey) String() string {
	return fmt.Sprintf("%d %d R", k.Number, k.Generation)
}

// Dict is an ordered mapping from Name to Value. Per spec.md's leniency
// rule, the first definition of a duplicate key wins; later ones are
// dropped. Iteration order (Keys) is insertion order.
type Dict struct {
	order []Name
	byKey map[Name]Value
}

// NewDict returns an empty, ready-to-use Dict.
func NewDict() *Dict {
	return &Dict{byKey: map[Name]Value{}}
}

// Set stores key=val unless key is already present, in which case the
// existing value is kept (first-insertion wins). It reports whether the
// value was actually stored.
func (d *Dict) Set(key Name, val Value) bool {
	if _, ok := d.byKey[key]; ok {
		return false
	}
	d.order = append(d.order, key)
	d.byKey[key] = val
	return true
}

// Get returns the value for key, and whether it was present.
func (d *Dict) Get(key Name) (Value, bool) {
	v, ok := d.byKey[key]
	return v, ok
}

// GetOrNull returns the value for key, or a Null Value if absent.
func (d *Dict) GetOrNull(key Name) Value {
	if v, ok := d.byKey[key]; ok {
		return v
	}
	return Value{Kind: KindNull}
}

// Len returns the number of distinct keys.
func (d *Dict) Len() int { return len(d.order) }

// Keys returns the keys in first-insertion order. The returned slice must
// not be mutated.
func (d *Dict) Keys() []Name { return d.order }

// Clone returns a deep copy, preserving key order.
func (d *Dict) Clone() *Dict {
	out := &Dict{order: append([]Name(nil), d.order...), byKey: make(map[Name]Value, len(d.byKey))}
	for k, v := range d.byKey {
		out.byKey[k] = v.Clone()
	}
	return out
}

// Name is a PDF name token's decoded byte content (the leading '/' and any
// #HH escapes are already stripped/decoded by the lexer).
type Name string

// Stream pairs a dictionary with the raw (still filter-encoded) bytes of
// its payload, as extracted by the stream-payload scanner. Decoding
// (FlateDecode, etc.) is the job of the FilterChain collaborator, not of
// this core.
type Stream struct {
	Dict *Dict
	Raw  []byte
}

func (s *Stream) clone() *Stream {
	return &Stream{Dict: s.Dict.Clone(), Raw: append([]byte(nil), s.Raw...)}
}

// Value is a parsed PDF value: exactly one of the variants named by Kind.
// Only the fields relevant to Kind are meaningful; others are zero.
type Value struct {
	Kind Kind

	Bool bool
	Int  int64
	Real float64
	Name Name

	// Str holds the unescaped/decoded bytes of a literal or hex string.
	// IsHex records which lexical form produced them (needed to
	// round-trip a conservative re-serialization).
	Str   []byte
	IsHex bool

	Array  []Value
	Dict   *Dict
	Stream *Stream
	Ref    ObjectKey
}

// Null is the PDF null value.
var Null = Value{Kind: KindNull}

// Bool builds a KindBool value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int builds a KindInt value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Real builds a KindReal value.
func Real(f float64) Value { return Value{Kind: KindReal, Real: f} }

// NameVal builds a KindName value.
func NameVal(n Name) Value { return Value{Kind: KindName, Name: n} }

// StringVal builds a KindString value from literal-string bytes.
func StringVal(b []byte) Value { return Value{Kind: KindString, Str: b} }

// HexStringVal builds a KindString value originally written in hex syntax.
func HexStringVal(b []byte) Value { return Value{Kind: KindString, Str: b, IsHex: true} }

// ArrayVal builds a KindArray value.
func ArrayVal(v []Value) Value { return Value{Kind: KindArray, Array: v} }

// DictVal builds a KindDict value.
func DictVal(d *Dict) Value { return Value{Kind: KindDict, Dict: d} }

// StreamVal builds a KindStream value.
func StreamVal(s *Stream) Value { return Value{Kind: KindStream, Stream: s} }

// RefVal builds a KindRef value.
func RefVal(k ObjectKey) Value { return Value{Kind: KindRef, Ref: k} }

// IsNull reports whether v is the Null value (not merely zero-valued).
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsInt returns the integer value and true for KindInt, and (truncated
// toward zero) for KindReal, matching the lenient numeric coercion PDF readers commonly
// apply (a Length or Size entry written as "12.0" is still usable).
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindReal:
		return int64(v.Real), true
	default:
		return 0, false
	}
}

// AsName returns the Name and true for KindName.
func (v Value) AsName() (Name, bool) {
	if v.Kind == KindName {
		return v.Name, true
	}
	return "", false
}

// AsDict returns the Dict and true for KindDict, and also for KindStream
// (a stream "is" its dictionary plus a byte range, per spec.md's data
// model).
func (v Value) AsDict() (*Dict, bool) {
	switch v.Kind {
	case KindDict:
		return v.Dict, true
	case KindStream:
		return v.Stream.Dict, true
	default:
		return nil, false
	}
}

// AsArray returns the element slice and true for KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind == KindArray {
		return v.Array, true
	}
	return nil, false
}

// AsString returns the raw bytes and true for KindString.
func (v Value) AsString() ([]byte, bool) {
	if v.Kind == KindString {
		return v.Str, true
	}
	return nil, false
}

// AsRef returns the referenced key and true for KindRef.
func (v Value) AsRef() (ObjectKey, bool) {
	if v.Kind == KindRef {
		return v.Ref, true
	}
	return ObjectKey{}, false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindString:
		out := v
		out.Str = append([]byte(nil), v.Str...)
		return out
	case KindArray:
		out := v
		out.Array = make([]Value, len(v.Array))
		for i, e := range v.Array {
			out.Array[i] = e.Clone()
		}
		return out
	case KindDict:
		out := v
		out.Dict = v.Dict.Clone()
		return out
	case KindStream:
		out := v
		out.Stream = v.Stream.clone()
		return out
	default:
		return v
	}
}

// Equal reports deep value equality (not referential identity), as
// required by the ObjectPool invariant that repeated dereferences return
// equal, not necessarily the same, Value.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindReal:
		return v.Real == o.Real
	case KindName:
		return v.Name == o.Name
	case KindString:
		return string(v.Str) == string(o.Str)
	case KindRef:
		return v.Ref == o.Ref
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindDict:
		return dictEqual(v.Dict, o.Dict)
	case KindStream:
		return dictEqual(v.Stream.Dict, o.Stream.Dict) && string(v.Stream.Raw) == string(o.Stream.Raw)
	default:
		return false
	}
}

func dictEqual(a, b *Dict) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}
