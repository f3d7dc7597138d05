package corelex

import "fmt"

// ErrorKind discriminates the error taxonomy shared by the lexer, the xref
// engine, and the resolver, following the teacher's plain
// fmt.Errorf-wrapping style but adding the one exported enum the pack
// itself never needed (the teacher has no multi-document recovery policy
// keyed off error kind; this core does, since lenient mode selectively
// downgrades certain kinds to Null rather than failing the whole parse).
type ErrorKind uint8

const (
	KindIO ErrorKind = iota
	KindHeader
	KindMalformedValue
	KindMalformedNumber
	KindMalformedString
	KindMalformedName
	KindMalformedStream
	KindWrongObjectHeader
	KindCycleDetected
	KindMissingTrailerRoot
	KindEncryption
	KindStreamLengthInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "Io"
	case KindHeader:
		return "Header"
	case KindMalformedValue:
		return "MalformedValue"
	case KindMalformedNumber:
		return "MalformedNumber"
	case KindMalformedString:
		return "MalformedString"
	case KindMalformedName:
		return "MalformedName"
	case KindMalformedStream:
		return "MalformedStream"
	case KindWrongObjectHeader:
		return "WrongObjectHeader"
	case KindCycleDetected:
		return "CycleDetected"
	case KindMissingTrailerRoot:
		return "MissingTrailerRoot"
	case KindEncryption:
		return "Encryption"
	case KindStreamLengthInvalid:
		return "StreamLengthInvalid"
	default:
		return "<unknown>"
	}
}

// ParseError is the typed error returned throughout corelex/corexref/coredoc.
// Kind drives the lenient-mode downgrade-to-Null policy at the resolver;
// Err, when set, carries the underlying cause (an io error, a strconv
// error, etc.) and participates in errors.Is/errors.As via Unwrap.
type ParseError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError builds a ParseError, optionally wrapping cause.
func NewParseError(kind ErrorKind, msg string, cause error) *ParseError {
	return &ParseError{Kind: kind, Msg: msg, Err: cause}
}

// Downgradable reports whether, per §7's lenient-mode propagation rule, an
// error of this kind should be caught by the resolver and downgraded to a
// Null value (with a Warning recorded) rather than aborting the whole
// parse. Encryption(soft) is represented by KindEncryption with a nil Err
// (a hard encryption failure instead wraps a non-nil cause); callers that
// need to distinguish soft/hard should inspect that directly.
func (k ErrorKind) Downgradable() bool {
	switch k {
	case KindMalformedValue, KindMalformedStream, KindWrongObjectHeader, KindStreamLengthInvalid, KindEncryption:
		return true
	default:
		return false
	}
}
