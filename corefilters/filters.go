// Package corefilters implements a default FilterChain: decoding of the
// stream filters PDF defines, for callers that want a ready-made
// implementation of the collaborator interface the core only consumes
// through its boundary. Nothing in corelex, corexref, or coredoc imports
// this package directly; a Document is handed a FilterChain value (this
// package's Chain satisfies it) when it needs to materialize decoded
// stream content.
package corefilters

import (
	"fmt"

	"github.com/kuglerb/pdflex/corelex"
)

// Name constants for the filters PDF defines (7.4, and 8.9.7 for inline
// images). DCT and CCITTFax are image codecs outside this package's scope
// (their payloads are opaque to a reading core that never renders);
// Decode on those names returns the input unchanged.
const (
	ASCII85   = "ASCII85Decode"
	ASCIIHex  = "ASCIIHexDecode"
	RunLength = "RunLengthDecode"
	LZW       = "LZWDecode"
	Flate     = "FlateDecode"
	DCT       = "DCTDecode"
	CCITTFax  = "CCITTFaxDecode"
)

// Params is an alias for corelex.FilterParams, kept under this package's
// own name for callers that don't otherwise need to import corelex.
type Params = corelex.FilterParams

// Chain is the default FilterChain: Decode applies each named filter in
// order, threading DecodeParms by position, matching PDF's /Filter
// array + parallel /DecodeParms array convention.
type Chain struct{}

var _ corelex.FilterChain = Chain{}

// Decode implements FilterChain.decode: decompress a stream payload. It is
// pure and idempotent — calling it twice on the same input/names/params
// returns the same bytes, and it never mutates data in place.
func (Chain) Decode(data []byte, names []string, params []Params) ([]byte, error) {
	cur := data
	for i, name := range names {
		var p Params
		if i < len(params) {
			p = params[i]
		}
		decoded, err := decodeOne(name, cur, p)
		if err != nil {
			return nil, fmt.Errorf("corefilters: %s: %w", name, err)
		}
		cur = decoded
	}
	return cur, nil
}

func decodeOne(name string, data []byte, params Params) ([]byte, error) {
	switch name {
	case Flate:
		return decodeFlate(data, params)
	case LZW:
		return decodeLZW(data, params)
	case ASCII85:
		return decodeASCII85(data)
	case ASCIIHex:
		return decodeASCIIHex(data)
	case RunLength:
		return decodeRunLength(data)
	case DCT, CCITTFax, "":
		// Opaque image codecs, or no filter at all: pass through.
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported filter %q", name)
	}
}
