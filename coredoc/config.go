// Package coredoc is the top-level entry point: Parse/ParseFile/ParseFDF
// read a whole document, driving the Random-Access Source (corelex), the
// Lexer and Stream-Payload Scanner (corelex), the Cross-Reference and
// Trailer Engine plus Brute-Force Recovery (corexref) and the Object
// Resolver (this package) behind one Document value.
package coredoc

import (
	"github.com/kuglerb/pdflex/corelex"
)

// StreamCache buffers materialized (decoded) stream payloads so that
// resolving the same object twice doesn't re-run filter decoding. The
// teacher has no equivalent (it resolves once into entry.object and keeps
// it forever); this is new machinery SPEC_FULL's Configuration requires
// (stream_cache_factory), kept pluggable like the other collaborators.
type StreamCache interface {
	Get(key corelex.ObjectKey) ([]byte, bool)
	Put(key corelex.ObjectKey, data []byte)
}

// StreamCacheFactory builds a fresh StreamCache for one parse.
type StreamCacheFactory func() StreamCache

// mapStreamCache is the default StreamCacheFactory's product: an unbounded
// map, adequate for the single-document, single-parse lifetime this core
// targets (no eviction policy is specified by spec.md).
type mapStreamCache struct {
	m map[corelex.ObjectKey][]byte
}

func (c *mapStreamCache) Get(key corelex.ObjectKey) ([]byte, bool) {
	b, ok := c.m[key]
	return b, ok
}

func (c *mapStreamCache) Put(key corelex.ObjectKey, data []byte) {
	c.m[key] = data
}

func newMapStreamCache() StreamCache {
	return &mapStreamCache{m: map[corelex.ObjectKey][]byte{}}
}

// Configuration gathers every knob spec.md §6 enumerates, generalizing the
// teacher's file.Configuration (password only) the way file_pdf.go shapes
// it: a plain struct plus a NewDefaultConfiguration constructor.
type Configuration struct {
	// EOFLookupRange bounds how far from the end of the file startxref is
	// searched for. Must be >= 16.
	EOFLookupRange int64

	// Lenient enables every leniency and recovery behavior described
	// throughout spec.md (downgrade-to-Null, brute-force recovery, relaxed
	// dictionary parsing, ...). The classical-table HP-scanner hack is
	// applied whatever its value.
	Lenient bool

	// PushBackBufferSize is carried in the configuration but not read by
	// the parser: the recovery heuristics (C6) scan an in-memory copy of
	// the whole file, so their memory use is not bounded by this value.
	PushBackBufferSize int

	// StreamCacheFactory builds the cache used to buffer decoded stream
	// payloads across repeated resolutions within one parse.
	StreamCacheFactory StreamCacheFactory

	// Password is either the owner or user password. Permission handling
	// beyond decrypt/no-decrypt is out of scope (both passwords behave
	// identically, as in the teacher).
	Password string

	// Chain is the FilterChain collaborator (§6) used to decode stream
	// payloads. A nil Chain leaves stream payloads encoded as read.
	Chain corelex.FilterChain

	// Security is the SecurityHandler collaborator (§6), consulted only
	// when the trailer carries an /Encrypt entry. A nil Security on an
	// encrypted document surfaces KindEncryption.
	Security corelex.SecurityHandler

	// ObjectStreamParser is the collaborator (§6) used to unpack
	// compressed object containers (/Type /ObjStm). A nil value here
	// falls back to corexref.DefaultObjectStreamParser.
	ObjectStreamParser corelex.ObjectStreamParser
}

// NewDefaultConfiguration returns the defaults spec.md §6 names:
// EOFLookupRange 2048, Lenient true, PushBackBufferSize 65536, a fresh
// in-memory stream cache per parse, and a nil ObjectStreamParser (resolved
// to the core's default object-stream parser). No FilterChain is set, so
// stream payloads stay encoded until Chain is supplied, and no
// SecurityHandler: encrypted documents need one supplied explicitly.
func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		EOFLookupRange:     2048,
		Lenient:            true,
		PushBackBufferSize: 65536,
		StreamCacheFactory: newMapStreamCache,
		ObjectStreamParser: nil, // resolved to corexref.DefaultObjectStreamParser{} lazily
	}
}
