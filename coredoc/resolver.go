package coredoc

import (
	"log"

	"github.com/kuglerb/pdflex/corelex"
	"github.com/kuglerb/pdflex/corexref"
)

// slotState is the ObjectPool slot state machine from spec.md §4.5 step 1:
// Unresolved (never looked at), Resolving (currently on the call stack,
// used to detect cycles), Resolved (has a value), Null (resolved to the
// null object, either legitimately free/missing or via lenient downgrade).
type slotState uint8

const (
	slotUnresolved slotState = iota
	slotResolving
	slotResolved
	slotNull
)

type slot struct {
	state slotState
	value corelex.Value
}

// resolver owns the ObjectPool and the decompression cache (§5's "shared
// mutable state within a parse"). It is not safe for concurrent use; the
// spec requires serialized access, and this type simply isn't reentrant
// for the same key (a concurrent second call would see slotResolving and
// return CycleDetected, matching the spec's stated alternative policy of
// "panics on concurrent entry" loosened to an error return).
type resolver struct {
	source corexref.Reader
	table  *corexref.Table
	conf   *Configuration
	chain  corelex.FilterChain
	sec    corelex.SecurityHandler
	osp    corelex.ObjectStreamParser
	cache  StreamCache
	logger *log.Logger

	pool map[corelex.ObjectKey]*slot

	// decompCache holds every object unpacked out of an already-processed
	// object stream, keyed by its real ObjectKey (generation always 0),
	// per step 5: "cache them in the decompression table".
	decompCache map[corelex.ObjectKey]corelex.Value

	// recovery holds C6's scan results, consulted in lenient mode when the
	// declared xref has no entry for a key (step 3).
	recovery *corexref.ScanResult

	warnings *[]Warning
}

func newResolver(source corexref.Reader, table *corexref.Table, conf *Configuration, logger *log.Logger, warnings *[]Warning) *resolver {
	// sec is deliberately left unset here: a SecurityHandler is only
	// attached once Document.setupEncryption has validated a password and
	// derived the document key (spec.md §4.5 step 4's "if the document is
	// encrypted" guard must not fire while the /Encrypt dictionary itself
	// is still being read).
	return &resolver{
		source:      source,
		table:       table,
		conf:        conf,
		chain:       conf.Chain,
		osp:         effectiveObjectStreamParser(conf.ObjectStreamParser),
		cache:       conf.StreamCacheFactory(),
		logger:      logger,
		pool:        map[corelex.ObjectKey]*slot{},
		decompCache: map[corelex.ObjectKey]corelex.Value{},
		warnings:    warnings,
	}
}

func effectiveObjectStreamParser(p corelex.ObjectStreamParser) corelex.ObjectStreamParser {
	if p != nil {
		return p
	}
	return corexref.DefaultObjectStreamParser{}
}

// resolve implements spec.md §4.5 in full.
func (r *resolver) resolve(key corelex.ObjectKey) (corelex.Value, error) {
	s := r.slotFor(key)

	switch s.state {
	case slotResolved:
		return s.value, nil
	case slotNull:
		return corelex.Null, nil
	case slotResolving:
		return corelex.Value{}, corelex.NewParseError(corelex.KindCycleDetected, key.String(), nil)
	}

	s.state = slotResolving

	entry, found := r.table.Entries[key]
	if !found {
		if v, ok := r.decompCache[key]; ok {
			s.state, s.value = slotResolved, v
			return v, nil
		}
		if r.conf.Lenient {
			if cand, ok := r.recoveryCandidate(key.Number); ok {
				entry = corexref.Entry{Kind: corexref.EntryInUse, Offset: uint64(cand.Offset), Generation: cand.Generation}
				found = true
			}
		}
		if !found {
			s.state = slotNull
			return corelex.Null, nil
		}
	}

	value, err := r.resolveEntry(key, entry)
	if err != nil {
		if pe, ok := err.(*corelex.ParseError); ok && r.conf.Lenient && pe.Kind.Downgradable() {
			r.warn(key, pe)
			s.state = slotNull
			return corelex.Null, nil
		}
		s.state = slotUnresolved
		return corelex.Value{}, err
	}

	s.state, s.value = slotResolved, value
	return value, nil
}

func (r *resolver) slotFor(key corelex.ObjectKey) *slot {
	s, ok := r.pool[key]
	if !ok {
		s = &slot{state: slotUnresolved}
		r.pool[key] = s
	}
	return s
}

func (r *resolver) recoveryCandidate(number uint64) (corexref.ObjectCandidate, bool) {
	if r.recovery == nil {
		return corexref.ObjectCandidate{}, false
	}
	cand, ok := r.recovery.ObjectOffsets[number]
	return cand, ok
}

func (r *resolver) resolveEntry(key corelex.ObjectKey, entry corexref.Entry) (corelex.Value, error) {
	switch entry.Kind {
	case corexref.EntryFree:
		return corelex.Null, nil
	case corexref.EntryInUse:
		return r.resolveInUse(key, entry)
	case corexref.EntryCompressed:
		return r.resolveCompressed(key, entry)
	default:
		return corelex.Null, nil
	}
}

// resolveInUse is spec.md §4.5 step 4.
func (r *resolver) resolveInUse(key corelex.ObjectKey, entry corexref.Entry) (corelex.Value, error) {
	// A cached payload is already decoded and decrypted: skip both steps.
	cached, hit := r.cache.Get(key)
	chain := r.chain
	if hit {
		chain = nil
	}
	obj, err := corexref.ReadIndirectObjectResolved(r.source, int64(entry.Offset), chain, r.conf.Lenient, r.resolveLengthRef)
	if err != nil {
		return corelex.Value{}, err
	}

	if obj.Number != key.Number || obj.Generation != key.Generation {
		if !r.conf.Lenient {
			return corelex.Value{}, corelex.NewParseError(corelex.KindWrongObjectHeader, key.String(), nil)
		}
		r.warn(key, corelex.NewParseError(corelex.KindWrongObjectHeader, "header mismatch, continuing leniently", nil))
	}

	value := obj.Value
	if value.Kind == corelex.KindStream && hit {
		value.Stream.Raw = cached
	}

	if r.sec != nil {
		if value.Kind == corelex.KindStream && !hit {
			decrypted, err := r.sec.DecryptStream(value.Stream.Raw, key.Number, key.Generation)
			if err != nil {
				return corelex.Value{}, corelex.NewParseError(corelex.KindEncryption, "decrypting stream", err)
			}
			value.Stream.Raw = decrypted
		}
		decrypted, err := r.sec.DecryptObject(value, key.Number, key.Generation)
		if err != nil {
			return corelex.Value{}, corelex.NewParseError(corelex.KindEncryption, "decrypting object", err)
		}
		value = decrypted
	}

	if value.Kind == corelex.KindStream {
		// Buffer the fully decoded (and, if applicable, decrypted) payload
		// through the configured StreamCache: a caller supplying a
		// StreamCacheFactory backed by storage shared across Document
		// instances (same file reopened, or a pool of worker documents)
		// gets decode/decrypt reuse that the per-parse ObjectPool can't
		// provide on its own.
		r.cache.Put(key, value.Stream.Raw)
	}

	return value, nil
}

// resolveLengthRef lets corexref.ReadIndirectObjectResolved dereference an
// indirect /Length without importing coredoc: it recurses into resolve,
// which is safe because /Length always points to a plain Integer, never
// back to the stream object itself (a /Length that referenced its own
// object would be CycleDetected here, which is the correct outcome).
func (r *resolver) resolveLengthRef(key corelex.ObjectKey) (corelex.Value, bool) {
	v, err := r.resolve(key)
	if err != nil {
		return corelex.Value{}, false
	}
	return v, true
}

// resolveCompressed is spec.md §4.5 step 5.
func (r *resolver) resolveCompressed(key corelex.ObjectKey, entry corexref.Entry) (corelex.Value, error) {
	containerKey := corelex.ObjectKey{Number: entry.Container, Generation: 0}
	container, err := r.resolve(containerKey)
	if err != nil {
		return corelex.Value{}, err
	}
	if container.Kind != corelex.KindStream {
		return corelex.Value{}, corelex.NewParseError(corelex.KindMalformedValue, "compressed object's container is not a stream", nil)
	}
	if typ, ok := container.Stream.Dict.Get("Type"); !ok || !nameIs(typ, "ObjStm") {
		return corelex.Value{}, corelex.NewParseError(corelex.KindMalformedValue, "container stream is not /Type /ObjStm", nil)
	}

	objs, err := r.osp.ParseAll(container.Stream, r.chain)
	if err != nil {
		return corelex.Value{}, corelex.NewParseError(corelex.KindMalformedStream, "parsing object stream", err)
	}
	for k, v := range objs {
		r.decompCache[k] = v
	}

	v, ok := objs[key]
	if !ok {
		return corelex.Null, nil
	}
	delete(r.decompCache, key)
	return v, nil
}

func nameIs(v corelex.Value, name corelex.Name) bool {
	n, ok := v.AsName()
	return ok && n == name
}

func (r *resolver) warn(key corelex.ObjectKey, err *corelex.ParseError) {
	w := Warning{Key: key, Kind: err.Kind, Message: err.Msg}
	*r.warnings = append(*r.warnings, w)
	if r.logger != nil {
		r.logger.Printf("%s: downgraded to null: %s", key, err)
	}
}
