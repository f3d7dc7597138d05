package corelex

// This file declares the external collaborator interfaces spec.md §6 keeps
// at the boundary of the core: filter decoding, security handling, and
// object-stream decompression. corefilters and coresec provide default
// implementations; corexref and coredoc only ever depend on these
// interfaces, never on a concrete implementation package.

// FilterParams carries one filter's /DecodeParms entries as plain
// integers — the only kind FlateDecode and LZWDecode need.
type FilterParams map[string]int

// FilterChain decompresses a stream payload given its filter names (in
// application order) and per-filter parameters. Implementations must be
// pure and idempotent.
type FilterChain interface {
	Decode(data []byte, names []string, params []FilterParams) ([]byte, error)
}

// SecurityHandler decrypts objects and stream bodies once the owning
// document has validated a password/material against the encryption
// dictionary via Prepare. All operations are keyed by (object number,
// generation), per spec.md §6.
type SecurityHandler interface {
	Prepare(encryptDict *Dict, idBytes [][]byte, material []byte) error
	DecryptObject(v Value, num uint64, gen uint16) (Value, error)
	DecryptStream(data []byte, num uint64, gen uint16) ([]byte, error)
}

// ObjectStreamParser decodes a compressed object container (/Type
// /ObjStm) into the objects it packs, keyed by ObjectKey (the container
// does not record generations for its contained objects; they are always
// generation 0 per the PDF specification, and implementations build every
// key with Generation 0).
type ObjectStreamParser interface {
	ParseAll(stream *Stream, chain FilterChain) (map[ObjectKey]Value, error)
}

// KeyStore produces decryption material from an opaque blob, a password,
// and an optional alias (for public-key security handlers with more than
// one recipient certificate).
type KeyStore interface {
	Material(blob []byte, password string, alias string) ([]byte, error)
}
