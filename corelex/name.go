package corelex

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeName turns the raw bytes of a name token (after #HH escapes have
// already been resolved by the lexer) into a Name. Most PDF names are pure
// ASCII and pass through unchanged; the fallback chain below only matters
// for the minority of producers that emit raw Windows-1252 or Latin-1
// bytes in a name (seen in scanner-app output), mirroring the decoding
// chain the teacher applies to other byte-oriented text fields.
func decodeName(raw []byte) Name {
	if utf8.Valid(raw) {
		return Name(raw)
	}
	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
		return Name(decoded)
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return Name(decoded)
	}
	return Name(raw)
}
