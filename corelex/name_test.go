package corelex

import "testing"

func TestDecodeNamePassesThroughASCII(t *testing.T) {
	if got := decodeName([]byte("Plain")); got != "Plain" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeNameWindows1252Fallback(t *testing.T) {
	// 0x93/0x94 are Windows-1252 curly quotes, invalid standalone UTF-8.
	raw := []byte{0x93, 'x', 0x94}
	got := decodeName(raw)
	if got == Name(raw) {
		t.Error("invalid UTF-8 bytes should be reinterpreted, not passed through verbatim")
	}
}
