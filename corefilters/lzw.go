package corefilters

import (
	"bytes"
	"io"

	"github.com/hhrutter/lzw"
)

// decodeLZW wires github.com/hhrutter/lzw — the PDF variant of LZW differs
// from the TIFF one stdlib's compress/lzw implements (it supports an
// "early change" toggle stdlib has no hook for), which is exactly why the
// teacher depends on this third-party package rather than compress/lzw.
func decodeLZW(data []byte, params Params) ([]byte, error) {
	earlyChange := true
	if v, ok := params["EarlyChange"]; ok {
		earlyChange = v != 0
	}
	rc := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer rc.Close()
	return io.ReadAll(rc)
}
