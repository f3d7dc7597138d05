package corefilters

import (
	"bytes"
	"encoding/ascii85"
	"fmt"
)

// decodeASCII85 trims the PDF EOD marker "~>" (not part of the standard
// btoa alphabet stdlib's ascii85 decoder expects) before delegating to
// encoding/ascii85, matching the teacher's asciiHexDecode/ascii85Decode
// pairing of "find EOD, then decode".
func decodeASCII85(data []byte) ([]byte, error) {
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	data = bytes.TrimSpace(data)
	out := make([]byte, len(data))
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, fmt.Errorf("ASCII85Decode: %w", err)
	}
	return out[:n], nil
}

// decodeASCIIHex is hand-rolled, as the teacher's is: stdlib's
// encoding/hex.Decode rejects whitespace and has no EOD-marker concept,
// while PDF hex strings tolerate embedded whitespace and terminate on '>'.
func decodeASCIIHex(data []byte) ([]byte, error) {
	var out []byte
	var hi byte
	haveHi := false
	for _, b := range data {
		if b == '>' {
			break
		}
		if isHexSpace(b) {
			continue
		}
		v, ok := fromHexChar(b)
		if !ok {
			return nil, fmt.Errorf("ASCIIHexDecode: invalid hex digit %q", b)
		}
		if !haveHi {
			hi = v
			haveHi = true
			continue
		}
		out = append(out, hi<<4|v)
		haveHi = false
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out, nil
}

func isHexSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	default:
		return false
	}
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeRunLength implements PDF's RunLengthDecode (7.4.5): a length byte
// < 128 means "copy the next length+1 bytes literally"; a length byte in
// [129,255] means "repeat the next byte 257-length times"; 128 is EOD.
func decodeRunLength(data []byte) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		b := data[i]
		i++
		if b == 0x80 {
			return out.Bytes(), nil
		}
		if b < 0x80 {
			n := int(b) + 1
			if i+n > len(data) {
				return nil, fmt.Errorf("RunLengthDecode: truncated literal run")
			}
			out.Write(data[i : i+n])
			i += n
			continue
		}
		n := 257 - int(b)
		if i >= len(data) {
			return nil, fmt.Errorf("RunLengthDecode: truncated repeat run")
		}
		rep := data[i]
		i++
		for j := 0; j < n; j++ {
			out.WriteByte(rep)
		}
	}
	// Missing EOD marker: accept what decoded so far, leniently.
	return out.Bytes(), nil
}
