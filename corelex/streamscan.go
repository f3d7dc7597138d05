package corelex

import "bytes"

// StreamScanResult is the outcome of locating a stream payload's byte
// range: the extracted (still filter-encoded) bytes, and whether the
// scanner had to fall back to brute-force search because the declared
// /Length could not be trusted.
type StreamScanResult struct {
	Payload  []byte
	Observed int64 // actual payload length as measured by the scanner
	UsedScan bool  // true if declared length was rejected and (b) ran
}

// ScanStreamPayload implements C3. src's cursor must be positioned
// immediately after the "stream" keyword; the entry EOL (LF, CRLF, or a
// lenient lone CR) is consumed here, exactly once, before the payload
// starts. declaredLength is the resolved numeric value of the stream
// dictionary's /Length entry, or -1 if it is absent/non-numeric/unresolved
// (forcing scan mode).
func ScanStreamPayload(src *Source, declaredLength int64) (StreamScanResult, error) {
	if err := consumeStreamEOL(src); err != nil {
		return StreamScanResult{}, err
	}
	start := src.Position()

	if declaredLength >= 0 {
		if ok := validateDeclaredLength(src, start, declaredLength); ok {
			buf := make([]byte, declaredLength)
			if _, err := src.ReadAt(buf, start); err != nil {
				return StreamScanResult{}, err
			}
			_ = src.Seek(start + declaredLength)
			return StreamScanResult{Payload: buf, Observed: declaredLength}, nil
		}
	}

	return scanForEndstream(src, start)
}

// consumeStreamEOL consumes exactly one of {LF, CRLF, CR} immediately
// following the "stream" keyword, per the C3 entry invariant.
func consumeStreamEOL(src *Source) error {
	b, ok := src.ReadByte()
	if !ok {
		return nil
	}
	if b == '\r' {
		if b2, ok2 := src.PeekByte(); ok2 && b2 == '\n' {
			_, _ = src.ReadByte()
		}
		return nil
	}
	if b == '\n' {
		return nil
	}
	// No EOL present at all (malformed producer): put the byte back, the
	// payload is taken to start here leniently.
	return src.Rewind(1)
}

// validateDeclaredLength checks that start+L does not run past the file and
// that "endstream" (after optional whitespace) immediately follows.
func validateDeclaredLength(src *Source, start, length int64) bool {
	if length < 0 || start+length > src.Length() {
		return false
	}
	const lookahead = 32
	n := lookahead
	if start+length+int64(n) > src.Length() {
		n = int(src.Length() - start - length)
	}
	if n <= 0 {
		// The declared length runs exactly to EOF: accept only if there is
		// nothing left to check against.
		return start+length == src.Length()
	}
	buf := make([]byte, n)
	if _, err := src.ReadAt(buf, start+length); err != nil {
		return false
	}
	trimmed := bytes.TrimLeft(buf, " \t\r\n\x00\f")
	return bytes.HasPrefix(trimmed, []byte("endstream"))
}

var (
	endstreamKW = []byte("endstream")
	endobjKW    = []byte("endobj")
)

// scanForEndstream implements C3 mode (b): a forward scan for "endstream",
// falling back to "endobj" for a malformed stream missing its terminator
// (see findStreamTerminator). Bytes are read in 2048-byte chunks and
// appended to one buffer, which is searched from its start with
// bytes.Index after every chunk; no positions are skipped ahead.
func scanForEndstream(src *Source, start int64) (StreamScanResult, error) {
	const chunkSize = 2048
	buf := make([]byte, 0, chunkSize)
	pos := start
	for {
		chunk := make([]byte, chunkSize)
		n, err := src.ReadAt(chunk, pos)
		pos += int64(n)
		buf = append(buf, chunk[:n]...)
		if idx, _, found := findStreamTerminator(buf); found {
			payload, _ := trimPayloadEOL(buf[:idx])
			// Rewind to the terminator keyword itself so the caller's
			// subsequent token read sees "endstream" or "endobj" next.
			_ = src.Seek(start + int64(idx))
			return StreamScanResult{Payload: payload, Observed: int64(len(payload)), UsedScan: true}, nil
		}
		if n == 0 || err != nil {
			// Reached EOF without a terminator: accept what we scanned as a
			// warning-worthy best effort per the spec's error condition.
			payload, _ := trimPayloadEOL(buf)
			_ = src.Seek(start + int64(len(buf)))
			return StreamScanResult{Payload: payload, Observed: int64(len(payload)), UsedScan: true}, nil
		}
	}
}

// findStreamTerminator looks for "endstream" in buf, or "endobj" at a
// position where an "endstream" match would have diverged at its 4th byte
// ('s' expected, 'o' found) — the divergence fallback for malformed
// streams missing their terminator. Whichever keyword starts first wins.
// Returns the byte offset of the match start and whether it matched
// "endobj" instead of "endstream".
func findStreamTerminator(buf []byte) (idx int, isEndobj bool, found bool) {
	i := bytes.Index(buf, endstreamKW)
	j := bytes.Index(buf, endobjKW)
	if i >= 0 && (j < 0 || i < j) {
		return i, false, true
	}
	if j >= 0 {
		return j, true, true
	}
	return 0, false, false
}

// trimPayloadEOL strips a single trailing CRLF or LF (part of the
// endstream delimiter, not payload) and reports how many bytes were
// removed.
func trimPayloadEOL(payload []byte) ([]byte, int) {
	n := len(payload)
	if n >= 2 && payload[n-2] == '\r' && payload[n-1] == '\n' {
		return payload[:n-2], 2
	}
	if n >= 1 && (payload[n-1] == '\n' || payload[n-1] == '\r') {
		return payload[:n-1], 1
	}
	return payload, 0
}
