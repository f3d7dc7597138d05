package corelex

import "testing"

func TestScanStreamPayloadTrustsValidLength(t *testing.T) {
	data := []byte("stream\nHELLOWORLD\nendstream")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	res, err := ScanStreamPayload(src, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.UsedScan {
		t.Error("a valid declared length should not trigger a scan")
	}
	if string(res.Payload) != "HELLOWORLD" {
		t.Errorf("got %q", res.Payload)
	}
}

func TestScanStreamPayloadFallsBackOnBadLength(t *testing.T) {
	data := []byte("stream\nHELLOWORLD\nendstream")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	// Declared length way too large: validateDeclaredLength must reject it
	// and fall back to scanning for "endstream".
	res, err := ScanStreamPayload(src, 9999)
	if err != nil {
		t.Fatal(err)
	}
	if !res.UsedScan {
		t.Error("an invalid declared length should trigger a scan")
	}
	if string(res.Payload) != "HELLOWORLD" {
		t.Errorf("got %q", res.Payload)
	}
}

func TestScanStreamPayloadNoDeclaredLength(t *testing.T) {
	data := []byte("stream\r\nPAYLOAD\r\nendstream")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	res, err := ScanStreamPayload(src, -1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.UsedScan {
		t.Error("missing declared length must always scan")
	}
	if string(res.Payload) != "PAYLOAD" {
		t.Errorf("got %q", res.Payload)
	}
}

func TestScanStreamPayloadMissingTerminatorFallsBackToEndobj(t *testing.T) {
	data := []byte("stream\nPAYLOAD\nendobj")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	res, err := ScanStreamPayload(src, -1)
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Payload) != "PAYLOAD" {
		t.Errorf("got %q", res.Payload)
	}
}

func TestConsumeStreamEOLHandlesBareLF(t *testing.T) {
	data := []byte("stream\nX")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	if err := consumeStreamEOL(src); err != nil {
		t.Fatal(err)
	}
	if src.Position() != int64(len("stream\n")) {
		t.Errorf("Position() = %d", src.Position())
	}
}

func TestConsumeStreamEOLHandlesCRLF(t *testing.T) {
	data := []byte("stream\r\nX")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	if err := consumeStreamEOL(src); err != nil {
		t.Fatal(err)
	}
	if src.Position() != int64(len("stream\r\n")) {
		t.Errorf("Position() = %d", src.Position())
	}
}

func TestConsumeStreamEOLLeniencyNoEOLAtAll(t *testing.T) {
	data := []byte("streamX")
	src := NewSourceBytes(data)
	_ = src.Seek(int64(len("stream")))
	if err := consumeStreamEOL(src); err != nil {
		t.Fatal(err)
	}
	if src.Position() != int64(len("stream")) {
		t.Errorf("missing EOL should leave the cursor right after 'stream', got %d", src.Position())
	}
}
