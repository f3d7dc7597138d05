package corefilters

import (
	"bytes"
	"compress/zlib"
	"testing"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestChainDecodeFlate(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	compressed := zlibCompress(t, payload)

	out, err := Chain{}.Decode(compressed, []string{Flate}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(payload) {
		t.Errorf("got %q", out)
	}
}

func TestChainDecodeAppliesFiltersInOrder(t *testing.T) {
	payload := []byte("nested payload")
	compressed := zlibCompress(t, payload)
	hexEncoded := []byte{}
	for _, b := range compressed {
		hexEncoded = append(hexEncoded, hexDigits(b)...)
	}
	hexEncoded = append(hexEncoded, '>')

	out, err := Chain{}.Decode(hexEncoded, []string{ASCIIHex, Flate}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(payload) {
		t.Errorf("got %q", out)
	}
}

func hexDigits(b byte) []byte {
	const hex = "0123456789ABCDEF"
	return []byte{hex[b>>4], hex[b&0xf]}
}

func TestChainDecodeUnsupportedFilter(t *testing.T) {
	_, err := Chain{}.Decode([]byte("x"), []string{"NotAFilter"}, nil)
	if err == nil {
		t.Error("expected an error for an unknown filter name")
	}
}

func TestChainDecodeImageCodecsPassThrough(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	out, err := Chain{}.Decode(data, []string{DCT}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Error("DCTDecode payloads should pass through unchanged")
	}
}
