package corexref

import (
	"testing"

	"github.com/kuglerb/pdflex/corelex"
)

type bytesReader []byte

func (b bytesReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, nil
	}
	n := copy(p, b[off:])
	return n, nil
}
func (b bytesReader) Length() int64 { return int64(len(b)) }

func TestLocateStartXRef(t *testing.T) {
	data := []byte("%PDF-1.4\n...\nstartxref\n1234\n%%EOF")
	off, err := LocateStartXRef(bytesReader(data), 2048, false)
	if err != nil {
		t.Fatal(err)
	}
	if off != 1234 {
		t.Errorf("got %d", off)
	}
}

func TestLocateStartXRefMissingStartxrefIsFatal(t *testing.T) {
	data := []byte("%PDF-1.4\nno startxref here\n%%EOF")
	_, err := LocateStartXRef(bytesReader(data), 2048, true)
	if err == nil {
		t.Error("a missing startxref keyword must always be fatal, even leniently")
	}
}

func TestLocateStartXRefMissingEOFLenient(t *testing.T) {
	data := []byte("startxref\n99\n")
	off, err := LocateStartXRef(bytesReader(data), 2048, true)
	if err != nil {
		t.Fatal(err)
	}
	if off != 99 {
		t.Errorf("got %d", off)
	}
}

func TestLocateStartXRefMissingEOFStrictFails(t *testing.T) {
	data := []byte("startxref\n99\n")
	_, err := LocateStartXRef(bytesReader(data), 2048, false)
	if err == nil {
		t.Errorf("a missing %%EOF should be fatal in strict mode")
	}
}

func buildClassicalXref(entries string, trailer string) []byte {
	return []byte("xref\n" + entries + "trailer\n" + trailer)
}

func TestWalkClassicalTableSingleSection(t *testing.T) {
	entries := "0 3\n" +
		"0000000000 65535 f \n" +
		"0000000010 00000 n \n" +
		"0000000020 00000 n \n"
	trailer := "<< /Size 3 /Root 1 0 R >>"
	data := buildClassicalXref(entries, trailer)

	table, err := Walk(bytesReader(data), 0, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	e, ok := table.Entries[corelex.ObjectKey{Number: 1, Generation: 0}]
	if !ok || e.Kind != EntryInUse || e.Offset != 10 {
		t.Fatalf("got %+v, %v", e, ok)
	}
	if _, ok := table.Entries[corelex.ObjectKey{Number: 0, Generation: 0}]; ok {
		t.Error("free entries should not be recorded")
	}
	root, ok := table.Trailer.Get("Root")
	if !ok {
		t.Fatal("trailer missing /Root")
	}
	key, ok := root.AsRef()
	if !ok || key.Number != 1 {
		t.Fatalf("got %+v", root)
	}
}

func TestWalkHPScannerSubsectionZeroHack(t *testing.T) {
	// A single subsection starting at 1, never declaring object 0: every
	// number must be shifted down by one.
	entries := "1 2\n" +
		"0000000010 00000 n \n" +
		"0000000020 00000 n \n"
	trailer := "<< /Size 2 /Root 1 0 R >>"
	data := buildClassicalXref(entries, trailer)

	table, err := Walk(bytesReader(data), 0, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.Entries[corelex.ObjectKey{Number: 0, Generation: 0}]; !ok {
		t.Error("the HP-scanner hack should shift object numbers down by one")
	}
	if e, ok := table.Entries[corelex.ObjectKey{Number: 1, Generation: 0}]; !ok || e.Offset != 20 {
		t.Error("object 2 (offset 20) should have been renumbered to 1")
	}
}

func TestWalkFollowsPrevChain(t *testing.T) {
	older := buildClassicalXref(
		"0 2\n0000000000 65535 f \n0000000050 00000 n \n",
		"<< /Size 2 /Root 1 0 R >>",
	)
	olderOffset := int64(1000)

	newerEntries := "0 2\n0000000000 65535 f \n0000000099 00000 n \n"
	newerTrailer := "<< /Size 2 /Root 1 0 R /Prev " + itoa(olderOffset) + " >>"
	newer := []byte("xref\n" + newerEntries + "trailer\n" + newerTrailer)

	buf := make([]byte, olderOffset+int64(len(older)))
	copy(buf, newer)
	copy(buf[olderOffset:], older)

	table, err := Walk(bytesReader(buf), 0, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// The newer section's entry for object 1 (offset 99) must win over the
	// older section's (offset 50), since the chain is walked newest-first
	// and the first-seen entry wins.
	e := table.Entries[corelex.ObjectKey{Number: 1, Generation: 0}]
	if e.Offset != 99 {
		t.Errorf("got offset %d, want 99 (the newer entry should win)", e.Offset)
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func TestWalkDetectsPrevLoop(t *testing.T) {
	// A /Prev pointing back at its own section offset (1) must be caught
	// rather than looping forever. (A /Prev of 0 ends the chain.)
	entries := "0 1\n0000000000 65535 f \n"
	trailer := "<< /Size 1 /Root 1 0 R /Prev 1 >>"
	data := append([]byte("\n"), buildClassicalXref(entries, trailer)...)

	_, err := Walk(bytesReader(data), 1, WalkOptions{})
	if err == nil {
		t.Fatal("expected ErrLoop")
	}
	if _, ok := err.(*ErrLoop); !ok {
		t.Errorf("got %T: %v", err, err)
	}
}
