package corexref

import (
	"testing"

	"github.com/kuglerb/pdflex/corelex"
)

func TestScanFindsObjectBodies(t *testing.T) {
	data := []byte("1 0 obj\n(a)\nendobj\n2 0 obj\n(b)\nendobj\n")
	res := Scan(data)
	if len(res.ObjectOffsets) != 2 {
		t.Fatalf("got %d candidates", len(res.ObjectOffsets))
	}
	c1, ok := res.ObjectOffsets[1]
	if !ok || c1.Offset != 0 {
		t.Errorf("object 1 = %+v", c1)
	}
	c2, ok := res.ObjectOffsets[2]
	if !ok {
		t.Fatal("missing object 2")
	}
	if data[c2.Offset] != '2' {
		t.Errorf("offset %d does not point at the header digit: %q", c2.Offset, data[c2.Offset])
	}
}

func TestScanFindsTrailerAndEOF(t *testing.T) {
	data := []byte("xref\n0 1\n0000000000 65535 f \ntrailer\n<< /Size 1 >>\nstartxref\n0\n%%EOF")
	res := Scan(data)
	if len(res.TrailerOffsets) != 1 {
		t.Fatalf("got %+v", res.TrailerOffsets)
	}
	if len(res.XrefTableOffsets) != 1 {
		t.Fatalf("got %+v", res.XrefTableOffsets)
	}
	if res.LastEOF < 0 {
		t.Errorf("expected a %%EOF offset")
	}
}

func TestScanIgnoresStartxrefWhenLookingForXref(t *testing.T) {
	data := []byte("startxref\n0\n%%EOF")
	res := Scan(data)
	if len(res.XrefTableOffsets) != 0 {
		t.Errorf("startxref should not be mistaken for a bare xref keyword: %+v", res.XrefTableOffsets)
	}
}

func TestScanFindsXRefStreamAndObjStmObjects(t *testing.T) {
	data := []byte("5 0 obj\n<< /Type /XRef /W [1 1 1] >>\nstream\nX\nendstream\nendobj\n" +
		"6 0 obj\n<< /Type /ObjStm /N 0 /First 0 >>\nstream\n\nendstream\nendobj\n")
	res := Scan(data)
	if len(res.XrefStreamOffsets) != 1 {
		t.Fatalf("got %+v", res.XrefStreamOffsets)
	}
	if len(res.ObjStmOffsets) != 1 {
		t.Fatalf("got %+v", res.ObjStmOffsets)
	}
}

func TestNearestCandidatePicksClosestAndRemoves(t *testing.T) {
	pool := map[int64]bool{10: true, 50: true, 100: true}
	off, ok := NearestCandidate(pool, 48)
	if !ok || off != 50 {
		t.Fatalf("got %d, %v", off, ok)
	}
	if _, stillThere := pool[50]; stillThere {
		t.Error("the chosen candidate should be removed from the pool")
	}
	if len(pool) != 2 {
		t.Errorf("got pool %v", pool)
	}
}

func TestNearestCandidateEmptyPool(t *testing.T) {
	_, ok := NearestCandidate(map[int64]bool{}, 0)
	if ok {
		t.Error("expected ok=false for an empty pool")
	}
}

func TestRebuildTableFromObjectScan(t *testing.T) {
	data := []byte("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	scan := Scan(data)
	table := RebuildTable(bytesReader(data), scan, nil, nil)

	e1, ok := table.Entries[corelex.ObjectKey{Number: 1, Generation: 0}]
	if !ok || e1.Kind != EntryInUse {
		t.Fatalf("got %+v", e1)
	}
	root, ok := table.Trailer.Get("Root")
	if !ok {
		t.Fatal("expected a synthesized /Root")
	}
	key, ok := root.AsRef()
	if !ok || key.Number != 1 {
		t.Errorf("got %+v", root)
	}
}

func TestRecoverTrailerPrefersScannedTrailerWithValidCatalog(t *testing.T) {
	data := []byte("1 0 obj\n<< /Type /Catalog >>\nendobj\n" +
		"trailer\n<< /Size 2 /Root 1 0 R >>\n")
	scan := Scan(data)
	table := &Table{Entries: map[corelex.ObjectKey]Entry{
		{Number: 1, Generation: 0}: {Kind: EntryInUse, Offset: 0},
	}}
	dict := RecoverTrailer(bytesReader(data), scan, table)
	root, ok := dict.Get("Root")
	if !ok {
		t.Fatal("expected /Root in recovered trailer")
	}
	key, ok := root.AsRef()
	if !ok || key.Number != 1 {
		t.Errorf("got %+v", root)
	}
}

func TestRecoverTrailerSynthesizesFromCatalogWhenNoTrailerFound(t *testing.T) {
	data := []byte("9 0 obj\n<< /Type /Catalog >>\nendobj\n")
	scan := Scan(data)
	table := &Table{Entries: map[corelex.ObjectKey]Entry{}}
	dict := RecoverTrailer(bytesReader(data), scan, table)
	root, ok := dict.Get("Root")
	if !ok {
		t.Fatal("expected a synthesized /Root")
	}
	key, ok := root.AsRef()
	if !ok || key.Number != 9 {
		t.Errorf("got %+v", root)
	}
}

func TestRecoverTrailerScansFarPastOneMegabyte(t *testing.T) {
	// The authoritative trailer sits well past the 1MB window that ordinary
	// xref-section reads are capped at, regression-testing the whole-file
	// read in RecoverTrailer.
	padding := make([]byte, 2<<20)
	for i := range padding {
		padding[i] = ' '
	}
	data := append([]byte("1 0 obj\n<< /Type /Catalog >>\nendobj\n"), padding...)
	data = append(data, []byte("trailer\n<< /Size 2 /Root 1 0 R >>\n")...)

	scan := Scan(data)
	table := &Table{Entries: map[corelex.ObjectKey]Entry{
		{Number: 1, Generation: 0}: {Kind: EntryInUse, Offset: 0},
	}}
	dict := RecoverTrailer(bytesReader(data), scan, table)
	if _, ok := dict.Get("Root"); !ok {
		t.Error("a trailer far beyond 1MB should still be found")
	}
}
