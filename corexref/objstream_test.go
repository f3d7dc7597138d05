package corexref

import (
	"testing"

	"github.com/kuglerb/pdflex/corelex"
)

func buildObjStream(n, first int, prolog string, bodies string) *corelex.Stream {
	dict := corelex.NewDict()
	dict.Set("Type", corelex.NameVal("ObjStm"))
	dict.Set("N", corelex.Int(int64(n)))
	dict.Set("First", corelex.Int(int64(first)))
	raw := make([]byte, first)
	copy(raw, prolog)
	for i := len(prolog); i < first; i++ {
		raw[i] = ' '
	}
	raw = append(raw, []byte(bodies)...)
	return &corelex.Stream{Dict: dict, Raw: raw}
}

func TestObjectStreamParseAllTwoObjects(t *testing.T) {
	// Prolog: "5 0 7 4" -> object 5 at rel-offset 0, object 7 at rel-offset 4.
	prolog := "5 0 7 4"
	bodies := "123 45.6"
	first := len(prolog) + 1
	stream := buildObjStream(2, first, prolog, bodies)

	out, err := DefaultObjectStreamParser{}.ParseAll(stream, nil)
	if err != nil {
		t.Fatal(err)
	}
	v5, ok := out[corelex.ObjectKey{Number: 5, Generation: 0}]
	if !ok {
		t.Fatal("missing object 5")
	}
	if n, ok := v5.AsInt(); !ok || n != 123 {
		t.Errorf("object 5 = %+v", v5)
	}
	v7, ok := out[corelex.ObjectKey{Number: 7, Generation: 0}]
	if !ok {
		t.Fatal("missing object 7")
	}
	if v7.Kind != corelex.KindReal || v7.Real != 45.6 {
		t.Errorf("object 7 = %+v", v7)
	}
}

func TestObjectStreamParseAllRejectsWrongType(t *testing.T) {
	dict := corelex.NewDict()
	dict.Set("Type", corelex.NameVal("XRef"))
	dict.Set("N", corelex.Int(0))
	dict.Set("First", corelex.Int(0))
	stream := &corelex.Stream{Dict: dict, Raw: nil}

	_, err := DefaultObjectStreamParser{}.ParseAll(stream, nil)
	if err == nil {
		t.Error("expected an error for /Type other than /ObjStm")
	}
}

func TestObjectStreamParseAllSkipsCorruptedEntry(t *testing.T) {
	// Object 9's relative offset points past the end of the raw buffer: the
	// entry should be skipped leniently rather than failing the whole stream.
	prolog := "1 0 9 9999"
	bodies := "42"
	first := len(prolog) + 1
	stream := buildObjStream(2, first, prolog, bodies)

	out, err := DefaultObjectStreamParser{}.ParseAll(stream, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out[corelex.ObjectKey{Number: 9, Generation: 0}]; ok {
		t.Error("a corrupted prolog entry should be skipped, not produce an object")
	}
	if v, ok := out[corelex.ObjectKey{Number: 1, Generation: 0}]; !ok {
		t.Error("object 1 should still have parsed")
	} else if n, ok := v.AsInt(); !ok || n != 42 {
		t.Errorf("object 1 = %+v", v)
	}
}

func TestObjectStreamParseAllMissingNFails(t *testing.T) {
	dict := corelex.NewDict()
	dict.Set("Type", corelex.NameVal("ObjStm"))
	dict.Set("First", corelex.Int(0))
	stream := &corelex.Stream{Dict: dict, Raw: nil}

	_, err := DefaultObjectStreamParser{}.ParseAll(stream, nil)
	if err == nil {
		t.Error("expected an error for a missing /N")
	}
}
