package corelex

import "testing"

func TestSourceReadByteAndSeek(t *testing.T) {
	s := NewSourceBytes([]byte("hello"))
	b, ok := s.ReadByte()
	if !ok || b != 'h' {
		t.Fatalf("got %q, %v", b, ok)
	}
	if s.Position() != 1 {
		t.Fatalf("Position() = %d", s.Position())
	}
	if err := s.Seek(3); err != nil {
		t.Fatal(err)
	}
	b, ok = s.PeekByte()
	if !ok || b != 'l' {
		t.Fatalf("got %q, %v", b, ok)
	}
	if s.Position() != 3 {
		t.Errorf("PeekByte should not move the cursor, Position() = %d", s.Position())
	}
}

func TestSourceSeekOutOfRange(t *testing.T) {
	s := NewSourceBytes([]byte("abc"))
	if err := s.Seek(-1); err != ErrOutOfRange {
		t.Errorf("got %v", err)
	}
	if err := s.Seek(4); err != ErrOutOfRange {
		t.Errorf("got %v", err)
	}
	if err := s.Seek(3); err != nil {
		t.Errorf("seeking exactly to Length() should be allowed, got %v", err)
	}
	if !s.IsEOF() {
		t.Error("IsEOF() should be true at Length()")
	}
}

func TestSourceRewind(t *testing.T) {
	s := NewSourceBytes([]byte("abcdef"))
	_ = s.Seek(4)
	if err := s.Rewind(2); err != nil {
		t.Fatal(err)
	}
	if s.Position() != 2 {
		t.Errorf("Position() = %d", s.Position())
	}
}

func TestSourceCreateView(t *testing.T) {
	s := NewSourceBytes([]byte("0123456789"))
	view := s.CreateView(3, 4)
	if view.Length() != 4 {
		t.Fatalf("Length() = %d", view.Length())
	}
	buf := make([]byte, 4)
	if _, err := view.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "3456" {
		t.Errorf("got %q", buf)
	}
	// The view has its own cursor, independent of the parent's.
	_, _ = view.ReadByte()
	if s.Position() != 0 {
		t.Errorf("view cursor movement should not affect the parent, Position() = %d", s.Position())
	}
}

func TestSourceCreateViewClampsToParentLength(t *testing.T) {
	s := NewSourceBytes([]byte("01234"))
	view := s.CreateView(3, 100)
	if view.Length() != 2 {
		t.Fatalf("Length() = %d, want 2 (clamped)", view.Length())
	}
}
