package coredoc

import "github.com/kuglerb/pdflex/corelex"

// Warning records one lenient-mode downgrade, per spec.md §7: "A warning
// record is kept per downgrade for diagnostic surface." The teacher has no
// equivalent structure (it just calls log.Printf and moves on, see
// reader/file/streams.go); this core keeps both the log line (via
// Document.Logger) and this accumulated slice, so callers can inspect
// what was downgraded without parsing log output.
type Warning struct {
	Key     corelex.ObjectKey
	Kind    corelex.ErrorKind
	Message string
}

func (w Warning) String() string {
	return w.Kind.String() + " on " + w.Key.String() + ": " + w.Message
}
