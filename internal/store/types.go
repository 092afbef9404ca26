package store

import "time"

// Snapshot domain types. Lines and columns are 0-based.

// Source kinds.
const (
	KindBuiltin  = "builtin"
	KindExternal = "external"
	KindDocument = "document"
	KindFile     = "file"
)

type Source struct {
	ID         int64
	Key        string // uri or pseudo id
	Kind       string
	Path       string
	ExportedAt time.Time
}

// Span is a stored range. Nil pointers mean the row has no location.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Version is a stored version range.
type Version struct {
	Range string
	Note  string
}

type Item struct {
	ID          int64
	SourceID    int64
	Identifier  string
	Signature   string
	Category    string
	Description string
	IsStatic    bool
	Available   *Version
	Deprecated  *Version
	Location    *Span
}

type Overload struct {
	ID          int64
	ItemID      int64
	Ordinal     int
	Signature   string
	Description string
	Available   *Version
	Deprecated  *Version
}

type Symbol struct {
	ID             int64
	SourceID       int64
	Name           string
	Kind           int
	Span           Span
	ParentSymbolID *int64
}

type Diagnostic struct {
	ID       int64
	SourceID int64
	Severity int
	Message  string
	Span     Span
}
