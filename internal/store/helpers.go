package store

import (
	"database/sql"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// versionArgs flattens an optional version into range and note columns.
func versionArgs(v *Version) (any, any) {
	if v == nil {
		return nil, nil
	}
	return v.Range, v.Note
}

// scanVersion rebuilds an optional version from nullable columns.
func scanVersion(r, note sql.NullString) *Version {
	if !r.Valid {
		return nil
	}
	return &Version{Range: r.String, Note: note.String}
}

// spanArgs flattens an optional span into four nullable columns.
func spanArgs(s *Span) []any {
	if s == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{s.StartLine, s.StartCol, s.EndLine, s.EndCol}
}

func scanSpan(startLine, startCol, endLine, endCol sql.NullInt64) *Span {
	if !startLine.Valid {
		return nil
	}
	return &Span{
		StartLine: int(startLine.Int64),
		StartCol:  int(startCol.Int64),
		EndLine:   int(endLine.Int64),
		EndCol:    int(endCol.Int64),
	}
}
