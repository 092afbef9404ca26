// Package span holds 0-based editor positions and the conversion from parser
// locations.
package span

import "github.com/jward/ipfls/internal/ast"

// Position is a 0-based line and character offset. Characters count runes.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Contains reports whether p lies inside r. An empty range contains its start.
func (r Range) Contains(p Position) bool {
	if r.Start == r.End {
		return p == r.Start
	}
	return !p.Before(r.Start) && p.Before(r.End)
}

// FromPoint converts a 1-based parser point.
func FromPoint(p ast.Point) Position {
	return Position{Line: max(p.Line-1, 0), Character: max(p.Column-1, 0)}
}

// ToPoint converts back to a 1-based parser point without offset.
func ToPoint(p Position) ast.Point {
	return ast.Point{Line: p.Line + 1, Column: p.Character + 1}
}

// FromLocation converts a parser location. It returns nil for nil.
func FromLocation(loc *ast.Location) *Range {
	if loc == nil {
		return nil
	}
	return &Range{Start: FromPoint(loc.Start), End: FromPoint(loc.End)}
}
