package parser

import (
	"fmt"

	"github.com/jward/ipfls/internal/ast"
)

// SyntaxError reports input the parser cannot recover from.
type SyntaxError struct {
	Message  string
	Location *ast.Location
}

func (e *SyntaxError) Error() string {
	if e.Location == nil {
		return "syntax error: " + e.Message
	}
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Location.Start.Line, e.Location.Start.Column, e.Message)
}
