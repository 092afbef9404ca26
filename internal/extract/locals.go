package extract

import (
	"strings"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/span"
)

// Locals returns the variables visible at pos inside the enclosing function
// or macro: its parameters, the declarations that end before pos, and the
// waves created by Make statements before pos. The book is empty outside a
// routine.
func Locals(prog *ast.Program, pos span.Position, opts ...Option) reference.Book {
	e := newExtractor(opts)
	if prog == nil {
		return e.book
	}
	at := span.ToPoint(pos)

	var params, optParams, body []ast.Node
	found := false
	for _, n := range prog.Body {
		if !n.Pos().Contains(at) {
			continue
		}
		switch n := n.(type) {
		case *ast.FunctionDeclaration:
			params, optParams, body, found = n.Params, n.OptParams, n.Body, true
		case *ast.MacroDeclaration:
			params, body, found = n.Params, n.Body, true
		}
		break
	}
	if !found {
		return e.book
	}

	for _, list := range [][]ast.Node{params, optParams} {
		for _, p := range list {
			switch p := p.(type) {
			case *ast.Identifier:
				e.local(p, p)
			case *ast.VariableDeclaration:
				for _, d := range p.Declarations {
					e.local(d, d.ID)
				}
			}
		}
	}

	for _, n := range body {
		ast.Inspect(n, func(n ast.Node) bool {
			if n == nil {
				return false
			}
			loc := n.Pos()
			if loc == nil {
				e.logger.Debug("statement without location")
				return true
			}
			if !loc.Start.Before(at) {
				return false
			}
			ended := !at.Before(loc.End)
			switch n := n.(type) {
			case *ast.VariableDeclaration:
				if ended {
					for _, d := range n.Declarations {
						e.local(d, d.ID)
					}
				}
				return false
			case *ast.OperationStatement:
				if ended && strings.EqualFold(n.Name, "make") {
					for _, arg := range n.Args {
						switch arg := arg.(type) {
						case *ast.Identifier:
							e.local(arg, arg)
						case *ast.AssignmentExpression:
							if id, ok := arg.Left.(*ast.Identifier); ok {
								e.local(arg, id)
							}
						}
					}
				}
				return false
			}
			return true
		})
	}
	return e.book
}

func (e *extractor) local(n ast.Node, id *ast.Identifier) {
	if id == nil {
		return
	}
	e.book[strings.ToLower(id.Name)] = item(n, id.Name, reference.Variable, false)
}
