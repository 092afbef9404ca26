// Package extract derives a reference book and a document outline from a
// parsed procedure file.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/logging"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/span"
)

// Symbol is one outline entry. Children are ordered by source position.
type Symbol struct {
	Name           string               `json:"name"`
	Kind           reference.SymbolKind `json:"kind"`
	Range          span.Range           `json:"range"`
	SelectionRange span.Range           `json:"selectionRange"`
	Children       []Symbol             `json:"children,omitempty"`
}

// Option configures Extract and Locals.
type Option func(*extractor)

// WithLogger sets the logger for missing-location and signature warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *extractor) {
		e.logger = logging.OrDiscard(l)
	}
}

type extractor struct {
	logger *slog.Logger
	book   reference.Book
}

func newExtractor(opts []Option) *extractor {
	e := &extractor{logger: logging.NewDiscardLogger(), book: make(reference.Book)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract collects the top-level declarations of prog into a book keyed by
// lower-cased name, and builds the outline.
func Extract(prog *ast.Program, opts ...Option) (reference.Book, []Symbol) {
	e := newExtractor(opts)
	symbols := []Symbol{}
	if prog == nil {
		return e.book, symbols
	}

	for _, n := range prog.Body {
		var sym *Symbol
		switch n := n.(type) {
		case *ast.ConstantDeclaration:
			e.add(n, n.ID, idName(n.ID), reference.Constant, n.Static)
			sym = e.symbol(n, n.ID, reference.SymbolConstant)
		case *ast.MenuDeclaration:
			sym = e.menu(n, n.ID, n.Body)
		case *ast.PictureDeclaration:
			e.add(n, n.ID, idName(n.ID), reference.Picture, n.Static)
			sym = e.symbol(n, n.ID, reference.SymbolObject)
		case *ast.StructureDeclaration:
			e.add(n, n.ID, idName(n.ID), reference.Structure, n.Static)
			if sym = e.symbol(n, n.ID, reference.SymbolStruct); sym != nil {
				for _, m := range n.Body {
					if m, ok := m.(*ast.StructureMemberDeclaration); ok {
						sym.Children = append(sym.Children, e.members(m)...)
					}
				}
			}
		case *ast.MacroDeclaration:
			e.add(n, n.ID, Signature(n), reference.Macro, false)
			if sym = e.symbol(n, n.ID, reference.SymbolMethod); sym != nil {
				sym.Children = e.routineVariables(n.Params, nil, n.Body)
			}
		case *ast.FunctionDeclaration:
			e.add(n, n.ID, Signature(n), reference.Function, n.Static)
			if sym = e.symbol(n, n.ID, reference.SymbolFunction); sym != nil {
				sym.Children = e.routineVariables(n.Params, n.OptParams, n.Body)
			}
		}
		if sym != nil {
			symbols = append(symbols, *sym)
		}
	}
	return e.book, symbols
}

func (e *extractor) add(n ast.Node, id *ast.Identifier, signature string, cat reference.Category, static bool) {
	if id == nil {
		return
	}
	key := strings.ToLower(id.Name)
	if !strings.HasPrefix(strings.ToLower(signature), key) {
		e.logger.Warn("signature does not start with its identifier", "identifier", key, "signature", signature)
	}
	e.book[key] = item(n, signature, cat, static)
}

func item(n ast.Node, signature string, cat reference.Category, static bool) reference.Item {
	return reference.Item{
		Signature:   signature,
		Category:    cat,
		Description: description(n),
		Location:    span.FromLocation(n.Pos()),
		IsStatic:    static,
	}
}

func description(n ast.Node) string {
	comments := n.Comments()
	if len(comments) == 0 {
		return ""
	}
	lines := make([]string, len(comments))
	for i, c := range comments {
		lines[i] = c.Value
	}
	return strings.Join(lines, "\n")
}

func (e *extractor) symbol(n ast.Node, id *ast.Identifier, kind reference.SymbolKind) *Symbol {
	if id == nil || n.Pos() == nil || id.Pos() == nil {
		e.logger.Warn("missing location for declaration", "type", fmt.Sprintf("%T", n), "name", idName(id))
		return nil
	}
	return &Symbol{
		Name:           id.Name,
		Kind:           kind,
		Range:          *span.FromLocation(n.Pos()),
		SelectionRange: *span.FromLocation(id.Pos()),
	}
}

func (e *extractor) menu(n ast.Node, id *ast.Identifier, body []ast.Node) *Symbol {
	sym := e.symbol(n, id, reference.SymbolEvent)
	if sym == nil {
		return nil
	}
	for _, child := range body {
		if sub, ok := child.(*ast.SubmenuDeclaration); ok {
			if s := e.menu(sub, sub.ID, sub.Body); s != nil {
				sym.Children = append(sym.Children, *s)
			}
		}
	}
	return sym
}

func (e *extractor) members(m *ast.StructureMemberDeclaration) []Symbol {
	var out []Symbol
	for _, d := range m.Declarations {
		if s := e.symbol(d, d.ID, reference.SymbolField); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (e *extractor) declarators(v *ast.VariableDeclaration) []Symbol {
	var out []Symbol
	for _, d := range v.Declarations {
		if s := e.symbol(d, d.ID, reference.SymbolVariable); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// routineVariables lists typed parameters and every variable declared in the
// body, descending only into compound statements.
func (e *extractor) routineVariables(params, optParams, body []ast.Node) []Symbol {
	var out []Symbol
	for _, list := range [][]ast.Node{params, optParams} {
		for _, p := range list {
			if v, ok := p.(*ast.VariableDeclaration); ok {
				out = append(out, e.declarators(v)...)
			}
		}
	}
	for _, n := range body {
		ast.Inspect(n, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.VariableDeclaration:
				out = append(out, e.declarators(n)...)
				return false
			case *ast.DoWhileStatement, *ast.ForStatement, *ast.ForInStatement,
				*ast.SwitchStatement, *ast.SwitchCase, *ast.IfStatement, *ast.IfCase,
				*ast.TryStatement, *ast.BundledStatement:
				return true
			}
			return false
		})
	}
	return out
}

func idName(id *ast.Identifier) string {
	if id == nil {
		return ""
	}
	return id.Name
}
