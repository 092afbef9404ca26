package extract

import (
	"strings"

	"github.com/jward/ipfls/internal/ast"
)

// Signature synthesizes the declared form of a function or macro, such as
// "Add(Variable a, b, [String label]): FitFunc". It returns "" for other
// nodes.
func Signature(n ast.Node) string {
	var (
		name     string
		params   []ast.Node
		optional []ast.Node
		hasOpt   bool
		subtype  string
	)
	switch n := n.(type) {
	case *ast.FunctionDeclaration:
		name, params, subtype = idName(n.ID), n.Params, n.Subtype
		optional, hasOpt = n.OptParams, n.OptParams != nil
	case *ast.MacroDeclaration:
		name, params, subtype = idName(n.ID), n.Params, n.Subtype
	default:
		return ""
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(paramList(params))
	if hasOpt {
		if len(params) > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('[')
		b.WriteString(paramList(optional))
		b.WriteByte(']')
	}
	b.WriteByte(')')
	if subtype != "" {
		b.WriteString(": ")
		b.WriteString(subtype)
	}
	return b.String()
}

func paramList(params []ast.Node) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = param(p)
	}
	return strings.Join(parts, ", ")
}

func param(p ast.Node) string {
	switch p := p.(type) {
	case *ast.Identifier:
		return p.Name
	case *ast.VariableDeclaration:
		var b strings.Builder
		b.WriteString(p.Kind)
		for _, f := range p.Flags {
			b.WriteByte('/')
			b.WriteString(f.Key)
		}
		names := make([]string, 0, len(p.Declarations))
		for _, d := range p.Declarations {
			names = append(names, idName(d.ID))
		}
		b.WriteByte(' ')
		b.WriteString(strings.Join(names, ", "))
		return b.String()
	}
	return ""
}
