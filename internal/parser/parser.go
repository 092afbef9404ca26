// Package parser turns Igor Pro procedure text into an ast.Program.
//
// The parser works line by line. Statements are split on top-level `;`,
// block keywords are matched case-insensitively, and expressions are kept
// as raw text except for assignments, calls and operation arguments.
// Recoverable issues are recorded as Program.Problems; unbalanced blocks and
// malformed procedure headers fail with a *SyntaxError.
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jward/ipfls/internal/ast"
)

// Options configures Parse.
type Options struct {
	// Operations holds lower-case operation names. A statement starting with
	// one of them parses as an OperationStatement. Nil selects
	// DefaultOperations.
	Operations map[string]bool
}

// Parse parses a whole procedure file.
func Parse(text string, opts Options) (*ast.Program, error) {
	lines := splitLines(text)
	units, leading := buildUnits(lines)

	ops := opts.Operations
	if ops == nil {
		ops = DefaultOperations()
	}
	p := &parser{units: units, leading: leading, ops: ops}

	prog := &ast.Program{Body: []ast.Node{}, Problems: []ast.Problem{}}
	for p.i < len(p.units) {
		n, err := p.topLevel()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, n)
	}
	prog.Problems = append(prog.Problems, p.problems...)

	last := lines[len(lines)-1]
	ast.SetPos(prog, ast.NewLocation(
		ast.Point{Line: 1, Column: 1},
		ast.Point{Line: last.num, Column: utf8.RuneCountInString(last.raw) + 1, Offset: len(text)},
	))
	return prog, nil
}

// DefaultOperations returns a small set of common built-in operations.
func DefaultOperations() map[string]bool {
	ops := make(map[string]bool, len(defaultOperations))
	for _, name := range defaultOperations {
		ops[name] = true
	}
	return ops
}

var defaultOperations = []string{
	"abort", "appendtograph", "button", "checkbox", "concatenate", "curvefit",
	"differentiate", "display", "dowindow", "duplicate", "edit", "fft",
	"funcfit", "integrate", "killdatafolder", "killwaves", "killwindow",
	"loadwave", "make", "modifygraph", "newdatafolder", "newpanel", "note",
	"popupmenu", "print", "printf", "redimension", "save", "setdatafolder",
	"setscale", "setvariable", "smooth", "sort", "wavestats",
}

var (
	terminators = set("end", "endmacro", "endif", "elseif", "else", "endfor", "while",
		"endswitch", "case", "default", "endtry", "catch", "endstructure")
	declStarters = set("function", "macro", "proc", "window", "structure", "menu",
		"picture", "constant", "strconstant", "static", "threadsafe", "override")
	blockOpeners = set("if", "switch", "strswitch", "do", "for", "try")
	declKinds    = set("variable", "string", "wave", "nvar", "svar", "dfref", "struct",
		"funcref", "int", "int64", "uint64", "double", "complex")
	memberKinds = set("variable", "string", "wave", "nvar", "svar", "dfref", "struct",
		"funcref", "int", "int64", "uint64", "double", "complex",
		"char", "uchar", "int16", "uint16", "int32", "uint32", "float")
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

type parser struct {
	units    []unit
	leading  map[int][]*srcLine
	i        int
	ops      map[string]bool
	problems []ast.Problem
}

type modifiers struct {
	static, override, threadsafe bool
}

func (p *parser) problem(loc *ast.Location, format string, args ...any) {
	p.problems = append(p.problems, ast.Problem{Message: fmt.Sprintf(format, args...), Loc: loc})
}

func (p *parser) missing(open unit, what, closer string) error {
	return &SyntaxError{
		Message:  fmt.Sprintf("%q is missing %q", what, closer),
		Location: unitLoc(open),
	}
}

func (p *parser) unexpected(u unit, expected string) error {
	msg := fmt.Sprintf("unexpected %q", u.toks[0].text)
	if expected != "" {
		msg += fmt.Sprintf("; expected %q", expected)
	}
	return &SyntaxError{Message: msg, Location: unitLoc(u)}
}

func (p *parser) comments(i int) []ast.Comment {
	lines := p.leading[i]
	if len(lines) == 0 {
		return nil
	}
	out := make([]ast.Comment, 0, len(lines))
	for _, l := range lines {
		out = append(out, ast.Comment{Value: l.comment, Loc: span(l, l.commentAt, l, len(l.raw))})
	}
	return out
}

func (p *parser) topLevel() (ast.Node, error) {
	u := p.units[p.i]
	comments := p.comments(p.i)
	if u.toks[0].is("#") {
		p.i++
		return p.directive(u), nil
	}

	c := newCursor(u)
	var mods modifiers
scan:
	for {
		switch c.peek().lower() {
		case "static":
			mods.static = true
		case "override":
			mods.override = true
		case "threadsafe":
			mods.threadsafe = true
		default:
			break scan
		}
		c.next()
	}

	var n ast.Node
	var err error
	switch kw := c.peek().lower(); kw {
	case "constant", "strconstant":
		n, err = p.constant(c, mods)
	case "menu":
		n, err = p.menu(c)
	case "picture":
		n, err = p.picture(c, mods)
	case "structure":
		n, err = p.structure(c, mods)
	case "macro", "proc", "window":
		n, err = p.macro(c)
	case "function":
		n, err = p.function(c, mods)
	default:
		if terminators[keyword(u)] {
			return nil, p.unexpected(u, "")
		}
		p.i++
		p.problem(unitLoc(u), "statement outside of a procedure")
		n = &ast.UnclassifiedStatement{Text: u.text()}
		ast.SetPos(n, unitLoc(u))
	}
	if err != nil {
		return nil, err
	}
	if len(comments) > 0 {
		ast.SetComments(n, comments)
	}
	return n, nil
}

func (p *parser) directive(u unit) ast.Node {
	n := &ast.DirectiveStatement{}
	if len(u.toks) > 1 {
		n.Directive = strings.ToLower(u.toks[1].text)
		n.Value = textOf(u, u.toks[2:])
	}
	ast.SetPos(n, unitLoc(u))
	return n
}

func (p *parser) constant(c *cursor, mods modifiers) (ast.Node, error) {
	u := c.u
	kind := c.next()
	p.flags(c)
	name := c.next()
	if name.kind != tWord {
		return nil, &SyntaxError{Message: "expected a constant name", Location: unitLoc(u)}
	}
	if !c.peek().is("=") {
		return nil, &SyntaxError{Message: fmt.Sprintf("expected \"=\" after %q", name.text), Location: tokLoc(u, name)}
	}
	c.next()
	p.i++

	n := &ast.ConstantDeclaration{
		ID:       ident(u, name),
		Kind:     strings.ToLower(kind.text),
		Override: mods.override,
		Static:   mods.static,
		Value:    textOf(u, c.remaining()),
	}
	ast.SetPos(n, unitLoc(u))
	return n, nil
}

func (p *parser) menu(c *cursor) (ast.Node, error) {
	u := c.u
	c.next()
	id := nameIdent(u, c.next())
	if id == nil {
		return nil, &SyntaxError{Message: "expected a menu name", Location: unitLoc(u)}
	}
	p.i++
	body, end, err := p.menuBody(u, "Menu")
	if err != nil {
		return nil, err
	}
	n := &ast.MenuDeclaration{ID: id, Body: body}
	ast.SetPos(n, between(u, end))
	return n, nil
}

func (p *parser) menuBody(open unit, what string) ([]ast.Node, unit, error) {
	body := []ast.Node{}
	for {
		if p.i >= len(p.units) {
			return nil, unit{}, p.missing(open, what, "End")
		}
		u := p.units[p.i]
		switch keyword(u) {
		case "end":
			p.i++
			return body, u, nil
		case "submenu":
			c := newCursor(u)
			c.next()
			id := nameIdent(u, c.next())
			if id == nil {
				return nil, unit{}, &SyntaxError{Message: "expected a submenu name", Location: unitLoc(u)}
			}
			p.i++
			sub, end, err := p.menuBody(u, "Submenu")
			if err != nil {
				return nil, unit{}, err
			}
			n := &ast.SubmenuDeclaration{ID: id, Body: sub}
			ast.SetPos(n, between(u, end))
			body = append(body, n)
		default:
			p.i++
			n := &ast.MenuItemStatement{Text: u.text()}
			ast.SetPos(n, unitLoc(u))
			body = append(body, n)
		}
	}
}

func (p *parser) picture(c *cursor, mods modifiers) (ast.Node, error) {
	u := c.u
	c.next()
	name := c.next()
	if name.kind != tWord {
		return nil, &SyntaxError{Message: "expected a picture name", Location: unitLoc(u)}
	}
	p.i++

	inData := false
	for {
		if p.i >= len(p.units) {
			return nil, p.missing(u, "Picture", "End")
		}
		cur := p.units[p.i]
		p.i++
		switch head := cur.head(); {
		case inData:
			inData = head != "ascii85end"
		case head == "ascii85begin":
			inData = true
		case head == "end":
			n := &ast.PictureDeclaration{ID: ident(u, name), Static: mods.static}
			ast.SetPos(n, between(u, cur))
			return n, nil
		}
	}
}

func (p *parser) structure(c *cursor, mods modifiers) (ast.Node, error) {
	u := c.u
	c.next()
	name := c.next()
	if name.kind != tWord {
		return nil, &SyntaxError{Message: "expected a structure name", Location: unitLoc(u)}
	}
	p.i++

	body := []ast.Node{}
	for {
		if p.i >= len(p.units) {
			return nil, p.missing(u, "Structure", "EndStructure")
		}
		cur := p.units[p.i]
		p.i++
		kw := keyword(cur)
		switch {
		case kw == "endstructure":
			n := &ast.StructureDeclaration{ID: ident(u, name), Static: mods.static, Body: body}
			ast.SetPos(n, between(u, cur))
			return n, nil
		case memberKinds[kw]:
			kind, proto, flags, parts := p.declaration(newCursor(cur))
			m := &ast.StructureMemberDeclaration{Kind: kind, Proto: proto, Flags: flags}
			for _, d := range parts {
				md := &ast.StructureMemberDeclarator{ID: d.id, Size: d.size}
				ast.SetPos(md, d.loc)
				m.Declarations = append(m.Declarations, md)
			}
			ast.SetPos(m, unitLoc(cur))
			body = append(body, m)
		case terminators[kw] || declStarters[kw]:
			return nil, p.unexpected(cur, "EndStructure")
		default:
			p.problem(unitLoc(cur), "unexpected statement in structure %q", name.text)
		}
	}
}

func (p *parser) macro(c *cursor) (ast.Node, error) {
	u := c.u
	kind := c.next()
	name := c.next()
	if name.kind != tWord {
		return nil, &SyntaxError{Message: fmt.Sprintf("expected a %s name", kind.lower()), Location: unitLoc(u)}
	}
	var params []ast.Node
	if c.peek().is("(") {
		m := matching(c.toks, c.i)
		if m < 0 {
			return nil, &SyntaxError{Message: "unclosed parameter list", Location: unitLoc(u)}
		}
		params = p.params(u, c.toks[c.i+1:m])
		c.i = m + 1
	}
	subtype := p.subtype(c)
	p.i++

	body, end, err := p.block(u, kind.text, "endmacro", "end")
	if err != nil {
		return nil, err
	}
	p.i++
	n := &ast.MacroDeclaration{
		ID:      ident(u, name),
		Kind:    kind.lower(),
		Params:  params,
		Subtype: subtype,
		Body:    body,
	}
	ast.SetPos(n, between(u, end))
	return n, nil
}

func (p *parser) function(c *cursor, mods modifiers) (ast.Node, error) {
	u := c.u
	c.next()
	flags := p.flags(c)
	if c.peek().is("[") {
		// Multiple return values: [Variable a, String s].
		m := matching(c.toks, c.i)
		if m < 0 {
			return nil, &SyntaxError{Message: "unclosed return list", Location: unitLoc(u)}
		}
		c.i = m + 1
	}
	name := c.next()
	if name.kind != tWord {
		return nil, &SyntaxError{Message: "expected a function name", Location: unitLoc(u)}
	}
	if !c.peek().is("(") {
		return nil, &SyntaxError{Message: fmt.Sprintf("expected \"(\" after %q", name.text), Location: tokLoc(u, name)}
	}
	m := matching(c.toks, c.i)
	if m < 0 {
		return nil, &SyntaxError{Message: "unclosed parameter list", Location: unitLoc(u)}
	}
	required, optional := splitOptional(c.toks[c.i+1 : m])
	c.i = m + 1
	subtype := p.subtype(c)
	p.i++

	body, end, err := p.block(u, "Function", "end")
	if err != nil {
		return nil, err
	}
	p.i++
	n := &ast.FunctionDeclaration{
		ID:         ident(u, name),
		Params:     p.params(u, required),
		Flags:      flags,
		Threadsafe: mods.threadsafe,
		Override:   mods.override,
		Static:     mods.static,
		Subtype:    subtype,
		Body:       body,
	}
	if optional != nil {
		n.OptParams = p.params(u, optional)
		if n.OptParams == nil {
			n.OptParams = []ast.Node{}
		}
	}
	ast.SetPos(n, between(u, end))
	return n, nil
}

func (p *parser) subtype(c *cursor) string {
	if c.peek().is(":") && c.peekAt(1).kind == tWord {
		c.next()
		return c.next().text
	}
	return ""
}

// splitOptional separates `a, b, [c, d]` into the required and bracketed
// optional parameter tokens. optional is nil when there is no bracket.
func splitOptional(toks []token) (required, optional []token) {
	depth := 0
	for k, t := range toks {
		switch {
		case t.is("[") && depth == 0:
			required = toks[:k]
			if n := len(required); n > 0 && required[n-1].is(",") {
				required = required[:n-1]
			}
			end := matching(toks, k)
			if end < 0 {
				end = len(toks)
			}
			return required, append([]token{}, toks[k+1:end]...)
		case isOpen(t):
			depth++
		case isClose(t):
			depth--
		}
	}
	return toks, nil
}

func (p *parser) params(u unit, toks []token) []ast.Node {
	var out []ast.Node
	for _, g := range splitTop(toks, ",") {
		switch {
		case len(g) == 0:
		case len(g) == 1 && g[0].kind == tWord:
			out = append(out, ident(u, g[0]))
		case g[0].kind == tWord:
			c := &cursor{u: u, toks: g}
			out = append(out, p.variableDeclaration(c, span(u.line, g[0].start, u.line, g[len(g)-1].end)))
		default:
			p.problem(span(u.line, g[0].start, u.line, g[len(g)-1].end), "malformed parameter %q", textOf(u, g))
		}
	}
	return out
}

type declPart struct {
	id         *ast.Identifier
	init, size string
	pbr        bool
	loc        *ast.Location
}

// declaration reads `Kind[/flags] [proto] [&]name[size] [= init], ...`.
func (p *parser) declaration(c *cursor) (kind, proto string, flags []*ast.Flag, parts []declPart) {
	u := c.u
	kindTok := c.next()
	kind = kindTok.text
	flags = p.flags(c)
	if k := kindTok.lower(); (k == "struct" || k == "funcref") && c.peek().kind == tWord {
		proto = c.next().text
	}
	for _, g := range splitTop(c.remaining(), ",") {
		if len(g) == 0 {
			continue
		}
		var d declPart
		j := 0
		if g[j].is("&") {
			d.pbr = true
			j++
		}
		if j >= len(g) || g[j].kind != tWord {
			p.problem(span(u.line, g[0].start, u.line, g[len(g)-1].end), "expected a name in %s declaration", kind)
			continue
		}
		d.id = ident(u, g[j])
		j++
		if j < len(g) && g[j].is("[") {
			if m := matching(g, j); m > 0 {
				d.size = textOf(u, g[j+1:m])
				j = m + 1
			}
		}
		if j < len(g) && g[j].is("=") {
			d.init = textOf(u, g[j+1:])
		}
		d.loc = span(u.line, g[0].start, u.line, g[len(g)-1].end)
		parts = append(parts, d)
	}
	return kind, proto, flags, parts
}

func (p *parser) variableDeclaration(c *cursor, loc *ast.Location) *ast.VariableDeclaration {
	kind, proto, flags, parts := p.declaration(c)
	n := &ast.VariableDeclaration{Kind: kind, Proto: proto, Flags: flags, Declarations: []*ast.VariableDeclarator{}}
	for _, d := range parts {
		vd := &ast.VariableDeclarator{ID: d.id, Init: d.init, PBR: d.pbr}
		ast.SetPos(vd, d.loc)
		n.Declarations = append(n.Declarations, vd)
	}
	ast.SetPos(n, loc)
	return n
}

func (p *parser) flags(c *cursor) []*ast.Flag {
	var flags []*ast.Flag
	for c.peek().is("/") && c.peekAt(1).kind == tWord {
		slash := c.next()
		key := c.next()
		f := &ast.Flag{Key: key.text}
		last := key
		if c.peek().is("=") {
			c.next()
			from := c.i
			switch {
			case isOpen(c.peek()):
				if m := matching(c.toks, c.i); m >= 0 {
					c.i = m + 1
				} else {
					c.i = len(c.toks)
				}
			case c.peek().is("-") || c.peek().is("+"):
				c.i = min(c.i+2, len(c.toks))
			case c.peek().kind != tEOF:
				c.i++
			}
			if value := c.toks[from:c.i]; len(value) > 0 {
				f.Value = textOf(c.u, value)
				last = value[len(value)-1]
			}
		}
		ast.SetPos(f, span(c.u.line, slash.start, c.u.line, last.end))
		flags = append(flags, f)
	}
	return flags
}
