package parser

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/jward/ipfls/internal/ast"
)

// block parses statements until a unit whose keyword is one of stops. The
// stop unit is returned but not consumed. The last stop names the closer in
// error messages.
func (p *parser) block(open unit, what string, stops ...string) ([]ast.Node, unit, error) {
	body := []ast.Node{}
	closer := stops[len(stops)-1]
	for {
		if p.i >= len(p.units) {
			return nil, unit{}, p.missing(open, what, closer)
		}
		u := p.units[p.i]
		kw := keyword(u)
		if slices.Contains(stops, kw) {
			return body, u, nil
		}
		if terminators[kw] || declStarters[kw] {
			return nil, unit{}, p.unexpected(u, closer)
		}
		n, err := p.statement()
		if err != nil {
			return nil, unit{}, err
		}
		body = append(body, n)
	}
}

func (p *parser) statement() (ast.Node, error) {
	u := p.units[p.i]
	if u.idx == 0 && u.count > 1 && p.bundleable(u.count) {
		return p.bundle(u.count), nil
	}
	switch keyword(u) {
	case "if":
		return p.ifStatement()
	case "switch", "strswitch":
		return p.switchStatement()
	case "do":
		return p.doWhile()
	case "for":
		return p.forStatement()
	case "try":
		return p.tryStatement()
	}
	p.i++
	return p.simple(u), nil
}

// bundleable reports whether the next count units form one line of simple
// statements.
func (p *parser) bundleable(count int) bool {
	if p.i+count > len(p.units) {
		return false
	}
	for _, u := range p.units[p.i : p.i+count] {
		kw := keyword(u)
		if blockOpeners[kw] || terminators[kw] || declStarters[kw] {
			return false
		}
	}
	return true
}

func (p *parser) bundle(count int) ast.Node {
	units := p.units[p.i : p.i+count]
	p.i += count
	n := &ast.BundledStatement{}
	for _, u := range units {
		n.Body = append(n.Body, p.simple(u))
	}
	ast.SetPos(n, between(units[0], units[len(units)-1]))
	return n
}

func (p *parser) simple(u unit) ast.Node {
	if u.toks[0].is("#") {
		return p.directive(u)
	}
	var n ast.Node
	switch kw := keyword(u); {
	case kw == "break":
		n = &ast.BreakStatement{}
	case kw == "continue":
		n = &ast.ContinueStatement{}
	case kw == "return":
		n = &ast.ReturnStatement{Argument: textOf(u, u.toks[1:])}
	case declKinds[kw]:
		return p.variableDeclaration(newCursor(u), unitLoc(u))
	case kw != "" && p.ops[kw]:
		n = p.operation(u)
	default:
		n = &ast.ExpressionStatement{Expression: expression(u, u.toks)}
	}
	ast.SetPos(n, unitLoc(u))
	return n
}

func (p *parser) operation(u unit) ast.Node {
	c := newCursor(u)
	name := c.next()
	n := &ast.OperationStatement{Name: name.text, Args: []ast.Node{}}
	n.Flags = p.flags(c)
	for _, g := range splitTop(c.remaining(), ",") {
		if len(g) > 0 {
			n.Args = append(n.Args, argument(u, g))
		}
	}
	return n
}

func argument(u unit, g []token) ast.Node {
	if len(g) == 1 && g[0].kind == tWord {
		return ident(u, g[0])
	}
	if len(g) >= 2 && g[0].kind == tWord && g[1].kind == tPunct && assignOps[g[1].text] {
		n := &ast.AssignmentExpression{Operator: g[1].text, Left: ident(u, g[0]), Right: raw(u, g[2:])}
		ast.SetPos(n, tokensLoc(u, g))
		return n
	}
	return raw(u, g)
}

func expression(u unit, toks []token) ast.Node {
	depth := 0
	for k, t := range toks {
		switch {
		case isOpen(t):
			depth++
		case isClose(t):
			depth--
		case depth == 0 && k > 0 && t.kind == tPunct && assignOps[t.text]:
			var left ast.Node
			if k == 1 && toks[0].kind == tWord {
				left = ident(u, toks[0])
			} else {
				left = raw(u, toks[:k])
			}
			n := &ast.AssignmentExpression{Operator: t.text, Left: left, Right: raw(u, toks[k+1:])}
			ast.SetPos(n, tokensLoc(u, toks))
			return n
		}
	}
	if len(toks) >= 3 && toks[0].kind == tWord && toks[1].is("(") && matching(toks, 1) == len(toks)-1 {
		n := &ast.CallExpression{Callee: ident(u, toks[0]), Arguments: []ast.Node{}}
		for _, g := range splitTop(toks[2:len(toks)-1], ",") {
			if len(g) > 0 {
				n.Arguments = append(n.Arguments, raw(u, g))
			}
		}
		ast.SetPos(n, tokensLoc(u, toks))
		return n
	}
	return raw(u, toks)
}

func raw(u unit, toks []token) ast.Node {
	n := &ast.RawExpression{Text: textOf(u, toks)}
	if len(toks) > 0 {
		ast.SetPos(n, tokensLoc(u, toks))
	}
	return n
}

func (p *parser) ifStatement() (ast.Node, error) {
	open := p.units[p.i]
	p.i++
	stmt := &ast.IfStatement{}
	test, caseUnit := condition(open), open
	stops := []string{"elseif", "else", "endif"}
	for {
		body, stop, err := p.block(open, "if", stops...)
		if err != nil {
			return nil, err
		}
		c := &ast.IfCase{Test: test, Consequent: body}
		ast.SetPos(c, span(caseUnit.line, caseUnit.toks[0].start, stop.line, stop.toks[0].start))
		stmt.Cases = append(stmt.Cases, c)
		p.i++

		switch keyword(stop) {
		case "endif":
			ast.SetPos(stmt, between(open, stop))
			return stmt, nil
		case "elseif":
			test, caseUnit = condition(stop), stop
		case "else":
			test, caseUnit = "", stop
			stops = []string{"endif"}
		}
	}
}

func (p *parser) switchStatement() (ast.Node, error) {
	open := p.units[p.i]
	p.i++
	kind := keyword(open)
	stmt := &ast.SwitchStatement{Kind: kind, Discriminant: condition(open)}
	stops := []string{"case", "default", "endswitch"}

	pre, stop, err := p.block(open, kind, stops...)
	if err != nil {
		return nil, err
	}
	if len(pre) > 0 {
		p.problem(pre[0].Pos(), "statement before the first case of %s", kind)
	}
	for keyword(stop) != "endswitch" {
		p.i++
		label := stop
		body, next, err := p.block(open, kind, stops...)
		if err != nil {
			return nil, err
		}
		c := &ast.SwitchCase{Test: caseLabel(label), Consequent: body}
		ast.SetPos(c, span(label.line, label.toks[0].start, next.line, next.toks[0].start))
		stmt.Cases = append(stmt.Cases, c)
		stop = next
	}
	p.i++
	ast.SetPos(stmt, between(open, stop))
	return stmt, nil
}

func (p *parser) doWhile() (ast.Node, error) {
	open := p.units[p.i]
	p.i++
	body, stop, err := p.block(open, "do", "while")
	if err != nil {
		return nil, err
	}
	p.i++
	n := &ast.DoWhileStatement{Body: body, Test: condition(stop)}
	ast.SetPos(n, between(open, stop))
	return n, nil
}

func (p *parser) forStatement() (ast.Node, error) {
	open := p.units[p.i]
	p.i++
	inner := open.toks[1:]
	if len(inner) > 0 && inner[0].is("(") {
		if m := matching(open.toks, 1); m > 0 {
			inner = open.toks[2:m]
		}
	}
	body, stop, err := p.block(open, "for", "endfor")
	if err != nil {
		return nil, err
	}
	p.i++

	var n ast.Node
	if parts := splitTop(inner, ";"); len(parts) == 1 {
		in := splitTop(inner, ":")
		left, right := in[0], []token(nil)
		if len(in) > 1 {
			right = inner[len(left)+1:]
		}
		n = &ast.ForInStatement{Left: p.forInLeft(open, left), Right: textOf(open, right), Body: body}
	} else {
		f := &ast.ForStatement{Init: textOf(open, parts[0]), Test: textOf(open, parts[1]), Body: body}
		if len(parts) > 2 {
			f.Update = textOf(open, parts[2])
		}
		n = f
	}
	ast.SetPos(n, between(open, stop))
	return n, nil
}

func (p *parser) forInLeft(u unit, toks []token) ast.Node {
	switch {
	case len(toks) == 0:
		return nil
	case declKinds[toks[0].lower()]:
		return p.variableDeclaration(&cursor{u: u, toks: toks}, tokensLoc(u, toks))
	case len(toks) == 1 && toks[0].kind == tWord:
		return ident(u, toks[0])
	}
	return raw(u, toks)
}

func (p *parser) tryStatement() (ast.Node, error) {
	open := p.units[p.i]
	p.i++
	block, stop, err := p.block(open, "try", "catch", "endtry")
	if err != nil {
		return nil, err
	}
	p.i++
	n := &ast.TryStatement{Block: block}
	if keyword(stop) == "catch" {
		n.Handler, stop, err = p.block(open, "try", "endtry")
		if err != nil {
			return nil, err
		}
		p.i++
	}
	ast.SetPos(n, between(open, stop))
	return n, nil
}

// condition returns the text inside the parentheses following a keyword.
func condition(u unit) string {
	if len(u.toks) > 1 && u.toks[1].is("(") {
		if m := matching(u.toks, 1); m > 0 {
			return textOf(u, u.toks[2:m])
		}
	}
	return textOf(u, u.toks[1:])
}

func caseLabel(u unit) string {
	rest := u.toks[1:]
	if groups := splitTop(rest, ":"); len(groups) > 1 {
		return textOf(u, groups[0])
	}
	return textOf(u, rest)
}

// keyword returns the lower-cased first word of u unless the word is the
// target of an assignment.
func keyword(u unit) string {
	kw := u.toks[0].lower()
	if len(u.toks) > 1 && u.toks[1].kind == tPunct && assignOps[u.toks[1].text] {
		return ""
	}
	return kw
}

type cursor struct {
	u    unit
	toks []token
	i    int
}

func newCursor(u unit) *cursor { return &cursor{u: u, toks: u.toks} }

func (c *cursor) peek() token { return c.peekAt(0) }

func (c *cursor) peekAt(k int) token {
	if c.i+k < len(c.toks) {
		return c.toks[c.i+k]
	}
	return token{}
}

func (c *cursor) next() token {
	t := c.peek()
	if c.i < len(c.toks) {
		c.i++
	}
	return t
}

func (c *cursor) remaining() []token {
	if c.i >= len(c.toks) {
		return nil
	}
	return c.toks[c.i:]
}

func textOf(u unit, toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return u.line.code[toks[0].start:toks[len(toks)-1].end]
}

func ident(u unit, t token) *ast.Identifier {
	id := &ast.Identifier{Name: t.text}
	ast.SetPos(id, tokLoc(u, t))
	return id
}

// nameIdent accepts a word or a quoted string as a name.
func nameIdent(u unit, t token) *ast.Identifier {
	switch t.kind {
	case tWord:
		return ident(u, t)
	case tString:
		id := &ast.Identifier{Name: strings.Trim(t.text, `"`)}
		ast.SetPos(id, tokLoc(u, t))
		return id
	}
	return nil
}

func point(l *srcLine, b int) ast.Point {
	return ast.Point{Line: l.num, Column: utf8.RuneCountInString(l.raw[:b]) + 1, Offset: l.offset + b}
}

func span(l1 *srcLine, b1 int, l2 *srcLine, b2 int) *ast.Location {
	return ast.NewLocation(point(l1, b1), point(l2, b2))
}

func tokLoc(u unit, t token) *ast.Location {
	return span(u.line, t.start, u.line, t.end)
}

func tokensLoc(u unit, toks []token) *ast.Location {
	return span(u.line, toks[0].start, u.line, toks[len(toks)-1].end)
}

func unitLoc(u unit) *ast.Location {
	return tokensLoc(u, u.toks)
}

func between(a, b unit) *ast.Location {
	return span(a.line, a.toks[0].start, b.line, b.toks[len(b.toks)-1].end)
}
