package parser

import (
	"strings"
	"unicode/utf8"
)

type tokKind int

const (
	tEOF tokKind = iota
	tWord
	tNumber
	tString
	tPunct
)

type token struct {
	kind       tokKind
	text       string
	start, end int // byte offsets within srcLine.code
}

func (t token) is(punct string) bool { return t.kind == tPunct && t.text == punct }

func (t token) lower() string {
	if t.kind != tWord {
		return ""
	}
	return strings.ToLower(t.text)
}

// srcLine is one physical line. code holds the text before any `//` comment.
type srcLine struct {
	num        int
	offset     int
	raw        string
	code       string
	comment    string
	hasComment bool
	commentAt  int
}

// unit is one `;`-separated statement on a line.
type unit struct {
	line       *srcLine
	toks       []token
	idx, count int
}

func (u unit) text() string {
	return u.line.code[u.toks[0].start:u.toks[len(u.toks)-1].end]
}

func (u unit) head() string {
	return u.toks[0].lower()
}

func splitLines(src string) []*srcLine {
	var lines []*srcLine
	offset := 0
	for n := 1; ; n++ {
		end := strings.IndexAny(src[offset:], "\r\n")
		if end < 0 {
			lines = append(lines, newSrcLine(n, offset, src[offset:]))
			return lines
		}
		end += offset
		lines = append(lines, newSrcLine(n, offset, src[offset:end]))
		next := end + 1
		if src[end] == '\r' && next < len(src) && src[next] == '\n' {
			next++
		}
		offset = next
	}
}

func newSrcLine(num, offset int, raw string) *srcLine {
	l := &srcLine{num: num, offset: offset, raw: raw, code: raw}
	inString := false
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case !inString && c == '/' && i+1 < len(raw) && raw[i+1] == '/':
			l.code = raw[:i]
			l.comment = strings.TrimSpace(raw[i+2:])
			l.hasComment = true
			l.commentAt = i
			return l
		}
	}
	return l
}

var twoCharOps = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true,
	"+=": true, "-=": true, "*=": true, "/=": true, ":=": true,
	"^=": true, "|=": true, "&=": true,
	"&&": true, "||": true, "++": true, "--": true,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true,
	":=": true, "^=": true, "|=": true, "&=": true,
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func tokenize(code string) []token {
	var toks []token
	for i := 0; i < len(code); {
		c := code[i]
		start := i
		switch {
		case c == ' ' || c == '\t':
			i++
			continue
		case isIdentStart(c):
			for i < len(code) && isIdentChar(code[i]) {
				i++
			}
			toks = append(toks, token{kind: tWord, text: code[start:i], start: start, end: i})
		case isDigit(c) || (c == '.' && i+1 < len(code) && isDigit(code[i+1])):
			for i < len(code) && (isIdentChar(code[i]) || code[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tNumber, text: code[start:i], start: start, end: i})
		case c == '"':
			i++
			for i < len(code) && code[i] != '"' {
				if code[i] == '\\' {
					i++
				}
				i++
			}
			if i < len(code) {
				i++
			} else {
				i = len(code)
			}
			toks = append(toks, token{kind: tString, text: code[start:i], start: start, end: i})
		case c == '\'':
			// Liberal names such as 'wave 0' behave like words.
			i++
			for i < len(code) && code[i] != '\'' {
				i++
			}
			if i < len(code) {
				i++
			}
			toks = append(toks, token{kind: tWord, text: code[start:i], start: start, end: i})
		default:
			if i+1 < len(code) && twoCharOps[code[i:i+2]] {
				i += 2
			} else {
				_, w := utf8.DecodeRuneInString(code[i:])
				i += w
			}
			toks = append(toks, token{kind: tPunct, text: code[start:i], start: start, end: i})
		}
	}
	return toks
}

func isOpen(t token) bool  { return t.is("(") || t.is("[") || t.is("{") }
func isClose(t token) bool { return t.is(")") || t.is("]") || t.is("}") }

// splitTop splits toks on the punctuation sep at bracket depth zero.
// Empty groups are kept.
func splitTop(toks []token, sep string) [][]token {
	var groups [][]token
	depth, from := 0, 0
	for i, t := range toks {
		switch {
		case isOpen(t):
			depth++
		case isClose(t):
			if depth > 0 {
				depth--
			}
		case depth == 0 && t.is(sep):
			groups = append(groups, toks[from:i])
			from = i + 1
		}
	}
	return append(groups, toks[from:])
}

// matching returns the index of the bracket closing toks[open], or -1.
func matching(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case isOpen(toks[i]):
			depth++
		case isClose(toks[i]):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// buildUnits tokenizes every line and splits it into statement units. It
// also returns the comment run directly above each line's first unit.
func buildUnits(lines []*srcLine) ([]unit, map[int][]*srcLine) {
	var units []unit
	leading := make(map[int][]*srcLine)
	var pending []*srcLine
	for _, l := range lines {
		toks := tokenize(l.code)
		if len(toks) == 0 {
			if l.hasComment {
				pending = append(pending, l)
			} else {
				pending = nil
			}
			continue
		}
		var parts [][]token
		for _, g := range splitTop(toks, ";") {
			if len(g) > 0 {
				parts = append(parts, g)
			}
		}
		if len(parts) == 0 {
			pending = nil
			continue
		}
		if len(pending) > 0 {
			leading[len(units)] = pending
			pending = nil
		}
		for i, g := range parts {
			units = append(units, unit{line: l, toks: g, idx: i, count: len(parts)})
		}
	}
	return units, leading
}
