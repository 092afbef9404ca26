package ipfls

import (
	"regexp"
	"strings"
)

// wordType classifies the word under the cursor within a command line.
type wordType int

const (
	wordUnclassified wordType = iota
	wordFirst                 // first word of a statement: operations allowed
	wordFlag                  // operation flag such as /O
)

var (
	firstWordPattern  = regexp.MustCompile(`(?:^|;)\s*[a-zA-Z][a-zA-Z0-9_]*$`)
	flagPattern       = regexp.MustCompile(`/[a-zA-Z][a-zA-Z0-9_]*$`)
	identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	callPattern       = regexp.MustCompile(`^(.*?)([a-zA-Z_][a-zA-Z0-9_]*)\(`)
	parenGroupPattern = regexp.MustCompile(`\([^()]*\)`)
	paramSepPattern   = regexp.MustCompile(`\s*,\s*`)
)

// classify inspects the text from line start up to the cursor.
func classify(preceding string) wordType {
	switch {
	case firstWordPattern.MatchString(preceding):
		return wordFirst
	case flagPattern.MatchString(preceding):
		return wordFlag
	}
	return wordUnclassified
}

// splitLines splits text on \r\n, \r and \n.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// lineAt returns line n of text as runes, or nil past the end.
func lineAt(text string, n int) []rune {
	lines := splitLines(text)
	if n < 0 || n >= len(lines) {
		return nil
	}
	return []rune(lines[n])
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// wordAt returns the word touching pos.Character on line, and the text of
// the line before the cursor. ok is false when no word touches the cursor.
func wordAt(line []rune, character int) (word, preceding string, ok bool) {
	character = min(max(character, 0), len(line))
	preceding = string(line[:character])
	start, end := character, character
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	for end < len(line) && isWordRune(line[end]) {
		end++
	}
	if start == end {
		return "", preceding, false
	}
	return string(line[start:end]), preceding, true
}

// selector lower-cases word and reports whether it is identifier shaped.
func selector(word string) (string, bool) {
	s := strings.ToLower(word)
	return s, identifierPattern.MatchString(s)
}

// callInEditing finds the innermost unfinished call before the cursor.
// Balanced parenthesis groups are blanked out first, so in
// "foo(bar(1,2), " the target is foo and the argument index is 1.
func callInEditing(preceding string) (name string, argIndex int, ok bool) {
	s := preceding
	for {
		next := parenGroupPattern.ReplaceAllStringFunc(s, func(m string) string {
			return strings.Repeat("_", len(m))
		})
		if next == s {
			break
		}
		s = next
	}

	for {
		m := callPattern.FindStringSubmatch(s)
		if m == nil {
			break
		}
		s = s[len(m[0]):]
		name, ok = m[2], true
	}
	if !ok {
		return "", 0, false
	}
	return strings.ToLower(name), len(strings.Split(s, ",")) - 1, true
}

// parameterLabels splits the parameter list of a signature. Optional
// brackets are dropped.
func parameterLabels(signature string) ([]string, bool) {
	open := strings.Index(signature, "(")
	closing := strings.LastIndex(signature, ")")
	if open < 0 || closing < 0 || closing < open {
		return nil, false
	}
	inner := strings.TrimSpace(signature[open+1 : closing])
	inner = strings.NewReplacer("[", "", "]", "").Replace(inner)
	return paramSepPattern.Split(inner, -1), true
}
