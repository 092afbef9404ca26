// Package markdown finds block boundaries in item descriptions using the
// tree-sitter markdown grammar.
package markdown

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tsmarkdown "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
)

// containers are walked through to reach content blocks.
var containers = map[string]bool{
	"document": true,
	"section":  true,
}

// FirstBlock returns the leading run of src up to the first blank line
// between blocks, trimmed, and reports whether anything follows it. Blank
// lines inside a block such as fenced code do not end the run. It falls back
// to splitting on a blank line when the grammar yields no block.
func FirstBlock(ctx context.Context, src string) (string, bool) {
	if strings.TrimSpace(src) == "" {
		return "", false
	}
	if end, ok := firstBlockEnd(ctx, []byte(src)); ok {
		return strings.TrimSpace(src[:end]), strings.TrimSpace(src[end:]) != ""
	}
	if i := strings.Index(src, "\n\n"); i >= 0 {
		return src[:i], true
	}
	return src, false
}

func firstBlockEnd(ctx context.Context, src []byte) (int, bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsmarkdown.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return 0, false
	}
	defer tree.Close()

	blocks := leafBlocks(tree.RootNode(), nil)
	if len(blocks) == 0 {
		return 0, false
	}
	end := contentEnd(src, int(blocks[0].EndByte()))
	for _, next := range blocks[1:] {
		if strings.Count(string(src[end:next.StartByte()]), "\n") >= 2 {
			break
		}
		end = contentEnd(src, int(next.EndByte()))
	}
	if end <= 0 || end > len(src) {
		return 0, false
	}
	return end, true
}

// leafBlocks appends the non-empty blocks under node in document order.
func leafBlocks(node *sitter.Node, out []*sitter.Node) []*sitter.Node {
	if node == nil || node.EndByte() <= node.StartByte() {
		return out
	}
	if !containers[node.Type()] {
		return append(out, node)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		out = leafBlocks(node.NamedChild(i), out)
	}
	return out
}

// contentEnd backs end up over trailing whitespace.
func contentEnd(src []byte, end int) int {
	if end > len(src) {
		end = len(src)
	}
	for end > 0 && strings.ContainsRune(" \t\r\n", rune(src[end-1])) {
		end--
	}
	return end
}
