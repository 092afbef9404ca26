package ipfls

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/span"
)

func TestTruncate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := documented{
		Description: "First sentence. Second sentence.\n\nSecond paragraph.",
		Available:   &reference.VersionRange{Range: ">=7.0.0"},
		Deprecated:  &reference.VersionRange{Range: ">=0.0.0", Description: "Use Other."},
	}

	full := truncate(ctx, truncateFull, d)
	assert.Equal(t, d.Description+"\n\n[available: `>=7.0.0`]\n\n[deprecated at some time] Use Other.", full)

	para := truncate(ctx, truncateParagraph, d)
	assert.Equal(t, "First sentence. Second sentence.\n\n...\n\n[available: `>=7.0.0`]\n\n[deprecated at some time] Use Other.", para)

	line := truncate(ctx, truncateLine, d)
	assert.Equal(t, "First sentence. ...", line)
}

func TestTruncate_NotesOnly(t *testing.T) {
	t.Parallel()
	d := documented{Available: &reference.VersionRange{Range: ">=9.0.0", Description: "New."}}
	assert.Equal(t, "[available: `>=9.0.0`] New.", truncate(context.Background(), truncateFull, d))
	assert.Empty(t, truncate(context.Background(), truncateLine, d))
}

func TestDescriber_SourceLabel(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	d := describer{folders: []string{root}, document: untitled}

	assert.Equal(t, "built-in", d.sourceLabel(reference.BuiltinID))
	assert.Equal(t, "built-in", d.sourceLabel(reference.OperationID))
	assert.Equal(t, "external", d.sourceLabel(reference.ExternalID))
	assert.Equal(t, "local", d.sourceLabel(reference.LocalID))
	assert.Equal(t, "sub/a.ipf", d.sourceLabel(PathToURI(filepath.Join(root, "sub", "a.ipf"))))
	assert.Equal(t, untitled, d.sourceLabel(untitled))
}

func TestDescriber_RelativeMultiRoot(t *testing.T) {
	t.Parallel()
	first, second := t.TempDir(), t.TempDir()
	d := describer{folders: []string{first, second}}

	got := d.relative(PathToURI(filepath.Join(second, "b.ipf")))
	assert.Equal(t, filepath.Base(second)+"/b.ipf", got)
}

func TestDescriber_Short(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fileURI := PathToURI(filepath.Join(root, "lib.ipf"))
	d := describer{folders: []string{root}, document: untitled}
	loc := &span.Range{Start: span.Position{Line: 4}}

	fn := reference.Item{Signature: "Foo(a)", Category: reference.Function, Location: loc}
	assert.Equal(t, "Foo(a) // built-in function", d.short(fn, reference.BuiltinID, false))
	assert.Equal(t, "Foo(a) // external function", d.short(fn, reference.ExternalID, false))
	assert.Equal(t, "Foo(a) // function defined at l.5 in this file", d.short(fn, untitled, false))
	assert.Equal(t, "Foo(a) // function defined in lib.ipf", d.short(fn, fileURI, false))

	static := fn
	static.IsStatic = true
	static.Location = nil
	assert.Equal(t, "Foo(a) // static function defined in this file", d.short(static, untitled, false))

	md := d.short(fn, fileURI, true)
	assert.Equal(t, "```\nFoo(a) // user-defined function\n```\n\n_defined in_ [lib.ipf]("+fileURI+").\n\n", md)

	over := reference.Item{
		Signature: "Bar(x)",
		Category:  reference.Function,
		Overloads: []reference.Overload{{Signature: "Bar(x)"}, {Signature: "Bar(x, y)"}},
	}
	assert.Equal(t, "Bar(x) // built-in function, 2 overloads", d.short(over, reference.BuiltinID, false))
}
