package ipfls

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/config"
	"github.com/jward/ipfls/internal/parser"
	"github.com/jward/ipfls/internal/reference"
)

// testBuiltins is a small deterministic replacement for the embedded books.
func testBuiltins() reference.BuiltinSet {
	return reference.BuiltinSet{
		Builtin: reference.Book{
			"sin": {Signature: "sin(angle)", Category: reference.Function, Description: "Returns the sine. Angle is in radians."},
			"abs": {
				Signature:   "abs(num)",
				Category:    reference.Function,
				Description: "Absolute value.",
				Overloads: []reference.Overload{
					{Signature: "abs(num)", Description: "Real input."},
					{Signature: "abs(z)", Description: "Complex input."},
				},
			},
			"newfeature": {Signature: "NewFeature()", Category: reference.Function, Available: &reference.VersionRange{Range: ">=9.1.0"}},
			"oldthing":   {Signature: "OldThing()", Category: reference.Function, Deprecated: &reference.VersionRange{Range: ">=9.0.0"}},
			"pi":         {Signature: "Pi", Category: reference.Constant},
		},
		Operation: reference.Book{
			"make": {Signature: "Make [flags] waveName", Category: reference.Operation},
		},
		Extra: reference.Book{},
	}
}

func testConfig(version string) *config.Config {
	cfg := config.Default()
	cfg.IgorVersion = version
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithBuiltins(testBuiltins()), WithConfig(testConfig("9.10"))}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// sourceBook returns the book registered for id after every session settled.
func sourceBook(t *testing.T, e *Engine, id string) (reference.Book, bool) {
	t.Helper()
	sources, err := e.Query().Sources(testCtx(t))
	require.NoError(t, err)
	for _, src := range sources {
		if src.ID == id {
			return src.Book, true
		}
	}
	return nil, false
}

// diagRecorder collects published diagnostics per uri.
type diagRecorder struct {
	mu    sync.Mutex
	calls map[string][][]Diagnostic
}

func newDiagRecorder() *diagRecorder {
	return &diagRecorder{calls: make(map[string][][]Diagnostic)}
}

func (r *diagRecorder) handle(uri string, diags []Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[uri] = append(r.calls[uri], diags)
}

func (r *diagRecorder) last(uri string) ([]Diagnostic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls[uri]
	if len(calls) == 0 {
		return nil, false
	}
	return calls[len(calls)-1], true
}

func (r *diagRecorder) count(uri string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[uri])
}

const untitled = "untitled:Untitled-1"

// =============================================================================
// Construction
// =============================================================================

func TestNew_EmbeddedBuiltins(t *testing.T) {
	t.Parallel()
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.runtime)
	assert.NotEmpty(t, e.builtins.Builtin)
	assert.NotEmpty(t, e.builtins.Operation)
	assert.Equal(t, "9.01", e.Config().IgorVersion)
}

func TestNew_ExternalBookFailureStillUsable(t *testing.T) {
	t.Parallel()
	cfg := testConfig("9.10")
	cfg.SymbolFile = filepath.Join(t.TempDir(), "missing.yaml")

	e, err := New(WithBuiltins(testBuiltins()), WithConfig(cfg))
	require.Error(t, err)
	require.NotNil(t, e)
	defer e.Close()

	book, ok := sourceBook(t, e, reference.ExternalID)
	require.True(t, ok)
	assert.Empty(t, book)
}

func TestNew_ExternalBookYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "symbols.yaml"), `
function:
  ExtFunc:
    signature: ExtFunc(x)
    description: External function.
operation:
  Frobnicate:
    signature: Frobnicate [flags] w
`)
	cfg := testConfig("9.10")
	cfg.SymbolFile = "${workspaceFolder}/symbols.yaml"

	e := newTestEngine(t, WithConfig(cfg), WithFolders(dir))
	book, ok := sourceBook(t, e, reference.ExternalID)
	require.True(t, ok)
	assert.Equal(t, []string{"extfunc", "frobnicate"}, book.Keys())
	assert.True(t, e.operations["frobnicate"])
	assert.True(t, e.operations["make"])
}

func TestNew_ExternalBookScript(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "book.risor"), `
import igor
book := {}
book["function"] = {"ExtScript": igor.item("ExtScript(a)", "From a script.")}
book
`)
	cfg := testConfig("9.10")
	cfg.SymbolFile = path

	e := newTestEngine(t, WithConfig(cfg))
	book, ok := sourceBook(t, e, reference.ExternalID)
	require.True(t, ok)
	it, ok := book.Lookup("extscript")
	require.True(t, ok)
	assert.Equal(t, "From a script.", it.Description)
	assert.Equal(t, reference.Function, it.Category)
}

// =============================================================================
// Document events
// =============================================================================

func TestOpenDocument_IndexesBook(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Foo()\nEnd\n"))
	require.NoError(t, e.Wait(ctx))

	book, ok := sourceBook(t, e, untitled)
	require.True(t, ok)
	assert.Equal(t, []string{"foo"}, book.Keys())
	assert.Equal(t, []string{untitled}, e.URIs())

	text, ok := e.DocumentText(untitled)
	require.True(t, ok)
	assert.Equal(t, "Function Foo()\nEnd\n", text)
}

func TestChangeDocument_ReplacesBook(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Foo()\nEnd\n"))
	require.NoError(t, e.ChangeDocument(ctx, untitled, "Function Bar()\nEnd\n"))
	require.NoError(t, e.SaveDocument(ctx, untitled))

	book, ok := sourceBook(t, e, untitled)
	require.True(t, ok)
	assert.Equal(t, []string{"bar"}, book.Keys())
	assert.Len(t, e.URIs(), 1)
}

func TestDocumentEvents_NotOpen(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := testCtx(t)

	assert.ErrorIs(t, e.ChangeDocument(ctx, untitled, "x"), ErrNotOpen)
	assert.ErrorIs(t, e.SaveDocument(ctx, untitled), ErrNotOpen)
	assert.ErrorIs(t, e.CloseDocument(ctx, untitled), ErrNotOpen)
}

func TestOpenDocument_GitSchemeIgnored(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, "git:/w/a.ipf?ref=HEAD", "Function Foo()\nEnd\n"))
	assert.Empty(t, e.URIs())
	_, ok := e.DocumentText("git:/w/a.ipf?ref=HEAD")
	assert.False(t, ok)
}

func TestDiagnostics_FailureThenRecovery(t *testing.T) {
	t.Parallel()
	rec := newDiagRecorder()
	e := newTestEngine(t, WithDiagnosticsHandler(rec.handle))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Foo()\n\tVariable a\n"))
	diags, err := e.Diagnostics(ctx, untitled)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, `"Function" is missing "end"`, diags[0].Message)
	book, _ := sourceBook(t, e, untitled)
	assert.Empty(t, book)

	require.Eventually(t, func() bool {
		d, ok := rec.last(untitled)
		return ok && len(d) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, e.ChangeDocument(ctx, untitled, "Function Foo()\n\tVariable a\nEnd\n"))
	diags, err = e.Diagnostics(ctx, untitled)
	require.NoError(t, err)
	assert.Empty(t, diags)
	book, _ = sourceBook(t, e, untitled)
	assert.Contains(t, book, "foo")

	require.Eventually(t, func() bool {
		d, ok := rec.last(untitled)
		return ok && len(d) == 0 && rec.count(untitled) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestChangeDocument_SupersedesRunningSession(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	parse := func(text string, opts parser.Options) (*ast.Program, error) {
		if strings.Contains(text, "Slow") {
			<-release
		}
		return parser.Parse(text, opts)
	}
	rec := newDiagRecorder()
	e := newTestEngine(t, WithParseFunc(parse), WithDiagnosticsHandler(rec.handle))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Slow()\nEnd\n"))
	require.NoError(t, e.ChangeDocument(ctx, untitled, "Function Fast()\nEnd\n"))

	// The first session is still blocked; only the second one is waited on.
	book, ok := sourceBook(t, e, untitled)
	require.True(t, ok)
	assert.Equal(t, []string{"fast"}, book.Keys())

	require.Eventually(t, func() bool { return rec.count(untitled) == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestChangeDocument_SlowPublishNotOverridden(t *testing.T) {
	t.Parallel()
	rec := newDiagRecorder()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	handle := func(uri string, diags []Diagnostic) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(entered)
			<-release
		}
		rec.handle(uri, diags)
	}
	e := newTestEngine(t, WithDiagnosticsHandler(handle))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function broken(\n"))
	select {
	case <-entered:
	case <-ctx.Done():
		t.Fatal("first publish never started")
	}
	require.NoError(t, e.ChangeDocument(ctx, untitled, "Function ok()\nEnd\n"))
	require.NoError(t, e.Wait(ctx))
	close(release)

	require.Eventually(t, func() bool { return rec.count(untitled) == 2 }, 5*time.Second, 10*time.Millisecond)
	d, _ := rec.last(untitled)
	assert.Empty(t, d)
	current, err := e.Diagnostics(ctx, untitled)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestCloseDocument_ClearSkipsRepublished(t *testing.T) {
	t.Parallel()
	rec := newDiagRecorder()
	e := newTestEngine(t, WithDiagnosticsHandler(rec.handle))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Foo()\n"))
	require.NoError(t, e.Wait(ctx))
	require.Eventually(t, func() bool { return rec.count(untitled) == 1 }, 5*time.Second, 10*time.Millisecond)

	// A clear queued for a uri whose new session already published is dropped.
	e.mu.Lock()
	e.published[untitled] = true
	e.mu.Unlock()
	e.clearDiagnostics([]string{untitled})
	assert.Equal(t, 1, rec.count(untitled))

	require.NoError(t, e.CloseDocument(ctx, untitled))
	d, ok := rec.last(untitled)
	require.True(t, ok)
	assert.Empty(t, d)
	assert.Equal(t, 2, rec.count(untitled))
}

func TestCloseDocument_KeepsWorkspaceFileBook(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "a.ipf"), "Function OnDisk()\nEnd\n")
	uri := PathToURI(path)
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))

	require.NoError(t, e.OpenDocument(ctx, uri, "Function Live()\nEnd\n"))
	syms, err := e.Query().DocumentSymbols(ctx, uri)
	require.NoError(t, err)
	require.Len(t, syms, 1)

	require.NoError(t, e.CloseDocument(ctx, uri))
	assert.Equal(t, []string{uri}, e.URIs())

	book, ok := sourceBook(t, e, uri)
	require.True(t, ok)
	assert.Equal(t, []string{"live"}, book.Keys())

	syms, err = e.Query().DocumentSymbols(ctx, uri)
	require.NoError(t, err)
	assert.Empty(t, syms)
	diags, err := e.Diagnostics(ctx, uri)
	require.NoError(t, err)
	assert.Nil(t, diags)
}

func TestCloseDocument_RemovesOutsideResource(t *testing.T) {
	t.Parallel()
	rec := newDiagRecorder()
	e := newTestEngine(t, WithDiagnosticsHandler(rec.handle))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Foo()\nEnd\n"))
	require.NoError(t, e.Wait(ctx))
	require.Eventually(t, func() bool { return rec.count(untitled) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, e.CloseDocument(ctx, untitled))
	assert.Empty(t, e.URIs())
	_, ok := sourceBook(t, e, untitled)
	assert.False(t, ok)

	d, ok := rec.last(untitled)
	require.True(t, ok)
	assert.Empty(t, d)
	assert.NotNil(t, d)
}

// =============================================================================
// Workspace events
// =============================================================================

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.ipf"), "Function A()\nEnd\n")
	writeFile(t, filepath.Join(dir, "sub", "b.ipf"), "Function B()\nEnd\n")
	return dir
}

func TestRefresh_DiscoversWorkspace(t *testing.T) {
	t.Parallel()
	dir := newWorkspace(t)
	writeFile(t, filepath.Join(dir, "notes.txt"), "Function N()\nEnd\n")
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, untitled, "Function U()\nEnd\n"))
	require.NoError(t, e.Refresh(ctx))
	require.NoError(t, e.Wait(ctx))

	assert.Equal(t, []string{
		untitled,
		PathToURI(filepath.Join(dir, "a.ipf")),
		PathToURI(filepath.Join(dir, "sub", "b.ipf")),
	}, e.URIs())

	book, ok := sourceBook(t, e, PathToURI(filepath.Join(dir, "sub", "b.ipf")))
	require.True(t, ok)
	assert.Contains(t, book, "b")
}

func TestOpenDocument_EditorEncodedURIMatchesDiscovered(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a&b.ipf"), "Function AB()\nEnd\n")
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)

	require.NoError(t, e.Refresh(ctx))
	require.NoError(t, e.Wait(ctx))
	discovered := PathToURI(filepath.Join(dir, "a&b.ipf"))
	require.Equal(t, []string{discovered}, e.URIs())

	raw := "file://" + filepath.ToSlash(filepath.Join(dir, "a&b.ipf"))
	require.NoError(t, e.OpenDocument(ctx, raw, "Function Edited()\nEnd\n"))
	assert.Equal(t, []string{discovered}, e.URIs())

	text, ok := e.DocumentText(raw)
	require.True(t, ok)
	assert.Contains(t, text, "Edited")
	book, ok := sourceBook(t, e, discovered)
	require.True(t, ok)
	assert.Equal(t, []string{"edited"}, book.Keys())
}

func TestRefresh_OpenDocumentWinsOverDisk(t *testing.T) {
	t.Parallel()
	dir := newWorkspace(t)
	uri := PathToURI(filepath.Join(dir, "a.ipf"))
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)

	require.NoError(t, e.OpenDocument(ctx, uri, "Function Edited()\nEnd\n"))
	require.NoError(t, e.Refresh(ctx))

	book, ok := sourceBook(t, e, uri)
	require.True(t, ok)
	assert.Equal(t, []string{"edited"}, book.Keys())
	assert.Len(t, e.URIs(), 2)
}

func TestRenameFiles_Directory(t *testing.T) {
	t.Parallel()
	dir := newWorkspace(t)
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))

	oldDir := filepath.Join(dir, "sub")
	newDir := filepath.Join(dir, "moved")
	require.NoError(t, os.Rename(oldDir, newDir))
	require.NoError(t, e.RenameFiles(ctx, []FileRename{{OldURI: PathToURI(oldDir), NewURI: PathToURI(newDir)}}))

	assert.Equal(t, []string{
		PathToURI(filepath.Join(dir, "a.ipf")),
		PathToURI(filepath.Join(newDir, "b.ipf")),
	}, e.URIs())
}

func TestRenameFiles_SingleFile(t *testing.T) {
	t.Parallel()
	dir := newWorkspace(t)
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))

	oldPath := filepath.Join(dir, "a.ipf")
	newPath := filepath.Join(dir, "c.ipf")
	require.NoError(t, os.Rename(oldPath, newPath))
	require.NoError(t, e.RenameFiles(ctx, []FileRename{{OldURI: PathToURI(oldPath), NewURI: PathToURI(newPath)}}))

	uris := e.URIs()
	assert.NotContains(t, uris, PathToURI(oldPath))
	assert.Contains(t, uris, PathToURI(newPath))
	book, ok := sourceBook(t, e, PathToURI(newPath))
	require.True(t, ok)
	assert.Contains(t, book, "a")
}

func TestDeleteFiles_Directory(t *testing.T) {
	t.Parallel()
	dir := newWorkspace(t)
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))

	require.NoError(t, e.DeleteFiles(ctx, []string{PathToURI(filepath.Join(dir, "sub"))}))
	assert.Equal(t, []string{PathToURI(filepath.Join(dir, "a.ipf"))}, e.URIs())
}

func TestSetFolders_Reindexes(t *testing.T) {
	t.Parallel()
	first := newWorkspace(t)
	second := t.TempDir()
	writeFile(t, filepath.Join(second, "z.ipf"), "Function Z()\nEnd\n")
	e := newTestEngine(t, WithFolders(first))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))
	require.Len(t, e.URIs(), 2)

	require.NoError(t, e.SetFolders(ctx, []string{second}))
	assert.Equal(t, []string{second}, e.Folders())
	assert.Equal(t, []string{PathToURI(filepath.Join(second, "z.ipf"))}, e.URIs())
}

func TestConfigure_AssociationsReindex(t *testing.T) {
	t.Parallel()
	dir := newWorkspace(t)
	writeFile(t, filepath.Join(dir, "extra.proc"), "Function P()\nEnd\n")
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))
	require.Len(t, e.URIs(), 2)

	cfg := testConfig("9.10")
	cfg.Associations["*.proc"] = config.Language
	cfg.Associations["sub/**"] = "plaintext"
	require.NoError(t, e.Configure(ctx, cfg))

	assert.Equal(t, []string{
		PathToURI(filepath.Join(dir, "a.ipf")),
		PathToURI(filepath.Join(dir, "extra.proc")),
	}, e.URIs())
}

func TestConfigure_UnchangedIsNoop(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := testCtx(t)
	require.NoError(t, e.OpenDocument(ctx, untitled, "Function Foo()\nEnd\n"))
	require.NoError(t, e.Wait(ctx))
	before := e.entries[untitled].session

	cfg := testConfig("9.10")
	cfg.SuppressMessages[config.SuppressHoverContents] = true
	require.NoError(t, e.Configure(ctx, cfg))

	assert.Same(t, before, e.entries[untitled].session)
	assert.True(t, e.Config().Suppressed(config.SuppressHoverContents))
}
