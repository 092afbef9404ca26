package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/parser"
	"github.com/jward/ipfls/internal/span"
)

const uri = "file:///work/a.ipf"

func wait(t *testing.T, s *Session) *Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestStart_Document(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), uri, DocumentSource{Text: "Function Foo()\nEnd\n"}, Options{Diagnose: true, KeepTree: true})
	res := wait(t, s)
	require.NotNil(t, res)
	assert.Contains(t, res.Book, "foo")
	assert.NotNil(t, res.Tree)
	require.Len(t, res.Symbols, 1)
	assert.NotNil(t, res.Diagnostics)
	assert.Empty(t, res.Diagnostics)
	assert.False(t, s.Running())
	assert.Equal(t, uri, s.URI())
	assert.NotEmpty(t, s.ID())
}

func TestStart_WithoutTreeOrDiagnostics(t *testing.T) {
	t.Parallel()

	res := wait(t, Start(context.Background(), uri, DocumentSource{Text: "Function Foo()\n"}, Options{}))
	require.NotNil(t, res)
	assert.NotNil(t, res.Book)
	assert.Empty(t, res.Book)
	assert.Nil(t, res.Tree)
	assert.Nil(t, res.Symbols)
	assert.Nil(t, res.Diagnostics)
}

func TestStart_SyntaxError(t *testing.T) {
	t.Parallel()

	res := wait(t, Start(context.Background(), uri, DocumentSource{Text: "\nFunction Foo()\n"}, Options{Diagnose: true}))
	require.NotNil(t, res)
	assert.NotNil(t, res.Book)
	assert.Empty(t, res.Book)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, `"Function" is missing "end"`, d.Message)
	assert.Equal(t, 1, d.Range.Start.Line)
}

func TestStart_UnknownErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parse ParseFunc
	}{
		{"error", func(string, parser.Options) (*ast.Program, error) { return nil, errors.New("boom") }},
		{"panic", func(string, parser.Options) (*ast.Program, error) { panic("kaboom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := wait(t, Start(context.Background(), uri, DocumentSource{Text: "x"}, Options{Diagnose: true, Parse: tt.parse}))
			require.NotNil(t, res)
			assert.Empty(t, res.Book)
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, UnknownErrorMessage, res.Diagnostics[0].Message)
			assert.Equal(t, span.Range{}, res.Diagnostics[0].Range)
		})
	}
}

func TestStart_ProblemsBecomeWarnings(t *testing.T) {
	t.Parallel()

	res := wait(t, Start(context.Background(), uri, DocumentSource{Text: "x = 1\nFunction F()\nEnd\n"}, Options{Diagnose: true}))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
	assert.Contains(t, res.Book, "f")
}

func blockingParse(release <-chan struct{}) ParseFunc {
	return func(text string, opts parser.Options) (*ast.Program, error) {
		<-release
		return parser.Parse(text, opts)
	}
}

func TestCancel_DiscardsResult(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	settled := make(chan struct{}, 1)
	s := Start(context.Background(), uri, DocumentSource{Text: "Function Foo()\nEnd\n"}, Options{
		Parse:    blockingParse(release),
		OnSettle: func(*Session, *Result) { settled <- struct{}{} },
	})
	assert.True(t, s.Running())

	s.Cancel()
	close(release)

	res := wait(t, s)
	assert.Nil(t, res)
	assert.False(t, s.Running())
	assert.Empty(t, settled)

	s.Cancel()
}

func TestWait_ContextDone(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	s := Start(context.Background(), uri, DocumentSource{Text: "Function Foo()\nEnd\n"}, Options{Parse: blockingParse(release)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Wait(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOnSettle(t *testing.T) {
	t.Parallel()

	got := make(chan *Result, 1)
	s := Start(context.Background(), uri, DocumentSource{Text: "Constant k = 1\n"}, Options{
		OnSettle: func(_ *Session, r *Result) { got <- r },
	})
	select {
	case r := <-got:
		assert.Contains(t, r.Book, "k")
	case <-time.After(5 * time.Second):
		t.Fatal("OnSettle not called")
	}
	<-s.Done()
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lib.ipf")
	require.NoError(t, os.WriteFile(path, []byte("Function Lib()\nEnd\n"), 0o644))

	res := wait(t, Start(context.Background(), "file://"+path, FileSource{Path: path}, Options{}))
	assert.Contains(t, res.Book, "lib")

	missing := wait(t, Start(context.Background(), "file:///nope.ipf", FileSource{Path: filepath.Join(dir, "nope.ipf")}, Options{Diagnose: true}))
	assert.Empty(t, missing.Book)
	require.Len(t, missing.Diagnostics, 1)
	assert.Equal(t, UnknownErrorMessage, missing.Diagnostics[0].Message)
}

func TestDerive_Strip(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), uri, DocumentSource{Text: "Function Foo()\nEnd\n"}, Options{Diagnose: true, KeepTree: true})
	d := Derive(context.Background(), s, (*Result).Strip)

	res := wait(t, d)
	require.NotNil(t, res)
	assert.Contains(t, res.Book, "foo")
	assert.Nil(t, res.Tree)
	assert.Nil(t, res.Symbols)
	assert.Nil(t, res.Diagnostics)
	assert.Equal(t, uri, d.URI())
}

func TestDerive_CancelledPrevious(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	s := Start(context.Background(), uri, DocumentSource{Text: "Function Foo()\nEnd\n"}, Options{Parse: blockingParse(release)})
	d := Derive(context.Background(), s, (*Result).Strip)
	d.Cancel()
	close(release)

	assert.Nil(t, wait(t, d))
	assert.Nil(t, wait(t, s))
}
