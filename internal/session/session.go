// Package session runs one cancellable parse-and-extract unit of work for a
// single resource.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/extract"
	"github.com/jward/ipfls/internal/logging"
	"github.com/jward/ipfls/internal/parser"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/span"
)

// UnknownErrorMessage is the diagnostic text for failures other than syntax
// errors.
const UnknownErrorMessage = "Unknown error in syntax parsing"

// Source supplies the text a session parses.
type Source interface {
	Read() (string, error)
}

// DocumentSource is live editor text.
type DocumentSource struct {
	Text string
}

func (d DocumentSource) Read() (string, error) { return d.Text, nil }

// FileSource reads a file from disk when the session runs.
type FileSource struct {
	Path string
}

func (f FileSource) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Path, err)
	}
	return string(data), nil
}

// Severity follows the LSP DiagnosticSeverity values.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Diagnostic is a problem reported for a resource.
type Diagnostic struct {
	Range    span.Range `json:"range"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
}

// Result is what a settled session produced. Book is never nil. Tree and
// Symbols are set only when the session kept the tree, and Diagnostics only
// when it diagnosed.
type Result struct {
	Book        reference.Book
	Tree        *ast.Program
	Symbols     []extract.Symbol
	Diagnostics []Diagnostic
}

// Strip returns a copy holding only the book.
func (r *Result) Strip() *Result {
	if r == nil {
		return nil
	}
	return &Result{Book: r.Book}
}

// ParseFunc parses procedure text.
type ParseFunc func(text string, opts parser.Options) (*ast.Program, error)

// Options configures Start.
type Options struct {
	Parser   parser.Options
	Diagnose bool
	KeepTree bool
	Logger   *slog.Logger
	// Parse replaces parser.Parse when set.
	Parse ParseFunc
	// OnSettle runs on the session goroutine after a result is available. It
	// is not called when the session was cancelled.
	OnSettle func(*Session, *Result)
}

// Session is one in-flight or settled unit of work.
type Session struct {
	id     string
	uri    string
	logger *slog.Logger
	done   chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	result *Result
}

// Start launches a session for uri. Cancelling parent cancels the session.
func Start(parent context.Context, uri string, src Source, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := newSession(uri, cancel, opts.Logger)
	s.logger.Debug("session started")

	go func() {
		res := s.run(ctx, src, opts)
		if ctx.Err() != nil {
			s.logger.Debug("session cancelled")
			res = nil
		}
		s.settle(res)
		if res != nil && opts.OnSettle != nil {
			opts.OnSettle(s, res)
		}
	}()
	return s
}

// Derive starts a session that settles with transform applied to prev's
// result. Cancelling the derived session also cancels prev.
func Derive(parent context.Context, prev *Session, transform func(*Result) *Result) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := newSession(prev.uri, func() {
		cancel()
		prev.Cancel()
	}, prev.logger)

	go func() {
		res, err := prev.Wait(ctx)
		if err != nil || res == nil {
			res = nil
		} else {
			res = transform(res)
		}
		s.settle(res)
	}()
	return s
}

func newSession(uri string, cancel context.CancelFunc, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		uri:    uri,
		logger: logging.OrDiscard(logger).With("session_id", id, "uri", uri),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// URI returns the resource the session parses.
func (s *Session) URI() string { return s.uri }

// Done is closed when the session settles.
func (s *Session) Done() <-chan struct{} { return s.done }

// Running reports whether the session has not settled yet.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cancel asks the session to discard its result. It never blocks.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the session settles or ctx is done. The result is nil
// for a cancelled session. The error is only ever ctx.Err().
func (s *Session) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) settle(res *Result) {
	s.mu.Lock()
	s.result = res
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	close(s.done)
}

func (s *Session) run(ctx context.Context, src Source, opts Options) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = s.failed(fmt.Errorf("panic: %v", r), opts)
		}
	}()

	text, err := src.Read()
	if err != nil {
		return s.failed(err, opts)
	}
	parse := opts.Parse
	if parse == nil {
		parse = parser.Parse
	}
	prog, err := parse(text, opts.Parser)
	if err != nil {
		return s.failed(err, opts)
	}
	if ctx.Err() != nil {
		return nil
	}

	book, symbols := extract.Extract(prog, extract.WithLogger(s.logger))
	if ctx.Err() != nil {
		return nil
	}

	res = &Result{Book: book}
	if opts.KeepTree {
		res.Tree = prog
		res.Symbols = symbols
	}
	if opts.Diagnose {
		res.Diagnostics = []Diagnostic{}
		for _, p := range prog.Problems {
			d := Diagnostic{Severity: SeverityWarning, Message: p.Message}
			if r := span.FromLocation(p.Loc); r != nil {
				d.Range = *r
			}
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}
	s.logger.Debug("session settled", "items", len(book), "problems", len(prog.Problems))
	return res
}

func (s *Session) failed(err error, opts Options) *Result {
	res := &Result{Book: reference.Book{}}
	var d Diagnostic
	var syntaxErr *parser.SyntaxError
	if errors.As(err, &syntaxErr) {
		s.logger.Debug("syntax error", "error", err)
		d = Diagnostic{Severity: SeverityError, Message: syntaxErr.Message}
		if r := span.FromLocation(syntaxErr.Location); r != nil {
			d.Range = *r
		}
	} else {
		s.logger.Warn("unknown error in syntax parsing", "error", err)
		d = Diagnostic{Severity: SeverityError, Message: UnknownErrorMessage}
	}
	if opts.Diagnose {
		res.Diagnostics = []Diagnostic{d}
	}
	return res
}
