package ipfls

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/jward/ipfls/internal/config"
	"github.com/jward/ipfls/internal/logging"
	"github.com/jward/ipfls/internal/parser"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/runtime"
	"github.com/jward/ipfls/internal/session"
	"github.com/jward/ipfls/scripts"
)

// ErrNotOpen is returned for document operations on a uri that was never
// opened.
var ErrNotOpen = errors.New("ipfls: document not open")

// DiagnosticsHandler receives the diagnostics of a document whenever its
// newest session settles. An empty slice clears previously published
// diagnostics.
type DiagnosticsHandler func(uri string, diags []Diagnostic)

// FileRename is one entry of a rename event.
type FileRename struct {
	OldURI string `json:"oldUri"`
	NewURI string `json:"newUri"`
}

// entry is the registry slot for one resource. Entries are replaced, never
// mutated.
type entry struct {
	session  *session.Session
	document bool
}

// Engine is the session registry. It owns one update session per resource
// and the reference books shared by every query.
type Engine struct {
	logger      *slog.Logger
	runtime     *runtime.Runtime
	scriptsFS   fs.FS
	parse       session.ParseFunc
	onDiagnose  DiagnosticsHandler
	builtinsSet bool

	ctx    context.Context
	cancel context.CancelFunc

	// pubMu orders diagnostics publication. It is taken before mu.
	pubMu sync.Mutex

	mu         sync.RWMutex
	cfg        *config.Config
	gate       *reference.Gate
	builtins   reference.BuiltinSet
	external   reference.Book
	operations map[string]bool
	folders    []string
	entries    map[string]*entry
	order      []string // registration order of entries
	documents  map[string]string
	docOrder   []string
	published  map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Sessions inherit it.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrDiscard(l)
	}
}

// WithConfig sets the initial configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.cfg = cfg
		}
	}
}

// WithFolders sets the initial workspace folders.
func WithFolders(folders ...string) Option {
	return func(e *Engine) {
		e.folders = slices.Clone(folders)
	}
}

// WithDiagnosticsHandler registers the diagnostics callback.
func WithDiagnosticsHandler(h DiagnosticsHandler) Option {
	return func(e *Engine) {
		e.onDiagnose = h
	}
}

// WithBuiltins replaces the embedded built-in books.
func WithBuiltins(set reference.BuiltinSet) Option {
	return func(e *Engine) {
		e.builtins = set
		e.builtinsSet = true
	}
}

// WithScriptsFS sets the filesystem Risor book scripts import helper
// modules from. It defaults to the embedded helper library.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithParseFunc replaces the procedure parser.
func WithParseFunc(fn session.ParseFunc) Option {
	return func(e *Engine) {
		e.parse = fn
	}
}

// New creates an Engine. The external reference book, if configured, is
// loaded before New returns; a failure to load it is returned together
// with a usable Engine. Call Refresh to index the workspace folders.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:    logging.NewDiscardLogger(),
		cfg:       config.Default(),
		entries:   make(map[string]*entry),
		documents: make(map[string]string),
		published: make(map[string]bool),
		external:  reference.Book{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.builtinsSet {
		set, err := reference.Builtins()
		if err != nil {
			return nil, fmt.Errorf("ipfls: load built-ins: %w", err)
		}
		e.builtins = set
	}
	if e.scriptsFS == nil {
		e.scriptsFS = scripts.FS
	}
	e.runtime = runtime.NewRuntime("", runtime.WithRuntimeFS(e.scriptsFS), runtime.WithLogger(e.logger))
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.gate = reference.NewGate(reference.ParseIgorVersion(e.cfg.IgorVersion))
	e.operations = reference.OperationNames(e.builtins.Operation)

	if err := e.ReloadExternal(e.ctx); err != nil {
		return e, err
	}
	return e, nil
}

// Close cancels every session.
func (e *Engine) Close() error {
	e.cancel()
	return nil
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Folders returns the workspace folders.
func (e *Engine) Folders() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.folders)
}

// URIs returns the registered resources in registration order.
func (e *Engine) URIs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

// Query returns a new QueryBuilder over the engine.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e}
}

// --- Session lifecycle ---

func (e *Engine) sessionOptions(document bool) session.Options {
	return session.Options{
		Parser:   parser.Options{Operations: e.operations},
		Diagnose: document,
		KeepTree: document,
		Logger:   e.logger,
		Parse:    e.parse,
		OnSettle: e.settled,
	}
}

// startLocked supersedes any session for uri. The caller holds e.mu.
func (e *Engine) startLocked(uri string, src session.Source, document bool) {
	s := session.Start(e.ctx, uri, src, e.sessionOptions(document))
	e.replaceLocked(uri, &entry{session: s, document: document})
}

func (e *Engine) replaceLocked(uri string, next *entry) {
	if prev, ok := e.entries[uri]; ok {
		prev.session.Cancel()
	} else {
		e.order = append(e.order, uri)
	}
	e.entries[uri] = next
}

// removeLocked drops uri from the registry and returns whether it had
// published diagnostics.
func (e *Engine) removeLocked(uri string) bool {
	if prev, ok := e.entries[uri]; ok {
		prev.session.Cancel()
		delete(e.entries, uri)
		e.order = slices.DeleteFunc(e.order, func(u string) bool { return u == uri })
	}
	return e.unpublishLocked(uri)
}

func (e *Engine) unpublishLocked(uri string) bool {
	had := e.published[uri]
	delete(e.published, uri)
	return had
}

// settled publishes diagnostics of a session that is still current.
func (e *Engine) settled(s *session.Session, res *session.Result) {
	if res.Diagnostics == nil || e.onDiagnose == nil {
		return
	}
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.Lock()
	cur, ok := e.entries[s.URI()]
	current := ok && cur.session == s
	if current {
		e.published[s.URI()] = true
	}
	e.mu.Unlock()
	if current {
		e.onDiagnose(s.URI(), res.Diagnostics)
	}
}

// clearDiagnostics publishes empty diagnostics for uris, skipping any that
// a newer session has published since they were unpublished.
func (e *Engine) clearDiagnostics(uris []string) {
	if e.onDiagnose == nil {
		return
	}
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	for _, uri := range uris {
		e.mu.RLock()
		republished := e.published[uri]
		e.mu.RUnlock()
		if !republished {
			e.onDiagnose(uri, []Diagnostic{})
		}
	}
}

func (e *Engine) fileSource(uri string) (session.Source, bool) {
	path, ok := URIToPath(uri)
	if !ok {
		return nil, false
	}
	return session.FileSource{Path: path}, true
}

// --- Events ---

// OpenDocument registers live editor text for uri and parses it.
func (e *Engine) OpenDocument(ctx context.Context, uri, text string) error {
	uri = NormalizeURI(uri)
	if ignoredURI(uri) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.documents[uri]; !ok {
		e.docOrder = append(e.docOrder, uri)
	}
	e.documents[uri] = text
	e.startLocked(uri, session.DocumentSource{Text: text}, true)
	return nil
}

// ChangeDocument replaces the text of an open document and re-parses it.
func (e *Engine) ChangeDocument(ctx context.Context, uri, text string) error {
	uri = NormalizeURI(uri)
	if ignoredURI(uri) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.documents[uri]; !ok {
		return fmt.Errorf("ipfls: change %s: %w", uri, ErrNotOpen)
	}
	e.documents[uri] = text
	e.startLocked(uri, session.DocumentSource{Text: text}, true)
	return nil
}

// SaveDocument re-parses an open document from its current text.
func (e *Engine) SaveDocument(ctx context.Context, uri string) error {
	uri = NormalizeURI(uri)
	if ignoredURI(uri) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	text, ok := e.documents[uri]
	if !ok {
		return fmt.Errorf("ipfls: save %s: %w", uri, ErrNotOpen)
	}
	e.startLocked(uri, session.DocumentSource{Text: text}, true)
	return nil
}

// DocumentText returns the live text of an open document.
func (e *Engine) DocumentText(uri string) (string, bool) {
	uri = NormalizeURI(uri)
	e.mu.RLock()
	defer e.mu.RUnlock()
	text, ok := e.documents[uri]
	return text, ok
}

// CloseDocument forgets the live text of uri. A file still in the workspace
// keeps its book; its tree, outline and diagnostics are dropped. Anything
// else is removed from the registry.
func (e *Engine) CloseDocument(ctx context.Context, uri string) error {
	uri = NormalizeURI(uri)
	if ignoredURI(uri) {
		return nil
	}
	e.mu.RLock()
	folders := slices.Clone(e.folders)
	assoc := e.cfg.Associations
	e.mu.RUnlock()

	keep := false
	if path, ok := URIToPath(uri); ok {
		keep = inWorkspace(path, folders, assoc)
	}

	e.mu.Lock()
	if _, ok := e.documents[uri]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("ipfls: close %s: %w", uri, ErrNotOpen)
	}
	delete(e.documents, uri)
	e.docOrder = slices.DeleteFunc(e.docOrder, func(u string) bool { return u == uri })

	var clear bool
	if prev, ok := e.entries[uri]; ok && keep {
		s := session.Derive(e.ctx, prev.session, (*session.Result).Strip)
		e.entries[uri] = &entry{session: s}
		clear = e.unpublishLocked(uri)
	} else {
		clear = e.removeLocked(uri)
	}
	e.mu.Unlock()

	if clear {
		e.clearDiagnostics([]string{uri})
	}
	return nil
}

// RenameFiles moves books from old to new locations. A renamed directory
// drops every registered resource beneath it and indexes the procedure
// files discovered beneath its new name.
func (e *Engine) RenameFiles(ctx context.Context, renames []FileRename) error {
	if len(renames) == 0 {
		return nil
	}
	renames = slices.Clone(renames)
	for i := range renames {
		renames[i].OldURI = NormalizeURI(renames[i].OldURI)
		renames[i].NewURI = NormalizeURI(renames[i].NewURI)
	}
	e.mu.RLock()
	folders := slices.Clone(e.folders)
	assoc := e.cfg.Associations
	e.mu.RUnlock()

	paths, err := discover(ctx, folders, assoc, e.logger)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("ipfls: rename: %w", err)
	}

	var news []string
	for _, r := range renames {
		for _, p := range paths {
			if uri := PathToURI(p); underDir(uri, r.NewURI) {
				news = append(news, uri)
			}
		}
	}

	e.mu.Lock()
	var olds []string
	for _, r := range renames {
		for _, uri := range e.order {
			if underDir(uri, r.OldURI) {
				olds = append(olds, uri)
			}
		}
	}
	var cleared []string
	for _, uri := range olds {
		if _, open := e.documents[uri]; open {
			continue
		}
		if e.removeLocked(uri) {
			cleared = append(cleared, uri)
		}
	}
	for _, uri := range news {
		if _, open := e.documents[uri]; open {
			continue
		}
		if src, ok := e.fileSource(uri); ok {
			e.startLocked(uri, src, false)
		}
	}
	e.mu.Unlock()

	e.clearDiagnostics(cleared)
	return err
}

// DeleteFiles removes the books of deleted files and of everything beneath
// deleted directories.
func (e *Engine) DeleteFiles(ctx context.Context, uris []string) error {
	normalized := make([]string, len(uris))
	for i, uri := range uris {
		normalized[i] = NormalizeURI(uri)
	}
	uris = normalized
	e.mu.Lock()
	var olds []string
	for _, deleted := range uris {
		for _, uri := range e.order {
			if underDir(uri, deleted) {
				olds = append(olds, uri)
			}
		}
	}
	var cleared []string
	for _, uri := range olds {
		if e.removeLocked(uri) {
			cleared = append(cleared, uri)
		}
	}
	e.mu.Unlock()

	e.clearDiagnostics(cleared)
	return nil
}

// SetFolders replaces the workspace folders and refreshes.
func (e *Engine) SetFolders(ctx context.Context, folders []string) error {
	e.mu.Lock()
	e.folders = slices.Clone(folders)
	e.mu.Unlock()
	if err := e.ReloadExternal(ctx); err != nil {
		e.logger.Warn("external symbols unavailable", "error", err)
	}
	return e.Refresh(ctx)
}

// Configure applies new settings. A change of the target version, the
// associations or the symbol file reloads the external book and refreshes.
func (e *Engine) Configure(ctx context.Context, cfg *config.Config) error {
	e.mu.Lock()
	prev := e.cfg
	e.cfg = cfg
	versionChanged := prev.IgorVersion != cfg.IgorVersion
	if versionChanged {
		e.gate = reference.NewGate(reference.ParseIgorVersion(cfg.IgorVersion))
	}
	e.mu.Unlock()

	symbolsChanged := prev.SymbolFile != cfg.SymbolFile
	if !versionChanged && !symbolsChanged && prev.SameAssociations(cfg) {
		return nil
	}

	var errs []error
	if versionChanged || symbolsChanged {
		if err := e.ReloadExternal(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.Refresh(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Refresh drops every session and diagnostic, then re-indexes open
// documents followed by the procedure files found in the workspace.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.RLock()
	folders := slices.Clone(e.folders)
	assoc := e.cfg.Associations
	e.mu.RUnlock()

	paths, err := discover(ctx, folders, assoc, e.logger)
	if ctx.Err() != nil {
		return fmt.Errorf("ipfls: refresh: %w", ctx.Err())
	}

	e.mu.Lock()
	var cleared []string
	for _, uri := range slices.Clone(e.order) {
		if e.removeLocked(uri) {
			cleared = append(cleared, uri)
		}
	}
	for _, uri := range e.docOrder {
		e.startLocked(uri, session.DocumentSource{Text: e.documents[uri]}, true)
	}
	for _, p := range paths {
		uri := PathToURI(p)
		if _, open := e.documents[uri]; open {
			continue
		}
		e.startLocked(uri, session.FileSource{Path: p}, false)
	}
	n := len(e.order)
	e.mu.Unlock()

	e.clearDiagnostics(cleared)
	e.logger.Info("workspace refreshed", "folders", len(folders), "resources", n)
	if err != nil {
		return fmt.Errorf("ipfls: refresh: %w", err)
	}
	return nil
}

// Wait blocks until every current session has settled.
func (e *Engine) Wait(ctx context.Context) error {
	for _, en := range e.snapshot() {
		if _, err := en.session.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

type snapshotEntry struct {
	uri      string
	session  *session.Session
	document bool
}

// snapshot returns the registered entries in registration order.
func (e *Engine) snapshot() []snapshotEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]snapshotEntry, 0, len(e.order))
	for _, uri := range e.order {
		en := e.entries[uri]
		out = append(out, snapshotEntry{uri: uri, session: en.session, document: en.document})
	}
	return out
}

// result waits for the current session of uri. It returns nil when uri is
// unknown or its session was superseded.
func (e *Engine) result(ctx context.Context, uri string) (*session.Result, error) {
	e.mu.RLock()
	en, ok := e.entries[uri]
	e.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return en.session.Wait(ctx)
}

// Diagnostics returns the diagnostics of an open document.
func (e *Engine) Diagnostics(ctx context.Context, uri string) ([]Diagnostic, error) {
	uri = NormalizeURI(uri)
	res, err := e.result(ctx, uri)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Diagnostics, nil
}
