package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/jward/ipfls"
	"github.com/jward/ipfls/internal/config"
	"github.com/spf13/cobra"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const (
	serverName = "ipfls"

	// MethodInspectSyntaxTree returns the syntax tree of an open document
	// as JSON.
	MethodInspectSyntaxTree = "ipfls/inspectSyntaxTree"
)

// version is overridden at link time.
var version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server over stdio",
	Long:  "Speaks the Language Server Protocol on stdin and stdout. Logs go to stderr or to the configured log file.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	cfg, err := loadConfig(findRepoRoot(cwd))
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ls := newLanguageServer(cmd.Context(), cfg, logger)
	defer ls.close()
	logger.Info("language server starting", "version", version)
	return server.NewServer(ls, serverName, false).RunStdio()
}

// languageServer adapts the engine to the protocol. The engine is created
// on initialize, once the workspace folders are known.
type languageServer struct {
	handler protocol.Handler
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	base   *config.Config
	engine *ipfls.Engine
	notify glsp.NotifyFunc
}

var errNotInitialized = errors.New("server not initialized")

func newLanguageServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) *languageServer {
	ls := &languageServer{base: cfg, logger: logger}
	ls.ctx, ls.cancel = context.WithCancel(ctx)
	ls.handler = protocol.Handler{
		Initialize:  ls.initialize,
		Initialized: ls.initialized,
		Shutdown:    ls.shutdown,
		SetTrace:    ls.setTrace,

		WorkspaceDidChangeConfiguration:    ls.didChangeConfiguration,
		WorkspaceDidChangeWorkspaceFolders: ls.didChangeWorkspaceFolders,
		WorkspaceDidRenameFiles:            ls.didRenameFiles,
		WorkspaceWillDeleteFiles:           ls.willDeleteFiles,
		WorkspaceSymbol:                    ls.workspaceSymbol,

		TextDocumentDidOpen:   ls.didOpen,
		TextDocumentDidChange: ls.didChange,
		TextDocumentDidSave:   ls.didSave,
		TextDocumentDidClose:  ls.didClose,

		TextDocumentCompletion:     ls.completion,
		CompletionItemResolve:      ls.completionResolve,
		TextDocumentHover:          ls.hover,
		TextDocumentSignatureHelp:  ls.signatureHelp,
		TextDocumentDefinition:     ls.definition,
		TextDocumentDocumentSymbol: ls.documentSymbol,
	}
	return ls
}

// Handle implements glsp.Handler. The custom inspection request is served
// here; everything else goes to the protocol handler.
func (ls *languageServer) Handle(ctx *glsp.Context) (r any, validMethod, validParams bool, err error) {
	if ctx.Method != MethodInspectSyntaxTree {
		return ls.handler.Handle(ctx)
	}
	if !ls.handler.IsInitialized() {
		return nil, true, true, errNotInitialized
	}
	var params struct {
		TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
		URI          protocol.DocumentUri            `json:"uri"`
	}
	if err := json.Unmarshal(ctx.Params, &params); err != nil {
		return nil, true, false, err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		uri = params.URI
	}
	r, err = ls.inspectSyntaxTree(ctx, uri)
	return r, true, true, err
}

func (ls *languageServer) close() {
	ls.cancel()
	ls.mu.Lock()
	engine := ls.engine
	ls.mu.Unlock()
	if engine != nil {
		engine.Close()
	}
}

func (ls *languageServer) current() (*ipfls.Engine, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.engine == nil {
		return nil, errNotInitialized
	}
	return ls.engine, nil
}

// mapper returns the position mapper for uri's live text.
func (ls *languageServer) mapper(engine *ipfls.Engine, uri string) textMapper {
	return newTextMapper(engine.DocumentText(uri))
}

// publish sends diagnostics for a settled document session.
func (ls *languageServer) publish(uri string, diags []ipfls.Diagnostic) {
	ls.mu.Lock()
	notify, engine := ls.notify, ls.engine
	ls.mu.Unlock()
	if notify == nil {
		return
	}
	m := textMapper{}
	if engine != nil {
		m = ls.mapper(engine, uri)
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toProtocolDiagnostics(m, diags),
	})
}

func (ls *languageServer) showError(notify glsp.NotifyFunc, message string) {
	if notify == nil {
		return
	}
	notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
		Type:    protocol.MessageTypeError,
		Message: message,
	})
}

// --- Lifecycle ---

func (ls *languageServer) capabilities() protocol.ServerCapabilities {
	caps := ls.handler.CreateServerCapabilities()
	caps.RenameProvider = nil
	caps.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"#"},
		ResolveProvider:   &protocol.True,
	}
	caps.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters:   []string{"(", ","},
		RetriggerCharacters: []string{","},
	}
	scheme := "file"
	filters := []protocol.FileOperationFilter{{Scheme: &scheme, Pattern: protocol.FileOperationPattern{Glob: "**/*"}}}
	caps.Workspace = &protocol.ServerCapabilitiesWorkspace{
		WorkspaceFolders: &protocol.WorkspaceFoldersServerCapabilities{
			Supported:           &protocol.True,
			ChangeNotifications: &protocol.BoolOrString{Value: true},
		},
		FileOperations: &protocol.ServerCapabilitiesWorkspaceFileOperations{
			DidRename:  &protocol.FileOperationRegistrationOptions{Filters: filters},
			WillDelete: &protocol.FileOperationRegistrationOptions{Filters: filters},
		},
	}
	return caps
}

// workspaceFolders returns the local paths of the initialize folders,
// falling back to the root uri.
func workspaceFolders(params *protocol.InitializeParams) []string {
	var uris []string
	for _, f := range params.WorkspaceFolders {
		uris = append(uris, f.URI)
	}
	if len(uris) == 0 && params.RootURI != nil {
		uris = append(uris, *params.RootURI)
	}
	var folders []string
	for _, uri := range uris {
		if p, ok := ipfls.URIToPath(uri); ok {
			folders = append(folders, p)
		}
	}
	return folders
}

func (ls *languageServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	folders := workspaceFolders(params)

	ls.mu.Lock()
	base := ls.base
	ls.mu.Unlock()
	if len(folders) > 0 && flagConfig == "" {
		cfg, err := loadConfig(folders[0])
		if err != nil {
			ls.logger.Warn("workspace config not loaded", "folder", folders[0], "error", err)
		} else {
			base = cfg
		}
	}
	settings := settingsMap(params.InitializationOptions)
	cfg := base
	if len(settings) > 0 {
		merged, err := base.Merge(settings)
		if err != nil {
			return nil, err
		}
		cfg = merged
	}

	engine, err := newEngine(cfg, ls.logger, folders, ipfls.WithDiagnosticsHandler(ls.publish))
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	ls.base = base
	ls.engine = engine
	ls.notify = ctx.Notify
	ls.mu.Unlock()

	ls.logger.Info("initialized", "folders", folders, "igor_version", cfg.IgorVersion)
	return protocol.InitializeResult{
		Capabilities: ls.capabilities(),
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

func (ls *languageServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	if err := engine.Refresh(ls.ctx); err != nil {
		ls.logger.Warn("refresh incomplete", "error", err)
	}
	return nil
}

func (ls *languageServer) shutdown(ctx *glsp.Context) error {
	ls.close()
	return nil
}

func (ls *languageServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Workspace ---

func (ls *languageServer) didChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	settings := settingsMap(params.Settings)
	ls.mu.Lock()
	base := ls.base
	ls.mu.Unlock()

	cfg, err := base.Merge(settings)
	if err != nil {
		return err
	}
	if err := engine.Configure(ls.ctx, cfg); err != nil {
		ls.logger.Warn("configuration applied with errors", "error", err)
	}
	return nil
}

func (ls *languageServer) didChangeWorkspaceFolders(ctx *glsp.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	folders := engine.Folders()
	for _, f := range params.Event.Removed {
		if p, ok := ipfls.URIToPath(f.URI); ok {
			folders = slices.DeleteFunc(folders, func(dir string) bool { return dir == p })
		}
	}
	for _, f := range params.Event.Added {
		if p, ok := ipfls.URIToPath(f.URI); ok && !slices.Contains(folders, p) {
			folders = append(folders, p)
		}
	}
	return engine.SetFolders(ls.ctx, folders)
}

func (ls *languageServer) didRenameFiles(ctx *glsp.Context, params *protocol.RenameFilesParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	renames := make([]ipfls.FileRename, 0, len(params.Files))
	for _, f := range params.Files {
		renames = append(renames, ipfls.FileRename{OldURI: f.OldURI, NewURI: f.NewURI})
	}
	return engine.RenameFiles(ls.ctx, renames)
}

func (ls *languageServer) willDeleteFiles(ctx *glsp.Context, params *protocol.DeleteFilesParams) (*protocol.WorkspaceEdit, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(params.Files))
	for _, f := range params.Files {
		uris = append(uris, f.URI)
	}
	return nil, engine.DeleteFiles(ls.ctx, uris)
}

func (ls *languageServer) workspaceSymbol(ctx *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	symbols, err := engine.Query().WorkspaceSymbols(ls.ctx, params.Query)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.SymbolInformation, 0, len(symbols))
	for _, s := range symbols {
		m := ls.mapper(engine, s.Location.URI)
		out = append(out, protocol.SymbolInformation{
			Name: s.Name,
			Kind: protocol.SymbolKind(s.Kind),
			Location: protocol.Location{
				URI:   s.Location.URI,
				Range: m.protocolRange(s.Location.Range),
			},
		})
	}
	return out, nil
}

// --- Text synchronization ---

func (ls *languageServer) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	return engine.OpenDocument(ls.ctx, params.TextDocument.URI, params.TextDocument.Text)
}

func (ls *languageServer) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	uri := params.TextDocument.URI
	text, ok := engine.DocumentText(uri)
	if !ok {
		return fmt.Errorf("change %s: %w", uri, ipfls.ErrNotOpen)
	}
	return engine.ChangeDocument(ls.ctx, uri, applyChanges(text, params.ContentChanges))
}

func (ls *languageServer) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if params.Text != nil {
		return engine.ChangeDocument(ls.ctx, uri, *params.Text)
	}
	return engine.SaveDocument(ls.ctx, uri)
}

func (ls *languageServer) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	engine, err := ls.current()
	if err != nil {
		return err
	}
	return engine.CloseDocument(ls.ctx, params.TextDocument.URI)
}

// --- Language features ---

func (ls *languageServer) completion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	uri := params.TextDocument.URI
	pos := ls.mapper(engine, uri).position(params.Position)
	items, err := engine.Query().Completion(ls.ctx, uri, pos)
	if err != nil || items == nil {
		return nil, err
	}
	out := make([]protocol.CompletionItem, 0, len(items))
	for _, it := range items {
		out = append(out, toProtocolCompletion(it))
	}
	return out, nil
}

func (ls *languageServer) completionResolve(ctx *glsp.Context, params *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	data, ok := completionData(params.Data)
	if !ok {
		return params, nil
	}
	resolved, err := engine.Query().ResolveCompletion(ls.ctx, ipfls.CompletionItem{Label: params.Label, Data: data})
	if err != nil || resolved == nil {
		return params, err
	}
	out := *params
	if resolved.ShortDescription != "" {
		out.Detail = &resolved.ShortDescription
	}
	if resolved.Documentation != "" {
		out.Documentation = markdown(resolved.Documentation)
	}
	return &out, nil
}

func (ls *languageServer) hover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	uri := params.TextDocument.URI
	pos := ls.mapper(engine, uri).position(params.Position)
	h, err := engine.Query().Hover(ls.ctx, uri, pos)
	if err != nil || h == nil {
		return nil, err
	}
	return &protocol.Hover{Contents: markdown(strings.Join(h.Contents, "\n\n---\n\n"))}, nil
}

func (ls *languageServer) signatureHelp(ctx *glsp.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	uri := params.TextDocument.URI
	pos := ls.mapper(engine, uri).position(params.Position)
	var prev *ipfls.SignatureHelp
	if params.Context != nil {
		prev = fromProtocolSignatureHelp(params.Context.ActiveSignatureHelp)
	}
	help, err := engine.Query().SignatureHelp(ls.ctx, uri, pos, prev)
	if err != nil || help == nil {
		return nil, err
	}
	return toProtocolSignatureHelp(help), nil
}

func (ls *languageServer) definition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	uri := params.TextDocument.URI
	pos := ls.mapper(engine, uri).position(params.Position)
	locs, err := engine.Query().Definition(ls.ctx, uri, pos)
	if err != nil || len(locs) == 0 {
		return nil, err
	}
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		out = append(out, protocol.Location{
			URI:   loc.URI,
			Range: ls.mapper(engine, loc.URI).protocolRange(loc.Range),
		})
	}
	return out, nil
}

func (ls *languageServer) documentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	uri := params.TextDocument.URI
	symbols, err := engine.Query().DocumentSymbols(ls.ctx, uri)
	if err != nil || symbols == nil {
		return nil, err
	}
	return toProtocolDocumentSymbols(ls.mapper(engine, uri), symbols), nil
}

// inspectSyntaxTree reports a parse failure to the user instead of failing
// the request.
func (ls *languageServer) inspectSyntaxTree(ctx *glsp.Context, uri string) (any, error) {
	engine, err := ls.current()
	if err != nil {
		return nil, err
	}
	tree, err := engine.Query().InspectSyntaxTree(ls.ctx, uri)
	if err != nil {
		ls.logger.Warn("syntax tree inspection failed", "uri", uri, "error", err)
		ls.showError(ctx.Notify, fmt.Sprintf("Cannot inspect the syntax tree: %s", err))
		return nil, nil
	}
	return tree, nil
}
