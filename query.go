package ipfls

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/config"
	"github.com/jward/ipfls/internal/extract"
	"github.com/jward/ipfls/internal/parser"
	"github.com/jward/ipfls/internal/reference"
)

// QueryBuilder answers point-in-time queries across every book the engine
// knows. Queries never mutate the engine. Each one checks ctx before it
// starts and after every wait, and returns ctx.Err() when cancelled.
type QueryBuilder struct {
	engine *Engine
}

// Location is a range within a resource.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// CompletionData identifies where a completion item came from so that it
// can be resolved later.
type CompletionData struct {
	Source   string   `json:"source"`
	Document string   `json:"document"`
	Position Position `json:"position"`
}

// CompletionItem is one completion candidate. ShortDescription and
// Documentation are filled by ResolveCompletion.
type CompletionItem struct {
	Label            string                   `json:"label"`
	Detail           string                   `json:"detail,omitempty"`
	Description      string                   `json:"description,omitempty"`
	Kind             reference.CompletionKind `json:"kind"`
	Category         Category                 `json:"category"`
	IsStatic         bool                     `json:"isStatic,omitempty"`
	Deprecated       bool                     `json:"deprecated,omitempty"`
	ShortDescription string                   `json:"shortDescription,omitempty"`
	Documentation    string                   `json:"documentation,omitempty"`
	Data             CompletionData           `json:"data"`
}

// Hover holds one markdown block per matching item and per overload.
type Hover struct {
	Contents []string `json:"contents"`
}

// ParameterInformation labels one parameter of a signature.
type ParameterInformation struct {
	Label string `json:"label"`
}

// SignatureInformation is one callable form of a function.
type SignatureInformation struct {
	Label         string                 `json:"label"`
	Documentation string                 `json:"documentation,omitempty"`
	Parameters    []ParameterInformation `json:"parameters,omitempty"`
}

// SignatureHelp describes the call being edited.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature int                    `json:"activeSignature"`
	ActiveParameter int                    `json:"activeParameter"`
}

// SymbolInformation is a workspace symbol.
type SymbolInformation struct {
	Name     string               `json:"name"`
	Kind     reference.SymbolKind `json:"kind"`
	Location Location             `json:"location"`
}

// completionCategories are the categories offered by completion.
var completionCategories = map[Category]bool{
	reference.Constant:  true,
	reference.Variable:  true,
	reference.Function:  true,
	reference.Operation: true,
	reference.Keyword:   true,
}

// visible applies the rules shared by completion and hover: static items
// stay in their file, built-in functions cannot start a statement, and
// operations can only start one.
func visible(src Source, it reference.Item, document string, wt wordType) bool {
	if it.IsStatic && src.ID != document {
		return false
	}
	if wt == wordFirst {
		return !(it.Category == reference.Function && src.ID == reference.BuiltinID)
	}
	return it.Category != reference.Operation
}

func (q *QueryBuilder) describer(document string) describer {
	return describer{folders: q.engine.Folders(), document: document}
}

func (q *QueryBuilder) config() *config.Config {
	return q.engine.Config()
}

// text returns the live text of an open document or the file contents.
func (q *QueryBuilder) text(uri string) (string, bool) {
	if text, ok := q.engine.DocumentText(uri); ok {
		return text, true
	}
	path, ok := URIToPath(uri)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// locals extracts the variables of the routine enclosing pos.
func (q *QueryBuilder) locals(ctx context.Context, uri, text string, pos Position) (reference.Book, error) {
	res, err := q.engine.result(ctx, uri)
	if err != nil {
		return nil, err
	}
	var prog *ast.Program
	if res != nil && res.Tree != nil {
		prog = res.Tree
	} else {
		q.engine.mu.RLock()
		ops := q.engine.operations
		q.engine.mu.RUnlock()
		prog, err = parser.Parse(text, parser.Options{Operations: ops})
		if err != nil {
			return reference.Book{}, nil
		}
	}
	return extract.Locals(prog, pos, extract.WithLogger(q.engine.logger)), nil
}

// Completion lists the candidates for the word at pos.
func (q *QueryBuilder) Completion(ctx context.Context, uri string, pos Position) ([]CompletionItem, error) {
	uri = NormalizeURI(uri)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := q.text(uri)
	if !ok {
		return nil, nil
	}
	word, preceding, ok := wordAt(lineAt(text, pos.Line), pos.Character)
	if !ok {
		return nil, nil
	}
	if _, ok := selector(word); !ok {
		return nil, nil
	}
	wt := classify(preceding)
	if wt == wordFlag {
		return nil, nil
	}

	locals, err := q.locals(ctx, uri, text, pos)
	if err != nil {
		return nil, err
	}

	cfg := q.config()
	d := q.describer(uri)
	items := []CompletionItem{}
	for src, err := range q.engine.aggregate(ctx, aggregateOptions{locals: locals}) {
		if err != nil {
			return nil, err
		}
		var description string
		if !cfg.Suppressed(config.SuppressCompletionDescription) {
			description = d.sourceLabel(src.ID)
		}
		for id, it := range src.Items() {
			if !completionCategories[it.Category] || !visible(src, it, uri, wt) {
				continue
			}
			label, matched := it.Label(id)
			var detail string
			if matched && !cfg.Suppressed(config.SuppressCompletionDetail) {
				detail = it.Signature[len(id):]
			}
			items = append(items, CompletionItem{
				Label:       label,
				Detail:      detail,
				Description: description,
				Kind:        it.Category.Metadata().CompletionKind,
				Category:    it.Category,
				IsStatic:    it.IsStatic,
				Deprecated:  src.Deprecated(it),
				Data:        CompletionData{Source: src.ID, Document: uri, Position: pos},
			})
		}
	}
	return items, nil
}

// ResolveCompletion fills the short description and documentation of an
// item returned by Completion. It returns nil when the item no longer
// exists.
func (q *QueryBuilder) ResolveCompletion(ctx context.Context, item CompletionItem) (*CompletionItem, error) {
	item.Data.Document = NormalizeURI(item.Data.Document)
	item.Data.Source = NormalizeURI(item.Data.Source)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := strings.ToLower(item.Label)

	var opts aggregateOptions
	if item.Data.Source == reference.LocalID {
		text, ok := q.text(item.Data.Document)
		if !ok {
			return nil, nil
		}
		locals, err := q.locals(ctx, item.Data.Document, text, item.Data.Position)
		if err != nil {
			return nil, err
		}
		opts.locals = locals
	}

	var (
		found reference.Item
		ok    bool
	)
	for src, err := range q.engine.aggregate(ctx, opts) {
		if err != nil {
			return nil, err
		}
		if src.ID == item.Data.Source {
			found, ok = src.Lookup(id)
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	level := truncateParagraph
	if q.config().Suppressed(config.SuppressCompletionDocumentation) {
		level = truncateLine
	}
	var doc strings.Builder
	doc.WriteString(truncate(ctx, level, itemDoc(found)))
	for _, o := range found.Overloads {
		if doc.Len() > 0 {
			doc.WriteString("\n")
		}
		doc.WriteString(codeBlock(o.Signature))
		doc.WriteString(truncate(ctx, level, overloadDoc(o)))
	}

	resolved := item
	resolved.ShortDescription = q.describer(item.Data.Document).short(found, item.Data.Source, false)
	resolved.Documentation = doc.String()
	return &resolved, nil
}

// Hover describes every visible item named by the word at pos.
func (q *QueryBuilder) Hover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	uri = NormalizeURI(uri)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := q.text(uri)
	if !ok {
		return nil, nil
	}
	word, preceding, ok := wordAt(lineAt(text, pos.Line), pos.Character)
	if !ok {
		return nil, nil
	}
	wt := classify(preceding)
	if wt == wordFlag {
		return nil, nil
	}
	id, ok := selector(word)
	if !ok {
		return nil, nil
	}

	locals, err := q.locals(ctx, uri, text, pos)
	if err != nil {
		return nil, err
	}

	level := truncateFull
	if q.config().Suppressed(config.SuppressHoverContents) {
		level = truncateParagraph
	}
	d := q.describer(uri)
	var contents []string
	for src, err := range q.engine.aggregate(ctx, aggregateOptions{locals: locals}) {
		if err != nil {
			return nil, err
		}
		it, ok := src.Lookup(id)
		if !ok || !visible(src, it, uri, wt) {
			continue
		}
		contents = append(contents, d.short(it, src.ID, true)+truncate(ctx, level, itemDoc(it)))
		for _, o := range it.Overloads {
			contents = append(contents, codeBlock(o.Signature)+truncate(ctx, level, overloadDoc(o)))
		}
	}
	if len(contents) == 0 {
		return nil, nil
	}
	return &Hover{Contents: contents}, nil
}

// SignatureHelp describes the innermost unfinished call before pos. prev is
// the help shown before, if any; its active signature is kept while the
// same function is being edited.
func (q *QueryBuilder) SignatureHelp(ctx context.Context, uri string, pos Position, prev *SignatureHelp) (*SignatureHelp, error) {
	uri = NormalizeURI(uri)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := q.text(uri)
	if !ok {
		return nil, nil
	}
	line := lineAt(text, pos.Line)
	preceding := string(line[:min(max(pos.Character, 0), len(line))])
	name, argIndex, ok := callInEditing(preceding)
	if !ok {
		return nil, nil
	}

	level := truncateFull
	if q.config().Suppressed(config.SuppressSignatureDocumentation) {
		level = truncateParagraph
	}
	for src, err := range q.engine.aggregate(ctx, aggregateOptions{}) {
		if err != nil {
			return nil, err
		}
		it, ok := src.Lookup(name)
		if !ok || it.Category != reference.Function || (it.IsStatic && src.ID != uri) {
			continue
		}

		overloads := it.Overloads
		if len(overloads) == 0 {
			overloads = []reference.Overload{{Signature: it.Signature, Description: it.Description}}
		}
		help := &SignatureHelp{ActiveParameter: argIndex}
		for _, o := range overloads {
			sig := SignatureInformation{
				Label:         o.Signature,
				Documentation: truncate(ctx, level, overloadDoc(o)),
			}
			if labels, ok := parameterLabels(o.Signature); ok {
				for _, l := range labels {
					sig.Parameters = append(sig.Parameters, ParameterInformation{Label: l})
				}
			}
			help.Signatures = append(help.Signatures, sig)
		}
		if prev != nil && len(prev.Signatures) > 0 && prev.Signatures[0].Label == help.Signatures[0].Label {
			help.ActiveSignature = min(max(prev.ActiveSignature, 0), len(help.Signatures)-1)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return help, nil
	}
	return nil, nil
}

// Definition locates the declarations of the word at pos.
func (q *QueryBuilder) Definition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	uri = NormalizeURI(uri)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := q.text(uri)
	if !ok {
		return nil, nil
	}
	word, _, ok := wordAt(lineAt(text, pos.Line), pos.Character)
	if !ok {
		return nil, nil
	}
	return q.DefinitionLocations(ctx, word)
}

// DefinitionLocations locates every declaration of identifier across the
// workspace.
func (q *QueryBuilder) DefinitionLocations(ctx context.Context, identifier string) ([]Location, error) {
	id, ok := selector(identifier)
	if !ok {
		return nil, nil
	}
	var locations []Location
	for src, err := range q.engine.aggregate(ctx, aggregateOptions{}) {
		if err != nil {
			return nil, err
		}
		if it, ok := src.Lookup(id); ok && it.Location != nil && src.Result != nil {
			locations = append(locations, Location{URI: src.ID, Range: *it.Location})
		}
	}
	return locations, nil
}

var workspaceQueryPattern = regexp.MustCompile(`^[a-zA-Z0-9_]*$`)

// WorkspaceSymbols finds declarations whose identifier contains the query
// characters in order, ignoring case. The empty query matches everything.
func (q *QueryBuilder) WorkspaceSymbols(ctx context.Context, query string) ([]SymbolInformation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !workspaceQueryPattern.MatchString(query) {
		return nil, nil
	}
	re := regexp.MustCompile("(?i)" + strings.Join(strings.Split(query, ""), ".*"))

	symbols := []SymbolInformation{}
	for src, err := range q.engine.aggregate(ctx, aggregateOptions{}) {
		if err != nil {
			return nil, err
		}
		if src.Result == nil {
			continue
		}
		for id, it := range src.Items() {
			if it.Location == nil || (query != "" && !re.MatchString(id)) {
				continue
			}
			name := id
			if it.Category == reference.Function {
				name += "()"
			}
			symbols = append(symbols, SymbolInformation{
				Name:     name,
				Kind:     it.Category.Metadata().SymbolKind,
				Location: Location{URI: src.ID, Range: *it.Location},
			})
		}
	}
	return symbols, nil
}

// DocumentSymbols returns the outline of an open document.
func (q *QueryBuilder) DocumentSymbols(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	uri = NormalizeURI(uri)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := q.engine.result(ctx, uri)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Symbols, nil
}

// InspectSyntaxTree parses the current text of uri and returns the tree as
// JSON without location data. Unlike other queries it reports parse errors.
func (q *QueryBuilder) InspectSyntaxTree(ctx context.Context, uri string) (json.RawMessage, error) {
	uri = NormalizeURI(uri)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := q.text(uri)
	if !ok {
		return nil, fmt.Errorf("ipfls: inspect %s: %w", uri, os.ErrNotExist)
	}
	q.engine.mu.RLock()
	ops := q.engine.operations
	q.engine.mu.RUnlock()
	prog, err := parser.Parse(text, parser.Options{Operations: ops})
	if err != nil {
		return nil, fmt.Errorf("ipfls: inspect %s: %w", uri, err)
	}
	data, err := ast.Dump(prog)
	if err != nil {
		return nil, fmt.Errorf("ipfls: inspect %s: %w", uri, err)
	}
	return data, nil
}

// Sources returns every book visible to queries, in aggregate order.
func (q *QueryBuilder) Sources(ctx context.Context) ([]Source, error) {
	var sources []Source
	for src, err := range q.engine.aggregate(ctx, aggregateOptions{}) {
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
