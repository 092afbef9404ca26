package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jward/ipfls"
	"github.com/spf13/cobra"
)

var (
	flagLimit   int
	flagResolve bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query procedure files",
	Long:  "Run one-shot queries against a freshly built index of the repository containing the file. All line and column numbers are 0-based; columns count characters.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "maximum number of results (0 for all)")
	completeCmd.Flags().BoolVar(&flagResolve, "resolve", false, "resolve documentation for every item")

	queryCmd.AddCommand(completeCmd)
	queryCmd.AddCommand(hoverCmd)
	queryCmd.AddCommand(signatureCmd)
	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(outlineCmd)
	queryCmd.AddCommand(astCmd)
	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(includeCmd)
}

// --- Helpers ---

// queryEngine indexes the repository around file and opens the file's
// text as a document. It returns the engine, the document uri and a
// cleanup func.
func queryEngine(ctx context.Context, file string) (*ipfls.Engine, string, func(), error) {
	path, err := resolveFilePath(file)
	if err != nil {
		return nil, "", nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	engine, cleanup, err := workspaceEngine(ctx, filepath.Dir(path))
	if err != nil {
		return nil, "", nil, err
	}
	uri := ipfls.PathToURI(path)
	if err := engine.OpenDocument(ctx, uri, string(text)); err != nil {
		cleanup()
		return nil, "", nil, err
	}
	return engine, uri, cleanup, nil
}

// workspaceEngine indexes the repository containing dir.
func workspaceEngine(ctx context.Context, dir string) (*ipfls.Engine, func(), error) {
	root := findRepoRoot(dir)
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := newEngine(cfg, logger, []string{root})
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	cleanup := func() {
		engine.Close()
		closeLog()
	}
	if err := engine.Refresh(ctx); err != nil {
		logger.Warn("refresh incomplete", "error", err)
	}
	return engine, cleanup, nil
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// parsePosition parses <line> <col> arguments.
func parsePosition(line, col string) (ipfls.Position, error) {
	l, err := parseIntArg(line, "line")
	if err != nil {
		return ipfls.Position{}, err
	}
	c, err := parseIntArg(col, "col")
	if err != nil {
		return ipfls.Position{}, err
	}
	return ipfls.Position{Line: l, Character: c}, nil
}

// positionCommand wires a <file> <line> <col> query.
func positionCommand(use, short string, run func(ctx context.Context, engine *ipfls.Engine, uri string, pos ipfls.Position) (any, *int, error)) *cobra.Command {
	name := use
	return &cobra.Command{
		Use:   use + " <file> <line> <col>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return outputError(name, err)
			}
			ctx := cmd.Context()
			engine, uri, cleanup, err := queryEngine(ctx, args[0])
			if err != nil {
				return outputError(name, err)
			}
			defer cleanup()
			results, total, err := run(ctx, engine, uri, pos)
			if err != nil {
				return outputError(name, err)
			}
			return outputResult(CLIResult{Command: name, Results: results, TotalCount: total})
		},
	}
}

// fileCommand wires a <file> query.
func fileCommand(use, short string, run func(ctx context.Context, engine *ipfls.Engine, uri string) (any, error)) *cobra.Command {
	name := use
	return &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, uri, cleanup, err := queryEngine(ctx, args[0])
			if err != nil {
				return outputError(name, err)
			}
			defer cleanup()
			results, err := run(ctx, engine, uri)
			if err != nil {
				return outputError(name, err)
			}
			return outputResult(CLIResult{Command: name, Results: results})
		},
	}
}

// limit truncates items to --limit and returns the total count.
func limit[T any](items []T) ([]T, *int) {
	total := len(items)
	if flagLimit > 0 && len(items) > flagLimit {
		items = items[:flagLimit]
	}
	return items, &total
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// --- Conversions ---

func toCLILocation(loc ipfls.Location) CLILocation {
	file := loc.URI
	if p, ok := ipfls.URIToPath(loc.URI); ok {
		file = p
	}
	return CLILocation{
		File:      file,
		StartLine: loc.Range.Start.Line,
		StartCol:  loc.Range.Start.Character,
		EndLine:   loc.Range.End.Line,
		EndCol:    loc.Range.End.Character,
	}
}

func toCLIOutline(symbols []ipfls.DocumentSymbol) []CLIOutlineNode {
	nodes := make([]CLIOutlineNode, 0, len(symbols))
	for _, s := range symbols {
		nodes = append(nodes, CLIOutlineNode{
			Name:      s.Name,
			Kind:      s.Kind.String(),
			StartLine: s.Range.Start.Line,
			EndLine:   s.Range.End.Line,
			Children:  toCLIOutline(s.Children),
		})
	}
	return nodes
}

func toCLIDiagnostics(uri string, diags []ipfls.Diagnostic) []CLIDiagnostic {
	file := uri
	if p, ok := ipfls.URIToPath(uri); ok {
		file = p
	}
	out := make([]CLIDiagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, CLIDiagnostic{
			File:     file,
			Line:     d.Range.Start.Line,
			Col:      d.Range.Start.Character,
			EndLine:  d.Range.End.Line,
			EndCol:   d.Range.End.Character,
			Severity: d.Severity.String(),
			Message:  d.Message,
		})
	}
	return out
}

// --- Commands ---

var completeCmd = positionCommand("complete", "List completion candidates at a position",
	func(ctx context.Context, engine *ipfls.Engine, uri string, pos ipfls.Position) (any, *int, error) {
		q := engine.Query()
		items, err := q.Completion(ctx, uri, pos)
		if err != nil {
			return nil, nil, err
		}
		items, total := limit(items)
		if flagResolve {
			for i, it := range items {
				resolved, err := q.ResolveCompletion(ctx, it)
				if err != nil {
					return nil, nil, err
				}
				if resolved != nil {
					items[i] = *resolved
				}
			}
		}
		return items, total, nil
	})

var hoverCmd = positionCommand("hover", "Describe the word at a position",
	func(ctx context.Context, engine *ipfls.Engine, uri string, pos ipfls.Position) (any, *int, error) {
		h, err := engine.Query().Hover(ctx, uri, pos)
		if err != nil || h == nil {
			return nil, nil, err
		}
		return h, nil, nil
	})

var signatureCmd = positionCommand("signature", "Describe the call being edited at a position",
	func(ctx context.Context, engine *ipfls.Engine, uri string, pos ipfls.Position) (any, *int, error) {
		help, err := engine.Query().SignatureHelp(ctx, uri, pos, nil)
		if err != nil || help == nil {
			return nil, nil, err
		}
		return CLISignatureHelp{
			SignatureHelp: *help,
			Active:        help.Signatures[help.ActiveSignature].Label,
		}, nil, nil
	})

var definitionCmd = positionCommand("definition", "Locate the declarations of the word at a position",
	func(ctx context.Context, engine *ipfls.Engine, uri string, pos ipfls.Position) (any, *int, error) {
		locs, err := engine.Query().Definition(ctx, uri, pos)
		if err != nil {
			return nil, nil, err
		}
		out := make([]CLILocation, 0, len(locs))
		for _, loc := range locs {
			out = append(out, toCLILocation(loc))
		}
		out, total := limit(out)
		return out, total, nil
	})

var symbolsCmd = &cobra.Command{
	Use:   "symbols [query]",
	Short: "Find declarations across the repository",
	Long:  "Find declarations whose name contains the query characters in order, ignoring case. Without a query every declaration is listed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var query string
		if len(args) > 0 {
			query = args[0]
		}
		cwd, err := os.Getwd()
		if err != nil {
			return outputError("symbols", fmt.Errorf("getting cwd: %w", err))
		}
		ctx := cmd.Context()
		engine, cleanup, err := workspaceEngine(ctx, cwd)
		if err != nil {
			return outputError("symbols", err)
		}
		defer cleanup()

		symbols, err := engine.Query().WorkspaceSymbols(ctx, query)
		if err != nil {
			return outputError("symbols", err)
		}
		out := make([]CLISymbol, 0, len(symbols))
		for _, s := range symbols {
			out = append(out, CLISymbol{Name: s.Name, Kind: s.Kind.String(), Location: toCLILocation(s.Location)})
		}
		out, total := limit(out)
		return outputResult(CLIResult{Command: "symbols", Results: out, TotalCount: total})
	},
}

var outlineCmd = fileCommand("outline", "Print the outline of a file",
	func(ctx context.Context, engine *ipfls.Engine, uri string) (any, error) {
		symbols, err := engine.Query().DocumentSymbols(ctx, uri)
		if err != nil {
			return nil, err
		}
		return toCLIOutline(symbols), nil
	})

var astCmd = fileCommand("ast", "Print the syntax tree of a file as JSON",
	func(ctx context.Context, engine *ipfls.Engine, uri string) (any, error) {
		return engine.Query().InspectSyntaxTree(ctx, uri)
	})

var diagnosticsCmd = fileCommand("diagnostics", "List the problems found in a file",
	func(ctx context.Context, engine *ipfls.Engine, uri string) (any, error) {
		diags, err := engine.Diagnostics(ctx, uri)
		if err != nil {
			return nil, err
		}
		return toCLIDiagnostics(uri, diags), nil
	})

var includeCmd = &cobra.Command{
	Use:   "include <file>...",
	Short: "Print #include directives for procedure files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uris := make([]string, 0, len(args))
		for _, arg := range args {
			path, err := resolveFilePath(arg)
			if err != nil {
				return outputError("include", err)
			}
			uris = append(uris, ipfls.PathToURI(path))
		}
		return outputResult(CLIResult{Command: "include", Results: ipfls.IncludeDirectives(uris)})
	},
}
