package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/ipfls"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/session"
	"github.com/spf13/cobra"
)

var (
	flagExport      string
	flagForce       bool
	flagDiagnostics bool
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index the procedure files under a directory",
	Long:  "Discovers and parses every procedure file under dir, then prints the files, item counts and diagnostics. With --export the aggregated books are also written to a SQLite snapshot.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagExport, "export", "", "write a SQLite snapshot (default path: "+defaultExportPath+" relative to repo root)")
	indexCmd.Flags().Lookup("export").NoOptDefVal = defaultExportPath
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the snapshot before exporting")
	indexCmd.Flags().BoolVar(&flagDiagnostics, "diagnostics", true, "check every file for problems")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	cfg, err := loadConfig(targetDir)
	if err != nil {
		return outputError("index", err)
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return outputError("index", err)
	}
	defer closeLog()

	engine, err := newEngine(cfg, logger, []string{targetDir})
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()

	if err := engine.Refresh(ctx); err != nil {
		logger.Warn("refresh incomplete", "error", err)
	}
	if err := engine.Wait(ctx); err != nil {
		return outputError("index", fmt.Errorf("indexing: %w", err))
	}

	summary := CLIIndexSummary{
		Root:        targetDir,
		IgorVersion: cfg.IgorVersion,
		Files:       []CLIFile{},
		Categories:  map[string]int{},
	}

	// Export before any file is opened so that rows are recorded as files.
	if cmd.Flags().Changed("export") {
		dbPath := resolveDBPath(findRepoRoot(targetDir), flagExport)
		if err := prepareDB(dbPath); err != nil {
			return outputError("index", err)
		}
		if err := engine.Export(ctx, dbPath); err != nil {
			return outputError("index", err)
		}
		summary.Database = dbPath
	}

	sources, err := engine.Query().Sources(ctx)
	if err != nil {
		return outputError("index", err)
	}
	for _, src := range sources {
		if !workspaceSource(src.ID) {
			continue
		}
		f := CLIFile{URI: src.ID, Path: src.ID}
		if p, ok := ipfls.URIToPath(src.ID); ok {
			f.Path = p
		}
		for _, it := range src.Items() {
			f.ItemCount++
			summary.Categories[string(it.Category)]++
		}
		summary.ItemCount += f.ItemCount
		summary.Files = append(summary.Files, f)
	}

	if flagDiagnostics {
		if err := diagnoseFiles(ctx, engine, summary.Files); err != nil {
			return outputError("index", err)
		}
		for _, f := range summary.Files {
			for _, d := range f.Diagnostics {
				if d.Severity == session.SeverityError.String() {
					summary.ErrorCount++
				}
			}
		}
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))
	return outputResult(CLIResult{Command: "index", Results: summary})
}

// prepareDB creates the snapshot directory and honours --force.
func prepareDB(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}
	return nil
}

// diagnoseFiles opens each file as a document, since only documents are
// checked for problems, and records what was found.
func diagnoseFiles(ctx context.Context, engine *ipfls.Engine, files []CLIFile) error {
	for _, f := range files {
		text, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Path, err)
		}
		if err := engine.OpenDocument(ctx, f.URI, string(text)); err != nil {
			return err
		}
	}
	for i := range files {
		diags, err := engine.Diagnostics(ctx, files[i].URI)
		if err != nil {
			return err
		}
		files[i].Diagnostics = toCLIDiagnostics(files[i].URI, diags)
	}
	return nil
}

// workspaceSource reports whether a source id names a workspace resource
// rather than one of the fixed books.
func workspaceSource(id string) bool {
	switch id {
	case reference.BuiltinID, reference.OperationID, reference.ExtraID, reference.ExternalID, reference.LocalID:
		return false
	}
	return true
}
