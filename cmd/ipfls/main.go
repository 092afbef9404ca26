package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/ipfls"
	"github.com/jward/ipfls/internal/config"
	"github.com/jward/ipfls/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagFormat      string
	flagConfig      string
	flagLogLevel    string
	flagIgorVersion string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ipfls",
	Short:         "Code intelligence for Igor Pro procedure files",
	Long:          "ipfls indexes Igor Pro procedure files (.ipf) and answers completion, hover, signature and definition queries, either one-shot or as a language server.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .ipfls.{yaml,json,toml} in the workspace root)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagIgorVersion, "igor-version", "", "target Igor Pro version (overrides config)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the settings for root and applies the global flag
// overrides.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root, flagConfig)
	if err != nil {
		return nil, err
	}
	if flagIgorVersion != "" {
		cfg.IgorVersion = flagIgorVersion
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr, or to the
// configured log file. The returned cleanup func is never nil.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := logging.LevelFromString(cfg.LogLevel)
	format := logging.ParseFormat(cfg.LogFormat)
	if cfg.LogFile != "" {
		logger, f, err := logging.NewFileLogger(cfg.LogFile, level, format)
		if err != nil {
			return nil, nil, err
		}
		return logger, func() { f.Close() }, nil
	}
	return logging.NewLogger(os.Stderr, level, format), func() {}, nil
}

// newEngine creates an engine over folders. A broken external reference
// book is logged and the engine is still returned.
func newEngine(cfg *config.Config, logger *slog.Logger, folders []string, opts ...ipfls.Option) (*ipfls.Engine, error) {
	opts = append([]ipfls.Option{
		ipfls.WithLogger(logger),
		ipfls.WithConfig(cfg),
		ipfls.WithFolders(folders...),
	}, opts...)
	engine, err := ipfls.New(opts...)
	if err != nil {
		if engine == nil {
			return nil, fmt.Errorf("creating engine: %w", err)
		}
		logger.Warn("external reference book not loaded", "error", err)
	}
	return engine, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// defaultExportPath is used when --export is given without a value.
const defaultExportPath = ".ipfls/index.db"

// resolveDBPath returns the snapshot path for --export, relative to the
// repo root unless absolute.
func resolveDBPath(repoRoot, export string) string {
	if export == "" {
		export = defaultExportPath
	}
	if filepath.IsAbs(export) {
		return export
	}
	return filepath.Join(repoRoot, export)
}
