package ipfls

import (
	"context"
	"fmt"
	"os"

	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/runtime"
)

// loadBook reads an external reference book. YAML and JSON files are
// decoded directly; Risor scripts are evaluated and must produce the same
// category → identifier → item shape.
func (e *Engine) loadBook(ctx context.Context, path string, igorVersion string) (reference.Book, error) {
	format, ok := runtime.FormatForFile(path)
	if !ok {
		return nil, fmt.Errorf("ipfls: load book %s: unsupported format", path)
	}

	var (
		bl  reference.BookLike
		err error
	)
	switch format {
	case runtime.FormatScript:
		bl, err = e.runtime.EvalBook(ctx, path, map[string]any{
			"igor_version": igorVersion,
		})
	default:
		bl, err = reference.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("ipfls: load book %s: %w", path, err)
	}
	return bl.Flatten(reference.Categories...), nil
}

// externalBookPath resolves the configured symbol file against the first
// workspace folder and the user's home directory.
func externalBookPath(cfg *Config, folders []string) string {
	var folder string
	if len(folders) > 0 {
		folder = folders[0]
	}
	home, _ := os.UserHomeDir()
	return cfg.SymbolFilePath(folder, home)
}

// ReloadExternal re-reads the configured external reference book. On
// failure the external book is emptied and the error returned.
func (e *Engine) ReloadExternal(ctx context.Context) error {
	e.mu.RLock()
	cfg := e.cfg
	path := externalBookPath(cfg, e.folders)
	e.mu.RUnlock()

	book := reference.Book{}
	var err error
	if path != "" {
		var loaded reference.Book
		loaded, err = e.loadBook(ctx, path, cfg.IgorVersion)
		if err != nil {
			e.logger.Warn("failed to load external symbols", "path", path, "error", err)
		} else {
			book = loaded
			e.logger.Info("loaded external symbols", "path", path, "items", len(book))
		}
	}

	e.mu.Lock()
	e.external = book
	e.operations = reference.OperationNames(e.builtins.Operation, e.external)
	e.mu.Unlock()
	return err
}
