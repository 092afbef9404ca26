package ipfls

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/jward/ipfls/internal/config"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
}

// associations is a compiled files::associations table. Globs without a
// slash match at any depth.
type associations struct {
	include []string
	exclude []string
}

func compileAssociations(table map[string]string) associations {
	var a associations
	for _, key := range slices.Sorted(maps.Keys(table)) {
		glob := strings.ToLower(key)
		if !strings.Contains(glob, "/") {
			glob = "**/" + glob
		}
		if table[key] == config.Language {
			a.include = append(a.include, glob)
		} else {
			a.exclude = append(a.exclude, glob)
		}
	}
	return a
}

// match reports whether the slash-separated path rel, relative to a
// workspace folder, selects a procedure file. Exclusions win.
func (a associations) match(rel string) bool {
	rel = strings.ToLower(rel)
	matched := false
	for _, glob := range a.include {
		if ok, _ := doublestar.Match(glob, rel); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, glob := range a.exclude {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return false
		}
	}
	return true
}

// folderScope decides membership for files under one workspace folder.
type folderScope struct {
	root   string
	assoc  associations
	ignore *ignore.GitIgnore
}

func newFolderScope(root string, assoc associations) *folderScope {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		gi = nil
	}
	return &folderScope{root: root, assoc: assoc, ignore: gi}
}

func (s *folderScope) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, dir := range strings.Split(rel, "/")[:strings.Count(rel, "/")] {
		if skipDirs[dir] || strings.HasPrefix(dir, ".") {
			return false
		}
	}
	if s.ignore != nil && s.ignore.MatchesPath(rel) {
		return false
	}
	return s.assoc.match(rel)
}

func (s *folderScope) walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.contains(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return paths, nil
}

// discover lists the procedure files under every folder, sorted and
// deduplicated. Folders are walked concurrently; a folder that fails is
// reported and the others are still returned.
func discover(ctx context.Context, folders []string, table map[string]string, logger *slog.Logger) ([]string, error) {
	assoc := compileAssociations(table)
	results := make([][]string, len(folders))
	errs := make([]error, len(folders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, folder := range folders {
		g.Go(func() error {
			paths, err := newFolderScope(folder, assoc).walk(gctx)
			if err != nil {
				logger.Warn("discovery failed", "folder", folder, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = paths
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var paths []string
	for _, r := range results {
		paths = append(paths, r...)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return paths, fmt.Errorf("discovery had %d error(s): %w", len(failed), failed[0])
	}
	return paths, nil
}

// inWorkspace reports whether path is an existing procedure file that
// discovery would find.
func inWorkspace(path string, folders []string, table map[string]string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	assoc := compileAssociations(table)
	for _, folder := range folders {
		if newFolderScope(folder, assoc).contains(path) {
			return true
		}
	}
	return false
}
