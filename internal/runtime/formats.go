package runtime

import (
	"path/filepath"
	"strings"
)

// Format is the encoding of a reference book file.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
	FormatScript
)

var extToFormat = map[string]Format{
	".yaml":  FormatYAML,
	".yml":   FormatYAML,
	".json":  FormatJSON,
	".risor": FormatScript,
}

// FormatForFile returns the book format for a file path based on its
// extension. Returns false if the extension is not recognized.
func FormatForFile(path string) (Format, bool) {
	f, ok := extToFormat[strings.ToLower(filepath.Ext(path))]
	return f, ok
}
