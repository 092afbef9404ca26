package runtime

import (
	"context"
	"log/slog"
	"os"

	"github.com/risor-io/risor/object"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/jward/ipfls/internal/reference"
)

// igorVersion reads the target version from the caller's globals.
func igorVersion(extra map[string]any) string {
	v, ok := extra["igor_version"]
	if !ok {
		return ""
	}
	return cast.ToString(v)
}

// makeReadBookFn creates the "read_book" host function.
//
// read_book(path) → map
//
// The file is decoded as YAML, which also covers JSON.
func makeReadBookFn() *object.Builtin {
	return object.NewBuiltin("read_book", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("read_book", 1, len(args))
		}
		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("read_book: path must be a string, got %s", args[0].Type())
		}
		data, err := os.ReadFile(pathStr.Value())
		if err != nil {
			return object.Errorf("read_book: reading %s: %v", pathStr.Value(), err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return object.Errorf("read_book: decoding %s: %v", pathStr.Value(), err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		return object.FromGoType(raw)
	})
}

// makeAvailableFn creates the "available" host function.
//
// available(range) → bool
//
// Reports whether the version range admits the configured Igor version.
// A malformed range admits every version.
func makeAvailableFn(gate *reference.Gate) *object.Builtin {
	return object.NewBuiltin("available", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("available", 1, len(args))
		}
		rangeStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("available: range must be a string, got %s", args[0].Type())
		}
		return object.NewBool(gate.Available(&reference.VersionRange{Range: rangeStr.Value()}))
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "script")
}
