package ipfls

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jward/ipfls/internal/markdown"
	"github.com/jward/ipfls/internal/reference"
)

// truncation selects how much of a description is shown.
type truncation int

const (
	truncateFull truncation = iota
	truncateParagraph
	truncateLine
)

var sentenceEnd = regexp.MustCompile(`\.\s`)

// documented is the common shape of items and overloads.
type documented struct {
	Description string
	Available   *reference.VersionRange
	Deprecated  *reference.VersionRange
}

func itemDoc(it reference.Item) documented {
	return documented{Description: it.Description, Available: it.Available, Deprecated: it.Deprecated}
}

func overloadDoc(o reference.Overload) documented {
	return documented{Description: o.Description, Available: o.Available, Deprecated: o.Deprecated}
}

// truncate renders a description at the given level. Except at line level,
// version notes are appended as separate paragraphs.
func truncate(ctx context.Context, level truncation, d documented) string {
	var out string
	if d.Description != "" {
		switch level {
		case truncateFull:
			out = d.Description
		case truncateParagraph:
			first, more := markdown.FirstBlock(ctx, d.Description)
			if more {
				out = first + "\n\n..."
			} else {
				out = d.Description
			}
		case truncateLine:
			if loc := sentenceEnd.FindStringIndex(d.Description); loc != nil {
				out = d.Description[:loc[0]] + ". ..."
			} else {
				out = d.Description
			}
		}
	}
	if level == truncateLine {
		return out
	}
	for _, note := range []struct {
		r     *reference.VersionRange
		label string
	}{{d.Available, "available"}, {d.Deprecated, "deprecated"}} {
		if note.r == nil {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += note.r.Describe(note.label)
	}
	return out
}

// describer renders source labels relative to the workspace and the
// requesting document.
type describer struct {
	folders  []string
	document string
}

// relative returns a workspace-relative path for a resource uri.
func (d describer) relative(uri string) string {
	path, ok := URIToPath(uri)
	if !ok {
		return uri
	}
	for _, folder := range d.folders {
		rel, err := filepath.Rel(folder, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			if len(d.folders) > 1 {
				rel = filepath.Join(filepath.Base(folder), rel)
			}
			return filepath.ToSlash(rel)
		}
	}
	return path
}

// sourceLabel is the completion item description of a source.
func (d describer) sourceLabel(id string) string {
	switch id {
	case reference.BuiltinID, reference.OperationID, reference.ExtraID:
		return "built-in"
	case reference.ExternalID:
		return "external"
	case reference.LocalID:
		return "local"
	}
	return d.relative(id)
}

// short renders "signature // [static ]label". In markdown the line is
// fenced and a link to the defining file follows.
func (d describer) short(it reference.Item, sourceID string, md bool) string {
	label := it.Category.Metadata().Label
	var rel string
	switch {
	case sourceID == reference.BuiltinID || sourceID == reference.OperationID || sourceID == reference.ExtraID:
		label = "built-in " + label
	case sourceID == reference.ExternalID:
		label = "external " + label
	case sourceID == reference.LocalID || sourceID == d.document:
		if it.Location != nil {
			label = fmt.Sprintf("%s defined at l.%d in this file", label, it.Location.Start.Line+1)
		} else {
			label += " defined in this file"
		}
	default:
		rel = d.relative(sourceID)
		if md {
			label = "user-defined " + label
		} else {
			label = label + " defined in " + rel
		}
	}

	var static string
	if it.IsStatic {
		static = "static "
	}
	text := fmt.Sprintf("%s // %s%s", it.Signature, static, label)
	if len(it.Overloads) > 1 {
		text += fmt.Sprintf(", %d overloads", len(it.Overloads))
	}
	if !md {
		return text
	}
	text = codeBlock(text) + "\n"
	if rel != "" {
		text += fmt.Sprintf("_defined in_ [%s](%s).\n\n", rel, sourceID)
	}
	return text
}

func codeBlock(code string) string {
	return "```\n" + code + "\n```\n"
}
