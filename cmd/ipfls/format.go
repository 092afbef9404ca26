package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/jward/ipfls"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Name, s.Kind, s.Location.File, s.Location.StartLine)
	}
	tw.Flush()
}

// formatCompletionText formats completion items as aligned columns.
func formatCompletionText(w io.Writer, items []ipfls.CompletionItem) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCATEGORY\tDETAIL\tSOURCE")
	for _, it := range items {
		label := it.Label
		if it.Deprecated {
			label += " (deprecated)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", label, it.Category, it.Detail, it.Description)
	}
	tw.Flush()
	for _, it := range items {
		if it.ShortDescription == "" && it.Documentation == "" {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", it.ShortDescription)
		if it.Documentation != "" {
			fmt.Fprintln(w, it.Documentation)
		}
	}
}

// formatHoverText prints each hover block separated by a rule.
func formatHoverText(w io.Writer, h *ipfls.Hover) {
	for i, block := range h.Contents {
		if i > 0 {
			fmt.Fprintln(w, "---")
		}
		fmt.Fprintln(w, block)
	}
}

// formatSignatureText lists the signatures, marking the active one.
func formatSignatureText(w io.Writer, help CLISignatureHelp) {
	for i, sig := range help.Signatures {
		marker := " "
		if i == help.ActiveSignature {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, sig.Label)
	}
	fmt.Fprintf(w, "active parameter: %d\n", help.ActiveParameter)
}

// formatOutlineText prints the outline as an indented tree.
func formatOutlineText(w io.Writer, nodes []CLIOutlineNode, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s (%s) %d-%d\n", strings.Repeat("  ", depth), n.Name, n.Kind, n.StartLine, n.EndLine)
		formatOutlineText(w, n.Children, depth+1)
	}
}

// formatDiagnosticsText prints compiler-style "file:line:col: severity: message" lines.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", d.File, d.Line, d.Col, d.Severity, d.Message)
	}
}

// formatIndexSummaryText formats CLIIndexSummary as readable text.
func formatIndexSummaryText(w io.Writer, s CLIIndexSummary) {
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Igor Pro version: %s\n", s.IgorVersion)
	fmt.Fprintf(w, "Files: %d, items: %d, errors: %d\n", len(s.Files), s.ItemCount, s.ErrorCount)
	if s.Database != "" {
		fmt.Fprintf(w, "Database: %s\n", s.Database)
	}
	fmt.Fprintln(w)

	if len(s.Files) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tITEMS\tDIAGNOSTICS")
		for _, f := range s.Files {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", f.Path, f.ItemCount, len(f.Diagnostics))
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(s.Categories) > 0 {
		fmt.Fprintln(w, "Categories:")
		cats := make([]string, 0, len(s.Categories))
		for c := range s.Categories {
			cats = append(cats, c)
		}
		slices.Sort(cats)
		for _, c := range cats {
			fmt.Fprintf(w, "  %s: %d\n", c, s.Categories[c])
		}
	}

	var diags []CLIDiagnostic
	for _, f := range s.Files {
		diags = append(diags, f.Diagnostics...)
	}
	if len(diags) > 0 {
		fmt.Fprintln(w)
		formatDiagnosticsText(w, diags)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []ipfls.CompletionItem:
		formatCompletionText(w, v)
	case *ipfls.Hover:
		formatHoverText(w, v)
	case CLISignatureHelp:
		formatSignatureText(w, v)
	case []CLIOutlineNode:
		formatOutlineText(w, v, 0)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIIndexSummary:
		formatIndexSummaryText(w, v)
	case json.RawMessage:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case string:
		fmt.Fprint(w, v)
	case nil:
		// No output when nothing matched.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLILocation:
		return len(r)
	case []CLISymbol:
		return len(r)
	case []ipfls.CompletionItem:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat returns an error if format is not a valid output format.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
