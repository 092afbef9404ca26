package main

import "github.com/jward/ipfls"

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly location. Lines and columns are 0-based.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLISymbol is a JSON-friendly workspace symbol.
type CLISymbol struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Location CLILocation `json:"location"`
}

// CLIOutlineNode is one entry of a document outline.
type CLIOutlineNode struct {
	Name      string           `json:"name"`
	Kind      string           `json:"kind"`
	StartLine int              `json:"start_line"`
	EndLine   int              `json:"end_line"`
	Children  []CLIOutlineNode `json:"children,omitempty"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	EndLine  int    `json:"end_line"`
	EndCol   int    `json:"end_col"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CLIFile is one indexed procedure file.
type CLIFile struct {
	Path        string          `json:"path"`
	URI         string          `json:"uri"`
	ItemCount   int             `json:"item_count"`
	Diagnostics []CLIDiagnostic `json:"diagnostics,omitempty"`
}

// CLIIndexSummary is the result of the index command.
type CLIIndexSummary struct {
	Root        string         `json:"root"`
	IgorVersion string         `json:"igor_version"`
	Files       []CLIFile      `json:"files"`
	ItemCount   int            `json:"item_count"`
	Categories  map[string]int `json:"categories"`
	ErrorCount  int            `json:"error_count"`
	Database    string         `json:"database,omitempty"`
}

// CLISignatureHelp wraps signature help with the active signature spelled
// out for scripts.
type CLISignatureHelp struct {
	ipfls.SignatureHelp
	Active string `json:"active"`
}
