package reference

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned for a category name outside the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// Category classifies a reference item.
type Category string

const (
	Undefined Category = "undefined"
	Constant  Category = "constant"
	Variable  Category = "variable"
	Picture   Category = "picture"
	Macro     Category = "macro"
	Function  Category = "function"
	Operation Category = "operation"
	Keyword   Category = "keyword"
	Structure Category = "structure"
	Subtype   Category = "subtype"
	Pragma    Category = "pragma"
	Hook      Category = "hook"
)

// Categories lists every category in display order.
var Categories = []Category{
	Undefined, Constant, Variable, Picture, Macro, Function,
	Operation, Keyword, Structure, Subtype, Pragma, Hook,
}

// ParseCategory resolves a category name, ignoring case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// CompletionKind mirrors the LSP CompletionItemKind values. Zero means none.
type CompletionKind int

const (
	CompletionNone      CompletionKind = 0
	CompletionMethod    CompletionKind = 2
	CompletionFunction  CompletionKind = 3
	CompletionField     CompletionKind = 5
	CompletionVariable  CompletionKind = 6
	CompletionInterface CompletionKind = 8
	CompletionKeyword   CompletionKind = 14
	CompletionFile      CompletionKind = 17
	CompletionConstant  CompletionKind = 21
	CompletionStruct    CompletionKind = 22
)

// SymbolKind mirrors the LSP SymbolKind values.
type SymbolKind int

const (
	SymbolFile      SymbolKind = 1
	SymbolMethod    SymbolKind = 6
	SymbolField     SymbolKind = 8
	SymbolInterface SymbolKind = 11
	SymbolFunction  SymbolKind = 12
	SymbolVariable  SymbolKind = 13
	SymbolConstant  SymbolKind = 14
	SymbolObject    SymbolKind = 19
	SymbolKey       SymbolKind = 20
	SymbolNull      SymbolKind = 21
	SymbolStruct    SymbolKind = 23
	SymbolEvent     SymbolKind = 24
)

var symbolKindNames = map[SymbolKind]string{
	SymbolFile:      "file",
	SymbolMethod:    "method",
	SymbolField:     "field",
	SymbolInterface: "interface",
	SymbolFunction:  "function",
	SymbolVariable:  "variable",
	SymbolConstant:  "constant",
	SymbolObject:    "object",
	SymbolKey:       "key",
	SymbolNull:      "null",
	SymbolStruct:    "struct",
	SymbolEvent:     "event",
}

func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Metadata describes how a category is presented.
type Metadata struct {
	Label          string
	CompletionKind CompletionKind
	SymbolKind     SymbolKind
}

// Metadata returns the presentation data for c. Unknown values are treated
// as Undefined.
func (c Category) Metadata() Metadata {
	switch c {
	case Constant:
		return Metadata{"constant", CompletionConstant, SymbolConstant}
	case Variable:
		return Metadata{"variable", CompletionVariable, SymbolVariable}
	case Picture:
		return Metadata{"picture", CompletionFile, SymbolFile}
	case Macro:
		return Metadata{"macro", CompletionMethod, SymbolMethod}
	case Function:
		return Metadata{"function", CompletionFunction, SymbolFunction}
	case Operation:
		return Metadata{"operation", CompletionField, SymbolField}
	case Keyword:
		return Metadata{"keyword", CompletionKeyword, SymbolKey}
	case Structure:
		return Metadata{"structure", CompletionStruct, SymbolStruct}
	case Subtype:
		return Metadata{"subtype", CompletionInterface, SymbolInterface}
	case Pragma:
		return Metadata{"pragma keyword", CompletionKeyword, SymbolKey}
	case Hook:
		return Metadata{"hook function", CompletionNone, SymbolNull}
	default:
		return Metadata{"unknown symbol", CompletionNone, SymbolNull}
	}
}

func (c Category) String() string { return string(c) }
