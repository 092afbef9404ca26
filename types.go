package ipfls

import (
	"github.com/jward/ipfls/internal/config"
	"github.com/jward/ipfls/internal/extract"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/session"
	"github.com/jward/ipfls/internal/span"
)

// Public aliases for internal types used in the Engine and QueryBuilder API.

type Config = config.Config
type Position = span.Position
type Range = span.Range
type Diagnostic = session.Diagnostic
type DocumentSymbol = extract.Symbol
type Item = reference.Item
type Book = reference.Book
type Category = reference.Category
