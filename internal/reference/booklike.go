package reference

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// BookLike is the on-disk shape of a book: category, then identifier, then
// item. JSON files decode as YAML.
type BookLike map[Category]map[string]Item

// Decode parses YAML or JSON into a BookLike. Unknown categories fail with
// ErrUnknownCategory.
func Decode(data []byte) (BookLike, error) {
	var raw map[string]map[string]Item
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return BookLike{}, nil
		}
		return nil, fmt.Errorf("decoding book: %w", err)
	}
	bl := make(BookLike, len(raw))
	var errs []error
	for name, sheet := range raw {
		c, err := ParseCategory(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bl[c] = sheet
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("decoding book had %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return bl, nil
}

// LoadFile reads a YAML or JSON book from disk.
func LoadFile(path string) (BookLike, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading book: %w", err)
	}
	return Decode(data)
}

// FromAny converts a generic value, such as a decoded script result, into a
// BookLike.
func FromAny(v any) (BookLike, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding book: %w", err)
	}
	return Decode(data)
}

// Flatten builds a Book from the given categories of bl. With no categories
// every category is used. Item categories are set from their sheet and
// identifiers are lower-cased.
func (bl BookLike) Flatten(categories ...Category) Book {
	b := make(Book)
	for c, sheet := range bl {
		if len(categories) > 0 && !slices.Contains(categories, c) {
			continue
		}
		for id, it := range sheet {
			it.Category = c
			b[strings.ToLower(id)] = it
		}
	}
	return b
}

// Categorize is the inverse of Flatten. Every requested category gets a
// sheet, even when empty.
func Categorize(b Book, categories ...Category) BookLike {
	if len(categories) == 0 {
		categories = Categories
	}
	bl := make(BookLike, len(categories))
	for _, c := range categories {
		bl[c] = map[string]Item{}
	}
	for id, it := range b {
		if sheet, ok := bl[it.Category]; ok {
			sheet[id] = it
		}
	}
	return bl
}
