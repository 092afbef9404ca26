// Package reference defines reference items, the per-resource books that
// hold them, and the version gate that controls their visibility.
package reference

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jward/ipfls/internal/span"
)

// VersionRange is a semver constraint with an optional note.
type VersionRange struct {
	Range       string `json:"range" yaml:"range"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Describe renders the range as a bracketed note such as
// "[available: `>=7.0.0`] note".
func (v VersionRange) Describe(label string) string {
	var s string
	if v.Range == ">=0.0.0" {
		s = fmt.Sprintf("[%s at some time]", label)
	} else {
		s = fmt.Sprintf("[%s: `%s`]", label, v.Range)
	}
	if v.Description != "" {
		s += " " + v.Description
	}
	return s
}

// Overload is an alternative signature of an item.
type Overload struct {
	Signature   string        `json:"signature" yaml:"signature"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Available   *VersionRange `json:"available,omitempty" yaml:"available,omitempty"`
	Deprecated  *VersionRange `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Item is one referenceable symbol.
type Item struct {
	Signature   string        `json:"signature" yaml:"signature"`
	Category    Category      `json:"category" yaml:"-"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Available   *VersionRange `json:"available,omitempty" yaml:"available,omitempty"`
	Deprecated  *VersionRange `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Location    *span.Range   `json:"location,omitempty" yaml:"-"`
	IsStatic    bool          `json:"isStatic,omitempty" yaml:"isStatic,omitempty"`
	Overloads   []Overload    `json:"overloads,omitempty" yaml:"overloads,omitempty"`
}

// Label returns the case-preserved prefix of the signature that spells id.
// ok is false when the signature does not start with id.
func (it Item) Label(id string) (label string, ok bool) {
	if len(it.Signature) < len(id) || strings.ToLower(it.Signature[:len(id)]) != id {
		return id, false
	}
	return it.Signature[:len(id)], true
}

// Book maps lower-cased identifiers to items.
type Book map[string]Item

// Keys returns the identifiers in sorted order.
func (b Book) Keys() []string {
	return slices.Sorted(maps.Keys(b))
}

// Lookup finds an item by identifier, ignoring case.
func (b Book) Lookup(id string) (Item, bool) {
	it, ok := b[strings.ToLower(id)]
	return it, ok
}

// OperationNames collects the identifiers of operation items across books.
func OperationNames(books ...Book) map[string]bool {
	names := make(map[string]bool)
	for _, b := range books {
		for id, it := range b {
			if it.Category == Operation {
				names[id] = true
			}
		}
	}
	return names
}
