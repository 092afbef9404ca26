package ipfls

import (
	"context"
	"iter"

	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/session"
)

// Source is one book visible to queries: a built-in subset, the external
// book, function locals or a workspace resource.
type Source struct {
	ID   string
	Book reference.Book
	// Result is the settled session result for workspace resources.
	Result *session.Result

	gate *reference.Gate
}

// Builtin reports whether the source is one of the embedded books.
func (s Source) Builtin() bool {
	switch s.ID {
	case reference.BuiltinID, reference.OperationID, reference.ExtraID:
		return true
	}
	return false
}

// Lookup returns the item for id if it is available at the target version.
func (s Source) Lookup(id string) (reference.Item, bool) {
	it, ok := s.Book.Lookup(id)
	if !ok || !s.gate.Available(it.Available) {
		return reference.Item{}, false
	}
	return it, true
}

// Items yields the available items in identifier order.
func (s Source) Items() iter.Seq2[string, reference.Item] {
	return func(yield func(string, reference.Item) bool) {
		for _, id := range s.Book.Keys() {
			it := s.Book[id]
			if !s.gate.Available(it.Available) {
				continue
			}
			if !yield(id, it) {
				return
			}
		}
	}
}

// Deprecated reports whether it is deprecated at the target version.
func (s Source) Deprecated(it reference.Item) bool {
	return s.gate.Deprecated(it.Deprecated)
}

// aggregateOptions adds optional pseudo sources to an aggregate walk.
type aggregateOptions struct {
	locals reference.Book
}

// aggregate yields the built-in, operation, extra and external books, then
// the function locals when given, then every registered resource in
// registration order. Each resource is waited on; resources whose session
// was superseded are skipped. The walk ends with ctx.Err() once ctx is
// done.
func (e *Engine) aggregate(ctx context.Context, opts aggregateOptions) iter.Seq2[Source, error] {
	return func(yield func(Source, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(Source{}, err)
			return
		}

		e.mu.RLock()
		gate := e.gate
		fixed := []Source{
			{ID: reference.BuiltinID, Book: e.builtins.Builtin},
			{ID: reference.OperationID, Book: e.builtins.Operation},
			{ID: reference.ExtraID, Book: e.builtins.Extra},
			{ID: reference.ExternalID, Book: e.external},
		}
		e.mu.RUnlock()
		if opts.locals != nil {
			fixed = append(fixed, Source{ID: reference.LocalID, Book: opts.locals})
		}

		for _, src := range fixed {
			src.gate = gate
			if !yield(src, nil) {
				return
			}
		}

		for _, en := range e.snapshot() {
			res, err := en.session.Wait(ctx)
			if err == nil {
				// Wait may pick a settled session over a done ctx.
				err = ctx.Err()
			}
			if err != nil {
				yield(Source{}, err)
				return
			}
			if res == nil {
				continue
			}
			if !yield(Source{ID: en.uri, Book: res.Book, Result: res, gate: gate}, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(Source{}, err)
		}
	}
}
