package store

// DataStore is the interface for snapshot writes. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering committed in one
// transaction) implement it.
type DataStore interface {
	InsertItem(it *Item) (int64, error)
	InsertOverload(o *Overload) (int64, error)
	InsertSymbol(sym *Symbol) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
