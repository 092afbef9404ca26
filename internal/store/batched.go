package store

import "sync"

// BatchedStore buffers snapshot inserts in memory using fake (negative)
// IDs. It implements DataStore so the exporter can write to it without
// knowing whether it is hitting SQLite or an in-memory buffer.
//
// The mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	Items       []Item
	Overloads   []Overload
	Symbols     []Symbol
	Diagnostics []Diagnostic

	nextFakeID int64 // starts at -1, decrements
}

var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore that commits into s.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertItem(it *Item) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	it.ID = fakeID
	b.Items = append(b.Items, *it)
	return fakeID, nil
}

func (b *BatchedStore) InsertOverload(o *Overload) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	o.ID = fakeID
	b.Overloads = append(b.Overloads, *o)
	return fakeID, nil
}

func (b *BatchedStore) InsertSymbol(sym *Symbol) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sym.ID = fakeID
	b.Symbols = append(b.Symbols, *sym)
	return fakeID, nil
}

func (b *BatchedStore) InsertDiagnostic(d *Diagnostic) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Diagnostics = append(b.Diagnostics, *d)
	return fakeID, nil
}

// Len reports the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Items) + len(b.Overloads) + len(b.Symbols) + len(b.Diagnostics)
}

// Commit writes the buffer to the backing store.
func (b *BatchedStore) Commit() error {
	return b.store.CommitBatch(b)
}
