package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and references within the batch are rewritten using the fakeToReal
// mapping.
//
// Insert order respects FK dependencies:
//  1. Items (depend on source_id only, which is already real)
//  2. Overloads (depend on item_id)
//  3. Symbols (depend on source_id, parent_symbol_id)
//  4. Diagnostics (depend on source_id only)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Items
	for _, it := range batch.Items {
		realID, err := insertItem(tx, &it)
		if err != nil {
			return fmt.Errorf("commit batch: item %q: %w", it.Identifier, err)
		}
		fakeToReal[it.ID] = realID
	}

	// 2. Overloads
	for _, o := range batch.Overloads {
		if o.ItemID < 0 {
			realID, ok := fakeToReal[o.ItemID]
			if !ok {
				return fmt.Errorf("commit batch: overload %q has item_id=%d not in batch", o.Signature, o.ItemID)
			}
			o.ItemID = realID
		}
		realID, err := insertOverload(tx, &o)
		if err != nil {
			return fmt.Errorf("commit batch: overload %q: %w", o.Signature, err)
		}
		fakeToReal[o.ID] = realID
	}

	// 3. Symbols. Parents are always buffered before their children.
	for _, sym := range batch.Symbols {
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID, ok := fakeToReal[*sym.ParentSymbolID]
			if !ok {
				return fmt.Errorf("commit batch: symbol %q has parent_symbol_id=%d not in batch", sym.Name, *sym.ParentSymbolID)
			}
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbol(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	// 4. Diagnostics
	for _, d := range batch.Diagnostics {
		if _, err := insertDiagnostic(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	batch.Items, batch.Overloads, batch.Symbols, batch.Diagnostics = nil, nil, nil, nil
	return nil
}
