package store

import (
	"database/sql"
	"fmt"
	"slices"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func lastID(res sql.Result, err error, what string) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// --- Source operations ---

func (s *Store) InsertSource(src *Source) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO sources (key, kind, path, exported_at) VALUES (?, ?, ?, ?)",
		src.Key, src.Kind, src.Path, src.ExportedAt,
	)
	id, err := lastID(res, err, "source")
	if err != nil {
		return 0, err
	}
	src.ID = id
	return id, nil
}

func (s *Store) SourceByKey(key string) (*Source, error) {
	src := &Source{}
	var path sql.NullString
	err := s.db.QueryRow(
		"SELECT id, key, kind, path, exported_at FROM sources WHERE key = ?", key,
	).Scan(&src.ID, &src.Key, &src.Kind, &path, &src.ExportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source by key: %w", err)
	}
	src.Path = path.String
	return src, nil
}

func (s *Store) Sources() ([]*Source, error) {
	rows, err := s.db.Query("SELECT id, key, kind, path, exported_at FROM sources ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sources: %w", err)
	}
	defer rows.Close()
	var sources []*Source
	for rows.Next() {
		src := &Source{}
		var path sql.NullString
		if err := rows.Scan(&src.ID, &src.Key, &src.Kind, &path, &src.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Path = path.String
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// --- Item operations ---

func insertItem(ex execer, it *Item) (int64, error) {
	availRange, availNote := versionArgs(it.Available)
	depRange, depNote := versionArgs(it.Deprecated)
	args := []any{
		it.SourceID, it.Identifier, it.Signature, it.Category, it.Description, it.IsStatic,
		availRange, availNote, depRange, depNote,
	}
	args = append(args, spanArgs(it.Location)...)
	res, err := ex.Exec(
		`INSERT INTO items (source_id, identifier, signature, category, description, is_static,
			available_range, available_note, deprecated_range, deprecated_note,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return lastID(res, err, "item")
}

func (s *Store) InsertItem(it *Item) (int64, error) {
	id, err := insertItem(s.db, it)
	if err != nil {
		return 0, err
	}
	it.ID = id
	return id, nil
}

const itemColumns = `id, source_id, identifier, signature, category, description, is_static,
	available_range, available_note, deprecated_range, deprecated_note,
	start_line, start_col, end_line, end_col`

func (s *Store) queryItems(query string, args ...any) ([]*Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it := &Item{}
		var (
			description                              sql.NullString
			availRange, availNote, depRange, depNote sql.NullString
			startLine, startCol, endLine, endCol     sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.SourceID, &it.Identifier, &it.Signature, &it.Category,
			&description, &it.IsStatic, &availRange, &availNote, &depRange, &depNote,
			&startLine, &startCol, &endLine, &endCol); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Description = description.String
		it.Available = scanVersion(availRange, availNote)
		it.Deprecated = scanVersion(depRange, depNote)
		it.Location = scanSpan(startLine, startCol, endLine, endCol)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ItemsBySource(sourceID int64) ([]*Item, error) {
	return s.queryItems("SELECT "+itemColumns+" FROM items WHERE source_id = ? ORDER BY identifier", sourceID)
}

func (s *Store) ItemsByIdentifier(identifier string) ([]*Item, error) {
	return s.queryItems("SELECT "+itemColumns+" FROM items WHERE identifier = ? ORDER BY source_id", identifier)
}

// --- Overload operations ---

func insertOverload(ex execer, o *Overload) (int64, error) {
	availRange, availNote := versionArgs(o.Available)
	depRange, depNote := versionArgs(o.Deprecated)
	res, err := ex.Exec(
		`INSERT INTO overloads (item_id, ordinal, signature, description,
			available_range, available_note, deprecated_range, deprecated_note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ItemID, o.Ordinal, o.Signature, o.Description, availRange, availNote, depRange, depNote,
	)
	return lastID(res, err, "overload")
}

func (s *Store) InsertOverload(o *Overload) (int64, error) {
	id, err := insertOverload(s.db, o)
	if err != nil {
		return 0, err
	}
	o.ID = id
	return id, nil
}

func (s *Store) OverloadsByItem(itemID int64) ([]*Overload, error) {
	rows, err := s.db.Query(
		`SELECT id, item_id, ordinal, signature, description,
			available_range, available_note, deprecated_range, deprecated_note
		 FROM overloads WHERE item_id = ? ORDER BY ordinal`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("overloads by item: %w", err)
	}
	defer rows.Close()
	var overloads []*Overload
	for rows.Next() {
		o := &Overload{}
		var description, availRange, availNote, depRange, depNote sql.NullString
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Ordinal, &o.Signature, &description,
			&availRange, &availNote, &depRange, &depNote); err != nil {
			return nil, fmt.Errorf("scan overload: %w", err)
		}
		o.Description = description.String
		o.Available = scanVersion(availRange, availNote)
		o.Deprecated = scanVersion(depRange, depNote)
		overloads = append(overloads, o)
	}
	return overloads, rows.Err()
}

// --- Symbol operations ---

func insertSymbol(ex execer, sym *Symbol) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO symbols (source_id, name, kind, start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.SourceID, sym.Name, sym.Kind,
		sym.Span.StartLine, sym.Span.StartCol, sym.Span.EndLine, sym.Span.EndCol,
		sym.ParentSymbolID,
	)
	return lastID(res, err, "symbol")
}

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	id, err := insertSymbol(s.db, sym)
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym := &Symbol{}
		var parent sql.NullInt64
		if err := rows.Scan(&sym.ID, &sym.SourceID, &sym.Name, &sym.Kind,
			&sym.Span.StartLine, &sym.Span.StartCol, &sym.Span.EndLine, &sym.Span.EndCol, &parent); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		if parent.Valid {
			sym.ParentSymbolID = &parent.Int64
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

const symbolColumns = "id, source_id, name, kind, start_line, start_col, end_line, end_col, parent_symbol_id"

func (s *Store) SymbolsBySource(sourceID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolColumns+" FROM symbols WHERE source_id = ? ORDER BY id", sourceID)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolColumns+" FROM symbols WHERE parent_symbol_id = ? ORDER BY id", symbolID)
}

// --- Diagnostic operations ---

func insertDiagnostic(ex execer, d *Diagnostic) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO diagnostics (source_id, severity, message, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.SourceID, d.Severity, d.Message,
		d.Span.StartLine, d.Span.StartCol, d.Span.EndLine, d.Span.EndCol,
	)
	return lastID(res, err, "diagnostic")
}

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnostic(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func (s *Store) DiagnosticsBySource(sourceID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, source_id, severity, message, start_line, start_col, end_line, end_col
		 FROM diagnostics WHERE source_id = ? ORDER BY id`, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by source: %w", err)
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.SourceID, &d.Severity, &d.Message,
			&d.Span.StartLine, &d.Span.StartCol, &d.Span.EndLine, &d.Span.EndCol); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

// CategoryCounts returns the number of items per category across all
// sources.
func (s *Store) CategoryCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT category, COUNT(*) FROM items GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

// Keys returns the source keys in insertion order.
func (s *Store) Keys() ([]string, error) {
	sources, err := s.Sources()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(sources))
	for _, src := range sources {
		keys = append(keys, src.Key)
	}
	return slices.Clip(keys), nil
}
