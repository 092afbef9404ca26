package ipfls

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/store"
)

// Metadata keys written by Export.
const (
	MetaIgorVersion = "igor_version"
	MetaExportedAt  = "exported_at"
	MetaExportID    = "export_id"
)

// Export writes every aggregated book to a SQLite snapshot at dbPath. Each
// source replaces whatever an earlier export recorded under the same key.
// Items are gated at the configured version, so the snapshot shows what
// completion would offer.
func (e *Engine) Export(ctx context.Context, dbPath string) error {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("ipfls: export: %w", err)
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("ipfls: export: %w", err)
	}

	sources, err := e.Query().Sources(ctx)
	if err != nil {
		return fmt.Errorf("ipfls: export: %w", err)
	}

	now := time.Now().UTC()
	for _, src := range sources {
		if err := e.exportSource(s, src, now); err != nil {
			return fmt.Errorf("ipfls: export %s: %w", src.ID, err)
		}
	}

	for key, value := range map[string]string{
		MetaIgorVersion: e.Config().IgorVersion,
		MetaExportedAt:  now.Format(time.RFC3339),
		MetaExportID:    uuid.NewString(),
	} {
		if err := s.SetMetadata(key, value); err != nil {
			return fmt.Errorf("ipfls: export: %w", err)
		}
	}
	e.logger.Info("exported snapshot", "path", dbPath, "sources", len(sources))
	return nil
}

func (e *Engine) sourceKind(id string) string {
	switch id {
	case reference.BuiltinID, reference.OperationID, reference.ExtraID:
		return store.KindBuiltin
	case reference.ExternalID:
		return store.KindExternal
	}
	if _, open := e.DocumentText(id); open {
		return store.KindDocument
	}
	return store.KindFile
}

func (e *Engine) exportSource(s *store.Store, src Source, now time.Time) error {
	if prev, err := s.SourceByKey(src.ID); err != nil {
		return err
	} else if prev != nil {
		if err := s.DeleteSourceData(prev.ID); err != nil {
			return err
		}
	}

	row := &store.Source{Key: src.ID, Kind: e.sourceKind(src.ID), ExportedAt: now}
	if path, ok := URIToPath(src.ID); ok {
		row.Path = path
	}
	if _, err := s.InsertSource(row); err != nil {
		return err
	}

	batch := store.NewBatchedStore(s)
	for id, it := range src.Items() {
		if err := exportItem(batch, row.ID, id, it); err != nil {
			return err
		}
	}
	if src.Result != nil {
		for _, sym := range src.Result.Symbols {
			if err := exportSymbol(batch, row.ID, sym, nil); err != nil {
				return err
			}
		}
		for _, d := range src.Result.Diagnostics {
			if _, err := batch.InsertDiagnostic(&store.Diagnostic{
				SourceID: row.ID,
				Severity: int(d.Severity),
				Message:  d.Message,
				Span:     toSpan(d.Range),
			}); err != nil {
				return err
			}
		}
	}
	return batch.Commit()
}

func exportItem(ds store.DataStore, sourceID int64, id string, it reference.Item) error {
	row := &store.Item{
		SourceID:    sourceID,
		Identifier:  id,
		Signature:   it.Signature,
		Category:    it.Category.String(),
		Description: it.Description,
		IsStatic:    it.IsStatic,
		Available:   toVersion(it.Available),
		Deprecated:  toVersion(it.Deprecated),
	}
	if it.Location != nil {
		sp := toSpan(*it.Location)
		row.Location = &sp
	}
	itemID, err := ds.InsertItem(row)
	if err != nil {
		return err
	}
	for i, o := range it.Overloads {
		if _, err := ds.InsertOverload(&store.Overload{
			ItemID:      itemID,
			Ordinal:     i,
			Signature:   o.Signature,
			Description: o.Description,
			Available:   toVersion(o.Available),
			Deprecated:  toVersion(o.Deprecated),
		}); err != nil {
			return err
		}
	}
	return nil
}

// exportSymbol writes sym before its children so parents always precede
// them in the batch.
func exportSymbol(ds store.DataStore, sourceID int64, sym DocumentSymbol, parent *int64) error {
	id, err := ds.InsertSymbol(&store.Symbol{
		SourceID:       sourceID,
		Name:           sym.Name,
		Kind:           int(sym.Kind),
		Span:           toSpan(sym.Range),
		ParentSymbolID: parent,
	})
	if err != nil {
		return err
	}
	for _, child := range sym.Children {
		if err := exportSymbol(ds, sourceID, child, &id); err != nil {
			return err
		}
	}
	return nil
}

func toSpan(r Range) store.Span {
	return store.Span{
		StartLine: r.Start.Line,
		StartCol:  r.Start.Character,
		EndLine:   r.End.Line,
		EndCol:    r.End.Character,
	}
}

func toVersion(r *reference.VersionRange) *store.Version {
	if r == nil {
		return nil
	}
	return &store.Version{Range: r.Range, Note: r.Description}
}
