package ipfls

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/ipfls/internal/store"
)

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExport_WritesSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib.ipf"), "Function Lib()\nEnd\n")
	e := newTestEngine(t, WithFolders(dir))
	ctx := testCtx(t)
	require.NoError(t, e.Refresh(ctx))
	openDocs(t, e, docA, procA, docB, "Function Broken()\n")

	dbPath := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, e.Export(ctx, dbPath))
	s := openStore(t, dbPath)

	sources, err := s.Sources()
	require.NoError(t, err)
	kinds := make(map[string]string)
	byKey := make(map[string]*store.Source)
	for _, src := range sources {
		kinds[src.Key] = src.Kind
		byKey[src.Key] = src
	}
	libURI := PathToURI(filepath.Join(dir, "lib.ipf"))
	assert.Equal(t, map[string]string{
		"builtin":   store.KindBuiltin,
		"operation": store.KindBuiltin,
		"extra":     store.KindBuiltin,
		"external":  store.KindExternal,
		libURI:      store.KindFile,
		docA:        store.KindDocument,
		docB:        store.KindDocument,
	}, kinds)
	assert.Equal(t, filepath.Join(dir, "lib.ipf"), byKey[libURI].Path)

	// Built-ins are gated at 9.10, so NewFeature is present.
	items, err := s.ItemsBySource(byKey["builtin"].ID)
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.Identifier)
	}
	assert.Equal(t, []string{"abs", "newfeature", "oldthing", "pi", "sin"}, ids)

	abs := items[0]
	overloads, err := s.OverloadsByItem(abs.ID)
	require.NoError(t, err)
	require.Len(t, overloads, 2)
	assert.Equal(t, "abs(z)", overloads[1].Signature)
	assert.Equal(t, &store.Version{Range: ">=9.1.0"}, items[1].Available)

	items, err = s.ItemsBySource(byKey[docA].ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "hidden", items[2].Identifier)
	assert.True(t, items[2].IsStatic)
	require.NotNil(t, items[2].Location)
	assert.Equal(t, 6, items[2].Location.StartLine)

	syms, err := s.SymbolsBySource(byKey[docA].ID)
	require.NoError(t, err)
	require.NotEmpty(t, syms)
	assert.Equal(t, "FooBar", syms[0].Name)
	assert.Nil(t, syms[0].ParentSymbolID)
	children, err := s.SymbolChildren(syms[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, children)

	diags, err := s.DiagnosticsBySource(byKey[docB].ID)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, 1, diags[0].Severity)

	version, err := s.GetMetadata(MetaIgorVersion)
	require.NoError(t, err)
	assert.Equal(t, "9.10", version)
	exportedAt, err := s.GetMetadata(MetaExportedAt)
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, exportedAt)
	assert.NoError(t, err)
	id, err := s.GetMetadata(MetaExportID)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestExport_ReplacesPreviousSnapshot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := testCtx(t)
	openDocs(t, e, docA, "Function First()\nEnd\n")

	dbPath := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, e.Export(ctx, dbPath))
	firstID := func() string {
		s := openStore(t, dbPath)
		id, err := s.GetMetadata(MetaExportID)
		require.NoError(t, err)
		return id
	}()

	require.NoError(t, e.ChangeDocument(ctx, docA, "Function Second()\nEnd\n"))
	require.NoError(t, e.Wait(ctx))
	require.NoError(t, e.Export(ctx, dbPath))

	s := openStore(t, dbPath)
	items, err := s.ItemsByIdentifier("first")
	require.NoError(t, err)
	assert.Empty(t, items)
	items, err = s.ItemsByIdentifier("second")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	id, err := s.GetMetadata(MetaExportID)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, id)
}

func TestExport_VersionGate(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithConfig(testConfig("8.04")))
	dbPath := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, e.Export(testCtx(t), dbPath))

	s := openStore(t, dbPath)
	items, err := s.ItemsByIdentifier("newfeature")
	require.NoError(t, err)
	assert.Empty(t, items)
}
