package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/catalog"
)

func TestFileName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "ec_3_catalog_export_1700000000_ab12.xml", FileName(catalog.ContentTypeCatalog, 3, at, "ab12"))
	assert.Equal(t, "ec_3_offer_update_1700000000_ab12.xml", FileName(catalog.ContentTypeOfferUpdate, 3, at, "ab12"))
}

func TestLocalArtifactStore_RunsInTheSameSecondDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalArtifactStore(dir, nil)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	full, err := store.Create(catalog.ContentTypeOfferUpdate, 9)
	require.NoError(t, err)
	queued, err := store.Create(catalog.ContentTypeOfferUpdate, 9)
	require.NoError(t, err)
	assert.NotEqual(t, full.Path(), queued.Path())

	require.NoError(t, full.Close())
	require.NoError(t, queued.Close())
	for _, path := range []string{full.Path(), queued.Path()} {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
}

func TestLocalArtifactStore_CreateWriteRemove(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalArtifactStore(dir, nil)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	w, err := store.Create(catalog.ContentTypeOfferUpdate, 9)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "offer_update"), filepath.Dir(w.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(w.Path()), "ec_9_offer_update_1700000000_"))

	require.NoError(t, w.Write(&catalog.ProductRecord{
		Identifier: 10,
		Options:    []catalog.OptionRecord{{Identifier: 501, Stock: 4, Price: "12.50"}},
	}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(&catalog.ProductRecord{}), ErrWriterClosed)

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, "<products><product><identifier>10</identifier>")
	assert.Contains(t, doc, "<option><identifier>501</identifier><stock>4</stock><price>12.50</price></option>")
	assert.True(t, strings.HasSuffix(doc, "</products>"))

	require.NoError(t, store.Remove(w.Path()))
	require.NoError(t, store.Remove(w.Path()))
	_, err = os.Stat(w.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLocalArtifactStore_Cleanup(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalArtifactStore(dir, nil)
	now := time.Now()
	store.now = func() time.Time { return now }

	catalogDir := filepath.Join(dir, string(catalog.ContentTypeCatalog))
	require.NoError(t, os.MkdirAll(catalogDir, 0o755))
	old := filepath.Join(catalogDir, "ec_1_catalog_export_1.xml")
	fresh := filepath.Join(catalogDir, "ec_1_catalog_export_2.xml")
	other := filepath.Join(catalogDir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := now.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	removed, err := store.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}
