package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/marketsync/backend/internal/application/catalog"
	orderapp "github.com/marketsync/backend/internal/application/order"
	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/order"
)

func TestExportSummary(t *testing.T) {
	assert.Empty(t, exportSummary(nil))

	got := exportSummary(&catalogapp.Result{
		ContentType:  catalog.ContentTypeCatalog,
		ProductCount: 3,
		OptionCount:  7,
		Removed:      2,
		Skipped:      map[catalog.SkipReason]int{"no_price": 1, "invalid_ean": 4},
	})
	assert.Equal(t, "catalog_export: 3 products, 7 options, 2 identities removed, skipped invalid_ean=4 no_price=1", got)
}

func TestImportSummary(t *testing.T) {
	got := importSummary(&orderapp.ImportSummary{
		Listed:   5,
		Imported: 2,
		Failed:   1,
		Skipped:  map[order.SkipReason]int{order.SkipAlreadyImported: 1, order.SkipFulfilmentMismatch: 1},
	})
	assert.Equal(t, "5 listed, 2 imported, 2 skipped, 1 failed", got)
}

func TestParseConnectionID(t *testing.T) {
	id, err := ParseConnectionID("")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = ParseConnectionID("all")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = ParseConnectionID(" 12 ")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(12), *id)

	_, err = ParseConnectionID("0")
	assert.Error(t, err)
	_, err = ParseConnectionID("abc")
	assert.Error(t, err)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 50, orDefault(0, 50))
	assert.Equal(t, 10, orDefault(10, 50))
}
