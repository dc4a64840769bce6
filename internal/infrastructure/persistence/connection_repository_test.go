package persistence

import (
	"context"
	"testing"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/infrastructure/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnection(name string) *connection.Connection {
	return &connection.Connection{
		Name:       name,
		PublicKey:  "pub",
		PrivateKey: "priv",
		IsActive:   true,
		Catalog: connection.CatalogPolicy{
			ExportLanguages: []string{"nl", "en"},
			OnlyActive:      true,
			EANSource:       catalog.MustParseAttributeSource("attribute:ean"),
		},
		Offer: connection.OfferPolicy{VirtualStockAmount: 5, ExportOnChange: true},
		Import: connection.OrderImportPolicy{
			OrderStatus:      "wc-processing",
			CarrierID:        "flat_rate",
			PaymentMethodID:  "marketplace",
			FulfilmentFilter: connection.FulfilmentAny,
		},
		Shipment: connection.ShipmentExportPolicy{
			TriggerStatus:    "wc-completed",
			TrackingPatterns: []string{"code: [code]"},
		},
	}
}

func newTestConnectionRepository(t *testing.T) *GormConnectionRepository {
	sealer, err := secrets.NewSealer("test-master-key")
	require.NoError(t, err)
	return NewGormConnectionRepository(setupSyncTestDB(t), sealer)
}

func TestGormConnectionRepository_SaveAndFind(t *testing.T) {
	repo := newTestConnectionRepository(t)
	ctx := context.Background()

	conn := testConnection("Shop A")
	require.NoError(t, repo.Save(ctx, conn))
	require.NotZero(t, conn.ID)

	found, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "priv", found.PrivateKey)
	assert.Equal(t, []string{"nl", "en"}, found.Catalog.ExportLanguages)
	assert.Equal(t, "attribute:ean", found.Catalog.EANSource.String())
	assert.False(t, found.Catalog.CostSource.IsSet())
	assert.Equal(t, 5, found.Offer.VirtualStockAmount)
	assert.Equal(t, connection.FulfilmentAny, found.Import.FulfilmentFilter)
	assert.Equal(t, []string{"code: [code]"}, found.Shipment.TrackingPatterns)

	var sealed []byte
	require.NoError(t, repo.db.Raw("SELECT private_key_sealed FROM connections WHERE id = ?", conn.ID).Scan(&sealed).Error)
	assert.NotContains(t, string(sealed), "priv")
}

func TestGormConnectionRepository_Update(t *testing.T) {
	repo := newTestConnectionRepository(t)
	ctx := context.Background()

	conn := testConnection("Shop A")
	require.NoError(t, repo.Save(ctx, conn))

	conn.Name = "Shop A2"
	conn.IsActive = false
	conn.PrivateKey = "rotated"
	require.NoError(t, repo.Save(ctx, conn))

	found, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop A2", found.Name)
	assert.False(t, found.IsActive)
	assert.Equal(t, "rotated", found.PrivateKey)

	missing := testConnection("ghost")
	missing.ID = 999
	assert.ErrorIs(t, repo.Save(ctx, missing), connection.ErrNotFound)
}

func TestGormConnectionRepository_FindActive(t *testing.T) {
	repo := newTestConnectionRepository(t)
	ctx := context.Background()

	a := testConnection("A")
	b := testConnection("B")
	b.IsActive = false
	c := testConnection("C")
	for _, conn := range []*connection.Connection{a, b, c} {
		require.NoError(t, repo.Save(ctx, conn))
	}

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "A", active[0].Name)
	assert.Equal(t, "C", active[1].Name)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGormConnectionRepository_Delete(t *testing.T) {
	repo := newTestConnectionRepository(t)
	ctx := context.Background()

	conn := testConnection("A")
	require.NoError(t, repo.Save(ctx, conn))
	require.NoError(t, repo.Delete(ctx, conn.ID))

	_, err := repo.FindByID(ctx, conn.ID)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, conn.ID), connection.ErrNotFound)
}
