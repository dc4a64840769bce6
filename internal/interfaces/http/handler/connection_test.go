package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

func connectionBody() map[string]any {
	return map[string]any{
		"name":        "Main channel",
		"public_key":  "pub",
		"private_key": "priv",
		"catalog": map[string]any{
			"export_languages": []string{"nl", "en"},
			"brand_source":     "taxonomy:product_brand",
		},
		"offer":    map[string]any{"virtual_stock_amount": 5},
		"import":   map[string]any{"order_status": "wc-processing", "fulfilment_filter": "any"},
		"shipment": map[string]any{"trigger_status": "wc-completed"},
	}
}

func TestConnectionHandler_Create(t *testing.T) {
	t.Run("stores a valid connection", func(t *testing.T) {
		repo := newMemoryConnections()
		h := NewConnectionHandler(repo)

		w := serve(t, http.MethodPost, "/connections", "/connections", connectionBody(), h.Create)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decodeData[ConnectionResponse](t, w)
		assert.Equal(t, int64(1), resp.ID)
		assert.True(t, resp.HasPrivateKey)
		assert.True(t, resp.IsActive)
		assert.NotContains(t, w.Body.String(), "priv\"")

		stored, err := repo.FindByID(t.Context(), 1)
		require.NoError(t, err)
		assert.Equal(t, "priv", stored.PrivateKey)
		assert.Equal(t, []string{"nl", "en"}, stored.Catalog.ExportLanguages)
		assert.Equal(t, catalog.AttributeSourceTaxonomy, stored.Catalog.BrandSource.Kind)
	})

	t.Run("rejects an invalid body", func(t *testing.T) {
		body := connectionBody()
		body["catalog"] = map[string]any{"export_languages": []string{"not a language!"}}

		w := serve(t, http.MethodPost, "/connections", "/connections", body, NewConnectionHandler(newMemoryConnections()).Create)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
	})

	t.Run("rejects a missing private key", func(t *testing.T) {
		body := connectionBody()
		delete(body, "private_key")

		w := serve(t, http.MethodPost, "/connections", "/connections", body, NewConnectionHandler(newMemoryConnections()).Create)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidConfiguration, errorCode(t, w))
	})

	t.Run("rejects an unknown attribute source", func(t *testing.T) {
		body := connectionBody()
		body["catalog"] = map[string]any{"export_languages": []string{"nl"}, "ean_source": "meta:ean"}

		w := serve(t, http.MethodPost, "/connections", "/connections", body, NewConnectionHandler(newMemoryConnections()).Create)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, decode(t, w).Error.Message, "ean_source")
	})

	t.Run("rejects a blank tracking pattern", func(t *testing.T) {
		body := connectionBody()
		body["shipment"] = map[string]any{"trigger_status": "wc-completed", "tracking_patterns": []string{"tracking code:[code]", "  "}}

		w := serve(t, http.MethodPost, "/connections", "/connections", body, NewConnectionHandler(newMemoryConnections()).Create)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestConnectionHandler_GetAndList(t *testing.T) {
	repo := newMemoryConnections(validConnection(1), validConnection(2))
	h := NewConnectionHandler(repo)

	w := serve(t, http.MethodGet, "/connections/:id", "/connections/2", nil, h.Get)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decodeData[ConnectionResponse](t, w).ID)

	w = serve(t, http.MethodGet, "/connections/:id", "/connections/9", nil, h.Get)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, errorCode(t, w))

	w = serve(t, http.MethodGet, "/connections/:id", "/connections/abc", nil, h.Get)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, http.MethodGet, "/connections", "/connections", nil, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[[]ConnectionResponse](t, w)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), decode(t, w).Meta.Total)
}

func TestConnectionHandler_Update(t *testing.T) {
	repo := newMemoryConnections(validConnection(1))
	h := NewConnectionHandler(repo)

	body := connectionBody()
	body["name"] = "Renamed"
	body["is_active"] = false
	delete(body, "private_key")

	w := serve(t, http.MethodPut, "/connections/:id", "/connections/1", body, h.Update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := repo.FindByID(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "priv", stored.PrivateKey)

	w = serve(t, http.MethodPut, "/connections/:id", "/connections/7", connectionBody(), h.Update)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectionHandler_Delete(t *testing.T) {
	repo := newMemoryConnections(validConnection(1))
	h := NewConnectionHandler(repo)

	w := serve(t, http.MethodDelete, "/connections/:id", "/connections/1", nil, h.Delete)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, http.MethodDelete, "/connections/:id", "/connections/1", nil, h.Delete)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
