package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/order"
)

func TestAdapter_CreateShellAndComplete(t *testing.T) {
	var completeBody wcOrderBody
	var completeQuery string
	var note wcNoteBody

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body wcOrderBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pending", body.Status)
		writeJSON(w, map[string]any{"id": 90, "number": "90"})
	})
	mux.HandleFunc("/wp-json/wc/v3/orders/90", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck", user)
		assert.Equal(t, "cs", pass)
		completeQuery = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&completeBody))
		writeJSON(w, map[string]any{"id": 90, "number": "1090"})
	})
	mux.HandleFunc("/wp-json/wc/v3/orders/90/notes", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&note))
		writeJSON(w, map[string]any{"id": 1})
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	shell, err := a.CreateShell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(90), shell.ID)

	variation := int64(101)
	ref, err := a.Complete(ctx, shell.ID, &order.LocalOrder{
		Billing:       order.LocalAddress{FirstName: "Ada", Email: "ada@example.com"},
		Shipping:      order.LocalAddress{FirstName: "Ada", City: "Utrecht"},
		Meta:          []order.MetaEntry{{Key: "_marketplace_order_number", Value: "R1"}},
		Lines:         []order.LocalLine{{ProductID: 10, VariationID: &variation, Name: "Shirt", Quantity: 2, Total: decimal.RequireFromString("25"), Attributes: map[string]string{"pa_color": "Dark Red"}}},
		ShippingLines: []order.ShippingLine{{MethodID: "flat_rate", MethodTitle: "Marketplace channel `Shop` (C1)", Total: decimal.RequireFromString("4.95")}},
		FeeLines:      []order.FeeLine{{Name: "payment", Total: decimal.RequireFromString("0.5")}},
		Currency:      "EUR",
		PaymentMethod: "bacs",
		Status:        "wc-processing",
		StatusNote:    "paid",
		SetPaid:       true,
		SkipTaxes:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "1090", ref.Number)

	assert.Equal(t, "send_emails=false", completeQuery)
	assert.Equal(t, "processing", completeBody.Status)
	assert.True(t, completeBody.SetPaid)
	require.Len(t, completeBody.LineItems, 1)
	item := completeBody.LineItems[0]
	assert.Equal(t, int64(101), item.VariationID)
	assert.Equal(t, "25.00", item.Total)
	assert.Equal(t, zeroRateTaxClass, item.TaxClass)
	assert.Equal(t, []wcKeyValue{{Key: "pa_color", Value: "Dark Red"}}, item.MetaData)
	assert.Equal(t, "4.95", completeBody.ShippingLines[0].Total)
	assert.Equal(t, "0.50", completeBody.FeeLines[0].Total)
	assert.Equal(t, "Utrecht", completeBody.Shipping.City)
	assert.Equal(t, "Marketplace order status: paid", note.Note)
	assert.False(t, note.CustomerNote)
}

func TestAdapter_DeleteOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/orders/90", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "true", r.URL.Query().Get("force"))
		writeJSON(w, map[string]any{"id": 90})
	})
	mux.HandleFunc("/wp-json/wc/v3/orders/91", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/wp-json/wc/v3/orders/92", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"code":"woocommerce_rest_cannot_delete","message":"Sorry"}`)
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	assert.NoError(t, a.DeleteOrder(ctx, 90))
	assert.NoError(t, a.DeleteOrder(ctx, 91))
	err := a.DeleteOrder(ctx, 92)
	assert.ErrorIs(t, err, ErrRequestRejected)
	assert.Contains(t, err.Error(), "woocommerce_rest_cannot_delete")
}

func TestAdapter_ListNotes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/orders/90/notes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"id": 3, "note": "Track &amp; Trace (3SABC)", "date_created_gmt": "2024-03-01T12:00:00"},
			{"id": 1, "note": "Order created", "date_created_gmt": "2024-02-29T08:30:00"},
		})
	})
	a := newTestAdapter(t, mux)

	notes, err := a.ListNotes(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, int64(3), notes[0].ID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), notes[0].CreatedAt)
}

func TestAdapter_Lookups(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/payment_gateways", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"id": "bacs", "title": "Bank transfer", "enabled": true},
			{"id": "cod", "title": "Cash on delivery", "enabled": false},
		})
	})
	mux.HandleFunc("/wp-json/wc/v3/shipping_methods", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"id": "flat_rate", "title": "Flat rate"}})
	})
	mux.HandleFunc("/wp-json/wc/v3/reports/orders/totals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"slug": "processing", "name": "Processing", "total": 3},
			{"slug": "completed", "name": "Completed", "total": 9},
		})
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	gateways, err := a.PaymentGateways(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bacs": "Bank transfer"}, gateways)

	methods, err := a.ShippingMethods(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"flat_rate": "Flat rate"}, methods)

	statuses, err := a.OrderStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"wc-processing": "Processing", "wc-completed": "Completed"}, statuses)
}

var _ order.LocalOrderStore = (*Adapter)(nil)
