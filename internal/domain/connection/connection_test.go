package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConnection() *Connection {
	return &Connection{
		Name:       "Main shop",
		PublicKey:  "public",
		PrivateKey: "secret",
		IsActive:   true,
		Catalog:    CatalogPolicy{ExportLanguages: []string{"en", "nl"}},
		Offer:      OfferPolicy{VirtualStockAmount: 100},
		Import:     OrderImportPolicy{OrderStatus: "wc-processing"},
		Shipment:   ShipmentExportPolicy{TriggerStatus: "wc-completed"},
	}
}

func TestConnection_Validate(t *testing.T) {
	t.Run("valid connection defaults the fulfilment filter", func(t *testing.T) {
		c := validConnection()
		assert.NoError(t, c.Validate())
		assert.Equal(t, FulfilmentInternalOnly, c.Import.FulfilmentFilter)
	})

	tests := []struct {
		name   string
		mutate func(c *Connection)
		err    error
	}{
		{"missing name", func(c *Connection) { c.Name = " " }, ErrMissingName},
		{"missing private key", func(c *Connection) { c.PrivateKey = "" }, ErrMissingCredentials},
		{"missing languages", func(c *Connection) { c.Catalog.ExportLanguages = nil }, ErrMissingExportLanguage},
		{"negative virtual stock", func(c *Connection) { c.Offer.VirtualStockAmount = -1 }, ErrInvalidVirtualStock},
		{"unknown fulfilment filter", func(c *Connection) { c.Import.FulfilmentFilter = "both" }, ErrInvalidFulfilmentFilter},
		{"missing import status", func(c *Connection) { c.Import.OrderStatus = "" }, ErrMissingOrderImportStatus},
		{"missing shipment trigger", func(c *Connection) { c.Shipment.TriggerStatus = "" }, ErrMissingShipmentTrigger},
		{"blank tracking pattern", func(c *Connection) { c.Shipment.TrackingPatterns = []string{"tracking:[code]", " "} }, ErrInvalidTrackingPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConnection()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), tt.err)
		})
	}
}

func TestConnection_OrderStatusesToFetch(t *testing.T) {
	c := validConnection()

	c.Import.FulfilmentFilter = FulfilmentInternalOnly
	assert.Equal(t, []string{"paid"}, c.OrderStatusesToFetch())

	c.Import.FulfilmentFilter = FulfilmentExternalOnly
	assert.Equal(t, []string{"completed"}, c.OrderStatusesToFetch())

	c.Import.FulfilmentFilter = FulfilmentAny
	assert.Equal(t, []string{"paid", "completed"}, c.OrderStatusesToFetch())
}

func TestPolicies(t *testing.T) {
	c := validConnection()
	assert.Equal(t, "en", c.Catalog.DefaultLanguage())
	assert.Equal(t, DefaultTrackingPatterns, c.Shipment.Patterns())
	assert.False(t, c.Shipment.TriggeredByCarrier())

	c.Shipment.TriggerStatus = ShipmentTriggerCarrierTNT
	assert.True(t, c.Shipment.TriggeredByCarrier())

	c.Offer.ConditionalBackorders = true
	sp := c.Offer.StockPolicy()
	assert.Equal(t, 100, sp.VirtualAmount)
	assert.True(t, sp.ConditionalBackorders)
}
