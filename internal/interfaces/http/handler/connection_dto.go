package handler

import (
	"fmt"
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
)

// CatalogPolicyRequest configures catalog rendering for a connection
type CatalogPolicyRequest struct {
	ExportLanguages            []string `json:"export_languages" binding:"required,min=1,dive,bcp47" example:"nl,en"`
	OnlyActive                 bool     `json:"only_active"`
	IncludeTaxonomies          bool     `json:"include_taxonomies"`
	SkipRegenerateIDsForSimple bool     `json:"skip_regenerate_ids_for_simple"`
	SpecialPriceExport         bool     `json:"special_price_export"`
	EANLeadingZero             bool     `json:"ean_leading_zero"`
	SkipInvalidEAN             bool     `json:"skip_invalid_ean"`
	EANSource                  string   `json:"ean_source" example:"plugin:woocommerce:global_unique_id"`
	CostSource                 string   `json:"cost_source"`
	DeliverySource             string   `json:"delivery_source"`
	TitleSource                string   `json:"title_source"`
	DescriptionSource          string   `json:"description_source"`
	BrandSource                string   `json:"brand_source" example:"taxonomy:product_brand"`
}

// OfferPolicyRequest configures stock handling for offer exports
type OfferPolicyRequest struct {
	VirtualStockAmount    int  `json:"virtual_stock_amount" binding:"gte=0,lte=9999"`
	ConditionalBackorders bool `json:"conditional_backorders"`
	ExportOnChange        bool `json:"export_on_change"`
}

// OrderImportPolicyRequest configures order import
type OrderImportPolicyRequest struct {
	OrderStatus      string `json:"order_status" binding:"required" example:"wc-processing"`
	CarrierID        string `json:"carrier_id" example:"flat_rate"`
	PaymentMethodID  string `json:"payment_method_id" example:"bacs"`
	FulfilmentFilter string `json:"fulfilment_filter" binding:"omitempty,oneof=internal_only external_only any" example:"internal_only"`
	SendEmails       bool   `json:"send_emails"`
	SkipTaxes        bool   `json:"skip_taxes"`
}

// ShipmentPolicyRequest configures shipment export
type ShipmentPolicyRequest struct {
	TriggerStatus    string   `json:"trigger_status" binding:"required" example:"wc-completed"`
	TrackingPatterns []string `json:"tracking_patterns"`
}

// ConnectionRequest creates or replaces a connection
// @Description Request body for creating or updating a marketplace connection
type ConnectionRequest struct {
	Name       string `json:"name" binding:"required,max=200" example:"Main channel"`
	PublicKey  string `json:"public_key" binding:"required,max=255"`
	PrivateKey string `json:"private_key" binding:"max=255"`
	IsActive   *bool  `json:"is_active" example:"true"`

	Catalog  CatalogPolicyRequest     `json:"catalog"`
	Offer    OfferPolicyRequest       `json:"offer"`
	Import   OrderImportPolicyRequest `json:"import"`
	Shipment ShipmentPolicyRequest    `json:"shipment"`
}

// toDomain builds the connection. The private key of existing is kept when
// the request leaves it empty.
func (r *ConnectionRequest) toDomain(existing *connection.Connection) (*connection.Connection, error) {
	conn := &connection.Connection{}
	if existing != nil {
		*conn = *existing
	}
	conn.Name = r.Name
	conn.PublicKey = r.PublicKey
	if r.PrivateKey != "" {
		conn.PrivateKey = r.PrivateKey
	}
	conn.IsActive = true
	if r.IsActive != nil {
		conn.IsActive = *r.IsActive
	}

	sources := []struct {
		name string
		raw  string
		dst  *catalog.AttributeSource
	}{
		{"ean_source", r.Catalog.EANSource, &conn.Catalog.EANSource},
		{"cost_source", r.Catalog.CostSource, &conn.Catalog.CostSource},
		{"delivery_source", r.Catalog.DeliverySource, &conn.Catalog.DeliverySource},
		{"title_source", r.Catalog.TitleSource, &conn.Catalog.TitleSource},
		{"description_source", r.Catalog.DescriptionSource, &conn.Catalog.DescriptionSource},
		{"brand_source", r.Catalog.BrandSource, &conn.Catalog.BrandSource},
	}
	for _, s := range sources {
		parsed, err := catalog.ParseAttributeSource(s.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = parsed
	}

	conn.Catalog.ExportLanguages = r.Catalog.ExportLanguages
	conn.Catalog.OnlyActive = r.Catalog.OnlyActive
	conn.Catalog.IncludeTaxonomies = r.Catalog.IncludeTaxonomies
	conn.Catalog.SkipRegenerateIDsForSimple = r.Catalog.SkipRegenerateIDsForSimple
	conn.Catalog.SpecialPriceExport = r.Catalog.SpecialPriceExport
	conn.Catalog.EANLeadingZero = r.Catalog.EANLeadingZero
	conn.Catalog.SkipInvalidEAN = r.Catalog.SkipInvalidEAN

	conn.Offer = connection.OfferPolicy{
		VirtualStockAmount:    r.Offer.VirtualStockAmount,
		ConditionalBackorders: r.Offer.ConditionalBackorders,
		ExportOnChange:        r.Offer.ExportOnChange,
	}
	conn.Import = connection.OrderImportPolicy{
		OrderStatus:      r.Import.OrderStatus,
		CarrierID:        r.Import.CarrierID,
		PaymentMethodID:  r.Import.PaymentMethodID,
		FulfilmentFilter: connection.FulfilmentFilter(r.Import.FulfilmentFilter),
		SendEmails:       r.Import.SendEmails,
		SkipTaxes:        r.Import.SkipTaxes,
	}
	conn.Shipment = connection.ShipmentExportPolicy{
		TriggerStatus:    r.Shipment.TriggerStatus,
		TrackingPatterns: r.Shipment.TrackingPatterns,
	}
	return conn, nil
}

// ConnectionResponse is a connection as returned by the API. The private
// key is never returned.
// @Description Marketplace connection
type ConnectionResponse struct {
	ID            int64  `json:"id" example:"1"`
	Name          string `json:"name" example:"Main channel"`
	PublicKey     string `json:"public_key"`
	HasPrivateKey bool   `json:"has_private_key"`
	IsActive      bool   `json:"is_active"`

	Catalog  CatalogPolicyRequest     `json:"catalog"`
	Offer    OfferPolicyRequest       `json:"offer"`
	Import   OrderImportPolicyRequest `json:"import"`
	Shipment ShipmentPolicyRequest    `json:"shipment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toConnectionResponse(c *connection.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:            c.ID,
		Name:          c.Name,
		PublicKey:     c.PublicKey,
		HasPrivateKey: c.PrivateKey != "",
		IsActive:      c.IsActive,
		Catalog: CatalogPolicyRequest{
			ExportLanguages:            c.Catalog.ExportLanguages,
			OnlyActive:                 c.Catalog.OnlyActive,
			IncludeTaxonomies:          c.Catalog.IncludeTaxonomies,
			SkipRegenerateIDsForSimple: c.Catalog.SkipRegenerateIDsForSimple,
			SpecialPriceExport:         c.Catalog.SpecialPriceExport,
			EANLeadingZero:             c.Catalog.EANLeadingZero,
			SkipInvalidEAN:             c.Catalog.SkipInvalidEAN,
			EANSource:                  c.Catalog.EANSource.String(),
			CostSource:                 c.Catalog.CostSource.String(),
			DeliverySource:             c.Catalog.DeliverySource.String(),
			TitleSource:                c.Catalog.TitleSource.String(),
			DescriptionSource:          c.Catalog.DescriptionSource.String(),
			BrandSource:                c.Catalog.BrandSource.String(),
		},
		Offer: OfferPolicyRequest{
			VirtualStockAmount:    c.Offer.VirtualStockAmount,
			ConditionalBackorders: c.Offer.ConditionalBackorders,
			ExportOnChange:        c.Offer.ExportOnChange,
		},
		Import: OrderImportPolicyRequest{
			OrderStatus:      c.Import.OrderStatus,
			CarrierID:        c.Import.CarrierID,
			PaymentMethodID:  c.Import.PaymentMethodID,
			FulfilmentFilter: c.Import.FulfilmentFilter.String(),
			SendEmails:       c.Import.SendEmails,
			SkipTaxes:        c.Import.SkipTaxes,
		},
		Shipment: ShipmentPolicyRequest{
			TriggerStatus:    c.Shipment.TriggerStatus,
			TrackingPatterns: c.Shipment.TrackingPatterns,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
