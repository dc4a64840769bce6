package models

import (
	"encoding/json"
	"fmt"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
)

// ConnectionModel is the persistence model for a Connection. The private key
// is stored sealed; the repository owns sealing and opening it.
type ConnectionModel struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"type:varchar(200);not null"`
	PublicKey        string `gorm:"type:varchar(255);not null"`
	PrivateKeySealed []byte `gorm:"type:bytea;not null"`
	IsActive         bool   `gorm:"not null;default:true;index:idx_connections_active,priority:1"`
	CatalogPolicy    string `gorm:"type:jsonb;not null;default:'{}'"`
	OfferPolicy      string `gorm:"type:jsonb;not null;default:'{}'"`
	ImportPolicy     string `gorm:"type:jsonb;not null;default:'{}'"`
	ShipmentPolicy   string `gorm:"type:jsonb;not null;default:'{}'"`
	Timestamps
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "connections"
}

// catalogPolicyJSON is the stored form of a catalog policy
type catalogPolicyJSON struct {
	ExportLanguages            []string `json:"export_languages"`
	OnlyActive                 bool     `json:"only_active"`
	IncludeTaxonomies          bool     `json:"include_taxonomies"`
	SkipRegenerateIDsForSimple bool     `json:"skip_regenerate_ids_for_simple"`
	SpecialPriceExport         bool     `json:"special_price_export"`
	EANLeadingZero             bool     `json:"ean_leading_zero"`
	SkipInvalidEAN             bool     `json:"skip_invalid_ean"`
	EANSource                  string   `json:"ean_source,omitempty"`
	CostSource                 string   `json:"cost_source,omitempty"`
	DeliverySource             string   `json:"delivery_source,omitempty"`
	TitleSource                string   `json:"title_source,omitempty"`
	DescriptionSource          string   `json:"description_source,omitempty"`
	BrandSource                string   `json:"brand_source,omitempty"`
}

type offerPolicyJSON struct {
	VirtualStockAmount    int  `json:"virtual_stock_amount"`
	ConditionalBackorders bool `json:"conditional_backorders"`
	ExportOnChange        bool `json:"export_on_change"`
}

type importPolicyJSON struct {
	OrderStatus      string `json:"order_status"`
	CarrierID        string `json:"carrier_id"`
	PaymentMethodID  string `json:"payment_method_id"`
	FulfilmentFilter string `json:"fulfilment_filter"`
	SendEmails       bool   `json:"send_emails"`
	SkipTaxes        bool   `json:"skip_taxes"`
}

type shipmentPolicyJSON struct {
	TriggerStatus    string   `json:"trigger_status"`
	TrackingPatterns []string `json:"tracking_patterns,omitempty"`
}

func sourceString(s catalog.AttributeSource) string {
	if !s.IsSet() {
		return ""
	}
	return s.String()
}

func parseSource(field, s string) (catalog.AttributeSource, error) {
	if s == "" {
		return catalog.AttributeSource{}, nil
	}
	src, err := catalog.ParseAttributeSource(s)
	if err != nil {
		return catalog.AttributeSource{}, fmt.Errorf("%s: %w", field, err)
	}
	return src, nil
}

// ToDomain converts the persistence model to a domain Connection. The
// private key is left empty.
func (m *ConnectionModel) ToDomain() (*connection.Connection, error) {
	c := &connection.Connection{
		ID:        m.ID,
		Name:      m.Name,
		PublicKey: m.PublicKey,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	var cp catalogPolicyJSON
	if err := json.Unmarshal([]byte(m.CatalogPolicy), &cp); err != nil {
		return nil, fmt.Errorf("decode catalog policy of connection %d: %w", m.ID, err)
	}
	c.Catalog = connection.CatalogPolicy{
		ExportLanguages:            cp.ExportLanguages,
		OnlyActive:                 cp.OnlyActive,
		IncludeTaxonomies:          cp.IncludeTaxonomies,
		SkipRegenerateIDsForSimple: cp.SkipRegenerateIDsForSimple,
		SpecialPriceExport:         cp.SpecialPriceExport,
		EANLeadingZero:             cp.EANLeadingZero,
		SkipInvalidEAN:             cp.SkipInvalidEAN,
	}
	sources := []struct {
		field string
		raw   string
		dst   *catalog.AttributeSource
	}{
		{"ean_source", cp.EANSource, &c.Catalog.EANSource},
		{"cost_source", cp.CostSource, &c.Catalog.CostSource},
		{"delivery_source", cp.DeliverySource, &c.Catalog.DeliverySource},
		{"title_source", cp.TitleSource, &c.Catalog.TitleSource},
		{"description_source", cp.DescriptionSource, &c.Catalog.DescriptionSource},
		{"brand_source", cp.BrandSource, &c.Catalog.BrandSource},
	}
	for _, s := range sources {
		src, err := parseSource(s.field, s.raw)
		if err != nil {
			return nil, err
		}
		*s.dst = src
	}

	var op offerPolicyJSON
	if err := json.Unmarshal([]byte(m.OfferPolicy), &op); err != nil {
		return nil, fmt.Errorf("decode offer policy of connection %d: %w", m.ID, err)
	}
	c.Offer = connection.OfferPolicy(op)

	var ip importPolicyJSON
	if err := json.Unmarshal([]byte(m.ImportPolicy), &ip); err != nil {
		return nil, fmt.Errorf("decode import policy of connection %d: %w", m.ID, err)
	}
	c.Import = connection.OrderImportPolicy{
		OrderStatus:      ip.OrderStatus,
		CarrierID:        ip.CarrierID,
		PaymentMethodID:  ip.PaymentMethodID,
		FulfilmentFilter: connection.FulfilmentFilter(ip.FulfilmentFilter),
		SendEmails:       ip.SendEmails,
		SkipTaxes:        ip.SkipTaxes,
	}

	var sp shipmentPolicyJSON
	if err := json.Unmarshal([]byte(m.ShipmentPolicy), &sp); err != nil {
		return nil, fmt.Errorf("decode shipment policy of connection %d: %w", m.ID, err)
	}
	c.Shipment = connection.ShipmentExportPolicy(sp)

	return c, nil
}

// FromDomain populates the persistence model from a domain Connection. The
// sealed private key is set by the caller.
func (m *ConnectionModel) FromDomain(c *connection.Connection) error {
	m.ID = c.ID
	m.Name = c.Name
	m.PublicKey = c.PublicKey
	m.IsActive = c.IsActive
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt

	cp, err := json.Marshal(catalogPolicyJSON{
		ExportLanguages:            c.Catalog.ExportLanguages,
		OnlyActive:                 c.Catalog.OnlyActive,
		IncludeTaxonomies:          c.Catalog.IncludeTaxonomies,
		SkipRegenerateIDsForSimple: c.Catalog.SkipRegenerateIDsForSimple,
		SpecialPriceExport:         c.Catalog.SpecialPriceExport,
		EANLeadingZero:             c.Catalog.EANLeadingZero,
		SkipInvalidEAN:             c.Catalog.SkipInvalidEAN,
		EANSource:                  sourceString(c.Catalog.EANSource),
		CostSource:                 sourceString(c.Catalog.CostSource),
		DeliverySource:             sourceString(c.Catalog.DeliverySource),
		TitleSource:                sourceString(c.Catalog.TitleSource),
		DescriptionSource:          sourceString(c.Catalog.DescriptionSource),
		BrandSource:                sourceString(c.Catalog.BrandSource),
	})
	if err != nil {
		return err
	}
	op, err := json.Marshal(offerPolicyJSON(c.Offer))
	if err != nil {
		return err
	}
	ip, err := json.Marshal(importPolicyJSON{
		OrderStatus:      c.Import.OrderStatus,
		CarrierID:        c.Import.CarrierID,
		PaymentMethodID:  c.Import.PaymentMethodID,
		FulfilmentFilter: string(c.Import.FulfilmentFilter),
		SendEmails:       c.Import.SendEmails,
		SkipTaxes:        c.Import.SkipTaxes,
	})
	if err != nil {
		return err
	}
	sp, err := json.Marshal(shipmentPolicyJSON(c.Shipment))
	if err != nil {
		return err
	}

	m.CatalogPolicy = string(cp)
	m.OfferPolicy = string(op)
	m.ImportPolicy = string(ip)
	m.ShipmentPolicy = string(sp)
	return nil
}
