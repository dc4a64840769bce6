// Package connection holds the configured marketplace connections: the
// credentials for one remote shop/channel plus the policy switches that drive
// catalog export, offer export, order import and shipment export for it.
package connection

import (
	"errors"
	"strings"
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// FulfilmentFilter decides which remote orders are admitted for import
type FulfilmentFilter string

const (
	FulfilmentInternalOnly FulfilmentFilter = "internal_only"
	FulfilmentExternalOnly FulfilmentFilter = "external_only"
	FulfilmentAny          FulfilmentFilter = "any"
)

// IsValid checks if the fulfilment filter is valid
func (f FulfilmentFilter) IsValid() bool {
	switch f {
	case FulfilmentInternalOnly, FulfilmentExternalOnly, FulfilmentAny:
		return true
	}
	return false
}

// String returns the string representation
func (f FulfilmentFilter) String() string {
	return string(f)
}

// ShipmentTriggerCarrierTNT is the trigger value that reports a shipment when
// a carrier plugin writes a track & trace code instead of on a status change.
const ShipmentTriggerCarrierTNT = "tnt"

// DefaultTrackingPatterns are the note patterns searched for a tracking code
// when a connection does not configure its own. Each contains one [code].
var DefaultTrackingPatterns = []string{
	"tracking code:[code]",
	"SendCloud shipment is: [code]",
	"Track & Trace ([code])",
}

// Errors for connection configuration
var (
	ErrNotFound                 = errors.New("connection: not found")
	ErrMissingName              = errors.New("connection: name is required")
	ErrMissingCredentials       = errors.New("connection: public and private key are required")
	ErrInvalidFulfilmentFilter  = errors.New("connection: invalid fulfilment filter")
	ErrMissingExportLanguage    = errors.New("connection: at least one export language is required")
	ErrInvalidTrackingPattern   = errors.New("connection: tracking pattern must not be blank")
	ErrInvalidVirtualStock      = errors.New("connection: virtual stock amount cannot be negative")
	ErrMissingShipmentTrigger   = errors.New("connection: shipment export trigger is required")
	ErrMissingOrderImportStatus = errors.New("connection: order import status is required")
)

// ---------------------------------------------------------------------------
// Policies
// ---------------------------------------------------------------------------

// CatalogPolicy configures how products are rendered into a catalog export
type CatalogPolicy struct {
	// ExportLanguages lists the languages to export; the first one is the default
	ExportLanguages            []string
	OnlyActive                 bool
	IncludeTaxonomies          bool
	SkipRegenerateIDsForSimple bool
	SpecialPriceExport         bool
	EANLeadingZero             bool
	SkipInvalidEAN             bool

	EANSource         catalog.AttributeSource
	CostSource        catalog.AttributeSource
	DeliverySource    catalog.AttributeSource
	TitleSource       catalog.AttributeSource
	DescriptionSource catalog.AttributeSource
	BrandSource       catalog.AttributeSource
}

// DefaultLanguage returns the language other languages fall back to
func (p CatalogPolicy) DefaultLanguage() string {
	if len(p.ExportLanguages) == 0 {
		return ""
	}
	return p.ExportLanguages[0]
}

// OfferPolicy configures stock and change tracking for offer exports
type OfferPolicy struct {
	VirtualStockAmount    int
	ConditionalBackorders bool
	ExportOnChange        bool
}

// StockPolicy returns the catalog stock policy derived from this offer policy
func (p OfferPolicy) StockPolicy() catalog.StockPolicy {
	return catalog.StockPolicy{
		VirtualAmount:         p.VirtualStockAmount,
		ConditionalBackorders: p.ConditionalBackorders,
	}
}

// OrderImportPolicy configures how remote orders become local orders
type OrderImportPolicy struct {
	OrderStatus      string
	CarrierID        string
	PaymentMethodID  string
	FulfilmentFilter FulfilmentFilter
	SendEmails       bool
	SkipTaxes        bool
}

// ShipmentExportPolicy configures when an imported order is reported shipped
type ShipmentExportPolicy struct {
	// TriggerStatus is a local order status, or ShipmentTriggerCarrierTNT
	TriggerStatus    string
	TrackingPatterns []string
}

// Patterns returns the configured tracking patterns or the defaults
func (p ShipmentExportPolicy) Patterns() []string {
	if len(p.TrackingPatterns) == 0 {
		return DefaultTrackingPatterns
	}
	return p.TrackingPatterns
}

// TriggeredByCarrier reports whether shipments are reported on carrier metadata
func (p ShipmentExportPolicy) TriggeredByCarrier() bool {
	return p.TriggerStatus == ShipmentTriggerCarrierTNT
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// Connection is one configured remote shop/channel
type Connection struct {
	ID         int64
	Name       string
	PublicKey  string
	PrivateKey string
	IsActive   bool

	Catalog  CatalogPolicy
	Offer    OfferPolicy
	Import   OrderImportPolicy
	Shipment ShipmentExportPolicy

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the connection before it is persisted
func (c *Connection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrMissingName
	}
	if c.PublicKey == "" || c.PrivateKey == "" {
		return ErrMissingCredentials
	}
	if len(c.Catalog.ExportLanguages) == 0 {
		return ErrMissingExportLanguage
	}
	if c.Offer.VirtualStockAmount < 0 {
		return ErrInvalidVirtualStock
	}
	if c.Import.FulfilmentFilter == "" {
		c.Import.FulfilmentFilter = FulfilmentInternalOnly
	}
	if !c.Import.FulfilmentFilter.IsValid() {
		return ErrInvalidFulfilmentFilter
	}
	if c.Import.OrderStatus == "" {
		return ErrMissingOrderImportStatus
	}
	if c.Shipment.TriggerStatus == "" {
		return ErrMissingShipmentTrigger
	}
	for _, p := range c.Shipment.TrackingPatterns {
		if strings.TrimSpace(p) == "" {
			return ErrInvalidTrackingPattern
		}
	}
	return nil
}

// OrderStatusesToFetch returns the remote statuses to request for import.
// Internal orders are always paid; external orders are completed and tagged,
// the tag is checked afterwards since the remote filter cannot combine both.
func (c *Connection) OrderStatusesToFetch() []string {
	switch c.Import.FulfilmentFilter {
	case FulfilmentAny:
		return []string{"paid", "completed"}
	case FulfilmentExternalOnly:
		return []string{"completed"}
	default:
		return []string{"paid"}
	}
}
