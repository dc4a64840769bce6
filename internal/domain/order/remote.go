// Package order holds remote marketplace orders, the per-order import and
// shipment ledger and the port to the storefront's order side.
package order

import (
	"errors"
	"time"

	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Order Errors
// ---------------------------------------------------------------------------

var (
	ErrLedgerEntryNotFound   = errors.New("order: ledger entry not found")
	ErrOrderImportFailed     = errors.New("order: import failed")
	ErrNoOrderLines          = errors.New("order: no products in order")
	ErrOptionNotFound        = errors.New("order: ordered product not found")
	ErrProductNotLoaded      = errors.New("order: ordered product could not be loaded")
	ErrPaymentMethodNotFound = errors.New("order: payment method not found")
	ErrCarrierNotFound       = errors.New("order: shipment method not found")
	ErrOrderStatusNotFound   = errors.New("order: order status not found")
	ErrLocalOrderNotFound    = errors.New("order: local order not found")
	ErrRollbackFailed        = errors.New("order: order rollback failed")
	ErrReimportNotAllowed    = errors.New("order: successfully imported orders need force to be reimported")
)

// Remote order statuses relevant for import
const (
	RemoteStatusPaid      = "paid"
	RemoteStatusCompleted = "completed"
)

// Tags exchanged with the marketplace
const (
	TagExternalFulfilment   = "external_fulfilment"
	TagOrderImportSucceeded = "order_import_succeeded"
	TagOrderImportFailed    = "order_import_failed"
	TagOrderImportSkipped   = "order_import_skipped"
)

// Fee types; commission is the marketplace's cut and never charged locally
const (
	FeeTypeCommission = "commission"
	FeeTypeShipping   = "shipping"
)

// Meta keys written on imported local orders
const (
	MetaOrderSource         = "order_source"
	OrderSourceValue        = "marketsync"
	MetaRemoteOrderNumber   = "marketsync_order_number"
	MetaChannelOrderNumber  = "marketsync_order_number_channel"
	MetaChannelName         = "marketsync_channel_name"
	MetaChannelType         = "marketsync_channel_type"
	MetaExternalFulfillment = "marketsync_external_fulfillment"
)

// ImportFeedbackTags are excluded when listing orders to import
var ImportFeedbackTags = []string{TagOrderImportFailed, TagOrderImportSucceeded, TagOrderImportSkipped}

// ---------------------------------------------------------------------------
// Remote order
// ---------------------------------------------------------------------------

// RemoteOrder is an order as listed by the marketplace
type RemoteOrder struct {
	Number        string
	ChannelNumber string
	ChannelID     int64
	ChannelTitle  string
	ChannelType   string
	ChannelSub    string
	Status        string
	Currency      string
	Date          time.Time
	Tags          []string

	BillingAddress  Address
	ShippingAddress Address

	Lines []RemoteOrderLine
	Fees  []Fee
}

// Address is a remote order address
type Address struct {
	FirstName            string
	LastName             string
	Company              string
	Street               string
	HouseNumber          string
	HouseNumberExtension string
	AddressNote          string
	Zipcode              string
	City                 string
	State                string
	Country              string
	Phone                string
	Email                string
}

// RemoteOrderLine is one ordered unit. Quantities are expressed as repeated lines.
type RemoteOrderLine struct {
	ID                string
	ProductIdentifier int64
	SKU               string
	EAN               string
	Title             string
	Amount            decimal.Decimal
	Fees              []Fee
}

// Fee is a remote order or line fee
type Fee struct {
	Type   string
	Amount decimal.Decimal
}

// HasTag reports whether the remote order carries a tag
func (o *RemoteOrder) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsExternallyFulfilled reports whether the channel fulfils the order
func (o *RemoteOrder) IsExternallyFulfilled() bool {
	return o.HasTag(TagExternalFulfilment)
}

// LineIDs returns the remote line identifiers in order
func (o *RemoteOrder) LineIDs() []string {
	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.ID)
	}
	return ids
}

// ChannelTypeLabel renders "type (subtype)" or the bare type
func (o *RemoteOrder) ChannelTypeLabel() string {
	if o.ChannelSub == "" {
		return o.ChannelType
	}
	return o.ChannelType + " (" + o.ChannelSub + ")"
}

// FulfilmentMismatch reports whether the connection's fulfilment filter rejects the order.
//
//	any:           skips completed orders that are not externally fulfilled
//	external_only: skips unless completed and externally fulfilled
//	internal_only: skips unless paid and not externally fulfilled
func FulfilmentMismatch(filter connection.FulfilmentFilter, o *RemoteOrder) bool {
	external := o.IsExternallyFulfilled()
	switch filter {
	case connection.FulfilmentAny:
		return o.Status == RemoteStatusCompleted && !external
	case connection.FulfilmentExternalOnly:
		return o.Status != RemoteStatusCompleted || !external
	default:
		return o.Status != RemoteStatusPaid || external
	}
}
