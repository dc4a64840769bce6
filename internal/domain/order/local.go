package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LocalOrderRef identifies an order in the storefront
type LocalOrderRef struct {
	ID     int64
	Number string
}

// LocalAddress is a storefront address
type LocalAddress struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	Postcode  string
	City      string
	State     string
	Country   string
	Email     string
	Phone     string
}

// MetaEntry is one order meta value
type MetaEntry struct {
	Key   string
	Value string
}

// LocalLine is a product line on a local order
type LocalLine struct {
	ProductID   int64
	VariationID *int64
	Name        string
	Quantity    int
	Total       decimal.Decimal
	// Attributes are the selected option values for generated variations
	Attributes map[string]string
}

// ShippingLine is the shipping line on a local order
type ShippingLine struct {
	MethodID    string
	MethodTitle string
	Total       decimal.Decimal
}

// FeeLine is an order level fee on a local order
type FeeLine struct {
	Name  string
	Total decimal.Decimal
}

// LocalOrder is the complete content written into an order shell
type LocalOrder struct {
	Billing            LocalAddress
	Shipping           LocalAddress
	Meta               []MetaEntry
	Lines              []LocalLine
	ShippingLines      []ShippingLine
	FeeLines           []FeeLine
	Currency           string
	PaymentMethod      string
	PaymentMethodTitle string
	Status             string
	StatusNote         string
	SetPaid            bool
	SendEmails         bool
	SkipTaxes          bool
	ShippingTotal      decimal.Decimal
	Total              decimal.Decimal
}

// OrderNote is a note attached to a local order
type OrderNote struct {
	ID        int64
	Content   string
	CreatedAt time.Time
}

// LocalOrderStore is the write side of the storefront's orders
type LocalOrderStore interface {
	// CreateShell creates an empty pending order to build into
	CreateShell(ctx context.Context) (*LocalOrderRef, error)
	// Complete writes the full order into the shell and applies payment and status
	Complete(ctx context.Context, orderID int64, order *LocalOrder) (*LocalOrderRef, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	ListNotes(ctx context.Context, orderID int64) ([]OrderNote, error)

	// PaymentGateways, ShippingMethods and OrderStatuses map ids to titles
	PaymentGateways(ctx context.Context) (map[string]string, error)
	ShippingMethods(ctx context.Context) (map[string]string, error)
	OrderStatuses(ctx context.Context) (map[string]string, error)
}
