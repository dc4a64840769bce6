package catalog

import "github.com/marketsync/backend/internal/domain/shared"

// Event type constants
const (
	EventTypeStockChanged = "StockChanged"
	EventTypeProductSaved = "ProductSaved"
)

// StockChangedEvent is published when the store changes the stock of a product
type StockChangedEvent struct {
	shared.BaseDomainEvent
	ProductID int64 `json:"product_id"`
	ParentID  int64 `json:"parent_id"`
}

// NewStockChangedEvent creates a StockChangedEvent
func NewStockChangedEvent(productID, parentID int64) *StockChangedEvent {
	return &StockChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockChanged),
		ProductID:       productID,
		ParentID:        parentID,
	}
}

// ProductSavedEvent is published when a product is saved in the store.
// Before is nil when the previous state is unknown.
type ProductSavedEvent struct {
	shared.BaseDomainEvent
	Before *Product `json:"before,omitempty"`
	After  *Product `json:"after"`
}

// NewProductSavedEvent creates a ProductSavedEvent
func NewProductSavedEvent(before, after *Product) *ProductSavedEvent {
	return &ProductSavedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductSaved),
		Before:          before,
		After:           after,
	}
}
