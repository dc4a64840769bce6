package order

import "github.com/marketsync/backend/internal/domain/shared"

// Event type constants
const (
	EventTypeOrderStatusChanged     = "OrderStatusChanged"
	EventTypeCarrierMetadataWritten = "CarrierMetadataWritten"
)

// OrderStatusChangedEvent is published when a local order changes status
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID   int64  `json:"order_id"`
	NewStatus string `json:"new_status"`
}

// NewOrderStatusChangedEvent creates an OrderStatusChangedEvent
func NewOrderStatusChangedEvent(orderID int64, newStatus string) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged),
		OrderID:         orderID,
		NewStatus:       newStatus,
	}
}

// CarrierMetadataWrittenEvent is published when a carrier plugin writes order meta
type CarrierMetadataWrittenEvent struct {
	shared.BaseDomainEvent
	OrderID int64  `json:"order_id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// NewCarrierMetadataWrittenEvent creates a CarrierMetadataWrittenEvent
func NewCarrierMetadataWrittenEvent(orderID int64, key, value string) *CarrierMetadataWrittenEvent {
	return &CarrierMetadataWrittenEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCarrierMetadataWritten),
		OrderID:         orderID,
		Key:             key,
		Value:           value,
	}
}
