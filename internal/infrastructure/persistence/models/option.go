package models

import (
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// ProductOptionModel is the persistence model for a product option identity.
type ProductOptionModel struct {
	OptionID      int64  `gorm:"primaryKey;autoIncrement"`
	ProductID     int64  `gorm:"not null;index:idx_product_options_product"`
	VariationID   *int64 `gorm:""`
	ProductName   string `gorm:"type:varchar(255);not null;default:''"`
	AttributeData string `gorm:"type:text;not null;default:''"`
	Hash          string `gorm:"type:char(32);not null;uniqueIndex:uq_product_options_hash"`
	Timestamps
}

// TableName returns the table name for GORM
func (ProductOptionModel) TableName() string {
	return "product_options"
}

// ToDomain converts the persistence model to a domain ProductOption.
func (m *ProductOptionModel) ToDomain() *catalog.ProductOption {
	return &catalog.ProductOption{
		OptionID:      m.OptionID,
		ProductID:     m.ProductID,
		VariationID:   m.VariationID,
		ProductName:   m.ProductName,
		AttributeData: m.AttributeData,
		Hash:          m.Hash,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ProductOption.
func (m *ProductOptionModel) FromDomain(o *catalog.ProductOption) {
	m.OptionID = o.OptionID
	m.ProductID = o.ProductID
	m.VariationID = o.VariationID
	m.ProductName = o.ProductName
	m.AttributeData = o.AttributeData
	m.Hash = o.Hash
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
}

// OfferQueueModel is one product waiting for an offer export.
type OfferQueueModel struct {
	OfferID   int64     `gorm:"primaryKey;autoIncrement"`
	ProductID int64     `gorm:"not null;uniqueIndex:uq_offer_queue_product"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OfferQueueModel) TableName() string {
	return "offer_queue"
}

// ToDomain converts the persistence model to a domain OfferQueueEntry.
func (m *OfferQueueModel) ToDomain() catalog.OfferQueueEntry {
	return catalog.OfferQueueEntry{
		OfferID:   m.OfferID,
		ProductID: m.ProductID,
		CreatedAt: m.CreatedAt,
	}
}
