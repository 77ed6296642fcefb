package models

import (
	"time"

	"github.com/google/uuid"
)

// StockRecord is the per-product on-hand row the ledger locks and mutates.
// Quantity may go negative: overselling is recorded, never blocked.
type StockRecord struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID          uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:idx_stock_records_store_product"`
	ProductID        uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_stock_records_store_product"`
	Quantity         int64     `gorm:"column:quantity;not null;default:0"`
	ReorderThreshold int64     `gorm:"column:reorder_threshold;not null;default:0"`
	ReorderQuantity  int64     `gorm:"column:reorder_quantity;not null;default:0"`
	// ExpiryDate is a date, not a timestamp; nil for non-perishables.
	ExpiryDate *time.Time `gorm:"column:expiry_date;type:date;index:idx_stock_records_expiry"`
	Product    *Product   `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BelowThreshold reports whether the record qualifies for auto replenishment.
// A zero threshold still triggers once the quantity reaches zero; rows with
// no reorder quantity are skipped by the trigger itself.
func (s StockRecord) BelowThreshold() bool {
	return s.Quantity <= s.ReorderThreshold
}
