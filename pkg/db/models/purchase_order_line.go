package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderLine is one product on a purchase order. The unique index on
// (purchase_order_id, product_id) keeps replenishment idempotent: a product
// that already sits on the draft is never added twice.
type PurchaseOrderLine struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;uniqueIndex:idx_po_lines_po_product"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_po_lines_po_product"`
	Quantity        int64           `gorm:"column:quantity;not null"`
	UnitCost        decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	LineTotal       decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
