package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/natecorreia/tillpoint-backend/pkg/enums"
)

// PurchaseOrder is a restock order against a supplier. At most one draft per
// (store, supplier) exists at a time; the partial unique index in the schema
// enforces that, so concurrent creators collide instead of duplicating.
type PurchaseOrder struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	StoreID     uuid.UUID                 `gorm:"column:store_id;type:uuid;not null;index"`
	SupplierID  uuid.UUID                 `gorm:"column:supplier_id;type:uuid;not null"`
	OrderNumber string                    `gorm:"column:order_number;not null;uniqueIndex"`
	Status      enums.PurchaseOrderStatus `gorm:"column:status;not null;default:'draft'"`
	Total       decimal.Decimal           `gorm:"column:total;type:numeric(12,2);not null"`
	Lines       []PurchaseOrderLine       `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
