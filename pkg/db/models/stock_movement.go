package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/natecorreia/tillpoint-backend/pkg/enums"
)

// StockMovement is an append-only record of a single quantity delta. Rows are
// never updated or deleted; the movement log is the audit trail for every
// change the ledger applies.
type StockMovement struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	StoreID       uuid.UUID              `gorm:"column:store_id;type:uuid;not null;index"`
	ProductID     uuid.UUID              `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_product_created"`
	StockRecordID uuid.UUID              `gorm:"column:stock_record_id;type:uuid;not null"`
	Delta         int64                  `gorm:"column:delta;not null"`
	QuantityAfter int64                  `gorm:"column:quantity_after;not null"`
	Category      enums.MovementCategory `gorm:"column:category;not null"`
	Reference     *string                `gorm:"column:reference"`
	Note          *string                `gorm:"column:note"`
	ActorUserID   *uuid.UUID             `gorm:"column:actor_user_id;type:uuid"`
	Metadata      json.RawMessage        `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime;index:idx_stock_movements_product_created"`
}
