package models

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is a vendor a store orders stock from. The replenishment trigger
// finds or creates its system supplier by (store_id, name).
type Supplier struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:idx_suppliers_store_name"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:idx_suppliers_store_name"`
	Email     *string   `gorm:"column:email"`
	Phone     *string   `gorm:"column:phone"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
