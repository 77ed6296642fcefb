package models

import (
	"time"

	"github.com/google/uuid"
)

// Store represents the canonical tenant model. Every ledger row, sale, and
// purchase order hangs off exactly one store.
type Store struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	Slug      string     `gorm:"column:slug;not null;uniqueIndex"`
	Phone     *string    `gorm:"column:phone"`
	Email     *string    `gorm:"column:email"`
	Address   *string    `gorm:"column:address"`
	Timezone  string     `gorm:"column:timezone;not null;default:'UTC'"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
}
