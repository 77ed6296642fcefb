package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/natecorreia/tillpoint-backend/pkg/enums"
)

// Sale is the checkout header. It is only ever persisted alongside its lines
// and the matching stock movements inside one transaction.
type Sale struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	StoreID           uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	TransactionNumber string              `gorm:"column:transaction_number;not null;uniqueIndex"`
	Status            enums.SaleStatus    `gorm:"column:status;not null;default:'completed'"`
	CashierID         uuid.UUID           `gorm:"column:cashier_id;type:uuid;not null"`
	CustomerID        *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxTotal          decimal.Decimal     `gorm:"column:tax_total;type:numeric(12,2);not null"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	AmountPaid        decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	ChangeDue         decimal.Decimal     `gorm:"column:change_due;type:numeric(12,2);not null"`
	Lines             []SaleLine          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
