package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/natecorreia/tillpoint-backend/pkg/enums"
)

// StockChangedEvent is emitted after every ledger adjustment. The replenish
// worker consumes it to evaluate reorder thresholds.
type StockChangedEvent struct {
	StoreID       uuid.UUID              `json:"store_id"`
	ProductID     uuid.UUID              `json:"product_id"`
	StockRecordID uuid.UUID              `json:"stock_record_id"`
	MovementID    uuid.UUID              `json:"movement_id"`
	Delta         int64                  `json:"delta"`
	QuantityAfter int64                  `json:"quantity_after"`
	Category      enums.MovementCategory `json:"category"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// SaleRecordedEvent signals a completed checkout.
type SaleRecordedEvent struct {
	SaleID            uuid.UUID       `json:"sale_id"`
	StoreID           uuid.UUID       `json:"store_id"`
	TransactionNumber string          `json:"transaction_number"`
	LineCount         int             `json:"line_count"`
	Total             decimal.Decimal `json:"total"`
}

// PurchaseOrderLineAddedEvent reports that replenishment placed a product on
// a draft purchase order.
type PurchaseOrderLineAddedEvent struct {
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id"`
	StoreID         uuid.UUID       `json:"store_id"`
	SupplierID      uuid.UUID       `json:"supplier_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        int64           `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}
