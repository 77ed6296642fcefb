package replenishment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
)

// Repository is the persistence surface behind the replenishment trigger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindStockRecord(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error)
	FindProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error)
	FindOrCreateSupplier(ctx context.Context, storeID uuid.UUID, name, email string) (*models.Supplier, error)
	FindOrCreateDraftOrder(ctx context.Context, storeID, supplierID uuid.UUID, orderNumber string) (*models.PurchaseOrder, error)

	// InsertLineIfAbsent adds the line unless the product already sits on the
	// order. Returns false when the unique guard swallowed the insert.
	InsertLineIfAbsent(ctx context.Context, line *models.PurchaseOrderLine) (bool, error)
	IncrementOrderTotal(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error

	ListOrders(ctx context.Context, storeID uuid.UUID, status enums.PurchaseOrderStatus, limit int) ([]models.PurchaseOrder, error)
}
