package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

// Repository is the persistence surface behind the product catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateProduct(ctx context.Context, product *models.Product) error
	CreateStockRecord(ctx context.Context, record *models.StockRecord) error
	FindProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Product, error)
}
