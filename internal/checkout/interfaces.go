package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
)

// Repository is the persistence surface the checkout engine drives.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindActiveProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.Product, error)
	CreateSale(ctx context.Context, sale *models.Sale) error
	FindByTransactionNumber(ctx context.Context, number string) (*models.Sale, error)
	ListSales(ctx context.Context, storeID uuid.UUID, limit int) ([]models.Sale, error)
}
