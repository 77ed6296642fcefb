package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND id IN ? AND is_active = ?", storeID, productIDs, true).
		Find(&products).Error
	return products, err
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	for i := range sale.Lines {
		if sale.Lines[i].ID == uuid.Nil {
			sale.Lines[i].ID = uuid.New()
		}
		sale.Lines[i].SaleID = sale.ID
	}
	// One Create persists the lines together with the header through the
	// association, so neither exists without the other.
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) FindByTransactionNumber(ctx context.Context, number string) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("transaction_number = ?", number).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ListSales(ctx context.Context, storeID uuid.UUID, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sales).Error
	return sales, err
}
