package replenishment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a replenishment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindStockRecord(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND id = ?", storeID, productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindOrCreateSupplier upserts the system supplier. DO NOTHING keeps the
// surrounding transaction clean when a concurrent request wins the insert
// race; a failed INSERT would abort every later statement in the tx.
func (r *repository) FindOrCreateSupplier(ctx context.Context, storeID uuid.UUID, name, email string) (*models.Supplier, error) {
	supplier := models.Supplier{
		ID:      uuid.New(),
		StoreID: storeID,
		Name:    name,
		Email:   &email,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&supplier)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var existing models.Supplier
		if err := r.db.WithContext(ctx).
			Where("store_id = ? AND name = ?", storeID, name).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &supplier, nil
}

// FindOrCreateDraftOrder upserts the open draft for a store/supplier pair.
// The partial unique index allows one draft at a time; the race loser's
// insert is swallowed and the winner's row re-read, so the transaction
// never sees a failed statement.
func (r *repository) FindOrCreateDraftOrder(ctx context.Context, storeID, supplierID uuid.UUID, orderNumber string) (*models.PurchaseOrder, error) {
	order := models.PurchaseOrder{
		ID:          uuid.New(),
		StoreID:     storeID,
		SupplierID:  supplierID,
		OrderNumber: orderNumber,
		Status:      enums.PurchaseOrderDraft,
		Total:       decimal.Zero,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&order)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var existing models.PurchaseOrder
		if err := r.db.WithContext(ctx).
			Where("store_id = ? AND supplier_id = ? AND status = ?", storeID, supplierID, enums.PurchaseOrderDraft).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &order, nil
}

func (r *repository) InsertLineIfAbsent(ctx context.Context, line *models.PurchaseOrderLine) (bool, error) {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_order_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(line)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementOrderTotal(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ?", orderID).
		Update("total", gorm.Expr("total + ?", amount)).Error
}

func (r *repository) ListOrders(ctx context.Context, storeID uuid.UUID, status enums.PurchaseOrderStatus, limit int) ([]models.PurchaseOrder, error) {
	q := r.db.WithContext(ctx).
		Preload("Lines").
		Where("store_id = ?", storeID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.PurchaseOrder
	err := q.Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
