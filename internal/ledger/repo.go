package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRecordForUpdate(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error) {
	q := r.db.WithContext(ctx)
	// SQLite serializes writers on its own; the explicit row lock only
	// exists on Postgres.
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var record models.StockRecord
	err := q.Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindRecord(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) SaveQuantity(ctx context.Context, record *models.StockRecord) error {
	return r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("id = ?", record.ID).
		Update("quantity", record.Quantity).Error
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, storeID, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.StockMovement, error) {
	q := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.StockMovement
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListRecords(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.StockRecord, error) {
	q := r.db.WithContext(ctx).Preload("Product").Where("store_id = ?", storeID)
	if cursor != nil {
		q = q.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.StockRecord
	err := q.Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
