package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

// Repository is the persistence surface the ledger service drives.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// FindRecordForUpdate loads the stock row and, on Postgres, takes a row
	// lock so concurrent adjustments serialize on it.
	FindRecordForUpdate(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error)
	FindRecord(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error)
	SaveQuantity(ctx context.Context, record *models.StockRecord) error
	InsertMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, storeID, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.StockMovement, error)
	ListRecords(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.StockRecord, error)
}
