package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/natecorreia/tillpoint-backend/pkg/db"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the product catalog. Every product is born with its stock
// record so the ledger always has a row to lock.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	Product(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error)
	Products(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Product, string, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// CreateProductInput carries a new catalog listing plus its opening stock.
type CreateProductInput struct {
	StoreID          uuid.UUID
	SKU              string
	Name             string
	Description      *string
	Barcode          *string
	Category         *string
	Tags             []string
	UnitPrice        decimal.Decimal
	CostPrice        decimal.Decimal
	InitialQuantity  int64
	ReorderThreshold int64
	ReorderQuantity  int64
	// ExpiryDate marks perishable stock; nil otherwise.
	ExpiryDate *time.Time
}

// NewService builds the catalog service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validateCreateProduct(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:          uuid.New(),
		StoreID:     input.StoreID,
		SKU:         strings.TrimSpace(input.SKU),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Barcode:     input.Barcode,
		Category:    input.Category,
		Tags:        pq.StringArray(input.Tags),
		UnitPrice:   input.UnitPrice.Round(2),
		CostPrice:   input.CostPrice.Round(2),
		IsActive:    true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateProduct(ctx, product); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_products_store_sku") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
		}
		record := &models.StockRecord{
			ID:               uuid.New(),
			StoreID:          input.StoreID,
			ProductID:        product.ID,
			Quantity:         input.InitialQuantity,
			ReorderThreshold: input.ReorderThreshold,
			ReorderQuantity:  input.ReorderQuantity,
			ExpiryDate:       input.ExpiryDate,
		}
		if err := repo.CreateStockRecord(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating stock record")
		}
		product.Stock = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Product(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, storeID, productID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func (s *service) Products(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Product, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	products, err := s.repo.ListProducts(ctx, storeID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	page, next := pagination.TrimPage(products, limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}

func validateCreateProduct(input CreateProductInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if input.UnitPrice.IsNegative() || input.CostPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	if input.ReorderThreshold < 0 || input.ReorderQuantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder settings must not be negative")
	}
	return nil
}
