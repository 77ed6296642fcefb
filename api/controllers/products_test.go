package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natecorreia/tillpoint-backend/internal/catalog"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

type stubCatalogService struct {
	product     *models.Product
	createInput catalog.CreateProductInput
	err         error
}

func (s *stubCatalogService) CreateProduct(_ context.Context, input catalog.CreateProductInput) (*models.Product, error) {
	s.createInput = input
	return s.product, s.err
}

func (s *stubCatalogService) Product(context.Context, uuid.UUID, uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) Products(context.Context, uuid.UUID, pagination.Params) ([]models.Product, string, error) {
	if s.product == nil {
		return nil, "", s.err
	}
	return []models.Product{*s.product}, "", nil
}

func testProduct(storeID uuid.UUID) *models.Product {
	stock := &models.StockRecord{
		ID:               uuid.New(),
		StoreID:          storeID,
		Quantity:         25,
		ReorderThreshold: 10,
		ReorderQuantity:  40,
	}
	return &models.Product{
		ID:        uuid.New(),
		StoreID:   storeID,
		SKU:       "COF-001",
		Name:      "House Blend Beans",
		UnitPrice: decimal.RequireFromString("14.50"),
		CostPrice: decimal.RequireFromString("8.25"),
		IsActive:  true,
		Stock:     stock,
	}
}

func TestCreateProductReturnsListingWithStock(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	userID := uuid.New()
	svc := &stubCatalogService{product: testProduct(storeID)}
	svc.product.Stock.ProductID = svc.product.ID
	logg := logger.New(logger.Options{ServiceName: "test"})

	body := `{"sku":"COF-001","name":"House Blend Beans","unit_price":"14.50","cost_price":"8.25","initial_quantity":25,"reorder_threshold":10,"reorder_quantity":40}`
	req := authedRequest(http.MethodPost, "/api/v1/products", body, storeID, userID)
	rec := httptest.NewRecorder()

	CreateProduct(svc, logg).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, storeID, svc.createInput.StoreID)
	assert.Equal(t, "COF-001", svc.createInput.SKU)
	assert.Equal(t, int64(25), svc.createInput.InitialQuantity)

	var envelope struct {
		Success bool            `json:"success"`
		Data    productResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "14.50", envelope.Data.UnitPrice)
	require.NotNil(t, envelope.Data.Stock)
	assert.Equal(t, int64(25), envelope.Data.Stock.Quantity)
}

func TestCreateProductRejectsMissingSKU(t *testing.T) {
	t.Parallel()

	svc := &stubCatalogService{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	body := `{"name":"House Blend Beans","unit_price":"14.50"}`
	req := authedRequest(http.MethodPost, "/api/v1/products", body, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	CreateProduct(svc, logg).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProductSurfacesDuplicateSKU(t *testing.T) {
	t.Parallel()

	svc := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")}
	logg := logger.New(logger.Options{ServiceName: "test"})

	body := `{"sku":"COF-001","name":"House Blend Beans","unit_price":"14.50","cost_price":"8.25"}`
	req := authedRequest(http.MethodPost, "/api/v1/products", body, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	CreateProduct(svc, logg).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListProductsRequiresStoreContext(t *testing.T) {
	t.Parallel()

	svc := &stubCatalogService{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	ListProducts(svc, logg).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
