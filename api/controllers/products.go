package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/natecorreia/tillpoint-backend/api/responses"
	"github.com/natecorreia/tillpoint-backend/api/validators"
	"github.com/natecorreia/tillpoint-backend/internal/catalog"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
)

// CreateProduct registers a catalog listing together with its opening stock.
func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		storeID, err := storeIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var expiry *time.Time
		if payload.ExpiryDate != nil {
			parsed, err := time.Parse("2006-01-02", *payload.ExpiryDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expiry date"))
				return
			}
			expiry = &parsed
		}

		product, err := svc.CreateProduct(r.Context(), catalog.CreateProductInput{
			StoreID:          storeID,
			SKU:              payload.SKU,
			Name:             payload.Name,
			Description:      payload.Description,
			Barcode:          payload.Barcode,
			Category:         payload.Category,
			Tags:             payload.Tags,
			UnitPrice:        payload.UnitPrice,
			CostPrice:        payload.CostPrice,
			InitialQuantity:  payload.InitialQuantity,
			ReorderThreshold: payload.ReorderThreshold,
			ReorderQuantity:  payload.ReorderQuantity,
			ExpiryDate:       expiry,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// GetProduct fetches one listing with its stock record.
func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		storeID, err := storeIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParsePathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Product(r.Context(), storeID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// ListProducts pages through the store's catalog.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		storeID, err := storeIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, next, err := svc.Products(r.Context(), storeID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]productResponse, 0, len(products))
		for i := range products {
			items = append(items, newProductResponse(&products[i]))
		}
		responses.WriteSuccess(w, map[string]any{"products": items, "next_cursor": next})
	}
}

type createProductRequest struct {
	SKU              string          `json:"sku" validate:"required,min=1,max=64"`
	Name             string          `json:"name" validate:"required,min=1,max=255"`
	Description      *string         `json:"description,omitempty"`
	Barcode          *string         `json:"barcode,omitempty"`
	Category         *string         `json:"category,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	InitialQuantity  int64           `json:"initial_quantity"`
	ReorderThreshold int64           `json:"reorder_threshold"`
	ReorderQuantity  int64           `json:"reorder_quantity"`
	ExpiryDate       *string         `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type productResponse struct {
	ProductID   uuid.UUID            `json:"product_id"`
	SKU         string               `json:"sku"`
	Name        string               `json:"name"`
	Description *string              `json:"description,omitempty"`
	Barcode     *string              `json:"barcode,omitempty"`
	Category    *string              `json:"category,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	UnitPrice   string               `json:"unit_price"`
	CostPrice   string               `json:"cost_price"`
	IsActive    bool                 `json:"is_active"`
	Stock       *stockRecordResponse `json:"stock,omitempty"`
}

func newProductResponse(product *models.Product) productResponse {
	if product == nil {
		return productResponse{}
	}
	resp := productResponse{
		ProductID:   product.ID,
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		Barcode:     product.Barcode,
		Category:    product.Category,
		Tags:        product.Tags,
		UnitPrice:   product.UnitPrice.StringFixed(2),
		CostPrice:   product.CostPrice.StringFixed(2),
		IsActive:    product.IsActive,
	}
	if product.Stock != nil {
		stock := newStockRecordResponse(*product.Stock)
		resp.Stock = &stock
	}
	return resp
}
