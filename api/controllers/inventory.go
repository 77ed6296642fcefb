package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/natecorreia/tillpoint-backend/api/middleware"
	"github.com/natecorreia/tillpoint-backend/api/responses"
	"github.com/natecorreia/tillpoint-backend/api/validators"
	"github.com/natecorreia/tillpoint-backend/internal/ledger"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

// ListStock returns the on-hand records for the caller's store, cursor paged.
func ListStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		records, next, err := svc.Records(r.Context(), storeID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]stockRecordResponse, 0, len(records))
		for i := range records {
			items = append(items, newStockRecordResponse(records[i]))
		}
		responses.WriteSuccess(w, map[string]any{"records": items, "next_cursor": next})
	}
}

// GetStock returns the on-hand record for one product.
func GetStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		record, err := svc.Record(r.Context(), storeID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStockRecordResponse(*record))
	}
}

// AdjustStock applies a signed delta to one product's on-hand quantity.
func AdjustStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		input, payload, err := adjustScaffold(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category := enums.MovementAdjustment
		if payload.Category != "" {
			category, err = enums.ParseMovementCategory(payload.Category)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement category"))
				return
			}
		}

		adjustment, err := svc.Adjust(r.Context(), ledger.AdjustInput{
			StoreID:     input.storeID,
			ProductID:   input.productID,
			Delta:       payload.Delta,
			Category:    category,
			Reference:   payload.Reference,
			Note:        payload.Note,
			ActorUserID: input.actor,
			Metadata:    payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAdjustmentResponse(adjustment))
	}
}

// IncrementStock adds received or returned units to one product.
func IncrementStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return quantityHandler(svc, logg, func(r *http.Request, input ledger.QuantityInput) (*ledger.Adjustment, error) {
		return svc.Increment(r.Context(), input)
	})
}

// DecrementStock removes units from one product outside of a sale.
func DecrementStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return quantityHandler(svc, logg, func(r *http.Request, input ledger.QuantityInput) (*ledger.Adjustment, error) {
		return svc.Decrement(r.Context(), input)
	})
}

// SetStock pins one product's on-hand quantity to a counted value.
func SetStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		input, err := inventoryScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustment, err := svc.Set(r.Context(), ledger.SetInput{
			StoreID:     input.storeID,
			ProductID:   input.productID,
			Target:      payload.Quantity,
			Reference:   payload.Reference,
			Note:        payload.Note,
			ActorUserID: input.actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAdjustmentResponse(adjustment))
	}
}

// ListMovements pages through one product's append-only movement log.
func ListMovements(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movements, next, err := svc.Movements(r.Context(), storeID, productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]movementResponse, 0, len(movements))
		for i := range movements {
			items = append(items, newMovementResponse(movements[i]))
		}
		responses.WriteSuccess(w, map[string]any{"movements": items, "next_cursor": next})
	}
}

type adjustStockRequest struct {
	Delta     int64           `json:"delta" validate:"required"`
	Category  string          `json:"category,omitempty"`
	Reference *string         `json:"reference,omitempty"`
	Note      *string         `json:"note,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

type quantityStockRequest struct {
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	Category  string  `json:"category,omitempty"`
	Reference *string `json:"reference,omitempty"`
	Note      *string `json:"note,omitempty"`
}

type setStockRequest struct {
	Quantity  int64   `json:"quantity"`
	Reference *string `json:"reference,omitempty"`
	Note      *string `json:"note,omitempty"`
}

type inventoryRequestScope struct {
	storeID   uuid.UUID
	productID uuid.UUID
	actor     *uuid.UUID
}

func inventoryScope(r *http.Request) (inventoryRequestScope, error) {
	storeID, err := storeIDFromContext(r)
	if err != nil {
		return inventoryRequestScope{}, err
	}
	productID, err := validators.ParsePathUUID(r, "productID")
	if err != nil {
		return inventoryRequestScope{}, err
	}
	scope := inventoryRequestScope{storeID: storeID, productID: productID}
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		if actor, parseErr := uuid.Parse(raw); parseErr == nil {
			scope.actor = &actor
		}
	}
	return scope, nil
}

func adjustScaffold(r *http.Request) (inventoryRequestScope, adjustStockRequest, error) {
	scope, err := inventoryScope(r)
	if err != nil {
		return inventoryRequestScope{}, adjustStockRequest{}, err
	}
	var payload adjustStockRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return inventoryRequestScope{}, adjustStockRequest{}, err
	}
	return scope, payload, nil
}

func quantityHandler(svc ledger.Service, logg *logger.Logger, apply func(*http.Request, ledger.QuantityInput) (*ledger.Adjustment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		scope, err := inventoryScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quantityStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var category enums.MovementCategory
		if payload.Category != "" {
			category, err = enums.ParseMovementCategory(payload.Category)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement category"))
				return
			}
		}

		adjustment, err := apply(r, ledger.QuantityInput{
			StoreID:     scope.storeID,
			ProductID:   scope.productID,
			Quantity:    payload.Quantity,
			Category:    category,
			Reference:   payload.Reference,
			Note:        payload.Note,
			ActorUserID: scope.actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAdjustmentResponse(adjustment))
	}
}

func paginationParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

type stockRecordResponse struct {
	ProductID        uuid.UUID `json:"product_id"`
	SKU              string    `json:"sku,omitempty"`
	Name             string    `json:"name,omitempty"`
	UnitPrice        string    `json:"unit_price,omitempty"`
	Quantity         int64     `json:"quantity"`
	ReorderThreshold int64     `json:"reorder_threshold"`
	ReorderQuantity  int64     `json:"reorder_quantity"`
	ExpiryDate       string    `json:"expiry_date,omitempty"`
	BelowThreshold   bool      `json:"below_threshold"`
}

func newStockRecordResponse(record models.StockRecord) stockRecordResponse {
	resp := stockRecordResponse{
		ProductID:        record.ProductID,
		Quantity:         record.Quantity,
		ReorderThreshold: record.ReorderThreshold,
		ReorderQuantity:  record.ReorderQuantity,
		BelowThreshold:   record.BelowThreshold(),
	}
	if record.ExpiryDate != nil {
		resp.ExpiryDate = record.ExpiryDate.Format("2006-01-02")
	}
	// The list endpoint preloads the product so the register can render a
	// catalog line without a second lookup.
	if record.Product != nil {
		resp.SKU = record.Product.SKU
		resp.Name = record.Product.Name
		resp.UnitPrice = record.Product.UnitPrice.StringFixed(2)
	}
	return resp
}

type movementResponse struct {
	MovementID    uuid.UUID  `json:"movement_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	Delta         int64      `json:"delta"`
	QuantityAfter int64      `json:"quantity_after"`
	Category      string     `json:"category"`
	Reference     *string    `json:"reference,omitempty"`
	Note          *string    `json:"note,omitempty"`
	ActorUserID   *uuid.UUID `json:"actor_user_id,omitempty"`
	CreatedAt     string     `json:"created_at"`
}

func newMovementResponse(movement models.StockMovement) movementResponse {
	return movementResponse{
		MovementID:    movement.ID,
		ProductID:     movement.ProductID,
		Delta:         movement.Delta,
		QuantityAfter: movement.QuantityAfter,
		Category:      string(movement.Category),
		Reference:     movement.Reference,
		Note:          movement.Note,
		ActorUserID:   movement.ActorUserID,
		CreatedAt:     movement.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type adjustmentResponse struct {
	Record   stockRecordResponse `json:"record"`
	Movement *movementResponse   `json:"movement,omitempty"`
	Changed  bool                `json:"changed"`
}

func newAdjustmentResponse(adjustment *ledger.Adjustment) adjustmentResponse {
	if adjustment == nil {
		return adjustmentResponse{}
	}
	resp := adjustmentResponse{
		Record:  newStockRecordResponse(adjustment.Record),
		Changed: adjustment.Changed,
	}
	if adjustment.Changed {
		movement := newMovementResponse(adjustment.Movement)
		resp.Movement = &movement
	}
	return resp
}
