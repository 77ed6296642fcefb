package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/natecorreia/tillpoint-backend/api/responses"
	"github.com/natecorreia/tillpoint-backend/api/validators"
	"github.com/natecorreia/tillpoint-backend/internal/replenishment"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
)

// ListPurchaseOrders returns the store's restock orders, optionally filtered
// by status. The drafts the replenishment trigger builds show up here.
func ListPurchaseOrders(svc replenishment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		storeID, err := storeIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status enums.PurchaseOrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err = enums.ParsePurchaseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase order status"))
				return
			}
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Orders(r.Context(), storeID, status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]purchaseOrderResponse, 0, len(orders))
		for i := range orders {
			items = append(items, newPurchaseOrderResponse(orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{"purchase_orders": items})
	}
}

type purchaseOrderResponse struct {
	PurchaseOrderID uuid.UUID                   `json:"purchase_order_id"`
	SupplierID      uuid.UUID                   `json:"supplier_id"`
	OrderNumber     string                      `json:"order_number"`
	Status          string                      `json:"status"`
	Total           string                      `json:"total"`
	Lines           []purchaseOrderLineResponse `json:"lines"`
}

type purchaseOrderLineResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	UnitCost  string    `json:"unit_cost"`
	LineTotal string    `json:"line_total"`
}

func newPurchaseOrderResponse(order models.PurchaseOrder) purchaseOrderResponse {
	lines := make([]purchaseOrderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, purchaseOrderLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	return purchaseOrderResponse{
		PurchaseOrderID: order.ID,
		SupplierID:      order.SupplierID,
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		Total:           order.Total.StringFixed(2),
		Lines:           lines,
	}
}
