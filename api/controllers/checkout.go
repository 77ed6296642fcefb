package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/natecorreia/tillpoint-backend/api/middleware"
	"github.com/natecorreia/tillpoint-backend/api/responses"
	"github.com/natecorreia/tillpoint-backend/api/validators"
	checkoutsvc "github.com/natecorreia/tillpoint-backend/internal/checkout"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
)

// Checkout rings up the register's cart as one committed sale.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		storeID, err := storeIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cashierID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		lines := make([]checkoutsvc.LineInput, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkoutsvc.LineInput{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}

		sale, err := svc.Checkout(r.Context(), checkoutsvc.CheckoutInput{
			StoreID:       storeID,
			CashierID:     cashierID,
			CustomerID:    payload.CustomerID,
			PaymentMethod: method,
			AmountPaid:    payload.AmountPaid,
			Lines:         lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSaleResponse(sale))
	}
}

type checkoutRequest struct {
	Lines         []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	PaymentMethod string                `json:"payment_method" validate:"required"`
	AmountPaid    decimal.Decimal       `json:"amount_paid"`
	CustomerID    *uuid.UUID            `json:"customer_id,omitempty" validate:"omitempty,uuid4"`
}

type checkoutLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required,uuid4"`
	Quantity  int64     `json:"quantity" validate:"required,gt=0"`
}

type saleResponse struct {
	SaleID            uuid.UUID          `json:"sale_id"`
	TransactionNumber string             `json:"transaction_number"`
	Status            string             `json:"status"`
	PaymentMethod     string             `json:"payment_method"`
	Subtotal          string             `json:"subtotal"`
	TaxTotal          string             `json:"tax_total"`
	Total             string             `json:"total"`
	AmountPaid        string             `json:"amount_paid"`
	ChangeDue         string             `json:"change_due"`
	Lines             []saleLineResponse `json:"lines"`
}

type saleLineResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
	TaxAmount string    `json:"tax_amount"`
	Total     string    `json:"total"`
}

func newSaleResponse(sale *models.Sale) saleResponse {
	if sale == nil {
		return saleResponse{}
	}
	lines := make([]saleLineResponse, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, saleLineResponse{
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Subtotal:  line.Subtotal.StringFixed(2),
			TaxAmount: line.TaxAmount.StringFixed(2),
			Total:     line.Total.StringFixed(2),
		})
	}
	return saleResponse{
		SaleID:            sale.ID,
		TransactionNumber: sale.TransactionNumber,
		Status:            string(sale.Status),
		PaymentMethod:     string(sale.PaymentMethod),
		Subtotal:          sale.Subtotal.StringFixed(2),
		TaxTotal:          sale.TaxTotal.StringFixed(2),
		Total:             sale.Total.StringFixed(2),
		AmountPaid:        sale.AmountPaid.StringFixed(2),
		ChangeDue:         sale.ChangeDue.StringFixed(2),
		Lines:             lines,
	}
}

func storeIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.StoreIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid store context")
	}
	return id, nil
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return id, nil
}
