package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/api/middleware"
	"github.com/natecorreia/tillpoint-backend/internal/ledger"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

type stubLedgerService struct {
	adjustment  *ledger.Adjustment
	err         error
	adjustInput ledger.AdjustInput
	setInput    ledger.SetInput
	movements   []models.StockMovement
	nextCursor  string
}

func (s *stubLedgerService) Adjust(_ context.Context, input ledger.AdjustInput) (*ledger.Adjustment, error) {
	s.adjustInput = input
	return s.adjustment, s.err
}

func (s *stubLedgerService) Increment(context.Context, ledger.QuantityInput) (*ledger.Adjustment, error) {
	return s.adjustment, s.err
}

func (s *stubLedgerService) Decrement(context.Context, ledger.QuantityInput) (*ledger.Adjustment, error) {
	return s.adjustment, s.err
}

func (s *stubLedgerService) Set(_ context.Context, input ledger.SetInput) (*ledger.Adjustment, error) {
	s.setInput = input
	return s.adjustment, s.err
}

func (s *stubLedgerService) AdjustTx(context.Context, *gorm.DB, ledger.AdjustInput) (*ledger.Adjustment, error) {
	return s.adjustment, s.err
}

func (s *stubLedgerService) Dispatch(context.Context, []payloads.StockChangedEvent) {}

func (s *stubLedgerService) Record(context.Context, uuid.UUID, uuid.UUID) (*models.StockRecord, error) {
	if s.adjustment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
	}
	record := s.adjustment.Record
	return &record, nil
}

func (s *stubLedgerService) Records(context.Context, uuid.UUID, pagination.Params) ([]models.StockRecord, string, error) {
	return nil, "", nil
}

func (s *stubLedgerService) Movements(context.Context, uuid.UUID, uuid.UUID, pagination.Params) ([]models.StockMovement, string, error) {
	return s.movements, s.nextCursor, s.err
}

func inventoryRequest(method, url, body string, storeID, userID, productID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rc := chi.NewRouteContext()
	rc.URLParams.Add("productID", productID.String())

	ctx := middleware.WithStoreID(req.Context(), storeID.String())
	ctx = middleware.WithUserID(ctx, userID.String())
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	return req.WithContext(ctx)
}

func TestAdjustStockAppliesDelta(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	userID := uuid.New()
	productID := uuid.New()

	adjustment := &ledger.Adjustment{
		Record: models.StockRecord{
			ID:        uuid.New(),
			StoreID:   storeID,
			ProductID: productID,
			Quantity:  6,
		},
		Movement: models.StockMovement{
			ID:            uuid.New(),
			StoreID:       storeID,
			ProductID:     productID,
			Delta:         -4,
			QuantityAfter: 6,
			Category:      enums.MovementAdjustment,
			CreatedAt:     time.Now(),
		},
		Changed: true,
	}

	svc := &stubLedgerService{adjustment: adjustment}
	handler := AdjustStock(svc, nil)

	req := inventoryRequest(http.MethodPost, "/api/v1/inventory/"+productID.String()+"/adjust", `{"delta":-4}`, storeID, userID, productID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	if svc.adjustInput.Delta != -4 {
		t.Fatalf("expected delta -4 passed to service, got %d", svc.adjustInput.Delta)
	}
	if svc.adjustInput.Category != enums.MovementAdjustment {
		t.Fatalf("expected default category adjustment, got %s", svc.adjustInput.Category)
	}
	if svc.adjustInput.ActorUserID == nil || *svc.adjustInput.ActorUserID != userID {
		t.Fatalf("expected actor user id %s", userID)
	}

	var envelope struct {
		Data adjustmentResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Record.Quantity != 6 {
		t.Fatalf("unexpected quantity %d", envelope.Data.Record.Quantity)
	}
	if envelope.Data.Movement == nil || envelope.Data.Movement.Delta != -4 {
		t.Fatalf("expected movement with delta -4, got %+v", envelope.Data.Movement)
	}
}

func TestAdjustStockRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{}
	handler := AdjustStock(svc, nil)

	productID := uuid.New()
	req := inventoryRequest(http.MethodPost, "/api/v1/inventory/"+productID.String()+"/adjust", `{"delta":1,"category":"teleport"}`, uuid.New(), uuid.New(), productID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSetStockNoChangeOmitsMovement(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	productID := uuid.New()

	svc := &stubLedgerService{adjustment: &ledger.Adjustment{
		Record: models.StockRecord{
			ID:        uuid.New(),
			StoreID:   storeID,
			ProductID: productID,
			Quantity:  12,
		},
		Changed: false,
	}}
	handler := SetStock(svc, nil)

	req := inventoryRequest(http.MethodPost, "/api/v1/inventory/"+productID.String()+"/set", `{"quantity":12}`, storeID, uuid.New(), productID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.setInput.Target != 12 {
		t.Fatalf("expected target 12 passed to service, got %d", svc.setInput.Target)
	}

	var envelope struct {
		Data adjustmentResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Changed {
		t.Fatalf("expected changed=false for matching target")
	}
	if envelope.Data.Movement != nil {
		t.Fatalf("no movement expected for a silent no-op")
	}
}

func TestGetStockNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{}
	handler := GetStock(svc, nil)

	productID := uuid.New()
	req := inventoryRequest(http.MethodGet, "/api/v1/inventory/"+productID.String(), "", uuid.New(), uuid.New(), productID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestListMovementsReturnsCursor(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	productID := uuid.New()

	svc := &stubLedgerService{
		movements: []models.StockMovement{
			{
				ID:            uuid.New(),
				StoreID:       storeID,
				ProductID:     productID,
				Delta:         -2,
				QuantityAfter: 8,
				Category:      enums.MovementSale,
				CreatedAt:     time.Now(),
			},
		},
		nextCursor: "opaque-cursor",
	}
	handler := ListMovements(svc, nil)

	req := inventoryRequest(http.MethodGet, "/api/v1/inventory/"+productID.String()+"/movements?limit=1", "", storeID, uuid.New(), productID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Movements  []movementResponse `json:"movements"`
			NextCursor string             `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Movements) != 1 {
		t.Fatalf("expected one movement, got %d", len(envelope.Data.Movements))
	}
	if envelope.Data.NextCursor != "opaque-cursor" {
		t.Fatalf("unexpected cursor %q", envelope.Data.NextCursor)
	}
}
