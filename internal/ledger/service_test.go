package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type captureHandler struct {
	mu     sync.Mutex
	events []payloads.StockChangedEvent
	fail   error
}

func (h *captureHandler) HandleStockChanged(_ context.Context, event payloads.StockChangedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.fail
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.StockRecord{}, &models.StockMovement{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (Service, *captureHandler) {
	t.Helper()
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(NewRepository(db), testTxRunner{db: db}, publisher, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler := &captureHandler{}
	RegisterStockChangedHandler(svc, handler)
	return svc, handler
}

func seedRecord(t *testing.T, db *gorm.DB, storeID, productID uuid.UUID, qty int64) models.StockRecord {
	t.Helper()
	record := models.StockRecord{
		ID:        uuid.New(),
		StoreID:   storeID,
		ProductID: productID,
		Quantity:  qty,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed stock record: %v", err)
	}
	return record
}

func TestAdjustAppliesDeltaAndAppendsMovement(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, handler := newTestService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 10)

	result, err := svc.Adjust(ctx, AdjustInput{
		StoreID:   storeID,
		ProductID: productID,
		Delta:     -4,
		Category:  enums.MovementSale,
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if result.Record.Quantity != 6 {
		t.Fatalf("expected quantity 6, got %d", result.Record.Quantity)
	}
	if result.Movement.Delta != -4 || result.Movement.QuantityAfter != 6 {
		t.Fatalf("unexpected movement: %+v", result.Movement)
	}

	var movements []models.StockMovement
	if err := db.Where("product_id = ?", productID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(movements))
	}

	var outboxRows []models.OutboxEvent
	if err := db.Find(&outboxRows).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(outboxRows) != 1 || outboxRows[0].EventType != enums.EventStockChanged {
		t.Fatalf("expected one stock_changed outbox event, got %+v", outboxRows)
	}

	if len(handler.events) != 1 || handler.events[0].QuantityAfter != 6 {
		t.Fatalf("expected post-commit dispatch, got %+v", handler.events)
	}
}

func TestDecrementBelowZeroIsRecordedNotRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 2)

	result, err := svc.Decrement(ctx, QuantityInput{
		StoreID:   storeID,
		ProductID: productID,
		Quantity:  5,
		Category:  enums.MovementSale,
	})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if result.Record.Quantity != -3 {
		t.Fatalf("expected oversold quantity -3, got %d", result.Record.Quantity)
	}
}

func TestAdjustZeroDeltaRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		StoreID:   uuid.New(),
		ProductID: uuid.New(),
		Delta:     0,
		Category:  enums.MovementAdjustment,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdjustUnknownProductNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		StoreID:   uuid.New(),
		ProductID: uuid.New(),
		Delta:     1,
		Category:  enums.MovementAdjustment,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, handler := newTestService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 7)

	first, err := svc.Set(ctx, SetInput{StoreID: storeID, ProductID: productID, Target: 12})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !first.Changed || first.Record.Quantity != 12 || first.Movement.Delta != 5 {
		t.Fatalf("unexpected first set result: %+v", first)
	}

	second, err := svc.Set(ctx, SetInput{StoreID: storeID, ProductID: productID, Target: 12})
	if err != nil {
		t.Fatalf("repeat set: %v", err)
	}
	if second.Changed {
		t.Fatal("expected repeat set to be a no-op")
	}

	var count int64
	if err := db.Model(&models.StockMovement{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 movement, got %d", count)
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(handler.events))
	}
}

func TestHandlerFailureDoesNotUnwindAdjust(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, handler := newTestService(t, db)
	handler.fail = pkgerrors.New(pkgerrors.CodeInternal, "handler exploded")
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 10)

	result, err := svc.Adjust(ctx, AdjustInput{
		StoreID:   storeID,
		ProductID: productID,
		Delta:     -1,
		Category:  enums.MovementSale,
	})
	if err != nil {
		t.Fatalf("adjust should not surface handler error, got %v", err)
	}
	if result.Record.Quantity != 9 {
		t.Fatalf("expected quantity 9, got %d", result.Record.Quantity)
	}
}

func TestMovementLogConservesQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 50)

	deltas := []int64{-3, 10, -7, -25, 4, -40, 12}
	for _, delta := range deltas {
		if _, err := svc.Adjust(ctx, AdjustInput{
			StoreID:   storeID,
			ProductID: productID,
			Delta:     delta,
			Category:  enums.MovementAdjustment,
		}); err != nil {
			t.Fatalf("adjust %d: %v", delta, err)
		}
	}

	var record models.StockRecord
	if err := db.Where("product_id = ?", productID).First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}

	var sum int64
	var movements []models.StockMovement
	if err := db.Where("product_id = ?", productID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	for _, m := range movements {
		sum += m.Delta
	}

	if record.Quantity != 50+sum {
		t.Fatalf("quantity %d does not equal seed plus movement sum %d", record.Quantity, 50+sum)
	}
	if record.Quantity != 1 {
		t.Fatalf("expected final quantity 1, got %d", record.Quantity)
	}
}

func TestMovementsPagination(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 100)

	for i := 0; i < 5; i++ {
		if _, err := svc.Adjust(ctx, AdjustInput{
			StoreID:   storeID,
			ProductID: productID,
			Delta:     -1,
			Category:  enums.MovementSale,
		}); err != nil {
			t.Fatalf("adjust %d: %v", i, err)
		}
	}

	page, next, err := svc.Movements(ctx, storeID, productID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 3 || next == "" {
		t.Fatalf("expected 3 rows and a cursor, got %d rows cursor=%q", len(page), next)
	}

	rest, _, err := svc.Movements(ctx, storeID, productID, pagination.Params{Limit: 3, Cursor: next})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", len(rest))
	}
}

func TestConcurrentDecrementsLoseNoUpdates(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying db: %v", err)
	}
	// One connection serializes the shared-cache sqlite file; the row lock
	// does the same job against Postgres.
	sqlDB.SetMaxOpenConns(1)

	svc, handler := newTestService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()
	seedRecord(t, db, storeID, productID, 100)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Decrement(ctx, QuantityInput{
				StoreID:   storeID,
				ProductID: productID,
				Quantity:  1,
				Category:  enums.MovementSale,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("decrement: %v", err)
		}
	}

	var record models.StockRecord
	if err := db.Where("store_id = ? AND product_id = ?", storeID, productID).First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Quantity != 75 {
		t.Fatalf("expected quantity 75 after %d decrements, got %d", workers, record.Quantity)
	}

	var movements []models.StockMovement
	if err := db.Where("store_id = ? AND product_id = ?", storeID, productID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != workers {
		t.Fatalf("expected %d movements, got %d", workers, len(movements))
	}
	seen := make(map[int64]bool, workers)
	for _, m := range movements {
		if m.QuantityAfter < 75 || m.QuantityAfter > 99 || seen[m.QuantityAfter] {
			t.Fatalf("unexpected or duplicated quantity_after %d", m.QuantityAfter)
		}
		seen[m.QuantityAfter] = true
	}
	if len(handler.events) != workers {
		t.Fatalf("expected %d dispatched events, got %d", workers, len(handler.events))
	}
}
