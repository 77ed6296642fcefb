package replenishment

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/config"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupReplenishmentDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:replenish_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.StockRecord{},
		&models.Supplier{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderLine{},
		&models.OutboxEvent{},
	))
	// AutoMigrate cannot express the one-open-draft rule; mirror the
	// schema's partial unique index so upserts behave as in production.
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_orders_store_supplier_draft "+
			"ON purchase_orders (store_id, supplier_id) WHERE status = 'draft'",
	).Error)
	return db
}

func setupService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	cfg := config.Replenishment{
		SupplierName: "System Auto Supplier",
		SupplierMail: "auto@system.local",
	}
	svc, err := NewService(NewRepository(db), testTxRunner{db: db}, publisher, cfg, nil, nil)
	require.NoError(t, err)
	return svc
}

func seedLowStockProduct(t *testing.T, db *gorm.DB, storeID uuid.UUID, sku string, qty, threshold, reorderQty int64) models.Product {
	t.Helper()
	product := models.Product{
		ID:        uuid.New(),
		StoreID:   storeID,
		SKU:       sku,
		Name:      "Product " + sku,
		UnitPrice: decimal.RequireFromString("9.99"),
		CostPrice: decimal.RequireFromString("4.00"),
		IsActive:  true,
	}
	require.NoError(t, db.Create(&product).Error)
	record := models.StockRecord{
		ID:               uuid.New(),
		StoreID:          storeID,
		ProductID:        product.ID,
		Quantity:         qty,
		ReorderThreshold: threshold,
		ReorderQuantity:  reorderQty,
	}
	require.NoError(t, db.Create(&record).Error)
	return product
}

func stockEvent(storeID, productID uuid.UUID) payloads.StockChangedEvent {
	return payloads.StockChangedEvent{
		StoreID:   storeID,
		ProductID: productID,
		Delta:     -1,
		Category:  enums.MovementSale,
	}
}

func TestLowStockCreatesSupplierDraftAndLine(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	product := seedLowStockProduct(t, db, storeID, "SKU-LOW", 2, 5, 25)

	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, product.ID)))

	var supplier models.Supplier
	require.NoError(t, db.Where("store_id = ?", storeID).First(&supplier).Error)
	assert.Equal(t, "System Auto Supplier", supplier.Name)
	require.NotNil(t, supplier.Email)
	assert.Equal(t, "auto@system.local", *supplier.Email)

	var order models.PurchaseOrder
	require.NoError(t, db.Where("store_id = ?", storeID).First(&order).Error)
	assert.Equal(t, enums.PurchaseOrderDraft, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "PO-AUTO-"))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("100.00")), "total=%s", order.Total)

	var lines []models.PurchaseOrderLine
	require.NoError(t, db.Where("purchase_order_id = ?", order.ID).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, product.ID, lines[0].ProductID)
	assert.EqualValues(t, 25, lines[0].Quantity)
	assert.True(t, lines[0].UnitCost.Equal(decimal.RequireFromString("4.00")))
}

func TestRepeatEventsDoNotDuplicateLine(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	product := seedLowStockProduct(t, db, storeID, "SKU-RPT", 1, 5, 10)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, product.ID)))
	}

	var lineCount int64
	require.NoError(t, db.Model(&models.PurchaseOrderLine{}).Count(&lineCount).Error)
	assert.EqualValues(t, 1, lineCount)

	var order models.PurchaseOrder
	require.NoError(t, db.Where("store_id = ?", storeID).First(&order).Error)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("40.00")), "total=%s", order.Total)
}

func TestSecondProductJoinsExistingDraft(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	first := seedLowStockProduct(t, db, storeID, "SKU-A", 2, 5, 10)
	second := seedLowStockProduct(t, db, storeID, "SKU-B", 0, 3, 5)

	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, first.ID)))
	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, second.ID)))

	var orderCount int64
	require.NoError(t, db.Model(&models.PurchaseOrder{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, orderCount, "both products share one draft")

	var order models.PurchaseOrder
	require.NoError(t, db.Preload("Lines").Where("store_id = ?", storeID).First(&order).Error)
	assert.Len(t, order.Lines, 2)
	// 10*4.00 + 5*4.00
	assert.True(t, order.Total.Equal(decimal.RequireFromString("60.00")), "total=%s", order.Total)
}

func TestAboveThresholdIsNoop(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	product := seedLowStockProduct(t, db, storeID, "SKU-OK", 50, 5, 10)

	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, product.ID)))

	var supplierCount, orderCount int64
	require.NoError(t, db.Model(&models.Supplier{}).Count(&supplierCount).Error)
	require.NoError(t, db.Model(&models.PurchaseOrder{}).Count(&orderCount).Error)
	assert.Zero(t, supplierCount)
	assert.Zero(t, orderCount)
}

func TestZeroThresholdTriggersAtZeroStock(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	product := seedLowStockProduct(t, db, storeID, "SKU-ZT", -10, 0, 10)

	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, product.ID)))

	var lines []models.PurchaseOrderLine
	require.NoError(t, db.Where("product_id = ?", product.ID).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 10, lines[0].Quantity)
}

func TestPositiveStockAboveThresholdDoesNotTrigger(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	product := seedLowStockProduct(t, db, storeID, "SKU-OK", 1, 0, 10)

	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, product.ID)))

	var orderCount int64
	require.NoError(t, db.Model(&models.PurchaseOrder{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestUnsetReorderQuantitySkips(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	product := seedLowStockProduct(t, db, storeID, "SKU-NQ", 1, 5, 0)

	require.NoError(t, svc.HandleStockChanged(ctx, stockEvent(storeID, product.ID)))

	var orderCount int64
	require.NoError(t, db.Model(&models.PurchaseOrder{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestLostInsertRaceAdoptsExistingRows(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	ctx := context.Background()
	storeID := uuid.New()
	repo := NewRepository(db)

	winner := models.Supplier{
		ID:      uuid.New(),
		StoreID: storeID,
		Name:    "System Auto Supplier",
	}
	require.NoError(t, db.Create(&winner).Error)
	draft := models.PurchaseOrder{
		ID:          uuid.New(),
		StoreID:     storeID,
		SupplierID:  winner.ID,
		OrderNumber: "PO-AUTO-WINNER",
		Status:      enums.PurchaseOrderDraft,
		Total:       decimal.Zero,
	}
	require.NoError(t, db.Create(&draft).Error)

	// The conflicting inserts must not error out the transaction; the
	// loser adopts the pre-existing rows instead.
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)

		supplier, err := txRepo.FindOrCreateSupplier(ctx, storeID, "System Auto Supplier", "auto@system.local")
		if err != nil {
			return err
		}
		assert.Equal(t, winner.ID, supplier.ID)

		order, err := txRepo.FindOrCreateDraftOrder(ctx, storeID, supplier.ID, "PO-AUTO-LOSER")
		if err != nil {
			return err
		}
		assert.Equal(t, draft.ID, order.ID)
		assert.Equal(t, "PO-AUTO-WINNER", order.OrderNumber)

		// Later statements in the same tx still work.
		return tx.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).
			Update("total", decimal.RequireFromString("1.00")).Error
	}))

	var supplierCount, orderCount int64
	require.NoError(t, db.Model(&models.Supplier{}).Count(&supplierCount).Error)
	require.NoError(t, db.Model(&models.PurchaseOrder{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, supplierCount)
	assert.EqualValues(t, 1, orderCount)
}

func TestUnknownProductIsIgnored(t *testing.T) {
	t.Parallel()

	db := setupReplenishmentDB(t)
	svc := setupService(t, db)

	require.NoError(t, svc.HandleStockChanged(context.Background(), stockEvent(uuid.New(), uuid.New())))
}
