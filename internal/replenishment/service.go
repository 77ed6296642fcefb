package replenishment

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/pkg/config"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/ident"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/metrics"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service watches stock levels and feeds the purchasing pipeline: when a
// product sits at or under its reorder threshold, it lands exactly once on
// the store's open draft purchase order against the system supplier.
type Service interface {
	// HandleStockChanged is the in-process hand-off from the ledger.
	HandleStockChanged(ctx context.Context, event payloads.StockChangedEvent) error

	// Evaluate re-checks one product against its threshold. Used by the
	// worker consuming stock events off the queue.
	Evaluate(ctx context.Context, storeID, productID uuid.UUID) error

	Orders(ctx context.Context, storeID uuid.UUID, status enums.PurchaseOrderStatus, limit int) ([]models.PurchaseOrder, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	cfg     config.Replenishment
	metrics *metrics.POSMetrics
	logg    *logger.Logger
}

// NewService builds the replenishment trigger with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, cfg config.Replenishment, posMetrics *metrics.POSMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("replenishment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.SupplierName == "" {
		return nil, fmt.Errorf("system supplier name required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		cfg:     cfg,
		metrics: posMetrics,
		logg:    logg,
	}, nil
}

func (s *service) HandleStockChanged(ctx context.Context, event payloads.StockChangedEvent) error {
	// Only drops can cross the threshold downward, but a re-check on any
	// event is harmless: the line guard keeps it idempotent.
	return s.Evaluate(ctx, event.StoreID, event.ProductID)
}

func (s *service) Evaluate(ctx context.Context, storeID, productID uuid.UUID) error {
	if storeID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store and product are required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindStockRecord(ctx, storeID, productID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading stock record")
		}
		if !record.BelowThreshold() {
			return nil
		}
		if record.ReorderQuantity <= 0 {
			if s.logg != nil {
				logCtx := s.logg.WithProductID(ctx, productID.String())
				s.logg.Warn(logCtx, "stock below threshold but reorder quantity unset")
			}
			return nil
		}

		product, err := repo.FindProduct(ctx, storeID, productID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
		}

		supplier, err := repo.FindOrCreateSupplier(ctx, storeID, s.cfg.SupplierName, s.cfg.SupplierMail)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving system supplier")
		}

		order, err := repo.FindOrCreateDraftOrder(ctx, storeID, supplier.ID, ident.AutoDraftOrderNumber())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving draft order")
		}

		lineTotal := product.CostPrice.Mul(decimal.NewFromInt(record.ReorderQuantity)).Round(2)
		line := models.PurchaseOrderLine{
			PurchaseOrderID: order.ID,
			ProductID:       productID,
			Quantity:        record.ReorderQuantity,
			UnitCost:        product.CostPrice,
			LineTotal:       lineTotal,
		}
		inserted, err := repo.InsertLineIfAbsent(ctx, &line)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adding order line")
		}
		if !inserted {
			// Product already queued for reorder on this draft.
			return nil
		}

		if err := repo.IncrementOrderTotal(ctx, order.ID, lineTotal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order total")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPODraftLine,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   order.ID,
			Data: payloads.PurchaseOrderLineAddedEvent{
				PurchaseOrderID: order.ID,
				StoreID:         storeID,
				SupplierID:      supplier.ID,
				ProductID:       productID,
				Quantity:        record.ReorderQuantity,
				UnitCost:        product.CostPrice,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queueing order event")
		}

		s.metrics.IncReplenishmentTriggered(storeID.String())
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id":   productID.String(),
				"order_number": order.OrderNumber,
				"quantity":     record.ReorderQuantity,
			})
			s.logg.Info(logCtx, "replenishment line added")
		}
		return nil
	})
}

func (s *service) Orders(ctx context.Context, storeID uuid.UUID, status enums.PurchaseOrderStatus, limit int) ([]models.PurchaseOrder, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	orders, err := s.repo.ListOrders(ctx, storeID, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing purchase orders")
	}
	return orders, nil
}
