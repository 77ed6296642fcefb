package checkout

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/natecorreia/tillpoint-backend/internal/ledger"
	dbpkg "github.com/natecorreia/tillpoint-backend/pkg/db"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/ident"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/metrics"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
)

const (
	maxCheckoutRetries = 3
	checkoutRetryBase  = 25 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjuster interface {
	AdjustTx(ctx context.Context, tx *gorm.DB, input ledger.AdjustInput) (*ledger.Adjustment, error)
	Dispatch(ctx context.Context, events []payloads.StockChangedEvent)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a cart into a committed sale: N ledger decrements, the sale
// lines, and the header, all in one transaction.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Sale, error)
	SaleByTransactionNumber(ctx context.Context, storeID uuid.UUID, number string) (*models.Sale, error)
	RecentSales(ctx context.Context, storeID uuid.UUID, limit int) ([]models.Sale, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	stock   stockAdjuster
	outbox  outboxPublisher
	taxRate decimal.Decimal
	metrics *metrics.POSMetrics
	logg    *logger.Logger
}

// LineInput is one cart entry.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int64
}

// CheckoutInput is the register's view of a finished cart.
type CheckoutInput struct {
	StoreID       uuid.UUID
	CashierID     uuid.UUID
	CustomerID    *uuid.UUID
	PaymentMethod enums.PaymentMethod
	AmountPaid    decimal.Decimal
	Lines         []LineInput
}

// NewService builds the checkout engine with the required dependencies.
func NewService(repo Repository, tx txRunner, stock stockAdjuster, publisher outboxPublisher, taxRate decimal.Decimal, posMetrics *metrics.POSMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if taxRate.IsNegative() || taxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate %s out of range [0,1)", taxRate)
	}
	return &service{
		repo:    repo,
		tx:      tx,
		stock:   stock,
		outbox:  publisher,
		taxRate: taxRate,
		metrics: posMetrics,
		logg:    logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Sale, error) {
	started := time.Now()
	if err := validateCheckout(input); err != nil {
		s.metrics.IncCheckoutFailed(input.StoreID.String(), string(pkgerrors.CodeValidation))
		return nil, err
	}

	var sale *models.Sale
	var stockEvents []payloads.StockChangedEvent

	backoff := retry.WithMaxRetries(maxCheckoutRetries, retry.NewExponential(checkoutRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		stockEvents = stockEvents[:0]
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			committed, events, err := s.checkoutTx(ctx, tx, input)
			if err != nil {
				return err
			}
			sale = committed
			stockEvents = events
			return nil
		})
		if txErr != nil && isRetryableCheckout(txErr) {
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err != nil {
		if dbpkg.IsLockContention(err) {
			err = pkgerrors.Wrap(pkgerrors.CodeContention, err, "stock records busy")
		}
		code := pkgerrors.CodeInternal
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		s.metrics.IncCheckoutFailed(input.StoreID.String(), string(code))
		return nil, err
	}

	// The sale is durable; the stock-changed hand-off is best effort.
	s.stock.Dispatch(ctx, stockEvents)
	s.metrics.IncSaleCompleted(input.StoreID.String())
	s.metrics.ObserveCheckout(input.StoreID.String(), time.Since(started))

	if s.logg != nil {
		logCtx := s.logg.WithSaleID(ctx, sale.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"transaction_number": sale.TransactionNumber,
			"line_count":         len(sale.Lines),
			"total":              sale.Total.String(),
		})
		s.logg.Info(logCtx, "sale completed")
	}
	return sale, nil
}

// checkoutTx is one attempt at the whole sale. If anything fails, including
// the Nth line decrement, the transaction rolls back and no partial state
// survives.
func (s *service) checkoutTx(ctx context.Context, tx *gorm.DB, input CheckoutInput) (*models.Sale, []payloads.StockChangedEvent, error) {
	repo := s.repo.WithTx(tx)

	productIDs := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	products, err := repo.FindActiveProducts(ctx, input.StoreID, productIDs)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	trxNumber := ident.TransactionNumber()
	lines := make([]models.SaleLine, 0, len(input.Lines))
	events := make([]payloads.StockChangedEvent, 0, len(input.Lines))

	for _, line := range input.Lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available").
				WithDetails(map[string]string{"product_id": line.ProductID.String()})
		}

		// Each cart line is its own ledger decrement; duplicate products
		// produce one movement per line.
		adjustment, err := s.stock.AdjustTx(ctx, tx, ledger.AdjustInput{
			StoreID:     input.StoreID,
			ProductID:   line.ProductID,
			Delta:       -line.Quantity,
			Category:    enums.MovementSale,
			Reference:   &trxNumber,
			ActorUserID: &input.CashierID,
		})
		if err != nil {
			return nil, nil, err
		}
		events = append(events, adjustment.Event)
		lines = append(lines, priceLine(product, line.Quantity, s.taxRate))
	}

	subtotal, tax, total := sumLines(lines)
	sale := &models.Sale{
		StoreID:           input.StoreID,
		TransactionNumber: trxNumber,
		Status:            enums.SaleStatusCompleted,
		CashierID:         input.CashierID,
		CustomerID:        input.CustomerID,
		PaymentMethod:     input.PaymentMethod,
		Subtotal:          subtotal,
		TaxTotal:          tax,
		Total:             total,
		AmountPaid:        input.AmountPaid,
		// Change may go negative; partial payment is the cashier's call.
		ChangeDue: input.AmountPaid.Sub(total),
		Lines:     lines,
	}
	if err := repo.CreateSale(ctx, sale); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting sale")
	}

	saleEvent := outbox.DomainEvent{
		EventType:     enums.EventSaleRecorded,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{UserID: input.CashierID, StoreID: &input.StoreID},
		Data: payloads.SaleRecordedEvent{
			SaleID:            sale.ID,
			StoreID:           sale.StoreID,
			TransactionNumber: sale.TransactionNumber,
			LineCount:         len(sale.Lines),
			Total:             sale.Total,
		},
	}
	if err := s.outbox.Emit(ctx, tx, saleEvent); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queueing sale event")
	}

	return sale, events, nil
}

func (s *service) SaleByTransactionNumber(ctx context.Context, storeID uuid.UUID, number string) (*models.Sale, error) {
	sale, err := s.repo.FindByTransactionNumber(ctx, number)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sale")
	}
	if sale.StoreID != storeID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return sale, nil
}

func (s *service) RecentSales(ctx context.Context, storeID uuid.UUID, limit int) ([]models.Sale, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sales, err := s.repo.ListSales(ctx, storeID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing sales")
	}
	return sales, nil
}

func validateCheckout(input CheckoutInput) error {
	if input.StoreID == uuid.Nil || input.CashierID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store and cashier are required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	// Short payment is allowed (change goes negative); a negative tender is
	// not a payment at all.
	if input.AmountPaid.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount paid cannot be negative")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}
	return nil
}

// isRetryableCheckout covers row-lock contention plus the rare transaction
// number collision; both resolve on a fresh attempt.
func isRetryableCheckout(err error) bool {
	return dbpkg.IsLockContention(err) ||
		dbpkg.IsUniqueViolation(err, "idx_sales_transaction_number")
}
