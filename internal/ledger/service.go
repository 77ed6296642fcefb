package ledger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/natecorreia/tillpoint-backend/pkg/db"
	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/natecorreia/tillpoint-backend/pkg/errors"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/metrics"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
	"github.com/natecorreia/tillpoint-backend/pkg/pagination"
)

const (
	maxContentionRetries = 3
	contentionBase       = 25 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockChangedHandler reacts to a committed quantity change. Handler errors
// are logged and dropped; they never unwind the write that triggered them.
type StockChangedHandler interface {
	HandleStockChanged(ctx context.Context, event payloads.StockChangedEvent) error
}

// Service is the transactional stock ledger. Every quantity change funnels
// through one atomic adjustment: lock row, apply delta, append movement,
// queue the stock-changed event.
type Service interface {
	Adjust(ctx context.Context, input AdjustInput) (*Adjustment, error)
	Increment(ctx context.Context, input QuantityInput) (*Adjustment, error)
	Decrement(ctx context.Context, input QuantityInput) (*Adjustment, error)
	Set(ctx context.Context, input SetInput) (*Adjustment, error)

	// AdjustTx applies an adjustment inside the caller's transaction. The
	// caller owns commit, retry, and post-commit dispatch.
	AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Adjustment, error)

	// Dispatch hands committed stock-changed events to the registered
	// handlers, best effort.
	Dispatch(ctx context.Context, events []payloads.StockChangedEvent)

	Record(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error)
	Records(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.StockRecord, string, error)
	Movements(ctx context.Context, storeID, productID uuid.UUID, params pagination.Params) ([]models.StockMovement, string, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	handlers []StockChangedHandler
	metrics  *metrics.POSMetrics
	logg     *logger.Logger
}

// AdjustInput describes one signed quantity delta.
type AdjustInput struct {
	StoreID     uuid.UUID
	ProductID   uuid.UUID
	Delta       int64
	Category    enums.MovementCategory
	Reference   *string
	Note        *string
	ActorUserID *uuid.UUID
	Metadata    json.RawMessage
}

// QuantityInput carries an unsigned quantity for increment/decrement.
type QuantityInput struct {
	StoreID     uuid.UUID
	ProductID   uuid.UUID
	Quantity    int64
	Category    enums.MovementCategory
	Reference   *string
	Note        *string
	ActorUserID *uuid.UUID
}

// SetInput pins the on-hand quantity to an absolute target.
type SetInput struct {
	StoreID     uuid.UUID
	ProductID   uuid.UUID
	Target      int64
	Reference   *string
	Note        *string
	ActorUserID *uuid.UUID
}

// Adjustment is the result of one applied delta. Changed is false only for a
// Set that already matched the target, which writes nothing.
type Adjustment struct {
	Record   models.StockRecord
	Movement models.StockMovement
	Event    payloads.StockChangedEvent
	Changed  bool
}

// NewService builds the ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, posMetrics *metrics.POSMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		metrics: posMetrics,
		logg:    logg,
	}, nil
}

// AddStockChangedHandler registers a post-commit handler. Not safe to call
// once the service is serving requests.
func (s *service) AddStockChangedHandler(h StockChangedHandler) {
	if h != nil {
		s.handlers = append(s.handlers, h)
	}
}

// RegisterStockChangedHandler attaches a handler to a Service built by
// NewService. It is a no-op for foreign implementations.
func RegisterStockChangedHandler(svc Service, h StockChangedHandler) {
	if impl, ok := svc.(*service); ok {
		impl.AddStockChangedHandler(h)
	}
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*Adjustment, error) {
	if err := validateAdjust(input); err != nil {
		return nil, err
	}
	return s.runAdjust(ctx, func(ctx context.Context, tx *gorm.DB) (*Adjustment, error) {
		return s.applyAdjust(ctx, tx, input)
	})
}

func (s *service) Increment(ctx context.Context, input QuantityInput) (*Adjustment, error) {
	adjust, err := quantityToAdjust(input, input.Quantity)
	if err != nil {
		return nil, err
	}
	return s.Adjust(ctx, adjust)
}

func (s *service) Decrement(ctx context.Context, input QuantityInput) (*Adjustment, error) {
	adjust, err := quantityToAdjust(input, -input.Quantity)
	if err != nil {
		return nil, err
	}
	return s.Adjust(ctx, adjust)
}

func (s *service) Set(ctx context.Context, input SetInput) (*Adjustment, error) {
	if input.StoreID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store and product are required")
	}
	return s.runAdjust(ctx, func(ctx context.Context, tx *gorm.DB) (*Adjustment, error) {
		return s.applySet(ctx, tx, input)
	})
}

func (s *service) AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Adjustment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if err := validateAdjust(input); err != nil {
		return nil, err
	}
	return s.applyAdjust(ctx, tx, input)
}

// runAdjust owns the transaction for standalone adjustments: retry on lock
// contention, then dispatch the committed event.
func (s *service) runAdjust(ctx context.Context, apply func(ctx context.Context, tx *gorm.DB) (*Adjustment, error)) (*Adjustment, error) {
	var result *Adjustment

	backoff := retry.WithMaxRetries(maxContentionRetries, retry.NewExponential(contentionBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			applied, err := apply(ctx, tx)
			if err != nil {
				return err
			}
			result = applied
			return nil
		})
		if txErr != nil && dbpkg.IsLockContention(txErr) {
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err != nil {
		if dbpkg.IsLockContention(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeContention, err, "stock record busy")
		}
		return nil, err
	}

	if result.Changed {
		s.metrics.IncStockAdjusted(result.Event.StoreID.String(), result.Event.Category.String())
		s.Dispatch(ctx, []payloads.StockChangedEvent{result.Event})
	}
	return result, nil
}

// applyAdjust is the single write path: every delta, whatever its origin,
// goes through here inside some transaction.
func (s *service) applyAdjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Adjustment, error) {
	repo := s.repo.WithTx(tx)

	record, err := repo.FindRecordForUpdate(ctx, input.StoreID, input.ProductID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading stock record")
	}

	record.Quantity += input.Delta
	if err := repo.SaveQuantity(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating stock quantity")
	}

	movement := models.StockMovement{
		ID:            uuid.New(),
		StoreID:       input.StoreID,
		ProductID:     input.ProductID,
		StockRecordID: record.ID,
		Delta:         input.Delta,
		QuantityAfter: record.Quantity,
		Category:      input.Category,
		Reference:     input.Reference,
		Note:          input.Note,
		ActorUserID:   input.ActorUserID,
		Metadata:      input.Metadata,
	}
	if err := repo.InsertMovement(ctx, &movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending stock movement")
	}

	event := payloads.StockChangedEvent{
		StoreID:       input.StoreID,
		ProductID:     input.ProductID,
		StockRecordID: record.ID,
		MovementID:    movement.ID,
		Delta:         input.Delta,
		QuantityAfter: record.Quantity,
		Category:      input.Category,
		OccurredAt:    time.Now().UTC(),
	}
	domainEvent := outbox.DomainEvent{
		EventType:     enums.EventStockChanged,
		AggregateType: enums.AggregateStockRecord,
		AggregateID:   record.ID,
		Data:          event,
	}
	if input.ActorUserID != nil {
		storeID := input.StoreID
		domainEvent.Actor = &outbox.ActorRef{UserID: *input.ActorUserID, StoreID: &storeID}
	}
	if err := s.outbox.Emit(ctx, tx, domainEvent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queueing stock event")
	}

	return &Adjustment{
		Record:   *record,
		Movement: movement,
		Event:    event,
		Changed:  true,
	}, nil
}

// applySet recomputes the delta under the row lock so a concurrent change
// between read and write cannot skew the target.
func (s *service) applySet(ctx context.Context, tx *gorm.DB, input SetInput) (*Adjustment, error) {
	repo := s.repo.WithTx(tx)

	record, err := repo.FindRecordForUpdate(ctx, input.StoreID, input.ProductID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading stock record")
	}

	delta := input.Target - record.Quantity
	if delta == 0 {
		// Already at target: no movement, no event.
		return &Adjustment{Record: *record, Changed: false}, nil
	}

	return s.applyAdjust(ctx, tx, AdjustInput{
		StoreID:     input.StoreID,
		ProductID:   input.ProductID,
		Delta:       delta,
		Category:    enums.MovementCorrection,
		Reference:   input.Reference,
		Note:        input.Note,
		ActorUserID: input.ActorUserID,
	})
}

func (s *service) Dispatch(ctx context.Context, events []payloads.StockChangedEvent) {
	if len(s.handlers) == 0 || len(events) == 0 {
		return
	}
	var errs error
	for _, event := range events {
		for _, handler := range s.handlers {
			if err := handler.HandleStockChanged(ctx, event); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	if errs != nil && s.logg != nil {
		s.logg.Error(ctx, "stock-changed handler failed", errs)
	}
}

func (s *service) Record(ctx context.Context, storeID, productID uuid.UUID) (*models.StockRecord, error) {
	record, err := s.repo.FindRecord(ctx, storeID, productID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading stock record")
	}
	return record, nil
}

func (s *service) Records(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.StockRecord, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListRecords(ctx, storeID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stock records")
	}
	page, next := pagination.TrimPage(rows, limit, func(r models.StockRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return page, next, nil
}

func (s *service) Movements(ctx context.Context, storeID, productID uuid.UUID, params pagination.Params) ([]models.StockMovement, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListMovements(ctx, storeID, productID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stock movements")
	}
	page, next := pagination.TrimPage(rows, limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

func validateAdjust(input AdjustInput) error {
	if input.StoreID == uuid.Nil || input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store and product are required")
	}
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement category")
	}
	return nil
}

func quantityToAdjust(input QuantityInput, delta int64) (AdjustInput, error) {
	if input.Quantity <= 0 {
		return AdjustInput{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	category := input.Category
	if category == "" {
		category = enums.MovementAdjustment
	}
	return AdjustInput{
		StoreID:     input.StoreID,
		ProductID:   input.ProductID,
		Delta:       delta,
		Category:    category,
		Reference:   input.Reference,
		Note:        input.Note,
		ActorUserID: input.ActorUserID,
	}, nil
}
