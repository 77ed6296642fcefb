package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/metrics"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
)

const (
	supportedEnvelopeVersion = 1
	dedupeTTL                = 24 * time.Hour
)

type stockEvaluator interface {
	HandleStockChanged(ctx context.Context, event payloads.StockChangedEvent) error
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

type Worker struct {
	evaluator stockEvaluator
	dedupe    dedupeStore
	metrics   *metrics.POSMetrics
	logg      *logger.Logger
}

func NewWorker(evaluator stockEvaluator, dedupe dedupeStore, posMetrics *metrics.POSMetrics, logg *logger.Logger) (*Worker, error) {
	if evaluator == nil {
		return nil, errors.New("stock evaluator is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Worker{
		evaluator: evaluator,
		dedupe:    dedupe,
		metrics:   posMetrics,
		logg:      logg,
	}, nil
}

// Run consumes the stock subscription until ctx is canceled. Receive blocks;
// it returns nil on clean shutdown.
func (w *Worker) Run(ctx context.Context, sub *gcppubsub.Subscriber) error {
	if sub == nil {
		return errors.New("stock subscription is not configured")
	}
	return sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if err := w.HandleMessage(msgCtx, msg.Attributes, msg.Data); err != nil {
			if isRetryable(err) {
				logCtx := w.logg.WithField(msgCtx, "error", err.Error())
				w.logg.Warn(logCtx, "stock event handling failed, nacking")
				msg.Nack()
				return
			}
			logCtx := w.logg.WithField(msgCtx, "error", err.Error())
			w.logg.Warn(logCtx, "dropping malformed stock event")
		}
		msg.Ack()
	})
}

// HandleMessage processes a single stock event. Non-retryable errors (bad
// envelope, wrong event type) are returned wrapped in errDiscard so the
// caller acks instead of redelivering forever.
func (w *Worker) HandleMessage(ctx context.Context, attrs map[string]string, data []byte) error {
	if eventType := attrs["event_type"]; eventType != "" && eventType != string(enums.EventStockChanged) {
		// The topic also carries sale and purchase-order events; this
		// worker only reacts to stock changes.
		return nil
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return discard(fmt.Errorf("decoding envelope: %w", err))
	}
	if envelope.Version != supportedEnvelopeVersion {
		return discard(fmt.Errorf("unsupported envelope version %d", envelope.Version))
	}

	var event payloads.StockChangedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return discard(fmt.Errorf("decoding stock event: %w", err))
	}

	logCtx := w.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"store_id":       event.StoreID.String(),
		"product_id":     event.ProductID.String(),
		"quantity_after": event.QuantityAfter,
	})

	if fresh, err := w.claimEvent(ctx, envelope.EventID); err != nil {
		return err
	} else if !fresh {
		w.logg.Info(logCtx, "stock event already processed, skipping")
		return nil
	}

	if err := w.evaluator.HandleStockChanged(ctx, event); err != nil {
		return fmt.Errorf("evaluating stock level: %w", err)
	}

	w.metrics.IncStockEventsConsumed()
	w.logg.Info(logCtx, "stock event processed")
	return nil
}

// claimEvent reserves the event id so redelivered messages become no-ops.
// Without a dedupe store every delivery is treated as fresh; Evaluate is
// idempotent at the database level so duplicates only cost a query.
func (w *Worker) claimEvent(ctx context.Context, eventID string) (bool, error) {
	if w.dedupe == nil || strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	fresh, err := w.dedupe.SetNX(ctx, "stock-event:"+eventID, "1", dedupeTTL)
	if err != nil {
		return false, fmt.Errorf("claiming event %s: %w", eventID, err)
	}
	return fresh, nil
}

type discardError struct {
	err error
}

func (d discardError) Error() string { return d.err.Error() }
func (d discardError) Unwrap() error { return d.err }

func discard(err error) error {
	return discardError{err: err}
}

func isRetryable(err error) bool {
	var d discardError
	return !errors.As(err, &d)
}
