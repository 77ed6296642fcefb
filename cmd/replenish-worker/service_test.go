package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natecorreia/tillpoint-backend/pkg/enums"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox/payloads"
)

type fakeEvaluator struct {
	events []payloads.StockChangedEvent
	err    error
}

func (f *fakeEvaluator) HandleStockChanged(_ context.Context, event payloads.StockChangedEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeDedupe struct {
	seen map[string]bool
	err  error
}

func (f *fakeDedupe) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func newTestWorker(t *testing.T, evaluator *fakeEvaluator, dedupe dedupeStore) *Worker {
	t.Helper()
	worker, err := NewWorker(evaluator, dedupe, nil, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return worker
}

func stockEnvelope(t *testing.T, event payloads.StockChangedEvent) (string, []byte) {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	eventID := uuid.NewString()
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return eventID, envelope
}

func stockAttrs() map[string]string {
	return map[string]string{"event_type": string(enums.EventStockChanged)}
}

func TestHandleMessageEvaluatesStockEvent(t *testing.T) {
	evaluator := &fakeEvaluator{}
	worker := newTestWorker(t, evaluator, nil)

	event := payloads.StockChangedEvent{
		StoreID:       uuid.New(),
		ProductID:     uuid.New(),
		Delta:         -3,
		QuantityAfter: 2,
		Category:      enums.MovementSale,
	}
	_, body := stockEnvelope(t, event)

	err := worker.HandleMessage(context.Background(), stockAttrs(), body)

	require.NoError(t, err)
	require.Len(t, evaluator.events, 1)
	assert.Equal(t, event.ProductID, evaluator.events[0].ProductID)
	assert.Equal(t, int64(2), evaluator.events[0].QuantityAfter)
}

func TestHandleMessageSkipsOtherEventTypes(t *testing.T) {
	evaluator := &fakeEvaluator{}
	worker := newTestWorker(t, evaluator, nil)

	err := worker.HandleMessage(context.Background(), map[string]string{
		"event_type": string(enums.EventSaleRecorded),
	}, []byte(`{}`))

	require.NoError(t, err)
	assert.Empty(t, evaluator.events)
}

func TestHandleMessageDiscardsMalformedEnvelope(t *testing.T) {
	worker := newTestWorker(t, &fakeEvaluator{}, nil)

	err := worker.HandleMessage(context.Background(), stockAttrs(), []byte("not json"))

	require.Error(t, err)
	assert.False(t, isRetryable(err))
}

func TestHandleMessageDiscardsUnknownVersion(t *testing.T) {
	worker := newTestWorker(t, &fakeEvaluator{}, nil)

	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 99, Data: []byte(`{}`)})
	require.NoError(t, err)

	handleErr := worker.HandleMessage(context.Background(), stockAttrs(), body)

	require.Error(t, handleErr)
	assert.False(t, isRetryable(handleErr))
}

func TestHandleMessageDedupesRedeliveries(t *testing.T) {
	evaluator := &fakeEvaluator{}
	worker := newTestWorker(t, evaluator, &fakeDedupe{})

	_, body := stockEnvelope(t, payloads.StockChangedEvent{
		StoreID:   uuid.New(),
		ProductID: uuid.New(),
	})

	require.NoError(t, worker.HandleMessage(context.Background(), stockAttrs(), body))
	require.NoError(t, worker.HandleMessage(context.Background(), stockAttrs(), body))

	assert.Len(t, evaluator.events, 1)
}

func TestHandleMessageRetriesOnEvaluatorError(t *testing.T) {
	evaluator := &fakeEvaluator{err: errors.New("db deadlock")}
	worker := newTestWorker(t, evaluator, nil)

	_, body := stockEnvelope(t, payloads.StockChangedEvent{
		StoreID:   uuid.New(),
		ProductID: uuid.New(),
	})

	err := worker.HandleMessage(context.Background(), stockAttrs(), body)

	require.Error(t, err)
	assert.True(t, isRetryable(err))
}

func TestHandleMessageRetriesOnDedupeOutage(t *testing.T) {
	evaluator := &fakeEvaluator{}
	worker := newTestWorker(t, evaluator, &fakeDedupe{err: errors.New("redis down")})

	_, body := stockEnvelope(t, payloads.StockChangedEvent{
		StoreID:   uuid.New(),
		ProductID: uuid.New(),
	})

	err := worker.HandleMessage(context.Background(), stockAttrs(), body)

	require.Error(t, err)
	assert.True(t, isRetryable(err))
	assert.Empty(t, evaluator.events)
}
