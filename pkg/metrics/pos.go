package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// POSMetrics records the counters and timings the register path emits.
type POSMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	salesCompleted   *prometheus.CounterVec
	checkoutFailed   *prometheus.CounterVec
	stockAdjusted    *prometheus.CounterVec
	replenishTrigger *prometheus.CounterVec
	outboxPublished  *prometheus.CounterVec
	eventsConsumed   prometheus.Counter
}

// NewPOSMetrics registers the register-path metrics on the provided registerer.
// A nil registerer yields a no-op instance, which keeps tests and tooling free
// of global registry collisions.
func NewPOSMetrics(reg prometheus.Registerer) *POSMetrics {
	if reg == nil {
		return &POSMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"store"})
	salesCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_completed_total",
		Help: "Completed checkout transactions.",
	}, []string{"store"})
	checkoutFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Checkout transactions rolled back, by error code.",
	}, []string{"store", "code"})
	stockAdjusted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Ledger adjustments applied, by movement category.",
	}, []string{"store", "category"})
	replenishTrigger := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replenishment_triggers_total",
		Help: "Replenishment evaluations that added a purchase order line.",
	}, []string{"store"})
	outboxPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published, by event type.",
	}, []string{"event_type"})
	eventsConsumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_events_consumed_total",
		Help: "Stock-changed events consumed from the queue.",
	})
	reg.MustRegister(checkoutDuration, salesCompleted, checkoutFailed, stockAdjusted, replenishTrigger, outboxPublished, eventsConsumed)
	return &POSMetrics{
		checkoutDuration: checkoutDuration,
		salesCompleted:   salesCompleted,
		checkoutFailed:   checkoutFailed,
		stockAdjusted:    stockAdjusted,
		replenishTrigger: replenishTrigger,
		outboxPublished:  outboxPublished,
		eventsConsumed:   eventsConsumed,
	}
}

// ObserveCheckout records the duration of one checkout transaction.
func (p *POSMetrics) ObserveCheckout(store string, duration time.Duration) {
	if p == nil || p.checkoutDuration == nil {
		return
	}
	p.checkoutDuration.WithLabelValues(normalizeLabel(store)).Observe(duration.Seconds())
}

// IncSaleCompleted increments the completed-sales counter.
func (p *POSMetrics) IncSaleCompleted(store string) {
	if p == nil || p.salesCompleted == nil {
		return
	}
	p.salesCompleted.WithLabelValues(normalizeLabel(store)).Inc()
}

// IncCheckoutFailed increments the failed-checkout counter for an error code.
func (p *POSMetrics) IncCheckoutFailed(store, code string) {
	if p == nil || p.checkoutFailed == nil {
		return
	}
	p.checkoutFailed.WithLabelValues(normalizeLabel(store), normalizeLabel(code)).Inc()
}

// IncStockAdjusted increments the ledger adjustment counter for a category.
func (p *POSMetrics) IncStockAdjusted(store, category string) {
	if p == nil || p.stockAdjusted == nil {
		return
	}
	p.stockAdjusted.WithLabelValues(normalizeLabel(store), normalizeLabel(category)).Inc()
}

// IncReplenishmentTriggered increments the replenishment counter.
func (p *POSMetrics) IncReplenishmentTriggered(store string) {
	if p == nil || p.replenishTrigger == nil {
		return
	}
	p.replenishTrigger.WithLabelValues(normalizeLabel(store)).Inc()
}

// IncOutboxPublished increments the published-events counter.
func (p *POSMetrics) IncOutboxPublished(eventType string) {
	if p == nil || p.outboxPublished == nil {
		return
	}
	p.outboxPublished.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncStockEventsConsumed increments the consumed-events counter.
func (p *POSMetrics) IncStockEventsConsumed() {
	if p == nil || p.eventsConsumed == nil {
		return
	}
	p.eventsConsumed.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
