package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column on outbox events.
type OutboxAggregateType string

const (
	AggregateStockRecord   OutboxAggregateType = "stock_record"
	AggregateSale          OutboxAggregateType = "sale"
	AggregatePurchaseOrder OutboxAggregateType = "purchase_order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockRecord,
	AggregateSale,
	AggregatePurchaseOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column on outbox events.
type OutboxEventType string

const (
	EventStockChanged OutboxEventType = "stock_changed"
	EventSaleRecorded OutboxEventType = "sale_recorded"
	EventPODraftLine  OutboxEventType = "purchase_order_line_added"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockChanged,
	EventSaleRecorded,
	EventPODraftLine,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
