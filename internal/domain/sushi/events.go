package sushi

import "time"

// PurchasedEvent is emitted when a purchase has been committed.
type PurchasedEvent struct {
	Key        string
	Quantity   int
	Stock      int
	Sold       int
	Attempts   int
	OccurredAt time.Time
}

func (PurchasedEvent) EventName() string { return "sushi.purchased" }

func NewPurchasedEvent(o Outcome) PurchasedEvent {
	return PurchasedEvent{
		Key:        o.Key,
		Quantity:   o.Applied,
		Stock:      o.Stock,
		Sold:       o.Sold,
		Attempts:   o.Attempts,
		OccurredAt: time.Now().UTC(),
	}
}

// RestockedEvent is emitted when a restock has been committed, including a
// restock that was clamped to the maximum stock.
type RestockedEvent struct {
	Key        string
	Requested  int
	Applied    int
	Stock      int
	Clamped    bool
	OccurredAt time.Time
}

func (RestockedEvent) EventName() string { return "sushi.restocked" }

func NewRestockedEvent(o Outcome) RestockedEvent {
	return RestockedEvent{
		Key:        o.Key,
		Requested:  o.Requested,
		Applied:    o.Applied,
		Stock:      o.Stock,
		Clamped:    o.Clamped(),
		OccurredAt: time.Now().UTC(),
	}
}

// StockRejectedEvent is emitted when a mutation left the record unchanged.
type StockRejectedEvent struct {
	Key        string
	Operation  Operation
	Quantity   int
	Reason     string
	OccurredAt time.Time
}

func (StockRejectedEvent) EventName() string { return "sushi.stock_rejected" }

func NewStockRejectedEvent(key string, op Operation, quantity int, reason string) StockRejectedEvent {
	return StockRejectedEvent{
		Key:        key,
		Operation:  op,
		Quantity:   quantity,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
