package stock

import (
	"context"
	"fmt"
	"maps"
	"sync"

	domoutbox "github.com/Zhima-Mochi/sushistore/internal/domain/outbox"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/Zhima-Mochi/sushistore/internal/observability/logctx"
)

// Ledger is an in-process tally of stock events. It is a read model only and
// never feeds back into the store.
type Ledger struct {
	mu         sync.RWMutex
	sold       map[string]int
	restocked  map[string]int
	rejections map[string]int
}

// Tally is a point-in-time copy of a Ledger.
type Tally struct {
	Sold       map[string]int
	Restocked  map[string]int
	Rejections map[string]int // by failure reason
}

// UnitsSold sums Sold across keys.
func (t Tally) UnitsSold() int {
	total := 0
	for _, n := range t.Sold {
		total += n
	}
	return total
}

func NewLedger() *Ledger {
	return &Ledger{
		sold:       make(map[string]int),
		restocked:  make(map[string]int),
		rejections: make(map[string]int),
	}
}

func (l *Ledger) recordSale(key string, n int) {
	l.mu.Lock()
	l.sold[key] += n
	l.mu.Unlock()
}

func (l *Ledger) recordRestock(key string, n int) {
	l.mu.Lock()
	l.restocked[key] += n
	l.mu.Unlock()
}

func (l *Ledger) recordRejection(reason string) {
	l.mu.Lock()
	l.rejections[reason]++
	l.mu.Unlock()
}

func (l *Ledger) Snapshot() Tally {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Tally{
		Sold:       maps.Clone(l.sold),
		Restocked:  maps.Clone(l.restocked),
		Rejections: maps.Clone(l.rejections),
	}
}

// LedgerWorker feeds a Ledger from the event bus.
type LedgerWorker struct {
	sub     domoutbox.Subscriber
	ledger  *Ledger
	log     observability.Logger
	handled observability.Counter // events_handled_total{event,outcome}
}

func NewLedgerWorker(sub domoutbox.Subscriber, ledger *Ledger, tel observability.Observability) *LedgerWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &LedgerWorker{
		sub:     sub,
		ledger:  ledger,
		log:     tel.Logger().With(observability.F("component", "ledger_worker")),
		handled: tel.Metrics().Counter(observability.MEventsHandled),
	}
}

func (w *LedgerWorker) Start() {
	w.sub.Subscribe(sushi.PurchasedEvent{}.EventName(), w.handle(w.onPurchased))
	w.sub.Subscribe(sushi.RestockedEvent{}.EventName(), w.handle(w.onRestocked))
	w.sub.Subscribe(sushi.StockRejectedEvent{}.EventName(), w.handle(w.onRejected))
}

func (w *LedgerWorker) handle(fn domoutbox.Handler) domoutbox.Handler {
	return func(ctx context.Context, e domoutbox.Event) error {
		err := fn(ctx, e)
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeError
		}
		w.handled.Add(1,
			observability.L("event", e.EventName()),
			observability.L("outcome", outcome),
		)
		return err
	}
}

func (w *LedgerWorker) onPurchased(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(sushi.PurchasedEvent)
	if !ok {
		return fmt.Errorf("ledger: unexpected event %T", e)
	}
	w.ledger.recordSale(evt.Key, evt.Quantity)
	logctx.FromOr(ctx, w.log).Debug("sale_recorded",
		observability.F("key", evt.Key),
		observability.F("quantity", evt.Quantity),
		observability.F("stock", evt.Stock),
	)
	return nil
}

func (w *LedgerWorker) onRestocked(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(sushi.RestockedEvent)
	if !ok {
		return fmt.Errorf("ledger: unexpected event %T", e)
	}
	w.ledger.recordRestock(evt.Key, evt.Applied)
	logctx.FromOr(ctx, w.log).Debug("restock_recorded",
		observability.F("key", evt.Key),
		observability.F("applied", evt.Applied),
		observability.F("clamped", evt.Clamped),
	)
	return nil
}

func (w *LedgerWorker) onRejected(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(sushi.StockRejectedEvent)
	if !ok {
		return fmt.Errorf("ledger: unexpected event %T", e)
	}
	w.ledger.recordRejection(evt.Reason)
	logctx.FromOr(ctx, w.log).Debug("rejection_recorded",
		observability.F("key", evt.Key),
		observability.F("operation", string(evt.Operation)),
		observability.F("reason", evt.Reason),
	)
	return nil
}
