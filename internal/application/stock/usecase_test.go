package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/sushistore/internal/domain/outbox"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domoutbox.Event(nil), p.events...)
}

type fixture struct {
	repo *memory.SushiRepository
	pub  *recordingPublisher
	reg  *prometheus.Registry
	logs *observer.ObservedLogs
	tel  observability.Observability
}

func newFixture(t *testing.T, records ...sushi.Sushi) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	f := &fixture{
		repo: memory.NewSushiRepository(),
		pub:  &recordingPublisher{},
		reg:  reg,
		logs: logs,
		tel:  infraobs.New(nil, zaplogger.Wrap(zap.New(core)), prometrics.New(reg, "", "")),
	}
	require.NoError(t, f.repo.Load(context.Background(), records))
	return f
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
		}
	}
	return 0
}

func TestPurchaseSuccess(t *testing.T) {
	f := newFixture(t, sushi.Sushi{ID: 0, Ingredients: []string{"salmon"}, Stock: 10, MaxStock: 100})
	uc := NewPurchaseUseCase(f.repo, f.pub, f.tel)

	res, err := uc.Execute(context.Background(), Command{Key: "sushi:0", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Outcome.Applied)
	assert.Equal(t, 5, res.Outcome.Stock)
	assert.Equal(t, 5, res.Outcome.Sold)
	assert.Empty(t, res.FailureReason)

	events := f.pub.Events()
	require.Len(t, events, 1)
	evt, ok := events[0].(sushi.PurchasedEvent)
	require.True(t, ok)
	assert.Equal(t, "sushi:0", evt.Key)
	assert.Equal(t, 5, evt.Quantity)

	assert.Equal(t, 1.0, metricValue(t, f.reg, "usecase_requests_total", map[string]string{"use_case": useCasePurchase, "outcome": "success"}))
	assert.Equal(t, 5.0, metricValue(t, f.reg, "stock_units_total", map[string]string{"operation": "purchase"}))
	assert.Equal(t, 1.0, metricValue(t, f.reg, "external_requests_total", map[string]string{"peer": publishPeer, "outcome": "success"}))

	done := f.logs.FilterMessage("use_case_done").All()
	require.Len(t, done, 1)
	assert.Equal(t, "success", done[0].ContextMap()["outcome"])
	assert.Equal(t, useCasePurchase, done[0].ContextMap()["use_case"])
}

func TestPurchaseRejections(t *testing.T) {
	tests := []struct {
		name   string
		stock  int
		qty    int
		target error
		reason string
	}{
		{"out of stock", 0, 1, sushi.ErrOutOfStock, sushi.FailureReasonOutOfStock},
		{"too much demand", 3, 5, sushi.ErrTooMuchDemand, sushi.FailureReasonTooMuchDemand},
		{"invalid quantity", 3, 0, sushi.ErrInvalidQuantity, sushi.FailureReasonInvalidQuantity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, sushi.Sushi{ID: 1, Stock: tc.stock, MaxStock: 10})
			uc := NewPurchaseUseCase(f.repo, f.pub, f.tel)

			res, err := uc.Execute(context.Background(), Command{Key: "sushi:1", Quantity: tc.qty})
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, tc.reason, res.FailureReason)
			assert.Zero(t, res.Outcome.Applied)

			levels, err := f.repo.Levels(context.Background(), []string{"sushi:1"})
			require.NoError(t, err)
			assert.Equal(t, tc.stock, levels[0].Stock)

			events := f.pub.Events()
			require.Len(t, events, 1)
			rej, ok := events[0].(sushi.StockRejectedEvent)
			require.True(t, ok)
			assert.Equal(t, tc.reason, rej.Reason)
			assert.Equal(t, sushi.OperationPurchase, rej.Operation)

			assert.Equal(t, 1.0, metricValue(t, f.reg, "usecase_requests_total", map[string]string{"use_case": useCasePurchase, "outcome": "rejected"}))
		})
	}
}

func TestPurchaseStockErrorDetails(t *testing.T) {
	f := newFixture(t, sushi.Sushi{ID: 2, Stock: 3, MaxStock: 10})
	uc := NewPurchaseUseCase(f.repo, nil, f.tel)

	_, err := uc.Execute(context.Background(), Command{Key: "sushi:2", Quantity: 4})
	var se *sushi.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, sushi.KindTooMuchDemand, se.Kind)
	assert.Equal(t, 4, se.Requested)
	assert.Equal(t, 3, se.Available)
}

func TestRestockClampedReportsAppliedAndPublishes(t *testing.T) {
	f := newFixture(t, sushi.Sushi{ID: 3, Stock: 8, MaxStock: 10})
	uc := NewRestockUseCase(f.repo, f.pub, f.tel)

	res, err := uc.Execute(context.Background(), Command{Key: "sushi:3", Quantity: 5})
	require.ErrorIs(t, err, sushi.ErrNoPlaceAvailable)
	assert.Equal(t, sushi.FailureReasonNoPlaceAvailable, res.FailureReason)
	assert.Equal(t, 2, res.Outcome.Applied)
	assert.Equal(t, 10, res.Outcome.Stock)

	events := f.pub.Events()
	require.Len(t, events, 1)
	evt, ok := events[0].(sushi.RestockedEvent)
	require.True(t, ok)
	assert.True(t, evt.Clamped)
	assert.Equal(t, 2, evt.Applied)
	assert.Equal(t, 2.0, metricValue(t, f.reg, "stock_units_total", map[string]string{"operation": "restock"}))
}

func TestRestockTooMuchStock(t *testing.T) {
	f := newFixture(t, sushi.Sushi{ID: 4, Stock: 10, MaxStock: 10})
	uc := NewRestockUseCase(f.repo, f.pub, f.tel)

	res, err := uc.Execute(context.Background(), Command{Key: "sushi:4", Quantity: 1})
	require.ErrorIs(t, err, sushi.ErrTooMuchStock)
	assert.Zero(t, res.Outcome.Applied)
	require.Len(t, f.pub.Events(), 1)
	assert.IsType(t, sushi.StockRejectedEvent{}, f.pub.Events()[0])
}

func TestContentionExhaustedIsStoreError(t *testing.T) {
	var repo *memory.SushiRepository
	repo = memory.NewSushiRepository(
		memory.WithMaxAttempts(3),
		memory.WithBeforeCommit(func(key string) { repo.Touch(key) }),
	)
	require.NoError(t, repo.Load(context.Background(), []sushi.Sushi{{ID: 5, Stock: 10, MaxStock: 10}}))

	reg := prometheus.NewRegistry()
	tel := infraobs.New(nil, nil, prometrics.New(reg, "", ""))
	uc := NewPurchaseUseCase(repo, nil, tel)

	res, err := uc.Execute(context.Background(), Command{Key: "sushi:5", Quantity: 1})
	require.ErrorIs(t, err, sushi.ErrContentionExhausted)
	assert.Equal(t, sushi.FailureReasonContention, res.FailureReason)
	assert.Equal(t, 1.0, metricValue(t, reg, "usecase_requests_total", map[string]string{"use_case": useCasePurchase, "outcome": "error"}))
}

func TestPublishFailureDoesNotFailPurchase(t *testing.T) {
	f := newFixture(t, sushi.Sushi{ID: 6, Stock: 10, MaxStock: 10})
	f.pub.err = errors.New("bus down")
	uc := NewPurchaseUseCase(f.repo, f.pub, f.tel)

	res, err := uc.Execute(context.Background(), Command{Key: "sushi:6", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Outcome.Stock)
	assert.Equal(t, 1.0, metricValue(t, f.reg, "external_requests_total", map[string]string{"peer": publishPeer, "outcome": "error"}))
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	const stock, buyers = 50, 80
	f := newFixture(t, sushi.Sushi{ID: 7, Stock: stock, MaxStock: stock})
	uc := NewPurchaseUseCase(f.repo, f.pub, f.tel)

	var mu sync.Mutex
	succeeded := 0
	var g errgroup.Group
	for range buyers {
		g.Go(func() error {
			_, err := uc.Execute(context.Background(), Command{Key: "sushi:7", Quantity: 1})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return nil
			}
			if errors.Is(err, sushi.ErrOutOfStock) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, stock, succeeded)
	levels, err := f.repo.Levels(context.Background(), []string{"sushi:7"})
	require.NoError(t, err)
	assert.Equal(t, 0, levels[0].Stock)
	assert.Equal(t, stock, levels[0].Sold)
}

func TestUseCaseHonorsCanceledContext(t *testing.T) {
	f := newFixture(t, sushi.Sushi{ID: 8, Stock: 10, MaxStock: 10})
	uc := NewRestockUseCase(f.repo, f.pub, f.tel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	res, err := uc.Execute(ctx, Command{Key: "sushi:8", Quantity: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, sushi.FailureReasonStoreError, res.FailureReason)
}
