package stock

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/outbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerWorkerTalliesEvents(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	tel := infraobs.New(nil, nil, prometrics.New(reg, "", ""))

	repo := memory.NewSushiRepository()
	require.NoError(t, repo.Load(ctx, []sushi.Sushi{
		{ID: 0, Stock: 10, MaxStock: 10},
		{ID: 1, Stock: 5, MaxStock: 6},
	}))

	bus := outbox.NewBus(tel.Logger())
	ledger := NewLedger()
	NewLedgerWorker(bus, ledger, tel).Start()
	bus.Start(ctx)

	purchase := NewPurchaseUseCase(repo, bus, tel)
	restock := NewRestockUseCase(repo, bus, tel)

	_, err := purchase.Execute(ctx, Command{Key: "sushi:0", Quantity: 4})
	require.NoError(t, err)
	_, err = purchase.Execute(ctx, Command{Key: "sushi:0", Quantity: 3})
	require.NoError(t, err)
	_, err = purchase.Execute(ctx, Command{Key: "sushi:1", Quantity: 9})
	require.ErrorIs(t, err, sushi.ErrTooMuchDemand)
	_, err = restock.Execute(ctx, Command{Key: "sushi:1", Quantity: 4})
	require.ErrorIs(t, err, sushi.ErrNoPlaceAvailable)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	tally := ledger.Snapshot()
	assert.Equal(t, map[string]int{"sushi:0": 7}, tally.Sold)
	assert.Equal(t, 7, tally.UnitsSold())
	assert.Equal(t, map[string]int{"sushi:1": 1}, tally.Restocked)
	assert.Equal(t, map[string]int{sushi.FailureReasonTooMuchDemand: 1}, tally.Rejections)

	assert.Equal(t, 2.0, metricValue(t, reg, "events_handled_total", map[string]string{"event": "sushi.purchased", "outcome": "success"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "events_handled_total", map[string]string{"event": "sushi.restocked", "outcome": "success"}))
}

func TestLedgerSnapshotIsACopy(t *testing.T) {
	l := NewLedger()
	l.recordSale("sushi:0", 2)

	snap := l.Snapshot()
	snap.Sold["sushi:0"] = 100

	assert.Equal(t, 2, l.Snapshot().Sold["sushi:0"])
}

func TestLedgerWorkerRejectsForeignEvent(t *testing.T) {
	w := NewLedgerWorker(outbox.NewBus(nil), NewLedger(), nil)
	err := w.onPurchased(context.Background(), sushi.RestockedEvent{})
	require.Error(t, err)
}
