package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaded(t *testing.T, opts []Option, records ...sushi.Sushi) *SushiRepository {
	t.Helper()
	r := NewSushiRepository(opts...)
	require.NoError(t, r.Load(context.Background(), records))
	return r
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	r := loaded(t, nil,
		sushi.Sushi{ID: 1, Stock: 100, MaxStock: 200},
		sushi.Sushi{ID: 2, Stock: 0, MaxStock: 200},
		sushi.Sushi{ID: 3, Stock: 10, MaxStock: 50},
		sushi.Sushi{ID: 4, Stock: 50, MaxStock: 50},
	)

	out, err := r.Purchase(ctx, "sushi:1", 40)
	require.NoError(t, err)
	assert.Equal(t, 60, out.Stock)
	assert.Equal(t, 40, out.Sold)

	_, err = r.Purchase(ctx, "sushi:2", 1)
	assert.ErrorIs(t, err, sushi.ErrOutOfStock)

	out, err = r.Restock(ctx, "sushi:3", 45)
	assert.ErrorIs(t, err, sushi.ErrNoPlaceAvailable)
	assert.Equal(t, 40, out.Applied)
	assert.Equal(t, 50, out.Stock)

	_, err = r.Restock(ctx, "sushi:4", 1)
	assert.ErrorIs(t, err, sushi.ErrTooMuchStock)

	levels, err := r.Levels(ctx, sushi.Keys(5)[1:])
	require.NoError(t, err)
	assert.Equal(t, []sushi.Level{
		{Key: "sushi:1", Stock: 60, Sold: 40},
		{Key: "sushi:2", Stock: 0, Sold: 0},
		{Key: "sushi:3", Stock: 50, Sold: 0},
		{Key: "sushi:4", Stock: 50, Sold: 0},
	}, levels)
}

func TestTooMuchDemandLeavesRecordUntouched(t *testing.T) {
	r := loaded(t, nil, sushi.Sushi{ID: 1, Stock: 3, MaxStock: 10})

	_, err := r.Purchase(context.Background(), "sushi:1", 4)
	assert.ErrorIs(t, err, sushi.ErrTooMuchDemand)

	snap, err := r.Snapshot(context.Background(), []string{"sushi:1"})
	require.NoError(t, err)
	assert.Equal(t, 3, snap[0].Stock)
	assert.Zero(t, snap[0].Sold)
}

func TestNotFoundAndInvalidQuantity(t *testing.T) {
	r := NewSushiRepository()
	_, err := r.Purchase(context.Background(), "sushi:1", 1)
	assert.ErrorIs(t, err, sushi.ErrNotFound)
	_, err = r.Restock(context.Background(), "sushi:1", 0)
	assert.ErrorIs(t, err, sushi.ErrInvalidQuantity)
	_, err = r.Levels(context.Background(), []string{"sushi:1"})
	assert.ErrorIs(t, err, sushi.ErrNotFound)
}

func TestRetryAfterConflict(t *testing.T) {
	var r *SushiRepository
	var conflicts atomic.Int32
	r = loaded(t, []Option{WithBeforeCommit(func(key string) {
		if conflicts.Add(1) <= 2 {
			r.Touch(key)
		}
	})}, sushi.Sushi{ID: 1, Stock: 10, MaxStock: 20})

	out, err := r.Purchase(context.Background(), "sushi:1", 4)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 6, out.Stock)
	assert.Equal(t, 4, out.Sold)
}

func TestContentionExhausted(t *testing.T) {
	var r *SushiRepository
	r = loaded(t, []Option{
		WithMaxAttempts(4),
		WithBeforeCommit(func(key string) { r.Touch(key) }),
	}, sushi.Sushi{ID: 1, Stock: 10, MaxStock: 20})

	out, err := r.Restock(context.Background(), "sushi:1", 5)
	var se *sushi.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sushi.KindContentionExhausted, se.Kind)
	assert.Equal(t, 4, se.Attempts)
	assert.Zero(t, out.Applied)

	levels, err := r.Levels(context.Background(), []string{"sushi:1"})
	require.NoError(t, err)
	assert.Equal(t, 10, levels[0].Stock)
}

func TestConcurrentPurchases(t *testing.T) {
	r := loaded(t, []Option{WithMaxAttempts(1_000_000)}, sushi.Sushi{ID: 1, Stock: 97, MaxStock: 100})

	var granted atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.Purchase(context.Background(), "sushi:1", 2)
			if err == nil {
				granted.Add(int64(out.Applied))
			}
		}()
	}
	wg.Wait()

	levels, err := r.Levels(context.Background(), []string{"sushi:1"})
	require.NoError(t, err)
	assert.Equal(t, int64(96), granted.Load())
	assert.Equal(t, 97-96, levels[0].Stock)
	assert.Equal(t, 96, levels[0].Sold)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := loaded(t, nil, sushi.Sushi{ID: 1, Ingredients: []string{"a"}, Stock: 1, MaxStock: 2})

	snap, err := r.Snapshot(context.Background(), []string{"sushi:1"})
	require.NoError(t, err)
	snap[0].Ingredients[0] = "z"

	again, err := r.Snapshot(context.Background(), []string{"sushi:1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again[0].Ingredients)
}

func TestKeysOrderedByID(t *testing.T) {
	r := loaded(t, nil,
		sushi.Sushi{ID: 10, Stock: 1, MaxStock: 1},
		sushi.Sushi{ID: 2, Stock: 1, MaxStock: 1},
		sushi.Sushi{ID: 0, Stock: 1, MaxStock: 1},
	)
	keys, err := r.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sushi:0", "sushi:2", "sushi:10"}, keys)
}

func TestLoadRejectsInvalidRecords(t *testing.T) {
	r := NewSushiRepository()
	err := r.Load(context.Background(), []sushi.Sushi{
		{ID: 0, Stock: 5, MaxStock: 50},
		{ID: 1, Stock: 80, MaxStock: 50},
	})
	require.ErrorIs(t, err, sushi.ErrInvalidStock)
	assert.Contains(t, err.Error(), "sushi:1")

	_, err = r.Levels(context.Background(), []string{"sushi:0"})
	assert.ErrorIs(t, err, sushi.ErrNotFound)

	err = r.Load(context.Background(), []sushi.Sushi{{ID: 2, Stock: -5, MaxStock: 50}})
	assert.ErrorIs(t, err, sushi.ErrInvalidStock)
}
