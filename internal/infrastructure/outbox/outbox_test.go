package outbox

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/sushistore/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ n int }

func (testEvent) EventName() string { return "test.event" }

type ctxKey struct{}

func TestFanoutToAllSubscribers(t *testing.T) {
	bus := NewBus(nil)
	var a, b atomic.Int32
	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		a.Add(int32(e.(testEvent).n))
		return nil
	})
	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		b.Add(1)
		return nil
	})
	bus.Start(context.Background())

	for i := 1; i <= 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent{n: i}))
	}
	bus.Stop(context.Background())

	assert.Equal(t, int32(6), a.Load())
	assert.Equal(t, int32(3), b.Load())
}

func TestPublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	assert.ErrorIs(t, bus.Publish(context.Background(), testEvent{}), ErrStopped)
	assert.NoError(t, bus.Publish(context.Background(), nil))
}

func TestPublishRespectsContextWhenFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), testEvent{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(ctx, testEvent{}), context.DeadlineExceeded)
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	var seen []int
	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		if e.(testEvent).n == 1 {
			panic("boom")
		}
		mu.Lock()
		seen = append(seen, e.(testEvent).n)
		mu.Unlock()
		return nil
	})
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{n: 1}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{n: 2}))
	bus.Stop(context.Background())

	assert.Equal(t, []int{2}, seen)
}

func TestHandlerContextDecorator(t *testing.T) {
	bus := NewBus(nil, WithHandlerContext(func(ctx context.Context, e domoutbox.Event) context.Context {
		return context.WithValue(ctx, ctxKey{}, e.EventName())
	}))
	got := make(chan any, 1)
	bus.Subscribe("test.event", func(ctx context.Context, _ domoutbox.Event) error {
		got <- ctx.Value(ctxKey{})
		return nil
	})
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{}))
	bus.Stop(context.Background())

	assert.Equal(t, "test.event", <-got)
}
