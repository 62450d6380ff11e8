package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
)

var (
	_ sushi.StockRepository   = (*SushiRepository)(nil)
	_ sushi.CatalogRepository = (*SushiRepository)(nil)
)

type record struct {
	sushi.Sushi
	version uint64
}

// SushiRepository is an in-process store. Mutations read a versioned copy,
// decide, then commit only if the version is unchanged.
type SushiRepository struct {
	mu          sync.RWMutex
	items       map[string]*record
	maxAttempts int

	// beforeCommit runs between the read and the compare-and-swap.
	beforeCommit func(key string)
}

type Option func(*SushiRepository)

func WithMaxAttempts(n int) Option {
	return func(r *SushiRepository) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBeforeCommit installs a hook that runs after every read and before the
// commit attempt.
func WithBeforeCommit(fn func(key string)) Option {
	return func(r *SushiRepository) { r.beforeCommit = fn }
}

func NewSushiRepository(opts ...Option) *SushiRepository {
	r := &SushiRepository{
		items:       make(map[string]*record),
		maxAttempts: 32,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SushiRepository) Load(ctx context.Context, records []sushi.Sushi) error {
	_ = ctx
	if err := sushi.ValidateAll(records); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		key := rec.Key()
		var version uint64
		if prev, ok := r.items[key]; ok {
			version = prev.version + 1
		}
		r.items[key] = &record{Sushi: rec.Clone(), version: version}
	}
	return nil
}

func (r *SushiRepository) Levels(ctx context.Context, keys []string) ([]sushi.Level, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sushi.Level, len(keys))
	for i, key := range keys {
		rec, ok := r.items[key]
		if !ok {
			return nil, fmt.Errorf("%s: %w", key, sushi.ErrNotFound)
		}
		out[i] = sushi.Level{Key: key, Stock: rec.Stock, Sold: rec.Sold}
	}
	return out, nil
}

func (r *SushiRepository) Snapshot(ctx context.Context, keys []string) ([]sushi.Sushi, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sushi.Sushi, len(keys))
	for i, key := range keys {
		rec, ok := r.items[key]
		if !ok {
			return nil, fmt.Errorf("%s: %w", key, sushi.ErrNotFound)
		}
		out[i] = rec.Clone()
	}
	return out, nil
}

// Keys lists every stored key ordered by id.
func (r *SushiRepository) Keys(ctx context.Context) ([]string, error) {
	_ = ctx

	r.mu.RLock()
	ids := make([]int, 0, len(r.items))
	for _, rec := range r.items {
		ids = append(ids, rec.ID)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sushi.Key(id)
	}
	return keys, nil
}

// Touch bumps the version of key without changing its contents, as a
// concurrent writer would.
func (r *SushiRepository) Touch(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.items[key]; ok {
		rec.version++
	}
}

func (r *SushiRepository) Purchase(ctx context.Context, key string, quantity int) (sushi.Outcome, error) {
	return r.mutate(ctx, key, quantity, func(cur sushi.Sushi) (int, int, error) {
		n, err := sushi.PlanPurchase(key, cur.Stock, quantity)
		return -n, n, err
	})
}

func (r *SushiRepository) Restock(ctx context.Context, key string, quantity int) (sushi.Outcome, error) {
	return r.mutate(ctx, key, quantity, func(cur sushi.Sushi) (int, int, error) {
		n, err := sushi.PlanRestock(key, cur.Stock, cur.MaxStock, quantity)
		return n, 0, err
	})
}

// plan returns the stock and sold deltas to apply. A non-nil error with
// non-zero deltas is applied and then reported.
type plan func(cur sushi.Sushi) (stockDelta, soldDelta int, err error)

func (r *SushiRepository) mutate(ctx context.Context, key string, quantity int, decide plan) (sushi.Outcome, error) {
	out := sushi.Outcome{Key: key, Requested: quantity}
	if quantity <= 0 {
		return out, sushi.ErrInvalidQuantity
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts = attempt

		cur, version, err := r.read(key)
		if err != nil {
			return out, err
		}
		out.Stock, out.Sold = cur.Stock, cur.Sold

		stockDelta, soldDelta, planErr := decide(cur)
		if stockDelta == 0 && soldDelta == 0 {
			return out, planErr
		}

		if r.beforeCommit != nil {
			r.beforeCommit(key)
		}

		if r.compareAndApply(key, version, stockDelta, soldDelta, &out) {
			out.Applied = max(stockDelta, soldDelta)
			return out, planErr
		}
	}

	return sushi.Outcome{Key: key, Requested: quantity, Attempts: r.maxAttempts}, &sushi.StockError{
		Kind:      sushi.KindContentionExhausted,
		Key:       key,
		Requested: quantity,
		Attempts:  r.maxAttempts,
	}
}

func (r *SushiRepository) read(key string) (sushi.Sushi, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[key]
	if !ok {
		return sushi.Sushi{}, 0, fmt.Errorf("%s: %w", key, sushi.ErrNotFound)
	}
	return rec.Clone(), rec.version, nil
}

func (r *SushiRepository) compareAndApply(key string, version uint64, stockDelta, soldDelta int, out *sushi.Outcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.items[key]
	if !ok || rec.version != version {
		return false
	}
	rec.Stock += stockDelta
	rec.Sold += soldDelta
	rec.version++

	out.Stock, out.Sold = rec.Stock, rec.Sold
	return true
}
