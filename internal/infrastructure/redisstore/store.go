package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/Zhima-Mochi/sushistore/internal/observability/logctx"
	"github.com/redis/go-redis/v9"
)

const (
	componentStore     = "redis_store"
	peerRedis          = "redis"
	defaultMaxAttempts = 32
	scanCount          = 1000
)

var (
	_ sushi.StockRepository   = (*Store)(nil)
	_ sushi.CatalogRepository = (*Store)(nil)
)

// Store keeps sushi records as Redis hashes.
type Store struct {
	client      redis.UniversalClient
	maxAttempts int
	batchSize   int
	maxStock    int

	log          observability.Logger
	retries      map[sushi.Operation]observability.BoundCounter
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

type Option func(*Store)

// WithMaxAttempts bounds how many times a conflicting transaction is retried.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBatchSize splits Load into pipelines of n records. Zero sends one pipeline.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.batchSize = n
		}
	}
}

// WithMaxStock sets the capacity assumed for records stored without a max_stock field.
func WithMaxStock(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxStock = n
		}
	}
}

func WithObservability(tel observability.Observability) Option {
	return func(s *Store) {
		if tel == nil {
			return
		}
		s.log = tel.Logger().With(observability.F("component", componentStore))
		m := tel.Metrics()
		s.retries = bindRetries(m.Counter(observability.MStockTxRetries))
		s.extCounter = m.Counter(observability.MExternalRequests)
		s.extHistogram = m.Histogram(observability.MExternalRequestDuration)
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:       client,
		maxAttempts:  defaultMaxAttempts,
		maxStock:     10_000,
		log:          observability.NopLogger(),
		retries:      bindRetries(observability.NopCounter()),
		extCounter:   observability.NopCounter(),
		extHistogram: observability.NopHistogram(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load writes every record as a hash. Records are sent in pipelines, not
// transactions: a failure part way through can leave earlier writes in place.
func (s *Store) Load(ctx context.Context, records []sushi.Sushi) (err error) {
	start := time.Now()
	defer func() { s.observe("load", start, err) }()

	if err = sushi.ValidateAll(records); err != nil {
		return err
	}

	batch := s.batchSize
	if batch == 0 || batch > len(records) {
		batch = len(records)
	}
	for chunk := range slices.Chunk(records, max(batch, 1)) {
		_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, rec := range chunk {
				pipe.HSet(ctx, rec.Key(), hashFields(rec))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis: load pipeline: %w", err)
		}
	}

	logctx.FromOr(ctx, s.log).Info("catalog_loaded",
		observability.F("count", len(records)),
		observability.F("elapsed_seconds", time.Since(start).Seconds()),
	)
	return nil
}

// Purchase takes quantity units out of stock and adds them to sold, both in one
// MULTI/EXEC guarded by WATCH on the record.
func (s *Store) Purchase(ctx context.Context, key string, quantity int) (sushi.Outcome, error) {
	out := sushi.Outcome{Key: key, Requested: quantity}
	if quantity <= 0 {
		return out, sushi.ErrInvalidQuantity
	}

	err := s.optimistic(ctx, sushi.OperationPurchase, key, &out, func(tx *redis.Tx) error {
		st, err := s.readState(ctx, tx, key)
		if err != nil {
			return err
		}
		out.Stock, out.Sold = st.stock, st.sold

		n, err := sushi.PlanPurchase(key, st.stock, quantity)
		if err != nil {
			return err
		}

		var stockCmd, soldCmd *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			stockCmd = pipe.HIncrBy(ctx, key, sushi.FieldStock, -int64(n))
			soldCmd = pipe.HIncrBy(ctx, key, sushi.FieldSold, int64(n))
			return nil
		})
		if err != nil {
			return err
		}
		out.Applied = n
		out.Stock = int(stockCmd.Val())
		out.Sold = int(soldCmd.Val())
		return nil
	})
	return out, err
}

// Restock adds quantity units to stock. When that would exceed the record's
// capacity the stock is filled to capacity and a NoPlaceAvailable error is
// returned together with the applied amount.
func (s *Store) Restock(ctx context.Context, key string, quantity int) (sushi.Outcome, error) {
	out := sushi.Outcome{Key: key, Requested: quantity}
	if quantity <= 0 {
		return out, sushi.ErrInvalidQuantity
	}

	err := s.optimistic(ctx, sushi.OperationRestock, key, &out, func(tx *redis.Tx) error {
		st, err := s.readState(ctx, tx, key)
		if err != nil {
			return err
		}
		out.Stock, out.Sold = st.stock, st.sold

		n, planErr := sushi.PlanRestock(key, st.stock, st.maxStock, quantity)
		if n == 0 {
			return planErr
		}

		var stockCmd *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			stockCmd = pipe.HIncrBy(ctx, key, sushi.FieldStock, int64(n))
			return nil
		})
		if err != nil {
			return err
		}
		out.Applied = n
		out.Stock = int(stockCmd.Val())
		return planErr
	})
	return out, err
}

// optimistic runs fn under WATCH key until it commits, fails for a reason other
// than a concurrent write, or exhausts the attempt budget.
func (s *Store) optimistic(ctx context.Context, op sushi.Operation, key string, out *sushi.Outcome, fn func(*redis.Tx) error) (err error) {
	start := time.Now()
	defer func() { s.observe(string(op), start, err) }()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		out.Attempts = attempt
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if attempt < s.maxAttempts {
			s.retries[op].Add(1)
		}
		logctx.FromOr(ctx, s.log).Debug("stock_tx_conflict",
			observability.F("operation", string(op)),
			observability.F("key", key),
			observability.F("attempt", attempt),
		)
	}
	*out = sushi.Outcome{Key: out.Key, Requested: out.Requested, Attempts: s.maxAttempts}
	return &sushi.StockError{
		Kind:      sushi.KindContentionExhausted,
		Key:       key,
		Requested: out.Requested,
		Attempts:  s.maxAttempts,
	}
}

// Levels reads stock and sold for every key in one pipeline.
func (s *Store) Levels(ctx context.Context, keys []string) (_ []sushi.Level, err error) {
	start := time.Now()
	defer func() { s.observe("levels", start, err) }()

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HMGet(ctx, key, sushi.FieldStock, sushi.FieldSold)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: levels pipeline: %w", err)
	}

	levels := make([]sushi.Level, len(keys))
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 2 || vals[0] == nil {
			return nil, fmt.Errorf("%s: %w", keys[i], sushi.ErrNotFound)
		}
		stock, err := toInt(vals[0])
		if err != nil {
			return nil, fmt.Errorf("%s: stock: %w", keys[i], err)
		}
		sold, err := toInt(vals[1])
		if err != nil {
			return nil, fmt.Errorf("%s: sold: %w", keys[i], err)
		}
		levels[i] = sushi.Level{Key: keys[i], Stock: stock, Sold: sold}
	}
	return levels, nil
}

// Snapshot materialises full records for keys in one pipeline.
func (s *Store) Snapshot(ctx context.Context, keys []string) (_ []sushi.Sushi, err error) {
	start := time.Now()
	defer func() { s.observe("snapshot", start, err) }()

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: snapshot pipeline: %w", err)
	}

	out := make([]sushi.Sushi, len(keys))
	for i, cmd := range cmds {
		rec, err := s.fromHash(keys[i], cmd.Val())
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// Keys lists every stored sushi key ordered by id.
func (s *Store) Keys(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { s.observe("scan", start, err) }()

	type keyed struct {
		id  int
		key string
	}
	var found []keyed
	iter := s.client.Scan(ctx, 0, sushi.KeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, perr := sushi.ParseKey(key)
		if perr != nil {
			continue
		}
		found = append(found, keyed{id: id, key: key})
	}
	if err = iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan: %w", err)
	}
	slices.SortFunc(found, func(a, b keyed) int { return a.id - b.id })

	keys := make([]string, 0, len(found))
	for _, k := range found {
		if len(keys) > 0 && keys[len(keys)-1] == k.key {
			continue
		}
		keys = append(keys, k.key)
	}
	return keys, nil
}

type state struct {
	stock    int
	maxStock int
	sold     int
}

func (s *Store) readState(ctx context.Context, tx *redis.Tx, key string) (state, error) {
	vals, err := tx.HMGet(ctx, key, sushi.FieldStock, sushi.FieldMaxStock, sushi.FieldSold).Result()
	if err != nil {
		return state{}, fmt.Errorf("redis: read %s: %w", key, err)
	}
	if len(vals) != 3 || vals[0] == nil {
		return state{}, fmt.Errorf("%s: %w", key, sushi.ErrNotFound)
	}
	st := state{maxStock: s.maxStock}
	if st.stock, err = toInt(vals[0]); err != nil {
		return state{}, fmt.Errorf("%s: stock: %w", key, err)
	}
	if vals[1] != nil {
		if st.maxStock, err = toInt(vals[1]); err != nil {
			return state{}, fmt.Errorf("%s: max_stock: %w", key, err)
		}
	}
	if st.sold, err = toInt(vals[2]); err != nil {
		return state{}, fmt.Errorf("%s: sold: %w", key, err)
	}
	return st, nil
}

func (s *Store) fromHash(key string, h map[string]string) (sushi.Sushi, error) {
	if len(h) == 0 {
		return sushi.Sushi{}, fmt.Errorf("%s: %w", key, sushi.ErrNotFound)
	}
	id, err := sushi.ParseKey(key)
	if err != nil {
		return sushi.Sushi{}, err
	}
	rec := sushi.Sushi{
		ID:          id,
		Ingredients: sushi.SplitIngredients(h[sushi.FieldIngredients]),
		MaxStock:    s.maxStock,
	}
	if rec.Stock, err = atoiField(h, sushi.FieldStock); err != nil {
		return sushi.Sushi{}, fmt.Errorf("%s: %w", key, err)
	}
	if rec.Sold, err = atoiField(h, sushi.FieldSold); err != nil {
		return sushi.Sushi{}, fmt.Errorf("%s: %w", key, err)
	}
	if _, ok := h[sushi.FieldMaxStock]; ok {
		if rec.MaxStock, err = atoiField(h, sushi.FieldMaxStock); err != nil {
			return sushi.Sushi{}, fmt.Errorf("%s: %w", key, err)
		}
	}
	return rec, nil
}

func bindRetries(c observability.Counter) map[sushi.Operation]observability.BoundCounter {
	return map[sushi.Operation]observability.BoundCounter{
		sushi.OperationPurchase: c.Bind(observability.L("operation", string(sushi.OperationPurchase))),
		sushi.OperationRestock:  c.Bind(observability.L("operation", string(sushi.OperationRestock))),
	}
}

func (s *Store) observe(endpoint string, start time.Time, err error) {
	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeError
		var se *sushi.StockError
		if errors.As(err, &se) || errors.Is(err, sushi.ErrInvalidQuantity) || errors.Is(err, sushi.ErrNotFound) {
			outcome = observability.OutcomeRejected
		}
	}
	s.extCounter.Add(1,
		observability.L("peer", peerRedis),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerRedis),
		observability.L("endpoint", endpoint),
	)
}

func hashFields(rec sushi.Sushi) map[string]any {
	return map[string]any{
		sushi.FieldID:          rec.ID,
		sushi.FieldIngredients: sushi.JoinIngredients(rec.Ingredients),
		sushi.FieldStock:       rec.Stock,
		sushi.FieldMaxStock:    rec.MaxStock,
		sushi.FieldSold:        rec.Sold,
	}
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.Atoi(x)
	case int64:
		return int(x), nil
	default:
		return 0, fmt.Errorf("unexpected value %T", v)
	}
}

func atoiField(h map[string]string, field string) (int, error) {
	raw, ok := h[field]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return n, nil
}
