package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/application/catalog"
	"github.com/Zhima-Mochi/sushistore/internal/application/stock"
	"github.com/Zhima-Mochi/sushistore/internal/config"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/sushistore/internal/presentation/worker"
	"github.com/redis/go-redis/v9"
)

const busDrainTimeout = 5 * time.Second

// ConnectFunc opens the Redis client used by every command.
type ConnectFunc func(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error)

// DefaultConnect dials the configured server.
func DefaultConnect(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	return redisstore.Connect(ctx, cfg)
}

type store interface {
	sushi.StockRepository
	sushi.CatalogRepository
	Keys(ctx context.Context) ([]string, error)
}

// session holds the components one command invocation runs against.
type session struct {
	store  store
	bus    *outbox.Bus
	ledger *stock.Ledger
	closer func() error
}

// openSession connects to Redis, or builds an in-process store when inMemory
// is set; preload seeds that store with the configured catalog.
func openSession(ctx context.Context, opts Options, inMemory, preload bool) (*session, error) {
	tel := opts.Telemetry
	s := &session{closer: func() error { return nil }}

	if inMemory {
		repo := memory.NewSushiRepository(memory.WithMaxAttempts(opts.Config.Stock.MaxAttempts))
		if preload {
			if err := seedMemory(ctx, repo, opts.Config, tel); err != nil {
				return nil, err
			}
		}
		s.store = repo
	} else {
		client, err := opts.Connect(ctx, opts.Config.Redis)
		if err != nil {
			return nil, err
		}
		s.store = redisstore.New(client,
			redisstore.WithMaxAttempts(opts.Config.Stock.MaxAttempts),
			redisstore.WithBatchSize(opts.Config.Catalog.LoadBatchSize),
			redisstore.WithMaxStock(opts.Config.Catalog.MaxStock),
			redisstore.WithObservability(tel),
		)
		s.closer = client.Close
	}

	s.bus = outbox.NewBus(tel.Logger(), outbox.WithHandlerContext(workerpresentation.EventContext("ledger")))
	s.ledger = stock.NewLedger()
	stock.NewLedgerWorker(s.bus, s.ledger, tel).Start()
	s.bus.Start(ctx)
	return s, nil
}

// seedMemory fills an in-process store with the configured catalog, since
// nothing outlives a single invocation.
func seedMemory(ctx context.Context, repo *memory.SushiRepository, cfg *config.Config, tel observability.Observability) error {
	gen, err := newGenerator(cfg, tel)
	if err != nil {
		return err
	}
	records, err := gen.Generate(ctx, cfg.Catalog.Count)
	if err != nil {
		return err
	}
	return repo.Load(ctx, records)
}

func newGenerator(cfg *config.Config, tel observability.Observability) (*catalog.Generator, error) {
	return catalog.NewGenerator(sushi.Vocabulary(), catalog.Bounds{
		MinIngredients:  cfg.Catalog.MinIngredients,
		MaxIngredients:  cfg.Catalog.MaxIngredients,
		MinInitialStock: cfg.Catalog.MinInitialStock,
		MaxInitialStock: cfg.Catalog.MaxInitialStock,
		MaxStock:        cfg.Catalog.MaxStock,
	}, cfg.Catalog.Seed, tel.Logger())
}

// drain delivers every queued event so the ledger is complete.
func (s *session) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), busDrainTimeout)
	defer cancel()
	s.bus.Stop(drainCtx)
}

func (s *session) close(ctx context.Context) error {
	s.drain(ctx)
	return s.closer()
}

// keys returns the first n keys, or every stored key when n is zero.
func (s *session) keys(ctx context.Context, n int) ([]string, error) {
	if n > 0 {
		return sushi.Keys(n), nil
	}
	return s.store.Keys(ctx)
}

// parseKey accepts "sushi:7" or a bare id.
func parseKey(arg string) (string, error) {
	if _, err := sushi.ParseKey(arg); err == nil {
		return arg, nil
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 {
		return "", fmt.Errorf("%q: %w", arg, sushi.ErrInvalidKey)
	}
	return sushi.Key(id), nil
}

func parseQuantity(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", arg, sushi.ErrInvalidQuantity)
	}
	return n, nil
}
