package catalog

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/sushistore/internal/application"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService = "catalog-service"
	useCaseSeed    = "catalog.seed"
	useCaseSearch  = "catalog.search"
)

type SeedCommand struct {
	Count int
}

type SeedResult struct {
	Keys []string
}

// SeedUseCase generates a catalog and bulk-loads it into the store.
type SeedUseCase struct {
	gen  *Generator
	repo sushi.CatalogRepository
	in   application.Instruments
}

var _ application.UseCase[SeedCommand, *SeedResult] = (*SeedUseCase)(nil)

func NewSeedUseCase(gen *Generator, repo sushi.CatalogRepository, tel observability.Observability) *SeedUseCase {
	return &SeedUseCase{
		gen:  gen,
		repo: repo,
		in:   application.NewInstruments(catalogService, tel),
	}
}

func (uc *SeedUseCase) Execute(ctx context.Context, cmd SeedCommand) (_ *SeedResult, err error) {
	ctx, run := uc.in.Start(ctx, useCaseSeed, "Seed", attribute.Int("catalog.count", cmd.Count))
	run.Field("count", cmd.Count)
	defer func() { run.End(err) }()

	records, err := uc.gen.Generate(ctx, cmd.Count)
	if err != nil {
		run.Fail(observability.OutcomeError, "GENERATE_FAILED")
		return nil, fmt.Errorf("catalog: generate: %w", err)
	}
	if err = uc.repo.Load(ctx, records); err != nil {
		run.Fail(observability.OutcomeError, "LOAD_FAILED")
		return nil, fmt.Errorf("catalog: load: %w", err)
	}

	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Key()
	}
	return &SeedResult{Keys: keys}, nil
}

type SearchCommand struct {
	Keys        []string
	Ingredients []string
}

type SearchResult struct {
	Matches []sushi.Sushi
}

// SearchUseCase materialises a fresh snapshot and filters it by ingredients.
type SearchUseCase struct {
	repo sushi.CatalogRepository
	in   application.Instruments
}

var _ application.UseCase[SearchCommand, *SearchResult] = (*SearchUseCase)(nil)

func NewSearchUseCase(repo sushi.CatalogRepository, tel observability.Observability) *SearchUseCase {
	return &SearchUseCase{
		repo: repo,
		in:   application.NewInstruments(catalogService, tel),
	}
}

func (uc *SearchUseCase) Execute(ctx context.Context, cmd SearchCommand) (_ *SearchResult, err error) {
	ctx, run := uc.in.Start(ctx, useCaseSearch, "Search",
		attribute.StringSlice("catalog.ingredients", cmd.Ingredients),
		attribute.Int("catalog.keys", len(cmd.Keys)),
	)
	run.Field("ingredients", cmd.Ingredients)
	defer func() { run.End(err) }()

	snapshot, err := uc.repo.Snapshot(ctx, cmd.Keys)
	if err != nil {
		run.Fail(observability.OutcomeError, "SNAPSHOT_FAILED")
		return nil, fmt.Errorf("catalog: snapshot: %w", err)
	}
	matches := Search(snapshot, cmd.Ingredients)
	run.Field("matches", len(matches))
	return &SearchResult{Matches: matches}, nil
}
