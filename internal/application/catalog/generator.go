package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/Zhima-Mochi/sushistore/internal/observability/logctx"
)

var (
	ErrInvalidCount      = errors.New("catalog: count must not be negative")
	ErrEmptyVocabulary   = errors.New("catalog: vocabulary is empty")
	ErrInvalidIngredient = errors.New("catalog: ingredient bounds outside vocabulary")
	ErrInvalidStock      = errors.New("catalog: initial stock bounds outside [0, max_stock]")
)

// Bounds constrain every generated record.
type Bounds struct {
	MinIngredients  int
	MaxIngredients  int
	MinInitialStock int
	MaxInitialStock int
	MaxStock        int
}

// Generator produces synthetic sushi records from an ingredient vocabulary.
// Output depends only on the seed, the vocabulary and the bounds.
type Generator struct {
	vocab  []string
	bounds Bounds
	rng    *rand.Rand
	log    observability.Logger
}

func NewGenerator(vocab []string, bounds Bounds, seed uint64, logger observability.Logger) (*Generator, error) {
	if len(vocab) == 0 {
		return nil, ErrEmptyVocabulary
	}
	if bounds.MinIngredients < 1 || bounds.MinIngredients > bounds.MaxIngredients || bounds.MinIngredients > len(vocab) {
		return nil, ErrInvalidIngredient
	}
	if bounds.MaxStock <= 0 || bounds.MinInitialStock < 0 ||
		bounds.MinInitialStock > bounds.MaxInitialStock || bounds.MaxInitialStock > bounds.MaxStock {
		return nil, ErrInvalidStock
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Generator{
		vocab:  slices.Clone(vocab),
		bounds: bounds,
		rng:    rand.New(rand.NewPCG(seed, seed)),
		log:    logger.With(observability.F("component", "catalog_generator")),
	}, nil
}

// Generate returns count records with ids 0..count-1.
func (g *Generator) Generate(ctx context.Context, count int) ([]sushi.Sushi, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	start := time.Now()

	out := make([]sushi.Sushi, count)
	for i := range out {
		rec, err := sushi.New(i, g.ingredients(), g.initialStock(), g.bounds.MaxStock)
		if err != nil {
			return nil, err
		}
		out[i] = *rec
	}

	logctx.FromOr(ctx, g.log).Info("catalog_generated",
		observability.F("count", count),
		observability.F("elapsed_seconds", time.Since(start).Seconds()),
	)
	return out, nil
}

// ingredients samples a random subset, listed in vocabulary order.
func (g *Generator) ingredients() []string {
	hi := min(g.bounds.MaxIngredients, len(g.vocab))
	size := g.bounds.MinIngredients + g.rng.IntN(hi-g.bounds.MinIngredients+1)

	picked := g.rng.Perm(len(g.vocab))[:size]
	slices.Sort(picked)

	out := make([]string, size)
	for i, idx := range picked {
		out[i] = g.vocab[idx]
	}
	return out
}

func (g *Generator) initialStock() int {
	lo, hi := g.bounds.MinInitialStock, g.bounds.MaxInitialStock
	if lo == hi {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}
