package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/application/catalog"
	"github.com/Zhima-Mochi/sushistore/internal/application/report"
	"github.com/Zhima-Mochi/sushistore/internal/application/stock"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (r *root) newSeedCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a random catalog and bulk-load it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return r.withSession(ctx, false, func(s *session) error {
				gen, err := newGenerator(r.opts.Config, r.opts.Telemetry)
				if err != nil {
					return err
				}
				start := time.Now()
				res, err := catalog.NewSeedUseCase(gen, s.store, r.opts.Telemetry).
					Execute(ctx, catalog.SeedCommand{Count: count})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d sushi in %s\n", len(res.Keys), time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", r.opts.Config.Catalog.Count, "Number of sushi to generate")
	return cmd
}

func (r *root) newBuyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "buy KEY QTY",
		Short: "Purchase units of one sushi",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, qty, err := keyAndQuantity(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return r.withSession(ctx, true, func(s *session) error {
				res, err := stock.NewPurchaseUseCase(s.store, s.bus, r.opts.Telemetry).
					Execute(ctx, stock.Command{Key: key, Quantity: qty})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sold %d of %s, %d left\n", res.Outcome.Applied, key, res.Outcome.Stock)
				return nil
			})
		},
	}
}

func (r *root) newRestockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restock KEY QTY",
		Short: "Add units to one sushi, up to its capacity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, qty, err := keyAndQuantity(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return r.withSession(ctx, true, func(s *session) error {
				res, err := stock.NewRestockUseCase(s.store, s.bus, r.opts.Telemetry).
					Execute(ctx, stock.Command{Key: key, Quantity: qty})
				if res != nil && res.Outcome.Applied > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "restocked %s by %d of %d, stock %d\n",
						key, res.Outcome.Applied, qty, res.Outcome.Stock)
				}
				return err
			})
		},
	}
}

func (r *root) newReportCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print stock and units sold per sushi",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return r.withSession(ctx, true, func(s *session) error {
				keys, err := s.keys(ctx, count)
				if err != nil {
					return err
				}
				table, err := report.NewReporter(s.store, r.opts.Telemetry).Report(ctx, keys)
				if err != nil {
					return err
				}
				return table.Render(cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Report sushi:0 .. sushi:<count-1>; 0 reports every stored sushi")
	return cmd
}

func (r *root) newSearchCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "search INGREDIENT...",
		Short: "Recommend sushi containing every listed ingredient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return r.withSession(ctx, true, func(s *session) error {
				keys, err := s.keys(ctx, count)
				if err != nil {
					return err
				}
				res, err := catalog.NewSearchUseCase(s.store, r.opts.Telemetry).
					Execute(ctx, catalog.SearchCommand{Keys: keys, Ingredients: args})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), catalog.Recommendation(res.Matches))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Search sushi:0 .. sushi:<count-1>; 0 searches every stored sushi")
	return cmd
}

func (r *root) newContendCommand() *cobra.Command {
	var buyers, qty int
	cmd := &cobra.Command{
		Use:   "contend KEY",
		Short: "Run concurrent purchases against one sushi and summarise the outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if buyers <= 0 {
				return fmt.Errorf("--buyers must be positive, got %d", buyers)
			}
			ctx := cmd.Context()
			return r.withSession(ctx, true, func(s *session) error {
				uc := stock.NewPurchaseUseCase(s.store, s.bus, r.opts.Telemetry)

				var mu sync.Mutex
				succeeded := 0
				rejected := make(map[string]int)

				g, gctx := errgroup.WithContext(ctx)
				for range buyers {
					g.Go(func() error {
						_, err := uc.Execute(gctx, stock.Command{Key: key, Quantity: qty})
						reason := sushi.FailureReason(err)

						mu.Lock()
						defer mu.Unlock()
						switch {
						case err == nil:
							succeeded++
						case reason == sushi.FailureReasonStoreError, errors.Is(err, sushi.ErrNotFound):
							return err
						default:
							rejected[reason]++
						}
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				s.drain(ctx)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "buyers %d, succeeded %d\n", buyers, succeeded)
				for _, reason := range slices.Sorted(maps.Keys(rejected)) {
					fmt.Fprintf(out, "rejected %s: %d\n", reason, rejected[reason])
				}
				fmt.Fprintf(out, "units sold %d\n", s.ledger.Snapshot().UnitsSold())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&buyers, "buyers", 10, "Number of concurrent buyers")
	cmd.Flags().IntVar(&qty, "qty", 1, "Units each buyer requests")
	return cmd
}

func newVocabCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab [CATEGORY]",
		Short: "List the ingredient vocabulary by category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := sushi.IngredientCategories()
			names := slices.Sorted(maps.Keys(categories))
			if len(args) == 1 {
				category := args[0]
				if _, ok := categories[category]; !ok {
					return fmt.Errorf("unknown category %q, want one of %s", category, strings.Join(names, ", "))
				}
				names = []string{category}
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s: %s\n", name, strings.Join(categories[name], " "))
			}
			return nil
		},
	}
}

func keyAndQuantity(args []string) (string, int, error) {
	key, err := parseKey(args[0])
	if err != nil {
		return "", 0, err
	}
	qty, err := parseQuantity(args[1])
	if err != nil {
		return "", 0, err
	}
	return key, qty, nil
}
