package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Zhima-Mochi/sushistore/internal/application"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	reportService = "report-service"
	useCaseReport = "report.inventory"
)

// LevelReader is the read side of the catalog store the reporter needs.
type LevelReader interface {
	Levels(ctx context.Context, keys []string) ([]sushi.Level, error)
}

// Row is one line of the inventory table.
type Row struct {
	Key   string
	Stock int
	Sold  int
}

// Table is the inventory report, in the order the keys were requested.
type Table struct {
	Rows       []Row
	TotalStock int
	TotalSold  int
}

// SellThrough returns sold / (sold + stock) for the row, or 0 when both are zero.
func (r Row) SellThrough() float64 {
	return sellThrough(r.Sold, r.Stock)
}

// SellThrough returns sold / (sold + stock) across the table, or 0 when empty.
func (t Table) SellThrough() float64 {
	return sellThrough(t.TotalSold, t.TotalStock)
}

func sellThrough(sold, stock int) float64 {
	if sold+stock == 0 {
		return 0
	}
	return float64(sold) / float64(sold+stock)
}

// Render writes the table as aligned columns followed by a totals line.
// The last column is the sell-through ratio as a percentage.
func (t Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "sushi\tstock\tsold\tsold%\t")
	for _, r := range t.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\t\n", r.Key, r.Stock, r.Sold, 100*r.SellThrough())
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%.1f\t\n", t.TotalStock, t.TotalSold, 100*t.SellThrough())
	return tw.Flush()
}

type Command struct {
	Keys []string
}

type Reporter struct {
	store LevelReader
	in    application.Instruments
}

var _ application.UseCase[Command, Table] = (*Reporter)(nil)

func NewReporter(store LevelReader, tel observability.Observability) *Reporter {
	return &Reporter{
		store: store,
		in:    application.NewInstruments(reportService, tel),
	}
}

// Report reads stock and sold for every key. Reads are not transactional
// across keys; each row is a consistent view of its own record only.
func (r *Reporter) Report(ctx context.Context, keys []string) (Table, error) {
	return r.Execute(ctx, Command{Keys: keys})
}

func (r *Reporter) Execute(ctx context.Context, cmd Command) (_ Table, err error) {
	ctx, run := r.in.Start(ctx, useCaseReport, "Report", attribute.Int("report.keys", len(cmd.Keys)))
	run.Field("keys", len(cmd.Keys))
	defer func() { run.End(err) }()

	levels, err := r.store.Levels(ctx, cmd.Keys)
	if err != nil {
		run.Fail(observability.OutcomeError, "STORE_FAILED")
		return Table{}, fmt.Errorf("report: %w", err)
	}

	t := Table{Rows: make([]Row, len(levels))}
	for i, lv := range levels {
		t.Rows[i] = Row{Key: lv.Key, Stock: lv.Stock, Sold: lv.Sold}
		t.TotalStock += lv.Stock
		t.TotalSold += lv.Sold
	}
	run.Field("total_stock", t.TotalStock)
	run.Field("total_sold", t.TotalSold)
	return t, nil
}
