package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/application"
	domoutbox "github.com/Zhima-Mochi/sushistore/internal/domain/outbox"
	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
	"github.com/Zhima-Mochi/sushistore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	stockService    = "stock-service"
	useCasePurchase = "stock.purchase"
	useCaseRestock  = "stock.restock"
	publishPeer     = "outbox"
	publishTimeout  = 300 * time.Millisecond
)

type Command struct {
	Key      string
	Quantity int
}

// Result exposes what the mutation did. Outcome is meaningful even when an
// error is returned: a NoPlaceAvailable restock reports the clamped write.
type Result struct {
	Outcome       sushi.Outcome
	FailureReason string
}

type mutation func(ctx context.Context, key string, quantity int) (sushi.Outcome, error)

// mutationUseCase instruments one stock operation and publishes its events.
type mutationUseCase struct {
	op        sushi.Operation
	useCase   string
	spanName  string
	apply     mutation
	publisher domoutbox.Publisher
	in        application.Instruments

	units        observability.BoundCounter // stock_units_total{operation}
	extCounter   observability.Counter      // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram    // external_request_duration_seconds{peer,endpoint}
}

func newMutationUseCase(op sushi.Operation, useCase, spanName string, apply mutation, publisher domoutbox.Publisher, tel observability.Observability) mutationUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return mutationUseCase{
		op:           op,
		useCase:      useCase,
		spanName:     spanName,
		apply:        apply,
		publisher:    publisher,
		in:           application.NewInstruments(stockService, tel),
		units:        m.Counter(observability.MStockUnits).Bind(observability.L("operation", string(op))),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// PurchaseUseCase sells units of one sushi.
type PurchaseUseCase struct{ mutationUseCase }

var _ application.UseCase[Command, *Result] = (*PurchaseUseCase)(nil)

func NewPurchaseUseCase(repo sushi.StockRepository, publisher domoutbox.Publisher, tel observability.Observability) *PurchaseUseCase {
	return &PurchaseUseCase{newMutationUseCase(sushi.OperationPurchase, useCasePurchase, "Purchase", repo.Purchase, publisher, tel)}
}

func (uc *PurchaseUseCase) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return uc.execute(ctx, cmd)
}

// RestockUseCase refills one sushi up to its capacity.
type RestockUseCase struct{ mutationUseCase }

var _ application.UseCase[Command, *Result] = (*RestockUseCase)(nil)

func NewRestockUseCase(repo sushi.StockRepository, publisher domoutbox.Publisher, tel observability.Observability) *RestockUseCase {
	return &RestockUseCase{newMutationUseCase(sushi.OperationRestock, useCaseRestock, "Restock", repo.Restock, publisher, tel)}
}

func (uc *RestockUseCase) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return uc.execute(ctx, cmd)
}

func (uc *mutationUseCase) execute(ctx context.Context, cmd Command) (_ *Result, err error) {
	ctx, run := uc.in.Start(ctx, uc.useCase, uc.spanName,
		attribute.String("sushi.key", cmd.Key),
		attribute.Int("stock.quantity", cmd.Quantity),
	)
	run.Field("key", cmd.Key)
	run.Field("quantity", cmd.Quantity)
	defer func() { run.End(err) }()

	out, err := uc.apply(ctx, cmd.Key, cmd.Quantity)
	res := &Result{Outcome: out}
	run.Field("attempts", out.Attempts)
	run.Field("applied", out.Applied)
	run.Field("stock", out.Stock)

	if out.Applied > 0 {
		uc.units.Add(float64(out.Applied))
		run.Span().AddEvent("stock."+string(uc.op), trace.WithAttributes(
			attribute.String("sushi.key", cmd.Key),
			attribute.Int("stock.applied", out.Applied),
			attribute.Int("stock.level", out.Stock),
		))
		if perr := uc.publish(ctx, uc.committedEvent(out)); perr != nil {
			run.Field("event_error", perr.Error())
		}
	}

	if err != nil {
		res.FailureReason = sushi.FailureReason(err)
		run.Field("failure_reason", res.FailureReason)
		if rejected(err) {
			run.Fail(observability.OutcomeRejected, strings.ToUpper(res.FailureReason))
		} else {
			run.Fail(observability.OutcomeError, "STORE_FAILED")
		}
		if out.Applied == 0 {
			if perr := uc.publish(ctx, sushi.NewStockRejectedEvent(cmd.Key, uc.op, cmd.Quantity, res.FailureReason)); perr != nil {
				run.Field("event_error", perr.Error())
			}
		}
		return res, fmt.Errorf("stock: %s: %w", uc.op, err)
	}

	return res, nil
}

func (uc *mutationUseCase) committedEvent(out sushi.Outcome) domoutbox.Event {
	if uc.op == sushi.OperationPurchase {
		return sushi.NewPurchasedEvent(out)
	}
	return sushi.NewRestockedEvent(out)
}

// publish never fails the use case: the stock write has already committed or
// been rejected by the time events go out.
func (uc *mutationUseCase) publish(ctx context.Context, event domoutbox.Event) error {
	if uc.publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := uc.publisher.Publish(pubCtx, event)
	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeError
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
	)
	return err
}

// rejected reports whether err is a business decision rather than a store failure.
func rejected(err error) bool {
	if kind, ok := sushi.KindOf(err); ok {
		return kind != sushi.KindContentionExhausted
	}
	return errors.Is(err, sushi.ErrInvalidQuantity) || errors.Is(err, sushi.ErrNotFound)
}
