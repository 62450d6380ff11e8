package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/Zhima-Mochi/sushistore/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const spanPrefix = "UC."

// Instruments holds the logger, tracer and RED metrics shared by use cases.
type Instruments struct {
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewInstruments(service string, tel observability.Observability) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// Run is one in-flight use case execution.
type Run struct {
	ctx     context.Context
	span    trace.Span
	log     observability.Logger
	in      Instruments
	useCase string
	start   time.Time

	Outcome string
	Status  string
	fields  []observability.Field
}

// Start opens the span and the request-scoped logger of a use case.
func (in Instruments) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName,
		append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)...)

	fields := []observability.Field{observability.F("use_case", useCase)}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx, logger := logctx.Enrich(ctx, in.log, fields...)

	return ctx, &Run{
		ctx:     ctx,
		span:    span,
		log:     logger,
		in:      in,
		useCase: useCase,
		start:   time.Now(),
		Outcome: observability.OutcomeSuccess,
		Status:  "OK",
	}
}

// Fail marks the run as failed with a machine-readable status.
func (r *Run) Fail(outcome, status string) {
	r.Outcome, r.Status = outcome, status
}

// Field attaches a field to the closing log line.
func (r *Run) Field(k string, v any) {
	r.fields = append(r.fields, observability.F(k, v))
}

func (r *Run) Span() trace.Span { return r.span }

// End records metrics, closes the span and writes the use_case_done line.
func (r *Run) End(err error) {
	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.Status)
		} else {
			r.span.SetStatus(codes.Ok, r.Status)
		}
		r.span.End()
	}

	latency := time.Since(r.start).Seconds()
	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.Outcome),
	)
	r.in.durHistogram.Observe(latency,
		observability.L("use_case", r.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", r.Outcome),
		observability.F("status", r.Status),
		observability.F("latency_seconds", latency),
	}, r.fields...)
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	r.log.Info("use_case_done", fields...)
}
