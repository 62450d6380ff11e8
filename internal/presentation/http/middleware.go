package httppresentation

import (
	"net/http"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/Zhima-Mochi/sushistore/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const requestIDHeader = "X-Request-ID"

// ObservabilityMiddleware extracts W3C trace context, injects a request-scoped
// logger, echoes X-Request-ID and records the scrape as an external request.
func ObservabilityMiddleware(base observability.Logger, tel observability.Observability) func(http.Handler) http.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	if base == nil {
		base = tel.Logger()
	}
	prop := otel.GetTextMapPropagator()
	requests := tel.Metrics().Counter(observability.MExternalRequests)
	durations := tel.Metrics().Histogram(observability.MExternalRequestDuration)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			sc := trace.SpanContextFromContext(ctx)

			rid := r.Header.Get(requestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, rid)

			fields := []observability.Field{observability.F("request_id", rid)}
			if sc.IsValid() {
				fields = append(fields,
					observability.F("trace_id", sc.TraceID().String()),
					observability.F("span_id", sc.SpanID().String()),
				)
			}
			ctx, reqLogger := logctx.Enrich(logctx.With(ctx, base), nil, fields...)

			start := time.Now()
			lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(lrw, r.WithContext(ctx))
			elapsed := time.Since(start)

			outcome := observability.OutcomeSuccess
			if lrw.status >= http.StatusBadRequest {
				outcome = observability.OutcomeError
			}
			requests.Add(1,
				observability.L("peer", "http"),
				observability.L("endpoint", endpointLabel(r)),
				observability.L("outcome", outcome),
			)
			durations.Observe(elapsed.Seconds(),
				observability.L("peer", "http"),
				observability.L("endpoint", endpointLabel(r)),
			)
			reqLogger.Debug("http_request_done",
				observability.F("method", r.Method),
				observability.F("path", r.URL.Path),
				observability.F("status", lrw.status),
				observability.F("latency_ms", elapsed.Milliseconds()),
			)
		})
	}
}

// endpointLabel keeps the label set bounded: only the exposition path is named.
func endpointLabel(r *http.Request) string {
	if r.URL.Path == metricsPath {
		return metricsPath
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
