package observability

import (
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// standardMetrics resolves MetricKeys against the instruments registered by prometrics.Standard.
type standardMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m standardMetrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (m standardMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}

// New assembles a provider. Nil arguments fall back to the nop implementations,
// so New(nil, nil, nil) is a fully silent provider.
func New(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	p := &provider{tracer: tracer, logger: logger, metrics: observability.NopMetrics()}
	if reg != nil {
		counters, histograms := prometrics.Standard(reg)
		p.metrics = standardMetrics{counters: counters, histograms: histograms}
	}
	return p
}

func (p *provider) Tracer() observability.Tracer { return p.tracer }

func (p *provider) Logger() observability.Logger { return p.logger }

func (p *provider) Metrics() observability.Metrics { return p.metrics }
