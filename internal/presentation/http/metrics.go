package httppresentation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsPath     = "/metrics"
	shutdownTimeout = 5 * time.Second
)

// Handler serves the Prometheus exposition for g under /metrics; every other
// path is a 404.
func Handler(g prometheus.Gatherer, tel observability.Observability) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	var logger observability.Logger
	if tel != nil {
		logger = tel.Logger().With(observability.F("component", "metrics_http"))
	}
	return ObservabilityMiddleware(logger, tel)(mux)
}

// Serve runs the metrics listener until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger observability.Logger) error {
	if logger == nil {
		logger = observability.NopLogger()
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics_server_start", observability.F("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("metrics_server_error", observability.Err(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics_server_shutdown_error", observability.Err(err))
		return err
	}
	logger.Info("metrics_server_stopped")
	return nil
}
