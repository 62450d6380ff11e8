package httppresentation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	infraobs "github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := infraobs.New(nil, nil, prometrics.New(reg, "", ""))
	tel.Metrics().Counter(observability.MStockUnits).Add(3, observability.L("operation", "purchase"))

	srv := httptest.NewServer(Handler(reg, tel))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestMiddlewareEchoesRequestID(t *testing.T) {
	h := ObservabilityMiddleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := httptest.NewRecorder()
	Handler(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
