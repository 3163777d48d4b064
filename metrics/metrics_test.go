package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistererAcceptsCustomCollectors(t *testing.T) {
	reg := New()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "used only by this test",
	})
	require.NoError(t, reg.Registerer().Register(counter))
	counter.Inc()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	reg.Handler().ServeHTTP(rr, req)

	assert.Contains(t, rr.Body.String(), "test_counter_total 1")
}
