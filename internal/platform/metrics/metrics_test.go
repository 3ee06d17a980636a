package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmarket/api/internal/services"
)

func TestRegistryRecordsOrderOutcomes(t *testing.T) {
	reg := New()

	reg.CheckoutSucceeded("cart", 3)
	reg.CheckoutSucceeded("direct", 1)
	reg.CheckoutFailed("cart", "empty_cart")
	reg.StatusChanged("admin", services.OrderStatus("shipped"), services.OrderStatus("delivered"))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.checkouts.WithLabelValues("cart")))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.orders.WithLabelValues("cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.failures.WithLabelValues("cart", "empty_cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.statuses.WithLabelValues("admin", "shipped", "delivered")))
}

func TestRegistryBreakerGauge(t *testing.T) {
	reg := New()
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.breaker.WithLabelValues("closed")))

	reg.BreakerStateChanged("closed", "open")
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.breaker.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.breaker.WithLabelValues("open")))

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg := New()
	router := chi.NewRouter()
	router.Use(reg.Middleware)
	router.Get("/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"ord_1", "ord_2"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.requests.WithLabelValues("/orders/{orderId}", http.MethodGet, "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := New()
	reg.CheckoutSucceeded("direct", 1)

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "shelfmarket_checkout_completed_total"), "missing checkout counter")
	assert.True(t, strings.Contains(body, "go_goroutines"), "missing runtime collector")
}
