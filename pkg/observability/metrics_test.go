package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
)

func TestHooksRecordMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	h := m.Hooks()

	h.Message(ctx, "client")
	h.Message(ctx, "client")
	h.Message(ctx, "operator")
	h.Booking(ctx, domain.OutcomeCreated)
	h.Booking(ctx, domain.OutcomeConflict)
	h.Reset(ctx, "u1", domain.ResetSweep)
	h.DeliveryFailure(ctx, "u1", errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues("client")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("operator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Bookings.WithLabelValues(domain.OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resets.WithLabelValues(domain.ResetSweep)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryFailures))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.Hooks().Booking(context.Background(), domain.OutcomeConfirmed)

	w := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `concierge_booking_outcomes_total{outcome="confirmed"} 1`)
}
