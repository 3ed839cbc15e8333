package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
)

func TestSubscribeRecordsEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	defer m.Subscribe()()

	ctx := context.Background()
	eventbus.Publish(ctx, events.QueryCacheLookup{Hit: false})
	eventbus.Publish(ctx, events.QueryCacheLookup{Hit: true})
	eventbus.Publish(ctx, events.QueryCacheLookup{Hit: true})
	eventbus.Publish(ctx, events.ValidationFailed{})
	eventbus.Publish(ctx, events.StreamFinish{Payloads: 3})
	eventbus.Publish(ctx, events.StreamFinish{Payloads: 2})
	eventbus.Publish(ctx, events.HTTPFinish{Status: 406})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Duration: 20 * time.Millisecond})

	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures))
	require.Equal(t, 5.0, testutil.ToFloat64(m.StreamPayloads))
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("406")))
	require.Equal(t, 1, testutil.CollectAndCount(m.GraphQLDuration))
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.ValidationFailures.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "graphedge_validation_failures_total 1"), rec.Body.String())
}
