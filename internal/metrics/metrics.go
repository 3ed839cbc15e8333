// Package metrics records Prometheus counters and histograms from eventbus
// events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
)

const namespace = "graphedge"

// Metrics holds the collectors fed by Subscribe.
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	StreamPayloads     prometheus.Counter
	GraphQLDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_lookups_total",
			Help:      "Query cache lookups by result (hit or miss).",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by status code.",
		}, []string{"status"}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Documents rejected by validation.",
		}),
		StreamPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_payloads_total",
			Help:      "Payloads written to streamed responses.",
		}),
		GraphQLDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graphql_duration_seconds",
			Help:      "Time from execution start to the result being shaped.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation_type"}),
	}
	for _, c := range []prometheus.Collector{m.CacheLookups, m.HTTPRequests, m.ValidationFailures, m.StreamPayloads, m.GraphQLDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Subscribe feeds m from the global bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.QueryCacheLookup) {
			result := "miss"
			if e.Hit {
				result = "hit"
			}
			m.CacheLookups.WithLabelValues(result).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.HTTPRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
		}),
		eventbus.Subscribe(func(context.Context, events.ValidationFailed) {
			m.ValidationFailures.Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.StreamFinish) {
			m.StreamPayloads.Add(float64(e.Payloads))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			m.GraphQLDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
