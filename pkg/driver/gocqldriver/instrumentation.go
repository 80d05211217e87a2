package gocqldriver

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	queryDuration *prometheus.HistogramVec
	prepares      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		queryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cqlexec",
			Name:      "driver_query_duration_seconds",
			Help:      "Time spent by the driver on each request attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"type", "status"}),
		prepares: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "driver_prepares_total",
			Help:      "Total number of statements prepared through the driver.",
		}, []string{"status"}),
	}
}

// observer feeds gocql's per-attempt callbacks into the query histogram.
type observer struct {
	m *metrics
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (o observer) ObserveBatch(_ context.Context, b gocql.ObservedBatch) {
	o.m.queryDuration.WithLabelValues("batch", status(b.Err)).Observe(b.End.Sub(b.Start).Seconds())
}

func (o observer) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	o.m.queryDuration.WithLabelValues("query", status(q.Err)).Observe(q.End.Sub(q.Start).Seconds())
}
