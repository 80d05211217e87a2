package executor

import (
	"context"
	"time"

	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/cqlexec/pkg/cqlerrors"
)

type metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bindErrors      *prometheus.CounterVec
	reprepares      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "requests_total",
			Help:      "Total number of requests by operation and outcome.",
		}, []string{"operation", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cqlexec",
			Name:      "request_duration_seconds",
			Help:      "Time spent executing requests, including binding and decoding.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 9),
		}, []string{"operation"}),
		bindErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "bind_errors_total",
			Help:      "Total number of value sets rejected before dispatch.",
		}, []string{"kind"}),
		reprepares: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "reprepares_total",
			Help:      "Total number of statements prepared again after a schema change.",
		}, []string{"outcome"}),
	}
}

// status is the requests_total label for err: "success" or the error kind.
func status(err error) string {
	if err == nil {
		return "success"
	}
	return cqlerrors.KindOf(err).String()
}

// collectedRequest runs fn inside a span named after the operation and
// records its duration and outcome.
func (m *metrics) collectedRequest(ctx context.Context, operation string, fn func(context.Context, ot.Span) error) error {
	sp, ctx := ot.StartSpanFromContext(ctx, "cqlexec."+operation)
	defer sp.Finish()

	start := time.Now()
	err := fn(ctx, sp)
	m.requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.requests.WithLabelValues(operation, status(err)).Inc()
	if err != nil {
		ext.LogError(sp, err)
	}
	return err
}
