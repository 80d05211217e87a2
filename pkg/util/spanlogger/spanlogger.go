// Package spanlogger sends log lines to both a go-kit logger and the
// active tracing span.
package spanlogger

import (
	"context"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/spanlogger"
)

// noTenant resolves no tenants: sessions are not multi-tenant, so spans
// and log lines carry no tenant tags.
type noTenant struct{}

func (noTenant) TenantID(context.Context) (string, error)    { return "", nil }
func (noTenant) TenantIDs(context.Context) ([]string, error) { return nil, nil }

var resolver noTenant

// SpanLogger unifies tracing and logging, to reduce repetition.
type SpanLogger = spanlogger.SpanLogger

// New starts a span named method as a child of any span in ctx, and
// returns a SpanLogger for it along with the context carrying the span.
func New(ctx context.Context, logger log.Logger, method string, kvps ...interface{}) (*SpanLogger, context.Context) {
	return spanlogger.New(ctx, logger, method, resolver, kvps...)
}

// FromContext returns a span logger using the current parent span.
// Without a span it only logs, to fallback or to a no-op logger when
// fallback is nil.
func FromContext(ctx context.Context, fallback log.Logger) *SpanLogger {
	if fallback == nil {
		fallback = log.NewNopLogger()
	}
	return spanlogger.FromContext(ctx, fallback, resolver)
}
