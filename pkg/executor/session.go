// Package executor runs statements: it binds values, dispatches requests to
// the driver and wraps responses in result sets. A statement prepared
// against a schema that has since changed is prepared again and retried
// exactly once.
package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/regexp"
	ot "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/grafana/cqlexec/pkg/binding"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/driver"
	"github.com/grafana/cqlexec/pkg/result"
	"github.com/grafana/cqlexec/pkg/statement"
	"github.com/grafana/cqlexec/pkg/util/spanlogger"
)

// Session executes statements through a driver. It holds no per-statement
// state and is safe for concurrent use.
type Session struct {
	cfg      Config
	driver   driver.Driver
	logger   log.Logger
	metrics  *metrics
	defaults statement.Config
	keyspace atomic.String
}

func New(cfg Config, d driver.Driver, logger log.Logger, reg prometheus.Registerer) *Session {
	return &Session{
		cfg:      cfg,
		driver:   d,
		logger:   logger,
		metrics:  newMetrics(reg),
		defaults: cfg.defaults(),
	}
}

// Query executes statement text. See Execute for how values are handled.
func (s *Session) Query(ctx context.Context, text string, values binding.Source) (*result.ResultSet, error) {
	return s.Execute(ctx, statement.Raw(text), values, statement.Config{})
}

// Execute runs any statement. Options set in override take precedence over
// the statement's own, which take precedence over the session defaults.
//
// Text statements run as they are when values is nil. With values they are
// prepared first, since binding needs the types of their markers.
func (s *Session) Execute(ctx context.Context, stmt statement.Statement, values binding.Source, override statement.Config) (*result.ResultSet, error) {
	if p, ok := stmt.(*statement.Prepared); ok {
		return s.ExecutePrepared(ctx, p, values, override)
	}

	var rs *result.ResultSet
	err := s.metrics.collectedRequest(ctx, "execute", func(ctx context.Context, sp ot.Span) error {
		cfg := s.defaults.Merge(stmt.Config()).Merge(override)
		sp.SetTag("statement", firstWord(stmt.Text()))

		if values == nil {
			resp, err := s.dispatch(ctx, driver.ExecuteRequest{Text: stmt.Text(), Config: cfg})
			if err != nil {
				return err
			}
			rs = result.New(resp)
			return nil
		}

		p, err := s.prepare(ctx, stmt.Text(), stmt.Config())
		if err != nil {
			return err
		}
		sp.SetTag("prepared", true)
		rs, err = s.executePrepared(ctx, sp, p, values, cfg)
		return err
	})
	return rs, err
}

// Prepare has the server parse stmt. The result keeps stmt's options.
func (s *Session) Prepare(ctx context.Context, stmt statement.Statement) (*statement.Prepared, error) {
	if p, ok := stmt.(*statement.Prepared); ok {
		return p, nil
	}
	var p *statement.Prepared
	err := s.metrics.collectedRequest(ctx, "prepare", func(ctx context.Context, sp ot.Span) error {
		sp.SetTag("statement", firstWord(stmt.Text()))
		var err error
		p, err = s.prepare(ctx, stmt.Text(), stmt.Config())
		return err
	})
	return p, err
}

// ExecutePrepared binds values to p's markers and runs it. Binding errors
// are returned before anything is sent.
func (s *Session) ExecutePrepared(ctx context.Context, p *statement.Prepared, values binding.Source, override statement.Config) (*result.ResultSet, error) {
	var rs *result.ResultSet
	err := s.metrics.collectedRequest(ctx, "execute_prepared", func(ctx context.Context, sp ot.Span) error {
		sp.SetTag("statement", firstWord(p.Text()))
		sp.SetTag("statement_hash", fingerprint(p.Text()))
		var err error
		rs, err = s.executePrepared(ctx, sp, p, values, s.defaults.Merge(p.Config()).Merge(override))
		return err
	})
	return rs, err
}

func (s *Session) executePrepared(ctx context.Context, sp ot.Span, p *statement.Prepared, values binding.Source, cfg statement.Config) (*result.ResultSet, error) {
	resp, err := s.bindAndDispatch(ctx, p, values, cfg)
	if !errors.Is(err, cqlerrors.ErrSchemaChanged) {
		if err != nil {
			return nil, err
		}
		return result.New(resp), nil
	}

	sp.SetTag("reprepared", true)
	fresh, err := s.reprepare(ctx, p, err)
	if err != nil {
		return nil, err
	}
	resp, err = s.bindAndDispatch(ctx, fresh, values, cfg)
	if err != nil {
		if errors.Is(err, cqlerrors.ErrSchemaChanged) {
			s.metrics.reprepares.WithLabelValues("failed").Inc()
			level.Warn(spanlogger.FromContext(ctx, s.logger)).Log("msg", "schema changed again after re-prepare", "statement", firstWord(p.Text()), "err", err)
		}
		return nil, err
	}
	s.metrics.reprepares.WithLabelValues("success").Inc()
	return result.New(resp, result.WithReprepared(fresh)), nil
}

func (s *Session) bindAndDispatch(ctx context.Context, p *statement.Prepared, values binding.Source, cfg statement.Config) (driver.Response, error) {
	params, err := binding.Bind(p.BindColumns(), values)
	if err != nil {
		s.metrics.bindErrors.WithLabelValues(cqlerrors.KindOf(err).String()).Inc()
		return driver.Response{}, err
	}
	resp, err := s.dispatch(ctx, driver.ExecuteRequest{
		ID:      p.ID(),
		Text:    p.Text(),
		Params:  params,
		Columns: p.BindColumns(),
		Config:  cfg,
	})
	if err != nil {
		return driver.Response{}, err
	}
	if len(resp.Columns) > 0 && len(p.ResultColumns()) > 0 && !cqltypes.SameColumns(resp.Columns, p.ResultColumns()) {
		return driver.Response{}, cqlerrors.SchemaChangedf("result columns changed from %s to %s", columnList(p.ResultColumns()), columnList(resp.Columns))
	}
	return resp, nil
}

// Batch binds every statement of b and sends them as one request. Text
// statements with values are prepared first, after the statements that
// are already prepared have been bound.
func (s *Session) Batch(ctx context.Context, b *statement.Batch, override statement.Config) (*result.ResultSet, error) {
	var rs *result.ResultSet
	err := s.metrics.collectedRequest(ctx, "batch", func(ctx context.Context, sp ot.Span) error {
		sp.SetTag("batch_kind", b.Kind().String())
		sp.SetTag("batch_size", b.Len())
		if err := b.Validate(); err != nil {
			return err
		}

		entries := make([]driver.BatchEntry, b.Len())
		if err := s.bindBatch(b.Statements(), b.Values(), entries); err != nil {
			return err
		}
		stmts, err := s.prepareBatch(ctx, b)
		if err != nil {
			return err
		}
		if err := s.bindBatch(stmts, b.Values(), entries); err != nil {
			return err
		}
		cfg := s.defaults.Merge(b.Config()).Merge(override)

		resp, err := s.sendBatch(ctx, b.Kind(), entries, cfg)
		if !errors.Is(err, cqlerrors.ErrSchemaChanged) {
			if err != nil {
				return err
			}
			rs = result.New(resp)
			return nil
		}

		sp.SetTag("reprepared", true)
		cause := err
		for i, st := range stmts {
			if p, ok := st.(*statement.Prepared); ok {
				if stmts[i], err = s.reprepare(ctx, p, cause); err != nil {
					return err
				}
			}
		}
		entries = make([]driver.BatchEntry, len(stmts))
		if err := s.bindBatch(stmts, b.Values(), entries); err != nil {
			return err
		}
		resp, err = s.sendBatch(ctx, b.Kind(), entries, cfg)
		if err != nil {
			if errors.Is(err, cqlerrors.ErrSchemaChanged) {
				s.metrics.reprepares.WithLabelValues("failed").Inc()
			}
			return err
		}
		s.metrics.reprepares.WithLabelValues("success").Inc()
		rs = result.New(resp)
		return nil
	})
	return rs, err
}

// prepareBatch returns b's statements with every text statement that has
// values replaced by its prepared form.
func (s *Session) prepareBatch(ctx context.Context, b *statement.Batch) ([]statement.Statement, error) {
	stmts := append([]statement.Statement(nil), b.Statements()...)
	values := b.Values()
	for i, st := range stmts {
		if _, ok := st.(*statement.Prepared); ok || values[i] == nil {
			continue
		}
		p, err := s.prepare(ctx, st.Text(), st.Config())
		if err != nil {
			return nil, errors.Wrapf(err, "batch statement %d", i)
		}
		stmts[i] = p
	}
	return stmts, nil
}

// bindBatch fills the entries of stmts that are not bound yet. Text
// statements only get their text.
func (s *Session) bindBatch(stmts []statement.Statement, values []binding.Source, entries []driver.BatchEntry) error {
	for i, st := range stmts {
		if entries[i].ID != nil {
			continue
		}
		entries[i].Text = st.Text()
		p, ok := st.(*statement.Prepared)
		if !ok {
			continue
		}
		params, err := binding.Bind(p.BindColumns(), values[i])
		if err != nil {
			s.metrics.bindErrors.WithLabelValues(cqlerrors.KindOf(err).String()).Inc()
			return errors.Wrapf(err, "batch statement %d", i)
		}
		entries[i].ID = p.ID()
		entries[i].Params = params
		entries[i].Columns = p.BindColumns()
	}
	return nil
}

func (s *Session) sendBatch(ctx context.Context, kind statement.BatchKind, entries []driver.BatchEntry, cfg statement.Config) (driver.Response, error) {
	if err := ctx.Err(); err != nil {
		return driver.Response{}, cqlerrors.Dispatch(err, 0)
	}
	return s.driver.ExecuteBatch(ctx, driver.BatchRequest{Kind: kind, Entries: entries, Config: cfg})
}

// UseKeyspace switches the session keyspace. Unless caseSensitive is set the
// name is folded to lower case, as CQL does for unquoted identifiers.
func (s *Session) UseKeyspace(ctx context.Context, name string, caseSensitive bool) error {
	return s.metrics.collectedRequest(ctx, "use_keyspace", func(ctx context.Context, sp ot.Span) error {
		if !caseSensitive {
			if !identifier.MatchString(name) {
				return errors.Errorf("invalid keyspace name %q", name)
			}
			name = strings.ToLower(name)
		} else if name == "" {
			return errors.New("keyspace name must not be empty")
		}
		sp.SetTag("keyspace", name)

		if err := ctx.Err(); err != nil {
			return cqlerrors.Dispatch(err, 0)
		}
		if err := s.driver.UseKeyspace(ctx, name); err != nil {
			return err
		}
		s.keyspace.Store(name)
		level.Info(s.logger).Log("msg", "switched keyspace", "keyspace", name)
		return nil
	})
}

// Keyspace is the keyspace last set with UseKeyspace, or "".
func (s *Session) Keyspace() string {
	return s.keyspace.Load()
}

// AwaitSchemaAgreement waits until all nodes agree on the schema. It reports
// false if they did not agree in time.
func (s *Session) AwaitSchemaAgreement(ctx context.Context) (bool, error) {
	var agreed bool
	err := s.metrics.collectedRequest(ctx, "await_schema_agreement", func(ctx context.Context, _ ot.Span) error {
		var err error
		agreed, err = s.driver.AwaitSchemaAgreement(ctx)
		if err == nil && !agreed {
			level.Warn(s.logger).Log("msg", "schema agreement not reached")
		}
		return err
	})
	return agreed, err
}

func (s *Session) Close() {
	s.driver.Close()
}

func (s *Session) prepare(ctx context.Context, text string, cfg statement.Config) (*statement.Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, cqlerrors.Dispatch(err, 0)
	}
	res, err := s.driver.Prepare(ctx, text)
	if err != nil {
		return nil, err
	}
	return statement.NewPrepared(res.ID, text, res.BindColumns, res.ResultColumns, cfg), nil
}

func (s *Session) reprepare(ctx context.Context, p *statement.Prepared, cause error) (*statement.Prepared, error) {
	logger := spanlogger.FromContext(ctx, s.logger)
	level.Info(logger).Log("msg", "preparing statement again after schema change", "statement", firstWord(p.Text()), "statement_hash", fingerprint(p.Text()), "cause", cause)
	if s.cfg.AwaitSchemaAgreement {
		agreed, err := s.driver.AwaitSchemaAgreement(ctx)
		if err != nil {
			s.metrics.reprepares.WithLabelValues("failed").Inc()
			return nil, err
		}
		if !agreed {
			level.Warn(logger).Log("msg", "schema agreement not reached before re-prepare")
		}
	}
	fresh, err := s.prepare(ctx, p.Text(), p.Config())
	if err != nil {
		s.metrics.reprepares.WithLabelValues("failed").Inc()
		return nil, err
	}
	return p.Reprepared(fresh.ID(), fresh.BindColumns(), fresh.ResultColumns()), nil
}

// dispatch checks for cancellation before sending, so a cancelled call
// never reaches the driver.
func (s *Session) dispatch(ctx context.Context, req driver.ExecuteRequest) (driver.Response, error) {
	if err := ctx.Err(); err != nil {
		return driver.Response{}, cqlerrors.Dispatch(err, 0)
	}
	resp, err := s.driver.Execute(ctx, req)
	if err != nil {
		level.Debug(spanlogger.FromContext(ctx, s.logger)).Log("msg", "execution failed", "statement", firstWord(req.Text), "err", err)
		return driver.Response{}, err
	}
	return resp, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

func firstWord(text string) string {
	if f := strings.Fields(text); len(f) > 0 {
		return strings.ToUpper(f[0])
	}
	return ""
}

// fingerprint identifies statement text in logs and spans without
// recording the text itself.
func fingerprint(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

func columnList(cols []cqltypes.ColumnSpec) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}
