// Package gocqldriver implements driver.Driver on a gocql session. Values
// travel through gocql already encoded: parameters are handed over as raw
// bytes and result cells are captured as raw bytes, so gocql's own
// reflection-based marshalling is never involved.
package gocqldriver

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/driver"
	"github.com/grafana/cqlexec/pkg/statement"
)

// Driver is a driver.Driver backed by gocql.
type Driver struct {
	cfg     Config
	logger  log.Logger
	metrics *metrics

	mu      sync.RWMutex
	session *gocql.Session
}

// New connects to the cluster described by cfg.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Driver, error) {
	d := &Driver{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(reg),
	}
	session, err := d.connect(cfg.Keyspace)
	if err != nil {
		return nil, err
	}
	d.session = session
	return d, nil
}

func (d *Driver) connect(keyspace string) (*gocql.Session, error) {
	cluster, err := d.cfg.cluster()
	if err != nil {
		return nil, err
	}
	cluster.Keyspace = keyspace
	cluster.QueryObserver = observer{m: d.metrics}
	cluster.BatchObserver = observer{m: d.metrics}
	cluster.Logger = gocqlLogger{logger: d.logger}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", d.cfg.Addresses)
	}
	level.Info(d.logger).Log("msg", "connected to cassandra", "addresses", d.cfg.Addresses, "keyspace", keyspace)
	return session, nil
}

func (d *Driver) current() *gocql.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

// Prepare has gocql prepare text and reports the metadata it received. gocql
// only exposes that metadata to a binding callback, which is made to fail so
// that nothing is executed.
//
// gocql runs statements other than SELECT, INSERT, UPDATE, DELETE and BATCH
// unprepared. For those Prepare returns an empty result without contacting
// the server; they cannot carry bind markers.
func (d *Driver) Prepare(ctx context.Context, text string) (driver.PrepareResult, error) {
	if !preparable(text) {
		return driver.PrepareResult{}, nil
	}

	var info *gocql.QueryInfo
	err := d.current().Bind(text, func(qi *gocql.QueryInfo) ([]interface{}, error) {
		info = qi
		return nil, errPrepared
	}).WithContext(ctx).RetryPolicy(nil).Exec()
	if !errors.Is(err, errPrepared) {
		d.metrics.prepares.WithLabelValues("error").Inc()
		if err == nil {
			err = errors.New("statement was executed instead of prepared")
		}
		return driver.PrepareResult{}, classify(err, true)
	}
	d.metrics.prepares.WithLabelValues("success").Inc()

	bind, err := columnSpecs(info.Args)
	if err != nil {
		return driver.PrepareResult{}, err
	}
	result, err := columnSpecs(info.Rval)
	if err != nil {
		return driver.PrepareResult{}, err
	}
	return driver.PrepareResult{
		ID:            append([]byte(nil), info.Id...),
		BindColumns:   bind,
		ResultColumns: result,
	}, nil
}

// Execute runs req.Text. gocql keeps its own prepared statement cache keyed
// by text, so req.ID is not sent; gocql re-prepares on its own when the
// server has forgotten the statement.
func (d *Driver) Execute(ctx context.Context, req driver.ExecuteRequest) (driver.Response, error) {
	if err := rejectTupleMarkers(req.Columns); err != nil {
		return driver.Response{}, err
	}
	ctx, cancel := withTimeout(ctx, req.Config.Timeout())
	defer cancel()

	var tr tracer
	q := d.current().Query(req.Text, rawValues(req.Text, req.Params, req.Columns)...).WithContext(ctx)
	applyQueryConfig(q, req.Config, &tr)

	resp, err := collect(q.Iter())
	if err != nil {
		level.Debug(d.logger).Log("msg", "query failed", "err", err)
		return driver.Response{}, classify(err, false)
	}
	resp.TracingID = tr.id
	return resp, nil
}

func (d *Driver) ExecuteBatch(ctx context.Context, req driver.BatchRequest) (driver.Response, error) {
	for _, e := range req.Entries {
		if err := rejectTupleMarkers(e.Columns); err != nil {
			return driver.Response{}, err
		}
	}
	ctx, cancel := withTimeout(ctx, req.Config.Timeout())
	defer cancel()

	session := d.current()
	b := session.NewBatch(batchType(req.Kind)).WithContext(ctx)
	for _, e := range req.Entries {
		b.Query(e.Text, rawValues(e.Text, e.Params, e.Columns)...)
	}
	for i := range b.Entries {
		b.Entries[i].Idempotent = req.Config.Idempotent()
	}

	cfg := req.Config
	if cfg.Consistency() != statement.ConsistencyUnset {
		b.SetConsistency(gocqlConsistency(cfg.Consistency(), gocql.Quorum))
	}
	if sc, ok := gocqlSerialConsistency(cfg.SerialConsistency()); ok {
		b.SerialConsistency(sc)
	}
	if ts, ok := cfg.Timestamp(); ok {
		b.WithTimestamp(ts)
	}
	var tr tracer
	if cfg.Tracing() {
		b.Trace(&tr)
	}

	if err := session.ExecuteBatch(b); err != nil {
		level.Debug(d.logger).Log("msg", "batch failed", "statements", len(req.Entries), "err", err)
		return driver.Response{}, classify(err, false)
	}
	return driver.Response{TracingID: tr.id}, nil
}

// UseKeyspace reconnects with keyspace as the session keyspace. gocql
// refuses USE statements because its connections are pooled, so the session
// is replaced and the old one closed once the new one is up.
func (d *Driver) UseKeyspace(_ context.Context, keyspace string) error {
	session, err := d.connect(keyspace)
	if err != nil {
		return classify(err, false)
	}
	d.mu.Lock()
	old := d.session
	d.session = session
	d.mu.Unlock()

	old.Close()
	return nil
}

func (d *Driver) AwaitSchemaAgreement(ctx context.Context) (bool, error) {
	err := d.current().AwaitSchemaAgreement(ctx)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, cqlerrors.Dispatch(ctx.Err(), 0)
	case strings.Contains(err.Error(), "schema versions not consistent"):
		return false, nil
	}
	return false, classify(err, false)
}

func (d *Driver) Close() {
	d.current().Close()
}

func applyQueryConfig(q *gocql.Query, cfg statement.Config, tr *tracer) {
	if cfg.Consistency() != statement.ConsistencyUnset {
		q.Consistency(gocqlConsistency(cfg.Consistency(), gocql.Quorum))
	}
	if sc, ok := gocqlSerialConsistency(cfg.SerialConsistency()); ok {
		q.SerialConsistency(sc)
	}
	if n := cfg.PageSize(); n > 0 {
		q.PageSize(n)
	}
	if ts, ok := cfg.Timestamp(); ok {
		q.WithTimestamp(ts)
	}
	if cfg.Tracing() {
		q.Trace(tr)
	}
	q.Idempotent(cfg.Idempotent())
}

func batchType(k statement.BatchKind) gocql.BatchType {
	switch k {
	case statement.Unlogged:
		return gocql.UnloggedBatch
	case statement.Counter:
		return gocql.CounterBatch
	}
	return gocql.LoggedBatch
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// preparable mirrors the statements gocql prepares before executing.
func preparable(text string) bool {
	stmt := strings.TrimFunc(text, func(r rune) bool { return unicode.IsSpace(r) || r == ';' })
	fields := strings.Fields(stmt)
	if len(fields) < 2 {
		return false
	}
	verb := strings.ToLower(fields[0])
	if verb == "begin" {
		verb = strings.ToLower(fields[len(fields)-1])
	}
	switch verb {
	case "select", "insert", "update", "delete", "batch":
		return true
	}
	return false
}

// tracer records the tracing session id gocql reports.
type tracer struct {
	id []byte
}

func (t *tracer) Trace(id []byte) {
	t.id = append([]byte(nil), id...)
}

// rawValue hands encoded bytes to gocql. When the type gocql prepared the
// marker with differs from the type the bytes were encoded for, the schema
// changed underneath the statement.
type rawValue struct {
	data  []byte
	col   cqltypes.ColumnSpec
	check bool
}

func (v rawValue) MarshalCQL(info gocql.TypeInfo) ([]byte, error) {
	if v.check {
		t, err := wireType(info)
		if err != nil {
			return nil, err
		}
		if !t.Equal(v.col.Type) {
			return nil, cqlerrors.SchemaChangedf("bind marker %s changed type from %s to %s", v.col.Name, v.col.Type, t)
		}
	}
	return v.data, nil
}

func rawValues(text string, params [][]byte, cols []cqltypes.ColumnSpec) []interface{} {
	if len(params) == 0 {
		return nil
	}
	check := len(cols) == len(params) && preparable(text)
	values := make([]interface{}, len(params))
	for i, p := range params {
		v := rawValue{data: p, check: check}
		if check {
			v.col = cols[i]
		}
		values[i] = v
	}
	return values
}

// rawCell captures the bytes gocql read for a cell. data aliases gocql's
// frame buffer, so it is copied.
type rawCell struct {
	data []byte
}

func (c *rawCell) UnmarshalCQL(_ gocql.TypeInfo, data []byte) error {
	if data == nil {
		c.data = nil
		return nil
	}
	c.data = append([]byte{}, data...)
	return nil
}

// collect drains iter. gocql splits tuple columns into one scan
// destination per member; those are joined back into the tuple encoding.
// A tuple whose members are all NULL cannot be told apart from a NULL
// tuple and is reported as NULL.
func collect(iter *gocql.Iter) (driver.Response, error) {
	infos := iter.Columns()
	cols, err := columnSpecs(infos)
	if err != nil {
		_ = iter.Close()
		return driver.Response{}, err
	}

	width := 0
	for _, info := range infos {
		width += scanWidth(info.TypeInfo)
	}
	cells := make([]rawCell, width)
	dest := make([]interface{}, width)
	for i := range cells {
		dest[i] = &cells[i]
	}

	var rows [][][]byte
	for width > 0 && iter.Scan(dest...) {
		row := make([][]byte, len(infos))
		j := 0
		for i, info := range infos {
			n := scanWidth(info.TypeInfo)
			if info.TypeInfo.Type() == gocql.TypeTuple {
				row[i] = joinTuple(cells[j : j+n])
			} else {
				row[i] = cells[j].data
			}
			j += n
		}
		for k := range cells {
			cells[k] = rawCell{}
		}
		rows = append(rows, row)
	}

	warnings := iter.Warnings()
	if err := iter.Close(); err != nil {
		return driver.Response{}, err
	}
	return driver.Response{Columns: cols, Rows: rows, Warnings: warnings}, nil
}

func scanWidth(info gocql.TypeInfo) int {
	if tt, ok := info.(gocql.TupleTypeInfo); ok {
		return len(tt.Elems)
	}
	return 1
}

func joinTuple(members []rawCell) []byte {
	size, null := 0, true
	for _, m := range members {
		size += 4 + len(m.data)
		if m.data != nil {
			null = false
		}
	}
	if null {
		return nil
	}
	out := make([]byte, 0, size)
	for _, m := range members {
		if m.data == nil {
			out = binary.BigEndian.AppendUint32(out, 0xFFFFFFFF)
			continue
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(m.data)))
		out = append(out, m.data...)
	}
	return out
}
