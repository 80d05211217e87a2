// Package drivertest provides an in-memory driver.Driver for tests. It
// prepares statements from a script, records every request and answers
// executions through optional handlers.
package drivertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/grafana/cqlexec/pkg/codec"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/driver"
)

// ExecuteFunc answers an execution. Returning a zero Response is fine.
type ExecuteFunc func(ctx context.Context, req driver.ExecuteRequest) (driver.Response, error)

// BatchFunc answers a batch.
type BatchFunc func(ctx context.Context, req driver.BatchRequest) (driver.Response, error)

type table struct {
	id     []byte
	bind   []cqltypes.ColumnSpec
	result []cqltypes.ColumnSpec
}

// Driver is a scripted driver.Driver.
type Driver struct {
	PrepareCalls   atomic.Int64
	ExecuteCalls   atomic.Int64
	BatchCalls     atomic.Int64
	AgreementCalls atomic.Int64

	mu         sync.Mutex
	version    int
	statements map[string]table
	stale      map[string]bool
	onExecute  ExecuteFunc
	onBatch    BatchFunc
	agreement  bool
	prepared   []string
	executed   []driver.ExecuteRequest
	batches    []driver.BatchRequest
	keyspaces  []string
	closed     bool
}

func New() *Driver {
	return &Driver{
		statements: map[string]table{},
		stale:      map[string]bool{},
		agreement:  true,
	}
}

// Define makes text preparable with the given columns and returns the id it
// will be prepared under. Defining text again simulates a schema change:
// the statement gets a new id and the old id is no longer recognised.
func (d *Driver) Define(text string, bind, result []cqltypes.ColumnSpec) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.statements[text]; ok {
		d.stale[string(old.id)] = true
	}
	d.version++
	id := []byte(fmt.Sprintf("stmt-%d", d.version))
	d.statements[text] = table{id: id, bind: bind, result: result}
	return id
}

// OnExecute installs the handler for Execute.
func (d *Driver) OnExecute(fn ExecuteFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExecute = fn
}

// OnBatch installs the handler for ExecuteBatch.
func (d *Driver) OnBatch(fn BatchFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onBatch = fn
}

// SetAgreement sets the result of AwaitSchemaAgreement.
func (d *Driver) SetAgreement(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agreement = ok
}

func (d *Driver) Prepare(_ context.Context, text string) (driver.PrepareResult, error) {
	d.PrepareCalls.Inc()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepared = append(d.prepared, text)
	t, ok := d.statements[text]
	if !ok {
		return driver.PrepareResult{}, cqlerrors.Prepare(fmt.Errorf("line 1:0 no viable alternative at input %q", firstWord(text)), 0x2000)
	}
	return driver.PrepareResult{ID: t.id, BindColumns: t.bind, ResultColumns: t.result}, nil
}

func (d *Driver) Execute(ctx context.Context, req driver.ExecuteRequest) (driver.Response, error) {
	d.ExecuteCalls.Inc()
	d.mu.Lock()
	d.executed = append(d.executed, req)
	stale := req.ID != nil && d.stale[string(req.ID)]
	result := d.resultColumnsLocked(req.ID)
	fn := d.onExecute
	d.mu.Unlock()

	if stale {
		return driver.Response{}, cqlerrors.SchemaChangedf("prepared statement %s is unknown to the server", req.ID)
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return driver.Response{Columns: result}, nil
}

func (d *Driver) ExecuteBatch(ctx context.Context, req driver.BatchRequest) (driver.Response, error) {
	d.BatchCalls.Inc()
	d.mu.Lock()
	d.batches = append(d.batches, req)
	var stale []byte
	for _, e := range req.Entries {
		if e.ID != nil && d.stale[string(e.ID)] {
			stale = e.ID
			break
		}
	}
	fn := d.onBatch
	d.mu.Unlock()

	if stale != nil {
		return driver.Response{}, cqlerrors.SchemaChangedf("prepared statement %s is unknown to the server", stale)
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return driver.Response{}, nil
}

func (d *Driver) UseKeyspace(_ context.Context, keyspace string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keyspaces = append(d.keyspaces, keyspace)
	return nil
}

func (d *Driver) AwaitSchemaAgreement(context.Context) (bool, error) {
	d.AgreementCalls.Inc()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agreement, nil
}

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Prepared returns the text of every Prepare call, in order.
func (d *Driver) Prepared() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.prepared...)
}

// Executed returns every Execute request, in order.
func (d *Driver) Executed() []driver.ExecuteRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.ExecuteRequest(nil), d.executed...)
}

// Batches returns every ExecuteBatch request, in order.
func (d *Driver) Batches() []driver.BatchRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.BatchRequest(nil), d.batches...)
}

// Keyspaces returns every keyspace passed to UseKeyspace, in order.
func (d *Driver) Keyspaces() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.keyspaces...)
}

func (d *Driver) resultColumnsLocked(id []byte) []cqltypes.ColumnSpec {
	if id == nil {
		return nil
	}
	for _, t := range d.statements {
		if string(t.id) == string(id) {
			return t.result
		}
	}
	return nil
}

func firstWord(text string) string {
	if f := strings.Fields(text); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Columns builds column specs from "name type" pairs such as "id int" or
// "tags set<text>". It panics on malformed input.
func Columns(keyspace, table string, defs ...string) []cqltypes.ColumnSpec {
	cols := make([]cqltypes.ColumnSpec, len(defs))
	for i, def := range defs {
		name, typ, ok := strings.Cut(strings.TrimSpace(def), " ")
		if !ok {
			panic(fmt.Sprintf("column definition %q needs a name and a type", def))
		}
		cols[i] = cqltypes.ColumnSpec{
			Keyspace: keyspace,
			Table:    table,
			Name:     name,
			Position: i,
			Type:     cqltypes.MustParseType(typ),
		}
	}
	return cols
}

// Rows encodes rows of values against cols for use in a Response. It
// panics if a value does not fit its column.
func Rows(cols []cqltypes.ColumnSpec, rows ...[]cqltypes.Value) [][][]byte {
	out := make([][][]byte, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			panic(fmt.Sprintf("row %d has %d values for %d columns", i, len(row), len(cols)))
		}
		cells := make([][]byte, len(row))
		for j, v := range row {
			var (
				b   []byte
				err error
			)
			if cols[j].Type.Tag() == cqltypes.TagCounter {
				b, err = codec.EncodeCounterDelta(v)
			} else {
				b, err = codec.Encode(v, cols[j].Type)
			}
			if err != nil {
				panic(fmt.Sprintf("row %d column %s: %v", i, cols[j].Name, err))
			}
			cells[j] = b
		}
		out[i] = cells
	}
	return out
}
