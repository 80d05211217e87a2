// Package result holds the rows returned by an execution. Cells stay
// encoded until a row is first read; each row is decoded at most once and
// can then be read any number of times, from any goroutine.
package result

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/grafana/cqlexec/pkg/codec"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/driver"
	"github.com/grafana/cqlexec/pkg/statement"
)

// ResultSet is the outcome of one execution.
type ResultSet struct {
	columns    []cqltypes.ColumnSpec
	byName     map[string]int
	rows       []*Row
	tracingID  []byte
	warnings   []string
	reprepared *statement.Prepared
}

// Option configures a ResultSet built by New.
type Option func(*ResultSet)

// WithReprepared records the statement that replaced a prepared statement
// the server no longer accepted.
func WithReprepared(p *statement.Prepared) Option {
	return func(r *ResultSet) { r.reprepared = p }
}

func New(resp driver.Response, opts ...Option) *ResultSet {
	r := &ResultSet{
		columns:   resp.Columns,
		byName:    make(map[string]int, len(resp.Columns)),
		rows:      make([]*Row, len(resp.Rows)),
		tracingID: resp.TracingID,
		warnings:  resp.Warnings,
	}
	for i := len(resp.Columns) - 1; i >= 0; i-- {
		// The first of several columns sharing a name wins.
		r.byName[resp.Columns[i].Name] = i
	}
	for i, cells := range resp.Rows {
		r.rows[i] = &Row{set: r, cells: cells}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *ResultSet) Columns() []cqltypes.ColumnSpec { return r.columns }
func (r *ResultSet) Len() int                       { return len(r.rows) }
func (r *ResultSet) IsEmpty() bool                  { return len(r.rows) == 0 }
func (r *ResultSet) Warnings() []string             { return r.warnings }

// Reprepared returns the statement the executor prepared again after a
// schema change, or nil. Callers caching prepared statements should replace
// their entry with it.
func (r *ResultSet) Reprepared() *statement.Prepared { return r.reprepared }

// TracingID is the tracing session id in uuid form, or "" when tracing was
// not requested.
func (r *ResultSet) TracingID() string {
	if len(r.tracingID) == 0 {
		return ""
	}
	id, err := uuid.FromBytes(r.tracingID)
	if err != nil {
		return fmt.Sprintf("%x", r.tracingID)
	}
	return id.String()
}

// Rows returns every row. Rows decode when first read.
func (r *ResultSet) Rows() []*Row {
	return r.rows
}

// Row returns the i-th row.
func (r *ResultSet) Row(i int) (*Row, error) {
	if i < 0 || i >= len(r.rows) {
		return nil, errors.Errorf("row index %d out of range", i)
	}
	return r.rows[i], nil
}

// First returns the first row, or nil if there are none.
func (r *ResultSet) First() (*Row, error) {
	if len(r.rows) == 0 {
		return nil, nil
	}
	row := r.rows[0]
	if err := row.decode(); err != nil {
		return nil, err
	}
	return row, nil
}

// Single returns the only row and fails unless there is exactly one.
func (r *ResultSet) Single() (*Row, error) {
	if len(r.rows) != 1 {
		return nil, errors.Errorf("expected single row, got %d rows", len(r.rows))
	}
	return r.First()
}

// Maps decodes every row into a mapping from column name to value.
func (r *ResultSet) Maps() ([]map[string]cqltypes.Value, error) {
	out := make([]map[string]cqltypes.Value, len(r.rows))
	for i, row := range r.rows {
		m, err := row.Map()
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out[i] = m
	}
	return out, nil
}

// Iterator returns a cursor positioned before the first row. Every call
// starts over.
func (r *ResultSet) Iterator() *Iterator {
	return &Iterator{set: r, pos: -1}
}

func (r *ResultSet) String() string {
	return fmt.Sprintf("ResultSet(rows=%d, columns=%d)", len(r.rows), len(r.columns))
}

// Iterator walks a ResultSet.
//
//	it := rs.Iterator()
//	for it.Next() {
//		use(it.Row())
//	}
//	err := it.Err()
type Iterator struct {
	set *ResultSet
	pos int
	err error
}

// Next advances to the next row and decodes it. It returns false at the end
// or when a row fails to decode.
func (it *Iterator) Next() bool {
	if it.err != nil || it.pos+1 >= len(it.set.rows) {
		return false
	}
	it.pos++
	if err := it.set.rows[it.pos].decode(); err != nil {
		it.err = errors.Wrapf(err, "row %d", it.pos)
		return false
	}
	return true
}

func (it *Iterator) Row() *Row {
	if it.pos < 0 || it.pos >= len(it.set.rows) {
		return nil
	}
	return it.set.rows[it.pos]
}

func (it *Iterator) Err() error { return it.err }

// Row is one row of a ResultSet.
type Row struct {
	set   *ResultSet
	cells [][]byte

	once   sync.Once
	values []cqltypes.Value
	err    error
}

func (r *Row) decode() error {
	r.once.Do(func() {
		cols := r.set.columns
		if len(r.cells) != len(cols) {
			r.err = cqlerrors.Arity(len(cols), len(r.cells))
			return
		}
		values := make([]cqltypes.Value, len(cols))
		for i, col := range cols {
			v, err := codec.Decode(r.cells[i], col.Type)
			if err != nil {
				r.err = cqlerrors.Attribute(err, col.Name, i)
				return
			}
			values[i] = v
		}
		r.values = values
	})
	return r.err
}

func (r *Row) Len() int                       { return len(r.cells) }
func (r *Row) Columns() []cqltypes.ColumnSpec { return r.set.columns }

// Get returns the value at index i. Negative indices count from the end,
// so -1 is the last column.
func (r *Row) Get(i int) (cqltypes.Value, error) {
	if err := r.decode(); err != nil {
		return cqltypes.Value{}, err
	}
	idx := i
	if idx < 0 {
		idx += len(r.values)
	}
	if idx < 0 || idx >= len(r.values) {
		return cqltypes.Value{}, errors.Errorf("column index %d out of range", i)
	}
	return r.values[idx], nil
}

// ByName returns the value of the named column. Names are case-sensitive.
func (r *Row) ByName(name string) (cqltypes.Value, error) {
	i, ok := r.set.byName[name]
	if !ok {
		return cqltypes.Value{}, errors.Errorf("no column named %q", name)
	}
	return r.Get(i)
}

// Values returns a copy of the row's values in column order.
func (r *Row) Values() ([]cqltypes.Value, error) {
	if err := r.decode(); err != nil {
		return nil, err
	}
	return append([]cqltypes.Value(nil), r.values...), nil
}

// Map returns the row keyed by column name.
func (r *Row) Map() (map[string]cqltypes.Value, error) {
	if err := r.decode(); err != nil {
		return nil, err
	}
	m := make(map[string]cqltypes.Value, len(r.values))
	for i, col := range r.set.columns {
		if _, dup := m[col.Name]; !dup {
			m[col.Name] = r.values[i]
		}
	}
	return m, nil
}

func (r *Row) String() string {
	return fmt.Sprintf("Row(columns=%d)", len(r.cells))
}
