// Package binding resolves caller supplied values against the bind markers
// of a statement and encodes them for dispatch.
package binding

import (
	"github.com/pkg/errors"

	"github.com/grafana/cqlexec/pkg/codec"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
)

// Source is a set of values to bind: either Named or Positional.
type Source interface {
	// Len is the number of values supplied.
	Len() int
	lookup(i int, col cqltypes.ColumnSpec) (cqltypes.Value, bool)
}

// Named binds values by bind marker name. Names are case sensitive and keys
// that match no marker are ignored.
type Named map[string]cqltypes.Value

func (n Named) Len() int { return len(n) }

func (n Named) lookup(_ int, col cqltypes.ColumnSpec) (cqltypes.Value, bool) {
	v, ok := n[col.Name]
	return v, ok
}

// Positional binds values to markers in order. Its length must match the
// number of markers exactly.
type Positional []cqltypes.Value

func (p Positional) Len() int { return len(p) }

func (p Positional) lookup(i int, _ cqltypes.ColumnSpec) (cqltypes.Value, bool) {
	return p[i], true
}

// NamedFrom converts plain Go values, for example decoded JSON or YAML, into
// a Named source.
func NamedFrom(m map[string]interface{}) (Named, error) {
	out := make(Named, len(m))
	for k, x := range m {
		v, err := cqltypes.FromNative(x)
		if err != nil {
			return nil, errors.Wrapf(cqlerrors.TypeMismatchf("%v", err).WithColumn(k, cqlerrors.NoPosition), "converting %q", k)
		}
		out[k] = v
	}
	return out, nil
}

// PositionalFrom converts plain Go values into a Positional source.
func PositionalFrom(xs ...interface{}) (Positional, error) {
	out := make(Positional, len(xs))
	for i, x := range xs {
		v, err := cqltypes.FromNative(x)
		if err != nil {
			return nil, errors.Wrapf(cqlerrors.TypeMismatchf("%v", err).WithColumn("", i), "converting value %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// Bind encodes one value per column. It fails before producing any output
// if a positional source has the wrong arity or a named source lacks a
// marker. Every encoding error is attributed to its column.
//
// Markers of counter type take the signed delta of a counter update.
func Bind(columns []cqltypes.ColumnSpec, values Source) ([][]byte, error) {
	if values == nil {
		values = Positional(nil)
	}
	if _, ok := values.(Positional); ok && values.Len() != len(columns) {
		return nil, cqlerrors.Arity(len(columns), values.Len())
	}

	resolved := make([]cqltypes.Value, len(columns))
	for i, col := range columns {
		v, ok := values.lookup(i, col)
		if !ok {
			return nil, cqlerrors.MissingParameter(col.Name, i)
		}
		resolved[i] = v
	}

	out := make([][]byte, len(columns))
	for i, col := range columns {
		var (
			b   []byte
			err error
		)
		if col.Type.Tag() == cqltypes.TagCounter {
			b, err = codec.EncodeCounterDelta(resolved[i])
		} else {
			b, err = codec.Encode(resolved[i], col.Type)
		}
		if err != nil {
			return nil, cqlerrors.Attribute(err, col.Name, i)
		}
		out[i] = b
	}
	return out, nil
}
