package binding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlexec/pkg/codec"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
)

var insertColumns = []cqltypes.ColumnSpec{
	{Keyspace: "ks", Table: "t", Name: "id", Position: 0, Type: cqltypes.TypeInt},
	{Keyspace: "ks", Table: "t", Name: "name", Position: 1, Type: cqltypes.TypeText},
}

func TestBindNamed(t *testing.T) {
	params, err := Bind(insertColumns, Named{
		"id":    cqltypes.Int(1),
		"name":  cqltypes.Text("a"),
		"extra": cqltypes.Text("ignored"),
	})
	require.NoError(t, err)
	require.Len(t, params, 2)
	require.Equal(t, []byte{0, 0, 0, 1}, params[0])
	require.Equal(t, []byte("a"), params[1])
}

func TestBindNamedMissing(t *testing.T) {
	for _, tc := range []struct {
		name   string
		values Named
		column string
		pos    int
	}{
		{"first missing", Named{"name": cqltypes.Text("a")}, "id", 0},
		{"second missing", Named{"id": cqltypes.Int(1)}, "name", 1},
		{"case sensitive", Named{"ID": cqltypes.Int(1), "name": cqltypes.Text("a")}, "id", 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params, err := Bind(insertColumns, tc.values)
			require.Nil(t, params)
			require.ErrorIs(t, err, cqlerrors.ErrMissingParameter)
			e := cqlerrors.As(err)
			require.Equal(t, tc.column, e.Column)
			require.Equal(t, tc.pos, e.Position)
		})
	}
}

func TestBindNullIsNotMissing(t *testing.T) {
	params, err := Bind(insertColumns, Named{"id": cqltypes.Int(1), "name": cqltypes.Null()})
	require.NoError(t, err)
	require.Nil(t, params[1])
}

func TestBindPositionalArity(t *testing.T) {
	for _, values := range []Positional{
		nil,
		{cqltypes.Int(1)},
		{cqltypes.Int(1), cqltypes.Text("a"), cqltypes.Text("b")},
	} {
		params, err := Bind(insertColumns, values)
		require.Nil(t, params)
		require.ErrorIs(t, err, cqlerrors.ErrArity)
		require.Contains(t, err.Error(), "expected 2 values")
	}

	params, err := Bind(insertColumns, Positional{cqltypes.Int(7), cqltypes.Text("b")})
	require.NoError(t, err)
	require.Len(t, params, 2)

	_, err = Bind(insertColumns, nil)
	require.ErrorIs(t, err, cqlerrors.ErrArity)

	params, err = Bind(nil, nil)
	require.NoError(t, err)
	require.Empty(t, params)
}

func TestBindAttributesCodecErrors(t *testing.T) {
	_, err := Bind(insertColumns, Positional{cqltypes.Int(1), cqltypes.Int(2)})
	require.ErrorIs(t, err, cqlerrors.ErrTypeMismatch)
	e := cqlerrors.As(err)
	require.Equal(t, "name", e.Column)
	require.Equal(t, 1, e.Position)
	require.Contains(t, err.Error(), "column name, position 1")

	_, err = Bind(insertColumns, Named{"id": cqltypes.Int(1 << 40), "name": cqltypes.Text("a")})
	require.ErrorIs(t, err, cqlerrors.ErrRange)
	require.Equal(t, "id", cqlerrors.As(err).Column)
}

func TestBindCounterDelta(t *testing.T) {
	cols := []cqltypes.ColumnSpec{
		{Name: "hits", Type: cqltypes.TypeCounter},
		{Name: "page", Type: cqltypes.TypeText},
	}
	params, err := Bind(cols, Positional{cqltypes.Int(3), cqltypes.Text("/")})
	require.NoError(t, err)
	delta, err := codec.Decode(params[0], cqltypes.TypeCounter)
	require.NoError(t, err)
	require.Equal(t, int64(3), delta.Int())

	_, err = Bind(cols, Positional{cqltypes.Null(), cqltypes.Text("/")})
	require.ErrorIs(t, err, cqlerrors.ErrUnsupportedOperation)
	require.Equal(t, "hits", cqlerrors.As(err).Column)
}

func TestFromNatives(t *testing.T) {
	named, err := NamedFrom(map[string]interface{}{"id": 1, "name": "a"})
	require.NoError(t, err)
	params, err := Bind(insertColumns, named)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), params[1])

	pos, err := PositionalFrom(1, "a")
	require.NoError(t, err)
	params, err = Bind(insertColumns, pos)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 1}, params[0])

	_, err = NamedFrom(map[string]interface{}{"id": struct{}{}})
	require.ErrorIs(t, err, cqlerrors.ErrTypeMismatch)
	require.Equal(t, "id", cqlerrors.As(err).Column)
}
