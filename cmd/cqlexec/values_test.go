package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlexec/pkg/binding"
	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/statement"
)

func TestParseValues(t *testing.T) {
	src, err := parseValues("")
	require.NoError(t, err)
	require.Nil(t, src)

	src, err = parseValues(`[1, 2.5, "ann", null, [1, 2]]`)
	require.NoError(t, err)
	pos, ok := src.(binding.Positional)
	require.True(t, ok)
	require.Len(t, pos, 5)
	require.True(t, cqltypes.Equal(cqltypes.Int(1), pos[0]))
	require.True(t, cqltypes.Equal(cqltypes.Float(2.5), pos[1]))
	require.True(t, cqltypes.Equal(cqltypes.Text("ann"), pos[2]))
	require.True(t, pos[3].IsNull())
	require.True(t, cqltypes.Equal(cqltypes.List(cqltypes.Int(1), cqltypes.Int(2)), pos[4]))

	src, err = parseValues(`{"id": 7}`)
	require.NoError(t, err)
	named, ok := src.(binding.Named)
	require.True(t, ok)
	require.True(t, cqltypes.Equal(cqltypes.Int(7), named["id"]))

	_, err = parseValues(`"ann"`)
	require.EqualError(t, err, "values must be a list or a mapping, got string")

	_, err = parseValues(`[1,`)
	require.Error(t, err)
}

func TestParseBatch(t *testing.T) {
	b, err := parseBatch([]byte(`
type: counter
consistency: LOCAL_QUORUM
timestamp: 1700000000000000
statements:
  - query: UPDATE views SET n = n + ? WHERE page = ?
    values: [1, home]
  - query: UPDATE views SET n = n + :d WHERE page = :page
    values: {d: 2, page: about}
`))
	require.NoError(t, err)
	require.Equal(t, statement.Counter, b.Kind())
	require.Equal(t, 2, b.Len())
	require.Equal(t, statement.LocalQuorum, b.Config().Consistency())
	ts, ok := b.Config().Timestamp()
	require.True(t, ok)
	require.Equal(t, int64(1700000000000000), ts)
	require.IsType(t, binding.Positional{}, b.Values()[0])
	require.IsType(t, binding.Named{}, b.Values()[1])
	require.NoError(t, b.Validate())
}

func TestParseBatchErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
	}{
		{"empty", "type: logged\n"},
		{"unknown kind", "type: bulk\nstatements:\n  - query: INSERT INTO t (id) VALUES (1)\n"},
		{"unknown key", "statements:\n  - query: INSERT INTO t (id) VALUES (1)\n    params: [1]\n"},
		{"missing query", "statements:\n  - values: [1]\n"},
		{"non counter in counter batch", "type: counter\nstatements:\n  - query: INSERT INTO t (id) VALUES (1)\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseBatch([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}
