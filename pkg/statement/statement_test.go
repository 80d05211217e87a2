package statement

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/grafana/cqlexec/pkg/binding"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
)

func TestParseConsistency(t *testing.T) {
	for in, want := range map[string]Consistency{
		"any":          Any,
		"ONE":          One,
		"two":          Two,
		"Three":        Three,
		"quorum":       Quorum,
		"all":          All,
		"local_quorum": LocalQuorum,
		"LOCALQUORUM":  LocalQuorum,
		"each_quorum":  EachQuorum,
		"eachquorum":   EachQuorum,
		"LOCAL_ONE":    LocalOne,
		"localone":     LocalOne,
	} {
		got, err := ParseConsistency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseConsistency("most")
	require.EqualError(t, err, "invalid consistency level: most")

	for in, want := range map[string]SerialConsistency{
		"serial":       Serial,
		"LOCAL_SERIAL": LocalSerial,
		"localserial":  LocalSerial,
	} {
		got, err := ParseSerialConsistency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err = ParseSerialConsistency("quorum")
	require.Error(t, err)
}

func TestConsistencyFlagAndYAML(t *testing.T) {
	var c struct {
		Consistency Consistency       `yaml:"consistency"`
		Serial      SerialConsistency `yaml:"serial_consistency"`
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&c.Consistency, "consistency", "")
	fs.Var(&c.Serial, "serial-consistency", "")
	require.NoError(t, fs.Parse([]string{"-consistency=local_one", "-serial-consistency=serial"}))
	require.Equal(t, LocalOne, c.Consistency)
	require.Equal(t, Serial, c.Serial)

	require.NoError(t, yaml.Unmarshal([]byte("consistency: QUORUM\nserial_consistency: local_serial\n"), &c))
	require.Equal(t, Quorum, c.Consistency)
	require.Equal(t, LocalSerial, c.Serial)

	out, err := yaml.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, "consistency: QUORUM\nserial_consistency: LOCAL_SERIAL\n", string(out))

	require.Error(t, yaml.Unmarshal([]byte("consistency: nope\n"), &c))
}

func TestConfigCopyOnWrite(t *testing.T) {
	base := Config{}.WithConsistency(Quorum).WithPageSize(100)
	a := base.WithTracing(true)
	b := base.WithConsistency(One).WithTimeout(time.Second)

	require.Equal(t, Quorum, base.Consistency())
	require.False(t, base.Tracing())
	require.Equal(t, time.Duration(0), base.Timeout())

	require.True(t, a.Tracing())
	require.Equal(t, Quorum, a.Consistency())
	require.Equal(t, One, b.Consistency())
	require.Equal(t, time.Second, b.Timeout())
	require.Equal(t, 100, b.PageSize())

	_, ok := base.Timestamp()
	require.False(t, ok)
	ts, ok := base.WithTimestamp(-5).Timestamp()
	require.True(t, ok)
	require.Equal(t, int64(-5), ts)

	require.Equal(t, 0, base.WithPageSize(-1).PageSize())
}

func TestConfigMerge(t *testing.T) {
	base := Config{}.WithConsistency(Quorum).WithPageSize(100).WithIdempotent(true).WithTracing(true)

	merged := base.Merge(Config{})
	require.Equal(t, base, merged)

	merged = base.Merge(Config{}.WithConsistency(One).WithIdempotent(false).WithTimestamp(42).WithSerialConsistency(LocalSerial))
	require.Equal(t, One, merged.Consistency())
	require.Equal(t, LocalSerial, merged.SerialConsistency())
	require.Equal(t, 100, merged.PageSize())
	require.False(t, merged.Idempotent())
	require.True(t, merged.Tracing())
	ts, ok := merged.Timestamp()
	require.True(t, ok)
	require.Equal(t, int64(42), ts)

	require.Equal(t, "{consistency=ONE serial_consistency=LOCAL_SERIAL page_size=100 timestamp=42 tracing=true}", merged.String())

	defaults := Config{}.WithPageSize(5000).WithTimeout(time.Second)
	merged = defaults.Merge(Config{}.WithConsistency(One))
	require.Equal(t, 5000, merged.PageSize())
	require.Equal(t, time.Second, merged.Timeout())
	merged = defaults.Merge(Config{}.WithPageSize(0).WithTimeout(0))
	require.Equal(t, 0, merged.PageSize())
	require.Equal(t, time.Duration(0), merged.Timeout())
}

func TestStatements(t *testing.T) {
	raw := Raw("SELECT * FROM t")
	require.Equal(t, "SELECT * FROM t", raw.Text())
	require.Equal(t, Config{}, raw.Config())

	q := NewConfigured("SELECT * FROM t", Config{})
	q2 := q.WithConsistency(All).WithIdempotent(true).WithPageSize(10)
	require.False(t, q.IsIdempotent())
	require.True(t, q2.IsIdempotent())
	require.Equal(t, All, q2.Config().Consistency())
	require.Equal(t, ConsistencyUnset, q.Config().Consistency())

	cols := []cqltypes.ColumnSpec{{Name: "id", Type: cqltypes.TypeInt}}
	p := NewPrepared([]byte{1}, "SELECT * FROM t WHERE id = ?", cols, nil, Config{})
	p2 := p.WithSerialConsistency(Serial).WithTimestamp(7).WithTracing(true)
	require.NotSame(t, p, p2)
	require.Equal(t, SerialUnset, p.Config().SerialConsistency())
	require.Equal(t, Serial, p2.Config().SerialConsistency())
	require.Equal(t, p.ID(), p2.ID())
	require.Equal(t, p.BindColumns(), p2.BindColumns())
	require.False(t, p.IsCounterUpdate())

	re := p2.Reprepared([]byte{2}, cols, cols)
	require.Equal(t, []byte{2}, re.ID())
	require.Equal(t, p2.Config(), re.Config())
	require.Equal(t, p.Text(), re.Text())
}

func TestParseBatchKind(t *testing.T) {
	for in, want := range map[string]BatchKind{"logged": Logged, "UNLOGGED": Unlogged, "Counter": Counter} {
		got, err := ParseBatchKind(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, want.String(), got.String())
	}
	_, err := ParseBatchKind("atomic")
	require.Error(t, err)
}

func TestCounterBatch(t *testing.T) {
	b := NewBatch(Counter)

	require.NoError(t, b.Append(Raw("UPDATE page_views SET views = views + 1 WHERE page = ?"), binding.Positional{cqltypes.Text("/")}))
	require.NoError(t, b.AppendStatement(NewConfigured(`update "Stats" set "Hits"="Hits" - ? where id = ?`, Config{})))

	counterPrep := NewPrepared([]byte{1}, "UPDATE c SET n = n + ? WHERE k = ?", []cqltypes.ColumnSpec{
		{Name: "n", Type: cqltypes.TypeCounter},
		{Name: "k", Type: cqltypes.TypeText},
	}, nil, Config{})
	require.NoError(t, b.AppendStatement(counterPrep))

	for _, s := range []Statement{
		Raw("INSERT INTO t (id) VALUES (1)"),
		Raw("UPDATE t SET name = 'x' WHERE id = 1"),
		NewPrepared([]byte{2}, "UPDATE t SET name = ? WHERE id = ?", []cqltypes.ColumnSpec{
			{Name: "name", Type: cqltypes.TypeText},
			{Name: "id", Type: cqltypes.TypeInt},
		}, nil, Config{}),
	} {
		err := b.AppendStatement(s)
		require.ErrorIs(t, err, cqlerrors.ErrUnsupportedOperation, s.Text())
	}
	require.Equal(t, 3, b.Len())
	require.Equal(t, "Batch(statements=3)", b.String())
}

func TestIsCounterUpdate(t *testing.T) {
	pageKey := []cqltypes.ColumnSpec{{Name: "page", Type: cqltypes.TypeText}}
	tagsAppend := []cqltypes.ColumnSpec{
		{Name: "tags", Type: cqltypes.ListOf(cqltypes.TypeText)},
		{Name: "id", Type: cqltypes.TypeInt},
	}
	for _, tc := range []struct {
		stmt Statement
		want bool
	}{
		{Raw("UPDATE views SET n = n + 1 WHERE page = '/'"), true},
		{Raw("UPDATE views SET n = n - 12"), true},
		{Raw("UPDATE views SET n = n + :delta WHERE page = :page"), true},
		{Raw("UPDATE t SET tags = tags + ['a'] WHERE id = 1"), false},
		{Raw("UPDATE t SET s = s + {'a'} WHERE id = 1"), false},
		{Raw("UPDATE t SET m = m + {'k': 1} WHERE id = 1"), false},
		{Raw("UPDATE t SET n = n + 1abc WHERE id = 1"), false},
		{NewPrepared([]byte{1}, "UPDATE views SET n = n + 1 WHERE page = ?", pageKey, nil, Config{}), true},
		{NewPrepared([]byte{2}, "UPDATE t SET tags = tags + ? WHERE id = ?", tagsAppend, nil, Config{}), false},
		{NewPrepared([]byte{3}, "UPDATE t SET tags = tags + ['a'] WHERE id = ?", tagsAppend[1:], nil, Config{}), false},
	} {
		assert.Equal(t, tc.want, IsCounterUpdate(tc.stmt), tc.stmt.Text())
	}

	b := NewBatch(Counter)
	require.NoError(t, b.AppendStatement(NewPrepared([]byte{1}, "UPDATE views SET n = n + 1 WHERE page = ?", pageKey, nil, Config{})))
	require.ErrorIs(t, b.AppendStatement(Raw("UPDATE t SET tags = tags + ['a'] WHERE id = 1")), cqlerrors.ErrUnsupportedOperation)
	require.ErrorIs(t, b.AppendStatement(Raw("UPDATE t SET s = s + {'a'} WHERE id = 1")), cqlerrors.ErrUnsupportedOperation)
	require.Equal(t, 1, b.Len())
}

func TestBatchValidate(t *testing.T) {
	b := NewBatch(Logged)
	require.NoError(t, b.Validate())

	require.NoError(t, b.AppendStatement(Raw("INSERT INTO t (id) VALUES (?)")))
	require.NoError(t, b.AppendStatement(Raw("INSERT INTO t (id) VALUES (?)")))
	b.AppendValues(binding.Positional{cqltypes.Int(1)})
	require.ErrorIs(t, b.Validate(), cqlerrors.ErrArity)

	b.AppendValues(binding.Positional{cqltypes.Int(2)})
	require.NoError(t, b.Validate())

	// Non-counter batches take any statement.
	require.NoError(t, b.Append(Raw("UPDATE c SET n = n + 1 WHERE k = 'a'"), nil))
	require.Equal(t, 3, b.Len())
}

func TestBatchWithConfigCopies(t *testing.T) {
	b := NewBatch(Unlogged)
	require.NoError(t, b.Append(Raw("INSERT INTO t (id) VALUES (1)"), nil))

	b2 := b.WithConsistency(Quorum).WithTimestamp(1).WithIdempotent(true)
	require.NoError(t, b2.Append(Raw("INSERT INTO t (id) VALUES (2)"), nil))

	require.Equal(t, 1, b.Len())
	require.Equal(t, 2, b2.Len())
	require.Equal(t, ConsistencyUnset, b.Config().Consistency())
	require.Equal(t, Quorum, b2.Config().Consistency())
	require.True(t, b2.IsIdempotent())
	require.Equal(t, Unlogged, b2.Kind())
}
