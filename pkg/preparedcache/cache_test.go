package preparedcache

import (
	"context"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlexec/pkg/binding"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/driver/drivertest"
	"github.com/grafana/cqlexec/pkg/executor"
	"github.com/grafana/cqlexec/pkg/statement"
)

const (
	selectA = "SELECT * FROM a WHERE id = ?"
	selectB = "SELECT * FROM b WHERE id = ?"
	selectC = "SELECT * FROM c WHERE id = ?"
)

func setup(t *testing.T, cfg Config) (*Cache, *drivertest.Driver, *prometheus.Registry) {
	t.Helper()
	d := drivertest.New()
	for _, text := range []string{selectA, selectB, selectC} {
		d.Define(text, drivertest.Columns("ks", "t", "id int"), drivertest.Columns("ks", "t", "id int"))
	}
	s := executor.New(executor.Config{}, d, log.NewNopLogger(), nil)
	reg := prometheus.NewPedanticRegistry()
	c, err := New(cfg, s, reg)
	require.NoError(t, err)
	return c, d, reg
}

func TestCacheHits(t *testing.T) {
	c, d, reg := setup(t, Config{Enabled: true, MaxEntries: 2})
	ctx := context.Background()

	p1, err := c.Prepare(ctx, selectA)
	require.NoError(t, err)
	p2, err := c.Prepare(ctx, selectA)
	require.NoError(t, err)
	require.Same(t, p1, p2)
	require.Equal(t, int64(1), d.PrepareCalls.Load())
	require.Equal(t, float64(2), testutil.ToFloat64(c.lookups))
	require.Equal(t, float64(1), testutil.ToFloat64(c.hits))

	_, err = c.Prepare(ctx, selectB)
	require.NoError(t, err)
	_, err = c.Prepare(ctx, selectC)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	require.Equal(t, float64(1), testutil.ToFloat64(c.evictions))

	n, err := testutil.GatherAndCount(reg, "cqlexec_prepared_cache_entries")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// selectA was evicted.
	_, err = c.Prepare(ctx, selectA)
	require.NoError(t, err)
	require.Equal(t, int64(4), d.PrepareCalls.Load())

	c.Invalidate(selectA)
	require.Equal(t, 1, c.Len())
}

func TestConcurrentMisses(t *testing.T) {
	c, d, _ := setup(t, Config{Enabled: true, MaxEntries: 10})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Prepare(context.Background(), selectA)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, d.PrepareCalls.Load(), int64(16))
	require.Equal(t, 1, c.Len())
}

func TestPrepareErrorsAreNotCached(t *testing.T) {
	c, d, _ := setup(t, Config{Enabled: true, MaxEntries: 10})
	for i := 0; i < 2; i++ {
		_, err := c.Prepare(context.Background(), "SELECT nope")
		require.ErrorIs(t, err, cqlerrors.ErrPrepare)
	}
	require.Equal(t, int64(2), d.PrepareCalls.Load())
	require.Zero(t, c.Len())
}

func TestDisabled(t *testing.T) {
	c, d, _ := setup(t, Config{Enabled: false})
	for i := 0; i < 3; i++ {
		_, err := c.Prepare(context.Background(), selectA)
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), d.PrepareCalls.Load())
	require.Zero(t, c.Len())
}

func TestExecuteReplacesRepreparedEntry(t *testing.T) {
	c, d, _ := setup(t, Config{Enabled: true, MaxEntries: 10})
	ctx := context.Background()

	before, err := c.Prepare(ctx, selectA)
	require.NoError(t, err)

	d.Define(selectA, drivertest.Columns("ks", "t", "id int"), drivertest.Columns("ks", "t", "id int", "v text"))
	rs, err := c.Execute(ctx, selectA, binding.Positional{cqltypes.Int(1)}, statement.Config{})
	require.NoError(t, err)
	require.NotNil(t, rs.Reprepared())

	after, err := c.Prepare(ctx, selectA)
	require.NoError(t, err)
	require.NotEqual(t, before.ID(), after.ID())
	require.Len(t, after.ResultColumns(), 2)
	require.Equal(t, int64(2), d.PrepareCalls.Load())
}
