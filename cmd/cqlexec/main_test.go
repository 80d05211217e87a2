package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/driver"
	"github.com/grafana/cqlexec/pkg/driver/drivertest"
	"github.com/grafana/cqlexec/pkg/executor"
	"github.com/grafana/cqlexec/pkg/preparedcache"
)

const (
	insertUser = "INSERT INTO users (id, name) VALUES (?, ?)"
	selectUser = "SELECT id, name FROM users WHERE id = ?"
)

var userResult = drivertest.Columns("ks", "users", "id int", "name text")

func newSession(t *testing.T) (*executor.Session, *drivertest.Driver) {
	t.Helper()
	d := drivertest.New()
	d.Define(insertUser, drivertest.Columns("ks", "users", "id int", "name text"), nil)
	d.Define(selectUser, drivertest.Columns("ks", "users", "id int"), userResult)
	d.OnExecute(func(_ context.Context, req driver.ExecuteRequest) (driver.Response, error) {
		if req.Text != selectUser {
			return driver.Response{}, nil
		}
		return driver.Response{
			Columns: userResult,
			Rows:    drivertest.Rows(userResult, []cqltypes.Value{cqltypes.Int(1), cqltypes.Text("ann")}),
		}, nil
	})
	s := executor.New(executor.Config{}, d, log.NewNopLogger(), nil)
	t.Cleanup(s.Close)
	return s, d
}

func baseConfig() Config {
	return Config{
		Output:        "raw",
		NoColor:       true,
		Repeat:        1,
		PreparedCache: preparedcache.Config{Enabled: true, MaxEntries: 10},
	}
}

func TestExecuteStatement(t *testing.T) {
	s, d := newSession(t)
	config := baseConfig()
	config.Execute = selectUser
	config.Values = "[1]"
	config.Repeat = 3

	var buf bytes.Buffer
	require.NoError(t, execute(context.Background(), config, s, prometheus.NewRegistry(), &buf))
	require.Equal(t, "1\tann\n", buf.String())
	require.Equal(t, int64(1), d.PrepareCalls.Load())
	require.Equal(t, int64(3), d.ExecuteCalls.Load())
}

func TestExecuteWithoutValuesIsNotPrepared(t *testing.T) {
	s, d := newSession(t)
	config := baseConfig()
	config.Execute = "TRUNCATE users"

	var buf bytes.Buffer
	require.NoError(t, execute(context.Background(), config, s, prometheus.NewRegistry(), &buf))
	require.Empty(t, buf.String())
	require.Zero(t, d.PrepareCalls.Load())
	require.Equal(t, "TRUNCATE users", d.Executed()[0].Text)
}

func TestExecuteBatchFile(t *testing.T) {
	s, d := newSession(t)
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
type: unlogged
statements:
  - query: "`+insertUser+`"
    values: [1, ann]
  - query: "`+insertUser+`"
    values: [2, bob]
`), 0o600))

	config := baseConfig()
	config.BatchFile = path
	require.NoError(t, execute(context.Background(), config, s, prometheus.NewRegistry(), &bytes.Buffer{}))
	require.Len(t, d.Batches(), 1)
	require.Len(t, d.Batches()[0].Entries, 2)
}

func TestUseKeyspace(t *testing.T) {
	s, d := newSession(t)
	config := baseConfig()
	config.Execute = "TRUNCATE users"
	config.Keyspace = `"MyKeyspace"`

	require.NoError(t, execute(context.Background(), config, s, prometheus.NewRegistry(), &bytes.Buffer{}))
	require.Equal(t, []string{"MyKeyspace"}, d.Keyspaces())
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{"neither", func(*Config) {}, "exactly one of -e and -batch.file is required"},
		{"both", func(c *Config) { c.Execute, c.BatchFile = "SELECT 1", "b.yaml" }, "exactly one of -e and -batch.file is required"},
		{"values with batch", func(c *Config) { c.BatchFile, c.Values = "b.yaml", "[1]" }, "-values cannot be combined with -batch.file"},
		{"repeat", func(c *Config) { c.Execute, c.Repeat = "SELECT 1", 0 }, "-repeat must be at least 1, got 0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := baseConfig()
			require.NoError(t, c.Log.Level.Set("info"))
			c.Cassandra.Addresses = "localhost"
			tc.modify(&c)
			require.EqualError(t, c.Validate(), tc.err)
		})
	}
}

func TestUnquote(t *testing.T) {
	name, quoted := unquote(`"Ks"`)
	require.Equal(t, "Ks", name)
	require.True(t, quoted)

	name, quoted = unquote("ks")
	require.Equal(t, "ks", name)
	require.False(t, quoted)
}

func TestDumpConfig(t *testing.T) {
	c := baseConfig()
	c.Cassandra.Addresses = "cassandra-0,cassandra-1"
	c.Cassandra.Password = flagext.SecretWithValue("secret")

	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, c))
	require.Contains(t, buf.String(), "addresses: cassandra-0,cassandra-1")
	require.Contains(t, buf.String(), "********")
	require.NotContains(t, buf.String(), "secret")
	require.NotContains(t, buf.String(), "repeat")
	require.Equal(t, "secret", c.Cassandra.Password.String())
}
