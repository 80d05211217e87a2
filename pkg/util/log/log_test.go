package log

import (
	"bytes"
	"flag"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func newConfig(t *testing.T, args ...string) Config {
	t.Helper()
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cfg
}

func TestLevelFilter(t *testing.T) {
	testCases := []struct {
		level    string
		expected []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewWriter(newConfig(t, "-log.level="+tc.level), &buf)
			require.NoError(t, err)

			level.Debug(logger).Log("msg", "m")
			level.Info(logger).Log("msg", "m")
			level.Warn(logger).Log("msg", "m")
			level.Error(logger).Log("msg", "m")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				for _, field := range strings.Fields(line) {
					if lvl, ok := strings.CutPrefix(field, "level="); ok {
						got = append(got, lvl)
					}
				}
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := newConfig(t)
	assert.Equal(t, "info", cfg.Level.String())
	assert.Equal(t, "logfmt", cfg.Format.String())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(newConfig(t, "-log.format=json"), &buf)
	require.NoError(t, err)
	level.Info(logger).Log("msg", "re-preparing statement", "statement", "SELECT * FROM users")

	var line map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "SELECT * FROM users", line["statement"])
	assert.Contains(t, line, "ts")
	assert.Contains(t, line["caller"], "log_test.go")
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewWriter(Config{}, &bytes.Buffer{})
	assert.EqualError(t, err, "log level not set")

	cfg := newConfig(t)
	err = yaml.Unmarshal([]byte("level: verbose\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unrecognized log level "verbose"`)

	err = yaml.Unmarshal([]byte("format: xml\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unrecognized log format "xml"`)

	require.NoError(t, yaml.Unmarshal([]byte("level: debug\nformat: json\n"), &cfg))
	assert.Equal(t, "debug", cfg.Level.String())
	assert.Equal(t, "json", cfg.Format.String())
}
