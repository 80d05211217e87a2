package cfg

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaults checks whether `Defaults()` correctly sets values from flag defaults
func TestDefaults(t *testing.T) {
	var d Data
	err := Load(&d, Defaults(newFlagSet()))
	require.NoError(t, err)
	assert.Equal(t, Data{
		Verbose: false,
		Server: Server{
			Port:    80,
			Timeout: 60 * time.Second,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "KEY",
		},
	}, d)
}

// TestFlagsMerge checks that defaults and user-supplied values merge correctly
func TestFlagsMerge(t *testing.T) {
	fs := newFlagSet()
	var c Data
	err := Load(&c,
		Defaults(fs),
		Flags(fs, []string{"-verbose", "-server.timeout=12h"}),
	)
	require.NoError(t, err)
	assert.Equal(t, Data{
		Verbose: true,
		Server: Server{
			Port:    80,
			Timeout: 12 * time.Hour,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "KEY",
		},
	}, c)
}

func TestDefaultsNeedRegisterer(t *testing.T) {
	var n int
	err := Load(&n, Defaults(newFlagSet()))
	require.EqualError(t, err, "config source 0: *int does not register flags")
}

func TestLoadNeedsSources(t *testing.T) {
	var c Data
	require.EqualError(t, Load(&c), "no config sources")
}

func TestUnknownFlag(t *testing.T) {
	fs := newFlagSet()
	fs.SetOutput(io.Discard)
	var c Data
	err := Load(&c, Defaults(fs), Flags(fs, []string{"-nope"}))
	require.Error(t, err)
}
