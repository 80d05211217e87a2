// Package log builds the process logger.
package log

import (
	"flag"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/pkg/errors"
)

// Config selects the level and format of the process logger.
type Config struct {
	Level  dslog.Level  `yaml:"level"`
	Format dslog.Format `yaml:"format"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Level.RegisterFlags(f)
	cfg.Format.RegisterFlags(f)
}

func (cfg *Config) Validate() error {
	if cfg.Level.Option == nil {
		return errors.New("log level not set")
	}
	return nil
}

// New returns a logger writing to stderr.
func New(cfg Config) (log.Logger, error) {
	return NewWriter(cfg, os.Stderr)
}

// NewWriter returns a logger writing to w, stamped with time and caller.
func NewWriter(cfg Config, w io.Writer) (log.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var logger log.Logger
	if cfg.Format.String() == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	logger = level.NewFilter(logger, cfg.Level.Option)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(3)), nil
}
