package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v2"

	"github.com/grafana/cqlexec/pkg/cfg"
	"github.com/grafana/cqlexec/pkg/driver/gocqldriver"
	"github.com/grafana/cqlexec/pkg/executor"
	"github.com/grafana/cqlexec/pkg/output"
	"github.com/grafana/cqlexec/pkg/preparedcache"
	"github.com/grafana/cqlexec/pkg/result"
	"github.com/grafana/cqlexec/pkg/statement"
	util_log "github.com/grafana/cqlexec/pkg/util/log"
)

// Config is the root config for cqlexec.
type Config struct {
	Log           util_log.Config      `yaml:"log"`
	Cassandra     gocqldriver.Config   `yaml:"cassandra"`
	Executor      executor.Config      `yaml:"executor"`
	PreparedCache preparedcache.Config `yaml:"prepared_cache"`

	Output  string `yaml:"output"`
	NoColor bool   `yaml:"no_color"`

	Execute    string  `yaml:"-"`
	Values     string  `yaml:"-"`
	BatchFile  string  `yaml:"-"`
	Keyspace   string  `yaml:"-"`
	Repeat     int     `yaml:"-"`
	RepeatRate float64 `yaml:"-"`
	Trace      bool    `yaml:"-"`

	PrintVersion bool `yaml:"-"`
	PrintConfig  bool `yaml:"-"`
	VerifyConfig bool `yaml:"-"`
}

// RegisterFlags registers flag.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Log.RegisterFlags(f)
	c.Cassandra.RegisterFlags(f)
	c.Executor.RegisterFlags(f)
	c.PreparedCache.RegisterFlags(f)

	f.StringVar(&c.Output, "output", "table", "Output format. Valid formats: [table, jsonl, raw]")
	f.BoolVar(&c.NoColor, "no-color", false, "Disable colored output.")

	f.StringVar(&c.Execute, "e", "", "Statement to execute.")
	f.StringVar(&c.Values, "values", "", `Values to bind, as a JSON array for positional markers or a JSON object for named markers, e.g. '[1, "ann"]'.`)
	f.StringVar(&c.BatchFile, "batch.file", "", "YAML file describing a batch to execute instead of -e.")
	f.StringVar(&c.Keyspace, "use", "", "Switch to this keyspace before executing. Quote the name to keep its case.")
	f.IntVar(&c.Repeat, "repeat", 1, "Execute the statement this many times; only the last result is printed.")
	f.Float64Var(&c.RepeatRate, "repeat.rate", 0, "Maximum executions per second when repeating. 0 means unlimited.")
	f.BoolVar(&c.Trace, "trace", false, "Request server side tracing and print the tracing session id.")

	f.BoolVar(&c.PrintVersion, "version", false, "Print this builds version information")
	f.BoolVar(&c.PrintConfig, "print-config-stderr", false, "Dump the entire cqlexec config object to stderr")
	f.BoolVar(&c.VerifyConfig, "verify-config", false, "Verify config file and exits")
}

// Validate validates the config and returns an error if the validation
// doesn't pass
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return errors.Wrap(err, "invalid log config")
	}
	if err := c.Cassandra.Validate(); err != nil {
		return errors.Wrap(err, "invalid cassandra config")
	}
	if (c.Execute == "") == (c.BatchFile == "") {
		return errors.New("exactly one of -e and -batch.file is required")
	}
	if c.BatchFile != "" && c.Values != "" {
		return errors.New("-values cannot be combined with -batch.file")
	}
	if c.Repeat < 1 {
		return errors.Errorf("-repeat must be at least 1, got %d", c.Repeat)
	}
	if c.RepeatRate < 0 {
		return errors.Errorf("-repeat.rate must not be negative, got %v", c.RepeatRate)
	}
	return nil
}

func main() {
	var config Config
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	if err := cfg.Parse(&config, fs, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if config.PrintVersion {
		fmt.Println(version.Print("cqlexec"))
		os.Exit(0)
	}
	if config.PrintConfig {
		if err := dumpConfig(os.Stderr, config); err != nil {
			fmt.Fprintf(os.Stderr, "failed to print config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util_log.New(config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed creating logger: %v\n", err)
		os.Exit(1)
	}
	if config.VerifyConfig {
		level.Info(logger).Log("msg", "config is valid")
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		return start(ctx, config, logger, os.Stdout)
	}, func(error) {
		cancel()
	})
	if err := g.Run(); err != nil {
		level.Error(logger).Log("msg", "error running cqlexec", "err", err)
		os.Exit(1)
	}
}

// dumpConfig writes config as YAML. Secrets are masked by their own
// marshalling.
func dumpConfig(w io.Writer, config Config) error {
	out, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func start(ctx context.Context, config Config, logger log.Logger, w io.Writer) error {
	d, err := gocqldriver.New(config.Cassandra, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	session := executor.New(config.Executor, d, logger, prometheus.DefaultRegisterer)
	defer session.Close()

	return execute(ctx, config, session, prometheus.DefaultRegisterer, w)
}

// execute runs the statement or batch config asks for and prints its
// result to w.
func execute(ctx context.Context, config Config, session *executor.Session, reg prometheus.Registerer, w io.Writer) error {
	out, err := output.NewRowOutput(w, config.Output, &output.Options{ColoredOutput: !config.NoColor})
	if err != nil {
		return err
	}

	if config.Keyspace != "" {
		name, quoted := unquote(config.Keyspace)
		if err := session.UseKeyspace(ctx, name, quoted); err != nil {
			return err
		}
	}

	var override statement.Config
	if config.Trace {
		override = override.WithTracing(true)
	}

	var rs *result.ResultSet
	if config.BatchFile != "" {
		b, err := loadBatch(config.BatchFile)
		if err != nil {
			return err
		}
		rs, err = session.Batch(ctx, b, override)
		if err != nil {
			return err
		}
		return out.Format(rs)
	}

	values, err := parseValues(config.Values)
	if err != nil {
		return err
	}
	cache, err := preparedcache.New(config.PreparedCache, session, reg)
	if err != nil {
		return err
	}
	limit := rate.Inf
	if config.RepeatRate > 0 {
		limit = rate.Limit(config.RepeatRate)
	}
	limiter := rate.NewLimiter(limit, 1)
	for i := 0; i < config.Repeat; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if values == nil {
			rs, err = session.Execute(ctx, statement.Raw(config.Execute), nil, override)
		} else {
			rs, err = cache.Execute(ctx, config.Execute, values, override)
		}
		if err != nil {
			return err
		}
	}
	return out.Format(rs)
}

// unquote strips one pair of double quotes and reports whether there were
// any.
func unquote(name string) (string, bool) {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return name[1 : len(name)-1], true
	}
	return name, false
}
