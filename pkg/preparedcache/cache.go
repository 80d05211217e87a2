// Package preparedcache keeps prepared statements by text so that each text
// is prepared once per process rather than once per execution.
package preparedcache

import (
	"context"
	"flag"

	lru "github.com/hashicorp/golang-lru/v2"
	ot "github.com/opentracing/opentracing-go"
	otlog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/grafana/cqlexec/pkg/binding"
	"github.com/grafana/cqlexec/pkg/result"
	"github.com/grafana/cqlexec/pkg/statement"
)

// Config for a Cache.
type Config struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&cfg.Enabled, "prepared-cache.enabled", true, "Cache prepared statements by statement text.")
	f.IntVar(&cfg.MaxEntries, "prepared-cache.max-entries", 1000, "Maximum number of prepared statements kept in the cache.")
}

// Executor prepares and runs statements; *executor.Session implements it.
type Executor interface {
	Prepare(ctx context.Context, stmt statement.Statement) (*statement.Prepared, error)
	ExecutePrepared(ctx context.Context, p *statement.Prepared, values binding.Source, override statement.Config) (*result.ResultSet, error)
}

// Cache is an LRU of prepared statements. Concurrent misses for the same
// text share a single prepare request.
type Cache struct {
	cfg     Config
	exec    Executor
	entries *lru.Cache[string, *statement.Prepared]
	group   singleflight.Group

	lookups   prometheus.Counter
	hits      prometheus.Counter
	evictions prometheus.Counter
}

func New(cfg Config, exec Executor, reg prometheus.Registerer) (*Cache, error) {
	c := &Cache{
		cfg:  cfg,
		exec: exec,
		lookups: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "prepared_cache_lookups_total",
			Help:      "Total number of prepared statement lookups.",
		}),
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "prepared_cache_hits_total",
			Help:      "Total number of lookups answered from the cache.",
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cqlexec",
			Name:      "prepared_cache_evictions_total",
			Help:      "Total number of prepared statements evicted or invalidated.",
		}),
	}
	if !cfg.Enabled {
		return c, nil
	}

	entries, err := lru.NewWithEvict[string, *statement.Prepared](cfg.MaxEntries, func(string, *statement.Prepared) {
		c.evictions.Inc()
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating prepared statement cache")
	}
	c.entries = entries
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cqlexec",
		Name:      "prepared_cache_entries",
		Help:      "Number of prepared statements in the cache.",
	}, func() float64 { return float64(entries.Len()) })
	return c, nil
}

// Prepare returns the cached statement for text, preparing it on a miss.
func (c *Cache) Prepare(ctx context.Context, text string) (*statement.Prepared, error) {
	if c.entries == nil {
		return c.exec.Prepare(ctx, statement.Raw(text))
	}

	sp, ctx := ot.StartSpanFromContext(ctx, "preparedcache.Prepare")
	defer sp.Finish()

	c.lookups.Inc()
	if p, ok := c.entries.Get(text); ok {
		c.hits.Inc()
		sp.LogFields(otlog.Bool("hit", true))
		return p, nil
	}
	sp.LogFields(otlog.Bool("hit", false))

	v, err, _ := c.group.Do(text, func() (interface{}, error) {
		p, err := c.exec.Prepare(ctx, statement.Raw(text))
		if err != nil {
			return nil, err
		}
		c.entries.Add(text, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*statement.Prepared), nil
}

// Execute prepares text through the cache and runs it. When the executor
// had to prepare the statement again, the cached entry is replaced.
func (c *Cache) Execute(ctx context.Context, text string, values binding.Source, override statement.Config) (*result.ResultSet, error) {
	p, err := c.Prepare(ctx, text)
	if err != nil {
		return nil, err
	}
	rs, err := c.exec.ExecutePrepared(ctx, p, values, override)
	if err != nil {
		return nil, err
	}
	if fresh := rs.Reprepared(); fresh != nil {
		c.Update(fresh)
	}
	return rs, nil
}

// Update stores p under its text, replacing any previous entry.
func (c *Cache) Update(p *statement.Prepared) {
	if c.entries != nil {
		c.entries.Add(p.Text(), p)
	}
}

// Invalidate drops the entry for text.
func (c *Cache) Invalidate(text string) {
	if c.entries != nil {
		c.entries.Remove(text)
	}
}

func (c *Cache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
