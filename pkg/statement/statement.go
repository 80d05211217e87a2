package statement

import (
	"time"

	"github.com/grafana/cqlexec/pkg/cqltypes"
)

// Statement is a Raw, Configured or *Prepared statement.
type Statement interface {
	Text() string
	Config() Config
	statement()
}

// Raw is statement text executed with default options.
type Raw string

func (r Raw) Text() string   { return string(r) }
func (r Raw) Config() Config { return Config{} }
func (Raw) statement()       {}

// Configured is statement text with its own execution options.
type Configured struct {
	text string
	cfg  Config
}

func NewConfigured(text string, cfg Config) Configured {
	return Configured{text: text, cfg: cfg}
}

func (c Configured) Text() string       { return c.text }
func (c Configured) Config() Config     { return c.cfg }
func (c Configured) IsIdempotent() bool { return c.cfg.idempotent }
func (Configured) statement()           {}

func (c Configured) WithConfig(cfg Config) Configured {
	c.cfg = cfg
	return c
}

func (c Configured) WithConsistency(cl Consistency) Configured {
	return c.WithConfig(c.cfg.WithConsistency(cl))
}

func (c Configured) WithSerialConsistency(cl SerialConsistency) Configured {
	return c.WithConfig(c.cfg.WithSerialConsistency(cl))
}

func (c Configured) WithPageSize(n int) Configured { return c.WithConfig(c.cfg.WithPageSize(n)) }

func (c Configured) WithTimestamp(micros int64) Configured {
	return c.WithConfig(c.cfg.WithTimestamp(micros))
}

func (c Configured) WithTimeout(d time.Duration) Configured {
	return c.WithConfig(c.cfg.WithTimeout(d))
}

func (c Configured) WithTracing(on bool) Configured { return c.WithConfig(c.cfg.WithTracing(on)) }

func (c Configured) WithIdempotent(on bool) Configured {
	return c.WithConfig(c.cfg.WithIdempotent(on))
}

// Prepared is a statement parsed by the server, identified by the id the
// server assigned. The column specs are shared by every copy and must be
// treated as read-only; a *Prepared is safe for concurrent use.
type Prepared struct {
	id            []byte
	text          string
	bindColumns   []cqltypes.ColumnSpec
	resultColumns []cqltypes.ColumnSpec
	cfg           Config
}

func NewPrepared(id []byte, text string, bindColumns, resultColumns []cqltypes.ColumnSpec, cfg Config) *Prepared {
	return &Prepared{
		id:            id,
		text:          text,
		bindColumns:   bindColumns,
		resultColumns: resultColumns,
		cfg:           cfg,
	}
}

func (p *Prepared) ID() []byte                           { return p.id }
func (p *Prepared) Text() string                         { return p.text }
func (p *Prepared) Config() Config                       { return p.cfg }
func (p *Prepared) BindColumns() []cqltypes.ColumnSpec   { return p.bindColumns }
func (p *Prepared) ResultColumns() []cqltypes.ColumnSpec { return p.resultColumns }
func (p *Prepared) IsIdempotent() bool                   { return p.cfg.idempotent }
func (*Prepared) statement()                             {}

// IsCounterUpdate reports whether the statement changes counter columns:
// either a bind marker is of counter type, or the statement adds a literal
// delta. A marker delta of another type is a collection append.
func (p *Prepared) IsCounterUpdate() bool {
	for _, c := range p.bindColumns {
		if c.Type.Tag() == cqltypes.TagCounter {
			return true
		}
	}
	d := counterDelta(p.text)
	return d != "" && d[0] >= '0' && d[0] <= '9'
}

func (p *Prepared) WithConfig(cfg Config) *Prepared {
	cp := *p
	cp.cfg = cfg
	return &cp
}

func (p *Prepared) WithConsistency(cl Consistency) *Prepared {
	return p.WithConfig(p.cfg.WithConsistency(cl))
}

func (p *Prepared) WithSerialConsistency(cl SerialConsistency) *Prepared {
	return p.WithConfig(p.cfg.WithSerialConsistency(cl))
}

func (p *Prepared) WithPageSize(n int) *Prepared { return p.WithConfig(p.cfg.WithPageSize(n)) }

func (p *Prepared) WithTimestamp(micros int64) *Prepared {
	return p.WithConfig(p.cfg.WithTimestamp(micros))
}

func (p *Prepared) WithTimeout(d time.Duration) *Prepared {
	return p.WithConfig(p.cfg.WithTimeout(d))
}

func (p *Prepared) WithTracing(on bool) *Prepared { return p.WithConfig(p.cfg.WithTracing(on)) }

func (p *Prepared) WithIdempotent(on bool) *Prepared {
	return p.WithConfig(p.cfg.WithIdempotent(on))
}

// Reprepared returns a statement with the id and columns of a fresh
// prepare of the same text, keeping p's options.
func (p *Prepared) Reprepared(id []byte, bindColumns, resultColumns []cqltypes.ColumnSpec) *Prepared {
	return NewPrepared(id, p.text, bindColumns, resultColumns, p.cfg)
}
