package statement

import (
	"fmt"
	"strings"
	"time"

	"github.com/grafana/regexp"

	"github.com/grafana/cqlexec/pkg/binding"
	"github.com/grafana/cqlexec/pkg/cqlerrors"
)

// BatchKind selects how the server applies a batch.
type BatchKind uint8

const (
	// Logged batches are applied atomically by the server.
	Logged BatchKind = iota
	Unlogged
	Counter
)

func (k BatchKind) String() string {
	switch k {
	case Logged:
		return "logged"
	case Unlogged:
		return "unlogged"
	case Counter:
		return "counter"
	}
	return fmt.Sprintf("BatchKind(%d)", uint8(k))
}

// ParseBatchKind accepts logged, unlogged and counter, case-insensitively.
func ParseBatchKind(s string) (BatchKind, error) {
	switch strings.ToLower(s) {
	case "logged":
		return Logged, nil
	case "unlogged":
		return Unlogged, nil
	case "counter":
		return Counter, nil
	}
	return Logged, fmt.Errorf("invalid batch type %q: must be 'logged', 'unlogged', or 'counter'", s)
}

// Batch collects statements and their values for dispatch as one request.
// Appends modify the batch in place, so a Batch must not be shared while
// it is being built.
type Batch struct {
	kind       BatchKind
	cfg        Config
	statements []Statement
	values     []binding.Source
}

func NewBatch(kind BatchKind) *Batch {
	return &Batch{kind: kind}
}

// Append adds a statement together with its values. values may be nil for
// statements without bind markers.
func (b *Batch) Append(s Statement, values binding.Source) error {
	if err := b.AppendStatement(s); err != nil {
		return err
	}
	b.AppendValues(values)
	return nil
}

// AppendStatement adds a statement without values; pair it with
// AppendValues. A counter batch rejects statements that do not update
// counters.
func (b *Batch) AppendStatement(s Statement) error {
	if b.kind == Counter && !IsCounterUpdate(s) {
		return cqlerrors.UnsupportedOperationf("counter batch cannot contain non-counter statement %q", s.Text())
	}
	b.statements = append(b.statements, s)
	return nil
}

func (b *Batch) AppendValues(values binding.Source) {
	b.values = append(b.values, values)
}

func (b *Batch) Kind() BatchKind          { return b.kind }
func (b *Batch) Config() Config           { return b.cfg }
func (b *Batch) Len() int                 { return len(b.statements) }
func (b *Batch) Statements() []Statement  { return b.statements }
func (b *Batch) Values() []binding.Source { return b.values }
func (b *Batch) IsIdempotent() bool       { return b.cfg.idempotent }

func (b *Batch) String() string {
	return fmt.Sprintf("Batch(statements=%d)", len(b.statements))
}

// WithConfig returns a copy of the batch with different options. The
// copy has its own statement list, so appending to either leaves the
// other unchanged.
func (b *Batch) WithConfig(cfg Config) *Batch {
	return &Batch{
		kind:       b.kind,
		cfg:        cfg,
		statements: append([]Statement(nil), b.statements...),
		values:     append([]binding.Source(nil), b.values...),
	}
}

func (b *Batch) WithConsistency(cl Consistency) *Batch {
	return b.WithConfig(b.cfg.WithConsistency(cl))
}

func (b *Batch) WithSerialConsistency(cl SerialConsistency) *Batch {
	return b.WithConfig(b.cfg.WithSerialConsistency(cl))
}

func (b *Batch) WithTimestamp(micros int64) *Batch {
	return b.WithConfig(b.cfg.WithTimestamp(micros))
}

func (b *Batch) WithTimeout(d time.Duration) *Batch {
	return b.WithConfig(b.cfg.WithTimeout(d))
}

func (b *Batch) WithTracing(on bool) *Batch    { return b.WithConfig(b.cfg.WithTracing(on)) }
func (b *Batch) WithIdempotent(on bool) *Batch { return b.WithConfig(b.cfg.WithIdempotent(on)) }

// Validate checks that every statement has exactly one value set.
func (b *Batch) Validate() error {
	if len(b.values) != len(b.statements) {
		return cqlerrors.Arity(len(b.statements), len(b.values))
	}
	return nil
}

// counterUpdate matches "UPDATE ... SET c = c + d" and the "-" form, where
// the delta d is an integer literal or a bind marker. Collection appends
// such as "l = l + ['a']" do not match.
var counterUpdate = regexp.MustCompile(`(?is)^\s*UPDATE\s.+\sSET\s+("[^"]+"|\w+)\s*=\s*("[^"]+"|\w+)\s*[-+]\s*(\?|:\w+|\d+)(?:[\s,;]|$)`)

// counterDelta returns the delta of a counter update, or "" if text is not
// shaped like one.
func counterDelta(text string) string {
	m := counterUpdate.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[3]
}

// IsCounterUpdate reports whether s changes counter columns. Text
// statements are judged by their shape. Prepared statements also count
// when one of their bind markers is a counter.
func IsCounterUpdate(s Statement) bool {
	if p, ok := s.(*Prepared); ok {
		return p.IsCounterUpdate()
	}
	return counterDelta(s.Text()) != ""
}
