// Package statement models statements, their execution options and batches.
// Every value in this package is immutable: With* methods return modified
// copies so a base value can be shared and specialised concurrently.
package statement

import (
	"fmt"
	"strings"
	"time"
)

// Config holds per-statement execution options. The zero Config has every
// option unset, deferring to the driver and server defaults.
type Config struct {
	consistency       Consistency
	serialConsistency SerialConsistency
	pageSize          int
	timestamp         int64
	timeout           time.Duration
	tracing           bool
	idempotent        bool

	hasPageSize   bool
	hasTimestamp  bool
	hasTimeout    bool
	hasTracing    bool
	hasIdempotent bool
}

func (c Config) Consistency() Consistency             { return c.consistency }
func (c Config) SerialConsistency() SerialConsistency { return c.serialConsistency }

// PageSize is 0 when the server default applies.
func (c Config) PageSize() int { return c.pageSize }

// Timestamp is the write timestamp in microseconds since the epoch. ok is
// false when the server assigns it.
func (c Config) Timestamp() (ts int64, ok bool) { return c.timestamp, c.hasTimestamp }

// Timeout is 0 when the driver default applies.
func (c Config) Timeout() time.Duration { return c.timeout }
func (c Config) Tracing() bool          { return c.tracing }
func (c Config) Idempotent() bool       { return c.idempotent }

func (c Config) WithConsistency(cl Consistency) Config {
	c.consistency = cl
	return c
}

func (c Config) WithSerialConsistency(cl SerialConsistency) Config {
	c.serialConsistency = cl
	return c
}

// WithPageSize sets the page size; n <= 0 restores the server default,
// also when merged over a Config that sets one.
func (c Config) WithPageSize(n int) Config {
	if n < 0 {
		n = 0
	}
	c.pageSize, c.hasPageSize = n, true
	return c
}

func (c Config) WithTimestamp(micros int64) Config {
	c.timestamp, c.hasTimestamp = micros, true
	return c
}

// WithTimeout sets the timeout; d <= 0 restores the driver default.
func (c Config) WithTimeout(d time.Duration) Config {
	if d < 0 {
		d = 0
	}
	c.timeout, c.hasTimeout = d, true
	return c
}

func (c Config) WithTracing(on bool) Config {
	c.tracing, c.hasTracing = on, true
	return c
}

func (c Config) WithIdempotent(on bool) Config {
	c.idempotent, c.hasIdempotent = on, true
	return c
}

// Merge returns c with every option that is set in override replaced.
func (c Config) Merge(override Config) Config {
	if override.consistency != ConsistencyUnset {
		c.consistency = override.consistency
	}
	if override.serialConsistency != SerialUnset {
		c.serialConsistency = override.serialConsistency
	}
	if override.hasPageSize {
		c.pageSize, c.hasPageSize = override.pageSize, true
	}
	if override.hasTimestamp {
		c.timestamp, c.hasTimestamp = override.timestamp, true
	}
	if override.hasTimeout {
		c.timeout, c.hasTimeout = override.timeout, true
	}
	if override.hasTracing {
		c.tracing, c.hasTracing = override.tracing, true
	}
	if override.hasIdempotent {
		c.idempotent, c.hasIdempotent = override.idempotent, true
	}
	return c
}

func (c Config) String() string {
	var parts []string
	if c.consistency != ConsistencyUnset {
		parts = append(parts, "consistency="+c.consistency.String())
	}
	if c.serialConsistency != SerialUnset {
		parts = append(parts, "serial_consistency="+c.serialConsistency.String())
	}
	if c.pageSize > 0 {
		parts = append(parts, fmt.Sprintf("page_size=%d", c.pageSize))
	}
	if c.hasTimestamp {
		parts = append(parts, fmt.Sprintf("timestamp=%d", c.timestamp))
	}
	if c.timeout > 0 {
		parts = append(parts, "timeout="+c.timeout.String())
	}
	if c.tracing {
		parts = append(parts, "tracing=true")
	}
	if c.idempotent {
		parts = append(parts, "idempotent=true")
	}
	return "{" + strings.Join(parts, " ") + "}"
}
