package executor

import (
	"flag"
	"time"

	"github.com/grafana/cqlexec/pkg/statement"
)

// Config holds the defaults applied to every statement before its own
// options and any per-call override.
type Config struct {
	Consistency          statement.Consistency       `yaml:"consistency"`
	SerialConsistency    statement.SerialConsistency `yaml:"serial_consistency"`
	PageSize             int                         `yaml:"page_size"`
	Timeout              time.Duration               `yaml:"timeout"`
	AwaitSchemaAgreement bool                        `yaml:"await_schema_agreement_on_reprepare"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.Var(&cfg.Consistency, "executor.consistency", "Consistency level for statements that do not set one. Empty uses the driver default.")
	f.Var(&cfg.SerialConsistency, "executor.serial-consistency", "Serial consistency level for conditional statements that do not set one.")
	f.IntVar(&cfg.PageSize, "executor.page-size", 5000, "Rows fetched per page for statements that do not set a page size. 0 uses the server default.")
	f.DurationVar(&cfg.Timeout, "executor.timeout", 0, "Timeout for statements that do not set one. 0 uses the driver default.")
	f.BoolVar(&cfg.AwaitSchemaAgreement, "executor.await-schema-agreement", true, "Wait for schema agreement before preparing a statement again after a schema change.")
}

func (cfg Config) defaults() statement.Config {
	return statement.Config{}.
		WithConsistency(cfg.Consistency).
		WithSerialConsistency(cfg.SerialConsistency).
		WithPageSize(cfg.PageSize).
		WithTimeout(cfg.Timeout)
}
