package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/grafana/cqlexec/pkg/statement"
)

// batchFile is the YAML form of a batch:
//
//	type: logged
//	consistency: QUORUM
//	statements:
//	  - query: INSERT INTO users (id, name) VALUES (?, ?)
//	    values: [1, ann]
//	  - query: UPDATE users SET name = :name WHERE id = :id
//	    values: {id: 2, name: bob}
type batchFile struct {
	Type              string                      `yaml:"type"`
	Consistency       statement.Consistency       `yaml:"consistency"`
	SerialConsistency statement.SerialConsistency `yaml:"serial_consistency"`
	Timestamp         *int64                      `yaml:"timestamp"`
	Idempotent        bool                        `yaml:"idempotent"`
	Statements        []batchEntry                `yaml:"statements"`
}

type batchEntry struct {
	Query  string      `yaml:"query"`
	Values interface{} `yaml:"values"`
}

func loadBatch(path string) (*statement.Batch, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading batch file")
	}
	return parseBatch(buf)
}

func parseBatch(buf []byte) (*statement.Batch, error) {
	var f batchFile
	if err := yaml.UnmarshalStrict(buf, &f); err != nil {
		return nil, errors.Wrap(err, "parsing batch file")
	}
	if len(f.Statements) == 0 {
		return nil, errors.New("batch file has no statements")
	}

	kind := statement.Logged
	if f.Type != "" {
		var err error
		if kind, err = statement.ParseBatchKind(f.Type); err != nil {
			return nil, err
		}
	}

	b := statement.NewBatch(kind)
	for i, e := range f.Statements {
		if e.Query == "" {
			return nil, errors.Errorf("batch statement %d has no query", i)
		}
		values, err := toSource(e.Values)
		if err != nil {
			return nil, errors.Wrapf(err, "batch statement %d", i)
		}
		if err := b.Append(statement.Raw(e.Query), values); err != nil {
			return nil, errors.Wrapf(err, "batch statement %d", i)
		}
	}

	c := b.Config().
		WithConsistency(f.Consistency).
		WithSerialConsistency(f.SerialConsistency)
	if f.Timestamp != nil {
		c = c.WithTimestamp(*f.Timestamp)
	}
	if f.Idempotent {
		c = c.WithIdempotent(true)
	}
	return b.WithConfig(c), nil
}
