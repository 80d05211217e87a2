// Package driver defines the contract between the executor and the cluster
// driver that owns connections, routing, retries and the wire protocol.
package driver

import (
	"context"

	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/statement"
)

// Driver is implemented by cluster drivers. Implementations must be safe for
// concurrent use.
//
// Errors should be *cqlerrors.Error values: PrepareError for statements the
// server rejects at prepare time, SchemaChanged when the server no longer
// knows a prepared id, and DispatchError for everything else.
type Driver interface {
	Prepare(ctx context.Context, text string) (PrepareResult, error)
	Execute(ctx context.Context, req ExecuteRequest) (Response, error)
	ExecuteBatch(ctx context.Context, req BatchRequest) (Response, error)
	// UseKeyspace makes keyspace the default for unqualified table names.
	// The name is taken literally; no case folding is applied.
	UseKeyspace(ctx context.Context, keyspace string) error
	// AwaitSchemaAgreement blocks until every node reports the same schema
	// version. It reports false if agreement was not reached in time.
	AwaitSchemaAgreement(ctx context.Context) (bool, error)
	Close()
}

// PrepareResult describes a statement prepared by the server.
type PrepareResult struct {
	ID            []byte
	BindColumns   []cqltypes.ColumnSpec
	ResultColumns []cqltypes.ColumnSpec
}

// ExecuteRequest runs either a prepared statement (ID set) or statement text.
// Params are encoded values, one per bind marker; a nil entry is NULL.
type ExecuteRequest struct {
	ID     []byte
	Text   string
	Params [][]byte
	// Columns describe Params. Drivers that marshal values themselves need
	// them; they are nil when the statement has no bind markers.
	Columns []cqltypes.ColumnSpec
	Config  statement.Config
}

// BatchEntry is one statement of a batch.
type BatchEntry struct {
	ID      []byte
	Text    string
	Params  [][]byte
	Columns []cqltypes.ColumnSpec
}

type BatchRequest struct {
	Kind    statement.BatchKind
	Entries []BatchEntry
	Config  statement.Config
}

// Response carries the result columns and the encoded cells of every row.
// A nil cell is NULL.
type Response struct {
	Columns   []cqltypes.ColumnSpec
	Rows      [][][]byte
	TracingID []byte
	Warnings  []string
}
