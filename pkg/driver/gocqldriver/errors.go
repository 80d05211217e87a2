package gocqldriver

import (
	"context"
	"strings"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/grafana/cqlexec/pkg/cqlerrors"
)

// errPrepared stops gocql after it has prepared a statement; see Prepare.
var errPrepared = errors.New("prepared")

// classify maps a gocql error onto the error taxonomy. Errors that already
// carry a kind, such as the ones raised while marshalling, are kept.
func classify(err error, preparing bool) error {
	if err == nil {
		return nil
	}
	if cqlerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cqlerrors.Dispatch(err, 0)
	}

	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) {
		code := reqErr.Code()
		switch {
		case code == gocql.ErrCodeUnprepared:
			return cqlerrors.SchemaChangedf("%s", reqErr.Message())
		case preparing && isStatementError(code):
			return cqlerrors.Prepare(err, code)
		}
		return cqlerrors.Dispatch(err, code)
	}

	// gocql re-prepares on its own and reports a marker count that no longer
	// matches the arguments in this form.
	if strings.Contains(err.Error(), "values send got") {
		return cqlerrors.SchemaChangedf("%v", err)
	}
	return cqlerrors.Dispatch(err, 0)
}

func isStatementError(code int) bool {
	switch code {
	case gocql.ErrCodeSyntax, gocql.ErrCodeInvalid, gocql.ErrCodeConfig, gocql.ErrCodeUnauthorized, gocql.ErrCodeAlreadyExists:
		return true
	}
	return false
}
