// Package sqltx sequences remote SQL statements inside a best-effort
// begin/commit envelope. Vendors that expose SQL over HTTP have no session
// transactions, so atomicity is approximated by sending explicit control
// statements and issuing a compensating rollback when any statement fails.
package sqltx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/vendorkit/vendorkit/pkg/api"
	"github.com/vendorkit/vendorkit/pkg/logger"
	"github.com/vendorkit/vendorkit/pkg/params"
)

// Result is the raw vendor response for one statement.
type Result = json.RawMessage

// StatementFunc executes one SQL statement remotely.
type StatementFunc func(ctx context.Context, statement string) (Result, error)

// StatementError means a statement inside a sequence failed. A rollback
// was attempted before this error was returned; the original statement
// error is what propagates, never the rollback's own outcome.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d (%s) failed: %v", e.Index, e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Runner executes statement sequences transactionally. Control statements
// default to BEGIN/COMMIT/ROLLBACK and can be overridden for vendors with
// different spellings.
type Runner struct {
	Exec StatementFunc

	Begin    string
	Commit   string
	Rollback string

	// OnRollback observes every rollback attempt: cause is the statement
	// error that triggered it and rollbackErr is nil when the rollback
	// itself succeeded. Lets tests assert the attempt without scraping
	// log output.
	OnRollback func(ctx context.Context, cause error, rollbackErr error)
}

// RunSequence sends Begin, each statement strictly in order, then Commit,
// and returns the per-statement results. The first statement failure
// triggers a best-effort Rollback (its own failure is logged, not raised)
// and surfaces as a StatementError wrapping the original error. Later
// statements are never sent after a failure. Re-running the same sequence
// after a successful commit performs the statements again; the runner
// itself is not idempotent.
func (r *Runner) RunSequence(ctx context.Context, statements []string) ([]Result, error) {
	if r.Exec == nil {
		return nil, errors.New("runner has no exec function")
	}
	begin, commit := r.Begin, r.Commit
	if begin == "" {
		begin = "BEGIN"
	}
	if commit == "" {
		commit = "COMMIT"
	}

	if _, err := r.Exec(ctx, begin); err != nil {
		// Nothing started, so nothing to roll back.
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	results := make([]Result, 0, len(statements))
	for i, stmt := range statements {
		res, err := r.Exec(ctx, stmt)
		if err != nil {
			r.rollback(ctx, err)
			return nil, &StatementError{Index: i, Statement: stmt, Err: err}
		}
		results = append(results, res)
	}

	if _, err := r.Exec(ctx, commit); err != nil {
		r.rollback(ctx, err)
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return results, nil
}

func (r *Runner) rollback(ctx context.Context, cause error) {
	stmt := r.Rollback
	if stmt == "" {
		stmt = "ROLLBACK"
	}
	_, rollbackErr := r.Exec(ctx, stmt)
	log := logger.G(ctx).WithError(cause)
	if rollbackErr != nil {
		log.WithField("rollback_error", rollbackErr.Error()).Warn("rollback failed after statement error")
	} else {
		log.Debug("rolled back after statement error")
	}
	if r.OnRollback != nil {
		r.OnRollback(ctx, cause, rollbackErr)
	}
}

// ExecVia builds a StatementFunc that runs statements through a vendor's
// SQL-over-HTTP endpoint using the request executor.
func ExecVia(client *api.Client, path string) StatementFunc {
	return func(ctx context.Context, statement string) (Result, error) {
		resp, err := client.Execute(ctx, http.MethodPost, path, params.Tree{"query": statement})
		if err != nil {
			return nil, err
		}
		return Result(resp.Body), nil
	}
}
