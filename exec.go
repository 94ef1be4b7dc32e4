package forge

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/forge/internal/scanner"
)

// Operation names carried by events and errors.
const (
	opSelect      = "SELECT"
	opUpdate      = "UPDATE"
	opInsert      = "INSERT"
	opDelete      = "DELETE"
	opCreateTable = "CREATE TABLE"
	opTableExists = "TABLE EXISTS"
	opQuery       = "QUERY"
	opExec        = "EXEC"
)

// Executor is the boundary to the data store. Query returns the first column
// of the first row as text, or "" when the statement produced no row. Exec
// runs one or more statements and returns the number of rows affected as the
// driver reports it; for a batch that is usually the last statement's count.
type Executor interface {
	Query(ctx context.Context, sql string) (string, error)
	Exec(ctx context.Context, sql string) (int64, error)
}

// sqlExecutor runs statements on a sqlx connection or transaction.
type sqlExecutor struct {
	db sqlx.ExtContext
}

// NewSQLExecutor returns an Executor backed by db.
func NewSQLExecutor(db sqlx.ExtContext) Executor {
	return &sqlExecutor{db: db}
}

func (e *sqlExecutor) Query(ctx context.Context, sql string) (string, error) {
	rows, err := e.db.QueryxContext(ctx, sql)
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	res, err := scanner.Scan(rows)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (e *sqlExecutor) Exec(ctx context.Context, sql string) (int64, error) {
	res, err := e.db.ExecContext(ctx, sql)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows for DDL.
		return 0, nil
	}
	return n, nil
}

// query hands sql to the executor, emitting execution events around it.
func (f *Forge) query(ctx context.Context, table, operation, sql string) (string, error) {
	if f.executor == nil {
		return "", ErrNoExecutor
	}

	capitan.Debug(ctx, QueryStarted,
		TableKey.Field(table),
		OperationKey.Field(operation),
		SQLKey.Field(sql),
	)

	startTime := time.Now()
	result, err := f.executor.Query(ctx, sql)
	durationMs := time.Since(startTime).Milliseconds()

	if err != nil {
		capitan.Error(ctx, QueryFailed,
			TableKey.Field(table),
			OperationKey.Field(operation),
			DurationMsKey.Field(durationMs),
			ErrorKey.Field(err.Error()),
		)
		return "", &ExecutionError{Table: table, Operation: operation, SQL: sql, Err: err}
	}

	capitan.Info(ctx, QueryCompleted,
		TableKey.Field(table),
		OperationKey.Field(operation),
		DurationMsKey.Field(durationMs),
		ResultBytesKey.Field(len(result)),
	)

	return result, nil
}

// exec runs a mutating statement batch, emitting execution events around it.
func (f *Forge) exec(ctx context.Context, table, operation, sql string) (int64, error) {
	if f.executor == nil {
		return 0, ErrNoExecutor
	}

	capitan.Debug(ctx, QueryStarted,
		TableKey.Field(table),
		OperationKey.Field(operation),
		SQLKey.Field(sql),
	)

	startTime := time.Now()
	rows, err := f.executor.Exec(ctx, sql)
	durationMs := time.Since(startTime).Milliseconds()

	if err != nil {
		capitan.Error(ctx, QueryFailed,
			TableKey.Field(table),
			OperationKey.Field(operation),
			DurationMsKey.Field(durationMs),
			ErrorKey.Field(err.Error()),
		)
		return 0, &ExecutionError{Table: table, Operation: operation, SQL: sql, Err: err}
	}

	capitan.Info(ctx, QueryCompleted,
		TableKey.Field(table),
		OperationKey.Field(operation),
		DurationMsKey.Field(durationMs),
		RowsAffectedKey.Field(rows),
	)

	return rows, nil
}
