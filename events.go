package forge

import "github.com/zoobzio/capitan"

// Statement execution signals.
var (
	// QueryStarted is emitted when a composed statement is handed to the executor.
	// Fields: TableKey, OperationKey, SQLKey.
	QueryStarted = capitan.NewSignal("db.query.started", "Database query execution started")

	// QueryCompleted is emitted when the executor returns successfully.
	// Fields: TableKey, OperationKey, DurationMsKey, RowsAffectedKey or ResultBytesKey.
	QueryCompleted = capitan.NewSignal("db.query.completed", "Database query completed successfully")

	// QueryFailed is emitted when the executor returns an error.
	// Fields: TableKey, OperationKey, DurationMsKey, ErrorKey.
	QueryFailed = capitan.NewSignal("db.query.failed", "Database query failed with error")

	// DecodeFailed is emitted when a result cannot be decoded into the requested shape.
	// Fields: TableKey, ShapeKey, ErrorKey.
	DecodeFailed = capitan.NewSignal("db.decode.failed", "Query result did not match the requested shape")
)

// Event field keys.
var (
	// TableKey identifies the root table of the statement.
	TableKey = capitan.NewStringKey("table")

	// OperationKey identifies the statement type (SELECT, UPDATE, INSERT, DELETE, CREATE TABLE).
	OperationKey = capitan.NewStringKey("operation")

	// SQLKey contains the rendered statement. Only emitted at debug level.
	SQLKey = capitan.NewStringKey("sql")

	// DurationMsKey contains the execution duration in milliseconds.
	DurationMsKey = capitan.NewInt64Key("duration_ms")

	// RowsAffectedKey contains the number of rows written by a mutation.
	RowsAffectedKey = capitan.NewInt64Key("rows_affected")

	// ResultBytesKey contains the size of a JSON result.
	ResultBytesKey = capitan.NewIntKey("result_bytes")

	// ShapeKey names the Go type a result was decoded into.
	ShapeKey = capitan.NewStringKey("shape")

	// ErrorKey contains the error message.
	ErrorKey = capitan.NewStringKey("error")
)
