package forge

import "fmt"

// ExecutionError reports a statement the execution boundary rejected.
// Error() names only the operation and table, since driver messages quote
// statement tokens; SQL and the driver error are kept for diagnostics.
type ExecutionError struct {
	Table     string
	Operation string
	SQL       string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("forge: %s on %s failed", e.Operation, e.Table)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// DecodeError reports a result that did not match the requested shape.
// Error() names only the shape, since decoder messages quote result values;
// Result, SQL and the decoder error are kept for diagnostics.
type DecodeError struct {
	Shape  string
	Result string
	SQL    string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("forge: result did not match %s", e.Shape)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
