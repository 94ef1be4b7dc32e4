// Package scanner reads composed JSON results out of database rows.
// A composed SELECT yields one text column (<alias>_JSON); only the first
// column of the first row is significant.
package scanner

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoColumns is returned when a result set has no columns at all.
var ErrNoColumns = errors.New("result has no columns")

// ColScanner is the interface for database row scanning.
// Satisfied by sqlx.Rows and sql.Rows.
type ColScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Result is the text of the first column of the first row.
type Result struct {
	Text   string
	Column string
	Rows   int
	Null   bool
}

// Found reports whether any row was returned.
func (r Result) Found() bool {
	return r.Rows > 0
}

// Scan drains cs and returns the first column of its first row.
// Remaining rows are counted but not decoded.
func Scan(cs ColScanner) (Result, error) {
	cols, err := cs.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("getting columns: %w", err)
	}
	if len(cols) == 0 {
		return Result{}, ErrNoColumns
	}

	res := Result{Column: cols[0]}
	dests := makeDests(len(cols))

	for cs.Next() {
		res.Rows++
		if res.Rows > 1 {
			continue
		}
		if err := cs.Scan(dests...); err != nil {
			return Result{}, fmt.Errorf("scanning row: %w", err)
		}
		text, null := textOf(dests[0])
		res.Text = text
		res.Null = null
	}

	if err := cs.Err(); err != nil {
		return Result{}, fmt.Errorf("iterating rows: %w", err)
	}

	return res, nil
}

// makeDests creates one text destination and discards for the rest.
func makeDests(n int) []any {
	dests := make([]any, n)
	dests[0] = new(sql.NullString)
	for i := 1; i < n; i++ {
		dests[i] = new(any)
	}
	return dests
}

func textOf(dest any) (string, bool) {
	ns, ok := dest.(*sql.NullString)
	if !ok || !ns.Valid {
		return "", true
	}
	return ns.String, false
}
