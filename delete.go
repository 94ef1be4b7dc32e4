package forge

import (
	"context"
	"fmt"
)

// deleteFragment emits a DELETE. It never renders without a filter.
type deleteFragment struct {
	table  string
	filter string
	err    error
}

func (d *deleteFragment) Render(Scope) (Rendered, error) {
	if d.err != nil {
		return Rendered{}, d.err
	}
	if d.filter == "" {
		return Rendered{}, fmt.Errorf("%w: DELETE FROM %s", ErrMissingWhereClause, d.table)
	}
	return Rendered{SQL: "DELETE FROM " + d.table + " WHERE " + d.filter + ";"}, nil
}

// Delete builds a DELETE for the table of T.
type Delete[T any] struct {
	entity *Entity[T]
	frag   *deleteFragment
}

// Delete returns a Delete. Where must be called before it can render.
//
// Example:
//
//	n, err := entity.Delete().
//	    Where("id = 1").
//	    Exec(ctx)
func (e *Entity[T]) Delete() *Delete[T] {
	return &Delete[T]{
		entity: e,
		frag:   &deleteFragment{table: e.reg.desc.Table},
	}
}

// Where sets the filter.
func (db *Delete[T]) Where(clause string) *Delete[T] {
	db.frag.filter = clause
	return db
}

// WhereCond sets the filter from a Condition.
func (db *Delete[T]) WhereCond(c Condition) *Delete[T] {
	if db.frag.err != nil {
		return db
	}
	clause, err := c.clause(db.entity.forge.escape)
	if err != nil {
		db.frag.err = fmt.Errorf("invalid condition: %w", err)
		return db
	}
	return db.Where(clause)
}

// Fragment returns the Delete as a fragment for composition.
func (db *Delete[T]) Fragment() Fragment {
	return db.frag
}

// Render builds the SQL statement.
func (db *Delete[T]) Render() (string, error) {
	return Render(db.frag)
}

// MustRender is like Render but panics on error.
func (db *Delete[T]) MustRender() string {
	sql, err := db.Render()
	if err != nil {
		panic(err)
	}
	return sql
}

// Exec runs the DELETE and returns the rows affected.
// Nothing is sent to the database when the filter is missing.
func (db *Delete[T]) Exec(ctx context.Context) (int64, error) {
	sql, err := db.Render()
	if err != nil {
		return 0, err
	}
	return db.entity.forge.exec(ctx, db.frag.table, opDelete, sql)
}
