package forge

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// insertFragment emits an INSERT of one model's own columns.
type insertFragment struct {
	forge  *Forge
	table  string
	values *valueMap
	err    error
}

func (i *insertFragment) Render(Scope) (Rendered, error) {
	if i.err != nil {
		return Rendered{}, i.err
	}
	if i.values.len() == 0 {
		return Rendered{}, fmt.Errorf("%w: INSERT INTO %s", ErrNoValues, i.table)
	}

	literals := make([]string, 0, i.values.len())
	for _, col := range i.values.keys {
		literals = append(literals, i.forge.literal(i.values.values[col]))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		i.table,
		strings.Join(i.values.keys, ", "),
		strings.Join(literals, ", "),
	)
	return Rendered{SQL: sql}, nil
}

// Insert builds an INSERT for a model of type T.
type Insert[T any] struct {
	entity *Entity[T]
	model  *T
	frag   *insertFragment
}

// Insert returns an Insert over a snapshot of model. Relation fields are not
// written.
func (e *Entity[T]) Insert(model *T) *Insert[T] {
	ib := &Insert[T]{
		entity: e,
		model:  model,
		frag:   &insertFragment{forge: e.forge, table: e.reg.desc.Table},
	}
	if model == nil {
		ib.frag.err = fmt.Errorf("%w: nil model", ErrInvalidEntity)
		return ib
	}
	ib.frag.values, ib.frag.err = snapshot(e.reg.desc, reflect.ValueOf(model).Elem())
	return ib
}

// AddValue adds or overrides the value written to column.
func (ib *Insert[T]) AddValue(column string, value any) *Insert[T] {
	if ib.frag.err != nil {
		return ib
	}
	if err := ib.entity.validateColumn(column); err != nil {
		ib.frag.err = err
		return ib
	}
	v, err := ValueOf(value)
	if err != nil {
		ib.frag.err = fmt.Errorf("column %q: %w", column, err)
		return ib
	}
	ib.frag.values.set(column, v)
	return ib
}

// Fragment returns the Insert as a fragment for composition.
func (ib *Insert[T]) Fragment() Fragment {
	return ib.frag
}

// Render builds the SQL statement.
func (ib *Insert[T]) Render() (string, error) {
	return Render(ib.frag)
}

// MustRender is like Render but panics on error.
func (ib *Insert[T]) MustRender() string {
	sql, err := ib.Render()
	if err != nil {
		panic(err)
	}
	return sql
}

// Exec runs the INSERT and returns the rows affected.
func (ib *Insert[T]) Exec(ctx context.Context) (int64, error) {
	sql, err := ib.Render()
	if err != nil {
		return 0, err
	}
	if err := ib.entity.callOnRecord(ctx, ib.model); err != nil {
		return 0, fmt.Errorf("onRecord callback failed: %w", err)
	}
	return ib.entity.forge.exec(ctx, ib.frag.table, opInsert, sql)
}
