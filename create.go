package forge

import (
	"context"
	"fmt"
	"strings"
)

// createTableFragment emits the DDL of an entity's own table.
type createTableFragment struct {
	desc    *Descriptor
	dialect Dialect
}

func (c *createTableFragment) Render(Scope) (Rendered, error) {
	defs := make([]string, 0, len(c.desc.Fields))
	for _, field := range c.desc.Fields {
		if !field.storable() {
			continue
		}
		colType, err := c.dialect.ColumnType(field.Kind)
		if err != nil {
			return Rendered{}, fmt.Errorf("%s.%s: %w", c.desc.Table, field.Name, err)
		}
		def := field.Column + " " + colType
		if field.Roles.Has(RolePrimaryKey) {
			def += " PRIMARY KEY"
		}
		if field.Roles.Has(RoleNotNull) {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return Rendered{}, fmt.Errorf("%w: %s has no columns", ErrEmptyProjection, c.desc.Table)
	}

	return Rendered{SQL: "CREATE TABLE IF NOT EXISTS " + c.desc.Table + " (" + strings.Join(defs, ", ") + ");"}, nil
}

// CreateTable builds the CREATE TABLE statement of T.
type CreateTable[T any] struct {
	entity *Entity[T]
	frag   *createTableFragment
}

// CreateTable returns a CreateTable for the table of T. Relation and
// ignored fields have no column.
func (e *Entity[T]) CreateTable() *CreateTable[T] {
	return &CreateTable[T]{
		entity: e,
		frag:   &createTableFragment{desc: e.reg.desc, dialect: e.forge.dialect},
	}
}

// Fragment returns the CreateTable as a fragment for composition.
func (cb *CreateTable[T]) Fragment() Fragment {
	return cb.frag
}

// Render builds the SQL statement.
func (cb *CreateTable[T]) Render() (string, error) {
	return Render(cb.frag)
}

// MustRender is like Render but panics on error.
func (cb *CreateTable[T]) MustRender() string {
	sql, err := cb.Render()
	if err != nil {
		panic(err)
	}
	return sql
}

// Exec creates the table if it does not exist.
func (cb *CreateTable[T]) Exec(ctx context.Context) error {
	sql, err := cb.Render()
	if err != nil {
		return err
	}
	_, err = cb.entity.forge.exec(ctx, cb.frag.desc.Table, opCreateTable, sql)
	return err
}
