package forge

import (
	"fmt"

	"github.com/zoobzio/astql"
	"github.com/zoobzio/dbml"
)

// buildDBML creates a DBML project describing the entity's own table.
// Relation fields carry no column and are left out.
func buildDBML(desc *Descriptor, dialect Dialect) (*dbml.Project, error) {
	project := dbml.NewProject(desc.Table).
		WithDatabaseType(dbmlDatabaseType(dialect))

	table := dbml.NewTable(desc.Table).
		WithSchema("public")

	for _, f := range desc.Fields {
		if !f.storable() {
			continue
		}

		col := dbml.NewColumn(f.Column, dbmlColumnType(f.Kind))
		if f.Roles.Has(RolePrimaryKey) {
			col.WithPrimaryKey()
		}
		if !f.Roles.Has(RoleNotNull) && !f.Roles.Has(RolePrimaryKey) {
			// DBML defaults to NOT NULL
			col.WithNull()
		}
		table.AddColumn(col)
	}

	project.AddTable(table)

	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("generated DBML is invalid: %w", err)
	}
	return project, nil
}

// buildSchema pairs the DBML project with the ASTQL instance used to
// validate column names handed to Set and AddValue.
func buildSchema(desc *Descriptor, dialect Dialect) (*dbml.Project, *astql.ASTQL, error) {
	project, err := buildDBML(desc, dialect)
	if err != nil {
		return nil, nil, err
	}
	instance, err := astql.NewFromDBML(project)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ASTQL instance: %w", err)
	}
	return project, instance, nil
}

func dbmlDatabaseType(dialect Dialect) string {
	if dialect.Name() == "postgres" {
		return "PostgreSQL"
	}
	return "SQLite"
}

func dbmlColumnType(kind StorageKind) string {
	switch kind {
	case KindInteger, KindBoolean:
		return "integer"
	case KindReal:
		return "real"
	default:
		return "text"
	}
}
