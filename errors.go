package forge

import "errors"

// Errors returned while describing entities and composing statements.
var (
	// ErrInvalidEntity is returned when a type cannot be described as an entity.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUnsupportedStorageKind is returned when a field's Go type has no column mapping.
	ErrUnsupportedStorageKind = errors.New("unsupported storage kind")

	// ErrMultiplePrimaryKeys is returned when an entity declares more than one primary key.
	ErrMultiplePrimaryKeys = errors.New("multiple primary keys")

	// ErrMissingPrimaryKey is returned when a related entity has no primary key.
	ErrMissingPrimaryKey = errors.New("missing primary key")

	// ErrUnknownEntity is returned when a related type was never registered.
	ErrUnknownEntity = errors.New("entity not registered")

	// ErrInvalidLiteral is returned when a value has no SQL literal form.
	ErrInvalidLiteral = errors.New("value has no SQL literal")

	// ErrForeignKeyNotFound is returned when an include names no relation.
	ErrForeignKeyNotFound = errors.New("foreign key not found")

	// ErrEmptyProjection is returned when a SELECT has no columns to project.
	ErrEmptyProjection = errors.New("empty projection")

	// ErrNoValues is returned when an INSERT or UPDATE has nothing to write.
	ErrNoValues = errors.New("no values to write")

	// ErrMissingWhereClause is returned when UPDATE or DELETE is rendered without a filter.
	ErrMissingWhereClause = errors.New("missing WHERE clause")

	// ErrUnknownColumn is returned when a column is not part of the entity schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNotFound is returned when a single-object SELECT produced no row.
	ErrNotFound = errors.New("record not found")

	// ErrMultipleRows is returned when a single-object SELECT produced more than one row.
	ErrMultipleRows = errors.New("expected exactly one row, found multiple")

	// ErrNoExecutor is returned when a statement is executed on a render-only context.
	ErrNoExecutor = errors.New("no executor configured")
)
