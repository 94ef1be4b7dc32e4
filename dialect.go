package forge

import (
	"fmt"
	"strings"
)

// Dialect renders the database-specific parts of a composed statement.
type Dialect interface {
	Name() string
	// JSONObject builds one JSON object from rendered 'key',(value) pairs.
	JSONObject(pairs []string) string
	// JSONArray aggregates the objects of every matched row into a JSON array.
	JSONArray(object string) string
	// ColumnType maps a storage kind to a column type.
	ColumnType(kind StorageKind) (string, error)
	// TableExists returns a query producing a non-empty first column when table exists.
	TableExists(table string) string
}

type sqliteDialect struct{}

// SQLite returns the SQLite dialect.
func SQLite() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) JSONObject(pairs []string) string {
	return "json_object(" + strings.Join(pairs, ",") + ")"
}

func (sqliteDialect) JSONArray(object string) string {
	return "json_group_array(" + object + ")"
}

func (sqliteDialect) ColumnType(kind StorageKind) (string, error) {
	switch kind {
	case KindText, KindGUID:
		return "TEXT", nil
	case KindInteger, KindBoolean:
		return "INTEGER", nil
	case KindReal:
		return "REAL", nil
	default:
		return "", ErrUnsupportedStorageKind
	}
}

func (sqliteDialect) TableExists(table string) string {
	return fmt.Sprintf("SELECT name FROM sqlite_master WHERE type='table' AND name='%s';", table)
}

type postgresDialect struct{}

// Postgres returns the PostgreSQL dialect.
func Postgres() Dialect { return postgresDialect{} }

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) JSONObject(pairs []string) string {
	return "json_build_object(" + strings.Join(pairs, ",") + ")"
}

func (postgresDialect) JSONArray(object string) string {
	return "COALESCE(json_agg(" + object + "), '[]'::json)"
}

func (postgresDialect) ColumnType(kind StorageKind) (string, error) {
	switch kind {
	case KindText, KindGUID:
		return "TEXT", nil
	case KindInteger, KindBoolean:
		return "BIGINT", nil
	case KindReal:
		return "DOUBLE PRECISION", nil
	default:
		return "", ErrUnsupportedStorageKind
	}
}

// Unquoted identifiers fold to lower case in PostgreSQL.
func (postgresDialect) TableExists(table string) string {
	return fmt.Sprintf("SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = lower('%s');", table)
}

// DialectByName resolves a dialect from its configuration name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return SQLite(), nil
	case "postgres", "postgresql":
		return Postgres(), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}
