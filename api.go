// Package forge composes relational queries that return hierarchical results.
//
// Forge turns tagged Go structs into entity descriptors and builds single SQL
// statements that project a row and its related rows as nested JSON, so one
// round trip returns a whole object graph. The same relationship graph drives
// cascading updates: an UPDATE for a model can carry the UPDATEs of the
// related models it includes.
//
// # Quick Start
//
// Define models with struct tags:
//
//	type Team struct {
//	    ID      int      `db:"id" constraints:"primarykey"`
//	    Name    string   `db:"name" constraints:"notnull"`
//	    Players []Player `db:"players" fk:"id,team_id"`
//	}
//
//	type Player struct {
//	    ID     int    `db:"id" constraints:"primarykey"`
//	    TeamID int    `db:"team_id"`
//	    Name   string `db:"name"`
//	    Active bool   `db:"active"`
//	}
//
// Register every entity taking part in a relation:
//
//	f, err := forge.New(db)
//	teams, err := forge.Register[Team](f)
//	_, err = forge.Register[Player](f)
//
// Build and execute statements:
//
//	// Nested SELECT returning teams with their players
//	all, err := teams.Select().
//	    Include("players").
//	    Exec(ctx)
//
//	// Cascading UPDATE of a team and every included player
//	n, err := teams.Update(team).
//	    Where("id = 1").
//	    Include("players").
//	    Exec(ctx)
//
// Include paths may be qualified with the alias of a nested relation to reach
// deeper levels: Include("players", "players.contracts") materializes the
// contracts of every included player.
//
// # Features
//
//   - One statement per object graph via json_object/json_group_array
//   - Include forwarding across nested aliases
//   - Cascading updates mirroring the relationship graph
//   - SQLite and PostgreSQL dialects
//   - DBML schema generation from struct tags
//   - Integration with capitan for structured logging
package forge

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql"
	"github.com/zoobzio/dbml"
)

// Forge is the execution context shared by every entity registered on it.
// It owns the dialect, the execution boundary and the descriptor registry.
type Forge struct {
	executor Executor
	dialect  Dialect
	escape   bool

	mu       sync.RWMutex
	entities map[reflect.Type]*registered
}

// registered is the cached schema of one entity type.
type registered struct {
	desc     *Descriptor
	project  *dbml.Project
	instance *astql.ASTQL
}

// Option configures a Forge.
type Option func(*Forge)

// WithDialect selects the SQL dialect. The default is SQLite.
func WithDialect(d Dialect) Option {
	return func(f *Forge) { f.dialect = d }
}

// WithExecutor replaces the sqlx-backed execution boundary.
func WithExecutor(e Executor) Option {
	return func(f *Forge) { f.executor = e }
}

// WithEscapedLiterals doubles single quotes embedded in text literals.
// Without it, text is interpolated between quotes unchanged.
func WithEscapedLiterals() Option {
	return func(f *Forge) { f.escape = true }
}

// New creates a Forge. If db is nil and no executor is supplied, statements
// can still be rendered but not executed.
//
// The db parameter accepts sqlx.ExtContext, which is satisfied by both *sqlx.DB and *sqlx.Tx.
func New(db sqlx.ExtContext, opts ...Option) (*Forge, error) {
	f := &Forge{
		dialect:  SQLite(),
		entities: make(map[reflect.Type]*registered),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.dialect == nil {
		return nil, errors.New("forge: dialect cannot be nil")
	}
	if f.executor == nil && db != nil {
		f.executor = NewSQLExecutor(db)
	}
	return f, nil
}

// Dialect returns the configured dialect.
func (f *Forge) Dialect() Dialect {
	return f.dialect
}

// literal formats v with the configured escaping rule.
func (f *Forge) literal(v Value) string {
	return formatLiteral(v, f.escape)
}

// lookup returns the registration of an entity type.
func (f *Forge) lookup(t reflect.Type) (*registered, error) {
	f.mu.RLock()
	r, ok := f.entities[t]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, t)
	}
	return r, nil
}

// Entity is the typed handle of a registered entity.
type Entity[T any] struct {
	forge    *Forge
	reg      *registered
	onScan   func(ctx context.Context, result *T) error
	onRecord func(ctx context.Context, record *T) error
}

// Register describes T and caches its descriptor on f. Registering the same
// type twice returns a new handle over the cached descriptor.
//
// Every type reachable through an fk field must be registered before a
// builder for the owning type is created.
func Register[T any](f *Forge) (*Entity[T], error) {
	if f == nil {
		return nil, errors.New("forge: nil Forge")
	}

	t := reflect.TypeFor[T]()

	f.mu.RLock()
	r, ok := f.entities[t]
	f.mu.RUnlock()

	if !ok {
		desc, err := describe[T]()
		if err != nil {
			return nil, fmt.Errorf("forge: failed to describe %s: %w", t, err)
		}

		r = &registered{desc: desc}
		if hasStorableColumns(desc) {
			project, instance, err := buildSchema(desc, f.dialect)
			if err != nil {
				return nil, fmt.Errorf("forge: %s: %w", desc.Table, err)
			}
			r.project = project
			r.instance = instance
		}

		f.mu.Lock()
		if existing, ok := f.entities[t]; ok {
			r = existing
		} else {
			f.entities[t] = r
		}
		f.mu.Unlock()
	}

	return &Entity[T]{forge: f, reg: r}, nil
}

func hasStorableColumns(desc *Descriptor) bool {
	for _, field := range desc.Fields {
		if field.storable() {
			return true
		}
	}
	return false
}

// Descriptor returns the entity descriptor of T.
func (e *Entity[T]) Descriptor() *Descriptor {
	return e.reg.desc
}

// TableName returns the table T maps to.
func (e *Entity[T]) TableName() string {
	return e.reg.desc.Table
}

// Schema returns the DBML project generated for T, or nil when T has no
// columns of its own.
func (e *Entity[T]) Schema() *dbml.Project {
	return e.reg.project
}

// Instance returns the ASTQL instance used to validate column names.
func (e *Entity[T]) Instance() *astql.ASTQL {
	return e.reg.instance
}

// OnScan registers a callback that fires for every root record a Select decodes.
func (e *Entity[T]) OnScan(fn func(ctx context.Context, result *T) error) {
	e.onScan = fn
}

// OnRecord registers a callback that fires before a model is written by
// Insert or Update.
func (e *Entity[T]) OnRecord(fn func(ctx context.Context, record *T) error) {
	e.onRecord = fn
}

func (e *Entity[T]) callOnScan(ctx context.Context, result *T) error {
	if e.onScan == nil {
		return nil
	}
	return e.onScan(ctx, result)
}

func (e *Entity[T]) callOnRecord(ctx context.Context, record *T) error {
	if e.onRecord == nil || record == nil {
		return nil
	}
	return e.onRecord(ctx, record)
}

// validateColumn checks that column belongs to the table of T.
func (e *Entity[T]) validateColumn(column string) error {
	field, ok := e.reg.desc.Field(column)
	if !ok || !field.storable() || e.reg.instance == nil {
		return fmt.Errorf("%w: %q on %s", ErrUnknownColumn, column, e.reg.desc.Table)
	}
	if _, err := e.reg.instance.TryF(column); err != nil {
		return fmt.Errorf("%w: %q on %s: %w", ErrUnknownColumn, column, e.reg.desc.Table, err)
	}
	return nil
}

// TableExists reports whether table exists in the connected database.
func (f *Forge) TableExists(ctx context.Context, table string) (bool, error) {
	result, err := f.query(ctx, table, opTableExists, f.dialect.TableExists(table))
	if err != nil {
		return false, err
	}
	return result != "", nil
}

// Query renders fragment and returns the first column of the first row of
// its result, or "" when it produced no row.
func (f *Forge) Query(ctx context.Context, fragment Fragment) (string, error) {
	sql, err := Render(fragment)
	if err != nil {
		return "", err
	}
	return f.query(ctx, "", opQuery, sql)
}

// Exec renders fragment and executes it as a statement.
func (f *Forge) Exec(ctx context.Context, fragment Fragment) (int64, error) {
	sql, err := Render(fragment)
	if err != nil {
		return 0, err
	}
	return f.exec(ctx, "", opExec, sql)
}
