package forge

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

// Team is the root of the test graph.
type Team struct {
	ID      int      `db:"id" constraints:"primarykey"`
	Name    string   `db:"name" constraints:"notnull"`
	CoachID int      `db:"coach_id"`
	Coach   *Coach   `db:"coach" fk:"coach_id,id"`
	Players []Player `db:"players" fk:"id,team_id"`
}

// Player belongs to a Team.
type Player struct {
	ID        int        `db:"id" constraints:"primarykey"`
	TeamID    int        `db:"team_id"`
	Name      string     `db:"name"`
	Active    bool       `db:"active"`
	Contracts []Contract `db:"contracts" fk:"id,player_id"`
}

// Contract belongs to a Player.
type Contract struct {
	ID       int    `db:"id" constraints:"primarykey"`
	PlayerID int    `db:"player_id"`
	Terms    string `db:"terms"`
}

// Coach is reached from Team through a single-object relation.
type Coach struct {
	ID   int    `db:"id" constraints:"primarykey"`
	Name string `db:"name"`
}

// Item is the minimal round-trip entity.
type Item struct {
	ID   int    `db:"id" constraints:"primarykey"`
	Name string `db:"name"`
}

// Node references itself in both directions.
type Node struct {
	ID       int     `db:"id" constraints:"primarykey"`
	ParentID int     `db:"parent_id"`
	Parent   *Node   `db:"parent" fk:"parent_id,id"`
	Children []*Node `db:"children" fk:"id,parent_id"`
}

// Tag has no primary key.
type Tag struct {
	Label string `db:"label"`
}

// Post relates to an entity without a primary key.
type Post struct {
	ID   int    `db:"id" constraints:"primarykey"`
	Body string `db:"body"`
	Tags []Tag  `db:"tags" fk:"id,post_id"`
}

// Account covers every storage kind.
type Account struct {
	ID       uuid.UUID `db:"id" constraints:"primarykey"`
	Email    string    `db:"email" constraints:"notnull"`
	Age      *int      `db:"age"`
	Balance  float64   `db:"balance"`
	Verified bool      `db:"verified"`
	Secret   string    `db:"-"`
}

// TableName overrides the Go type name.
func (Account) TableName() string { return "accounts" }

// fixture bundles the registered test entities.
type fixture struct {
	forge     *Forge
	teams     *Entity[Team]
	players   *Entity[Player]
	contracts *Entity[Contract]
	coaches   *Entity[Coach]
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f, err := New(nil, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fx := &fixture{forge: f}
	if fx.teams, err = Register[Team](f); err != nil {
		t.Fatalf("Register[Team]() error = %v", err)
	}
	if fx.players, err = Register[Player](f); err != nil {
		t.Fatalf("Register[Player]() error = %v", err)
	}
	if fx.contracts, err = Register[Contract](f); err != nil {
		t.Fatalf("Register[Contract]() error = %v", err)
	}
	if fx.coaches, err = Register[Coach](f); err != nil {
		t.Fatalf("Register[Coach]() error = %v", err)
	}
	return fx
}

func mustRegister[T any](t *testing.T, f *Forge) *Entity[T] {
	t.Helper()
	e, err := Register[T](f)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return e
}

// recordingExecutor answers every query with result and records statements.
type recordingExecutor struct {
	result string
	err    error
	rows   int64
	sql    []string
}

func (r *recordingExecutor) Query(_ context.Context, sql string) (string, error) {
	r.sql = append(r.sql, sql)
	return r.result, r.err
}

func (r *recordingExecutor) Exec(_ context.Context, sql string) (int64, error) {
	r.sql = append(r.sql, sql)
	return r.rows, r.err
}
