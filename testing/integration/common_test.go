//go:build integration

// Package integration provides PostgreSQL integration tests for forge.
// These tests use testcontainers to spin up a PostgreSQL database automatically.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/zoobzio/forge"
)

// Team is the root entity of the integration graph.
type Team struct {
	ID      int      `db:"id" constraints:"primarykey"`
	Name    string   `db:"name" constraints:"notnull"`
	Players []Player `db:"players" fk:"id,team_id"`
}

// Player belongs to a Team and holds one Contract.
type Player struct {
	ID       int       `db:"id" constraints:"primarykey"`
	TeamID   int       `db:"team_id"`
	Name     string    `db:"name"`
	Active   bool      `db:"active"`
	Rating   float64   `db:"rating"`
	Contract *Contract `db:"contract" fk:"id,player_id"`
}

// Contract belongs to a Player.
type Contract struct {
	ID       int    `db:"id" constraints:"primarykey"`
	PlayerID int    `db:"player_id"`
	Terms    string `db:"terms"`
}

// testDB holds a database connection for tests.
type testDB struct {
	db        *sqlx.DB
	container *postgres.PostgresContainer
}

// setupTestDB creates a PostgreSQL container and returns a database connection.
func setupTestDB(t *testing.T) *testDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	return &testDB{
		db:        db,
		container: pgContainer,
	}
}

// cleanup closes the database and terminates the container.
func (tdb *testDB) cleanup(t *testing.T) {
	t.Helper()
	if tdb.db != nil {
		tdb.db.Close()
	}
	if tdb.container != nil {
		if err := tdb.container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

// handles bundles the registered entities of the graph.
type handles struct {
	forge     *forge.Forge
	teams     *forge.Entity[Team]
	players   *forge.Entity[Player]
	contracts *forge.Entity[Contract]
}

// setupGraph registers the graph on a Postgres Forge and creates its tables.
func setupGraph(t *testing.T, db *sqlx.DB) *handles {
	t.Helper()
	ctx := context.Background()

	f, err := forge.New(db, forge.WithDialect(forge.Postgres()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	h := &handles{forge: f}
	if h.teams, err = forge.Register[Team](f); err != nil {
		t.Fatalf("Register[Team]() error: %v", err)
	}
	if h.players, err = forge.Register[Player](f); err != nil {
		t.Fatalf("Register[Player]() error: %v", err)
	}
	if h.contracts, err = forge.Register[Contract](f); err != nil {
		t.Fatalf("Register[Contract]() error: %v", err)
	}

	if err := h.teams.CreateTable().Exec(ctx); err != nil {
		t.Fatalf("create Team: %v", err)
	}
	if err := h.players.CreateTable().Exec(ctx); err != nil {
		t.Fatalf("create Player: %v", err)
	}
	if err := h.contracts.CreateTable().Exec(ctx); err != nil {
		t.Fatalf("create Contract: %v", err)
	}
	return h
}

// seed inserts one team with two players and one contract.
func seed(t *testing.T, h *handles) {
	t.Helper()
	ctx := context.Background()

	if _, err := h.teams.Insert(&Team{ID: 1, Name: "Reds"}).Exec(ctx); err != nil {
		t.Fatalf("insert team: %v", err)
	}
	for _, p := range []*Player{
		{ID: 10, TeamID: 1, Name: "Ana", Active: true, Rating: 7.5},
		{ID: 11, TeamID: 1, Name: "Ben", Active: false, Rating: 6},
	} {
		if _, err := h.players.Insert(p).Exec(ctx); err != nil {
			t.Fatalf("insert player: %v", err)
		}
	}
	if _, err := h.contracts.Insert(&Contract{ID: 100, PlayerID: 10, Terms: "two years"}).Exec(ctx); err != nil {
		t.Fatalf("insert contract: %v", err)
	}
}
