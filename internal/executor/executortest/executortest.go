// Package executortest provides a seeded in-memory SQLite database matching
// the schematest registry.
package executortest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var fixture = []string{
	`CREATE TABLE companies (id INTEGER PRIMARY KEY, name TEXT NOT NULL, city TEXT, founded INTEGER)`,
	`CREATE TABLE people (
		id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, bio TEXT,
		status TEXT NOT NULL, age INTEGER NOT NULL, created_at DATETIME NOT NULL,
		company_id INTEGER REFERENCES companies(id))`,
	`CREATE TABLE purchases (id INTEGER PRIMARY KEY, total REAL NOT NULL, status TEXT NOT NULL,
		placed_at DATETIME NOT NULL, person_id INTEGER NOT NULL REFERENCES people(id))`,
	`CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT NOT NULL)`,
	`CREATE TABLE person_tags (person_id INTEGER NOT NULL, tag_id INTEGER NOT NULL)`,
	`CREATE TABLE profiles (id INTEGER PRIMARY KEY, headline TEXT, person_id INTEGER UNIQUE)`,
}

// Day returns 09:00 UTC on the given day of 2024.
func Day(month, d int) time.Time {
	return time.Date(2024, time.Month(month), d, 9, 0, 0, 0, time.UTC)
}

type seedRow struct {
	stmt string
	args []any
}

var seed = []seedRow{
	{`INSERT INTO companies VALUES (?, ?, ?, ?)`, []any{1, "Acme", "Oslo", 1990}},
	{`INSERT INTO companies VALUES (?, ?, ?, ?)`, []any{2, "Globex", "Bergen", nil}},
	{`INSERT INTO companies VALUES (?, ?, ?, ?)`, []any{3, "Initech", nil, 2001}},

	{`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, []any{1, "Ann", "ann@acme.io", "Loves Go and databases", "ACTIVE", 34, Day(1, 10), 1}},
	{`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, []any{2, "Bob", nil, "Keyword abc inside", "PENDING", 27, Day(2, 15), 2}},
	{`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, []any{3, "Cara", "cara@x.io", nil, "ACTIVE", 45, Day(3, 20), nil}},
	{`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, []any{4, "Dan", "dan@acme.io", "plain", "INACTIVE", 19, Day(4, 25), 1}},
	{`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, []any{5, "Abcde", nil, nil, "PENDING", 52, Day(5, 30), 3}},

	{`INSERT INTO purchases VALUES (?, ?, ?, ?, ?)`, []any{1, 10.5, "OPEN", Day(1, 11), 1}},
	{`INSERT INTO purchases VALUES (?, ?, ?, ?, ?)`, []any{2, 99.0, "PAID", Day(1, 12), 1}},
	{`INSERT INTO purchases VALUES (?, ?, ?, ?, ?)`, []any{3, 45.0, "OPEN", Day(2, 16), 2}},
	{`INSERT INTO purchases VALUES (?, ?, ?, ?, ?)`, []any{4, 5.0, "CANCELLED", Day(4, 26), 4}},

	{`INSERT INTO tags VALUES (?, ?)`, []any{1, "go"}},
	{`INSERT INTO tags VALUES (?, ?)`, []any{2, "sql"}},
	{`INSERT INTO tags VALUES (?, ?)`, []any{3, "music"}},
	{`INSERT INTO person_tags VALUES (?, ?)`, []any{1, 1}},
	{`INSERT INTO person_tags VALUES (?, ?)`, []any{1, 2}},
	{`INSERT INTO person_tags VALUES (?, ?)`, []any{2, 3}},
	{`INSERT INTO person_tags VALUES (?, ?)`, []any{4, 1}},

	{`INSERT INTO profiles VALUES (?, ?, ?)`, []any{1, "Gopher", 1}},
	{`INSERT INTO profiles VALUES (?, ?, ?)`, []any{2, nil, 3}},
}

// Driver opens a fresh in-memory database, creates the schematest tables and
// seeds them. SQL functions must be registered before it is called.
//
//	people:    1 Ann (ACTIVE, 34, Acme)   2 Bob (PENDING, 27, Globex)
//	           3 Cara (ACTIVE, 45, none)  4 Dan (INACTIVE, 19, Acme)
//	           5 Abcde (PENDING, 52, Initech)
//	purchases: Ann 10.5 OPEN, 99 PAID; Bob 45 OPEN; Dan 5 CANCELLED
//	tags:      Ann go, sql; Bob music; Dan go
func Driver(t testing.TB) dialect.Driver {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	drv := entsql.OpenDB(dialect.SQLite, db)
	ctx := context.Background()
	for _, stmt := range fixture {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}
	for _, s := range seed {
		require.NoError(t, drv.Exec(ctx, s.stmt, s.args, nil))
	}
	return drv
}
