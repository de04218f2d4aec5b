// Package sqldb implements the repositories on a relational database through
// database/sql. SQLite (mattn/go-sqlite3) backs development and tests,
// Postgres (pgx stdlib) backs production. Queries are written with "?"
// placeholders and rebound per dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	name   string
	schema []string
	// numbered placeholders ($1, $2, ...) instead of "?"
	numbered bool
	// uniqueViolation reports the violated column ("name", "id", ...)
	uniqueViolation     func(error) (string, bool)
	foreignKeyViolation func(error) bool
	// forUpdate is appended to row reads that precede a write in the same tx
	forUpdate string
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sqliteDialect = dialect{
	name: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ingredients (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL UNIQUE,
			description     TEXT NOT NULL,
			diet_violations TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL,
			steps       TEXT NOT NULL DEFAULT '[]',
			time        TEXT NOT NULL DEFAULT '{}',
			servings    TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipe_ingredients (
			recipe_id     TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			ingredient_id TEXT NOT NULL REFERENCES ingredients(id) ON DELETE RESTRICT,
			position      INTEGER NOT NULL,
			amount        TEXT NOT NULL,
			notes         TEXT,
			optional      BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (recipe_id, ingredient_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_ingredient ON recipe_ingredients(ingredient_id)`,
	},
	uniqueViolation: func(err error) (string, bool) {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return "", false
		}
		if se.ExtendedCode != sqlite3.ErrConstraintUnique && se.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return "", false
		}
		// "UNIQUE constraint failed: ingredients.name"
		msg := se.Error()
		if i := strings.LastIndex(msg, "."); i >= 0 {
			return strings.TrimSpace(msg[i+1:]), true
		}
		return "id", true
	},
	// ON DELETE RESTRICT surfaces as SQLITE_CONSTRAINT_TRIGGER, not
	// SQLITE_CONSTRAINT_FOREIGNKEY.
	foreignKeyViolation: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
			return false
		}
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return true
		case sqlite3.ErrConstraintTrigger:
			return strings.Contains(se.Error(), "FOREIGN KEY constraint failed")
		}
		return false
	},
}

var postgresDialect = dialect{
	name:      DriverPostgres,
	numbered:  true,
	forUpdate: " FOR UPDATE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ingredients (
			id              UUID PRIMARY KEY,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL,
			diet_violations JSONB NOT NULL DEFAULT '[]',
			CONSTRAINT ingredients_name_key UNIQUE (name)
		)`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL,
			steps       JSONB NOT NULL DEFAULT '[]',
			time        JSONB NOT NULL DEFAULT '{}',
			servings    JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipe_ingredients (
			recipe_id     UUID NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			ingredient_id UUID NOT NULL REFERENCES ingredients(id) ON DELETE RESTRICT,
			position      INTEGER NOT NULL,
			amount        JSONB NOT NULL,
			notes         TEXT,
			optional      BOOLEAN NOT NULL DEFAULT FALSE,
			CONSTRAINT recipe_ingredients_pkey PRIMARY KEY (recipe_id, ingredient_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_ingredient ON recipe_ingredients(ingredient_id)`,
	},
	uniqueViolation: func(err error) (string, bool) {
		var pe *pgconn.PgError
		if !errors.As(err, &pe) || pe.Code != "23505" {
			return "", false
		}
		switch pe.ConstraintName {
		case "ingredients_name_key":
			return "name", true
		case "recipe_ingredients_pkey":
			return "ingredient_id", true
		default:
			return "id", true
		}
	},
	foreignKeyViolation: func(err error) bool {
		var pe *pgconn.PgError
		return errors.As(err, &pe) && pe.Code == "23503"
	},
}

// DB wraps a sql.DB with the dialect it speaks.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// Open connects to the database and applies the schema. For SQLite, dsn is
// a file path; for Postgres, a connection string.
func Open(driver, dsn string) (*DB, error) {
	var (
		d          dialect
		driverName string
	)
	switch driver {
	case DriverSQLite:
		d, driverName = sqliteDialect, "sqlite3"
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	case DriverPostgres:
		d, driverName = postgresDialect, "pgx"
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: ping: %w", err)
	}
	for _, stmt := range d.schema {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqldb: apply schema: %w", err)
		}
	}
	return &DB{conn: conn, dialect: d}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Ingredients returns the ingredient repository backed by db.
func (db *DB) Ingredients() *IngredientRepository {
	return &IngredientRepository{db: db}
}

// Recipes returns the recipe repository backed by db.
func (db *DB) Recipes() *RecipeRepository {
	return &RecipeRepository{db: db}
}

func (db *DB) exec(ctx context.Context, q sqlExecer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, q sqlQuerier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, q sqlQuerier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a transaction and commits when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqldb: commit: %w", err)
	}
	return nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
