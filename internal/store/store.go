package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens a SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), DriverSQLite, dbPath)
}

// Open opens a database for the given driver and ensures the schema exists.
// For SQLite dsn is a file path; for Postgres it is a connection URL.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var (
		drvName string
		source  string
	)
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "qextractor.db"
		}
		source = dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	case DriverPostgres:
		drvName = "pgx"
		source = dsn
		if source == "" {
			source = "postgres://localhost:5432/qextractor?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites '?' placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS exams (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	question_type TEXT NOT NULL,
	question_statement TEXT NOT NULL,
	options_json TEXT NOT NULL DEFAULT '[]',
	answer TEXT,
	solution TEXT,
	year INTEGER,
	slot TEXT,
	part TEXT,
	correct_marks REAL,
	incorrect_marks REAL,
	skipped_marks REAL,
	partial_marks REAL,
	time_minutes REAL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_files (
	hash TEXT NOT NULL,
	course_id TEXT NOT NULL,
	name TEXT NOT NULL,
	question_count INTEGER NOT NULL DEFAULT 0,
	extracted_at DATETIME NOT NULL,
	PRIMARY KEY (hash, course_id)
);

CREATE TABLE IF NOT EXISTS wizard_sessions (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS exams (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	question_type TEXT NOT NULL,
	question_statement TEXT NOT NULL,
	options_json TEXT NOT NULL DEFAULT '[]',
	answer TEXT,
	solution TEXT,
	year INTEGER,
	slot TEXT,
	part TEXT,
	correct_marks DOUBLE PRECISION,
	incorrect_marks DOUBLE PRECISION,
	skipped_marks DOUBLE PRECISION,
	partial_marks DOUBLE PRECISION,
	time_minutes DOUBLE PRECISION,
	position INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_files (
	hash TEXT NOT NULL,
	course_id TEXT NOT NULL,
	name TEXT NOT NULL,
	question_count INTEGER NOT NULL DEFAULT 0,
	extracted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (hash, course_id)
);

CREATE TABLE IF NOT EXISTS wizard_sessions (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`
