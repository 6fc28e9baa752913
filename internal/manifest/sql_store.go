package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const manifestTable = "webpack_manifest"

// SQLStore keeps the manifest in a SQL table with one row per asset and
// file type. It works with SQLite and PostgreSQL.
type SQLStore struct {
	db         *sql.DB
	insertStmt string
}

// NewSQLiteStore opens (and creates) a SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, false)
}

// NewPostgresStore connects to PostgreSQL through the pgx driver.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newSQLStore(db, true)
}

func newSQLStore(db *sql.DB, postgres bool) (*SQLStore, error) {
	schema := `CREATE TABLE IF NOT EXISTS ` + manifestTable + ` (
		asset TEXT NOT NULL,
		file_type TEXT NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (asset, file_type)
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	insert := `INSERT INTO ` + manifestTable + ` (asset, file_type, url) VALUES (?, ?, ?)`
	if postgres {
		insert = `INSERT INTO ` + manifestTable + ` (asset, file_type, url) VALUES ($1, $2, $3)`
	}

	return &SQLStore{db: db, insertStmt: insert}, nil
}

// Save replaces the stored manifest with m in one transaction.
func (s *SQLStore) Save(ctx context.Context, m Manifest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+manifestTable); err != nil {
		return fmt.Errorf("clear manifest: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insertStmt)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, name := range m.Names() {
		for fileType, url := range m[name] {
			if _, err := stmt.ExecContext(ctx, name, fileType, url); err != nil {
				return fmt.Errorf("insert %s/%s: %w", name, fileType, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Load returns the stored manifest, or ErrNotFound when the table is empty.
func (s *SQLStore) Load(ctx context.Context) (Manifest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT asset, file_type, url FROM `+manifestTable)
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}
	defer rows.Close()

	m := make(Manifest)
	for rows.Next() {
		var name, fileType, url string
		if err := rows.Scan(&name, &fileType, &url); err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		if m[name] == nil {
			m[name] = make(map[string]string)
		}
		m[name][fileType] = url
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}

	return m, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
