package seen

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS seen (
	repo_key   TEXT NOT NULL,
	login      TEXT NOT NULL,
	first_seen INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	PRIMARY KEY (repo_key, login)
)`

// SQLiteStore persists pairs in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, errors.Wrap(err, "creating seen table")
	}
	return &SQLiteStore{db: db}, nil
}

// Contains reports whether login was added under key.
func (s *SQLiteStore) Contains(ctx context.Context, key, login string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen WHERE repo_key = ? AND login = ?`,
		key, strings.ToLower(login)).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "querying seen")
	}
	return n > 0, nil
}

// Add records login under key. Adding an existing pair is a no-op.
func (s *SQLiteStore) Add(ctx context.Context, key, login string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen (repo_key, login) VALUES (?, ?)`,
		key, strings.ToLower(login))
	return errors.Wrap(err, "inserting seen")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
