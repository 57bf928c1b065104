package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteScheme = "sqlite://"

// IsSQLite reports whether a DATABASE_URL selects the embedded store.
func IsSQLite(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, sqliteScheme)
}

// SQLitePath returns the file path (or ":memory:") of a sqlite:// URL.
func SQLitePath(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, sqliteScheme)
}

// NewSQLiteDB opens the embedded store at path. Writes are serialized through
// a single connection, which also keeps ":memory:" databases alive.
func NewSQLiteDB(ctx context.Context, path string, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	log.Info().
		Str("path", path).
		Msg("SQLite opened")

	return db, nil
}
