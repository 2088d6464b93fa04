package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/compasscal/compass/internal/core"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedScheme is returned by Open for DSNs it cannot route.
var ErrUnsupportedScheme = errors.New("unsupported store scheme")

// Open returns the backend selected by dsn:
//
//	memory://                in-process, lost on exit
//	sqlite://path.db         SQLite through modernc.org/sqlite (pure Go)
//	sqlite3://path.db        SQLite through mattn/go-sqlite3 (cgo)
//	postgres://...           Postgres through lib/pq
//	path.db                  same as sqlite://
func Open(dsn string) (core.Storage, error) {
	dsn = strings.TrimSpace(dsn)
	scheme, rest, hasScheme := strings.Cut(dsn, "://")
	if !hasScheme {
		if dsn == "" {
			return nil, fmt.Errorf("%w: empty dsn", ErrUnsupportedScheme)
		}
		return newSQLStore(dialectSQLite, dsn)
	}

	switch strings.ToLower(scheme) {
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "sqlite", "file":
		return newSQLStore(dialectSQLite, rest)
	case "sqlite3":
		return newSQLStore(dialectSQLite3, rest)
	case "postgres", "postgresql":
		return newSQLStore(dialectPostgres, dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}
