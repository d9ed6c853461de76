// Package sqlite implements a SQLite-backed storage.Repository on
// modernc.org/sqlite (pure Go, no cgo). Bulk inserts run as prepared INSERTs
// inside one transaction; SQLite has no COPY-style bulk API.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"rowexport/internal/ddl"
	"rowexport/internal/logging"
	"rowexport/internal/storage/sqlstore"
	"rowexport/pkg/model"

	_ "modernc.org/sqlite"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:rowexport.db?_pragma=foreign_keys(1)"
	//   "rowexport.db"
	//   ":memory:"
	DSN string

	Logger logging.Logger
}

// Dialect is the SQLite flavour of sqlstore.Dialect.
var Dialect = sqlstore.Dialect{
	Name:           "sqlite",
	Quote:          sqlstore.DoubleQuote,
	Placeholder:    sqlstore.QuestionMark,
	ColumnType:     MapType,
	IdentityColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
	IDStrategy:     sqlstore.LastInsertID,
	CreateStyle:    ddl.Style{IfNotExists: true},
}

// MapType maps a model field to a SQLite column type. Temporal types keep
// their DATE/DATETIME declarations so the driver parses them back into
// time.Time.
func MapType(f model.Field) string {
	switch f.Type {
	case model.Integer:
		return "INTEGER"
	case model.Float:
		return "REAL"
	case model.Boolean:
		return "BOOLEAN"
	case model.Date:
		return "DATE"
	case model.DateTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// NewRepository opens a SQLite database.
func NewRepository(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Every connection to an in-memory database is a separate database.
	if isMemory(cfg.DSN) {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return sqlstore.New(db, Dialect, cfg.Logger), nil
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
