// Package mssql implements a Microsoft SQL Server repository on go-mssqldb.
// Bulk inserts use the driver's bulk copy API; lookups and saves go through
// the shared sqlstore statement builders.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rowexport/internal/ddl"
	"rowexport/internal/logging"
	"rowexport/internal/storage/sqlstore"
	"rowexport/pkg/model"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN    string
	Logger logging.Logger
}

// Dialect is the SQL Server flavour of sqlstore.Dialect. SQL Server has no
// CREATE TABLE IF NOT EXISTS, so the statement runs behind an OBJECT_ID guard.
var Dialect = sqlstore.Dialect{
	Name:           "mssql",
	Quote:          msIdent,
	Placeholder:    sqlstore.AtPN,
	ColumnType:     MapType,
	IdentityColumn: "BIGINT IDENTITY(1,1) PRIMARY KEY",
	IDStrategy:     sqlstore.OutputInserted,
	CreateStyle:    ddl.Style{Guard: guardCreate},
	BulkInsert:     copyIn,
}

// MapType maps a model field to a SQL Server column type. Text without a
// MaxLength becomes NVARCHAR(MAX), which cannot take part in a UNIQUE
// constraint; give unique text fields a MaxLength.
func MapType(f model.Field) string {
	switch f.Type {
	case model.Integer:
		return "BIGINT"
	case model.Float:
		return "FLOAT"
	case model.Boolean:
		return "BIT"
	case model.Date:
		return "DATE"
	case model.DateTime:
		return "DATETIME2"
	default:
		if f.MaxLength > 0 && f.MaxLength <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", f.MaxLength)
		}
		return "NVARCHAR(MAX)"
	}
}

// guardCreate wraps the CREATE TABLE in IF OBJECT_ID(...) IS NULL so that it
// is idempotent.
func guardCreate(quotedFQN, create string) string {
	lit := strings.ReplaceAll(quotedFQN, "'", "''")
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND;", lit, create)
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*sqlstore.Store, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	s := sqlstore.New(db, Dialect, cfg.Logger)
	return s, s.Close, nil
}

// copyIn performs a bulk insert directly into table inside one transaction.
func copyIn(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
