// Package mysql implements a MySQL-backed storage.Repository on
// go-sql-driver/mysql. Bulk inserts are multi-row INSERT statements, chunked
// so that no statement exceeds the server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rowexport/internal/ddl"
	"rowexport/internal/logging"
	"rowexport/internal/storage"
	"rowexport/internal/storage/sqlstore"
	"rowexport/pkg/model"

	"github.com/go-sql-driver/mysql"
)

// maxPlaceholders is the prepared-statement parameter limit of MySQL.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN    string // go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/db
	Logger logging.Logger
}

// Dialect is the MySQL flavour of sqlstore.Dialect.
var Dialect = sqlstore.Dialect{
	Name:           "mysql",
	Quote:          myIdent,
	Placeholder:    sqlstore.QuestionMark,
	ColumnType:     MapType,
	IdentityColumn: "BIGINT AUTO_INCREMENT PRIMARY KEY",
	IDStrategy:     sqlstore.LastInsertID,
	CreateStyle:    ddl.Style{IfNotExists: true},
	BulkInsert:     multiRowInsert,
}

// MapType maps a model field to a MySQL column type. Text is VARCHAR so it
// can take part in UNIQUE constraints.
func MapType(f model.Field) string {
	switch f.Type {
	case model.Integer:
		return "BIGINT"
	case model.Float:
		return "DOUBLE"
	case model.Boolean:
		return "BOOLEAN"
	case model.Date:
		return "DATE"
	case model.DateTime:
		return "DATETIME(6)"
	default:
		n := f.MaxLength
		if n <= 0 {
			n = 255
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	}
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
//
// The DSN is rewritten so that time columns scan into time.Time and UPDATE
// reports matched rather than changed rows, which the natural-key save path
// relies on.
func NewRepository(ctx context.Context, cfg Config) (*sqlstore.Store, func(), error) {
	mc, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	s := sqlstore.New(db, Dialect, cfg.Logger)
	return s, s.Close, nil
}

func parseDSN(dsn string) (*mysql.Config, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql dsn: must not be empty")
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.ClientFoundRows = true
	return mc, nil
}

// multiRowInsert writes rows as INSERT ... VALUES (...), (...) statements in
// one transaction.
func multiRowInsert(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("no columns")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	flush := func(ctx context.Context, chunk [][]any) (int64, error) {
		stmt, args := insertValues(table, columns, chunk)
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	b, err := storage.NewBatcher[[]any](chunkSize(len(columns)), flush, nil)
	if err != nil {
		rollback()
		return 0, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			rollback()
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if err := b.Add(ctx, row); err != nil {
			rollback()
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := b.Flush(ctx); err != nil {
		rollback()
		return 0, fmt.Errorf("insert chunk: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return b.Total(), nil
}

// chunkSize is the number of rows per statement for ncols columns.
func chunkSize(ncols int) int {
	n := maxPlaceholders / ncols
	if n < 1 {
		n = 1
	}
	return n
}

func insertValues(table string, columns []string, rows [][]any) (string, []any) {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = myIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", myFQN(table), strings.Join(cols, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly schema-qualified name segment by segment.
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}
