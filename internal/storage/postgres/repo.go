// Package postgres implements a Postgres repository using pgx v5. Bulk
// inserts stream through COPY; lookups and saves use the shared sqlstore
// statement builders with $n placeholders.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rowexport/internal/ddl"
	"rowexport/internal/logging"
	"rowexport/internal/storage"
	"rowexport/internal/storage/sqlstore"
	"rowexport/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string // connection string for pgxpool
	Logger logging.Logger
}

// Dialect renders Postgres statements. Only its query builders are used; the
// pool executes them.
var Dialect = sqlstore.Dialect{
	Name:           "postgres",
	Quote:          pgIdent,
	Placeholder:    sqlstore.DollarN,
	ColumnType:     MapType,
	IdentityColumn: "BIGSERIAL PRIMARY KEY",
	IDStrategy:     sqlstore.Returning,
	CreateStyle:    ddl.Style{IfNotExists: true},
}

// MapType maps a model field to a Postgres column type.
func MapType(f model.Field) string {
	switch f.Type {
	case model.Integer:
		return "BIGINT"
	case model.Float:
		return "DOUBLE PRECISION"
	case model.Boolean:
		return "BOOLEAN"
	case model.Date:
		return "DATE"
	case model.DateTime:
		return "TIMESTAMP"
	default:
		if f.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
		}
		return "TEXT"
	}
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard{}
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, log: log.WithField("backend", "postgres")}, closeFn, nil
}

// Get implements storage.Repository.
func (r *Repository) Get(ctx context.Context, m *model.Model, filter map[string]any) (*model.Record, error) {
	q, err := Dialect.SelectQuery(m, filter)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", m.Table, pgErr(err))
	}
	defer rows.Close()

	var found *model.Record
	for rows.Next() {
		if found != nil {
			return nil, fmt.Errorf("postgres: %s %v: %w", m.Table, filter, model.ErrMultipleRecords)
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", m.Table, err)
		}
		found = sqlstore.RecordFromRow(m, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", m.Table, pgErr(err))
	}
	if found == nil {
		return nil, fmt.Errorf("postgres: %s %v: %w", m.Table, filter, model.ErrNotFound)
	}
	return found, nil
}

// Save implements storage.Repository. New identity rows get their id from
// RETURNING; natural-key rows are updated or, when absent, inserted.
func (r *Repository) Save(ctx context.Context, rec *model.Record) error {
	m := rec.Model()
	if m.HasIdentity() && rec.PK() == nil {
		q := Dialect.InsertQuery(rec)
		var id int64
		if err := r.pool.QueryRow(ctx, q.SQL, q.Args...).Scan(&id); err != nil {
			return fmt.Errorf("postgres: insert %s: %w", m.Table, pgErr(err))
		}
		rec.SetPK(id)
		return nil
	}
	if rec.PK() == nil {
		return fmt.Errorf("postgres: save %s: primary key %q is not set", m.Table, m.PrimaryKeyName())
	}

	q := Dialect.UpdateQuery(rec)
	tag, err := r.pool.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", m.Table, pgErr(err))
	}
	if tag.RowsAffected() > 0 || m.HasIdentity() {
		return nil
	}
	ins := Dialect.InsertQuery(rec)
	if _, err := r.pool.Exec(ctx, ins.SQL, ins.Args...); err != nil {
		return fmt.Errorf("postgres: insert %s: %w", m.Table, pgErr(err))
	}
	return nil
}

// BulkCreate implements storage.Repository with COPY FROM.
func (r *Repository) BulkCreate(ctx context.Context, m *model.Model, recs []*model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	cols, rows := sqlstore.BulkRows(m, recs)
	n, err := r.pool.CopyFrom(ctx, splitFQN(m.Table), cols, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy into %s: %w", m.Table, pgErr(err))
	}
	r.log.WithFields(map[string]any{"table": m.Table, "rows": n}).Debug("copy done")
	return n, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", pgErr(err))
	}
	return nil
}

// Close implements storage.Repository.
func (r *Repository) Close() { r.pool.Close() }

// pgErr surfaces the server's detail message, which pgx leaves out of
// Error().
func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pe.Detail)
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
