package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rowexport/internal/logging"
	"rowexport/internal/storage"
	"rowexport/pkg/model"
)

// Store is a database/sql implementation of storage.Repository.
type Store struct {
	db  *sql.DB
	d   Dialect
	log logging.Logger
}

var _ storage.Repository = (*Store)(nil)

// New wraps an open database handle. The Store owns db and closes it in Close.
func New(db *sql.DB, d Dialect, log logging.Logger) *Store {
	if log == nil {
		log = logging.Discard{}
	}
	return &Store{db: db, d: d, log: log.WithField("backend", d.Name)}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect { return s.d }

// Get implements storage.Repository.
func (s *Store) Get(ctx context.Context, m *model.Model, filter map[string]any) (*model.Record, error) {
	q, err := s.d.SelectQuery(m, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: select %s: %w", s.d.Name, m.Table, err)
	}
	defer rows.Close()

	var found *model.Record
	for rows.Next() {
		if found != nil {
			return nil, fmt.Errorf("%s: %s %v: %w", s.d.Name, m.Table, filter, model.ErrMultipleRecords)
		}
		vals, err := scanRow(rows, len(selectColumns(m)))
		if err != nil {
			return nil, fmt.Errorf("%s: scan %s: %w", s.d.Name, m.Table, err)
		}
		found = RecordFromRow(m, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: select %s: %w", s.d.Name, m.Table, err)
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %s %v: %w", s.d.Name, m.Table, filter, model.ErrNotFound)
	}
	return found, nil
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

// Save implements storage.Repository. Identity-keyed records without an id
// are inserted; records with an id are updated. Natural-key records are
// updated, or inserted when no row has their key.
func (s *Store) Save(ctx context.Context, rec *model.Record) error {
	m := rec.Model()
	if m.HasIdentity() {
		if rec.PK() == nil {
			return s.insert(ctx, rec)
		}
		_, err := s.update(ctx, rec)
		return err
	}

	if rec.PK() == nil {
		return fmt.Errorf("%s: save %s: primary key %q is not set", s.d.Name, m.Table, m.PrimaryKeyName())
	}
	n, err := s.update(ctx, rec)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.insert(ctx, rec)
}

func (s *Store) insert(ctx context.Context, rec *model.Record) error {
	m := rec.Model()
	q := s.d.InsertQuery(rec)

	if !m.HasIdentity() {
		if _, err := s.db.ExecContext(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("%s: insert %s: %w", s.d.Name, m.Table, err)
		}
		return nil
	}

	switch s.d.IDStrategy {
	case Returning, OutputInserted:
		var id int64
		if err := s.db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&id); err != nil {
			return fmt.Errorf("%s: insert %s: %w", s.d.Name, m.Table, err)
		}
		rec.SetPK(id)
	default:
		res, err := s.db.ExecContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return fmt.Errorf("%s: insert %s: %w", s.d.Name, m.Table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%s: insert %s: last insert id: %w", s.d.Name, m.Table, err)
		}
		rec.SetPK(id)
	}
	return nil
}

func (s *Store) update(ctx context.Context, rec *model.Record) (int64, error) {
	m := rec.Model()
	q := s.d.UpdateQuery(rec)
	res, err := s.db.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, fmt.Errorf("%s: update %s: %w", s.d.Name, m.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: update %s: rows affected: %w", s.d.Name, m.Table, err)
	}
	return n, nil
}

// BulkCreate implements storage.Repository.
func (s *Store) BulkCreate(ctx context.Context, m *model.Model, recs []*model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	cols, rows := BulkRows(m, recs)
	bulk := s.d.BulkInsert
	if bulk == nil {
		bulk = s.preparedInsert
	}
	n, err := bulk(ctx, s.db, m.Table, cols, rows)
	if err != nil {
		return n, fmt.Errorf("%s: bulk insert %s: %w", s.d.Name, m.Table, err)
	}
	s.log.WithFields(map[string]any{"table": m.Table, "rows": n}).Debug("bulk insert done")
	return n, nil
}

// preparedInsert inserts rows with one prepared INSERT inside a single
// transaction.
func (s *Store) preparedInsert(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) (int64, error) {
	q := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		q[i] = s.d.Quote(c)
		ph[i] = s.d.Placeholder(i + 1)
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.d.QuoteFQN(table), strings.Join(q, ", "), strings.Join(ph, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Exec implements storage.Repository.
func (s *Store) Exec(ctx context.Context, sqlText string) error {
	if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("%s: exec: %w", s.d.Name, err)
	}
	return nil
}

// Close implements storage.Repository.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Warn("close failed")
	}
}

// EnsureTable applies the dialect's CREATE TABLE for m through repo.Exec.
// Backends register it with storage.RegisterDDL.
func (d Dialect) EnsureTable(ctx context.Context, repo storage.Repository, m *model.Model) error {
	stmt, err := d.CreateTableSQL(m)
	if err != nil {
		return fmt.Errorf("%s: build DDL for %s: %w", d.Name, m.Table, err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%s: apply DDL for %s: %w", d.Name, m.Table, err)
	}
	return nil
}
