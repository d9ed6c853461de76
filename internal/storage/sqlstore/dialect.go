// Package sqlstore implements storage.Repository over database/sql for
// dialects that differ only in quoting, placeholders, column types, the way
// a new identity value is returned and the bulk-insert primitive.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"

	"rowexport/internal/ddl"
	"rowexport/pkg/model"
)

// IDStrategy selects how an INSERT reports the new identity value.
type IDStrategy int

const (
	// LastInsertID uses sql.Result.LastInsertId (SQLite, MySQL).
	LastInsertID IDStrategy = iota

	// Returning appends RETURNING <id> (PostgreSQL).
	Returning

	// OutputInserted inserts OUTPUT INSERTED.<id> before VALUES (SQL Server).
	OutputInserted
)

// BulkInsertFunc inserts rows (aligned with columns) into table.
type BulkInsertFunc func(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) (int64, error)

// Dialect describes one SQL flavour.
type Dialect struct {
	Name string

	// Quote quotes one identifier segment.
	Quote func(string) string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// ColumnType maps a model field to a column type.
	ColumnType func(model.Field) string

	// IdentityColumn is the full clause for the auto-increment id column.
	IdentityColumn string

	IDStrategy IDStrategy

	// CreateStyle renders CREATE TABLE statements.
	CreateStyle ddl.Style

	// BulkInsert overrides the default bulk insert (prepared INSERTs in one
	// transaction).
	BulkInsert BulkInsertFunc
}

// QuestionMark is the "?" placeholder style.
func QuestionMark(int) string { return "?" }

// DollarN is the "$1, $2, ..." placeholder style.
func DollarN(n int) string { return fmt.Sprintf("$%d", n) }

// AtPN is the "@p1, @p2, ..." placeholder style.
func AtPN(n int) string { return fmt.Sprintf("@p%d", n) }

// DoubleQuote quotes an identifier with "..." escaping embedded quotes.
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteFQN quotes a possibly schema-qualified table name.
func (d Dialect) QuoteFQN(fqn string) string {
	s := d.CreateStyle
	s.Quote = d.Quote
	return s.QuoteFQN(fqn)
}

// CreateTableSQL renders the CREATE TABLE statement for m.
func (d Dialect) CreateTableSQL(m *model.Model) (string, error) {
	td, err := ddl.FromModel(m, d.ColumnType, d.IdentityColumn)
	if err != nil {
		return "", err
	}
	s := d.CreateStyle
	s.Quote = d.Quote
	return ddl.BuildCreateTableSQL(td, s)
}

// Query is a statement with its bind arguments.
type Query struct {
	SQL  string
	Args []any
}

// selectColumns lists the identity (when present) followed by the fields.
func selectColumns(m *model.Model) []string {
	cols := make([]string, 0, len(m.Fields)+1)
	if m.HasIdentity() {
		cols = append(cols, m.IdentityName())
	}
	return append(cols, m.FieldNames()...)
}

// SelectQuery builds SELECT <cols> FROM <table> WHERE <filter>. Filter keys
// are sorted for a deterministic statement; a nil value becomes IS NULL.
func (d Dialect) SelectQuery(m *model.Model, filter map[string]any) (Query, error) {
	keys := sortedKeys(filter)
	for _, k := range keys {
		if k == m.IdentityName() && m.HasIdentity() {
			continue
		}
		if _, ok := m.Field(k); !ok {
			return Query{}, fmt.Errorf("%s: %s has no field %q", d.Name, m.Table, k)
		}
	}

	cols := selectColumns(m)
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}

	var (
		conds []string
		args  []any
	)
	for _, k := range keys {
		v := filter[k]
		if v == nil {
			conds = append(conds, d.Quote(k)+" IS NULL")
			continue
		}
		args = append(args, v)
		conds = append(conds, d.Quote(k)+" = "+d.Placeholder(len(args)))
	}

	sqlText := fmt.Sprintf("SELECT %s FROM %s", strings.Join(q, ", "), d.QuoteFQN(m.Table))
	if len(conds) > 0 {
		sqlText += " WHERE " + strings.Join(conds, " AND ")
	}
	return Query{SQL: sqlText, Args: args}, nil
}

// InsertQuery builds the INSERT for one record. For identity models the
// statement reports the new id according to d.IDStrategy.
func (d Dialect) InsertQuery(rec *model.Record) Query {
	m := rec.Model()
	names := m.FieldNames()
	cols := make([]string, len(names))
	ph := make([]string, len(names))
	for i, n := range names {
		cols[i] = d.Quote(n)
		ph[i] = d.Placeholder(i + 1)
	}

	var output, returning string
	if m.HasIdentity() {
		switch d.IDStrategy {
		case Returning:
			returning = " RETURNING " + d.Quote(m.IdentityName())
		case OutputInserted:
			output = " OUTPUT INSERTED." + d.Quote(m.IdentityName())
		}
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s)%s VALUES (%s)%s",
		d.QuoteFQN(m.Table),
		strings.Join(cols, ", "),
		output,
		strings.Join(ph, ", "),
		returning,
	)
	return Query{SQL: sqlText, Args: rec.Values(names)}
}

// UpdateQuery builds UPDATE <table> SET <fields> WHERE <pk> = <pk value>.
// The natural primary key is not rewritten.
func (d Dialect) UpdateQuery(rec *model.Record) Query {
	m := rec.Model()
	pk := m.PrimaryKeyName()

	var (
		sets []string
		args []any
	)
	for _, f := range m.Fields {
		if f.Name == pk {
			continue
		}
		args = append(args, rec.Value(f.Name))
		sets = append(sets, d.Quote(f.Name)+" = "+d.Placeholder(len(args)))
	}
	args = append(args, rec.PK())
	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.QuoteFQN(m.Table),
		strings.Join(sets, ", "),
		d.Quote(pk),
		d.Placeholder(len(args)),
	)
	return Query{SQL: sqlText, Args: args}
}

// BulkRows returns the field names of m and one value row per record.
func BulkRows(m *model.Model, recs []*model.Record) ([]string, [][]any) {
	names := m.FieldNames()
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = r.Values(names)
	}
	return names, rows
}

// RecordFromRow builds a record of m from values scanned in selectColumns
// order.
func RecordFromRow(m *model.Model, vals []any) *model.Record {
	values := make(map[string]any, len(m.Fields))
	var pk any
	i := 0
	if m.HasIdentity() {
		pk = normalize(vals[0])
		i = 1
	}
	for _, f := range m.Fields {
		values[f.Name] = normalize(vals[i])
		i++
	}
	if !m.HasIdentity() {
		pk = values[m.PrimaryKeyName()]
	}
	return m.LoadRecord(pk, values)
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
