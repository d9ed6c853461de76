// Package ddl defines a small, dialect-neutral model for SQL DDL and renders
// CREATE TABLE statements from it. Dialects plug in through Style: identifier
// quoting, IF NOT EXISTS support and an optional guard wrapper for engines
// (SQL Server) that lack IF NOT EXISTS.
package ddl

import (
	"fmt"
	"strings"

	"rowexport/pkg/model"
)

// Style carries the dialect-specific parts of CREATE TABLE rendering.
type Style struct {
	// Quote quotes one identifier segment. Nil emits names verbatim.
	Quote func(string) string

	// IfNotExists emits CREATE TABLE IF NOT EXISTS.
	IfNotExists bool

	// Guard, when set, wraps the CREATE TABLE statement. It receives the
	// quoted table name and the statement.
	Guard func(quotedFQN, create string) string
}

func (s Style) quote(id string) string {
	if s.Quote == nil {
		return id
	}
	return s.Quote(id)
}

// QuoteFQN quotes a possibly schema-qualified name segment by segment,
// skipping empty segments: "public.users" -> "public"."users".
func (s Style) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, s.quote(p))
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// A column is rendered as
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// identity columns as <Name> <SQLType>. Primary-key columns are always
// NOT NULL and are collected into a trailing PRIMARY KEY clause, followed by
// one UNIQUE clause per uniqueness constraint.
func BuildCreateTableSQL(t TableDef, s Style) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1+len(t.Unique))
	pks := make([]string, 0, len(t.Columns))
	known := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		known[name] = struct{}{}

		var sb strings.Builder
		sb.WriteString(s.quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Identity {
			if !c.Nullable || c.PrimaryKey {
				sb.WriteString(" NOT NULL")
			}
			if def := strings.TrimSpace(c.Default); def != "" {
				sb.WriteString(" DEFAULT ")
				sb.WriteString(def)
			}
			if c.PrimaryKey {
				pks = append(pks, s.quote(name))
			}
		}
		cols = append(cols, sb.String())
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	for i, tuple := range t.Unique {
		if len(tuple) == 0 {
			return "", fmt.Errorf("ddl: unique constraint %d of %s is empty", i, fqn)
		}
		q := make([]string, len(tuple))
		for j, name := range tuple {
			if _, ok := known[name]; !ok {
				return "", fmt.Errorf("ddl: unique constraint %d of %s names unknown column %s", i, fqn, name)
			}
			q[j] = s.quote(name)
		}
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(q, ", ")))
	}

	head := "CREATE TABLE "
	if s.IfNotExists {
		head = "CREATE TABLE IF NOT EXISTS "
	}
	quoted := s.QuoteFQN(fqn)
	stmt := fmt.Sprintf("%s%s (\n  %s\n);", head, quoted, strings.Join(cols, ",\n  "))
	if s.Guard != nil {
		stmt = s.Guard(quoted, stmt)
	}
	return stmt, nil
}

// FromModel builds the table definition of m. mapType gives each field's SQL
// type; identity is the full column clause used for the auto-increment id
// when the model has no natural primary key.
func FromModel(m *model.Model, mapType func(model.Field) string, identity string) (TableDef, error) {
	if err := m.Validate(); err != nil {
		return TableDef{}, err
	}
	td := TableDef{FQN: m.Table}
	if m.HasIdentity() {
		td.Columns = append(td.Columns, ColumnDef{
			Name:     m.IdentityName(),
			SQLType:  identity,
			Identity: true,
		})
	}
	for _, f := range m.Fields {
		td.Columns = append(td.Columns, ColumnDef{
			Name:       f.Name,
			SQLType:    mapType(f),
			Nullable:   f.Null,
			PrimaryKey: f.PrimaryKey,
		})
	}
	for _, tuple := range m.UniqueTogether {
		td.Unique = append(td.Unique, append([]string(nil), tuple...))
	}
	return td, nil
}
