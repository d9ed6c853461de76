package ddl

// ColumnDef describes a single column of a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: dialect SQL type (e.g., TEXT, BIGINT, TIMESTAMP)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Identity: the column is the auto-increment key; SQLType carries the
//     full dialect clause (e.g., BIGSERIAL PRIMARY KEY) and nothing is added
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Identity   bool
	Default    string
}

// TableDef holds the table name (FQN), an ordered list of columns and the
// table's UNIQUE constraints. The FQN is expected in dotted form (e.g.,
// "schema.table") and is quoted segment by segment at render time.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
	Unique  [][]string
}
