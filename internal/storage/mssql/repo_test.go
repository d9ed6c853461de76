package mssql

import (
	"context"
	"strings"
	"testing"

	"rowexport/internal/storage"
	"rowexport/internal/storage/sqlstore"
	"rowexport/pkg/model"
)

// TestMsIdent verifies that msIdent properly brackets SQL Server identifiers
// and escapes closing brackets to avoid syntax errors and injection issues.
func TestMsIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "[simple]"},
		{"dbo", "[dbo]"},
		{"brack]et", "[brack]]et]"},
		{`weird]]name`, `[weird]]]]name]`},
	}
	for _, tc := range cases {
		if got := msIdent(tc.in); got != tc.want {
			t.Fatalf("msIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// TestQuoteFQN verifies that schema-qualified names are bracketed segment by
// segment.
func TestQuoteFQN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"table", "[table]"},
		{"dbo.table", "[dbo].[table]"},
		{"sales.q4.table", "[sales].[q4].[table]"},
	}
	for _, tc := range cases {
		if got := Dialect.QuoteFQN(tc.in); got != tc.want {
			t.Fatalf("QuoteFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestCreateTableSQL_Guarded(t *testing.T) {
	m := &model.Model{
		Table: "dbo.people",
		Fields: []model.Field{
			{Name: "name", Type: model.Text, MaxLength: 100},
			{Name: "born", Type: model.Date, Null: true},
		},
		UniqueTogether: [][]string{{"name"}},
	}
	got, err := Dialect.CreateTableSQL(m)
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'[dbo].[people]', N'U') IS NULL\nBEGIN\n" +
		"CREATE TABLE [dbo].[people] (\n" +
		"  [id] BIGINT IDENTITY(1,1) PRIMARY KEY,\n" +
		"  [name] NVARCHAR(100) NOT NULL,\n" +
		"  [born] DATE,\n" +
		"  UNIQUE ([name])\n);\nEND;"
	if got != want {
		t.Fatalf("CreateTableSQL =\n%s\nwant:\n%s", got, want)
	}
}

func TestMapType(t *testing.T) {
	cases := []struct {
		f    model.Field
		want string
	}{
		{model.Field{Type: model.Text}, "NVARCHAR(MAX)"},
		{model.Field{Type: model.Text, MaxLength: 50}, "NVARCHAR(50)"},
		{model.Field{Type: model.Text, MaxLength: 5000}, "NVARCHAR(MAX)"},
		{model.Field{Type: model.Integer}, "BIGINT"},
		{model.Field{Type: model.Float}, "FLOAT"},
		{model.Field{Type: model.Boolean}, "BIT"},
		{model.Field{Type: model.Date}, "DATE"},
		{model.Field{Type: model.DateTime}, "DATETIME2"},
	}
	for _, tc := range cases {
		if got := MapType(tc.f); got != tc.want {
			t.Errorf("MapType(%+v) = %q, want %q", tc.f, got, tc.want)
		}
	}
}

func TestInsertQuery_OutputInserted(t *testing.T) {
	m := &model.Model{Table: "dbo.t", Fields: []model.Field{{Name: "a", Type: model.Text}}}
	rec := m.NewRecord()
	rec.Set("a", "x")

	got := Dialect.InsertQuery(rec).SQL
	want := "INSERT INTO [dbo].[t] ([a]) OUTPUT INSERTED.[id] VALUES (@p1)"
	if got != want {
		t.Fatalf("InsertQuery = %s\nwant %s", got, want)
	}
}

// TestMSSQLStorageRegistrationUsesNewRepositoryHook verifies that the "mssql"
// storage backend registered in init() uses the newRepository hook and that
// the wrappedRepo correctly propagates configuration and close behavior.
func TestMSSQLStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		called   bool
		gotCfg   Config
		closed   bool
		fakeRepo = &sqlstore.Store{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*sqlstore.Store, func(), error) {
		called = true
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	repo, err := storage.New(ctx, storage.Config{Kind: "mssql", DSN: "sqlserver://example"})
	if err != nil {
		t.Fatalf("storage.New() error = %v, want nil", err)
	}
	if !called {
		t.Fatalf("newRepository hook was not called")
	}
	if gotCfg.DSN != "sqlserver://example" {
		t.Errorf("hook cfg.DSN = %q", gotCfg.DSN)
	}

	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("storage.New() type = %T, want *wrappedRepo", repo)
	}
	if w.Store != fakeRepo {
		t.Fatalf("wrappedRepo.Store = %p, want %p", w.Store, fakeRepo)
	}

	repo.Close()
	if !closed {
		t.Fatalf("wrappedRepo.Close() did not invoke closeFn")
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://%gh"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("err = %v, want mssql dsn error", err)
	}
}

// BenchmarkMSSQLStorageNew measures the overhead of constructing an MSSQL
// storage.Repository via storage.New using the newRepository hook.
func BenchmarkMSSQLStorageNew(b *testing.B) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	newRepository = func(ctx context.Context, cfg Config) (*sqlstore.Store, func(), error) {
		return &sqlstore.Store{}, func() {}, nil
	}

	cfg := storage.Config{Kind: "mssql", DSN: "sqlserver://example"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		repo, err := storage.New(ctx, cfg)
		if err != nil {
			b.Fatalf("storage.New() error = %v", err)
		}
		repo.Close()
	}
}
