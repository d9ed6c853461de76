package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"rowexport/pkg/export"
	"rowexport/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	t.Setenv("PGPASS", "s3cret")

	j, err := Load("testdata/customers.yaml")
	require.NoError(t, err)

	assert.Equal(t, "customers", j.Job)
	assert.Equal(t, "file", j.Source.Kind)
	assert.Equal(t, "data/customers.csv.gz", j.SourceName())
	assert.Equal(t, FormatCSV, j.FormatKind())
	assert.Equal(t, ';', j.Format.Options.Rune("comma", ','))
	assert.True(t, j.Format.Options.Bool("trim_space", false))
	assert.Equal(t, map[string]string{"Customer ID": "customer_id"}, j.Format.Options.StringMap("header_map"))
	assert.Equal(t, []string{"customer_id"}, j.Index)
	assert.Equal(t, "postgres://app:s3cret@db:5432/crm?sslmode=disable", j.Storage.DSN)
	assert.True(t, j.Storage.EnsureTable)
	assert.Empty(t, ValidateJob(j))

	m, err := j.BuildModel()
	require.NoError(t, err)
	assert.Equal(t, "customers", m.Table)
	assert.Equal(t, "customer_id", m.PrimaryKeyName())
	score, _ := m.Field("score")
	assert.Equal(t, model.Float, score.Type)
	assert.Equal(t, 0.0, score.Default)
	active, _ := m.Field("active")
	assert.Equal(t, true, active.Default)
	name, _ := m.Field("name")
	assert.Equal(t, 200, name.MaxLength)
	signedUp, _ := m.Field("signed_up")
	assert.True(t, signedUp.Null)

	opts, err := j.ExportOptions()
	require.NoError(t, err)
	assert.Equal(t, export.UpdateExisting, opts.Mode)
	assert.Equal(t, "Europe/Prague", opts.TimeZone)
	assert.True(t, opts.Validate)
	assert.Equal(t, "customers", opts.Label)

	po := j.ParserOptions()
	assert.Equal(t, []string{"signed_up"}, po.ParseDates)
	assert.Equal(t, []string{"customer_id"}, po.Index)
}

func TestLoadJSON(t *testing.T) {
	t.Setenv("TOKEN", "abc")

	j, err := Load("testdata/pairs.json")
	require.NoError(t, err)

	// job name falls back to the file name
	assert.Equal(t, "pairs", j.Job)
	assert.Equal(t, "Bearer abc", j.Source.HTTP.Headers["Authorization"])
	assert.Equal(t, 2, j.Source.HTTP.MaxRetries)
	assert.Equal(t, FormatCSV, j.FormatKind())

	m, err := j.BuildModel()
	require.NoError(t, err)
	assert.Equal(t, []string{"name1", "name2"}, m.UniqueKey())
	count, _ := m.Field("count")
	assert.Equal(t, int64(1), count.Default)

	opts, err := j.ExportOptions()
	require.NoError(t, err)
	assert.Equal(t, export.CreateAll, opts.Mode)
	assert.Equal(t, 500, opts.BulkSize)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	cases := []struct {
		name, path, want string
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), "no such file"},
		{"extension", write("job.toml", "job = 1"), "unsupported job file extension"},
		{"unknown_json_key", write("typo.json", `{"storge": {}}`), "unknown field"},
		{"unknown_yaml_key", write("typo.yaml", "storge: {}\n"), "not found"},
		{"empty_yaml", write("empty.yaml", ""), "empty document"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(tc.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	env := map[string]string{"USER": "app", "PASS": "p"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	assert.Equal(t, "app:p@host", expand("${USER}:${PASS}@host", lookup))
	assert.Equal(t, "pa$$word", expand("pa$$word", lookup))
	assert.Equal(t, "x=", expand("x=${UNSET}", lookup))
	assert.Equal(t, "$USER", expand("$USER", lookup))
}

func TestFormatKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		job  Job
		want string
	}{
		{"explicit", Job{Format: Format{Kind: "Parquet"}, Source: Source{Kind: "file", File: SourceFile{Path: "x.csv"}}}, FormatParquet},
		{"csv_gz", Job{Source: Source{Kind: "file", File: SourceFile{Path: "a/b.CSV.gz"}}}, FormatCSV},
		{"parquet_s3", Job{Source: Source{Kind: "s3", S3: SourceS3{Bucket: "b", Key: "k/rows.parquet"}}}, FormatParquet},
		{"http_query", Job{Source: Source{Kind: "http", HTTP: SourceHTTP{URL: "https://h/x.parquet?sig=a.csv"}}}, FormatParquet},
		{"stdin", Job{Source: Source{Kind: "file", File: SourceFile{Path: "-"}}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.job.FormatKind())
		})
	}
}

func TestCoerceDefault(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ok := []struct {
		ft   model.FieldType
		in   any
		want any
	}{
		{model.Integer, 3, int64(3)},
		{model.Integer, float64(7), int64(7)},
		{model.Integer, " 12 ", int64(12)},
		{model.Float, 2, 2.0},
		{model.Float, "1.5", 1.5},
		{model.Boolean, "true", true},
		{model.Date, "2024-05-01", day},
		{model.DateTime, day, day},
		{model.Text, 42, "42"},
		{model.Text, nil, nil},
	}
	for _, tc := range ok {
		got, err := coerceDefault(tc.ft, tc.in)
		require.NoError(t, err, "%s %v", tc.ft, tc.in)
		assert.Equal(t, tc.want, got, "%s %v", tc.ft, tc.in)
	}

	bad := []struct {
		ft model.FieldType
		in any
	}{
		{model.Integer, 1.5},
		{model.Integer, "x"},
		{model.Boolean, 1},
		{model.Date, "yesterday"},
		{model.Text, []any{"a"}},
	}
	for _, tc := range bad {
		_, err := coerceDefault(tc.ft, tc.in)
		assert.Error(t, err, "%s %v", tc.ft, tc.in)
	}
}

func TestBuildModelErrors(t *testing.T) {
	t.Parallel()

	_, err := Job{Model: Model{Table: "t", Fields: []Field{{Name: "a", Type: "blob"}}}}.BuildModel()
	assert.ErrorContains(t, err, "model.fields[0]")

	_, err = Job{Model: Model{Table: "t", Fields: []Field{{Name: "a", Type: "int", Default: "x"}}}}.BuildModel()
	assert.ErrorContains(t, err, "model.fields[0].default")

	_, err = Job{Model: Model{Table: "t", Fields: []Field{{Name: "a", Type: "int"}}, UniqueTogether: [][]string{{"b"}}}}.BuildModel()
	assert.ErrorContains(t, err, "unknown field")
}

func TestExportOptionsBadMode(t *testing.T) {
	t.Parallel()

	_, err := Job{Export: Export{Mode: "upsert"}}.ExportOptions()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "config: export.mode"))
}

func TestOptions(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":  "hello",
		"b":  true,
		"jf": float64(42),
		"yi": 7,
		"r":  "\t",
		"m":  map[string]any{"A": "a", "n": 1},
		"l":  []any{"x", 2, "y"},
	}
	assert.Equal(t, "hello", o.String("s", "def"))
	assert.Equal(t, "def", o.String("b", "def"))
	assert.True(t, o.Bool("b", false))
	assert.Equal(t, 42, o.Int("jf", 0))
	assert.Equal(t, 7, o.Int("yi", 0))
	assert.Equal(t, 9, o.Int("s", 9))
	assert.Equal(t, '\t', o.Rune("r", ','))
	assert.Equal(t, ',', o.Rune("missing", ','))
	assert.Equal(t, map[string]string{"A": "a"}, o.StringMap("m"))
	assert.Equal(t, []string{"x", "y"}, o.StringSlice("l"))
	assert.Nil(t, o.StringSlice("missing"))

	var nilOpts Options
	assert.Equal(t, "d", nilOpts.String("x", "d"))
}

func TestOptionsNull(t *testing.T) {
	t.Parallel()

	j, err := DecodeJSON(strings.NewReader(`{"format": {"options": null}}`))
	require.NoError(t, err)
	assert.NotNil(t, j.Format.Options)

	j, err = DecodeYAML(strings.NewReader("format:\n  options:\n    parallel: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, j.Format.Options.Int("parallel", 1))
}

func TestDecodeYAML_FieldKeys(t *testing.T) {
	t.Parallel()

	j, err := DecodeYAML(strings.NewReader(`
model:
  table: t
  fields:
    - { name: a, type: text, null: true }
    - { name: b, type: text, "null": true }
    - { name: c, type: text }
`))
	require.NoError(t, err)
	require.Len(t, j.Model.Fields, 3)
	assert.True(t, j.Model.Fields[0].Null)
	assert.True(t, j.Model.Fields[1].Null)
	assert.False(t, j.Model.Fields[2].Null)

	_, err = DecodeYAML(strings.NewReader(`
model:
  fields:
    - { name: a, nullable: true }
`))
	assert.ErrorContains(t, err, "nullable")
}
