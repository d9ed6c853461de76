package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rowexport/internal/job"
	_ "rowexport/internal/storage/memory"
	"rowexport/pkg/export"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests mutate process-wide state (metrics backend, known storage
// kinds, env), so none of them run in parallel.

func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	t.Setenv("METRICS_BACKEND", "")
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--log-format", "json"}, args...))
	err := cmd.Execute()
	return out.String(), ExitCode(err)
}

// writeJob writes a CSV and a YAML job reading it into dir and returns the
// job path.
func writeJob(t *testing.T, dir, name, csv, exportYAML string) string {
	t.Helper()
	data := filepath.Join(dir, name+".csv")
	require.NoError(t, os.WriteFile(data, []byte(csv), 0o644))
	body := fmt.Sprintf(`job: %s
source: { kind: file, file: { path: %q } }
model:
  table: pairs
  fields:
    - { name: name1, type: text }
    - { name: name2, type: text }
    - { name: count, type: integer }
  unique_together: [[name1, name2]]
storage: { kind: memory }
export: %s
`, name, data, exportYAML)
	p := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const pairsCSV = "name1,name2,count\na,b,1\nc,d,2\ne,f,3\n"

func TestVersion(t *testing.T) {
	out, code := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.True(t, strings.HasPrefix(out, "rowexport dev"), out)
}

func TestExport(t *testing.T) {
	p := writeJob(t, t.TempDir(), "pairs", pairsCSV, "{ bulk_size: 2 }")

	out, code := execute(t, "export", p)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "pairs: rows=3 created=3 updated=0 batches=2 skipped=0")
}

func TestExport_Overrides(t *testing.T) {
	p := writeJob(t, t.TempDir(), "pairs", pairsCSV, "{ mode: create }")

	out, code := execute(t, "export", "--dry-run", "--mode", "update", p)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "pairs: rows=3 created=0 updated=0 batches=0")
}

func TestExport_Parallel(t *testing.T) {
	dir := t.TempDir()
	a := writeJob(t, dir, "first", pairsCSV, "{}")
	b := writeJob(t, dir, "second", "name1,name2,count\nx,y,1\n", "{}")
	list := filepath.Join(dir, "jobs.txt")
	require.NoError(t, os.WriteFile(list, []byte("# both\n"+b+"\n"), 0o644))

	out, code := execute(t, "export", "--parallel", "2", "--jobs-from", list, a)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "first: rows=3")
	assert.Contains(t, out, "second: rows=1")
}

func TestExport_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("job: x\nsource: { kind: file }\n"), 0o644))
	missingCol := writeJob(t, dir, "missing", "name2,count\nb,1\n", "{ validate: true }")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no_args", []string{"export"}, ExitUsage},
		{"bad_parallel", []string{"export", "--parallel", "0", invalid}, ExitUsage},
		{"unknown_flag", []string{"export", "--nope", invalid}, ExitUsage},
		{"unknown_command", []string{"import"}, ExitUsage},
		{"missing_file", []string{"export", filepath.Join(dir, "none.yaml")}, ExitConfig},
		{"invalid_job", []string{"export", invalid}, ExitConfig},
		{"validation", []string{"export", missingCol}, ExitValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, code := execute(t, tc.args...)
			assert.Equal(t, tc.want, code, out)
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeJob(t, dir, "good", pairsCSV, "{}")
	nulls := writeJob(t, dir, "nulls", "name1,name2,count\na,,1\n", "{}")
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("job: x\nsource: { kind: file, file: { path: x.csv } }\nmodel: { table: t }\nstorage: { kind: memory }\n"), 0o644))

	out, code := execute(t, "validate", good)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "dataset is valid (rows=3 skipped=0)")

	out, code = execute(t, "validate", "--config-only", nulls)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "configuration is valid")

	out, code = execute(t, "validate", nulls)
	assert.Equal(t, ExitValidation, code, out)

	out, code = execute(t, "validate", "--config-only", broken)
	assert.Equal(t, ExitConfig, code, out)
	assert.Contains(t, out, "error: model.fields: model declares no fields")

	_, code = execute(t, "validate")
	assert.Equal(t, ExitUsage, code)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("ROWEXPORT_TEST_TABLE_PATH="+filepath.Join(dir, "pairs.csv")+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pairs.csv"), []byte(pairsCSV), 0o644))
	jobPath := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(`job: env
source: { kind: file, file: { path: "${ROWEXPORT_TEST_TABLE_PATH}" } }
format: { kind: csv }
model: { table: pairs, fields: [ { name: name1, type: text } ] }
storage: { kind: memory }
`), 0o644))
	t.Cleanup(func() { os.Unsetenv("ROWEXPORT_TEST_TABLE_PATH") })

	out, code := execute(t, "--env-file", env, "export", jobPath)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "env: rows=3")

	_, code = execute(t, "--env-file", filepath.Join(dir, "missing.env"), "version")
	assert.Equal(t, ExitUsage, code)
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitFailure},
		{usageError{errors.New("bad flag")}, ExitUsage},
		{fmt.Errorf("job a: %w", fmt.Errorf("%w: x", job.ErrInvalidJob)), ExitConfig},
		{fmt.Errorf("job a: %w", fmt.Errorf("%w: postgres: refused", job.ErrConnect)), ExitConnection},
		{fmt.Errorf("job a: %w", &export.ValidationError{Field: "f", Err: export.ErrMissingColumn}), ExitValidation},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExitCode(tc.err), "%v", tc.err)
	}
}

func TestProbeThenExport(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "Pair Counts.csv")
	require.NoError(t, os.WriteFile(data, []byte(pairsCSV), 0o644))
	jobPath := filepath.Join(dir, "drafted.yaml")

	out, code := execute(t, "probe", "--storage", "memory", "-o", jobPath, data)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "wrote "+jobPath)

	body, err := os.ReadFile(jobPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "job: pair_counts")
	assert.Contains(t, string(body), "type: integer")

	out, code = execute(t, "export", jobPath)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "pair_counts: rows=3 created=3")

	out, code = execute(t, "probe", "--table", "pairs", data)
	assert.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "table: pairs")
	assert.Contains(t, out, "kind: postgres")
}
