package file

import (
	"reflect"
	"testing"
)

func TestReadList_Basic(t *testing.T) {
	t.Parallel()

	content := `
# nightly exports
jobs/customers.yaml
   # paused: jobs/orders.yaml
jobs/products.json

   jobs/stock.yml
`
	path := writeFile(t, "jobs.txt", []byte(content))

	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}

	want := []string{"jobs/customers.yaml", "jobs/products.json", "jobs/stock.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadList(%q) = %#v, want %#v", path, got, want)
	}
}

func TestReadList_EmptyFile(t *testing.T) {
	t.Parallel()

	got, err := ReadList(writeFile(t, "jobs.txt", nil))
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	if _, err := ReadList("does-not-exist-12345.txt"); err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}
