package all

import (
	"testing"

	"rowexport/internal/storage"
)

func TestAllBackendsRegistered(t *testing.T) {
	got := storage.ListKinds()
	want := []string{"memory", "mssql", "mysql", "postgres", "sqlite"}
	if len(got) != len(want) {
		t.Fatalf("ListKinds() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListKinds() = %v, want %v", got, want)
		}
	}
}
