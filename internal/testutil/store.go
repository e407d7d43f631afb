package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ruanwenjun/spark/internal/store"
)

// NewStore opens a store in a per-test temporary directory and closes it
// when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
