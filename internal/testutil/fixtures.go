package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapstep/pkg/dataset"
)

// NewDataset builds a dataset from positional records and fails the test on
// any error.
func NewDataset(t testing.TB, name string, vars []dataset.Variable, records ...[]any) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords(name, vars, records)
	if err != nil {
		t.Fatalf("build dataset %s: %v", name, err)
	}
	return ds
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
