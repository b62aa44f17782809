package testsupport

import (
	"context"
	"testing"

	"scour/internal/config"
	"scour/internal/store"
)

// MustOpenStore opens the store backing cfg and closes it when the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	path, err := cfg.DatabasePath()
	if err != nil {
		t.Fatalf("resolve database path: %v", err)
	}
	st, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustCreateJob creates a job and fails the test on error.
func MustCreateJob(t testing.TB, st *store.Store, name string) *store.Job {
	t.Helper()

	job, err := st.CreateJob(context.Background(), name, "", nil)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

// SeedFiles registers n synthetic files for a job and returns the count inserted.
func SeedFiles(t testing.TB, st *store.Store, jobID int64, paths ...string) int64 {
	t.Helper()

	infos := make([]store.FileInfo, 0, len(paths))
	for _, path := range paths {
		infos = append(infos, store.FileInfo{Path: path, Size: 64, Type: ".txt"})
	}
	inserted, err := st.UpsertFiles(context.Background(), jobID, infos)
	if err != nil {
		t.Fatalf("seed files: %v", err)
	}
	return inserted
}
