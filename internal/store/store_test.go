package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"scour/internal/store"
	"scour/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.CreateJob(ctx, "initial scan", "/data/docs", map[string]any{"workers": 4})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != store.JobRunning {
		t.Fatalf("expected running status, got %s", job.Status)
	}
	if job.SettingsJSON == "" {
		t.Fatal("expected settings blob to be persisted")
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Name != "initial scan" || fetched.RootPath != "/data/docs" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestGetJobNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.GetJob(context.Background(), 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestJobEmptyStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.LatestJob(context.Background()); !errors.Is(err, store.ErrNoJobs) {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}
}

func TestLatestJobReturnsNewest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.CreateJob(ctx, "first", "", nil); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	second, err := st.CreateJob(ctx, "second", "", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	latest, err := st.LatestJob(ctx)
	if err != nil {
		t.Fatalf("LatestJob: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected latest job %d, got %d", second.ID, latest.ID)
	}
}

func TestUpsertFilesIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "upsert")

	paths := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		paths = append(paths, fmt.Sprintf("/docs/file-%03d.txt", i))
	}
	inserted := testsupport.SeedFiles(t, st, job.ID, paths...)
	if inserted != 100 {
		t.Fatalf("expected 100 inserted, got %d", inserted)
	}

	// Complete 30 files, then re-register the same tree.
	owner := "worker-upsert"
	claimed, err := st.ClaimBatch(ctx, job.ID, owner, 30)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	for _, file := range claimed {
		if err := st.CompleteFile(ctx, file.ID, store.Result{EntityCount: 0}, nil); err != nil {
			t.Fatalf("CompleteFile: %v", err)
		}
	}

	inserted = testsupport.SeedFiles(t, st, job.ID, paths...)
	if inserted != 0 {
		t.Fatalf("expected rediscovery to insert nothing, got %d", inserted)
	}

	counts, err := st.StatusCounts(ctx, job.ID)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[store.FileCompleted] != 30 {
		t.Fatalf("expected 30 completed after rediscovery, got %d", counts[store.FileCompleted])
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	if total != 100 {
		t.Fatalf("expected 100 total files, got %d", total)
	}
}

func TestCountersReconcileWithFileRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "counters")
	testsupport.SeedFiles(t, st, job.ID, "/a.txt", "/b.txt", "/c.txt", "/d.txt")

	claimed, err := st.ClaimBatch(ctx, job.ID, "worker-1", 4)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if err := st.CompleteFile(ctx, claimed[0].ID, store.Result{EntityCount: 1}, []store.Entity{{Type: "EMAIL", Text: "a@b.c", Start: 0, End: 5, Score: 0.9}}); err != nil {
		t.Fatalf("CompleteFile: %v", err)
	}
	if err := st.CompleteFile(ctx, claimed[1].ID, store.Result{}, nil); err != nil {
		t.Fatalf("CompleteFile: %v", err)
	}
	if err := st.FailFile(ctx, claimed[2].ID, "corrupt file"); err != nil {
		t.Fatalf("FailFile: %v", err)
	}

	refreshed, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if refreshed.TotalFiles != 4 || refreshed.ProcessedFiles != 2 || refreshed.ErrorFiles != 1 {
		t.Fatalf("unexpected counters: total=%d processed=%d errors=%d",
			refreshed.TotalFiles, refreshed.ProcessedFiles, refreshed.ErrorFiles)
	}

	counts, err := st.StatusCounts(ctx, job.ID)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	sum := 0
	for _, count := range counts {
		sum += count
	}
	if sum != refreshed.TotalFiles {
		t.Fatalf("status counts sum %d != total %d", sum, refreshed.TotalFiles)
	}
}

func TestCompleteFileIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "idempotent")
	testsupport.SeedFiles(t, st, job.ID, "/dup.txt")

	claimed, err := st.ClaimBatch(ctx, job.ID, "worker-1", 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimBatch: %v (claimed %d)", err, len(claimed))
	}
	fileID := claimed[0].ID

	entities := []store.Entity{
		{Type: "EMAIL", Text: "x@y.z", Start: 10, End: 15, Score: 0.95},
		{Type: "SSN", Text: "123-45-6789", Start: 20, End: 31, Score: 0.85},
	}
	if err := st.CompleteFile(ctx, fileID, store.Result{EntityCount: 2, Duration: 40 * time.Millisecond}, entities); err != nil {
		t.Fatalf("first CompleteFile: %v", err)
	}
	// Simulate the at-least-once retry: a reclaimed slow worker finishes again.
	if err := st.CompleteFile(ctx, fileID, store.Result{EntityCount: 2, Duration: 55 * time.Millisecond}, entities); err != nil {
		t.Fatalf("second CompleteFile: %v", err)
	}

	page, err := st.SnapshotPage(ctx, job.ID, 0, 10)
	if err != nil {
		t.Fatalf("SnapshotPage: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 record, got %d", len(page))
	}
	if page[0].Result == nil || page[0].Result.EntityCount != 2 {
		t.Fatalf("expected one result with 2 entities, got %#v", page[0].Result)
	}
	if len(page[0].Entities) != 2 {
		t.Fatalf("expected exactly 2 entities after duplicate completion, got %d", len(page[0].Entities))
	}
}

func TestFailFileRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "failures")
	testsupport.SeedFiles(t, st, job.ID, "/bad.txt", "/good.txt")

	claimed, err := st.ClaimBatch(ctx, job.ID, "worker-1", 2)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if err := st.FailFile(ctx, claimed[0].ID, "extract: corrupt file"); err != nil {
		t.Fatalf("FailFile: %v", err)
	}
	if err := st.CompleteFile(ctx, claimed[1].ID, store.Result{}, nil); err != nil {
		t.Fatalf("CompleteFile: %v", err)
	}

	failures, err := st.FileFailures(ctx, job.ID)
	if err != nil {
		t.Fatalf("FileFailures: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Path != "/bad.txt" || failures[0].Message != "extract: corrupt file" {
		t.Fatalf("unexpected failure record: %#v", failures[0])
	}

	failed, err := st.GetFile(ctx, claimed[0].ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if failed.OwnerToken != "" {
		t.Fatalf("expected owner cleared on failure, got %q", failed.OwnerToken)
	}
	if failed.ProcessEnd == nil {
		t.Fatal("expected process end recorded on failure")
	}
}

func TestResetStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "stale")
	testsupport.SeedFiles(t, st, job.ID, "/stale.txt", "/fresh.txt")

	// Claim both, then age only the first by resetting and reclaiming later.
	claimed, err := st.ClaimBatch(ctx, job.ID, "worker-dead", 2)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("ClaimBatch: %v (claimed %d)", err, len(claimed))
	}

	// A cutoff in the future makes both claims stale; a cutoff in the past
	// touches neither.
	reset, err := st.ResetStale(ctx, job.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ResetStale past cutoff: %v", err)
	}
	if reset != 0 {
		t.Fatalf("expected recent claims untouched, reset %d", reset)
	}

	reset, err = st.ResetStale(ctx, job.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ResetStale future cutoff: %v", err)
	}
	if reset != 2 {
		t.Fatalf("expected 2 stale claims reset, got %d", reset)
	}

	for _, file := range claimed {
		updated, err := st.GetFile(ctx, file.ID)
		if err != nil {
			t.Fatalf("GetFile: %v", err)
		}
		if updated.Status != store.FilePending {
			t.Fatalf("expected pending after reset, got %s", updated.Status)
		}
		if updated.OwnerToken != "" {
			t.Fatalf("expected owner cleared, got %q", updated.OwnerToken)
		}
		if updated.ProcessStart != nil {
			t.Fatal("expected process start cleared")
		}
	}
}

func TestResetErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "reprocess")

	paths := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		paths = append(paths, fmt.Sprintf("/docs/f-%03d.txt", i))
	}
	testsupport.SeedFiles(t, st, job.ID, paths...)

	claimed, err := st.ClaimBatch(ctx, job.ID, "worker-1", 100)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	for i, file := range claimed {
		if i < 10 {
			if err := st.FailFile(ctx, file.ID, "analyzer rejected"); err != nil {
				t.Fatalf("FailFile: %v", err)
			}
		} else {
			if err := st.CompleteFile(ctx, file.ID, store.Result{}, nil); err != nil {
				t.Fatalf("CompleteFile: %v", err)
			}
		}
	}

	reset, err := st.ResetErrors(ctx, job.ID)
	if err != nil {
		t.Fatalf("ResetErrors: %v", err)
	}
	if reset != 10 {
		t.Fatalf("expected 10 reset, got %d", reset)
	}

	counts, err := st.StatusCounts(ctx, job.ID)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[store.FilePending] != 10 || counts[store.FileCompleted] != 90 || counts[store.FileError] != 0 {
		t.Fatalf("unexpected counts after reprocess: %v", counts)
	}
}

func TestResetAllTouchesCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "restart")
	testsupport.SeedFiles(t, st, job.ID, "/one.txt", "/two.txt")

	claimed, err := st.ClaimBatch(ctx, job.ID, "worker-1", 2)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if err := st.CompleteFile(ctx, claimed[0].ID, store.Result{EntityCount: 1}, []store.Entity{{Type: "PHONE", Text: "555-0100", Score: 0.6}}); err != nil {
		t.Fatalf("CompleteFile: %v", err)
	}
	if err := st.FailFile(ctx, claimed[1].ID, "boom"); err != nil {
		t.Fatalf("FailFile: %v", err)
	}

	reset, err := st.ResetAll(ctx, job.ID)
	if err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if reset != 2 {
		t.Fatalf("expected 2 reset, got %d", reset)
	}

	counts, err := st.StatusCounts(ctx, job.ID)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[store.FilePending] != 2 {
		t.Fatalf("expected everything pending after restart, got %v", counts)
	}

	// No orphan results may survive the reset.
	page, err := st.SnapshotPage(ctx, job.ID, 0, 10)
	if err != nil {
		t.Fatalf("SnapshotPage: %v", err)
	}
	for _, record := range page {
		if record.Result != nil {
			t.Fatalf("expected results cleared for %s", record.File.Path)
		}
	}
}

func TestJobMetadataUpsert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.MustCreateJob(t, st, "metadata")

	if err := st.SetJobMetadata(ctx, job.ID, "source", "archive-2026"); err != nil {
		t.Fatalf("SetJobMetadata: %v", err)
	}
	if err := st.SetJobMetadata(ctx, job.ID, "source", "archive-2026-q3"); err != nil {
		t.Fatalf("SetJobMetadata overwrite: %v", err)
	}
	if err := st.SetJobMetadata(ctx, job.ID, "operator", "batch"); err != nil {
		t.Fatalf("SetJobMetadata second key: %v", err)
	}

	metadata, err := st.JobMetadata(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobMetadata: %v", err)
	}
	if len(metadata) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(metadata))
	}
	if metadata["source"] != "archive-2026-q3" {
		t.Fatalf("expected overwritten value, got %q", metadata["source"])
	}
}

func TestSetJobStatusUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.SetJobStatus(context.Background(), 42, store.JobCompleted)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
