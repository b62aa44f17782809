package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scour/internal/snapshot"
)

func TestRunCommandProcessesTree(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "contacts.txt", "reach us at sales@example.com or 919-555-0100")
	env.writeInput(t, "notes/plain.txt", "nothing sensitive here")
	env.writeInput(t, "image.png", "\x89PNG")

	out, _, err := runCLI(t, env.configPath, "run", env.inputDir, "--name", "cli-test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "registered 2 of 3 scanned files")
	requireContains(t, out, "completed")
	requireContains(t, out, "2 of 2 files processed")
}

func TestStatusCommandShowsBreakdown(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "a.txt", "a@b.example.com")

	if _, _, err := runCLI(t, env.configPath, "run", env.inputDir); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "FILE STATUS")
	requireContains(t, out, "pending")
}

func TestStatusWithoutJobs(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "status")
	if err == nil || !strings.Contains(err.Error(), "no jobs found") {
		t.Fatalf("expected no-jobs error, got %v", err)
	}
}

func TestJobsCommandListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "a.txt", "plain")

	if _, _, err := runCLI(t, env.configPath, "run", env.inputDir, "--name", "first-run"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "first-run")
	requireContains(t, out, "completed")
}

func TestExportCommandWritesJSONL(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "leak.txt", "card 4111 1111 1111 1111 and mail a@b.example.com")
	env.writeInput(t, "clean.txt", "nothing here")

	if _, _, err := runCLI(t, env.configPath, "run", env.inputDir); err != nil {
		t.Fatalf("run: %v", err)
	}

	outPath := filepath.Join(env.baseDir, "export.jsonl")
	out, _, err := runCLI(t, env.configPath, "export", "--output", outPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "wrote 2 records")

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	records := make(map[string]snapshot.Record)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record snapshot.Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		records[filepath.Base(record.Path)] = record
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan export: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	leak := records["leak.txt"]
	if leak.Result == nil || leak.Result.EntityCount < 2 {
		t.Fatalf("expected at least 2 entities in leak.txt, got %+v", leak.Result)
	}
	clean := records["clean.txt"]
	if clean.Result == nil || clean.Result.EntityCount != 0 {
		t.Fatalf("expected empty result for clean.txt, got %+v", clean.Result)
	}
}

func TestResumeCompletedJobIsNoop(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "a.txt", "plain")

	if _, _, err := runCLI(t, env.configPath, "run", env.inputDir); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "resume")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "already completed")
}

func TestRestartCommandReprocesses(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "a.txt", "a@b.example.com")

	if _, _, err := runCLI(t, env.configPath, "run", env.inputDir); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "restart")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	requireContains(t, out, "1 of 1 files processed")
}

func TestRunCommandRejectsMissingRoot(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(env.baseDir, "no-such-dir")
	_, _, err := runCLI(t, env.configPath, "run", missing)
	if err == nil || !strings.Contains(err.Error(), "scan root") {
		t.Fatalf("expected scan-root error, got %v", err)
	}

	// Failing fast means no job row was created either.
	out, _, err := runCLI(t, env.configPath, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "no jobs found")
}

func TestRunCommandRejectsFileRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeInput(t, "plain.txt", "text")

	_, _, err := runCLI(t, env.configPath, "run", path)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected not-a-directory error, got %v", err)
	}
}

func TestDBFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeInput(t, "a.txt", "plain")

	if _, _, err := runCLI(t, env.configPath, "run", env.inputDir); err != nil {
		t.Fatalf("run: %v", err)
	}

	otherDB := filepath.Join(env.baseDir, "other.db")
	out, _, err := runCLI(t, env.configPath, "jobs", "--db", otherDB)
	if err != nil {
		t.Fatalf("jobs with --db: %v", err)
	}
	requireContains(t, out, "no jobs found")
}

func TestRunCommandMissingConfigFile(t *testing.T) {
	_, _, err := runCLI(t, filepath.Join(t.TempDir(), "absent.toml"), "jobs")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing-config error, got %v", err)
	}
}
