package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateJob inserts a new job row. Settings are stored as an opaque JSON
// blob; callers validate them at the point of consumption.
func (s *Store) CreateJob(ctx context.Context, name, rootPath string, settings any) (*Job, error) {
	var settingsJSON any
	if settings != nil {
		data, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("marshal job settings: %w", err)
		}
		settingsJSON = string(data)
	}

	now := formatTime(time.Now())
	var id int64
	err := withBusyRetry(ctx, func() error {
		res, execErr := s.db.ExecContext(
			ctx,
			`INSERT INTO jobs (name, status, root_path, settings_json, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			name,
			JobRunning,
			rootPath,
			settingsJSON,
			now,
			now,
		)
		if execErr != nil {
			return fmt.Errorf("insert job: %w", execErr)
		}
		var idErr error
		id, idErr = res.LastInsertId()
		return idErr
	})
	if err != nil {
		return nil, err
	}

	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier, returning ErrNotFound when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// LatestJob returns the most recently created job, or ErrNoJobs on an
// empty store.
func (s *Store) LatestJob(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id DESC LIMIT 1`)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("latest job: %w", err)
	}
	return job, nil
}

// ListJobs returns all jobs ordered newest first.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SetJobStatus transitions a job to the given status and refreshes its
// aggregate counters from the file rows in the same transaction.
func (s *Store) SetJobStatus(ctx context.Context, id int64, status JobStatus) error {
	return withBusyRetry(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(
				ctx,
				`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
				status,
				formatTime(time.Now()),
				id,
			)
			if err != nil {
				return fmt.Errorf("update job status: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("job %d: %w", id, ErrNotFound)
			}
			return refreshJobCounters(ctx, tx, id)
		})
	})
}

// SetJobMetadata records (or overwrites) one key/value annotation on a job.
func (s *Store) SetJobMetadata(ctx context.Context, jobID int64, key, value string) error {
	return withBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(
			ctx,
			`INSERT INTO job_metadata (job_id, key, value) VALUES (?, ?, ?)
             ON CONFLICT (job_id, key) DO UPDATE SET value = excluded.value`,
			jobID,
			key,
			value,
		)
		if err != nil {
			return fmt.Errorf("set job metadata: %w", err)
		}
		return nil
	})
}

// JobMetadata returns all key/value annotations for a job.
func (s *Store) JobMetadata(ctx context.Context, jobID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM job_metadata WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("job metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}
	return metadata, rows.Err()
}

// refreshJobCounters derives the rolling job counters from file status
// counts so they can never drift from the file rows.
func refreshJobCounters(ctx context.Context, tx *sql.Tx, jobID int64) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET
            total_files = (SELECT COUNT(1) FROM files WHERE job_id = ?),
            processed_files = (SELECT COUNT(1) FROM files WHERE job_id = ? AND status = ?),
            error_files = (SELECT COUNT(1) FROM files WHERE job_id = ? AND status = ?),
            updated_at = ?
         WHERE id = ?`,
		jobID,
		jobID, FileCompleted,
		jobID, FileError,
		formatTime(time.Now()),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("refresh job counters: %w", err)
	}
	return nil
}

const jobColumns = "id, name, status, root_path, settings_json, created_at, updated_at, total_files, processed_files, error_files"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		name         string
		statusStr    string
		rootPath     string
		settingsJSON sql.NullString
		createdRaw   string
		updatedRaw   string
		total        int
		processed    int
		errored      int
	)

	if err := scanner.Scan(
		&id,
		&name,
		&statusStr,
		&rootPath,
		&settingsJSON,
		&createdRaw,
		&updatedRaw,
		&total,
		&processed,
		&errored,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Name:           name,
		Status:         JobStatus(statusStr),
		RootPath:       rootPath,
		SettingsJSON:   settingsJSON.String,
		TotalFiles:     total,
		ProcessedFiles: processed,
		ErrorFiles:     errored,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
