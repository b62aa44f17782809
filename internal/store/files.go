package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// UpsertFiles registers discovered files for a job and returns how many
// were newly inserted. Paths already known to the job are left untouched,
// whatever their status, which makes re-running discovery idempotent.
func (s *Store) UpsertFiles(ctx context.Context, jobID int64, files []FileInfo) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}

	var inserted int64
	err := withBusyRetry(ctx, func() error {
		inserted = 0
		return s.withTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(
				ctx,
				`INSERT INTO files (job_id, path, size, file_type, modified_at, status)
                 VALUES (?, ?, ?, ?, ?, ?)
                 ON CONFLICT (job_id, path) DO NOTHING`,
			)
			if err != nil {
				return fmt.Errorf("prepare upsert: %w", err)
			}
			defer stmt.Close()

			for _, file := range files {
				res, err := stmt.ExecContext(
					ctx,
					jobID,
					file.Path,
					file.Size,
					file.Type,
					nullableTime(&file.ModifiedAt),
					FilePending,
				)
				if err != nil {
					return fmt.Errorf("upsert file %s: %w", file.Path, err)
				}
				affected, err := res.RowsAffected()
				if err != nil {
					return err
				}
				inserted += affected
			}
			return refreshJobCounters(ctx, tx, jobID)
		})
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ClaimBatch atomically transitions up to limit pending files of a job
// to processing under the given owner token and returns them. The
// select-and-claim is one UPDATE statement, so concurrent claimants can
// never hand the same file to two owners. Files are claimed in ascending
// id order to avoid starvation.
func (s *Store) ClaimBatch(ctx context.Context, jobID int64, ownerToken string, limit int) ([]*File, error) {
	if limit <= 0 {
		return nil, nil
	}
	if ownerToken == "" {
		return nil, errors.New("owner token is required")
	}

	var claimed []*File
	err := withBusyRetry(ctx, func() error {
		claimed = claimed[:0]
		rows, err := s.db.QueryContext(
			ctx,
			`UPDATE files
             SET status = ?, owner_token = ?, process_start = ?, process_end = NULL, error_message = NULL
             WHERE id IN (
                 SELECT id FROM files
                 WHERE job_id = ? AND status = ?
                 ORDER BY id
                 LIMIT ?
             )
             RETURNING `+fileColumns,
			FileProcessing,
			ownerToken,
			formatTime(time.Now()),
			jobID,
			FilePending,
			limit,
		)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			file, err := scanFile(rows)
			if err != nil {
				return err
			}
			claimed = append(claimed, file)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].ID < claimed[j].ID })
	return claimed, nil
}

// CompleteFile marks a file completed and persists its result and
// entities in one transaction. A duplicate completion (the at-least-once
// retry case) replaces the prior result and its entities rather than
// duplicating them.
func (s *Store) CompleteFile(ctx context.Context, fileID int64, result Result, entities []Entity) error {
	return withBusyRetry(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			var jobID int64
			err := tx.QueryRowContext(ctx, `SELECT job_id FROM files WHERE id = ?`, fileID).Scan(&jobID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("lookup file job: %w", err)
			}

			// Replace semantics: entities cascade with the old result row.
			if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE file_id = ?`, fileID); err != nil {
				return fmt.Errorf("clear prior result: %w", err)
			}

			res, err := tx.ExecContext(
				ctx,
				`INSERT INTO results (file_id, entity_count, duration_ms) VALUES (?, ?, ?)`,
				fileID,
				result.EntityCount,
				result.Duration.Milliseconds(),
			)
			if err != nil {
				return fmt.Errorf("insert result: %w", err)
			}
			resultID, err := res.LastInsertId()
			if err != nil {
				return err
			}

			if len(entities) > 0 {
				stmt, err := tx.PrepareContext(
					ctx,
					`INSERT INTO entities (result_id, entity_type, text, start_index, end_index, score)
                     VALUES (?, ?, ?, ?, ?, ?)`,
				)
				if err != nil {
					return fmt.Errorf("prepare entity insert: %w", err)
				}
				defer stmt.Close()
				for _, entity := range entities {
					if _, err := stmt.ExecContext(ctx, resultID, entity.Type, entity.Text, entity.Start, entity.End, entity.Score); err != nil {
						return fmt.Errorf("insert entity: %w", err)
					}
				}
			}

			if _, err := tx.ExecContext(
				ctx,
				`UPDATE files
                 SET status = ?, process_end = ?, owner_token = NULL, error_message = NULL
                 WHERE id = ?`,
				FileCompleted,
				formatTime(time.Now()),
				fileID,
			); err != nil {
				return fmt.Errorf("complete file: %w", err)
			}

			return refreshJobCounters(ctx, tx, jobID)
		})
	})
}

// FailFile marks a file errored with a message, clearing any stale
// result so reprocessing never leaves orphans behind.
func (s *Store) FailFile(ctx context.Context, fileID int64, message string) error {
	return withBusyRetry(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			var jobID int64
			err := tx.QueryRowContext(ctx, `SELECT job_id FROM files WHERE id = ?`, fileID).Scan(&jobID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("lookup file job: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE file_id = ?`, fileID); err != nil {
				return fmt.Errorf("clear prior result: %w", err)
			}

			if _, err := tx.ExecContext(
				ctx,
				`UPDATE files
                 SET status = ?, process_end = ?, owner_token = NULL, error_message = ?
                 WHERE id = ?`,
				FileError,
				formatTime(time.Now()),
				message,
				fileID,
			); err != nil {
				return fmt.Errorf("fail file: %w", err)
			}

			return refreshJobCounters(ctx, tx, jobID)
		})
	})
}

// ResetStale returns processing files whose claim started before
// olderThan to pending, clearing the owner token. It heals claims left
// behind by crashed or hung workers.
func (s *Store) ResetStale(ctx context.Context, jobID int64, olderThan time.Time) (int64, error) {
	var reset int64
	err := withBusyRetry(ctx, func() error {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE files
             SET status = ?, owner_token = NULL, process_start = NULL
             WHERE job_id = ? AND status = ? AND process_start IS NOT NULL AND process_start < ?`,
			FilePending,
			jobID,
			FileProcessing,
			formatTime(olderThan),
		)
		if err != nil {
			return fmt.Errorf("reset stale files: %w", err)
		}
		reset, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// ResetErrors returns errored files to pending for reprocessing and
// clears their recorded messages.
func (s *Store) ResetErrors(ctx context.Context, jobID int64) (int64, error) {
	return s.resetFiles(ctx, jobID, `status = ?`, []any{FileError})
}

// ResetAll returns every file of a job to pending. This is the only path
// allowed to touch completed files; it backs the force-restart operation.
func (s *Store) ResetAll(ctx context.Context, jobID int64) (int64, error) {
	return s.resetFiles(ctx, jobID, `1 = 1`, nil)
}

func (s *Store) resetFiles(ctx context.Context, jobID int64, condition string, conditionArgs []any) (int64, error) {
	var reset int64
	err := withBusyRetry(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			// Drop results for the files being reset so no orphan result
			// outlives its file transition.
			delArgs := append([]any{jobID}, conditionArgs...)
			if _, err := tx.ExecContext(
				ctx,
				`DELETE FROM results WHERE file_id IN (SELECT id FROM files WHERE job_id = ? AND `+condition+`)`,
				delArgs...,
			); err != nil {
				return fmt.Errorf("clear results: %w", err)
			}

			args := append([]any{FilePending, jobID}, conditionArgs...)
			res, err := tx.ExecContext(
				ctx,
				`UPDATE files
                 SET status = ?, owner_token = NULL, process_start = NULL, process_end = NULL, error_message = NULL
                 WHERE job_id = ? AND `+condition,
				args...,
			)
			if err != nil {
				return fmt.Errorf("reset files: %w", err)
			}
			reset, err = res.RowsAffected()
			if err != nil {
				return err
			}
			return refreshJobCounters(ctx, tx, jobID)
		})
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// StatusCounts returns a count of a job's files grouped by status.
func (s *Store) StatusCounts(ctx context.Context, jobID int64) (map[FileStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM files WHERE job_id = ? GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[FileStatus]int)
	for rows.Next() {
		var status FileStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// FileFailures enumerates the paths and messages of a job's errored
// files so a run never ends with silently dropped work.
func (s *Store) FileFailures(ctx context.Context, jobID int64) ([]FileFailure, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT path, COALESCE(error_message, '') FROM files WHERE job_id = ? AND status = ? ORDER BY id`,
		jobID,
		FileError,
	)
	if err != nil {
		return nil, fmt.Errorf("file failures: %w", err)
	}
	defer rows.Close()

	var failures []FileFailure
	for rows.Next() {
		var failure FileFailure
		if err := rows.Scan(&failure.Path, &failure.Message); err != nil {
			return nil, err
		}
		failures = append(failures, failure)
	}
	return failures, rows.Err()
}

// GetFile fetches a file row by identifier.
func (s *Store) GetFile(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

const fileColumns = "id, job_id, path, size, file_type, modified_at, status, error_message, owner_token, process_start, process_end"

func scanFile(scanner interface{ Scan(dest ...any) error }) (*File, error) {
	var (
		id           int64
		jobID        int64
		path         string
		size         int64
		fileType     string
		modifiedRaw  sql.NullString
		statusStr    string
		errorMessage sql.NullString
		ownerToken   sql.NullString
		startRaw     sql.NullString
		endRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&path,
		&size,
		&fileType,
		&modifiedRaw,
		&statusStr,
		&errorMessage,
		&ownerToken,
		&startRaw,
		&endRaw,
	); err != nil {
		return nil, err
	}

	file := &File{
		ID:           id,
		JobID:        jobID,
		Path:         path,
		Size:         size,
		Type:         fileType,
		Status:       FileStatus(statusStr),
		ErrorMessage: errorMessage.String,
		OwnerToken:   ownerToken.String,
	}
	if modifiedRaw.Valid {
		if modified, err := parseTimeString(modifiedRaw.String); err == nil {
			file.ModifiedAt = modified
		}
	}
	if startRaw.Valid {
		if start, err := parseTimeString(startRaw.String); err == nil {
			file.ProcessStart = &start
		}
	}
	if endRaw.Valid {
		if end, err := parseTimeString(endRaw.String); err == nil {
			file.ProcessEnd = &end
		}
	}
	return file, nil
}
