package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SnapshotPage returns up to limit files of a job with id greater than
// afterID, each bundled with its result and entities. Callers page with
// the last returned file id, so memory stays bounded regardless of job
// size.
func (s *Store) SnapshotPage(ctx context.Context, jobID, afterID int64, limit int) ([]SnapshotFile, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("snapshot page limit must be positive, got %d", limit)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT f.id, f.job_id, f.path, f.size, f.file_type, f.modified_at,
                f.status, f.error_message, f.owner_token, f.process_start, f.process_end,
                r.id, r.entity_count, r.duration_ms
         FROM files f
         LEFT JOIN results r ON r.file_id = f.id
         WHERE f.job_id = ? AND f.id > ?
         ORDER BY f.id
         LIMIT ?`,
		jobID,
		afterID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	defer rows.Close()

	var page []SnapshotFile
	resultIDs := make(map[int64]int)
	for rows.Next() {
		var (
			file         File
			modifiedRaw  sql.NullString
			errorMessage sql.NullString
			ownerToken   sql.NullString
			startRaw     sql.NullString
			endRaw       sql.NullString
			resultID     sql.NullInt64
			entityCount  sql.NullInt64
			durationMS   sql.NullInt64
		)
		if err := rows.Scan(
			&file.ID,
			&file.JobID,
			&file.Path,
			&file.Size,
			&file.Type,
			&modifiedRaw,
			&file.Status,
			&errorMessage,
			&ownerToken,
			&startRaw,
			&endRaw,
			&resultID,
			&entityCount,
			&durationMS,
		); err != nil {
			return nil, err
		}
		file.ErrorMessage = errorMessage.String
		file.OwnerToken = ownerToken.String
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

		entry := SnapshotFile{File: file}
		if resultID.Valid {
			entry.Result = &Result{
				EntityCount: int(entityCount.Int64),
				Duration:    time.Duration(durationMS.Int64) * time.Millisecond,
			}
			resultIDs[resultID.Int64] = len(page)
		}
		page = append(page, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(resultIDs) > 0 {
		if err := s.attachEntities(ctx, resultIDs, page); err != nil {
			return nil, err
		}
	}
	return page, nil
}

func (s *Store) attachEntities(ctx context.Context, resultIDs map[int64]int, page []SnapshotFile) error {
	ids := make([]any, 0, len(resultIDs))
	for id := range resultIDs {
		ids = append(ids, id)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT result_id, entity_type, text, start_index, end_index, score
         FROM entities
         WHERE result_id IN (`+makePlaceholders(len(ids))+`)
         ORDER BY result_id, start_index`,
		ids...,
	)
	if err != nil {
		return fmt.Errorf("snapshot entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var resultID int64
		var entity Entity
		if err := rows.Scan(&resultID, &entity.Type, &entity.Text, &entity.Start, &entity.End, &entity.Score); err != nil {
			return err
		}
		idx, ok := resultIDs[resultID]
		if !ok {
			continue
		}
		page[idx].Entities = append(page[idx].Entities, entity)
	}
	return rows.Err()
}
