package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"scour/internal/logging"
	"scour/internal/store"
)

// Record is one exported line: a file, its outcome, and any entities
// found in it.
type Record struct {
	Path   string  `json:"path"`
	Type   string  `json:"type"`
	Status string  `json:"status"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Result carries the analysis outcome for a completed file.
type Result struct {
	EntityCount int      `json:"entity_count"`
	DurationMS  int64    `json:"duration_ms"`
	Entities    []Entity `json:"entities"`
}

// Entity mirrors a stored detection in export form.
type Entity struct {
	Type  string  `json:"type"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Exporter streams job snapshots to a writer.
type Exporter struct {
	store    *store.Store
	logger   *slog.Logger
	pageSize int
}

func NewExporter(st *store.Store, logger *slog.Logger, pageSize int) *Exporter {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Exporter{
		store:    st,
		logger:   logging.WithComponent(logger, "snapshot"),
		pageSize: pageSize,
	}
}

// WriteJSONL writes one JSON record per file, ordered by file id, and
// returns how many records were written.
func (e *Exporter) WriteJSONL(ctx context.Context, jobID int64, w io.Writer) (int64, error) {
	enc := json.NewEncoder(w)

	var written int64
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		page, err := e.store.SnapshotPage(ctx, jobID, afterID, e.pageSize)
		if err != nil {
			return written, fmt.Errorf("loading snapshot page after id %d: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}
		for _, file := range page {
			if err := enc.Encode(buildRecord(file)); err != nil {
				return written, fmt.Errorf("writing record for %s: %w", file.File.Path, err)
			}
			written++
		}
		afterID = page[len(page)-1].File.ID
	}

	e.logger.Info("snapshot exported",
		logging.Int64("job_id", jobID),
		logging.Int64("records", written))
	return written, nil
}

func buildRecord(file store.SnapshotFile) Record {
	record := Record{
		Path:   file.File.Path,
		Type:   file.File.Type,
		Status: string(file.File.Status),
		Error:  file.File.ErrorMessage,
	}
	if file.Result != nil {
		result := Result{
			EntityCount: file.Result.EntityCount,
			DurationMS:  file.Result.Duration.Milliseconds(),
			Entities:    make([]Entity, 0, len(file.Entities)),
		}
		for _, e := range file.Entities {
			result.Entities = append(result.Entities, Entity{
				Type:  e.Type,
				Text:  e.Text,
				Start: e.Start,
				End:   e.End,
				Score: e.Score,
			})
		}
		record.Result = &result
	}
	return record
}
