package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"scour/internal/store"
)

var countPrinter = message.NewPrinter(language.English)

// formatCount renders an integer with digit grouping for readability.
func formatCount[T int | int64](value T) string {
	return countPrinter.Sprintf("%d", int64(value))
}

// resolveJob picks the job named by args, or the most recent one.
func resolveJob(ctx context.Context, st *store.Store, args []string) (*store.Job, error) {
	if len(args) == 0 {
		job, err := st.LatestJob(ctx)
		if errors.Is(err, store.ErrNoJobs) {
			return nil, errors.New("no jobs found; start one with `scour run <directory>`")
		}
		return job, err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q", args[0])
	}
	job, err := st.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("job %d not found", id)
	}
	return job, err
}

func jobSummaryLine(job *store.Job) string {
	return fmt.Sprintf("job %d (%s): %s, %s of %s files processed, %s errors",
		job.ID, job.Name, job.Status,
		formatCount(job.ProcessedFiles),
		formatCount(job.TotalFiles),
		formatCount(job.ErrorFiles))
}
