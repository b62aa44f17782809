package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scour/internal/config"
	"scour/internal/logging"
	"scour/internal/scan"
	"scour/internal/store"
)

const progressInterval = 10 * time.Second

// Controller coordinates workers over one job at a time.
type Controller struct {
	store     *store.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor scan.Extractor
	analyzer  scan.Analyzer

	processed atomic.Int64
	failed    atomic.Int64
}

func New(st *store.Store, cfg *config.Config, logger *slog.Logger, extractor scan.Extractor, analyzer scan.Analyzer) *Controller {
	return &Controller{
		store:     st,
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "engine"),
		extractor: extractor,
		analyzer:  analyzer,
	}
}

// Process runs the worker pool against jobID until the queue drains or
// the context is cancelled. The job finishes as completed when the
// queue drains (even if individual files errored), interrupted on
// cancellation, and error when the store itself becomes unusable.
func (c *Controller) Process(ctx context.Context, jobID int64) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %d: %w", jobID, err)
	}
	if err := c.store.SetJobStatus(ctx, jobID, store.JobRunning); err != nil {
		return fmt.Errorf("marking job %d running: %w", jobID, err)
	}

	staleTimeout := c.cfg.StaleTimeout()
	healed, err := c.store.ResetStale(ctx, jobID, time.Now().Add(-staleTimeout))
	if err != nil {
		return fmt.Errorf("recovering stale claims: %w", err)
	}
	if healed > 0 {
		c.logger.Info("recovered stale claims from a previous run",
			logging.Int64("files", healed))
	}

	c.processed.Store(0)
	c.failed.Store(0)
	started := time.Now()

	c.logger.Info("processing started",
		logging.Int64("job_id", jobID),
		logging.String("job", job.Name),
		logging.Int("workers", c.cfg.Workers.Count),
		logging.Int("batch_size", c.cfg.Workers.BatchSize),
		logging.Int("remaining", job.RemainingFiles()))

	g, groupCtx := errgroup.WithContext(ctx)
	tickCtx, stopTickers := context.WithCancel(groupCtx)
	var tickers sync.WaitGroup
	tickers.Add(1)
	go func() {
		defer tickers.Done()
		c.runTickers(tickCtx, jobID, staleTimeout, started)
	}()

	for i := 0; i < c.cfg.Workers.Count; i++ {
		owner := fmt.Sprintf("worker-%d-%s", i+1, uuid.NewString())
		g.Go(func() error {
			return c.worker(groupCtx, jobID, owner)
		})
	}
	runErr := g.Wait()
	stopTickers()
	tickers.Wait()

	finishCtx := context.WithoutCancel(ctx)
	switch {
	case runErr == nil:
		if err := c.store.SetJobStatus(finishCtx, jobID, store.JobCompleted); err != nil {
			return fmt.Errorf("marking job %d completed: %w", jobID, err)
		}
		c.logSummary(finishCtx, jobID, started)
		return nil
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		// Release claims this run still holds so a resume sees them as
		// pending instead of waiting out the stale timeout.
		if _, err := c.store.ResetStale(finishCtx, jobID, time.Now().Add(staleTimeout)); err != nil {
			c.logger.Warn("releasing in-flight claims failed", logging.Error(err))
		}
		if err := c.store.SetJobStatus(finishCtx, jobID, store.JobInterrupted); err != nil {
			return fmt.Errorf("marking job %d interrupted: %w", jobID, err)
		}
		c.logger.Info("processing interrupted",
			logging.Int64("job_id", jobID),
			logging.Int64("processed", c.processed.Load()),
			logging.Int64("failed", c.failed.Load()))
		return runErr
	default:
		if err := c.store.SetJobStatus(finishCtx, jobID, store.JobError); err != nil {
			c.logger.Warn("marking job errored failed", logging.Error(err))
		}
		return runErr
	}
}

// Restart clears every prior outcome for the job and processes it from
// scratch.
func (c *Controller) Restart(ctx context.Context, jobID int64) error {
	reset, err := c.store.ResetAll(ctx, jobID)
	if err != nil {
		return fmt.Errorf("resetting job %d: %w", jobID, err)
	}
	c.logger.Info("restarting job from scratch",
		logging.Int64("job_id", jobID),
		logging.Int64("files_reset", reset))
	return c.Process(ctx, jobID)
}

// Reprocess requeues the job's errored files and processes the queue.
// The terminal status always comes from Process, so a job with pending
// files left over from an interruption drains instead of being stamped
// completed.
func (c *Controller) Reprocess(ctx context.Context, jobID int64) error {
	reset, err := c.store.ResetErrors(ctx, jobID)
	if err != nil {
		return fmt.Errorf("requeueing errored files for job %d: %w", jobID, err)
	}
	if reset > 0 {
		c.logger.Info("reprocessing errored files",
			logging.Int64("job_id", jobID),
			logging.Int64("files", reset))
	} else {
		c.logger.Info("no errored files to requeue", logging.Int64("job_id", jobID))
	}
	return c.Process(ctx, jobID)
}

func (c *Controller) worker(ctx context.Context, jobID int64, owner string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := c.store.ClaimBatch(ctx, jobID, owner, c.cfg.Workers.BatchSize)
		if err != nil {
			return fmt.Errorf("claiming batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		for _, file := range batch {
			if err := c.processFile(ctx, file); err != nil {
				return err
			}
		}
	}
}

// processFile runs one file through extract and analyze. Per-file
// failures are recorded on the row and do not abort the worker; only
// cancellation and store errors propagate.
func (c *Controller) processFile(ctx context.Context, file *store.File) error {
	started := time.Now()
	fileCtx, cancel := context.WithTimeout(ctx, c.cfg.StaleTimeout())
	defer cancel()

	text, err := c.extractor.Extract(fileCtx, file.Path)
	if err != nil {
		return c.recordFailure(ctx, file, err)
	}
	found, err := c.analyzer.Analyze(fileCtx, text)
	if err != nil {
		return c.recordFailure(ctx, file, err)
	}

	entities := make([]store.Entity, 0, len(found))
	for _, e := range found {
		entities = append(entities, store.Entity{
			Type:  e.Type,
			Text:  e.Text,
			Start: e.Start,
			End:   e.End,
			Score: e.Score,
		})
	}
	result := store.Result{EntityCount: len(entities), Duration: time.Since(started)}
	if err := c.store.CompleteFile(ctx, file.ID, result, entities); err != nil {
		return fmt.Errorf("completing file %s: %w", file.Path, err)
	}
	c.processed.Add(1)
	return nil
}

func (c *Controller) recordFailure(ctx context.Context, file *store.File, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.FailFile(ctx, file.ID, cause.Error()); err != nil {
		return fmt.Errorf("recording failure for %s: %w", file.Path, err)
	}
	c.failed.Add(1)
	c.logger.Warn("file failed",
		logging.String("path", file.Path),
		logging.Error(cause))
	return nil
}

// runTickers periodically logs progress and returns stale claims to
// the queue while the pool is running.
func (c *Controller) runTickers(ctx context.Context, jobID int64, staleTimeout time.Duration, started time.Time) {
	reclaimEvery := staleTimeout / 2
	if reclaimEvery < time.Second {
		reclaimEvery = time.Second
	}
	reclaim := time.NewTicker(reclaimEvery)
	defer reclaim.Stop()
	progress := time.NewTicker(progressInterval)
	defer progress.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reclaim.C:
			n, err := c.store.ResetStale(ctx, jobID, time.Now().Add(-staleTimeout))
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("stale claim sweep failed", logging.Error(err))
				}
				continue
			}
			if n > 0 {
				c.logger.Warn("returned stale claims to the queue", logging.Int64("files", n))
			}
		case <-progress.C:
			processed := c.processed.Load()
			failed := c.failed.Load()
			elapsed := time.Since(started).Seconds()
			rate := 0.0
			if elapsed > 0 {
				rate = float64(processed+failed) / elapsed
			}
			c.logger.Info("progress",
				logging.Int64("processed", processed),
				logging.Int64("failed", failed),
				logging.Float64("files_per_sec", rate))
		}
	}
}

func (c *Controller) logSummary(ctx context.Context, jobID int64, started time.Time) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		c.logger.Warn("loading final job state failed", logging.Error(err))
		return
	}
	c.logger.Info("processing complete",
		logging.Int64("job_id", jobID),
		logging.Int("total", job.TotalFiles),
		logging.Int("processed", job.ProcessedFiles),
		logging.Int("errors", job.ErrorFiles),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
}
