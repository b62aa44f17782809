package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scour/internal/config"
	"scour/internal/engine"
	"scour/internal/scan"
	"scour/internal/store"
)

type processMode int

const (
	modeProcess processMode = iota
	modeRestart
	modeReprocess
)

// processJob builds the engine around the configured extractor and
// analyzer and runs the requested mode against jobID.
func processJob(ctx context.Context, cmd *cobra.Command, cfg *config.Config, st *store.Store, logger *slog.Logger, jobID int64, mode processMode) error {
	extractor := scan.NewTextExtractor(cfg.Extractor.MaxFileBytes, cfg.Discovery.Extensions)
	analyzer := scan.NewPatternAnalyzer(cfg.Analyzer.ScoreThreshold)
	ctrl := engine.New(st, cfg, logger, extractor, analyzer)

	var err error
	switch mode {
	case modeRestart:
		err = ctrl.Restart(ctx, jobID)
	case modeReprocess:
		err = ctrl.Reprocess(ctx, jobID)
	default:
		err = ctrl.Process(ctx, jobID)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.OutOrStdout(), "interrupted; resume with `scour resume`")
			return nil
		}
		return err
	}

	job, err := st.GetJob(context.WithoutCancel(ctx), jobID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), jobSummaryLine(job))
	return nil
}

// newProcessExistingCommand covers the resume, restart, and reprocess
// verbs, which differ only in how they requeue files before running.
func newProcessExistingCommand(cctx *commandContext, use, short string, mode processMode) *cobra.Command {
	var workersFlag int
	var batchFlag int

	cmd := &cobra.Command{
		Use:   use + " [job-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return cctx.withLockedStore(signalCtx, func(cfg *config.Config, st *store.Store) error {
				applyWorkerFlags(cfg, workersFlag, batchFlag)
				if err := cfg.Validate(); err != nil {
					return err
				}

				job, err := resolveJob(signalCtx, st, args)
				if err != nil {
					return err
				}
				if mode == modeProcess && job.Status == store.JobCompleted && job.RemainingFiles() == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "job %d already completed; use `scour restart` to process it again\n", job.ID)
					return nil
				}

				logger, err := buildLogger(cfg)
				if err != nil {
					return err
				}
				return processJob(signalCtx, cmd, cfg, st, logger, job.ID, mode)
			})
		},
	}

	addWorkerFlags(cmd, &workersFlag, &batchFlag)
	return cmd
}

func newResumeCommand(cctx *commandContext) *cobra.Command {
	return newProcessExistingCommand(cctx, "resume",
		"Continue an interrupted job from where it stopped", modeProcess)
}

func newRestartCommand(cctx *commandContext) *cobra.Command {
	return newProcessExistingCommand(cctx, "restart",
		"Discard a job's prior results and process it from scratch", modeRestart)
}

func newReprocessCommand(cctx *commandContext) *cobra.Command {
	return newProcessExistingCommand(cctx, "reprocess",
		"Requeue a job's errored files and process them again", modeReprocess)
}

func addWorkerFlags(cmd *cobra.Command, workersFlag, batchFlag *int) {
	cmd.Flags().IntVar(workersFlag, "workers", 0, "Worker count (overrides config)")
	cmd.Flags().IntVar(batchFlag, "batch-size", 0, "Files claimed per batch (overrides config)")
}

func applyWorkerFlags(cfg *config.Config, workers, batchSize int) {
	if workers > 0 {
		cfg.Workers.Count = workers
	}
	if batchSize > 0 {
		cfg.Workers.BatchSize = batchSize
	}
}
