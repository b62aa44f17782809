package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scour/internal/config"
	"scour/internal/discovery"
	"scour/internal/store"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var nameFlag string
	var workersFlag int
	var batchFlag int
	var extsFlag []string

	cmd := &cobra.Command{
		Use:   "run <directory>",
		Short: "Discover files under a directory and process them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return cctx.withLockedStore(signalCtx, func(cfg *config.Config, st *store.Store) error {
				applyWorkerFlags(cfg, workersFlag, batchFlag)
				if len(extsFlag) > 0 {
					cfg.Discovery.Extensions = extsFlag
				}
				if err := cfg.Validate(); err != nil {
					return err
				}

				logger, err := buildLogger(cfg)
				if err != nil {
					return err
				}

				root, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve directory %s: %w", args[0], err)
				}
				info, err := os.Stat(root)
				if err != nil {
					return fmt.Errorf("scan root %s: %w", root, err)
				}
				if !info.IsDir() {
					return fmt.Errorf("scan root %s is not a directory", root)
				}
				name := nameFlag
				if name == "" {
					name = fmt.Sprintf("%s-%s", filepath.Base(root), time.Now().UTC().Format("20060102T150405Z"))
				}

				settings := map[string]any{
					"workers":    cfg.Workers.Count,
					"batch_size": cfg.Workers.BatchSize,
					"extensions": cfg.Discovery.Extensions,
				}
				job, err := st.CreateJob(signalCtx, name, root, settings)
				if err != nil {
					return fmt.Errorf("create job: %w", err)
				}

				walker := discovery.NewWalker(st, logger, cfg.Discovery.Extensions)
				stats, err := walker.Run(signalCtx, job.ID, root)
				if err != nil {
					return fmt.Errorf("discover files: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %d: registered %s of %s scanned files\n",
					job.ID, formatCount(stats.Registered), formatCount(stats.Scanned))

				annotations := map[string]string{
					"discovery.scanned":      strconv.FormatInt(stats.Scanned, 10),
					"discovery.matched":      strconv.FormatInt(stats.Matched, 10),
					"discovery.skipped_dirs": strconv.FormatInt(stats.SkippedDirs, 10),
				}
				for key, value := range annotations {
					if err := st.SetJobMetadata(signalCtx, job.ID, key, value); err != nil {
						return fmt.Errorf("record %s: %w", key, err)
					}
				}

				return processJob(signalCtx, cmd, cfg, st, logger, job.ID, modeProcess)
			})
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "Job name (defaults to directory plus timestamp)")
	addWorkerFlags(cmd, &workersFlag, &batchFlag)
	cmd.Flags().StringSliceVar(&extsFlag, "ext", nil, "File extensions to include (overrides config)")

	return cmd
}
