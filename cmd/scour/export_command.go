package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scour/internal/config"
	"scour/internal/logging"
	"scour/internal/snapshot"
	"scour/internal/store"
)

func newExportCommand(cctx *commandContext) *cobra.Command {
	var outputFlag string
	var pageSizeFlag int

	cmd := &cobra.Command{
		Use:   "export [job-id]",
		Short: "Export a job's per-file results as JSON Lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(cmd.Context(), func(cfg *config.Config, st *store.Store) error {
				ctx := cmd.Context()
				job, err := resolveJob(ctx, st, args)
				if err != nil {
					return err
				}

				pageSize := cfg.Export.PageSize
				if pageSizeFlag > 0 {
					pageSize = pageSizeFlag
				}

				writer := cmd.OutOrStdout()
				toFile := outputFlag != "" && outputFlag != "-"
				if toFile {
					f, err := os.Create(outputFlag)
					if err != nil {
						return fmt.Errorf("create output file %s: %w", outputFlag, err)
					}
					defer f.Close()
					writer = f
				}

				exporter := snapshot.NewExporter(st, logging.NewNop(), pageSize)
				written, err := exporter.WriteJSONL(ctx, job.ID, writer)
				if err != nil {
					return err
				}
				if toFile {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s records for job %d to %s\n",
						formatCount(written), job.ID, outputFlag)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (defaults to stdout)")
	cmd.Flags().IntVar(&pageSizeFlag, "page-size", 0, "Records fetched per store query (overrides config)")
	return cmd
}
