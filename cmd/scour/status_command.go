package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scour/internal/config"
	"scour/internal/store"
)

const maxFailuresShown = 20

func newStatusCommand(cctx *commandContext) *cobra.Command {
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show a job's progress and file breakdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(cmd.Context(), func(_ *config.Config, st *store.Store) error {
				ctx := cmd.Context()
				job, err := resolveJob(ctx, st, args)
				if err != nil {
					return err
				}
				counts, err := st.StatusCounts(ctx, job.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintf(out, "Job %d\n", job.ID)
				fmt.Fprintln(out, renderField("Name", job.Name))
				fmt.Fprintln(out, renderField("Status", colorizeStatus(job.Status, colorize)))
				fmt.Fprintln(out, renderField("Root", job.RootPath))
				fmt.Fprintln(out, renderField("Created", job.CreatedAt.Local().Format(time.RFC1123)))
				fmt.Fprintln(out, renderField("Updated", job.UpdatedAt.Local().Format(time.RFC1123)))
				fmt.Fprintln(out, renderField("Remaining", formatCount(job.RemainingFiles())))
				metadata, err := st.JobMetadata(ctx, job.ID)
				if err != nil {
					return err
				}
				if skipped, ok := metadata["discovery.skipped_dirs"]; ok && skipped != "0" {
					fmt.Fprintln(out, renderField("Skipped dirs", skipped))
				}
				fmt.Fprintln(out)

				rows := make([][]string, 0, 4)
				for _, status := range store.AllFileStatuses() {
					rows = append(rows, []string{string(status), formatCount(counts[status])})
				}
				rows = append(rows, []string{"total", formatCount(job.TotalFiles)})
				fmt.Fprintln(out, renderTable(
					[]string{"File status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				if showFailures && job.ErrorFiles > 0 {
					failures, err := st.FileFailures(ctx, job.ID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\nFailures (%s total):\n", formatCount(job.ErrorFiles))
					for i, failure := range failures {
						if i == maxFailuresShown {
							fmt.Fprintf(out, "  ... and %s more\n", formatCount(len(failures)-maxFailuresShown))
							break
						}
						fmt.Fprintf(out, "  %s: %s\n", failure.Path, failure.Message)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showFailures, "failures", false, "List failed files with their error messages")
	return cmd
}
