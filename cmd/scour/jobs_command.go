package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scour/internal/config"
	"scour/internal/store"
)

func newJobsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List all jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(cmd.Context(), func(_ *config.Config, st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "no jobs found")
					return nil
				}

				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Name,
						colorizeStatus(job.Status, colorize),
						formatCount(job.TotalFiles),
						formatCount(job.ProcessedFiles),
						formatCount(job.ErrorFiles),
						job.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Status", "Total", "Processed", "Errors", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
