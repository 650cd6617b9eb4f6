package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func historyCmd() *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the issues created by one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAudit()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("--audit-db is required")
			}
			defer store.Close()

			if runID != "" {
				issues, err := store.Issues(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issues)
				}
				writeIssuesTable(os.Stdout, issues)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(runs)
			}
			writeRunsTable(os.Stdout, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the issues created by this run")
	return cmd
}
