package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newRunsCmd(flags *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recent runs or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer a.close()
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := a.svc.Run(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}

			runs, err := a.svc.Runs(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(w).Encode(runs)
			}
			for _, run := range runs {
				valid, invalid := 0, 0
				if run.Report != nil {
					valid, invalid = run.Report.Totals()
				}
				printf(w, "%s  %-8s %-20s %s  valid=%d invalid=%d\n",
					run.ID, run.Status, run.CreatedAt.Format("2006-01-02 15:04:05"), run.Name, valid, invalid)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	cmd.AddCommand(newResetMappingsCmd(flags))
	return cmd
}

func newResetMappingsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "forget-mappings",
		Short: "Delete all saved header mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer a.close()
			n, err := a.svc.ResetMappings(ctx)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d saved mappings deleted\n", n)
			return nil
		},
	}
}
