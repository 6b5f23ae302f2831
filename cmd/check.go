package main

import (
	"github.com/spf13/cobra"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/source"
	service "github.com/safer-strategy/data-transformation-tool/internal/app"
)

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <converted-workbook>",
		Short: "Validate an already converted workbook against the schema",
		Long: "Every tab must be a schema table with canonical column names. Unknown tabs and " +
			"columns are warnings; rule violations are errors and make the command fail.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, cmd, flags, false)
			if err != nil {
				return err
			}
			defer a.close()

			ds, err := source.NewReader().ReadFile(ctx, args[0])
			if err != nil {
				return err
			}
			report := service.Check(a.registry, ds)

			w := cmd.OutOrStdout()
			for _, warning := range append(ds.Warnings, report.Warnings...) {
				printf(w, "warning: %s\n", warning)
			}
			for _, f := range report.Errors {
				printf(w, "error: %s\n", f)
			}
			if !report.OK() {
				printf(w, "%d errors\n", len(report.Errors))
				return errFailed
			}
			printf(w, "ok\n")
			return nil
		},
	}
}
