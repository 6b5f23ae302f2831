package main

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/review"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/sink"
	service "github.com/safer-strategy/data-transformation-tool/internal/app"
	"github.com/safer-strategy/data-transformation-tool/internal/config"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/headers"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
)

func newNormalizeCmd(flags *globalFlags) *cobra.Command {
	var (
		fresh  bool
		output string
		policy string
	)
	cmd := &cobra.Command{
		Use:   "normalize <file-or-directory>",
		Short: "Normalize a CSV, XLSX or directory of them",
		Long: "Resolve headers, coerce and derive values, resolve relationships and write " +
			"converted_<name>.xlsx plus invalid_records_converted_<name>.xlsx when records were rejected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer a.close()

			if policy == "" {
				policy = a.cfg.ReviewPolicy
			}
			ds, err := a.svc.Reader().Read(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := a.svc.Normalize(ctx, ds, reviewerFor(cmd, policy), service.NormalizeOptions{
				Fresh:     fresh,
				OutputDir: output,
			})
			if err != nil {
				return err
			}
			if err := a.svc.Record(ctx, filepath.Base(args[0]), out); err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), out)
			if out.Result.Report.Failed() {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore saved header mappings")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: output_dir from config)")
	cmd.Flags().StringVar(&policy, "review", "", "pending headers: prompt, accept or skip (default: review_policy from config)")
	return cmd
}

// reviewerFor prompts only when asked to and a terminal is attached.
func reviewerFor(cmd *cobra.Command, policy string) headers.Reviewer {
	if policy == config.ReviewPrompt && review.Interactive(stdinFile(cmd)) {
		return review.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return review.ForPolicy(policy)
}

func printResult(w io.Writer, out *service.Outcome) {
	report := out.Result.Report
	printf(w, "run %s\n", report.ID)
	for _, tr := range report.Tables {
		switch tr.Status {
		case model.StatusNormalized:
			line := fmt.Sprintf("  %-16s %d valid, %d invalid", tr.Table, tr.Valid, tr.Invalid)
			if tr.Orphans > 0 {
				line += fmt.Sprintf(", %d unresolved references", tr.Orphans)
			}
			printf(w, "%s\n", line)
		default:
			printf(w, "  %-16s %s: %s\n", tr.Table, tr.Status, tr.Reason)
		}
	}
	for _, warning := range report.Warnings {
		printf(w, "warning: %s\n", warning)
	}
	kinds := make([]string, 0, len(out.Files))
	for kind := range out.Files {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		printf(w, "%s: %s\n", kind, out.Files[kind])
	}
	if len(out.Files) == 0 {
		printf(w, "nothing to write\n")
	} else if _, ok := out.Files[sink.KindInvalid]; !ok {
		printf(w, "all records valid\n")
	}
}
