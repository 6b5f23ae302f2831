package main

import (
	"github.com/spf13/cobra"

	"github.com/safer-strategy/data-transformation-tool/internal/fixtures"
)

func newGenerateCmd() *cobra.Command {
	var (
		seed    uint64
		users   int
		groups  int
		roles   int
		broken  float64
		orphans float64
	)
	cmd := &cobra.Command{
		Use:   "generate <out.xlsx>",
		Short: "Write a synthetic identity export for trying the tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := fixtures.New(
				fixtures.WithSeed(seed),
				fixtures.WithUsers(users),
				fixtures.WithGroups(groups),
				fixtures.WithRoles(roles),
				fixtures.WithBrokenRate(broken),
				fixtures.WithOrphanRate(orphans),
			)
			ds, exp := gen.Dataset("export")
			if err := fixtures.WriteXLSX(args[0], ds); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s: %d users (%d invalid), %d groups, %d roles, %d links (%d unresolved)\n",
				args[0], exp.Users, exp.InvalidUsers, exp.Groups, exp.Roles, exp.Links, exp.OrphanLinks)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&users, "users", fixtures.DefaultUsers, "number of users")
	cmd.Flags().IntVar(&groups, "groups", fixtures.DefaultGroups, "number of groups")
	cmd.Flags().IntVar(&roles, "roles", fixtures.DefaultRoles, "number of roles")
	cmd.Flags().Float64Var(&broken, "broken", fixtures.DefaultBrokenRate, "share of users breaking a rule")
	cmd.Flags().Float64Var(&orphans, "orphans", fixtures.DefaultOrphanRate, "share of links to unknown users")
	return cmd
}
