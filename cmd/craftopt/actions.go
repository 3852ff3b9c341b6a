//go:build !lambda

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"craft-optimizer/internal/sim"
)

func newActionsCommand(_ *rootOptions) *cobra.Command {
	var level uint8

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the actions and their built-in data",
		RunE: func(cmd *cobra.Command, args []string) error {
			printActions(cmd.OutOrStdout(), sim.DefaultActionTable(), level)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&level, "level", 100, "job level; potencies use its traits and locked actions are hidden")
	return cmd
}

func printActions(w io.Writer, table *sim.ActionTable, level uint8) {
	fmt.Fprintf(w, "%-3s %-24s %5s %5s %4s %8s %8s\n", "#", "Action", "Level", "CP", "Dur", "Progress", "Quality")
	for _, a := range table.LevelMask(level).Actions() {
		d := &table[a]
		fmt.Fprintf(w, "%-3d %-24s %5d %5d %4d %8d %8d\n",
			a, a.String(), d.Level, d.CP, d.Durability, d.ProgressPotency(level), d.Quality)
	}
}
