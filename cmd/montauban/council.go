package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCouncilCmd(a *app) *cobra.Command {
	var (
		decisions []string
		list      bool
	)
	cmd := &cobra.Command{
		Use:   "council",
		Short: "Run a Council session and print the resulting world config",
		Long: "Resolves every deliberation of the agenda with the given decision ids, in order,\n" +
			"and prints the world config handed to character playthroughs as JSON.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			if list {
				for i, d := range eng.Agenda {
					fmt.Fprintf(out, "%d %s (%s)\n", i, d.ID, d.Title)
					for _, dec := range d.Decisions {
						fmt.Fprintf(out, "  %s: %s\n", dec.ID, dec.Label)
					}
				}
				return nil
			}

			s, err := eng.NewCouncil()
			if err != nil {
				return err
			}
			res, err := s.Run(decisions)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(res.WorldConfig(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&decisions, "decisions", nil, "one decision id per deliberation, in agenda order")
	cmd.Flags().BoolVar(&list, "list", false, "list the agenda and its decision ids instead of running it")
	cmd.MarkFlagsOneRequired("decisions", "list")
	cmd.MarkFlagsMutuallyExclusive("decisions", "list")
	return cmd
}
