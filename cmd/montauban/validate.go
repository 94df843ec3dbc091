package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/council"
	"github.com/cory-johannsen/montauban/internal/game/state"
	"github.com/cory-johannsen/montauban/internal/scripting"
)

func newValidateCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load every content file and report counts and warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CHARACTER\tSCENES\tOPTIONS\tGATED")
			for _, ch := range eng.Characters.All() {
				opts, gated := countOptions(ch)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", ch.ID, ch.SceneCount(), opts, gated)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "council: %d deliberations, %d policy flags\n", len(eng.Agenda), len(council.KnownFlags(eng.Agenda)))
			fmt.Fprintf(out, "patches: %d rules\n", eng.Patcher.Rules())

			warnings := lint(eng)
			for _, w := range warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d warnings", len(warnings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any warning is reported")
	return cmd
}

func countOptions(ch *content.Character) (total, gated int) {
	for _, s := range ch.Scenes {
		for _, o := range s.Options {
			total++
			if !o.Conditions.Empty() {
				gated++
			}
		}
	}
	return total, gated
}

// lint gathers the warnings of every content layer: stranding scenes, dead
// patch rules, patch flags the Council cannot grant and undefined predicates.
func lint(eng *Engine) []string {
	var warnings []string
	for _, ch := range eng.Characters.All() {
		warnings = append(warnings, ch.Lint()...)
	}
	warnings = append(warnings, eng.Patcher.Lint(eng.Characters)...)

	known := state.NewFlags(council.KnownFlags(eng.Agenda)...)
	for _, f := range eng.Patcher.Flags() {
		if !known.Has(f) {
			warnings = append(warnings, fmt.Sprintf("patch flag %q is never granted by the council", f))
		}
	}

	probe := state.NewPlayer(state.Stats{}, state.NewFlags(), state.NewFlags())
	for _, fn := range scriptNames(eng.Characters) {
		if _, err := eng.Scripts.Check(fn, probe); errors.Is(err, scripting.ErrUnknownPredicate) {
			warnings = append(warnings, fmt.Sprintf("requires_script %q is not defined", fn))
		}
	}
	return warnings
}

func scriptNames(reg *content.Registry) []string {
	seen := make(map[string]bool)
	for _, ch := range reg.All() {
		for _, s := range ch.Scenes {
			for _, o := range s.Options {
				if o.Conditions != nil && o.Conditions.RequiresScript != "" {
					seen[o.Conditions.RequiresScript] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
