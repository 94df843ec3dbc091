package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/montauban/internal/game/council"
	"github.com/cory-johannsen/montauban/internal/game/progression"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Strategy names accepted by simulate --strategy.
const (
	strategyFirst  = "first"
	strategyRandom = "random"
)

type simulateOptions struct {
	character   string
	policy      []string
	worldConfig string
	strategy    string
	seed        uint64
	asJSON      bool
}

func newSimulateCmd(a *app) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a character through the week with an automatic strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			strat, err := opts.pickStrategy()
			if err != nil {
				return err
			}
			res, err := opts.councilResult()
			if err != nil {
				return err
			}

			eng, cleanup, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := eng.NewController()
			if err := ctrl.ImportCouncil(res); err != nil {
				return err
			}
			sum, err := progression.Autoplay(ctrl, opts.character, strat)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), simulation{Summary: sum, History: ctrl.History(), Policy: ctrl.Policy().Sorted()})
			}
			printSimulation(cmd.OutOrStdout(), ctrl, sum)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.character, "character", "", "character id to play")
	f.StringSliceVar(&opts.policy, "policy", nil, "policy flags in force, as granted by the Council")
	f.StringVar(&opts.worldConfig, "world-config", "", "JSON world config produced by the council command")
	f.StringVar(&opts.strategy, "strategy", strategyFirst, "option strategy: first or random")
	f.Uint64Var(&opts.seed, "seed", 1, "seed for the random strategy")
	f.BoolVar(&opts.asJSON, "json", false, "print the summary as JSON")
	_ = cmd.MarkFlagRequired("character")
	cmd.MarkFlagsMutuallyExclusive("policy", "world-config")
	return cmd
}

func (o *simulateOptions) pickStrategy() (progression.Strategy, error) {
	switch o.strategy {
	case strategyFirst:
		return progression.FirstAvailable(), nil
	case strategyRandom:
		return progression.RandomAvailable(rand.New(rand.NewPCG(o.seed, o.seed))), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: must be %q or %q", o.strategy, strategyFirst, strategyRandom)
	}
}

// councilResult returns the policy to import: a world config file, explicit
// flags, or a skipped Council.
func (o *simulateOptions) councilResult() (council.Result, error) {
	if o.worldConfig != "" {
		raw, err := os.ReadFile(o.worldConfig)
		if err != nil {
			return council.Result{}, fmt.Errorf("reading world config: %w", err)
		}
		var wc council.WorldConfig
		if err := json.Unmarshal(raw, &wc); err != nil {
			return council.Result{}, fmt.Errorf("parsing world config %s: %w", o.worldConfig, err)
		}
		return wc.Result(), nil
	}
	if len(o.policy) > 0 {
		return council.Result{Flags: state.NewFlags(o.policy...)}, nil
	}
	return council.Skipped(), nil
}

type simulation struct {
	Summary progression.Summary        `json:"summary"`
	History []progression.HistoryEntry `json:"history"`
	Policy  []string                   `json:"policy"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSimulation(w io.Writer, ctrl *progression.Controller, sum progression.Summary) {
	fmt.Fprintf(w, "%s (%s)\n", sum.Name, sum.Character)
	if p := ctrl.Policy(); p.Len() > 0 {
		fmt.Fprintf(w, "policy: %s\n", p)
	}
	for _, h := range ctrl.History() {
		origin := ""
		if h.Origin != "" {
			origin = " (" + string(h.Origin) + ")"
		}
		fmt.Fprintf(w, "%-9s %s [%s] %-22s %s%s\n",
			progression.DayLabel(h.SceneIndex), h.SceneID, h.World, progression.DomainLabel(h.Domain), h.OptionID, origin)
	}
	fmt.Fprintf(w, "outcome: %s", sum.Outcome)
	if sum.FailedStat != "" {
		c := progression.CollapseFor(sum.FailedStat)
		fmt.Fprintf(w, " (%s: %s)", sum.FailedStat, c.Title)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "resources=%d moral=%d links=%d comfort=%d mood=%s\n",
		sum.Stats.Resources, sum.Stats.Moral, sum.Stats.Links, sum.Stats.Comfort, progression.MoodFor(sum.Stats))
}
