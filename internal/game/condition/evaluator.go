// Package condition decides whether an option is currently available to a player
// and explains every clause that blocks it.
package condition

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Kind tags the clause a Reason comes from.
type Kind string

// Reason kinds, one per condition clause.
const (
	KindStatLow       Kind = "stat_low"
	KindStatHigh      Kind = "stat_high"
	KindMissingFlag   Kind = "missing_flag"
	KindBlockedFlag   Kind = "blocked_flag"
	KindCrossFlag     Kind = "cross_flag"
	KindPolicyFlag    Kind = "conseil_flag"
	KindPolicyBlocked Kind = "conseil_blocked"
	KindScript        Kind = "script"
)

// Reason describes one failing clause. Only the fields relevant to Kind are set.
type Reason struct {
	Kind      Kind      `json:"kind"`
	Stat      state.Key `json:"stat,omitempty"`
	Required  int       `json:"required,omitempty"`
	Current   int       `json:"current,omitempty"`
	Flag      string    `json:"flag,omitempty"`
	Character string    `json:"character,omitempty"`
}

func (r Reason) String() string {
	switch r.Kind {
	case KindStatLow:
		return fmt.Sprintf("%s: %s %d < %d", r.Kind, r.Stat, r.Current, r.Required)
	case KindStatHigh:
		return fmt.Sprintf("%s: %s %d > %d", r.Kind, r.Stat, r.Current, r.Required)
	case KindCrossFlag:
		return fmt.Sprintf("%s: %s", r.Kind, state.CrossKey(r.Character, r.Flag))
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Flag)
}

// Result is the outcome of evaluating one option.
type Result struct {
	Available bool
	Reasons   []Reason
}

// ScriptChecker runs a named predicate against a player snapshot.
type ScriptChecker interface {
	Check(fn string, p *state.Player) (bool, error)
}

// Evaluator tests option conditions against player state. It holds no state of
// its own and is safe to share.
type Evaluator struct {
	scripts ScriptChecker
}

// NewEvaluator returns an Evaluator. scripts may be nil, in which case every
// requires_script clause fails.
func NewEvaluator(scripts ScriptChecker) *Evaluator {
	return &Evaluator{scripts: scripts}
}

// Evaluate tests every declared clause of opt against p and reports each one that
// fails, in a fixed clause order.
//
// Precondition: opt and p must be non-nil.
// Postcondition: Available is true iff Reasons is empty; p is not modified.
func (e *Evaluator) Evaluate(opt *content.Option, p *state.Player) Result {
	c := opt.Conditions
	if c.Empty() {
		return Result{Available: true}
	}

	var reasons []Reason
	for _, k := range statKeys(c.MinStat) {
		min := c.MinStat[k]
		cur, ok := p.Stats.Get(k)
		if !ok || cur < min {
			reasons = append(reasons, Reason{Kind: KindStatLow, Stat: k, Required: min, Current: cur})
		}
	}
	for _, k := range statKeys(c.MaxStat) {
		max := c.MaxStat[k]
		cur, ok := p.Stats.Get(k)
		if !ok || cur > max {
			reasons = append(reasons, Reason{Kind: KindStatHigh, Stat: k, Required: max, Current: cur})
		}
	}
	if c.RequiresFlag != "" && !p.Local.Has(c.RequiresFlag) {
		reasons = append(reasons, Reason{Kind: KindMissingFlag, Flag: c.RequiresFlag})
	}
	if c.BlockedByFlag != "" && p.Local.Has(c.BlockedByFlag) {
		reasons = append(reasons, Reason{Kind: KindBlockedFlag, Flag: c.BlockedByFlag})
	}
	chars := make([]string, 0, len(c.RequiresCrossFlag))
	for ch := range c.RequiresCrossFlag {
		chars = append(chars, ch)
	}
	sort.Strings(chars)
	for _, ch := range chars {
		flag := c.RequiresCrossFlag[ch]
		if !p.Cross.Has(state.CrossKey(ch, flag)) {
			reasons = append(reasons, Reason{Kind: KindCrossFlag, Character: ch, Flag: flag})
		}
	}
	if c.RequiresPolicyFlag != "" && !p.Policy.Has(c.RequiresPolicyFlag) {
		reasons = append(reasons, Reason{Kind: KindPolicyFlag, Flag: c.RequiresPolicyFlag})
	}
	if c.BlockedByPolicyFlag != "" && p.Policy.Has(c.BlockedByPolicyFlag) {
		reasons = append(reasons, Reason{Kind: KindPolicyBlocked, Flag: c.BlockedByPolicyFlag})
	}
	if c.RequiresScript != "" && !e.script(c.RequiresScript, p) {
		reasons = append(reasons, Reason{Kind: KindScript, Flag: c.RequiresScript})
	}

	return Result{Available: len(reasons) == 0, Reasons: reasons}
}

func (e *Evaluator) script(fn string, p *state.Player) bool {
	if e == nil || e.scripts == nil {
		return false
	}
	ok, err := e.scripts.Check(fn, p)
	return err == nil && ok
}

// Evaluate runs an Evaluator without scripting support.
func Evaluate(opt *content.Option, p *state.Player) Result {
	return (*Evaluator)(nil).Evaluate(opt, p)
}

// statKeys returns the keys of m with known resources first in stable order,
// then any unknown names sorted, so reason order never depends on map order.
func statKeys(m map[state.Key]int) []state.Key {
	if len(m) == 0 {
		return nil
	}
	out := make([]state.Key, 0, len(m))
	for _, k := range state.Keys {
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}
	var unknown []state.Key
	for k := range m {
		if !k.Valid() {
			unknown = append(unknown, k)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(out, unknown...)
}
