package patch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Patcher applies a fixed rule table. It is immutable and safe to share.
type Patcher struct {
	rules []Rule
}

// NewPatcher returns a Patcher over rules, kept in the given order.
func NewPatcher(rules []Rule) *Patcher {
	return &Patcher{rules: append([]Rule(nil), rules...)}
}

// Rules returns the number of rules in the table.
func (p *Patcher) Rules() int {
	return len(p.rules)
}

// Flags returns every policy flag some rule is keyed on, sorted.
func (p *Patcher) Flags() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range p.rules {
		if !seen[r.Flag] {
			seen[r.Flag] = true
			out = append(out, r.Flag)
		}
	}
	sort.Strings(out)
	return out
}

// Patch returns ch as seen through flags. Every rule whose flag is held and whose
// scene belongs to ch fires, in table order; several rules may touch one scene.
//
// Precondition: ch must be non-nil.
// Postcondition: ch and everything reachable from it are unchanged. When no rule
// fires the result is ch itself.
func (p *Patcher) Patch(ch *content.Character, flags state.Flags) *content.Character {
	if flags.Len() == 0 {
		return ch
	}

	var out *content.Character
	cloned := make(map[int]bool)
	for i := range p.rules {
		r := &p.rules[i]
		if !flags.Has(r.Flag) {
			continue
		}
		idx := sceneIndex(ch, r.Scene)
		if idx < 0 {
			continue
		}
		if out == nil {
			out = ch.ShallowCopy()
		}
		if !cloned[idx] {
			out.Scenes[idx] = ch.Scenes[idx].Clone()
			cloned[idx] = true
		}
		r.apply(out.Scenes[idx])
	}
	if out == nil {
		return ch
	}
	return out
}

func sceneIndex(ch *content.Character, id string) int {
	for i, s := range ch.Scenes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// apply mutates s, which must be a private clone.
func (r *Rule) apply(s *content.Scene) {
	if c := r.Context; c != nil {
		if c.Find != "" {
			s.Context = strings.Replace(s.Context, c.Find, c.With, 1)
		}
		if c.Append != "" {
			s.Context = strings.TrimRight(s.Context, "\n") + "\n\n" + strings.TrimSpace(c.Append)
		}
	}

	for _, st := range r.Strip {
		o, ok := s.Option(st.Option)
		if !ok {
			continue
		}
		o.Conditions = strip(o.Conditions, st.Clauses)
		markPatched(o)
	}

	for _, rep := range r.Replace {
		o, ok := s.Option(rep.Option)
		if !ok {
			continue
		}
		if rep.Label != nil {
			o.Label = *rep.Label
		}
		if rep.Consequence != nil {
			o.Consequence = strings.TrimSpace(*rep.Consequence)
		}
		if rep.Effect != nil {
			o.Effect = *rep.Effect
		}
		if rep.SetsFlag != nil {
			o.SetsFlag = *rep.SetsFlag
		}
		if rep.BlockedText != nil {
			o.BlockedText = *rep.BlockedText
		}
		markPatched(o)
	}

	for _, inj := range r.Inject {
		if _, exists := s.Option(inj.ID); exists {
			continue
		}
		o := inj.Clone()
		o.Consequence = strings.TrimSpace(o.Consequence)
		o.Origin = content.OriginInjected
		s.Options = append(s.Options, o)
	}
}

func markPatched(o *content.Option) {
	if o.Origin == content.OriginAuthored {
		o.Origin = content.OriginPatched
	}
}

// strip returns c without the named clauses; nil when nothing remains.
func strip(c *content.Conditions, clauses []Clause) *content.Conditions {
	if c == nil || len(clauses) == 0 {
		return nil
	}
	for _, cl := range clauses {
		switch cl {
		case ClauseMinStat:
			c.MinStat = nil
		case ClauseMaxStat:
			c.MaxStat = nil
		case ClauseRequiresFlag:
			c.RequiresFlag = ""
		case ClauseBlockedByFlag:
			c.BlockedByFlag = ""
		case ClauseRequiresCrossFlag:
			c.RequiresCrossFlag = nil
		case ClauseRequiresPolicyFlag:
			c.RequiresPolicyFlag = ""
		case ClauseBlockedByPolicyFlag:
			c.BlockedByPolicyFlag = ""
		case ClauseRequiresScript:
			c.RequiresScript = ""
		}
	}
	if c.Empty() {
		return nil
	}
	return c
}

// Lint reports rules that can never fire against reg: unknown scenes, and strip
// or replace targets the scene does not author.
func (p *Patcher) Lint(reg *content.Registry) []string {
	scenes := make(map[string]*content.Scene)
	for _, ch := range reg.All() {
		for _, s := range ch.Scenes {
			scenes[s.ID] = s
		}
	}
	var warnings []string
	for i, r := range p.rules {
		s, ok := scenes[r.Scene]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("rule %d (%s): unknown scene %q", i, r.Flag, r.Scene))
			continue
		}
		for _, st := range r.Strip {
			if _, ok := s.Option(st.Option); !ok {
				warnings = append(warnings, fmt.Sprintf("rule %d (%s): scene %q has no option %q to strip", i, r.Flag, r.Scene, st.Option))
			}
		}
		for _, rep := range r.Replace {
			if _, ok := s.Option(rep.Option); !ok {
				warnings = append(warnings, fmt.Sprintf("rule %d (%s): scene %q has no option %q to replace", i, r.Flag, r.Scene, rep.Option))
			}
		}
		if c := r.Context; c != nil && c.Find != "" && !strings.Contains(s.Context, c.Find) {
			warnings = append(warnings, fmt.Sprintf("rule %d (%s): context text not found in scene %q", i, r.Flag, r.Scene))
		}
	}
	return warnings
}
