// Package patch projects a character graph through the policy flags of a
// finished Council session: conditions are stripped, outcomes replaced, options
// injected and scene text amended, without touching the source graph.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Clause names one condition clause that a Strip can remove.
type Clause string

// Strippable clauses.
const (
	ClauseMinStat             Clause = "min_stat"
	ClauseMaxStat             Clause = "max_stat"
	ClauseRequiresFlag        Clause = "requires_flag"
	ClauseBlockedByFlag       Clause = "blocked_by_flag"
	ClauseRequiresCrossFlag   Clause = "requires_cross_flag"
	ClauseRequiresPolicyFlag  Clause = "requires_policy_flag"
	ClauseBlockedByPolicyFlag Clause = "blocked_by_policy_flag"
	ClauseRequiresScript      Clause = "requires_script"
)

// Valid reports whether c names a known clause.
func (c Clause) Valid() bool {
	switch c {
	case ClauseMinStat, ClauseMaxStat, ClauseRequiresFlag, ClauseBlockedByFlag,
		ClauseRequiresCrossFlag, ClauseRequiresPolicyFlag, ClauseBlockedByPolicyFlag, ClauseRequiresScript:
		return true
	}
	return false
}

// ContextPatch amends a scene's narrative text. Find/With replace the first
// occurrence; Append adds a paragraph at the end.
type ContextPatch struct {
	Find   string `yaml:"find,omitempty"`
	With   string `yaml:"with,omitempty"`
	Append string `yaml:"append,omitempty"`
}

// Strip removes condition clauses from an authored option. An empty Clauses list
// removes every clause.
type Strip struct {
	Option  string   `yaml:"option"`
	Clauses []Clause `yaml:"clauses,omitempty"`
}

// Replacement overwrites the outcome of an authored option. Nil fields are kept;
// a pointer to "" clears a text field.
type Replacement struct {
	Option      string        `yaml:"option"`
	Label       *string       `yaml:"label,omitempty"`
	Consequence *string       `yaml:"consequence,omitempty"`
	Effect      *state.Effect `yaml:"effect,omitempty"`
	SetsFlag    *string       `yaml:"sets_flag,omitempty"`
	BlockedText *string       `yaml:"blocked_text,omitempty"`
}

// Rule is one content transformation keyed by (policy flag, scene id). Its
// actions run in the order context, strip, replace, inject.
type Rule struct {
	Flag    string            `yaml:"flag"`
	Scene   string            `yaml:"scene"`
	Context *ContextPatch     `yaml:"context,omitempty"`
	Strip   []Strip           `yaml:"strip,omitempty"`
	Replace []Replacement     `yaml:"replace,omitempty"`
	Inject  []*content.Option `yaml:"inject,omitempty"`
}

// Validate checks the rule in isolation.
func (r *Rule) Validate() error {
	var errs []error
	if r.Flag == "" {
		errs = append(errs, errors.New("flag must not be empty"))
	}
	if r.Scene == "" {
		errs = append(errs, errors.New("scene must not be empty"))
	}
	if r.Context == nil && len(r.Strip) == 0 && len(r.Replace) == 0 && len(r.Inject) == 0 {
		errs = append(errs, errors.New("rule declares no action"))
	}
	if r.Context != nil && r.Context.Find == "" && r.Context.Append == "" {
		errs = append(errs, errors.New("context patch needs find or append"))
	}
	for i, s := range r.Strip {
		if s.Option == "" {
			errs = append(errs, fmt.Errorf("strip %d: option must not be empty", i))
		}
		for _, c := range s.Clauses {
			if !c.Valid() {
				errs = append(errs, fmt.Errorf("strip %d: unknown clause %q", i, c))
			}
		}
	}
	for i, rep := range r.Replace {
		if rep.Option == "" {
			errs = append(errs, fmt.Errorf("replace %d: option must not be empty", i))
		}
	}
	ids := make(map[string]bool, len(r.Inject))
	for i, o := range r.Inject {
		if o == nil || o.ID == "" {
			errs = append(errs, fmt.Errorf("inject %d: id must not be empty", i))
			continue
		}
		if ids[o.ID] {
			errs = append(errs, fmt.Errorf("inject %d: duplicate id %q", i, o.ID))
		}
		ids[o.ID] = true
		if err := o.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("inject %q: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}

type yamlRulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads the rule table from a YAML file.
//
// Precondition: path must point to a YAML file with a top-level rules list.
// Postcondition: Returns rules in file order, or an error joining every violation.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a rule table. Unknown fields are rejected.
func ParseRules(data []byte) ([]Rule, error) {
	var file yamlRulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing patch rules YAML: %w", err)
	}
	var errs []error
	for i := range file.Rules {
		r := &file.Rules[i]
		for _, o := range r.Inject {
			if o != nil && o.Conditions.Empty() {
				o.Conditions = nil
			}
		}
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s@%s): %w", i, r.Flag, r.Scene, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return file.Rules, nil
}
