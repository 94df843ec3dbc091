package council

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Voice is one stakeholder statement heard before a decision.
type Voice struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Message string `yaml:"message"`
	Tone    string `yaml:"tone,omitempty"`
}

// Deferred is an effect scheduled to land when the session reaches the
// deliberation at index At.
type Deferred struct {
	At         int `yaml:"tour"`
	Indicators `yaml:",inline"`
}

// Decision is one of the options put to the vote.
type Decision struct {
	ID          string     `yaml:"id"`
	Label       string     `yaml:"label"`
	Description string     `yaml:"description,omitempty"`
	Narrative   string     `yaml:"narrative,omitempty"`
	Effect      Indicators `yaml:"effect"`
	Deferred    *Deferred  `yaml:"roi,omitempty"`
	Flag        string     `yaml:"flag,omitempty"`
}

// Deliberation is one Council agenda item.
type Deliberation struct {
	ID         string      `yaml:"id"`
	Domain     string      `yaml:"domain"`
	Title      string      `yaml:"title"`
	Situation  string      `yaml:"situation"`
	Voices     []Voice     `yaml:"voices,omitempty"`
	Opposition string      `yaml:"opposition,omitempty"`
	Decisions  []*Decision `yaml:"decisions"`
}

// Decision returns the decision with id, or (nil, false).
func (d *Deliberation) Decision(id string) (*Decision, bool) {
	for _, dec := range d.Decisions {
		if dec.ID == id {
			return dec, true
		}
	}
	return nil, false
}

type yamlCouncilFile struct {
	Deliberations []*Deliberation `yaml:"deliberations"`
}

// LoadDeliberations reads and validates the Council agenda from a YAML file.
//
// Precondition: path must point to a council YAML file.
// Postcondition: Returns the ordered deliberations or a non-nil error.
func LoadDeliberations(path string) ([]*Deliberation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading council file %s: %w", path, err)
	}
	return ParseDeliberations(data)
}

// ParseDeliberations parses and validates the Council agenda from YAML bytes.
// Unknown fields and unknown indicator names are rejected.
//
// Postcondition: Returns the ordered deliberations or a non-nil error.
func ParseDeliberations(data []byte) ([]*Deliberation, error) {
	var file yamlCouncilFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing council YAML: %w", err)
	}
	for _, d := range file.Deliberations {
		if d == nil {
			continue
		}
		d.Situation = strings.TrimSpace(d.Situation)
		for _, dec := range d.Decisions {
			if dec != nil {
				dec.Narrative = strings.TrimSpace(dec.Narrative)
			}
		}
	}
	if err := Validate(file.Deliberations); err != nil {
		return nil, fmt.Errorf("validating council: %w", err)
	}
	return file.Deliberations, nil
}

// Validate checks the structural invariants of an agenda.
//
// Postcondition: Returns nil if valid, or an error joining every violation.
func Validate(delibs []*Deliberation) error {
	var errs []error
	if len(delibs) == 0 {
		errs = append(errs, errors.New("council must declare at least one deliberation"))
	}
	ids := make(map[string]bool, len(delibs))
	for i, d := range delibs {
		if d == nil {
			errs = append(errs, fmt.Errorf("deliberation %d is empty", i))
			continue
		}
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("deliberation %d: id must not be empty", i))
		} else if ids[d.ID] {
			errs = append(errs, fmt.Errorf("deliberation %d: duplicate id %q", i, d.ID))
		}
		ids[d.ID] = true
		if len(d.Decisions) == 0 {
			errs = append(errs, fmt.Errorf("deliberation %q: at least one decision required", d.ID))
		}
		decIDs := make(map[string]bool, len(d.Decisions))
		for j, dec := range d.Decisions {
			if dec == nil {
				errs = append(errs, fmt.Errorf("deliberation %q: decision %d is empty", d.ID, j))
				continue
			}
			if dec.ID == "" {
				errs = append(errs, fmt.Errorf("deliberation %q: decision %d: id must not be empty", d.ID, j))
			} else if decIDs[dec.ID] {
				errs = append(errs, fmt.Errorf("deliberation %q: duplicate decision id %q", d.ID, dec.ID))
			}
			decIDs[dec.ID] = true
			if dec.Label == "" {
				errs = append(errs, fmt.Errorf("deliberation %q: decision %q: label must not be empty", d.ID, dec.ID))
			}
			if dec.Deferred != nil && (dec.Deferred.At < 0 || dec.Deferred.At >= len(delibs)) {
				errs = append(errs, fmt.Errorf("deliberation %q: decision %q: roi.tour must be in [0, %d), got %d",
					d.ID, dec.ID, len(delibs), dec.Deferred.At))
			}
		}
	}
	return errors.Join(errs...)
}

// KnownFlags returns every policy flag a decision in delibs can grant, sorted.
func KnownFlags(delibs []*Deliberation) []string {
	seen := make(map[string]bool)
	for _, d := range delibs {
		for _, dec := range d.Decisions {
			if dec.Flag != "" {
				seen[dec.Flag] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
