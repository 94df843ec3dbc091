// Package council runs the municipal Council sub-engine: an ordered sequence of
// deliberations, one decision each, moving five bounded indicators and earning
// the policy flags that later reshape character playthroughs.
package council

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Indicator names one of the five Council gauges.
type Indicator string

// The five indicators, in stable order.
const (
	Solidarite Indicator = "solidarite"
	Legitimite Indicator = "legitimite"
	Ressources Indicator = "ressources"
	Tension    Indicator = "tension"
	Ecologie   Indicator = "ecologie"
)

// IndicatorKeys lists every indicator in stable iteration order.
var IndicatorKeys = []Indicator{Solidarite, Legitimite, Ressources, Tension, Ecologie}

// Bounds of every indicator value.
const (
	Floor   = -20
	Ceiling = 20
)

// Valid reports whether i names a known indicator.
func (i Indicator) Valid() bool {
	switch i {
	case Solidarite, Legitimite, Ressources, Tension, Ecologie:
		return true
	}
	return false
}

// UnmarshalYAML rejects unknown indicator names.
func (i *Indicator) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if !Indicator(s).Valid() {
		return fmt.Errorf("line %d: unknown indicator %q", n.Line, s)
	}
	*i = Indicator(s)
	return nil
}

// Clamp saturates v into [Floor, Ceiling].
func Clamp(v int) int {
	if v < Floor {
		return Floor
	}
	if v > Ceiling {
		return Ceiling
	}
	return v
}

// Indicators is the fixed-shape gauge record. It is used both for the Council
// state and for the signed deltas carried by decisions.
type Indicators struct {
	Solidarite int `yaml:"solidarite" json:"solidarite"`
	Legitimite int `yaml:"legitimite" json:"legitimite"`
	Ressources int `yaml:"ressources" json:"ressources"`
	Tension    int `yaml:"tension" json:"tension"`
	Ecologie   int `yaml:"ecologie" json:"ecologie"`
}

// Get returns the value for k. Unknown keys report false.
func (in Indicators) Get(k Indicator) (int, bool) {
	switch k {
	case Solidarite:
		return in.Solidarite, true
	case Legitimite:
		return in.Legitimite, true
	case Ressources:
		return in.Ressources, true
	case Tension:
		return in.Tension, true
	case Ecologie:
		return in.Ecologie, true
	}
	return 0, false
}

// Apply returns in shifted by d, each indicator clamped independently.
//
// Postcondition: every value of the result is within [Floor, Ceiling].
func (in Indicators) Apply(d Indicators) Indicators {
	return Indicators{
		Solidarite: Clamp(in.Solidarite + d.Solidarite),
		Legitimite: Clamp(in.Legitimite + d.Legitimite),
		Ressources: Clamp(in.Ressources + d.Ressources),
		Tension:    Clamp(in.Tension + d.Tension),
		Ecologie:   Clamp(in.Ecologie + d.Ecologie),
	}
}

// IsZero reports whether in holds only zeros.
func (in Indicators) IsZero() bool {
	return in == Indicators{}
}

// Map returns the indicators keyed by name.
func (in Indicators) Map() map[string]int {
	out := make(map[string]int, len(IndicatorKeys))
	for _, k := range IndicatorKeys {
		v, _ := in.Get(k)
		out[string(k)] = v
	}
	return out
}

// IndicatorsFromMap is the inverse of Map. Unknown names are ignored and values
// are taken as is.
func IndicatorsFromMap(m map[string]int) Indicators {
	var out Indicators
	for name, v := range m {
		out = out.set(Indicator(name), v)
	}
	return out
}
