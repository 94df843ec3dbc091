// Package state holds the mutable player state of a character playthrough: the
// four bounded resources, the flags earned along the way and the read-only flag
// sets imported from elsewhere.
package state

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Key names one of the four player resources.
type Key string

// The four resources, in the stable order used for iteration and tie-breaks.
const (
	Resources Key = "resources"
	Moral     Key = "moral"
	Links     Key = "links"
	Comfort   Key = "comfort"
)

// Keys lists every resource in stable iteration order.
var Keys = []Key{Resources, Moral, Links, Comfort}

// Bounds of every resource value.
const (
	Floor   = 0
	Ceiling = 100
)

// Valid reports whether k names a known resource.
func (k Key) Valid() bool {
	switch k {
	case Resources, Moral, Links, Comfort:
		return true
	}
	return false
}

// UnmarshalYAML rejects unknown resource names at content-load time.
func (k *Key) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if !Key(s).Valid() {
		return fmt.Errorf("line %d: unknown resource %q", n.Line, s)
	}
	*k = Key(s)
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

// Stats is the fixed-shape resource quadruple.
//
// Invariant: every value produced by Apply or NewStats is within [Floor, Ceiling].
type Stats struct {
	Resources int `yaml:"resources" json:"resources"`
	Moral     int `yaml:"moral" json:"moral"`
	Links     int `yaml:"links" json:"links"`
	Comfort   int `yaml:"comfort" json:"comfort"`
}

// NewStats returns s with every value clamped.
func NewStats(s Stats) Stats {
	return Stats{
		Resources: Clamp(s.Resources),
		Moral:     Clamp(s.Moral),
		Links:     Clamp(s.Links),
		Comfort:   Clamp(s.Comfort),
	}
}

// Get returns the value for k. Unknown keys report false.
func (s Stats) Get(k Key) (int, bool) {
	switch k {
	case Resources:
		return s.Resources, true
	case Moral:
		return s.Moral, true
	case Links:
		return s.Links, true
	case Comfort:
		return s.Comfort, true
	}
	return 0, false
}

// Apply returns s shifted by e, each resource clamped independently.
//
// Postcondition: every value of the result is within [Floor, Ceiling].
func (s Stats) Apply(e Effect) Stats {
	return Stats{
		Resources: Clamp(s.Resources + e.Resources),
		Moral:     Clamp(s.Moral + e.Moral),
		Links:     Clamp(s.Links + e.Links),
		Comfort:   Clamp(s.Comfort + e.Comfort),
	}
}

// Depleted returns the first resource, in Keys order, whose value is at or below
// Floor.
func (s Stats) Depleted() (Key, bool) {
	for _, k := range Keys {
		if v, _ := s.Get(k); v <= Floor {
			return k, true
		}
	}
	return "", false
}

// Average is the mean of the four resources.
func (s Stats) Average() float64 {
	return float64(s.Resources+s.Moral+s.Links+s.Comfort) / float64(len(Keys))
}

// Effect is a signed delta per resource. Missing keys in content decode as 0.
type Effect struct {
	Resources int `yaml:"resources" json:"resources"`
	Moral     int `yaml:"moral" json:"moral"`
	Links     int `yaml:"links" json:"links"`
	Comfort   int `yaml:"comfort" json:"comfort"`
}

// Get returns the delta for k. Unknown keys report false.
func (e Effect) Get(k Key) (int, bool) {
	return Stats(e).Get(k)
}

// IsZero reports whether e changes nothing.
func (e Effect) IsZero() bool {
	return e == Effect{}
}
