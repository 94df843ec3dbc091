// Package content defines the inert narrative graph: characters, their scenes and
// the options offered in each scene. Content is loaded from YAML and never mutated
// by play; policy patches produce modified copies.
package content

import (
	"maps"
	"slices"

	"github.com/cory-johannsen/montauban/internal/game/state"
)

// World tags which of the two parallel policy realities a scene narrates.
type World string

// The two worlds.
const (
	WorldA World = "A"
	WorldB World = "B"
)

// Valid reports whether w is one of the two worlds.
func (w World) Valid() bool {
	return w == WorldA || w == WorldB
}

// Origin records where an option in a patched graph came from, so the
// presentation layer can flag policy content.
type Origin string

// Option origins.
const (
	// OriginAuthored is an option exactly as written in the character file.
	OriginAuthored Origin = ""
	// OriginPatched is an authored option altered by a policy rule.
	OriginPatched Origin = "patched"
	// OriginInjected is an option added by a policy rule.
	OriginInjected Origin = "injected"
)

// Conditions gate an option. All clauses are ANDed; zero-valued clauses are not
// declared.
type Conditions struct {
	MinStat             map[state.Key]int `yaml:"min_stat,omitempty"`
	MaxStat             map[state.Key]int `yaml:"max_stat,omitempty"`
	RequiresFlag        string            `yaml:"requires_flag,omitempty"`
	BlockedByFlag       string            `yaml:"blocked_by_flag,omitempty"`
	// RequiresCrossFlag maps a character id to a flag that character must have earned.
	RequiresCrossFlag   map[string]string `yaml:"requires_cross_flag,omitempty"`
	RequiresPolicyFlag  string            `yaml:"requires_policy_flag,omitempty"`
	BlockedByPolicyFlag string            `yaml:"blocked_by_policy_flag,omitempty"`
	// RequiresScript names a Lua predicate that must return true.
	RequiresScript      string            `yaml:"requires_script,omitempty"`
}

// Empty reports whether no clause is declared. A nil receiver is empty.
func (c *Conditions) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.MinStat) == 0 && len(c.MaxStat) == 0 &&
		c.RequiresFlag == "" && c.BlockedByFlag == "" &&
		len(c.RequiresCrossFlag) == 0 &&
		c.RequiresPolicyFlag == "" && c.BlockedByPolicyFlag == "" &&
		c.RequiresScript == ""
}

// Clone returns a deep copy. A nil receiver clones to nil.
func (c *Conditions) Clone() *Conditions {
	if c == nil {
		return nil
	}
	out := *c
	out.MinStat = maps.Clone(c.MinStat)
	out.MaxStat = maps.Clone(c.MaxStat)
	out.RequiresCrossFlag = maps.Clone(c.RequiresCrossFlag)
	return &out
}

// Option is one selectable branch within a scene.
type Option struct {
	ID          string       `yaml:"id"`
	Label       string       `yaml:"label"`
	Conditions  *Conditions  `yaml:"conditions,omitempty"`
	Consequence string       `yaml:"consequence"`
	Effect      state.Effect `yaml:"effect"`
	SetsFlag    string       `yaml:"sets_flag,omitempty"`
	BlockedText string       `yaml:"blocked_text,omitempty"`
	WorldHint   string       `yaml:"world_hint,omitempty"`
	Origin      Origin       `yaml:"-"`
}

// Clone returns a deep copy of o.
func (o *Option) Clone() *Option {
	out := *o
	out.Conditions = o.Conditions.Clone()
	return &out
}

// Scene is one fixed narrative beat.
type Scene struct {
	ID      string
	Ordinal int
	World   World
	Domain  string
	Context string
	Options []*Option
}

// Clone returns a deep copy of s.
func (s *Scene) Clone() *Scene {
	out := *s
	out.Options = make([]*Option, len(s.Options))
	for i, o := range s.Options {
		out.Options[i] = o.Clone()
	}
	return &out
}

// Option returns the option with id, or (nil, false).
func (s *Scene) Option(id string) (*Option, bool) {
	i := slices.IndexFunc(s.Options, func(o *Option) bool { return o.ID == id })
	if i < 0 {
		return nil, false
	}
	return s.Options[i], true
}

// Character is a playable character and its ordered scene sequence.
type Character struct {
	ID          string
	Name        string
	Age         int
	Role        string
	Description string
	// Goal is the session goal shown when the character is selected.
	Goal        string
	Initial     state.Stats
	Scenes      []*Scene
}

// SceneCount returns the number of scenes.
func (c *Character) SceneCount() int {
	return len(c.Scenes)
}

// Scene returns the scene at ordinal i, or (nil, false) when out of range.
func (c *Character) Scene(i int) (*Scene, bool) {
	if i < 0 || i >= len(c.Scenes) {
		return nil, false
	}
	return c.Scenes[i], true
}

// SceneByID returns the scene with id, or (nil, false).
func (c *Character) SceneByID(id string) (*Scene, bool) {
	for _, s := range c.Scenes {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// ShallowCopy returns a Character whose scene slice is private but whose scenes
// are shared with c. Callers replace the scenes they change.
func (c *Character) ShallowCopy() *Character {
	out := *c
	out.Scenes = slices.Clone(c.Scenes)
	return &out
}
