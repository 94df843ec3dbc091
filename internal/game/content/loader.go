package content

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/montauban/internal/game/state"
)

// yamlCharacterFile is the top-level YAML structure for character files.
type yamlCharacterFile struct {
	Character yamlCharacter `yaml:"character"`
}

// yamlCharacter is the YAML representation of a character.
type yamlCharacter struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	Age          int         `yaml:"age"`
	Role         string      `yaml:"role"`
	Description  string      `yaml:"description"`
	Goal         string      `yaml:"goal"`
	InitialStats state.Stats `yaml:"initial_stats"`
	Scenes       []yamlScene `yaml:"scenes"`
}

// yamlScene is the YAML representation of a scene.
type yamlScene struct {
	ID      string    `yaml:"id"`
	World   string    `yaml:"world"`
	Domain  string    `yaml:"domain"`
	Context string    `yaml:"context"`
	Options []*Option `yaml:"options"`
}

// LoadOptions tune structural validation.
type LoadOptions struct {
	// SceneCount is the exact number of scenes required per character. 0 = any.
	SceneCount int
}

// LoadCharacterFromFile reads and validates a single character YAML file.
//
// Precondition: path must point to a character YAML file.
// Postcondition: Returns a validated Character or a non-nil error.
func LoadCharacterFromFile(path string, opts LoadOptions) (*Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading character file %s: %w", path, err)
	}
	return LoadCharacterFromBytes(data, opts)
}

// LoadCharacterFromBytes parses and validates a character from YAML bytes.
// Unknown fields and unknown resource names are rejected.
//
// Postcondition: Returns a validated Character or a non-nil error.
func LoadCharacterFromBytes(data []byte, opts LoadOptions) (*Character, error) {
	var file yamlCharacterFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing character YAML: %w", err)
	}

	c := convertYAMLCharacter(file.Character)
	if err := c.Validate(opts); err != nil {
		return nil, fmt.Errorf("validating character %q: %w", c.ID, err)
	}
	return c, nil
}

// LoadDirectory loads every *.yaml / *.yml file in dir as a character and returns
// a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-empty Registry, or the first error encountered.
func LoadDirectory(dir string, opts LoadOptions) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading character directory %s: %w", dir, err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		c, err := LoadCharacterFromFile(filepath.Join(dir, name), opts)
		if err != nil {
			return nil, fmt.Errorf("loading character from %s: %w", name, err)
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	if reg.Len() == 0 {
		return nil, fmt.Errorf("no character files found in %s", dir)
	}
	return reg, nil
}

// convertYAMLCharacter converts the parsed YAML structures into domain types.
func convertYAMLCharacter(yc yamlCharacter) *Character {
	c := &Character{
		ID:          yc.ID,
		Name:        yc.Name,
		Age:         yc.Age,
		Role:        yc.Role,
		Description: strings.TrimSpace(yc.Description),
		Goal:        strings.TrimSpace(yc.Goal),
		Initial:     yc.InitialStats,
		Scenes:      make([]*Scene, 0, len(yc.Scenes)),
	}
	for i, ys := range yc.Scenes {
		scene := &Scene{
			ID:      ys.ID,
			Ordinal: i,
			World:   World(ys.World),
			Domain:  ys.Domain,
			Context: strings.TrimSpace(ys.Context),
			Options: ys.Options,
		}
		for _, o := range scene.Options {
			if o == nil {
				continue
			}
			o.Consequence = strings.TrimSpace(o.Consequence)
			o.Origin = OriginAuthored
			// An empty conditions block is the same as no conditions.
			if o.Conditions.Empty() {
				o.Conditions = nil
			}
		}
		c.Scenes = append(c.Scenes, scene)
	}
	return c
}

// Validate checks the structural invariants of a character graph.
//
// Postcondition: Returns nil if valid, or an error joining every violation.
func (c *Character) Validate(opts LoadOptions) error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("character id must not be empty"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("character name must not be empty"))
	}
	for _, k := range state.Keys {
		if v, _ := c.Initial.Get(k); v <= state.Floor || v > state.Ceiling {
			errs = append(errs, fmt.Errorf("initial_stats.%s must be in (%d, %d], got %d", k, state.Floor, state.Ceiling, v))
		}
	}
	if len(c.Scenes) == 0 {
		errs = append(errs, errors.New("character must declare at least one scene"))
	}
	if opts.SceneCount > 0 && len(c.Scenes) != opts.SceneCount {
		errs = append(errs, fmt.Errorf("character must declare exactly %d scenes, got %d", opts.SceneCount, len(c.Scenes)))
	}

	sceneIDs := make(map[string]bool, len(c.Scenes))
	for _, s := range c.Scenes {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("scene %d: id must not be empty", s.Ordinal))
		} else if sceneIDs[s.ID] {
			errs = append(errs, fmt.Errorf("scene %d: duplicate id %q", s.Ordinal, s.ID))
		}
		sceneIDs[s.ID] = true
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("scene %q: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scene) validate() error {
	var errs []error
	if !s.World.Valid() {
		errs = append(errs, fmt.Errorf("world must be A or B, got %q", s.World))
	}
	if s.Domain == "" {
		errs = append(errs, errors.New("domain must not be empty"))
	}
	if len(s.Options) == 0 {
		errs = append(errs, errors.New("scene must offer at least one option"))
	}
	ids := make(map[string]bool, len(s.Options))
	for i, o := range s.Options {
		if o == nil {
			errs = append(errs, fmt.Errorf("option %d is empty", i))
			continue
		}
		if o.ID == "" {
			errs = append(errs, fmt.Errorf("option %d: id must not be empty", i))
		} else if ids[o.ID] {
			errs = append(errs, fmt.Errorf("option %d: duplicate id %q", i, o.ID))
		}
		ids[o.ID] = true
		if err := o.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("option %q: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks one option in isolation. It is also used for options injected
// by policy rules.
func (o *Option) Validate() error {
	var errs []error
	if o.Label == "" {
		errs = append(errs, errors.New("label must not be empty"))
	}
	if c := o.Conditions; c != nil {
		for k, v := range c.MinStat {
			if v < state.Floor || v > state.Ceiling {
				errs = append(errs, fmt.Errorf("min_stat.%s must be in [%d, %d], got %d", k, state.Floor, state.Ceiling, v))
			}
		}
		for k, v := range c.MaxStat {
			if v < state.Floor || v > state.Ceiling {
				errs = append(errs, fmt.Errorf("max_stat.%s must be in [%d, %d], got %d", k, state.Floor, state.Ceiling, v))
			}
		}
		for ch, f := range c.RequiresCrossFlag {
			if ch == "" || f == "" {
				errs = append(errs, errors.New("requires_cross_flag entries need a character and a flag"))
			}
		}
	}
	return errors.Join(errs...)
}

// Lint reports content that loads but can strand a player: scenes where every
// option is gated. The playthrough stays completable only if some option is
// always open.
func (c *Character) Lint() []string {
	var warnings []string
	for _, s := range c.Scenes {
		open := false
		for _, o := range s.Options {
			if o.Conditions.Empty() {
				open = true
				break
			}
		}
		if !open {
			warnings = append(warnings, fmt.Sprintf("%s: scene %q has no unconditional option", c.ID, s.ID))
		}
	}
	return warnings
}
