package content

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// Registry holds every loaded character keyed by id. It is read-only after
// loading and safe to share between playthroughs.
type Registry struct {
	chars map[string]*Character
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{chars: make(map[string]*Character)}
}

// Register adds c to the registry.
//
// Precondition: c must not be nil and c.ID must not be empty.
// Postcondition: Returns an error if a character with the same id is already registered.
func (r *Registry) Register(c *Character) error {
	if _, exists := r.chars[c.ID]; exists {
		return fmt.Errorf("character %q registered twice", c.ID)
	}
	r.chars[c.ID] = c
	return nil
}

// Character returns the raw character graph for id.
//
// Postcondition: Returns the Character or an error wrapping ErrCharacterNotFound.
func (r *Registry) Character(id string) (*Character, error) {
	c, ok := r.chars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCharacterNotFound, id)
	}
	return c, nil
}

// All returns every character ordered by id.
func (r *Registry) All() []*Character {
	out := make([]*Character, 0, len(r.chars))
	for _, c := range r.chars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered characters.
func (r *Registry) Len() int {
	return len(r.chars)
}
