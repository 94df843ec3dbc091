package state

import (
	"sort"
	"strings"
)

// Flags is a set of boolean flag names. The zero value is an empty set ready to
// read; use NewFlags or Add to populate it.
type Flags struct {
	set map[string]struct{}
}

// NewFlags returns a set holding every non-empty name.
func NewFlags(names ...string) Flags {
	f := Flags{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n != "" {
			f.set[n] = struct{}{}
		}
	}
	return f
}

// Has reports whether name is in the set.
func (f Flags) Has(name string) bool {
	_, ok := f.set[name]
	return ok
}

// Add inserts name. Empty names are ignored.
func (f *Flags) Add(name string) {
	if name == "" {
		return
	}
	if f.set == nil {
		f.set = make(map[string]struct{})
	}
	f.set[name] = struct{}{}
}

// Len returns the number of flags.
func (f Flags) Len() int {
	return len(f.set)
}

// Sorted returns the flag names in lexicographic order.
func (f Flags) Sorted() []string {
	out := make([]string, 0, len(f.set))
	for n := range f.set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (f Flags) Clone() Flags {
	return NewFlags(f.Sorted()...)
}

// Union returns a new set holding the members of f and other.
func (f Flags) Union(other Flags) Flags {
	out := f.Clone()
	for n := range other.set {
		out.Add(n)
	}
	return out
}

// Equal reports whether both sets hold the same names.
func (f Flags) Equal(other Flags) bool {
	if f.Len() != other.Len() {
		return false
	}
	for n := range f.set {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

func (f Flags) String() string {
	return "{" + strings.Join(f.Sorted(), ",") + "}"
}

// CrossKey builds the cross-character flag name for flag earned by character.
func CrossKey(character, flag string) string {
	return character + "_" + flag
}
