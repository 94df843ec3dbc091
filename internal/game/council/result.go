package council

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/montauban/internal/game/state"
)

// scoreSuffix marks indicator entries in a WorldConfig record.
const scoreSuffix = "_score"

// Result is the immutable outcome of a finalized session. It is the only value
// that crosses from the Council into character playthroughs.
type Result struct {
	SessionID  string
	Indicators Indicators
	// Flags are the policy flags earned.
	Flags      state.Flags
	// Known lists every policy flag the agenda could grant, sorted.
	Known      []string
	Choices    []Choice
}

// Skipped is the Result of a Council that was never played: no flags, every
// indicator at 0.
func Skipped() Result {
	return Result{Flags: state.NewFlags()}
}

func (r Result) clone() Result {
	out := r
	out.Flags = r.Flags.Clone()
	out.Known = append([]string(nil), r.Known...)
	out.Choices = append([]Choice(nil), r.Choices...)
	return out
}

// PolicyFlags returns a private copy of the earned flags.
func (r Result) PolicyFlags() state.Flags {
	return r.Flags.Clone()
}

// WorldConfig returns the handoff record: every known flag with its value plus
// the indicator scores.
func (r Result) WorldConfig() WorldConfig {
	flags := make(map[string]bool, len(r.Known)+r.Flags.Len())
	for _, f := range r.Known {
		flags[f] = false
	}
	for _, f := range r.Flags.Sorted() {
		flags[f] = true
	}
	return WorldConfig{Flags: flags, Scores: r.Indicators}
}

// WorldConfig is the Council to character handoff. It serializes as a flat JSON
// object of booleans (flags) and integers (<indicator>_score).
type WorldConfig struct {
	Flags  map[string]bool
	Scores Indicators
}

// PolicyFlags returns the flags set to true.
func (w WorldConfig) PolicyFlags() state.Flags {
	out := state.NewFlags()
	for f, on := range w.Flags {
		if on {
			out.Add(f)
		}
	}
	return out
}

// Result rebuilds a Result from a handoff record. Session and choices are not
// part of the record and stay empty.
func (w WorldConfig) Result() Result {
	known := make([]string, 0, len(w.Flags))
	for f := range w.Flags {
		known = append(known, f)
	}
	sort.Strings(known)
	return Result{Indicators: w.Scores, Flags: w.PolicyFlags(), Known: known}
}

// MarshalJSON writes the flat record.
func (w WorldConfig) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(w.Flags)+len(IndicatorKeys))
	for f, on := range w.Flags {
		flat[f] = on
	}
	for k, v := range w.Scores.Map() {
		flat[k+scoreSuffix] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat record. Booleans are flags; <indicator>_score
// entries are scores; anything else is rejected.
func (w *WorldConfig) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	out := WorldConfig{Flags: make(map[string]bool)}
	for key, raw := range flat {
		if name, ok := strings.CutSuffix(key, scoreSuffix); ok && Indicator(name).Valid() {
			var v int
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("world config %q: %w", key, err)
			}
			out.Scores = out.Scores.set(Indicator(name), Clamp(v))
			continue
		}
		var on bool
		if err := json.Unmarshal(raw, &on); err != nil {
			return fmt.Errorf("world config %q: expected a boolean flag: %w", key, err)
		}
		out.Flags[key] = on
	}
	*w = out
	return nil
}

func (in Indicators) set(k Indicator, v int) Indicators {
	switch k {
	case Solidarite:
		in.Solidarite = v
	case Legitimite:
		in.Legitimite = v
	case Ressources:
		in.Ressources = v
	case Tension:
		in.Tension = v
	case Ecologie:
		in.Ecologie = v
	}
	return in
}
