// Package record carries observational events out of the engine. The engine only
// ever calls Emitter.Emit; queueing, throttling, timeouts and storage belong to
// the Dispatcher and its Sink.
package record

import (
	"context"
	"sync"
	"time"

	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Kind names an event type.
type Kind string

// Event kinds.
const (
	KindChoice             Kind = "choice"
	KindPlaythroughStarted Kind = "playthrough_started"
	KindPlaythroughEnded   Kind = "playthrough_ended"
	KindCouncilStarted     Kind = "council_started"
	KindCouncilDecision    Kind = "council_decision"
	KindCouncilCompleted   Kind = "council_completed"
)

// Outcomes reported by KindPlaythroughEnded.
const (
	OutcomeRevelation = "revelation"
	OutcomeGameOver   = "game_over"
)

// Event is one observational record. Fields irrelevant to Kind are left zero.
type Event struct {
	Kind      Kind      `json:"kind"`
	PlayerID  string    `json:"player_id"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`

	// Character playthroughs.
	Character  string       `json:"character,omitempty"`
	SceneIndex int          `json:"scene_index"`
	SceneID    string       `json:"scene_id,omitempty"`
	World      string       `json:"world,omitempty"`
	Domain     string       `json:"domain,omitempty"`
	OptionID   string       `json:"option_id,omitempty"`
	Effect     state.Effect `json:"effect"`
	Stats      *state.Stats `json:"stats,omitempty"`
	Outcome    string       `json:"outcome,omitempty"`
	FailedStat string       `json:"failed_stat,omitempty"`

	// Council sessions. Indicators are the values after the event; Delta and
	// Deferred are the immediate and scheduled effects of a decision.
	Deliberation string         `json:"deliberation,omitempty"`
	Decision     string         `json:"decision,omitempty"`
	Indicators   map[string]int `json:"indicators,omitempty"`
	Delta        map[string]int `json:"delta,omitempty"`
	DeferredAt   *int           `json:"deferred_at,omitempty"`
	Deferred     map[string]int `json:"deferred,omitempty"`

	// Flags holds the policy flags in force (playthroughs) or produced (council).
	Flags []string `json:"flags,omitempty"`
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(e Event)
}

// Sink persists a single event.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Nop discards every event. It is the emitter used when no sink is configured.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(Event) {}

// Collector keeps every emitted event in memory, in order. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// OfKind returns the collected events of kind k.
func (c *Collector) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
