package council

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/game/state"
	"github.com/cory-johannsen/montauban/internal/record"
)

// Session errors.
var (
	ErrNotResolved         = errors.New("council: current deliberation is not resolved")
	ErrAlreadyResolved     = errors.New("council: current deliberation is already resolved")
	ErrWrongDeliberation   = errors.New("council: decision does not target the current deliberation")
	ErrUnknownDecision     = errors.New("council: unknown decision")
	ErrNoMoreDeliberations = errors.New("council: no deliberation left")
	ErrFinalized           = errors.New("council: session is finalized")
)

// Choice is one resolved deliberation.
type Choice struct {
	Index        int    `json:"index"`
	Deliberation string `json:"deliberation"`
	Decision     string `json:"decision"`
}

type pendingEffect struct {
	target int
	effect Indicators
	source string
}

// Session is one run through the Council agenda. It is not safe for concurrent
// use.
type Session struct {
	id       string
	delibs   []*Deliberation
	index    int
	resolved bool

	indicators Indicators
	pending    []pendingEffect
	flags      state.Flags
	choices    []Choice

	result  *Result
	emitter record.Emitter
	logger  *zap.Logger
}

// NewSession starts a Council session over delibs with every indicator at 0.
//
// Precondition: delibs must satisfy Validate; emitter and logger must not be nil.
// Postcondition: The session points at deliberation 0; a council_started event is emitted.
func NewSession(delibs []*Deliberation, emitter record.Emitter, logger *zap.Logger) (*Session, error) {
	if emitter == nil {
		panic("council.NewSession: emitter must not be nil")
	}
	if logger == nil {
		panic("council.NewSession: logger must not be nil")
	}
	if err := Validate(delibs); err != nil {
		return nil, fmt.Errorf("council.NewSession: %w", err)
	}
	s := &Session{
		id:      uuid.NewString(),
		delibs:  delibs,
		flags:   state.NewFlags(),
		emitter: emitter,
		logger:  logger,
	}
	s.emitter.Emit(record.Event{
		Kind:       record.KindCouncilStarted,
		SessionID:  s.id,
		Indicators: s.indicators.Map(),
	})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Index returns the 0-based index of the current deliberation.
func (s *Session) Index() int { return s.index }

// Len returns the number of deliberations on the agenda.
func (s *Session) Len() int { return len(s.delibs) }

// Current returns the deliberation under discussion.
func (s *Session) Current() *Deliberation { return s.delibs[s.index] }

// Resolved reports whether the current deliberation has a decision.
func (s *Session) Resolved() bool { return s.resolved }

// Indicators returns the current gauge values.
func (s *Session) Indicators() Indicators { return s.indicators }

// Pending returns the number of deferred effects not yet delivered.
func (s *Session) Pending() int { return len(s.pending) }

// Choose resolves deliberation index with decisionID: the immediate effect is
// applied, the deferred effect queued and the flag recorded.
//
// Precondition: index must be the current deliberation, not yet resolved.
// Postcondition: Indicators stay within bounds; returns the chosen decision or a
// wrapped sentinel error with the session unchanged.
func (s *Session) Choose(index int, decisionID string) (*Decision, error) {
	if s.result != nil {
		return nil, ErrFinalized
	}
	if index != s.index {
		return nil, fmt.Errorf("%w: got %d, current is %d", ErrWrongDeliberation, index, s.index)
	}
	if s.resolved {
		return nil, ErrAlreadyResolved
	}
	d := s.delibs[s.index]
	dec, ok := d.Decision(decisionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in deliberation %q", ErrUnknownDecision, decisionID, d.ID)
	}

	s.indicators = s.indicators.Apply(dec.Effect)
	ev := record.Event{
		Kind:         record.KindCouncilDecision,
		SessionID:    s.id,
		SceneIndex:   s.index,
		Domain:       d.Domain,
		Deliberation: d.ID,
		Decision:     dec.ID,
		Delta:        dec.Effect.Map(),
	}
	if dec.Deferred != nil {
		s.pending = append(s.pending, pendingEffect{target: dec.Deferred.At, effect: dec.Deferred.Indicators, source: dec.ID})
		at := dec.Deferred.At
		ev.DeferredAt = &at
		ev.Deferred = dec.Deferred.Indicators.Map()
	}
	s.flags.Add(dec.Flag)
	s.choices = append(s.choices, Choice{Index: s.index, Deliberation: d.ID, Decision: dec.ID})
	s.resolved = true

	s.logger.Debug("council: decision taken",
		zap.String("session", s.id),
		zap.Int("index", s.index),
		zap.String("deliberation", d.ID),
		zap.String("decision", dec.ID),
	)
	ev.Indicators = s.indicators.Map()
	ev.Flags = s.flags.Sorted()
	s.emitter.Emit(ev)
	return dec, nil
}

// Advance moves to the next deliberation and delivers every deferred effect
// whose target has been reached or passed.
//
// Precondition: the current deliberation is resolved and is not the last one.
// Postcondition: each deferred effect is applied exactly once.
func (s *Session) Advance() error {
	if s.result != nil {
		return ErrFinalized
	}
	if !s.resolved {
		return ErrNotResolved
	}
	if s.index+1 >= len(s.delibs) {
		return ErrNoMoreDeliberations
	}
	s.index++
	s.resolved = false
	s.deliver(s.index)
	return nil
}

// deliver applies and drops every pending effect with target <= upTo.
func (s *Session) deliver(upTo int) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.target > upTo {
			kept = append(kept, p)
			continue
		}
		s.indicators = s.indicators.Apply(p.effect)
		s.logger.Debug("council: deferred effect delivered",
			zap.String("session", s.id),
			zap.String("decision", p.source),
			zap.Int("target", p.target),
			zap.Int("index", s.index),
		)
	}
	s.pending = kept
}

// Finalize closes the session and returns its outcome. Deferred effects still
// pending are delivered first. Calling Finalize again returns the same Result.
//
// Precondition: the last deliberation is resolved.
// Postcondition: Returns ErrNotResolved while any deliberation is open.
func (s *Session) Finalize() (Result, error) {
	if s.result != nil {
		return s.result.clone(), nil
	}
	if s.index != len(s.delibs)-1 || !s.resolved {
		return Result{}, ErrNotResolved
	}
	s.deliver(len(s.delibs))

	r := Result{
		SessionID:  s.id,
		Indicators: s.indicators,
		Flags:      s.flags.Clone(),
		Known:      KnownFlags(s.delibs),
		Choices:    append([]Choice(nil), s.choices...),
	}
	s.result = &r

	s.logger.Info("council: session finalized",
		zap.String("session", s.id),
		zap.Strings("flags", r.Flags.Sorted()),
	)
	s.emitter.Emit(record.Event{
		Kind:       record.KindCouncilCompleted,
		SessionID:  s.id,
		SceneIndex: s.index,
		Indicators: r.Indicators.Map(),
		Flags:      r.Flags.Sorted(),
	})
	return r.clone(), nil
}

// Run resolves the whole agenda with one decision id per deliberation, in
// order, and finalizes the session.
//
// Precondition: the current deliberation is not resolved.
// Postcondition: Returns the Result, or the first error with the failing index.
func (s *Session) Run(decisionIDs []string) (Result, error) {
	if len(decisionIDs) != len(s.delibs)-s.index {
		return Result{}, fmt.Errorf("council: %d decisions given for %d open deliberations",
			len(decisionIDs), len(s.delibs)-s.index)
	}
	for i, id := range decisionIDs {
		if _, err := s.Choose(s.index, id); err != nil {
			return Result{}, fmt.Errorf("deliberation %d: %w", s.index, err)
		}
		if i < len(decisionIDs)-1 {
			if err := s.Advance(); err != nil {
				return Result{}, err
			}
		}
	}
	return s.Finalize()
}
