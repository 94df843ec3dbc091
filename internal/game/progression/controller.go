// Package progression drives one character playthrough: character selection,
// the scene loop with its consequence screens, terminal detection and the end
// of week summary.
package progression

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/game/condition"
	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/council"
	"github.com/cory-johannsen/montauban/internal/game/patch"
	"github.com/cory-johannsen/montauban/internal/game/state"
	"github.com/cory-johannsen/montauban/internal/record"
)

// Controller errors.
var (
	ErrInvalidTransition = errors.New("progression: invalid transition")
	ErrOptionUnavailable = errors.New("progression: option unavailable")
	ErrUnknownOption     = errors.New("progression: unknown option")
)

// DefaultSessionGoal is shown when a character declares no goal of its own.
const DefaultSessionGoal = "Survive la semaine. Fais tes choix. Assume."

// Phase is a Controller state.
type Phase string

// Controller phases.
const (
	PhaseIntro              Phase = "intro"
	PhaseCharacterSelect    Phase = "character_select"
	PhaseTutorial           Phase = "tutorial"
	PhasePlaying            Phase = "playing"
	PhaseShowingConsequence Phase = "showing_consequence"
	PhaseGameOver           Phase = "game_over"
	PhaseRevelation         Phase = "revelation"
	PhaseSummary            Phase = "summary"
)

// Terminal reports whether p ends a playthrough.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver || p == PhaseRevelation || p == PhaseSummary
}

// HistoryEntry records one committed choice.
type HistoryEntry struct {
	SceneIndex int            `json:"scene_index"`
	SceneID    string         `json:"scene_id"`
	World      content.World  `json:"world"`
	Domain     string         `json:"domain"`
	OptionID   string         `json:"option_id"`
	Label      string         `json:"label"`
	Origin     content.Origin `json:"origin,omitempty"`
}

// OptionView is an option of the current scene with its availability.
type OptionView struct {
	Option      *content.Option
	Result      condition.Result
	// BlockedText is empty when the option is available.
	BlockedText string
}

// Available reports whether the option can be chosen now.
func (v OptionView) Available() bool { return v.Result.Available }

// Consequence is what the player sees after a choice.
type Consequence struct {
	Option *content.Option
	Text   string
	Effect state.Effect
	// Stats are the resources after the effect.
	Stats  state.Stats
}

// Controller owns a single player's state across playthroughs. It is not safe
// for concurrent use; the only asynchronous work is record emission.
type Controller struct {
	reg     *content.Registry
	patcher *patch.Patcher
	eval    *condition.Evaluator
	emitter record.Emitter
	logger  *zap.Logger

	playerID  string
	sessionID string
	phase     Phase
	policy    state.Flags
	cross     state.Flags

	char       *content.Character
	player     *state.Player
	sceneIndex int
	history    []HistoryEntry
	last       *Consequence
	goal       string
}

// NewController creates a Controller in the Intro phase with no policy flags.
//
// Precondition: every argument must be non-nil.
// Postcondition: The Controller has a fresh player id.
func NewController(reg *content.Registry, patcher *patch.Patcher, eval *condition.Evaluator, emitter record.Emitter, logger *zap.Logger) *Controller {
	if reg == nil || patcher == nil || eval == nil || emitter == nil || logger == nil {
		panic("progression.NewController: all dependencies must be non-nil")
	}
	return &Controller{
		reg:      reg,
		patcher:  patcher,
		eval:     eval,
		emitter:  emitter,
		logger:   logger,
		playerID: uuid.NewString(),
		phase:    PhaseIntro,
		policy:   state.NewFlags(),
		cross:    state.NewFlags(),
	}
}

func (c *Controller) invalid(op string) error {
	return fmt.Errorf("%w: %s during %s", ErrInvalidTransition, op, c.phase)
}

func (c *Controller) enter(p Phase) {
	c.logger.Debug("progression: phase change",
		zap.String("player", c.playerID),
		zap.String("from", string(c.phase)),
		zap.String("to", string(p)),
	)
	c.phase = p
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// PlayerID returns the identifier carried by every emitted event.
func (c *Controller) PlayerID() string { return c.playerID }

// Policy returns a copy of the imported policy flags.
func (c *Controller) Policy() state.Flags { return c.policy.Clone() }

// Characters lists the selectable characters.
func (c *Controller) Characters() []*content.Character { return c.reg.All() }

// Start leaves the intro screen.
//
// Precondition: Phase is Intro.
func (c *Controller) Start() error {
	if c.phase != PhaseIntro {
		return c.invalid("Start")
	}
	c.enter(PhaseCharacterSelect)
	return nil
}

// ImportCouncil adopts the policy flags of a finalized Council session. Pass
// council.Skipped() to play the default world.
//
// Precondition: no playthrough is in progress (Intro or CharacterSelect).
// Postcondition: later selections are patched with res's flags.
func (c *Controller) ImportCouncil(res council.Result) error {
	if c.phase != PhaseIntro && c.phase != PhaseCharacterSelect {
		return c.invalid("ImportCouncil")
	}
	c.policy = res.PolicyFlags()
	c.logger.Info("progression: policy imported",
		zap.String("player", c.playerID),
		zap.String("council_session", res.SessionID),
		zap.Strings("flags", c.policy.Sorted()),
	)
	return nil
}

// SelectCharacter loads the character id patched with the current policy flags
// and resets the player state to the character's initial resources.
//
// Precondition: Phase is CharacterSelect.
// Postcondition: Phase is Tutorial and the scene index is 0; on error nothing changes.
func (c *Controller) SelectCharacter(id string) error {
	if c.phase != PhaseCharacterSelect {
		return c.invalid("SelectCharacter")
	}
	raw, err := c.reg.Character(id)
	if err != nil {
		return err
	}
	c.char = c.patcher.Patch(raw, c.policy)
	c.player = state.NewPlayer(c.char.Initial, c.policy, c.cross)
	c.sceneIndex = 0
	c.history = nil
	c.last = nil
	c.sessionID = uuid.NewString()
	c.goal = c.char.Goal
	if c.goal == "" {
		c.goal = DefaultSessionGoal
	}
	c.enter(PhaseTutorial)

	stats := c.player.Stats
	c.emitter.Emit(record.Event{
		Kind:      record.KindPlaythroughStarted,
		PlayerID:  c.playerID,
		SessionID: c.sessionID,
		Character: c.char.ID,
		Stats:     &stats,
		Flags:     c.policy.Sorted(),
	})
	return nil
}

// StartPlaying dismisses the tutorial.
//
// Precondition: Phase is Tutorial.
func (c *Controller) StartPlaying() error {
	if c.phase != PhaseTutorial {
		return c.invalid("StartPlaying")
	}
	c.enter(PhasePlaying)
	return nil
}

// Character returns the patched character being played, or nil.
func (c *Controller) Character() *content.Character { return c.char }

// Goal returns the session goal of the current playthrough.
func (c *Controller) Goal() string { return c.goal }

// SceneIndex returns the 0-based index of the current scene.
func (c *Controller) SceneIndex() int { return c.sceneIndex }

// Day returns the day label of the current scene.
func (c *Controller) Day() string { return DayLabel(c.sceneIndex) }

// Player returns a snapshot of the player state, or the zero Player before a
// character is selected.
func (c *Controller) Player() state.Player {
	if c.player == nil {
		return state.Player{}
	}
	return c.player.Snapshot()
}

// History returns a copy of the committed choices.
func (c *Controller) History() []HistoryEntry {
	return append([]HistoryEntry(nil), c.history...)
}

// Scene returns the current patched scene.
//
// Precondition: Phase is Playing or ShowingConsequence.
func (c *Controller) Scene() (*content.Scene, error) {
	if c.phase != PhasePlaying && c.phase != PhaseShowingConsequence {
		return nil, c.invalid("Scene")
	}
	s, _ := c.char.Scene(c.sceneIndex)
	return s, nil
}

// Options evaluates every option of the current scene against the player state.
//
// Precondition: Phase is Playing.
// Postcondition: Returns one view per option, in scene order.
func (c *Controller) Options() ([]OptionView, error) {
	if c.phase != PhasePlaying {
		return nil, c.invalid("Options")
	}
	s, _ := c.char.Scene(c.sceneIndex)
	out := make([]OptionView, 0, len(s.Options))
	for _, o := range s.Options {
		res := c.eval.Evaluate(o, c.player)
		v := OptionView{Option: o, Result: res}
		if !res.Available {
			v.BlockedText = condition.BlockedText(o, res)
		}
		out = append(out, v)
	}
	return out, nil
}

// Choose commits optionID in the current scene. Availability is re-checked
// against the live state so a stale view cannot commit a gated option.
//
// Precondition: Phase is Playing.
// Postcondition: On success the effect is applied, the flag granted, history
// appended and Phase is ShowingConsequence. On error nothing changes.
func (c *Controller) Choose(optionID string) (*Consequence, error) {
	if c.phase != PhasePlaying {
		return nil, c.invalid("Choose")
	}
	s, _ := c.char.Scene(c.sceneIndex)
	o, ok := s.Option(optionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in scene %q", ErrUnknownOption, optionID, s.ID)
	}
	if res := c.eval.Evaluate(o, c.player); !res.Available {
		return nil, fmt.Errorf("%w: %q: %s", ErrOptionUnavailable, optionID, res.Reasons[0])
	}

	c.player.Apply(o.Effect, o.SetsFlag)
	c.history = append(c.history, HistoryEntry{
		SceneIndex: c.sceneIndex,
		SceneID:    s.ID,
		World:      s.World,
		Domain:     s.Domain,
		OptionID:   o.ID,
		Label:      o.Label,
		Origin:     o.Origin,
	})
	c.last = &Consequence{Option: o, Text: o.Consequence, Effect: o.Effect, Stats: c.player.Stats}
	c.enter(PhaseShowingConsequence)

	stats := c.player.Stats
	c.emitter.Emit(record.Event{
		Kind:       record.KindChoice,
		PlayerID:   c.playerID,
		SessionID:  c.sessionID,
		Character:  c.char.ID,
		SceneIndex: c.sceneIndex,
		SceneID:    s.ID,
		World:      string(s.World),
		Domain:     s.Domain,
		OptionID:   o.ID,
		Effect:     o.Effect,
		Stats:      &stats,
	})
	return c.last, nil
}

// LastConsequence returns the consequence being shown, or nil.
func (c *Controller) LastConsequence() *Consequence { return c.last }

// Continue leaves the consequence screen. A depleted resource ends the
// playthrough in GameOver; finishing the last scene leads to Revelation;
// otherwise the next scene is played.
//
// Precondition: Phase is ShowingConsequence.
// Postcondition: Returns the new phase.
func (c *Controller) Continue() (Phase, error) {
	if c.phase != PhaseShowingConsequence {
		return c.phase, c.invalid("Continue")
	}
	c.last = nil
	if k, depleted := c.player.Stats.Depleted(); depleted {
		c.enter(PhaseGameOver)
		c.emitEnded(record.OutcomeGameOver, k)
		return c.phase, nil
	}
	if c.sceneIndex >= c.char.SceneCount()-1 {
		c.enter(PhaseRevelation)
		c.emitEnded(record.OutcomeRevelation, "")
		return c.phase, nil
	}
	c.sceneIndex++
	c.enter(PhasePlaying)
	return c.phase, nil
}

func (c *Controller) emitEnded(outcome string, failed state.Key) {
	stats := c.player.Stats
	c.logger.Info("progression: playthrough ended",
		zap.String("player", c.playerID),
		zap.String("character", c.char.ID),
		zap.String("outcome", outcome),
		zap.String("failed_stat", string(failed)),
	)
	c.emitter.Emit(record.Event{
		Kind:       record.KindPlaythroughEnded,
		PlayerID:   c.playerID,
		SessionID:  c.sessionID,
		Character:  c.char.ID,
		SceneIndex: c.sceneIndex,
		Stats:      &stats,
		Outcome:    outcome,
		FailedStat: string(failed),
		Flags:      c.player.Local.Sorted(),
	})
}

// FailedStat returns the resource that ended the playthrough in GameOver.
func (c *Controller) FailedStat() (state.Key, bool) {
	if c.phase != PhaseGameOver || c.player == nil {
		return "", false
	}
	return c.player.Stats.Depleted()
}

// ShowSummary moves to the end of week comparison.
//
// Precondition: Phase is Revelation or GameOver.
// Postcondition: Phase is Summary.
func (c *Controller) ShowSummary() (Summary, error) {
	if c.phase != PhaseRevelation && c.phase != PhaseGameOver {
		return Summary{}, c.invalid("ShowSummary")
	}
	outcome := record.OutcomeRevelation
	failed, _ := c.FailedStat()
	if c.phase == PhaseGameOver {
		outcome = record.OutcomeGameOver
	}
	c.enter(PhaseSummary)
	return BuildSummary(c.char, c.history, c.player.Stats, outcome, failed), nil
}

// Reset abandons the current playthrough and returns to character selection.
// Imported policy flags and the player id are kept.
//
// Precondition: Phase is not Intro.
func (c *Controller) Reset() error {
	if c.phase == PhaseIntro {
		return c.invalid("Reset")
	}
	c.char = nil
	c.player = nil
	c.sceneIndex = 0
	c.history = nil
	c.last = nil
	c.goal = ""
	c.sessionID = ""
	c.enter(PhaseCharacterSelect)
	return nil
}

// Mood returns the ambiance for the current resources. It is neutral before a
// character is selected.
func (c *Controller) Mood() Mood {
	if c.player == nil {
		return MoodNeutral
	}
	return MoodFor(c.player.Stats)
}
