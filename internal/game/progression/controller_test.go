package progression_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/montauban/internal/game/condition"
	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/council"
	"github.com/cory-johannsen/montauban/internal/game/patch"
	"github.com/cory-johannsen/montauban/internal/game/progression"
	"github.com/cory-johannsen/montauban/internal/game/state"
	"github.com/cory-johannsen/montauban/internal/record"
)

// week builds an eight-scene character whose scenes all offer "go" (no effect)
// plus the extra options given for scene 0.
func week(id string, initial state.Stats, first ...*content.Option) *content.Character {
	ch := &content.Character{ID: id, Name: id, Initial: initial}
	domains := []string{"transports", "transports", "securite", "travail", "climat", "alimentation", "logement", "citoyennete"}
	for i := 0; i < 8; i++ {
		world := content.WorldA
		if i%2 == 1 {
			world = content.WorldB
		}
		s := &content.Scene{
			ID:      fmt.Sprintf("%s_s%d", id, i),
			Ordinal: i,
			World:   world,
			Domain:  domains[i],
			Context: fmt.Sprintf("Jour %d.\nUne ligne assez longue pour ne pas être sautée par l'aperçu.\nSuite.", i),
			Options: []*content.Option{{ID: "go", Label: "Continuer", Consequence: "Rien ne change."}},
		}
		if i == 0 {
			s.Options = append(s.Options, first...)
		}
		ch.Scenes = append(ch.Scenes, s)
	}
	return ch
}

type harness struct {
	ctrl   *progression.Controller
	events *record.Collector
	logs   *observer.ObservedLogs
}

func newHarness(t testing.TB, rules []patch.Rule, chars ...*content.Character) harness {
	t.Helper()
	reg := content.NewRegistry()
	for _, ch := range chars {
		require.NoError(t, reg.Register(ch))
	}
	core, logs := observer.New(zap.DebugLevel)
	events := &record.Collector{}
	ctrl := progression.NewController(reg, patch.NewPatcher(rules), condition.NewEvaluator(nil), events, zap.New(core))
	return harness{ctrl: ctrl, events: events, logs: logs}
}

func (h harness) play(t testing.TB, id string) {
	t.Helper()
	require.NoError(t, h.ctrl.Start())
	require.NoError(t, h.ctrl.SelectCharacter(id))
	require.NoError(t, h.ctrl.StartPlaying())
}

var midStats = state.Stats{Resources: 50, Moral: 50, Links: 30, Comfort: 40}

func TestController_FullRunLengthIsEight(t *testing.T) {
	h := newHarness(t, nil, week("mamadou", midStats))
	h.play(t, "mamadou")
	assert.Equal(t, progression.DefaultSessionGoal, h.ctrl.Goal())

	for i := 0; i < 8; i++ {
		require.Equal(t, i, h.ctrl.SceneIndex())
		require.Equal(t, progression.DayLabels[i], h.ctrl.Day())
		c, err := h.ctrl.Choose("go")
		require.NoError(t, err)
		assert.Equal(t, "Rien ne change.", c.Text)
		phase, err := h.ctrl.Continue()
		require.NoError(t, err)
		if i < 7 {
			assert.Equal(t, progression.PhasePlaying, phase)
		} else {
			assert.Equal(t, progression.PhaseRevelation, phase)
		}
	}

	hist := h.ctrl.History()
	require.Len(t, hist, 8)
	for i, e := range hist {
		assert.Equal(t, i, e.SceneIndex)
		assert.Equal(t, "go", e.OptionID)
	}

	assert.Len(t, h.events.OfKind(record.KindPlaythroughStarted), 1)
	assert.Len(t, h.events.OfKind(record.KindChoice), 8)
	ended := h.events.OfKind(record.KindPlaythroughEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, record.OutcomeRevelation, ended[0].Outcome)
	assert.Equal(t, h.ctrl.PlayerID(), ended[0].PlayerID)

	sum, err := h.ctrl.ShowSummary()
	require.NoError(t, err)
	assert.Equal(t, progression.PhaseSummary, h.ctrl.Phase())
	require.Len(t, sum.Pairs, 4)
	assert.Equal(t, "Se déplacer", sum.Pairs[0].DomainLabel)
	assert.Equal(t, content.WorldA, sum.Pairs[0].A.World)
	assert.Equal(t, content.WorldB, sum.Pairs[0].B.World)
	require.NotNil(t, sum.Pairs[3].B.Choice)
	assert.Equal(t, 7, sum.Pairs[3].B.Choice.SceneIndex)
}

func TestController_ResourceFloorEndsInGameOver(t *testing.T) {
	drain := &content.Option{ID: "craquer", Label: "Craquer", Effect: state.Effect{Moral: -15}}
	h := newHarness(t, nil, week("ines", state.Stats{Resources: 50, Moral: 10, Links: 30, Comfort: 40}, drain))
	h.play(t, "ines")

	c, err := h.ctrl.Choose("craquer")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Stats.Moral, "clamped at the floor")

	phase, err := h.ctrl.Continue()
	require.NoError(t, err)
	assert.Equal(t, progression.PhaseGameOver, phase)
	k, ok := h.ctrl.FailedStat()
	require.True(t, ok)
	assert.Equal(t, state.Moral, k)
	assert.Equal(t, "RUPTURE", progression.CollapseFor(k).Title)

	ended := h.events.OfKind(record.KindPlaythroughEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, record.OutcomeGameOver, ended[0].Outcome)
	assert.Equal(t, "moral", ended[0].FailedStat)

	sum, err := h.ctrl.ShowSummary()
	require.NoError(t, err)
	assert.Equal(t, state.Moral, sum.FailedStat)
	assert.NotNil(t, sum.Pairs[0].A.Choice)
	assert.Nil(t, sum.Pairs[0].B.Choice, "scenes never reached have no choice")
}

func TestController_ClampCeiling(t *testing.T) {
	windfall := &content.Option{ID: "prime", Label: "Prime", Effect: state.Effect{Resources: 20}}
	h := newHarness(t, nil, week("clement", state.Stats{Resources: 95, Moral: 50, Links: 50, Comfort: 50}, windfall))
	h.play(t, "clement")

	c, err := h.ctrl.Choose("prime")
	require.NoError(t, err)
	assert.Equal(t, 100, c.Stats.Resources)
	assert.Equal(t, 100, h.ctrl.Player().Stats.Resources)
}

func TestController_PolicyUnlock(t *testing.T) {
	gated := &content.Option{
		ID: "demander", Label: "Demander",
		Conditions: &content.Conditions{MinStat: map[state.Key]int{state.Links: 50}},
		Effect:     state.Effect{Links: 20},
		SetsFlag:   "carte",
	}
	rules := []patch.Rule{{
		Flag:  "marche_producteurs_local",
		Scene: "mamadou_s0",
		Strip: []patch.Strip{{Option: "demander"}},
	}}

	t.Run("without policy", func(t *testing.T) {
		h := newHarness(t, rules, week("mamadou", midStats, gated))
		h.play(t, "mamadou")
		views, err := h.ctrl.Options()
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.False(t, views[1].Available())
		assert.Equal(t, "Tu ne connais personne qui pourrait t'aider.", views[1].BlockedText)

		_, err = h.ctrl.Choose("demander")
		assert.ErrorIs(t, err, progression.ErrOptionUnavailable)
		assert.Equal(t, progression.PhasePlaying, h.ctrl.Phase())
		assert.Empty(t, h.ctrl.History())
		assert.Empty(t, h.events.OfKind(record.KindChoice))
	})

	t.Run("with policy", func(t *testing.T) {
		h := newHarness(t, rules, week("mamadou", midStats, gated))
		require.NoError(t, h.ctrl.ImportCouncil(council.Result{Flags: state.NewFlags("marche_producteurs_local")}))
		h.play(t, "mamadou")
		views, err := h.ctrl.Options()
		require.NoError(t, err)
		assert.True(t, views[1].Available())
		assert.Empty(t, views[1].BlockedText)

		_, err = h.ctrl.Choose("demander")
		require.NoError(t, err)
		p := h.ctrl.Player()
		assert.Equal(t, 50, p.Stats.Links)
		assert.True(t, p.Local.Has("carte"))
		assert.True(t, p.Policy.Has("marche_producteurs_local"))
		assert.Equal(t, content.OriginPatched, h.ctrl.History()[0].Origin)
	})

	t.Run("raw content untouched", func(t *testing.T) {
		ch := week("mamadou", midStats, gated)
		h := newHarness(t, rules, ch)
		require.NoError(t, h.ctrl.ImportCouncil(council.Result{Flags: state.NewFlags("marche_producteurs_local")}))
		h.play(t, "mamadou")
		assert.NotNil(t, ch.Scenes[0].Options[1].Conditions)
	})
}

func TestController_InjectedOptionRecordsOrigin(t *testing.T) {
	rules := []patch.Rule{{
		Flag:   "transport_gratuit",
		Scene:  "mamadou_s0",
		Inject: []*content.Option{{ID: "bus", Label: "Prendre le bus", Effect: state.Effect{Moral: 10}, SetsFlag: "pris_bus"}},
	}}
	h := newHarness(t, rules, week("mamadou", midStats))
	require.NoError(t, h.ctrl.ImportCouncil(council.Result{Flags: state.NewFlags("transport_gratuit")}))
	h.play(t, "mamadou")

	_, err := h.ctrl.Choose("bus")
	require.NoError(t, err)
	assert.Equal(t, content.OriginInjected, h.ctrl.History()[0].Origin)
	assert.True(t, h.ctrl.Player().Local.Has("pris_bus"))
}

func TestController_RejectsGatedChoiceWithoutView(t *testing.T) {
	luxe := &content.Option{
		ID: "luxe", Label: "Luxe",
		Conditions: &content.Conditions{RequiresFlag: "riche"},
		Effect:     state.Effect{Comfort: 30},
	}
	h := newHarness(t, nil, week("leo", midStats, luxe))
	h.play(t, "leo")
	before := h.ctrl.Player()

	_, err := h.ctrl.Choose("luxe")
	require.ErrorIs(t, err, progression.ErrOptionUnavailable)
	assert.Contains(t, err.Error(), "missing_flag")
	assert.Equal(t, before.Stats, h.ctrl.Player().Stats)

	_, err = h.ctrl.Choose("nope")
	assert.ErrorIs(t, err, progression.ErrUnknownOption)
}

func TestController_InvalidTransitions(t *testing.T) {
	h := newHarness(t, nil, week("nadia", midStats))

	_, err := h.ctrl.Choose("go")
	assert.ErrorIs(t, err, progression.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.SelectCharacter("nadia"), progression.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.Reset(), progression.ErrInvalidTransition)

	require.NoError(t, h.ctrl.Start())
	assert.ErrorIs(t, h.ctrl.Start(), progression.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.SelectCharacter("ghost"), content.ErrCharacterNotFound)
	assert.Equal(t, progression.PhaseCharacterSelect, h.ctrl.Phase())

	require.NoError(t, h.ctrl.SelectCharacter("nadia"))
	_, err = h.ctrl.Options()
	assert.ErrorIs(t, err, progression.ErrInvalidTransition, "tutorial first")
	require.NoError(t, h.ctrl.StartPlaying())

	_, err = h.ctrl.Continue()
	assert.ErrorIs(t, err, progression.ErrInvalidTransition)
	_, err = h.ctrl.ShowSummary()
	assert.ErrorIs(t, err, progression.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.ImportCouncil(council.Skipped()), progression.ErrInvalidTransition)

	_, err = h.ctrl.Choose("go")
	require.NoError(t, err)
	_, err = h.ctrl.Choose("go")
	assert.ErrorIs(t, err, progression.ErrInvalidTransition, "a consequence is showing")
	_, err = h.ctrl.Options()
	assert.ErrorIs(t, err, progression.ErrInvalidTransition)
	s, err := h.ctrl.Scene()
	require.NoError(t, err)
	assert.Equal(t, "nadia_s0", s.ID)
}

func TestController_ResetKeepsPolicyAndPlayer(t *testing.T) {
	h := newHarness(t, nil, week("francoise", midStats), week("philippe", midStats))
	require.NoError(t, h.ctrl.ImportCouncil(council.Result{Flags: state.NewFlags("eau_municipalisee")}))
	h.play(t, "francoise")
	_, err := h.ctrl.Choose("go")
	require.NoError(t, err)
	id := h.ctrl.PlayerID()

	require.NoError(t, h.ctrl.Reset())
	assert.Equal(t, progression.PhaseCharacterSelect, h.ctrl.Phase())
	assert.Empty(t, h.ctrl.History())
	assert.Nil(t, h.ctrl.Character())
	assert.Equal(t, id, h.ctrl.PlayerID())
	assert.True(t, h.ctrl.Policy().Has("eau_municipalisee"))

	require.NoError(t, h.ctrl.SelectCharacter("philippe"))
	assert.Equal(t, 0, h.ctrl.SceneIndex())
	assert.True(t, h.ctrl.Player().Policy.Has("eau_municipalisee"))

	started := h.events.OfKind(record.KindPlaythroughStarted)
	require.Len(t, started, 2)
	assert.NotEqual(t, started[0].SessionID, started[1].SessionID)
	assert.Equal(t, []string{"eau_municipalisee"}, started[1].Flags)
}

func TestController_CharacterGoal(t *testing.T) {
	ch := week("leo", midStats)
	ch.Goal = "Finir le mémoire."
	h := newHarness(t, nil, ch)
	h.play(t, "leo")
	assert.Equal(t, "Finir le mémoire.", h.ctrl.Goal())
}

func TestController_ChoiceEventCarriesEffect(t *testing.T) {
	spend := &content.Option{ID: "payer", Label: "Payer", Effect: state.Effect{Resources: -10, Comfort: 5}}
	h := newHarness(t, nil, week("mamadou", midStats, spend))
	h.play(t, "mamadou")
	_, err := h.ctrl.Choose("payer")
	require.NoError(t, err)

	choices := h.events.OfKind(record.KindChoice)
	require.Len(t, choices, 1)
	e := choices[0]
	assert.Equal(t, "mamadou", e.Character)
	assert.Equal(t, 0, e.SceneIndex)
	assert.Equal(t, "payer", e.OptionID)
	assert.Equal(t, state.Effect{Resources: -10, Comfort: 5}, e.Effect)
	require.NotNil(t, e.Stats)
	assert.Equal(t, 40, e.Stats.Resources)
}

func TestController_SinkFailureNeverBlocksPlay(t *testing.T) {
	reg := content.NewRegistry()
	require.NoError(t, reg.Register(week("ines", midStats)))
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	failing := record.SinkFunc(func(context.Context, record.Event) error { return errors.New("database down") })
	d := record.NewDispatcher(failing, record.DispatcherConfig{}, logger)

	ctrl := progression.NewController(reg, patch.NewPatcher(nil), condition.NewEvaluator(nil), d, logger)
	require.NoError(t, ctrl.Start())
	require.NoError(t, ctrl.SelectCharacter("ines"))
	require.NoError(t, ctrl.StartPlaying())
	for i := 0; i < 8; i++ {
		_, err := ctrl.Choose("go")
		require.NoError(t, err)
		_, err = ctrl.Continue()
		require.NoError(t, err)
	}
	assert.Equal(t, progression.PhaseRevelation, ctrl.Phase())

	d.Close()
	assert.Equal(t, int64(10), d.Stats().Failed)
	assert.NotZero(t, logs.FilterMessage("record: sink write failed").Len())
}

func TestController_Mood(t *testing.T) {
	h := newHarness(t, nil, week("mamadou", midStats))
	assert.Equal(t, progression.MoodNeutral, h.ctrl.Mood())
	h.play(t, "mamadou")
	assert.Equal(t, progression.MoodNeutral, h.ctrl.Mood())
}

func TestNewController_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() {
		progression.NewController(nil, patch.NewPatcher(nil), condition.NewEvaluator(nil), record.Nop{}, zap.NewNop())
	})
}

func TestPropertyTerminalDetection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ch := week("p", state.Stats{
			Resources: rapid.IntRange(1, 100).Draw(t, "resources"),
			Moral:     rapid.IntRange(1, 100).Draw(t, "moral"),
			Links:     rapid.IntRange(1, 100).Draw(t, "links"),
			Comfort:   rapid.IntRange(1, 100).Draw(t, "comfort"),
		})
		for _, s := range ch.Scenes {
			s.Options = []*content.Option{{ID: "x", Label: "X", Effect: state.Effect{
				Resources: rapid.IntRange(-40, 40).Draw(t, "dr"),
				Moral:     rapid.IntRange(-40, 40).Draw(t, "dm"),
				Links:     rapid.IntRange(-40, 40).Draw(t, "dl"),
				Comfort:   rapid.IntRange(-40, 40).Draw(t, "dc"),
			}}}
		}
		reg := content.NewRegistry()
		if err := reg.Register(ch); err != nil {
			t.Fatal(err)
		}
		ctrl := progression.NewController(reg, patch.NewPatcher(nil), condition.NewEvaluator(nil), record.Nop{}, zap.NewNop())
		if err := ctrl.Start(); err != nil {
			t.Fatal(err)
		}
		if err := ctrl.SelectCharacter("p"); err != nil {
			t.Fatal(err)
		}
		if err := ctrl.StartPlaying(); err != nil {
			t.Fatal(err)
		}

		for steps := 0; ; steps++ {
			if steps > 8 {
				t.Fatalf("playthrough did not terminate")
			}
			if _, err := ctrl.Choose("x"); err != nil {
				t.Fatalf("choose: %v", err)
			}
			phase, err := ctrl.Continue()
			if err != nil {
				t.Fatalf("continue: %v", err)
			}
			stats := ctrl.Player().Stats
			want, depleted := stats.Depleted()
			switch {
			case depleted:
				if phase != progression.PhaseGameOver {
					t.Fatalf("depleted %s but phase %s", want, phase)
				}
				got, _ := ctrl.FailedStat()
				if got != want {
					t.Fatalf("failed stat %s, want %s", got, want)
				}
				return
			case phase == progression.PhaseRevelation:
				if len(ctrl.History()) != 8 {
					t.Fatalf("revelation after %d scenes", len(ctrl.History()))
				}
				return
			case phase != progression.PhasePlaying:
				t.Fatalf("unexpected phase %s", phase)
			}
		}
	})
}
