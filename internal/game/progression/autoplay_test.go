package progression_test

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/game/condition"
	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/patch"
	"github.com/cory-johannsen/montauban/internal/game/progression"
	"github.com/cory-johannsen/montauban/internal/record"
)

func TestAutoplay_FirstAvailableReachesSummary(t *testing.T) {
	h := newHarness(t, nil, week("mamadou", midStats))
	sum, err := progression.Autoplay(h.ctrl, "mamadou", progression.FirstAvailable())
	require.NoError(t, err)

	assert.Equal(t, progression.PhaseSummary, h.ctrl.Phase())
	assert.Equal(t, record.OutcomeRevelation, sum.Outcome)
	assert.Len(t, sum.Pairs, 4)
	assert.Len(t, h.ctrl.History(), 8)
}

func TestAutoplay_RandomIsReproducible(t *testing.T) {
	ch := week("mamadou", midStats,
		&content.Option{ID: "a", Label: "A", Consequence: "."},
		&content.Option{ID: "b", Label: "B", Consequence: "."},
	)
	play := func(seed uint64) []progression.HistoryEntry {
		h := newHarness(t, nil, ch)
		_, err := progression.Autoplay(h.ctrl, "mamadou", progression.RandomAvailable(rand.New(rand.NewPCG(seed, seed))))
		require.NoError(t, err)
		return h.ctrl.History()
	}
	assert.Equal(t, play(7), play(7))
}

func TestAutoplay_StuckScene(t *testing.T) {
	ch := week("mamadou", midStats)
	ch.Scenes[2].Options[0].Conditions = &content.Conditions{RequiresFlag: "jamais"}
	h := newHarness(t, nil, ch)

	_, err := progression.Autoplay(h.ctrl, "mamadou", progression.FirstAvailable())
	require.ErrorIs(t, err, progression.ErrStuck)
	assert.Equal(t, progression.PhasePlaying, h.ctrl.Phase())
	assert.Equal(t, 2, h.ctrl.SceneIndex())
}

func TestAutoplay_RequiresSelectablePhase(t *testing.T) {
	h := newHarness(t, nil, week("mamadou", midStats))
	h.play(t, "mamadou")
	_, err := progression.Autoplay(h.ctrl, "mamadou", progression.FirstAvailable())
	assert.ErrorIs(t, err, progression.ErrInvalidTransition)
}

func TestAutoplay_ShippedCharactersSurviveTheWeek(t *testing.T) {
	root := filepath.Join("..", "..", "..", "content")
	reg, err := content.LoadDirectory(filepath.Join(root, "characters"), content.LoadOptions{SceneCount: 8})
	require.NoError(t, err)
	rules, err := patch.LoadRules(filepath.Join(root, "patches.yaml"))
	require.NoError(t, err)

	ctrl := progression.NewController(reg, patch.NewPatcher(rules), condition.NewEvaluator(nil), record.Nop{}, zap.NewNop())
	require.Equal(t, 7, len(ctrl.Characters()))
	for _, ch := range ctrl.Characters() {
		sum, err := progression.Autoplay(ctrl, ch.ID, progression.FirstAvailable())
		require.NoError(t, err, ch.ID)
		assert.Equal(t, record.OutcomeRevelation, sum.Outcome, ch.ID)
		assert.Len(t, sum.Pairs, 4, ch.ID)
		require.NoError(t, ctrl.Reset())
	}
}
