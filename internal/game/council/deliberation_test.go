package council_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/montauban/internal/game/council"
)

const minimalCouncil = `
deliberations:
  - id: eau
    domain: Services publics
    title: L'eau revient à la ville
    situation: |
      Le contrat arrive à échéance.
    voices:
      - {name: Fatima, role: Militante, message: "3 200 signatures.", tone: attente}
    decisions:
      - id: regie
        label: Régie
        effect: {solidarite: 3, ressources: -2}
        roi: {tour: 1, solidarite: 2}
        flag: eau_municipalisee
  - id: bus
    domain: Mobilités
    title: Le bus ne paie plus
    situation: Le réseau est déficitaire.
    decisions:
      - id: gratuite
        label: Gratuité
        effect: {ecologie: 2}
`

func TestParseDeliberations_Minimal(t *testing.T) {
	delibs, err := council.ParseDeliberations([]byte(minimalCouncil))
	require.NoError(t, err)
	require.Len(t, delibs, 2)

	eau := delibs[0]
	assert.Equal(t, "Le contrat arrive à échéance.", eau.Situation)
	require.Len(t, eau.Voices, 1)
	assert.Equal(t, "attente", eau.Voices[0].Tone)

	dec, ok := eau.Decision("regie")
	require.True(t, ok)
	assert.Equal(t, council.Indicators{Solidarite: 3, Ressources: -2}, dec.Effect)
	require.NotNil(t, dec.Deferred)
	assert.Equal(t, 1, dec.Deferred.At)
	assert.Equal(t, 2, dec.Deferred.Solidarite)

	_, ok = eau.Decision("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"eau_municipalisee"}, council.KnownFlags(delibs))
}

func TestParseDeliberations_RejectsUnknownIndicator(t *testing.T) {
	_, err := council.ParseDeliberations([]byte(`
deliberations:
  - id: eau
    domain: d
    title: t
    situation: s
    decisions:
      - {id: a, label: A, effect: {bonheur: 1}}
`))
	assert.Error(t, err)
}

func TestParseDeliberations_RejectsDeferredOutOfRange(t *testing.T) {
	_, err := council.ParseDeliberations([]byte(`
deliberations:
  - id: eau
    domain: d
    title: t
    situation: s
    decisions:
      - {id: a, label: A, effect: {}, roi: {tour: 3}}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roi.tour")
}

func TestValidate_AggregatesViolations(t *testing.T) {
	err := council.Validate([]*council.Deliberation{
		{ID: "a", Decisions: []*council.Decision{{ID: "x", Label: "X"}, {ID: "x"}}},
		{ID: "a"},
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate id "a"`)
	assert.Contains(t, msg, `duplicate decision id "x"`)
	assert.Contains(t, msg, "label must not be empty")
	assert.Contains(t, msg, "at least one decision required")
}

func TestLoadDeliberations_ShippedAgenda(t *testing.T) {
	delibs, err := council.LoadDeliberations(filepath.Join("..", "..", "..", "content", "council.yaml"))
	require.NoError(t, err)
	require.Len(t, delibs, 6)

	assert.Equal(t, []string{
		"conseil_quartier_autonome",
		"eau_municipalisee",
		"logement_social_etendu",
		"maison_peuple_ouverte",
		"marche_producteurs_local",
		"transport_gratuit",
	}, council.KnownFlags(delibs))

	first := make([]string, len(delibs))
	for i, d := range delibs {
		first[i] = d.Decisions[0].ID
	}
	s, _ := newSession(t, delibs)
	res, err := s.Run(first)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Flags.Len(), "the first decision of every deliberation grants its flag")
	for _, k := range council.IndicatorKeys {
		v, _ := res.Indicators.Get(k)
		assert.GreaterOrEqual(t, v, council.Floor)
		assert.LessOrEqual(t, v, council.Ceiling)
	}
}

func TestLoadDeliberations_MissingFile(t *testing.T) {
	_, err := council.LoadDeliberations(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
