package council_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/montauban/internal/game/council"
)

func TestIndicators_ApplyClampsEachGauge(t *testing.T) {
	in := council.Indicators{Solidarite: 18, Tension: -19}
	got := in.Apply(council.Indicators{Solidarite: 5, Tension: -5, Ecologie: 3})
	assert.Equal(t, council.Indicators{Solidarite: 20, Tension: -20, Ecologie: 3}, got)
}

func TestIndicators_GetUnknown(t *testing.T) {
	_, ok := council.Indicators{}.Get("bonheur")
	assert.False(t, ok)
}

func TestIndicator_UnmarshalYAML(t *testing.T) {
	var ok council.Indicator
	assert.NoError(t, yaml.Unmarshal([]byte("tension"), &ok))
	assert.Equal(t, council.Tension, ok)

	var bad council.Indicator
	assert.Error(t, yaml.Unmarshal([]byte("bonheur"), &bad))
}

func TestIndicatorsFromMap_IgnoresUnknown(t *testing.T) {
	got := council.IndicatorsFromMap(map[string]int{"ressources": -4, "bonheur": 9})
	assert.Equal(t, council.Indicators{Ressources: -4}, got)
}

// Property: IndicatorsFromMap inverts Map.
func TestPropertyIndicatorsMapRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gauge := rapid.IntRange(council.Floor, council.Ceiling)
		in := council.Indicators{
			Solidarite: gauge.Draw(t, "solidarite"),
			Legitimite: gauge.Draw(t, "legitimite"),
			Ressources: gauge.Draw(t, "ressources"),
			Tension:    gauge.Draw(t, "tension"),
			Ecologie:   gauge.Draw(t, "ecologie"),
		}
		if got := council.IndicatorsFromMap(in.Map()); got != in {
			t.Fatalf("round trip: got %+v, want %+v", got, in)
		}
	})
}
