package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/montauban/internal/game/condition"
	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

func TestBlockedText_AvailableIsEmpty(t *testing.T) {
	assert.Empty(t, condition.BlockedText(&content.Option{BlockedText: "x"}, condition.Result{Available: true}))
}

func TestBlockedText_AuthoredWins(t *testing.T) {
	res := condition.Result{Reasons: []condition.Reason{{Kind: condition.KindStatLow, Stat: state.Moral}}}
	assert.Equal(t, "Pas aujourd'hui.", condition.BlockedText(&content.Option{BlockedText: "Pas aujourd'hui."}, res))
}

func TestBlockedText_Defaults(t *testing.T) {
	cases := []struct {
		reason condition.Reason
		want   string
	}{
		{condition.Reason{Kind: condition.KindStatLow, Stat: state.Moral}, "Tu n'as pas l'énergie pour ça. Pas maintenant."},
		{condition.Reason{Kind: condition.KindStatLow, Stat: state.Resources}, "Tu n'as pas les moyens. Pas ce mois-ci."},
		{condition.Reason{Kind: condition.KindStatLow, Stat: state.Links}, "Tu ne connais personne qui pourrait t'aider."},
		{condition.Reason{Kind: condition.KindStatLow, Stat: state.Comfort}, "Ton corps ne suivrait pas."},
		{condition.Reason{Kind: condition.KindStatLow, Stat: state.Key("karma")}, condition.DefaultBlockedText},
		{condition.Reason{Kind: condition.KindStatHigh, Stat: state.Moral}, "Tu n'en es pas encore là."},
		{condition.Reason{Kind: condition.KindMissingFlag}, "Tu n'as pas rencontré les bonnes personnes."},
		{condition.Reason{Kind: condition.KindBlockedFlag}, "Cette porte s'est fermée."},
		{condition.Reason{Kind: condition.KindCrossFlag}, "Quelqu'un d'autre aurait dû agir pour que ça existe."},
		{condition.Reason{Kind: condition.KindPolicyFlag}, condition.DefaultBlockedText},
		{condition.Reason{Kind: condition.KindScript}, condition.DefaultBlockedText},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason.Kind)+"/"+string(tc.reason.Stat), func(t *testing.T) {
			res := condition.Result{Reasons: []condition.Reason{tc.reason}}
			assert.Equal(t, tc.want, condition.BlockedText(&content.Option{}, res))
		})
	}
}

func TestBlockedText_UsesFirstReason(t *testing.T) {
	res := condition.Result{Reasons: []condition.Reason{
		{Kind: condition.KindMissingFlag},
		{Kind: condition.KindStatLow, Stat: state.Moral},
	}}
	assert.Equal(t, "Tu n'as pas rencontré les bonnes personnes.", condition.BlockedText(&content.Option{}, res))
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "stat_low: links 5 < 20", condition.Reason{Kind: condition.KindStatLow, Stat: state.Links, Required: 20, Current: 5}.String())
	assert.Equal(t, "cross_flag: ines_yanis", condition.Reason{Kind: condition.KindCrossFlag, Character: "ines", Flag: "yanis"}.String())
	assert.Equal(t, "conseil_flag: transport_gratuit", condition.Reason{Kind: condition.KindPolicyFlag, Flag: "transport_gratuit"}.String())
}
