package condition

import (
	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Default player-facing explanations, keyed by the first failing clause.
var (
	statLowText = map[state.Key]string{
		state.Moral:     "Tu n'as pas l'énergie pour ça. Pas maintenant.",
		state.Resources: "Tu n'as pas les moyens. Pas ce mois-ci.",
		state.Links:     "Tu ne connais personne qui pourrait t'aider.",
		state.Comfort:   "Ton corps ne suivrait pas.",
	}
	kindText = map[Kind]string{
		KindStatHigh:    "Tu n'en es pas encore là.",
		KindMissingFlag: "Tu n'as pas rencontré les bonnes personnes.",
		KindBlockedFlag: "Cette porte s'est fermée.",
		KindCrossFlag:   "Quelqu'un d'autre aurait dû agir pour que ça existe.",
	}
)

// DefaultBlockedText is shown when nothing more specific applies.
const DefaultBlockedText = "Cette option n'est pas disponible."

// BlockedText returns the message explaining why opt is unavailable: the
// option's own blocked_text when authored, else a default derived from the
// first reason. Available results yield "".
func BlockedText(opt *content.Option, res Result) string {
	if res.Available {
		return ""
	}
	if opt.BlockedText != "" {
		return opt.BlockedText
	}
	if len(res.Reasons) == 0 {
		return DefaultBlockedText
	}
	first := res.Reasons[0]
	if first.Kind == KindStatLow {
		if text, ok := statLowText[first.Stat]; ok {
			return text
		}
		return DefaultBlockedText
	}
	if text, ok := kindText[first.Kind]; ok {
		return text
	}
	return DefaultBlockedText
}
