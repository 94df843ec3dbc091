package progression

import (
	"strings"
	"unicode/utf8"

	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/state"
)

// Preview tuning.
const (
	previewShortLine = 40
	previewLines     = 2
	previewMaxRunes  = 200
)

// DomainLabels maps scene domain tags to the headings of the summary.
var DomainLabels = map[string]string{
	"transports":   "Se déplacer",
	"travail":      "Travailler",
	"sante":        "Se soigner",
	"education":    "Apprendre",
	"alimentation": "Manger",
	"logement":     "Se loger",
	"securite":     "Sécurité",
	"climat":       "Climat & environnement",
	"liens":        "Liens & loisirs",
	"citoyennete":  "Participer",
	"droits":       "Droits",
}

// DomainLabel returns the heading for domain, or domain itself when unknown.
func DomainLabel(domain string) string {
	if l, ok := DomainLabels[domain]; ok {
		return l
	}
	return domain
}

// DayLabels name the scene transitions of the week.
var DayLabels = []string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche", "Lundi"}

// DayLabel returns the day shown when moving to scene index next. Indexes past
// the week stay on the last label.
func DayLabel(next int) string {
	if next < 0 {
		next = 0
	}
	if next >= len(DayLabels) {
		next = len(DayLabels) - 1
	}
	return DayLabels[next]
}

// Mood is the ambiance derived from the average resource.
type Mood string

// Moods, from worst to best.
const (
	MoodCritical Mood = "critique"
	MoodTense    Mood = "tendu"
	MoodNeutral  Mood = "neutre"
	MoodStable   Mood = "stable"
)

// MoodFor returns the ambiance for s.
func MoodFor(s state.Stats) Mood {
	switch avg := s.Average(); {
	case avg < 20:
		return MoodCritical
	case avg < 35:
		return MoodTense
	case avg < 55:
		return MoodNeutral
	default:
		return MoodStable
	}
}

// Collapse is the game over screen for a depleted resource.
type Collapse struct {
	Title string
	Text  string
}

var collapses = map[state.Key]Collapse{
	state.Resources: {Title: "FAILLITE", Text: "Plus d'argent. Plus de temps. Tu quittes Montauban."},
	state.Moral:     {Title: "RUPTURE", Text: "Tu craques. Le corps tient mais la tête lâche."},
	state.Links:     {Title: "ISOLEMENT", Text: "Plus personne ne répond. Le silence."},
	state.Comfort:   {Title: "EFFONDREMENT", Text: "Ton corps dit stop. Hospitalisé."},
}

// CollapseFor returns the game over screen for k. Unknown keys get the moral one.
func CollapseFor(k state.Key) Collapse {
	if c, ok := collapses[k]; ok {
		return c
	}
	return collapses[state.Moral]
}

// SceneRecap is one side of a summary pair.
type SceneRecap struct {
	SceneIndex int           `json:"scene_index"`
	SceneID    string        `json:"scene_id"`
	World      content.World `json:"world"`
	Domain     string        `json:"domain"`
	Preview    string        `json:"preview"`
	// Choice is nil when the playthrough ended before this scene.
	Choice     *HistoryEntry `json:"choice,omitempty"`
}

// Pair sets two consecutive scenes side by side, usually the same need met in
// world A and in world B.
type Pair struct {
	Domain      string     `json:"domain"`
	DomainLabel string     `json:"domain_label"`
	A           SceneRecap `json:"a"`
	B           SceneRecap `json:"b"`
}

// Summary is the end of week comparison.
type Summary struct {
	Character  string      `json:"character"`
	Name       string      `json:"name"`
	Outcome    string      `json:"outcome"`
	// FailedStat is set when Outcome is a game over.
	FailedStat state.Key   `json:"failed_stat,omitempty"`
	Stats      state.Stats `json:"stats"`
	Pairs      []Pair      `json:"pairs"`
}

// BuildSummary pairs the scenes of ch two by two and attaches the choice made
// in each. A trailing unpaired scene is left out.
//
// Postcondition: len(Pairs) == ch.SceneCount() / 2.
func BuildSummary(ch *content.Character, history []HistoryEntry, stats state.Stats, outcome string, failed state.Key) Summary {
	byIndex := make(map[int]HistoryEntry, len(history))
	for _, h := range history {
		if _, seen := byIndex[h.SceneIndex]; !seen {
			byIndex[h.SceneIndex] = h
		}
	}
	recap := func(i int) SceneRecap {
		s := ch.Scenes[i]
		r := SceneRecap{SceneIndex: i, SceneID: s.ID, World: s.World, Domain: s.Domain, Preview: ContextPreview(s.Context)}
		if h, ok := byIndex[i]; ok {
			r.Choice = &h
		}
		return r
	}

	sum := Summary{Character: ch.ID, Name: ch.Name, Outcome: outcome, FailedStat: failed, Stats: stats}
	for i := 0; i+1 < len(ch.Scenes); i += 2 {
		a, b := recap(i), recap(i+1)
		sum.Pairs = append(sum.Pairs, Pair{Domain: a.Domain, DomainLabel: DomainLabel(a.Domain), A: a, B: b})
	}
	return sum
}

// ContextPreview condenses scene text for the summary: blank lines are dropped,
// a short opening line (a time or a place) is skipped, the next two lines are
// joined and the result is capped.
func ContextPreview(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	start := 0
	if utf8.RuneCountInString(lines[0]) < previewShortLine {
		start = 1
	}
	end := min(start+previewLines, len(lines))
	if start >= end {
		return ""
	}
	preview := strings.Join(lines[start:end], " ")
	if utf8.RuneCountInString(preview) > previewMaxRunes {
		return string([]rune(preview)[:previewMaxRunes]) + "…"
	}
	return preview
}
