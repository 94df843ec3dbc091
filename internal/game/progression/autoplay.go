package progression

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrStuck is returned by Autoplay when a scene offers no available option.
var ErrStuck = errors.New("progression: no available option")

// Strategy picks the option to play among the views of the current scene.
// It is only called with at least one available view.
type Strategy interface {
	Pick(views []OptionView) string
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(views []OptionView) string

// Pick calls f.
func (f StrategyFunc) Pick(views []OptionView) string { return f(views) }

// FirstAvailable always plays the first available option in display order.
func FirstAvailable() Strategy {
	return StrategyFunc(func(views []OptionView) string {
		for _, v := range views {
			if v.Available() {
				return v.Option.ID
			}
		}
		return ""
	})
}

// RandomAvailable plays a uniformly drawn available option.
//
// Precondition: r must be non-nil.
func RandomAvailable(r *rand.Rand) Strategy {
	return StrategyFunc(func(views []OptionView) string {
		var ids []string
		for _, v := range views {
			if v.Available() {
				ids = append(ids, v.Option.ID)
			}
		}
		return ids[r.IntN(len(ids))]
	})
}

// Autoplay selects character id and plays it to the end with s, then returns
// the summary.
//
// Precondition: Phase is Intro or CharacterSelect.
// Postcondition: Phase is Summary on success. On ErrStuck the controller is left
// in Playing on the blocking scene.
func Autoplay(c *Controller, id string, s Strategy) (Summary, error) {
	if c.phase == PhaseIntro {
		if err := c.Start(); err != nil {
			return Summary{}, err
		}
	}
	if err := c.SelectCharacter(id); err != nil {
		return Summary{}, err
	}
	if err := c.StartPlaying(); err != nil {
		return Summary{}, err
	}
	for !c.phase.Terminal() {
		views, err := c.Options()
		if err != nil {
			return Summary{}, err
		}
		if !anyAvailable(views) {
			return Summary{}, fmt.Errorf("%w: scene %d of %s", ErrStuck, c.sceneIndex, id)
		}
		if _, err := c.Choose(s.Pick(views)); err != nil {
			return Summary{}, err
		}
		if _, err := c.Continue(); err != nil {
			return Summary{}, err
		}
	}
	return c.ShowSummary()
}

func anyAvailable(views []OptionView) bool {
	for _, v := range views {
		if v.Available() {
			return true
		}
	}
	return false
}
