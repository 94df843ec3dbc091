package state

// Player is the state of one character playthrough. It is owned by exactly one
// progression controller and is not safe for concurrent use.
type Player struct {
	// Stats are the four bounded resources.
	Stats Stats
	// Local holds flags granted by options taken in this playthrough.
	Local Flags
	// Policy holds flags imported from a finished Council session. Read-only.
	Policy Flags
	// Cross holds flags earned by other characters, keyed by CrossKey. Read-only.
	Cross Flags
}

// NewPlayer builds a fresh playthrough state.
//
// Postcondition: Stats are clamped; Local is empty; Policy and Cross are private copies.
func NewPlayer(initial Stats, policy, cross Flags) *Player {
	return &Player{
		Stats:  NewStats(initial),
		Local:  NewFlags(),
		Policy: policy.Clone(),
		Cross:  cross.Clone(),
	}
}

// Apply shifts the resources by e and grants flag when non-empty.
//
// Postcondition: Stats remain within bounds; Local only grows.
func (p *Player) Apply(e Effect, flag string) {
	p.Stats = p.Stats.Apply(e)
	p.Local.Add(flag)
}

// Snapshot returns a deep copy that shares nothing with p.
func (p *Player) Snapshot() Player {
	return Player{
		Stats:  p.Stats,
		Local:  p.Local.Clone(),
		Policy: p.Policy.Clone(),
		Cross:  p.Cross.Clone(),
	}
}
