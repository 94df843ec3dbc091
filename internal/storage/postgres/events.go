package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/montauban/internal/game/council"
	"github.com/cory-johannsen/montauban/internal/record"
)

// ErrUnknownKind is returned by Write for an event kind with no table.
var ErrUnknownKind = errors.New("unknown event kind")

// ErrMissingStats is returned by Write for a playthrough event without stats.
var ErrMissingStats = errors.New("event has no stats")

// ErrWorldConfigNotFound is returned when no world config was recorded for a session.
var ErrWorldConfigNotFound = errors.New("world config not found")

// WorldFlagColumns are the policy flags with a dedicated column in
// conseil_world_config. Other flags only appear in the JSON record.
var WorldFlagColumns = []string{
	"transport_gratuit",
	"eau_municipalisee",
	"logement_social_etendu",
	"maison_peuple_ouverte",
	"marche_producteurs_local",
	"conseil_quartier_autonome",
}

// Playthrough is one row of the playthroughs table.
type Playthrough struct {
	SessionID   string
	PlayerID    string
	Character   string
	PolicyFlags []string
	StartedAt   time.Time
	EndedAt     *time.Time
	Outcome     *string
	FailedStat  *string
	SceneIndex  int
	Resources   int
	Moral       int
	Links       int
	Comfort     int
	LocalFlags  []string
}

// CouncilSession is one row of the conseil_sessions table.
type CouncilSession struct {
	ID         string
	Tour       int
	Indicators council.Indicators
	Completed  bool
}

// EventRepository writes record events into the relational schema. It is a
// record.Sink.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates an EventRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the schema migrated.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Write stores e in the table matching its kind.
//
// Postcondition: Returns nil once the rows are committed, ErrUnknownKind for an
// unsupported kind, or a wrapped database error.
func (r *EventRepository) Write(ctx context.Context, e record.Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	switch e.Kind {
	case record.KindPlaythroughStarted:
		return r.startPlaythrough(ctx, e)
	case record.KindChoice:
		return r.insertChoice(ctx, e)
	case record.KindPlaythroughEnded:
		return r.endPlaythrough(ctx, e)
	case record.KindCouncilStarted:
		return r.startCouncil(ctx, e)
	case record.KindCouncilDecision:
		return r.insertDecision(ctx, e)
	case record.KindCouncilCompleted:
		return r.completeCouncil(ctx, e)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

func touchPlayer(ctx context.Context, tx pgx.Tx, playerID string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO players (id, first_seen_at, last_seen_at) VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = GREATEST(players.last_seen_at, EXCLUDED.last_seen_at)`,
		playerID, at,
	)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

func (r *EventRepository) startPlaythrough(ctx context.Context, e record.Event) error {
	if e.Stats == nil {
		return fmt.Errorf("%s: %w", e.Kind, ErrMissingStats)
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := touchPlayer(ctx, tx, e.PlayerID, e.At); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO playthroughs
				(session_id, player_id, character, policy_flags, started_at,
				 resources, moral, links, comfort)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (session_id) DO NOTHING`,
			e.SessionID, e.PlayerID, e.Character, nonNil(e.Flags), e.At,
			e.Stats.Resources, e.Stats.Moral, e.Stats.Links, e.Stats.Comfort,
		)
		if err != nil {
			return fmt.Errorf("inserting playthrough: %w", err)
		}
		return nil
	})
}

func (r *EventRepository) insertChoice(ctx context.Context, e record.Event) error {
	if e.Stats == nil {
		return fmt.Errorf("%s: %w", e.Kind, ErrMissingStats)
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := touchPlayer(ctx, tx, e.PlayerID, e.At); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO choices
				(session_id, player_id, character, scene_index, scene_id, world, domain, option_id,
				 d_resources, d_moral, d_links, d_comfort,
				 resources, moral, links, comfort, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			e.SessionID, e.PlayerID, e.Character, e.SceneIndex, e.SceneID, e.World, e.Domain, e.OptionID,
			e.Effect.Resources, e.Effect.Moral, e.Effect.Links, e.Effect.Comfort,
			e.Stats.Resources, e.Stats.Moral, e.Stats.Links, e.Stats.Comfort, e.At,
		)
		if err != nil {
			return fmt.Errorf("inserting choice: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE playthroughs
			SET scene_index = $2, resources = $3, moral = $4, links = $5, comfort = $6
			WHERE session_id = $1`,
			e.SessionID, e.SceneIndex, e.Stats.Resources, e.Stats.Moral, e.Stats.Links, e.Stats.Comfort,
		)
		if err != nil {
			return fmt.Errorf("updating playthrough: %w", err)
		}
		return nil
	})
}

func (r *EventRepository) endPlaythrough(ctx context.Context, e record.Event) error {
	if e.Stats == nil {
		return fmt.Errorf("%s: %w", e.Kind, ErrMissingStats)
	}
	var failed *string
	if e.FailedStat != "" {
		failed = &e.FailedStat
	}
	_, err := r.db.Exec(ctx, `
		UPDATE playthroughs
		SET ended_at = $2, outcome = $3, failed_stat = $4, scene_index = $5,
		    resources = $6, moral = $7, links = $8, comfort = $9, local_flags = $10
		WHERE session_id = $1`,
		e.SessionID, e.At, e.Outcome, failed, e.SceneIndex,
		e.Stats.Resources, e.Stats.Moral, e.Stats.Links, e.Stats.Comfort, nonNil(e.Flags),
	)
	if err != nil {
		return fmt.Errorf("ending playthrough: %w", err)
	}
	return nil
}

func (r *EventRepository) startCouncil(ctx context.Context, e record.Event) error {
	in := council.IndicatorsFromMap(e.Indicators)
	_, err := r.db.Exec(ctx, `
		INSERT INTO conseil_sessions
			(id, started_at, tour_actuel,
			 jauge_solidarite, jauge_legitimite, jauge_ressources, jauge_tension, jauge_ecologie)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		e.SessionID, e.At, e.SceneIndex,
		in.Solidarite, in.Legitimite, in.Ressources, in.Tension, in.Ecologie,
	)
	if err != nil {
		return fmt.Errorf("inserting council session: %w", err)
	}
	return nil
}

func (r *EventRepository) insertDecision(ctx context.Context, e record.Event) error {
	delta := council.IndicatorsFromMap(e.Delta)
	roi := council.IndicatorsFromMap(e.Deferred)
	in := council.IndicatorsFromMap(e.Indicators)
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO conseil_decisions
				(session_id, tour, deliberation, domain, decision,
				 delta_solidarite, delta_legitimite, delta_ressources, delta_tension, delta_ecologie,
				 roi_tour, roi_solidarite, roi_legitimite, roi_ressources, roi_tension, roi_ecologie,
				 created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (session_id, tour) DO NOTHING`,
			e.SessionID, e.SceneIndex, e.Deliberation, e.Domain, e.Decision,
			delta.Solidarite, delta.Legitimite, delta.Ressources, delta.Tension, delta.Ecologie,
			e.DeferredAt, roi.Solidarite, roi.Legitimite, roi.Ressources, roi.Tension, roi.Ecologie,
			e.At,
		)
		if err != nil {
			return fmt.Errorf("inserting council decision: %w", err)
		}
		return updateGauges(ctx, tx, e.SessionID, e.SceneIndex, in, false)
	})
}

func (r *EventRepository) completeCouncil(ctx context.Context, e record.Event) error {
	in := council.IndicatorsFromMap(e.Indicators)
	wc := worldConfig(e.Flags, in)
	raw, err := json.Marshal(wc)
	if err != nil {
		return fmt.Errorf("encoding world config: %w", err)
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateGauges(ctx, tx, e.SessionID, e.SceneIndex, in, true); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO conseil_world_config
				(session_id, config,
				 transport_gratuit, eau_municipalisee, logement_social_etendu,
				 maison_peuple_ouverte, marche_producteurs_local, conseil_quartier_autonome,
				 created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (session_id) DO NOTHING`,
			e.SessionID, string(raw),
			wc.Flags[WorldFlagColumns[0]], wc.Flags[WorldFlagColumns[1]], wc.Flags[WorldFlagColumns[2]],
			wc.Flags[WorldFlagColumns[3]], wc.Flags[WorldFlagColumns[4]], wc.Flags[WorldFlagColumns[5]],
			e.At,
		)
		if err != nil {
			return fmt.Errorf("inserting world config: %w", err)
		}
		return nil
	})
}

func updateGauges(ctx context.Context, tx pgx.Tx, sessionID string, tour int, in council.Indicators, completed bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE conseil_sessions
		SET tour_actuel = $2,
		    jauge_solidarite = $3, jauge_legitimite = $4, jauge_ressources = $5,
		    jauge_tension = $6, jauge_ecologie = $7,
		    completed = completed OR $8,
		    completed_at = CASE WHEN $8 AND completed_at IS NULL THEN NOW() ELSE completed_at END
		WHERE id = $1`,
		sessionID, tour,
		in.Solidarite, in.Legitimite, in.Ressources, in.Tension, in.Ecologie,
		completed,
	)
	if err != nil {
		return fmt.Errorf("updating council session: %w", err)
	}
	return nil
}

// worldConfig rebuilds the handoff record from the flags carried by a
// council_completed event: every column flag is present, earned ones are true.
func worldConfig(earned []string, scores council.Indicators) council.WorldConfig {
	flags := make(map[string]bool, len(WorldFlagColumns)+len(earned))
	for _, f := range WorldFlagColumns {
		flags[f] = false
	}
	for _, f := range earned {
		flags[f] = true
	}
	return council.WorldConfig{Flags: flags, Scores: scores}
}

// Playthrough loads the playthrough recorded under sessionID.
//
// Postcondition: Returns pgx.ErrNoRows wrapped when the session is unknown.
func (r *EventRepository) Playthrough(ctx context.Context, sessionID string) (*Playthrough, error) {
	var p Playthrough
	err := r.db.QueryRow(ctx, `
		SELECT session_id::text, player_id::text, character, policy_flags, started_at,
		       ended_at, outcome, failed_stat, scene_index,
		       resources, moral, links, comfort, local_flags
		FROM playthroughs WHERE session_id = $1`,
		sessionID,
	).Scan(
		&p.SessionID, &p.PlayerID, &p.Character, &p.PolicyFlags, &p.StartedAt,
		&p.EndedAt, &p.Outcome, &p.FailedStat, &p.SceneIndex,
		&p.Resources, &p.Moral, &p.Links, &p.Comfort, &p.LocalFlags,
	)
	if err != nil {
		return nil, fmt.Errorf("loading playthrough %s: %w", sessionID, err)
	}
	return &p, nil
}

// ChoiceOptions returns the option ids chosen in a playthrough, in scene order.
func (r *EventRepository) ChoiceOptions(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT option_id FROM choices WHERE session_id = $1 ORDER BY scene_index ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing choices: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning choices: %w", err)
	}
	return ids, nil
}

// CouncilSession loads the council session row for id.
func (r *EventRepository) CouncilSession(ctx context.Context, id string) (*CouncilSession, error) {
	var s CouncilSession
	err := r.db.QueryRow(ctx, `
		SELECT id::text, tour_actuel,
		       jauge_solidarite, jauge_legitimite, jauge_ressources, jauge_tension, jauge_ecologie,
		       completed
		FROM conseil_sessions WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.Tour,
		&s.Indicators.Solidarite, &s.Indicators.Legitimite, &s.Indicators.Ressources,
		&s.Indicators.Tension, &s.Indicators.Ecologie,
		&s.Completed,
	)
	if err != nil {
		return nil, fmt.Errorf("loading council session %s: %w", id, err)
	}
	return &s, nil
}

// WorldConfig loads the handoff record written when council session id completed.
//
// Postcondition: Returns ErrWorldConfigNotFound when the session never completed.
func (r *EventRepository) WorldConfig(ctx context.Context, sessionID string) (council.WorldConfig, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT config FROM conseil_world_config WHERE session_id = $1`, sessionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return council.WorldConfig{}, ErrWorldConfigNotFound
		}
		return council.WorldConfig{}, fmt.Errorf("loading world config: %w", err)
	}
	var wc council.WorldConfig
	if err := json.Unmarshal(raw, &wc); err != nil {
		return council.WorldConfig{}, fmt.Errorf("decoding world config: %w", err)
	}
	return wc, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
