// Package persistence provides the SQLite record store for standings, Force
// profiles, quests, sessions, NPC chat logs, canvases and character sheets.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

var _ Store = (*DB)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS faction_standings (
		id TEXT NOT NULL,
		faction_name TEXT NOT NULL,
		owner TEXT NOT NULL,
		reputation INTEGER NOT NULL,
		awareness INTEGER NOT NULL,
		resources INTEGER NOT NULL,
		goals_json TEXT NOT NULL,
		operations_json TEXT NOT NULL,
		last_interaction TEXT NOT NULL,
		PRIMARY KEY (owner, faction_name)
	);

	CREATE TABLE IF NOT EXISTS force_profiles (
		owner TEXT PRIMARY KEY,
		light_points INTEGER NOT NULL,
		dark_points INTEGER NOT NULL,
		balance_points INTEGER NOT NULL,
		alignment TEXT NOT NULL,
		sensitivity REAL NOT NULL,
		corruption_resistance REAL NOT NULL,
		redemption_potential REAL NOT NULL,
		history_json TEXT NOT NULL,
		destiny_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quests (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		quest_type TEXT NOT NULL,
		description TEXT NOT NULL,
		objectives_json TEXT NOT NULL,
		rewards_json TEXT NOT NULL,
		status TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		factions_json TEXT NOT NULL,
		outcome_json TEXT,
		details_json TEXT,
		created_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		master TEXT NOT NULL,
		galaxy_timestamp TEXT NOT NULL,
		snapshot_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS npc_interactions (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		npc_name TEXT NOT NULL,
		npc_type TEXT NOT NULL,
		interaction_context TEXT NOT NULL,
		player_message TEXT NOT NULL,
		npc_response TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		memory_tier INTEGER NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS galaxy_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS galaxy_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS canvas_entries (
		id TEXT PRIMARY KEY,
		canvas TEXT NOT NULL,
		owner TEXT NOT NULL,
		data_json TEXT NOT NULL,
		meta_json TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS player_characters (
		owner TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		species TEXT NOT NULL,
		homeworld TEXT NOT NULL,
		background TEXT NOT NULL,
		allegiance TEXT NOT NULL,
		force_sensitive INTEGER NOT NULL,
		force_alignment TEXT NOT NULL,
		appearance TEXT NOT NULL,
		equipment_json TEXT NOT NULL,
		skills_json TEXT NOT NULL,
		personal_goal TEXT NOT NULL,
		contacts TEXT NOT NULL,
		reputation_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quests_owner ON quests(owner, created_at);
	CREATE INDEX IF NOT EXISTS idx_interactions_owner ON npc_interactions(owner, timestamp);
	CREATE INDEX IF NOT EXISTS idx_canvas_owner ON canvas_entries(owner, timestamp);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type standingRow struct {
	ID              string `db:"id"`
	Faction         string `db:"faction_name"`
	Owner           string `db:"owner"`
	Reputation      int    `db:"reputation"`
	Awareness       int    `db:"awareness"`
	Resources       int    `db:"resources"`
	GoalsJSON       string `db:"goals_json"`
	OperationsJSON  string `db:"operations_json"`
	LastInteraction string `db:"last_interaction"`
}

func newStandingRow(s faction.Standing) standingRow {
	goals, _ := json.Marshal(nonNil(s.Goals))
	ops, _ := json.Marshal(nonNil(s.ActiveOperations))
	return standingRow{
		ID:              s.ID,
		Faction:         s.Faction,
		Owner:           s.Owner,
		Reputation:      s.Reputation,
		Awareness:       s.Awareness,
		Resources:       s.Resources,
		GoalsJSON:       string(goals),
		OperationsJSON:  string(ops),
		LastInteraction: formatTime(s.LastInteraction),
	}
}

func (r standingRow) standing() (faction.Standing, error) {
	s := faction.Standing{
		ID:              r.ID,
		Faction:         r.Faction,
		Owner:           r.Owner,
		Reputation:      r.Reputation,
		Awareness:       r.Awareness,
		Resources:       r.Resources,
		LastInteraction: parseTime(r.LastInteraction),
	}
	if err := json.Unmarshal([]byte(r.GoalsJSON), &s.Goals); err != nil {
		return s, fmt.Errorf("decode goals of standing %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.OperationsJSON), &s.ActiveOperations); err != nil {
		return s, fmt.Errorf("decode operations of standing %s: %w", r.ID, err)
	}
	return s, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

const standingColumns = `id, faction_name, owner, reputation, awareness, resources, goals_json, operations_json, last_interaction`

// ListStandings implements Store.
func (db *DB) ListStandings(ctx context.Context, owner string) ([]faction.Standing, error) {
	var rows []standingRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT `+standingColumns+` FROM faction_standings
		WHERE owner = ? OR owner = ?
		ORDER BY CASE WHEN owner = ? THEN 0 ELSE 1 END, faction_name`,
		owner, faction.SystemOwner, faction.SystemOwner)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	out := make([]faction.Standing, 0, len(rows))
	for _, r := range rows {
		s, err := r.standing()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// GetStanding implements Store.
func (db *DB) GetStanding(ctx context.Context, owner, factionName string) (faction.Standing, error) {
	var r standingRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+standingColumns+` FROM faction_standings
		WHERE owner = ? AND faction_name = ?`, owner, factionName)
	if errors.Is(err, sql.ErrNoRows) {
		return faction.Standing{}, ErrNotFound
	}
	if err != nil {
		return faction.Standing{}, fmt.Errorf("get standing: %w", err)
	}
	return r.standing()
}

// SaveStanding inserts or replaces the owner's standing with a faction.
func (db *DB) SaveStanding(ctx context.Context, s faction.Standing) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO faction_standings (`+standingColumns+`)
		VALUES (:id, :faction_name, :owner, :reputation, :awareness, :resources, :goals_json, :operations_json, :last_interaction)
		ON CONFLICT (owner, faction_name) DO UPDATE SET
			reputation = excluded.reputation,
			awareness = excluded.awareness,
			resources = excluded.resources,
			goals_json = excluded.goals_json,
			operations_json = excluded.operations_json,
			last_interaction = excluded.last_interaction`,
		newStandingRow(s))
	if err != nil {
		return fmt.Errorf("save standing %s/%s: %w", s.Owner, s.Faction, err)
	}
	return nil
}

// SeedSystemStandings implements Store.
func (db *DB) SeedSystemStandings(ctx context.Context, defaults []faction.Standing) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range defaults {
		s.Owner = faction.SystemOwner
		_, err := tx.NamedExecContext(ctx, `INSERT INTO faction_standings (`+standingColumns+`)
			VALUES (:id, :faction_name, :owner, :reputation, :awareness, :resources, :goals_json, :operations_json, :last_interaction)
			ON CONFLICT (owner, faction_name) DO NOTHING`, newStandingRow(s))
		if err != nil {
			return fmt.Errorf("seed standing %s: %w", s.Faction, err)
		}
	}
	return tx.Commit()
}

type profileRow struct {
	Owner       string  `db:"owner"`
	Light       int     `db:"light_points"`
	Dark        int     `db:"dark_points"`
	Balance     int     `db:"balance_points"`
	Alignment   string  `db:"alignment"`
	Sensitivity float64 `db:"sensitivity"`
	Resistance  float64 `db:"corruption_resistance"`
	Redemption  float64 `db:"redemption_potential"`
	HistoryJSON string  `db:"history_json"`
	DestinyJSON string  `db:"destiny_json"`
}

// GetProfile implements Store.
func (db *DB) GetProfile(ctx context.Context, owner string) (force.Profile, error) {
	var r profileRow
	err := db.conn.GetContext(ctx, &r, `SELECT * FROM force_profiles WHERE owner = ?`, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return force.Profile{}, ErrNotFound
	}
	if err != nil {
		return force.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p := force.Profile{
		Owner:                r.Owner,
		Points:               force.Points{Light: r.Light, Dark: r.Dark, Balance: r.Balance},
		Alignment:            force.Alignment(r.Alignment),
		Sensitivity:          r.Sensitivity,
		CorruptionResistance: r.Resistance,
		RedemptionPotential:  r.Redemption,
	}
	if err := json.Unmarshal([]byte(r.HistoryJSON), &p.MoralHistory); err != nil {
		return p, fmt.Errorf("decode moral history of %s: %w", owner, err)
	}
	if err := json.Unmarshal([]byte(r.DestinyJSON), &p.DestinyThreads); err != nil {
		return p, fmt.Errorf("decode destiny threads of %s: %w", owner, err)
	}
	return p, nil
}

// SaveProfile inserts or replaces a Force profile.
func (db *DB) SaveProfile(ctx context.Context, p force.Profile) error {
	history, _ := json.Marshal(p.MoralHistory)
	if p.MoralHistory == nil {
		history = []byte("[]")
	}
	destiny, _ := json.Marshal(nonNil(p.DestinyThreads))
	_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO force_profiles
		(owner, light_points, dark_points, balance_points, alignment, sensitivity,
		 corruption_resistance, redemption_potential, history_json, destiny_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Owner, p.Points.Light, p.Points.Dark, p.Points.Balance, string(p.Alignment),
		p.Sensitivity, p.CorruptionResistance, p.RedemptionPotential,
		string(history), string(destiny))
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Owner, err)
	}
	return nil
}

type questRow struct {
	ID             string         `db:"id"`
	Owner          string         `db:"owner"`
	Title          string         `db:"title"`
	Type           string         `db:"quest_type"`
	Description    string         `db:"description"`
	ObjectivesJSON string         `db:"objectives_json"`
	RewardsJSON    string         `db:"rewards_json"`
	Status         string         `db:"status"`
	Difficulty     string         `db:"difficulty"`
	FactionsJSON   string         `db:"factions_json"`
	OutcomeJSON    sql.NullString `db:"outcome_json"`
	DetailsJSON    sql.NullString `db:"details_json"`
	CreatedAt      string         `db:"created_at"`
	CompletedAt    sql.NullString `db:"completed_at"`
}

func newQuestRow(q quest.Quest) questRow {
	objectives, _ := json.Marshal(q.Objectives)
	if q.Objectives == nil {
		objectives = []byte("[]")
	}
	rewards, _ := json.Marshal(nonNil(q.Rewards))
	factions, _ := json.Marshal(nonNil(q.Factions))
	r := questRow{
		ID:             q.ID,
		Owner:          q.Owner,
		Title:          q.Title,
		Type:           string(q.Type),
		Description:    q.Description,
		ObjectivesJSON: string(objectives),
		RewardsJSON:    string(rewards),
		Status:         string(q.Status),
		Difficulty:     q.Difficulty,
		FactionsJSON:   string(factions),
		CreatedAt:      formatTime(q.CreatedAt),
	}
	if q.Outcome != nil {
		b, _ := json.Marshal(q.Outcome)
		r.OutcomeJSON = sql.NullString{String: string(b), Valid: true}
	}
	if q.Details != nil {
		b, _ := json.Marshal(q.Details)
		r.DetailsJSON = sql.NullString{String: string(b), Valid: true}
	}
	if q.CompletedAt != nil {
		r.CompletedAt = sql.NullString{String: formatTime(*q.CompletedAt), Valid: true}
	}
	return r
}

func (r questRow) quest() (quest.Quest, error) {
	q := quest.Quest{
		ID:          r.ID,
		Owner:       r.Owner,
		Title:       r.Title,
		Type:        quest.Type(r.Type),
		Description: r.Description,
		Status:      quest.Status(r.Status),
		Difficulty:  r.Difficulty,
		CreatedAt:   parseTime(r.CreatedAt),
	}
	for _, f := range []struct {
		raw  string
		into any
	}{
		{r.ObjectivesJSON, &q.Objectives},
		{r.RewardsJSON, &q.Rewards},
		{r.FactionsJSON, &q.Factions},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.into); err != nil {
			return q, fmt.Errorf("decode quest %s: %w", r.ID, err)
		}
	}
	if r.OutcomeJSON.Valid {
		q.Outcome = &quest.Outcome{}
		if err := json.Unmarshal([]byte(r.OutcomeJSON.String), q.Outcome); err != nil {
			return q, fmt.Errorf("decode outcome of quest %s: %w", r.ID, err)
		}
	}
	if r.DetailsJSON.Valid {
		q.Details = &quest.Details{}
		if err := json.Unmarshal([]byte(r.DetailsJSON.String), q.Details); err != nil {
			return q, fmt.Errorf("decode details of quest %s: %w", r.ID, err)
		}
	}
	if r.CompletedAt.Valid {
		t := parseTime(r.CompletedAt.String)
		q.CompletedAt = &t
	}
	return q, nil
}

const questColumns = `id, owner, title, quest_type, description, objectives_json, rewards_json,
	status, difficulty, factions_json, outcome_json, details_json, created_at, completed_at`

// CreateQuest implements Store.
func (db *DB) CreateQuest(ctx context.Context, q quest.Quest) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO quests (`+questColumns+`)
		VALUES (:id, :owner, :title, :quest_type, :description, :objectives_json, :rewards_json,
			:status, :difficulty, :factions_json, :outcome_json, :details_json, :created_at, :completed_at)`,
		newQuestRow(q))
	if err != nil {
		return fmt.Errorf("create quest %s: %w", q.ID, err)
	}
	return nil
}

// GetQuest implements Store.
func (db *DB) GetQuest(ctx context.Context, id string) (quest.Quest, error) {
	var r questRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+questColumns+` FROM quests WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return quest.Quest{}, ErrNotFound
	}
	if err != nil {
		return quest.Quest{}, fmt.Errorf("get quest: %w", err)
	}
	return r.quest()
}

// UpdateQuest rewrites a quest's mutable fields.
func (db *DB) UpdateQuest(ctx context.Context, q quest.Quest) error {
	res, err := db.conn.NamedExecContext(ctx, `UPDATE quests SET
		title = :title, description = :description, objectives_json = :objectives_json,
		rewards_json = :rewards_json, status = :status, difficulty = :difficulty,
		factions_json = :factions_json, outcome_json = :outcome_json, details_json = :details_json,
		completed_at = :completed_at
		WHERE id = :id`, newQuestRow(q))
	if err != nil {
		return fmt.Errorf("update quest %s: %w", q.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQuests returns the owner's quests, oldest first.
func (db *DB) ListQuests(ctx context.Context, owner string) ([]quest.Quest, error) {
	var rows []questRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT `+questColumns+` FROM quests
		WHERE owner = ? ORDER BY created_at, rowid`, owner)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	out := make([]quest.Quest, 0, len(rows))
	for _, r := range rows {
		q, err := r.quest()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// SaveSession stores a session snapshot, replacing any earlier one.
func (db *DB) SaveSession(ctx context.Context, snap engine.SessionSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.World.SessionID, err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO sessions
		(id, master, galaxy_timestamp, snapshot_json, updated_at) VALUES (?, ?, ?, ?, ?)`,
		snap.World.SessionID, snap.World.Master, snap.World.GalaxyTimestamp, string(b), formatTime(snap.World.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.World.SessionID, err)
	}
	return nil
}

// LoadSession implements Store.
func (db *DB) LoadSession(ctx context.Context, id string) (engine.SessionSnapshot, error) {
	var raw string
	err := db.conn.GetContext(ctx, &raw, `SELECT snapshot_json FROM sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.SessionSnapshot{}, ErrNotFound
	}
	if err != nil {
		return engine.SessionSnapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap engine.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snap, fmt.Errorf("decode session %s: %w", id, err)
	}
	return snap, nil
}

// ListSessions returns stored session ids in order.
func (db *DB) ListSessions(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := db.conn.SelectContext(ctx, &ids, `SELECT id FROM sessions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// SaveSessions persists every live session of a manager along with the
// galaxy-wide state.
func SaveSessions(ctx context.Context, s Store, m *engine.SessionManager) error {
	ids := m.SessionIDs()
	slog.Info("saving sessions", "count", len(ids))
	for _, id := range ids {
		snap, err := m.Snapshot(id)
		if err != nil {
			return err
		}
		if err := s.SaveSession(ctx, snap); err != nil {
			return err
		}
	}
	galaxy, err := json.Marshal(m.Galaxy())
	if err != nil {
		return fmt.Errorf("encode galaxy state: %w", err)
	}
	if err := s.SaveMeta(ctx, "galaxy_state", string(galaxy)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// RestoreSessions loads every stored session, and the galaxy state if one was
// saved, into a manager.
func RestoreSessions(ctx context.Context, s Store, m *engine.SessionManager) (int, error) {
	raw, err := s.GetMeta(ctx, "galaxy_state")
	switch {
	case err == nil:
		var g engine.GalaxyState
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			return 0, fmt.Errorf("decode galaxy state: %w", err)
		}
		m.RestoreGalaxy(g)
	case !errors.Is(err, ErrNotFound):
		return 0, err
	}

	ids, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		snap, err := s.LoadSession(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := m.Restore(snap); err != nil {
			return 0, fmt.Errorf("restore session %s: %w", id, err)
		}
	}
	return len(ids), nil
}

type interactionRow struct {
	ID         string `db:"id"`
	Owner      string `db:"owner"`
	NPCName    string `db:"npc_name"`
	NPCType    string `db:"npc_type"`
	Context    string `db:"interaction_context"`
	Message    string `db:"player_message"`
	Response   string `db:"npc_response"`
	Sentiment  string `db:"sentiment"`
	MemoryTier int    `db:"memory_tier"`
	Timestamp  string `db:"timestamp"`
}

// AppendInteraction implements Store.
func (db *DB) AppendInteraction(ctx context.Context, in llm.Interaction) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO npc_interactions
		(id, owner, npc_name, npc_type, interaction_context, player_message, npc_response, sentiment, memory_tier, timestamp)
		VALUES (:id, :owner, :npc_name, :npc_type, :interaction_context, :player_message, :npc_response, :sentiment, :memory_tier, :timestamp)`,
		interactionRow{
			ID: in.ID, Owner: in.Owner, NPCName: in.NPCName, NPCType: in.NPCType,
			Context: in.Context, Message: in.Message, Response: in.Response,
			Sentiment: in.Sentiment, MemoryTier: in.MemoryTier, Timestamp: formatTime(in.Timestamp),
		})
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// ListInteractions implements Store.
func (db *DB) ListInteractions(ctx context.Context, owner string, limit int) ([]llm.Interaction, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []interactionRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT * FROM npc_interactions
		WHERE owner = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	out := make([]llm.Interaction, 0, len(rows))
	for _, r := range slices.Backward(rows) {
		out = append(out, llm.Interaction{
			ID: r.ID, Owner: r.Owner, NPCName: r.NPCName, NPCType: r.NPCType,
			Context: r.Context, Message: r.Message, Response: r.Response,
			Sentiment: r.Sentiment, MemoryTier: r.MemoryTier, Timestamp: parseTime(r.Timestamp),
		})
	}
	return out, nil
}

// AppendEvents adds events to the galaxy event log.
func (db *DB) AppendEvents(ctx context.Context, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO galaxy_events (type, source, description) VALUES (?, ?, ?)",
			e.Type, e.Source, e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, oldest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.SelectContext(ctx, &events,
		"SELECT type, source, description FROM galaxy_events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	slices.Reverse(events)
	return events, nil
}

// SaveMeta stores a key-value pair in galaxy metadata.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO galaxy_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM galaxy_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}
