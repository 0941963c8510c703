// Package postgres is the gorm-backed record store for deployments that run
// against PostgreSQL instead of a local SQLite file.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

// Store implements persistence.Store on gorm.
type Store struct {
	db *gorm.DB
}

var _ persistence.Store = (*Store)(nil)

// Open connects to PostgreSQL and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&standingModel{},
		&profileModel{},
		&questModel{},
		&sessionModel{},
		&interactionModel{},
		&eventModel{},
		&metaModel{},
		&canvasModel{},
		&characterModel{},
	)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return persistence.ErrNotFound
	}
	return err
}

func jsonList(v []string) []byte {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return b
}

func toStandingModel(st faction.Standing) standingModel {
	return standingModel{
		Owner:           st.Owner,
		Faction:         st.Faction,
		ID:              st.ID,
		Reputation:      st.Reputation,
		Awareness:       st.Awareness,
		Resources:       st.Resources,
		Goals:           jsonList(st.Goals),
		Operations:      jsonList(st.ActiveOperations),
		LastInteraction: st.LastInteraction.UTC(),
	}
}

func (m standingModel) standing() (faction.Standing, error) {
	st := faction.Standing{
		ID:              m.ID,
		Faction:         m.Faction,
		Owner:           m.Owner,
		Reputation:      m.Reputation,
		Awareness:       m.Awareness,
		Resources:       m.Resources,
		LastInteraction: m.LastInteraction,
	}
	if err := json.Unmarshal(m.Goals, &st.Goals); err != nil {
		return st, fmt.Errorf("decode goals of standing %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(m.Operations, &st.ActiveOperations); err != nil {
		return st, fmt.Errorf("decode operations of standing %s: %w", m.ID, err)
	}
	return st, nil
}

// ListStandings implements persistence.Store.
func (s *Store) ListStandings(ctx context.Context, owner string) ([]faction.Standing, error) {
	var rows []standingModel
	err := s.db.WithContext(ctx).
		Where("owner IN ?", []string{faction.SystemOwner, owner}).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN owner = ? THEN 0 ELSE 1 END, faction_name",
			Vars:               []any{faction.SystemOwner},
			WithoutParentheses: true,
		}}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	out := make([]faction.Standing, 0, len(rows))
	for _, r := range rows {
		st, err := r.standing()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// GetStanding implements persistence.Store.
func (s *Store) GetStanding(ctx context.Context, owner, factionName string) (faction.Standing, error) {
	var m standingModel
	err := s.db.WithContext(ctx).Where("owner = ? AND faction_name = ?", owner, factionName).First(&m).Error
	if err != nil {
		return faction.Standing{}, notFound(err)
	}
	return m.standing()
}

// SaveStanding implements persistence.Store.
func (s *Store) SaveStanding(ctx context.Context, st faction.Standing) error {
	m := toStandingModel(st)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "faction_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"reputation", "awareness", "resources", "goals", "operations", "last_interaction"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save standing %s/%s: %w", st.Owner, st.Faction, err)
	}
	return nil
}

// SeedSystemStandings implements persistence.Store.
func (s *Store) SeedSystemStandings(ctx context.Context, defaults []faction.Standing) error {
	if len(defaults) == 0 {
		return nil
	}
	rows := make([]standingModel, 0, len(defaults))
	for _, st := range defaults {
		st.Owner = faction.SystemOwner
		rows = append(rows, toStandingModel(st))
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// GetProfile implements persistence.Store.
func (s *Store) GetProfile(ctx context.Context, owner string) (force.Profile, error) {
	var m profileModel
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).First(&m).Error; err != nil {
		return force.Profile{}, notFound(err)
	}
	p := force.Profile{
		Owner:                m.Owner,
		Points:               force.Points{Light: m.Light, Dark: m.Dark, Balance: m.Balance},
		Alignment:            force.Alignment(m.Alignment),
		Sensitivity:          m.Sensitivity,
		CorruptionResistance: m.CorruptionResistance,
		RedemptionPotential:  m.RedemptionPotential,
	}
	if err := json.Unmarshal(m.History, &p.MoralHistory); err != nil {
		return p, fmt.Errorf("decode moral history of %s: %w", owner, err)
	}
	if err := json.Unmarshal(m.Destiny, &p.DestinyThreads); err != nil {
		return p, fmt.Errorf("decode destiny threads of %s: %w", owner, err)
	}
	return p, nil
}

// SaveProfile implements persistence.Store.
func (s *Store) SaveProfile(ctx context.Context, p force.Profile) error {
	history := p.MoralHistory
	if history == nil {
		history = []force.MoralChoice{}
	}
	hb, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode moral history of %s: %w", p.Owner, err)
	}
	m := profileModel{
		Owner:                p.Owner,
		Light:                p.Points.Light,
		Dark:                 p.Points.Dark,
		Balance:              p.Points.Balance,
		Alignment:            string(p.Alignment),
		Sensitivity:          p.Sensitivity,
		CorruptionResistance: p.CorruptionResistance,
		RedemptionPotential:  p.RedemptionPotential,
		History:              hb,
		Destiny:              jsonList(p.DestinyThreads),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func toQuestModel(q quest.Quest) questModel {
	objectives := q.Objectives
	if objectives == nil {
		objectives = []quest.Objective{}
	}
	ob, _ := json.Marshal(objectives)
	m := questModel{
		ID:          q.ID,
		Owner:       q.Owner,
		Title:       q.Title,
		Type:        string(q.Type),
		Description: q.Description,
		Objectives:  ob,
		Rewards:     jsonList(q.Rewards),
		Status:      string(q.Status),
		Difficulty:  q.Difficulty,
		Factions:    jsonList(q.Factions),
		CreatedAt:   q.CreatedAt.UTC(),
		CompletedAt: q.CompletedAt,
	}
	if q.Outcome != nil {
		m.Outcome, _ = json.Marshal(q.Outcome)
	}
	if q.Details != nil {
		m.Details, _ = json.Marshal(q.Details)
	}
	return m
}

func (m questModel) quest() (quest.Quest, error) {
	q := quest.Quest{
		ID:          m.ID,
		Owner:       m.Owner,
		Title:       m.Title,
		Type:        quest.Type(m.Type),
		Description: m.Description,
		Status:      quest.Status(m.Status),
		Difficulty:  m.Difficulty,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
	if err := json.Unmarshal(m.Objectives, &q.Objectives); err != nil {
		return q, fmt.Errorf("decode objectives of quest %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(m.Rewards, &q.Rewards); err != nil {
		return q, fmt.Errorf("decode rewards of quest %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(m.Factions, &q.Factions); err != nil {
		return q, fmt.Errorf("decode factions of quest %s: %w", m.ID, err)
	}
	if len(m.Outcome) > 0 {
		q.Outcome = &quest.Outcome{}
		if err := json.Unmarshal(m.Outcome, q.Outcome); err != nil {
			return q, fmt.Errorf("decode outcome of quest %s: %w", m.ID, err)
		}
	}
	if len(m.Details) > 0 {
		q.Details = &quest.Details{}
		if err := json.Unmarshal(m.Details, q.Details); err != nil {
			return q, fmt.Errorf("decode details of quest %s: %w", m.ID, err)
		}
	}
	return q, nil
}

// CreateQuest implements persistence.Store.
func (s *Store) CreateQuest(ctx context.Context, q quest.Quest) error {
	m := toQuestModel(q)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create quest %s: %w", q.ID, err)
	}
	return nil
}

// GetQuest implements persistence.Store.
func (s *Store) GetQuest(ctx context.Context, id string) (quest.Quest, error) {
	var m questModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return quest.Quest{}, notFound(err)
	}
	return m.quest()
}

// UpdateQuest implements persistence.Store.
func (s *Store) UpdateQuest(ctx context.Context, q quest.Quest) error {
	m := toQuestModel(q)
	res := s.db.WithContext(ctx).Model(&questModel{}).Where("id = ?", q.ID).Updates(map[string]any{
		"title":               m.Title,
		"description":         m.Description,
		"objectives":          m.Objectives,
		"rewards":             m.Rewards,
		"status":              m.Status,
		"difficulty":          m.Difficulty,
		"faction_involvement": m.Factions,
		"outcome":             m.Outcome,
		"details":             m.Details,
		"completed_at":        m.CompletedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("update quest %s: %w", q.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListQuests implements persistence.Store.
func (s *Store) ListQuests(ctx context.Context, owner string) ([]quest.Quest, error) {
	var rows []questModel
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at, id").Find(&rows).Error; err != nil {
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

// SaveSession implements persistence.Store.
func (s *Store) SaveSession(ctx context.Context, snap engine.SessionSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.World.SessionID, err)
	}
	m := sessionModel{
		ID:              snap.World.SessionID,
		Master:          snap.World.Master,
		GalaxyTimestamp: snap.World.GalaxyTimestamp,
		Snapshot:        b,
		UpdatedAt:       snap.World.UpdatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// LoadSession implements persistence.Store.
func (s *Store) LoadSession(ctx context.Context, id string) (engine.SessionSnapshot, error) {
	var m sessionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return engine.SessionSnapshot{}, notFound(err)
	}
	var snap engine.SessionSnapshot
	if err := json.Unmarshal(m.Snapshot, &snap); err != nil {
		return snap, fmt.Errorf("decode session %s: %w", id, err)
	}
	return snap, nil
}

// ListSessions implements persistence.Store.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&sessionModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// AppendInteraction implements persistence.Store.
func (s *Store) AppendInteraction(ctx context.Context, in llm.Interaction) error {
	m := interactionModel{
		ID:         in.ID,
		Owner:      in.Owner,
		NPCName:    in.NPCName,
		NPCType:    in.NPCType,
		Context:    in.Context,
		Message:    in.Message,
		Response:   in.Response,
		Sentiment:  in.Sentiment,
		MemoryTier: in.MemoryTier,
		Timestamp:  in.Timestamp.UTC(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListInteractions implements persistence.Store.
func (s *Store) ListInteractions(ctx context.Context, owner string, limit int) ([]llm.Interaction, error) {
	var rows []interactionModel
	query := s.db.WithContext(ctx).Where("owner = ?", owner).Order("timestamp DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	out := make([]llm.Interaction, 0, len(rows))
	for _, r := range slices.Backward(rows) {
		out = append(out, llm.Interaction{
			ID: r.ID, Owner: r.Owner, NPCName: r.NPCName, NPCType: r.NPCType,
			Context: r.Context, Message: r.Message, Response: r.Response,
			Sentiment: r.Sentiment, MemoryTier: r.MemoryTier, Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

// AppendEvents implements persistence.Store.
func (s *Store) AppendEvents(ctx context.Context, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]eventModel, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventModel{Type: e.Type, Source: e.Source, Description: e.Description})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// RecentEvents implements persistence.Store.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	var rows []eventModel
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range slices.Backward(rows) {
		out = append(out, engine.Event{Type: r.Type, Source: r.Source, Description: r.Description})
	}
	return out, nil
}

// SaveMeta implements persistence.Store.
func (s *Store) SaveMeta(ctx context.Context, key, value string) error {
	m := metaModel{Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// GetMeta implements persistence.Store.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var m metaModel
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&m).Error; err != nil {
		return "", notFound(err)
	}
	return m.Value, nil
}
