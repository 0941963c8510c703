package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/talgya/galaxy-of-consequence/internal/canvas"
	"github.com/talgya/galaxy-of-consequence/internal/character"
	"github.com/talgya/galaxy-of-consequence/internal/force"
)

func (m canvasModel) entry() canvas.Entry {
	return canvas.Entry{
		ID:        m.ID,
		Canvas:    m.Canvas,
		Owner:     m.Owner,
		Data:      json.RawMessage(m.Data),
		Meta:      json.RawMessage(m.Meta),
		Timestamp: m.Timestamp,
	}
}

// SaveCanvas implements persistence.Store.
func (s *Store) SaveCanvas(ctx context.Context, e canvas.Entry) error {
	m := canvasModel{
		ID:        e.ID,
		Canvas:    e.Canvas,
		Owner:     e.Owner,
		Data:      []byte(e.Data),
		Meta:      []byte(e.Meta),
		Timestamp: e.Timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("save canvas %s: %w", e.ID, err)
	}
	return nil
}

// GetCanvas implements persistence.Store.
func (s *Store) GetCanvas(ctx context.Context, id string) (canvas.Entry, error) {
	var m canvasModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return canvas.Entry{}, notFound(err)
	}
	return m.entry(), nil
}

// LatestCanvas implements persistence.Store.
func (s *Store) LatestCanvas(ctx context.Context) (canvas.Entry, error) {
	var m canvasModel
	if err := s.db.WithContext(ctx).Order("timestamp DESC, id DESC").First(&m).Error; err != nil {
		return canvas.Entry{}, notFound(err)
	}
	return m.entry(), nil
}

// ListCanvases implements persistence.Store. Meta pairs are matched in SQL
// with the jsonb text operator.
func (s *Store) ListCanvases(ctx context.Context, f canvas.Filter) ([]canvas.Entry, error) {
	query := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if f.Canvas != "" {
		query = query.Where("canvas = ?", f.Canvas)
	}
	if f.Owner != "" {
		query = query.Where("owner = ?", f.Owner)
	}
	for k, v := range f.Meta {
		if v == "" {
			continue
		}
		query = query.Where("meta ->> ? = ?", k, v)
	}
	var rows []canvasModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	out := make([]canvas.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

// SaveCharacter implements persistence.Store.
func (s *Store) SaveCharacter(ctx context.Context, c character.Character) error {
	rep := c.FactionReputation
	if rep == nil {
		rep = map[string]int{}
	}
	rb, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode reputation of %s: %w", c.Owner, err)
	}
	m := characterModel{
		Owner:             c.Owner,
		ID:                c.ID,
		Name:              c.Name,
		Species:           c.Species,
		Homeworld:         c.Homeworld,
		Background:        c.Background,
		Allegiance:        c.Allegiance,
		ForceSensitive:    c.ForceSensitive,
		ForceAlignment:    string(c.ForceAlignment),
		Appearance:        c.Appearance,
		Equipment:         jsonList(c.Equipment),
		Skills:            jsonList(c.Skills),
		PersonalGoal:      c.PersonalGoal,
		Contacts:          c.Contacts,
		FactionReputation: rb,
		CreatedAt:         c.CreatedAt.UTC(),
		UpdatedAt:         c.UpdatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// GetCharacter implements persistence.Store.
func (s *Store) GetCharacter(ctx context.Context, owner string) (character.Character, error) {
	var m characterModel
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).First(&m).Error; err != nil {
		return character.Character{}, notFound(err)
	}
	c := character.Character{
		ID:             m.ID,
		Owner:          m.Owner,
		Name:           m.Name,
		Species:        m.Species,
		Homeworld:      m.Homeworld,
		Background:     m.Background,
		Allegiance:     m.Allegiance,
		ForceSensitive: m.ForceSensitive,
		ForceAlignment: force.Alignment(m.ForceAlignment),
		Appearance:     m.Appearance,
		PersonalGoal:   m.PersonalGoal,
		Contacts:       m.Contacts,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if err := json.Unmarshal(m.Equipment, &c.Equipment); err != nil {
		return c, fmt.Errorf("decode equipment of %s: %w", owner, err)
	}
	if err := json.Unmarshal(m.Skills, &c.Skills); err != nil {
		return c, fmt.Errorf("decode skills of %s: %w", owner, err)
	}
	if err := json.Unmarshal(m.FactionReputation, &c.FactionReputation); err != nil {
		return c, fmt.Errorf("decode reputation of %s: %w", owner, err)
	}
	return c, nil
}
