package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talgya/galaxy-of-consequence/internal/canvas"
	"github.com/talgya/galaxy-of-consequence/internal/character"
	"github.com/talgya/galaxy-of-consequence/internal/force"
)

type canvasRow struct {
	ID        string `db:"id"`
	Canvas    string `db:"canvas"`
	Owner     string `db:"owner"`
	DataJSON  string `db:"data_json"`
	MetaJSON  string `db:"meta_json"`
	Timestamp string `db:"timestamp"`
}

func (r canvasRow) entry() canvas.Entry {
	return canvas.Entry{
		ID:        r.ID,
		Canvas:    r.Canvas,
		Owner:     r.Owner,
		Data:      json.RawMessage(r.DataJSON),
		Meta:      json.RawMessage(r.MetaJSON),
		Timestamp: parseTime(r.Timestamp),
	}
}

const canvasColumns = `id, canvas, owner, data_json, meta_json, timestamp`

// SaveCanvas implements Store.
func (db *DB) SaveCanvas(ctx context.Context, e canvas.Entry) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO canvas_entries (`+canvasColumns+`)
		VALUES (:id, :canvas, :owner, :data_json, :meta_json, :timestamp)`,
		canvasRow{
			ID: e.ID, Canvas: e.Canvas, Owner: e.Owner,
			DataJSON: string(e.Data), MetaJSON: string(e.Meta), Timestamp: formatTime(e.Timestamp),
		})
	if err != nil {
		return fmt.Errorf("save canvas %s: %w", e.ID, err)
	}
	return nil
}

// GetCanvas implements Store.
func (db *DB) GetCanvas(ctx context.Context, id string) (canvas.Entry, error) {
	var r canvasRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+canvasColumns+` FROM canvas_entries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return canvas.Entry{}, ErrNotFound
	}
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("get canvas: %w", err)
	}
	return r.entry(), nil
}

// LatestCanvas implements Store.
func (db *DB) LatestCanvas(ctx context.Context) (canvas.Entry, error) {
	var r canvasRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+canvasColumns+` FROM canvas_entries
		ORDER BY timestamp DESC, rowid DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return canvas.Entry{}, ErrNotFound
	}
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("latest canvas: %w", err)
	}
	return r.entry(), nil
}

// ListCanvases implements Store. Kind and owner narrow the query; meta pairs
// are matched after decoding.
func (db *DB) ListCanvases(ctx context.Context, f canvas.Filter) ([]canvas.Entry, error) {
	var rows []canvasRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT `+canvasColumns+` FROM canvas_entries
		WHERE (? = '' OR canvas = ?) AND (? = '' OR owner = ?)
		ORDER BY timestamp DESC, rowid DESC`, f.Canvas, f.Canvas, f.Owner, f.Owner)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	out := make([]canvas.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return canvas.Select(out, f), nil
}

type characterRow struct {
	Owner          string `db:"owner"`
	ID             string `db:"id"`
	Name           string `db:"name"`
	Species        string `db:"species"`
	Homeworld      string `db:"homeworld"`
	Background     string `db:"background"`
	Allegiance     string `db:"allegiance"`
	ForceSensitive bool   `db:"force_sensitive"`
	ForceAlignment string `db:"force_alignment"`
	Appearance     string `db:"appearance"`
	EquipmentJSON  string `db:"equipment_json"`
	SkillsJSON     string `db:"skills_json"`
	PersonalGoal   string `db:"personal_goal"`
	Contacts       string `db:"contacts"`
	ReputationJSON string `db:"reputation_json"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func newCharacterRow(c character.Character) characterRow {
	equipment, _ := json.Marshal(nonNil(c.Equipment))
	skills, _ := json.Marshal(nonNil(c.Skills))
	rep := c.FactionReputation
	if rep == nil {
		rep = map[string]int{}
	}
	reputation, _ := json.Marshal(rep)
	return characterRow{
		Owner:          c.Owner,
		ID:             c.ID,
		Name:           c.Name,
		Species:        c.Species,
		Homeworld:      c.Homeworld,
		Background:     c.Background,
		Allegiance:     c.Allegiance,
		ForceSensitive: c.ForceSensitive,
		ForceAlignment: string(c.ForceAlignment),
		Appearance:     c.Appearance,
		EquipmentJSON:  string(equipment),
		SkillsJSON:     string(skills),
		PersonalGoal:   c.PersonalGoal,
		Contacts:       c.Contacts,
		ReputationJSON: string(reputation),
		CreatedAt:      formatTime(c.CreatedAt),
		UpdatedAt:      formatTime(c.UpdatedAt),
	}
}

func (r characterRow) character() (character.Character, error) {
	c := character.Character{
		ID:             r.ID,
		Owner:          r.Owner,
		Name:           r.Name,
		Species:        r.Species,
		Homeworld:      r.Homeworld,
		Background:     r.Background,
		Allegiance:     r.Allegiance,
		ForceSensitive: r.ForceSensitive,
		ForceAlignment: force.Alignment(r.ForceAlignment),
		Appearance:     r.Appearance,
		PersonalGoal:   r.PersonalGoal,
		Contacts:       r.Contacts,
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
	for _, f := range []struct {
		raw  string
		into any
	}{
		{r.EquipmentJSON, &c.Equipment},
		{r.SkillsJSON, &c.Skills},
		{r.ReputationJSON, &c.FactionReputation},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.into); err != nil {
			return c, fmt.Errorf("decode character of %s: %w", r.Owner, err)
		}
	}
	return c, nil
}

const characterColumns = `owner, id, name, species, homeworld, background, allegiance, force_sensitive,
	force_alignment, appearance, equipment_json, skills_json, personal_goal, contacts,
	reputation_json, created_at, updated_at`

// SaveCharacter implements Store.
func (db *DB) SaveCharacter(ctx context.Context, c character.Character) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO player_characters (`+characterColumns+`)
		VALUES (:owner, :id, :name, :species, :homeworld, :background, :allegiance, :force_sensitive,
			:force_alignment, :appearance, :equipment_json, :skills_json, :personal_goal, :contacts,
			:reputation_json, :created_at, :updated_at)`,
		newCharacterRow(c))
	if err != nil {
		return fmt.Errorf("save character of %s: %w", c.Owner, err)
	}
	return nil
}

// GetCharacter implements Store.
func (db *DB) GetCharacter(ctx context.Context, owner string) (character.Character, error) {
	var r characterRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+characterColumns+` FROM player_characters WHERE owner = ?`, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return character.Character{}, ErrNotFound
	}
	if err != nil {
		return character.Character{}, fmt.Errorf("get character: %w", err)
	}
	return r.character()
}
