package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/canvas"
	"github.com/talgya/galaxy-of-consequence/internal/character"
	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the record store the API loads snapshots from and persists engine
// results to. DB implements it on SQLite; the postgres package on gorm.
type Store interface {
	// ListStandings returns the system defaults followed by the owner's own
	// standings, each group ordered by faction name.
	ListStandings(ctx context.Context, owner string) ([]faction.Standing, error)
	GetStanding(ctx context.Context, owner, factionName string) (faction.Standing, error)
	SaveStanding(ctx context.Context, s faction.Standing) error
	// SeedSystemStandings inserts any system default that is missing.
	SeedSystemStandings(ctx context.Context, defaults []faction.Standing) error

	GetProfile(ctx context.Context, owner string) (force.Profile, error)
	SaveProfile(ctx context.Context, p force.Profile) error

	CreateQuest(ctx context.Context, q quest.Quest) error
	GetQuest(ctx context.Context, id string) (quest.Quest, error)
	UpdateQuest(ctx context.Context, q quest.Quest) error
	ListQuests(ctx context.Context, owner string) ([]quest.Quest, error)

	SaveSession(ctx context.Context, snap engine.SessionSnapshot) error
	LoadSession(ctx context.Context, id string) (engine.SessionSnapshot, error)
	ListSessions(ctx context.Context) ([]string, error)

	AppendInteraction(ctx context.Context, in llm.Interaction) error
	// ListInteractions returns the owner's most recent interactions, oldest
	// first. A non-positive limit returns all of them.
	ListInteractions(ctx context.Context, owner string, limit int) ([]llm.Interaction, error)

	AppendEvents(ctx context.Context, events []engine.Event) error
	RecentEvents(ctx context.Context, limit int) ([]engine.Event, error)

	SaveCanvas(ctx context.Context, e canvas.Entry) error
	GetCanvas(ctx context.Context, id string) (canvas.Entry, error)
	// LatestCanvas returns the most recently saved entry of any kind.
	LatestCanvas(ctx context.Context) (canvas.Entry, error)
	// ListCanvases returns the entries passing f, newest first.
	ListCanvases(ctx context.Context, f canvas.Filter) ([]canvas.Entry, error)

	// SaveCharacter inserts or replaces the owner's single character sheet.
	SaveCharacter(ctx context.Context, c character.Character) error
	GetCharacter(ctx context.Context, owner string) (character.Character, error)

	SaveMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)

	Close() error
}

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
