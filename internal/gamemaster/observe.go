// Package gamemaster implements the autonomous campaign steward.
// It observes one session via the API, decides whether the galaxy needs a
// nudge, and acts through the time-advance and faction-turn endpoints.
package gamemaster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status   GalaxyStatus       `json:"status"`
	Session  engine.SyncResult  `json:"session"`
	Factions []faction.Standing `json:"factions"`
	Events   []engine.Event     `json:"events"`
}

// GalaxyStatus mirrors GET /api/v1/status.
type GalaxyStatus struct {
	Name        string  `json:"name"`
	Sessions    int     `json:"sessions"`
	Factions    int     `json:"factions"`
	ThreatLevel float64 `json:"galactic_threat_level"`
	MajorEvents int     `json:"major_events"`
	Narration   bool    `json:"narration"`
}

// Observer fetches galaxy state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the four endpoints the steward reasons about.
func (o *Observer) Observe(ctx context.Context, sessionID string) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}

	var session struct {
		Sync engine.SyncResult `json:"sync"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/sessions/"+sessionID, &session); err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	snap.Session = session.Sync

	var factions struct {
		Factions []faction.Standing `json:"factions"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/factions", &factions); err != nil {
		return nil, fmt.Errorf("fetch factions: %w", err)
	}
	snap.Factions = factions.Factions

	var events struct {
		Events []engine.Event `json:"events"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/events?limit=10", &events); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	snap.Events = events.Events

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
