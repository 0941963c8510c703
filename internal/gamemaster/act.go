package gamemaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
)

// Result summarizes what an action did to the galaxy.
type Result struct {
	Summary string
	Date    string
}

// Actor executes decisions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Act carries out a decision against one session. ActionNone is a no-op.
func (a *Actor) Act(ctx context.Context, sessionID string, d *Decision) (*Result, error) {
	switch d.Action {
	case ActionNone:
		return &Result{Summary: "no action"}, nil

	case ActionAdvance:
		var resp struct {
			Advance engine.AdvanceResult `json:"advance"`
		}
		body := map[string]string{"time_increment": d.Increment}
		if err := a.post(ctx, "/api/v1/sessions/"+sessionID+"/advance", body, &resp); err != nil {
			return nil, err
		}
		return &Result{Summary: resp.Advance.NarrativeSummary, Date: resp.Advance.NewTimestamp}, nil

	case ActionFactionTurn:
		var resp struct {
			Turn engine.TurnResult `json:"turn"`
		}
		if err := a.post(ctx, "/api/v1/factions/turn", map[string]string{"faction": d.Faction}, &resp); err != nil {
			return nil, err
		}
		summary := fmt.Sprintf("%s took %d actions", resp.Turn.Faction, len(resp.Turn.Actions))
		if len(resp.Turn.Consequences) > 0 {
			summary = strings.Join(resp.Turn.Consequences, "; ")
		}
		return &Result{Summary: summary}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
}

func (a *Actor) post(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
