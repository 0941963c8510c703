// Package canvas holds the free-form records companion clients save: Force
// HUDs, session summaries, visions. Data and meta are opaque JSON; only a few
// meta keys are understood, for filtering.
package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Canvas kinds the server writes itself.
const (
	ForceVision = "Force_Vision"
)

// Meta keys the log and history filters look at.
const (
	MetaAlignment = "force_alignment"
	MetaCampaign  = "campaign"
)

// ErrInvalid is returned for an entry missing a required field.
var ErrInvalid = errors.New("invalid canvas")

// Entry is one saved canvas.
type Entry struct {
	ID        string          `json:"id"`
	Canvas    string          `json:"canvas"`
	Owner     string          `json:"user"`
	Data      json.RawMessage `json:"data"`
	Meta      json.RawMessage `json:"meta"`
	Timestamp time.Time       `json:"timestamp"`
}

// New validates and stamps an entry. Data may be any JSON value; meta must be
// a JSON object.
func New(kind, owner string, data, meta json.RawMessage, now time.Time) (Entry, error) {
	switch {
	case kind == "":
		return Entry{}, fmt.Errorf("%w: missing canvas", ErrInvalid)
	case owner == "":
		return Entry{}, fmt.Errorf("%w: missing user", ErrInvalid)
	case len(data) == 0 || !json.Valid(data):
		return Entry{}, fmt.Errorf("%w: data must be JSON", ErrInvalid)
	}
	var m map[string]any
	if len(meta) == 0 || json.Unmarshal(meta, &m) != nil || m == nil {
		return Entry{}, fmt.Errorf("%w: meta must be a JSON object", ErrInvalid)
	}
	return Entry{
		ID:        uuid.NewString(),
		Canvas:    kind,
		Owner:     owner,
		Data:      data,
		Meta:      meta,
		Timestamp: now.UTC(),
	}, nil
}

// Filter narrows a listing. Empty fields match everything; each Meta pair must
// equal the entry's meta value of the same key.
type Filter struct {
	Canvas string
	Owner  string
	Meta   map[string]string
}

// MetaValue reads a scalar meta key as a string.
func (e Entry) MetaValue(key string) (string, bool) {
	var m map[string]any
	if err := json.Unmarshal(e.Meta, &m); err != nil {
		return "", false
	}
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch v := v.(type) {
	case string:
		return v, true
	case float64, bool:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.Canvas != "" && e.Canvas != f.Canvas {
		return false
	}
	if f.Owner != "" && e.Owner != f.Owner {
		return false
	}
	for k, want := range f.Meta {
		if want == "" {
			continue
		}
		if got, ok := e.MetaValue(k); !ok || got != want {
			return false
		}
	}
	return true
}

// Select keeps the entries that pass f, preserving order.
func Select(entries []Entry, f Filter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
