package gamemaster

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	maxRecords    = 10
	promptRecords = 5 // how many recent records to include in the prompt
)

// CycleRecord captures what happened in a single gamemaster cycle.
type CycleRecord struct {
	At            time.Time `json:"at"`
	GalaxyDate    string    `json:"galaxy_date"`
	Action        string    `json:"action"`
	Tension       string    `json:"tension"`
	Players       int       `json:"players"`
	DominantShare float64   `json:"dominant_share"`
	Faction       string    `json:"faction,omitempty"`
	Increment     string    `json:"increment,omitempty"`
	Rationale     string    `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent cycle records persisted to a JSON file.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file. Returns empty memory if it is missing or corrupt.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("gamemaster memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	mem.path = path
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m == nil || m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal gamemaster memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write gamemaster memory", "path", m.path, "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// FormatForPrompt summarizes the last few cycles for the decision prompt.
func (m *CycleMemory) FormatForPrompt() string {
	if m == nil || len(m.Records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Recent Gamemaster Cycles\n")

	start := max(0, len(m.Records)-promptRecords)
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "- %s: action=%s, tension=%s, players=%d, dominant=%.2f",
			r.GalaxyDate, r.Action, r.Tension, r.Players, r.DominantShare)
		if r.Faction != "" {
			fmt.Fprintf(&b, ", faction=%s", r.Faction)
		}
		if r.Increment != "" {
			fmt.Fprintf(&b, ", increment=%s", r.Increment)
		}
		b.WriteString("\n")
	}
	return b.String()
}
