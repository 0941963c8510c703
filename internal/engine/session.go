// Session manager: the multiplayer world state shared by everyone in a campaign.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrPlayerNotInSession = errors.New("player not in any active session")
	ErrInvalidSessionID   = errors.New("session id is required")
)

// Session faction keys. Neutral holds unclaimed systems.
const (
	Empire    = "Empire"
	Rebellion = "Rebellion"
	Corporate = "Corporate"
	Neutral   = "Neutral"
)

// Session event types.
const (
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventPlayerAction = "player_action"
	EventTimePassage  = "time_passage"
)

// Player action types.
const (
	ActionFactionMission = "faction_mission"
	ActionForce          = "force_action"
	ActionExploration    = "exploration"
)

var backgroundFactions = []string{Empire, Rebellion, Corporate}

// Conflict is an ongoing struggle in the session's galaxy.
type Conflict struct {
	Name      string   `json:"name"`
	Factions  []string `json:"factions"`
	Systems   []string `json:"systems"`
	Intensity float64  `json:"intensity"`
	Type      string   `json:"type"`
}

// WorldEvent is an entry of the session's global event log.
type WorldEvent struct {
	Type        string    `json:"type"`
	Action      string    `json:"action,omitempty"`
	ImpactLevel string    `json:"impact_level,omitempty"`
	System      string    `json:"system,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NarrativeEntry is one line of the shared story.
type NarrativeEntry struct {
	Player    string    `json:"player_id"`
	Action    string    `json:"action"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// WorldState is the shared galaxy of one session.
type WorldState struct {
	SessionID       string              `json:"session_id"`
	GalaxyTimestamp string              `json:"galaxy_timestamp"`
	Calendar        Calendar            `json:"calendar"`
	ActiveConflicts []Conflict          `json:"active_conflicts"`
	FactionControl  map[string][]string `json:"faction_control_map"`
	GlobalEvents    []WorldEvent        `json:"global_events"`
	SharedNarrative []NarrativeEntry    `json:"shared_narrative"`
	Master          string              `json:"session_master"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"last_updated"`
}

func (w WorldState) clone() WorldState {
	w.ActiveConflicts = slices.Clone(w.ActiveConflicts)
	for i := range w.ActiveConflicts {
		w.ActiveConflicts[i].Factions = slices.Clone(w.ActiveConflicts[i].Factions)
		w.ActiveConflicts[i].Systems = slices.Clone(w.ActiveConflicts[i].Systems)
	}
	control := make(map[string][]string, len(w.FactionControl))
	for k, v := range w.FactionControl {
		control[k] = slices.Clone(v)
	}
	w.FactionControl = control
	w.GlobalEvents = slices.Clone(w.GlobalEvents)
	w.SharedNarrative = slices.Clone(w.SharedNarrative)
	return w
}

// Item is an inventory entry.
type Item struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Quantity int    `json:"quantity"`
}

// PlayerState is one player's character inside a session.
type PlayerState struct {
	Owner          string         `json:"user_id"`
	SessionID      string         `json:"session_id"`
	CharacterName  string         `json:"character_name"`
	Location       string         `json:"location"`
	ForceAlignment force.Points   `json:"force_alignment"`
	Standings      map[string]int `json:"faction_standings"`
	ActiveQuests   []string       `json:"active_quests"`
	Inventory      []Item         `json:"inventory"`
	Experience     int            `json:"experience_points"`
	JoinedAt       time.Time      `json:"session_join_time"`
	LastActionAt   time.Time      `json:"last_action_time"`
}

func (p PlayerState) clone() PlayerState {
	p.Standings = maps.Clone(p.Standings)
	p.ActiveQuests = slices.Clone(p.ActiveQuests)
	p.Inventory = slices.Clone(p.Inventory)
	return p
}

// CharacterData is what a player brings when joining. Missing fields get defaults.
type CharacterData struct {
	Name             string         `json:"name"`
	StartingLocation string         `json:"starting_location"`
	ForceAlignment   *force.Points  `json:"force_alignment"`
	FactionStandings map[string]int `json:"faction_standings"`
	Inventory        []Item         `json:"inventory"`
	Experience       int            `json:"experience"`
}

// SessionConfig tunes a new session. Year pins the starting era instead of drawing one.
type SessionConfig struct {
	Year *int `json:"year,omitempty"`
}

// SessionEvent is an entry of the per-session broadcast log.
type SessionEvent struct {
	Type            string                     `json:"type"`
	Player          string                     `json:"player_id,omitempty"`
	CharacterName   string                     `json:"character_name,omitempty"`
	Location        string                     `json:"location,omitempty"`
	Action          string                     `json:"action,omitempty"`
	NarrativeImpact string                     `json:"narrative_impact,omitempty"`
	Increment       string                     `json:"increment,omitempty"`
	FactionChanges  map[string]FactionActivity `json:"faction_changes,omitempty"`
	GalaxyEvents    []WorldEvent               `json:"galaxy_events,omitempty"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// PlayerAction is a request to act in the session.
type PlayerAction struct {
	Type        string `json:"type"`
	Faction     string `json:"faction,omitempty"`
	Alignment   string `json:"alignment,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// ActionResult is the direct effect of an action on the acting player.
type ActionResult struct {
	Success          bool           `json:"success"`
	ExperienceGained int            `json:"experience_gained"`
	FactionImpact    map[string]int `json:"faction_impact"`
	ForceImpact      map[string]int `json:"force_impact"`
	LocationChange   string         `json:"location_change,omitempty"`
	Discovery        string         `json:"discovery,omitempty"`
}

// Ripple is a secondary effect felt by another player in the session.
type Ripple struct {
	AffectedPlayer string `json:"affected_player"`
	EffectType     string `json:"effect_type"`
	Magnitude      int    `json:"magnitude"`
	Description    string `json:"description"`
}

// ActionOutcome is everything ProcessPlayerAction reports back.
type ActionOutcome struct {
	Result        ActionResult   `json:"action_result"`
	Ripples       []Ripple       `json:"ripple_effects"`
	Narrative     string         `json:"narrative_update"`
	Player        PlayerState    `json:"player_state"`
	World         WorldState     `json:"updated_world_state"`
	SessionEvents []SessionEvent `json:"session_events"`
}

// FactionActivity is what a faction did in the background while time passed.
type FactionActivity struct {
	Faction        string   `json:"faction"`
	ThreatLevel    float64  `json:"threat_level"`
	Actions        []string `json:"actions"`
	Consequences   []string `json:"consequences"`
	ResourceDelta  int      `json:"resource_changes"`
	TerritoryDelta int      `json:"territory_changes"`
	SystemsGained  []string `json:"systems_gained"`
}

// AdvanceResult reports a time advance.
type AdvanceResult struct {
	NewTimestamp     string                     `json:"new_timestamp"`
	Calendar         Calendar                   `json:"calendar"`
	FactionChanges   map[string]FactionActivity `json:"faction_changes"`
	GalaxyEvents     []WorldEvent               `json:"galaxy_events"`
	NarrativeSummary string                     `json:"narrative_summary"`
}

// GlobalInfluence is how one session leans on the shared galaxy.
type GlobalInfluence struct {
	FactionShift       map[string]float64 `json:"faction_shift"`
	ThreatContribution float64            `json:"threat_contribution"`
	MajorEvents        int                `json:"major_events"`
}

// SyncResult is the read-only view every connected client renders.
type SyncResult struct {
	World           WorldState         `json:"session_state"`
	ActivePlayers   []string           `json:"active_players"`
	Players         []PlayerState      `json:"players"`
	FactionBalance  map[string]float64 `json:"faction_balance"`
	RecentEvents    []SessionEvent     `json:"recent_events"`
	Summary         string             `json:"session_summary"`
	SessionAge      string             `json:"session_age"`
	GlobalInfluence GlobalInfluence    `json:"global_galaxy_influence"`
}

// GlobalEvent is a cross-session landmark.
type GlobalEvent struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// GalaxyState is shared by every session in the process.
type GalaxyState struct {
	MajorEvents      []GlobalEvent  `json:"major_events"`
	PowerBalance     map[string]int `json:"faction_power_balance"`
	ForceNexusEvents []WorldEvent   `json:"force_nexus_events"`
	ThreatLevel      float64        `json:"galactic_threat_level"`
}

// SessionSnapshot is a session in a form the record store can persist.
type SessionSnapshot struct {
	World   WorldState     `json:"world"`
	Players []PlayerState  `json:"players"`
	Events  []SessionEvent `json:"events"`
}

type session struct {
	world   WorldState
	players map[string]*PlayerState
	events  []SessionEvent
}

// SessionManager owns every live session. One per process, shared by reference.
type SessionManager struct {
	Src      entropy.Source
	Turns    *TurnEngine
	Narrator *llm.Narrator
	Now      func() time.Time

	noise opensimplex.Noise

	mu            sync.Mutex
	sessions      map[string]*session
	playerSession map[string]string
	joinOrder     []string
	galaxy        GalaxyState
}

// NewSessionManager wires a manager. seed drives conflict intensity drift.
func NewSessionManager(src entropy.Source, turns *TurnEngine, narrator *llm.Narrator, seed int64) *SessionManager {
	return &SessionManager{
		Src:           src,
		Turns:         turns,
		Narrator:      narrator,
		Now:           time.Now,
		noise:         opensimplex.New(seed),
		sessions:      make(map[string]*session),
		playerSession: make(map[string]string),
		galaxy: GalaxyState{
			MajorEvents:      []GlobalEvent{},
			PowerBalance:     map[string]int{Empire: 40, Rebellion: 30, Corporate: 30},
			ForceNexusEvents: []WorldEvent{},
			ThreatLevel:      0.2,
		},
	}
}

func (m *SessionManager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func initialTerritories() map[string][]string {
	return map[string][]string{
		Empire:    {"Coruscant", "Kuat", "Fondor", "Carida"},
		Rebellion: {"Mon Cala", "Chandrila", "Ryloth", "Onderon"},
		Corporate: {"Sullust", "Sluis Van", "Bothawui", "Malastare"},
		Neutral:   {"Tatooine", "Dagobah", "Hoth", "Kashyyyk"},
	}
}

func (m *SessionManager) initialConflicts() []Conflict {
	return []Conflict{
		{
			Name:      "Corporate Expansion Crisis",
			Factions:  []string{Corporate, Rebellion},
			Systems:   []string{"Sullust", "Bothawui"},
			Intensity: entropy.Uniform(m.Src, 0.3, 0.7),
			Type:      "economic_warfare",
		},
		{
			Name:      "Imperial Remnant Operations",
			Factions:  []string{Empire, Rebellion},
			Systems:   []string{"Endor", "Jakku"},
			Intensity: entropy.Uniform(m.Src, 0.4, 0.8),
			Type:      "military_conflict",
		},
	}
}

// CreateSession opens a new campaign.
func (m *SessionManager) CreateSession(id, master string, cfg SessionConfig) (WorldState, error) {
	if id == "" {
		return WorldState{}, ErrInvalidSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return WorldState{}, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	var cal Calendar
	if cfg.Year != nil {
		cal = Calendar{Year: *cfg.Year, Day: 1}
	} else {
		cal = RandomCalendar(m.Src)
	}
	now := m.now()
	s := &session{
		world: WorldState{
			SessionID:       id,
			GalaxyTimestamp: cal.Label(),
			Calendar:        cal,
			ActiveConflicts: m.initialConflicts(),
			FactionControl:  initialTerritories(),
			GlobalEvents:    []WorldEvent{},
			SharedNarrative: []NarrativeEntry{},
			Master:          master,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		players: make(map[string]*PlayerState),
		events:  []SessionEvent{},
	}
	m.sessions[id] = s
	m.galaxy.MajorEvents = append(m.galaxy.MajorEvents, GlobalEvent{
		Type:        "session_created",
		SessionID:   id,
		Description: fmt.Sprintf("New campaign begins in %s era", s.world.GalaxyTimestamp),
		Timestamp:   now,
	})

	slog.Info("session created", "session", id, "master", master, "era", s.world.GalaxyTimestamp)
	return s.world.clone(), nil
}

// JoinSession places a player's character into a session. Joining a second
// session moves the player.
func (m *SessionManager) JoinSession(id, player string, data CharacterData) (PlayerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return PlayerState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := m.now()
	if prev, ok := m.playerSession[player]; ok && prev != id {
		if old, ok := m.sessions[prev]; ok {
			delete(old.players, player)
			old.events = append(old.events, SessionEvent{Type: EventPlayerLeft, Player: player, Timestamp: now})
			old.world.UpdatedAt = now
		}
	}

	p := &PlayerState{
		Owner:          player,
		SessionID:      id,
		CharacterName:  data.Name,
		Location:       data.StartingLocation,
		ForceAlignment: force.Points{Light: 0, Dark: 0, Balance: 100},
		Standings:      data.FactionStandings,
		ActiveQuests:   []string{},
		Inventory:      slices.Clone(data.Inventory),
		Experience:     data.Experience,
		JoinedAt:       now,
		LastActionAt:   now,
	}
	if p.CharacterName == "" {
		p.CharacterName = "Player_" + player
	}
	if p.Location == "" {
		p.Location = "Coruscant"
	}
	if data.ForceAlignment != nil {
		p.ForceAlignment = *data.ForceAlignment
	}
	if p.Standings == nil {
		p.Standings = map[string]int{Empire: 0, Rebellion: 0, Corporate: 0}
	} else {
		p.Standings = maps.Clone(p.Standings)
	}
	if p.Inventory == nil {
		p.Inventory = []Item{}
	}

	if _, ok := m.playerSession[player]; !ok {
		m.joinOrder = append(m.joinOrder, player)
	}
	m.playerSession[player] = id
	s.players[player] = p

	s.events = append(s.events, SessionEvent{
		Type:            EventPlayerJoined,
		Player:          player,
		CharacterName:   p.CharacterName,
		Location:        p.Location,
		NarrativeImpact: fmt.Sprintf("%s emerges in the galaxy during troubled times", p.CharacterName),
		Timestamp:       now,
	})
	s.world.UpdatedAt = now

	slog.Info("player joined session", "session", id, "player", player, "character", p.CharacterName)
	return p.clone(), nil
}

// LeaveSession drops a player from the session's ripple and broadcast set.
func (m *SessionManager) LeaveSession(player string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.playerSession[player]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotInSession, player)
	}
	delete(m.playerSession, player)
	m.joinOrder = slices.DeleteFunc(m.joinOrder, func(p string) bool { return p == player })
	if s, ok := m.sessions[id]; ok {
		delete(s.players, player)
		s.events = append(s.events, SessionEvent{Type: EventPlayerLeft, Player: player, Timestamp: m.now()})
	}
	return nil
}

// membersLocked lists a session's players in join order. Callers hold m.mu.
func (m *SessionManager) membersLocked(id string) []string {
	var out []string
	for _, p := range m.joinOrder {
		if m.playerSession[p] == id {
			out = append(out, p)
		}
	}
	return out
}

// ProcessPlayerAction executes an action and spreads its effects through the
// session. Narration runs after the state change, outside the lock.
func (m *SessionManager) ProcessPlayerAction(ctx context.Context, player string, action PlayerAction) (ActionOutcome, error) {
	m.mu.Lock()
	id, ok := m.playerSession[player]
	if !ok {
		m.mu.Unlock()
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrPlayerNotInSession, player)
	}
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := m.now()

	result := m.executeAction(action)
	ripples := m.ripples(id, player, result)
	m.updateWorld(s, action, result, now)
	p := s.players[player]
	if p != nil {
		applyToPlayer(p, action, result, now)
	}
	s.events = append(s.events, SessionEvent{
		Type:      EventPlayerAction,
		Player:    player,
		Action:    actionType(action),
		Timestamp: now,
	})

	out := ActionOutcome{
		Result:        result,
		Ripples:       ripples,
		World:         s.world.clone(),
		SessionEvents: lastEvents(s.events, 5),
	}
	if p != nil {
		out.Player = p.clone()
	}
	m.mu.Unlock()

	out.Narrative = m.Narrator.Text(ctx,
		"You are a Star Wars game master narrator. Create engaging narrative descriptions of player actions and their consequences in the galaxy.",
		fmt.Sprintf("Describe the narrative impact of this action in the Star Wars universe: Player %s performed %s with results: %s",
			player, actionType(action), describeResult(result)),
		fmt.Sprintf("The galaxy shifts subtly as %s's actions ripple through the Force and galactic politics.", player))

	m.mu.Lock()
	if cur, ok := m.sessions[id]; ok {
		cur.world.SharedNarrative = append(cur.world.SharedNarrative, NarrativeEntry{
			Player:    player,
			Action:    actionType(action),
			Text:      out.Narrative,
			Timestamp: now,
		})
	}
	m.mu.Unlock()
	return out, nil
}

func actionType(a PlayerAction) string {
	if a.Type == "" {
		return "unknown"
	}
	return a.Type
}

func describeResult(r ActionResult) string {
	parts := []string{fmt.Sprintf("experience +%d", r.ExperienceGained)}
	for _, k := range slices.Sorted(maps.Keys(r.FactionImpact)) {
		parts = append(parts, fmt.Sprintf("%s standing +%d", k, r.FactionImpact[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(r.ForceImpact)) {
		parts = append(parts, fmt.Sprintf("%s side +%d", k, r.ForceImpact[k]))
	}
	if r.LocationChange != "" {
		parts = append(parts, "traveled to "+r.LocationChange)
	}
	return strings.Join(parts, ", ")
}

func (m *SessionManager) executeAction(a PlayerAction) ActionResult {
	r := ActionResult{
		Success:          true,
		ExperienceGained: entropy.IntRange(m.Src, 10, 50),
		FactionImpact:    map[string]int{},
		ForceImpact:      map[string]int{},
	}
	switch a.Type {
	case ActionFactionMission:
		f := a.Faction
		if f == "" {
			f = Neutral
		}
		r.FactionImpact[f] = entropy.IntRange(m.Src, 5, 15)
		r.ExperienceGained = entropy.IntRange(m.Src, 25, 75)
	case ActionForce:
		alignment := a.Alignment
		if alignment == "" {
			alignment = "neutral"
		}
		r.ForceImpact[alignment] = entropy.IntRange(m.Src, 5, 20)
	case ActionExploration:
		dest := a.Destination
		if dest == "" {
			dest = "Unknown System"
		}
		r.LocationChange = dest
		r.Discovery = "New area discovered: " + dest
	}
	return r
}

// ripples gives every other session member one entry per affected dimension.
func (m *SessionManager) ripples(id, actor string, r ActionResult) []Ripple {
	var others []string
	for _, p := range m.membersLocked(id) {
		if p != actor {
			others = append(others, p)
		}
	}
	out := []Ripple{}
	if len(r.FactionImpact) > 0 {
		for _, p := range others {
			out = append(out, Ripple{
				AffectedPlayer: p,
				EffectType:     "faction_reputation_shift",
				Magnitude:      entropy.IntRange(m.Src, 1, 5),
				Description:    fmt.Sprintf("Political ripples from %s's actions affect the galaxy", actor),
			})
		}
	}
	if len(r.ForceImpact) > 0 {
		for _, p := range others {
			out = append(out, Ripple{
				AffectedPlayer: p,
				EffectType:     "force_disturbance",
				Magnitude:      entropy.IntRange(m.Src, 1, 10),
				Description:    fmt.Sprintf("Force disturbance felt across the galaxy from %s's actions", actor),
			})
		}
	}
	return out
}

func (m *SessionManager) updateWorld(s *session, a PlayerAction, r ActionResult, now time.Time) {
	for _, f := range slices.Sorted(maps.Keys(r.FactionImpact)) {
		if r.FactionImpact[f] > 10 {
			held := s.world.FactionControl[f]
			s.world.FactionControl[f] = append(held, fmt.Sprintf("Influenced System %d", len(held)))
		}
	}
	if r.ExperienceGained > 40 {
		s.world.GlobalEvents = append(s.world.GlobalEvents, WorldEvent{
			Type:        "significant_player_action",
			Action:      actionType(a),
			ImpactLevel: "major",
			Timestamp:   now,
		})
	}
	s.world.UpdatedAt = now
}

func applyToPlayer(p *PlayerState, a PlayerAction, r ActionResult, now time.Time) {
	p.Experience += r.ExperienceGained
	if r.LocationChange != "" {
		p.Location = r.LocationChange
	}
	for f, v := range r.FactionImpact {
		p.Standings[f] += v
	}
	for alignment, v := range r.ForceImpact {
		switch force.Alignment(alignment) {
		case force.Light:
			p.ForceAlignment.Light += v
		case force.Dark:
			p.ForceAlignment.Dark += v
		default:
			p.ForceAlignment.Balance += v
		}
	}
	p.ForceAlignment = p.ForceAlignment.Clamped()
	p.LastActionAt = now
}

func lastEvents(events []SessionEvent, n int) []SessionEvent {
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return slices.Clone(events)
}

// SyncSessionState returns the full view of a session without changing it.
func (m *SessionManager) SyncSessionState(ctx context.Context, id string) (SyncResult, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return SyncResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	members := m.membersLocked(id)
	out := SyncResult{
		World:           s.world.clone(),
		ActivePlayers:   members,
		Players:         make([]PlayerState, 0, len(members)),
		FactionBalance:  FactionBalance(s.world.FactionControl),
		RecentEvents:    lastEvents(s.events, 10),
		GlobalInfluence: m.influenceLocked(s),
	}
	if out.ActivePlayers == nil {
		out.ActivePlayers = []string{}
	}
	for _, p := range members {
		if ps := s.players[p]; ps != nil {
			out.Players = append(out.Players, ps.clone())
		}
	}
	recentTypes := make([]string, 0, 5)
	for _, e := range lastEvents(s.events, 5) {
		recentTypes = append(recentTypes, e.Type)
	}
	out.SessionAge = humanize.RelTime(s.world.CreatedAt, m.now(), "ago", "from now")
	m.mu.Unlock()

	ts := out.World.GalaxyTimestamp
	out.Summary = m.Narrator.Text(ctx,
		"You are a Star Wars chronicler. Summarize the current state of a galactic campaign session.",
		fmt.Sprintf("Provide a brief session summary for: Session in %s with recent events: [%s]", ts, strings.Join(recentTypes, ", ")),
		fmt.Sprintf("The galaxy remains in flux during %s, with multiple factions vying for control and the Force guiding destiny.", ts))
	return out, nil
}

// FactionBalance is each faction's share of all controlled systems. Neutral is
// not a contender. The three session factions are always present.
func FactionBalance(control map[string][]string) map[string]float64 {
	balance := map[string]float64{Empire: 0.33, Rebellion: 0.33, Corporate: 0.33}
	total := 0
	for _, systems := range control {
		total += len(systems)
	}
	if total == 0 {
		return balance
	}
	for f, systems := range control {
		if f != Neutral {
			balance[f] = float64(len(systems)) / float64(total)
		}
	}
	return balance
}

// influenceLocked compares the session's balance with the galaxy-wide one.
func (m *SessionManager) influenceLocked(s *session) GlobalInfluence {
	balance := FactionBalance(s.world.FactionControl)
	shift := make(map[string]float64, len(m.galaxy.PowerBalance))
	for f, power := range m.galaxy.PowerBalance {
		shift[f] = balance[f]*100 - float64(power)
	}
	threat := 0.0
	if n := len(s.world.ActiveConflicts); n > 0 {
		for _, c := range s.world.ActiveConflicts {
			threat += c.Intensity
		}
		threat /= float64(n)
	}
	major := 0
	for _, e := range m.galaxy.MajorEvents {
		if e.SessionID == s.world.SessionID {
			major++
		}
	}
	return GlobalInfluence{FactionShift: shift, ThreatContribution: threat, MajorEvents: major}
}

// galaxyEventTemplates drive random events while time passes. {system} is
// replaced with a controlled or neutral system.
var galaxyEventTemplates = []struct {
	kind        string
	description string
}{
	{"pirate_raid", "Pirates raid shipping lanes near {system}"},
	{"trade_boom", "A trade boom brings prosperity to {system}"},
	{"force_nexus", "A Force nexus awakens on {system}"},
	{"imperial_crackdown", "Imperial forces crack down on dissent in {system}"},
	{"rebel_uprising", "Rebel sympathizers rise up on {system}"},
	{"hyperspace_anomaly", "A hyperspace anomaly disrupts travel around {system}"},
}

// AdvanceSessionTime moves a session's clock forward. Each background faction
// takes a turn, random galaxy events fire, and conflict intensities drift.
func (m *SessionManager) AdvanceSessionTime(ctx context.Context, id, increment string) (AdvanceResult, error) {
	if increment == "" {
		increment = "1 day"
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return AdvanceResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := m.now()

	changes := make(map[string]FactionActivity, len(backgroundFactions))
	for _, f := range backgroundFactions {
		changes[f] = m.backgroundActivity(s, f)
	}
	events := m.timePassageEvents(s, now)

	s.world.Calendar = s.world.Calendar.Advance(ParseIncrement(increment))
	s.world.GalaxyTimestamp = s.world.Calendar.Label()
	m.driftConflicts(s)
	s.world.UpdatedAt = now

	s.events = append(s.events, SessionEvent{
		Type:           EventTimePassage,
		Increment:      increment,
		FactionChanges: changes,
		GalaxyEvents:   events,
		Timestamp:      now,
	})

	slog.Debug("session time advanced", "session", id, "increment", increment, "timestamp", s.world.GalaxyTimestamp)
	return AdvanceResult{
		NewTimestamp:     s.world.GalaxyTimestamp,
		Calendar:         s.world.Calendar,
		FactionChanges:   changes,
		GalaxyEvents:     slices.Clone(events),
		NarrativeSummary: fmt.Sprintf("Time passes in the galaxy. %s elapses with significant changes across multiple systems.", increment),
	}, nil
}

// backgroundActivity runs a silent faction turn from the faction's catalog
// treasury. Conflicts the faction is locked in above 0.6 intensity count as
// hostile actions. Territory gains claim neutral systems.
func (m *SessionManager) backgroundActivity(s *session, f string) FactionActivity {
	var snap Snapshot
	turns := m.Turns
	if turns == nil {
		turns = &TurnEngine{Src: m.Src, Now: m.Now}
	}
	if d, ok := turns.Catalog.Lookup(f); ok {
		snap.Resources = d.Resources
	}
	var threats []Event
	for _, c := range s.world.ActiveConflicts {
		if c.Intensity > 0.6 && slices.Contains(c.Factions, f) {
			threats = append(threats, Event{Type: EventHostileAction, Source: c.Name})
		}
	}

	turn := turns.Plan(f, snap, threats)
	act := FactionActivity{
		Faction:        f,
		ThreatLevel:    turn.ThreatLevel,
		Actions:        make([]string, 0, len(turn.Actions)),
		Consequences:   turn.Consequences,
		ResourceDelta:  turn.ResourceDelta,
		TerritoryDelta: turn.TerritoryDelta,
		SystemsGained:  []string{},
	}
	for _, a := range turn.Actions {
		act.Actions = append(act.Actions, a.Type)
	}

	claims := turn.TerritoryDelta / 5
	for ; claims > 0 && len(s.world.FactionControl[Neutral]) > 0; claims-- {
		neutral := s.world.FactionControl[Neutral]
		system := neutral[0]
		s.world.FactionControl[Neutral] = neutral[1:]
		s.world.FactionControl[f] = append(s.world.FactionControl[f], system)
		act.SystemsGained = append(act.SystemsGained, system)
	}
	return act
}

func (m *SessionManager) timePassageEvents(s *session, now time.Time) []WorldEvent {
	var systems []string
	for _, f := range slices.Sorted(maps.Keys(s.world.FactionControl)) {
		systems = append(systems, s.world.FactionControl[f]...)
	}
	n := entropy.IntRange(m.Src, 1, 3)
	out := make([]WorldEvent, 0, n)
	if len(systems) == 0 {
		return out
	}
	for range n {
		tmpl := entropy.Pick(m.Src, galaxyEventTemplates)
		system := entropy.Pick(m.Src, systems)
		e := WorldEvent{
			Type:        tmpl.kind,
			System:      system,
			Description: strings.ReplaceAll(tmpl.description, "{system}", system),
			Timestamp:   now,
		}
		out = append(out, e)
		s.world.GlobalEvents = append(s.world.GlobalEvents, e)
		if e.Type == "force_nexus" {
			m.galaxy.ForceNexusEvents = append(m.galaxy.ForceNexusEvents, e)
		}
	}
	return out
}

// driftConflicts nudges every conflict's intensity along a noise curve and
// pulls the galactic threat level toward this session's mean intensity.
func (m *SessionManager) driftConflicts(s *session) {
	if len(s.world.ActiveConflicts) == 0 {
		return
	}
	t := float64(s.world.Calendar.Elapsed()) / 30
	mean := 0.0
	for i := range s.world.ActiveConflicts {
		c := &s.world.ActiveConflicts[i]
		c.Intensity += 0.1 * m.noise.Eval2(float64(i)*1.7, t)
		c.Intensity = max(0, min(1, c.Intensity))
		mean += c.Intensity
	}
	mean /= float64(len(s.world.ActiveConflicts))
	m.galaxy.ThreatLevel = 0.9*m.galaxy.ThreatLevel + 0.1*mean
}

// Galaxy returns a copy of the cross-session galaxy state.
func (m *SessionManager) Galaxy() GalaxyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.galaxy
	g.MajorEvents = slices.Clone(g.MajorEvents)
	g.PowerBalance = maps.Clone(g.PowerBalance)
	g.ForceNexusEvents = slices.Clone(g.ForceNexusEvents)
	return g
}

// RestoreGalaxy replaces the cross-session galaxy state.
func (m *SessionManager) RestoreGalaxy(g GalaxyState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.MajorEvents = slices.Clone(g.MajorEvents)
	g.PowerBalance = maps.Clone(g.PowerBalance)
	if g.PowerBalance == nil {
		g.PowerBalance = map[string]int{}
	}
	g.ForceNexusEvents = slices.Clone(g.ForceNexusEvents)
	m.galaxy = g
}

// SessionIDs lists live sessions in sorted order.
func (m *SessionManager) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.sessions))
}

// Snapshot captures a session for persistence.
func (m *SessionManager) Snapshot(id string) (SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return SessionSnapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	snap := SessionSnapshot{World: s.world.clone(), Players: []PlayerState{}, Events: slices.Clone(s.events)}
	for _, p := range m.membersLocked(id) {
		if ps := s.players[p]; ps != nil {
			snap.Players = append(snap.Players, ps.clone())
		}
	}
	return snap, nil
}

// Restore loads a persisted session, replacing any live one with the same id.
// Players are re-linked to it in snapshot order.
func (m *SessionManager) Restore(snap SessionSnapshot) error {
	id := snap.World.SessionID
	if id == "" {
		return ErrInvalidSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &session{
		world:   snap.World.clone(),
		players: make(map[string]*PlayerState, len(snap.Players)),
		events:  slices.Clone(snap.Events),
	}
	if s.world.FactionControl == nil {
		s.world.FactionControl = initialTerritories()
	}
	if s.events == nil {
		s.events = []SessionEvent{}
	}
	for p, sid := range m.playerSession {
		if sid == id {
			delete(m.playerSession, p)
		}
	}
	for _, p := range snap.Players {
		ps := p.clone()
		ps.SessionID = id
		if ps.Standings == nil {
			ps.Standings = map[string]int{}
		}
		s.players[p.Owner] = &ps
		if prev, ok := m.playerSession[p.Owner]; ok {
			if old, ok := m.sessions[prev]; ok {
				delete(old.players, p.Owner)
			}
		} else if !slices.Contains(m.joinOrder, p.Owner) {
			m.joinOrder = append(m.joinOrder, p.Owner)
		}
		m.playerSession[p.Owner] = id
	}
	m.sessions[id] = s
	return nil
}
