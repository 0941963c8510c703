package postgres

import "time"

type standingModel struct {
	Owner           string    `gorm:"column:owner;primaryKey"`
	Faction         string    `gorm:"column:faction_name;primaryKey"`
	ID              string    `gorm:"column:id;not null"`
	Reputation      int       `gorm:"column:reputation;not null"`
	Awareness       int       `gorm:"column:awareness;not null"`
	Resources       int       `gorm:"column:resources;not null"`
	Goals           []byte    `gorm:"column:goals;type:jsonb;not null"`
	Operations      []byte    `gorm:"column:operations;type:jsonb;not null"`
	LastInteraction time.Time `gorm:"column:last_interaction;not null"`
}

func (standingModel) TableName() string { return "faction_standings" }

type profileModel struct {
	Owner                string  `gorm:"column:owner;primaryKey"`
	Light                int     `gorm:"column:light_points;not null"`
	Dark                 int     `gorm:"column:dark_points;not null"`
	Balance              int     `gorm:"column:balance_points;not null"`
	Alignment            string  `gorm:"column:alignment;not null"`
	Sensitivity          float64 `gorm:"column:sensitivity;not null"`
	CorruptionResistance float64 `gorm:"column:corruption_resistance;not null"`
	RedemptionPotential  float64 `gorm:"column:redemption_potential;not null"`
	History              []byte  `gorm:"column:moral_history;type:jsonb;not null"`
	Destiny              []byte  `gorm:"column:destiny_threads;type:jsonb;not null"`
}

func (profileModel) TableName() string { return "force_profiles" }

type questModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Owner       string     `gorm:"column:owner;not null;index:idx_quests_owner,priority:1"`
	Title       string     `gorm:"column:title;not null"`
	Type        string     `gorm:"column:quest_type;not null"`
	Description string     `gorm:"column:description;not null"`
	Objectives  []byte     `gorm:"column:objectives;type:jsonb;not null"`
	Rewards     []byte     `gorm:"column:rewards;type:jsonb;not null"`
	Status      string     `gorm:"column:status;not null"`
	Difficulty  string     `gorm:"column:difficulty;not null"`
	Factions    []byte     `gorm:"column:faction_involvement;type:jsonb;not null"`
	Outcome     []byte     `gorm:"column:outcome;type:jsonb"`
	Details     []byte     `gorm:"column:details;type:jsonb"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_quests_owner,priority:2"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (questModel) TableName() string { return "quests" }

type sessionModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	Master          string    `gorm:"column:master;not null"`
	GalaxyTimestamp string    `gorm:"column:galaxy_timestamp;not null"`
	Snapshot        []byte    `gorm:"column:snapshot;type:jsonb;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (sessionModel) TableName() string { return "sessions" }

type interactionModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Owner      string    `gorm:"column:owner;not null;index:idx_interactions_owner,priority:1"`
	NPCName    string    `gorm:"column:npc_name;not null"`
	NPCType    string    `gorm:"column:npc_type;not null"`
	Context    string    `gorm:"column:interaction_context;not null"`
	Message    string    `gorm:"column:player_message;not null"`
	Response   string    `gorm:"column:npc_response;not null"`
	Sentiment  string    `gorm:"column:sentiment;not null"`
	MemoryTier int       `gorm:"column:memory_tier;not null"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index:idx_interactions_owner,priority:2"`
}

func (interactionModel) TableName() string { return "npc_interactions" }

type eventModel struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Type        string `gorm:"column:type;not null"`
	Source      string `gorm:"column:source;not null"`
	Description string `gorm:"column:description;not null"`
}

func (eventModel) TableName() string { return "galaxy_events" }

type metaModel struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value;not null"`
}

func (metaModel) TableName() string { return "galaxy_meta" }

type canvasModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Canvas    string    `gorm:"column:canvas;not null;index"`
	Owner     string    `gorm:"column:owner;not null;index:idx_canvas_owner,priority:1"`
	Data      []byte    `gorm:"column:data;type:jsonb;not null"`
	Meta      []byte    `gorm:"column:meta;type:jsonb;not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_canvas_owner,priority:2"`
}

func (canvasModel) TableName() string { return "canvas_entries" }

type characterModel struct {
	Owner             string    `gorm:"column:owner;primaryKey"`
	ID                string    `gorm:"column:id;not null;uniqueIndex"`
	Name              string    `gorm:"column:name;not null"`
	Species           string    `gorm:"column:species;not null"`
	Homeworld         string    `gorm:"column:homeworld;not null"`
	Background        string    `gorm:"column:background;not null"`
	Allegiance        string    `gorm:"column:allegiance;not null"`
	ForceSensitive    bool      `gorm:"column:force_sensitive;not null"`
	ForceAlignment    string    `gorm:"column:force_alignment;not null"`
	Appearance        string    `gorm:"column:appearance;not null"`
	Equipment         []byte    `gorm:"column:equipment;type:jsonb;not null"`
	Skills            []byte    `gorm:"column:skills;type:jsonb;not null"`
	PersonalGoal      string    `gorm:"column:personal_goal;not null"`
	Contacts          string    `gorm:"column:contacts;not null"`
	FactionReputation []byte    `gorm:"column:faction_reputation;type:jsonb;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null"`
}

func (characterModel) TableName() string { return "player_characters" }
