// Faction catalog: the seed organizations of the galaxy, their defaults and AI personalities.
package faction

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Canonical faction names used by the reputation rules.
const (
	GalacticEmpire  = "Galactic Empire"
	RebelAlliance   = "Rebel Alliance"
	CorporateSector = "Corporate Sector Authority"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Personality drives faction AI decisions during a turn.
type Personality struct {
	Aggression   float64   `yaml:"aggression" json:"aggression"`
	Intelligence float64   `yaml:"intelligence" json:"intelligence"`
	Resources    float64   `yaml:"resources" json:"resources"`
	Ideology     string    `yaml:"ideology" json:"ideology"`
	Priorities   []string  `yaml:"priorities" json:"priorities"`
	Reactions    Reactions `yaml:"reactions" json:"reactions"`
}

// Reactions names the faction's stock response to each kind of situation.
type Reactions struct {
	Threatened  string `yaml:"threatened" json:"threatened"`
	Opportunity string `yaml:"opportunity" json:"opportunity"`
	Diplomatic  string `yaml:"diplomatic" json:"diplomatic"`
}

// Definition is one catalog entry.
type Definition struct {
	Name        string      `yaml:"name"`
	Aliases     []string    `yaml:"aliases"`
	Resources   int         `yaml:"resources"`
	Goals       []string    `yaml:"goals"`
	Operations  []string    `yaml:"operations"`
	Personality Personality `yaml:"personality"`
}

// Catalog is the set of known factions.
type Catalog struct {
	Factions []Definition `yaml:"factions"`
}

// LoadCatalog parses a YAML catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse faction catalog: %w", err)
	}
	if len(c.Factions) == 0 {
		return nil, fmt.Errorf("faction catalog is empty")
	}
	for i, d := range c.Factions {
		if d.Name == "" {
			return nil, fmt.Errorf("faction catalog entry %d has no name", i)
		}
	}
	return &c, nil
}

// DefaultCatalog returns the embedded seed catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds a faction by canonical name or alias.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	for _, d := range c.Factions {
		if d.Name == name {
			return d, true
		}
		for _, a := range d.Aliases {
			if a == name {
				return d, true
			}
		}
	}
	return Definition{}, false
}

// Personality returns the AI personality for a faction. Unknown factions get
// the zero personality, which makes the turn engine fall back to its defaults.
func (c *Catalog) Personality(name string) (Personality, bool) {
	d, ok := c.Lookup(name)
	if !ok {
		return Personality{}, false
	}
	return d.Personality, true
}

// SystemDefaults builds the shared "system" standings users inherit from.
func (c *Catalog) SystemDefaults(now time.Time) []Standing {
	out := make([]Standing, 0, len(c.Factions))
	for _, d := range c.Factions {
		out = append(out, Standing{
			ID:               uuid.NewString(),
			Faction:          d.Name,
			Owner:            SystemOwner,
			Resources:        d.Resources,
			Goals:            append([]string(nil), d.Goals...),
			ActiveOperations: append([]string(nil), d.Operations...),
			LastInteraction:  now,
		})
	}
	return out
}
