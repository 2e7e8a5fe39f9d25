// Package encounter loads encounter definitions and resolves them against the
// player and enemy template catalog.
package encounter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/riposte/internal/game/character"
)

// Encounter is a player template paired with an ordered list of enemy waves.
type Encounter struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Player string `yaml:"player"`
	// Waves lists enemy template ids in spawn order; an empty entry is an
	// unpopulated slot.
	Waves []string `yaml:"waves"`
	// Seed overrides battle.seed when non-zero.
	Seed int64 `yaml:"seed"`
}

// Validate checks that the encounter satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Player are non-empty and at least one
// wave slot is listed.
func (e *Encounter) Validate() error {
	var errs []string
	if e.ID == "" {
		return fmt.Errorf("encounter: id must not be empty")
	}
	if e.Player == "" {
		errs = append(errs, "player must not be empty")
	}
	if len(e.Waves) == 0 {
		errs = append(errs, "waves must list at least one slot")
	}
	if len(errs) > 0 {
		return fmt.Errorf("encounter %q: %s", e.ID, strings.Join(errs, "; "))
	}
	return nil
}

// LoadFromBytes parses and validates an encounter from YAML bytes.
//
// Postcondition: Returns a validated *Encounter or a non-nil error.
func LoadFromBytes(data []byte) (*Encounter, error) {
	var e Encounter
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing encounter YAML: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadFile reads and validates the encounter at path.
//
// Precondition: path must point to a YAML encounter file.
// Postcondition: Returns a validated *Encounter or a non-nil error.
func LoadFile(path string) (*Encounter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading encounter file %s: %w", path, err)
	}
	e, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return e, nil
}

// Catalog indexes player and enemy templates by id.
type Catalog struct {
	players map[string]*character.PlayerTemplate
	enemies map[string]*character.EnemyTemplate
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		players: make(map[string]*character.PlayerTemplate),
		enemies: make(map[string]*character.EnemyTemplate),
	}
}

// AddPlayer registers tmpl under tmpl.ID.
//
// Precondition: tmpl must be non-nil.
// Postcondition: Returns an error if the id is already registered.
func (c *Catalog) AddPlayer(tmpl *character.PlayerTemplate) error {
	if _, dup := c.players[tmpl.ID]; dup {
		return fmt.Errorf("duplicate player template %q", tmpl.ID)
	}
	c.players[tmpl.ID] = tmpl
	return nil
}

// AddEnemy registers tmpl under tmpl.ID.
//
// Precondition: tmpl must be non-nil.
// Postcondition: Returns an error if the id is already registered.
func (c *Catalog) AddEnemy(tmpl *character.EnemyTemplate) error {
	if _, dup := c.enemies[tmpl.ID]; dup {
		return fmt.Errorf("duplicate enemy template %q", tmpl.ID)
	}
	c.enemies[tmpl.ID] = tmpl
	return nil
}

// Player returns the player template for id, if registered.
func (c *Catalog) Player(id string) (*character.PlayerTemplate, bool) {
	t, ok := c.players[id]
	return t, ok
}

// Enemy returns the enemy template for id, if registered.
func (c *Catalog) Enemy(id string) (*character.EnemyTemplate, bool) {
	t, ok := c.enemies[id]
	return t, ok
}

// LoadCatalog loads every template under dir/players and dir/enemies.
//
// Precondition: both subdirectories must exist.
// Postcondition: Returns a populated Catalog or the first load or duplicate-id error.
func LoadCatalog(dir string) (*Catalog, error) {
	players, err := character.LoadPlayerTemplates(filepath.Join(dir, "players"))
	if err != nil {
		return nil, err
	}
	enemies, err := character.LoadEnemyTemplates(filepath.Join(dir, "enemies"))
	if err != nil {
		return nil, err
	}

	c := NewCatalog()
	for _, p := range players {
		if err := c.AddPlayer(p); err != nil {
			return nil, err
		}
	}
	for _, e := range enemies {
		if err := c.AddEnemy(e); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Resolve looks up the encounter's templates in c.
//
// Postcondition: waves has one entry per slot, nil for unpopulated slots.
// Returns an error naming every id that is not in the catalog.
func (e *Encounter) Resolve(c *Catalog) (*character.PlayerTemplate, []*character.EnemyTemplate, error) {
	var missing []string
	player, ok := c.Player(e.Player)
	if !ok {
		missing = append(missing, fmt.Sprintf("player %q", e.Player))
	}

	waves := make([]*character.EnemyTemplate, len(e.Waves))
	for i, id := range e.Waves {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		tmpl, ok := c.Enemy(id)
		if !ok {
			missing = append(missing, fmt.Sprintf("waves[%d] enemy %q", i, id))
			continue
		}
		waves[i] = tmpl
	}

	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("encounter %q: unknown %s", e.ID, strings.Join(missing, ", "))
	}
	return player, waves, nil
}
