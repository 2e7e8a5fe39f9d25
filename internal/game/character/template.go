package character

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AbilityTemplate defines one player ability slot in YAML.
type AbilityTemplate struct {
	Name   string `yaml:"name"`
	APCost int    `yaml:"ap_cost"`
	Damage int    `yaml:"damage"`
	Heal   int    `yaml:"heal"`
	Effect string `yaml:"effect"`
}

// PlayerTemplate defines the player character loaded from YAML.
type PlayerTemplate struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	MaxHP int    `yaml:"max_hp"`
	// StartingHP defaults to MaxHP when omitted.
	StartingHP       *int   `yaml:"starting_hp"`
	MaxAP            int    `yaml:"max_ap"`
	StartingAP       int    `yaml:"starting_ap"`
	BaseAttackDamage int    `yaml:"base_attack_damage"`
	RiposteDamage    int    `yaml:"riposte_damage"`
	APOnParrySuccess int    `yaml:"ap_on_parry_success"`
	APOnParryPerfect int    `yaml:"ap_on_parry_perfect"`
	Effect           string `yaml:"effect"`
	// Abilities are the fixed slots; a null entry is an empty slot.
	Abilities []*AbilityTemplate `yaml:"abilities"`
}

func (t *PlayerTemplate) startingHP() int {
	if t.StartingHP == nil {
		return t.MaxHP
	}
	return *t.StartingHP
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHP >= 1,
// MaxAP is in [0, MaxAPLimit], and no stat or ability value is negative.
func (t *PlayerTemplate) Validate() error {
	var errs []string
	if t.ID == "" {
		return fmt.Errorf("player template: id must not be empty")
	}
	if t.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if t.MaxHP < 1 {
		errs = append(errs, fmt.Sprintf("max_hp must be >= 1, got %d", t.MaxHP))
	}
	if t.StartingHP != nil && *t.StartingHP < 0 {
		errs = append(errs, fmt.Sprintf("starting_hp must be >= 0, got %d", *t.StartingHP))
	}
	if t.MaxAP < 0 || t.MaxAP > MaxAPLimit {
		errs = append(errs, fmt.Sprintf("max_ap must be 0-%d, got %d", MaxAPLimit, t.MaxAP))
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"starting_ap", t.StartingAP},
		{"base_attack_damage", t.BaseAttackDamage},
		{"riposte_damage", t.RiposteDamage},
		{"ap_on_parry_success", t.APOnParrySuccess},
		{"ap_on_parry_perfect", t.APOnParryPerfect},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0, got %d", f.name, f.v))
		}
	}
	for i, a := range t.Abilities {
		if a == nil {
			continue
		}
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("abilities[%d].name must not be empty", i))
		}
		if a.APCost < 0 || a.Damage < 0 || a.Heal < 0 {
			errs = append(errs, fmt.Sprintf("abilities[%d] %q: ap_cost, damage and heal must be >= 0", i, a.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("player template %q: %s", t.ID, strings.Join(errs, "; "))
	}
	return nil
}

// EnemyAbilityTemplate defines one weighted enemy ability in YAML.
type EnemyAbilityTemplate struct {
	Name   string `yaml:"name"`
	Damage int    `yaml:"damage"`
	Weight int    `yaml:"weight"`
	Effect string `yaml:"effect"`
}

// EnemyTemplate defines a reusable enemy archetype loaded from YAML.
type EnemyTemplate struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	MaxHP int    `yaml:"max_hp"`
	// StartingHP defaults to MaxHP when omitted.
	StartingHP       *int                    `yaml:"starting_hp"`
	BaseAttackDamage int                     `yaml:"base_attack_damage"`
	Effect           string                  `yaml:"effect"`
	Abilities        []*EnemyAbilityTemplate `yaml:"abilities"`
}

func (t *EnemyTemplate) startingHP() int {
	if t.StartingHP == nil {
		return t.MaxHP
	}
	return *t.StartingHP
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHP >= 1, and no
// damage or weight is negative.
func (t *EnemyTemplate) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("enemy template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("enemy template %q: name must not be empty", t.ID)
	}
	if t.MaxHP < 1 {
		return fmt.Errorf("enemy template %q: max_hp must be >= 1", t.ID)
	}
	if t.StartingHP != nil && *t.StartingHP < 0 {
		return fmt.Errorf("enemy template %q: starting_hp must be >= 0", t.ID)
	}
	if t.BaseAttackDamage < 0 {
		return fmt.Errorf("enemy template %q: base_attack_damage must be >= 0", t.ID)
	}
	for i, a := range t.Abilities {
		if a == nil {
			continue
		}
		if a.Name == "" {
			return fmt.Errorf("enemy template %q: abilities[%d].name must not be empty", t.ID, i)
		}
		if a.Damage < 0 {
			return fmt.Errorf("enemy template %q: ability %q damage must be >= 0", t.ID, a.Name)
		}
		if a.Weight < 0 {
			return fmt.Errorf("enemy template %q: ability %q weight must be >= 0", t.ID, a.Name)
		}
	}
	return nil
}

// LoadPlayerTemplateFromBytes parses a single player template from raw YAML bytes.
//
// Postcondition: Returns a validated *PlayerTemplate, or an error.
func LoadPlayerTemplateFromBytes(data []byte) (*PlayerTemplate, error) {
	var tmpl PlayerTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing player template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadPlayerTemplate reads and validates the player template at path.
func LoadPlayerTemplate(path string) (*PlayerTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	tmpl, err := LoadPlayerTemplateFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}
	return tmpl, nil
}

// LoadEnemyTemplateFromBytes parses a single enemy template from raw YAML bytes.
//
// Postcondition: Returns a validated *EnemyTemplate, or an error.
func LoadEnemyTemplateFromBytes(data []byte) (*EnemyTemplate, error) {
	var tmpl EnemyTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing enemy template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadEnemyTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded.
func LoadEnemyTemplates(dir string) ([]*EnemyTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading enemy dir %q: %w", dir, err)
	}

	var templates []*EnemyTemplate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadEnemyTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// LoadPlayerTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate failure.
func LoadPlayerTemplates(dir string) ([]*PlayerTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading player dir %q: %w", dir, err)
	}

	var templates []*PlayerTemplate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		tmpl, err := LoadPlayerTemplate(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
