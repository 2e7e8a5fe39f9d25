// Package config provides Viper-based configuration loading for the battle core
// and its simulator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is a zap sink: "stderr", "stdout", or a file path.
	Output string `mapstructure:"output"`
}

// KeyBindings maps player turn actions to logical keys.
type KeyBindings struct {
	Attack string `mapstructure:"attack"`
	// Abilities binds ability slots in order.
	Abilities []string `mapstructure:"abilities"`
	Skip      string   `mapstructure:"skip"`
}

// BattleConfig holds turn controller settings.
type BattleConfig struct {
	// Seed is the encounter seed; 0 draws a fresh seed at battle start.
	Seed int64 `mapstructure:"seed"`
	// EnemyBaseAttackWeight is the selection weight of the enemy base attack.
	EnemyBaseAttackWeight int `mapstructure:"enemy_base_attack_weight"`
	// TelegraphDelay is the pause between the enemy choosing and the parry window opening.
	TelegraphDelay time.Duration `mapstructure:"telegraph_delay"`
	// EffectDelay is the pause after each attack effect before damage lands.
	EffectDelay time.Duration `mapstructure:"effect_delay"`
	// DeathDelay is the pause after an enemy dies before the next wave spawns.
	DeathDelay time.Duration `mapstructure:"death_delay"`
	Keys       KeyBindings   `mapstructure:"keys"`
}

// QTEConfig holds the tunable ranges of the parry window.
type QTEConfig struct {
	// AllowedKeys is the pool the required key is drawn from.
	AllowedKeys       []string      `mapstructure:"allowed_keys"`
	MinDuration       time.Duration `mapstructure:"min_duration"`
	MaxDuration       time.Duration `mapstructure:"max_duration"`
	RandomizeDuration bool          `mapstructure:"randomize_duration"`
	// SuccessHalfMin and SuccessHalfMax bound the success band half-width as a fraction of the track.
	SuccessHalfMin float64 `mapstructure:"success_half_min"`
	SuccessHalfMax float64 `mapstructure:"success_half_max"`
	// PerfectOfSuccessMin and PerfectOfSuccessMax bound the perfect half-width as a fraction of the success half-width.
	PerfectOfSuccessMin float64 `mapstructure:"perfect_of_success_min"`
	PerfectOfSuccessMax float64 `mapstructure:"perfect_of_success_max"`
	RandomizeCenter     bool    `mapstructure:"randomize_center"`
	FixedCenter         float64 `mapstructure:"fixed_center"`
	RandomizeKey        bool    `mapstructure:"randomize_key"`
	// MinWindowStart is the earliest track fraction at which the success band may begin.
	MinWindowStart float64 `mapstructure:"min_window_start"`
}

// ComboConfig holds combo streak settings.
type ComboConfig struct {
	// UnitsPerStage is the damage needed to advance one stage.
	UnitsPerStage int `mapstructure:"units_per_stage"`
}

// SimulationConfig holds headless simulator settings.
type SimulationConfig struct {
	// Tick is the fixed frame duration.
	Tick time.Duration `mapstructure:"tick"`
	// MaxDuration bounds simulated battle time.
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Battle     BattleConfig     `mapstructure:"battle"`
	QTE        QTEConfig        `mapstructure:"qte"`
	Combo      ComboConfig      `mapstructure:"combo"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// Default returns the built-in configuration.
//
// Postcondition: Default().Validate() == nil.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		Battle: BattleConfig{
			EnemyBaseAttackWeight: 50,
			TelegraphDelay:        200 * time.Millisecond,
			EffectDelay:           120 * time.Millisecond,
			DeathDelay:            120 * time.Millisecond,
			Keys: KeyBindings{
				Attack:    "a",
				Abilities: []string{"q", "w"},
				Skip:      "s",
			},
		},
		QTE: QTEConfig{
			AllowedKeys:         []string{"z", "x", "c", "space", "j", "k", "l"},
			MinDuration:         time.Second,
			MaxDuration:         1400 * time.Millisecond,
			RandomizeDuration:   true,
			SuccessHalfMin:      0.08,
			SuccessHalfMax:      0.14,
			PerfectOfSuccessMin: 0.40,
			PerfectOfSuccessMax: 0.55,
			RandomizeCenter:     true,
			FixedCenter:         0.5,
			RandomizeKey:        true,
			MinWindowStart:      0.30,
		},
		Combo: ComboConfig{UnitsPerStage: 2},
		Simulation: SimulationConfig{
			Tick:        16 * time.Millisecond,
			MaxDuration: 10 * time.Minute,
		},
	}
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBattle(c.Battle); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateQTE(c.QTE); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Combo.UnitsPerStage < 1 {
		errs = append(errs, fmt.Sprintf("combo.units_per_stage must be >= 1, got %d", c.Combo.UnitsPerStage))
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if strings.TrimSpace(l.Output) == "" {
		return fmt.Errorf("logging.output must not be empty")
	}
	return nil
}

func validateBattle(b BattleConfig) error {
	var errs []string
	if b.EnemyBaseAttackWeight < 0 {
		errs = append(errs, fmt.Sprintf("battle.enemy_base_attack_weight must be >= 0, got %d", b.EnemyBaseAttackWeight))
	}
	if b.TelegraphDelay < 0 {
		errs = append(errs, "battle.telegraph_delay must not be negative")
	}
	if b.EffectDelay < 0 {
		errs = append(errs, "battle.effect_delay must not be negative")
	}
	if b.DeathDelay < 0 {
		errs = append(errs, "battle.death_delay must not be negative")
	}
	if strings.TrimSpace(b.Keys.Attack) == "" {
		errs = append(errs, "battle.keys.attack must not be empty")
	}
	if strings.TrimSpace(b.Keys.Skip) == "" {
		errs = append(errs, "battle.keys.skip must not be empty")
	}
	seen := map[string]bool{}
	for _, k := range append([]string{b.Keys.Attack, b.Keys.Skip}, b.Keys.Abilities...) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if seen[k] {
			errs = append(errs, fmt.Sprintf("battle.keys: key %q bound more than once", k))
		}
		seen[k] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateQTE(q QTEConfig) error {
	var errs []string
	if q.MinDuration <= 0 {
		errs = append(errs, "qte.min_duration must be > 0")
	}
	if q.MaxDuration < q.MinDuration {
		errs = append(errs, "qte.max_duration must be >= qte.min_duration")
	}
	if q.SuccessHalfMin < 0 || q.SuccessHalfMax > 0.49 || q.SuccessHalfMin > q.SuccessHalfMax {
		errs = append(errs, fmt.Sprintf("qte success half range must satisfy 0 <= min <= max <= 0.49, got [%g, %g]", q.SuccessHalfMin, q.SuccessHalfMax))
	}
	if q.PerfectOfSuccessMin < 0 || q.PerfectOfSuccessMax > 1 || q.PerfectOfSuccessMin > q.PerfectOfSuccessMax {
		errs = append(errs, fmt.Sprintf("qte perfect-of-success range must satisfy 0 <= min <= max <= 1, got [%g, %g]", q.PerfectOfSuccessMin, q.PerfectOfSuccessMax))
	}
	if q.FixedCenter < 0 || q.FixedCenter > 1 {
		errs = append(errs, fmt.Sprintf("qte.fixed_center must be in [0, 1], got %g", q.FixedCenter))
	}
	if q.MinWindowStart < 0 || q.MinWindowStart >= 1 {
		errs = append(errs, fmt.Sprintf("qte.min_window_start must be in [0, 1), got %g", q.MinWindowStart))
	}
	if q.MinWindowStart+2*q.SuccessHalfMax > 1 {
		errs = append(errs, fmt.Sprintf("qte.min_window_start (%g) leaves no room for a success band of half-width %g", q.MinWindowStart, q.SuccessHalfMax))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.Tick <= 0 {
		errs = append(errs, "simulation.tick must be > 0")
	}
	if s.MaxDuration < s.Tick {
		errs = append(errs, "simulation.max_duration must be >= simulation.tick")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RIPOSTE_ prefix
	v.SetEnvPrefix("RIPOSTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("battle.seed", d.Battle.Seed)
	v.SetDefault("battle.enemy_base_attack_weight", d.Battle.EnemyBaseAttackWeight)
	v.SetDefault("battle.telegraph_delay", d.Battle.TelegraphDelay)
	v.SetDefault("battle.effect_delay", d.Battle.EffectDelay)
	v.SetDefault("battle.death_delay", d.Battle.DeathDelay)
	v.SetDefault("battle.keys.attack", d.Battle.Keys.Attack)
	v.SetDefault("battle.keys.abilities", d.Battle.Keys.Abilities)
	v.SetDefault("battle.keys.skip", d.Battle.Keys.Skip)

	v.SetDefault("qte.allowed_keys", d.QTE.AllowedKeys)
	v.SetDefault("qte.min_duration", d.QTE.MinDuration)
	v.SetDefault("qte.max_duration", d.QTE.MaxDuration)
	v.SetDefault("qte.randomize_duration", d.QTE.RandomizeDuration)
	v.SetDefault("qte.success_half_min", d.QTE.SuccessHalfMin)
	v.SetDefault("qte.success_half_max", d.QTE.SuccessHalfMax)
	v.SetDefault("qte.perfect_of_success_min", d.QTE.PerfectOfSuccessMin)
	v.SetDefault("qte.perfect_of_success_max", d.QTE.PerfectOfSuccessMax)
	v.SetDefault("qte.randomize_center", d.QTE.RandomizeCenter)
	v.SetDefault("qte.fixed_center", d.QTE.FixedCenter)
	v.SetDefault("qte.randomize_key", d.QTE.RandomizeKey)
	v.SetDefault("qte.min_window_start", d.QTE.MinWindowStart)

	v.SetDefault("combo.units_per_stage", d.Combo.UnitsPerStage)

	v.SetDefault("simulation.tick", d.Simulation.Tick)
	v.SetDefault("simulation.max_duration", d.Simulation.MaxDuration)
}
