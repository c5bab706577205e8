package trainer

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Strategy names accepted by the strategy key.
const (
	StrategyClone = "clone"
	StrategyNEAT  = "neat"
)

// MaxFPS caps the frame rate of paced runs.
const MaxFPS = 1000

// Config drives the generation loop. It is read from the [Trainer] section.
type Config struct {
	Strategy         string `ini:"strategy"`
	Generations      int    `ini:"generations"` // 0 runs until solved or cancelled
	Episodes         int    `ini:"episodes"`    // Worlds per generation
	MaxSteps         int    `ini:"max_steps"`
	Seed             int64  `ini:"seed"` // 0 picks a time based seed
	CheckpointEvery  int    `ini:"checkpoint_every"`
	CheckpointPrefix string `ini:"checkpoint_prefix"`
	FPS              int    `ini:"fps"` // 0 runs unpaced

	// Clone strategy.
	PopulationSize    int     `ini:"population_size"`
	MutationRate      float64 `ini:"mutation_rate"`
	KeepFraction      float64 `ini:"keep_fraction"`
	OffspringFraction float64 `ini:"offspring_fraction"`
	Hidden            int     `ini:"hidden"`
}

// DefaultConfig reproduces the classic game: 150 clone-bred fellers with a
// 5-4-2 brain.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyClone,
		Episodes:          1,
		MaxSteps:          10000,
		CheckpointPrefix:  "flappy-checkpoint",
		PopulationSize:    150,
		MutationRate:      0.1,
		KeepFraction:      0.05,
		OffspringFraction: 0.8,
		Hidden:            4,
	}
}

// LoadConfig reads the [Trainer] section of an INI file. Missing keys keep
// their default values.
func LoadConfig(filePath string) (Config, error) {
	cfg := DefaultConfig()
	file, err := ini.Load(filePath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}
	if file.HasSection("Trainer") {
		if err := file.Section("Trainer").MapTo(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to map [Trainer] section: %w", err)
		}
	}
	cfg.Strategy = strings.ToLower(strings.TrimSpace(cfg.Strategy))
	return cfg, cfg.Validate()
}

// Validate rejects settings the loop cannot run with.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyClone, StrategyNEAT:
	default:
		return fmt.Errorf("config error: invalid strategy '%s', must be one of 'clone', 'neat'", c.Strategy)
	}
	if c.Generations < 0 {
		return fmt.Errorf("config error: generations cannot be negative")
	}
	if c.Episodes <= 0 {
		return fmt.Errorf("config error: episodes must be positive")
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("config error: max_steps cannot be negative")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("config error: checkpoint_every cannot be negative")
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		return fmt.Errorf("config error: fps must be between 0 and %d", MaxFPS)
	}
	if c.Strategy != StrategyClone {
		return nil
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("config error: population_size must be positive")
	}
	if c.Hidden <= 0 {
		return fmt.Errorf("config error: hidden must be positive")
	}
	for name, v := range map[string]float64{
		"mutation_rate":      c.MutationRate,
		"keep_fraction":      c.KeepFraction,
		"offspring_fraction": c.OffspringFraction,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config error: %s must be between 0 and 1", name)
		}
	}
	if c.KeepFraction == 0 && c.OffspringFraction > 0 {
		return fmt.Errorf("config error: keep_fraction must be positive when offspring_fraction is")
	}
	return nil
}
