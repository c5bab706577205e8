package flappy

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// WorldConfig holds the geometry and physics of the pipe gauntlet.
type WorldConfig struct {
	Width            float64 `ini:"width"`
	Height           float64 `ini:"height"`
	HSpeed           float64 `ini:"hspeed"`           // Pixels the pipes move per step
	FellerMaxSpeed   float64 `ini:"feller_max_speed"` // Vertical speed clamp
	Gravity          float64 `ini:"gravity"`
	Lift             float64 `ini:"lift"`             // Vertical impulse of a flap
	PipeProbability  float64 `ini:"pipe_probability"` // Chance to try spawning a pipe each step
	PipeWidth        float64 `ini:"pipe_width"`
	PipeMinAperture  float64 `ini:"pipe_min_aperture"`
	PipeMaxAperture  float64 `ini:"pipe_max_aperture"`
	PipeMinTop       float64 `ini:"pipe_min_top"`
	PipeMaxTop       float64 `ini:"pipe_max_top"`
	PipeMinDistance  float64 `ini:"pipe_min_distance"`
	FellerX          float64 `ini:"feller_x"`
	FellerRadius     float64 `ini:"feller_radius"`
	StartHeightRatio float64 `ini:"start_height_ratio"`
}

// DefaultWorldConfig returns the classic 800x600 gauntlet.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Width:            800,
		Height:           600,
		HSpeed:           0.8,
		FellerMaxSpeed:   2.0,
		Gravity:          0.02,
		Lift:             2.0,
		PipeProbability:  0.002,
		PipeWidth:        40,
		PipeMinAperture:  80,
		PipeMaxAperture:  160,
		PipeMinTop:       100,
		PipeMaxTop:       200,
		PipeMinDistance:  160,
		FellerX:          40,
		FellerRadius:     20,
		StartHeightRatio: 1.0 / 3.0,
	}
}

// LoadWorldConfig reads the [World] section of an INI file.
// Keys that are absent keep their default values.
func LoadWorldConfig(filePath string) (WorldConfig, error) {
	cfg := DefaultWorldConfig()
	file, err := ini.Load(filePath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}
	if !file.HasSection("World") {
		return cfg, cfg.Validate()
	}
	if err := file.Section("World").MapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to map [World] section: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the simulation cannot run with.
func (c WorldConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config error: width and height must be positive")
	}
	if c.PipeWidth <= 0 {
		return fmt.Errorf("config error: pipe_width must be positive")
	}
	if c.FellerRadius <= 0 {
		return fmt.Errorf("config error: feller_radius must be positive")
	}
	if c.FellerMaxSpeed <= 0 {
		return fmt.Errorf("config error: feller_max_speed must be positive")
	}
	if c.PipeProbability < 0 || c.PipeProbability > 1 {
		return fmt.Errorf("config error: pipe_probability must be between 0 and 1")
	}
	if c.PipeMinAperture > c.PipeMaxAperture {
		return fmt.Errorf("config error: pipe_min_aperture cannot exceed pipe_max_aperture")
	}
	if c.PipeMinTop > c.PipeMaxTop {
		return fmt.Errorf("config error: pipe_min_top cannot exceed pipe_max_top")
	}
	if c.StartHeightRatio < 0 || c.StartHeightRatio > 1 {
		return fmt.Errorf("config error: start_height_ratio must be between 0 and 1")
	}
	return nil
}
