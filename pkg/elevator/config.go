package elevator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go-fuzzy-elevator/pkg/fuzzy"

	"gopkg.in/yaml.v3"
)

// StartupConfig describes the open-loop linear ramp.
type StartupConfig struct {
	Duration time.Duration `yaml:"duration"`  // 기동 램프 시간
	MaxPower float64       `yaml:"max_power"` // 램프 종료 시점의 출력 %
}

// PlantConfig holds both coefficient pairs of the plant recursion.
type PlantConfig struct {
	Startup Coefficients `yaml:"startup"`
	Steady  Coefficients `yaml:"steady"`
}

// ToleranceConfig selects the stopping tolerance by travel distance.
// ToleranceConfig는 이동 거리에 따라 정지 허용 오차를 결정합니다.
type ToleranceConfig struct {
	Short      float64 `yaml:"short"`       // distance < MediumFrom
	Medium     float64 `yaml:"medium"`      // MediumFrom <= distance < LongFrom
	Long       float64 `yaml:"long"`        // distance >= LongFrom
	MediumFrom float64 `yaml:"medium_from"` // meters
	LongFrom   float64 `yaml:"long_from"`   // meters
}

// For returns the tolerance for a move of the given distance.
func (t ToleranceConfig) For(distance float64) float64 {
	switch {
	case distance >= t.LongFrom:
		return t.Long
	case distance >= t.MediumFrom:
		return t.Medium
	default:
		return t.Short
	}
}

// DetectionConfig tunes the settle, oscillation and stall heuristics.
// Factors are multiples of the active tolerance.
type DetectionConfig struct {
	SettleTicks       int     `yaml:"settle_ticks"`
	HistorySize       int     `yaml:"history_size"`
	OscillationWindow int     `yaml:"oscillation_window"`
	OscillationSpan   float64 `yaml:"oscillation_span"`  // span < factor * tol
	OscillationBand   float64 `yaml:"oscillation_band"`  // |error| < factor * tol
	StallWindow       int     `yaml:"stall_window"`
	StallMinMovement  float64 `yaml:"stall_min_movement"` // meters over the window
	StallSettleBand   float64 `yaml:"stall_settle_band"`  // |error| <= factor * tol stops
	NudgeFactor       float64 `yaml:"nudge_factor"`       // nudge = factor * tol
}

// Config holds immutable configuration parameters.
// Config는 시스템 시작 시 설정되며, 런타임 중에 변경되지 않습니다.
type Config struct {
	ID             string          `yaml:"id"`
	Floors         []Floor         `yaml:"floors"`
	InitialFloor   string          `yaml:"initial_floor"`
	SamplingPeriod time.Duration   `yaml:"sampling_period"` // 샘플링 주기
	Startup        StartupConfig   `yaml:"startup"`
	Plant          PlantConfig     `yaml:"plant"`
	Tolerance      ToleranceConfig `yaml:"tolerance"`
	Detection      DetectionConfig `yaml:"detection"`
	MinPower       float64         `yaml:"min_power"` // 폐루프 최소 출력 %
	Deadband       float64         `yaml:"deadband"`  // 이미 도착한 것으로 보는 거리 (m)
	Timeout        time.Duration   `yaml:"timeout"`
	MaxTicks       int             `yaml:"max_ticks"`
	EventBuffer    int             `yaml:"event_buffer"`
	Fuzzy          fuzzy.RuleBase  `yaml:"fuzzy"`
}

// DefaultConfig returns the tuned configuration for the reference building.
func DefaultConfig() Config {
	return Config{
		ID:             "elevator-1",
		Floors:         DefaultFloors(),
		InitialFloor:   "terreo",
		SamplingPeriod: 200 * time.Millisecond,
		Startup: StartupConfig{
			Duration: 2 * time.Second,
			MaxPower: 31.5,
		},
		Plant: PlantConfig{
			Startup: Coefficients{Decay: 0.9995, Gain: 0.2},
			Steady:  Coefficients{Decay: 0.9998, Gain: 0.251287},
		},
		Tolerance: ToleranceConfig{
			Short:      0.10,
			Medium:     0.20,
			Long:       0.30,
			MediumFrom: 15,
			LongFrom:   20,
		},
		Detection: DetectionConfig{
			SettleTicks:       3,
			HistorySize:       10,
			OscillationWindow: 6,
			OscillationSpan:   2,
			OscillationBand:   1.5,
			StallWindow:       8,
			StallMinMovement:  0.001,
			StallSettleBand:   3,
			NudgeFactor:       1.0 / 3,
		},
		MinPower:    3,
		Deadband:    0.1,
		Timeout:     60 * time.Second,
		MaxTicks:    300,
		EventBuffer: 1000,
		Fuzzy:       fuzzy.DefaultRuleBase(),
	}
}

// LoadConfig decodes a YAML file over DefaultConfig and validates the result.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the controller cannot run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.SamplingPeriod > 0, "sampling_period must be positive, got %s", c.SamplingPeriod)
	check(c.Startup.Duration >= 0, "startup.duration must not be negative")
	check(c.Startup.MaxPower >= 0 && c.Startup.MaxPower <= 100, "startup.max_power must be in [0, 100], got %g", c.Startup.MaxPower)
	for name, co := range map[string]Coefficients{"startup": c.Plant.Startup, "steady": c.Plant.Steady} {
		check(co.Decay > 0 && co.Decay <= 1, "plant.%s.decay must be in (0, 1], got %g", name, co.Decay)
		check(co.Gain > 0, "plant.%s.gain must be positive, got %g", name, co.Gain)
	}

	t := c.Tolerance
	check(t.Short > 0 && t.Short <= t.Medium && t.Medium <= t.Long, "tolerance bands must be positive and non-decreasing")
	check(t.MediumFrom >= 0 && t.MediumFrom <= t.LongFrom, "tolerance band limits must satisfy 0 <= medium_from <= long_from")

	d := c.Detection
	check(d.SettleTicks >= 1, "detection.settle_ticks must be >= 1")
	check(d.OscillationWindow >= 2 && d.OscillationWindow <= d.HistorySize, "detection.oscillation_window must be in [2, history_size]")
	check(d.StallWindow >= 2 && d.StallWindow <= d.HistorySize, "detection.stall_window must be in [2, history_size]")
	check(d.StallSettleBand >= 1, "detection.stall_settle_band must be >= 1")

	check(c.MinPower >= 0 && c.MinPower <= 100, "min_power must be in [0, 100]")
	check(c.Deadband >= 0, "deadband must not be negative")
	check(c.Timeout > 0 || c.MaxTicks > 0, "at least one of timeout and max_ticks must be positive")
	check(c.EventBuffer > 0, "event_buffer must be positive")

	if _, err := NewFloorTable(c.Floors); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// plant builds the plant model the configuration describes.
func (c Config) plant() Plant {
	return Plant{
		Ramp:    c.Startup.Duration.Seconds(),
		Startup: c.Plant.Startup,
		Steady:  c.Plant.Steady,
	}
}
