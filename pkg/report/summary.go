package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go-fuzzy-elevator/pkg/elevator"
)

// Acceptance thresholds for a batch of scenarios.
const (
	SuccessErrorMM = 50.0 // final error below this counts as a success
	ApprovalRate   = 80.0 // percent of successful runs needed for approval
)

// Scenario is an origin/target pair.
type Scenario struct {
	Origin string `json:"origin" yaml:"origin"`
	Target string `json:"target" yaml:"target"`
}

func (s Scenario) String() string { return s.Origin + " -> " + s.Target }

// StandardScenarios are the six reference runs.
func StandardScenarios() []Scenario {
	return []Scenario{
		{"terreo", "andar_1"},
		{"andar_1", "terreo"},
		{"terreo", "andar_4"},
		{"andar_4", "terreo"},
		{"terreo", "andar_8"},
		{"andar_8", "terreo"},
	}
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario   string          `json:"scenario"`
	Success    bool            `json:"success"`
	Reason     elevator.Reason `json:"reason"`
	Duration   float64         `json:"duration"`
	FinalErrMM float64         `json:"final_error_mm"`
	PeakPower  float64         `json:"peak_power"`
	Overshoot  float64         `json:"overshoot_percent"`
	Reversals  int             `json:"reversals"`
	Degraded   int             `json:"degraded_ticks"`
}

// Summary aggregates a batch of runs.
type Summary struct {
	GeneratedAt   time.Time `json:"generated_at"`
	Results       []Result  `json:"results"`
	Runs          int       `json:"runs"`
	Successes     int       `json:"successes"`
	SuccessRate   float64   `json:"success_rate"` // percent
	MeanDuration  float64   `json:"mean_duration"`
	MeanErrorMM   float64   `json:"mean_error_mm"`
	MeanPeakPower float64   `json:"mean_peak_power"`
	MaxPower      float64   `json:"max_power"`
	Approved      bool      `json:"approved"`
}

// ResultOf scores one trajectory.
func ResultOf(tr elevator.Trajectory) Result {
	return Result{
		Scenario:   tr.Origin + " -> " + tr.Target,
		Success:    tr.FinalErrMM < SuccessErrorMM,
		Reason:     tr.Reason,
		Duration:   tr.Duration,
		FinalErrMM: tr.FinalErrMM,
		PeakPower:  tr.PeakPower,
		Overshoot:  tr.Overshoot,
		Reversals:  tr.Reversals,
		Degraded:   tr.Degraded,
	}
}

// Summarize scores and aggregates trajectories.
func Summarize(trs []elevator.Trajectory) Summary {
	s := Summary{GeneratedAt: time.Now(), Runs: len(trs)}
	if len(trs) == 0 {
		return s
	}
	var sumDur, sumErr, sumPeak float64
	for _, tr := range trs {
		r := ResultOf(tr)
		s.Results = append(s.Results, r)
		if r.Success {
			s.Successes++
		}
		sumDur += r.Duration
		sumErr += r.FinalErrMM
		sumPeak += r.PeakPower
		s.MaxPower = math.Max(s.MaxPower, r.PeakPower)
	}
	n := float64(len(trs))
	s.SuccessRate = float64(s.Successes) / n * 100
	s.MeanDuration = sumDur / n
	s.MeanErrorMM = sumErr / n
	s.MeanPeakPower = sumPeak / n
	s.Approved = s.SuccessRate >= ApprovalRate
	return s
}

// SaveJSON writes v as indented JSON.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
