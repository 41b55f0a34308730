package elevator

import (
	"fmt"
	"math"
	"time"
)

// Trajectory is the full record of an offline run.
type Trajectory struct {
	SessionID  string    `json:"session_id"`
	Origin     string    `json:"origin_floor"`
	Target     string    `json:"target_floor"`
	Start      float64   `json:"start_position"`
	Goal       float64   `json:"target_position"`
	Tolerance  float64   `json:"tolerance"`
	Time       []float64 `json:"time"`
	Position   []float64 `json:"position"`
	Error      []float64 `json:"error"`
	MotorPower []float64 `json:"motor_power"`
	DeltaError []float64 `json:"delta_error"`
	Reason     Reason    `json:"reason"`
	Duration   float64   `json:"duration"` // seconds
	FinalError float64   `json:"final_error"`
	FinalErrMM float64   `json:"final_error_mm"`
	Peak       float64   `json:"peak_position"`
	Overshoot  float64   `json:"overshoot_percent"`
	PeakPower  float64   `json:"peak_power"`
	Degraded   int       `json:"degraded_ticks"`
	Reversals  int       `json:"reversals"`
	FinalFloor string    `json:"final_floor"`
	Initial    Direction `json:"initial_direction"`
}

// Len returns the number of recorded ticks.
func (t Trajectory) Len() int { return len(t.Time) }

// Simulate runs a movement from origin to target in a tight loop and
// returns its trajectory. A positive maxTime lowers the timeout ceiling
// for this run.
func Simulate(cfg Config, origin, target string, maxTime time.Duration) (Trajectory, error) {
	if maxTime > 0 && (cfg.Timeout <= 0 || maxTime < cfg.Timeout) {
		cfg.Timeout = maxTime
	}
	m, err := NewMovement(cfg)
	if err != nil {
		return Trajectory{}, err
	}
	return run(m, origin, target)
}

// Simulator runs repeated offline movements over one configuration.
type Simulator struct {
	cfg Config
	m   *Movement
}

// NewSimulator validates cfg once for repeated Run calls.
func NewSimulator(cfg Config) (*Simulator, error) {
	m, err := NewMovement(cfg)
	if err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, m: m}, nil
}

// Movement returns the simulator's state machine.
func (s *Simulator) Movement() *Movement { return s.m }

// Run simulates origin to target.
func (s *Simulator) Run(origin, target string) (Trajectory, error) {
	return run(s.m, origin, target)
}

func run(m *Movement, origin, target string) (Trajectory, error) {
	if err := m.Reset(origin); err != nil {
		return Trajectory{}, fmt.Errorf("origin: %w", err)
	}
	sess, err := m.Begin(target)
	if err != nil {
		return Trajectory{}, err
	}

	tr := Trajectory{
		SessionID: sess.ID,
		Origin:    sess.Origin,
		Target:    sess.Target,
		Start:     sess.OriginPosition,
		Goal:      sess.TargetPosition,
		Tolerance: sess.Tolerance,
		Initial:   sess.Direction,
		Peak:      sess.OriginPosition,
	}

	for m.Moving() {
		sample, reason := m.Step()
		tr.Time = append(tr.Time, sample.Elapsed)
		tr.Position = append(tr.Position, sample.Position)
		tr.Error = append(tr.Error, sample.Error)
		tr.MotorPower = append(tr.MotorPower, sample.MotorPower)
		tr.DeltaError = append(tr.DeltaError, sample.DeltaError)

		if furtherThan(sample.Position, tr.Peak, sess.Direction) {
			tr.Peak = sample.Position
		}
		if p := math.Abs(sample.MotorPower); p > tr.PeakPower {
			tr.PeakPower = p
		}
		if reason != ReasonNone {
			tr.Reason = reason
		}
	}

	final := m.Session()
	tr.Duration = final.Elapsed
	tr.FinalError = final.TargetPosition - m.Position()
	tr.FinalErrMM = math.Abs(tr.FinalError) * 1000
	tr.Degraded = final.DegradedTicks
	tr.Reversals = final.Reversals
	tr.FinalFloor = m.Floor()
	if over := (tr.Peak - tr.Goal) * sess.Direction.Sign(); over > 0 {
		tr.Overshoot = over / sess.Distance * 100
	}
	return tr, nil
}

// furtherThan reports whether pos lies beyond ref in the direction of travel.
func furtherThan(pos, ref float64, dir Direction) bool {
	if dir == DirDown {
		return pos < ref
	}
	return pos > ref
}
