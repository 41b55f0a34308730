package elevator

import (
	"errors"
	"fmt"
	"math"

	"go-fuzzy-elevator/pkg/fuzzy"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

var (
	// ErrAlreadyMoving is returned when a move is requested during an active movement.
	ErrAlreadyMoving = errors.New("elevator already moving")
	// ErrAlreadyAtFloor is returned when the target lies within the deadband.
	ErrAlreadyAtFloor = errors.New("elevator already at floor")
)

// Session describes one movement from acceptance to termination.
// Session은 이동 요청 수락부터 종료까지의 한 번의 이동을 나타냅니다.
type Session struct {
	ID             string    `json:"session_id"`
	Origin         string    `json:"origin_floor"`
	Target         string    `json:"target_floor"`
	OriginPosition float64   `json:"origin_position"`
	TargetPosition float64   `json:"target_position"`
	Distance       float64   `json:"distance"`
	Tolerance      float64   `json:"tolerance"`
	Direction      Direction `json:"direction"`
	PrevError      float64   `json:"previous_error"` // magnitude of the last pre-advance error
	Tick           int       `json:"tick"`
	Elapsed        float64   `json:"elapsed"`
	Reversals      int       `json:"reversals"`
	Nudges         int       `json:"nudges"`
	DegradedTicks  int       `json:"degraded_ticks"`
	Reason         Reason    `json:"reason,omitempty"`
}

// Sample is the record of a single tick. Error is measured before the
// plant advance and Position after it.
type Sample struct {
	Tick       int
	Elapsed    float64 // seconds, Tick * period
	Phase      State
	Position   float64
	Error      float64 // signed, target - position
	DeltaError float64 // |error| - previous |error|
	MotorPower float64 // signed percent
	Direction  Direction
	Degraded   bool
	Reversed   bool // direction flipped this tick (overshoot correction)
	Nudged     bool // stall correction applied after the advance
}

// Movement is the per-movement state machine. It owns the car position and
// the active session.
// No mutex, No channel, No time. 시간은 틱 번호로만 전진합니다.
type Movement struct {
	cfg    Config
	floors *FloorTable
	engine *fuzzy.Engine
	plant  Plant

	period float64 // seconds
	ramp   float64 // seconds

	position float64
	floor    string
	state    State
	session  Session

	history     []float64 // rolling post-advance positions
	settleCount int
}

// NewMovement validates cfg and places the car at cfg.InitialFloor.
// The configuration is deep-copied so later edits to the caller's slices
// do not reach a running controller.
func NewMovement(config Config) (*Movement, error) {
	var cfg Config
	if err := deepcopy.Copy(&cfg, &config); err != nil {
		return nil, fmt.Errorf("copy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	floors, err := NewFloorTable(cfg.Floors)
	if err != nil {
		return nil, err
	}
	engine, err := fuzzy.New(cfg.Fuzzy)
	if err != nil {
		return nil, fmt.Errorf("invalid fuzzy rule base: %w", err)
	}
	start, err := floors.Lookup(cfg.InitialFloor)
	if err != nil {
		return nil, fmt.Errorf("initial floor: %w", err)
	}

	return &Movement{
		cfg:      cfg,
		floors:   floors,
		engine:   engine,
		plant:    cfg.plant(),
		period:   cfg.SamplingPeriod.Seconds(),
		ramp:     cfg.Startup.Duration.Seconds(),
		position: start.Position,
		floor:    start.ID,
		state:    StateIdle,
		history:  make([]float64, 0, cfg.Detection.HistorySize),
	}, nil
}

// Floors returns the building layout.
func (m *Movement) Floors() *FloorTable { return m.floors }

// Engine returns the fuzzy engine used in the closed-loop phase.
func (m *Movement) Engine() *fuzzy.Engine { return m.engine }

// Position returns the car position in meters.
func (m *Movement) Position() float64 { return m.position }

// Floor returns the nearest floor as of the last termination or reset.
func (m *Movement) Floor() string { return m.floor }

// State returns the controller state.
func (m *Movement) State() State { return m.state }

// Moving reports whether a session is active.
func (m *Movement) Moving() bool {
	return m.state == StateStartup || m.state == StateClosedLoop
}

// Session returns a copy of the current or most recent session.
func (m *Movement) Session() Session { return m.session }

// Reset places an idle car at a floor.
// Reset은 정지 상태의 엘리베이터를 지정한 층으로 옮깁니다.
func (m *Movement) Reset(floorID string) error {
	if m.Moving() {
		return ErrAlreadyMoving
	}
	f, err := m.floors.Lookup(floorID)
	if err != nil {
		return err
	}
	m.position = f.Position
	m.floor = f.ID
	m.state = StateIdle
	m.session = Session{}
	return nil
}

// Begin starts a movement toward targetID.
// 거부된 요청은 상태를 변경하지 않습니다.
func (m *Movement) Begin(targetID string) (Session, error) {
	// [Guard Clause] 이동 중에는 새 요청을 받지 않음
	if m.Moving() {
		return Session{}, ErrAlreadyMoving
	}
	target, err := m.floors.Lookup(targetID)
	if err != nil {
		return Session{}, err
	}
	offset := target.Position - m.position
	distance := math.Abs(offset)
	// [Guard Clause] 데드밴드 안이면 이미 도착한 것으로 간주
	if distance <= m.cfg.Deadband {
		return Session{}, fmt.Errorf("%w: %s (%.3fm away)", ErrAlreadyAtFloor, targetID, distance)
	}

	m.session = Session{
		ID:             uuid.New().String(),
		Origin:         m.floor,
		Target:         target.ID,
		OriginPosition: m.position,
		TargetPosition: target.Position,
		Distance:       distance,
		Tolerance:      m.cfg.Tolerance.For(distance),
		Direction:      directionOf(offset, DirUp),
		PrevError:      distance,
	}
	m.history = m.history[:0]
	m.settleCount = 0
	m.state = StateStartup
	return m.session, nil
}

// Step runs one control tick. A non-empty Reason means the movement
// terminated on this tick. Calling Step while idle returns a zero Sample.
func (m *Movement) Step() (Sample, Reason) {
	if !m.Moving() {
		return Sample{}, ReasonNone
	}
	s := &m.session

	elapsed := float64(s.Tick) * m.period
	err := s.TargetPosition - m.position
	absErr := math.Abs(err)
	sample := Sample{
		Tick:       s.Tick,
		Elapsed:    elapsed,
		Error:      err,
		DeltaError: absErr - s.PrevError,
	}

	var magnitude float64
	closedLoop := elapsed > m.ramp
	if !closedLoop {
		// Phase 1: open-loop linear ramp, direction fixed at move start.
		m.state = StateStartup
		if m.ramp > 0 {
			magnitude = m.cfg.Startup.MaxPower * elapsed / m.ramp
		}
	} else {
		// Phase 2: fuzzy PD.
		m.state = StateClosedLoop
		res := m.engine.Decide(absErr, sample.DeltaError)
		magnitude = res.Power
		if res.Degraded {
			sample.Degraded = true
			s.DegradedTicks++
		}
		if dir := directionOf(err, s.Direction); dir != s.Direction {
			sample.Reversed = true
			s.Reversals++
			s.Direction = dir
		}
	}

	if absErr <= s.Tolerance {
		magnitude = 0
	} else if closedLoop && magnitude < m.cfg.MinPower {
		magnitude = m.cfg.MinPower
	}

	power := s.Direction.Sign() * magnitude
	m.position = m.plant.Advance(m.position, power, s.Direction, elapsed)
	m.record(m.position)

	s.Tick++
	s.Elapsed = float64(s.Tick) * m.period
	reason, nudged := m.evaluate()
	sample.Nudged = nudged
	s.PrevError = absErr

	sample.Phase = m.state
	sample.Position = m.position
	sample.MotorPower = power
	sample.Direction = s.Direction

	if reason != ReasonNone {
		m.finish(reason)
	}
	return sample, reason
}

// Stop terminates an active movement with reason. It reports whether a
// movement was active.
func (m *Movement) Stop(reason Reason) bool {
	if !m.Moving() {
		return false
	}
	m.finish(reason)
	return true
}

// record appends a position to the rolling history.
func (m *Movement) record(pos float64) {
	if len(m.history) == m.cfg.Detection.HistorySize {
		copy(m.history, m.history[1:])
		m.history = m.history[:len(m.history)-1]
	}
	m.history = append(m.history, pos)
}

// evaluate applies the termination checks to the post-advance error, in order:
// settled, oscillating, stalled, timed out. A stall far from the target is
// corrected in place and reported through nudged.
func (m *Movement) evaluate() (reason Reason, nudged bool) {
	s := &m.session
	d := m.cfg.Detection
	tol := s.Tolerance
	err := s.TargetPosition - m.position
	absErr := math.Abs(err)

	if absErr <= tol {
		m.settleCount++
	} else {
		m.settleCount = 0
	}
	if m.settleCount >= d.SettleTicks {
		return ReasonSettled, false
	}

	if n := len(m.history); n >= d.OscillationWindow {
		lo, hi := span(m.history[n-d.OscillationWindow:])
		if hi-lo < d.OscillationSpan*tol && absErr < d.OscillationBand*tol {
			return ReasonOscillating, false
		}
	}

	if n := len(m.history); n >= d.StallWindow {
		moved := math.Abs(m.history[n-1] - m.history[n-d.StallWindow])
		if moved < d.StallMinMovement && absErr > tol {
			// 목표 근처의 정체는 도착으로 간주
			if absErr <= d.StallSettleBand*tol {
				return ReasonStalled, false
			}
			// 정체 보정: 목표 방향으로 살짝 밀어 주고 기록을 비움
			m.position += math.Copysign(tol*d.NudgeFactor, err)
			m.history = m.history[:0]
			s.Nudges++
			nudged = true
		}
	}

	if m.cfg.MaxTicks > 0 && s.Tick >= m.cfg.MaxTicks {
		return ReasonTimedOut, nudged
	}
	if m.cfg.Timeout > 0 && s.Elapsed >= m.cfg.Timeout.Seconds() {
		return ReasonTimedOut, nudged
	}
	return ReasonNone, nudged
}

// finish closes the session and returns the controller to Idle.
// An emergency stop also clears the target.
func (m *Movement) finish(reason Reason) {
	m.session.Reason = reason
	m.session.Direction = DirNone
	if reason == ReasonEmergency {
		m.session.Target = ""
		m.session.TargetPosition = 0
	}
	m.floor = m.floors.Nearest(m.position).ID
	m.state = StateIdle
	m.history = m.history[:0]
	m.settleCount = 0
}

func span(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
