package elevator

import "time"

// Direction indicates the vertical movement vector.
// Direction은 수직 이동 벡터를 나타냅니다.
type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
	DirNone Direction = "stopped"
)

// Sign returns +1 for up, -1 for down and 0 when stopped.
func (d Direction) Sign() float64 {
	switch d {
	case DirUp:
		return 1
	case DirDown:
		return -1
	}
	return 0
}

// directionOf returns the direction that reduces err, keeping fallback when err is zero.
func directionOf(err float64, fallback Direction) Direction {
	switch {
	case err > 0:
		return DirUp
	case err < 0:
		return DirDown
	}
	return fallback
}

// State is the movement controller state.
// State는 이동 제어기의 상태를 나타냅니다.
type State string

const (
	StateIdle             State = "Idle"
	StateStartup          State = "Startup"    // phase 1: open-loop linear ramp
	StateClosedLoop       State = "ClosedLoop" // phase 2: fuzzy PD control
	StateSettled          State = "Settled"
	StateOscillating      State = "Oscillating"
	StateStalled          State = "Stalled"
	StateTimedOut         State = "TimedOut"
	StateEmergencyStopped State = "EmergencyStopped"
)

// Reason records why a movement terminated.
// Reason은 이동이 종료된 이유를 기록합니다.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonSettled     Reason = "settled"
	ReasonOscillating Reason = "oscillation"
	ReasonStalled     Reason = "stalled"
	ReasonTimedOut    Reason = "timeout"
	ReasonEmergency   Reason = "emergency"
)

// Success reports whether the movement ended at the target: settled,
// oscillating inside the band, or stalled close enough to count as settled.
// Timeout and emergency stop are forced terminations.
func (r Reason) Success() bool {
	switch r {
	case ReasonSettled, ReasonOscillating, ReasonStalled:
		return true
	}
	return false
}

// State maps a termination reason to its terminal state.
func (r Reason) State() State {
	switch r {
	case ReasonSettled:
		return StateSettled
	case ReasonOscillating:
		return StateOscillating
	case ReasonStalled:
		return StateStalled
	case ReasonTimedOut:
		return StateTimedOut
	case ReasonEmergency:
		return StateEmergencyStopped
	}
	return StateIdle
}

// EventType represents the category of a telemetry event.
// EventType는 텔레메트리 이벤트의 카테고리를 나타냅니다.
type EventType string

const (
	EventMoveStarted   EventType = "MoveStarted"
	EventTick          EventType = "Tick"
	EventMoveCompleted EventType = "MoveCompleted"
	EventEmergencyStop EventType = "EmergencyStop"
)

// TelemetryEvent is an immutable snapshot published every tick and on termination.
// TelemetryEvent는 매 틱과 종료 시 게시되는 불변 스냅샷입니다. 코어는 이를 다시 읽지 않습니다.
type TelemetryEvent struct {
	Type           EventType `json:"type"`
	SessionID      string    `json:"session_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Tick           int       `json:"tick"`
	Elapsed        float64   `json:"elapsed"` // seconds since move start
	Position       float64   `json:"current_position"`
	TargetPosition float64   `json:"target_position"`
	CurrentFloor   string    `json:"current_floor"`
	TargetFloor    string    `json:"target_floor,omitempty"`
	MotorPower     float64   `json:"motor_power"` // signed percent
	Error          float64   `json:"error"`       // signed meters, target - position
	Direction      Direction `json:"direction"`
	Phase          State     `json:"phase"`
	IsMoving       bool      `json:"is_moving"`
	Degraded       bool      `json:"degraded,omitempty"`
	Reason         Reason    `json:"reason,omitempty"`
}

// Terminal reports whether the event closes a movement.
func (ev TelemetryEvent) Terminal() bool {
	return ev.Type == EventMoveCompleted || ev.Type == EventEmergencyStop
}
