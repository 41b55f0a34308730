// Package elevator implements a fuzzy PD position controller for a simulated
// elevator car.
// 이 패키지는 퍼지 PD 제어기로 엘리베이터 카의 위치를 제어하는 시뮬레이터를 구현합니다.
// Movement가 순수 상태 머신이고, Elevator는 이를 실시간 틱 루프로 구동합니다.
package elevator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Status is a point-in-time snapshot of the elevator.
// Status는 엘리베이터의 전체 상태 스냅샷입니다.
type Status struct {
	ID             string    `json:"id"`
	Position       float64   `json:"current_position"`
	CurrentFloor   string    `json:"current_floor"`
	TargetFloor    string    `json:"target_floor,omitempty"`
	TargetPosition float64   `json:"target_position"`
	Direction      Direction `json:"direction"`
	Phase          State     `json:"phase"`
	IsMoving       bool      `json:"is_moving"`
	MotorPower     float64   `json:"motor_power"`
	Error          float64   `json:"error"`
	Session        *Session  `json:"session,omitempty"`
	DroppedEvents  uint64    `json:"dropped_events"`
	Floors         []Floor   `json:"floors"`
}

// Elevator drives a Movement in real time.
// Elevator의 모든 상태 변경은 Mutex로 보호되며, 변경 사항은 Event 채널로 전파됩니다.
type Elevator struct {
	mu     sync.RWMutex
	Config Config

	// --- State (가변 상태) ---
	movement *Movement
	last     Sample // 마지막 틱 기록

	// --- Observability ---
	logger            *slog.Logger
	eventCh           chan TelemetryEvent // 외부 통신용 이벤트 채널
	droppedEventCount uint64              // 버퍼 오버플로우로 버려진 이벤트 수
}

// New initializes a new Elevator instance with strict validation.
// 잘못된 설정이 감지되면 즉시 에러를 반환합니다 (Fail Fast).
func New(config Config) (*Elevator, error) {
	movement, err := NewMovement(config)
	if err != nil {
		return nil, err
	}

	e := &Elevator{
		Config:   movement.cfg,
		movement: movement,
		eventCh:  make(chan TelemetryEvent, config.EventBuffer),
		logger:   slog.Default().With("id", config.ID),
	}

	e.logger.Info("Elevator initialized",
		"floors", len(config.Floors),
		"init_floor", config.InitialFloor,
		"period", config.SamplingPeriod,
	)
	return e, nil
}

// Floors returns the building layout.
func (e *Elevator) Floors() *FloorTable {
	return e.movement.Floors()
}

// Position returns the current car position safely.
func (e *Elevator) Position() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.movement.Position()
}

// IsMoving reports whether a movement is active.
func (e *Elevator) IsMoving() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.movement.Moving()
}

// DroppedEventCount returns diagnostic metric for channel health.
// DroppedEventCount는 버퍼 오버플로우로 버려진 이벤트 수를 안전하게 반환합니다.
func (e *Elevator) DroppedEventCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.droppedEventCount
}

// Status returns a complete snapshot of the elevator.
func (e *Elevator) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := e.movement
	st := Status{
		ID:            e.Config.ID,
		Position:      m.Position(),
		CurrentFloor:  m.Floors().Nearest(m.Position()).ID,
		Direction:     DirNone,
		Phase:         m.State(),
		IsMoving:      m.Moving(),
		DroppedEvents: e.droppedEventCount,
		Floors:        m.Floors().Floors(),
	}
	if sess := m.Session(); sess.ID != "" {
		st.Session = &sess
		// 비상 정지 후에는 목표가 비워짐
		if sess.Target != "" {
			st.TargetFloor = sess.Target
			st.TargetPosition = sess.TargetPosition
			st.Error = sess.TargetPosition - m.Position()
		}
	}
	if st.IsMoving {
		st.Direction = e.last.Direction
		st.MotorPower = e.last.MotorPower
	}
	return st
}

// Events returns the read-only channel for telemetry.
// Events는 텔레메트리를 위한 읽기 전용 채널을 반환합니다.
func (e *Elevator) Events() <-chan TelemetryEvent {
	return e.eventCh
}

// publishEvent sends an event to the channel without blocking logic.
// 채널이 가득 차면 이벤트를 버리고 메트릭을 증가시킵니다 (System Stability).
func (e *Elevator) publishEvent(ev TelemetryEvent) {
	ev.Timestamp = time.Now()

	select {
	case e.eventCh <- ev:
	default:
		e.droppedEventCount++
		// Log rarely to avoid disk I/O flooding
		if e.droppedEventCount%100 == 1 {
			e.logger.Error("Event Channel Saturated", "dropped", e.droppedEventCount, "type", ev.Type)
		}
	}
}

// Move requests a movement to floorID. A nil error means the request was accepted.
// 이동 중이거나 이미 해당 층에 있으면 상태 변경 없이 거부됩니다.
func (e *Elevator) Move(floorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.movement.Begin(floorID)
	if err != nil {
		e.logger.Warn("Move rejected", "floor", floorID, "err", err)
		return fmt.Errorf("move to %s: %w", floorID, err)
	}
	e.last = Sample{Phase: StateStartup, Position: sess.OriginPosition, Direction: sess.Direction}

	e.logger.Info("🚅 Move accepted",
		"session", sess.ID,
		"from", sess.Origin,
		"to", sess.Target,
		"distance", sess.Distance,
		"tolerance", sess.Tolerance,
		"direction", sess.Direction,
	)
	e.publishEvent(TelemetryEvent{
		Type:           EventMoveStarted,
		SessionID:      sess.ID,
		Position:       sess.OriginPosition,
		TargetPosition: sess.TargetPosition,
		CurrentFloor:   sess.Origin,
		TargetFloor:    sess.Target,
		Error:          sess.TargetPosition - sess.OriginPosition,
		Direction:      sess.Direction,
		Phase:          StateStartup,
		IsMoving:       true,
	})
	return nil
}

// EmergencyStop halts any movement immediately. Always legal.
// EmergencyStop은 현재 상태와 무관하게 즉시 정지하고 종료 이벤트를 게시합니다.
func (e *Elevator) EmergencyStop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.movement.Stop(ReasonEmergency) {
		e.logger.Warn("Emergency Stop Activated", "position", e.movement.Position())
		e.publishEvent(e.terminalEvent(EventEmergencyStop, ReasonEmergency))
		return
	}

	// 정지 상태에서도 상태 이벤트는 게시
	e.logger.Warn("Emergency Stop Activated (idle)")
	e.publishEvent(TelemetryEvent{
		Type:         EventEmergencyStop,
		Position:     e.movement.Position(),
		CurrentFloor: e.movement.Floor(),
		Direction:    DirNone,
		Phase:        StateEmergencyStopped,
		Reason:       ReasonEmergency,
	})
}

// Run executes the main tick loop at the configured sampling period.
// Run은 샘플링 주기마다 제어 틱을 실행하는 메인 루프입니다.
func (e *Elevator) Run(ctx context.Context) error {
	e.logger.Info("Elevator Engine Started")

	ticker := time.NewTicker(e.Config.SamplingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine Stopping (Context Cancelled)")
			return ctx.Err()

		case <-ticker.C:
			e.step()
		}
	}
}

// step runs one control tick of the active movement.
// step은 매 틱마다 호출됩니다.
func (e *Elevator) step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// [Guard Clause] 이동 중이 아니면 할 일이 없음
	if !e.movement.Moving() {
		return
	}

	sample, reason := e.movement.Step()
	sess := e.movement.Session()
	e.last = sample

	if sample.Degraded {
		e.logger.Warn("Fuzzy inference degraded, using proportional fallback",
			"tick", sample.Tick, "error", sample.Error, "power", sample.MotorPower)
	}
	if sample.Reversed {
		e.logger.Info("🧭 Direction Changed (overshoot correction)",
			"tick", sample.Tick, "new_dir", sample.Direction, "error", sample.Error)
	}
	if sample.Nudged {
		e.logger.Warn("Stall detected, nudging toward target", "tick", sample.Tick, "position", sample.Position)
	}
	e.logger.Debug("Tick",
		"tick", sample.Tick,
		"phase", sample.Phase,
		"position", sample.Position,
		"error", sample.Error,
		"power", sample.MotorPower,
	)

	e.publishEvent(TelemetryEvent{
		Type:           EventTick,
		SessionID:      sess.ID,
		Tick:           sample.Tick,
		Elapsed:        sample.Elapsed,
		Position:       sample.Position,
		TargetPosition: sess.TargetPosition,
		CurrentFloor:   e.movement.Floors().Nearest(sample.Position).ID,
		TargetFloor:    sess.Target,
		MotorPower:     sample.MotorPower,
		Error:          sample.Error,
		Direction:      sample.Direction,
		Phase:          sample.Phase,
		IsMoving:       true,
		Degraded:       sample.Degraded,
	})

	if reason == ReasonNone {
		return
	}
	e.finish(reason)
}

// finish logs and publishes the end of a movement.
func (e *Elevator) finish(reason Reason) {
	sess := e.movement.Session()
	finalErr := math.Abs(sess.TargetPosition - e.movement.Position())

	attrs := []any{
		"session", sess.ID,
		"reason", reason,
		"floor", e.movement.Floor(),
		"elapsed", sess.Elapsed,
		"final_error_mm", finalErr * 1000,
		"reversals", sess.Reversals,
	}
	if reason.Success() {
		e.logger.Info("Movement completed", attrs...)
	} else {
		e.logger.Warn("Movement terminated", attrs...)
	}
	e.publishEvent(e.terminalEvent(EventMoveCompleted, reason))
}

// terminalEvent builds the stopped event that closes a movement.
func (e *Elevator) terminalEvent(t EventType, reason Reason) TelemetryEvent {
	m := e.movement
	sess := m.Session()
	ev := TelemetryEvent{
		Type:         t,
		SessionID:    sess.ID,
		Tick:         sess.Tick,
		Elapsed:      sess.Elapsed,
		Position:     m.Position(),
		CurrentFloor: m.Floor(),
		Direction:    DirNone,
		Phase:        reason.State(),
		IsMoving:     false,
		Reason:       reason,
	}
	if sess.Target != "" {
		ev.TargetPosition = sess.TargetPosition
		ev.TargetFloor = sess.Target
		ev.Error = sess.TargetPosition - m.Position()
	}
	return ev
}
