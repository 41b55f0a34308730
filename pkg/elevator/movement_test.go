package elevator

import (
	"errors"
	"math"
	"testing"
)

func newTestMovement(t *testing.T) *Movement {
	t.Helper()
	m, err := NewMovement(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMovement failed: %v", err)
	}
	return m
}

func TestMovement_Init(t *testing.T) {
	m := newTestMovement(t)

	if m.Floor() != "terreo" {
		t.Errorf("Expected initial floor terreo, got %s", m.Floor())
	}
	if m.Position() != 4 {
		t.Errorf("Expected initial position 4, got %g", m.Position())
	}
	if m.State() != StateIdle {
		t.Errorf("Expected state Idle, got %s", m.State())
	}
}

func TestMovement_BeginGuards(t *testing.T) {
	m := newTestMovement(t)

	// Already at floor (within deadband)
	if _, err := m.Begin("terreo"); !errors.Is(err, ErrAlreadyAtFloor) {
		t.Errorf("Expected ErrAlreadyAtFloor, got %v", err)
	}
	if m.State() != StateIdle || m.Session().ID != "" {
		t.Error("Rejected move must not change state")
	}

	// Unknown floor
	if _, err := m.Begin("andar_99"); !errors.Is(err, ErrUnknownFloor) {
		t.Errorf("Expected ErrUnknownFloor, got %v", err)
	}

	// Valid
	sess, err := m.Begin("andar_2")
	if err != nil {
		t.Fatalf("Failed to begin valid move: %v", err)
	}
	if sess.ID == "" {
		t.Error("Expected a session id")
	}
	if sess.Direction != DirUp {
		t.Errorf("Expected direction up, got %s", sess.Direction)
	}
	if sess.Tolerance != 0.1 {
		t.Errorf("Expected tolerance 0.1 for 7m, got %g", sess.Tolerance)
	}
	if sess.PrevError != 7 {
		t.Errorf("Expected previous error initialized to distance 7, got %g", sess.PrevError)
	}

	// Already moving
	if _, err := m.Begin("andar_5"); !errors.Is(err, ErrAlreadyMoving) {
		t.Errorf("Expected ErrAlreadyMoving, got %v", err)
	}
	if m.Session().ID != sess.ID {
		t.Error("Rejected move must not replace the active session")
	}
}

func TestMovement_StartupRamp(t *testing.T) {
	m := newTestMovement(t)
	if _, err := m.Begin("andar_2"); err != nil {
		t.Fatal(err)
	}

	prev := -1.0
	for i := 0; i <= 10; i++ {
		s, reason := m.Step()
		if reason != ReasonNone {
			t.Fatalf("Unexpected termination at tick %d: %s", i, reason)
		}
		if s.Phase != StateStartup {
			t.Errorf("Tick %d: expected phase Startup, got %s", i, s.Phase)
		}
		want := 31.5 * s.Elapsed / 2
		if math.Abs(s.MotorPower-want) > 1e-9 {
			t.Errorf("Tick %d: expected ramp power %.3f, got %.3f", i, want, s.MotorPower)
		}
		if s.MotorPower <= prev {
			t.Errorf("Tick %d: ramp not strictly increasing (%.3f after %.3f)", i, s.MotorPower, prev)
		}
		prev = s.MotorPower
	}
	if prev != 31.5 {
		t.Errorf("Expected ramp to end at 31.5, got %g", prev)
	}

	s, _ := m.Step()
	if s.Phase != StateClosedLoop {
		t.Errorf("Expected ClosedLoop after 2s, got %s", s.Phase)
	}
	if s.MotorPower < 3 {
		t.Errorf("Expected closed-loop power >= minimum 3, got %g", s.MotorPower)
	}
}

func TestMovement_StopIsAlwaysLegal(t *testing.T) {
	m := newTestMovement(t)

	if m.Stop(ReasonEmergency) {
		t.Error("Expected Stop on idle controller to report false")
	}

	if _, err := m.Begin("andar_8"); err != nil {
		t.Fatal(err)
	}
	m.Step()
	if !m.Stop(ReasonEmergency) {
		t.Fatal("Expected Stop to report an active movement")
	}
	if m.Moving() {
		t.Error("Expected controller to stop moving")
	}
	if got := m.Session().Reason; got != ReasonEmergency {
		t.Errorf("Expected reason emergency, got %s", got)
	}
	if got := m.Session().Direction; got != DirNone {
		t.Errorf("Expected direction stopped, got %s", got)
	}
	if sess := m.Session(); sess.Target != "" || sess.TargetPosition != 0 {
		t.Errorf("Expected emergency stop to clear the target, got %s at %g", sess.Target, sess.TargetPosition)
	}
	if s, reason := m.Step(); reason != ReasonNone || s.Tick != 0 {
		t.Errorf("Expected idle Step to be a no-op, got %+v %s", s, reason)
	}
}

func TestMovement_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTicks = 5
	m, err := NewMovement(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Begin("tecnico"); err != nil {
		t.Fatal(err)
	}

	var reason Reason
	ticks := 0
	for m.Moving() {
		_, reason = m.Step()
		ticks++
	}
	if reason != ReasonTimedOut {
		t.Errorf("Expected timeout, got %s", reason)
	}
	if ticks != 5 {
		t.Errorf("Expected 5 ticks, got %d", ticks)
	}
	if m.Floor() != "terreo" {
		t.Errorf("Expected nearest floor terreo after short run, got %s", m.Floor())
	}
}

func TestMovement_StallNearTarget(t *testing.T) {
	// A plant that barely moves stalls; close to the target it counts as arrived.
	cfg := DefaultConfig()
	cfg.Plant.Steady = Coefficients{Decay: 1, Gain: 1e-9}
	cfg.Startup.Duration = 0
	m, err := NewMovement(cfg)
	if err != nil {
		t.Fatal(err)
	}
	// Start 0.25m below andar_1; tolerance 0.1, stall band 0.3.
	m.position = 7.75
	if _, err := m.Begin("andar_1"); err != nil {
		t.Fatal(err)
	}

	var reason Reason
	for m.Moving() {
		_, reason = m.Step()
	}
	if reason != ReasonStalled {
		t.Errorf("Expected stalled, got %s", reason)
	}
	if !reason.Success() {
		t.Error("Expected a stall within 3x tolerance to count as settled")
	}
	if got := m.Floor(); got != "andar_1" {
		t.Errorf("Expected floor andar_1, got %s", got)
	}
}

func TestMovement_StallFarFromTargetNudges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Plant.Steady = Coefficients{Decay: 1, Gain: 1e-9}
	cfg.Startup.Duration = 0
	cfg.MaxTicks = 9
	m, err := NewMovement(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Begin("andar_2"); err != nil {
		t.Fatal(err)
	}

	// The first tick runs on the startup coefficients; measure from after it.
	m.Step()
	before := m.Position()
	nudged := false
	for m.Moving() {
		s, _ := m.Step()
		nudged = nudged || s.Nudged
	}
	if !nudged {
		t.Fatal("Expected a stall nudge")
	}
	// One nudge of tol/3 toward the target, plus negligible plant motion.
	if moved := m.Position() - before; math.Abs(moved-0.1/3) > 1e-6 {
		t.Errorf("Expected nudge of %.4f, got %.4f", 0.1/3, moved)
	}
	if m.Session().Nudges != 1 {
		t.Errorf("Expected 1 nudge, got %d", m.Session().Nudges)
	}
}

func TestMovement_Oscillation(t *testing.T) {
	m := newTestMovement(t)
	if _, err := m.Begin("andar_1"); err != nil {
		t.Fatal(err)
	}
	s := &m.session
	s.Tick = 20
	if w := m.cfg.Detection.OscillationWindow; w != 6 {
		t.Fatalf("Expected window 6, got %d", w)
	}

	// Wide window: span 0.39 >= 2*tol.
	m.history = []float64{7.50, 7.60, 7.70, 7.80, 7.85, 7.89}
	m.position = 7.89
	if reason, _ := m.evaluate(); reason == ReasonOscillating {
		t.Error("Expected no oscillation for a span wider than 2x tolerance")
	}

	// Narrow window but |error| 0.2 >= 1.5*tol.
	m.settleCount = 0
	m.history = []float64{7.78, 7.79, 7.79, 7.80, 7.80, 7.80}
	m.position = 7.80
	if reason, _ := m.evaluate(); reason == ReasonOscillating {
		t.Error("Expected no oscillation outside 1.5x tolerance")
	}

	// Span 0.03 < 0.2 and |error| 0.11 < 0.15, one-sided approach included.
	m.settleCount = 0
	m.history = []float64{7.86, 7.87, 7.88, 7.88, 7.89, 7.89}
	m.position = 7.89
	if reason, _ := m.evaluate(); reason != ReasonOscillating {
		t.Errorf("Expected oscillation, got %q", reason)
	}
}

func TestMovement_Reset(t *testing.T) {
	m := newTestMovement(t)
	if err := m.Reset("andar_5"); err != nil {
		t.Fatal(err)
	}
	if m.Position() != 20 || m.Floor() != "andar_5" {
		t.Errorf("Expected andar_5 at 20m, got %s at %g", m.Floor(), m.Position())
	}
	if err := m.Reset("nowhere"); !errors.Is(err, ErrUnknownFloor) {
		t.Errorf("Expected ErrUnknownFloor, got %v", err)
	}

	if _, err := m.Begin("terreo"); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset("subsolo"); !errors.Is(err, ErrAlreadyMoving) {
		t.Errorf("Expected ErrAlreadyMoving, got %v", err)
	}
}

func TestNewMovement_CopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	m, err := NewMovement(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg.Floors[3].Position = 99
	cfg.Fuzzy.Rules[0].Power = "bogus"

	if got, _ := m.Floors().Position("andar_2"); got != 11 {
		t.Errorf("Expected andar_2 at 11 after caller edit, got %g", got)
	}
	if m.cfg.Fuzzy.Rules[0].Power == "bogus" {
		t.Error("Expected rule base to be isolated from caller edits")
	}
}
