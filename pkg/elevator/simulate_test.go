package elevator

import (
	"math"
	"testing"
	"time"
)

func TestSimulate_TerreoToAndar2(t *testing.T) {
	tr, err := Simulate(DefaultConfig(), "terreo", "andar_2", 0)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if tr.Initial != DirUp {
		t.Errorf("Expected initial direction up, got %s", tr.Initial)
	}
	if tr.Tolerance != 0.1 {
		t.Errorf("Expected tolerance 0.1, got %g", tr.Tolerance)
	}

	// Startup: first 2s, strictly increasing from 0 toward 31.5.
	if tr.MotorPower[0] != 0 {
		t.Errorf("Expected ramp to start at 0, got %g", tr.MotorPower[0])
	}
	for i := 1; i < len(tr.Time) && tr.Time[i] <= 2.0; i++ {
		if tr.MotorPower[i] <= tr.MotorPower[i-1] {
			t.Errorf("Ramp not strictly increasing at t=%.1f: %g after %g", tr.Time[i], tr.MotorPower[i], tr.MotorPower[i-1])
		}
		if tr.MotorPower[i] > 31.5 {
			t.Errorf("Ramp exceeded max power at t=%.1f: %g", tr.Time[i], tr.MotorPower[i])
		}
	}

	if !tr.Reason.Success() {
		t.Errorf("Expected arrival at the target, got %s", tr.Reason)
	}
	if math.Abs(tr.FinalError) > tr.Tolerance {
		t.Errorf("Expected final |error| <= %g, got %g", tr.Tolerance, tr.FinalError)
	}
	if tr.FinalErrMM > 100 {
		t.Errorf("Expected final error <= 100mm, got %.1fmm", tr.FinalErrMM)
	}
	if tr.FinalFloor != "andar_2" {
		t.Errorf("Expected final floor andar_2, got %s", tr.FinalFloor)
	}
	if tr.Degraded != 0 {
		t.Errorf("Expected no degraded ticks, got %d", tr.Degraded)
	}

	n := tr.Len()
	if len(tr.Position) != n || len(tr.Error) != n || len(tr.MotorPower) != n || len(tr.DeltaError) != n {
		t.Error("Expected trajectory arrays of equal length")
	}
}

func TestSimulate_AllPairsTerminate(t *testing.T) {
	cfg := DefaultConfig()
	sim, err := NewSimulator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ids := sim.Movement().Floors().IDs()
	maxTicks := cfg.MaxTicks

	for _, from := range ids {
		for _, to := range ids {
			if from == to {
				continue
			}
			tr, err := sim.Run(from, to)
			if err != nil {
				t.Fatalf("%s -> %s: %v", from, to, err)
			}
			if tr.Reason == ReasonNone {
				t.Errorf("%s -> %s: no terminal reason", from, to)
			}
			if tr.Len() > maxTicks {
				t.Errorf("%s -> %s: ran %d ticks, ceiling %d", from, to, tr.Len(), maxTicks)
			}
			if tr.Duration > cfg.Timeout.Seconds()+1e-9 {
				t.Errorf("%s -> %s: ran %.1fs past the timeout", from, to, tr.Duration)
			}
			// Downward runs fold away from the target and end on the timeout.
			if tr.Initial == DirUp && !tr.Reason.Success() {
				t.Errorf("%s -> %s: expected arrival, got %s (final error %.1fmm)", from, to, tr.Reason, tr.FinalErrMM)
			}
		}
	}
}

func TestSimulate_MaxTime(t *testing.T) {
	tr, err := Simulate(DefaultConfig(), "subsolo", "tecnico", 3*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Reason != ReasonTimedOut {
		t.Errorf("Expected timeout with 3s ceiling, got %s", tr.Reason)
	}
	if tr.Duration < 3 || tr.Duration > 3.2+1e-9 {
		t.Errorf("Expected duration near 3s, got %g", tr.Duration)
	}
}

func TestSimulate_Rejects(t *testing.T) {
	if _, err := Simulate(DefaultConfig(), "terreo", "terreo", 0); err == nil {
		t.Error("Expected error for same-floor simulation, got nil")
	}
	if _, err := Simulate(DefaultConfig(), "roof", "terreo", 0); err == nil {
		t.Error("Expected error for unknown origin, got nil")
	}
}

func TestSimulate_Downward(t *testing.T) {
	tr, err := Simulate(DefaultConfig(), "andar_8", "terreo", 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Initial != DirDown {
		t.Errorf("Expected initial direction down, got %s", tr.Initial)
	}
	if tr.Tolerance != 0.3 {
		t.Errorf("Expected tolerance 0.3 for 25m, got %g", tr.Tolerance)
	}
	if tr.MotorPower[1] >= 0 {
		t.Errorf("Expected negative power going down, got %g", tr.MotorPower[1])
	}
	if last := tr.Position[tr.Len()-1]; last <= tr.Start {
		t.Errorf("Expected the run to fold above the start %g, ended at %g", tr.Start, last)
	}
	if tr.Reason != ReasonTimedOut {
		t.Errorf("Expected downward run to time out, got %s", tr.Reason)
	}
}
