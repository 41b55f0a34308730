package dashboard

import (
	"time"

	"go-fuzzy-elevator/pkg/elevator"
)

// Point is one recorded telemetry sample.
type Point struct {
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id,omitempty"`
	Elapsed        float64   `json:"elapsed"`
	Position       float64   `json:"position"`
	TargetPosition float64   `json:"target_position"`
	MotorPower     float64   `json:"motor_power"`
	Error          float64   `json:"error"`
}

func pointOf(ev elevator.TelemetryEvent) Point {
	return Point{
		Timestamp:      ev.Timestamp,
		SessionID:      ev.SessionID,
		Elapsed:        ev.Elapsed,
		Position:       ev.Position,
		TargetPosition: ev.TargetPosition,
		MotorPower:     ev.MotorPower,
		Error:          ev.Error,
	}
}

// history is a fixed-capacity ring of points. Not safe for concurrent use.
type history struct {
	buf  []Point
	next int
	full bool
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{buf: make([]Point, capacity)}
}

func (h *history) add(p Point) {
	h.buf[h.next] = p
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// last returns up to n of the newest points, oldest first. n <= 0 returns all.
func (h *history) last(n int) []Point {
	size := h.len()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Point, n)
	start := h.next - n
	if start < 0 {
		start += len(h.buf)
	}
	for i := range out {
		out[i] = h.buf[(start+i)%len(h.buf)]
	}
	return out
}
