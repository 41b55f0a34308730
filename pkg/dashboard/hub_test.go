package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-fuzzy-elevator/pkg/elevator"

	"github.com/gorilla/websocket"
)

type fakeController struct {
	mu       sync.Mutex
	moves    []string
	stops    int
	moveErr  error
	position float64
}

func (f *fakeController) Move(floorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, floorID)
	return nil
}

func (f *fakeController) EmergencyStop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeController) calls() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.moves...), f.stops
}

func (f *fakeController) Status() elevator.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return elevator.Status{ID: "test", Position: f.position, CurrentFloor: "terreo", Direction: elevator.DirNone}
}

func TestHistory_Ring(t *testing.T) {
	h := newHistory(3)
	if got := h.last(10); len(got) != 0 {
		t.Errorf("Expected empty history, got %d points", len(got))
	}
	for i := 1; i <= 5; i++ {
		h.add(Point{Position: float64(i)})
	}
	got := h.last(0)
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}
	for i, want := range []float64{3, 4, 5} {
		if got[i].Position != want {
			t.Errorf("Point %d: expected %g, got %g", i, want, got[i].Position)
		}
	}
	if got := h.last(2); got[0].Position != 4 || got[1].Position != 5 {
		t.Errorf("Expected newest two points [4 5], got %+v", got)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Success *bool           `json:"success"`
	Floor   string          `json:"floor"`
	Message string          `json:"message"`
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg rawMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func TestHub_WebSocketSession(t *testing.T) {
	ctrl := &fakeController{position: 4}
	hub := NewHub(ctrl, Options{})
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	if msg := readMessage(t, conn); msg.Type != MsgInitialStatus {
		t.Errorf("Expected %s, got %s", MsgInitialStatus, msg.Type)
	}
	if msg := readMessage(t, conn); msg.Type != MsgMovementData {
		t.Errorf("Expected %s, got %s", MsgMovementData, msg.Type)
	}

	conn.WriteJSON(ClientMessage{Action: "floor_request", Floor: "andar_3"})
	msg := readMessage(t, conn)
	if msg.Type != MsgFloorRequestResponse || msg.Success == nil || !*msg.Success {
		t.Errorf("Expected successful floor_request_response, got %+v", msg)
	}
	if moves, _ := ctrl.calls(); len(moves) != 1 || moves[0] != "andar_3" {
		t.Errorf("Expected move to andar_3, got %v", moves)
	}

	// Legacy clients put the action in "type".
	conn.WriteJSON(map[string]string{"type": "emergency_stop"})
	if msg := readMessage(t, conn); msg.Type != MsgEmergencyStopResponse {
		t.Errorf("Expected %s, got %s", MsgEmergencyStopResponse, msg.Type)
	}
	if _, stops := ctrl.calls(); stops != 1 {
		t.Errorf("Expected 1 emergency stop, got %d", stops)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if msg := readMessage(t, conn); msg.Type != MsgError {
		t.Errorf("Expected %s for invalid JSON, got %s", MsgError, msg.Type)
	}

	hub.Publish(elevator.TelemetryEvent{Type: elevator.EventTick, Position: 4.2, IsMoving: true})
	msg = readMessage(t, conn)
	if msg.Type != MsgPositionUpdate {
		t.Fatalf("Expected %s, got %s", MsgPositionUpdate, msg.Type)
	}
	var ev elevator.TelemetryEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Position != 4.2 {
		t.Errorf("Expected position 4.2, got %g", ev.Position)
	}

	hub.Publish(elevator.TelemetryEvent{Type: elevator.EventMoveCompleted, Reason: elevator.ReasonSettled})
	readMessage(t, conn) // position_update
	if msg := readMessage(t, conn); msg.Type != MsgStatusUpdate {
		t.Errorf("Expected %s after terminal event, got %s", MsgStatusUpdate, msg.Type)
	}
}

func TestHub_FloorRequestRejected(t *testing.T) {
	ctrl := &fakeController{moveErr: elevator.ErrAlreadyMoving}
	hub := NewHub(ctrl, Options{})

	reply := hub.handle(ClientMessage{Action: "floor_request", Floor: "andar_1"})
	if reply.Success == nil || *reply.Success {
		t.Errorf("Expected failed response, got %+v", reply)
	}
	if !strings.Contains(reply.Message, elevator.ErrAlreadyMoving.Error()) {
		t.Errorf("Expected reply to carry the move error, got %q", reply.Message)
	}
	reply = hub.handle(ClientMessage{Action: "floor_request"})
	if reply.Success == nil || *reply.Success {
		t.Errorf("Expected failed response for missing floor, got %+v", reply)
	}
	if reply := hub.handle(ClientMessage{Action: "dance"}); reply.Type != MsgError {
		t.Errorf("Expected error for unknown action, got %s", reply.Type)
	}
}

func TestHub_HTTP(t *testing.T) {
	ctrl := &fakeController{position: 4}
	hub := NewHub(ctrl, Options{HistorySize: 5})
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	for i := 0; i < 8; i++ {
		hub.Publish(elevator.TelemetryEvent{Type: elevator.EventTick, Position: float64(i)})
	}

	resp, err := http.Get(srv.URL + "/api/movement-data?limit=3")
	if err != nil {
		t.Fatal(err)
	}
	var points []Point
	json.NewDecoder(resp.Body).Decode(&points)
	resp.Body.Close()
	if len(points) != 3 || points[2].Position != 7 {
		t.Errorf("Expected newest 3 points ending at 7, got %+v", points)
	}

	resp, _ = http.Get(srv.URL + "/api/movement-data?limit=abc")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/api/status")
	var st elevator.Status
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.ID != "test" || st.Position != 4 {
		t.Errorf("Expected fake status, got %+v", st)
	}

	cases := []struct {
		body string
		err  error
		code int
	}{
		{`{"floor":"andar_2"}`, nil, http.StatusOK},
		{`{"floor":`, nil, http.StatusBadRequest},
		{`{"floor":""}`, nil, http.StatusBadRequest},
		{`{"floor":"roof"}`, fmt.Errorf("move: %w", elevator.ErrUnknownFloor), http.StatusBadRequest},
		{`{"floor":"andar_2"}`, elevator.ErrAlreadyMoving, http.StatusConflict},
	}
	for _, c := range cases {
		ctrl.mu.Lock()
		ctrl.moveErr = c.err
		ctrl.mu.Unlock()
		resp, err := http.Post(srv.URL+"/api/move-to-floor", "application/json", bytes.NewBufferString(c.body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != c.code {
			t.Errorf("POST %s: expected %d, got %d", c.body, c.code, resp.StatusCode)
		}
	}

	resp, _ = http.Post(srv.URL+"/api/emergency-stop", "application/json", nil)
	resp.Body.Close()
	if _, stops := ctrl.calls(); resp.StatusCode != http.StatusOK || stops != 1 {
		t.Errorf("Expected emergency stop via HTTP, got status %d stops %d", resp.StatusCode, stops)
	}
}

func TestHub_SlowClientDrops(t *testing.T) {
	hub := NewHub(&fakeController{}, Options{ClientQueue: 1})
	c := &client{send: make(chan ServerMessage, 1), done: make(chan struct{})}
	hub.clients[c] = struct{}{}

	hub.Publish(elevator.TelemetryEvent{Type: elevator.EventTick})
	hub.Publish(elevator.TelemetryEvent{Type: elevator.EventTick})
	hub.Publish(elevator.TelemetryEvent{Type: elevator.EventTick})

	if got := hub.DroppedCount(); got != 2 {
		t.Errorf("Expected 2 dropped messages, got %d", got)
	}
	if got := len(hub.MovementData(0)); got != 3 {
		t.Errorf("Expected all 3 points recorded, got %d", got)
	}
}
