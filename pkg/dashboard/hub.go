// Package dashboard serves elevator telemetry to browsers over WebSocket and HTTP.
// 이 패키지는 엘리베이터 텔레메트리를 WebSocket/HTTP로 브라우저에 전달합니다. 제어 로직은 없습니다.
package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go-fuzzy-elevator/pkg/elevator"

	"github.com/gorilla/websocket"
)

// Controller is the command surface the dashboard needs from an elevator.
type Controller interface {
	Move(floorID string) error
	EmergencyStop()
	Status() elevator.Status
}

// Message types
// 메시지 타입 정의
const (
	MsgInitialStatus         = "initial_status"
	MsgMovementData          = "movement_data"
	MsgPositionUpdate        = "position_update"
	MsgStatusUpdate          = "status_update"
	MsgFloorRequestResponse  = "floor_request_response"
	MsgEmergencyStopResponse = "emergency_stop_response"
	MsgError                 = "error"
)

// ClientMessage is a request from a browser. Older clients send the action
// in "type".
type ClientMessage struct {
	Action string `json:"action"`
	Type   string `json:"type,omitempty"`
	Floor  string `json:"floor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (m ClientMessage) action() string {
	if m.Action != "" {
		return m.Action
	}
	return m.Type
}

// ServerMessage is pushed to browsers.
type ServerMessage struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Floor   string `json:"floor,omitempty"`
	Message string `json:"message,omitempty"`
}

// Options tunes the hub. Zero values take defaults.
type Options struct {
	HistorySize    int           // recorded points, default 1000
	InitialPoints  int           // points sent on connect, default 100
	ClientQueue    int           // per-client send queue, default 256
	WriteTimeout   time.Duration // default 5s
	AllowAllOrigin bool
}

func (o Options) withDefaults() Options {
	if o.HistorySize <= 0 {
		o.HistorySize = 1000
	}
	if o.InitialPoints <= 0 {
		o.InitialPoints = 100
	}
	if o.ClientQueue <= 0 {
		o.ClientQueue = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// Hub fans telemetry out to every connected client.
// Hub는 텔레메트리를 모든 클라이언트에 전달하며, 느린 클라이언트의 메시지는 버립니다.
type Hub struct {
	ctrl     Controller
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu           sync.RWMutex
	history      *history
	clients      map[*client]struct{}
	droppedCount uint64
}

type client struct {
	conn *websocket.Conn
	send chan ServerMessage
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub bound to ctrl.
func NewHub(ctrl Controller, opts Options) *Hub {
	opts = opts.withDefaults()
	h := &Hub{
		ctrl:    ctrl,
		opts:    opts,
		logger:  slog.Default().With("component", "dashboard"),
		history: newHistory(opts.HistorySize),
		clients: make(map[*client]struct{}),
	}
	if opts.AllowAllOrigin {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return true // Allow all origins for development
		}
	}
	return h
}

// Publish records an event and broadcasts it. Movement start and
// termination are followed by a status update.
func (h *Hub) Publish(ev elevator.TelemetryEvent) {
	h.mu.Lock()
	h.history.add(pointOf(ev))
	h.mu.Unlock()

	h.broadcast(ServerMessage{Type: MsgPositionUpdate, Data: ev})
	if ev.Type == elevator.EventMoveStarted || ev.Terminal() {
		h.broadcast(ServerMessage{Type: MsgStatusUpdate, Data: h.ctrl.Status()})
	}
}

// MovementData returns up to limit of the newest recorded points.
func (h *Hub) MovementData(limit int) []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.history.last(limit)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedCount returns messages dropped for slow clients.
func (h *Hub) DroppedCount() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.droppedCount
}

func (h *Hub) broadcast(msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueue(c, msg)
	}
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(c *client, msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
		h.droppedCount++
		if h.droppedCount%100 == 1 {
			h.logger.Warn("Client queue full, dropping message", "dropped", h.droppedCount, "type", msg.Type)
		}
	}
}

func (h *Hub) sendTo(c *client, msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueue(c, msg)
}

// ServeWS upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan ServerMessage, h.opts.ClientQueue),
		done: make(chan struct{}),
	}
	status := h.ctrl.Status()
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.enqueue(c, ServerMessage{Type: MsgInitialStatus, Data: status})
	h.enqueue(c, ServerMessage{Type: MsgMovementData, Data: h.history.last(h.opts.InitialPoints)})
	h.mu.Unlock()

	h.logger.Info("Session started", "remote_addr", conn.RemoteAddr())
	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	_ = c.conn.Close()
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		h.logger.Info("Session ended", "remote_addr", c.conn.RemoteAddr())
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Failed to parse message", "error", err)
			h.sendTo(c, ServerMessage{Type: MsgError, Message: "Invalid JSON format"})
			continue
		}
		h.sendTo(c, h.handle(msg))
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Error("Failed to write JSON message", "error", err)
				h.remove(c)
				return
			}
		}
	}
}

// handle executes one client action and returns the reply.
func (h *Hub) handle(msg ClientMessage) ServerMessage {
	h.logger.Debug("Action received", "action", msg.action(), "floor", msg.Floor)

	switch msg.action() {
	case "floor_request":
		// The reply carries the failure; only the HTTP path maps the error to a status code.
		reply, _ := h.floorRequest(msg.Floor)
		return reply
	case "emergency_stop":
		h.ctrl.EmergencyStop()
		return ServerMessage{Type: MsgEmergencyStopResponse, Message: "Emergency stop activated"}
	case "get_status":
		return ServerMessage{Type: MsgStatusUpdate, Data: h.ctrl.Status()}
	case "get_movement_data":
		return ServerMessage{Type: MsgMovementData, Data: h.MovementData(msg.Limit)}
	}
	return ServerMessage{Type: MsgError, Message: "unknown action " + strconv.Quote(msg.action())}
}

var errNoFloor = errors.New("no floor given")

func (h *Hub) floorRequest(floor string) (ServerMessage, error) {
	ok := false
	reply := ServerMessage{Type: MsgFloorRequestResponse, Floor: floor, Success: &ok}
	if floor == "" {
		reply.Message = "Invalid floor"
		return reply, errNoFloor
	}
	if err := h.ctrl.Move(floor); err != nil {
		reply.Message = "Movement failed to floor " + floor + ": " + err.Error()
		return reply, err
	}
	ok = true
	reply.Message = "Movement started to floor " + floor
	return reply, nil
}

// Handler returns the HTTP routes: /ws and the /api endpoints.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/movement-data", h.handleMovementData)
	mux.HandleFunc("POST /api/move-to-floor", h.handleMove)
	mux.HandleFunc("POST /api/emergency-stop", h.handleEmergencyStop)
	return mux
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *Hub) handleMovementData(w http.ResponseWriter, r *http.Request) {
	limit := h.opts.InitialPoints
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ServerMessage{Type: MsgError, Message: "invalid limit"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.MovementData(limit))
}

func (h *Hub) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Floor string `json:"floor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ServerMessage{Type: MsgError, Message: "Invalid JSON format"})
		return
	}

	reply, err := h.floorRequest(req.Floor)
	status := http.StatusOK
	switch {
	case errors.Is(err, errNoFloor), errors.Is(err, elevator.ErrUnknownFloor):
		status = http.StatusBadRequest
	case err != nil:
		status = http.StatusConflict
	}
	reply.Data = h.ctrl.Status()
	writeJSON(w, status, reply)
}

func (h *Hub) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.handle(ClientMessage{Action: "emergency_stop"}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
