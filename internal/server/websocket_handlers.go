package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second

	// clientBuffer is the number of queued events per client before new ones are dropped.
	clientBuffer = 16
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The monitoring server is meant for the plant network.
		return true
	},
}

// WebSocketMessage represents a message sent over WebSocket.
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// TransitionEvent is pushed to /events clients for every emitted command.
type TransitionEvent struct {
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`
	Command   string    `json:"command"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Labels    []string  `json:"labels"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
}

func newTransitionEvent(res *pipeline.Result) TransitionEvent {
	ev := TransitionEvent{
		Seq:       res.Seq,
		At:        res.Transition.At,
		Command:   res.Transition.Command.String(),
		From:      res.Transition.From.String(),
		To:        res.Transition.To.String(),
		Labels:    res.Labels.Sorted(),
		Delivered: res.SendErr == nil,
	}
	if res.SendErr != nil {
		ev.Error = res.SendErr.Error()
	}
	return ev
}

type eventClient struct {
	send chan []byte
}

// eventHub fans messages out to connected clients without blocking the sender.
type eventHub struct {
	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*eventClient]struct{})}
}

func (h *eventHub) add() *eventClient {
	c := &eventClient{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	websocketConnections.Inc()
	return c
}

func (h *eventHub) remove(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		websocketConnections.Dec()
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *eventHub) broadcast(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			websocketMessagesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		websocketConnections.Dec()
	}
}

// eventsHandler streams transition events. The first message carries the
// current status.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	client := s.hub.add()
	defer s.hub.remove(client)

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	readDone := make(chan struct{})
	go s.readPump(conn, readDone)

	if s.status != nil {
		if err := writeMessage(conn, WebSocketMessage{Type: "status", Payload: s.status.State()}); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Failed to send WebSocket message", "error", err)
				return
			}
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

// readPump consumes client frames so pongs and close frames are processed.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
	}
}

func writeMessage(conn *websocket.Conn, msg WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}
