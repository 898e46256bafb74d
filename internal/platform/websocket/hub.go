// Package websocket streams dashboard snapshots to connected browsers and
// routes the commands they send back.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/caredesk/internal/domain/care"
)

// Frame is one outbound message.
type Frame struct {
	Type      string          `json:"type"`
	Version   uint64          `json:"version,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ClientMessage is an inbound command. PatientID accepts the id as a JSON
// string or number, matching how snapshots render it.
type ClientMessage struct {
	Action    string  `json:"action"`
	PatientID care.ID `json:"patientId,omitempty"`
	Search    string  `json:"search,omitempty"`
}

// CommandFunc executes a client command.
type CommandFunc func(ctx context.Context, msg ClientMessage) error

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one WebSocket connection.
type Client struct {
	ID   string
	Send chan []byte
	conn Conn
}

// NewClient wraps conn. Send holds at most buffer frames; older frames are
// dropped when a slow client falls behind.
func NewClient(conn Conn, buffer int) *Client {
	if buffer < 1 {
		buffer = 1
	}
	return &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, buffer),
		conn: conn,
	}
}

// offer queues data, evicting the oldest queued frame if the buffer is full.
func (c *Client) offer(data []byte) {
	for {
		select {
		case c.Send <- data:
			return
		default:
		}
		select {
		case <-c.Send:
		default:
		}
	}
}

// Hub tracks connected clients and the most recent snapshot frame, which
// every newly registered client receives first.
type Hub struct {
	mu     sync.RWMutex
	all    map[*Client]struct{}
	last   []byte
	logger zerolog.Logger
}

// NewHub creates a new Hub ready to manage WebSocket clients.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		all:    make(map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client and primes it with the latest snapshot.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	if h.last != nil {
		client.offer(h.last)
	}
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	delete(h.all, client)
	close(client.Send)
}

// Broadcast sends a frame to every client. Snapshot frames are remembered for
// clients that connect later.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Str("type", frame.Type).Msg("websocket: marshal frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if frame.Type == FrameSnapshot {
		h.last = data
	}
	for client := range h.all {
		client.offer(data)
	}
}

// Reply sends a frame to a single client.
func (h *Hub) Reply(client *Client, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Str("type", frame.Type).Msg("websocket: marshal frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.all[client]; ok {
		client.offer(data)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// Frame types.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades connections and pumps frames and commands.
type WebSocketHandler struct {
	hub     *Hub
	command CommandFunc
	ctx     context.Context
	buffer  int
}

// NewWebSocketHandler binds a handler to hub. Commands run with ctx, not the
// upgrade request's context, so they outlive the HTTP exchange.
func NewWebSocketHandler(ctx context.Context, hub *Hub, command CommandFunc) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, command: command, ctx: ctx, buffer: 16}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wsh *WebSocketHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades an HTTP connection to WebSocket, registers the
// client with the hub, and starts read/write pumps.
func (wsh *WebSocketHandler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(&gorillaConnAdapter{ws}, wsh.buffer)
	wsh.hub.Register(client)
	wsh.hub.logger.Debug().Str("client_id", client.ID).Msg("websocket client connected")

	go wsh.writePump(client)
	go wsh.readPump(client)

	return nil
}

// readPump decodes commands until the connection drops.
func (wsh *WebSocketHandler) readPump(client *Client) {
	defer func() {
		wsh.hub.Unregister(client)
		client.conn.Close()
		wsh.hub.logger.Debug().Str("client_id", client.ID).Msg("websocket client disconnected")
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			wsh.hub.Reply(client, Frame{Type: FrameError, Timestamp: time.Now().UTC(), Error: "malformed message"})
			continue
		}
		if wsh.command == nil {
			continue
		}
		if err := wsh.command(wsh.ctx, msg); err != nil {
			wsh.hub.Reply(client, Frame{Type: FrameError, Timestamp: time.Now().UTC(), Error: err.Error()})
		}
	}
}

// writePump writes queued frames until Send is closed.
func (wsh *WebSocketHandler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
