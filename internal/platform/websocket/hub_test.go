package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Hub tests
// ---------------------------------------------------------------------------

func newTestClient(buffer int) *Client {
	return NewClient(nil, buffer)
}

func decodeFrame(t *testing.T, data []byte) Frame {
	t.Helper()
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("failed to unmarshal frame: %v", err)
	}
	return f
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(4)

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed")
	}

	// A second unregister must not panic on the closed channel.
	hub.Unregister(client)
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c1, c2 := newTestClient(4), newTestClient(4)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(Frame{Type: FrameSnapshot, Version: 3, Data: json.RawMessage(`{"a":1}`)})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.Send:
			f := decodeFrame(t, msg)
			if f.Type != FrameSnapshot || f.Version != 3 {
				t.Fatalf("unexpected frame %+v", f)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive broadcast", c.ID)
		}
	}
}

func TestHub_LateClientGetsLatestSnapshot(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Broadcast(Frame{Type: FrameSnapshot, Version: 1})
	hub.Broadcast(Frame{Type: FrameSnapshot, Version: 2})
	hub.Broadcast(Frame{Type: FrameError, Error: "ignored"})

	client := newTestClient(4)
	hub.Register(client)

	select {
	case msg := <-client.Send:
		if f := decodeFrame(t, msg); f.Version != 2 || f.Type != FrameSnapshot {
			t.Fatalf("expected snapshot version 2, got %+v", f)
		}
	default:
		t.Fatal("expected latest snapshot on register")
	}
	select {
	case msg := <-client.Send:
		t.Fatalf("expected only one frame, got %s", msg)
	default:
	}
}

func TestHub_SlowClientKeepsNewest(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(2)
	hub.Register(client)

	for v := uint64(1); v <= 5; v++ {
		hub.Broadcast(Frame{Type: FrameSnapshot, Version: v})
	}

	var versions []uint64
	for len(client.Send) > 0 {
		versions = append(versions, decodeFrame(t, <-client.Send).Version)
	}
	if len(versions) != 2 || versions[1] != 5 {
		t.Fatalf("expected last two frames ending with 5, got %v", versions)
	}
}

func TestHub_ReplyTargetsOneClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c1, c2 := newTestClient(4), newTestClient(4)
	hub.Register(c1)
	hub.Register(c2)

	hub.Reply(c1, Frame{Type: FrameError, Error: "boom"})

	if f := decodeFrame(t, <-c1.Send); f.Error != "boom" {
		t.Fatalf("expected error frame, got %+v", f)
	}
	select {
	case <-c2.Send:
		t.Fatal("other client should not receive the reply")
	default:
	}

	hub.Unregister(c1)
	hub.Reply(c1, Frame{Type: FrameError, Error: "after close"})
}

func TestHub_ConcurrentRegisterBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newTestClient(1)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func(v uint64) {
			defer wg.Done()
			hub.Broadcast(Frame{Type: FrameSnapshot, Version: v})
		}(uint64(i))
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func TestWebSocketHandler_RegisterRoutes(t *testing.T) {
	handler := NewWebSocketHandler(context.Background(), NewHub(zerolog.Nop()), nil)

	e := echo.New()
	handler.RegisterRoutes(e.Group(""))

	found := false
	for _, r := range e.Routes() {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected GET /ws route to be registered")
	}
}

func TestWebSocketHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	handler := NewWebSocketHandler(context.Background(), NewHub(zerolog.Nop()), nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.HandleConnect(c)

	// gorilla/websocket upgrader will reject non-WS requests
	if err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func dial(t *testing.T, handler *WebSocketHandler) *gorillawebsocket.Conn {
	t.Helper()
	e := echo.New()
	handler.RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	return conn
}

func TestWebSocketHandler_StreamsSnapshots(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Broadcast(Frame{Type: FrameSnapshot, Version: 7})
	conn := dial(t, NewWebSocketHandler(context.Background(), hub, nil))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first Frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if first.Version != 7 {
		t.Fatalf("expected primed snapshot 7, got %+v", first)
	}

	hub.Broadcast(Frame{Type: FrameSnapshot, Version: 8})
	var next Frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if next.Version != 8 {
		t.Fatalf("expected snapshot 8, got %+v", next)
	}
}

func TestWebSocketHandler_RoutesCommands(t *testing.T) {
	got := make(chan ClientMessage, 1)
	command := func(_ context.Context, msg ClientMessage) error {
		got <- msg
		if msg.Action == "explode" {
			return errors.New("unknown action")
		}
		return nil
	}
	conn := dial(t, NewWebSocketHandler(context.Background(), NewHub(zerolog.Nop()), command))

	if err := conn.WriteJSON(ClientMessage{Action: "select", PatientID: "2"}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	select {
	case msg := <-got:
		if msg.Action != "select" || msg.PatientID != "2" {
			t.Fatalf("unexpected command %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}

	if err := conn.WriteJSON(ClientMessage{Action: "explode"}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	<-got
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("failed to read error frame: %v", err)
	}
	if f.Type != FrameError || f.Error != "unknown action" {
		t.Fatalf("expected error frame, got %+v", f)
	}
}

func TestWebSocketHandler_MalformedMessage(t *testing.T) {
	conn := dial(t, NewWebSocketHandler(context.Background(), NewHub(zerolog.Nop()), nil))

	if err := conn.WriteMessage(gorillawebsocket.TextMessage, []byte(`{not valid json`)); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if f.Type != FrameError || f.Error != "malformed message" {
		t.Fatalf("expected malformed message error, got %+v", f)
	}
}

func TestClientMessage_NumericPatientID(t *testing.T) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(`{"action":"select","patientId":2}`), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.PatientID != "2" {
		t.Errorf("expected patient 2, got %q", msg.PatientID)
	}
}
