package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastTaskEventNoConnections(t *testing.T) {
	hub := NewHub()

	// BroadcastTaskEvent with no connections should not panic.
	hub.BroadcastTaskEvent(context.Background(), EventTaskCompleted, "t1", 2, "https://o.example.io/r")
}

// waitForConns polls until the hub reports n connections or the deadline hits.
func waitForConns(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d connections, got %d", n, hub.ConnectionCount())
}

func TestHandleWSKeepsConnectionRegistered(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	waitForConns(t, hub, 1)

	// The connection must still be registered after the dial settles, not
	// torn down by the handler returning early.
	time.Sleep(300 * time.Millisecond)
	if got := hub.ConnectionCount(); got != 1 {
		t.Fatalf("expected 1 registered connection after connect, got %d", got)
	}

	hub.BroadcastTaskEvent(ctx, EventTaskCompleted, "t1", 2, "https://o.example.io/r")

	typ, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("expected text message, got %v", typ)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.Type != EventTaskCompleted {
		t.Fatalf("expected %s, got %s", EventTaskCompleted, msg.Type)
	}
	var ev TaskEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ev.TaskID != "t1" || ev.Round != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.EventID == "" {
		t.Fatal("expected a non-empty event ID")
	}
}

func TestHandleWSUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForConns(t, hub, 1)

	_ = c.Close(websocket.StatusNormalClosure, "")
	waitForConns(t, hub, 0)
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	// Removing a connection that was never added should not panic.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
}
