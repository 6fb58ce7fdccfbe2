package wsfanout

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConnVisibleUnrestrictedScopeEmptySubs(t *testing.T) {
	c := &conn{subs: make(map[int64]struct{})}
	if !c.visible(42) {
		t.Error("unrestricted scope with no subscriptions should see everything")
	}
}

func TestConnVisibleScopeExcludes(t *testing.T) {
	scope := []int64{1, 2}
	c := &conn{scope: &scope, subs: make(map[int64]struct{})}
	if c.visible(3) {
		t.Error("chat outside scope must never be visible")
	}
	if !c.visible(1) {
		t.Error("chat inside scope with no subscriptions should be visible")
	}
}

func TestConnVisibleRequiresSubscriptionWhenNonEmpty(t *testing.T) {
	c := &conn{subs: map[int64]struct{}{5: {}}}
	if !c.visible(5) {
		t.Error("subscribed chat should be visible")
	}
	if c.visible(6) {
		t.Error("non-subscribed chat should be dropped once subscriptions is non-empty")
	}
}

func TestContains(t *testing.T) {
	s := []int64{1, 2, 3}
	if !contains(s, 2) {
		t.Error("expected 2 to be found")
	}
	if contains(s, 4) {
		t.Error("expected 4 to be absent")
	}
}

func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http")
}

func TestUpgradeAcceptsAndDeliversBroadcast(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Upgrade(w, r, nil)
	}))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && hub.ConnectionCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	if hub.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1", hub.ConnectionCount())
	}

	hub.BroadcastNewMessage(42, map[string]any{"text": "hi"})

	ws.SetReadDeadline(time.Now().Add(time.Second))
	var env Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("failed to read broadcast frame: %v", err)
	}
	if env.Type != "new_message" || env.ChatID != 42 {
		t.Errorf("envelope = %+v, want type=new_message chat_id=42", env)
	}
}

func TestUpgradeRestrictsBroadcastToScope(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := []int64{1}
		hub.Upgrade(w, r, &scope)
	}))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && hub.ConnectionCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	hub.BroadcastNewMessage(99, map[string]any{}) // out of scope, must not arrive
	hub.BroadcastNewMessage(1, map[string]any{})  // in scope, must arrive

	ws.SetReadDeadline(time.Now().Add(time.Second))
	var env Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("failed to read broadcast frame: %v", err)
	}
	if env.ChatID != 1 {
		t.Errorf("first delivered envelope chat_id = %d, want 1 (out-of-scope chat 99 should never arrive)", env.ChatID)
	}
}

func TestCloseUnauthenticatedSendsCloseCode4001(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.CloseUnauthenticated(w, r)
	}))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = ws.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != closeAuthRequired {
		t.Errorf("close code = %d, want %d", closeErr.Code, closeAuthRequired)
	}
}
