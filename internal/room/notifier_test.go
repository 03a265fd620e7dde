package room

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNotifier(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotRoom atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ws" {
			http.NotFound(w, r)
			return
		}
		gotRoom.Store(r.URL.Query().Get("roomId"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CHAT","text":"hi"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"UPDATE","hash":"h1"}`))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var updates atomic.Int32
	n := NewNotifier(Address{BaseURL: srv.URL, ID: "102"}, "tv", func() { updates.Add(1) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for updates.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("updates = %d, want 2 (connect + UPDATE)", updates.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if got, _ := gotRoom.Load().(string); got != "102" {
		t.Errorf("roomId = %q, want 102", got)
	}
	if !strings.HasPrefix(n.url, "ws://") {
		t.Errorf("url = %q, want ws scheme", n.url)
	}
}

func TestNotifierReconnects(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNotifier(Address{BaseURL: srv.URL, ID: "1"}, "", func() {}, nil)
	n.minBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = n.Run(ctx)

	if dials.Load() < 2 {
		t.Errorf("dials = %d, want at least 2", dials.Load())
	}
}
