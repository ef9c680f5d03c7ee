package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/session"
)

func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Subscribe(w, r, sessionID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	// Wait for the subscription to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients[sessionID])
		hub.mu.Unlock()
		if n == 1 {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversSnapshots(t *testing.T) {
	hub := NewHub(logger.New("error"))
	conn := dialHub(t, hub, "sess-1")

	hub.Broadcast(session.Snapshot{ID: "sess-1", State: session.StateUploaded})
	hub.Broadcast(session.Snapshot{ID: "other", State: session.StateExported}) // different session, not delivered
	hub.Broadcast(session.Snapshot{ID: "sess-1", State: session.StateAudioExtracted})

	want := []session.State{session.StateUploaded, session.StateAudioExtracted}
	for _, w := range want {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap session.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if snap.ID != "sess-1" || snap.State != w {
			t.Errorf("received snapshot %s/%s, want sess-1/%s", snap.ID, snap.State, w)
		}
	}
}

// Two stage requests for the same session can finish at the same time, so
// broadcasts for one connection must not interleave on the wire.
func TestHubConcurrentBroadcasts(t *testing.T) {
	hub := NewHub(logger.New("error"))
	conn := dialHub(t, hub, "sess-1")

	const perWriter = 20
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				hub.Broadcast(session.Snapshot{ID: "sess-1", State: session.StateTranscribed})
			}
		}()
	}

	received := 0
	for received < 2*perWriter {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var snap session.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON() after %d messages: %v", received, err)
		}
		received++
	}
	wg.Wait()
}

func TestHubCloseSessionDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(logger.New("error"))
	conn := dialHub(t, hub, "sess-1")

	hub.CloseSession("sess-1")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after CloseSession")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.clients["sess-1"]) != 0 {
		t.Error("subscribers still registered after CloseSession")
	}
}
