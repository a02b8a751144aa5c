package api_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tank-arena/internal/api"
	"tank-arena/internal/config"
	"tank-arena/internal/game"
)

// ============================================================================
// WebSocket Tests
// ============================================================================

func newWSServer(t *testing.T, engine api.EngineInterface) (*api.Server, string) {
	t.Helper()
	cfg := config.DefaultServer()
	cfg.ReadRPS, cfg.ReadBurst = 1000, 1000
	cfg.InputRPS, cfg.InputBurst = 1000, 1000
	return startWSServer(t, api.ServerOptions{Engine: engine, Config: cfg})
}

func startWSServer(t *testing.T, opts api.ServerOptions) (*api.Server, string) {
	t.Helper()
	srv := api.NewServer(opts)
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)
	go srv.Hub().BroadcastLoop(ctx, 50)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestWebSocketStateAndInput receives snapshots and sends input
func TestWebSocketStateAndInput(t *testing.T) {
	engine := NewMockEngine()
	srv, url := newWSServer(t, engine)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return srv.Hub().ClientCount() == 1 })

	var msg struct {
		Event string            `json:"event"`
		Data  game.GameSnapshot `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Event != "game:state" {
		t.Errorf("Expected event 'game:state', got '%s'", msg.Event)
	}
	if msg.Data.TickNumber != 42 {
		t.Errorf("Expected tick 42, got %d", msg.Data.TickNumber)
	}

	input := map[string]interface{}{
		"type": "input",
		"keys": map[string]bool{"up": true},
		"fire": true,
	}
	if err := conn.WriteJSON(input); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	// Unknown types are ignored
	if err := conn.WriteJSON(map[string]string{"type": "chat"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	waitFor(t, func() bool {
		keys, fires := engine.inputs()
		return len(keys) == 1 && fires == 1
	})
	keys, _ := engine.inputs()
	if keys[0] != (game.KeyState{Up: true}) {
		t.Errorf("Expected up, got %+v", keys[0])
	}

	conn.Close()
	waitFor(t, func() bool { return srv.Hub().ClientCount() == 0 })
}

// TestWebSocketPerIPLimit rejects connections beyond the per-IP cap
func TestWebSocketPerIPLimit(t *testing.T) {
	const maxPerIP = 3
	rejects := &countingRejects{}
	cfg := config.DefaultServer()
	cfg.MaxWSPerIP = maxPerIP
	srv, url := startWSServer(t, api.ServerOptions{Engine: NewMockEngine(), Config: cfg, Rejects: rejects})

	var conns []*websocket.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < maxPerIP; i++ {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial %d failed: %v", i, err)
		}
		conns = append(conns, c)
	}
	waitFor(t, func() bool { return srv.Hub().ClientCount() == maxPerIP })

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected dial beyond the per-IP limit to fail")
	}
	if resp == nil || resp.StatusCode != 429 {
		t.Errorf("Expected 429 response, got %v", resp)
	}
	if got := rejects.count(api.RejectWSIPLimit); got != 1 {
		t.Errorf("Expected 1 ws_ip_limit reject recorded, got %d", got)
	}

	// Closing one frees a slot
	conns[0].Close()
	conns = conns[1:]
	waitFor(t, func() bool { return srv.Hub().ConnectionsFrom("127.0.0.1") == maxPerIP-1 })
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Expected dial after a close to succeed: %v", err)
	}
	conns = append(conns, c)
}

// TestWebSocketRejectsOrigin refuses browsers from unknown origins
func TestWebSocketRejectsOrigin(t *testing.T) {
	_, url := newWSServer(t, NewMockEngine())

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected dial from unknown origin to fail")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Errorf("Expected 403 response, got %v", resp)
	}
}
