package httpserver

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/signaling"
)

func TestSignalingUpgradeThroughMiddleware(t *testing.T) {
	var sig *signaling.Server
	env := startTestEnv(t, devConfig(), func(s *Server, rooms *room.Registry, m *metrics.Metrics) {
		sig = signaling.NewServer(signaling.Config{
			Rooms:   rooms,
			Metrics: m,
			Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		sig.RegisterRoutes(s.Mux())
	})
	t.Cleanup(func() { _ = sig.Close() })

	wsURL := "ws" + strings.TrimPrefix(env.baseURL, "http") + "/ws/lobby/A/alice"
	c, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("upgrade response missing X-Request-ID")
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var state map[string]any
	if err := c.ReadJSON(&state); err != nil {
		t.Fatalf("read: %v", err)
	}
	if state["type"] != "room_state" {
		t.Fatalf("first frame=%v, want room_state", state)
	}

	var rooms map[string]roomSummary
	getJSON(t, env.baseURL+"/rooms", &rooms)
	if rooms["LOBBY"].Participants != 1 {
		t.Fatalf("rooms=%v, want LOBBY with 1 participant", rooms)
	}
}
