package signaling

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestKeepalive_NoPongLeavesRoom(t *testing.T) {
	r := newTestRelay(t, Config{
		PingInterval: 50 * time.Millisecond,
		PongTimeout:  500 * time.Millisecond,
	})

	a, _ := r.join(t, "ROOM", "A", "alice")
	b, _ := r.join(t, "ROOM", "B", "bob")
	expectFrame(t, a, TypePeerJoined)

	// A must keep reading so its default handler answers pings.
	aFrame := make(chan map[string]any, 1)
	go func() {
		var m map[string]any
		_ = a.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := a.ReadJSON(&m); err == nil {
			aFrame <- m
		}
		close(aFrame)
	}()

	pingSeen := make(chan struct{}, 1)
	b.SetPingHandler(func(string) error {
		select {
		case pingSeen <- struct{}{}:
		default:
		}
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_ = b.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, _, err := b.ReadMessage()
		errCh <- err
	}()

	select {
	case <-pingSeen:
	case err := <-errCh:
		t.Fatalf("connection closed before receiving ping: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server ping")
	}

	select {
	case err := <-errCh:
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("expected close going away, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for server to close unresponsive websocket")
	}

	select {
	case got, ok := <-aFrame:
		if !ok || got["type"] != TypePeerLeft || got["peer_id"] != "B" {
			t.Fatalf("A frame=%v ok=%v, want peer_left for B", got, ok)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for peer_left")
	}
}

func TestKeepalive_PongKeepsSilentPeerInRoom(t *testing.T) {
	r := newTestRelay(t, Config{
		PingInterval: 50 * time.Millisecond,
		PongTimeout:  300 * time.Millisecond,
	})

	a, _ := r.join(t, "ROOM", "A", "alice")

	errCh := make(chan error, 1)
	go func() {
		// The default ping handler answers with a pong while ReadMessage runs.
		_ = a.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, err := a.ReadMessage()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		t.Fatalf("connection closed while answering pings: %v", err)
	case <-time.After(1 * time.Second):
	}
	if _, ok := r.rooms.Lookup("ROOM", "A"); !ok {
		t.Fatalf("silent peer evicted despite answering pings")
	}
}
