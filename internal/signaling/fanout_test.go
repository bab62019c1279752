package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

type fakeOutbox struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	closed bool
}

func (o *fakeOutbox) Enqueue(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.frames = append(o.frames, frame)
	return nil
}

func (o *fakeOutbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *fakeOutbox) types(t *testing.T) []string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.frames))
	for _, f := range o.frames {
		var v struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(f, &v); err != nil {
			t.Fatalf("unmarshal %s: %v", f, err)
		}
		out = append(out, v.Type)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func admit(t *testing.T, reg *room.Registry, code, id string) *fakeOutbox {
	t.Helper()
	out := &fakeOutbox{}
	if _, err := reg.Admit(code, room.NewPeer(id, id, "conn-"+id, out), nil); err != nil {
		t.Fatalf("admit %s: %v", id, err)
	}
	return out
}

func TestFanout_BroadcastExcludesSender(t *testing.T) {
	reg := room.NewRegistry(room.Options{})
	a := admit(t, reg, "ABC", "A")
	b := admit(t, reg, "ABC", "B")
	c := admit(t, reg, "ABC", "C")
	other := admit(t, reg, "XYZ", "D")

	f := NewFanout(reg, metrics.New(), discardLogger())
	n := f.Broadcast("ABC", peerLeftFrame{Type: TypePeerLeft, PeerID: "Z"}, "A")
	if n != 2 {
		t.Fatalf("delivered=%d, want 2", n)
	}
	if got := len(a.types(t)); got != 0 {
		t.Fatalf("sender received %d frames", got)
	}
	for name, o := range map[string]*fakeOutbox{"B": b, "C": c} {
		if got := o.types(t); len(got) != 1 || got[0] != TypePeerLeft {
			t.Fatalf("%s frames=%v, want [peer_left]", name, got)
		}
	}
	if got := len(other.types(t)); got != 0 {
		t.Fatalf("other room received %d frames", got)
	}
}

func TestFanout_DeliveryFailureIsLocal(t *testing.T) {
	reg := room.NewRegistry(room.Options{})
	admit(t, reg, "ABC", "A")
	b := admit(t, reg, "ABC", "B")
	b.err = errSendQueueFull
	c := admit(t, reg, "ABC", "C")

	m := metrics.New()
	f := NewFanout(reg, m, discardLogger())
	if n := f.Broadcast("ABC", roomFullFrame{Type: TypeRoomFull}, "A"); n != 1 {
		t.Fatalf("delivered=%d, want 1", n)
	}
	if got := len(c.types(t)); got != 1 {
		t.Fatalf("C frames=%d, want 1", got)
	}
	if got := m.Get(metrics.DeliveryFailed); got != 1 {
		t.Fatalf("delivery_failed=%d, want 1", got)
	}
	if _, ok := reg.Lookup("ABC", "B"); !ok {
		t.Fatalf("failed recipient must stay in the room")
	}
}

func TestFanout_BroadcastToMissingRoom(t *testing.T) {
	f := NewFanout(room.NewRegistry(room.Options{}), nil, discardLogger())
	if n := f.Broadcast("NOPE", peerLeftFrame{Type: TypePeerLeft, PeerID: "A"}, ""); n != 0 {
		t.Fatalf("delivered=%d, want 0", n)
	}
}

func TestFanout_DeliverOneEncodesFrame(t *testing.T) {
	reg := room.NewRegistry(room.Options{})
	out := &fakeOutbox{}
	p := room.NewPeer("A", "alice", "c1", out)

	f := NewFanout(reg, nil, discardLogger())
	if !f.DeliverOne(p, peerJoinedFrame{Type: TypePeerJoined, PeerID: "B", Name: "bob"}) {
		t.Fatalf("DeliverOne returned false")
	}
	if got := string(out.frames[0]); got != `{"type":"peer_joined","peer_id":"B","name":"bob"}` {
		t.Fatalf("frame=%s", got)
	}

	if f.DeliverOne(p, func() {}) {
		t.Fatalf("unencodable frame reported as delivered")
	}
}

func TestFanout_DeliverToFixedRecipients(t *testing.T) {
	reg := room.NewRegistry(room.Options{})
	a := admit(t, reg, "ABC", "A")
	res, err := reg.Admit("ABC", room.NewPeer("B", "bob", "conn-B", &fakeOutbox{}), nil)
	if err != nil {
		t.Fatalf("admit B: %v", err)
	}
	late := admit(t, reg, "ABC", "C")

	f := NewFanout(reg, metrics.New(), discardLogger())
	if n := f.DeliverTo(res.Others, peerJoinedFrame{Type: TypePeerJoined, PeerID: "B", Name: "bob"}); n != 1 {
		t.Fatalf("delivered=%d, want 1", n)
	}
	if got := a.types(t); len(got) != 1 || got[0] != TypePeerJoined {
		t.Fatalf("A frames=%v, want [peer_joined]", got)
	}
	// C was admitted after B and already lists B in its room_state.
	if got := late.types(t); len(got) != 0 {
		t.Fatalf("C frames=%v, want none", got)
	}
}
