package signaling

import (
	"encoding/json"
	"log/slog"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

// Fanout delivers frames to room members. Failures are logged and counted
// per recipient and never reported to the caller as errors.
type Fanout struct {
	rooms   *room.Registry
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewFanout(rooms *room.Registry, m *metrics.Metrics, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{rooms: rooms, metrics: m, log: logger}
}

// DeliverOne encodes frame and queues it for p. It reports whether the frame
// was queued.
func (f *Fanout) DeliverOne(p *room.Peer, frame any) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		f.log.Error("encode_frame_failed", "peer_id", p.ID, "err", err)
		return false
	}
	return f.deliver(p, data)
}

// Broadcast delivers frame to every member of the room except excludePeerID.
// Recipients are taken from a snapshot, so joins and leaves racing with the
// broadcast only affect later ones. It returns the number of recipients the
// frame was queued for.
func (f *Fanout) Broadcast(code string, frame any, excludePeerID string) int {
	data, err := json.Marshal(frame)
	if err != nil {
		f.log.Error("encode_frame_failed", "room", code, "err", err)
		return 0
	}

	delivered := 0
	for _, p := range f.rooms.Snapshot(code) {
		if p.ID == excludePeerID {
			continue
		}
		if f.deliver(p, data) {
			delivered++
		}
	}
	return delivered
}

// DeliverTo delivers frame to each of peers. It returns the number of peers
// the frame was queued for.
func (f *Fanout) DeliverTo(peers []*room.Peer, frame any) int {
	data, err := json.Marshal(frame)
	if err != nil {
		f.log.Error("encode_frame_failed", "err", err)
		return 0
	}

	delivered := 0
	for _, p := range peers {
		if f.deliver(p, data) {
			delivered++
		}
	}
	return delivered
}

func (f *Fanout) deliver(p *room.Peer, data []byte) bool {
	if err := p.Send(data); err != nil {
		f.metrics.Inc(metrics.DeliveryFailed)
		f.log.Warn("delivery_failed", "peer_id", p.ID, "conn_id", p.ConnID, "err", err)
		return false
	}
	return true
}
