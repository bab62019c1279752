package metrics

import "sync"

// Event counter names.
const (
	PeerJoined         = "peer_joined"
	PeerLeft           = "peer_left"
	PeerReplaced       = "peer_replaced"
	RoomCreated        = "room_created"
	RoomDeleted        = "room_deleted"
	RoomFull           = "room_full"
	PeerIDInUse        = "peer_id_in_use"
	DirectedRelayed    = "directed_relayed"
	DirectedDropped    = "directed_dropped"
	ChatBroadcast      = "chat_broadcast"
	UnknownMessageType = "unknown_message_type"
	DeliveryFailed     = "delivery_failed"
	MalformedFrame     = "malformed_frame"
	RateLimited        = "rate_limited"
	OriginRejected     = "origin_rejected"
	RelayPanic         = "relay_panic"
)

// Metrics is a concurrency-safe counter registry keyed by event name.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
