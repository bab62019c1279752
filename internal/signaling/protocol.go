package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

const (
	TypeRoomFull   = "room_full"
	TypeRoomState  = "room_state"
	TypePeerJoined = "peer_joined"
	TypePeerLeft   = "peer_left"
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeICE        = "ice"
	TypeChat       = "chat"
	TypeError      = "error"
)

// Error codes carried by terminal error frames.
const (
	ErrorCodePeerIDInUse  = "peer_id_in_use"
	ErrorCodePeerReplaced = "peer_replaced"
)

type roomFullFrame struct {
	Type string `json:"type"`
}

type roomStateFrame struct {
	Type  string        `json:"type"`
	Peers []room.Member `json:"peers"`
}

type peerJoinedFrame struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id"`
	Name   string `json:"name"`
}

type peerLeftFrame struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id"`
}

// chatFrame passes text and ts through exactly as the sender wrote them.
type chatFrame struct {
	Type     string          `json:"type"`
	FromID   string          `json:"from_id"`
	FromName string          `json:"from_name"`
	Text     json.RawMessage `json:"text"`
	TS       json.RawMessage `json:"ts"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

var (
	defaultChatText = json.RawMessage(`""`)
	defaultChatTS   = json.RawMessage(`0`)
)

// inbound is one client frame. Every field is kept verbatim so directed relay
// can forward the payload untouched.
type inbound struct {
	Type   string
	fields map[string]json.RawMessage
}

// parseInbound accepts any JSON object. A missing or non-string type yields
// an empty Type, which the router treats as unknown.
func parseInbound(data []byte) (inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return inbound{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if fields == nil {
		return inbound{}, fmt.Errorf("%w: expected a JSON object", errMalformedFrame)
	}
	msg := inbound{fields: fields}
	msg.Type, _ = msg.stringField("type")
	return msg, nil
}

func (m inbound) stringField(name string) (string, bool) {
	raw, ok := m.fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (m inbound) rawOr(name string, fallback json.RawMessage) json.RawMessage {
	if raw, ok := m.fields[name]; ok {
		return raw
	}
	return fallback
}

// withSender returns a copy of the frame's fields with from_id set to the
// sender, replacing any from_id the client supplied.
func (m inbound) withSender(peerID string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m.fields)+1)
	for k, v := range m.fields {
		out[k] = v
	}
	from, _ := json.Marshal(peerID)
	out["from_id"] = from
	return out
}

func newRoomState(existing []room.Member) roomStateFrame {
	if existing == nil {
		existing = []room.Member{}
	}
	return roomStateFrame{Type: TypeRoomState, Peers: existing}
}
