package signaling

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

func TestParseInbound_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "not json", "null", "[]", `"offer"`, "42", `{"type":`} {
		if _, err := parseInbound([]byte(raw)); !errors.Is(err, errMalformedFrame) {
			t.Fatalf("parseInbound(%q) err=%v, want errMalformedFrame", raw, err)
		}
	}
}

func TestParseInbound_NonStringTypeIsUnknown(t *testing.T) {
	msg, err := parseInbound([]byte(`{"type":7}`))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if msg.Type != "" {
		t.Fatalf("Type=%q, want empty", msg.Type)
	}
}

func TestInbound_WithSenderOverridesFromID(t *testing.T) {
	msg, err := parseInbound([]byte(`{"type":"offer","to_id":"B","from_id":"spoofed","sdp":{"type":"offer","sdp":"v=0"}}`))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}

	data, err := json.Marshal(msg.withSender("A"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["from_id"] != "A" {
		t.Fatalf("from_id=%v, want A", got["from_id"])
	}
	if got["to_id"] != "B" || got["type"] != "offer" {
		t.Fatalf("original fields not preserved: %v", got)
	}
	sdp, ok := got["sdp"].(map[string]any)
	if !ok || sdp["sdp"] != "v=0" {
		t.Fatalf("sdp=%v, want nested payload intact", got["sdp"])
	}

	// The parsed frame itself is not mutated.
	if from, _ := msg.stringField("from_id"); from != "spoofed" {
		t.Fatalf("inbound from_id=%q, want spoofed", from)
	}
}

func TestInbound_StringFieldRequiresString(t *testing.T) {
	msg, err := parseInbound([]byte(`{"type":"ice","to_id":5}`))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if _, ok := msg.stringField("to_id"); ok {
		t.Fatalf("numeric to_id accepted")
	}
	if _, ok := msg.stringField("missing"); ok {
		t.Fatalf("missing field accepted")
	}
}

func TestRoomState_EmptyEncodesAsArray(t *testing.T) {
	data, err := json.Marshal(newRoomState(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"room_state","peers":[]}` {
		t.Fatalf("room_state=%s", data)
	}

	data, err = json.Marshal(newRoomState([]room.Member{{ID: "A", Name: "alice"}}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"room_state","peers":[{"id":"A","name":"alice"}]}` {
		t.Fatalf("room_state=%s", data)
	}
}

func TestChatFrame_DefaultsAndPassthrough(t *testing.T) {
	msg, err := parseInbound([]byte(`{"type":"chat"}`))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	data, err := json.Marshal(chatFrame{
		Type:     TypeChat,
		FromID:   "A",
		FromName: "alice",
		Text:     msg.rawOr("text", defaultChatText),
		TS:       msg.rawOr("ts", defaultChatTS),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"chat","from_id":"A","from_name":"alice","text":"","ts":0}` {
		t.Fatalf("chat=%s", data)
	}

	msg, err = parseInbound([]byte(`{"type":"chat","text":"hi","ts":1700000000123}`))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if got := string(msg.rawOr("ts", defaultChatTS)); got != "1700000000123" {
		t.Fatalf("ts=%s, want verbatim", got)
	}
}
