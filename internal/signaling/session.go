package signaling

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateJoined
	stateRelaying
	stateLeaving
	stateClosed
	stateRejected
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateJoined:
		return "joined"
	case stateRelaying:
		return "relaying"
	case stateLeaving:
		return "leaving"
	case stateClosed:
		return "closed"
	case stateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// peerSession drives one connection through join, relay and leave. All of its
// fields are owned by the goroutine running run.
type peerSession struct {
	srv     *Server
	conn    *wsConn
	peer    *room.Peer
	code    string
	state   sessionState
	limiter *rate.Limiter
	log     *slog.Logger
}

func newPeerSession(srv *Server, conn *wsConn, code, peerID, name string) *peerSession {
	code = room.CanonicalCode(code)
	return &peerSession{
		srv:     srv,
		conn:    conn,
		peer:    room.NewPeer(peerID, name, conn.id, conn),
		code:    code,
		state:   stateConnecting,
		limiter: rate.NewLimiter(rate.Limit(srv.cfg.MaxMessagesPerSecond), srv.cfg.MaxMessagesPerSecond),
		log:     conn.log.With("room", code, "peer_id", peerID),
	}
}

func (s *peerSession) run() {
	defer s.conn.Close()
	defer s.leave()
	defer s.recoverFault()

	if !s.join() {
		return
	}
	s.relay()
}

func (s *peerSession) recoverFault() {
	if r := recover(); r != nil {
		s.srv.metrics.Inc(metrics.RelayPanic)
		s.log.Error("relay_panic", "state", s.state.String(), "panic", r, "stack", string(debug.Stack()))
		s.conn.closeWith(websocket.CloseInternalServerErr, "internal error")
	}
}

func (s *peerSession) join() bool {
	res, err := s.srv.rooms.Admit(s.code, s.peer, func(res room.AdmitResult) {
		// Queued while the registry lock is held so room_state precedes any
		// peer_joined or chat from members admitted afterwards.
		s.srv.fanout.DeliverOne(s.peer, newRoomState(res.Existing))
	})
	switch {
	case errors.Is(err, room.ErrRoomFull):
		s.state = stateRejected
		s.srv.metrics.Inc(metrics.RoomFull)
		s.log.Info("room_full", "capacity", s.srv.rooms.Capacity())
		s.srv.fanout.DeliverOne(s.peer, roomFullFrame{Type: TypeRoomFull})
		s.conn.closeWith(websocket.CloseNormalClosure, "room full")
		return false
	case errors.Is(err, room.ErrPeerIDInUse):
		s.state = stateRejected
		s.srv.metrics.Inc(metrics.PeerIDInUse)
		s.log.Info("peer_id_in_use")
		s.srv.fanout.DeliverOne(s.peer, errorFrame{Type: TypeError, Code: ErrorCodePeerIDInUse, Message: "peer id already in use in room"})
		s.conn.closeWith(websocket.ClosePolicyViolation, "peer id in use")
		return false
	case err != nil:
		s.state = stateRejected
		s.log.Warn("admit_failed", "err", err)
		s.conn.closeWith(websocket.ClosePolicyViolation, err.Error())
		return false
	}

	s.state = stateJoined
	s.srv.metrics.Inc(metrics.PeerJoined)
	if res.Created {
		s.srv.metrics.Inc(metrics.RoomCreated)
	}
	if res.Replaced != nil {
		s.srv.metrics.Inc(metrics.PeerReplaced)
		s.log.Info("peer_replaced", "replaced_conn_id", res.Replaced.ConnID)
		s.srv.fanout.DeliverOne(res.Replaced, errorFrame{Type: TypeError, Code: ErrorCodePeerReplaced, Message: "peer id joined from another connection"})
		res.Replaced.Close()
	}
	s.log.Info("peer_joined", "members", len(res.Existing)+1)
	// Members admitted after this one already list it in their room_state.
	s.srv.fanout.DeliverTo(res.Others, peerJoinedFrame{Type: TypePeerJoined, PeerID: s.peer.ID, Name: s.peer.Name})
	return true
}

func (s *peerSession) relay() {
	s.state = stateRelaying
	for {
		msgType, data, err := s.conn.ws.ReadMessage()
		if err != nil {
			s.readFailed(err)
			return
		}
		s.conn.extendReadDeadline()

		// The frame has already been consumed from the socket, so closing here
		// does not leave unread bytes behind.
		if !s.limiter.Allow() {
			s.srv.metrics.Inc(metrics.RateLimited)
			s.log.Warn("rate_limited")
			s.conn.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			s.srv.metrics.Inc(metrics.MalformedFrame)
			s.log.Info("malformed_frame", "err", "binary frame")
			s.conn.closeWith(websocket.CloseUnsupportedData, "text frames only")
			return
		}

		msg, err := parseInbound(data)
		if err != nil {
			s.srv.metrics.Inc(metrics.MalformedFrame)
			s.log.Info("malformed_frame", "err", err)
			s.conn.closeWith(websocket.CloseInvalidFramePayloadData, "malformed frame")
			return
		}
		s.dispatch(msg)
	}
}

func (s *peerSession) readFailed(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.srv.metrics.Inc(metrics.MalformedFrame)
		s.log.Info("malformed_frame", "err", "message too big")
		s.conn.closeWith(websocket.CloseMessageTooBig, "message too big")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.log.Debug("peer_closed")
	case isTimeout(err):
		s.log.Info("peer_unresponsive")
		s.conn.closeWith(websocket.CloseGoingAway, "ping timeout")
	default:
		s.log.Debug("ws_read_failed", "err", err)
	}
}

func (s *peerSession) dispatch(msg inbound) {
	if s.srv.dispatchHook != nil {
		s.srv.dispatchHook(msg)
	}
	switch msg.Type {
	case TypeOffer, TypeAnswer, TypeICE:
		s.relayDirected(msg)
	case TypeChat:
		frame := chatFrame{
			Type:     TypeChat,
			FromID:   s.peer.ID,
			FromName: s.peer.Name,
			Text:     msg.rawOr("text", defaultChatText),
			TS:       msg.rawOr("ts", defaultChatTS),
		}
		n := s.srv.fanout.Broadcast(s.code, frame, s.peer.ID)
		s.srv.metrics.Inc(metrics.ChatBroadcast)
		s.log.Debug("chat_broadcast", "recipients", n)
	default:
		s.srv.metrics.Inc(metrics.UnknownMessageType)
		s.log.Debug("unknown_message_type", "type", msg.Type)
	}
}

func (s *peerSession) relayDirected(msg inbound) {
	toID, ok := msg.stringField("to_id")
	if !ok {
		s.srv.metrics.Inc(metrics.DirectedDropped)
		s.log.Debug("directed_dropped", "type", msg.Type, "reason", "missing to_id")
		return
	}
	target, ok := s.srv.rooms.Lookup(s.code, toID)
	if !ok {
		s.srv.metrics.Inc(metrics.DirectedDropped)
		s.log.Debug("directed_dropped", "type", msg.Type, "to_id", toID, "reason", "not in room")
		return
	}
	if s.srv.fanout.DeliverOne(target, msg.withSender(s.peer.ID)) {
		s.srv.metrics.Inc(metrics.DirectedRelayed)
	}
}

// leave runs on every exit path. Only a session that is still the registered
// owner of its peer id announces peer_left.
func (s *peerSession) leave() {
	if s.state != stateJoined && s.state != stateRelaying {
		s.state = stateClosed
		return
	}
	s.state = stateLeaving

	removed, empty := s.srv.rooms.Release(s.code, s.peer)
	if !removed {
		s.log.Info("peer_left", "displaced", true)
		s.state = stateClosed
		return
	}
	s.srv.metrics.Inc(metrics.PeerLeft)
	s.srv.fanout.Broadcast(s.code, peerLeftFrame{Type: TypePeerLeft, PeerID: s.peer.ID}, s.peer.ID)
	if empty {
		s.srv.metrics.Inc(metrics.RoomDeleted)
		s.log.Info("room_deleted")
	}
	s.log.Info("peer_left")
	s.state = stateClosed
}
