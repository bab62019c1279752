// Package signaling relays WebRTC handshake and chat frames between peers
// that share a room.
//
// Each WebSocket connection on GET /ws/{room}/{peer}/{name} runs one
// peerSession:
//
//	CONNECTING -> JOINED -> RELAYING -> LEAVING -> CLOSED
//	CONNECTING -> REJECTED -> CLOSED
//
// offer, answer and ice frames go to the single member named by to_id; chat
// frames go to every other member. Anything else is ignored. Delivery is best
// effort: frames are queued per recipient, and a slow or closed recipient
// only loses its own frames.
package signaling
