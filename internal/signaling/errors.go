package signaling

import "errors"

var (
	errMalformedFrame = errors.New("signaling: malformed frame")
	errConnClosed     = errors.New("signaling: connection closed")
	errSendQueueFull  = errors.New("signaling: send queue full")
)
