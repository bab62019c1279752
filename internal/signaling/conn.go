package signaling

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 1 * time.Second

// wsConn owns the write side of one WebSocket. Frames are queued by any
// goroutine through Enqueue and written by writePump, so a slow recipient
// never blocks the sender's relay loop.
type wsConn struct {
	id  string
	ws  *websocket.Conn
	log *slog.Logger

	pingInterval time.Duration
	pongTimeout  time.Duration

	send     chan []byte
	done     chan struct{}
	pumpDone chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWSConn(ws *websocket.Conn, queue int, pingInterval, pongTimeout time.Duration, logger *slog.Logger) *wsConn {
	id := uuid.NewString()
	return &wsConn{
		id:           id,
		ws:           ws,
		log:          logger.With("conn_id", id),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		send:         make(chan []byte, queue),
		done:         make(chan struct{}),
		pumpDone:     make(chan struct{}),
	}
}

// Enqueue queues frame for writing without blocking.
func (c *wsConn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendQueueFull
	}
}

// Close ends the connection with a normal closure once queued frames have been
// flushed.
func (c *wsConn) Close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *wsConn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// abort marks the connection closed without attempting a close frame.
func (c *wsConn) abort() {
	c.closeWith(-1, "")
}

// startReading arms the read deadline and keeps extending it on every pong.
func (c *wsConn) startReading(maxMessageBytes int64) {
	c.ws.SetReadLimit(maxMessageBytes)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
}

func (c *wsConn) extendReadDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
}

func (c *wsConn) writePump() {
	defer close(c.pumpDone)
	defer c.ws.Close()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.log.Debug("ws_write_failed", "err", err)
				c.abort()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.log.Debug("ws_ping_failed", "err", err)
				c.abort()
				return
			}
		case <-c.done:
			c.flush()
			c.writeClose()
			return
		}
	}
}

func (c *wsConn) write(frame []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// flush writes whatever is already queued. Enqueue refuses new frames once
// done is closed, so this terminates.
func (c *wsConn) flush() {
	if c.closeCode < 0 {
		return
	}
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) writeClose() {
	if c.closeCode < 0 {
		return
	}
	msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
