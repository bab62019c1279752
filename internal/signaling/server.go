package signaling

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

const (
	DefaultMaxMessageBytes      int64 = 64 * 1024
	DefaultMaxMessagesPerSecond       = 50
	DefaultSendQueueMessages          = 256
	DefaultPingInterval               = 20 * time.Second
	DefaultPongTimeout                = 60 * time.Second
)

type Config struct {
	Rooms   *room.Registry
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Origin  origin.Policy

	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	SendQueueMessages    int
	PingInterval         time.Duration
	PongTimeout          time.Duration
}

type Server struct {
	cfg      Config
	rooms    *room.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
	fanout   *Fanout
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*wsConn]struct{}
	closed bool
	wg     sync.WaitGroup

	// dispatchHook runs before each parsed frame is routed. Tests only; it
	// must be set before the first connection is accepted.
	dispatchHook func(inbound)
}

func NewServer(cfg Config) *Server {
	if cfg.Rooms == nil {
		cfg.Rooms = room.NewRegistry(room.Options{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.MaxMessagesPerSecond <= 0 {
		cfg.MaxMessagesPerSecond = DefaultMaxMessagesPerSecond
	}
	if cfg.SendQueueMessages <= 0 {
		cfg.SendQueueMessages = DefaultSendQueueMessages
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}

	return &Server{
		cfg:     cfg,
		rooms:   cfg.Rooms,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		fanout:  NewFanout(cfg.Rooms, cfg.Metrics, cfg.Logger),
		upgrader: websocket.Upgrader{
			// Origin is checked before Upgrade so a rejection is a plain 403.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*wsConn]struct{}),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{room}/{peer}/{name}", s.handleWebSocket)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("room"))
	peerID := strings.TrimSpace(r.PathValue("peer"))
	name := r.PathValue("name")
	if code == "" || peerID == "" {
		http.Error(w, "room code and peer id must not be empty", http.StatusBadRequest)
		return
	}
	if !s.cfg.Origin.AllowsRequest(r) {
		s.metrics.Inc(metrics.OriginRejected)
		s.log.Warn("origin_rejected", "origin", r.Header.Get("Origin"), "host", r.Host)
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	// Upgrade writes its own response, so headers already set on w are lost.
	var respHeader http.Header
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		respHeader = http.Header{"X-Request-Id": {reqID}}
	}
	ws, err := s.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade has already written an error response.
		s.log.Debug("ws_upgrade_failed", "err", err)
		return
	}

	conn := newWSConn(ws, s.cfg.SendQueueMessages, s.cfg.PingInterval, s.cfg.PongTimeout, s.log)
	if !s.track(conn) {
		conn.closeWith(websocket.CloseGoingAway, "server shutting down")
		conn.writePump()
		return
	}
	defer s.untrack(conn)

	go conn.writePump()
	conn.startReading(s.cfg.MaxMessageBytes)
	newPeerSession(s, conn, code, peerID, name).run()
	<-conn.pumpDone
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// Close stops accepting sessions, closes every live connection with
// CloseGoingAway and waits for each session to finish leaving its room.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	s.wg.Wait()
	return nil
}
