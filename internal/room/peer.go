package room

// Outbox is the outbound delivery channel of a single connection.
//
// Enqueue must not block on network I/O; implementations queue the frame for a
// writer goroutine and report an error when the connection is gone or its
// queue is saturated. Close asks the connection to terminate.
type Outbox interface {
	Enqueue(frame []byte) error
	Close()
}

// Peer is one connected client's identity plus its delivery channel. The
// outbox is only reachable through Send and Close.
type Peer struct {
	ID   string
	Name string
	// ConnID distinguishes two connections that present the same peer id.
	ConnID string

	out Outbox
}

func NewPeer(id, name, connID string, out Outbox) *Peer {
	return &Peer{ID: id, Name: name, ConnID: connID, out: out}
}

// Send queues an already-encoded frame for delivery to this peer.
func (p *Peer) Send(frame []byte) error {
	return p.out.Enqueue(frame)
}

// Close terminates the peer's connection. Its own cleanup path then runs.
func (p *Peer) Close() {
	p.out.Close()
}

// Member is the (id, name) pair advertised to other peers.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *Peer) Member() Member {
	return Member{ID: p.ID, Name: p.Name}
}
