package room

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MaxPeersPerRoom is the hard ceiling on room membership. Capacity may be
// configured lower but never higher.
const MaxPeersPerRoom = 30

type DuplicatePolicy string

const (
	// DuplicateReplace lets a new connection take over an existing peer id.
	// The displaced connection is closed and leaves silently.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateReject refuses a second connection for a peer id that is
	// already a member.
	DuplicateReject DuplicatePolicy = "reject"
)

func ParseDuplicatePolicy(raw string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(DuplicateReplace):
		return DuplicateReplace, nil
	case string(DuplicateReject):
		return DuplicateReject, nil
	default:
		return "", fmt.Errorf("invalid duplicate peer id policy %q (expected %s or %s)", raw, DuplicateReplace, DuplicateReject)
	}
}

// CanonicalCode folds a user-typed room code to the form shared by every
// member of the room.
func CanonicalCode(code string) string {
	return strings.ToUpper(code)
}

type Options struct {
	// Capacity caps members per room. Zero means MaxPeersPerRoom.
	Capacity        int
	DuplicatePolicy DuplicatePolicy
}

// AdmitResult describes a successful admission.
type AdmitResult struct {
	Code string
	// Existing lists the other members present at the instant of admission,
	// sorted by peer id.
	Existing []Member
	// Others holds the sessions behind Existing. Announcing the admission to
	// exactly these peers reaches every member that did not see the newcomer
	// in its own room_state.
	Others []*Peer
	// Created is set when this admission brought the room into existence.
	Created bool
	// Replaced is the session displaced under DuplicateReplace, if any.
	Replaced *Peer
}

type room struct {
	peers map[string]*Peer
}

// Registry maps canonical room codes to their members.
//
// A room exists in the registry iff it has at least one member. All critical
// sections are pure map manipulation; callers perform network sends against
// the copies Snapshot returns.
type Registry struct {
	capacity int
	policy   DuplicatePolicy

	mu    sync.RWMutex
	rooms map[string]*room
}

func NewRegistry(opts Options) *Registry {
	capacity := opts.Capacity
	if capacity <= 0 || capacity > MaxPeersPerRoom {
		capacity = MaxPeersPerRoom
	}
	policy := opts.DuplicatePolicy
	if policy == "" {
		policy = DuplicateReplace
	}
	return &Registry{
		capacity: capacity,
		policy:   policy,
		rooms:    make(map[string]*room),
	}
}

func (r *Registry) Capacity() int { return r.capacity }

func (r *Registry) DuplicatePolicy() DuplicatePolicy { return r.policy }

// Admit inserts p into the room named by code.
//
// A room at capacity rejects with ErrRoomFull, even when p would only replace
// an existing entry. If onAdmit is non-nil it runs before the registry lock is
// released, so any frame it enqueues for p is ordered ahead of every frame
// another session can route to p. onAdmit must not block.
func (r *Registry) Admit(code string, p *Peer, onAdmit func(AdmitResult)) (AdmitResult, error) {
	code = CanonicalCode(code)
	if code == "" {
		return AdmitResult{}, ErrInvalidRoomCode
	}
	if p == nil || p.ID == "" {
		return AdmitResult{}, ErrInvalidPeerID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if ok && len(rm.peers) >= r.capacity {
		return AdmitResult{}, ErrRoomFull
	}

	res := AdmitResult{Code: code, Created: !ok}
	if ok {
		if prev, dup := rm.peers[p.ID]; dup {
			if r.policy == DuplicateReject {
				return AdmitResult{}, ErrPeerIDInUse
			}
			res.Replaced = prev
		}
	} else {
		rm = &room{peers: make(map[string]*Peer)}
		r.rooms[code] = rm
	}

	res.Others = make([]*Peer, 0, len(rm.peers))
	for id, other := range rm.peers {
		if id == p.ID {
			continue
		}
		res.Others = append(res.Others, other)
	}
	sort.Slice(res.Others, func(i, j int) bool { return res.Others[i].ID < res.Others[j].ID })
	res.Existing = make([]Member, len(res.Others))
	for i, other := range res.Others {
		res.Existing[i] = other.Member()
	}

	rm.peers[p.ID] = p
	if onAdmit != nil {
		onAdmit(res)
	}
	return res, nil
}

// Remove deletes peerID from the room regardless of which session holds it.
// A room left with no members is deleted in the same step. Removing an absent
// peer is a no-op.
func (r *Registry) Remove(code, peerID string) (removed, empty bool) {
	code = CanonicalCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return false, true
	}
	if _, ok := rm.peers[peerID]; !ok {
		return false, len(rm.peers) == 0
	}
	delete(rm.peers, peerID)
	return true, r.pruneLocked(code, rm)
}

// Release removes p only while it is still the session registered under its
// peer id. A connection displaced by a newer session with the same id
// therefore cannot evict its replacement.
func (r *Registry) Release(code string, p *Peer) (removed, empty bool) {
	code = CanonicalCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return false, true
	}
	if cur, ok := rm.peers[p.ID]; !ok || cur != p {
		return false, len(rm.peers) == 0
	}
	delete(rm.peers, p.ID)
	return true, r.pruneLocked(code, rm)
}

func (r *Registry) pruneLocked(code string, rm *room) bool {
	if len(rm.peers) > 0 {
		return false
	}
	delete(r.rooms, code)
	return true
}

// Snapshot returns a copy of the room's current members. Mutating the
// registry afterwards does not affect the returned slice.
func (r *Registry) Snapshot(code string) []*Peer {
	code = CanonicalCode(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil
	}
	out := make([]*Peer, 0, len(rm.peers))
	for _, p := range rm.peers {
		out = append(out, p)
	}
	return out
}

func (r *Registry) Lookup(code, peerID string) (*Peer, bool) {
	code = CanonicalCode(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil, false
	}
	p, ok := rm.peers[peerID]
	return p, ok
}

// Stats returns the member count of every room.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for code, rm := range r.rooms {
		out[code] = len(rm.peers)
	}
	return out
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rm := range r.rooms {
		n += len(rm.peers)
	}
	return n
}
