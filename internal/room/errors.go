package room

import "errors"

var (
	// ErrRoomFull is returned by Admit when the room already holds its
	// capacity of members. The registry is left untouched.
	ErrRoomFull = errors.New("room is full")

	// ErrPeerIDInUse is returned by Admit under DuplicateReject when the room
	// already has a member with the requested peer id.
	ErrPeerIDInUse = errors.New("peer id already in use in room")

	ErrInvalidRoomCode = errors.New("room code must not be empty")
	ErrInvalidPeerID   = errors.New("peer id must not be empty")
)
