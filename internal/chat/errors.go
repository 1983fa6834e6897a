// Package chat defines the sentinel errors shared across the directory,
// router, and command dispatch logic.
package chat

import "errors"

// Directory and routing errors. Callers distinguish outcomes with errors.Is;
// lookup misses are reported as nil results, not errors.
var (
	// ErrDuplicateName is returned by RegisterUser when the requested
	// username is already present. The insert is dropped, never escalated.
	ErrDuplicateName = errors.New("username already taken")

	// ErrSelfConnection is returned by Connect when both endpoints are the
	// same user.
	ErrSelfConnection = errors.New("cannot connect to yourself")

	// ErrAlreadyConnected is returned by Connect when the edge already
	// exists in either direction. The directory is left unchanged.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrNotAMember is returned by RemoveMember when the user was not a
	// member of the room.
	ErrNotAMember = errors.New("not a member of room")

	// ErrNoRecipients is returned by Route when the sender shares no room
	// and holds no direct connection.
	ErrNoRecipients = errors.New("no recipients")
)
