// Package chat maintains the shared directory of users, rooms, and
// direct-connection edges, the single unit of synchronization in the server.
package chat

import (
	"log"
	"sort"
)

// Field sizes inherited from the wire protocol: usernames and room names are
// truncated, never rejected.
const (
	maxUserNameLen = 20
	maxRoomNameLen = 50
)

// Sink delivers outbound bytes to one connection. Deliver must never block;
// it reports whether the payload was accepted. Close tears the transport
// down and is safe to call more than once.
type Sink interface {
	Deliver(payload []byte) bool
	Close() error
}

// User is one connected client. Records are owned exclusively by the
// directory and reference each other by connection ID, never by pointer.
type User struct {
	id    string
	name  string
	peers map[string]struct{}
	sink  Sink
}

// ID returns the stable connection identifier.
func (u *User) ID() string { return u.id }

// Name returns the current display name.
func (u *User) Name() string { return u.name }

// Room is a named group of users. Membership is a set of connection IDs;
// order is not significant.
type Room struct {
	name    string
	members map[string]struct{}
}

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// HasMember reports whether the connection ID is in the member set.
func (r *Room) HasMember(id string) bool {
	_, ok := r.members[id]
	return ok
}

// MemberCount returns the size of the member set.
func (r *Room) MemberCount() int { return len(r.members) }

// Directory is the aggregate of all users, all rooms, and (through each
// user's peer set) the direct-connection graph. Methods assume the caller
// holds the matching gate permission; the only way to reach a Directory is
// through Store.View or Store.Update.
type Directory struct {
	users map[string]*User
	rooms map[string]*Room
}

func newDirectory() Directory {
	return Directory{
		users: make(map[string]*User),
		rooms: make(map[string]*Room),
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// RegisterUser inserts a new user keyed by connection ID. If the name is
// already taken the insert is dropped and ErrDuplicateName returned; the
// caller logs and carries on. This permissive behavior is deliberate and
// must not be promoted to a hard failure.
func (d *Directory) RegisterUser(id, name string, sink Sink) (*User, error) {
	name = truncate(name, maxUserNameLen)
	if d.FindUserByName(name) != nil {
		log.Printf("Duplicate username %q; dropping registration", name)
		return nil, ErrDuplicateName
	}
	u := &User{
		id:    id,
		name:  name,
		peers: make(map[string]struct{}),
		sink:  sink,
	}
	d.users[id] = u
	return u, nil
}

// FindUserByName returns the user with the exact display name, or nil.
func (d *Directory) FindUserByName(name string) *User {
	for _, u := range d.users {
		if u.name == name {
			return u
		}
	}
	return nil
}

// FindUserByConn returns the user with the given connection ID, or nil.
func (d *Directory) FindUserByConn(id string) *User {
	return d.users[id]
}

// RenameUser changes a user's display name in place. Uniqueness is not
// enforced against other current usernames; rename always succeeds when the
// user exists.
func (d *Directory) RenameUser(id, name string) bool {
	u := d.users[id]
	if u == nil {
		return false
	}
	u.name = truncate(name, maxUserNameLen)
	return true
}

// CreateRoom returns the room with the given name, creating it if absent.
func (d *Directory) CreateRoom(name string) *Room {
	name = truncate(name, maxRoomNameLen)
	if r := d.rooms[name]; r != nil {
		return r
	}
	r := &Room{
		name:    name,
		members: make(map[string]struct{}),
	}
	d.rooms[name] = r
	return r
}

// FindRoom returns the room with the given name, or nil.
func (d *Directory) FindRoom(name string) *Room {
	return d.rooms[name]
}

// AddMember adds the user to the room. Adding an existing member is a no-op.
func (d *Directory) AddMember(room *Room, u *User) {
	if room == nil || u == nil {
		return
	}
	room.members[u.id] = struct{}{}
}

// RemoveMember removes the user from the room, reporting ErrNotAMember if
// the user was not in it.
func (d *Directory) RemoveMember(room *Room, u *User) error {
	if room == nil || u == nil {
		return ErrNotAMember
	}
	if _, ok := room.members[u.id]; !ok {
		return ErrNotAMember
	}
	delete(room.members, u.id)
	return nil
}

// ListRoomNames returns a sorted snapshot of all room names.
func (d *Directory) ListRoomNames() []string {
	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListUserNames returns a sorted snapshot of all display names.
func (d *Directory) ListUserNames() []string {
	names := make([]string, 0, len(d.users))
	for _, u := range d.users {
		names = append(names, u.name)
	}
	sort.Strings(names)
	return names
}

// DeleteEmptyRooms removes every room with an empty member set other than
// exceptName. Called from the leave path after a RemoveMember that could
// have emptied a room; GC is mutation-driven, not periodic.
func (d *Directory) DeleteEmptyRooms(exceptName string) {
	for name, r := range d.rooms {
		if len(r.members) == 0 && name != exceptName {
			delete(d.rooms, name)
		}
	}
}

// Connect establishes the symmetric direct-connection edge between a and b.
// Both peer sets are updated together, so the relation is symmetric whenever
// the write permission is not held.
func (d *Directory) Connect(a, b *User) error {
	if a == nil || b == nil {
		return ErrSelfConnection
	}
	if a.id == b.id {
		return ErrSelfConnection
	}
	if _, ok := a.peers[b.id]; ok {
		return ErrAlreadyConnected
	}
	if _, ok := b.peers[a.id]; ok {
		return ErrAlreadyConnected
	}
	a.peers[b.id] = struct{}{}
	b.peers[a.id] = struct{}{}
	return nil
}

// Disconnect removes the edge in both directions. Removing an absent edge is
// a no-op.
func (d *Directory) Disconnect(a, b *User) {
	if a == nil || b == nil {
		return
	}
	delete(a.peers, b.id)
	delete(b.peers, a.id)
}

// IsConnected reports whether a direct-connection edge exists between the
// two connection IDs.
func (d *Directory) IsConnected(aID, bID string) bool {
	a := d.users[aID]
	if a == nil {
		return false
	}
	_, ok := a.peers[bID]
	return ok
}

// RemoveUserEntirely removes the user from every room, removes every
// direct-connection edge it participates in (updating both endpoints), then
// deletes the user record. Runs under one write permission, so no reader
// ever observes a partially removed user.
func (d *Directory) RemoveUserEntirely(u *User) {
	if u == nil {
		return
	}
	for _, r := range d.rooms {
		delete(r.members, u.id)
	}
	for peerID := range u.peers {
		if peer := d.users[peerID]; peer != nil {
			delete(peer.peers, u.id)
		}
	}
	delete(d.users, u.id)
}

// Recipients computes the deduplicated recipient set for one outgoing
// message: every other member of every room the sender belongs to, plus
// every direct-connection peer. The sender is excluded.
func (d *Directory) Recipients(senderID string) []*User {
	sender := d.users[senderID]
	if sender == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []*User

	add := func(id string) {
		if id == senderID {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		if u := d.users[id]; u != nil {
			seen[id] = struct{}{}
			out = append(out, u)
		}
	}

	for _, r := range d.rooms {
		if !r.HasMember(senderID) {
			continue
		}
		for id := range r.members {
			add(id)
		}
	}
	for id := range sender.peers {
		add(id)
	}
	return out
}

// CloseAll closes every user's transport and resets the directory. Used by
// orderly shutdown while holding write permission so no command can
// interleave with the sweep.
func (d *Directory) CloseAll() {
	for _, u := range d.users {
		if u.sink == nil {
			continue
		}
		if err := u.sink.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection for %s: %v", u.name, err)
		}
	}
	d.users = make(map[string]*User)
	d.rooms = make(map[string]*Room)
}
