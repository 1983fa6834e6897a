// Package chat implements the reader/writer gate that guards every access to
// the shared directory, and the Store wrapper that hands out scoped access.
package chat

import "sync"

// gate is the reader/writer discipline around the directory. A shared counter
// of active readers is protected by a short-held mutex; the first reader to
// enter takes the writer-exclusion lock on behalf of all readers and the last
// reader to leave releases it. Writers take the writer-exclusion lock
// directly.
//
// Readers have strict priority: a continuous stream of overlapping readers
// keeps a waiting writer blocked indefinitely. This is the intended policy;
// swapping in a fair one must happen here without touching the directory or
// the command loop.
type gate struct {
	mu      sync.Mutex
	rw      sync.Mutex
	readers int
}

func (g *gate) startRead() {
	g.mu.Lock()
	g.readers++
	if g.readers == 1 {
		g.rw.Lock()
	}
	g.mu.Unlock()
}

func (g *gate) endRead() {
	g.mu.Lock()
	g.readers--
	if g.readers == 0 {
		g.rw.Unlock()
	}
	g.mu.Unlock()
}

func (g *gate) startWrite() {
	g.rw.Lock()
}

func (g *gate) endWrite() {
	g.rw.Unlock()
}

// ReadTx is the read-only capability handed to View callbacks. Every method
// is a snapshot query; none of them mutate the directory.
type ReadTx interface {
	FindUserByName(name string) *User
	FindUserByConn(id string) *User
	FindRoom(name string) *Room
	ListRoomNames() []string
	ListUserNames() []string
	IsConnected(aID, bID string) bool
	Recipients(senderID string) []*User
}

// Store couples the directory with its gate. All access goes through View or
// Update; the directory state is otherwise unreachable, so holding the right
// permission is enforced by construction. References obtained inside a
// callback must not be retained after it returns.
type Store struct {
	gate gate
	dir  Directory
}

// NewStore creates a Store with an empty directory.
func NewStore() *Store {
	return &Store{dir: newDirectory()}
}

// View runs fn with read permission. Any number of View callbacks may run
// concurrently; none overlaps an Update.
func (s *Store) View(fn func(tx ReadTx)) {
	s.gate.startRead()
	defer s.gate.endRead()
	fn(&s.dir)
}

// Update runs fn with exclusive write permission. Directory invariants hold
// at entry and at exit; no reader or other writer observes an intermediate
// state.
func (s *Store) Update(fn func(d *Directory)) {
	s.gate.startWrite()
	defer s.gate.endWrite()
	fn(&s.dir)
}
