// Package chat runs the per-connection session: bootstrap into the
// directory, the command read loop, and exactly-once teardown.
package chat

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const serverMOTD = "Thanks for connecting to the BisonChat Server.\n\nchat>"

// Session is the worker for one connected client. Its only shared state is
// the store; sessions never signal each other directly.
type Session struct {
	id    string
	addr  string
	store *Store
	cl    *client

	limiter  *rateLimiter
	limit    RateLimitConfig
	teardown sync.Once
}

// NewSession creates a session for the given transport. The connection
// identifier is a fresh UUID; the guest display name is derived from it.
func NewSession(store *Store, conn transport) *Session {
	cfg := currentConfig()
	return &Session{
		id:      uuid.New().String(),
		addr:    conn.RemoteAddr(),
		store:   store,
		cl:      newClient(conn),
		limiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		limit:   cfg.RateLimit,
	}
}

// guestName derives the default display name from the connection
// identifier. Identifiers are unique, so guest names are distinct per
// connection.
func guestName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "guest-" + short
}

// Run drives the session to completion: MOTD, bootstrap, command loop, and
// teardown on exit, EOF, or read error. It blocks until the connection is
// done and always leaves the directory clean.
func (s *Session) Run() {
	go s.cl.writePump()

	s.cl.Deliver([]byte(serverMOTD))
	s.bootstrap()

	for {
		line, err := s.cl.conn.ReadLine()
		if err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Client %s read error: %v", s.addr, err)
			}
			break
		}

		if !s.registered() {
			// Registration was dropped or the user was swept away;
			// nothing left to do for this connection.
			break
		}

		if s.limiter != nil && !s.limiter.allow() {
			log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding line",
				s.addr, s.limit.Burst, s.limit.RefillInterval)
			continue
		}

		if !s.dispatch(line) {
			return
		}
	}

	s.Teardown()
}

// bootstrap registers the guest user and joins it to the default room,
// creating the room if absent. A duplicate guest name leaves the connection
// unregistered; the session then terminates on its next read.
func (s *Session) bootstrap() {
	cfg := currentConfig()
	name := guestName(s.id)

	s.store.Update(func(d *Directory) {
		u, err := d.RegisterUser(s.id, name, s.cl)
		if err != nil {
			log.Printf("Registration dropped for %s: %v", s.addr, err)
			return
		}
		d.AddMember(d.CreateRoom(cfg.DefaultRoom), u)
	})

	log.Printf("Client connected from %s as %s", s.addr, name)
}

func (s *Session) registered() bool {
	var ok bool
	s.store.View(func(tx ReadTx) {
		ok = tx.FindUserByConn(s.id) != nil
	})
	return ok
}

// Teardown removes the user from every room and edge, deletes the record,
// and closes the transport. Idempotent: exactly one invocation does the
// work regardless of whether logout, a read error, or server shutdown
// triggered it.
func (s *Session) Teardown() {
	s.teardown.Do(func() {
		s.store.Update(func(d *Directory) {
			if u := d.FindUserByConn(s.id); u != nil {
				d.RemoveUserEntirely(u)
			}
		})
		if err := s.cl.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection from %s: %v", s.addr, err)
		}
		log.Printf("Client disconnected from %s", s.addr)
	})
}
