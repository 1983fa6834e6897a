// Package chat_test contains unit tests for the shared directory: user
// registration, room membership, direct-connection edges, and teardown.
package chat_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/bisonchat/bisonchat/internal/chat"
)

// fakeSink records delivered payloads so tests can observe routing without a
// real transport.
type fakeSink struct {
	mu     sync.Mutex
	msgs   []string
	closed bool
	refuse bool
}

func (f *fakeSink) Deliver(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse {
		return false
	}
	f.msgs = append(f.msgs, string(payload))
	return true
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

func register(t *testing.T, store *chat.Store, id, name string) *fakeSink {
	t.Helper()
	sink := &fakeSink{}
	var err error
	store.Update(func(d *chat.Directory) {
		_, err = d.RegisterUser(id, name, sink)
	})
	if err != nil {
		t.Fatalf("RegisterUser(%q, %q) failed: %v", id, name, err)
	}
	return sink
}

// TestRegisterUserUniqueName verifies that no two simultaneously present
// users can share a display name established at registration time, and that
// the colliding insert is dropped rather than escalated.
func TestRegisterUserUniqueName(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "conn-1", "alice")

	var err error
	store.Update(func(d *chat.Directory) {
		_, err = d.RegisterUser("conn-2", "alice", &fakeSink{})
	})
	if !errors.Is(err, chat.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	store.View(func(tx chat.ReadTx) {
		if tx.FindUserByConn("conn-2") != nil {
			t.Error("colliding registration was inserted")
		}
		if got := tx.FindUserByConn("conn-1"); got == nil || got.Name() != "alice" {
			t.Error("original registration disturbed by collision")
		}
	})
}

// TestRenameAllowsDuplicates verifies that rename via login is exempt from
// the uniqueness rule: renaming onto a taken name succeeds.
func TestRenameAllowsDuplicates(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "conn-1", "alice")
	register(t, store, "conn-2", "bob")

	store.Update(func(d *chat.Directory) {
		if !d.RenameUser("conn-2", "alice") {
			t.Error("RenameUser failed for existing user")
		}
	})

	store.View(func(tx chat.ReadTx) {
		if got := tx.FindUserByConn("conn-2").Name(); got != "alice" {
			t.Errorf("rename to duplicate name blocked, got %q", got)
		}
	})
}

// TestCreateRoomIdempotent verifies that creating the same room twice
// returns the same room and the directory never holds two rooms with equal
// names.
func TestCreateRoomIdempotent(t *testing.T) {
	store := chat.NewStore()

	store.Update(func(d *chat.Directory) {
		first := d.CreateRoom("den")
		second := d.CreateRoom("den")
		if first != second {
			t.Error("CreateRoom returned distinct rooms for the same name")
		}
	})

	store.View(func(tx chat.ReadTx) {
		names := tx.ListRoomNames()
		if len(names) != 1 || names[0] != "den" {
			t.Errorf("expected exactly one room %q, got %v", "den", names)
		}
	})
}

// TestAddRemoveMember verifies membership idempotency and the NotAMember
// result on removing a non-member.
func TestAddRemoveMember(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "conn-1", "alice")

	store.Update(func(d *chat.Directory) {
		r := d.CreateRoom("den")
		u := d.FindUserByConn("conn-1")

		d.AddMember(r, u)
		d.AddMember(r, u)
		if r.MemberCount() != 1 {
			t.Errorf("duplicate AddMember changed member set, count = %d", r.MemberCount())
		}

		if err := d.RemoveMember(r, u); err != nil {
			t.Errorf("RemoveMember of member failed: %v", err)
		}
		if err := d.RemoveMember(r, u); !errors.Is(err, chat.ErrNotAMember) {
			t.Errorf("expected ErrNotAMember, got %v", err)
		}
	})
}

// TestDeleteEmptyRoomsExemption verifies that the default room survives GC
// with zero members while every other empty room is removed.
func TestDeleteEmptyRoomsExemption(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "conn-1", "alice")

	store.Update(func(d *chat.Directory) {
		d.CreateRoom("Lobby")
		d.CreateRoom("empty")
		occupied := d.CreateRoom("occupied")
		d.AddMember(occupied, d.FindUserByConn("conn-1"))

		d.DeleteEmptyRooms("Lobby")
	})

	store.View(func(tx chat.ReadTx) {
		if tx.FindRoom("Lobby") == nil {
			t.Error("default room was garbage collected")
		}
		if tx.FindRoom("empty") != nil {
			t.Error("empty non-default room survived GC")
		}
		if tx.FindRoom("occupied") == nil {
			t.Error("occupied room was garbage collected")
		}
	})
}

// TestConnectSymmetry verifies that the direct-connection relation stays
// symmetric through connect and disconnect sequences.
func TestConnectSymmetry(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "a", "alice")
	register(t, store, "b", "bob")

	store.Update(func(d *chat.Directory) {
		if err := d.Connect(d.FindUserByConn("a"), d.FindUserByConn("b")); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
	})
	store.View(func(tx chat.ReadTx) {
		if tx.IsConnected("a", "b") != tx.IsConnected("b", "a") {
			t.Error("edge asymmetric after connect")
		}
		if !tx.IsConnected("a", "b") {
			t.Error("edge missing after connect")
		}
	})

	store.Update(func(d *chat.Directory) {
		d.Disconnect(d.FindUserByConn("b"), d.FindUserByConn("a"))
	})
	store.View(func(tx chat.ReadTx) {
		if tx.IsConnected("a", "b") || tx.IsConnected("b", "a") {
			t.Error("edge survived disconnect")
		}
	})
}

// TestConnectPolicy verifies the self-connection and already-connected
// outcomes, and that the repeated connect leaves the edge set unchanged.
func TestConnectPolicy(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "a", "alice")
	register(t, store, "b", "bob")

	store.Update(func(d *chat.Directory) {
		a := d.FindUserByConn("a")
		b := d.FindUserByConn("b")

		if err := d.Connect(a, a); !errors.Is(err, chat.ErrSelfConnection) {
			t.Errorf("self connect: expected ErrSelfConnection, got %v", err)
		}

		if err := d.Connect(a, b); err != nil {
			t.Fatalf("first connect failed: %v", err)
		}
		// Second call from the other side is a no-op either direction.
		if err := d.Connect(b, a); !errors.Is(err, chat.ErrAlreadyConnected) {
			t.Errorf("repeat connect: expected ErrAlreadyConnected, got %v", err)
		}
	})

	store.View(func(tx chat.ReadTx) {
		if !tx.IsConnected("a", "b") || !tx.IsConnected("b", "a") {
			t.Error("edge missing after repeated connect")
		}
	})
}

// TestRemoveUserEntirely verifies teardown atomicity: after removal the user
// appears in no room, no peer set, and no lookup.
func TestRemoveUserEntirely(t *testing.T) {
	store := chat.NewStore()
	register(t, store, "a", "alice")
	register(t, store, "b", "bob")

	store.Update(func(d *chat.Directory) {
		a := d.FindUserByConn("a")
		b := d.FindUserByConn("b")
		d.AddMember(d.CreateRoom("den"), a)
		d.AddMember(d.CreateRoom("den"), b)
		if err := d.Connect(a, b); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}

		d.RemoveUserEntirely(a)
	})

	store.View(func(tx chat.ReadTx) {
		if tx.FindUserByConn("a") != nil {
			t.Error("removed user still found by connection")
		}
		if tx.FindUserByName("alice") != nil {
			t.Error("removed user still found by name")
		}
		if tx.FindRoom("den").HasMember("a") {
			t.Error("removed user still a room member")
		}
		if tx.IsConnected("b", "a") {
			t.Error("removed user still in a peer set")
		}
	})
}

// TestNameTruncation verifies that over-long user and room names are
// truncated, not rejected.
func TestNameTruncation(t *testing.T) {
	store := chat.NewStore()
	longName := "abcdefghijklmnopqrstuvwxyz"

	store.Update(func(d *chat.Directory) {
		u, err := d.RegisterUser("conn-1", longName, &fakeSink{})
		if err != nil {
			t.Fatalf("RegisterUser failed: %v", err)
		}
		if got := u.Name(); got != longName[:20] {
			t.Errorf("username not truncated to 20 bytes, got %q", got)
		}
	})
}
