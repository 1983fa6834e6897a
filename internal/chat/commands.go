// Package chat parses command lines and dispatches them against the
// directory. Reply strings and the chat> prompt contract are fixed by the
// wire protocol; clients resynchronize their display on the prompt marker.
package chat

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

const promptMarker = "chat>"

const helpText = "Commands:\n" +
	"  login <username>    - login with username\n" +
	"  create <room>       - create a room\n" +
	"  join <room>         - join a room\n" +
	"  leave <room>        - leave a room\n" +
	"  users               - list all users\n" +
	"  rooms               - list all rooms\n" +
	"  connect <user>      - connect to user (DM)\n" +
	"  disconnect <user>   - disconnect from user (DM)\n" +
	"  exit / logout       - exit chat\n" +
	"  help                - show this help\n"

// dispatch executes one input line and reports whether the session should
// keep reading. The first whitespace token selects the command; anything
// unrecognized is a broadcast of the original line.
func (s *Session) dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		s.sendPrompt()
		return true
	}

	switch fields[0] {
	case "login":
		s.cmdLogin(fields)
	case "create":
		s.cmdCreate(fields)
	case "join":
		s.cmdJoin(fields)
	case "leave":
		s.cmdLeave(fields)
	case "connect":
		s.cmdConnect(fields)
	case "disconnect":
		s.cmdDisconnect(fields)
	case "rooms":
		s.cmdRooms()
	case "users":
		s.cmdUsers()
	case "help":
		s.cmdHelp()
	case "exit", "logout":
		s.Teardown()
		return false
	default:
		s.broadcast(line)
	}
	return true
}

func (s *Session) reply(msg string) {
	s.cl.Deliver([]byte(msg + "\n" + promptMarker))
}

func (s *Session) sendUsage(usage string) {
	s.reply("Usage: " + usage)
}

func (s *Session) sendPrompt() {
	s.cl.Deliver([]byte(promptMarker))
}

func (s *Session) cmdLogin(args []string) {
	if len(args) < 2 {
		s.sendUsage("login <username>")
		return
	}
	s.store.Update(func(d *Directory) {
		d.RenameUser(s.id, args[1])
	})
	s.reply(fmt.Sprintf("Logged in as %s", args[1]))
}

func (s *Session) cmdCreate(args []string) {
	if len(args) < 2 {
		s.sendUsage("create <room>")
		return
	}
	log.Printf("create room: %s", args[1])

	s.store.Update(func(d *Directory) {
		d.CreateRoom(args[1])
	})
	s.reply(fmt.Sprintf("Room %s created (or already exists)", args[1]))
}

func (s *Session) cmdJoin(args []string) {
	if len(args) < 2 {
		s.sendUsage("join <room>")
		return
	}
	log.Printf("join room: %s", args[1])

	s.store.Update(func(d *Directory) {
		if me := d.FindUserByConn(s.id); me != nil {
			d.AddMember(d.CreateRoom(args[1]), me)
		}
	})
	s.reply(fmt.Sprintf("Joined room %s", args[1]))
}

func (s *Session) cmdLeave(args []string) {
	if len(args) < 2 {
		s.sendUsage("leave <room>")
		return
	}
	log.Printf("leave room: %s", args[1])

	cfg := currentConfig()
	found := false
	s.store.Update(func(d *Directory) {
		r := d.FindRoom(args[1])
		if r == nil {
			return
		}
		found = true
		if me := d.FindUserByConn(s.id); me != nil {
			if err := d.RemoveMember(r, me); err != nil {
				log.Printf("leave %s: %v", args[1], err)
			}
		}
		d.DeleteEmptyRooms(cfg.DefaultRoom)
	})

	if found {
		s.reply(fmt.Sprintf("Left room %s", args[1]))
	} else {
		s.reply(fmt.Sprintf("Room %s does not exist", args[1]))
	}
}

func (s *Session) cmdConnect(args []string) {
	if len(args) < 2 {
		s.sendUsage("connect <user>")
		return
	}
	log.Printf("connect to user: %s", args[1])

	var reply string
	s.store.Update(func(d *Directory) {
		me := d.FindUserByConn(s.id)
		peer := d.FindUserByName(args[1])
		if peer == nil {
			reply = fmt.Sprintf("User %s not found", args[1])
			return
		}
		switch err := d.Connect(me, peer); {
		case errors.Is(err, ErrSelfConnection):
			reply = "Cannot connect to yourself"
		case errors.Is(err, ErrAlreadyConnected):
			reply = fmt.Sprintf("Already connected to %s", args[1])
		default:
			reply = fmt.Sprintf("Connected to %s", args[1])
		}
	})
	s.reply(reply)
}

func (s *Session) cmdDisconnect(args []string) {
	if len(args) < 2 {
		s.sendUsage("disconnect <user>")
		return
	}
	log.Printf("disconnect from user: %s", args[1])

	var reply string
	s.store.Update(func(d *Directory) {
		me := d.FindUserByConn(s.id)
		peer := d.FindUserByName(args[1])
		if peer == nil {
			reply = fmt.Sprintf("User %s not found", args[1])
			return
		}
		d.Disconnect(me, peer)
		reply = fmt.Sprintf("Disconnected from %s", args[1])
	})
	s.reply(reply)
}

func (s *Session) cmdRooms() {
	var b strings.Builder
	b.WriteString("Rooms:\n")
	s.store.View(func(tx ReadTx) {
		for _, name := range tx.ListRoomNames() {
			b.WriteString("  ")
			b.WriteString(name)
			b.WriteString("\n")
		}
	})
	b.WriteString(promptMarker)
	s.cl.Deliver([]byte(b.String()))
}

func (s *Session) cmdUsers() {
	var b strings.Builder
	b.WriteString("Users:\n")
	s.store.View(func(tx ReadTx) {
		for _, name := range tx.ListUserNames() {
			b.WriteString("  ")
			b.WriteString(name)
			b.WriteString("\n")
		}
	})
	b.WriteString(promptMarker)
	s.cl.Deliver([]byte(b.String()))
}

func (s *Session) cmdHelp() {
	s.cl.Deliver([]byte(helpText))
	s.sendPrompt()
}

// broadcast routes the original, untrimmed line to the sender's recipient
// set. A sender with nothing to reach gets told so; delivery failures to
// individual recipients are not surfaced.
func (s *Session) broadcast(line string) {
	if _, err := Route(s.store, s.id, line); errors.Is(err, ErrNoRecipients) {
		s.reply("No recipients. Join a room or connect to a user first.")
	}
}
