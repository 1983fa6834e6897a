// Package chat routes outgoing messages to the sender's recipient set.
package chat

import (
	"fmt"
	"log"
)

// formatBroadcast wraps a message body for delivery. The leading newline
// pushes the recipient's pending prompt out of the way and the trailing
// prompt marker lets its display resynchronize.
func formatBroadcast(from, body string) []byte {
	return []byte(fmt.Sprintf("\n::%s> %s\nchat>", from, body))
}

// Route delivers body from the sender to the deduplicated union of its room
// co-members and direct-connection peers, and returns the number of targets
// addressed. Delivery is best-effort: a recipient whose buffer is full is
// skipped without affecting the others, and failures are not surfaced to the
// sender. Returns ErrNoRecipients when the computed set is empty.
//
// The recipient computation and the fan-out both run inside one read
// section, so no teardown can interleave with them.
func Route(store *Store, senderID, body string) (int, error) {
	var (
		delivered int
		routeErr  error
	)
	store.View(func(tx ReadTx) {
		sender := tx.FindUserByConn(senderID)
		if sender == nil {
			return
		}
		recipients := tx.Recipients(senderID)
		if len(recipients) == 0 {
			routeErr = ErrNoRecipients
			return
		}

		payload := formatBroadcast(sender.Name(), body)
		for _, r := range recipients {
			// Recipients already excludes the sender; keep the check
			// anyway so a future change there cannot echo messages back.
			if r.ID() == senderID {
				continue
			}
			if !r.sink.Deliver(payload) {
				log.Printf("Dropped message for %s: send buffer full", r.Name())
				continue
			}
			delivered++
		}
	})
	return delivered, routeErr
}
