package domain

import "time"

type JournalEvent string

const (
	JournalReceived JournalEvent = "received"
	JournalDropped  JournalEvent = "dropped"
	JournalResolved JournalEvent = "resolved"
	JournalExpired  JournalEvent = "expired"
	JournalSent     JournalEvent = "sent"
)

// JournalEntry is one line of the ring history.
type JournalEntry struct {
	ID        int64
	Event     JournalEvent
	RequestID string
	User      string
	ChimeID   string
	Peer      string
	Mode      string
	Response  ResponseKind
	Detail    string
	At        time.Time
}
