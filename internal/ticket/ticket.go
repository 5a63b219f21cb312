// Package ticket implements the open/closed ticket lifecycle over a
// conversation's analysis cursor.
package ticket

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Ticket status values as persisted.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// State of a conversation's lifecycle machine.
type State int

const (
	NoActiveTicket State = iota
	TicketOpen
)

func (s State) String() string {
	if s == TicketOpen {
		return "TICKET_OPEN"
	}
	return "NO_ACTIVE_TICKET"
}

// Cursor is the externally persisted progress record for one conversation.
// LastAnalyzedCount is a high-water mark: it never decreases, and it only
// advances after the corresponding ticket state has been durably persisted.
type Cursor struct {
	ConversationID    string
	MessageCountTotal int
	LastAnalyzedCount int
	ActiveTicketID    string // empty when no ticket is open
}

// State derives the machine state from the persisted cursor.
func (c Cursor) State() State {
	if c.ActiveTicketID != "" {
		return TicketOpen
	}
	return NoActiveTicket
}

// Backlog is the number of messages not yet incorporated into any batch.
func (c Cursor) Backlog() int {
	return c.MessageCountTotal - c.LastAnalyzedCount
}

// Window is the slice of messages submitted to the model in one batch.
type Window struct {
	StartMessageID string
	EndMessageID   string
	Size           int
}

// Transition is the mutation to persist for one batch result: a ticket
// upsert plus the cursor advance. The store applies both atomically, cursor
// last.
type Transition struct {
	TicketID       string
	CreateNew      bool   // insert a new ticket row vs extend an existing one
	Status         string // OPEN or CLOSED
	StartMessageID string // only set when CreateNew
	EndMessageID   string

	NewAnalyzedCount   int
	NextActiveTicketID string // empty once the ticket closes
}

// Advance computes the lifecycle transition for a batch result.
//
//	NO_ACTIVE_TICKET + open result   -> create OPEN ticket spanning the window
//	TICKET_OPEN      + open result   -> extend the open ticket's end boundary
//	either state     + closed result -> finalize (new ticket if none was open)
//
// The cursor always advances by the window size.
func Advance(cur Cursor, w Window, closed bool) (Transition, error) {
	if w.Size <= 0 {
		return Transition{}, fmt.Errorf("empty batch window for conversation %s", cur.ConversationID)
	}
	if w.StartMessageID == "" || w.EndMessageID == "" {
		return Transition{}, fmt.Errorf("batch window missing boundary ids for conversation %s", cur.ConversationID)
	}

	tr := Transition{
		EndMessageID:     w.EndMessageID,
		NewAnalyzedCount: cur.LastAnalyzedCount + w.Size,
	}

	switch cur.State() {
	case NoActiveTicket:
		tr.TicketID = NewTicketID()
		tr.CreateNew = true
		tr.StartMessageID = w.StartMessageID
	case TicketOpen:
		tr.TicketID = cur.ActiveTicketID
	}

	if closed {
		tr.Status = StatusClosed
	} else {
		tr.Status = StatusOpen
		tr.NextActiveTicketID = tr.TicketID
	}
	return tr, nil
}

// NewTicketID returns ids like "tkt_3f2a9c81d04b".
func NewTicketID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "tkt_" + hex[:12]
}
