package chat

import (
	"time"

	"github.com/trezcool/classroom/core"
)

// Message is a conversation message as stored by the remote data service.
type Message struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// before reports whether m sorts before other: by creation time, then by ID.
func (m Message) before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// NewMessage contains information needed to insert a new Message.
type NewMessage struct {
	CourseID string `json:"course_id" validate:"required,notblank"`
	SenderID string `json:"sender_id" validate:"required,notblank"`
	Body     string `json:"message" validate:"required,notblank"`
}

func (nm *NewMessage) Validate() error {
	nm.CourseID = core.CleanString(nm.CourseID)
	nm.SenderID = core.CleanString(nm.SenderID)
	nm.Body = core.CleanString(nm.Body)
	return core.ValidateStruct(nm)
}

type EntryState int

const (
	// Pending entries were sent optimistically and wait for the server confirmation.
	Pending EntryState = iota
	// Confirmed entries carry the server ID and timestamp.
	Confirmed
	// Unconfirmed entries failed to persist. They keep their provisional ID.
	Unconfirmed
)

func (s EntryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Unconfirmed:
		return "unconfirmed"
	}
	return "unknown"
}

// Entry is a Message as displayed in a conversation.
type Entry struct {
	Message
	SenderName string     `json:"sender_name"`
	State      EntryState `json:"state"`
}
