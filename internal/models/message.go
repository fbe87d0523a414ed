package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message is a persisted chat message. It is immutable after creation except
// for growth of ReadBy.
type Message struct {
	// ID is the unique identifier of the message (UUID).
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// ConversationID is the conversation the message belongs to.
	ConversationID string `gorm:"type:uuid;not null;index:idx_conversation_created,priority:1" json:"conversation_id"`
	// SenderID is the participant who sent the message.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// Body is the trimmed message text.
	Body string `gorm:"type:text;not null" json:"body"`
	// CreatedAt is assigned by the store, strictly increasing within a conversation.
	CreatedAt time.Time `gorm:"not null;index:idx_conversation_created,priority:2" json:"created_at"`
	// ReadBy is the set of identities that have read the message.
	ReadBy pq.StringArray `gorm:"type:text[];not null" json:"read_by"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ReadBy == nil {
		m.ReadBy = pq.StringArray{}
	}
	return
}

func (m *Message) IsReadBy(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}

// MarkReadBy adds userID to ReadBy and reports whether the set grew.
func (m *Message) MarkReadBy(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// Clone returns a copy that does not share ReadBy with m.
func (m Message) Clone() Message {
	m.ReadBy = append(pq.StringArray(nil), m.ReadBy...)
	return m
}
