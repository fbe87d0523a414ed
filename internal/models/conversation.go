package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationStatus string

const (
	StatusPending  ConversationStatus = "pending"
	StatusActive   ConversationStatus = "active"
	StatusDeclined ConversationStatus = "declined"
)

// Conversation is a two-party relationship (a friendship) that scopes messaging.
// The participants never change after creation.
type Conversation struct {
	// ID is the unique identifier of the conversation (UUID).
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// RequesterID is the identity that asked for the conversation.
	RequesterID string `gorm:"type:text;not null;index" json:"requester_id"`
	// AddresseeID is the identity that may accept or decline it.
	AddresseeID string `gorm:"type:text;not null;index" json:"addressee_id"`
	// PairKey is the order-independent participant pair; unique among live, non-declined rows.
	PairKey string `gorm:"type:text;not null;uniqueIndex:idx_conversation_pair,where:status <> 'declined' AND deleted_at IS NULL" json:"-"`
	// Status is the lifecycle state.
	Status    ConversationStatus `gorm:"type:text;not null;index" json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	// DeletedAt soft-removes the conversation; its messages are kept.
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PairKey returns the same key for (a, b) and (b, a).
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// BeforeCreate fills the generated fields if the caller left them empty.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.RequesterID, c.AddresseeID)
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	return
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.RequesterID == userID || c.AddresseeID == userID)
}

// Peer returns the other participant, or "" if userID is not a participant.
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.RequesterID:
		return c.AddresseeID
	case c.AddresseeID:
		return c.RequesterID
	}
	return ""
}

func (c *Conversation) Participants() [2]string {
	return [2]string{c.RequesterID, c.AddresseeID}
}

func (c *Conversation) IsActive() bool { return c.Status == StatusActive }
