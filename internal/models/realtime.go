package models

import "time"

type EventType string

// Client-to-server events.
const (
	EventJoin   EventType = "join"
	EventLeave  EventType = "leave"
	EventTyping EventType = "typing"
	EventSend   EventType = "send"
	EventRead   EventType = "read"
)

// Server-to-client events. EventTyping is shared with the client side.
const (
	EventDelivered           EventType = "delivered"
	EventNewMessage          EventType = "new_message"
	EventReadReceipt         EventType = "read_receipt"
	EventUnreadDelta         EventType = "unread_delta"
	EventUnreadReset         EventType = "unread_reset"
	EventPresenceChanged     EventType = "presence_changed"
	EventConversationUpdated EventType = "conversation_updated"
	EventConversationRemoved EventType = "conversation_removed"
	EventError               EventType = "error"
)

// ClientEvent is one frame received from a live connection.
type ClientEvent struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Text           string    `json:"text,omitempty"`
	ClientTempID   string    `json:"client_temp_id,omitempty"`
	IsTyping       bool      `json:"is_typing,omitempty"`
	UpToMessageID  string    `json:"up_to_message_id,omitempty"`
}

// ServerEvent is one frame pushed to a live connection. Pointer fields carry
// values whose zero value is meaningful (false, 0).
type ServerEvent struct {
	Type           EventType     `json:"type"`
	ConversationID string        `json:"conversation_id,omitempty"`
	ClientTempID   string        `json:"client_temp_id,omitempty"`
	MessageID      string        `json:"message_id,omitempty"`
	CreatedAt      *time.Time    `json:"created_at,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	UserID         string        `json:"user_id,omitempty"`
	IsTyping       *bool         `json:"is_typing,omitempty"`
	UpToMessageID  string        `json:"up_to_message_id,omitempty"`
	Delta          int           `json:"delta,omitempty"`
	Count          *int          `json:"count,omitempty"`
	Online         *bool         `json:"online,omitempty"`
	LastSeen       *time.Time    `json:"last_seen,omitempty"`
	Code           string        `json:"code,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func DeliveredEvent(clientTempID string, msg *Message) ServerEvent {
	createdAt := msg.CreatedAt
	return ServerEvent{
		Type:           EventDelivered,
		ConversationID: msg.ConversationID,
		ClientTempID:   clientTempID,
		MessageID:      msg.ID,
		CreatedAt:      &createdAt,
	}
}

func NewMessageEvent(msg *Message) ServerEvent {
	cp := msg.Clone()
	return ServerEvent{Type: EventNewMessage, ConversationID: msg.ConversationID, Message: &cp}
}

func TypingEvent(conversationID, userID string, isTyping bool) ServerEvent {
	return ServerEvent{Type: EventTyping, ConversationID: conversationID, UserID: userID, IsTyping: &isTyping}
}

func ReadReceiptEvent(conversationID, readerID, upToMessageID string) ServerEvent {
	return ServerEvent{Type: EventReadReceipt, ConversationID: conversationID, UserID: readerID, UpToMessageID: upToMessageID}
}

func UnreadDeltaEvent(conversationID string, delta int) ServerEvent {
	return ServerEvent{Type: EventUnreadDelta, ConversationID: conversationID, Delta: delta}
}

// UnreadResetEvent carries the unread count left after a read. It is 0 when
// the read reached the newest message; reading up to an older message leaves
// the later ones counted.
func UnreadResetEvent(conversationID string, count int) ServerEvent {
	return ServerEvent{Type: EventUnreadReset, ConversationID: conversationID, Count: &count}
}

func PresenceEvent(userID string, online bool, lastSeen time.Time) ServerEvent {
	ev := ServerEvent{Type: EventPresenceChanged, UserID: userID, Online: &online}
	if !lastSeen.IsZero() {
		ev.LastSeen = &lastSeen
	}
	return ev
}

func ConversationUpdatedEvent(c *Conversation) ServerEvent {
	cp := *c
	return ServerEvent{Type: EventConversationUpdated, ConversationID: c.ID, Conversation: &cp}
}

func ConversationRemovedEvent(conversationID string) ServerEvent {
	return ServerEvent{Type: EventConversationRemoved, ConversationID: conversationID}
}

func ErrorEvent(code, message, clientTempID string) ServerEvent {
	return ServerEvent{Type: EventError, Code: code, Error: message, ClientTempID: clientTempID}
}
