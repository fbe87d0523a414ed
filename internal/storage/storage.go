package storage

import (
	"context"
	"errors"
	"time"

	"gamelauncher/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// ConversationStore persists two-party conversations and their lifecycle.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// UpdateConversationStatus moves a conversation from one status to another.
	// It returns ErrNotFound if no live conversation with that id is in status from.
	UpdateConversationStatus(ctx context.Context, id string, from, to models.ConversationStatus) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListActiveConversationIDs(ctx context.Context, userID string) ([]string, error)
}

// MessageStore is the append-only message log with per-message read sets.
type MessageStore interface {
	// AppendMessage assigns CreatedAt, strictly increasing within the conversation, and persists m.
	AppendMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error)
	// LatestMessage returns the newest message created at or before upTo, or nil if there is none.
	LatestMessage(ctx context.Context, conversationID string, upTo time.Time) (*models.Message, error)
	// MarkReadUpTo adds userID to the read set of every message created at or before upTo.
	MarkReadUpTo(ctx context.Context, conversationID, userID string, upTo time.Time) (int64, error)
	// ListMessages returns up to limit messages, newest first, optionally strictly before a timestamp.
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error)
	// CountUnread counts, per conversation, the messages whose read set lacks userID. Zero counts may be absent.
	CountUnread(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error)
}

// PresenceStore keeps last-seen timestamps beyond the life of the process.
type PresenceStore interface {
	SetLastSeen(ctx context.Context, userID string, at time.Time) error
	GetLastSeen(ctx context.Context, userID string) (time.Time, error)
}

type Storage interface {
	ConversationStore
	MessageStore
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	now func() time.Time
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		now:   time.Now,
	}
}

// Migrate creates or updates the tables of the persisted models.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
	)
}

// dbTime normalizes t to the precision Postgres stores.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
