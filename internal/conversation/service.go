// Package conversation is the sole writer of messages and read cursors. It
// authorizes every operation, persists, then asks a Broadcaster to fan out.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/config"
	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage"

	"github.com/lib/pq"
)

// Broadcaster routes events to live sessions. Implementations must not block.
type Broadcaster interface {
	BroadcastToConversation(conversationID string, ev models.ServerEvent, excludeSessionID string)
	BroadcastToIdentity(userID string, ev models.ServerEvent)
	JoinIdentity(userID, conversationID string)
	DropConversation(conversationID string)
}

// Actor is the caller of an operation. SessionID and Ack are empty for REST callers.
type Actor struct {
	UserID    string
	SessionID string
	// Ack receives events meant for the originating session only.
	Ack func(models.ServerEvent)
}

func (a Actor) ack(ev models.ServerEvent) {
	if a.Ack != nil {
		a.Ack(ev)
	}
}

// endOfTime bounds "read everything" requests.
var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type Service struct {
	store  storage.Storage
	auth   *Authorizer
	router Broadcaster
	log    *slog.Logger
	locks  *keyedMutex
}

func NewService(store storage.Storage, router Broadcaster, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		auth:   NewAuthorizer(store),
		router: router,
		log:    log,
		locks:  newKeyedMutex(),
	}
}

func (s *Service) Authorizer() *Authorizer { return s.auth }

// SendMessage persists text and only then acknowledges and broadcasts it.
// Sends to one conversation are serialized so delivery follows persistence order.
func (s *Service) SendMessage(ctx context.Context, actor Actor, conversationID, text, clientTempID string) (*models.Message, error) {
	conv, err := s.auth.Authorize(ctx, conversationID, actor.UserID)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.InvalidArg("message text is empty")
	}
	if utf8.RuneCountInString(text) > config.MaxMessageLength {
		return nil, apperrors.InvalidArg("message text is too long")
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       actor.UserID,
		Body:           text,
		ReadBy:         pq.StringArray{actor.UserID},
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound(hiddenMessage)
		}
		s.log.Error("persist message failed", "conversation_id", conversationID, "user_id", actor.UserID, "err", err)
		return nil, apperrors.Transient(err)
	}

	actor.ack(models.DeliveredEvent(clientTempID, msg))
	s.router.BroadcastToConversation(conversationID, models.NewMessageEvent(msg), "")
	s.router.BroadcastToIdentity(conv.Peer(actor.UserID), models.UnreadDeltaEvent(conversationID, 1))
	return msg, nil
}

// MarkRead adds the actor to the read set of every message up to upToMessageID,
// or up to the latest message when it is empty. It returns the id of the
// boundary message, empty if the conversation has none.
func (s *Service) MarkRead(ctx context.Context, actor Actor, conversationID, upToMessageID string) (string, error) {
	if _, err := s.auth.Authorize(ctx, conversationID, actor.UserID); err != nil {
		return "", err
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	var boundary *models.Message
	var err error
	if upToMessageID != "" {
		boundary, err = s.store.GetMessage(ctx, conversationID, upToMessageID)
		if errors.Is(err, storage.ErrNotFound) {
			// the caller is a member, so there is nothing to hide
			return "", apperrors.InvalidArg("unknown message id")
		}
	} else {
		boundary, err = s.store.LatestMessage(ctx, conversationID, endOfTime)
	}
	if err != nil {
		s.log.Error("resolve read boundary failed", "conversation_id", conversationID, "err", err)
		return "", apperrors.Transient(err)
	}

	upTo := ""
	if boundary != nil {
		upTo = boundary.ID
		if _, err := s.store.MarkReadUpTo(ctx, conversationID, actor.UserID, boundary.CreatedAt); err != nil {
			s.log.Error("mark read failed", "conversation_id", conversationID, "user_id", actor.UserID, "err", err)
			return "", apperrors.Transient(err)
		}
	}

	// A boundary older than the newest message leaves later messages unread.
	counts, err := s.store.CountUnread(ctx, actor.UserID, []string{conversationID})
	if err != nil {
		s.log.Error("count unread failed", "conversation_id", conversationID, "user_id", actor.UserID, "err", err)
		return "", apperrors.Transient(err)
	}

	s.router.BroadcastToConversation(conversationID, models.ReadReceiptEvent(conversationID, actor.UserID, upTo), actor.SessionID)
	s.router.BroadcastToIdentity(actor.UserID, models.UnreadResetEvent(conversationID, counts[conversationID]))
	return upTo, nil
}

// FetchHistory returns up to limit messages strictly before before (newest
// page when nil), in ascending order.
func (s *Service) FetchHistory(ctx context.Context, userID, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	if _, err := s.auth.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	limit, err := NormalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	page, err := s.store.ListMessages(ctx, conversationID, before, limit)
	if err != nil {
		s.log.Error("list messages failed", "conversation_id", conversationID, "err", err)
		return nil, apperrors.Transient(err)
	}
	slices.Reverse(page)
	return page, nil
}

// NormalizeLimit applies the default page size and clamps to the maximum.
func NormalizeLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, apperrors.InvalidArg("limit must not be negative")
	case limit == 0:
		return config.DefaultHistoryLimit, nil
	case limit > config.MaxHistoryLimit:
		return config.MaxHistoryLimit, nil
	}
	return limit, nil
}

// UnreadCounts maps each active conversation of userID to its unread count.
// Conversations with nothing unread are omitted.
func (s *Service) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	ids, err := s.ConversationIDsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountUnread(ctx, userID, ids)
	if err != nil {
		s.log.Error("count unread failed", "user_id", userID, "err", err)
		return nil, apperrors.Transient(err)
	}
	for id, n := range counts {
		if n == 0 {
			delete(counts, id)
		}
	}
	return counts, nil
}

// Typing relays a typing indicator to the other sessions in the room.
func (s *Service) Typing(ctx context.Context, actor Actor, conversationID string, isTyping bool) error {
	if _, err := s.auth.Authorize(ctx, conversationID, actor.UserID); err != nil {
		return err
	}
	s.router.BroadcastToConversation(conversationID, models.TypingEvent(conversationID, actor.UserID, isTyping), actor.SessionID)
	return nil
}

// ConversationIDsFor lists the active conversations a new session subscribes to.
func (s *Service) ConversationIDsFor(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.store.ListActiveConversationIDs(ctx, userID)
	if err != nil {
		s.log.Error("list conversations failed", "user_id", userID, "err", err)
		return nil, apperrors.Transient(err)
	}
	return ids, nil
}
