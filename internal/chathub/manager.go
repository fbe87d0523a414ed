package chathub

import (
	"context"
	"log/slog"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/conversation"
	"gamelauncher/backend/internal/models"
)

// ManagerService glues live sessions to the conversation layer: it registers
// connections, subscribes them to their rooms and dispatches client events.
type ManagerService struct {
	Registry *Registry
	Router   *Router
	Service  *conversation.Service

	log    *slog.Logger
	buffer int
}

func NewManagerService(registry *Registry, router *Router, svc *conversation.Service, log *slog.Logger, buffer int) *ManagerService {
	return &ManagerService{
		Registry: registry,
		Router:   router,
		Service:  svc,
		log:      log,
		buffer:   buffer,
	}
}

// Connect registers a new session for an authenticated identity and subscribes
// it to every active conversation of that identity. Subscriptions are in place
// before the identity is announced online, so no message sent after that point
// misses the session; a second pass picks up conversations accepted in between.
func (m *ManagerService) Connect(ctx context.Context, userID string) *Session {
	s := NewSession(userID, m.buffer)

	joined, err := m.subscribe(ctx, s)
	m.Registry.Register(s)
	// The buffer is not drained before Run, so an overflow while unregistered
	// still trips the handler on the next delivery.
	s.SetOverflowHandler(func(s *Session) {
		m.log.Warn("session buffer full, disconnecting", "user_id", s.UserID, "session_id", s.ID)
		m.Disconnect(s)
	})
	if err == nil {
		joined, err = m.subscribe(ctx, s)
	}
	if err != nil {
		// the session stays usable; explicit joins still work
		s.Deliver(models.ErrorEvent(string(apperrors.CodeOf(err)), apperrors.MessageOf(err), ""))
	}

	m.log.Info("session connected", "user_id", userID, "session_id", s.ID, "conversations", joined)
	return s
}

func (m *ManagerService) subscribe(ctx context.Context, s *Session) (int, error) {
	ids, err := m.Service.ConversationIDsFor(ctx, s.UserID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		m.Router.Join(s, id)
	}
	return len(ids), nil
}

// Disconnect tears s down. Safe to call any number of times.
func (m *ManagerService) Disconnect(s *Session) {
	if !m.Registry.Unregister(s) {
		return
	}
	m.Router.LeaveAll(s)
	m.log.Info("session disconnected", "user_id", s.UserID, "session_id", s.ID)
}

// HandleEvent runs one client event for s. Errors never end the session.
func (m *ManagerService) HandleEvent(ctx context.Context, s *Session, ev models.ClientEvent) {
	actor := conversation.Actor{
		UserID:    s.UserID,
		SessionID: s.ID,
		Ack:       func(out models.ServerEvent) { s.Deliver(out) },
	}

	var err error
	switch ev.Type {
	case models.EventJoin:
		if _, err = m.Service.Authorizer().Authorize(ctx, ev.ConversationID, s.UserID); err == nil {
			m.Router.Join(s, ev.ConversationID)
		}
	case models.EventLeave:
		m.Router.Leave(s, ev.ConversationID)
	case models.EventTyping:
		err = m.Service.Typing(ctx, actor, ev.ConversationID, ev.IsTyping)
	case models.EventSend:
		_, err = m.Service.SendMessage(ctx, actor, ev.ConversationID, ev.Text, ev.ClientTempID)
	case models.EventRead:
		_, err = m.Service.MarkRead(ctx, actor, ev.ConversationID, ev.UpToMessageID)
	default:
		err = apperrors.InvalidArg("unknown event type")
	}

	m.report(s, ev, err)
}

func (m *ManagerService) report(s *Session, ev models.ClientEvent, err error) {
	if err == nil {
		return
	}
	if apperrors.IsHidden(err) {
		m.log.Debug("dropped unauthorized event", "user_id", s.UserID, "conversation_id", ev.ConversationID, "type", ev.Type)
		return
	}
	s.Deliver(models.ErrorEvent(string(apperrors.CodeOf(err)), apperrors.MessageOf(err), ev.ClientTempID))
}
