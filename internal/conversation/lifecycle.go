package conversation

import (
	"context"
	"errors"
	"strings"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage"
)

// Request opens a pending conversation from actorID to peerID.
func (s *Service) Request(ctx context.Context, actorID, peerID string) (*models.Conversation, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, apperrors.InvalidArg("peer id is required")
	}
	if peerID == actorID {
		return nil, apperrors.InvalidArg("cannot open a conversation with yourself")
	}

	c := &models.Conversation{RequesterID: actorID, AddresseeID: peerID, Status: models.StatusPending}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("conversation already exists")
		}
		s.log.Error("create conversation failed", "user_id", actorID, "peer_id", peerID, "err", err)
		return nil, apperrors.Transient(err)
	}

	s.log.Info("conversation requested", "conversation_id", c.ID, "user_id", actorID, "peer_id", peerID)
	s.notifyParticipants(c, models.ConversationUpdatedEvent(c))
	return c, nil
}

// Respond lets the addressee accept or decline a pending conversation. On
// accept every live session of both participants joins the room.
func (s *Service) Respond(ctx context.Context, actorID, conversationID string, accept bool) (*models.Conversation, error) {
	c, err := s.auth.participant(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if c.AddresseeID != actorID {
		return nil, apperrors.FailedPrecondition("only the addressee can respond")
	}
	if c.Status != models.StatusPending {
		return nil, apperrors.FailedPrecondition("conversation is not pending")
	}

	to := models.StatusDeclined
	if accept {
		to = models.StatusActive
	}
	updated, err := s.store.UpdateConversationStatus(ctx, conversationID, models.StatusPending, to)
	if errors.Is(err, storage.ErrNotFound) {
		// lost a race with another response or a removal
		return nil, apperrors.FailedPrecondition("conversation is not pending")
	}
	if err != nil {
		s.log.Error("update conversation failed", "conversation_id", conversationID, "err", err)
		return nil, apperrors.Transient(err)
	}

	if accept {
		for _, p := range updated.Participants() {
			s.router.JoinIdentity(p, conversationID)
		}
	}
	s.log.Info("conversation answered", "conversation_id", conversationID, "status", updated.Status)
	s.notifyParticipants(updated, models.ConversationUpdatedEvent(updated))
	return updated, nil
}

// Remove soft-deletes a conversation on behalf of either participant. Messages
// are kept but no longer reachable.
func (s *Service) Remove(ctx context.Context, actorID, conversationID string) error {
	c, err := s.auth.participant(ctx, conversationID, actorID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound(hiddenMessage)
		}
		s.log.Error("remove conversation failed", "conversation_id", conversationID, "err", err)
		return apperrors.Transient(err)
	}

	s.router.DropConversation(conversationID)
	s.log.Info("conversation removed", "conversation_id", conversationID, "user_id", actorID)
	s.notifyParticipants(c, models.ConversationRemovedEvent(conversationID))
	return nil
}

// List returns every conversation of actorID that has not been removed.
func (s *Service) List(ctx context.Context, actorID string) ([]models.Conversation, error) {
	list, err := s.store.ListConversations(ctx, actorID)
	if err != nil {
		s.log.Error("list conversations failed", "user_id", actorID, "err", err)
		return nil, apperrors.Transient(err)
	}
	if list == nil {
		list = []models.Conversation{}
	}
	return list, nil
}

func (s *Service) notifyParticipants(c *models.Conversation, ev models.ServerEvent) {
	for _, p := range c.Participants() {
		s.router.BroadcastToIdentity(p, ev)
	}
}
