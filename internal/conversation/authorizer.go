package conversation

import (
	"context"
	"errors"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage"
)

// hiddenMessage is the only thing a caller learns about a conversation it cannot use.
const hiddenMessage = "conversation not found"

// Authorizer decides conversation membership. It never mutates anything.
type Authorizer struct {
	store storage.ConversationStore
}

func NewAuthorizer(store storage.ConversationStore) *Authorizer {
	return &Authorizer{store: store}
}

// IsMember reports whether userID is one of the two participants. A missing
// conversation is a NOT_FOUND error, not false.
func (a *Authorizer) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	c, err := a.load(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return c.HasParticipant(userID), nil
}

// Authorize loads an active conversation the user participates in. Non-members
// get PERMISSION_DENIED, which callers surface exactly like NOT_FOUND.
func (a *Authorizer) Authorize(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	c, err := a.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) || !c.IsActive() {
		return nil, apperrors.Forbidden(hiddenMessage)
	}
	return c, nil
}

// participant is like Authorize but accepts any lifecycle status.
func (a *Authorizer) participant(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	c, err := a.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, apperrors.Forbidden(hiddenMessage)
	}
	return c, nil
}

func (a *Authorizer) load(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if conversationID == "" {
		return nil, apperrors.NotFound(hiddenMessage)
	}
	c, err := a.store.GetConversation(ctx, conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(hiddenMessage)
	}
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	return c, nil
}
