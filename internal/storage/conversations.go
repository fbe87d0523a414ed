package storage

import (
	"context"
	"errors"
	"fmt"

	"gamelauncher/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateConversation inserts c unless a live, non-declined conversation already joins the same pair.
func (s *Service) CreateConversation(ctx context.Context, c *models.Conversation) error {
	c.PairKey = models.PairKey(c.RequesterID, c.AddresseeID)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Conversation{}).
			Where("pair_key = ? AND status <> ?", c.PairKey, models.StatusDeclined).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(c).Error
	})

	// The partial unique index catches the race the count above cannot.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("create conversation: %w", err)
	}
	return err
}

// GetConversation treats an id that is not a UUID as unknown rather than
// letting Postgres reject it.
func (s *Service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	var c models.Conversation
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *Service) UpdateConversationStatus(ctx context.Context, id string, from, to models.ConversationStatus) (*models.Conversation, error) {
	res := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return nil, fmt.Errorf("update conversation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetConversation(ctx, id)
}

// DeleteConversation soft-removes the conversation; messages are kept.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Conversation{})
	if res.Error != nil {
		return fmt.Errorf("delete conversation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := s.DB.WithContext(ctx).
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Order("created_at asc").
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations for %s: %w", userID, err)
	}
	return conversations, nil
}

// ListActiveConversationIDs returns the ids of the active conversations userID participates in.
func (s *Service) ListActiveConversationIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("status = ?", models.StatusActive).
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list active conversations for %s: %w", userID, err)
	}
	return ids, nil
}
