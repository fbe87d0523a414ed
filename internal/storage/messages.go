package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamelauncher/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendMessage persists m inside a transaction holding a row lock on its
// conversation, so concurrent senders are linearized by the database.
func (s *Service) AppendMessage(ctx context.Context, m *models.Message) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", m.ConversationID).
			Take(&conv).Error; err != nil {
			return err
		}

		createdAt := dbTime(s.now())
		var last models.Message
		err := tx.Select("created_at").
			Where("conversation_id = ?", m.ConversationID).
			Order("created_at desc").
			Take(&last).Error
		switch {
		case err == nil:
			if !createdAt.After(last.CreatedAt) {
				createdAt = last.CreatedAt.Add(time.Microsecond)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		m.CreatedAt = createdAt
		return tx.Create(m).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("append message to %s: %w", m.ConversationID, err)
	}
	return nil
}

func (s *Service) GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error) {
	if uuid.Validate(messageID) != nil {
		return nil, ErrNotFound
	}
	var m models.Message
	err := s.DB.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	return &m, nil
}

func (s *Service) LatestMessage(ctx context.Context, conversationID string, upTo time.Time) (*models.Message, error) {
	var m models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ? AND created_at <= ?", conversationID, upTo).
		Order("created_at desc").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message in %s: %w", conversationID, err)
	}
	return &m, nil
}

// MarkReadUpTo only touches rows that do not already contain userID, so it is idempotent.
func (s *Service) MarkReadUpTo(ctx context.Context, conversationID, userID string, upTo time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND created_at <= ?", conversationID, upTo).
		Where("NOT (? = ANY(read_by))", userID).
		Update("read_by", gorm.Expr("array_append(read_by, ?)", userID))
	if res.Error != nil {
		return 0, fmt.Errorf("mark read in %s: %w", conversationID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	q := s.DB.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}

	var messages []models.Message
	if err := q.Order("created_at desc").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages in %s: %w", conversationID, err)
	}
	return messages, nil
}

func (s *Service) CountUnread(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ConversationID string
		Unread         int
	}
	if err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, count(*) AS unread").
		Where("conversation_id IN ?", conversationIDs).
		Where("NOT (? = ANY(read_by))", userID).
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count unread for %s: %w", userID, err)
	}

	for _, r := range rows {
		counts[r.ConversationID] = r.Unread
	}
	return counts, nil
}
