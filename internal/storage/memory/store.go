// Package memory is a process-local implementation of the storage interfaces,
// used for STORAGE_BACKEND=memory and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	removed       map[string]bool
	// messages per conversation, ascending by CreatedAt
	messages map[string][]*models.Message
	lastSeen map[string]time.Time

	now func() time.Time
}

var (
	_ storage.Storage       = (*Store)(nil)
	_ storage.PresenceStore = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*models.Conversation),
		removed:       make(map[string]bool),
		messages:      make(map[string][]*models.Message),
		lastSeen:      make(map[string]time.Time),
		now:           time.Now,
	}
}

// SetClock replaces the time source; tests use it to force equal timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) live(id string) (*models.Conversation, bool) {
	c, ok := s.conversations[id]
	if !ok || s.removed[id] {
		return nil, false
	}
	return c, true
}

func (s *Store) CreateConversation(_ context.Context, c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	c.PairKey = models.PairKey(c.RequesterID, c.AddresseeID)

	for id, existing := range s.conversations {
		if s.removed[id] || existing.Status == models.StatusDeclined {
			continue
		}
		if existing.PairKey == c.PairKey || id == c.ID {
			return storage.ErrAlreadyExists
		}
	}

	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.conversations[c.ID] = &cp
	return nil
}

func (s *Store) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.live(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) UpdateConversationStatus(_ context.Context, id string, from, to models.ConversationStatus) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(id)
	if !ok || c.Status != from {
		return nil, storage.ErrNotFound
	}
	c.Status = to
	c.UpdatedAt = s.now().UTC()
	cp := *c
	return &cp, nil
}

func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(id); !ok {
		return storage.ErrNotFound
	}
	s.removed[id] = true
	return nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Conversation
	for id, c := range s.conversations {
		if s.removed[id] || !c.HasParticipant(userID) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListActiveConversationIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, c := range s.conversations {
		if !s.removed[id] && c.IsActive() && c.HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) AppendMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(m.ConversationID); !ok {
		return storage.ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ReadBy == nil {
		m.ReadBy = pq.StringArray{}
	}

	createdAt := s.now().UTC().Truncate(time.Microsecond)
	log := s.messages[m.ConversationID]
	if n := len(log); n > 0 && !createdAt.After(log[n-1].CreatedAt) {
		createdAt = log[n-1].CreatedAt.Add(time.Microsecond)
	}
	m.CreatedAt = createdAt

	cp := m.Clone()
	s.messages[m.ConversationID] = append(log, &cp)
	return nil
}

func (s *Store) GetMessage(_ context.Context, conversationID, messageID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			cp := m.Clone()
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) LatestMessage(_ context.Context, conversationID string, upTo time.Time) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[conversationID]
	for i := len(log) - 1; i >= 0; i-- {
		if !log[i].CreatedAt.After(upTo) {
			cp := log[i].Clone()
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) MarkReadUpTo(_ context.Context, conversationID, userID string, upTo time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched int64
	for _, m := range s.messages[conversationID] {
		if m.CreatedAt.After(upTo) {
			break
		}
		if m.MarkReadBy(userID) {
			touched++
		}
	}
	return touched, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[conversationID]
	out := make([]models.Message, 0, limit)
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		if before != nil && !log[i].CreatedAt.Before(*before) {
			continue
		}
		out = append(out, log[i].Clone())
	}
	return out, nil
}

func (s *Store) CountUnread(_ context.Context, userID string, conversationIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, id := range conversationIDs {
		for _, m := range s.messages[id] {
			if !m.IsReadBy(userID) {
				counts[id]++
			}
		}
	}
	return counts, nil
}

func (s *Store) SetLastSeen(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[userID] = at
	return nil
}

func (s *Store) GetLastSeen(_ context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.lastSeen[userID]
	if !ok {
		return time.Time{}, storage.ErrNotFound
	}
	return at, nil
}
