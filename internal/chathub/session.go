package chathub

import (
	"sync"

	"gamelauncher/backend/internal/models"

	"github.com/google/uuid"
)

// Session is one live connection of one identity. Outbound events go through a
// bounded buffer drained by the transport.
type Session struct {
	ID     string
	UserID string

	mu     sync.Mutex
	send   chan models.ServerEvent
	closed bool

	overflowOnce sync.Once
	onOverflow   func(*Session)
}

func NewSession(userID string, buffer int) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan models.ServerEvent, buffer),
	}
}

// SetOverflowHandler registers the callback run once, on its own goroutine,
// when an event does not fit in the buffer.
func (s *Session) SetOverflowHandler(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOverflow = fn
}

// Events is closed when the session is closed.
func (s *Session) Events() <-chan models.ServerEvent {
	return s.send
}

// Deliver never blocks. It reports whether ev was queued.
func (s *Session) Deliver(ev models.ServerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.send <- ev:
		return true
	default:
		if fn := s.onOverflow; fn != nil {
			s.overflowOnce.Do(func() { go fn(s) })
		}
		return false
	}
}

// Close reports whether this call closed the session.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	return true
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
