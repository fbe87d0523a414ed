package chathub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage"
)

const presenceWriteTimeout = 2 * time.Second

// Registry maps identities to their live sessions and owns presence. The
// online/offline decision and its broadcast happen under one lock, so
// concurrent connects and disconnects of one identity emit exactly one
// transition each.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]map[string]*Session
	lastSeen map[string]time.Time

	// presence may be nil; it only backs last-seen across restarts.
	presence storage.PresenceStore
	log      *slog.Logger
	now      func() time.Time
}

func NewRegistry(presence storage.PresenceStore, log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]*Session),
		lastSeen: make(map[string]time.Time),
		presence: presence,
		log:      log,
		now:      time.Now,
	}
}

// Register adds s. The first session of an identity flips it online.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return
	}
	r.sessions[s.ID] = s

	set, ok := r.byUser[s.UserID]
	if !ok {
		set = make(map[string]*Session)
		r.byUser[s.UserID] = set
	}
	set[s.ID] = s

	if len(set) == 1 {
		r.broadcastLocked(models.PresenceEvent(s.UserID, true, r.now().UTC()))
	}
}

// Unregister removes and closes s. It returns false if s was already gone, so
// callers can run their own teardown exactly once.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	if _, ok := r.sessions[s.ID]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, s.ID)
	s.Close()

	wentOffline := false
	var at time.Time
	set := r.byUser[s.UserID]
	delete(set, s.ID)
	if len(set) == 0 {
		delete(r.byUser, s.UserID)
		wentOffline = true
		at = r.now().UTC()
		r.lastSeen[s.UserID] = at
		r.broadcastLocked(models.PresenceEvent(s.UserID, false, at))
	}
	r.mu.Unlock()

	if wentOffline {
		r.persistLastSeen(s.UserID, at)
	}
	return true
}

// SessionsOf returns a snapshot of the live sessions of userID.
func (r *Registry) SessionsOf(userID string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		out = append(out, s)
	}
	return out
}

// Broadcast delivers ev to every live session.
func (r *Registry) Broadcast(ev models.ServerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(ev)
}

func (r *Registry) broadcastLocked(ev models.ServerEvent) {
	for _, s := range r.sessions {
		s.Deliver(ev)
	}
}

func (r *Registry) Online(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]) > 0
}

// Touch refreshes the last-seen timestamp of userID (REST heartbeat).
func (r *Registry) Touch(userID string) time.Time {
	r.mu.Lock()
	at := r.now().UTC()
	r.lastSeen[userID] = at
	r.mu.Unlock()

	r.persistLastSeen(userID, at)
	return at
}

// Presence returns whether userID is online and when it was last seen. Identities
// this process never saw fall back to the presence store.
func (r *Registry) Presence(ctx context.Context, userID string) (bool, time.Time, error) {
	r.mu.Lock()
	online := len(r.byUser[userID]) > 0
	at, known := r.lastSeen[userID]
	r.mu.Unlock()

	if known || r.presence == nil {
		return online, at, nil
	}
	stored, err := r.presence.GetLastSeen(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return online, time.Time{}, nil
	}
	if err != nil {
		return online, time.Time{}, err
	}
	return online, stored, nil
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) persistLastSeen(userID string, at time.Time) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
	defer cancel()
	if err := r.presence.SetLastSeen(ctx, userID, at); err != nil {
		r.log.Warn("persist last seen failed", "user_id", userID, "err", err)
	}
}
