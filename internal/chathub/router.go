package chathub

import (
	"sort"
	"sync"

	"gamelauncher/backend/internal/models"
)

// Router is the in-memory fan-out index: conversation rooms and, through the
// Registry, identities. It never authorizes; callers do that first.
type Router struct {
	mu sync.RWMutex
	// conversation id -> session id -> session
	rooms map[string]map[string]*Session
	// session id -> subscribed conversation ids
	subs map[string]map[string]struct{}

	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{
		rooms:    make(map[string]map[string]*Session),
		subs:     make(map[string]map[string]struct{}),
		registry: registry,
	}
}

// Join is idempotent. A closed session is never subscribed.
func (r *Router) Join(s *Session, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Closed() {
		return false
	}
	room, ok := r.rooms[conversationID]
	if !ok {
		room = make(map[string]*Session)
		r.rooms[conversationID] = room
	}
	room[s.ID] = s

	set, ok := r.subs[s.ID]
	if !ok {
		set = make(map[string]struct{})
		r.subs[s.ID] = set
	}
	set[conversationID] = struct{}{}
	return true
}

func (r *Router) Leave(s *Session, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s.ID, conversationID)
}

// LeaveAll removes every subscription of s.
func (r *Router) LeaveAll(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.subs[s.ID] {
		r.leaveLocked(s.ID, conversationID)
	}
	delete(r.subs, s.ID)
}

func (r *Router) leaveLocked(sessionID, conversationID string) {
	if room, ok := r.rooms[conversationID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(r.rooms, conversationID)
		}
	}
	if set, ok := r.subs[sessionID]; ok {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(r.subs, sessionID)
		}
	}
}

func (r *Router) IsSubscribed(s *Session, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[s.ID][conversationID]
	return ok
}

// Subscriptions returns the sorted conversation ids s is subscribed to.
func (r *Router) Subscriptions(s *Session) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.subs[s.ID]))
	for id := range r.subs[s.ID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// JoinIdentity subscribes every live session of userID to conversationID.
func (r *Router) JoinIdentity(userID, conversationID string) {
	for _, s := range r.registry.SessionsOf(userID) {
		r.Join(s, conversationID)
	}
}

// DropConversation unsubscribes everyone from conversationID.
func (r *Router) DropConversation(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionID := range r.rooms[conversationID] {
		if set, ok := r.subs[sessionID]; ok {
			delete(set, conversationID)
			if len(set) == 0 {
				delete(r.subs, sessionID)
			}
		}
	}
	delete(r.rooms, conversationID)
}

// BroadcastToConversation delivers ev to every session subscribed to
// conversationID except excludeSessionID (empty excludes nobody).
func (r *Router) BroadcastToConversation(conversationID string, ev models.ServerEvent, excludeSessionID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, s := range r.rooms[conversationID] {
		if id == excludeSessionID {
			continue
		}
		s.Deliver(ev)
	}
}

// BroadcastToIdentity delivers ev to every live session of userID regardless
// of subscriptions.
func (r *Router) BroadcastToIdentity(userID string, ev models.ServerEvent) {
	for _, s := range r.registry.SessionsOf(userID) {
		s.Deliver(ev)
	}
}

func (r *Router) BroadcastGlobal(ev models.ServerEvent) {
	r.registry.Broadcast(ev)
}

func (r *Router) RoomSize(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}
