package conversation_test

import (
	"context"
	"sync"
	"testing"

	"gamelauncher/backend/internal/conversation"
	"gamelauncher/backend/internal/logging"
	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage/memory"

	"github.com/stretchr/testify/require"
)

type routed struct {
	Target  string // conversation id or user id
	Exclude string
	Event   models.ServerEvent
}

// recordingRouter captures every fan-out request.
type recordingRouter struct {
	mu       sync.Mutex
	rooms    []routed
	identity []routed
	joined   []string
	dropped  []string
}

func (r *recordingRouter) BroadcastToConversation(conversationID string, ev models.ServerEvent, excludeSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, routed{Target: conversationID, Exclude: excludeSessionID, Event: ev})
}

func (r *recordingRouter) BroadcastToIdentity(userID string, ev models.ServerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identity = append(r.identity, routed{Target: userID, Event: ev})
}

func (r *recordingRouter) JoinIdentity(userID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined = append(r.joined, userID+"@"+conversationID)
}

func (r *recordingRouter) DropConversation(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, conversationID)
}

func (r *recordingRouter) roomEvents(t models.EventType) []routed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []routed
	for _, e := range r.rooms {
		if e.Event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingRouter) identityEvents(t models.EventType) []routed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []routed
	for _, e := range r.identity {
		if e.Event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingRouter) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms) + len(r.identity)
}

type fixture struct {
	store  *memory.Store
	router *recordingRouter
	svc    *conversation.Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	router := &recordingRouter{}
	return &fixture{
		store:  store,
		router: router,
		svc:    conversation.NewService(store, router, logging.Discard()),
	}
}

// activeBetween creates a conversation from a to b and accepts it.
func (f *fixture) activeBetween(t *testing.T, a, b string) *models.Conversation {
	t.Helper()
	ctx := context.Background()
	c, err := f.svc.Request(ctx, a, b)
	require.NoError(t, err)
	c, err = f.svc.Respond(ctx, b, c.ID, true)
	require.NoError(t, err)
	return c
}

func actor(userID string) conversation.Actor {
	return conversation.Actor{UserID: userID}
}
