package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/config"
	"gamelauncher/backend/internal/conversation"
	"gamelauncher/backend/internal/logging"
	"gamelauncher/backend/internal/models"
	"gamelauncher/backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendAndReadScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeBetween(t, "alice", "bob")

	var acks []models.ServerEvent
	sender := conversation.Actor{UserID: "alice", SessionID: "s-alice", Ack: func(ev models.ServerEvent) { acks = append(acks, ev) }}

	msg, err := f.svc.SendMessage(ctx, sender, c.ID, "hi", "t1")
	require.NoError(t, err)

	require.Len(t, acks, 1)
	assert.Equal(t, models.EventDelivered, acks[0].Type)
	assert.Equal(t, "t1", acks[0].ClientTempID)
	assert.Equal(t, msg.ID, acks[0].MessageID)
	require.NotNil(t, acks[0].CreatedAt)
	assert.Equal(t, msg.CreatedAt, *acks[0].CreatedAt)

	newMessages := f.router.roomEvents(models.EventNewMessage)
	require.Len(t, newMessages, 1)
	assert.Equal(t, c.ID, newMessages[0].Target)
	assert.Empty(t, newMessages[0].Exclude, "the sender's other devices receive the message too")
	assert.Equal(t, "hi", newMessages[0].Event.Message.Body)

	deltas := f.router.identityEvents(models.EventUnreadDelta)
	require.Len(t, deltas, 1)
	assert.Equal(t, "bob", deltas[0].Target)
	assert.Equal(t, 1, deltas[0].Event.Delta)

	counts, err := f.svc.UnreadCounts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{c.ID: 1}, counts)

	upTo, err := f.svc.MarkRead(ctx, conversation.Actor{UserID: "bob", SessionID: "s-bob"}, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, upTo)

	receipts := f.router.roomEvents(models.EventReadReceipt)
	require.Len(t, receipts, 1)
	assert.Equal(t, "s-bob", receipts[0].Exclude)
	assert.Equal(t, "bob", receipts[0].Event.UserID)
	assert.Equal(t, msg.ID, receipts[0].Event.UpToMessageID)

	resets := f.router.identityEvents(models.EventUnreadReset)
	require.Len(t, resets, 1)
	assert.Equal(t, "bob", resets[0].Target)
	require.NotNil(t, resets[0].Event.Count)
	assert.Equal(t, 0, *resets[0].Event.Count)

	counts, err = f.svc.UnreadCounts(ctx, "bob")
	require.NoError(t, err)
	assert.NotContains(t, counts, c.ID)
}

func TestSendMessage_SenderHasReadRecipientHasNot(t *testing.T) {
	f := newFixture()
	c := f.activeBetween(t, "alice", "bob")

	msg, err := f.svc.SendMessage(context.Background(), actor("alice"), c.ID, "  hello  ", "")
	require.NoError(t, err)

	stored, err := f.store.GetMessage(context.Background(), c.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Body)
	assert.True(t, stored.IsReadBy("alice"))
	assert.False(t, stored.IsReadBy("bob"))
}

func TestSendMessage_NonMemberHasNoSideEffects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeBetween(t, "alice", "bob")
	before := f.router.total()

	_, err := f.svc.SendMessage(ctx, actor("mallory"), c.ID, "let me in", "t1")
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	_, missing := f.svc.SendMessage(ctx, actor("mallory"), "no-such-id", "hi", "t1")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(missing))
	assert.Equal(t, apperrors.MessageOf(err), apperrors.MessageOf(missing), "non-members cannot tell the two apart")

	msgs, _ := f.store.ListMessages(ctx, c.ID, nil, 100)
	assert.Empty(t, msgs)
	assert.Equal(t, before, f.router.total())
}

func TestSendMessage_RequiresActiveConversation(t *testing.T) {
	f := newFixture()
	c, err := f.svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), actor("alice"), c.ID, "hi", "")
	assert.True(t, apperrors.IsHidden(err))
}

func TestSendMessage_ValidatesText(t *testing.T) {
	f := newFixture()
	c := f.activeBetween(t, "alice", "bob")

	tests := []struct {
		name string
		text string
		ok   bool
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: " \n\t "},
		{name: "too long", text: strings.Repeat("a", config.MaxMessageLength+1)},
		{name: "exactly max", text: strings.Repeat("a", config.MaxMessageLength), ok: true},
		{name: "max multibyte runes", text: strings.Repeat("é", config.MaxMessageLength), ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(context.Background(), actor("alice"), c.ID, tt.text, "")
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
		})
	}
}

type failingStore struct {
	*memory.Store
	mock.Mock
}

func (s *failingStore) AppendMessage(_ context.Context, m *models.Message) error {
	args := s.Called(m.ConversationID)
	return args.Error(0)
}

func TestSendMessage_PersistenceFailureBroadcastsNothing(t *testing.T) {
	store := &failingStore{Store: memory.NewStore()}
	router := &recordingRouter{}
	svc := conversation.NewService(store, router, logging.Discard())
	ctx := context.Background()

	c, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, "bob", c.ID, true)
	require.NoError(t, err)
	before := router.total()

	store.On("AppendMessage", c.ID).Return(errors.New("connection refused"))

	acked := false
	_, err = svc.SendMessage(ctx, conversation.Actor{UserID: "alice", Ack: func(models.ServerEvent) { acked = true }}, c.ID, "hi", "t1")

	assert.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))
	assert.False(t, acked)
	assert.Equal(t, before, router.total())
	store.AssertExpectations(t)
}

func TestMarkRead_IsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeBetween(t, "alice", "bob")
	m1, _ := f.svc.SendMessage(ctx, actor("alice"), c.ID, "one", "")
	f.svc.SendMessage(ctx, actor("alice"), c.ID, "two", "")

	_, err := f.svc.MarkRead(ctx, actor("bob"), c.ID, m1.ID)
	require.NoError(t, err)
	first, _ := f.store.ListMessages(ctx, c.ID, nil, 10)

	_, err = f.svc.MarkRead(ctx, actor("bob"), c.ID, m1.ID)
	require.NoError(t, err)
	second, _ := f.store.ListMessages(ctx, c.ID, nil, 10)

	assert.Equal(t, first, second)

	resets := f.router.identityEvents(models.EventUnreadReset)
	require.Len(t, resets, 2)
	assert.Equal(t, 1, *resets[1].Event.Count, "the message after the boundary stays unread")
}

func TestMarkRead_UnknownMessage(t *testing.T) {
	f := newFixture()
	c := f.activeBetween(t, "alice", "bob")

	before := f.router.total()

	_, err := f.svc.MarkRead(context.Background(), actor("bob"), c.ID, "nope")
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsHidden(err))
	assert.Equal(t, before, f.router.total(), "a rejected read broadcasts nothing")
}

func TestMarkRead_EmptyConversation(t *testing.T) {
	f := newFixture()
	c := f.activeBetween(t, "alice", "bob")

	upTo, err := f.svc.MarkRead(context.Background(), actor("bob"), c.ID, "")
	require.NoError(t, err)
	assert.Empty(t, upTo)
}

func TestUnreadCountMatchesReadSets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeBetween(t, "alice", "bob")
	users := []string{"alice", "bob"}
	rng := rand.New(rand.NewSource(7))

	var sent []*models.Message
	for step := 0; step < 200; step++ {
		u := users[rng.Intn(2)]
		if rng.Intn(3) > 0 || len(sent) == 0 {
			m, err := f.svc.SendMessage(ctx, actor(u), c.ID, fmt.Sprintf("m%d", step), "")
			require.NoError(t, err)
			sent = append(sent, m)
		} else {
			_, err := f.svc.MarkRead(ctx, actor(u), c.ID, sent[rng.Intn(len(sent))].ID)
			require.NoError(t, err)
		}

		all, err := f.store.ListMessages(ctx, c.ID, nil, len(sent))
		require.NoError(t, err)
		for _, who := range users {
			want := 0
			for _, m := range all {
				if !m.IsReadBy(who) {
					want++
				}
			}
			counts, err := f.svc.UnreadCounts(ctx, who)
			require.NoError(t, err)
			assert.Equal(t, want, counts[c.ID], "step %d user %s", step, who)
		}
	}
}

func TestFetchHistory_PagesBackwardWithoutGapsOrDuplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.store.SetClock(func() time.Time { return frozen })
	c := f.activeBetween(t, "alice", "bob")

	const total = 23
	for i := 0; i < total; i++ {
		_, err := f.svc.SendMessage(ctx, actor("alice"), c.ID, fmt.Sprintf("m%02d", i), "")
		require.NoError(t, err)
	}

	var collected []models.Message
	var before *time.Time
	for {
		page, err := f.svc.FetchHistory(ctx, "bob", c.ID, before, 5)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for i := 1; i < len(page); i++ {
			assert.True(t, page[i].CreatedAt.After(page[i-1].CreatedAt), "page must be ascending")
		}
		collected = append(page, collected...)
		earliest := page[0].CreatedAt
		before = &earliest
	}

	require.Len(t, collected, total)
	for i, m := range collected {
		assert.Equal(t, fmt.Sprintf("m%02d", i), m.Body)
	}
}

func TestFetchHistory_NonMember(t *testing.T) {
	f := newFixture()
	c := f.activeBetween(t, "alice", "bob")

	_, err := f.svc.FetchHistory(context.Background(), "mallory", c.ID, nil, 0)
	assert.True(t, apperrors.IsHidden(err))
}

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{in: 0, want: config.DefaultHistoryLimit},
		{in: 10, want: 10},
		{in: config.MaxHistoryLimit, want: config.MaxHistoryLimit},
		{in: 1000, want: config.MaxHistoryLimit},
		{in: -1, wantErr: true},
	}
	for _, tt := range tests {
		got, err := conversation.NormalizeLimit(tt.in)
		if tt.wantErr {
			assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestTyping_ExcludesOriginatingSession(t *testing.T) {
	f := newFixture()
	c := f.activeBetween(t, "alice", "bob")

	err := f.svc.Typing(context.Background(), conversation.Actor{UserID: "alice", SessionID: "s1"}, c.ID, true)
	require.NoError(t, err)

	events := f.router.roomEvents(models.EventTyping)
	require.Len(t, events, 1)
	assert.Equal(t, "s1", events[0].Exclude)
	assert.True(t, *events[0].Event.IsTyping)

	err = f.svc.Typing(context.Background(), actor("mallory"), c.ID, true)
	assert.True(t, apperrors.IsHidden(err))
}

func TestConcurrentSendsStayOrdered(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeBetween(t, "alice", "bob")

	done := make(chan struct{})
	for _, u := range []string{"alice", "bob"} {
		go func(u string) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				_, _ = f.svc.SendMessage(ctx, actor(u), c.ID, "x", "")
			}
		}(u)
	}
	<-done
	<-done

	persisted, _ := f.store.ListMessages(ctx, c.ID, nil, 100)
	require.Len(t, persisted, 100)

	delivered := f.router.roomEvents(models.EventNewMessage)
	require.Len(t, delivered, 100)
	for i, ev := range delivered {
		// persisted is newest first
		assert.Equal(t, persisted[len(persisted)-1-i].ID, ev.Event.Message.ID)
	}
}
