package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/database"
	"DiaBot/pkg/session"
	"DiaBot/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponder struct {
	reply string
	err   error
	calls int
	seen  []models.Turn
}

func (f *fakeResponder) Respond(ctx context.Context, query string, turns []models.Turn) (string, error) {
	f.calls++
	f.seen = append([]models.Turn(nil), turns...)
	return f.reply, f.err
}

type failingStore struct {
	store.ConversationStore
}

func (failingStore) Create(context.Context, uint, string, string, string, time.Time) (uint, error) {
	return 0, errors.New("disk full")
}

func (failingStore) Get(context.Context, uint) (*models.Conversation, error) { return nil, nil }

func newStore(t *testing.T) *store.GormConversationStore {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return store.NewConversationStore(db)
}

var ann = &Identity{UserID: 1, Email: "ann@example.com"}

func load(t *testing.T, s store.ConversationStore, id uint) *models.Conversation {
	t.Helper()
	conv, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func TestNewChatCreatesConversation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{}, Options{})
	st := &session.State{ID: "s1"}

	res, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "hi"}})
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotZero(t, res.ConversationID)
	require.NotNil(t, st.ConversationID)
	assert.Equal(t, res.ConversationID, *st.ConversationID)

	conv := load(t, s, res.ConversationID)
	assert.Equal(t, "hi", conv.LastMessage)
	assert.Equal(t, "User: hi", conv.Content)
	assert.Equal(t, ann.UserID, conv.UserID)
	assert.True(t, strings.HasPrefix(conv.Title, "ann@example.com - "))
	assert.Equal(t, []models.Turn{models.UserTurn("hi")}, st.Buffer)
}

func TestNewChatEmptyMessages(t *testing.T) {
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{}, Options{})
	res, err := r.HandleNewChat(context.Background(), ann, &session.State{}, nil)
	require.NoError(t, err)

	conv := load(t, s, res.ConversationID)
	assert.Equal(t, "", conv.LastMessage)
	assert.Equal(t, "", conv.Content)
}

func TestNewChatLastMessageIsLastElement(t *testing.T) {
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{}, Options{})
	msgs := []Message{
		{IsUser: true, Content: "hi"},
		{IsUser: false, Content: "hello, how can I help?"},
	}
	res, err := r.HandleNewChat(context.Background(), ann, &session.State{}, msgs)
	require.NoError(t, err)

	conv := load(t, s, res.ConversationID)
	assert.Equal(t, "hello, how can I help?", conv.LastMessage)
	assert.Equal(t, "User: hi\nAssistant: hello, how can I help?", conv.Content)
}

func TestAnonymousNewChatPersistsNothing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{}, Options{})
	st := &session.State{}

	res, err := r.HandleNewChat(ctx, nil, st, []Message{{IsUser: true, Content: "hi"}})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Zero(t, res.ConversationID)
	assert.Nil(t, st.ConversationID)

	conv, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestRepeatedNewChatCreatesSecondConversation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{}, Options{NewChatPolicy: AlwaysCreate})
	st := &session.State{}

	first, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "one"}})
	require.NoError(t, err)
	second, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "two"}})
	require.NoError(t, err)

	assert.NotEqual(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, second.ConversationID, *st.ConversationID)
}

func TestReusePolicyKeepsCurrentConversation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{}, Options{NewChatPolicy: ReuseCurrent})
	st := &session.State{}

	first, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "one"}})
	require.NoError(t, err)
	second, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "two"}})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	convs, err := s.ListByOwner(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestQueryAppendsBothTurns(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	resp := &fakeResponder{reply: "4"}
	r := NewReconciler(s, resp, Options{})
	st := &session.State{}

	created, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "hi"}})
	require.NoError(t, err)

	res, err := r.HandleQuery(ctx, ann, st, "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", res.Reply)
	assert.Equal(t, created.ConversationID, res.ConversationID)

	conv := load(t, s, created.ConversationID)
	assert.True(t, strings.HasSuffix(conv.Content, "\nUser: 2+2?\nAssistant: 4"), conv.Content)
	assert.Equal(t, "4", conv.LastMessage)

	assert.Equal(t, []models.Turn{models.UserTurn("hi"), models.UserTurn("2+2?")}, resp.seen)
	assert.Equal(t, []models.Turn{models.UserTurn("hi"), models.UserTurn("2+2?"), models.AssistantTurn("4")}, st.Buffer)
}

func TestQueryResponderFailureKeepsUserTurn(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{err: errors.New("model overloaded")}, Options{})
	st := &session.State{}

	created, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "hi"}})
	require.NoError(t, err)

	_, err = r.HandleQuery(ctx, ann, st, "2+2?")
	require.ErrorIs(t, err, ErrUpstream)

	conv := load(t, s, created.ConversationID)
	assert.Equal(t, "User: hi\nUser: 2+2?", conv.Content)
	assert.Equal(t, "2+2?", conv.LastMessage)
	assert.NotContains(t, conv.Content, "Assistant:")
}

func TestQueryBlankReplyIsUpstreamFailure(t *testing.T) {
	r := NewReconciler(newStore(t), &fakeResponder{reply: "   "}, Options{})
	_, err := r.HandleQuery(context.Background(), nil, &session.State{}, "hello")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestDeferredCommitWritesNothingOnFailure(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	resp := &fakeResponder{err: errors.New("boom")}
	r := NewReconciler(s, resp, Options{CommitMode: CommitDeferred})
	st := &session.State{}

	created, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "hi"}})
	require.NoError(t, err)

	_, err = r.HandleQuery(ctx, ann, st, "2+2?")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "User: hi", load(t, s, created.ConversationID).Content)

	resp.err, resp.reply = nil, "4"
	_, err = r.HandleQuery(ctx, ann, st, "2+2?")
	require.NoError(t, err)
	conv := load(t, s, created.ConversationID)
	assert.Equal(t, "User: hi\nUser: 2+2?\nAssistant: 4", conv.Content)
	assert.Equal(t, "4", conv.LastMessage)
}

func TestDeferredUnattachedQueryCreatesAfterSuccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{reply: "4"}, Options{CommitMode: CommitDeferred})
	st := &session.State{}

	res, err := r.HandleQuery(ctx, ann, st, "2+2?")
	require.NoError(t, err)
	require.NotZero(t, res.ConversationID)
	assert.Equal(t, "User: 2+2?\nAssistant: 4", load(t, s, res.ConversationID).Content)
}

func TestUnattachedQueryCreatesConversation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{reply: "4"}, Options{})
	st := &session.State{}

	res, err := r.HandleQuery(ctx, ann, st, "2+2?")
	require.NoError(t, err)
	require.NotNil(t, st.ConversationID)
	assert.Equal(t, res.ConversationID, *st.ConversationID)
	assert.Equal(t, "User: 2+2?\nAssistant: 4", load(t, s, res.ConversationID).Content)
}

func TestQueryIgnoresConversationOfAnotherUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{reply: "4"}, Options{})

	foreign, err := s.Create(ctx, 99, "not yours", "User: secret", "secret", time.Now())
	require.NoError(t, err)
	st := &session.State{}
	st.Attach(foreign)

	res, err := r.HandleQuery(ctx, ann, st, "2+2?")
	require.NoError(t, err)
	assert.NotEqual(t, foreign, res.ConversationID)
	assert.Equal(t, "User: secret", load(t, s, foreign).Content)
}

func TestAnonymousQuery(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{reply: "4"}, Options{})
	st := &session.State{}

	res, err := r.HandleQuery(ctx, nil, st, "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", res.Reply)
	assert.Zero(t, res.ConversationID)
	assert.Len(t, st.Buffer, 2)
}

func TestEmptyQueryIsValidationError(t *testing.T) {
	resp := &fakeResponder{reply: "4"}
	r := NewReconciler(newStore(t), resp, Options{})
	_, err := r.HandleQuery(context.Background(), ann, &session.State{}, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, resp.calls)
}

func TestStorageErrorPropagates(t *testing.T) {
	r := NewReconciler(failingStore{}, &fakeResponder{reply: "4"}, Options{})
	_, err := r.HandleNewChat(context.Background(), ann, &session.State{}, []Message{{IsUser: true, Content: "hi"}})
	assert.ErrorIs(t, err, ErrStorage)

	_, err = r.HandleQuery(context.Background(), ann, &session.State{}, "hi")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestGetTranscriptRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := NewReconciler(s, &fakeResponder{reply: "line one\nline two"}, Options{})
	st := &session.State{}

	_, err := r.HandleNewChat(ctx, ann, st, []Message{{IsUser: true, Content: "hi"}})
	require.NoError(t, err)
	_, err = r.HandleQuery(ctx, ann, st, "tell me: twice")
	require.NoError(t, err)

	got, err := r.GetTranscript(ctx, ann)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []models.Turn{
		models.UserTurn("hi"),
		models.UserTurn("tell me: twice"),
		models.AssistantTurn("line one\nline two"),
	}, got[0].Turns)
}

func TestGetTranscriptSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Create(ctx, ann.UserID, "legacy", "User: hi\ngarbage\nAssistant: hello", "hello", time.Now())
	require.NoError(t, err)

	got, err := NewReconciler(s, &fakeResponder{}, Options{}).GetTranscript(ctx, ann)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []models.Turn{models.UserTurn("hi"), models.AssistantTurn("hello")}, got[0].Turns)
}

func TestGetTranscriptRequiresIdentity(t *testing.T) {
	_, err := NewReconciler(newStore(t), &fakeResponder{}, Options{}).GetTranscript(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResponderTimeout(t *testing.T) {
	slow := responderFunc(func(ctx context.Context, _ string, _ []models.Turn) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewReconciler(newStore(t), slow, Options{ResponderTimeout: 10 * time.Millisecond})
	_, err := r.HandleQuery(context.Background(), nil, &session.State{}, "hello")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type responderFunc func(ctx context.Context, query string, turns []models.Turn) (string, error)

func (f responderFunc) Respond(ctx context.Context, query string, turns []models.Turn) (string, error) {
	return f(ctx, query, turns)
}
