package session

import (
	"testing"
	"time"

	"DiaBot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUnknownCreatesFreshState(t *testing.T) {
	s := NewStore(10, time.Minute, 0)
	a := s.Load("")
	b := s.Load("does-not-exist")
	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, a.Buffer)
	assert.Nil(t, a.ConversationID)
}

func TestSaveAndLoad(t *testing.T) {
	s := NewStore(10, time.Minute, 0)
	st := s.Load("")
	st.AddTurn(models.UserTurn("hi"))
	st.Attach(5)
	s.Save(st)

	got := s.Load(st.ID)
	require.NotNil(t, got.ConversationID)
	assert.Equal(t, uint(5), *got.ConversationID)
	assert.Equal(t, []models.Turn{models.UserTurn("hi")}, got.Buffer)

	// mutations after Save do not leak into the store
	st.AddTurn(models.AssistantTurn("hello"))
	*st.ConversationID = 9
	again := s.Load(st.ID)
	assert.Len(t, again.Buffer, 1)
	assert.Equal(t, uint(5), *again.ConversationID)
}

func TestSaveTrimsBuffer(t *testing.T) {
	s := NewStore(10, time.Minute, 2)
	st := s.Load("")
	st.AddTurn(models.UserTurn("one"))
	st.AddTurn(models.AssistantTurn("two"))
	st.AddTurn(models.UserTurn("three"))
	s.Save(st)

	got := s.Load(st.ID)
	assert.Equal(t, []models.Turn{models.AssistantTurn("two"), models.UserTurn("three")}, got.Buffer)
}

func TestResetAndDelete(t *testing.T) {
	s := NewStore(10, time.Minute, 0)
	st := s.Load("")
	st.AddTurn(models.UserTurn("hi"))
	st.Attach(1)
	st.Reset()
	assert.Empty(t, st.Buffer)
	assert.Nil(t, st.ConversationID)

	s.Save(st)
	s.Delete(st.ID)
	assert.NotEqual(t, st.ID, s.Load(st.ID).ID)
}

func TestSaveSkipsFreshEmptyState(t *testing.T) {
	s := NewStore(10, time.Minute, 0)
	st := s.Load("")
	s.Save(st)
	assert.Zero(t, s.Cache().Len())

	st.AddTurn(models.UserTurn("hi"))
	s.Save(st)
	assert.Equal(t, 1, s.Cache().Len())

	// a stored session stays stored once it is emptied
	again := s.Load(st.ID)
	again.Reset()
	s.Save(again)
	assert.Equal(t, st.ID, s.Load(st.ID).ID)
}

func TestAnonymousTrafficKeepsLiveSession(t *testing.T) {
	s := NewStore(3, time.Minute, 0)
	live := s.Load("")
	live.Attach(42)
	s.Save(live)

	for i := 0; i < 50; i++ {
		s.Save(s.Load(""))
	}

	got := s.Load(live.ID)
	require.NotNil(t, got.ConversationID)
	assert.Equal(t, uint(42), *got.ConversationID)
}
