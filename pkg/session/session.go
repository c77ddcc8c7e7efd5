// Package session keeps per-client chat state on the server, keyed by an
// opaque session id the client echoes back.
package session

import (
	"slices"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/cache"

	"github.com/google/uuid"
)

// State is the ephemeral chat state of one client session.
type State struct {
	ID string
	// Buffer is the prompt context for the responder. It is never persisted.
	Buffer []models.Turn
	// ConversationID is the conversation subsequent queries append to; nil when
	// the session is not attached to one.
	ConversationID *uint

	// stored is true when the state was loaded from the store.
	stored bool
}

func (s *State) AddTurn(t models.Turn) {
	s.Buffer = append(s.Buffer, t)
}

func (s *State) Attach(id uint) {
	s.ConversationID = &id
}

func (s *State) Detach() {
	s.ConversationID = nil
}

// Reset clears the buffer and detaches the conversation.
func (s *State) Reset() {
	s.Buffer = nil
	s.ConversationID = nil
}

// empty reports whether the state carries nothing worth keeping.
func (s *State) empty() bool {
	return len(s.Buffer) == 0 && s.ConversationID == nil
}

func (s *State) clone() *State {
	c := &State{ID: s.ID, Buffer: slices.Clone(s.Buffer), stored: s.stored}
	if s.ConversationID != nil {
		id := *s.ConversationID
		c.ConversationID = &id
	}
	return c
}

type Store struct {
	states   *cache.Cache
	ttl      time.Duration
	maxTurns int
}

// NewStore keeps at most maxItems sessions, each idle for at most ttl, with at
// most maxTurns buffered turns (0 = unlimited).
func NewStore(maxItems int, ttl time.Duration, maxTurns int) *Store {
	return &Store{states: cache.New(maxItems), ttl: ttl, maxTurns: maxTurns}
}

// Load returns the state for id, or a fresh state with a new id when id is
// empty or unknown. The caller owns the returned value until Save.
func (s *Store) Load(id string) *State {
	if id != "" {
		if v, ok := s.states.Get(id); ok {
			if st, ok := v.(*State); ok {
				c := st.clone()
				c.stored = true
				return c
			}
		}
	}
	return &State{ID: uuid.NewString()}
}

// Save stores a copy of st, trimming the buffer to the newest maxTurns turns.
// A fresh state that is still empty is not stored, so clients that never chat
// cannot push live sessions out of the cache.
func (s *Store) Save(st *State) {
	if st == nil || st.ID == "" {
		return
	}
	if !st.stored && st.empty() {
		return
	}
	c := st.clone()
	if s.maxTurns > 0 && len(c.Buffer) > s.maxTurns {
		c.Buffer = slices.Clone(c.Buffer[len(c.Buffer)-s.maxTurns:])
	}
	s.states.Set(c.ID, c, s.ttl)
}

func (s *Store) Delete(id string) {
	s.states.Delete(id)
}

// Cache exposes the backing cache so the janitor can sweep it.
func (s *Store) Cache() *cache.Cache { return s.states }
