// Package chat reconciles inbound chat events with durable conversation
// records and the client's session state.
package chat

import (
	"errors"
	"time"

	"DiaBot/models"
)

var (
	ErrValidation = errors.New("invalid chat request")
	ErrUpstream   = errors.New("request could not be processed")
	ErrStorage    = errors.New("conversation storage failed")
)

// Identity is the authenticated caller. A nil *Identity is an anonymous client.
type Identity struct {
	UserID uint
	Email  string
}

// Message is one entry of a new-chat payload.
type Message struct {
	IsUser  bool   `json:"isUser"`
	Content string `json:"content"`
}

func (m Message) Turn() models.Turn {
	if m.IsUser {
		return models.UserTurn(m.Content)
	}
	return models.AssistantTurn(m.Content)
}

// NewChatResult acknowledges a new-chat event. ConversationID is zero for
// anonymous clients.
type NewChatResult struct {
	Created        bool
	ConversationID uint
}

type QueryResult struct {
	Reply          string
	ConversationID uint
}

// Transcript is a conversation replayed as turns.
type Transcript struct {
	ID        uint          `json:"id"`
	Title     string        `json:"title"`
	Turns     []models.Turn `json:"messages"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewChatPolicy decides what a new-chat event does when the session is already
// attached to a conversation.
type NewChatPolicy string

const (
	// AlwaysCreate starts a second conversation; nothing is merged.
	AlwaysCreate NewChatPolicy = "duplicate"
	// ReuseCurrent keeps the attached conversation when it still resolves.
	ReuseCurrent NewChatPolicy = "reuse"
)

// CommitMode decides when the user turn of a query is persisted.
type CommitMode string

const (
	// CommitEager persists the user turn before calling the responder and does
	// not roll it back when the responder fails.
	CommitEager CommitMode = "eager"
	// CommitDeferred persists both turns only after the responder succeeds.
	CommitDeferred CommitMode = "deferred"
)
