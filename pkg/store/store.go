// Package store holds the gorm backed credential and conversation stores.
package store

import (
	"context"
	"errors"
	"time"

	"DiaBot/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrEmailExists = errors.New("email already exists")
)

// ConversationStore persists chat records.
type ConversationStore interface {
	Create(ctx context.Context, ownerID uint, title, content, lastMessage string, ts time.Time) (uint, error)
	// Append adds turns to the transcript and moves last_message to the final turn.
	// Returns ErrNotFound when id does not exist.
	Append(ctx context.Context, id uint, turns ...models.Turn) error
	// Get returns nil, nil when id does not exist.
	Get(ctx context.Context, id uint) (*models.Conversation, error)
	// ListByOwner returns the owner's conversations, most recent first.
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Conversation, error)
	SetLastMessage(ctx context.Context, id, ownerID uint, text string) error
}

// UserStore persists users and verifies credentials.
type UserStore interface {
	// Verify returns nil, nil for unknown emails, inactive users and wrong passwords.
	Verify(ctx context.Context, email, password string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	ListActive(ctx context.Context) ([]models.User, error)
	Save(ctx context.Context, u *models.User) error
	RecordLogin(ctx context.Context, userID uint, at time.Time) error
}
