package models

import "time"

// Conversation is the durable record of one chat. Content is the transcript,
// one "Role: text" turn per line.
type Conversation struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"not null;index"`
	Title       string    `gorm:"size:255;not null"`
	Content     string    `gorm:"type:text"`
	LastMessage string    `gorm:"type:text"`
	Timestamp   time.Time `gorm:"index"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message. Turns are only appended, never edited.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(text string) Turn      { return Turn{Role: RoleUser, Content: text} }
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Content: text} }
