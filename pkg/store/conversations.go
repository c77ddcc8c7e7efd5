package store

import (
	"context"
	"errors"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/transcript"

	"gorm.io/gorm"
)

type GormConversationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationStore(db *gorm.DB) *GormConversationStore {
	return &GormConversationStore{db: db, now: time.Now}
}

func (s *GormConversationStore) Create(ctx context.Context, ownerID uint, title, content, lastMessage string, ts time.Time) (uint, error) {
	conv := models.Conversation{
		UserID:      ownerID,
		Title:       title,
		Content:     content,
		LastMessage: lastMessage,
		Timestamp:   ts,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// Append reads and rewrites the row inside one transaction. Two writers on the
// same conversation still race; the later commit wins.
func (s *GormConversationStore) Append(ctx context.Context, id uint, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Model(&conv).Updates(map[string]any{
			"content":      transcript.Append(conv.Content, turns...),
			"last_message": turns[len(turns)-1].Content,
			"timestamp":    s.now(),
		}).Error
	})
}

func (s *GormConversationStore) Get(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (s *GormConversationStore) ListByOwner(ctx context.Context, ownerID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *GormConversationStore) SetLastMessage(ctx context.Context, id, ownerID uint, text string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("last_message", text)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
