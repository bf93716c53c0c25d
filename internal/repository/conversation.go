package repository

import (
	"context"
	"errors"

	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConversationRepository is a repository for reading conversations.
type ConversationRepository struct {
	DB *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{DB: db}
}

// GetConversationByID retrieves a conversation owned by userID with its
// messages in chronological order.
func (r *ConversationRepository) GetConversationByID(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	var convo models.Conversation
	err := r.DB.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&convo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Conversation not found"}
		}
		logger.Get().Error("failed to get conversation", zap.Uint("conversation_id", conversationID), zap.Error(err))
		return nil, err
	}

	return &convo, nil
}
