package repository

import (
	"context"

	"github.com/windoze95/saltybytes-resolver/internal/models"
)

// RecipeRepo is the interface for stored recipe operations.
type RecipeRepo interface {
	CreateRecipe(ctx context.Context, recipe *models.StoredRecipe) error
	GetRecipeByID(ctx context.Context, recipeID, userID uint) (*models.StoredRecipe, error)
	FindBySourceURL(ctx context.Context, userID uint, sourceURLLower string) (*models.StoredRecipe, error)
	UpdateRecipe(ctx context.Context, recipe *models.StoredRecipe) error
	UpdateRecipeImageURL(ctx context.Context, recipeID uint, imageURL string) error
}

// UserRepo is the interface for reading user profiles.
type UserRepo interface {
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
}

// ConversationRepo is the interface for reading conversations.
type ConversationRepo interface {
	GetConversationByID(ctx context.Context, conversationID, userID uint) (*models.Conversation, error)
}
