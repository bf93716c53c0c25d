package repository

import (
	"context"
	"errors"

	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecipeRepository is a repository for interacting with stored recipes.
type RecipeRepository struct {
	DB *gorm.DB
}

// NewRecipeRepository creates a new RecipeRepository.
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{DB: db}
}

// CreateRecipe creates a new stored recipe.
func (r *RecipeRepository) CreateRecipe(ctx context.Context, recipe *models.StoredRecipe) error {
	if err := r.DB.WithContext(ctx).Create(recipe).Error; err != nil {
		logger.Get().Error("failed to create recipe", zap.Uint("user_id", recipe.UserID), zap.String("source_url", recipe.SourceURL), zap.Error(err))
		return err
	}
	return nil
}

// GetRecipeByID retrieves a recipe owned by userID.
func (r *RecipeRepository) GetRecipeByID(ctx context.Context, recipeID, userID uint) (*models.StoredRecipe, error) {
	var recipe models.StoredRecipe
	err := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", recipeID, userID).
		First(&recipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Recipe not found"}
		}
		logger.Get().Error("failed to get recipe", zap.Uint("recipe_id", recipeID), zap.Error(err))
		return nil, err
	}

	return &recipe, nil
}

// FindBySourceURL retrieves the oldest recipe a user resolved from the given
// normalized source URL.
func (r *RecipeRepository) FindBySourceURL(ctx context.Context, userID uint, sourceURLLower string) (*models.StoredRecipe, error) {
	var recipe models.StoredRecipe
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND source_url_lower = ?", userID, sourceURLLower).
		Order("id ASC").
		First(&recipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Recipe not found"}
		}
		logger.Get().Error("failed to find recipe by source url", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &recipe, nil
}

// UpdateRecipe replaces a stored recipe.
func (r *RecipeRepository) UpdateRecipe(ctx context.Context, recipe *models.StoredRecipe) error {
	if err := r.DB.WithContext(ctx).Save(recipe).Error; err != nil {
		logger.Get().Error("failed to update recipe", zap.Uint("recipe_id", recipe.ID), zap.Error(err))
		return err
	}
	return nil
}

// UpdateRecipeImageURL updates a recipe's image URL.
func (r *RecipeRepository) UpdateRecipeImageURL(ctx context.Context, recipeID uint, imageURL string) error {
	result := r.DB.WithContext(ctx).Model(&models.StoredRecipe{}).
		Where("id = ?", recipeID).
		Update("image_url", imageURL)
	if result.Error != nil {
		logger.Get().Error("failed to update recipe image url", zap.Uint("recipe_id", recipeID), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "Recipe not found"}
	}
	return nil
}
