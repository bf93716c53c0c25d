package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"go.uber.org/zap"
)

// ImageMirror copies a recipe's source image into app storage.
type ImageMirror interface {
	MirrorRecipeImage(ctx context.Context, recipeID uint, imageURL string) (string, error)
}

// ResultResolver persists resolved recipes, reusing an existing record for
// the same user and source URL.
type ResultResolver struct {
	Repo   repository.RecipeRepo
	Images ImageMirror // optional
}

// NewResultResolver creates a ResultResolver. images may be nil.
func NewResultResolver(repo repository.RecipeRepo, images ImageMirror) *ResultResolver {
	return &ResultResolver{Repo: repo, Images: images}
}

// Resolve returns the stored recipe for (userID, sourceURL), creating it from
// recipe if none exists. An existing record gains conversationID when it has
// none. Concurrent calls may create duplicates. Storage failures wrap
// ErrPersistence.
func (r *ResultResolver) Resolve(ctx context.Context, userID uint, sourceURL string, recipe *models.RecipeData, conversationID *uint) (*models.StoredRecipe, error) {
	key := models.NormalizeSourceURL(sourceURL)

	existing, err := r.Repo.FindBySourceURL(ctx, userID, key)
	switch {
	case err == nil:
		if existing.ConversationID == nil && conversationID != nil {
			id := *conversationID
			existing.ConversationID = &id
			if err := r.Repo.UpdateRecipe(ctx, existing); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
		}
		return existing, nil
	case !isNotFound(err):
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	stored := &models.StoredRecipe{
		RecipeData:       *recipe.Clone(),
		UserID:           userID,
		SourceURL:        sourceURL,
		SourceURLLower:   key,
		HasSubstitutions: len(recipe.Substitutions) > 0,
	}
	if conversationID != nil {
		id := *conversationID
		stored.ConversationID = &id
	}
	if err := r.Repo.CreateRecipe(ctx, stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	r.mirrorImage(ctx, stored)
	return stored, nil
}

// mirrorImage replaces the source image URL with an S3 copy. Failures only
// leave the source URL in place.
func (r *ResultResolver) mirrorImage(ctx context.Context, stored *models.StoredRecipe) {
	if r.Images == nil || stored.ImageURL == "" {
		return
	}
	location, err := r.Images.MirrorRecipeImage(ctx, stored.ID, stored.ImageURL)
	if err != nil {
		logger.Get().Warn("failed to mirror recipe image", zap.Uint("recipe_id", stored.ID), zap.Error(err))
		return
	}
	if err := r.Repo.UpdateRecipeImageURL(ctx, stored.ID, location); err != nil {
		logger.Get().Warn("failed to save mirrored image url", zap.Uint("recipe_id", stored.ID), zap.Error(err))
		return
	}
	stored.ImageURL = location
}

func isNotFound(err error) bool {
	var nf repository.NotFoundError
	return errors.As(err, &nf)
}
