package service

import (
	"context"
	"fmt"

	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
)

// RecipeService is the business logic layer for reading stored recipes.
type RecipeService struct {
	Repo repository.RecipeRepo
}

// RecipeResponse is the response object for a stored recipe.
type RecipeResponse struct {
	ID               string                      `json:"id"`
	Title            string                      `json:"title"`
	Description      string                      `json:"description,omitempty"`
	Portions         int                         `json:"portions"`
	UserPortionSize  int                         `json:"userPortionSize,omitempty"`
	ImageURL         string                      `json:"imageUrl"`
	Ingredients      []string                    `json:"ingredients"`
	Instructions     []string                    `json:"instructions"`
	Substitutions    []models.SubstitutionRecord `json:"substitutions"`
	HasSubstitutions bool                        `json:"hasSubstitutions"`
	SourceURL        string                      `json:"sourceUrl"`
	ConversationID   *string                     `json:"conversationId,omitempty"`
	IsSaved          bool                        `json:"isSaved"`
	CreatedAt        string                      `json:"createdAt"`
	UpdatedAt        string                      `json:"updatedAt"`
}

// NewRecipeService is the constructor function for initializing a new RecipeService
func NewRecipeService(repo repository.RecipeRepo) *RecipeService {
	return &RecipeService{Repo: repo}
}

// GetRecipeByID fetches a recipe owned by userID.
func (s *RecipeService) GetRecipeByID(ctx context.Context, recipeID, userID uint) (*RecipeResponse, error) {
	recipe, err := s.Repo.GetRecipeByID(ctx, recipeID, userID)
	if err != nil {
		return nil, err
	}

	return ToRecipeResponse(recipe), nil
}

// ToRecipeResponse converts a StoredRecipe to a RecipeResponse.
func ToRecipeResponse(r *models.StoredRecipe) *RecipeResponse {
	var conversationID *string
	if r.ConversationID != nil {
		s := fmt.Sprintf("%d", *r.ConversationID)
		conversationID = &s
	}

	substitutions := []models.SubstitutionRecord(r.Substitutions)
	if substitutions == nil {
		substitutions = []models.SubstitutionRecord{}
	}

	return &RecipeResponse{
		ID:               fmt.Sprintf("%d", r.ID),
		Title:            r.Title,
		Description:      r.Description,
		Portions:         r.Portions,
		UserPortionSize:  r.UserPortionSize,
		ImageURL:         r.ImageURL,
		Ingredients:      r.Ingredients,
		Instructions:     r.Instructions,
		Substitutions:    substitutions,
		HasSubstitutions: r.HasSubstitutions,
		SourceURL:        r.SourceURL,
		ConversationID:   conversationID,
		IsSaved:          r.IsSaved,
		CreatedAt:        r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
