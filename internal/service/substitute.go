package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/safety"
)

// AISubstituter adapts an ai.Substituter to the safety chain.
type AISubstituter struct {
	Provider ai.Substituter
}

// NewAISubstituter creates an AISubstituter. It returns nil when provider is
// nil so the chain skips it.
func NewAISubstituter(provider ai.Substituter) safety.IngredientSubstituter {
	if provider == nil {
		return nil
	}
	return &AISubstituter{Provider: provider}
}

// Substitute asks the model to rewrite the flagged ingredients. Records the
// model reports are appended to the recipe's existing substitutions.
func (s *AISubstituter) Substitute(ctx context.Context, recipe *models.RecipeData, violations []safety.Violation, constraints []string) (*models.RecipeData, error) {
	flagged := make([]string, 0, len(violations))
	seen := make(map[string]bool, len(violations))
	for _, v := range violations {
		if !seen[v.Ingredient] {
			seen[v.Ingredient] = true
			flagged = append(flagged, v.Ingredient)
		}
	}

	result, err := s.Provider.SubstituteIngredients(ctx, ai.SubstitutionRequest{
		Title:        recipe.Title,
		Ingredients:  recipe.Ingredients,
		Instructions: recipe.Instructions,
		Flagged:      flagged,
		Constraints:  constraints,
	})
	if err != nil {
		return nil, fmt.Errorf("ai substitution: %w", err)
	}
	if result == nil || len(result.Ingredients) == 0 {
		return nil, errors.New("ai substitution returned no ingredients")
	}

	out := recipe.Clone()
	out.Ingredients = pq.StringArray(append([]string(nil), result.Ingredients...))
	if len(result.Instructions) > 0 {
		out.Instructions = pq.StringArray(append([]string(nil), result.Instructions...))
	}
	for _, sub := range result.Substitutions {
		if sub.Original == "" || sub.Replacement == "" {
			continue
		}
		out.Substitutions = append(out.Substitutions, models.SubstitutionRecord{
			Original:    sub.Original,
			Replacement: sub.Replacement,
			Reason:      sub.Reason,
		})
	}
	return out, nil
}
