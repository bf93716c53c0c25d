package safety

import (
	"context"
	"errors"

	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"go.uber.org/zap"
)

// Chain runs the equipment gate and the ingredient gate over a recipe.
type Chain struct {
	equipment    EquipmentGate
	detector     *Detector
	substituters []IngredientSubstituter
}

// NewChain creates a Chain. Substituters run in order during the single
// substitution pass; nil entries are skipped.
func NewChain(detector *Detector, substituters ...IngredientSubstituter) *Chain {
	c := &Chain{detector: detector}
	for _, s := range substituters {
		if s != nil {
			c.substituters = append(c.substituters, s)
		}
	}
	return c
}

// Detector returns the chain's ingredient detector.
func (c *Chain) Detector() *Detector {
	return c.detector
}

// Apply returns a copy of recipe that satisfies profile, or an
// *EquipmentViolation / *IngredientViolation. The profile must already be
// effective; the premium gate is not re-checked here.
//
// Disallowed ingredients get exactly one substitution pass followed by one
// re-verification.
func (c *Chain) Apply(ctx context.Context, recipe *models.RecipeData, profile models.SafetyProfile) (*models.RecipeData, error) {
	if recipe == nil {
		return nil, errors.New("nil recipe")
	}
	out := recipe.Clone()

	if err := c.equipment.Check(out.Instructions, profile.UnavailableEquipment); err != nil {
		return nil, err
	}

	if !profile.HasDietaryConstraints() {
		return out, nil
	}

	constraints := profile.DietaryConstraints()
	violations := c.detector.Detect(out.Ingredients, constraints)
	if len(violations) == 0 {
		return out, nil
	}

	before := len(out.Substitutions)
	current := out
	remaining := violations
	for _, s := range c.substituters {
		next, err := s.Substitute(ctx, current, remaining, constraints)
		if err != nil {
			logger.Get().Warn("substitution failed", zap.Error(err), zap.String("recipe", out.Title))
			continue
		}
		if next == nil || len(next.Ingredients) == 0 {
			continue
		}
		if len(next.Instructions) == 0 {
			next.Instructions = current.Instructions
		}
		current = next
		remaining = c.detector.Detect(current.Ingredients, constraints)
		if len(remaining) == 0 {
			break
		}
	}

	if len(current.Substitutions) == before {
		return nil, &IngredientViolation{Violations: violations, Unsubstituted: true}
	}
	if len(remaining) > 0 {
		return nil, &IngredientViolation{Violations: remaining}
	}

	// Substituted instructions may mention new equipment.
	if err := c.equipment.Check(current.Instructions, profile.UnavailableEquipment); err != nil {
		return nil, err
	}

	return current, nil
}
