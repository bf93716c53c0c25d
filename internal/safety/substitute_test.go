package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windoze95/saltybytes-resolver/internal/models"
)

func TestRuleSubstituter_ReplacesIngredientsAndInstructions(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{
		Title:        "Pancakes",
		Ingredients:  []string{"1 cup milk", "2 tbsp butter", "salt"},
		Instructions: []string{"Warm the milk and melt the butter."},
	}
	constraints := []string{"dairy"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)

	assert.Equal(t, []string{"1 cup oat milk", "2 tbsp olive oil", "salt"}, []string(out.Ingredients))
	assert.Equal(t, []string{"Warm the oat milk and melt the olive oil."}, []string(out.Instructions))
	assert.Equal(t, models.SubstitutionList{
		{Original: "milk", Replacement: "oat milk", Reason: "dairy"},
		{Original: "butter", Replacement: "olive oil", Reason: "dairy"},
	}, out.Substitutions)

	// The input is untouched.
	assert.Equal(t, "1 cup milk", recipe.Ingredients[0])
	assert.Empty(t, recipe.Substitutions)
}

func TestRuleSubstituter_Plurals(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{Ingredients: []string{"3 eggs"}, Instructions: []string{"Whisk the eggs."}}
	constraints := []string{"egg"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)
	assert.Equal(t, "3 flax eggs", out.Ingredients[0])
	assert.Equal(t, "Whisk the flax eggs.", out.Instructions[0])
	assert.Empty(t, d.Detect(out.Ingredients, constraints))
}

func TestRuleSubstituter_SkipsOptionsThatBreakConstraints(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{Ingredients: []string{"1 tbsp fish sauce"}}
	// soy sauce is the first option but breaks gluten.
	constraints := []string{"fish", "gluten"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)
	assert.Equal(t, "1 tbsp coconut aminos", out.Ingredients[0])
}

func TestRuleSubstituter_NoReplacementAvailable(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{Ingredients: []string{"1 lb crayfish"}}
	constraints := []string{"shellfish"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)
	assert.Equal(t, "1 lb crayfish", out.Ingredients[0])
	assert.Empty(t, out.Substitutions)
}

func TestRuleSubstituter_PluralRecordedOnce(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{
		Ingredients:  []string{"3 eggs", "1 flax egg"},
		Instructions: []string{"Mix the flax egg, then beat in the eggs."},
	}
	constraints := []string{"egg"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)
	assert.Equal(t, []string{"3 flax eggs", "1 flax egg"}, []string(out.Ingredients))
	assert.Equal(t, "Mix the flax egg, then beat in the flax eggs.", out.Instructions[0])
	assert.Equal(t, models.SubstitutionList{{Original: "eggs", Replacement: "flax egg", Reason: "egg"}}, out.Substitutions)
}

func TestRuleSubstituter_LeavesSafePhrasesInInstructions(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{
		Ingredients:  []string{"1 cup cream", "1 tsp cream of tartar"},
		Instructions: []string{"Whip the cream with the cream of tartar."},
	}
	constraints := []string{"dairy"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 cup coconut cream", "1 tsp cream of tartar"}, []string(out.Ingredients))
	assert.Equal(t, "Whip the coconut cream with the cream of tartar.", out.Instructions[0])
	assert.Len(t, out.Substitutions, 1)
}

func TestRuleSubstituter_CompoundWordsAreNotRewritten(t *testing.T) {
	d := NewDetector()
	s := NewRuleSubstituter(d)
	recipe := &models.RecipeData{Ingredients: []string{"8 oz lump crabmeat", "1 cup eggnog"}}
	constraints := []string{"shellfish", "egg"}

	out, err := s.Substitute(context.Background(), recipe, d.Detect(recipe.Ingredients, constraints), constraints)
	require.NoError(t, err)
	assert.Equal(t, []string{"8 oz lump crabmeat", "1 cup eggnog"}, []string(out.Ingredients))
	assert.Empty(t, out.Substitutions)
}
